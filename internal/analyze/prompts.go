package analyze

import (
	"encoding/json"
	"strings"

	"github.com/actuaryhelp/casefeed/internal/core/domain"
	"github.com/actuaryhelp/casefeed/internal/core/normalize"
)

const maxAnalysisContentLen = 8000

const systemPrompt = `You are a senior insurance industry analyst with 20+ years of experience across global markets. You produce deep, insightful analysis of insurance innovations that helps executives and product developers make informed decisions.

Your analysis must be:
- Fact-based with specific details (numbers, dates, names)
- Insightful beyond surface-level description
- Actionable for insurance professionals
- Balanced and objective

You must respond ONLY with valid JSON matching the specified schema.`

const (
	titlePlaceholder          = "{{TITLE}}"
	contentPlaceholder        = "{{CONTENT}}"
	sourceURLsPlaceholder     = "{{SOURCE_URLS}}"
	companyNamesPlaceholder   = "{{COMPANY_NAMES}}"
	regionPlaceholder         = "{{REGION}}"
	innovationTypePlaceholder = "{{INNOVATION_TYPE}}"
	insuranceLinePlaceholder  = "{{INSURANCE_LINE}}"
)

const positiveAnalysisTemplate = `Analyze this insurance innovation case and produce a five-layer deep analysis.

## Case Information
Title: {{TITLE}}
Content: {{CONTENT}}
Source URLs: {{SOURCE_URLS}}
Company: {{COMPANY_NAMES}}
Region: {{REGION}}
Innovation Type: {{INNOVATION_TYPE}}
Insurance Line: {{INSURANCE_LINE}}

## Five-Layer Analysis Framework for Positive Cases

### Layer 1: What It Is (产品/服务是什么)
Describe the innovation concisely:
- What is the product, service, or initiative?
- Who is the target customer segment?
- What problem does it solve?
- Key features and differentiators

### Layer 2: How It Works (运作机制)
Explain the mechanism:
- Technology or approach used
- Business model (pricing, distribution, partnerships)
- Key processes and workflows
- Integration with existing systems/products

### Layer 3: Why It Matters (创新意义)
Analyze the strategic significance:
- What makes this genuinely innovative?
- Market gap or opportunity being addressed
- Competitive advantages created
- Potential impact on the industry

### Layer 4: Results & Evidence (效果与证据)
Present concrete outcomes:
- Quantitative results (users, revenue, growth rates)
- Qualitative indicators (awards, recognition, feedback)
- Timeline and milestones achieved
- If early stage, what metrics to watch

### Layer 5: Actionable Insights (可借鉴之处)
Provide takeaways for practitioners:
- What can other insurers learn from this?
- Prerequisites for replication (tech, talent, capital)
- Potential pitfalls to avoid
- Adaptation considerations for different markets

## Output Schema
{
  "headline_en": string (compelling headline, max 100 chars),
  "headline_zh": string (Chinese headline, max 50 chars),
  "analysis_en": {
    "layer1": string (150-250 words),
    "layer2": string (150-250 words),
    "layer3": string (150-250 words),
    "layer4": string (100-200 words),
    "layer5": string (150-250 words)
  },
  "analysis_zh": {
    "layer1": string (Chinese, culturally adapted, not literal translation),
    "layer2": string,
    "layer3": string,
    "layer4": string,
    "layer5": string
  },
  "company_names": string[],
  "quality_notes": string (any concerns about analysis quality)
}

Now analyze this case:`

const negativeAnalysisTemplate = `Analyze this insurance failure/warning case and produce a five-layer deep analysis.

## Case Information
Title: {{TITLE}}
Content: {{CONTENT}}
Source URLs: {{SOURCE_URLS}}
Company: {{COMPANY_NAMES}}
Region: {{REGION}}
Innovation Type: {{INNOVATION_TYPE}}
Insurance Line: {{INSURANCE_LINE}}

## Five-Layer Analysis Framework for Negative Cases

### Layer 1: What Happened (发生了什么)
Describe the situation:
- Who was involved (company, product, market)?
- What went wrong?
- Timeline of events
- Scale of the issue

### Layer 2: Where Is the Problem (问题在哪)
Identify the core issue:
- Design flaw?
- Pricing error?
- Poor customer experience?
- Wrong distribution channel?
- Technology failure?
- Compliance/regulatory risk?
- Market misjudgment?

### Layer 3: Root Cause Analysis (为什么出问题)
Go beyond surface symptoms:
- Not just "pricing too low" but WHY: insufficient data, flawed model, competitive pressure, risk underestimation
- Organizational factors (culture, incentives, governance)
- External factors (market conditions, regulations, competition)
- Decision-making failures

### Layer 4: Consequences (后果)
Document the impact:
- Financial losses (quantify if possible)
- Product withdrawal or changes
- Customer impact (churn, complaints)
- Regulatory penalties
- Brand/reputation damage
- Strategic implications

### Layer 5: Lessons & Warnings (警示与教训)
Provide actionable warnings:
- How can others avoid the same mistakes?
- Early warning signs to watch for
- Better alternatives or approaches
- Risk mitigation strategies

## Output Schema
{
  "headline_en": string (attention-grabbing headline, max 100 chars),
  "headline_zh": string (Chinese headline, max 50 chars),
  "analysis_en": {
    "layer1": string (150-250 words),
    "layer2": string (150-250 words),
    "layer3": string (150-250 words),
    "layer4": string (100-200 words),
    "layer5": string (150-250 words)
  },
  "analysis_zh": {
    "layer1": string (Chinese, culturally adapted),
    "layer2": string,
    "layer3": string,
    "layer4": string,
    "layer5": string
  },
  "company_names": string[],
  "quality_notes": string (any concerns about analysis quality)
}

Now analyze this case:`

const (
	headlineENPlaceholder = "{{HEADLINE_EN}}"
	headlineZHPlaceholder = "{{HEADLINE_ZH}}"
	analysisENPlaceholder = "{{ANALYSIS_EN}}"
	analysisZHPlaceholder = "{{ANALYSIS_ZH}}"
)

const qualityCheckTemplate = `Review this analysis and check for quality issues.

## Analysis to Review
Headline EN: {{HEADLINE_EN}}
Headline ZH: {{HEADLINE_ZH}}
Analysis EN: {{ANALYSIS_EN}}
Analysis ZH: {{ANALYSIS_ZH}}
Source URLs: {{SOURCE_URLS}}

## Quality Checklist

1. Factual Support: Every layer supported by specific facts, not vague generalizations
2. Mechanism Clarity: Layer 2/3 specific enough for reader to understand HOW it works
3. Source Traceability: All factual claims could be traced to source links
4. Bilingual Consistency: Chinese and English versions convey same information
5. No Duplication: Content is distinct (you don't have access to existing cases, so skip this)
6. Source Validity: URLs appear valid and accessible

## Output Schema
{
  "overall_pass": boolean,
  "quality_score": number (0-1),
  "issues": [
    {
      "check_item": string,
      "passed": boolean,
      "issue_description": string | null
    }
  ],
  "improvement_suggestions": string[],
  "ready_for_publication": boolean
}

Review the analysis:`

type analysisInput struct {
	title          string
	content        string
	sourceURLs     []string
	companyNames   []string
	region         string
	innovationType domain.InnovationType
	insuranceLine  domain.InsuranceLine
	sentiment      domain.Sentiment
}

// buildAnalysisPrompt picks the framework matching the case sentiment:
// innovation breakdown for positive cases, failure postmortem for
// negative ones.
func buildAnalysisPrompt(input analysisInput) string {
	template := positiveAnalysisTemplate
	if input.sentiment == domain.SentimentNegative {
		template = negativeAnalysisTemplate
	}

	companies := strings.Join(input.companyNames, ", ")
	if companies == "" {
		companies = "Unknown"
	}

	prompt := strings.ReplaceAll(template, titlePlaceholder, input.title)
	prompt = strings.ReplaceAll(prompt, contentPlaceholder, normalize.Truncate(input.content, maxAnalysisContentLen))
	prompt = strings.ReplaceAll(prompt, sourceURLsPlaceholder, strings.Join(input.sourceURLs, "\n"))
	prompt = strings.ReplaceAll(prompt, companyNamesPlaceholder, companies)
	prompt = strings.ReplaceAll(prompt, regionPlaceholder, input.region)
	prompt = strings.ReplaceAll(prompt, innovationTypePlaceholder, string(input.innovationType))

	return strings.ReplaceAll(prompt, insuranceLinePlaceholder, string(input.insuranceLine))
}

func buildQualityCheckPrompt(analysis analysisResult, sourceURLs []string) string {
	analysisEN, _ := json.MarshalIndent(analysis.AnalysisEN, "", "  ")
	analysisZH, _ := json.MarshalIndent(analysis.AnalysisZH, "", "  ")

	prompt := strings.ReplaceAll(qualityCheckTemplate, headlineENPlaceholder, analysis.HeadlineEN)
	prompt = strings.ReplaceAll(prompt, headlineZHPlaceholder, analysis.HeadlineZH)
	prompt = strings.ReplaceAll(prompt, analysisENPlaceholder, string(analysisEN))
	prompt = strings.ReplaceAll(prompt, analysisZHPlaceholder, string(analysisZH))

	return strings.ReplaceAll(prompt, sourceURLsPlaceholder, strings.Join(sourceURLs, "\n"))
}
