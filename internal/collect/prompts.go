package collect

const searchSystemPrompt = `You are an expert at searching for insurance industry innovation news and cases. You generate effective search queries to find relevant, verifiable information.

You must respond ONLY with valid JSON matching the specified schema.`

const generateQueriesPromptTemplate = `Generate search queries to find insurance innovation news and cases.

## Current Coverage Gaps
Based on our 2x3 matrix (product/marketing × property/health/life), we need to find cases in these areas:
%s

## Date Range
Focus on news from the past %d days.

## Requirements
- Queries should be specific enough to find relevant results
- Include queries in multiple languages (English, Chinese, Japanese, etc.)
- Mix of:
  - General innovation searches
  - Specific company/product searches
  - Region-specific searches
  - Technology-specific searches

## Output Schema
{
  "queries": [
    {
      "query": string,
      "language": string,
      "target_matrix_cell": {
        "innovation_type": "product" | "marketing",
        "insurance_line": "property" | "health" | "life"
      } | null,
      "region": string | null,
      "priority": "high" | "medium" | "low"
    }
  ]
}

Generate search queries:`

const webSearchPromptTemplate = `Search the web for recent news about: %q

Return the top 5 most relevant and recent results. Each result must have:
- A real, verifiable URL (not made up)
- Recent publication (within last 30 days preferred)
- Direct relevance to insurance industry innovation

Output JSON:
{
  "results": [
    {
      "title": "Article title",
      "url": "https://...",
      "snippet": "Brief description of the content"
    }
  ]
}

If you cannot find real, verifiable results, return an empty array.`
