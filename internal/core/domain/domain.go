// Package domain holds the core entities of the case pipeline: collected
// raw items, their screening results, analyzed cases, configured sources
// and pipeline run records.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEnumValue indicates a classification value outside the closed enumeration.
var ErrUnknownEnumValue = errors.New("unknown enumeration value")

// InnovationType is one axis of the coverage matrix.
type InnovationType string

// InsuranceLine is the other axis of the coverage matrix.
type InsuranceLine string

// Sentiment marks a case as an innovation success or a failure/warning story.
type Sentiment string

const (
	InnovationProduct   InnovationType = "product"
	InnovationMarketing InnovationType = "marketing"

	LineProperty InsuranceLine = "property"
	LineHealth   InsuranceLine = "health"
	LineLife     InsuranceLine = "life"

	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
)

// ParseInnovationType validates a raw classification value.
func ParseInnovationType(s string) (InnovationType, error) {
	switch InnovationType(s) {
	case InnovationProduct, InnovationMarketing:
		return InnovationType(s), nil
	default:
		return "", fmt.Errorf("%w: innovation_type %q", ErrUnknownEnumValue, s)
	}
}

// ParseInsuranceLine validates a raw classification value.
func ParseInsuranceLine(s string) (InsuranceLine, error) {
	switch InsuranceLine(s) {
	case LineProperty, LineHealth, LineLife:
		return InsuranceLine(s), nil
	default:
		return "", fmt.Errorf("%w: insurance_line %q", ErrUnknownEnumValue, s)
	}
}

// ParseSentiment validates a raw classification value.
func ParseSentiment(s string) (Sentiment, error) {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative:
		return Sentiment(s), nil
	default:
		return "", fmt.Errorf("%w: sentiment %q", ErrUnknownEnumValue, s)
	}
}

// ScreeningStatus is the lifecycle state of a RawItem.
type ScreeningStatus string

const (
	ScreeningPending  ScreeningStatus = "pending"
	ScreeningPassed   ScreeningStatus = "passed"
	ScreeningRejected ScreeningStatus = "rejected"
)

// CaseStatus is the lifecycle state of a Case.
type CaseStatus string

const (
	CasePendingSupplement CaseStatus = "pending_supplement"
	CaseReady             CaseStatus = "ready"
	CasePublished         CaseStatus = "published"
	CaseRejected          CaseStatus = "rejected"
)

// SourceType identifies the collector responsible for a source.
type SourceType string

const (
	SourceRSS      SourceType = "rss"
	SourceWebsite  SourceType = "website"
	SourceAISearch SourceType = "ai_search"
)

// SourceStatus is the polling state of a source.
type SourceStatus string

const (
	SourceActive    SourceStatus = "active"
	SourceProbation SourceStatus = "probation"
	SourceDisabled  SourceStatus = "disabled"
)

// Source is a configured content origin.
type Source struct {
	ID             string
	Name           string
	URL            string
	Type           SourceType
	Language       string
	Region         string
	QualityScore   float64
	CheckFrequency string // human interval expression, e.g. "4 hours"
	LastCheckedAt  *time.Time
	Status         SourceStatus
	Config         map[string]any // free-form scraping configuration
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Classification is the gate-3 output of screening.
type Classification struct {
	InnovationType InnovationType `json:"innovation_type"`
	InsuranceLine  InsuranceLine  `json:"insurance_line"`
	Sentiment      Sentiment      `json:"sentiment"`
}

// ScreeningResult records the three-gate decision for a raw item.
// Classification is non-nil iff both gates passed.
type ScreeningResult struct {
	Gate1Relevance  bool            `json:"gate1_relevance"`
	Gate1Score      float64         `json:"gate1_score"`
	Gate1Reason     string          `json:"gate1_reason,omitempty"`
	Gate2Novelty    bool            `json:"gate2_novelty"`
	Gate2Score      float64         `json:"gate2_score"`
	Gate2Reason     string          `json:"gate2_reason,omitempty"`
	Classification  *Classification `json:"gate3_classification"`
	PriorityScore   float64         `json:"priority_score"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
}

// RawItem is a collected candidate document awaiting or past screening.
type RawItem struct {
	ID              string
	SourceID        string
	SourceURL       string
	Title           string
	Content         string
	Language        string
	ContentHash     string
	CollectedAt     time.Time
	ScreeningStatus ScreeningStatus
	ScreeningResult *ScreeningResult
	CreatedAt       time.Time
}

// CaseAnalysis is the five-layer structured breakdown in one language.
// Layer semantics depend on sentiment: positive cases read
// what/how/why/results/insights, negative cases read
// what-happened/where/root-cause/consequences/lessons.
type CaseAnalysis struct {
	Layer1 string `json:"layer1"`
	Layer2 string `json:"layer2"`
	Layer3 string `json:"layer3"`
	Layer4 string `json:"layer4"`
	Layer5 string `json:"layer5"`
}

// Case is an analyzed, publishable unit derived from exactly one RawItem.
type Case struct {
	ID               string
	RawItemID        string
	InnovationType   InnovationType
	InsuranceLine    InsuranceLine
	Sentiment        Sentiment
	HeadlineEN       string
	HeadlineZH       string
	AnalysisEN       CaseAnalysis
	AnalysisZH       CaseAnalysis
	SourceURLs       []string
	CompanyNames     []string
	Region           string
	Status           CaseStatus
	SupplementRounds int
	QualityScore     *float64
	PublishedAt      *time.Time
	Upvotes          int
	Downvotes        int
	ViewCount        int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Cell returns the coverage matrix cell this case falls into.
func (c *Case) Cell() MatrixCell {
	return MatrixCell{InnovationType: c.InnovationType, InsuranceLine: c.InsuranceLine}
}

// RunStatus is the state of a pipeline run record.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunStats are the aggregate counts a stage reports at completion.
type RunStats struct {
	Processed int
	Succeeded int
	Failed    int
}

// RunError is one entry in a pipeline run's error log.
type RunError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	ItemID    string    `json:"item_id,omitempty"`
}

// PipelineRun is the observability record for one stage invocation.
type PipelineRun struct {
	ID           string
	PipelineName string
	Status       RunStatus
	StartedAt    time.Time
	CompletedAt  *time.Time
	Stats        RunStats
	ErrorLog     []RunError
}
