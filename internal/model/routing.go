package model

// ReasonCode explains why a routing transition happened. Every
// RoutingDecision carries exactly one reason.
type ReasonCode string

const (
	// ReasonDefault is the cheap-path default: nothing forced an escalation.
	ReasonDefault ReasonCode = "default"
	// ReasonComparisonKeyword fires when the question text contains a
	// configured comparison marker (e.g. "비교").
	ReasonComparisonKeyword ReasonCode = "comparison_keyword"
	// ReasonScannedCompany fires when a candidate company is on the
	// configured always-escalate list.
	ReasonScannedCompany ReasonCode = "scanned_document_company"
	// ReasonScannedDocument fires when extraction classified a document
	// as scanned after the initial classification.
	ReasonScannedDocument ReasonCode = "scanned_document"
	// ReasonExtractionFailure fires when PDF parsing failed outright.
	ReasonExtractionFailure ReasonCode = "extraction_failure"
	// ReasonProviderError fires when a provider call failed.
	ReasonProviderError ReasonCode = "provider_error"
	// ReasonTimeout fires when a provider call exceeded its deadline.
	ReasonTimeout ReasonCode = "timeout"
	// ReasonBudgetExceeded fires when a tier's daily cost ceiling is spent.
	ReasonBudgetExceeded ReasonCode = "budget_exceeded"
)

// ClassificationSignal is the classifier's advisory verdict: the initial
// routing bias before extraction quality is known.
type ClassificationSignal struct {
	NeedsComplexPath bool       `json:"needs_complex_path"`
	Reason           ReasonCode `json:"reason"`
}

// RoutingDecision records one provider attempt: which tier was tried,
// why, and what it cost. Decisions are immutable; a fallback appends a
// new decision rather than mutating the previous one.
type RoutingDecision struct {
	Tier         string     `json:"tier"`
	Model        string     `json:"model"`
	Reason       ReasonCode `json:"reason"`
	FallbackFrom string     `json:"fallback_from,omitempty"`
	Succeeded    bool       `json:"succeeded"`
	Usage        TokenUsage `json:"usage"`
}

// TokenUsage tallies token consumption for a single provider call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns combined input and output tokens.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add accumulates another usage record into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
