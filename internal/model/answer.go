package model

import "time"

// Source is a single cited origin for an answer. File sources point at a
// document download path; news sources point at the article URL.
type Source struct {
	Type  SourceType `json:"type"`
	Name  string     `json:"name,omitempty"`
	Title string     `json:"title,omitempty"`
	URL   string     `json:"url"`
}

// Answer is the final response for one question. Created once per request
// and never mutated afterward.
type Answer struct {
	Text              string            `json:"answer"`
	Sources           []Source          `json:"sources"`
	Charts            []ChartPayload    `json:"charts,omitempty"`
	ProcessingSeconds float64           `json:"processing_time"`
	Metadata          *AnswerMetadata   `json:"metadata,omitempty"`
	Routing           []RoutingDecision `json:"-"`
}

// ChartPayload carries optional structured chart data alongside an answer.
type ChartPayload struct {
	Type   string               `json:"type"`
	Title  string               `json:"title"`
	Labels []string             `json:"labels"`
	Series map[string][]float64 `json:"series"`
}

// AnswerMetadata reports which model produced the answer and what it cost.
type AnswerMetadata struct {
	ModelUsed     string     `json:"model_used"`
	TokenUsage    TokenUsage `json:"token_usage"`
	EstimatedCost float64    `json:"estimated_cost"`
}

// Exchange is one completed question/answer pair as persisted to the
// history log. Append-only from the pipeline's perspective.
type Exchange struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Sources   []Source   `json:"sources"`
	Reason    ReasonCode `json:"reason"`
	Tier      string     `json:"tier"`
	CreatedAt time.Time  `json:"created_at"`
}
