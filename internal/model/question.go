package model

// Question is a single user question submitted to the pipeline.
// It is immutable once submitted.
type Question struct {
	Text    string           `json:"text"`
	Context *QuestionContext `json:"context,omitempty"`
}

// QuestionContext narrows which documents a question is about.
// All fields are optional; empty values mean "no constraint".
type QuestionContext struct {
	Companies []string `json:"companies,omitempty"`
	Year      int      `json:"year,omitempty"`
	DocType   string   `json:"doc_type,omitempty"`
}

// Companies returns the context companies, or nil when no context is set.
func (q Question) Companies() []string {
	if q.Context == nil {
		return nil
	}
	return q.Context.Companies
}
