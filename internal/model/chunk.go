package model

import "time"

// SourceType distinguishes where a chunk or answer source came from.
type SourceType string

const (
	SourceFile SourceType = "file"
	SourceNews SourceType = "news"
)

// RetrievedChunk is a single vector-search hit: a snippet of indexed text
// with its origin and relevance score. Chunks are scoped to one request.
type RetrievedChunk struct {
	Content     string     `json:"content"`
	SourceID    string     `json:"source_id"`
	SourceType  SourceType `json:"source_type"`
	Title       string     `json:"title"`
	URL         string     `json:"url,omitempty"`
	Score       float64    `json:"score"`
	PublishedAt time.Time  `json:"published_at"`
}
