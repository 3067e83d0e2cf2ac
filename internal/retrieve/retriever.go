// Package retrieve answers similarity queries against the pgvector-indexed
// chunk table. The index is written by an external ingestion job; this
// package only reads.
package retrieve

import (
	"context"
	"strconv"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Mnemosyn1154/WVP-QNA/internal/db"
	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
)

// Embedder turns text into a vector in the same space the chunk table was
// indexed with.
type Embedder interface {
	EmbedContent(ctx context.Context, text string) ([]float32, error)
}

// Filters narrows retrieval to a company, document type, or publication
// window. Zero values match everything.
type Filters struct {
	Company string
	DocType string
	Since   time.Time
}

// Retriever runs nearest-neighbor search over the chunks table.
type Retriever struct {
	pool     db.Pool
	embedder Embedder
}

// New creates a Retriever over the given pool and embedder.
func New(pool db.Pool, embedder Embedder) *Retriever {
	return &Retriever{pool: pool, embedder: embedder}
}

// Retrieve embeds the query and returns the topK most similar chunks,
// ordered by similarity then recency. An empty result is a valid outcome,
// not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, f Filters, topK int) ([]model.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	vec, err := r.embedder.EmbedContent(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "retrieve: embed query")
	}

	sql := `SELECT content, source_id, source_type, title, url, published_at, 1 - (embedding <=> $1) AS score
		FROM chunks WHERE 1=1`
	args := []any{pgvector.NewVector(vec)}

	if f.Company != "" {
		args = append(args, f.Company)
		sql += ` AND company = $` + strconv.Itoa(len(args))
	}
	if f.DocType != "" {
		args = append(args, f.DocType)
		sql += ` AND doc_type = $` + strconv.Itoa(len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		sql += ` AND published_at >= $` + strconv.Itoa(len(args))
	}

	args = append(args, topK)
	sql += ` ORDER BY score DESC, published_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "retrieve: query chunks")
	}
	defer rows.Close()

	var chunks []model.RetrievedChunk
	for rows.Next() {
		var c model.RetrievedChunk
		var sourceType string
		if err := rows.Scan(&c.Content, &c.SourceID, &sourceType, &c.Title, &c.URL, &c.PublishedAt, &c.Score); err != nil {
			return nil, eris.Wrap(err, "retrieve: scan chunk")
		}
		c.SourceType = model.SourceType(sourceType)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "retrieve: iterate chunks")
	}

	zap.L().Debug("chunks retrieved",
		zap.String("company", f.Company),
		zap.Int("count", len(chunks)),
		zap.Int("top_k", topK),
	)

	return chunks, nil
}
