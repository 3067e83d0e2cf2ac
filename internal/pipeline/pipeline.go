// Package pipeline orchestrates one question end to end: resolve which
// companies and documents the question is about, extract document text,
// retrieve indexed context, route to a provider tier, and assemble the
// sourced answer.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Mnemosyn1154/WVP-QNA/internal/assemble"
	"github.com/Mnemosyn1154/WVP-QNA/internal/classify"
	"github.com/Mnemosyn1154/WVP-QNA/internal/extract"
	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/retrieve"
	"github.com/Mnemosyn1154/WVP-QNA/internal/router"
)

// DocumentStore resolves questions to candidate documents and serves their
// raw bytes.
type DocumentStore interface {
	Find(company string, year int, docType string) []model.CandidateDocument
	ReadPDF(doc model.CandidateDocument) ([]byte, error)
	ExtractCompanies(text string) []string
	ExtractYear(text string) int
}

// Retriever searches the vector index for question-relevant chunks.
type Retriever interface {
	Retrieve(ctx context.Context, query string, f retrieve.Filters, topK int) ([]model.RetrievedChunk, error)
}

// Router cascades the request across provider tiers.
type Router interface {
	Route(ctx context.Context, req router.Request) (*router.Result, error)
}

// Options tunes request handling.
type Options struct {
	RequestTimeout time.Duration
	ExtractWorkers int
	CacheSize      int
	TopK           int
}

// Pipeline wires the stages together. Safe for concurrent use.
type Pipeline struct {
	docs       DocumentStore
	retriever  Retriever
	classifier *classify.Classifier
	extractor  *extract.Extractor
	router     Router
	assembler  *assemble.Assembler
	cache      *answerCache
	opts       Options
}

// New creates a Pipeline.
func New(docs DocumentStore, retriever Retriever, classifier *classify.Classifier, extractor *extract.Extractor, rt Router, assembler *assemble.Assembler, opts Options) *Pipeline {
	if opts.ExtractWorkers <= 0 {
		opts.ExtractWorkers = 2
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &Pipeline{
		docs:       docs,
		retriever:  retriever,
		classifier: classifier,
		extractor:  extractor,
		router:     rt,
		assembler:  assembler,
		cache:      newAnswerCache(opts.CacheSize),
		opts:       opts,
	}
}

// Ask answers one question. A repeated question with identical context is
// served from the in-process cache without touching any provider. When
// neither documents nor indexed chunks match, the insufficient-information
// answer comes back with a nil error; only routing exhaustion returns an
// error.
func (p *Pipeline) Ask(ctx context.Context, q model.Question) (model.Answer, error) {
	started := time.Now()

	if p.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RequestTimeout)
		defer cancel()
	}

	key := cacheKey(q)
	if ans, ok := p.cache.get(key); ok {
		zap.L().Debug("answer served from cache", zap.String("key", key))
		return ans, nil
	}

	companies, year, docType := p.resolveContext(q)

	var candidates []model.CandidateDocument
	for _, company := range companies {
		candidates = append(candidates, p.docs.Find(company, year, docType)...)
	}

	docs := p.loadDocuments(ctx, candidates)
	chunks := p.retrieveChunks(ctx, q, companies, docType, year)

	if len(docs) == 0 && len(chunks) == 0 {
		zap.L().Info("no documents or chunks matched",
			zap.Strings("companies", companies),
			zap.Int("year", year),
		)
		return p.assembler.AssembleUnanswered(ctx, q, started), nil
	}

	signal := p.classifier.Classify(q, candidates)

	res, err := p.router.Route(ctx, router.Request{
		Question:  q,
		Signal:    signal,
		Chunks:    chunks,
		Documents: docs,
	})
	if err != nil {
		return model.Answer{Routing: res.Trail}, err
	}

	ans := p.assembler.Assemble(ctx, q, res, chunks, docs, started)
	p.cache.put(key, ans)
	return ans, nil
}

// ClearCache drops all cached answers and reports how many were evicted.
func (p *Pipeline) ClearCache() int {
	n := p.cache.len()
	p.cache.clear()
	zap.L().Info("answer cache cleared", zap.Int("evicted", n))
	return n
}

// resolveContext fills in companies, year, and document type from the
// explicit question context, falling back to extraction from the question
// text for anything missing.
func (p *Pipeline) resolveContext(q model.Question) (companies []string, year int, docType string) {
	if q.Context != nil {
		companies = q.Context.Companies
		year = q.Context.Year
		docType = q.Context.DocType
	}
	if len(companies) == 0 {
		companies = p.docs.ExtractCompanies(q.Text)
	}
	if year == 0 {
		year = p.docs.ExtractYear(q.Text)
	}
	return companies, year, docType
}

// loadDocuments reads and extracts candidate PDFs concurrently. A document
// whose bytes cannot be read is kept with a failed-extraction marker so the
// router still sees it; losing it silently would let a text tier answer
// from partial evidence.
func (p *Pipeline) loadDocuments(ctx context.Context, candidates []model.CandidateDocument) []router.Document {
	if len(candidates) == 0 {
		return nil
	}

	docs := make([]router.Document, len(candidates))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.ExtractWorkers)

	for i, cand := range candidates {
		g.Go(func() error {
			pdfBytes, err := p.docs.ReadPDF(cand)
			if err != nil {
				zap.L().Warn("document read failed",
					zap.String("document_id", cand.ID),
					zap.Error(err),
				)
				docs[i] = router.Document{
					Candidate: cand,
					Extracted: model.ExtractedText{
						DocumentID: cand.ID,
						Quality:    model.QualityExtractionFailed,
					},
				}
				return nil
			}
			docs[i] = router.Document{
				Candidate: cand,
				PDF:       pdfBytes,
				Extracted: p.extractor.Extract(cand, pdfBytes),
			}
			return nil
		})
	}
	// Workers never return errors; failures degrade to extraction markers.
	_ = g.Wait()

	return docs
}

// retrieveChunks queries the vector index. Retrieval trouble degrades the
// answer's context rather than failing the request.
func (p *Pipeline) retrieveChunks(ctx context.Context, q model.Question, companies []string, docType string, year int) []model.RetrievedChunk {
	f := retrieve.Filters{DocType: docType}
	if len(companies) > 0 {
		f.Company = companies[0]
	}
	if year > 0 {
		f.Since = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	chunks, err := p.retriever.Retrieve(ctx, q.Text, f, p.opts.TopK)
	if err != nil {
		zap.L().Warn("chunk retrieval failed", zap.Error(err))
		return nil
	}
	return chunks
}
