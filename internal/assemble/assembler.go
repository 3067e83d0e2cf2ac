// Package assemble turns a routed provider response into the final sourced
// answer and persists the exchange to the history log.
package assemble

import (
	"context"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/router"
	"github.com/Mnemosyn1154/WVP-QNA/internal/store"
)

// insufficientInfoAnswer is returned when neither documents nor indexed
// chunks match the question.
const insufficientInfoAnswer = "죄송합니다. 해당 질문에 대한 관련 문서를 찾을 수 없습니다. 회사명과 연도를 구체적으로 명시해주세요."

// Assembler builds answers and writes history. History writes are
// best-effort: a storage failure is logged and never surfaces to the user
// who already has their answer.
type Assembler struct {
	store store.Store
}

// New creates an Assembler over the given history store.
func New(st store.Store) *Assembler {
	return &Assembler{store: st}
}

// Assemble builds the Answer for a successful routing result. Sources are
// deduplicated and drawn only from the analyzed documents and retrieved
// chunks; nothing else can appear in the citation list.
func (a *Assembler) Assemble(ctx context.Context, question model.Question, res *router.Result, chunks []model.RetrievedChunk, docs []router.Document, startedAt time.Time) model.Answer {
	ans := model.Answer{
		Text:              res.Text,
		Sources:           buildSources(docs, chunks),
		ProcessingSeconds: time.Since(startedAt).Seconds(),
		Metadata: &model.AnswerMetadata{
			ModelUsed:     res.Model,
			TokenUsage:    res.Usage,
			EstimatedCost: res.CostUSD,
		},
		Routing: res.Trail,
	}

	a.persist(ctx, question, ans, res)
	return ans
}

// AssembleUnanswered builds the insufficient-information answer used when
// no document or chunk matched. No provider was called, so there is no
// metadata and no source list; the exchange is still logged.
func (a *Assembler) AssembleUnanswered(ctx context.Context, question model.Question, startedAt time.Time) model.Answer {
	ans := model.Answer{
		Text:              insufficientInfoAnswer,
		Sources:           []model.Source{},
		ProcessingSeconds: time.Since(startedAt).Seconds(),
	}
	a.persist(ctx, question, ans, &router.Result{})
	return ans
}

func (a *Assembler) persist(ctx context.Context, question model.Question, ans model.Answer, res *router.Result) {
	reason := model.ReasonDefault
	if n := len(res.Trail); n > 0 {
		reason = res.Trail[n-1].Reason
	}

	ex := model.Exchange{
		ID:        uuid.New().String(),
		Question:  question.Text,
		Answer:    ans.Text,
		Sources:   ans.Sources,
		Reason:    reason,
		Tier:      res.Tier,
		CreatedAt: time.Now().UTC(),
	}

	if err := a.store.SaveExchange(ctx, ex); err != nil {
		zap.L().Error("history persistence failed",
			zap.String("exchange_id", ex.ID),
			zap.Error(err),
		)
	}
}

// buildSources merges document and chunk citations, file entries first,
// deduplicated by URL.
func buildSources(docs []router.Document, chunks []model.RetrievedChunk) []model.Source {
	var out []model.Source
	seen := make(map[string]bool)

	add := func(s model.Source) {
		key := string(s.Type) + "|" + s.URL + "|" + s.Name + s.Title
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, d := range docs {
		add(model.Source{
			Type: model.SourceFile,
			Name: d.Candidate.DisplayName(),
			URL:  "/files/" + path.Clean(d.Candidate.FilePath),
		})
	}

	for _, c := range chunks {
		switch c.SourceType {
		case model.SourceNews:
			add(model.Source{Type: model.SourceNews, Title: c.Title, URL: c.URL})
		default:
			add(model.Source{Type: model.SourceFile, Name: c.Title, URL: c.URL})
		}
	}

	return out
}
