// Package router walks an ordered list of provider tiers and commits to the
// first one that can answer the question within budget and input quality
// constraints. Every attempt, including skips, leaves an immutable decision
// in the routing trail.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/resilience"
	"github.com/Mnemosyn1154/WVP-QNA/internal/usage"
)

// ErrAllTiersFailed is returned when no tier produced an answer. The message
// deliberately carries no provider internals; the trail holds the details.
var ErrAllTiersFailed = eris.New("router: all provider tiers failed")

// Caller executes one provider call for a tier.
type Caller interface {
	Call(ctx context.Context, in CallInput) (*CallResult, error)
}

// CallInput is everything a tier needs to answer.
type CallInput struct {
	Question  model.Question
	Chunks    []model.RetrievedChunk
	Documents []Document
}

// Document pairs a candidate document with its raw bytes and the extraction
// outcome. PDF-capable tiers read the bytes; text tiers read the extraction.
type Document struct {
	Candidate model.CandidateDocument
	PDF       []byte
	Extracted model.ExtractedText
}

// CallResult is a successful provider answer.
type CallResult struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Tier is one rung of the cascade.
type Tier struct {
	Name       string
	Model      string
	AcceptsPDF bool
	Caller     Caller
}

// Request is one routing job.
type Request struct {
	Question  model.Question
	Signal    model.ClassificationSignal
	Chunks    []model.RetrievedChunk
	Documents []Document
}

// Result is the outcome of routing. Trail is populated even when routing
// fails, so callers can report why.
type Result struct {
	Text    string
	Model   string
	Tier    string
	Usage   model.TokenUsage
	CostUSD float64
	Trail   []model.RoutingDecision
}

// Router holds the tier list and the shared usage ledger.
type Router struct {
	tiers       []Tier
	ledger      *usage.Ledger
	retry       resilience.RetryConfig
	callTimeout time.Duration
}

// New creates a Router. callTimeout bounds each individual provider call;
// the request deadline on ctx still bounds the whole cascade.
func New(tiers []Tier, ledger *usage.Ledger, callTimeout time.Duration) *Router {
	return &Router{
		tiers:       tiers,
		ledger:      ledger,
		retry:       resilience.DefaultRetryConfig(),
		callTimeout: callTimeout,
	}
}

// WithRetry overrides the per-tier retry policy.
func (r *Router) WithRetry(cfg resilience.RetryConfig) *Router {
	r.retry = cfg
	return r
}

// Route walks the tiers from the classification's starting point. Each tier
// is gated on remaining budget and, for text-only tiers, on every document
// having usable extracted text. A tier that is skipped or fails appends a
// decision and hands off to the next; success records usage and returns.
// When nothing remains the typed ErrAllTiersFailed comes back alongside the
// trail that explains the exhaustion.
func (r *Router) Route(ctx context.Context, req Request) (*Result, error) {
	start := 0
	if req.Signal.NeedsComplexPath {
		start = r.firstPDFTier()
	}

	trail := make([]model.RoutingDecision, 0, len(r.tiers))
	reason := req.Signal.Reason
	fallbackFrom := ""
	var lastErr error

	for i := start; i < len(r.tiers); i++ {
		tier := r.tiers[i]

		if r.ledger.Remaining(tier.Name) <= 0 {
			trail = append(trail, model.RoutingDecision{
				Tier:         tier.Name,
				Model:        tier.Model,
				Reason:       model.ReasonBudgetExceeded,
				FallbackFrom: fallbackFrom,
			})
			zap.L().Warn("tier skipped: daily budget exhausted",
				zap.String("tier", tier.Name),
			)
			fallbackFrom = tier.Name
			reason = model.ReasonBudgetExceeded
			continue
		}

		if !tier.AcceptsPDF {
			if dq, bad := disqualifyingQuality(req.Documents); bad {
				trail = append(trail, model.RoutingDecision{
					Tier:         tier.Name,
					Model:        tier.Model,
					Reason:       dq,
					FallbackFrom: fallbackFrom,
				})
				zap.L().Info("tier skipped: document text not usable",
					zap.String("tier", tier.Name),
					zap.String("reason", string(dq)),
				)
				fallbackFrom = tier.Name
				reason = dq
				continue
			}
		}

		res, err := r.call(ctx, tier, req)
		if err != nil {
			errReason := model.ReasonProviderError
			if errors.Is(err, context.DeadlineExceeded) {
				errReason = model.ReasonTimeout
			}
			trail = append(trail, model.RoutingDecision{
				Tier:         tier.Name,
				Model:        tier.Model,
				Reason:       errReason,
				FallbackFrom: fallbackFrom,
			})
			zap.L().Warn("tier call failed",
				zap.String("tier", tier.Name),
				zap.String("reason", string(errReason)),
				zap.Error(err),
			)
			lastErr = err
			fallbackFrom = tier.Name
			reason = errReason

			// The request deadline is gone; later tiers cannot do better.
			if ctx.Err() != nil {
				break
			}
			continue
		}

		cost := r.ledger.Record(tier.Name, res.Model, res.Usage)
		trail = append(trail, model.RoutingDecision{
			Tier:         tier.Name,
			Model:        res.Model,
			Reason:       reason,
			FallbackFrom: fallbackFrom,
			Succeeded:    true,
			Usage:        res.Usage,
		})
		zap.L().Info("tier answered",
			zap.String("tier", tier.Name),
			zap.String("model", res.Model),
			zap.String("reason", string(reason)),
			zap.Float64("cost_usd", cost),
		)
		return &Result{
			Text:    res.Text,
			Model:   res.Model,
			Tier:    tier.Name,
			Usage:   res.Usage,
			CostUSD: cost,
			Trail:   trail,
		}, nil
	}

	if lastErr != nil {
		zap.L().Error("routing exhausted after provider failures", zap.Error(lastErr))
	}
	return &Result{Trail: trail}, eris.Wrap(ErrAllTiersFailed, string(reason))
}

func (r *Router) call(ctx context.Context, tier Tier, req Request) (*CallResult, error) {
	cfg := r.retry
	cfg.OnRetry = resilience.RetryLogger("router", tier.Name)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*CallResult, error) {
		callCtx := ctx
		if r.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.callTimeout)
			defer cancel()
		}
		return tier.Caller.Call(callCtx, CallInput{
			Question:  req.Question,
			Chunks:    req.Chunks,
			Documents: req.Documents,
		})
	})
}

// firstPDFTier locates where the complex path starts.
func (r *Router) firstPDFTier() int {
	for i, t := range r.tiers {
		if t.AcceptsPDF {
			return i
		}
	}
	return 0
}

// disqualifyingQuality reports whether any document lacks usable text.
// Extraction failures outrank scans: they indicate a parsing problem rather
// than an expected image-only filing.
func disqualifyingQuality(docs []Document) (model.ReasonCode, bool) {
	scanned := false
	for _, d := range docs {
		switch d.Extracted.Quality {
		case model.QualityExtractionFailed:
			return model.ReasonExtractionFailure, true
		case model.QualityScanned:
			scanned = true
		}
	}
	if scanned {
		return model.ReasonScannedDocument, true
	}
	return "", false
}
