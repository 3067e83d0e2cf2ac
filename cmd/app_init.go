package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Mnemosyn1154/WVP-QNA/internal/assemble"
	"github.com/Mnemosyn1154/WVP-QNA/internal/classify"
	"github.com/Mnemosyn1154/WVP-QNA/internal/docstore"
	"github.com/Mnemosyn1154/WVP-QNA/internal/extract"
	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/pipeline"
	"github.com/Mnemosyn1154/WVP-QNA/internal/retrieve"
	"github.com/Mnemosyn1154/WVP-QNA/internal/router"
	"github.com/Mnemosyn1154/WVP-QNA/internal/store"
	"github.com/Mnemosyn1154/WVP-QNA/internal/usage"
	anthropicpkg "github.com/Mnemosyn1154/WVP-QNA/pkg/anthropic"
	"github.com/Mnemosyn1154/WVP-QNA/pkg/gemini"
)

// appEnv holds the initialized store, ledger, and pipeline shared by the
// serve/ask commands.
type appEnv struct {
	Store    store.Store
	Ledger   *usage.Ledger
	Pipeline *pipeline.Pipeline

	retrieverPool *pgxpool.Pool // owned only when separate from the store
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.retrieverPool != nil {
		e.retrieverPool.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp sets up the store, API clients, ledger, and pipeline. Callers
// should defer env.Close().
func initApp(ctx context.Context) (*appEnv, error) {
	if cfg.Gemini.Key == "" {
		return nil, eris.New("WVP_GEMINI_KEY is required")
	}
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("WVP_ANTHROPIC_KEY is required")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	docs, err := docstore.Load(cfg.DocStore.ManifestPath)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load document manifest")
	}

	geminiClient := gemini.NewClient(cfg.Gemini.Key,
		gemini.WithBaseURL(cfg.Gemini.BaseURL),
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithEmbeddingModel(cfg.Gemini.EmbeddingModel),
		gemini.WithRateLimit(cfg.Gemini.RequestsPerSec),
	)
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	env := &appEnv{Store: st}

	retriever, err := initRetriever(ctx, env, st, geminiClient)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	env.Ledger = usage.NewLedger(usage.DefaultRates(), map[string]float64{
		"simple":  cfg.Budget.SimpleDailyUSD,
		"complex": cfg.Budget.ComplexDailyUSD,
	})

	tiers := []router.Tier{
		{
			Name:   "simple",
			Model:  cfg.Gemini.Model,
			Caller: pipeline.NewGeminiCaller(geminiClient, cfg.Gemini.Model),
		},
		{
			Name:       "complex",
			Model:      cfg.Anthropic.Model,
			AcceptsPDF: true,
			Caller:     pipeline.NewClaudeCaller(anthropicClient, cfg.Anthropic.Model),
		},
	}
	rt := router.New(tiers, env.Ledger, cfg.Pipeline.CallTimeout())

	env.Pipeline = pipeline.New(
		docs,
		retriever,
		classify.New(cfg.Routing.ComparisonKeywords, cfg.Routing.EscalationCompanies),
		extract.New(cfg.Routing.MinTextChars),
		rt,
		assemble.New(st),
		pipeline.Options{
			RequestTimeout: cfg.Pipeline.RequestTimeout(),
			ExtractWorkers: cfg.Pipeline.ExtractWorkers,
			CacheSize:      cfg.Pipeline.CacheSize,
			TopK:           cfg.Retriever.TopK,
		},
	)

	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		return st, nil
	case "sqlite", "":
		st, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initRetriever connects the vector index. A dedicated database URL wins;
// otherwise a postgres history store shares its pool. Without either the
// index is disabled and answers lean on documents alone.
func initRetriever(ctx context.Context, env *appEnv, st store.Store, embedder retrieve.Embedder) (pipeline.Retriever, error) {
	if cfg.Retriever.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.Retriever.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init retriever pool")
		}
		env.retrieverPool = pool
		return retrieve.New(pool, embedder), nil
	}

	if ps, ok := st.(*store.PostgresStore); ok {
		zap.L().Info("retriever using shared database pool")
		return retrieve.New(ps.Pool(), embedder), nil
	}

	zap.L().Warn("no vector index configured, chunk retrieval disabled")
	return noRetriever{}, nil
}

// noRetriever satisfies the pipeline when no vector index is configured.
type noRetriever struct{}

func (noRetriever) Retrieve(context.Context, string, retrieve.Filters, int) ([]model.RetrievedChunk, error) {
	return nil, nil
}
