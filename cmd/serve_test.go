package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mnemosyn1154/WVP-QNA/internal/assemble"
	"github.com/Mnemosyn1154/WVP-QNA/internal/classify"
	"github.com/Mnemosyn1154/WVP-QNA/internal/extract"
	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/pipeline"
	"github.com/Mnemosyn1154/WVP-QNA/internal/retrieve"
	"github.com/Mnemosyn1154/WVP-QNA/internal/router"
	"github.com/Mnemosyn1154/WVP-QNA/internal/store"
	"github.com/Mnemosyn1154/WVP-QNA/internal/usage"
)

type stubStore struct {
	exchanges []model.Exchange
}

func (s *stubStore) SaveExchange(_ context.Context, ex model.Exchange) error {
	s.exchanges = append(s.exchanges, ex)
	return nil
}

func (s *stubStore) ListExchanges(context.Context, store.ExchangeFilter) ([]model.Exchange, error) {
	return s.exchanges, nil
}

func (s *stubStore) Migrate(context.Context) error { return nil }
func (s *stubStore) Close() error                  { return nil }

type stubDocs struct{}

func (stubDocs) Find(string, int, string) []model.CandidateDocument { return nil }
func (stubDocs) ReadPDF(model.CandidateDocument) ([]byte, error)    { return nil, nil }
func (stubDocs) ExtractCompanies(string) []string                   { return nil }
func (stubDocs) ExtractYear(string) int                             { return 0 }

type stubRetriever struct{}

func (stubRetriever) Retrieve(context.Context, string, retrieve.Filters, int) ([]model.RetrievedChunk, error) {
	return nil, nil
}

type stubRouter struct{}

func (stubRouter) Route(context.Context, router.Request) (*router.Result, error) {
	return &router.Result{Text: "답변", Tier: "simple"}, nil
}

func newTestEnv() *appEnv {
	st := &stubStore{}
	ledger := usage.NewLedger(usage.DefaultRates(), map[string]float64{"simple": 1, "complex": 5})
	p := pipeline.New(
		stubDocs{},
		stubRetriever{},
		classify.New(nil, nil),
		extract.New(0),
		stubRouter{},
		assemble.New(st),
		pipeline.Options{},
	)
	return &appEnv{Store: st, Ledger: ledger, Pipeline: p}
}

func TestServeHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newAPIRouter(newTestEnv()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeChat_InvalidBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newAPIRouter(newTestEnv()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeChat_MissingQuestion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newAPIRouter(newTestEnv()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeChat_NoMatchReturnsInsufficientInfo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newAPIRouter(newTestEnv()))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat", "application/json",
		strings.NewReader(`{"question":"없는회사 매출은?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Answer  string         `json:"answer"`
		Sources []model.Source `json:"sources"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Answer, "관련 문서를 찾을 수 없습니다")
	assert.Empty(t, body.Sources)
}

func TestServeHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.Store.(*stubStore).exchanges = []model.Exchange{
		{ID: "e1", Question: "질문", Answer: "답변", Tier: "simple", Reason: model.ReasonDefault},
	}
	srv := httptest.NewServer(newAPIRouter(env))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/chat/history?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Exchanges []model.Exchange `json:"exchanges"`
		Count     int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "e1", body.Exchanges[0].ID)
}

func TestServeClearCache(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(newAPIRouter(newTestEnv()))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/chat/cache", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 0, body["cleared"])
}

func TestServeUsage(t *testing.T) {
	t.Parallel()

	env := newTestEnv()
	env.Ledger.Record("simple", "gemini-2.0-flash", model.TokenUsage{InputTokens: 1000, OutputTokens: 100})
	srv := httptest.NewServer(newAPIRouter(env))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/usage")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Tiers map[string]struct {
			Calls        int     `json:"calls"`
			Tokens       int     `json:"tokens"`
			CostUSD      float64 `json:"cost_usd"`
			RemainingUSD float64 `json:"remaining_usd"`
		} `json:"tiers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body.Tiers, "simple")
	assert.Equal(t, 1, body.Tiers["simple"].Calls)
	assert.Equal(t, 1100, body.Tiers["simple"].Tokens)
	assert.Greater(t, body.Tiers["simple"].RemainingUSD, 0.0)
}
