package assemble

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/router"
	"github.com/Mnemosyn1154/WVP-QNA/internal/store"
)

type memStore struct {
	saved   []model.Exchange
	saveErr error
}

func (m *memStore) SaveExchange(_ context.Context, ex model.Exchange) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, ex)
	return nil
}

func (m *memStore) ListExchanges(context.Context, store.ExchangeFilter) ([]model.Exchange, error) {
	return m.saved, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func routedResult() *router.Result {
	return &router.Result{
		Text:    "마인이스의 2024년 매출은 전년 대비 30% 성장했습니다.",
		Model:   "cheap-model",
		Tier:    "simple",
		Usage:   model.TokenUsage{InputTokens: 120, OutputTokens: 40},
		CostUSD: 0.0002,
		Trail: []model.RoutingDecision{
			{Tier: "simple", Model: "cheap-model", Reason: model.ReasonDefault, Succeeded: true},
		},
	}
}

func TestAssemble(t *testing.T) {
	st := &memStore{}
	a := New(st)

	docs := []router.Document{{
		Candidate: model.CandidateDocument{
			ID: "d1", Company: "마인이스", DocType: "재무제표", Year: 2024,
			FilePath: "마인이스/2024/마인이스_2024_재무제표.pdf",
		},
	}}
	chunks := []model.RetrievedChunk{
		{SourceType: model.SourceNews, SourceID: "n1", Title: "마인이스 성장 전망", URL: "https://news.example/1"},
	}

	started := time.Now().Add(-200 * time.Millisecond)
	ans := a.Assemble(context.Background(), model.Question{Text: "마인이스 2024년 매출은?"}, routedResult(), chunks, docs, started)

	assert.Equal(t, "마인이스의 2024년 매출은 전년 대비 30% 성장했습니다.", ans.Text)
	assert.GreaterOrEqual(t, ans.ProcessingSeconds, 0.2)

	require.Len(t, ans.Sources, 2)
	assert.Equal(t, model.SourceFile, ans.Sources[0].Type)
	assert.Equal(t, "마인이스 2024년 재무제표", ans.Sources[0].Name)
	assert.Equal(t, model.SourceNews, ans.Sources[1].Type)
	assert.Equal(t, "https://news.example/1", ans.Sources[1].URL)

	require.NotNil(t, ans.Metadata)
	assert.Equal(t, "cheap-model", ans.Metadata.ModelUsed)
	assert.Equal(t, 160, ans.Metadata.TokenUsage.Total())
	assert.InDelta(t, 0.0002, ans.Metadata.EstimatedCost, 1e-9)

	// Exchange persisted.
	require.Len(t, st.saved, 1)
	assert.Equal(t, "마인이스 2024년 매출은?", st.saved[0].Question)
	assert.Equal(t, ans.Text, st.saved[0].Answer)
	assert.Equal(t, "simple", st.saved[0].Tier)
	assert.Equal(t, model.ReasonDefault, st.saved[0].Reason)
	assert.NotEmpty(t, st.saved[0].ID)
}

func TestAssemble_SourceSubsetAndDedup(t *testing.T) {
	st := &memStore{}
	a := New(st)

	docs := []router.Document{
		{Candidate: model.CandidateDocument{ID: "d1", Company: "설로인", DocType: "사업보고서", Year: 2024, FilePath: "a.pdf"}},
		{Candidate: model.CandidateDocument{ID: "d1", Company: "설로인", DocType: "사업보고서", Year: 2024, FilePath: "a.pdf"}},
	}
	chunks := []model.RetrievedChunk{
		{SourceType: model.SourceNews, Title: "기사", URL: "https://news.example/2"},
		{SourceType: model.SourceNews, Title: "기사", URL: "https://news.example/2"},
	}

	ans := a.Assemble(context.Background(), model.Question{Text: "q"}, routedResult(), chunks, docs, time.Now())

	require.Len(t, ans.Sources, 2)

	// Every source traces back to an input document or chunk.
	allowed := map[string]bool{"/files/a.pdf": true, "https://news.example/2": true}
	for _, s := range ans.Sources {
		assert.True(t, allowed[s.URL], "unexpected source %q", s.URL)
	}
}

func TestAssemble_PersistFailureDoesNotFailAnswer(t *testing.T) {
	st := &memStore{saveErr: eris.New("sqlite: disk full")}
	a := New(st)

	ans := a.Assemble(context.Background(), model.Question{Text: "q"}, routedResult(), nil, nil, time.Now())
	assert.NotEmpty(t, ans.Text)
	assert.Empty(t, st.saved)
}

func TestAssembleUnanswered(t *testing.T) {
	st := &memStore{}
	a := New(st)

	ans := a.AssembleUnanswered(context.Background(), model.Question{Text: "없는회사 매출은?"}, time.Now())
	assert.Contains(t, ans.Text, "관련 문서를 찾을 수 없습니다")
	assert.Empty(t, ans.Sources)
	assert.Nil(t, ans.Metadata)

	require.Len(t, st.saved, 1)
	assert.Equal(t, model.ReasonDefault, st.saved[0].Reason)
}

func TestAssemble_ReasonFromLastDecision(t *testing.T) {
	st := &memStore{}
	a := New(st)

	res := routedResult()
	res.Tier = "complex"
	res.Trail = []model.RoutingDecision{
		{Tier: "simple", Reason: model.ReasonScannedDocument},
		{Tier: "complex", Reason: model.ReasonScannedDocument, Succeeded: true},
	}

	a.Assemble(context.Background(), model.Question{Text: "q"}, res, nil, nil, time.Now())
	require.Len(t, st.saved, 1)
	assert.Equal(t, model.ReasonScannedDocument, st.saved[0].Reason)
	assert.Equal(t, "complex", st.saved[0].Tier)
}
