package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mnemosyn1154/WVP-QNA/internal/assemble"
	"github.com/Mnemosyn1154/WVP-QNA/internal/classify"
	"github.com/Mnemosyn1154/WVP-QNA/internal/extract"
	"github.com/Mnemosyn1154/WVP-QNA/internal/model"
	"github.com/Mnemosyn1154/WVP-QNA/internal/retrieve"
	"github.com/Mnemosyn1154/WVP-QNA/internal/router"
	"github.com/Mnemosyn1154/WVP-QNA/internal/store"
)

type fakeDocStore struct {
	companies []string
	year      int
	docs      map[string][]model.CandidateDocument
	pdfs      map[string][]byte
	readErr   map[string]error

	findCalls [][3]any
}

func (f *fakeDocStore) Find(company string, year int, docType string) []model.CandidateDocument {
	f.findCalls = append(f.findCalls, [3]any{company, year, docType})
	return f.docs[company]
}

func (f *fakeDocStore) ReadPDF(doc model.CandidateDocument) ([]byte, error) {
	if err := f.readErr[doc.ID]; err != nil {
		return nil, err
	}
	return f.pdfs[doc.ID], nil
}

func (f *fakeDocStore) ExtractCompanies(string) []string { return f.companies }
func (f *fakeDocStore) ExtractYear(string) int           { return f.year }

type fakeRetriever struct {
	chunks  []model.RetrievedChunk
	err     error
	lastF   retrieve.Filters
	lastK   int
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, filt retrieve.Filters, topK int) ([]model.RetrievedChunk, error) {
	f.queries = append(f.queries, query)
	f.lastF = filt
	f.lastK = topK
	return f.chunks, f.err
}

type fakeRouter struct {
	mu    sync.Mutex
	reqs  []router.Request
	res   *router.Result
	err   error
	trail []model.RoutingDecision
}

func (f *fakeRouter) Route(_ context.Context, req router.Request) (*router.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return &router.Result{Trail: f.trail}, f.err
	}
	return f.res, nil
}

func (f *fakeRouter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type memStore struct {
	saved []model.Exchange
}

func (m *memStore) SaveExchange(_ context.Context, ex model.Exchange) error {
	m.saved = append(m.saved, ex)
	return nil
}

func (m *memStore) ListExchanges(context.Context, store.ExchangeFilter) ([]model.Exchange, error) {
	return m.saved, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func routedOK() *router.Result {
	return &router.Result{
		Text:  "마인이스의 2024년 매출은 120억원입니다.",
		Model: "cheap-model",
		Tier:  "simple",
		Trail: []model.RoutingDecision{
			{Tier: "simple", Model: "cheap-model", Reason: model.ReasonDefault, Succeeded: true},
		},
	}
}

func newTestPipeline(docs *fakeDocStore, ret *fakeRetriever, rt *fakeRouter) (*Pipeline, *memStore) {
	st := &memStore{}
	p := New(
		docs,
		ret,
		classify.New([]string{"비교"}, nil),
		extract.New(extract.DefaultMinTextChars),
		rt,
		assemble.New(st),
		Options{TopK: 5, ExtractWorkers: 2, CacheSize: 10},
	)
	return p, st
}

func TestAsk_RoutesAndAssembles(t *testing.T) {
	t.Parallel()

	docs := &fakeDocStore{
		companies: []string{"마인이스"},
		year:      2024,
		docs: map[string][]model.CandidateDocument{
			"마인이스": {{ID: "d1", Company: "마인이스", DocType: "재무제표", Year: 2024, FilePath: "a.pdf"}},
		},
		pdfs: map[string][]byte{"d1": []byte("not a real pdf")},
	}
	ret := &fakeRetriever{chunks: []model.RetrievedChunk{
		{Content: "기사 본문", SourceType: model.SourceNews, Title: "기사", URL: "https://news.example/1"},
	}}
	rt := &fakeRouter{res: routedOK()}
	p, st := newTestPipeline(docs, ret, rt)

	ans, err := p.Ask(context.Background(), model.Question{Text: "마인이스 2024년 매출은?"})
	require.NoError(t, err)
	assert.Equal(t, "마인이스의 2024년 매출은 120억원입니다.", ans.Text)
	assert.Len(t, ans.Sources, 2)

	// Context resolution drove document lookup and retrieval filters.
	require.Len(t, docs.findCalls, 1)
	assert.Equal(t, [3]any{"마인이스", 2024, ""}, docs.findCalls[0])
	assert.Equal(t, "마인이스", ret.lastF.Company)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), ret.lastF.Since)
	assert.Equal(t, 5, ret.lastK)

	// The router saw the loaded document and the retrieved chunks.
	require.Equal(t, 1, rt.calls())
	req := rt.reqs[0]
	require.Len(t, req.Documents, 1)
	assert.Equal(t, "d1", req.Documents[0].Candidate.ID)
	assert.Equal(t, []byte("not a real pdf"), req.Documents[0].PDF)
	assert.Len(t, req.Chunks, 1)

	// Exchange persisted through the assembler.
	require.Len(t, st.saved, 1)
	assert.Equal(t, "simple", st.saved[0].Tier)
}

func TestAsk_ExplicitContextWins(t *testing.T) {
	t.Parallel()

	docs := &fakeDocStore{
		companies: []string{"마인이스"}, // would be the extracted fallback
		year:      2023,
		docs: map[string][]model.CandidateDocument{
			"설로인": {{ID: "s1", Company: "설로인", DocType: "사업보고서", Year: 2024, FilePath: "s.pdf"}},
		},
		pdfs: map[string][]byte{"s1": []byte("x")},
	}
	ret := &fakeRetriever{}
	rt := &fakeRouter{res: routedOK()}
	p, _ := newTestPipeline(docs, ret, rt)

	q := model.Question{
		Text:    "매출 알려줘",
		Context: &model.QuestionContext{Companies: []string{"설로인"}, Year: 2024, DocType: "사업보고서"},
	}
	_, err := p.Ask(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, docs.findCalls, 1)
	assert.Equal(t, [3]any{"설로인", 2024, "사업보고서"}, docs.findCalls[0])
	assert.Equal(t, "사업보고서", ret.lastF.DocType)
}

func TestAsk_NoDocumentsOrChunksReturnsInsufficientInfo(t *testing.T) {
	t.Parallel()

	docs := &fakeDocStore{} // no companies extracted, no documents
	ret := &fakeRetriever{}
	rt := &fakeRouter{res: routedOK()}
	p, st := newTestPipeline(docs, ret, rt)

	ans, err := p.Ask(context.Background(), model.Question{Text: "없는회사 매출은?"})
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "관련 문서를 찾을 수 없습니다")
	assert.Empty(t, ans.Sources)

	// No provider was consulted, and the miss is still logged.
	assert.Equal(t, 0, rt.calls())
	require.Len(t, st.saved, 1)

	// Misses are not cached: a second ask re-runs resolution.
	_, err = p.Ask(context.Background(), model.Question{Text: "없는회사 매출은?"})
	require.NoError(t, err)
	require.Len(t, st.saved, 2)
}

func TestAsk_CacheHitSkipsProviders(t *testing.T) {
	t.Parallel()

	docs := &fakeDocStore{
		companies: []string{"마인이스"},
		docs: map[string][]model.CandidateDocument{
			"마인이스": {{ID: "d1", Company: "마인이스", DocType: "재무제표", Year: 2024, FilePath: "a.pdf"}},
		},
		pdfs: map[string][]byte{"d1": []byte("x")},
	}
	ret := &fakeRetriever{}
	rt := &fakeRouter{res: routedOK()}
	p, st := newTestPipeline(docs, ret, rt)

	q := model.Question{Text: "마인이스 매출은?"}
	first, err := p.Ask(context.Background(), q)
	require.NoError(t, err)

	second, err := p.Ask(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, first.Text, second.Text)

	assert.Equal(t, 1, rt.calls(), "cached answer must not route again")
	assert.Len(t, st.saved, 1, "cached answer must not persist again")
	assert.Len(t, ret.queries, 1)
}

func TestAsk_ClearCacheForcesRecompute(t *testing.T) {
	t.Parallel()

	docs := &fakeDocStore{
		companies: []string{"마인이스"},
		docs: map[string][]model.CandidateDocument{
			"마인이스": {{ID: "d1", Company: "마인이스", DocType: "재무제표", FilePath: "a.pdf"}},
		},
		pdfs: map[string][]byte{"d1": []byte("x")},
	}
	rt := &fakeRouter{res: routedOK()}
	p, _ := newTestPipeline(docs, &fakeRetriever{}, rt)

	q := model.Question{Text: "마인이스 매출은?"}
	_, err := p.Ask(context.Background(), q)
	require.NoError(t, err)

	evicted := p.ClearCache()
	assert.Equal(t, 1, evicted)

	_, err = p.Ask(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, rt.calls())
}

func TestAsk_ReadFailureReachesRouterAsExtractionFailure(t *testing.T) {
	t.Parallel()

	docs := &fakeDocStore{
		companies: []string{"마인이스"},
		docs: map[string][]model.CandidateDocument{
			"마인이스": {
				{ID: "d1", Company: "마인이스", DocType: "재무제표", Year: 2024, FilePath: "a.pdf"},
				{ID: "d2", Company: "마인이스", DocType: "재무제표", Year: 2023, FilePath: "b.pdf"},
			},
		},
		pdfs:    map[string][]byte{"d2": []byte("x")},
		readErr: map[string]error{"d1": eris.New("docstore: open document")},
	}
	rt := &fakeRouter{res: routedOK()}
	p, _ := newTestPipeline(docs, &fakeRetriever{}, rt)

	_, err := p.Ask(context.Background(), model.Question{Text: "마인이스 매출은?"})
	require.NoError(t, err)

	require.Equal(t, 1, rt.calls())
	reqDocs := rt.reqs[0].Documents
	require.Len(t, reqDocs, 2)
	assert.Equal(t, model.QualityExtractionFailed, reqDocs[0].Extracted.Quality)
	assert.Nil(t, reqDocs[0].PDF)
	assert.Equal(t, []byte("x"), reqDocs[1].PDF)
}

func TestAsk_RetrievalFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	docs := &fakeDocStore{
		companies: []string{"마인이스"},
		docs: map[string][]model.CandidateDocument{
			"마인이스": {{ID: "d1", Company: "마인이스", DocType: "재무제표", FilePath: "a.pdf"}},
		},
		pdfs: map[string][]byte{"d1": []byte("x")},
	}
	ret := &fakeRetriever{err: eris.New("retrieve: embed query")}
	rt := &fakeRouter{res: routedOK()}
	p, _ := newTestPipeline(docs, ret, rt)

	ans, err := p.Ask(context.Background(), model.Question{Text: "마인이스 매출은?"})
	require.NoError(t, err)
	assert.NotEmpty(t, ans.Text)

	require.Equal(t, 1, rt.calls())
	assert.Empty(t, rt.reqs[0].Chunks)
}

func TestAsk_RouterErrorPropagatesWithTrail(t *testing.T) {
	t.Parallel()

	docs := &fakeDocStore{
		companies: []string{"마인이스"},
		docs: map[string][]model.CandidateDocument{
			"마인이스": {{ID: "d1", Company: "마인이스", DocType: "재무제표", FilePath: "a.pdf"}},
		},
		pdfs: map[string][]byte{"d1": []byte("x")},
	}
	trail := []model.RoutingDecision{
		{Tier: "simple", Reason: model.ReasonBudgetExceeded},
		{Tier: "complex", Reason: model.ReasonBudgetExceeded, FallbackFrom: "simple"},
	}
	rt := &fakeRouter{err: router.ErrAllTiersFailed, trail: trail}
	p, _ := newTestPipeline(docs, &fakeRetriever{}, rt)

	ans, err := p.Ask(context.Background(), model.Question{Text: "마인이스 매출은?"})
	require.Error(t, err)
	assert.ErrorIs(t, err, router.ErrAllTiersFailed)
	assert.Equal(t, trail, ans.Routing)

	// Failures are never cached.
	_, err = p.Ask(context.Background(), model.Question{Text: "마인이스 매출은?"})
	require.Error(t, err)
	assert.Equal(t, 2, rt.calls())
}

func TestAsk_ClassificationSignalReachesRouter(t *testing.T) {
	t.Parallel()

	docs := &fakeDocStore{
		companies: []string{"마인이스", "설로인"},
		docs: map[string][]model.CandidateDocument{
			"마인이스": {{ID: "d1", Company: "마인이스", DocType: "재무제표", FilePath: "a.pdf"}},
			"설로인":  {{ID: "s1", Company: "설로인", DocType: "재무제표", FilePath: "s.pdf"}},
		},
		pdfs: map[string][]byte{"d1": []byte("x"), "s1": []byte("y")},
	}
	rt := &fakeRouter{res: routedOK()}
	p, _ := newTestPipeline(docs, &fakeRetriever{}, rt)

	_, err := p.Ask(context.Background(), model.Question{Text: "마인이스와 설로인 매출 비교해줘"})
	require.NoError(t, err)

	require.Equal(t, 1, rt.calls())
	sig := rt.reqs[0].Signal
	assert.True(t, sig.NeedsComplexPath)
	assert.Equal(t, model.ReasonComparisonKeyword, sig.Reason)
	assert.Len(t, rt.reqs[0].Documents, 2)
}
