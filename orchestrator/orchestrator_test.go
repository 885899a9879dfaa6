package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchfuse/searchfuse/cache"
	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/rerank"
	"github.com/searchfuse/searchfuse/retriever"
	"github.com/searchfuse/searchfuse/schema"
)

type fakeRetriever struct {
	typ     string
	results []schema.SearchResult
	err     error
	calls   atomic.Int32
}

func (f *fakeRetriever) Type() string { return f.typ }

func (f *fakeRetriever) Search(ctx context.Context, query string, topK int, minScore float64) ([]schema.SearchResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeScorer struct {
	byText map[string]float64
}

func (f *fakeScorer) ScoreBatch(ctx context.Context, pairs []rerank.Pair) ([]float64, error) {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = f.byText[p.Text]
	}
	return out, nil
}

type fakeSearcher struct {
	results []schema.SearchResult
	err     error
}

func (f *fakeSearcher) Search(ctx context.Context, query string, topK int) ([]schema.SearchResult, error) {
	return f.results, f.err
}

func doc(id, content string) schema.SearchResult {
	return schema.SearchResult{Document: schema.Document{ID: id, Content: content}, Score: 1}
}

func corpusRetrievers() (*fakeRetriever, *fakeRetriever) {
	sparse := &fakeRetriever{typ: "sparse", results: []schema.SearchResult{
		doc("1", "jwt authentication flow"),
		doc("3", "jwt token verification"),
	}}
	dense := &fakeRetriever{typ: "dense", results: []schema.SearchResult{
		doc("3", "jwt token verification"),
		doc("1", "jwt authentication flow"),
	}}
	return sparse, dense
}

func TestRunEndToEnd(t *testing.T) {
	cfg := config.Default()
	cfg.Rerank.Enable = false
	sparse, dense := corpusRetrievers()

	o := New(cfg, Deps{Retrievers: []retriever.Retriever{sparse, dense}})
	resp, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err)

	// Mirrored rankings with the 0.6 dense weight put 3 first.
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "3", resp.Results[0].ID)
	assert.Equal(t, "1", resp.Results[1].ID)
	assert.Equal(t, 1, resp.Results[0].Rank)
	assert.Equal(t, "fused", resp.Results[0].ScoreType)
	assert.InDelta(t, 0.4/62+0.6/61, resp.Results[0].FinalScore, 1e-9)
	assert.Contains(t, resp.Results[0].Explanation.MatchedKeywords, "jwt")

	assert.True(t, resp.Summary.RerankSkipped)
	assert.Equal(t, "rerank_disabled", resp.Summary.SkipReason)
	assert.NotEmpty(t, resp.Summary.RequestID)
	assert.Equal(t, 2, resp.Summary.TotalResults)
	assert.NotEmpty(t, resp.Summary.QualityLevel)
	assert.True(t, resp.Summary.Averages.Fused.Valid)
}

func TestRunInvalidQuery(t *testing.T) {
	o := New(config.Default(), Deps{})
	_, err := o.Run(context.Background(), "?!, --", Options{})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestRunPartialRetrievalFailure(t *testing.T) {
	cfg := config.Default()
	cfg.Rerank.Enable = false
	sparse, _ := corpusRetrievers()
	dense := &fakeRetriever{typ: "dense", err: errors.New("vector store down")}

	o := New(cfg, Deps{Retrievers: []retriever.Retriever{sparse, dense}})
	resp, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err, "partial failure must not fail the request")

	require.Len(t, resp.Results, 2)
	assert.Equal(t, "1", resp.Results[0].ID, "sparse ranking survives alone")
	assert.True(t, resp.Summary.Degraded())
	require.NotEmpty(t, resp.Summary.Degradations)
	assert.Equal(t, schema.KindPartialRetrieval, resp.Summary.Degradations[0].Kind)
}

func TestRunGateSkipsRerank(t *testing.T) {
	cfg := config.Default()
	sparse, dense := corpusRetrievers()
	scorer := &fakeScorer{byText: map[string]float64{}}

	o := New(cfg, Deps{
		Retrievers: []retriever.Retriever{sparse, dense},
		Reranker:   rerank.New(scorer, nil),
	})
	resp, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err)

	// RRF scores cluster tightly, so the variance check skips the reranker.
	assert.True(t, resp.Summary.RerankSkipped)
	assert.True(t, strings.HasPrefix(resp.Summary.SkipReason, "well_separated"))
	assert.Equal(t, "fused", resp.Results[0].ScoreType)
}

func TestRunRerankPath(t *testing.T) {
	cfg := config.Default()
	// Defeat every skip heuristic so the reranker actually runs.
	cfg.Gate.VarianceThreshold = 1e-12
	cfg.Gate.ConfidenceThreshold = 0.999
	cfg.Gate.GapThreshold = 0.999
	sparse, dense := corpusRetrievers()
	scorer := &fakeScorer{byText: map[string]float64{
		"jwt authentication flow": 0.9,
		"jwt token verification":  0.4,
	}}

	o := New(cfg, Deps{
		Retrievers: []retriever.Retriever{sparse, dense},
		Reranker:   rerank.New(scorer, nil),
	})
	resp, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err)

	assert.False(t, resp.Summary.RerankSkipped)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "1", resp.Results[0].ID)
	assert.Equal(t, "rerank", resp.Results[0].ScoreType)
	assert.Equal(t, 0.9, resp.Results[0].FinalScore)
	// 1 was fused second and reranked first.
	assert.Equal(t, 1, resp.Results[0].Explanation.RerankDelta)
	assert.Equal(t, "excellent", resp.Summary.QualityLevel)
}

func TestRunNoRerankOption(t *testing.T) {
	cfg := config.Default()
	sparse, dense := corpusRetrievers()
	o := New(cfg, Deps{
		Retrievers: []retriever.Retriever{sparse, dense},
		Reranker:   rerank.New(&fakeScorer{}, nil),
	})
	resp, err := o.Run(context.Background(), "jwt authentication", Options{NoRerank: true})
	require.NoError(t, err)
	assert.True(t, resp.Summary.RerankSkipped)
	assert.Equal(t, "rerank_disabled", resp.Summary.SkipReason)
}

func TestRunExternalSearchSupplement(t *testing.T) {
	cfg := config.Default()
	cfg.Rerank.Enable = false
	cfg.WebSearch.Enable = true
	empty := &fakeRetriever{typ: "sparse"}
	web := &fakeSearcher{results: []schema.SearchResult{
		{Document: schema.Document{ID: "https://example.com/a", Content: "external snippet"}},
	}}

	o := New(cfg, Deps{Retrievers: []retriever.Retriever{empty}, Web: web})
	resp, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err)

	assert.Contains(t, resp.Summary.CorrectiveActions, "external_search")
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "https://example.com/a", resp.Results[0].ID)
	// Empty internal retrieval is still reported.
	assert.True(t, resp.Summary.Degraded())
}

func TestRunWebSearchFailureDegrades(t *testing.T) {
	cfg := config.Default()
	cfg.Rerank.Enable = false
	cfg.WebSearch.Enable = true
	empty := &fakeRetriever{typ: "sparse"}
	web := &fakeSearcher{err: errors.New("dns failure")}

	o := New(cfg, Deps{Retrievers: []retriever.Retriever{empty}, Web: web})
	resp, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err)

	assert.Empty(t, resp.Results)
	kinds := make([]schema.ErrorKind, 0, len(resp.Summary.Degradations))
	for _, d := range resp.Summary.Degradations {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, schema.KindWebSearchFailed)
	assert.Contains(t, kinds, schema.KindNoResults)
}

func TestRunCacheHit(t *testing.T) {
	cfg := config.Default()
	cfg.Rerank.Enable = false
	sparse, dense := corpusRetrievers()

	o := New(cfg, Deps{
		Retrievers: []retriever.Retriever{sparse, dense},
		Cache:      cache.NewResponseCache(8, time.Minute),
	})

	first, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err)
	assert.False(t, first.Summary.CacheHit)
	callsAfterFirst := sparse.calls.Load()

	second, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err)
	assert.True(t, second.Summary.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, callsAfterFirst, sparse.calls.Load(), "cache hit must not re-run retrieval")

	// Different options miss the cache.
	_, err = o.Run(context.Background(), "jwt authentication", Options{TopK: 1})
	require.NoError(t, err)
	assert.Greater(t, sparse.calls.Load(), callsAfterFirst)
}

func TestRunDegradedResponseNotCached(t *testing.T) {
	cfg := config.Default()
	cfg.Rerank.Enable = false
	sparse, _ := corpusRetrievers()
	dense := &fakeRetriever{typ: "dense", err: errors.New("vector store down")}

	o := New(cfg, Deps{
		Retrievers: []retriever.Retriever{sparse, dense},
		Cache:      cache.NewResponseCache(8, time.Minute),
	})

	first, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err)
	require.True(t, first.Summary.Degraded())
	callsAfterFirst := sparse.calls.Load()

	second, err := o.Run(context.Background(), "jwt authentication", Options{})
	require.NoError(t, err)
	assert.False(t, second.Summary.CacheHit, "a degraded response must not be served from cache")
	assert.Greater(t, sparse.calls.Load(), callsAfterFirst, "retrieval must re-run after a degraded response")
}

func TestRunRespectsTopK(t *testing.T) {
	cfg := config.Default()
	cfg.Rerank.Enable = false
	many := make([]schema.SearchResult, 0, 15)
	for i := 0; i < 15; i++ {
		many = append(many, doc(string(rune('a'+i)), "jwt related text"))
	}
	sparse := &fakeRetriever{typ: "sparse", results: many}

	o := New(cfg, Deps{Retrievers: []retriever.Retriever{sparse}})
	resp, err := o.Run(context.Background(), "jwt", Options{TopK: 4})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 4)
}
