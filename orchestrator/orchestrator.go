package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/searchfuse/searchfuse/cache"
	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/crag"
	"github.com/searchfuse/searchfuse/expand"
	"github.com/searchfuse/searchfuse/explain"
	"github.com/searchfuse/searchfuse/fusion"
	"github.com/searchfuse/searchfuse/gate"
	"github.com/searchfuse/searchfuse/metrics"
	"github.com/searchfuse/searchfuse/post"
	"github.com/searchfuse/searchfuse/rerank"
	"github.com/searchfuse/searchfuse/retriever"
	"github.com/searchfuse/searchfuse/schema"
	"github.com/searchfuse/searchfuse/sparse"
)

// ErrInvalidQuery rejects queries that tokenize to nothing. This is the only
// hard failure the pipeline produces for a well-formed call; everything past
// the query check degrades instead of failing.
var ErrInvalidQuery = errors.New("orchestrator: query has no searchable terms")

// Options are the per-request knobs. Zero values fall back to config.
type Options struct {
	TopK     int
	MinScore float64
	// NoRerank forces the rerank stage off for this request regardless of
	// config and gate outcome.
	NoRerank bool
}

// Deps are the stage implementations the orchestrator coordinates. Retrievers
// is the fan-out set; a single-element set is valid and simply skips fusion
// weighting for the missing source.
type Deps struct {
	Expander   *expand.Expander
	Retrievers []retriever.Retriever
	Fuser      *fusion.Engine
	Gate       *gate.Decider
	Reranker   *rerank.Reranker
	Evaluator  *crag.Evaluator
	Web        crag.Searcher
	Compressor *post.Compressor
	Explainer  *explain.Builder
	Cache      *cache.ResponseCache
	Log        *slog.Logger
}

// Orchestrator drives one query through expand, parallel retrieval, fusion,
// the rerank gate, quality evaluation with at most one corrective pass,
// compression and explanation.
type Orchestrator struct {
	cfg  *config.Config
	deps Deps
	log  *slog.Logger
}

func New(cfg *config.Config, deps Deps) *Orchestrator {
	if cfg == nil {
		cfg = config.Default()
	}
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	if deps.Fuser == nil {
		deps.Fuser = fusion.NewEngine(cfg.Fusion, deps.Log)
	}
	if deps.Gate == nil {
		deps.Gate = gate.NewDecider(cfg.Gate, deps.Log)
	}
	if deps.Evaluator == nil {
		deps.Evaluator = crag.NewEvaluator(cfg.Quality, deps.Log)
	}
	if deps.Explainer == nil {
		deps.Explainer = explain.NewBuilder()
	}
	if deps.Expander == nil {
		deps.Expander = expand.New(cfg.Expansion, deps.Log)
	}
	return &Orchestrator{cfg: cfg, deps: deps, log: deps.Log}
}

// Run executes the pipeline. The returned error is non-nil only for invalid
// input or a cancelled context; stage failures surface as degradations in the
// response summary.
func (o *Orchestrator) Run(ctx context.Context, query string, opts Options) (schema.Response, error) {
	start := time.Now()
	topK := opts.TopK
	if topK <= 0 {
		topK = o.cfg.TopK
	}
	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = o.cfg.MinScore
	}
	rerankEnabled := o.cfg.Rerank.Enable && !opts.NoRerank && o.deps.Reranker != nil

	if len(sparse.Tokenize(query)) == 0 {
		metrics.ObservePipeline("error", start)
		return schema.Response{}, ErrInvalidQuery
	}

	var cacheKey string
	if o.deps.Cache != nil {
		cacheKey = cache.Key(query, topK, minScore, rerankEnabled)
		if resp, ok := o.deps.Cache.Get(cacheKey); ok {
			metrics.IncCache("hit")
			resp.Summary.CacheHit = true
			resp.Summary.ExecutionTime = time.Since(start)
			return resp, nil
		}
		metrics.IncCache("miss")
	}

	summary := schema.PipelineSummary{RequestID: uuid.NewString()}
	log := o.log.With("request_id", summary.RequestID)
	log.Debug("pipeline start", "query", query, "top_k", topK)

	expanded := o.deps.Expander.Expand(query)

	candidates, degradations := o.retrieveAndFuse(ctx, query, topK, minScore)
	summary.Degradations = append(summary.Degradations, degradations...)
	if err := ctx.Err(); err != nil {
		metrics.ObservePipeline("error", start)
		return schema.Response{}, err
	}
	if len(candidates) == 0 {
		summary.Degradations = append(summary.Degradations, schema.StageError{
			Stage: schema.StageRetrieve, Kind: schema.KindNoResults,
			Message: "no candidates from any source",
		})
	}

	// Rerank gate. The gate reads the fused distribution; skipping is the
	// normal fast path, not a degradation.
	field := schema.FieldFused
	decision := o.deps.Gate.ShouldSkipRerank(candidates, schema.FieldFused)
	metrics.IncRerankSkip(skipLabel(decision))
	switch {
	case !rerankEnabled:
		summary.RerankSkipped = true
		summary.SkipReason = "rerank_disabled"
	case decision.Skip:
		summary.RerankSkipped = true
		summary.SkipReason = decision.Reason
	case len(candidates) > 0:
		rstart := time.Now()
		reranked, stageErr := o.deps.Reranker.Rerank(ctx, query, candidates, topK, o.cfg.Rerank.MinScore)
		metrics.ObserveRerank(rstart)
		if stageErr != nil {
			summary.Degradations = append(summary.Degradations, *stageErr)
			summary.RerankSkipped = true
			summary.SkipReason = string(stageErr.Kind)
		} else {
			field = schema.FieldRerank
		}
		candidates = reranked
	default:
		summary.RerankSkipped = true
		summary.SkipReason = decision.Reason
	}

	assessment := o.deps.Evaluator.Evaluate(candidates, field)
	metrics.IncQualityLevel(string(assessment.Level))
	summary.QualityLevel = string(assessment.Level)

	// At most one corrective pass per request, however many actions the
	// assessment recommends.
	candidates, field, summary.CorrectiveActions = o.correct(ctx, query, expanded, assessment, candidates, field, topK, minScore, &summary)
	if len(summary.CorrectiveActions) > 0 {
		after := o.deps.Evaluator.Evaluate(candidates, field)
		imp := o.deps.Evaluator.Improvement(assessment, after)
		summary.QualityLevel = string(after.Level)
		log.Debug("corrective pass",
			"actions", summary.CorrectiveActions,
			"confidence_before", imp.BeforeConfidence, "confidence_after", imp.AfterConfidence,
			"count_before", imp.BeforeCount, "count_after", imp.AfterCount)
	}

	candidates = truncate(candidates, field, topK)

	if o.cfg.Compress.Enable && o.deps.Compressor != nil {
		o.deps.Compressor.CompressAll(candidates, query)
	}

	results, averages := o.deps.Explainer.ExplainBatch(candidates, query)
	summary.Averages = averages
	summary.TotalResults = len(results)
	summary.ExecutionTime = time.Since(start)

	resp := schema.Response{Results: results, Summary: summary}
	// Degraded responses are not cached: a recovered retriever should serve
	// the next identical query, not a TTL's worth of stale fallbacks.
	if o.deps.Cache != nil && !summary.Degraded() {
		o.deps.Cache.Set(cacheKey, resp)
	}
	status := "done"
	if summary.Degraded() {
		status = "degraded"
	}
	metrics.ObservePipeline(status, start)
	log.Info("pipeline done",
		"results", summary.TotalResults,
		"rerank_skipped", summary.RerankSkipped,
		"quality", summary.QualityLevel,
		"degradations", len(summary.Degradations),
		"elapsed_ms", summary.ExecutionTime.Milliseconds())
	return resp, nil
}

type retrieval struct {
	typ     string
	results []schema.SearchResult
	err     error
}

// retrieveAndFuse fans the query out to every retriever in parallel and fuses
// the lists. A failed source contributes an empty list and a degradation;
// only the caller decides whether an empty total is fatal.
func (o *Orchestrator) retrieveAndFuse(ctx context.Context, query string, topK int, minScore float64) ([]schema.Candidate, []schema.StageError) {
	var wg sync.WaitGroup
	resCh := make(chan retrieval, len(o.deps.Retrievers))
	for _, r := range o.deps.Retrievers {
		rr := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			rstart := time.Now()
			res, err := rr.Search(ctx, query, topK, minScore)
			metrics.ObserveRetriever(rr.Type(), rstart, len(res))
			resCh <- retrieval{typ: rr.Type(), results: res, err: err}
		}()
	}
	wg.Wait()
	close(resCh)

	var sparseList, denseList []schema.SearchResult
	var degradations []schema.StageError
	for r := range resCh {
		if r.err != nil {
			metrics.IncRetrieverFailure(r.typ)
			degradations = append(degradations, schema.StageError{
				Stage: schema.StageRetrieve, Kind: schema.KindPartialRetrieval,
				Message: r.typ + ": " + r.err.Error(),
			})
			continue
		}
		switch r.typ {
		case "dense":
			denseList = r.results
		default:
			sparseList = r.results
		}
	}

	candidates := o.deps.Fuser.FuseSources(sparseList, denseList)
	metrics.ObserveFused(len(candidates))
	return candidates, degradations
}

// correct executes the recommended corrective actions once. refine_query
// re-runs retrieval with the first reformulation and keeps whichever
// candidate set the evaluator scores higher; external_search appends web
// results after the internal ranking.
func (o *Orchestrator) correct(ctx context.Context, query string, expanded expand.ExpandedQuery, assessment crag.Assessment, candidates []schema.Candidate, field schema.ScoreField, topK int, minScore float64, summary *schema.PipelineSummary) ([]schema.Candidate, schema.ScoreField, []string) {
	var executed []string
	for _, action := range assessment.Actions {
		switch action {
		case crag.ActionNone:
			continue
		case crag.ActionRefineKnowledge:
			candidates = crag.RefineKnowledge(candidates, field)
		case crag.ActionRefineQuery:
			if len(expanded.Reformulations) == 0 {
				continue
			}
			reformulated := expanded.Reformulations[0]
			rerun, degr := o.retrieveAndFuse(ctx, reformulated, topK, minScore)
			summary.Degradations = append(summary.Degradations, degr...)
			before := o.deps.Evaluator.Evaluate(candidates, field)
			after := o.deps.Evaluator.Evaluate(rerun, schema.FieldFused)
			if after.Confidence > before.Confidence {
				candidates = rerun
				field = schema.FieldFused
			}
		case crag.ActionExternalSearch:
			if o.deps.Web == nil || !o.cfg.WebSearch.Enable {
				continue
			}
			external, err := o.deps.Web.Search(ctx, query, o.cfg.WebSearch.TopK)
			if err != nil {
				summary.Degradations = append(summary.Degradations, schema.StageError{
					Stage: schema.StageCorrect, Kind: schema.KindWebSearchFailed,
					Message: err.Error(),
				})
				continue
			}
			seen := make(map[string]struct{}, len(candidates))
			for _, c := range candidates {
				seen[c.ID] = struct{}{}
			}
			for _, r := range external {
				if _, dup := seen[r.Document.ID]; dup {
					continue
				}
				candidates = append(candidates, schema.FromResult(r))
			}
		}
		metrics.IncCorrectiveAction(string(action))
		executed = append(executed, string(action))
	}
	return candidates, field, executed
}

// truncate keeps the topK candidates. Scored candidates stay in their sorted
// order; unscored tail entries (external supplements) are cut last.
func truncate(candidates []schema.Candidate, field schema.ScoreField, topK int) []schema.Candidate {
	if topK <= 0 || len(candidates) <= topK {
		return candidates
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].Scores.Get(field), candidates[j].Scores.Get(field)
		if si.Valid != sj.Valid {
			return si.Valid
		}
		return false
	})
	return candidates[:topK]
}

// skipLabel strips the formatted detail off a gate decision for the metric
// label.
func skipLabel(d gate.Decision) string {
	for i := 0; i < len(d.Reason); i++ {
		if d.Reason[i] == ':' {
			return d.Reason[:i]
		}
	}
	return d.Reason
}
