package rerank

import (
	"context"
	"log/slog"
	"sort"

	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/schema"
)

// Pair is one (query, document) scoring unit.
type Pair struct {
	Query string `json:"query"`
	Text  string `json:"text"`
}

// PairwiseScorer scores (query, text) pairs with an external cross-encoder
// style model. Implementations must preserve order and return exactly one
// score per input pair.
type PairwiseScorer interface {
	ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error)
}

// Reranker rescales a candidate set by direct query-document relevance.
// The external scorer is invoked exactly once per rerank with the whole
// batch; scorer models are too expensive for per-candidate calls.
type Reranker struct {
	scorer PairwiseScorer
	log    *slog.Logger
}

// New wraps a pairwise scorer. A nil scorer is allowed and degrades every
// rerank to a passthrough.
func New(scorer PairwiseScorer, log *slog.Logger) *Reranker {
	if log == nil {
		log = logging.Discard()
	}
	return &Reranker{scorer: scorer, log: log}
}

// Rerank scores all candidates in one batch, records each candidate's
// pre-rerank position, filters by minScore and returns the topK by rerank
// score. If the scorer is unavailable or fails, the first topK candidates
// are returned unchanged together with a degradation record; a broken
// scorer never fails the request.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []schema.Candidate, topK int, minScore float64) ([]schema.Candidate, *schema.StageError) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	if r.scorer == nil {
		return head(candidates, topK), &schema.StageError{
			Stage: schema.StageRerank, Kind: schema.KindRerankerUnavailable,
			Message: "no pairwise scorer configured",
		}
	}

	pairs := make([]Pair, len(candidates))
	for i, c := range candidates {
		pairs[i] = Pair{Query: query, Text: c.Text}
	}
	scores, err := r.scorer.ScoreBatch(ctx, pairs)
	if err != nil || len(scores) != len(candidates) {
		msg := "scorer returned wrong result count"
		if err != nil {
			msg = err.Error()
		}
		r.log.Warn("rerank degraded to passthrough", "error", msg, "candidates", len(candidates))
		return head(candidates, topK), &schema.StageError{
			Stage: schema.StageRerank, Kind: schema.KindRerankerUnavailable, Message: msg,
		}
	}

	scored := make([]schema.Candidate, 0, len(candidates))
	for i, c := range candidates {
		if scores[i] < minScore {
			continue
		}
		c.Scores.Rerank = schema.ScoreOf(scores[i])
		c.OriginalRank = i
		scored = append(scored, c)
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Scores.Rerank.Value != scored[j].Scores.Rerank.Value {
			return scored[i].Scores.Rerank.Value > scored[j].Scores.Rerank.Value
		}
		return scored[i].ID < scored[j].ID
	})
	return head(scored, topK), nil
}

func head(candidates []schema.Candidate, topK int) []schema.Candidate {
	if topK > 0 && len(candidates) > topK {
		return append([]schema.Candidate(nil), candidates[:topK]...)
	}
	return candidates
}
