package explain

import (
	"fmt"
	"strings"

	"github.com/searchfuse/searchfuse/schema"
	"github.com/searchfuse/searchfuse/sparse"
)

// Score type labels, in descending precedence. A reranked candidate is always
// explained by its rerank score even though earlier scores are still attached.
const (
	TypeRerank = "rerank"
	TypeFused  = "fused"
	TypeSparse = "sparse"
	TypeDense  = "dense"
)

// Builder renders per-result explanations.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// Explain decomposes one candidate's final score. The dominant score type is
// chosen by precedence (rerank over fused over a raw single-source score),
// keyword matches are literal query tokens found in the text, and source
// percentages split the sparse/dense raw contribution of their own sum.
func (b *Builder) Explain(c schema.Candidate, query string) schema.Explanation {
	e := schema.Explanation{
		DenseScore:  c.Scores.Dense,
		SparseScore: c.Scores.Sparse,
		RRFScore:    c.Scores.Fused,
		RerankScore: c.Scores.Rerank,
	}

	switch {
	case c.Scores.Rerank.Valid:
		e.ScoreType = TypeRerank
		e.FinalScore = c.Scores.Rerank.Value
		e.OriginalRank = c.OriginalRank
	case c.Scores.Fused.Valid:
		e.ScoreType = TypeFused
		e.FinalScore = c.Scores.Fused.Value
	case c.Scores.Sparse.Valid:
		e.ScoreType = TypeSparse
		e.FinalScore = c.Scores.Sparse.Value
	case c.Scores.Dense.Valid:
		e.ScoreType = TypeDense
		e.FinalScore = c.Scores.Dense.Value
	}

	e.MatchedKeywords = matchedKeywords(query, c.Text)

	if c.Scores.Sparse.Valid || c.Scores.Dense.Valid {
		total := c.Scores.Sparse.Value + c.Scores.Dense.Value
		if total > 0 {
			e.SparsePercent = 100 * c.Scores.Sparse.Value / total
			e.DensePercent = 100 * c.Scores.Dense.Value / total
		}
	}

	e.Text = b.narrative(c, e)
	return e
}

// ExplainBatch explains every candidate, assigns 1-based ranks and aggregates
// per-stage averages over the set.
func (b *Builder) ExplainBatch(candidates []schema.Candidate, query string) ([]schema.Result, schema.StageAverages) {
	results := make([]schema.Result, len(candidates))
	var sums schema.Scores
	var counts [4]int
	for i, c := range candidates {
		exp := b.Explain(c, query)
		if exp.ScoreType == TypeRerank {
			exp.RerankDelta = c.OriginalRank - i
		}
		results[i] = schema.Result{
			ID:          c.ID,
			Text:        c.Text,
			FinalScore:  exp.FinalScore,
			ScoreType:   exp.ScoreType,
			Rank:        i + 1,
			Explanation: exp,
		}
		if c.Scores.Sparse.Valid {
			sums.Sparse.Value += c.Scores.Sparse.Value
			counts[0]++
		}
		if c.Scores.Dense.Valid {
			sums.Dense.Value += c.Scores.Dense.Value
			counts[1]++
		}
		if c.Scores.Fused.Valid {
			sums.Fused.Value += c.Scores.Fused.Value
			counts[2]++
		}
		if c.Scores.Rerank.Valid {
			sums.Rerank.Value += c.Scores.Rerank.Value
			counts[3]++
		}
	}

	var avg schema.StageAverages
	if counts[0] > 0 {
		avg.Sparse = schema.ScoreOf(sums.Sparse.Value / float64(counts[0]))
	}
	if counts[1] > 0 {
		avg.Dense = schema.ScoreOf(sums.Dense.Value / float64(counts[1]))
	}
	if counts[2] > 0 {
		avg.Fused = schema.ScoreOf(sums.Fused.Value / float64(counts[2]))
	}
	if counts[3] > 0 {
		avg.Rerank = schema.ScoreOf(sums.Rerank.Value / float64(counts[3]))
	}
	return results, avg
}

// narrative renders the one-line human-readable account of the score.
func (b *Builder) narrative(c schema.Candidate, e schema.Explanation) string {
	var parts []string
	switch e.ScoreType {
	case TypeRerank:
		parts = append(parts, fmt.Sprintf("reranked to %.3f from position %d", e.FinalScore, e.OriginalRank+1))
	case TypeFused:
		parts = append(parts, fmt.Sprintf("fused score %.4f", e.FinalScore))
	case TypeSparse:
		parts = append(parts, fmt.Sprintf("keyword score %.3f", e.FinalScore))
	case TypeDense:
		parts = append(parts, fmt.Sprintf("semantic score %.3f", e.FinalScore))
	default:
		parts = append(parts, "no valid score")
	}
	if tag := c.Sources.Tag(); tag != "" {
		parts = append(parts, "retrieved via "+tag)
	}
	if e.SparsePercent > 0 || e.DensePercent > 0 {
		parts = append(parts, fmt.Sprintf("sparse %.0f%% / dense %.0f%%", e.SparsePercent, e.DensePercent))
	}
	if len(e.MatchedKeywords) > 0 {
		parts = append(parts, "matched "+strings.Join(e.MatchedKeywords, ", "))
	}
	return strings.Join(parts, "; ")
}

// matchedKeywords reports query tokens longer than two characters that appear
// literally in the candidate text.
func matchedKeywords(query, text string) []string {
	lowerText := strings.ToLower(text)
	seen := map[string]struct{}{}
	var out []string
	for _, tok := range sparse.Tokenize(query) {
		if len(tok) <= 2 {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if strings.Contains(lowerText, tok) {
			out = append(out, tok)
		}
	}
	return out
}
