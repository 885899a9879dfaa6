package fusion

import (
	"log/slog"
	"sort"

	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/schema"
)

// Source labels one ranked input list.
type Source string

const (
	SourceSparse Source = "sparse"
	SourceDense  Source = "dense"
)

// Input is one ranked list with its fusion weight.
type Input struct {
	Source  Source
	Weight  float64
	Results []schema.SearchResult
}

// Engine merges ranked lists with weighted Reciprocal Rank Fusion. RRF is
// rank-based, so sparse and dense scores never need to share a numeric
// scale: rank position dominates raw magnitude.
type Engine struct {
	k            int
	denseWeight  float64
	sparseWeight float64
	log          *slog.Logger
}

// NewEngine builds a fusion engine from config (k=60, dense 0.6 / sparse 0.4
// by default).
func NewEngine(cfg config.FusionConfig, log *slog.Logger) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	k := cfg.K
	if k <= 0 {
		k = 60
	}
	// Weights default independently: setting only one never silences the
	// other source.
	dw := cfg.DenseWeight
	if dw <= 0 {
		dw = 0.6
	}
	sw := cfg.SparseWeight
	if sw <= 0 {
		sw = 0.4
	}
	return &Engine{k: k, denseWeight: dw, sparseWeight: sw, log: log}
}

// FuseSources merges the sparse and dense lists with the configured weights.
func (e *Engine) FuseSources(sparseList, denseList []schema.SearchResult) []schema.Candidate {
	return Fuse([]Input{
		{Source: SourceSparse, Weight: e.sparseWeight, Results: sparseList},
		{Source: SourceDense, Weight: e.denseWeight, Results: denseList},
	}, e.k)
}

// Fuse accumulates weighted RRF contributions per record ID across the input
// lists. Each item contributes weight/(k+rank+1) with rank its 0-based list
// position; contributions for the same ID are summed, and the candidate is
// tagged with every source that produced it. Output is sorted by fused score
// descending with ties broken by ascending ID, never by map iteration order.
func Fuse(inputs []Input, k int) []schema.Candidate {
	if k <= 0 {
		k = 60
	}
	byID := make(map[string]*schema.Candidate)
	for _, in := range inputs {
		for rank, item := range in.Results {
			id := item.Document.ID
			if id == "" {
				continue
			}
			cand, ok := byID[id]
			if !ok {
				c := schema.FromResult(item)
				byID[id] = &c
				cand = byID[id]
			}
			if cand.Text == "" {
				cand.Text = item.Document.Content
			}
			contribution := in.Weight / float64(k+rank+1)
			cand.Scores.Fused = schema.ScoreOf(cand.Scores.Fused.Value + contribution)
			switch in.Source {
			case SourceSparse:
				cand.Sources.Sparse = true
				cand.Scores.Sparse = schema.ScoreOf(item.Score)
			case SourceDense:
				cand.Sources.Dense = true
				cand.Scores.Dense = schema.ScoreOf(item.Score)
			}
		}
	}

	out := make([]schema.Candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scores.Fused.Value != out[j].Scores.Fused.Value {
			return out[i].Scores.Fused.Value > out[j].Scores.Fused.Value
		}
		return out[i].ID < out[j].ID
	})
	return out
}
