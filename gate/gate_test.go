package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/schema"
)

func fusedCandidates(scores ...float64) []schema.Candidate {
	out := make([]schema.Candidate, len(scores))
	for i, s := range scores {
		out[i] = schema.Candidate{ID: string(rune('a' + i)), Scores: schema.Scores{Fused: schema.ScoreOf(s)}}
	}
	return out
}

func TestShouldSkipRerank(t *testing.T) {
	d := NewDecider(config.GateConfig{GapThreshold: 0.10, ConfidenceThreshold: 0.30, VarianceThreshold: 0.02}, nil)

	tests := []struct {
		name       string
		scores     []float64
		wantSkip   bool
		wantReason string
	}{
		{
			name:       "clear winner by gap",
			scores:     []float64{0.9, 0.5, 0.4},
			wantSkip:   true,
			wantReason: ReasonClearWinner,
		},
		{
			name:   "high confidence checked before variance",
			scores: []float64{0.31, 0.30, 0.29},
			// variance here is far below threshold too; gap then confidence
			// must win the reason.
			wantSkip:   true,
			wantReason: ReasonHighConfidence,
		},
		{
			name:       "low variance only",
			scores:     []float64{0.20, 0.19, 0.18},
			wantSkip:   true,
			wantReason: ReasonWellSeparated,
		},
		{
			name:       "all zero never skips",
			scores:     []float64{0, 0, 0},
			wantSkip:   false,
			wantReason: ReasonNoValidScores,
		},
		{
			name:       "single candidate never skips",
			scores:     []float64{0.99},
			wantSkip:   false,
			wantReason: ReasonInsufficientCandidates,
		},
		{
			name:       "empty set never skips",
			scores:     nil,
			wantSkip:   false,
			wantReason: ReasonInsufficientCandidates,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.ShouldSkipRerank(fusedCandidates(tt.scores...), schema.FieldFused)
			assert.Equal(t, tt.wantSkip, got.Skip)
			assert.True(t, strings.HasPrefix(got.Reason, tt.wantReason),
				"reason %q should start with %q", got.Reason, tt.wantReason)
		})
	}
}

func TestShouldSkipRerankAmbiguous(t *testing.T) {
	// Wide spread, low top score, high variance: rerank should run.
	d := NewDecider(config.GateConfig{GapThreshold: 0.50, ConfidenceThreshold: 0.90, VarianceThreshold: 0.0001}, nil)
	got := d.ShouldSkipRerank(fusedCandidates(0.40, 0.35, 0.10), schema.FieldFused)
	assert.False(t, got.Skip)
	assert.Contains(t, got.Reason, "ambiguous")
}

func TestShouldSkipRerankMetrics(t *testing.T) {
	d := NewDecider(config.GateConfig{}, nil)
	got := d.ShouldSkipRerank(fusedCandidates(0.8, 0.4), schema.FieldFused)
	assert.Equal(t, 0.8, got.Metrics.TopScore)
	assert.InDelta(t, 0.4, got.Metrics.TopGap, 1e-12)
	assert.InDelta(t, 0.6, got.Metrics.Mean, 1e-12)
	assert.Equal(t, 2, got.Metrics.CandidateCount)
}

func TestConfidenceLevel(t *testing.T) {
	d := NewDecider(config.GateConfig{GapThreshold: 0.10, ConfidenceThreshold: 0.30, VarianceThreshold: 0.02}, nil)

	tests := []struct {
		name string
		m    Metrics
		want ConfidenceLevel
	}{
		{"gap at threshold", Metrics{CandidateCount: 3, TopScore: 0.2, TopGap: 0.10}, ConfidenceHigh},
		{"top at threshold", Metrics{CandidateCount: 3, TopScore: 0.30, TopGap: 0.01, Variance: 0.5}, ConfidenceHigh},
		{"seventy percent band", Metrics{CandidateCount: 3, TopScore: 0.22, TopGap: 0.08, Variance: 0.5}, ConfidenceMedium},
		{"weak everything", Metrics{CandidateCount: 3, TopScore: 0.05, TopGap: 0.01, Variance: 0.5}, ConfidenceLow},
		{"empty distribution", Metrics{}, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.ConfidenceLevel(tt.m))
		})
	}
}
