package gate

import (
	"fmt"
	"log/slog"

	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/schema"
)

// Skip reasons surfaced in decisions and response metadata.
const (
	ReasonClearWinner            = "clear_winner"
	ReasonHighConfidence         = "high_confidence"
	ReasonWellSeparated          = "well_separated"
	ReasonNoValidScores          = "no_valid_scores"
	ReasonInsufficientCandidates = "insufficient_candidates"
)

// ConfidenceLevel classifies how unambiguous the current ranking is. It is
// used for explanation and telemetry, never for control flow.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// Metrics describes the score distribution the decision was made from.
type Metrics struct {
	TopScore       float64 `json:"top_score"`
	TopGap         float64 `json:"top_gap"`
	Mean           float64 `json:"mean"`
	Variance       float64 `json:"variance"`
	CandidateCount int     `json:"candidate_count"`
}

// Decision is the outcome of the rerank gate.
type Decision struct {
	Skip    bool    `json:"skip"`
	Reason  string  `json:"reason"`
	Metrics Metrics `json:"metrics"`
}

// Decider inspects the fused score distribution and decides whether the
// expensive pairwise reranker is worth running. The reranker is the dominant
// cost driver of the pipeline, so this gate is the primary latency control.
type Decider struct {
	gapThreshold        float64
	confidenceThreshold float64
	varianceThreshold   float64
	log                 *slog.Logger
}

// NewDecider builds a decider with the configured thresholds (defaults:
// gap 0.10, confidence 0.30, variance 0.02). The defaults are empirical and
// should be recalibrated per corpus.
func NewDecider(cfg config.GateConfig, log *slog.Logger) *Decider {
	if log == nil {
		log = logging.Discard()
	}
	gap := cfg.GapThreshold
	if gap <= 0 {
		gap = 0.10
	}
	conf := cfg.ConfidenceThreshold
	if conf <= 0 {
		conf = 0.30
	}
	variance := cfg.VarianceThreshold
	if variance <= 0 {
		variance = 0.02
	}
	return &Decider{gapThreshold: gap, confidenceThreshold: conf, varianceThreshold: variance, log: log}
}

// ShouldSkipRerank decides whether to bypass the rerank stage. Fewer than two
// candidates or an all-zero score distribution never skip: there is not
// enough signal to call the ranking unambiguous.
func (d *Decider) ShouldSkipRerank(candidates []schema.Candidate, field schema.ScoreField) Decision {
	m := Metrics{CandidateCount: len(candidates)}
	if len(candidates) < 2 {
		if len(candidates) == 1 {
			m.TopScore = candidates[0].Scores.Get(field).Value
		}
		return Decision{Skip: false, Reason: ReasonInsufficientCandidates, Metrics: m}
	}

	scores := make([]float64, len(candidates))
	allZero := true
	for i, c := range candidates {
		scores[i] = c.Scores.Get(field).Value
		if scores[i] != 0 {
			allZero = false
		}
	}
	m.TopScore = scores[0]
	m.TopGap = scores[0] - scores[1]
	m.Mean, m.Variance = meanVariance(scores)

	if allZero {
		return Decision{Skip: false, Reason: ReasonNoValidScores, Metrics: m}
	}

	switch {
	case m.TopGap > d.gapThreshold:
		d.log.Debug("rerank skipped", "reason", ReasonClearWinner, "gap", m.TopGap)
		return Decision{Skip: true, Reason: fmt.Sprintf("%s:gap=%.4f>%.4f", ReasonClearWinner, m.TopGap, d.gapThreshold), Metrics: m}
	case m.TopScore > d.confidenceThreshold:
		d.log.Debug("rerank skipped", "reason", ReasonHighConfidence, "top", m.TopScore)
		return Decision{Skip: true, Reason: fmt.Sprintf("%s:top=%.4f>%.4f", ReasonHighConfidence, m.TopScore, d.confidenceThreshold), Metrics: m}
	case m.Variance < d.varianceThreshold:
		d.log.Debug("rerank skipped", "reason", ReasonWellSeparated, "variance", m.Variance)
		return Decision{Skip: true, Reason: fmt.Sprintf("%s:variance=%.6f<%.4f", ReasonWellSeparated, m.Variance, d.varianceThreshold), Metrics: m}
	}
	return Decision{Skip: false, Reason: fmt.Sprintf("ambiguous:gap=%.4f,top=%.4f,variance=%.6f", m.TopGap, m.TopScore, m.Variance), Metrics: m}
}

// ConfidenceLevel classifies the distribution against the same thresholds:
// high at the full threshold, medium at 70% of it, otherwise low.
func (d *Decider) ConfidenceLevel(m Metrics) ConfidenceLevel {
	if m.CandidateCount == 0 || (m.TopScore == 0 && m.TopGap == 0) {
		return ConfidenceLow
	}
	switch {
	case m.TopGap >= d.gapThreshold || m.TopScore >= d.confidenceThreshold || (m.Variance > 0 && m.Variance <= d.varianceThreshold):
		return ConfidenceHigh
	case m.TopGap >= 0.7*d.gapThreshold || m.TopScore >= 0.7*d.confidenceThreshold || (m.Variance > 0 && m.Variance <= d.varianceThreshold/0.7):
		return ConfidenceMedium
	}
	return ConfidenceLow
}

func meanVariance(scores []float64) (mean, variance float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))
	return mean, variance
}
