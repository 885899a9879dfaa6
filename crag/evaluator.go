package crag

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/searchfuse/searchfuse/common/logging"
	"github.com/searchfuse/searchfuse/config"
	"github.com/searchfuse/searchfuse/schema"
)

// Level classifies an assessed result set.
type Level string

const (
	LevelExcellent Level = "excellent"
	LevelGood      Level = "good"
	LevelModerate  Level = "moderate"
	LevelPoor      Level = "poor"
)

// Assessment is the quality verdict for one result set. It is pure data: the
// caller decides whether and how to act on the recommended actions.
type Assessment struct {
	Confidence  float64  `json:"confidence"`
	Level       Level    `json:"level"`
	TopScore    float64  `json:"top_score"`
	AvgScore    float64  `json:"avg_score"`
	Variance    float64  `json:"variance"`
	ResultCount int      `json:"result_count"`
	Actions     []Action `json:"actions,omitempty"`
	Reasoning   string   `json:"reasoning"`
}

// Improvement compares assessments before and after a corrective pass.
type Improvement struct {
	BeforeConfidence float64 `json:"before_confidence"`
	AfterConfidence  float64 `json:"after_confidence"`
	Delta            float64 `json:"delta"`
	BeforeCount      int     `json:"before_count"`
	AfterCount       int     `json:"after_count"`
}

// Evaluator assesses result-set quality and recommends corrective actions.
// Confidence blends the score distribution with result coverage:
//
//	0.5*top + 0.3*avg + 0.1*max(1-variance, 0) + 0.1*min(count/minCount, 1)
//
// clamped to [0,1]. Level boundaries are inclusive lower bounds.
type Evaluator struct {
	excellent      float64
	good           float64
	moderate       float64
	minResultCount int
	log            *slog.Logger
}

// NewEvaluator builds an evaluator from config (defaults: excellent 0.8,
// good 0.6, moderate 0.4, min result count 3).
func NewEvaluator(cfg config.QualityConfig, log *slog.Logger) *Evaluator {
	if log == nil {
		log = logging.Discard()
	}
	e := &Evaluator{
		excellent:      cfg.Excellent,
		good:           cfg.Good,
		moderate:       cfg.Moderate,
		minResultCount: cfg.MinResultCount,
		log:            log,
	}
	if e.excellent <= 0 {
		e.excellent = 0.8
	}
	if e.good <= 0 {
		e.good = 0.6
	}
	if e.moderate <= 0 {
		e.moderate = 0.4
	}
	if e.minResultCount <= 0 {
		e.minResultCount = 3
	}
	return e
}

// Evaluate assesses the candidate set on the given score field.
func (e *Evaluator) Evaluate(candidates []schema.Candidate, field schema.ScoreField) Assessment {
	a := Assessment{ResultCount: len(candidates)}
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Scores.Get(field).Value
		if scores[i] > a.TopScore {
			a.TopScore = scores[i]
		}
	}
	a.AvgScore, a.Variance = meanVariance(scores)

	coverage := float64(len(candidates)) / float64(e.minResultCount)
	if coverage > 1 {
		coverage = 1
	}
	a.Confidence = 0.5*a.TopScore + 0.3*a.AvgScore + 0.1*math.Max(1-a.Variance, 0) + 0.1*coverage
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}

	a.Level = e.classify(a.Confidence)
	a.Actions = e.recommend(a)
	a.Reasoning = e.explainAssessment(a)
	e.log.Debug("quality assessed",
		"confidence", a.Confidence, "level", string(a.Level),
		"top", a.TopScore, "avg", a.AvgScore, "count", a.ResultCount,
		"actions", actionNames(a.Actions))
	return a
}

// classify maps a confidence value onto a level. Boundaries are inclusive
// lower bounds: a confidence exactly at a threshold earns that level.
func (e *Evaluator) classify(confidence float64) Level {
	switch {
	case confidence >= e.excellent:
		return LevelExcellent
	case confidence >= e.good:
		return LevelGood
	case confidence >= e.moderate:
		return LevelModerate
	default:
		return LevelPoor
	}
}

// Improvement reports the confidence movement across a corrective pass.
func (e *Evaluator) Improvement(before, after Assessment) Improvement {
	return Improvement{
		BeforeConfidence: before.Confidence,
		AfterConfidence:  after.Confidence,
		Delta:            after.Confidence - before.Confidence,
		BeforeCount:      before.ResultCount,
		AfterCount:       after.ResultCount,
	}
}

func (e *Evaluator) explainAssessment(a Assessment) string {
	return fmt.Sprintf(
		"confidence %.3f (%s): top=%.3f avg=%.3f variance=%.4f count=%d/%d; recommended: %s",
		a.Confidence, a.Level, a.TopScore, a.AvgScore, a.Variance,
		a.ResultCount, e.minResultCount, actionNames(a.Actions))
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
