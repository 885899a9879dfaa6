package crag

import (
	"math"
	"sort"
	"strings"

	"github.com/searchfuse/searchfuse/schema"
)

// Action is a corrective step recommended by the evaluator.
type Action string

const (
	ActionNone            Action = "none"
	ActionRefineKnowledge Action = "refine_knowledge"
	ActionRefineQuery     Action = "refine_query"
	ActionExternalSearch  Action = "external_search"
)

// recommend maps an assessment to corrective actions. Excellent sets need
// nothing; good sets get a knowledge filter; moderate sets are refined on
// whichever axis is weaker (coverage vs noise); poor sets escalate, up to a
// combined external search plus query rewrite when even the best hit scored
// badly.
func (e *Evaluator) recommend(a Assessment) []Action {
	switch a.Level {
	case LevelExcellent:
		return []Action{ActionNone}
	case LevelGood:
		return []Action{ActionRefineKnowledge}
	case LevelModerate:
		if a.ResultCount < e.minResultCount {
			return []Action{ActionRefineQuery}
		}
		return []Action{ActionRefineKnowledge}
	default:
		if a.ResultCount == 0 {
			return []Action{ActionExternalSearch}
		}
		if a.TopScore < 0.3 {
			return []Action{ActionExternalSearch, ActionRefineQuery}
		}
		return []Action{ActionRefineQuery}
	}
}

// RefineKnowledge drops weak candidates using an adaptive score floor of
// max(mean - 0.5*stddev, 0.2) on the given field. It never cuts the set below
// min(3, len): filtering must not manufacture an empty result.
func RefineKnowledge(candidates []schema.Candidate, field schema.ScoreField) []schema.Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.Scores.Get(field).Value
	}
	mean, variance := meanVariance(scores)
	floor := math.Max(mean-0.5*math.Sqrt(variance), 0.2)

	keep := make([]schema.Candidate, 0, len(candidates))
	for i, c := range candidates {
		if scores[i] >= floor {
			keep = append(keep, c)
		}
	}
	minKeep := 3
	if len(candidates) < minKeep {
		minKeep = len(candidates)
	}
	if len(keep) < minKeep {
		// Top up with the best of the filtered-out remainder, preserving order.
		type ranked struct {
			idx   int
			score float64
		}
		all := make([]ranked, len(candidates))
		for i := range candidates {
			all[i] = ranked{idx: i, score: scores[i]}
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].score != all[j].score {
				return all[i].score > all[j].score
			}
			return candidates[all[i].idx].ID < candidates[all[j].idx].ID
		})
		keep = keep[:0]
		picked := make([]int, 0, minKeep)
		for _, r := range all[:minKeep] {
			picked = append(picked, r.idx)
		}
		sort.Ints(picked)
		for _, i := range picked {
			keep = append(keep, candidates[i])
		}
	}
	return keep
}

func actionNames(actions []Action) string {
	if len(actions) == 0 {
		return string(ActionNone)
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a)
	}
	return strings.Join(names, ",")
}
