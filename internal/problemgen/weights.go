package problemgen

import "github.com/bem130/rubyquiz/internal/quiz"

type weightedPattern struct {
	pattern *quiz.Pattern
	bound   float64
}

// weightTable is a cumulative weight table over patterns.
type weightTable struct {
	entries []weightedPattern
	total   float64
}

// buildWeightTable keeps positive weights of known patterns in order.
func buildWeightTable(def *quiz.Definition, weights []quiz.PatternWeight) weightTable {
	var t weightTable
	for _, w := range weights {
		if w.Weight <= 0 {
			continue
		}
		p := def.Pattern(w.PatternID)
		if p == nil {
			continue
		}
		t.total += w.Weight
		t.entries = append(t.entries, weightedPattern{pattern: p, bound: t.total})
	}
	return t
}

func uniformWeightTable(patterns []*quiz.Pattern) weightTable {
	var t weightTable
	for _, p := range patterns {
		t.total++
		t.entries = append(t.entries, weightedPattern{pattern: p, bound: t.total})
	}
	return t
}

// pick returns the first entry whose cumulative bound is >= the draw.
func (t weightTable) pick(r Rand) *quiz.Pattern {
	if len(t.entries) == 0 || t.total <= 0 {
		return nil
	}
	draw := r.Float64() * t.total
	for _, e := range t.entries {
		if e.bound >= draw {
			return e.pattern
		}
	}
	return t.entries[len(t.entries)-1].pattern
}
