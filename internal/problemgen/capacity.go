package problemgen

import "github.com/bem130/rubyquiz/internal/quiz"

// PatternCapacity estimates how many distinct questions a pattern can
// produce: the number of matching rows with a non-empty answer, or 0 when
// fewer than two distinct answer texts exist (no distractor is possible).
func (e *Engine) PatternCapacity(patternID string) int {
	p := e.def.Pattern(patternID)
	if p == nil {
		return 0
	}
	ds := e.def.DataSets[p.DataSet]
	hide, ok := p.Hide()
	if ds == nil || !ok {
		return 0
	}

	texts := make(map[string]bool)
	usable := 0
	for _, row := range quiz.FilterRows(ds.Rows, p.Filter) {
		found := false
		for _, v := range expandVariants(hide.Value, row, e.config.MaxVariants) {
			if v.text != "" {
				texts[v.text] = true
				found = true
			}
		}
		if found {
			usable++
		}
	}
	if len(texts) < 2 {
		return 0
	}
	return usable
}

// Capacities returns PatternCapacity for every pattern.
func (e *Engine) Capacities() map[string]int {
	out := make(map[string]int, len(e.def.Patterns))
	for _, p := range e.def.Patterns {
		out[p.ID] = e.PatternCapacity(p.ID)
	}
	return out
}

// EstimateCapacity sums the capacity of every pattern used by some mode.
func EstimateCapacity(def *quiz.Definition) int {
	e := New(def, DefaultConfig())
	seen := make(map[string]bool)
	total := 0
	for _, m := range def.Modes {
		for _, w := range m.PatternWeights {
			if seen[w.PatternID] {
				continue
			}
			seen[w.PatternID] = true
			total += e.PatternCapacity(w.PatternID)
		}
	}
	return total
}
