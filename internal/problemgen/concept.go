package problemgen

import "github.com/bem130/rubyquiz/internal/quiz"

// ConceptOption builds a wrong option for q from a row whose concept is
// conceptID. The row must pass the pattern filter and the group exclusion
// of the hide token. Its label must not be any phrasing of the correct
// answer nor a key in taken.
func (e *Engine) ConceptOption(q *Question, conceptID string, taken map[string]bool) (Option, bool) {
	if q == nil || conceptID == "" {
		return Option{}, false
	}
	p := e.def.Pattern(q.PatternID)
	if p == nil {
		return Option{}, false
	}
	ds := e.def.DataSets[p.DataSet]
	if ds == nil {
		return Option{}, false
	}
	hide, ok := p.Hide()
	if !ok {
		return Option{}, false
	}
	correctRow, ok := ds.Row(q.Meta.EntityID)
	if !ok {
		return Option{}, false
	}
	correct, ok := q.CorrectOption()
	if !ok {
		return Option{}, false
	}
	correctTexts := variantTexts(expandVariants(hide.Value, correctRow, e.config.MaxVariants))
	correctTexts[correct.DisplayKey] = true

	for _, row := range distractorPool(quiz.FilterRows(ds.Rows, p.Filter), correctRow, hide.GroupField()) {
		if row.ConceptID() != conceptID {
			continue
		}
		variants := expandVariants(hide.Value, row, e.config.MaxVariants)
		if variantTexts(variants)[correct.DisplayKey] {
			continue
		}
		for _, v := range variants {
			if v.text == "" || correctTexts[v.text] || taken[v.text] {
				continue
			}
			return makeOption(row, v, ds.ID, false), true
		}
	}
	return Option{}, false
}

// Serves reports whether the active mode can produce questions of the
// pattern.
func (e *Engine) Serves(patternID string) bool {
	for _, w := range e.weights {
		if w.PatternID == patternID && w.Weight > 0 {
			return true
		}
	}
	return false
}
