package problemgen

import "fmt"

// SelectionResult summarises the answer state after a selection.
type SelectionResult struct {
	AllSelected            bool
	FullyCorrect           bool
	LastSelectionIsCorrect bool
}

// Select records the learner's choice for one answer part.
func (q *Question) Select(answerIndex, optionIndex int) (SelectionResult, error) {
	if answerIndex < 0 || answerIndex >= len(q.Answers) {
		return SelectionResult{}, fmt.Errorf("answer index %d out of range", answerIndex)
	}
	part := &q.Answers[answerIndex]
	if optionIndex < 0 || optionIndex >= len(part.Options) {
		return SelectionResult{}, fmt.Errorf("option index %d out of range", optionIndex)
	}
	idx := optionIndex
	part.UserSelectedIndex = &idx

	res := SelectionResult{
		AllSelected:            true,
		FullyCorrect:           true,
		LastSelectionIsCorrect: optionIndex == part.CorrectIndex,
	}
	for _, a := range q.Answers {
		if a.UserSelectedIndex == nil {
			res.AllSelected = false
			res.FullyCorrect = false
			continue
		}
		if *a.UserSelectedIndex != a.CorrectIndex {
			res.FullyCorrect = false
		}
	}
	return res, nil
}

// ResetSelections clears every recorded choice.
func (q *Question) ResetSelections() {
	for i := range q.Answers {
		q.Answers[i].UserSelectedIndex = nil
	}
}

// SelectedOption returns the chosen option of an answer part, if any.
func (a AnswerPart) SelectedOption() (Option, bool) {
	if a.UserSelectedIndex == nil {
		return Option{}, false
	}
	i := *a.UserSelectedIndex
	if i < 0 || i >= len(a.Options) {
		return Option{}, false
	}
	return a.Options[i], true
}
