package session

import (
	"fmt"

	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/store"
)

// Answer is a learner's response to the first answer part of a question.
type Answer struct {
	// Option is the chosen option index. With IDK set it names the option
	// the learner leaned towards, or -1 for none.
	Option int

	// IDK means "I don't know".
	IDK bool

	// Unsure downgrades a correct answer to weak.
	Unsure bool

	AnswerMs int64
}

// Grade records the selection on q and returns the result it earns.
func Grade(q *problemgen.Question, ans Answer) (store.Result, error) {
	if len(q.Answers) == 0 {
		return "", fmt.Errorf("grade %s: question has no answer parts", q.ID)
	}
	if ans.IDK || ans.Option < 0 {
		return store.ResultIdk, nil
	}
	sel, err := q.Select(0, ans.Option)
	if err != nil {
		return "", fmt.Errorf("grade %s: %w", q.ID, err)
	}
	switch {
	case !sel.LastSelectionIsCorrect:
		return store.ResultWrong, nil
	case ans.Unsure:
		return store.ResultWeak, nil
	}
	return store.ResultStrong, nil
}

// outcomeFor builds the stats update for a graded answer.
func outcomeFor(userID string, q *problemgen.Question, ans Answer, result store.Result) store.AttemptOutcome {
	o := store.AttemptOutcome{
		UserID:           userID,
		CorrectConceptID: q.ConceptID(),
		OptionConceptIDs: q.OptionConceptIDs(),
		Result:           result,
	}
	if len(q.Answers) > 0 && ans.Option >= 0 && ans.Option < len(q.Answers[0].Options) {
		concept := q.Answers[0].Options[ans.Option].ConceptID
		if result == store.ResultIdk {
			o.NearestConceptID = concept
		} else {
			o.SelectedConceptID = concept
		}
	}
	return o
}
