package problemgen

import "github.com/bem130/rubyquiz/internal/quiz"

// Question is one generated multiple-choice question.
type Question struct {
	// ID is "<patternId>::<correctRowId>". It is not unique across repeated
	// generations of the same pattern and row.
	ID string `json:"id"`

	// PatternID is the pattern the question was built from.
	PatternID string `json:"patternId"`

	// Tokens is the pattern template. Key tokens resolve against the row
	// named by Meta.EntityID; the hide token is the answer slot.
	Tokens quiz.Tokens `json:"tokens"`

	// Tips are shown after answering.
	Tips []quiz.Tip `json:"tips,omitempty"`

	// Answers holds one part per hide token. The engine always produces
	// exactly one.
	Answers []AnswerPart `json:"answers"`

	Meta QuestionMeta `json:"meta"`
}

// QuestionMeta identifies the row a question asks about.
type QuestionMeta struct {
	DataSetID string `json:"dataSetId"`
	EntityID  string `json:"entityId"`
}

// AnswerPart is the choice list for one hide slot.
type AnswerPart struct {
	ID           string   `json:"id"`
	Options      []Option `json:"options"`
	CorrectIndex int      `json:"correctIndex"`

	// UserSelectedIndex is nil until the learner picks an option.
	UserSelectedIndex *int `json:"userSelectedIndex,omitempty"`
}

// Option is one choice.
type Option struct {
	EntityID  string `json:"entityId"`
	ConceptID string `json:"conceptId"`
	IsCorrect bool   `json:"isCorrect"`

	// DisplayKey is the flattened label text, used for deduplication.
	DisplayKey string `json:"displayKey"`

	// LabelTokens render the option; key tokens resolve against the
	// option's own row.
	LabelTokens quiz.Tokens `json:"labelTokens"`
	DataSetID   string      `json:"dataSetId"`
}

// CorrectOption returns the correct option of the first answer part.
func (q *Question) CorrectOption() (Option, bool) {
	if len(q.Answers) == 0 {
		return Option{}, false
	}
	a := q.Answers[0]
	if a.CorrectIndex < 0 || a.CorrectIndex >= len(a.Options) {
		return Option{}, false
	}
	return a.Options[a.CorrectIndex], true
}

// ConceptID is the concept of the correct option.
func (q *Question) ConceptID() string {
	if opt, ok := q.CorrectOption(); ok {
		return opt.ConceptID
	}
	return ""
}

// OptionConceptIDs lists the concept ids of every option in order.
func (q *Question) OptionConceptIDs() []string {
	var ids []string
	for _, a := range q.Answers {
		for _, o := range a.Options {
			ids = append(ids, o.ConceptID)
		}
	}
	return ids
}
