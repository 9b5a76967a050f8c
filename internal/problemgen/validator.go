package problemgen

import "fmt"

// Validator rejects built questions that break an invariant. The engine
// skips a rejected question and tries the next pattern.
type Validator interface {
	Name() string
	Validate(q *Question) *ValidationError
}

// ValidationError records which check rejected which question.
type ValidationError struct {
	Validator  string
	QuestionID string
	Message    string
}

func (e *ValidationError) Error() string {
	if e.QuestionID == "" {
		return fmt.Sprintf("%s check: %s", e.Validator, e.Message)
	}
	return fmt.Sprintf("%s check rejected %s: %s", e.Validator, e.QuestionID, e.Message)
}
