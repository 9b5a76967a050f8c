package problemgen

// StructuralValidator checks the option invariants: at least one
// distractor, exactly one correct option at CorrectIndex and no two
// options with the same label text.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *Question) *ValidationError {
	if len(q.Answers) == 0 {
		return &ValidationError{Validator: v.Name(), Message: "question has no answer part"}
	}
	for _, a := range q.Answers {
		if len(a.Options) < 2 {
			return &ValidationError{Validator: v.Name(), Message: "answer needs at least one distractor"}
		}
		if a.CorrectIndex < 0 || a.CorrectIndex >= len(a.Options) {
			return &ValidationError{Validator: v.Name(), Message: "correct index out of range"}
		}
		seen := make(map[string]bool, len(a.Options))
		correct := 0
		for i, o := range a.Options {
			if o.IsCorrect {
				correct++
				if i != a.CorrectIndex {
					return &ValidationError{Validator: v.Name(), Message: "correct index does not point at the correct option"}
				}
			}
			if seen[o.DisplayKey] {
				return &ValidationError{Validator: v.Name(), Message: "duplicate option text " + o.DisplayKey}
			}
			seen[o.DisplayKey] = true
		}
		if correct != 1 {
			return &ValidationError{Validator: v.Name(), Message: "answer must have exactly one correct option"}
		}
	}
	return nil
}
