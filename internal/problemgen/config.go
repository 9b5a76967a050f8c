package problemgen

// Config controls the generation engine.
type Config struct {
	// MaxConsecutiveSkips is how many pattern attempts in a row may fail
	// before Generate gives up with ErrNoQuestionsAvailable.
	MaxConsecutiveSkips int

	// DistractorCount is the target number of distractors. Fewer are
	// accepted when the pool runs out, but never zero.
	DistractorCount int

	// MinSampleBudget and SamplesPerCandidate bound distractor sampling:
	// max(MinSampleBudget, len(pool)*SamplesPerCandidate) draws.
	MinSampleBudget     int
	SamplesPerCandidate int

	// MaxVariants caps listkey expansion per row.
	MaxVariants int

	// Validators run on every built question in order; a failure counts
	// as a skip.
	Validators []Validator
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		MaxConsecutiveSkips: 20,
		DistractorCount:     3,
		MinSampleBudget:     40,
		SamplesPerCandidate: 4,
		MaxVariants:         64,
		Validators: []Validator{
			&StructuralValidator{},
		},
	}
}
