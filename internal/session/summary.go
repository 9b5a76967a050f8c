package session

import (
	"time"

	"github.com/bem130/rubyquiz/internal/store"
)

// Summary holds the data displayed at the end of a session.
type Summary struct {
	SessionID string
	Duration  time.Duration
	Attempts  int
	Correct   int
	Accuracy  float64
	ByResult  map[store.Result]int
	ByStage   map[Stage]int
}

// BuildSummary aggregates the attempts of one session.
func BuildSummary(sessionID string, attempts []store.AttemptRecord, elapsed time.Duration) Summary {
	s := Summary{
		SessionID: sessionID,
		Duration:  elapsed,
		ByResult:  make(map[store.Result]int),
		ByStage:   make(map[Stage]int),
	}
	for _, a := range attempts {
		s.Attempts++
		if a.Correct {
			s.Correct++
		}
		s.ByResult[a.Result]++
		s.ByStage[Stage(a.Stage)]++
	}
	if s.Attempts > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Attempts)
	}
	return s
}

// Map flattens the summary for storage with the session record.
func (s Summary) Map() map[string]any {
	byResult := make(map[string]any, len(s.ByResult))
	for k, v := range s.ByResult {
		byResult[string(k)] = v
	}
	byStage := make(map[string]any, len(s.ByStage))
	for k, v := range s.ByStage {
		byStage[string(k)] = v
	}
	return map[string]any{
		"attempts":    s.Attempts,
		"correct":     s.Correct,
		"accuracy":    s.Accuracy,
		"duration_ms": s.Duration.Milliseconds(),
		"by_result":   byResult,
		"by_stage":    byStage,
	}
}
