package session

import (
	"time"

	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/store"
)

// MaxGenerateAttempts bounds how many candidates a runner draws from the
// engine for one Next call.
const MaxGenerateAttempts = 60

// Stage says why a question was served.
type Stage string

const (
	StageLearning   Stage = "learning"
	StageRelearning Stage = "relearning"
	StageReview     Stage = "review"
	StageNew        Stage = "new"
	StageRepair     Stage = "repair" // targeted confusion or uncertainty review
	StageTest       Stage = "test"
)

// stageFor maps a due schedule state to the stage it is served under.
func stageFor(st store.ScheduleState) Stage {
	switch st {
	case store.StateLearning:
		return StageLearning
	case store.StateRelearning:
		return StageRelearning
	case store.StateReview:
		return StageReview
	}
	return StageNew
}

// Item is one served question.
type Item struct {
	Key      store.ScheduleKey
	Question *problemgen.Question
	Stage    Stage
	ServedAt time.Time
}

// Outcome is what a runner did with an answer.
type Outcome struct {
	Result  store.Result
	Correct bool

	// Entry is the updated schedule entry, nil for test sessions.
	Entry   *store.ScheduleEntry
	Attempt store.AttemptRecord
}

// QuestionKey is the session-wide identity of a question:
// "<quizId>::<questionId>". Question ids alone repeat across generations.
func QuestionKey(quizID, questionID string) string {
	return quizID + "::" + questionID
}

func keyFor(userID, quizID string, q *problemgen.Question) store.ScheduleKey {
	return store.ScheduleKey{UserID: userID, QuizID: quizID, PatternID: q.PatternID, QuestionID: q.ID}
}

// seenSet tracks question keys already served in a session.
type seenSet map[string]bool

func (s seenSet) has(key string) bool { return s[key] }
func (s seenSet) add(key string)      { s[key] = true }
