package store

import (
	"context"
	"time"

	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
)

// Result is the graded outcome of one attempt.
type Result string

const (
	ResultStrong Result = "strong"
	ResultWeak   Result = "weak"
	ResultWrong  Result = "wrong"
	ResultIdk    Result = "idk"
)

// ParseResult maps a result name to a Result. "correct" is an alias of
// strong; anything unknown counts as wrong.
func ParseResult(s string) Result {
	switch Result(s) {
	case ResultStrong, "correct":
		return ResultStrong
	case ResultWeak:
		return ResultWeak
	case ResultIdk:
		return ResultIdk
	}
	return ResultWrong
}

// Correct reports whether the learner picked the right option.
func (r Result) Correct() bool {
	return r == ResultStrong || r == ResultWeak
}

// ScheduleState is the review state of a schedule entry.
type ScheduleState string

const (
	StateNew        ScheduleState = "new"
	StateLearning   ScheduleState = "learning"
	StateRelearning ScheduleState = "relearning"
	StateReview     ScheduleState = "review"
)

// DueStates lists the states ListDue scans, in serving order.
var DueStates = []ScheduleState{StateLearning, StateRelearning, StateReview}

// ScheduleKey identifies one schedule entry.
type ScheduleKey struct {
	UserID     string
	QuizID     string
	PatternID  string
	QuestionID string
}

// ScheduleEntry is the review state of one question for one user.
type ScheduleEntry struct {
	ScheduleKey
	State        ScheduleState
	DueAt        time.Time
	IntervalSec  float64
	Ease         float64
	StepIndex    int
	Streak       int
	Lapses       int
	DueFuzz      float64 // multiplier applied to the last interval
	LastResult   Result
	LastAnswerMs int64
	LastSeenAt   time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DueQuery selects due schedule entries for one user and quiz.
type DueQuery struct {
	UserID string
	QuizID string

	// Until is the inclusive upper bound on DueAt (now plus lookahead).
	Until time.Time

	// PerStateLimit caps the entries returned per state bucket; 0 means
	// unlimited.
	PerStateLimit int

	// States and PatternIDs optionally narrow the scan.
	States     []ScheduleState
	PatternIDs []string
}

// StateCount summarises the entries of one state.
type StateCount struct {
	Total int
	Due   int
}

// ScheduleRepo persists schedule entries.
type ScheduleRepo interface {
	// Get returns the entry, or nil if none exists.
	Get(ctx context.Context, key ScheduleKey) (*ScheduleEntry, error)

	// Update reads the entry (nil when missing), passes it to fn and stores
	// the entry fn returns, all in one transaction. A nil result from fn
	// leaves the row untouched.
	Update(ctx context.Context, key ScheduleKey, fn func(cur *ScheduleEntry) (*ScheduleEntry, error)) (*ScheduleEntry, error)

	// ListDue returns due entries bucket by bucket in DueStates order,
	// soonest first within a bucket.
	ListDue(ctx context.Context, q DueQuery) ([]ScheduleEntry, error)

	// Delete removes one entry.
	Delete(ctx context.Context, key ScheduleKey) error

	// DeleteQuiz removes every entry of a user for a quiz and returns how
	// many were removed.
	DeleteQuiz(ctx context.Context, userID, quizID string) (int, error)

	// CountByState counts entries per state and how many are due at now.
	CountByState(ctx context.Context, userID, quizID string, now time.Time) (map[ScheduleState]StateCount, error)
}

// QuestionRepo stores generated questions so they can be replayed.
type QuestionRepo interface {
	// Save stores q under (quizID, q.ID), replacing an older snapshot.
	Save(ctx context.Context, quizID string, q *problemgen.Question) error

	// Get returns the snapshot, or nil if none exists.
	Get(ctx context.Context, quizID, questionID string) (*problemgen.Question, error)

	// ListForQuiz returns up to limit snapshots ordered by question id;
	// limit 0 means all.
	ListForQuiz(ctx context.Context, quizID string, limit int) ([]*problemgen.Question, error)

	// FindByConcept returns snapshots whose correct option teaches conceptID.
	FindByConcept(ctx context.Context, quizID, conceptID string, limit int) ([]*problemgen.Question, error)

	Delete(ctx context.Context, quizID, questionID string) error
}

// ConfusionStat counts how often wrongConceptID distracted a learner from
// ConceptID.
type ConfusionStat struct {
	UserID         string
	ConceptID      string
	WrongConceptID string
	Shown          int
	Chosen         int
	IdkNear        int
	Score          float64
	RecentSessions float64
	LastShownAt    time.Time
	UpdatedAt      time.Time
}

// ConfusionScore is the smoothed confusion rate:
// (chosen + idkNear*0.25 + 1) / (shown + 4).
func ConfusionScore(shown, chosen, idkNear int) float64 {
	return (float64(chosen) + float64(idkNear)*0.25 + 1) / (float64(shown) + 4)
}

// AttemptOutcome is what the confusion and concept stats learn from.
type AttemptOutcome struct {
	UserID            string
	CorrectConceptID  string
	OptionConceptIDs  []string
	SelectedConceptID string

	// NearestConceptID is the option the learner leaned towards when
	// answering "I don't know".
	NearestConceptID string
	Result           Result
}

// TopPairsOptions filters TopPairs.
type TopPairsOptions struct {
	MinScore  float64
	Limit     int
	MaxRecent float64
}

// DefaultTopPairsOptions returns minScore 0.6, limit 5, maxRecent 2.
func DefaultTopPairsOptions() TopPairsOptions {
	return TopPairsOptions{MinScore: 0.6, Limit: 5, MaxRecent: 2}
}

// ConfusionRepo persists confusion stats.
type ConfusionRepo interface {
	UpdateFromAttempt(ctx context.Context, o AttemptOutcome) error
	ForConcept(ctx context.Context, userID, conceptID string, limit int) ([]ConfusionStat, error)
	TopPairs(ctx context.Context, userID string, opts TopPairsOptions) ([]ConfusionStat, error)

	// MarkScheduled damps a pair after it has been used as a distractor.
	MarkScheduled(ctx context.Context, userID, conceptID, wrongConceptID string) error

	// DecayRecentSessions multiplies every recent-session counter of the
	// user by factor.
	DecayRecentSessions(ctx context.Context, userID string, factor float64) error
}

// ConceptStat tracks how uncertain a learner is about a concept.
type ConceptStat struct {
	UserID         string
	ConceptID      string
	UncertaintyEMA float64
	RecentIdk      float64
	UpdatedAt      time.Time
}

// ConceptRepo persists concept stats.
type ConceptRepo interface {
	UpdateFromAttempt(ctx context.Context, o AttemptOutcome) error
	Get(ctx context.Context, userID, conceptID string) (*ConceptStat, error)
	Map(ctx context.Context, userID string, conceptIDs []string) (map[string]ConceptStat, error)
	ListUncertain(ctx context.Context, userID string, minScore float64, limit int) ([]ConceptStat, error)
}

// SessionRecord is one study or test session.
type SessionRecord struct {
	ID        string
	UserID    string
	QuizID    string
	QuizTitle string
	Mode      string
	ModeID    string
	Seed      string
	Config    map[string]any
	StartedAt time.Time
	EndedAt   time.Time
	Summary   map[string]any
}

// AttemptRecord is one answered question.
type AttemptRecord struct {
	ID                int64
	SessionID         string
	UserID            string
	QuizID            string
	PatternID         string
	QuestionID        string
	ConceptID         string
	SelectedConceptID string
	Result            Result
	Correct           bool
	AnswerMs          int64
	Stage             string
	CreatedAt         time.Time
}

// UserStats aggregates a user's attempts.
type UserStats struct {
	TotalAttempts   int
	CorrectAttempts int
	WeakAttempts    int
	IdkCount        int
}

// SessionRepo persists sessions and attempts.
type SessionRepo interface {
	StartSession(ctx context.Context, rec *SessionRecord) error
	FinishSession(ctx context.Context, sessionID string, summary map[string]any) error
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)
	AddAttempt(ctx context.Context, a *AttemptRecord) error
	ListAttempts(ctx context.Context, sessionID string) ([]AttemptRecord, error)

	// UserStats aggregates attempts; an empty quizID covers every quiz.
	UserStats(ctx context.Context, userID, quizID string) (UserStats, error)
}

// SyncResult reports what a package sync invalidated.
type SyncResult struct {
	FileKey       string
	Created       bool
	ResetAll      bool
	ChangedRowIDs []string
}

// PackageRepo tracks quiz file revisions so stale learner data can be
// purged when content changes.
type PackageRepo interface {
	// Sync records the current rows and patterns of a quiz file. Rows that
	// changed or disappeared lose their schedule entries, snapshots,
	// attempts and concept stats; a changed pattern set resets the quiz.
	Sync(ctx context.Context, fileKey string, ds *quiz.DataSet, patterns []*quiz.Pattern) (*SyncResult, error)

	// PurgeQuiz removes every learner record of a quiz and its revision.
	PurgeQuiz(ctx context.Context, fileKey string) error
}
