package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bem130/rubyquiz/internal/logger"
	"github.com/bem130/rubyquiz/internal/store"
)

// Recorder persists one session and its attempts. Attempt writes are
// best effort: a failure is logged and the attempt still counts towards
// the summary.
type Recorder struct {
	repo store.SessionRepo
	log  *logger.Logger
	now  func() time.Time

	rec      store.SessionRecord
	attempts []store.AttemptRecord
}

// NewRecorder creates a recorder. repo may be nil to keep the session in
// memory only.
func NewRecorder(repo store.SessionRepo, log *logger.Logger, now func() time.Time) *Recorder {
	if log == nil {
		log = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{repo: repo, log: log, now: now}
}

// Start assigns a new session id and stores the session record.
func (r *Recorder) Start(ctx context.Context, rec store.SessionRecord) (string, error) {
	rec.ID = uuid.New().String()
	rec.StartedAt = r.now()
	r.rec = rec
	r.attempts = nil
	if r.repo == nil {
		return rec.ID, nil
	}
	if err := r.repo.StartSession(ctx, &r.rec); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return rec.ID, nil
}

// SessionID returns the id assigned by Start.
func (r *Recorder) SessionID() string { return r.rec.ID }

// Record stores one attempt and returns it with its session fields set.
func (r *Recorder) Record(ctx context.Context, a store.AttemptRecord) store.AttemptRecord {
	a.SessionID = r.rec.ID
	a.UserID = r.rec.UserID
	a.QuizID = r.rec.QuizID
	a.CreatedAt = r.now()
	if r.repo != nil {
		if err := r.repo.AddAttempt(ctx, &a); err != nil {
			r.log.Warn("save attempt", "session_id", a.SessionID, "qid", a.QuestionID, "error", err)
		}
	}
	r.attempts = append(r.attempts, a)
	return a
}

// Attempts returns the attempts recorded so far.
func (r *Recorder) Attempts() []store.AttemptRecord { return r.attempts }

// Summary aggregates the attempts recorded so far.
func (r *Recorder) Summary() Summary {
	return BuildSummary(r.rec.ID, r.attempts, r.now().Sub(r.rec.StartedAt))
}

// Finish stores the summary with the session record.
func (r *Recorder) Finish(ctx context.Context) (Summary, error) {
	s := r.Summary()
	if r.repo == nil {
		return s, nil
	}
	if err := r.repo.FinishSession(ctx, r.rec.ID, s.Map()); err != nil {
		return s, fmt.Errorf("finish session: %w", err)
	}
	return s, nil
}

func attemptFor(item *Item, o store.AttemptOutcome, ans Answer) store.AttemptRecord {
	return store.AttemptRecord{
		PatternID:         item.Key.PatternID,
		QuestionID:        item.Key.QuestionID,
		ConceptID:         o.CorrectConceptID,
		SelectedConceptID: o.SelectedConceptID,
		Result:            o.Result,
		Correct:           o.Result.Correct(),
		AnswerMs:          ans.AnswerMs,
		Stage:             string(item.Stage),
	}
}
