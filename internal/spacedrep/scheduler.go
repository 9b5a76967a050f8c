package spacedrep

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/bem130/rubyquiz/internal/store"
)

// DueFetchLimit is the default number of entries fetched per state bucket.
const DueFetchLimit = 120

// Scheduler manages spaced repetition review scheduling on top of a
// ScheduleRepo. Every update is one read-modify-write transaction, so
// answers to different questions never block each other.
type Scheduler struct {
	repo   store.ScheduleRepo
	now    func() time.Time
	random func() float64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithRandom replaces the fuzz random source.
func WithRandom(random func() float64) Option {
	return func(s *Scheduler) { s.random = random }
}

// NewScheduler creates a scheduler backed by repo.
func NewScheduler(repo store.ScheduleRepo, opts ...Option) *Scheduler {
	s := &Scheduler{repo: repo, now: time.Now, random: rand.Float64}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Time {
	return s.now()
}

// Ensure returns the entry for key, creating a NEW entry on first exposure.
func (s *Scheduler) Ensure(ctx context.Context, key store.ScheduleKey) (*store.ScheduleEntry, error) {
	e, err := s.repo.Update(ctx, key, func(cur *store.ScheduleEntry) (*store.ScheduleEntry, error) {
		if cur != nil {
			return nil, nil
		}
		return NewEntry(key, s.now()), nil
	})
	if err != nil {
		return nil, fmt.Errorf("ensure schedule entry: %w", err)
	}
	return e, nil
}

// RecordResult applies a graded answer to the entry for key.
func (s *Scheduler) RecordResult(ctx context.Context, key store.ScheduleKey, result store.Result, answerMs int64) (*store.ScheduleEntry, error) {
	e, err := s.repo.Update(ctx, key, func(cur *store.ScheduleEntry) (*store.ScheduleEntry, error) {
		now := s.now()
		next := NewEntry(key, now)
		if cur != nil {
			c := *cur
			next = &c
		}
		Apply(next, result, answerMs, now, s.random)
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("record result: %w", err)
	}
	return e, nil
}

// Get returns the entry for key, or nil if the question was never seen.
func (s *Scheduler) Get(ctx context.Context, key store.ScheduleKey) (*store.ScheduleEntry, error) {
	return s.repo.Get(ctx, key)
}

// Forget removes one entry.
func (s *Scheduler) Forget(ctx context.Context, key store.ScheduleKey) error {
	return s.repo.Delete(ctx, key)
}

// Reset removes every entry of a user for a quiz.
func (s *Scheduler) Reset(ctx context.Context, userID, quizID string) (int, error) {
	return s.repo.DeleteQuiz(ctx, userID, quizID)
}

// DueOptions narrows ListDue.
type DueOptions struct {
	Lookahead     time.Duration
	PerStateLimit int // 0 means DueFetchLimit
	States        []store.ScheduleState
	PatternIDs    []string
}

// ListDue returns entries due within the lookahead window, learning first,
// then relearning, then review.
func (s *Scheduler) ListDue(ctx context.Context, userID, quizID string, opts DueOptions) ([]store.ScheduleEntry, error) {
	limit := opts.PerStateLimit
	if limit <= 0 {
		limit = DueFetchLimit
	}
	return s.repo.ListDue(ctx, store.DueQuery{
		UserID:        userID,
		QuizID:        quizID,
		Until:         s.now().Add(opts.Lookahead),
		PerStateLimit: limit,
		States:        opts.States,
		PatternIDs:    opts.PatternIDs,
	})
}

// Counts reports per-state totals and due counts.
func (s *Scheduler) Counts(ctx context.Context, userID, quizID string) (map[store.ScheduleState]store.StateCount, error) {
	return s.repo.CountByState(ctx, userID, quizID, s.now())
}
