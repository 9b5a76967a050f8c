package session

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bem130/rubyquiz/internal/logger"
	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/store"
)

// TestDeps are the collaborators of a TestRunner. Questions, Sessions and
// Logger are optional.
type TestDeps struct {
	Engine    *problemgen.Engine
	Questions store.QuestionRepo
	Sessions  store.SessionRepo
	Logger    *logger.Logger
}

// TestConfig starts a test session.
type TestConfig struct {
	UserID        string
	QuizID        string
	QuizTitle     string
	ModeID        string
	Seed          string
	QuestionCount int
}

// TestRunner replays a seeded sequence of questions. It prefers stored
// snapshots, shuffled with the seeded generator, before generating fresh
// questions. It never writes schedule state.
type TestRunner struct {
	deps TestDeps
	rec  *Recorder
	cfg  TestConfig

	engine    *problemgen.Engine
	rng       *problemgen.LCG
	snapshots []*problemgen.Question
	seen      seenSet
	count     int
}

// NewTestRunner creates a runner. Call Start before Next.
func NewTestRunner(deps TestDeps) *TestRunner {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &TestRunner{deps: deps, rec: NewRecorder(deps.Sessions, deps.Logger, nil)}
}

// Start seeds the generator from cfg.Seed and loads the snapshot queue.
func (r *TestRunner) Start(ctx context.Context, cfg TestConfig) error {
	if cfg.QuizID == "" {
		return fmt.Errorf("start test session: quiz is required")
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = 10
	}
	r.cfg = cfg
	r.rng = problemgen.NewLCG(cfg.Seed)
	r.engine = r.deps.Engine.WithRand(r.rng)
	r.seen = make(seenSet)
	r.count = 0
	r.snapshots = nil

	if r.deps.Questions != nil {
		snaps, err := r.deps.Questions.ListForQuiz(ctx, cfg.QuizID, 0)
		if err != nil {
			r.deps.Logger.Warn("load question snapshots", "quiz_id", cfg.QuizID, "error", err)
		}
		snaps = slices.DeleteFunc(snaps, func(q *problemgen.Question) bool {
			return !r.engine.Serves(q.PatternID)
		})
		for i := len(snaps) - 1; i > 0; i-- {
			j := int(r.rng.Float64() * float64(i+1))
			if j > i {
				j = i
			}
			snaps[i], snaps[j] = snaps[j], snaps[i]
		}
		r.snapshots = snaps
	}

	_, err := r.rec.Start(ctx, store.SessionRecord{
		UserID:    cfg.UserID,
		QuizID:    cfg.QuizID,
		QuizTitle: cfg.QuizTitle,
		Mode:      "test",
		ModeID:    cfg.ModeID,
		Seed:      cfg.Seed,
		Config:    map[string]any{"question_count": cfg.QuestionCount},
	})
	return err
}

// Done reports whether the configured question count has been served.
func (r *TestRunner) Done() bool { return r.count >= r.cfg.QuestionCount }

// Recorder exposes the session recorder.
func (r *TestRunner) Recorder() *Recorder { return r.rec }

// Next returns the next unseen question, or an error wrapping
// problemgen.ErrNoQuestionsAvailable.
func (r *TestRunner) Next(ctx context.Context) (*Item, error) {
	if r.seen == nil {
		return nil, fmt.Errorf("next test question: session not started")
	}
	for len(r.snapshots) > 0 {
		q := r.snapshots[0]
		r.snapshots = r.snapshots[1:]
		qkey := QuestionKey(r.cfg.QuizID, q.ID)
		if r.seen.has(qkey) {
			continue
		}
		r.seen.add(qkey)
		q.ResetSelections()
		return r.serve(q), nil
	}

	for attempt := 0; attempt < MaxGenerateAttempts; attempt++ {
		q, err := r.engine.Generate()
		if errors.Is(err, problemgen.ErrNoQuestionsAvailable) {
			break
		}
		if err != nil {
			return nil, err
		}
		qkey := QuestionKey(r.cfg.QuizID, q.ID)
		if r.seen.has(qkey) {
			continue
		}
		r.seen.add(qkey)
		return r.serve(q), nil
	}
	return nil, fmt.Errorf("next test question: %w", problemgen.ErrNoQuestionsAvailable)
}

func (r *TestRunner) serve(q *problemgen.Question) *Item {
	r.count++
	return &Item{Key: keyFor(r.cfg.UserID, r.cfg.QuizID, q), Question: q, Stage: StageTest}
}

// Submit grades ans and records the attempt. The schedule is left alone.
func (r *TestRunner) Submit(ctx context.Context, item *Item, ans Answer) (*Outcome, error) {
	result, err := Grade(item.Question, ans)
	if err != nil {
		return nil, err
	}
	o := outcomeFor(r.cfg.UserID, item.Question, ans, result)
	attempt := r.rec.Record(ctx, attemptFor(item, o, ans))
	return &Outcome{Result: result, Correct: result.Correct(), Attempt: attempt}, nil
}

// Finish closes the session record and returns its summary.
func (r *TestRunner) Finish(ctx context.Context) (Summary, error) {
	return r.rec.Finish(ctx)
}
