package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
	"github.com/bem130/rubyquiz/internal/spacedrep"
	"github.com/bem130/rubyquiz/internal/store"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

const quizID = "test"

const (
	choicePattern = `{"id": "p", "tokens": [
      "Which animal? ",
      {"type": "hide", "value": [{"type": "key", "field": "term"}], "answer": {"mode": "choice_from_entities"}}
    ]}`
	namePattern = `{"id": "q", "tokens": [
      "Name the animal: ",
      {"type": "hide", "value": [{"type": "key", "field": "term"}], "answer": {"mode": "choice_from_entities"}}
    ]}`
)

func quizSource(terms ...string) string {
	return quizSourceWith([]string{choicePattern}, terms...)
}

func quizSourceWith(patterns []string, terms ...string) string {
	rows := make([]string, len(terms))
	for i, term := range terms {
		rows[i] = fmt.Sprintf(`{"id": "r%d", "term": %q}`, i+1, term)
	}
	return `{
  "title": "Animals",
  "description": "Test quiz",
  "version": 3,
  "table": [` + strings.Join(rows, ",") + `],
  "patterns": [` + strings.Join(patterns, ",") + `]
}`
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type harness struct {
	store  *store.Store
	sched  *spacedrep.Scheduler
	clock  *clock
	engine *problemgen.Engine
}

func newHarness(t *testing.T, terms ...string) *harness {
	t.Helper()
	if len(terms) == 0 {
		terms = []string{"cat", "dog", "fish", "bird"}
	}
	return newHarnessFrom(t, quizSource(terms...))
}

func newHarnessFrom(t *testing.T, src string) *harness {
	t.Helper()
	def, err := quiz.Load([]byte(src), quizID, quiz.FormatJSON)
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := &clock{now: t0}
	return &harness{
		store:  s,
		sched:  spacedrep.NewScheduler(s.ScheduleRepo(), spacedrep.WithClock(c.Now), spacedrep.WithRandom(func() float64 { return 0.5 })),
		clock:  c,
		engine: problemgen.New(def, problemgen.DefaultConfig()).WithRand(problemgen.NewLCG("harness")),
	}
}

func (h *harness) study() *StudyRunner {
	return NewStudyRunner(StudyDeps{
		Engine:    h.engine,
		Scheduler: h.sched,
		Questions: h.store.QuestionRepo(),
		Confusion: h.store.ConfusionRepo(),
		Concepts:  h.store.ConceptRepo(),
		Sessions:  h.store.SessionRepo(),
		Rand:      problemgen.NewLCG("study"),
	})
}

func wrongOption(q *problemgen.Question) int {
	if q.Answers[0].CorrectIndex == 0 {
		return 1
	}
	return 0
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		answer  func(q *problemgen.Question) Answer
		want    store.Result
		wantErr bool
	}{
		{"correct", func(q *problemgen.Question) Answer { return Answer{Option: q.Answers[0].CorrectIndex} }, store.ResultStrong, false},
		{"unsure", func(q *problemgen.Question) Answer {
			return Answer{Option: q.Answers[0].CorrectIndex, Unsure: true}
		}, store.ResultWeak, false},
		{"wrong", func(q *problemgen.Question) Answer { return Answer{Option: wrongOption(q)} }, store.ResultWrong, false},
		{"unsure and wrong", func(q *problemgen.Question) Answer { return Answer{Option: wrongOption(q), Unsure: true} }, store.ResultWrong, false},
		{"idk", func(q *problemgen.Question) Answer { return Answer{Option: 2, IDK: true} }, store.ResultIdk, false},
		{"no option", func(q *problemgen.Question) Answer { return Answer{Option: -1} }, store.ResultIdk, false},
		{"out of range", func(q *problemgen.Question) Answer { return Answer{Option: 9} }, "", true},
	}
	h := newHarness(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := h.engine.Generate()
			require.NoError(t, err)
			got, err := Grade(q, tc.answer(q))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBuildSummary(t *testing.T) {
	attempts := []store.AttemptRecord{
		{Result: store.ResultStrong, Correct: true, Stage: "new"},
		{Result: store.ResultWeak, Correct: true, Stage: "review"},
		{Result: store.ResultWrong, Stage: "new"},
		{Result: store.ResultIdk, Stage: "learning"},
	}
	s := BuildSummary("s1", attempts, 90*time.Second)
	assert.Equal(t, 4, s.Attempts)
	assert.Equal(t, 2, s.Correct)
	assert.Equal(t, 0.5, s.Accuracy)
	assert.Equal(t, 1, s.ByResult[store.ResultIdk])
	assert.Equal(t, 2, s.ByStage[StageNew])

	m := s.Map()
	assert.Equal(t, int64(90000), m["duration_ms"])
	assert.Equal(t, 1, m["by_result"].(map[string]any)["weak"])

	empty := BuildSummary("s2", nil, 0)
	assert.Zero(t, empty.Accuracy)
}

func TestStudyNewQuota(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, "a", "b", "c", "d", "e", "f", "g", "h", "i", "j")

	r := h.study()
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 10}))
	assert.Equal(t, 0, r.Backlog())
	assert.Equal(t, 3, r.NewQuota())

	// Eight entries due: floor((10-8)*0.3) = 0, raised to 1.
	for i := 1; i <= 8; i++ {
		key := store.ScheduleKey{UserID: "u1", QuizID: quizID, PatternID: "test::p", QuestionID: fmt.Sprintf("test::p::r%d", i)}
		_, err := h.sched.RecordResult(ctx, key, store.ResultStrong, 0)
		require.NoError(t, err)
	}
	h.clock.now = t0.Add(time.Hour)
	r = h.study()
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 10}))
	assert.Equal(t, 8, r.Backlog())
	assert.Equal(t, 1, r.NewQuota())
}

func TestStudyServesUniqueQuestions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	r := h.study()
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 4}))

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		item, err := r.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, StageNew, item.Stage)
		assert.False(t, seen[item.Question.ID], "question %s served twice", item.Question.ID)
		seen[item.Question.ID] = true

		snap, err := h.store.QuestionRepo().Get(ctx, quizID, item.Question.ID)
		require.NoError(t, err)
		assert.NotNil(t, snap, "snapshot saved")

		e, err := h.sched.Get(ctx, item.Key)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, store.StateNew, e.State)
	}
	assert.True(t, r.Done())

	_, err := r.Next(ctx)
	assert.True(t, errors.Is(err, problemgen.ErrNoQuestionsAvailable), "got %v", err)
}

func TestStudyReplaysDueSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first := h.study()
	require.NoError(t, first.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 1}))
	item, err := first.Next(ctx)
	require.NoError(t, err)
	out, err := first.Submit(ctx, item, Answer{Option: wrongOption(item.Question), AnswerMs: 2100})
	require.NoError(t, err)
	assert.Equal(t, store.ResultWrong, out.Result)
	assert.Equal(t, store.StateLearning, out.Entry.State)
	_, err = first.Finish(ctx)
	require.NoError(t, err)

	h.clock.now = t0.Add(10 * time.Minute)
	second := h.study()
	require.NoError(t, second.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 5}))
	assert.Equal(t, 1, second.Backlog())

	due, err := second.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, StageLearning, due.Stage)
	assert.Equal(t, item.Question.ID, due.Question.ID)
	assert.Nil(t, due.Question.Answers[0].UserSelectedIndex, "replayed snapshot starts unanswered")

	out, err = second.Submit(ctx, due, Answer{Option: due.Question.Answers[0].CorrectIndex})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Entry.StepIndex)
	assert.Equal(t, "learning", out.Attempt.Stage)
}

func TestStudyPurgesEntryWithoutSnapshot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	orphan := store.ScheduleKey{UserID: "u1", QuizID: quizID, PatternID: "test::p", QuestionID: "test::p::gone"}
	_, err := h.sched.RecordResult(ctx, orphan, store.ResultStrong, 0)
	require.NoError(t, err)

	h.clock.now = t0.Add(time.Hour)
	r := h.study()
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 3}))
	assert.Equal(t, 1, r.Backlog())

	item, err := r.Next(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, orphan.QuestionID, item.Question.ID)
	assert.Equal(t, StageNew, item.Stage)

	e, err := h.sched.Get(ctx, orphan)
	require.NoError(t, err)
	assert.Nil(t, e, "entry without snapshot is purged")
}

func TestStudySubmitUpdatesStats(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	r := h.study()
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 2}))

	item, err := r.Next(ctx)
	require.NoError(t, err)
	wrong := wrongOption(item.Question)
	chosen := item.Question.Answers[0].Options[wrong].ConceptID
	_, err = r.Submit(ctx, item, Answer{Option: wrong, AnswerMs: 1500})
	require.NoError(t, err)

	concept, err := h.store.ConceptRepo().Get(ctx, "u1", item.Question.ConceptID())
	require.NoError(t, err)
	require.NotNil(t, concept)
	assert.InDelta(t, 0.08, concept.UncertaintyEMA, 1e-9)

	pairs, err := h.store.ConfusionRepo().ForConcept(ctx, "u1", item.Question.ConceptID(), 0)
	require.NoError(t, err)
	require.Len(t, pairs, len(item.Question.Answers[0].Options)-1)
	for _, p := range pairs {
		assert.Equal(t, 1, p.Shown)
		if p.WrongConceptID == chosen {
			assert.Equal(t, 1, p.Chosen)
		} else {
			assert.Equal(t, 0, p.Chosen)
		}
	}

	summary, err := r.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempts)

	attempts, err := h.store.SessionRepo().ListAttempts(ctx, r.Recorder().SessionID())
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, store.ResultWrong, attempts[0].Result)
	assert.Equal(t, chosen, attempts[0].SelectedConceptID)
	assert.Equal(t, int64(1500), attempts[0].AnswerMs)

	rec, err := h.store.SessionRepo().GetSession(ctx, r.Recorder().SessionID())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "study", rec.Mode)
	assert.False(t, rec.EndedAt.IsZero())
}

func (h *harness) saveQuestionFor(t *testing.T, conceptID string) *problemgen.Question {
	t.Helper()
	for i := 0; i < 100; i++ {
		q, err := h.engine.Generate()
		require.NoError(t, err)
		if q.ConceptID() == conceptID {
			require.NoError(t, h.store.QuestionRepo().Save(context.Background(), quizID, q))
			return q
		}
	}
	t.Fatalf("no question teaches %s", conceptID)
	return nil
}

func TestStudyServesRepairQuestions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// The learner keeps picking r2 when r1 is asked.
	for i := 0; i < 10; i++ {
		require.NoError(t, h.store.ConfusionRepo().UpdateFromAttempt(ctx, store.AttemptOutcome{
			UserID: "u1", CorrectConceptID: "r1", OptionConceptIDs: []string{"r1", "r2"},
			SelectedConceptID: "r2", Result: store.ResultWrong,
		}))
	}
	target := h.saveQuestionFor(t, "r2")

	r := h.study()
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 3}))
	item, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, StageRepair, item.Stage)
	assert.Equal(t, target.ID, item.Question.ID)

	e, err := h.sched.Get(ctx, item.Key)
	require.NoError(t, err)
	assert.NotNil(t, e, "repair questions get a schedule entry")
}

func TestStudyInjectsUncertainConceptReview(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	for i := 0; i < 9; i++ {
		require.NoError(t, h.store.ConceptRepo().UpdateFromAttempt(ctx, store.AttemptOutcome{
			UserID: "u1", CorrectConceptID: "r2", Result: store.ResultIdk,
		}))
	}
	target := h.saveQuestionFor(t, "r2")

	r := h.study()
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 3}))
	assert.Equal(t, 1, r.Backlog(), "uncertain concept is queued for review")

	key := store.ScheduleKey{UserID: "u1", QuizID: quizID, PatternID: target.PatternID, QuestionID: target.ID}
	e, err := h.sched.Get(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, e, "injected review has a schedule entry")

	item, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, StageReview, item.Stage)
	assert.Equal(t, target.ID, item.Question.ID)

	next, err := r.Next(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, target.ID, next.Question.ID, "repair queue skips the served question")
}

func TestStudyDrainDueServesNoNewQuestions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first := h.study()
	require.NoError(t, first.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 1}))
	item, err := first.Next(ctx)
	require.NoError(t, err)
	_, err = first.Submit(ctx, item, Answer{Option: wrongOption(item.Question)})
	require.NoError(t, err)

	h.clock.now = t0.Add(10 * time.Minute)
	r := h.study()
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 5, DrainDue: true}))
	assert.Equal(t, 0, r.NewQuota())

	due, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, item.Question.ID, due.Question.ID)
	assert.Equal(t, StageLearning, due.Stage)

	_, err = r.Next(ctx)
	assert.True(t, errors.Is(err, problemgen.ErrNoQuestionsAvailable), "got %v", err)
}

type countingGenerator struct {
	*problemgen.Engine
	calls int
}

func (g *countingGenerator) Generate() (*problemgen.Question, error) {
	g.calls++
	return g.Engine.Generate()
}

func TestStudyNextSharesGenerateBudget(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	gen := &countingGenerator{Engine: h.engine}
	r := NewStudyRunner(StudyDeps{
		Engine:    gen,
		Scheduler: h.sched,
		Questions: h.store.QuestionRepo(),
		Sessions:  h.store.SessionRepo(),
	})
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 10}))

	// Four terms give four distinct questions.
	for i := 0; i < 4; i++ {
		_, err := r.Next(ctx)
		require.NoError(t, err)
	}
	gen.calls = 0
	_, err := r.Next(ctx)
	assert.True(t, errors.Is(err, problemgen.ErrNoQuestionsAvailable), "got %v", err)
	assert.Equal(t, MaxGenerateAttempts, gen.calls)
}

func TestStudySkipsDueEntriesOfInactivePatterns(t *testing.T) {
	ctx := context.Background()
	h := newHarnessFrom(t, quizSourceWith([]string{choicePattern, namePattern}, "cat", "dog", "fish", "bird"))

	byPattern := map[string]*problemgen.Question{}
	for i := 0; i < 200 && len(byPattern) < 2; i++ {
		q, err := h.engine.Generate()
		require.NoError(t, err)
		if byPattern[q.PatternID] == nil {
			byPattern[q.PatternID] = q
		}
	}
	require.Len(t, byPattern, 2)
	for _, q := range byPattern {
		require.NoError(t, h.store.QuestionRepo().Save(ctx, quizID, q))
		key := store.ScheduleKey{UserID: "u1", QuizID: quizID, PatternID: q.PatternID, QuestionID: q.ID}
		_, err := h.sched.RecordResult(ctx, key, store.ResultStrong, 0)
		require.NoError(t, err)
	}

	h.clock.now = t0.Add(time.Hour)
	require.NoError(t, h.engine.SetSinglePatternMode("test::q"))
	r := h.study()
	require.NoError(t, r.Start(ctx, StudyConfig{UserID: "u1", QuizID: quizID, QuestionCount: 3}))
	assert.Equal(t, 1, r.Backlog())

	for i := 0; i < 3; i++ {
		item, err := r.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "test::q", item.Question.PatternID)
	}
}

func TestStudyRequiresStart(t *testing.T) {
	h := newHarness(t)
	_, err := h.study().Next(context.Background())
	assert.Error(t, err)
	assert.Error(t, h.study().Start(context.Background(), StudyConfig{QuizID: quizID}))
}

func testRunIDs(t *testing.T, seed string, n int) []string {
	t.Helper()
	ctx := context.Background()
	h := newHarness(t, "a", "b", "c", "d", "e", "f")
	r := NewTestRunner(TestDeps{Engine: h.engine, Questions: h.store.QuestionRepo(), Sessions: h.store.SessionRepo()})
	require.NoError(t, r.Start(ctx, TestConfig{UserID: "u1", QuizID: quizID, Seed: seed, QuestionCount: n}))

	var ids []string
	for !r.Done() {
		item, err := r.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, StageTest, item.Stage)
		ids = append(ids, item.Question.ID)
		_, err = r.Submit(ctx, item, Answer{Option: item.Question.Answers[0].CorrectIndex})
		require.NoError(t, err)
	}

	counts, err := h.sched.Counts(ctx, "u1", quizID)
	require.NoError(t, err)
	assert.Empty(t, counts, "test sessions never touch the schedule")

	summary, err := r.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, summary.Correct)
	return ids
}

func TestTestRunnerReproducible(t *testing.T) {
	a := testRunIDs(t, "abc", 4)
	b := testRunIDs(t, "abc", 4)
	assert.Equal(t, a, b)

	seen := map[string]bool{}
	for _, id := range a {
		assert.False(t, seen[id], "question %s repeated", id)
		seen[id] = true
	}
}

func TestTestRunnerPrefersSnapshots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	q, err := h.engine.Generate()
	require.NoError(t, err)
	require.NoError(t, h.store.QuestionRepo().Save(ctx, quizID, q))

	r := NewTestRunner(TestDeps{Engine: h.engine, Questions: h.store.QuestionRepo()})
	require.NoError(t, r.Start(ctx, TestConfig{UserID: "u1", QuizID: quizID, Seed: "s", QuestionCount: 2}))
	item, err := r.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, q.ID, item.Question.ID)

	next, err := r.Next(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, q.ID, next.Question.ID)
}

func TestTestRunnerServesActivePatternOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarnessFrom(t, quizSourceWith([]string{choicePattern, namePattern}, "cat", "dog", "fish", "bird"))

	saved := map[string]bool{}
	for _, pid := range []string{"test::p", "test::q"} {
		gen := h.engine.WithRand(problemgen.NewLCG(pid))
		require.NoError(t, gen.SetSinglePatternMode(pid))
		for i := 0; i < 2; i++ {
			q, err := gen.Generate()
			require.NoError(t, err)
			require.NoError(t, h.store.QuestionRepo().Save(ctx, quizID, q))
			saved[q.ID] = true
		}
	}

	require.NoError(t, h.engine.SetSinglePatternMode("test::q"))
	r := NewTestRunner(TestDeps{Engine: h.engine, Questions: h.store.QuestionRepo(), Sessions: h.store.SessionRepo()})
	require.NoError(t, r.Start(ctx, TestConfig{UserID: "u1", QuizID: quizID, Seed: "s", QuestionCount: 4}))

	fromSnapshots := 0
	for !r.Done() {
		item, err := r.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, "test::q", item.Question.PatternID)
		if saved[item.Question.ID] {
			fromSnapshots++
		}
		_, err = r.Submit(ctx, item, Answer{Option: item.Question.Answers[0].CorrectIndex})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, fromSnapshots, 1)
}
