package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bem130/rubyquiz/internal/distractor"
	"github.com/bem130/rubyquiz/internal/logger"
	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/spacedrep"
	"github.com/bem130/rubyquiz/internal/store"
)

const (
	// NewRatio caps new material at this share of the session capacity
	// left after the due backlog.
	NewRatio = 0.3

	// DueRefreshInterval throttles due-bucket reloads between questions.
	DueRefreshInterval = 4 * time.Second

	// TargetedMinScore is the threshold for confusion pairs and uncertain
	// concepts to earn a repair question.
	TargetedMinScore = 0.6

	// TargetedQueueLimit caps the repair queue built at session start.
	TargetedQueueLimit = 12

	// RecentSessionDecay damps confusion cooldowns once per session.
	RecentSessionDecay = 0.8
)

// priorityTargets is the served ratio of review : repair : new questions.
var priorityTargets = map[Stage]float64{StageReview: 6, StageRepair: 3, StageNew: 1}

// Generator produces fresh questions for the active mode.
type Generator interface {
	Generate() (*problemgen.Question, error)
	Serves(patternID string) bool
}

// StudyDeps are the collaborators of a StudyRunner. Strategy and Logger
// are optional.
type StudyDeps struct {
	Engine    Generator
	Scheduler *spacedrep.Scheduler
	Questions store.QuestionRepo
	Confusion store.ConfusionRepo
	Concepts  store.ConceptRepo
	Sessions  store.SessionRepo
	Strategy  *distractor.Strategy
	Rand      problemgen.Rand
	Logger    *logger.Logger
}

// StudyConfig starts a study session.
type StudyConfig struct {
	UserID        string
	QuizID        string
	QuizTitle     string
	ModeID        string
	QuestionCount int
	Lookahead     time.Duration
	PerStateLimit int

	// DrainDue serves only due and repair questions, never new ones.
	DrainDue bool
}

type targetItem struct {
	key      string // pair or concept the item repairs
	question *problemgen.Question
	pair     *store.ConfusionStat
}

// StudyRunner serves due questions from stored snapshots and mixes in new
// questions from the engine, feeding every answer back into the schedule.
type StudyRunner struct {
	deps StudyDeps
	rec  *Recorder
	cfg  StudyConfig

	seen        seenSet
	buckets     map[Stage][]store.ScheduleEntry
	dueIndex    map[string]Stage
	newQuota    int
	served      map[Stage]int
	count       int
	targeted    []targetItem
	targetUsage map[string]int
	lastRefresh time.Time
}

// NewStudyRunner creates a runner. Call Start before Next.
func NewStudyRunner(deps StudyDeps) *StudyRunner {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Rand == nil {
		deps.Rand = problemgen.DefaultRand()
	}
	return &StudyRunner{
		deps: deps,
		rec:  NewRecorder(deps.Sessions, deps.Logger, deps.Scheduler.Now),
	}
}

// Start resets the runner, loads the due backlog and opens a session
// record. The new-question quota is
// max(1, floor((questionCount - backlog) * NewRatio)).
func (r *StudyRunner) Start(ctx context.Context, cfg StudyConfig) error {
	if cfg.UserID == "" || cfg.QuizID == "" {
		return fmt.Errorf("start study session: user and quiz are required")
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = 10
	}
	r.cfg = cfg
	r.seen = make(seenSet)
	r.buckets = make(map[Stage][]store.ScheduleEntry)
	r.dueIndex = make(map[string]Stage)
	r.served = make(map[Stage]int)
	r.targetUsage = make(map[string]int)
	r.targeted = nil
	r.count = 0
	r.lastRefresh = time.Time{}

	if err := r.refreshDue(ctx, true); err != nil {
		return fmt.Errorf("start study session: %w", err)
	}
	r.newQuota = max(1, int(math.Floor(float64(cfg.QuestionCount-r.Backlog())*NewRatio)))
	if cfg.DrainDue {
		r.newQuota = 0
	}

	if r.deps.Confusion != nil {
		if err := r.deps.Confusion.DecayRecentSessions(ctx, cfg.UserID, RecentSessionDecay); err != nil {
			r.deps.Logger.Warn("decay confusion cooldowns", "user_id", cfg.UserID, "error", err)
		}
	}
	r.prepareTargeted(ctx)

	if _, err := r.rec.Start(ctx, store.SessionRecord{
		UserID:    cfg.UserID,
		QuizID:    cfg.QuizID,
		QuizTitle: cfg.QuizTitle,
		Mode:      "study",
		ModeID:    cfg.ModeID,
		Config: map[string]any{
			"question_count": cfg.QuestionCount,
			"new_quota":      r.newQuota,
			"backlog":        r.Backlog(),
		},
	}); err != nil {
		return err
	}
	return nil
}

// Backlog is the number of due entries waiting in the buckets.
func (r *StudyRunner) Backlog() int {
	return len(r.dueIndex)
}

// NewQuota is the number of new questions still allowed while a backlog
// exists.
func (r *StudyRunner) NewQuota() int { return r.newQuota }

// Done reports whether the configured question count has been served.
func (r *StudyRunner) Done() bool { return r.count >= r.cfg.QuestionCount }

// Recorder exposes the session recorder.
func (r *StudyRunner) Recorder() *Recorder { return r.rec }

func (r *StudyRunner) refreshDue(ctx context.Context, force bool) error {
	now := r.deps.Scheduler.Now()
	if !force && !r.lastRefresh.IsZero() && now.Sub(r.lastRefresh) < DueRefreshInterval {
		return nil
	}
	entries, err := r.deps.Scheduler.ListDue(ctx, r.cfg.UserID, r.cfg.QuizID, spacedrep.DueOptions{
		Lookahead:     r.cfg.Lookahead,
		PerStateLimit: r.cfg.PerStateLimit,
	})
	if err != nil {
		return err
	}
	r.lastRefresh = now
	for _, e := range entries {
		qkey := QuestionKey(e.QuizID, e.QuestionID)
		if r.seen.has(qkey) || !r.deps.Engine.Serves(e.PatternID) {
			continue
		}
		if _, ok := r.dueIndex[qkey]; ok {
			continue
		}
		st := stageFor(e.State)
		r.buckets[st] = append(r.buckets[st], e)
		r.dueIndex[qkey] = st
	}
	return nil
}

// consume drops qkey from whichever bucket holds it.
func (r *StudyRunner) consume(qkey string) {
	st, ok := r.dueIndex[qkey]
	if !ok {
		return
	}
	delete(r.dueIndex, qkey)
	bucket := r.buckets[st]
	for i, e := range bucket {
		if QuestionKey(e.QuizID, e.QuestionID) == qkey {
			r.buckets[st] = append(bucket[:i:i], bucket[i+1:]...)
			return
		}
	}
}

// Next returns the next question. Learning and relearning entries come
// first; then review, repair and new questions are mixed by their served
// ratio. When every bucket is empty the runner overflows to new questions
// so the session never stalls. It returns an error wrapping
// problemgen.ErrNoQuestionsAvailable when nothing can be served. One call
// draws at most MaxGenerateAttempts questions from the engine.
func (r *StudyRunner) Next(ctx context.Context) (*Item, error) {
	if r.seen == nil {
		return nil, fmt.Errorf("next study question: session not started")
	}
	if err := r.refreshDue(ctx, false); err != nil {
		r.deps.Logger.Warn("refresh due buckets", "user_id", r.cfg.UserID, "error", err)
	}

	for _, st := range []Stage{StageLearning, StageRelearning} {
		if item := r.loadFromBucket(ctx, st); item != nil {
			r.served[StageReview]++
			return r.serve(ctx, item), nil
		}
	}

	budget := MaxGenerateAttempts
	tried := make(map[Stage]bool)
	for {
		typ := r.choosePriority(tried)
		if typ == "" {
			break
		}
		tried[typ] = true
		switch typ {
		case StageReview:
			if item := r.loadFromBucket(ctx, StageReview); item != nil {
				r.served[StageReview]++
				return r.serve(ctx, item), nil
			}
		case StageRepair:
			if item := r.popTargeted(ctx); item != nil {
				r.served[StageRepair]++
				return r.serve(ctx, item), nil
			}
		case StageNew:
			item, err := r.generate(ctx, true, &budget)
			if err != nil {
				return nil, err
			}
			if item != nil {
				r.served[StageNew]++
				return r.serve(ctx, item), nil
			}
			r.newQuota = 0
		}
	}

	item, err := r.generate(ctx, !r.cfg.DrainDue && r.Backlog() == 0, &budget)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("next study question: %w", problemgen.ErrNoQuestionsAvailable)
	}
	r.served[item.Stage]++
	return r.serve(ctx, item), nil
}

func (r *StudyRunner) serve(ctx context.Context, item *Item) *Item {
	if r.deps.Strategy != nil {
		r.deps.Strategy.Apply(ctx, item.Question, r.cfg.UserID)
	}
	item.ServedAt = r.deps.Scheduler.Now()
	r.count++
	return item
}

// choosePriority picks the candidate type furthest behind its target
// share. New questions are candidates while the quota lasts or once the
// backlog is gone.
func (r *StudyRunner) choosePriority(tried map[Stage]bool) Stage {
	var candidates []Stage
	if len(r.buckets[StageReview]) > 0 && !tried[StageReview] {
		candidates = append(candidates, StageReview)
	}
	if len(r.targeted) > 0 && !tried[StageRepair] {
		candidates = append(candidates, StageRepair)
	}
	if !r.cfg.DrainDue && (r.newQuota > 0 || r.Backlog() == 0) && !tried[StageNew] {
		candidates = append(candidates, StageNew)
	}
	var (
		chosen Stage
		best   = math.Inf(1)
	)
	for _, c := range candidates {
		if score := float64(r.served[c]) / priorityTargets[c]; score < best {
			best = score
			chosen = c
		}
	}
	return chosen
}

// loadFromBucket serves the first entry of a due bucket that still has a
// snapshot. Entries without one are purged from the schedule.
func (r *StudyRunner) loadFromBucket(ctx context.Context, st Stage) *Item {
	for len(r.buckets[st]) > 0 {
		e := r.buckets[st][0]
		qkey := QuestionKey(e.QuizID, e.QuestionID)
		r.consume(qkey)
		if r.seen.has(qkey) {
			continue
		}
		q, err := r.deps.Questions.Get(ctx, e.QuizID, e.QuestionID)
		if err != nil {
			r.deps.Logger.Warn("load question snapshot", "user_id", e.UserID, "qid", e.QuestionID, "error", err)
		}
		if q == nil {
			if err := r.deps.Scheduler.Forget(ctx, e.ScheduleKey); err != nil {
				r.deps.Logger.Warn("drop schedule entry without snapshot", "user_id", e.UserID, "qid", e.QuestionID, "error", err)
			}
			continue
		}
		q.ResetSelections()
		r.seen.add(qkey)
		return &Item{Key: e.ScheduleKey, Question: q, Stage: st}
	}
	return nil
}

// generate draws unseen questions from the engine until one is accepted
// or budget runs out. Questions that are not due count as new and are only
// accepted when allowNew is set.
func (r *StudyRunner) generate(ctx context.Context, allowNew bool, budget *int) (*Item, error) {
	for ; *budget > 0; *budget-- {
		q, err := r.deps.Engine.Generate()
		if errors.Is(err, problemgen.ErrNoQuestionsAvailable) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		qkey := QuestionKey(r.cfg.QuizID, q.ID)
		if r.seen.has(qkey) {
			continue
		}
		st, due := r.dueIndex[qkey]
		if !due {
			st = StageNew
			if !allowNew {
				continue
			}
		}

		key := keyFor(r.cfg.UserID, r.cfg.QuizID, q)
		if _, err := r.deps.Scheduler.Ensure(ctx, key); err != nil {
			return nil, fmt.Errorf("next study question: %w", err)
		}
		if err := r.deps.Questions.Save(ctx, r.cfg.QuizID, q); err != nil {
			r.deps.Logger.Warn("save question snapshot", "user_id", r.cfg.UserID, "qid", q.ID, "error", err)
		}
		*budget--
		r.seen.add(qkey)
		r.consume(qkey)
		if st == StageNew && r.newQuota > 0 {
			r.newQuota--
		}
		return &Item{Key: key, Question: q, Stage: st}, nil
	}
	return nil, nil
}

// prepareTargeted builds the repair queue from the user's strongest
// confusion pairs and most uncertain concepts. Failures only shrink the
// queue.
func (r *StudyRunner) prepareTargeted(ctx context.Context) {
	if r.deps.Confusion == nil || r.deps.Concepts == nil {
		return
	}
	var queue []targetItem
	queued := make(map[string]bool)
	push := func(key string, q *problemgen.Question, pair *store.ConfusionStat) bool {
		qkey := QuestionKey(r.cfg.QuizID, q.ID)
		if queued[qkey] || !r.deps.Engine.Serves(q.PatternID) {
			return false
		}
		queued[qkey] = true
		queue = append(queue, targetItem{key: key, question: q, pair: pair})
		return true
	}

	pairs, err := r.deps.Confusion.TopPairs(ctx, r.cfg.UserID, store.TopPairsOptions{
		MinScore: TargetedMinScore, Limit: 5, MaxRecent: 2,
	})
	if err != nil {
		r.deps.Logger.Warn("collect confusion targets", "user_id", r.cfg.UserID, "error", err)
	}
	for i := range pairs {
		pair := &pairs[i]
		key := "conf:" + pair.ConceptID + ":" + pair.WrongConceptID
		wrong, err := r.deps.Questions.FindByConcept(ctx, r.cfg.QuizID, pair.WrongConceptID, 2)
		if err != nil {
			r.deps.Logger.Warn("collect confusion targets", "user_id", r.cfg.UserID, "error", err)
			continue
		}
		for _, q := range wrong {
			push(key, q, pair)
		}
		both, err := r.deps.Questions.FindByConcept(ctx, r.cfg.QuizID, pair.ConceptID, 4)
		if err != nil {
			r.deps.Logger.Warn("collect confusion targets", "user_id", r.cfg.UserID, "error", err)
			continue
		}
		for _, q := range both {
			if includesConcept(q, pair.WrongConceptID) {
				push(key, q, pair)
			}
		}
	}

	concepts, err := r.deps.Concepts.ListUncertain(ctx, r.cfg.UserID, TargetedMinScore, 4)
	if err != nil {
		r.deps.Logger.Warn("collect uncertainty targets", "user_id", r.cfg.UserID, "error", err)
	}
	for _, c := range concepts {
		qs, err := r.deps.Questions.FindByConcept(ctx, r.cfg.QuizID, c.ConceptID, 2)
		if err != nil {
			r.deps.Logger.Warn("collect uncertainty targets", "user_id", r.cfg.UserID, "error", err)
			continue
		}
		injected := 0
		for _, q := range qs {
			if push("unc:"+c.ConceptID, q, nil) && injected < 2 && r.injectReview(ctx, q) {
				injected++
			}
		}
	}

	for i := len(queue) - 1; i > 0; i-- {
		j := int(r.deps.Rand.Float64() * float64(i+1))
		if j > i {
			j = i
		}
		queue[i], queue[j] = queue[j], queue[i]
	}
	if len(queue) > TargetedQueueLimit {
		queue = queue[:TargetedQueueLimit]
	}
	r.targeted = queue
}

// injectReview queues a stored question about an uncertain concept in the
// review bucket so it is asked even when it is not due.
func (r *StudyRunner) injectReview(ctx context.Context, q *problemgen.Question) bool {
	qkey := QuestionKey(r.cfg.QuizID, q.ID)
	if r.seen.has(qkey) {
		return false
	}
	if _, ok := r.dueIndex[qkey]; ok {
		return false
	}
	e, err := r.deps.Scheduler.Ensure(ctx, keyFor(r.cfg.UserID, r.cfg.QuizID, q))
	if err != nil {
		r.deps.Logger.Warn("ensure schedule entry for uncertain concept", "user_id", r.cfg.UserID, "qid", q.ID, "error", err)
		return false
	}
	r.buckets[StageReview] = append(r.buckets[StageReview], *e)
	r.dueIndex[qkey] = StageReview
	return true
}

func includesConcept(q *problemgen.Question, conceptID string) bool {
	for _, id := range q.OptionConceptIDs() {
		if id == conceptID {
			return true
		}
	}
	return false
}

// popTargeted serves the next unseen repair question. A pair or concept
// is repaired at most twice per session.
func (r *StudyRunner) popTargeted(ctx context.Context) *Item {
	for len(r.targeted) > 0 {
		t := r.targeted[0]
		r.targeted = r.targeted[1:]
		qkey := QuestionKey(r.cfg.QuizID, t.question.ID)
		if r.seen.has(qkey) {
			continue
		}
		key := keyFor(r.cfg.UserID, r.cfg.QuizID, t.question)
		if _, err := r.deps.Scheduler.Ensure(ctx, key); err != nil {
			r.deps.Logger.Warn("ensure schedule entry for repair question", "user_id", r.cfg.UserID, "qid", t.question.ID, "error", err)
			continue
		}
		r.seen.add(qkey)
		r.consume(qkey)

		if t.pair != nil {
			if err := r.deps.Confusion.MarkScheduled(ctx, r.cfg.UserID, t.pair.ConceptID, t.pair.WrongConceptID); err != nil {
				r.deps.Logger.Warn("mark confusion repair", "user_id", r.cfg.UserID, "error", err)
			}
		}
		r.targetUsage[t.key]++
		if r.targetUsage[t.key] >= 2 {
			kept := r.targeted[:0]
			for _, other := range r.targeted {
				if other.key != t.key {
					kept = append(kept, other)
				}
			}
			r.targeted = kept
		}
		q := t.question
		q.ResetSelections()
		return &Item{Key: key, Question: q, Stage: StageRepair}
	}
	return nil
}

// Submit grades ans, updates the schedule and records the attempt.
// Schedule failures are returned; stats and attempt writes are logged and
// skipped.
func (r *StudyRunner) Submit(ctx context.Context, item *Item, ans Answer) (*Outcome, error) {
	result, err := Grade(item.Question, ans)
	if err != nil {
		return nil, err
	}
	entry, err := r.deps.Scheduler.RecordResult(ctx, item.Key, result, ans.AnswerMs)
	if err != nil {
		return nil, fmt.Errorf("submit answer: %w", err)
	}

	o := outcomeFor(r.cfg.UserID, item.Question, ans, result)
	if r.deps.Concepts != nil {
		if err := r.deps.Concepts.UpdateFromAttempt(ctx, o); err != nil {
			r.deps.Logger.Warn("update concept stats", "user_id", r.cfg.UserID, "qid", item.Key.QuestionID, "error", err)
		}
	}
	if r.deps.Confusion != nil {
		if err := r.deps.Confusion.UpdateFromAttempt(ctx, o); err != nil {
			r.deps.Logger.Warn("update confusion stats", "user_id", r.cfg.UserID, "qid", item.Key.QuestionID, "error", err)
		}
	}
	attempt := r.rec.Record(ctx, attemptFor(item, o, ans))
	return &Outcome{Result: result, Correct: result.Correct(), Entry: entry, Attempt: attempt}, nil
}

// Finish closes the session record and returns its summary.
func (r *StudyRunner) Finish(ctx context.Context) (Summary, error) {
	return r.rec.Finish(ctx)
}
