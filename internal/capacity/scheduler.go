// Package capacity estimates how many distinct questions quiz files can
// produce, as a background work queue drained in time-boxed ticks.
package capacity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/bem130/rubyquiz/internal/logger"
	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/quiz"
)

const (
	DefaultBudget = 8 * time.Millisecond
	DefaultRate   = 60 // ticks per second
)

// Status is the estimation state of a quiz or entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Result is the latest known capacity for a key. Failed quizzes count as
// zero.
type Result struct {
	Key      string
	Entry    bool
	Capacity int
	Status   Status
	Err      error
}

// Loader resolves a quiz reference, usually a file path, to a definition.
type Loader func(ctx context.Context, ref string) (*quiz.Definition, error)

// Entry is a named group of quiz references whose capacity is the sum of
// its quizzes.
type Entry struct {
	ID   string
	Refs []string
}

type task struct {
	ref   string
	entry string
}

// Scheduler owns the capacity caches and the work queue. It is safe for
// concurrent use; several goroutines may Drain at once.
type Scheduler struct {
	load     Loader
	onUpdate func(Result)
	log      *logger.Logger
	budget   time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
	group    singleflight.Group

	mu      sync.Mutex
	quizzes map[string]Result
	entries map[string]Result
	refs    map[string][]string
	pending map[string]bool
	queue   []task
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBudget sets the time budget of one tick.
func WithBudget(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.budget = d
		}
	}
}

// WithRate sets how many ticks may run per second. rate.Inf disables
// pacing.
func WithRate(ticks rate.Limit) Option {
	return func(s *Scheduler) { s.limiter = rate.NewLimiter(ticks, 1) }
}

// WithOnUpdate registers a callback run after every finished task.
func WithOnUpdate(fn func(Result)) Option {
	return func(s *Scheduler) { s.onUpdate = fn }
}

// WithLogger sets the logger used for failed estimations.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithClock replaces time.Now for budget accounting.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler that loads quizzes with load.
func New(load Loader, opts ...Option) *Scheduler {
	s := &Scheduler{
		load:    load,
		log:     logger.Nop(),
		budget:  DefaultBudget,
		limiter: rate.NewLimiter(DefaultRate, 1),
		now:     time.Now,
		quizzes: make(map[string]Result),
		entries: make(map[string]Result),
		refs:    make(map[string][]string),
		pending: make(map[string]bool),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func quizKey(ref string) string { return "quiz:" + ref }
func entryKey(id string) string { return "entry:" + id }

// EnqueueQuiz queues an estimation for ref. A cached result is reported
// through the update callback instead; a queued one is left alone.
func (s *Scheduler) EnqueueQuiz(ref string) {
	s.mu.Lock()
	if r, ok := s.quizzes[ref]; ok && r.Status != StatusPending {
		s.mu.Unlock()
		s.notify(r)
		return
	}
	s.enqueueLocked(task{ref: ref})
	s.mu.Unlock()
}

// EnqueueEntry queues every quiz of e followed by the entry sum.
func (s *Scheduler) EnqueueEntry(e Entry) {
	s.mu.Lock()
	s.refs[e.ID] = append([]string(nil), e.Refs...)
	if r, ok := s.entries[e.ID]; ok && r.Status == StatusDone {
		s.mu.Unlock()
		s.notify(r)
		return
	}
	for _, ref := range e.Refs {
		if r, ok := s.quizzes[ref]; ok && r.Status != StatusPending {
			continue
		}
		s.enqueueLocked(task{ref: ref})
	}
	s.enqueueLocked(task{entry: e.ID})
	s.mu.Unlock()
}

func (s *Scheduler) enqueueLocked(t task) {
	key := quizKey(t.ref)
	if t.entry != "" {
		key = entryKey(t.entry)
	}
	if s.pending[key] {
		return
	}
	s.pending[key] = true
	if t.entry == "" {
		s.quizzes[t.ref] = Result{Key: t.ref, Status: StatusPending}
	}
	s.queue = append(s.queue, t)
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Capacity returns the cached result for a quiz reference.
func (s *Scheduler) Capacity(ref string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.quizzes[ref]
	return r, ok
}

// EntryCapacity returns the cached result for an entry.
func (s *Scheduler) EntryCapacity(id string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.entries[id]
	return r, ok
}

// Drain runs ticks until the queue is empty or ctx is done. Each tick
// waits for the rate limiter and then runs tasks until its budget is used;
// at least one task runs per tick.
func (s *Scheduler) Drain(ctx context.Context) error {
	for {
		if s.Pending() == 0 {
			return nil
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("drain capacity queue: %w", err)
		}
		deadline := s.now().Add(s.budget)
		for {
			t, ok := s.pop()
			if !ok {
				return nil
			}
			s.run(ctx, t)
			if !s.now().Before(deadline) {
				break
			}
		}
	}
}

func (s *Scheduler) pop() (task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return task{}, false
	}
	t := s.queue[0]
	s.queue = s.queue[1:]
	return t, true
}

func (s *Scheduler) run(ctx context.Context, t task) {
	var r Result
	if t.entry != "" {
		r = s.sumEntry(t.entry)
	} else {
		r = s.runQuiz(ctx, t.ref)
	}
	s.notify(r)
}

// Estimate loads ref and returns its capacity. Concurrent calls for the
// same ref share one load.
func (s *Scheduler) Estimate(ctx context.Context, ref string) (int, error) {
	v, err, _ := s.group.Do(ref, func() (any, error) {
		def, err := s.load(ctx, ref)
		if err != nil {
			return 0, err
		}
		return problemgen.EstimateCapacity(def), nil
	})
	if err != nil {
		return 0, fmt.Errorf("estimate capacity of %s: %w", ref, err)
	}
	return v.(int), nil
}

func (s *Scheduler) runQuiz(ctx context.Context, ref string) Result {
	r := Result{Key: ref, Status: StatusDone}
	n, err := s.Estimate(ctx, ref)
	if err != nil {
		s.log.Warn("capacity estimation failed", "ref", ref, "error", err)
		r.Status = StatusError
		r.Err = err
	}
	r.Capacity = n

	s.mu.Lock()
	s.quizzes[ref] = r
	delete(s.pending, quizKey(ref))
	// Entry sums that include ref are stale now.
	for id, refs := range s.refs {
		for _, other := range refs {
			if other == ref {
				delete(s.entries, id)
				break
			}
		}
	}
	s.mu.Unlock()
	return r
}

func (s *Scheduler) sumEntry(id string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, entryKey(id))

	r := Result{Key: id, Entry: true, Status: StatusDone}
	for _, ref := range s.refs[id] {
		q, ok := s.quizzes[ref]
		if !ok || q.Status == StatusPending {
			r.Status = StatusPending
			continue
		}
		r.Capacity += q.Capacity
	}
	if r.Status == StatusPending {
		// A quiz of this entry is still queued; sum again after it.
		s.enqueueLocked(task{entry: id})
		return r
	}
	s.entries[id] = r
	return r
}

func (s *Scheduler) notify(r Result) {
	if s.onUpdate != nil {
		s.onUpdate(r)
	}
}
