// Package distractor adjusts generated options using the learner's
// confusion history and recent concept coverage.
package distractor

import (
	"context"
	"sync"

	"github.com/bem130/rubyquiz/internal/logger"
	"github.com/bem130/rubyquiz/internal/problemgen"
	"github.com/bem130/rubyquiz/internal/store"
)

const (
	ConfusionWindow  = 3
	ConfusionHistory = 8
	CoverageWindow   = 5
	CoverageHistory  = 16
)

// StatsReader reads confusion pairs for a correct concept, best first.
type StatsReader interface {
	ForConcept(ctx context.Context, userID, conceptID string, limit int) ([]store.ConfusionStat, error)
}

// OptionSource builds a wrong option for a concept the generator did not
// pick. *problemgen.Engine implements it.
type OptionSource interface {
	ConceptOption(q *problemgen.Question, conceptID string, taken map[string]bool) (problemgen.Option, bool)
}

type usage struct {
	conceptID string
	question  int
}

// history is a per-user list of concept usages, trimmed to a window of
// question indexes and a hard length limit.
type history struct {
	window int
	limit  int
	users  map[string][]usage
}

func newHistory(window, limit int) *history {
	if window < 1 {
		window = 1
	}
	if limit < window {
		limit = window
	}
	return &history{window: window, limit: limit, users: make(map[string][]usage)}
}

func (h *history) minIndex(question int) int {
	return max(0, question-(h.window-1))
}

func (h *history) record(userID, conceptID string, question int) {
	if userID == "" || conceptID == "" {
		return
	}
	lo := h.minIndex(question)
	var kept []usage
	for _, u := range h.users[userID] {
		if u.question >= lo {
			kept = append(kept, u)
		}
	}
	kept = append(kept, usage{conceptID: conceptID, question: question})
	if len(kept) > h.limit {
		kept = kept[len(kept)-h.limit:]
	}
	h.users[userID] = kept
}

func (h *history) recent(userID string, question int) map[string]bool {
	lo := h.minIndex(question)
	out := make(map[string]bool)
	for _, u := range h.users[userID] {
		if u.question >= lo {
			out[u.conceptID] = true
		}
	}
	return out
}

// Strategy holds per-user cooldown state in memory. It is safe for
// concurrent use.
type Strategy struct {
	stats  StatsReader
	source OptionSource
	rand   problemgen.Rand
	log    *logger.Logger

	mu        sync.Mutex
	counters  map[string]int
	confusion *history
	coverage  *history
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithRand replaces the random source.
func WithRand(r problemgen.Rand) Option {
	return func(s *Strategy) { s.rand = r }
}

// WithOptionSource lets the strategy put a confused concept among the
// options when the generator left it out.
func WithOptionSource(src OptionSource) Option {
	return func(s *Strategy) { s.source = src }
}

// WithLogger sets the logger used for stats read failures.
func WithLogger(l *logger.Logger) Option {
	return func(s *Strategy) { s.log = l }
}

// New creates a strategy reading confusion pairs from stats.
func New(stats StatsReader, opts ...Option) *Strategy {
	s := &Strategy{
		stats:     stats,
		rand:      problemgen.DefaultRand(),
		log:       logger.Nop(),
		counters:  make(map[string]int),
		confusion: newHistory(ConfusionWindow, ConfusionHistory),
		coverage:  newHistory(CoverageWindow, CoverageHistory),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Apply adjusts the options of every answer part of q for userID and
// returns q. A confusion pair that fires puts the confused concept among
// the options, replacing an engine pick when needed. On a stats read
// failure, or when the result would break the option invariants, q keeps
// its options.
func (s *Strategy) Apply(ctx context.Context, q *problemgen.Question, userID string) *problemgen.Question {
	if q == nil || userID == "" || len(q.Answers) == 0 {
		return q
	}

	// Reads happen before any mutation so that a failure leaves q untouched.
	tops := make([]*store.ConfusionStat, len(q.Answers))
	for i, a := range q.Answers {
		if a.CorrectIndex < 0 || a.CorrectIndex >= len(a.Options) || s.stats == nil {
			continue
		}
		concept := a.Options[a.CorrectIndex].ConceptID
		if concept == "" {
			continue
		}
		stats, err := s.stats.ForConcept(ctx, userID, concept, 1)
		if err != nil {
			s.log.Warn("read confusion stats", "user_id", userID, "qid", q.ID, "error", err)
			return q
		}
		if len(stats) > 0 {
			tops[i] = &stats[0]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[userID]++
	question := s.counters[userID]

	saved := make([]problemgen.AnswerPart, len(q.Answers))
	for i, a := range q.Answers {
		saved[i] = a
		saved[i].Options = append([]problemgen.Option(nil), a.Options...)
	}
	for i := range q.Answers {
		s.arrange(q, &q.Answers[i], tops[i], userID, question)
	}
	if verr := (&problemgen.StructuralValidator{}).Validate(q); verr != nil {
		s.log.Warn("distractor strategy discarded", "user_id", userID, "qid", q.ID, "error", verr)
		q.Answers = saved
	}
	return q
}

// arrange picks the confusion, coverage and random distractors for a, then
// shuffles the options.
func (s *Strategy) arrange(q *problemgen.Question, a *problemgen.AnswerPart, top *store.ConfusionStat, userID string, question int) {
	if a.CorrectIndex < 0 || a.CorrectIndex >= len(a.Options) {
		return
	}
	correct := a.Options[a.CorrectIndex]
	var wrong []problemgen.Option
	for i, o := range a.Options {
		if i != a.CorrectIndex {
			wrong = append(wrong, o)
		}
	}
	if len(wrong) == 0 {
		return
	}

	var inject func(conceptID string) (problemgen.Option, bool)
	if s.source != nil {
		inject = func(conceptID string) (problemgen.Option, bool) {
			taken := make(map[string]bool, len(a.Options))
			for _, o := range a.Options {
				taken[o.DisplayKey] = true
			}
			return s.source.ConceptOption(q, conceptID, taken)
		}
	}

	taken := make([]bool, len(wrong))
	var prioritized []problemgen.Option
	take := func(i int) {
		taken[i] = true
		prioritized = append(prioritized, wrong[i])
	}
	if i, ok := s.pickConfusion(top, wrong, inject, userID, question); ok {
		take(i)
	}
	if i, ok := s.pickCoverage(wrong, taken, userID, question); ok {
		take(i)
	}
	if i, ok := s.pickAny(taken); ok {
		take(i)
	}

	ordered := append([]problemgen.Option{correct}, prioritized...)
	for i, o := range wrong {
		if !taken[i] {
			ordered = append(ordered, o)
		}
	}
	for i := range ordered {
		ordered[i].IsCorrect = i == 0
	}
	s.shuffle(ordered)

	for i := range ordered {
		if ordered[i].IsCorrect {
			a.CorrectIndex = i
		}
	}
	a.Options = ordered
}

// pickConfusion returns the option matching the user's strongest confusion
// pair, unless that pair was used in the last ConfusionWindow questions.
// It fires with probability clamp(0.15 + 0.7*score, 0, 0.75). When the
// confused concept is not among wrong, inject builds an option for it,
// which replaces a random entry of wrong.
func (s *Strategy) pickConfusion(top *store.ConfusionStat, wrong []problemgen.Option, inject func(string) (problemgen.Option, bool), userID string, question int) (int, bool) {
	if top == nil || top.WrongConceptID == "" || len(wrong) == 0 {
		return 0, false
	}
	if s.confusion.recent(userID, question)[top.WrongConceptID] {
		return 0, false
	}
	idx := -1
	for i, o := range wrong {
		if o.ConceptID == top.WrongConceptID {
			idx = i
			break
		}
	}
	if idx < 0 && inject == nil {
		return 0, false
	}
	p := clamp(0.15+0.7*clamp(top.Score, 0, 1), 0, 0.75)
	if s.rand.Float64() > p {
		return 0, false
	}
	if idx < 0 {
		opt, ok := inject(top.WrongConceptID)
		if !ok {
			return 0, false
		}
		idx = s.intn(len(wrong))
		wrong[idx] = opt
	}
	s.confusion.record(userID, top.WrongConceptID, question)
	return idx, true
}

// pickCoverage prefers an option whose concept was not shown in the last
// CoverageWindow questions.
func (s *Strategy) pickCoverage(wrong []problemgen.Option, taken []bool, userID string, question int) (int, bool) {
	recent := s.coverage.recent(userID, question)
	var available, novel []int
	for i, o := range wrong {
		if taken[i] {
			continue
		}
		available = append(available, i)
		if o.ConceptID != "" && !recent[o.ConceptID] {
			novel = append(novel, i)
		}
	}
	pool := novel
	if len(pool) == 0 {
		pool = available
	}
	if len(pool) == 0 {
		return 0, false
	}
	i := pool[s.intn(len(pool))]
	s.coverage.record(userID, wrong[i].ConceptID, question)
	return i, true
}

func (s *Strategy) pickAny(taken []bool) (int, bool) {
	var pool []int
	for i, t := range taken {
		if !t {
			pool = append(pool, i)
		}
	}
	if len(pool) == 0 {
		return 0, false
	}
	return pool[s.intn(len(pool))], true
}

func (s *Strategy) shuffle(opts []problemgen.Option) {
	for i := len(opts) - 1; i > 0; i-- {
		j := s.intn(i + 1)
		opts[i], opts[j] = opts[j], opts[i]
	}
}

func (s *Strategy) intn(n int) int {
	i := int(s.rand.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
