package spacedrep

import (
	"math"
	"time"

	"github.com/bem130/rubyquiz/internal/store"
)

// LearningSteps are the intervals in seconds of the learning phase: 2m -> 15m -> 1d.
var LearningSteps = []float64{120, 900, 86400}

// RelearningSteps are the relearning intervals in seconds: 10m -> 1d. Only the first step is used, as
// the base interval after a lapse on an entry with no interval yet.
var RelearningSteps = []float64{600, 86400}

const (
	DefaultEase = 2.5
	MinEase     = 1.3
	MaxEase     = 2.8

	// MinIntervalSec is the shortest interval ever stored.
	MinIntervalSec = 30

	// OneDaySec is the cap applied while the streak is short, and the
	// threshold above which due dates are fuzzed.
	OneDaySec = 86400

	// WeakBaseSec is the base interval of a weak answer with no interval yet.
	WeakBaseSec = 3600

	// MinLapseIntervalSec is the floor after a wrong or idk answer.
	MinLapseIntervalSec = 60
)

// NewEntry returns a fresh NEW entry due at now.
func NewEntry(key store.ScheduleKey, now time.Time) *store.ScheduleEntry {
	return &store.ScheduleEntry{
		ScheduleKey: key,
		State:       store.StateNew,
		DueAt:       now,
		Ease:        DefaultEase,
		DueFuzz:     1,
		CreatedAt:   now,
	}
}

// Apply advances e by one graded answer. random supplies the due-date fuzz
// and must return values in [0, 1).
func Apply(e *store.ScheduleEntry, result store.Result, answerMs int64, now time.Time, random func() float64) {
	if e.Ease == 0 {
		e.Ease = DefaultEase
	}
	e.LastResult = result
	if answerMs > 0 {
		e.LastAnswerMs = answerMs
	}
	e.UpdatedAt = now

	if e.State == store.StateNew || e.State == "" {
		e.State = store.StateLearning
		e.StepIndex = 0
		scheduleInterval(e, LearningSteps[0], now, random)
		return
	}

	switch result {
	case store.ResultStrong:
		applyStrong(e, now, random)
	case store.ResultWeak:
		applyWeak(e, now, random)
	case store.ResultIdk:
		applyIdk(e, now, random)
	default:
		applyWrong(e, now, random)
	}
}

// applyStrong graduates LEARNING entries after the last step. Other states
// keep their state and grow the interval; a RELEARNING entry only leaves
// relearning through a weak answer.
func applyStrong(e *store.ScheduleEntry, now time.Time, random func() float64) {
	if e.State == store.StateLearning {
		e.StepIndex++
		if e.StepIndex < len(LearningSteps) {
			scheduleInterval(e, LearningSteps[e.StepIndex], now, random)
			return
		}
		e.State = store.StateReview
		e.StepIndex = 0
	}

	e.Ease = clampEase(e.Ease + 0.02)
	e.Streak++
	next := float64(OneDaySec)
	if e.IntervalSec > 0 {
		next = e.IntervalSec * e.Ease
	}
	if e.Streak < 2 {
		next = math.Min(next, OneDaySec)
	}
	scheduleInterval(e, next, now, random)
}

func applyWeak(e *store.ScheduleEntry, now time.Time, random func() float64) {
	e.Ease = clampEase(e.Ease - 0.02)
	e.State = store.StateReview
	e.StepIndex = 0
	e.Streak++
	base := float64(WeakBaseSec)
	if e.IntervalSec > 0 {
		base = e.IntervalSec
	}
	next := base * math.Max(1.2, 0.7*e.Ease)
	if e.Streak < 2 {
		next = math.Min(next, OneDaySec)
	}
	scheduleInterval(e, next, now, random)
}

func applyWrong(e *store.ScheduleEntry, now time.Time, random func() float64) {
	e.Ease = clampEase(e.Ease - 0.08)
	e.State = store.StateRelearning
	e.StepIndex = 0
	e.Streak = 0
	e.Lapses++
	base := RelearningSteps[0]
	if e.IntervalSec > 0 {
		base = e.IntervalSec * 0.2
	}
	scheduleInterval(e, math.Max(MinLapseIntervalSec, base), now, random)
}

func applyIdk(e *store.ScheduleEntry, now time.Time, random func() float64) {
	e.Ease = clampEase(e.Ease - 0.04)
	e.State = store.StateRelearning
	e.StepIndex = 0
	e.Streak = 0
	base := RelearningSteps[0]
	if e.IntervalSec > 0 {
		base = e.IntervalSec * 0.35
	}
	scheduleInterval(e, math.Max(MinLapseIntervalSec, base), now, random)
}

// clampEase keeps ease in [MinEase, MaxEase], rounded to 4 decimals.
func clampEase(v float64) float64 {
	if v < MinEase {
		return MinEase
	}
	if v > MaxEase {
		return MaxEase
	}
	return math.Round(v*10000) / 10000
}

func scheduleInterval(e *store.ScheduleEntry, intervalSec float64, now time.Time, random func() float64) {
	normalized := math.Max(MinIntervalSec, intervalSec)
	fuzz := Fuzz(normalized, random)
	e.IntervalSec = math.Max(MinIntervalSec, math.Round(normalized))
	e.DueAt = now.Add(time.Duration(normalized * fuzz * float64(time.Second)))
	e.DueFuzz = fuzz
	e.LastSeenAt = now
}

// Fuzz returns the due-date multiplier for an interval. Intervals under a
// day are exact. Longer ones get a uniform multiplier in [0.95, 1.05],
// except for a 5% chance of none at all.
func Fuzz(intervalSec float64, random func() float64) float64 {
	if intervalSec < OneDaySec {
		return 1
	}
	if random() < 0.05 {
		return 1
	}
	return 1 + (random()*0.1 - 0.05)
}
