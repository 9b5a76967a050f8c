package spacedrep

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/bem130/rubyquiz/internal/store"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// fixed returns a random source that always yields v.
func fixed(v float64) func() float64 { return func() float64 { return v } }

// sequence returns a random source cycling through vals.
func sequence(vals ...float64) func() float64 {
	i := 0
	return func() float64 {
		v := vals[i%len(vals)]
		i++
		return v
	}
}

func newEntry() *store.ScheduleEntry {
	return NewEntry(store.ScheduleKey{UserID: "u", QuizID: "q", PatternID: "q::p", QuestionID: "q::p::r1"}, t0)
}

func TestApply_NewGoesToLearning(t *testing.T) {
	for _, r := range []store.Result{store.ResultStrong, store.ResultWeak, store.ResultWrong, store.ResultIdk} {
		e := newEntry()
		Apply(e, r, 1200, t0, fixed(0.5))
		if e.State != store.StateLearning {
			t.Errorf("%s: state = %s, want learning", r, e.State)
		}
		if e.IntervalSec != 120 {
			t.Errorf("%s: interval = %v, want 120", r, e.IntervalSec)
		}
		if !e.DueAt.Equal(t0.Add(120 * time.Second)) {
			t.Errorf("%s: due = %v, want +120s", r, e.DueAt)
		}
		if e.LastAnswerMs != 1200 || e.LastResult != r {
			t.Errorf("%s: last answer not recorded", r)
		}
	}
}

func TestApply_LearningSteps(t *testing.T) {
	e := newEntry()
	Apply(e, store.ResultStrong, 0, t0, fixed(0.5))

	wantIntervals := []float64{900, 86400}
	for i, want := range wantIntervals {
		Apply(e, store.ResultStrong, 0, t0, fixed(0.5))
		if e.State != store.StateLearning {
			t.Fatalf("step %d: state = %s, want learning", i+1, e.State)
		}
		if e.StepIndex != i+1 {
			t.Errorf("step %d: stepIndex = %d", i+1, e.StepIndex)
		}
		if e.IntervalSec != want {
			t.Errorf("step %d: interval = %v, want %v", i+1, e.IntervalSec, want)
		}
	}
	if e.Ease != DefaultEase {
		t.Errorf("ease changed during learning: %v", e.Ease)
	}

	// Steps exhausted: graduate to review, capped at one day while streak < 2.
	Apply(e, store.ResultStrong, 0, t0, fixed(0.5))
	if e.State != store.StateReview {
		t.Fatalf("state = %s, want review", e.State)
	}
	if e.Ease != 2.52 || e.Streak != 1 || e.StepIndex != 0 {
		t.Errorf("ease=%v streak=%d step=%d", e.Ease, e.Streak, e.StepIndex)
	}
	if e.IntervalSec != 86400 {
		t.Errorf("interval = %v, want 86400", e.IntervalSec)
	}

	// Second review success grows the interval past one day.
	Apply(e, store.ResultStrong, 0, t0, fixed(0.5))
	if e.Streak != 2 || e.Ease != 2.54 {
		t.Errorf("ease=%v streak=%d", e.Ease, e.Streak)
	}
	if e.IntervalSec != 219456 {
		t.Errorf("interval = %v, want 219456", e.IntervalSec)
	}
	if e.DueFuzz != 1 {
		t.Errorf("fuzz = %v, want 1 for a 0.5 draw", e.DueFuzz)
	}
}

func reviewEntry(interval, ease float64, streak int) *store.ScheduleEntry {
	e := newEntry()
	e.State = store.StateReview
	e.IntervalSec = interval
	e.Ease = ease
	e.Streak = streak
	return e
}

func TestApply_Transitions(t *testing.T) {
	tests := []struct {
		name         string
		entry        *store.ScheduleEntry
		result       store.Result
		wantState    store.ScheduleState
		wantInterval float64
		wantEase     float64
		wantStreak   int
		wantLapses   int
	}{
		{"weak in review", reviewEntry(10000, 2.5, 3), store.ResultWeak, store.StateReview, 17360, 2.48, 4, 0},
		{"weak floor multiplier", reviewEntry(10000, 1.5, 3), store.ResultWeak, store.StateReview, 12000, 1.48, 4, 0},
		{"weak capped with short streak", reviewEntry(80000, 2.5, 0), store.ResultWeak, store.StateReview, 86400, 2.48, 1, 0},
		{"weak without interval", reviewEntry(0, 2.5, 3), store.ResultWeak, store.StateReview, 6250, 2.48, 4, 0},
		{"wrong in review", reviewEntry(10000, 2.5, 3), store.ResultWrong, store.StateRelearning, 2000, 2.42, 0, 1},
		{"wrong floor", reviewEntry(200, 2.5, 3), store.ResultWrong, store.StateRelearning, 60, 2.42, 0, 1},
		{"wrong without interval", reviewEntry(0, 2.5, 3), store.ResultWrong, store.StateRelearning, 600, 2.42, 0, 1},
		{"idk in review", reviewEntry(10000, 2.5, 3), store.ResultIdk, store.StateRelearning, 3500, 2.46, 0, 0},
		{"strong in review", reviewEntry(10000, 2.5, 3), store.ResultStrong, store.StateReview, 25200, 2.52, 4, 0},
		{"strong capped with short streak", reviewEntry(50000, 2.5, 0), store.ResultStrong, store.StateReview, 86400, 2.52, 1, 0},
		{"ease ceiling", reviewEntry(1000, 2.8, 3), store.ResultStrong, store.StateReview, 2800, 2.8, 4, 0},
		{"ease floor", reviewEntry(1000, 1.35, 3), store.ResultWrong, store.StateRelearning, 200, 1.3, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := tc.entry
			Apply(e, tc.result, 0, t0, fixed(0.5))
			if e.State != tc.wantState {
				t.Errorf("state = %s, want %s", e.State, tc.wantState)
			}
			if e.IntervalSec != tc.wantInterval {
				t.Errorf("interval = %v, want %v", e.IntervalSec, tc.wantInterval)
			}
			if e.Ease != tc.wantEase {
				t.Errorf("ease = %v, want %v", e.Ease, tc.wantEase)
			}
			if e.Streak != tc.wantStreak {
				t.Errorf("streak = %d, want %d", e.Streak, tc.wantStreak)
			}
			if e.Lapses != tc.wantLapses {
				t.Errorf("lapses = %d, want %d", e.Lapses, tc.wantLapses)
			}
		})
	}
}

func TestApply_RelearningStrongStaysRelearning(t *testing.T) {
	e := reviewEntry(10000, 2.5, 3)
	Apply(e, store.ResultWrong, 0, t0, fixed(0.5))
	Apply(e, store.ResultStrong, 0, t0, fixed(0.5))
	if e.State != store.StateRelearning {
		t.Fatalf("state = %s, want relearning", e.State)
	}
	if e.Streak != 1 {
		t.Errorf("streak = %d, want 1", e.Streak)
	}
	// 2000s * 2.44 ease.
	if e.IntervalSec != 4880 {
		t.Errorf("interval = %v, want 4880", e.IntervalSec)
	}
}

func TestApply_RelearningWeakReturnsToReview(t *testing.T) {
	e := reviewEntry(10000, 2.5, 3)
	Apply(e, store.ResultWrong, 0, t0, fixed(0.5))
	Apply(e, store.ResultStrong, 0, t0, fixed(0.5))
	Apply(e, store.ResultWeak, 0, t0, fixed(0.5))
	if e.State != store.StateReview {
		t.Fatalf("state = %s, want review", e.State)
	}
	if e.StepIndex != 0 {
		t.Errorf("step = %d, want 0", e.StepIndex)
	}
}

func TestApply_EaseStaysInBounds(t *testing.T) {
	results := []store.Result{store.ResultStrong, store.ResultWeak, store.ResultWrong, store.ResultIdk}
	r := rand.New(rand.NewPCG(1, 2))
	for run := 0; run < 50; run++ {
		e := newEntry()
		now := t0
		for i := 0; i < 200; i++ {
			Apply(e, results[r.IntN(len(results))], 0, now, r.Float64)
			if e.Ease < MinEase || e.Ease > MaxEase {
				t.Fatalf("run %d step %d: ease %v out of bounds", run, i, e.Ease)
			}
			if e.IntervalSec < MinIntervalSec {
				t.Fatalf("run %d step %d: interval %v below minimum", run, i, e.IntervalSec)
			}
			now = e.DueAt
		}
	}
}

func TestFuzz(t *testing.T) {
	tests := []struct {
		name     string
		interval float64
		random   func() float64
		want     float64
	}{
		{"short interval is exact", 3600, fixed(0.9), 1},
		{"skip draw", 86400, sequence(0.01), 1},
		{"low end", 86400, sequence(0.5, 0), 0.95},
		{"middle", 86400, sequence(0.5, 0.5), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Fuzz(tc.interval, tc.random)
			if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Fuzz = %v, want %v", got, tc.want)
			}
		})
	}

	r := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 1000; i++ {
		f := Fuzz(200000, r.Float64)
		if f < 0.95 || f > 1.05 {
			t.Fatalf("fuzz %v outside [0.95, 1.05]", f)
		}
	}
}

func TestApply_FuzzedDueDate(t *testing.T) {
	e := reviewEntry(100000, 2.5, 5)
	Apply(e, store.ResultStrong, 0, t0, sequence(0.5, 0))
	if math.Abs(e.DueFuzz-0.95) > 1e-9 {
		t.Fatalf("fuzz = %v, want 0.95", e.DueFuzz)
	}
	want := t0.Add(239400 * time.Second)
	if d := e.DueAt.Sub(want); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("due = %v, want %v", e.DueAt, want)
	}
	if e.IntervalSec != 252000 {
		t.Errorf("stored interval = %v, want the unfuzzed 252000", e.IntervalSec)
	}
}
