package spacedrep

import (
	"testing"
	"time"

	"github.com/bem130/rubyquiz/internal/store"
)

func TestIsDue(t *testing.T) {
	e := &store.ScheduleEntry{DueAt: t0}
	if !IsDue(e, t0) {
		t.Error("expected due at the exact due time")
	}
	if IsDue(e, t0.Add(-time.Second)) {
		t.Error("expected not due before the due time")
	}
	if got := Overdue(e, t0.Add(time.Hour)); got != time.Hour {
		t.Errorf("Overdue = %v, want 1h", got)
	}
	if got := Overdue(e, t0.Add(-time.Hour)); got != 0 {
		t.Errorf("Overdue = %v, want 0", got)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name  string
		entry store.ScheduleEntry
		now   time.Time
		want  ReviewStatus
	}{
		{"new", store.ScheduleEntry{State: store.StateNew, DueAt: t0}, t0, ReviewNew},
		{"learning not due", store.ScheduleEntry{State: store.StateLearning, DueAt: t0.Add(time.Minute)}, t0, ReviewLearning},
		{"review not due", store.ScheduleEntry{State: store.StateReview, DueAt: t0.Add(time.Hour)}, t0, ReviewNotDue},
		{"review due", store.ScheduleEntry{State: store.StateReview, DueAt: t0, IntervalSec: 86400}, t0.Add(time.Hour), ReviewDue},
		{"review overdue", store.ScheduleEntry{State: store.StateReview, DueAt: t0, IntervalSec: 3600}, t0.Add(time.Hour), ReviewOverdue},
		{"relearning due", store.ScheduleEntry{State: store.StateRelearning, DueAt: t0}, t0, ReviewDue},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Status(&tc.entry, tc.now); got != tc.want {
				t.Errorf("Status = %s, want %s", got, tc.want)
			}
		})
	}
}
