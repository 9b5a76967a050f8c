package spacedrep

import (
	"time"

	"github.com/bem130/rubyquiz/internal/store"
)

// IsDue returns true if the entry is due at now.
func IsDue(e *store.ScheduleEntry, now time.Time) bool {
	return !now.Before(e.DueAt)
}

// Overdue returns how long past due the entry is, or 0 if not yet due.
func Overdue(e *store.ScheduleEntry, now time.Time) time.Duration {
	if now.Before(e.DueAt) {
		return 0
	}
	return now.Sub(e.DueAt)
}

// ReviewStatus describes an entry's review status for display.
type ReviewStatus string

const (
	ReviewNew      ReviewStatus = "new"
	ReviewNotDue   ReviewStatus = "not_due"
	ReviewDue      ReviewStatus = "due"
	ReviewOverdue  ReviewStatus = "overdue"
	ReviewLearning ReviewStatus = "learning"
)

// Status returns the review status for UI display. A review entry counts
// as overdue once it is late by more than half its interval.
func Status(e *store.ScheduleEntry, now time.Time) ReviewStatus {
	switch {
	case e.State == store.StateNew:
		return ReviewNew
	case !IsDue(e, now):
		if e.State == store.StateReview {
			return ReviewNotDue
		}
		return ReviewLearning
	case e.State == store.StateReview && Overdue(e, now).Seconds() > e.IntervalSec*0.5:
		return ReviewOverdue
	}
	return ReviewDue
}
