package service

import (
	"time"

	"alarm-planner/internal/model"
)

// NextDueDate returns the due date following date under rule. The second
// result is false for none and for any unrecognised rule; callers must not
// create a successor then.
func NextDueDate(date time.Time, rule model.Recurrence) (time.Time, bool) {
	switch rule {
	case model.RecurrenceDaily:
		return date.AddDate(0, 0, 1), true
	case model.RecurrenceWeekly:
		return date.AddDate(0, 0, 7), true
	default:
		return time.Time{}, false
	}
}
