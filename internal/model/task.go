package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
	KeyLayout  = DateLayout + " " + TimeLayout
)

var ErrMalformedDue = errors.New("model: malformed due date/time")

// Task is a single reminder. DueDate and DueTime are local wall-clock values
// without a zone; together they form the due moment at minute precision.
type Task struct {
	ID          uint       `gorm:"primaryKey;autoIncrement"`
	Title       string     `gorm:"not null"`
	Description string
	DueDate     string     `gorm:"size:10;not null;index:idx_task_due,priority:1"`
	DueTime     string     `gorm:"size:5;not null;index:idx_task_due,priority:2"`
	Recurrence  Recurrence `gorm:"size:16;not null;default:none"`
	Completed   bool       `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DueKey is the minute-precision moment key, e.g. "2024-01-01 09:00".
func (t Task) DueKey() string {
	return t.DueDate + " " + t.DueTime
}

// Due parses the due moment in loc.
func (t Task) Due(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	due, err := time.ParseInLocation(KeyLayout, t.DueKey(), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: task %d %q: %v", ErrMalformedDue, t.ID, t.DueKey(), err)
	}
	return due, nil
}

// Validate checks the fields a user can set. Due parts must already be in
// canonical form, otherwise they could never equal a moment key.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("model: task title is required")
	}
	date, clock, err := NormalizeDue(t.DueDate, t.DueTime)
	if err != nil {
		return err
	}
	if date != t.DueDate || clock != t.DueTime {
		return fmt.Errorf("%w: %q is not canonical", ErrMalformedDue, t.DueKey())
	}
	if !t.Recurrence.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRecurrence, t.Recurrence)
	}
	return nil
}

// MomentKey formats t as a due moment key, truncated to the minute.
func MomentKey(t time.Time) string {
	return t.Format(KeyLayout)
}

// SplitMoment returns the date and time-of-day parts of t.
func SplitMoment(t time.Time) (date, clock string) {
	return t.Format(DateLayout), t.Format(TimeLayout)
}

// NormalizeDue parses loose user input ("9:05", " 2024-01-01 ") and returns
// the canonical date and time parts.
func NormalizeDue(date, clock string) (string, string, error) {
	raw := strings.TrimSpace(date) + " " + strings.TrimSpace(clock)
	due, err := time.ParseInLocation(KeyLayout, raw, time.UTC)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", ErrMalformedDue, raw, err)
	}
	d, c := SplitMoment(due)
	return d, c, nil
}

var ErrTaskNotFound = errors.New("model: task not found")

// TaskFields is a partial update. Nil fields are left untouched.
type TaskFields struct {
	Title       *string
	Description *string
	DueDate     *string
	DueTime     *string
	Recurrence  *Recurrence
	Completed   *bool
}

func (f TaskFields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.DueDate == nil &&
		f.DueTime == nil && f.Recurrence == nil && f.Completed == nil
}

// Apply copies the set fields onto t.
func (f TaskFields) Apply(t *Task) {
	if f.Title != nil {
		t.Title = *f.Title
	}
	if f.Description != nil {
		t.Description = *f.Description
	}
	if f.DueDate != nil {
		t.DueDate = *f.DueDate
	}
	if f.DueTime != nil {
		t.DueTime = *f.DueTime
	}
	if f.Recurrence != nil {
		t.Recurrence = *f.Recurrence
	}
	if f.Completed != nil {
		t.Completed = *f.Completed
	}
}

// Columns maps the set fields to column names.
func (f TaskFields) Columns() map[string]any {
	cols := make(map[string]any, 6)
	if f.Title != nil {
		cols["title"] = *f.Title
	}
	if f.Description != nil {
		cols["description"] = *f.Description
	}
	if f.DueDate != nil {
		cols["due_date"] = *f.DueDate
	}
	if f.DueTime != nil {
		cols["due_time"] = *f.DueTime
	}
	if f.Recurrence != nil {
		cols["recurrence"] = string(*f.Recurrence)
	}
	if f.Completed != nil {
		cols["completed"] = *f.Completed
	}
	return cols
}
