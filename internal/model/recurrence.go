package model

import (
	"errors"
	"strings"
)

var ErrInvalidRecurrence = errors.New("model: invalid recurrence")

type Recurrence string

const (
	RecurrenceNone   Recurrence = "none"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

// Recurrences lists the full vocabulary in display order.
var Recurrences = []Recurrence{RecurrenceNone, RecurrenceDaily, RecurrenceWeekly}

func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly:
		return true
	default:
		return false
	}
}

// Repeats reports whether r produces successors. Unknown rules never repeat.
func (r Recurrence) Repeats() bool {
	return r == RecurrenceDaily || r == RecurrenceWeekly
}

// ParseRecurrence normalises user input. Empty input means none.
func ParseRecurrence(raw string) (Recurrence, error) {
	value := Recurrence(strings.ToLower(strings.TrimSpace(raw)))
	if value == "" {
		return RecurrenceNone, nil
	}
	if !value.Valid() {
		return "", ErrInvalidRecurrence
	}
	return value, nil
}
