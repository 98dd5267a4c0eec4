package service

import (
	"testing"
	"time"

	"alarm-planner/internal/model"
)

func TestNextDueDate(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 9, 0, 0, 0, time.UTC) }
	cases := []struct {
		from time.Time
		rule model.Recurrence
		want time.Time
		ok   bool
	}{
		{day(2024, 1, 1), model.RecurrenceDaily, day(2024, 1, 2), true},
		{day(2024, 1, 31), model.RecurrenceDaily, day(2024, 2, 1), true},
		{day(2024, 2, 28), model.RecurrenceDaily, day(2024, 2, 29), true},
		{day(2024, 12, 31), model.RecurrenceDaily, day(2025, 1, 1), true},
		{day(2024, 1, 1), model.RecurrenceWeekly, day(2024, 1, 8), true},
		{day(2024, 12, 28), model.RecurrenceWeekly, day(2025, 1, 4), true},
		{day(2024, 1, 1), model.RecurrenceNone, time.Time{}, false},
		{day(2024, 1, 1), model.Recurrence("monthly"), time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := NextDueDate(tc.from, tc.rule)
		if ok != tc.ok || !got.Equal(tc.want) {
			t.Fatalf("NextDueDate(%s, %s) = %s, %v; want %s, %v", tc.from.Format(model.KeyLayout), tc.rule, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNextDueDateKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	from := time.Date(2024, 3, 30, 9, 0, 0, 0, loc)
	next, _ := NextDueDate(from, model.RecurrenceDaily)
	if got := model.MomentKey(next); got != "2024-03-31 09:00" {
		t.Fatalf("next = %s", got)
	}
}
