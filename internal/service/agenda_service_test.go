package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"alarm-planner/internal/model"
)

func TestAgendaSummary(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := NewAgendaService(repo, time.UTC)
	now := newClock("2024-01-01 08:30:00").Now()

	empty, err := svc.Summary(ctx, now, 0)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !strings.Contains(empty, "nothing scheduled") {
		t.Fatalf("empty summary = %q", empty)
	}

	for _, task := range []model.Task{
		{Title: "Math <HW>", DueDate: "2024-01-01", DueTime: "09:00", Recurrence: model.RecurrenceDaily},
		{Title: "Dentist", Description: "bring card", DueDate: "2024-01-03", DueTime: "14:00", Recurrence: model.RecurrenceNone},
		{Title: "Old", DueDate: "2023-12-31", DueTime: "09:00", Recurrence: model.RecurrenceNone},
	} {
		task := task
		if _, err := repo.Insert(ctx, &task); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	text, err := svc.Summary(ctx, now, 5)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	for _, want := range []string{"Upcoming", "Math &lt;HW&gt;", "♻️ daily", "Dentist", "📝 bring card", "from now"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Old") {
		t.Fatalf("past task listed:\n%s", text)
	}
	if strings.Index(text, "Math") > strings.Index(text, "Dentist") {
		t.Fatalf("summary not in due order:\n%s", text)
	}
}

func TestFormatTaskIcons(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		task model.Task
		icon string
		rel  string
	}{
		{model.Task{ID: 1, Title: "soon", DueDate: "2024-01-01", DueTime: "09:30"}, "⏳", "from now"},
		{model.Task{ID: 2, Title: "later", DueDate: "2024-01-02", DueTime: "09:00"}, "🟢", "from now"},
		{model.Task{ID: 3, Title: "missed", DueDate: "2024-01-01", DueTime: "08:00"}, "⚠️", "ago"},
		{model.Task{ID: 4, Title: "done", DueDate: "2024-01-01", DueTime: "08:00", Completed: true}, "✅", "ago"},
	}
	for _, tc := range cases {
		line := FormatTask(tc.task, now, time.UTC)
		if !strings.HasPrefix(line, tc.icon) || !strings.Contains(line, tc.rel) {
			t.Fatalf("FormatTask(%s) = %q", tc.task.Title, line)
		}
	}

	broken := FormatTask(model.Task{ID: 5, Title: "broken", DueDate: "someday", DueTime: "?"}, now, time.UTC)
	if !strings.HasPrefix(broken, "🟢") || strings.Contains(broken, "ago") {
		t.Fatalf("malformed due = %q", broken)
	}
}
