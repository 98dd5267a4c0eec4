package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"alarm-planner/internal/model"
)

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(newTestRepo(t), nil, time.UTC)

	task, err := svc.CreateTask(ctx, TaskInput{
		Title:       "  Math HW ",
		Description: " chapter 4 ",
		DueDate:     "2024-01-01",
		DueTime:     "9:00",
		Recurrence:  "Daily",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.ID == 0 || task.Title != "Math HW" || task.Description != "chapter 4" {
		t.Fatalf("task = %+v", task)
	}
	if task.DueKey() != "2024-01-01 09:00" || task.Recurrence != model.RecurrenceDaily || task.Completed {
		t.Fatalf("task = %+v", task)
	}

	plain, err := svc.CreateTask(ctx, TaskInput{Title: "Dentist", DueDate: "2024-01-05", DueTime: "14:30"})
	if err != nil {
		t.Fatalf("CreateTask without recurrence: %v", err)
	}
	if plain.Recurrence != model.RecurrenceNone {
		t.Fatalf("default recurrence = %q", plain.Recurrence)
	}
}

func TestCreateTaskRejects(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(newTestRepo(t), []model.Recurrence{model.RecurrenceNone, model.RecurrenceDaily}, time.UTC)

	cases := map[string]TaskInput{
		"empty title":     {Title: " ", DueDate: "2024-01-01", DueTime: "09:00"},
		"bad date":        {Title: "x", DueDate: "2024-02-30", DueTime: "09:00"},
		"bad time":        {Title: "x", DueDate: "2024-01-01", DueTime: "9am"},
		"unknown rule":    {Title: "x", DueDate: "2024-01-01", DueTime: "09:00", Recurrence: "monthly"},
		"disabled weekly": {Title: "x", DueDate: "2024-01-01", DueTime: "09:00", Recurrence: "weekly"},
	}
	for name, in := range cases {
		if _, err := svc.CreateTask(ctx, in); !errors.Is(err, ErrInvalidTask) {
			t.Fatalf("%s: want ErrInvalidTask, got %v", name, err)
		}
	}
	tasks, _ := svc.ListTasks(ctx)
	if len(tasks) != 0 {
		t.Fatalf("rejected input stored %d tasks", len(tasks))
	}
}

func TestEditTask(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(newTestRepo(t), nil, time.UTC)
	task, err := svc.CreateTask(ctx, TaskInput{Title: "Gym", DueDate: "2024-01-01", DueTime: "18:00"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	steps := []struct{ field, value string }{
		{"time", "7:30"},
		{"date", "2024-01-03"},
		{"repeat", "weekly"},
		{"title", "Gym (legs)"},
		{"desc", "bring towel"},
	}
	for _, st := range steps {
		if _, err := svc.EditTask(ctx, task.ID, st.field, st.value); err != nil {
			t.Fatalf("EditTask(%s, %s): %v", st.field, st.value, err)
		}
	}
	got, _ := svc.GetTask(ctx, task.ID)
	if got.DueKey() != "2024-01-03 07:30" || got.Recurrence != model.RecurrenceWeekly ||
		got.Title != "Gym (legs)" || got.Description != "bring towel" {
		t.Fatalf("after edits = %+v", got)
	}

	for _, bad := range []struct{ field, value string }{
		{"time", "25:00"},
		{"date", "tomorrow"},
		{"recurrence", "hourly"},
		{"title", ""},
		{"colour", "red"},
	} {
		if _, err := svc.EditTask(ctx, task.ID, bad.field, bad.value); !errors.Is(err, ErrInvalidTask) {
			t.Fatalf("EditTask(%s, %q): want ErrInvalidTask, got %v", bad.field, bad.value, err)
		}
	}
	if _, err := svc.EditTask(ctx, 999, "title", "x"); !errors.Is(err, model.ErrTaskNotFound) {
		t.Fatalf("EditTask missing: %v", err)
	}
}

func TestSetCompletedAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(newTestRepo(t), nil, time.UTC)
	task, _ := svc.CreateTask(ctx, TaskInput{Title: "Read", DueDate: "2024-01-01", DueTime: "21:00"})

	got, err := svc.SetCompleted(ctx, task.ID, true)
	if err != nil || !got.Completed {
		t.Fatalf("SetCompleted(true) = %+v, %v", got, err)
	}
	got, err = svc.SetCompleted(ctx, task.ID, false)
	if err != nil || got.Completed {
		t.Fatalf("SetCompleted(false) = %+v, %v", got, err)
	}

	if err := svc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := svc.SetCompleted(ctx, task.ID, true); !errors.Is(err, model.ErrTaskNotFound) {
		t.Fatalf("SetCompleted on deleted: %v", err)
	}
}

func TestTaskServiceUpcoming(t *testing.T) {
	ctx := context.Background()
	svc := NewTaskService(newTestRepo(t), nil, time.UTC)
	svc.now = newClock("2024-01-01 12:00:00").Now

	svc.CreateTask(ctx, TaskInput{Title: "morning", DueDate: "2024-01-01", DueTime: "08:00"})
	svc.CreateTask(ctx, TaskInput{Title: "evening", DueDate: "2024-01-01", DueTime: "19:00"})
	svc.CreateTask(ctx, TaskInput{Title: "tomorrow", DueDate: "2024-01-02", DueTime: "08:00"})

	tasks, err := svc.Upcoming(ctx, 5)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "evening" || tasks[1].Title != "tomorrow" {
		t.Fatalf("Upcoming = %+v", tasks)
	}
}
