package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alarm-planner/internal/model"
	"alarm-planner/internal/repository"
)

var ErrInvalidTask = errors.New("invalid task")

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description string
	DueDate     string
	DueTime     string
	Recurrence  string
}

// TaskService wraps task-related business logic for the front end.
type TaskService struct {
	taskRepo    *repository.TaskRepository
	recurrences []model.Recurrence
	loc         *time.Location
	now         func() time.Time
}

func NewTaskService(taskRepo *repository.TaskRepository, recurrences []model.Recurrence, loc *time.Location) *TaskService {
	if len(recurrences) == 0 {
		recurrences = model.Recurrences
	}
	if loc == nil {
		loc = time.Local
	}
	return &TaskService{taskRepo: taskRepo, recurrences: recurrences, loc: loc, now: time.Now}
}

// Recurrences returns the rules users may pick.
func (s *TaskService) Recurrences() []model.Recurrence {
	return append([]model.Recurrence(nil), s.recurrences...)
}

func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	date, clock, err := model.NormalizeDue(input.DueDate, input.DueTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	rule, err := s.parseRecurrence(input.Recurrence)
	if err != nil {
		return nil, err
	}

	task := model.Task{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		DueDate:     date,
		DueTime:     clock,
		Recurrence:  rule,
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	if _, err := s.taskRepo.Insert(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id uint) (*model.Task, error) {
	return s.taskRepo.Get(ctx, id)
}

func (s *TaskService) ListTasks(ctx context.Context) ([]model.Task, error) {
	return s.taskRepo.List(ctx)
}

// Upcoming returns the next open tasks from now on.
func (s *TaskService) Upcoming(ctx context.Context, limit int) ([]model.Task, error) {
	return s.taskRepo.Upcoming(ctx, model.MomentKey(s.now().In(s.loc)), limit)
}

// SetCompleted records whether the user has addressed the task. It has no
// effect on alarms or recurrence.
func (s *TaskService) SetCompleted(ctx context.Context, id uint, done bool) (*model.Task, error) {
	if err := s.taskRepo.Update(ctx, id, model.TaskFields{Completed: &done}); err != nil {
		return nil, err
	}
	return s.taskRepo.Get(ctx, id)
}

// EditTask changes one field given as text, e.g. ("time", "18:30").
func (s *TaskService) EditTask(ctx context.Context, id uint, field, value string) (*model.Task, error) {
	task, err := s.taskRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var fields model.TaskFields
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "title":
		fields.Title = &value
	case "description", "desc":
		fields.Description = &value
	case "date":
		date, _, err := model.NormalizeDue(value, task.DueTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
		fields.DueDate = &date
	case "time":
		_, clock, err := model.NormalizeDue(task.DueDate, value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
		}
		fields.DueTime = &clock
	case "recurrence", "repeat":
		rule, err := s.parseRecurrence(value)
		if err != nil {
			return nil, err
		}
		fields.Recurrence = &rule
	default:
		return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidTask, field)
	}

	updated := *task
	fields.Apply(&updated)
	if err := updated.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	if err := s.taskRepo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.taskRepo.Get(ctx, id)
}

// DeleteTask removes a task. Its id is never handed out again.
func (s *TaskService) DeleteTask(ctx context.Context, id uint) error {
	return s.taskRepo.Delete(ctx, id)
}

func (s *TaskService) parseRecurrence(raw string) (model.Recurrence, error) {
	rule, err := model.ParseRecurrence(raw)
	if err != nil {
		return "", fmt.Errorf("%w: recurrence %q", ErrInvalidTask, raw)
	}
	for _, allowed := range s.recurrences {
		if allowed == rule {
			return rule, nil
		}
	}
	return "", fmt.Errorf("%w: recurrence %q is disabled", ErrInvalidTask, raw)
}
