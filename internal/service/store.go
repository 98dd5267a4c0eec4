package service

import (
	"context"

	"alarm-planner/internal/model"
)

// TaskStore is the durable task collection the alarm scheduler depends on.
// Implementations must be safe for concurrent use by the scheduler and the
// front end.
type TaskStore interface {
	Insert(ctx context.Context, task *model.Task) (uint, error)
	Update(ctx context.Context, id uint, fields model.TaskFields) error
	Delete(ctx context.Context, id uint) error
	// FindDueAt matches the minute-truncated due moment exactly.
	FindDueAt(ctx context.Context, momentKey string) ([]model.Task, error)
	FindDuplicateRecurrence(ctx context.Context, title, date, clock string, r model.Recurrence) (bool, error)
}

// successorInserter is implemented by stores that can run the duplicate
// check and the insert atomically.
type successorInserter interface {
	InsertSuccessor(ctx context.Context, next *model.Task) (uint, bool, error)
}
