package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"alarm-planner/internal/model"
)

// TaskRepository handles CRUD and due-moment queries for tasks. It is safe
// for concurrent use: gorm pools statements over a single sqlite connection.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Insert stores task and returns the assigned id.
func (r *TaskRepository) Insert(ctx context.Context, task *model.Task) (uint, error) {
	task.ID = 0
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return 0, fmt.Errorf("create task: %w", err)
	}
	return task.ID, nil
}

// InsertSuccessor inserts next unless a task with the same
// (title, due date, due time, recurrence) exists. The check and the insert
// share one transaction.
func (r *TaskRepository) InsertSuccessor(ctx context.Context, next *model.Task) (uint, bool, error) {
	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := duplicateRecurrence(tx, next.Title, next.DueDate, next.DueTime, next.Recurrence)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		next.ID = 0
		if err := tx.Create(next).Error; err != nil {
			return fmt.Errorf("create successor: %w", err)
		}
		inserted = true
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return next.ID, inserted, nil
}

func (r *TaskRepository) Get(ctx context.Context, id uint) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, id).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("%w: %d", model.ErrTaskNotFound, id)
	default:
		return nil, fmt.Errorf("find task: %w", err)
	}
}

func (r *TaskRepository) Update(ctx context.Context, id uint, fields model.TaskFields) error {
	if fields.Empty() {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", id).Updates(fields.Columns())
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", model.ErrTaskNotFound, id)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Task{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", model.ErrTaskNotFound, id)
	}
	return nil
}

// FindDueAt returns tasks whose due moment equals momentKey exactly, in id order.
func (r *TaskRepository) FindDueAt(ctx context.Context, momentKey string) ([]model.Task, error) {
	date, clock, ok := strings.Cut(strings.TrimSpace(momentKey), " ")
	if !ok {
		return nil, fmt.Errorf("find due tasks: invalid moment key %q", momentKey)
	}
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("due_date = ? AND due_time = ?", date, clock).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find due tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) FindDuplicateRecurrence(ctx context.Context, title, date, clock string, rule model.Recurrence) (bool, error) {
	return duplicateRecurrence(r.db.WithContext(ctx), title, date, clock, rule)
}

func duplicateRecurrence(db *gorm.DB, title, date, clock string, rule model.Recurrence) (bool, error) {
	var count int64
	if err := db.Model(&model.Task{}).
		Where("title = ? AND due_date = ? AND due_time = ? AND recurrence = ?", title, date, clock, string(rule)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("find duplicate recurrence: %w", err)
	}
	return count > 0, nil
}

// List returns every task ordered by due moment.
func (r *TaskRepository) List(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Order("due_date ASC, due_time ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Upcoming returns up to limit open tasks due at or after fromKey.
func (r *TaskRepository) Upcoming(ctx context.Context, fromKey string, limit int) ([]model.Task, error) {
	date, clock, ok := strings.Cut(strings.TrimSpace(fromKey), " ")
	if !ok {
		return nil, fmt.Errorf("list upcoming: invalid moment key %q", fromKey)
	}
	q := r.db.WithContext(ctx).
		Where("completed = ?", false).
		Where("due_date > ? OR (due_date = ? AND due_time >= ?)", date, date, clock).
		Order("due_date ASC, due_time ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list upcoming: %w", err)
	}
	return tasks, nil
}

// DeleteBefore removes tasks due strictly before date and reports how many.
func (r *TaskRepository) DeleteBefore(ctx context.Context, date string) (int64, error) {
	res := r.db.WithContext(ctx).Where("due_date < ?", date).Delete(&model.Task{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Backup copies every task into task_backups stamped with at.
func (r *TaskRepository) Backup(ctx context.Context, at time.Time) (int64, error) {
	var copied int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tasks []model.Task
		if err := tx.Order("id ASC").Find(&tasks).Error; err != nil {
			return fmt.Errorf("read tasks: %w", err)
		}
		if len(tasks) == 0 {
			return nil
		}
		rows := make([]model.TaskBackup, 0, len(tasks))
		for _, t := range tasks {
			rows = append(rows, model.TaskBackup{
				TaskID:      t.ID,
				Title:       t.Title,
				Description: t.Description,
				DueDate:     t.DueDate,
				DueTime:     t.DueTime,
				Recurrence:  t.Recurrence,
				Completed:   t.Completed,
				BackupAt:    at,
			})
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("write backups: %w", err)
		}
		copied = int64(len(rows))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("backup tasks: %w", err)
	}
	return copied, nil
}

// Backups lists snapshot rows taken at or after since.
func (r *TaskRepository) Backups(ctx context.Context, since time.Time) ([]model.TaskBackup, error) {
	var rows []model.TaskBackup
	if err := r.db.WithContext(ctx).Where("backup_at >= ?", since).Order("backup_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return rows, nil
}
