package service

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"alarm-planner/internal/logx"
	"alarm-planner/internal/model"
	"alarm-planner/internal/repository"
)

var errStoreDown = errors.New("store unavailable")

// memStore is an in-memory TaskStore without an atomic successor insert, so
// the scheduler takes the check-then-insert path.
type memStore struct {
	mu         sync.Mutex
	tasks      map[uint]model.Task
	nextID     uint
	writes     int
	failInsert int
	failFind   error
	dueAt      func(key string) []model.Task
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[uint]model.Task)}
}

func (s *memStore) Insert(_ context.Context, task *model.Task) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert > 0 {
		s.failInsert--
		return 0, errStoreDown
	}
	s.nextID++
	task.ID = s.nextID
	s.tasks[task.ID] = *task
	s.writes++
	return task.ID, nil
}

func (s *memStore) Update(_ context.Context, id uint, fields model.TaskFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return model.ErrTaskNotFound
	}
	fields.Apply(&task)
	s.tasks[id] = task
	s.writes++
	return nil
}

func (s *memStore) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return model.ErrTaskNotFound
	}
	delete(s.tasks, id)
	s.writes++
	return nil
}

func (s *memStore) FindDueAt(_ context.Context, key string) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFind != nil {
		return nil, s.failFind
	}
	if s.dueAt != nil {
		return s.dueAt(key), nil
	}
	var out []model.Task
	for _, task := range s.tasks {
		if task.DueKey() == key {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) FindDuplicateRecurrence(_ context.Context, title, date, clock string, r model.Recurrence) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		if task.Title == title && task.DueDate == date && task.DueTime == clock && task.Recurrence == r {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) add(t *testing.T, title, date, clock string, rule model.Recurrence) model.Task {
	t.Helper()
	task := model.Task{Title: title, DueDate: date, DueTime: clock, Recurrence: rule}
	if _, err := s.Insert(context.Background(), &task); err != nil {
		t.Fatalf("seed %q: %v", title, err)
	}
	return task
}

func (s *memStore) snapshot() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []AlarmEvent
	err    error
}

func (e *recordingEmitter) Emit(ev AlarmEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, ev)
	return nil
}

func (e *recordingEmitter) Events() []AlarmEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]AlarmEvent(nil), e.events...)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(layout string) *clock {
	at, err := time.ParseInLocation("2006-01-02 15:04:05", layout, time.UTC)
	if err != nil {
		panic(err)
	}
	return &clock{now: at}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(layout string) {
	at, err := time.ParseInLocation("2006-01-02 15:04:05", layout, time.UTC)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.now = at
	c.mu.Unlock()
}

func newTestRepo(t *testing.T) *repository.TaskRepository {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "planner.db"), logx.Nop())
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewTaskRepository(db)
}
