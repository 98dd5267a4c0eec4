package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"alarm-planner/internal/logx"
	"alarm-planner/internal/model"
)

var (
	ErrAlarmStarted = errors.New("alarm scheduler already started")
	ErrAlarmStopped = errors.New("alarm scheduler stopped")
)

type AlarmOptions struct {
	// Interval between ticks; ticks run at least this often.
	Interval time.Duration
	// Location the wall-clock due moments are interpreted in.
	Location *time.Location
	// Advance enables creation of successors for recurring tasks.
	Advance bool
	// Recurrences limits which rules advance. Empty means all known rules.
	Recurrences []model.Recurrence
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// TickReport summarises one tick.
type TickReport struct {
	Key       string
	Matched   int
	Fired     int
	Skipped   int
	Malformed int
	Dropped   int
	Advanced  int
	Err       error
}

// AlarmService is the background alarm loop. On every tick it fires each task
// due in the current minute exactly once and, for recurring tasks, inserts the
// next occurrence. The firing task itself is never modified.
type AlarmService struct {
	store   TaskStore
	emitter Emitter
	sched   *SchedulerService
	guard   *DedupGuard
	log     logx.Logger
	now     func() time.Time
	loc     *time.Location

	mu       sync.Mutex
	interval time.Duration
	advance  bool
	enabled  map[model.Recurrence]bool
	entry    cron.EntryID
	started  bool
	stopped  bool
	runCtx   context.Context
	cancel   context.CancelFunc

	// tickMu serialises ticks; Stop takes it to wait out the tick in flight.
	tickMu sync.Mutex
}

func NewAlarmService(store TaskStore, emitter Emitter, sched *SchedulerService, opts AlarmOptions, log logx.Logger) *AlarmService {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.Recurrences) == 0 {
		opts.Recurrences = model.Recurrences
	}
	s := &AlarmService{
		store:    store,
		emitter:  emitter,
		sched:    sched,
		guard:    NewDedupGuard(),
		log:      log.With(logx.String("component", "alarm")),
		now:      opts.Now,
		loc:      opts.Location,
		interval: opts.Interval,
		advance:  opts.Advance,
	}
	s.setRecurrences(opts.Recurrences)
	return s
}

// Start registers the periodic tick and runs one tick right away so the
// current minute is not missed. It may be called once.
func (s *AlarmService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrAlarmStopped
	}
	if s.started {
		return ErrAlarmStarted
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	id, err := s.sched.ScheduleInterval(s.interval, s.runTick)
	if err != nil {
		s.cancel()
		return fmt.Errorf("schedule alarm tick: %w", err)
	}
	s.entry = id
	s.started = true
	s.sched.Start()

	s.log.Info("alarm scheduler started",
		logx.Duration("interval", s.interval),
		logx.Bool("advance", s.advance),
		logx.String("location", s.loc.String()),
	)
	go s.runTick()
	return nil
}

// Stop signals the loop and waits for the tick in flight. Once Stop returns
// the scheduler performs no further store writes. Safe to call more than once.
func (s *AlarmService) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.started {
		s.cancel()
		s.sched.Remove(s.entry)
	}
	s.mu.Unlock()

	s.tickMu.Lock()
	s.tickMu.Unlock()
	s.log.Info("alarm scheduler stopped")
}

// SetAdvance toggles recurrence advancement at runtime.
func (s *AlarmService) SetAdvance(enabled bool) {
	s.mu.Lock()
	s.advance = enabled
	s.mu.Unlock()
}

// SetRecurrences replaces the rules that advance.
func (s *AlarmService) SetRecurrences(rules []model.Recurrence) {
	s.mu.Lock()
	s.setRecurrences(rules)
	s.mu.Unlock()
}

func (s *AlarmService) setRecurrences(rules []model.Recurrence) {
	s.enabled = make(map[model.Recurrence]bool, len(rules))
	for _, r := range rules {
		s.enabled[r] = true
	}
}

// SetInterval reschedules the tick. Before Start it only records the value.
func (s *AlarmService) SetInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == s.interval {
		return nil
	}
	if s.started && !s.stopped {
		id, err := s.sched.ScheduleInterval(d, s.runTick)
		if err != nil {
			return fmt.Errorf("reschedule alarm tick: %w", err)
		}
		s.sched.Remove(s.entry)
		s.entry = id
	}
	s.interval = d
	s.log.Info("alarm interval changed", logx.Duration("interval", d))
	return nil
}

func (s *AlarmService) runTick() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	rep := s.Tick(ctx)
	switch {
	case rep.Err != nil && !errors.Is(rep.Err, context.Canceled) && !errors.Is(rep.Err, ErrAlarmStopped):
		s.log.Error("alarm tick abandoned", logx.String("key", rep.Key), logx.Err(rep.Err))
	case rep.Fired > 0 || rep.Advanced > 0:
		s.log.Info("alarm tick",
			logx.String("key", rep.Key),
			logx.Int("fired", rep.Fired),
			logx.Int("advanced", rep.Advanced),
			logx.Int("skipped", rep.Skipped),
		)
	default:
		s.log.Debug("alarm tick", logx.String("key", rep.Key), logx.Int("matched", rep.Matched))
	}
}

// Tick runs one check for the current minute.
func (s *AlarmService) Tick(ctx context.Context) TickReport {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	now := s.now().In(s.loc)
	key := model.MomentKey(now)
	rep := TickReport{Key: key}

	if err := s.live(ctx); err != nil {
		rep.Err = err
		return rep
	}
	s.guard.Roll(key)

	tasks, err := s.store.FindDueAt(ctx, key)
	if err != nil {
		rep.Err = fmt.Errorf("find due tasks: %w", err)
		return rep
	}
	rep.Matched = len(tasks)

	advance, enabled := s.settings()
	for _, task := range tasks {
		first := s.guard.Mark(task.ID, key)
		if !first && s.guard.Settled(task.ID, key) {
			rep.Skipped++
			continue
		}

		due, err := task.Due(s.loc)
		if err != nil {
			s.log.Warn("skip task with malformed due moment", logx.Uint("task", task.ID), logx.Err(err))
			s.guard.Settle(task.ID, key)
			rep.Malformed++
			continue
		}

		if first {
			if err := s.emitter.Emit(newAlarmEvent(task, key, now)); err != nil {
				s.log.Warn("alarm not queued", logx.Uint("task", task.ID), logx.Err(err))
				rep.Dropped++
			}
			rep.Fired++
		}

		if !advance || !enabled[task.Recurrence] {
			if task.Recurrence != model.RecurrenceNone && !task.Recurrence.Valid() {
				s.log.Debug("unknown recurrence treated as none",
					logx.Uint("task", task.ID), logx.String("recurrence", string(task.Recurrence)))
			}
			s.guard.Settle(task.ID, key)
			continue
		}

		created, err := s.advanceTask(ctx, task, due)
		if err != nil {
			rep.Err = fmt.Errorf("advance task %d: %w", task.ID, err)
			return rep
		}
		if created {
			rep.Advanced++
		}
		s.guard.Settle(task.ID, key)
	}
	return rep
}

// advanceTask inserts the next occurrence of task unless it already exists.
func (s *AlarmService) advanceTask(ctx context.Context, task model.Task, due time.Time) (bool, error) {
	next, ok := NextDueDate(due, task.Recurrence)
	if !ok {
		return false, nil
	}
	date, _ := model.SplitMoment(next)
	successor := model.Task{
		Title:       task.Title,
		Description: task.Description,
		DueDate:     date,
		DueTime:     task.DueTime,
		Recurrence:  task.Recurrence,
		Completed:   false,
	}

	if err := s.live(ctx); err != nil {
		return false, err
	}

	if inserter, ok := s.store.(successorInserter); ok {
		id, inserted, err := inserter.InsertSuccessor(ctx, &successor)
		if err != nil {
			return false, err
		}
		if inserted {
			s.log.Info("next occurrence scheduled", logx.Uint("task", task.ID), logx.Uint("next", id), logx.String("due", successor.DueKey()))
		}
		return inserted, nil
	}

	exists, err := s.store.FindDuplicateRecurrence(ctx, successor.Title, successor.DueDate, successor.DueTime, successor.Recurrence)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.live(ctx); err != nil {
		return false, err
	}
	id, err := s.store.Insert(ctx, &successor)
	if err != nil {
		return false, err
	}
	s.log.Info("next occurrence scheduled", logx.Uint("task", task.ID), logx.Uint("next", id), logx.String("due", successor.DueKey()))
	return true, nil
}

// live reports whether writes are still allowed.
func (s *AlarmService) live(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrAlarmStopped
	}
	return nil
}

func (s *AlarmService) settings() (bool, map[model.Recurrence]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	enabled := make(map[model.Recurrence]bool, len(s.enabled))
	for r := range s.enabled {
		if r.Repeats() {
			enabled[r] = true
		}
	}
	return s.advance, enabled
}

// Interval returns the current tick interval.
func (s *AlarmService) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Guard exposes the dedup guard, for diagnostics.
func (s *AlarmService) Guard() *DedupGuard { return s.guard }
