package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"alarm-planner/internal/logx"
	"alarm-planner/internal/model"
)

var (
	ErrQueueFull         = errors.New("alarm dispatcher queue full")
	ErrDispatcherStopped = errors.New("alarm dispatcher stopped")
)

// AlarmEvent is what the scheduler emits when a task's due moment arrives.
// Title and Description are the payload; the rest is for correlation.
type AlarmEvent struct {
	ID          string
	TaskID      uint
	Title       string
	Description string
	DueKey      string
	FiredAt     time.Time
}

func newAlarmEvent(task model.Task, key string, at time.Time) AlarmEvent {
	return AlarmEvent{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		Title:       task.Title,
		Description: task.Description,
		DueKey:      key,
		FiredAt:     at,
	}
}

// AlarmSink presents an alarm to the user.
type AlarmSink interface {
	Deliver(ctx context.Context, ev AlarmEvent) error
}

// Emitter hands an event off without waiting for presentation.
type Emitter interface {
	Emit(ev AlarmEvent) error
}

type DispatcherOptions struct {
	QueueSize       int
	RatePerSec      int
	DeliveryTimeout time.Duration
}

// Dispatcher queues alarm events and delivers them to a sink on its own
// goroutine, rate limited. Emit never blocks; when the queue is full the event
// is dropped and counted.
type Dispatcher struct {
	sink    AlarmSink
	log     logx.Logger
	limiter *rate.Limiter
	timeout time.Duration

	mu        sync.Mutex
	queue     chan AlarmEvent
	accepting bool
	started   bool

	runCtx    context.Context
	runCancel context.CancelFunc
	done      chan struct{}

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewDispatcher(sink AlarmSink, opts DispatcherOptions, log logx.Logger) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 1
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 30 * time.Second
	}
	return &Dispatcher{
		sink:      sink,
		log:       log.With(logx.String("component", "dispatcher")),
		limiter:   rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec),
		timeout:   opts.DeliveryTimeout,
		queue:     make(chan AlarmEvent, opts.QueueSize),
		accepting: true,
		done:      make(chan struct{}),
	}
}

// Start launches the delivery worker. Events emitted earlier are kept.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || !d.accepting {
		return
	}
	d.started = true
	d.runCtx, d.runCancel = context.WithCancel(ctx)
	go d.loop()
}

// Emit enqueues ev without blocking.
func (d *Dispatcher) Emit(ev AlarmEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.accepting {
		return ErrDispatcherStopped
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Stop refuses new events and drains the queue until ctx is done; whatever is
// left after that is abandoned.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.accepting {
		d.mu.Unlock()
		return
	}
	d.accepting = false
	close(d.queue)
	started := d.started
	cancel := d.runCancel
	d.mu.Unlock()

	if !started {
		return
	}
	select {
	case <-d.done:
	case <-ctx.Done():
		cancel()
		<-d.done
	}
	cancel()
}

func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }
func (d *Dispatcher) Failed() uint64    { return d.failed.Load() }
func (d *Dispatcher) Dropped() uint64   { return d.dropped.Load() }

func (d *Dispatcher) loop() {
	defer close(d.done)
	for ev := range d.queue {
		if d.runCtx.Err() != nil {
			d.dropped.Add(1)
			continue
		}
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev AlarmEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.log.Error("panic in alarm sink", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	if err := d.limiter.Wait(d.runCtx); err != nil {
		d.dropped.Add(1)
		return
	}
	ctx, cancel := context.WithTimeout(d.runCtx, d.timeout)
	defer cancel()

	if err := d.sink.Deliver(ctx, ev); err != nil {
		d.failed.Add(1)
		d.log.Warn("deliver alarm",
			logx.String("event", ev.ID),
			logx.Uint("task", ev.TaskID),
			logx.Err(err),
		)
		return
	}
	d.delivered.Add(1)
	d.log.Debug("alarm delivered", logx.String("event", ev.ID), logx.Uint("task", ev.TaskID))
}

// LogSink writes alarms to the operational log. It is used when no
// interactive front end is configured.
type LogSink struct {
	log logx.Logger
}

func NewLogSink(log logx.Logger) *LogSink {
	return &LogSink{log: log.With(logx.String("component", "alarm"))}
}

func (s *LogSink) Deliver(_ context.Context, ev AlarmEvent) error {
	s.log.Info(fmt.Sprintf("reminder: %s", ev.Title),
		logx.String("description", ev.Description),
		logx.String("due", ev.DueKey),
		logx.Uint("task", ev.TaskID),
		logx.String("event", ev.ID),
	)
	return nil
}
