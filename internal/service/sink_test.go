package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"alarm-planner/internal/logx"
	"alarm-planner/internal/model"
)

type funcSink func(ctx context.Context, ev AlarmEvent) error

func (f funcSink) Deliver(ctx context.Context, ev AlarmEvent) error { return f(ctx, ev) }

func testEvent(id uint) AlarmEvent {
	return newAlarmEvent(model.Task{ID: id, Title: "t"}, "2024-01-01 09:00", time.Now())
}

func TestDispatcherDelivers(t *testing.T) {
	var mu sync.Mutex
	var got []uint
	sink := funcSink(func(_ context.Context, ev AlarmEvent) error {
		mu.Lock()
		got = append(got, ev.TaskID)
		mu.Unlock()
		return nil
	})
	d := NewDispatcher(sink, DispatcherOptions{QueueSize: 8, RatePerSec: 100}, logx.Nop())
	d.Start(context.Background())

	for i := uint(1); i <= 3; i++ {
		if err := d.Emit(testEvent(i)); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Stop(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("delivered = %v", got)
	}
	if d.Delivered() != 3 || d.Failed() != 0 || d.Dropped() != 0 {
		t.Fatalf("counters = %d/%d/%d", d.Delivered(), d.Failed(), d.Dropped())
	}
	if err := d.Emit(testEvent(4)); !errors.Is(err, ErrDispatcherStopped) {
		t.Fatalf("Emit after Stop: %v", err)
	}
}

func TestDispatcherEmitNeverBlocks(t *testing.T) {
	d := NewDispatcher(NewLogSink(logx.Nop()), DispatcherOptions{QueueSize: 2}, logx.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Emit(testEvent(1))
		d.Emit(testEvent(2))
		if err := d.Emit(testEvent(3)); !errors.Is(err, ErrQueueFull) {
			t.Errorf("third Emit: want ErrQueueFull, got %v", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked")
	}
	if d.Dropped() != 1 {
		t.Fatalf("Dropped = %d", d.Dropped())
	}
	d.Stop(context.Background())
}

func TestDispatcherSinkFailures(t *testing.T) {
	var calls int
	var mu sync.Mutex
	sink := funcSink(func(_ context.Context, ev AlarmEvent) error {
		mu.Lock()
		calls++
		mu.Unlock()
		switch ev.TaskID {
		case 1:
			return errors.New("telegram down")
		case 2:
			panic("boom")
		}
		return nil
	})
	d := NewDispatcher(sink, DispatcherOptions{RatePerSec: 100}, logx.Nop())
	d.Start(context.Background())
	for i := uint(1); i <= 3; i++ {
		d.Emit(testEvent(i))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Stop(ctx)

	if d.Failed() != 2 || d.Delivered() != 1 {
		t.Fatalf("failed=%d delivered=%d", d.Failed(), d.Delivered())
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Fatalf("sink calls = %d", calls)
	}
}

func TestDispatcherStopAbandonsSlowSink(t *testing.T) {
	started := make(chan struct{}, 1)
	sink := funcSink(func(ctx context.Context, _ AlarmEvent) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})
	d := NewDispatcher(sink, DispatcherOptions{RatePerSec: 100, DeliveryTimeout: time.Minute}, logx.Nop())
	d.Start(context.Background())
	d.Emit(testEvent(1))
	d.Emit(testEvent(2))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	begin := time.Now()
	d.Stop(ctx)
	if time.Since(begin) > 5*time.Second {
		t.Fatal("Stop did not honour its context")
	}
	if d.Delivered() != 0 || d.Failed()+d.Dropped() != 2 {
		t.Fatalf("failed=%d dropped=%d", d.Failed(), d.Dropped())
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(logx.NewWriter(&buf, "info"))
	ev := newAlarmEvent(model.Task{ID: 7, Title: "Math HW", Description: "ch. 4"}, "2024-01-01 09:00", time.Now())
	if err := sink.Deliver(context.Background(), ev); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "reminder: Math HW") || !strings.Contains(out, "ch. 4") {
		t.Fatalf("log output = %s", out)
	}
}

func TestAlarmEventIDsUnique(t *testing.T) {
	a, b := testEvent(1), testEvent(1)
	if a.ID == b.ID {
		t.Fatal("event ids collide")
	}
}
