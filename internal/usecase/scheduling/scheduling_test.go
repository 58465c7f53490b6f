package scheduling

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(newTestLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSchedulerActionFires(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionCardRefresh, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	if err := s.AddTask(ScheduledTask{Name: "refresh", Schedule: "50ms", Action: ActionCardRefresh}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(200 * time.Millisecond)
	s.Stop()

	if c := count.Load(); c < 1 {
		t.Errorf("action fired %d times, expected at least 1", c)
	}
}

func TestSchedulerTaskTimeout(t *testing.T) {
	deadlines := make(chan time.Duration, 4)

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionCardRefresh, func(ctx context.Context) error {
		dl, ok := ctx.Deadline()
		if !ok {
			return fmt.Errorf("no deadline")
		}
		select {
		case deadlines <- time.Until(dl):
		default:
		}
		return nil
	})
	s.AddTask(ScheduledTask{Name: "refresh", Schedule: "50ms", Action: ActionCardRefresh, Timeout: time.Second})

	s.Start(context.Background())
	defer s.Stop()

	select {
	case left := <-deadlines:
		if left > time.Second || left <= 0 {
			t.Errorf("deadline in %v, want within 1s", left)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestSchedulerUnknownAction(t *testing.T) {
	s := NewScheduler(newTestLogger())
	err := s.AddTask(ScheduledTask{Name: "unknown", Schedule: "100ms", Action: "does_not_exist"})
	if err == nil {
		t.Error("expected error for unknown action")
	}
}

func TestSchedulerDuplicateTask(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionCardRefresh, func(ctx context.Context) error { return nil })

	if err := s.AddTask(ScheduledTask{Name: "dup", Schedule: "1h", Action: ActionCardRefresh}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := s.AddTask(ScheduledTask{Name: "dup", Schedule: "1h", Action: ActionCardRefresh}); err == nil {
		t.Error("expected error for duplicate task name")
	}
}

func TestSchedulerContextCancellation(t *testing.T) {
	var count atomic.Int32

	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionCardRefresh, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	s.AddTask(ScheduledTask{Name: "ctx-task", Schedule: "50ms", Action: ActionCardRefresh})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(150 * time.Millisecond)
	cancel()
	s.Stop()

	countAfterCancel := count.Load()
	time.Sleep(100 * time.Millisecond)

	if count.Load() != countAfterCancel {
		t.Error("task continued after context cancellation")
	}
}

func TestSchedulerActionError(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionCardRefresh, func(ctx context.Context) error {
		return fmt.Errorf("simulated error")
	})
	s.AddTask(ScheduledTask{Name: "failing", Schedule: "50ms", Action: ActionCardRefresh})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(150 * time.Millisecond)

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSchedulerDoubleStop(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.Start(context.Background())

	if err := s.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := NewScheduler(newTestLogger())
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop without start: %v", err)
	}
}

func TestSchedulerNextRun(t *testing.T) {
	s := NewScheduler(newTestLogger())
	s.RegisterAction(ActionCardRefresh, func(ctx context.Context) error { return nil })
	s.AddTask(ScheduledTask{Name: "hourly", Schedule: "@every 1h", Action: ActionCardRefresh})

	s.Start(context.Background())
	defer s.Stop()

	next := s.NextRun("hourly")
	if next == nil {
		t.Fatal("expected non-nil next run time")
	}
	if next.Before(time.Now()) {
		t.Error("next run should be in the future")
	}
	if s.NextRun("nope") != nil {
		t.Error("expected nil for unknown task")
	}
}

func TestParseSchedule(t *testing.T) {
	for _, in := range []string{"*/5 * * * *", "@every 30m", "30m", "100ms"} {
		sched, err := ParseSchedule(in)
		if err != nil {
			t.Errorf("ParseSchedule(%q): %v", in, err)
			continue
		}
		if sched == nil {
			t.Errorf("ParseSchedule(%q) = nil", in)
		}
	}
	for _, in := range []string{"", "not-a-schedule", "-5m", "0s"} {
		if _, err := ParseSchedule(in); err == nil {
			t.Errorf("ParseSchedule(%q): expected error", in)
		}
	}
}

func TestConstantDelayNext(t *testing.T) {
	sched, err := ParseSchedule("250ms")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := sched.Next(base); !got.Equal(base.Add(250 * time.Millisecond)) {
		t.Errorf("Next = %v", got)
	}
}
