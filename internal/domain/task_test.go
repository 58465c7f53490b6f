package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestTaskLifecycle(t *testing.T) {
	task := NewTask("t1", "c1", "hello")
	if task.State != TaskSubmitted {
		t.Fatalf("State = %q, want submitted", task.State)
	}
	if err := task.Transition(TaskWorking); err != nil {
		t.Fatalf("Transition(working): %v", err)
	}
	if err := task.Complete("done"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if task.State != TaskCompleted || task.Result != "done" {
		t.Errorf("task = %+v", task)
	}
	if task.StatusText() != "done" {
		t.Errorf("StatusText = %q", task.StatusText())
	}
}

func TestTaskIllegalTransitions(t *testing.T) {
	tests := []struct {
		from, to TaskState
	}{
		{TaskSubmitted, TaskCompleted},
		{TaskSubmitted, TaskFailed},
		{TaskWorking, TaskSubmitted},
		{TaskCompleted, TaskWorking},
		{TaskFailed, TaskCompleted},
	}
	for _, tt := range tests {
		task := &Task{State: tt.from}
		err := task.Transition(tt.to)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: err = %v, want ErrInvalidTransition", tt.from, tt.to, err)
		}
		if task.State != tt.from {
			t.Errorf("%s -> %s: state changed to %s", tt.from, tt.to, task.State)
		}
	}
}

func TestTaskFailStatusText(t *testing.T) {
	task := NewTask("t1", "c1", "search X")
	_ = task.Transition(TaskWorking)
	cause := &DelegationError{Agent: "Research Agent", Kind: DelegationTransport, Err: errors.New("connection refused")}
	if err := task.Fail(cause); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	text := task.StatusText()
	if !strings.HasPrefix(text, "Error: DelegationFailed:") {
		t.Errorf("StatusText = %q, want DelegationFailed prefix", text)
	}
}
