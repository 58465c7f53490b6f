package domain

import "fmt"

// TaskState is the lifecycle state of a Task.
type TaskState string

// Task states. submitted -> working -> completed | failed.
const (
	TaskSubmitted TaskState = "submitted"
	TaskWorking   TaskState = "working"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s TaskState) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is the unit of work an executor processes for one inbound message.
type Task struct {
	ID             string
	ConversationID string
	Input          string
	State          TaskState
	Result         string // final answer when completed
	Err            error  // cause when failed
}

// NewTask creates a task in the submitted state.
func NewTask(id, conversationID, input string) *Task {
	return &Task{
		ID:             id,
		ConversationID: conversationID,
		Input:          input,
		State:          TaskSubmitted,
	}
}

// Transition moves the task to the given state if the move is legal.
func (t *Task) Transition(to TaskState) error {
	switch {
	case t.State == TaskSubmitted && to == TaskWorking:
	case t.State == TaskWorking && to.Terminal():
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, to)
	}
	t.State = to
	return nil
}

// Complete finishes the task with a final answer.
func (t *Task) Complete(result string) error {
	if err := t.Transition(TaskCompleted); err != nil {
		return err
	}
	t.Result = result
	return nil
}

// Fail finishes the task with a terminal error.
func (t *Task) Fail(err error) error {
	if terr := t.Transition(TaskFailed); terr != nil {
		return terr
	}
	t.Err = err
	return nil
}

// StatusText is the text reported to the caller for a terminal task.
// Failed tasks carry the error kind so callers can tell an overall failure
// apart from any sub-step that succeeded.
func (t *Task) StatusText() string {
	if t.State == TaskFailed && t.Err != nil {
		return fmt.Sprintf("Error: %s: %v", ErrorCodeOf(t.Err), t.Err)
	}
	return t.Result
}
