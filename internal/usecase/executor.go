package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/tracer"
)

// Executor defaults.
const (
	DefaultMaxIterations = 10
	DefaultCallTimeout   = 120 * time.Second
)

// ToolInvoker is the set of tools reachable by name.
type ToolInvoker interface {
	Schemas() []domain.ToolSchema
	Invoke(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Delegator sends a task to a peer agent and waits for its final answer.
type Delegator interface {
	Delegate(ctx context.Context, agent, task, conversationID string) (string, error)
}

// PeerDirectory exposes the registered peers.
type PeerDirectory interface {
	List() []domain.AgentDescriptor
	Summary() string
}

// ExecutorObserver receives task-level measurements.
type ExecutorObserver interface {
	ObserveTask(state domain.TaskState, err error, elapsed time.Duration)
	ObserveDecision()
}

// ExecutorDeps holds injected dependencies for the executor.
type ExecutorDeps struct {
	Name         string
	SystemPrompt string
	Reasoner     domain.Reasoner
	Store        *ConversationStore
	Logger       *slog.Logger

	Tools     ToolInvoker         // optional, nil = no tools
	Peers     PeerDirectory       // optional, nil = no peers
	Delegator Delegator           // optional, nil = delegation fails as not-found
	Locker    *ConversationLocker // optional, nil = no per-conversation locking
	Observer  ExecutorObserver    // optional

	MaxIterations int
	CallTimeout   time.Duration
	// PropagateConversation passes the caller's conversation id to peers.
	PropagateConversation bool
}

// TaskRequest is one inbound message to execute.
type TaskRequest struct {
	Text           string
	ConversationID string // generated when empty
	TaskID         string // generated when empty
}

// Executor runs the bounded decision loop for inbound tasks.
type Executor struct {
	deps ExecutorDeps
}

// NewExecutor creates an executor with the given dependencies.
func NewExecutor(deps ExecutorDeps) *Executor {
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = DefaultMaxIterations
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = DefaultCallTimeout
	}
	if deps.Store == nil {
		deps.Store = NewConversationStore()
	}
	return &Executor{deps: deps}
}

// Name returns the agent name the executor runs as.
func (e *Executor) Name() string { return e.deps.Name }

// Store returns the conversation store backing the executor.
func (e *Executor) Store() *ConversationStore { return e.deps.Store }

// Execute runs req to a terminal state. The returned task is always
// completed or failed.
func (e *Executor) Execute(ctx context.Context, req TaskRequest) *domain.Task {
	if req.ConversationID == "" {
		req.ConversationID = NewID()
	}
	if req.TaskID == "" {
		req.TaskID = NewID()
	}
	task := domain.NewTask(req.TaskID, req.ConversationID, req.Text)
	logger := e.deps.Logger.With("task_id", task.ID, "conversation_id", task.ConversationID)

	ctx, span := tracer.StartSpan(ctx, "executor.task",
		trace.WithAttributes(tracer.TaskAttrs(e.deps.Name, task.ID, task.ConversationID)...),
	)
	ctx = domain.ContextWithConversationID(ctx, task.ConversationID)
	start := time.Now()

	_ = task.Transition(domain.TaskWorking)
	logger.Info("task started")

	result, err := e.run(ctx, task, logger)
	if err != nil {
		_ = task.Fail(err)
		logger.Warn("task failed", "kind", domain.ErrorCodeOf(err), "error", err)
	} else {
		_ = task.Complete(result)
		logger.Info("task completed", "duration_ms", time.Since(start).Milliseconds())
	}

	tracer.Finish(span, err)
	if e.deps.Observer != nil {
		e.deps.Observer.ObserveTask(task.State, err, time.Since(start))
	}
	return task
}

func (e *Executor) run(ctx context.Context, task *domain.Task, logger *slog.Logger) (string, error) {
	if task.Input == "" {
		return "", fmt.Errorf("%w: empty message text", domain.ErrInvalidInput)
	}

	if e.deps.Locker != nil {
		unlock, err := e.deps.Locker.Lock(ctx, task.ConversationID)
		if err != nil {
			return "", err
		}
		defer unlock()
	}

	store := e.deps.Store
	store.Append(task.ConversationID, domain.Turn{Role: domain.RoleUser, Content: task.Input})

	tools := e.toolSchemas()
	var lastErr error
	for i := 1; i <= e.deps.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		action, err := e.decide(ctx, domain.Decision{
			Agent:        e.deps.Name,
			SystemPrompt: e.deps.SystemPrompt,
			History:      store.History(task.ConversationID),
			Tools:        tools,
			Peers:        e.peers(),
			Iteration:    i,
		})
		if err != nil {
			return "", err
		}

		var turn domain.Turn
		switch a := action.(type) {
		case domain.FinalAction:
			store.Append(task.ConversationID, domain.Turn{Role: domain.RoleAgent, Content: a.Text})
			return a.Text, nil
		case domain.ToolAction:
			if a.Name == domain.ToolDelegate {
				turn, lastErr = e.delegateFromTool(ctx, task, a)
			} else {
				turn, lastErr = e.callTool(ctx, a)
			}
		case domain.DelegateAction:
			turn, lastErr = e.delegate(ctx, task, a)
		default:
			return "", fmt.Errorf("%w: unsupported action %T", domain.ErrInvalidInput, action)
		}
		if lastErr != nil {
			logger.Debug("step failed, feeding back", "iteration", i, "turn", turn.Name, "error", lastErr)
		}
		store.Append(task.ConversationID, turn)
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w after %d decisions: last error: %w", domain.ErrDecisionLoopExceeded, e.deps.MaxIterations, lastErr)
	}
	return "", fmt.Errorf("%w after %d decisions", domain.ErrDecisionLoopExceeded, e.deps.MaxIterations)
}

func (e *Executor) decide(ctx context.Context, d domain.Decision) (domain.Action, error) {
	ctx, span := tracer.StartSpan(ctx, "executor.decide",
		trace.WithAttributes(tracer.IntAttr("iteration", d.Iteration)),
	)
	ctx, cancel := context.WithTimeout(ctx, e.deps.CallTimeout)
	defer cancel()

	if e.deps.Observer != nil {
		e.deps.Observer.ObserveDecision()
	}
	action, err := e.deps.Reasoner.Decide(ctx, d)
	if err == nil && action == nil {
		err = errors.New("reasoner returned no action")
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		err = fmt.Errorf("%w: reasoning step: %w", domain.ErrTimeout, err)
	}
	tracer.Finish(span, err)
	return action, err
}

// callTool answers the built-in peer listing locally and routes every other
// name to the tool servers. Failures become error turns.
func (e *Executor) callTool(ctx context.Context, a domain.ToolAction) (domain.Turn, error) {
	ctx, span := tracer.StartSpan(ctx, "executor.tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", a.Name)),
	)

	var (
		text string
		err  error
	)
	switch {
	case a.Name == domain.ToolListAgents:
		text = domain.SummarizeAgents(nil)
		if e.deps.Peers != nil {
			text = e.deps.Peers.Summary()
		}
	case e.deps.Tools == nil:
		err = &domain.ToolInvocationError{
			Kind: domain.ToolErrUnknownTool,
			Tool: a.Name,
			Err:  fmt.Errorf("%w: no tools connected", domain.ErrNotFound),
		}
	default:
		callCtx, cancel := context.WithTimeout(ctx, e.deps.CallTimeout)
		text, err = e.deps.Tools.Invoke(callCtx, a.Name, a.Args)
		cancel()
	}
	tracer.Finish(span, err)

	turn := domain.Turn{Role: domain.RoleToolResult, Name: a.Name, Content: text}
	if err != nil {
		turn.Content = errorContent(err)
	}
	return turn, err
}

func (e *Executor) delegate(ctx context.Context, task *domain.Task, a domain.DelegateAction) (domain.Turn, error) {
	ctx, span := tracer.StartSpan(ctx, "executor.delegate",
		trace.WithAttributes(tracer.StringAttr("peer.name", a.Agent)),
	)

	contextID := ""
	if e.deps.PropagateConversation {
		contextID = task.ConversationID
	}

	var (
		text string
		err  error
	)
	if e.deps.Delegator == nil {
		err = &domain.DelegationError{Agent: a.Agent, Kind: domain.DelegationNotFound, Err: &domain.NotFoundError{Key: a.Agent}}
	} else {
		callCtx, cancel := context.WithTimeout(ctx, e.deps.CallTimeout)
		text, err = e.deps.Delegator.Delegate(callCtx, a.Agent, a.Task, contextID)
		cancel()
	}
	tracer.Finish(span, err)

	turn := domain.Turn{Role: domain.RoleToolResult, Name: a.Agent, Content: text}
	if err != nil {
		turn.Content = errorContent(err)
	}
	return turn, err
}

// delegateFromTool handles a delegation that arrived as a plain tool call.
// Unusable arguments become a bad-args result the reasoner can correct.
func (e *Executor) delegateFromTool(ctx context.Context, task *domain.Task, a domain.ToolAction) (domain.Turn, error) {
	d, err := domain.ParseDelegateArgs(a.Args)
	if err != nil {
		err = &domain.ToolInvocationError{Kind: domain.ToolErrBadArgs, Tool: a.Name, Err: err}
		return domain.Turn{Role: domain.RoleToolResult, Name: a.Name, Content: errorContent(err)}, err
	}
	return e.delegate(ctx, task, d)
}

func (e *Executor) toolSchemas() []domain.ToolSchema {
	var schemas []domain.ToolSchema
	if e.deps.Tools != nil {
		schemas = e.deps.Tools.Schemas()
	}
	return append(schemas, domain.ListAgentsSchema)
}

func (e *Executor) peers() []domain.AgentDescriptor {
	if e.deps.Peers == nil {
		return nil
	}
	return e.deps.Peers.List()
}

// errorContent is the turn text for a failed step.
func errorContent(err error) string {
	return fmt.Sprintf("error: %s: %v", domain.ErrorCodeOf(err), err)
}
