package domain

import (
	"context"
	"encoding/json"
)

// Action is the single step chosen by the reasoning step on each decision
// iteration. The set of variants is closed: ToolAction, DelegateAction,
// FinalAction.
type Action interface {
	isAction()
}

// ToolAction calls a named tool with JSON arguments.
type ToolAction struct {
	Name string
	Args json.RawMessage
}

// DelegateAction sends a task description to a named peer agent.
type DelegateAction struct {
	Agent string
	Task  string
}

// FinalAction ends the loop with a textual answer.
type FinalAction struct {
	Text string
}

func (ToolAction) isAction()     {}
func (DelegateAction) isAction() {}
func (FinalAction) isAction()    {}

// Decision is everything the reasoning step sees on one iteration.
type Decision struct {
	Agent        string
	SystemPrompt string
	History      []Turn
	Tools        []ToolSchema
	Peers        []AgentDescriptor
	Iteration    int
}

// Reasoner selects the next action. It is the external collaborator that
// wraps a language model.
type Reasoner interface {
	Decide(ctx context.Context, d Decision) (Action, error)
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, d Decision) (Action, error)

// Decide implements Reasoner.
func (f ReasonerFunc) Decide(ctx context.Context, d Decision) (Action, error) { return f(ctx, d) }
