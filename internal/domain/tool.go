package domain

import (
	"encoding/json"
	"fmt"
)

// ToolSchema describes a callable tool and its argument schema.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents an LLM's request to invoke a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Names the reasoning step uses for the executor's built-in actions.
const (
	ToolListAgents = "list_available_agents"
	ToolDelegate   = "delegate_to_agent"
)

// ListAgentsSchema advertises the built-in peer listing tool.
var ListAgentsSchema = ToolSchema{
	Name:        ToolListAgents,
	Description: "List the remote agents this agent can delegate to, with their skills.",
	Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
}

// ParseDelegateArgs decodes delegate_to_agent arguments. Both fields are
// required.
func ParseDelegateArgs(args json.RawMessage) (DelegateAction, error) {
	var in struct {
		AgentName string `json:"agent_name"`
		Task      string `json:"task"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return DelegateAction{}, fmt.Errorf("%w: %s arguments: %w", ErrInvalidInput, ToolDelegate, err)
		}
	}
	if in.AgentName == "" || in.Task == "" {
		return DelegateAction{}, fmt.Errorf("%w: %s requires agent_name and task", ErrInvalidInput, ToolDelegate)
	}
	return DelegateAction{Agent: in.AgentName, Task: in.Task}, nil
}
