package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
)

// delegateSchema is offered to the model whenever peers are registered.
var delegateSchema = domain.ToolSchema{
	Name:        domain.ToolDelegate,
	Description: "Delegate a task to a remote agent by name and return its final answer.",
	Parameters: json.RawMessage(`{"type":"object","properties":{` +
		`"agent_name":{"type":"string","description":"Name of the remote agent"},` +
		`"task":{"type":"string","description":"Complete task description for the remote agent"}},` +
		`"required":["agent_name","task"]}`),
}

// Reasoner implements domain.Reasoner on top of a chat provider. The first
// tool call in a response selects the action; a response without tool calls
// is the final answer.
type Reasoner struct {
	provider domain.LLMProvider
}

// NewReasoner creates a reasoner backed by provider.
func NewReasoner(provider domain.LLMProvider) *Reasoner {
	return &Reasoner{provider: provider}
}

var _ domain.Reasoner = (*Reasoner)(nil)

// Decide implements domain.Reasoner.
func (r *Reasoner) Decide(ctx context.Context, d domain.Decision) (domain.Action, error) {
	resp, err := r.provider.Chat(ctx, domain.ChatRequest{
		Messages: BuildMessages(d),
		Tools:    BuildTools(d),
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning with %s: %w", r.provider.Name(), err)
	}
	return ActionFromMessage(resp.Message), nil
}

// SystemPrompt renders the system prompt with the peer summary. The summary
// replaces the placeholder when present and is appended otherwise.
func SystemPrompt(d domain.Decision) string {
	summary := domain.SummarizeAgents(d.Peers)
	if strings.Contains(d.SystemPrompt, config.AgentsSummaryPlaceholder) {
		return strings.ReplaceAll(d.SystemPrompt, config.AgentsSummaryPlaceholder, summary)
	}
	if len(d.Peers) == 0 {
		return d.SystemPrompt
	}
	return d.SystemPrompt + "\n\n" + summary
}

// BuildMessages converts a decision's history to chat messages.
func BuildMessages(d domain.Decision) []domain.Message {
	msgs := make([]domain.Message, 0, len(d.History)+1)
	if prompt := SystemPrompt(d); prompt != "" {
		msgs = append(msgs, domain.Message{Role: domain.ChatRoleSystem, Content: prompt})
	}
	for _, t := range d.History {
		switch t.Role {
		case domain.RoleAgent:
			msgs = append(msgs, domain.Message{Role: domain.ChatRoleAssistant, Content: t.Content})
		case domain.RoleToolResult:
			msgs = append(msgs, domain.Message{
				Role:    domain.ChatRoleUser,
				Content: fmt.Sprintf("[result from %s]\n%s", t.Name, t.Content),
			})
		default:
			msgs = append(msgs, domain.Message{Role: domain.ChatRoleUser, Content: t.Content})
		}
	}
	return msgs
}

// BuildTools returns the decision's tools plus delegation when peers exist.
func BuildTools(d domain.Decision) []domain.ToolSchema {
	tools := make([]domain.ToolSchema, 0, len(d.Tools)+1)
	tools = append(tools, d.Tools...)
	if len(d.Peers) > 0 {
		tools = append(tools, delegateSchema)
	}
	return tools
}

// ActionFromMessage maps a model reply to the next action. A delegation
// with unusable arguments stays a ToolAction so the executor can report it
// back as a bad-args result.
func ActionFromMessage(msg domain.Message) domain.Action {
	if len(msg.ToolCalls) == 0 {
		return domain.FinalAction{Text: msg.Content}
	}

	call := msg.ToolCalls[0]
	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if call.Name == domain.ToolDelegate {
		if d, err := domain.ParseDelegateArgs(args); err == nil {
			return d
		}
	}
	return domain.ToolAction{Name: call.Name, Args: args}
}
