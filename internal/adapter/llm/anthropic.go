package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"go.opentelemetry.io/otel/trace"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/tracer"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicProvider implements domain.LLMProvider with the official
// Anthropic SDK.
type AnthropicProvider struct {
	model  string
	client *anthropic.Client
	logger *slog.Logger
}

// NewAnthropicProvider creates a provider for the Anthropic Messages API.
func NewAnthropicProvider(cfg config.LLMConfig, logger *slog.Logger) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithHTTPClient(newHTTPClient(cfg.Timeout)),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicProvider{
		model:  cfg.Model,
		client: &client,
		logger: logger,
	}
}

// Chat implements domain.LLMProvider.
func (p *AnthropicProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if req.Model == "" {
		req.Model = p.model
	}
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.Name()),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	resp, err := p.client.Messages.New(ctx, toAnthropicParams(req))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	result := &domain.ChatResponse{
		ID:    resp.ID,
		Model: string(resp.Model),
		Usage: domain.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
		CreatedAt: time.Now(),
	}

	msg := domain.Message{Role: domain.ChatRoleAssistant}
	var texts []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if t := block.AsText().Text; t != "" {
				texts = append(texts, t)
			}
		case "tool_use":
			use := block.AsToolUse()
			args, err := json.Marshal(use.Input)
			if err != nil || string(args) == "null" {
				args = []byte("{}")
			}
			msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
				ID:        use.ID,
				Name:      use.Name,
				Arguments: args,
			})
		}
	}
	msg.Content = strings.Join(texts, "")
	result.Message = msg

	setUsageAttrs(span, result.Usage)
	tracer.SetOK(span)
	logChatCompleted(p.logger, p.Name(), result)
	return result, nil
}

// Name implements domain.LLMProvider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

func toAnthropicParams(req domain.ChatRequest) anthropic.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	for _, m := range req.Messages {
		switch m.Role {
		case domain.ChatRoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
		case domain.ChatRoleAssistant:
			if m.Content != "" {
				params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropicTool(t))
	}
	return params
}

func anthropicTool(t domain.ToolSchema) anthropic.ToolUnionParam {
	schema := anthropic.ToolInputSchemaParam{Type: constant.Object("object")}

	var parsed struct {
		Properties any      `json:"properties"`
		Required   []string `json:"required"`
	}
	if len(t.Parameters) > 0 && json.Unmarshal(t.Parameters, &parsed) == nil {
		schema.Properties = parsed.Properties
		schema.Required = parsed.Required
	}

	tool := anthropic.ToolUnionParamOfTool(schema, t.Name)
	if tool.OfTool != nil && t.Description != "" {
		tool.OfTool.Description = anthropic.String(t.Description)
	}
	return tool
}
