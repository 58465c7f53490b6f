package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
)

func TestAnthropicChat(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "ant-key" {
			t.Errorf("api key header = %q", r.Header.Get("X-Api-Key"))
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",` +
			`"content":[{"type":"text","text":"Looking."},{"type":"tool_use","id":"tu_1","name":"search","input":{"q":"go"}}],` +
			`"stop_reason":"tool_use","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider(config.LLMConfig{BaseURL: server.URL, APIKey: "ant-key", Model: "claude-test"}, newTestLogger())
	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.ChatRoleSystem, Content: "be brief"},
			{Role: domain.ChatRoleUser, Content: "find go"},
		},
		Tools: []domain.ToolSchema{{
			Name:        "search",
			Description: "web search",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}},"required":["q"]}`),
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if got["model"] != "claude-test" {
		t.Errorf("model = %v", got["model"])
	}
	if got["system"] == nil {
		t.Error("system prompt not sent")
	}
	tools, _ := got["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", got["tools"])
	}
	if tool := tools[0].(map[string]any); tool["name"] != "search" || tool["description"] != "web search" {
		t.Errorf("tool = %v", tool)
	}

	if resp.Message.Content != "Looking." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.Message.ToolCalls)
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "tu_1" || tc.Name != "search" || string(tc.Arguments) != `{"q":"go"}` {
		t.Errorf("tool call = %+v (%s)", tc, tc.Arguments)
	}
}

func TestAnthropicChatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer server.Close()

	provider := NewAnthropicProvider(config.LLMConfig{BaseURL: server.URL, APIKey: "bad", Model: "claude-test"}, newTestLogger())
	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.ChatRoleUser, Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
}
