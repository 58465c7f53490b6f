package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
)

func TestGeminiChat(t *testing.T) {
	var got geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-pro:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello"},{"text":" world"}]}}],` +
			`"usageMetadata":{"promptTokenCount":5,"candidatesTokenCount":2,"totalTokenCount":7}}`))
	}))
	defer server.Close()

	provider := NewGeminiProvider(config.LLMConfig{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gemini-pro",
	}, newTestLogger())

	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.ChatRoleSystem, Content: "be brief"},
			{Role: domain.ChatRoleUser, Content: "Hi"},
			{Role: domain.ChatRoleAssistant, Content: "Hello"},
			{Role: domain.ChatRoleUser, Content: "again"},
		},
		Tools: []domain.ToolSchema{
			{Name: "search", Description: "search", Parameters: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`)},
			domain.ListAgentsSchema,
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "Hello world" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("system instruction = %+v", got.SystemInstruction)
	}
	if len(got.Contents) != 3 || got.Contents[1].Role != "model" {
		t.Errorf("contents = %+v", got.Contents)
	}
	decls := got.Tools[0].FunctionDeclarations
	if len(decls) != 2 {
		t.Fatalf("decls = %+v", decls)
	}
	if decls[1].Parameters != nil {
		t.Errorf("empty-property schema should be dropped, got %s", decls[1].Parameters)
	}
}

func TestGeminiFunctionCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"search","args":{"q":"go"}}}]}}]}`))
	}))
	defer server.Close()

	provider := NewGeminiProvider(config.LLMConfig{BaseURL: server.URL, Model: "gemini-pro"}, newTestLogger())
	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.ChatRoleUser, Content: "find go"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", resp.Message.ToolCalls)
	}
	tc := resp.Message.ToolCalls[0]
	if tc.Name != "search" || string(tc.Arguments) != `{"q":"go"}` {
		t.Errorf("tool call = %+v", tc)
	}
}

func TestGeminiChatError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"forbidden"}`))
	}))
	defer server.Close()

	provider := NewGeminiProvider(config.LLMConfig{BaseURL: server.URL, Model: "gemini-pro"}, newTestLogger())
	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.ChatRoleUser, Content: "Hi"}},
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}
