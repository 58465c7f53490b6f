package tool

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestToolSchemaJSONAddsArrayItems(t *testing.T) {
	tool := rawTool("search", `{"type":"object","properties":{"tags":{"type":"array"},"nested":{"type":"object","properties":{"ids":{"type":"array"}}}}}`)

	raw, err := toolSchemaJSON(tool)
	if err != nil {
		t.Fatalf("toolSchemaJSON: %v", err)
	}
	var got struct {
		Properties struct {
			Tags   map[string]any `json:"tags"`
			Nested struct {
				Properties struct {
					IDs map[string]any `json:"ids"`
				} `json:"properties"`
			} `json:"nested"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Properties.Tags["items"] == nil {
		t.Errorf("tags missing items: %s", raw)
	}
	if got.Properties.Nested.Properties.IDs["items"] == nil {
		t.Errorf("nested ids missing items: %s", raw)
	}
}

func TestToolSchemaJSONDefaults(t *testing.T) {
	raw, err := toolSchemaJSON(rawTool("ping", `{}`))
	if err != nil {
		t.Fatalf("toolSchemaJSON: %v", err)
	}
	if string(raw) != string(emptyObjectSchema) {
		t.Errorf("schema = %s, want %s", raw, emptyObjectSchema)
	}

	raw, err = toolSchemaJSON(rawTool("ping", `{"properties":{"q":{"type":"string"}}}`))
	if err != nil {
		t.Fatalf("toolSchemaJSON: %v", err)
	}
	if !strings.Contains(string(raw), `"type":"object"`) {
		t.Errorf("missing object type: %s", raw)
	}

	// Structured schema without raw override.
	structured := mcp.Tool{Name: "s", InputSchema: mcp.ToolInputSchema{Type: "object"}}
	raw, err = toolSchemaJSON(structured)
	if err != nil {
		t.Fatalf("toolSchemaJSON structured: %v", err)
	}
	if _, err := compileSchema("s", raw); err != nil {
		t.Errorf("compile structured schema %s: %v", raw, err)
	}
}

func TestDecodeArgs(t *testing.T) {
	schema, err := compileSchema("search", json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`))
	if err != nil {
		t.Fatalf("compileSchema: %v", err)
	}

	got, err := decodeArgs(schema, json.RawMessage(`{"query":"go"}`))
	if err != nil {
		t.Fatalf("decodeArgs: %v", err)
	}
	if got["query"] != "go" {
		t.Errorf("query = %v", got["query"])
	}

	for _, bad := range []string{`{}`, `{"query":1}`, `[1]`, `{not json`} {
		if _, err := decodeArgs(schema, json.RawMessage(bad)); err == nil {
			t.Errorf("decodeArgs(%s): expected error", bad)
		}
	}

	open, _ := compileSchema("ping", emptyObjectSchema)
	for _, empty := range []string{"", "null", "  "} {
		got, err := decodeArgs(open, json.RawMessage(empty))
		if err != nil {
			t.Errorf("decodeArgs(%q): %v", empty, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("decodeArgs(%q) = %v, want empty map", empty, got)
		}
	}
}
