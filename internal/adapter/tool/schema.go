package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// toolSchemaJSON returns the tool's input schema as JSON with every array
// node given an items schema. Some servers advertise bare arrays, which
// strict reasoning backends reject.
func toolSchemaJSON(t mcp.Tool) (json.RawMessage, error) {
	var raw []byte
	if len(t.RawInputSchema) > 0 {
		raw = t.RawInputSchema
	} else {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal input schema: %w", err)
		}
		raw = data
	}

	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	obj, ok := node.(map[string]any)
	if !ok || len(obj) == 0 {
		return emptyObjectSchema, nil
	}
	for k, v := range obj {
		if v == nil {
			delete(obj, k)
		}
	}
	if typ, _ := obj["type"].(string); typ == "" {
		obj["type"] = "object"
	}
	sanitizeSchema(obj)
	return json.Marshal(obj)
}

// sanitizeSchema walks a decoded JSON schema in place.
func sanitizeSchema(node any) {
	switch v := node.(type) {
	case map[string]any:
		if v["type"] == "array" {
			if _, ok := v["items"]; !ok {
				v["items"] = map[string]any{"type": "string"}
			}
		}
		for _, child := range v {
			sanitizeSchema(child)
		}
	case []any:
		for _, child := range v {
			sanitizeSchema(child)
		}
	}
}

// compileSchema compiles a tool input schema for argument validation.
func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", name, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", name, err)
	}
	return compiled, nil
}

// decodeArgs parses and validates call arguments. Empty or null args are
// treated as an empty object.
func decodeArgs(schema *jsonschema.Schema, args json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("arguments must be a JSON object")
	}
	if schema != nil {
		if err := schema.Validate(v); err != nil {
			return nil, fmt.Errorf("schema validation failed: %w", err)
		}
	}
	return obj, nil
}
