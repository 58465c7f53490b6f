package a2a

import (
	"encoding/json"
	"strconv"
	"strings"

	a2asdk "github.com/a2aproject/a2a-go/a2a"
)

// JSON-RPC and A2A protocol constants.
const (
	JSONRPCVersion    = "2.0"
	MethodSendMessage = "message/send"
	WellKnownCardPath = "/.well-known/agent-card.json"
	ProtocolVersion   = "0.3.0"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Wire types come from the A2A SDK.
type (
	Message           = a2asdk.Message
	Task              = a2asdk.Task
	TaskStatus        = a2asdk.TaskStatus
	AgentCard         = a2asdk.AgentCard
	AgentSkill        = a2asdk.AgentSkill
	AgentCapabilities = a2asdk.AgentCapabilities
	MessageSendParams = a2asdk.MessageSendParams
)

// Message roles.
const (
	RoleUser  = a2asdk.MessageRoleUser
	RoleAgent = a2asdk.MessageRoleAgent
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return "rpc error " + strconv.Itoa(e.Code) + ": " + e.Message
}

// TextMessage builds a single-part text message with a fresh id.
func TextMessage(role a2asdk.MessageRole, text, contextID string) *Message {
	msg := a2asdk.NewMessage(role, a2asdk.TextPart{Text: text})
	msg.ContextID = contextID
	return msg
}

// TextOf joins the text parts of parts with newlines.
func TextOf(parts a2asdk.ContentParts) string {
	var texts []string
	for _, p := range parts {
		var text string
		switch tp := p.(type) {
		case a2asdk.TextPart:
			text = tp.Text
		case *a2asdk.TextPart:
			text = tp.Text
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n")
}

// MessageText returns the text of msg, or "" for a nil message.
func MessageText(msg *Message) string {
	if msg == nil {
		return ""
	}
	return TextOf(msg.Parts)
}
