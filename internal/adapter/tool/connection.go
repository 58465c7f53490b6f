package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
)

// queueDepth is how many calls may wait on one connection before further
// callers block on enqueue. Blocked senders are still served in order.
const queueDepth = 64

// mcpClient abstracts the MCP client for testability.
type mcpClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

type callRequest struct {
	ctx  context.Context
	tool string
	args map[string]any
	resp chan callResponse
}

type callResponse struct {
	text string
	err  error
}

// Connection is one live tool server process. Calls on a connection are
// executed one at a time, in the order they were enqueued, by a single
// dispatcher goroutine.
type Connection struct {
	command string
	client  mcpClient
	tools   []domain.ToolSchema
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger

	queue chan *callRequest
	done  chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	deadErr   error // first transport failure; nil while live
}

func newConnection(command string, client mcpClient, logger *slog.Logger) *Connection {
	c := &Connection{
		command: command,
		client:  client,
		schemas: make(map[string]*jsonschema.Schema),
		logger:  logger,
		queue:   make(chan *callRequest, queueDepth),
		done:    make(chan struct{}),
	}
	go c.dispatch()
	return c
}

// Command returns the command line that started this server.
func (c *Connection) Command() string { return c.command }

// Tools returns the advertised tools in server order.
func (c *Connection) Tools() []domain.ToolSchema {
	out := make([]domain.ToolSchema, len(c.tools))
	copy(out, c.tools)
	return out
}

// HasTool reports whether the server advertised name.
func (c *Connection) HasTool(name string) bool {
	_, ok := c.schemas[name]
	return ok
}

// Alive reports whether the connection is usable.
func (c *Connection) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadErr == nil
}

// handshake runs initialize and tools/list and compiles every schema.
func (c *Connection) handshake(ctx context.Context, clientName, clientVersion string) error {
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: clientVersion}
	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	for _, t := range result.Tools {
		if _, dup := c.schemas[t.Name]; dup {
			c.logger.Warn("tool advertised twice, keeping first", "command", c.command, "tool", t.Name)
			continue
		}
		params, err := toolSchemaJSON(t)
		if err != nil {
			return fmt.Errorf("tool %q: %w", t.Name, err)
		}
		compiled, err := compileSchema(t.Name, params)
		if err != nil {
			return err
		}
		c.schemas[t.Name] = compiled
		c.tools = append(c.tools, domain.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return nil
}

// invoke validates args against the advertised schema, then queues the call.
func (c *Connection) invoke(ctx context.Context, tool string, args json.RawMessage) (string, error) {
	schema, ok := c.schemas[tool]
	if !ok {
		return "", &domain.ToolInvocationError{
			Kind: domain.ToolErrUnknownTool,
			Tool: tool,
			Err:  fmt.Errorf("%w: tool %q not advertised by %q", domain.ErrNotFound, tool, c.command),
		}
	}
	decoded, err := decodeArgs(schema, args)
	if err != nil {
		return "", &domain.ToolInvocationError{Kind: domain.ToolErrBadArgs, Tool: tool, Err: err}
	}

	if err := c.liveErr(); err != nil {
		return "", &domain.ToolInvocationError{Kind: domain.ToolErrTransport, Tool: tool, Err: err}
	}

	req := &callRequest{ctx: ctx, tool: tool, args: decoded, resp: make(chan callResponse, 1)}
	select {
	case c.queue <- req:
	case <-c.done:
		return "", &domain.ToolInvocationError{Kind: domain.ToolErrTransport, Tool: tool, Err: domain.ErrConnectionClosed}
	case <-ctx.Done():
		return "", timeoutError(tool, ctx.Err())
	}

	select {
	case r := <-req.resp:
		return r.text, r.err
	case <-c.done:
		select {
		case r := <-req.resp:
			return r.text, r.err
		default:
		}
		return "", &domain.ToolInvocationError{Kind: domain.ToolErrTransport, Tool: tool, Err: domain.ErrConnectionClosed}
	case <-ctx.Done():
		return "", timeoutError(tool, ctx.Err())
	}
}

func (c *Connection) dispatch() {
	for {
		select {
		case <-c.done:
			c.drain()
			return
		case req := <-c.queue:
			req.resp <- c.execute(req)
		}
	}
}

// drain fails calls still queued when the connection closes.
func (c *Connection) drain() {
	for {
		select {
		case req := <-c.queue:
			req.resp <- callResponse{err: &domain.ToolInvocationError{
				Kind: domain.ToolErrTransport, Tool: req.tool, Err: domain.ErrConnectionClosed,
			}}
		default:
			return
		}
	}
}

func (c *Connection) execute(req *callRequest) callResponse {
	if err := req.ctx.Err(); err != nil {
		return callResponse{err: timeoutError(req.tool, err)}
	}
	if err := c.liveErr(); err != nil {
		return callResponse{err: &domain.ToolInvocationError{Kind: domain.ToolErrTransport, Tool: req.tool, Err: err}}
	}

	callReq := mcp.CallToolRequest{}
	callReq.Params.Name = req.tool
	callReq.Params.Arguments = req.args

	start := time.Now()
	result, err := c.client.CallTool(req.ctx, callReq)
	c.logger.Debug("tool call", "command", c.command, "tool", req.tool, "conversation_id", domain.ConversationIDFrom(req.ctx), "duration_ms", time.Since(start).Milliseconds(), "error", err)

	if err != nil {
		if req.ctx.Err() != nil {
			return callResponse{err: timeoutError(req.tool, err)}
		}
		c.markDead(err)
		return callResponse{err: &domain.ToolInvocationError{Kind: domain.ToolErrTransport, Tool: req.tool, Err: err}}
	}

	text := extractContent(result)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return callResponse{err: &domain.ToolInvocationError{Kind: domain.ToolErrApp, Tool: req.tool, Err: errors.New(text)}}
	}
	return callResponse{text: text}
}

func timeoutError(tool string, cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = fmt.Errorf("%w: %w", domain.ErrTimeout, cause)
	}
	return &domain.ToolInvocationError{Kind: domain.ToolErrTransport, Tool: tool, Err: cause}
}

func (c *Connection) liveErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deadErr != nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectionClosed, c.deadErr)
	}
	return nil
}

func (c *Connection) markDead(err error) {
	c.mu.Lock()
	first := c.deadErr == nil
	if first {
		c.deadErr = err
	}
	c.mu.Unlock()
	if first {
		c.logger.Warn("tool server connection lost", "command", c.command, "error", err)
	}
}

// close stops the dispatcher and the subprocess. Safe to call repeatedly.
func (c *Connection) close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.client.Close()
	})
	return err
}

// extractContent converts MCP result content to a string.
func extractContent(result *mcp.CallToolResult) string {
	var parts []string
	for _, content := range result.Content {
		switch v := content.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(v); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}
