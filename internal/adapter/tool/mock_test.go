package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
)

// mockMCPClient implements mcpClient for testing.
type mockMCPClient struct {
	tools    []mcp.Tool
	callFunc func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	initErr  error
	listErr  error

	mu     sync.Mutex
	closed bool
}

func (m *mockMCPClient) Initialize(_ context.Context, _ mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if m.initErr != nil {
		return nil, m.initErr
	}
	return &mcp.InitializeResult{}, nil
}

func (m *mockMCPClient) ListTools(_ context.Context, _ mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &mcp.ListToolsResult{Tools: m.tools}, nil
}

func (m *mockMCPClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if m.callFunc != nil {
		return m.callFunc(ctx, req)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("called %s", req.Params.Name))},
	}, nil
}

func (m *mockMCPClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockMCPClient) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func rawTool(name, schema string) mcp.Tool {
	return mcp.Tool{Name: name, Description: name + " tool", RawInputSchema: json.RawMessage(schema)}
}

// fakeDialer hands out clients from newClient and counts spawns.
type fakeDialer struct {
	newClient func() *mockMCPClient
	dialErr   error

	spawns  atomic.Int32
	mu      sync.Mutex
	clients []*mockMCPClient
	argv    [][]string
	env     [][]string
}

func (d *fakeDialer) dial(_ context.Context, name string, args, env []string) (mcpClient, error) {
	d.spawns.Add(1)
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := d.newClient()
	d.mu.Lock()
	d.clients = append(d.clients, c)
	d.argv = append(d.argv, append([]string{name}, args...))
	d.env = append(d.env, env)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) last() *mockMCPClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[len(d.clients)-1]
}

var errBrokenPipe = errors.New("write |1: broken pipe")
