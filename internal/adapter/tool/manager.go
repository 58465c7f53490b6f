package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"golang.org/x/sync/singleflight"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
)

// Defaults for the manager's timeouts.
const (
	DefaultCallTimeout  = 30 * time.Second
	DefaultStartTimeout = 60 * time.Second
)

// dialFunc starts a tool server subprocess and returns its client.
type dialFunc func(ctx context.Context, name string, args, env []string) (mcpClient, error)

func stdioDial(_ context.Context, name string, args, env []string) (mcpClient, error) {
	c, err := mcpclient.NewStdioMCPClient(name, env, args...)
	if err != nil {
		return nil, fmt.Errorf("create stdio client: %w", err)
	}
	return c, nil
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCallTimeout bounds each tool invocation, queue wait included.
func WithCallTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.callTimeout = d }
}

// WithStartTimeout bounds process start plus handshake.
func WithStartTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.startTimeout = d }
}

// WithClientInfo sets the name and version sent in the initialize handshake.
func WithClientInfo(name, version string) ManagerOption {
	return func(m *Manager) { m.clientName, m.clientVersion = name, version }
}

// WithCallObserver is called after every invocation.
func WithCallObserver(fn func(tool string, err error, elapsed time.Duration)) ManagerOption {
	return func(m *Manager) { m.observeCall = fn }
}

// WithConnectionObserver is called with the live connection count after
// every change.
func WithConnectionObserver(fn func(n int)) ManagerOption {
	return func(m *Manager) { m.observeConns = fn }
}

// withDialer replaces the subprocess launcher; used by tests.
func withDialer(d dialFunc) ManagerOption {
	return func(m *Manager) { m.dial = d }
}

// Manager owns the tool server processes of one agent. There is at most one
// live connection per distinct command line.
type Manager struct {
	dial          dialFunc
	callTimeout   time.Duration
	startTimeout  time.Duration
	clientName    string
	clientVersion string
	observeCall   func(string, error, time.Duration)
	observeConns  func(int)
	logger        *slog.Logger

	starting singleflight.Group

	mu    sync.Mutex
	conns map[string]*Connection
}

// NewManager creates a manager with no connections.
func NewManager(logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		dial:          stdioDial,
		callTimeout:   DefaultCallTimeout,
		startTimeout:  DefaultStartTimeout,
		clientName:    "a2a-orchestrator",
		clientVersion: "1.0.0",
		logger:        logger,
		conns:         make(map[string]*Connection),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Connect returns the live connection for command, starting the server and
// running the handshake if there is none. Concurrent calls for the same
// command share one start. env entries are KEY=VALUE.
func (m *Manager) Connect(ctx context.Context, command string, env map[string]string) (*Connection, error) {
	if c := m.live(command); c != nil {
		return c, nil
	}

	ch := m.starting.DoChan(command, func() (any, error) {
		if c := m.live(command); c != nil {
			return c, nil
		}
		// Detached from any one caller so a cancelled waiter cannot abort
		// a start that others share.
		startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.startTimeout)
		defer cancel()
		return m.start(startCtx, command, env)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Connection), nil
	case <-ctx.Done():
		return nil, domain.NewDomainError("ToolManager.Connect",
			fmt.Errorf("%w: %w", domain.ErrToolServerStart, ctx.Err()), command)
	}
}

func (m *Manager) start(ctx context.Context, command string, env map[string]string) (*Connection, error) {
	startErr := func(err error) error {
		return domain.NewDomainError("ToolManager.Connect", fmt.Errorf("%w: %w", domain.ErrToolServerStart, err), command)
	}

	argv, err := splitCommand(command)
	if err != nil {
		return nil, startErr(err)
	}

	m.logger.Info("starting tool server", "command", command)
	client, err := m.dial(ctx, argv[0], argv[1:], envSlice(env))
	if err != nil {
		return nil, startErr(err)
	}

	conn := newConnection(command, client, m.logger)
	if err := conn.handshake(ctx, m.clientName, m.clientVersion); err != nil {
		_ = conn.close()
		return nil, startErr(err)
	}

	m.mu.Lock()
	if old, ok := m.conns[command]; ok && old != conn {
		_ = old.close()
	}
	m.conns[command] = conn
	n := len(m.conns)
	m.mu.Unlock()

	names := make([]string, 0, len(conn.tools))
	for _, t := range conn.tools {
		names = append(names, t.Name)
	}
	m.logger.Info("tool server connected", "command", command, "tools", names)
	m.notify(n)
	return conn, nil
}

// live returns the pooled connection for command if it is still usable.
func (m *Manager) live(command string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[command]
	if !ok {
		return nil
	}
	if !c.Alive() {
		return nil
	}
	return c
}

// Invoke calls tool on conn with args, bounded by the call timeout. Errors
// are *domain.ToolInvocationError.
func (m *Manager) Invoke(ctx context.Context, conn *Connection, tool string, args json.RawMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()

	start := time.Now()
	text, err := conn.invoke(ctx, tool, args)
	if m.observeCall != nil {
		m.observeCall(tool, err, time.Since(start))
	}
	var tie *domain.ToolInvocationError
	if errors.As(err, &tie) && tie.Kind == domain.ToolErrTransport && !conn.Alive() {
		m.evict(conn)
	}
	return text, err
}

func (m *Manager) evict(conn *Connection) {
	m.mu.Lock()
	removed := false
	if cur, ok := m.conns[conn.command]; ok && cur == conn {
		delete(m.conns, conn.command)
		removed = true
	}
	n := len(m.conns)
	m.mu.Unlock()
	if removed {
		_ = conn.close()
		m.notify(n)
	}
}

// Close terminates conn's server and removes it from the pool. Closing an
// already closed connection is a no-op.
func (m *Manager) Close(conn *Connection) error {
	if conn == nil {
		return nil
	}
	m.mu.Lock()
	if cur, ok := m.conns[conn.command]; ok && cur == conn {
		delete(m.conns, conn.command)
	}
	n := len(m.conns)
	m.mu.Unlock()

	err := conn.close()
	m.notify(n)
	if err != nil {
		m.logger.Warn("tool server close error", "command", conn.command, "error", err)
	}
	return err
}

// CloseAll terminates every server. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[string]*Connection)
	m.mu.Unlock()

	for _, c := range conns {
		if err := c.close(); err != nil {
			m.logger.Warn("tool server close error", "command", c.command, "error", err)
		}
	}
	m.notify(0)
}

// Len returns the number of pooled connections.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

func (m *Manager) notify(n int) {
	if m.observeConns != nil {
		m.observeConns(n)
	}
}
