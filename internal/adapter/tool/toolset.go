package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
)

// Toolset routes tool names to the connection that advertised them.
type Toolset struct {
	manager *Manager
	byName  map[string]*Connection
	schemas []domain.ToolSchema
}

// Toolset builds the name index over conns. When two servers advertise the
// same name, the earlier connection wins.
func (m *Manager) Toolset(conns ...*Connection) *Toolset {
	ts := &Toolset{manager: m, byName: make(map[string]*Connection)}
	for _, c := range conns {
		for _, s := range c.Tools() {
			if owner, dup := ts.byName[s.Name]; dup {
				m.logger.Warn("duplicate tool name, keeping first", "tool", s.Name,
					"kept", owner.command, "ignored", c.command)
				continue
			}
			ts.byName[s.Name] = c
			ts.schemas = append(ts.schemas, s)
		}
	}
	return ts
}

// Schemas lists every routable tool.
func (ts *Toolset) Schemas() []domain.ToolSchema {
	out := make([]domain.ToolSchema, len(ts.schemas))
	copy(out, ts.schemas)
	return out
}

// Invoke calls name on its owning connection.
func (ts *Toolset) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	conn, ok := ts.byName[name]
	if !ok {
		return "", &domain.ToolInvocationError{
			Kind: domain.ToolErrUnknownTool,
			Tool: name,
			Err:  fmt.Errorf("%w: no connected server provides %q", domain.ErrNotFound, name),
		}
	}
	return ts.manager.Invoke(ctx, conn, name, args)
}
