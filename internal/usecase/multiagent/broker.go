package multiagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
)

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithCallTimeout bounds each delegation round trip. Default 120s.
func WithCallTimeout(d time.Duration) BrokerOption {
	return func(b *Broker) { b.timeout = d }
}

// WithDelegationObserver is called after every delegation attempt.
func WithDelegationObserver(fn func(peer string, err error, elapsed time.Duration)) BrokerOption {
	return func(b *Broker) { b.observe = fn }
}

// Broker delegates tasks to registered peers. Every delegation is a single
// attempt: a peer may have performed side effects before failing, so a
// retry is left to whoever reads the error.
type Broker struct {
	registry *Registry
	timeout  time.Duration
	observe  func(string, error, time.Duration)
	logger   *slog.Logger
}

// NewBroker creates a Broker resolving peers through registry.
func NewBroker(registry *Registry, logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		registry: registry,
		timeout:  120 * time.Second,
		logger:   logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Delegate sends task to the named peer and returns the peer's final answer.
// contextID is passed through unchanged; empty lets the peer open a fresh
// conversation. Errors are always *domain.DelegationError.
func (b *Broker) Delegate(ctx context.Context, agent, task, contextID string) (string, error) {
	start := time.Now()
	text, err := b.delegate(ctx, agent, task, contextID)
	if b.observe != nil {
		b.observe(agent, err, time.Since(start))
	}
	return text, err
}

func (b *Broker) delegate(ctx context.Context, agent, task, contextID string) (string, error) {
	peer, err := b.registry.Resolve(agent)
	if err != nil {
		return "", &domain.DelegationError{
			Agent: agent,
			Kind:  domain.DelegationNotFound,
			Err:   fmt.Errorf("%w (available: %v)", err, b.registry.Names()),
		}
	}
	name := peer.Descriptor.Name
	logger := b.logger.With("conversation_id", domain.ConversationIDFrom(ctx))

	logger.Info("delegating", "to", name, "task", domain.Truncate(task, 100), "context_id", contextID)

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	reply, err := peer.Client.SendMessage(callCtx, task, contextID)
	if err != nil {
		kind := domain.DelegationTransport
		if domain.IsTimeout(err) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			kind = domain.DelegationTimeout
			if !errors.Is(err, domain.ErrTimeout) {
				err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
			}
		}
		logger.Warn("delegation failed", "to", name, "kind", kind, "error", err)
		return "", &domain.DelegationError{Agent: name, Kind: kind, Err: err}
	}

	switch reply.State {
	case domain.TaskCompleted:
		logger.Info("delegation completed", "to", name, "result", domain.Truncate(reply.Text, 100))
		return reply.Text, nil
	case domain.TaskFailed:
		logger.Warn("peer task failed", "to", name, "task_id", reply.TaskID, "text", reply.Text)
		return "", &domain.DelegationError{Agent: name, Kind: domain.DelegationPeerFailed, Err: errors.New(reply.Text)}
	default:
		return "", &domain.DelegationError{
			Agent: name,
			Kind:  domain.DelegationPeerFailed,
			Err:   fmt.Errorf("peer returned non-terminal state %q", reply.State),
		}
	}
}
