package multiagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
)

// Peer is a registered agent: its cached card plus the client used to reach it.
type Peer struct {
	Descriptor domain.AgentDescriptor
	Client     domain.PeerClient
}

type entry struct {
	url  string // registration key
	peer Peer
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDiscoveryTimeout bounds each card fetch. Default 10s.
func WithDiscoveryTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.discoveryTimeout = d }
}

// WithSizeObserver is called with the entry count after every change.
func WithSizeObserver(fn func(n int)) RegistryOption {
	return func(r *Registry) { r.onSize = fn }
}

// WithClock overrides the time source used for FetchedAt.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// Registry caches the capability cards of peer agents, keyed by base URL
// and kept in registration order. Entries leave only through Deregister;
// a failing peer stays registered and its errors surface to the caller.
type Registry struct {
	transport        domain.PeerTransport
	discoveryTimeout time.Duration
	onSize           func(int)
	now              func() time.Time
	logger           *slog.Logger

	mu      sync.RWMutex
	entries []*entry
}

// NewRegistry creates an empty registry that discovers peers via transport.
func NewRegistry(transport domain.PeerTransport, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		transport:        transport,
		discoveryTimeout: 10 * time.Second,
		now:              time.Now,
		logger:           logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register fetches the card published at url and stores it. Re-registering a
// URL replaces its entry in place. On any failure nothing is stored and a
// *domain.DiscoveryError is returned; no retry is attempted.
func (r *Registry) Register(ctx context.Context, url string) (domain.AgentDescriptor, error) {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if url == "" {
		return domain.AgentDescriptor{}, &domain.DiscoveryError{URL: url, Err: fmt.Errorf("%w: empty url", domain.ErrInvalidInput)}
	}

	desc, err := r.fetch(ctx, url)
	if err != nil {
		r.logger.Warn("agent discovery failed", "url", url, "error", err)
		return domain.AgentDescriptor{}, err
	}

	peer := Peer{Descriptor: desc, Client: r.transport.Peer(url)}

	r.mu.Lock()
	replaced := false
	for _, e := range r.entries {
		if e.url == url {
			e.peer = peer
			replaced = true
			break
		}
	}
	if !replaced {
		r.entries = append(r.entries, &entry{url: url, peer: peer})
	}
	n := len(r.entries)
	r.mu.Unlock()

	r.logger.Info("agent registered", "name", desc.Name, "url", url, "skills", desc.SkillNames(), "replaced", replaced)
	r.notify(n)
	return desc, nil
}

func (r *Registry) fetch(ctx context.Context, url string) (domain.AgentDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, r.discoveryTimeout)
	defer cancel()

	desc, err := r.transport.FetchCard(ctx, url)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		return domain.AgentDescriptor{}, &domain.DiscoveryError{URL: url, Err: err}
	}
	if missing := missingCardFields(desc); len(missing) > 0 {
		return domain.AgentDescriptor{}, &domain.DiscoveryError{
			URL: url,
			Err: fmt.Errorf("malformed agent card: missing %s", strings.Join(missing, ", ")),
		}
	}
	if desc.FetchedAt.IsZero() {
		desc.FetchedAt = r.now()
	}
	return desc, nil
}

func missingCardFields(d domain.AgentDescriptor) []string {
	var missing []string
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.URL == "" {
		missing = append(missing, "url")
	}
	if d.Skills == nil {
		missing = append(missing, "skills")
	}
	return missing
}

// RegisterMany discovers urls concurrently. It returns the descriptors that
// registered, in the order of urls, and the joined errors of those that did
// not. One failing peer never stops the others.
func (r *Registry) RegisterMany(ctx context.Context, urls []string) ([]domain.AgentDescriptor, error) {
	results := make([]domain.AgentDescriptor, len(urls))
	errs := make([]error, len(urls))

	var g errgroup.Group
	g.SetLimit(8)
	for i, u := range urls {
		g.Go(func() error {
			results[i], errs[i] = r.Register(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	ok := make([]domain.AgentDescriptor, 0, len(urls))
	for i := range urls {
		if errs[i] == nil {
			ok = append(ok, results[i])
		}
	}
	return ok, errors.Join(errs...)
}

// Resolve finds a peer by exact declared name or exact registered URL.
// Names are matched case-sensitively; the first registered match wins.
func (r *Registry) Resolve(nameOrURL string) (Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.peer.Descriptor.Name == nameOrURL || e.url == nameOrURL {
			return e.peer, nil
		}
	}
	return Peer{}, &domain.NotFoundError{Key: nameOrURL}
}

// List returns the cached descriptors in registration order.
func (r *Registry) List() []domain.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.AgentDescriptor, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.peer.Descriptor
	}
	return out
}

// Names returns the declared names in registration order.
func (r *Registry) Names() []string {
	descs := r.List()
	names := make([]string, len(descs))
	for i, d := range descs {
		names[i] = d.Name
	}
	return names
}

// Deregister removes the entry registered under url.
func (r *Registry) Deregister(url string) error {
	url = strings.TrimRight(url, "/")

	r.mu.Lock()
	idx := -1
	for i, e := range r.entries {
		if e.url == url {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return &domain.NotFoundError{Key: url}
	}
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	n := len(r.entries)
	r.mu.Unlock()

	r.logger.Info("agent deregistered", "url", url)
	r.notify(n)
	return nil
}

// Summary renders the known peers for a system prompt.
func (r *Registry) Summary() string {
	return domain.SummarizeAgents(r.List())
}

// RefreshStale re-fetches every entry whose card is older than window. A
// failed refresh keeps the previous card. It returns the number of entries
// refreshed.
func (r *Registry) RefreshStale(ctx context.Context, window time.Duration) int {
	now := r.now()
	var stale []string
	r.mu.RLock()
	for _, e := range r.entries {
		if e.peer.Descriptor.Stale(window, now) {
			stale = append(stale, e.url)
		}
	}
	r.mu.RUnlock()

	refreshed := 0
	for _, url := range stale {
		if ctx.Err() != nil {
			break
		}
		desc, err := r.fetch(ctx, url)
		if err != nil {
			r.logger.Warn("agent card refresh failed, keeping cached card", "url", url, "error", err)
			continue
		}
		r.mu.Lock()
		for _, e := range r.entries {
			if e.url == url {
				e.peer.Descriptor = desc
				refreshed++
				break
			}
		}
		r.mu.Unlock()
	}
	if refreshed > 0 {
		r.logger.Debug("agent cards refreshed", "count", refreshed)
	}
	return refreshed
}

func (r *Registry) notify(n int) {
	if r.onSize != nil {
		r.onSize(n)
	}
}
