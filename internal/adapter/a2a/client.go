package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	a2asdk "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
)

// Client defaults.
const (
	DefaultTimeout = 120 * time.Second

	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second

	maxResponseBody = 10 * 1024 * 1024
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each card fetch and message round trip.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithBreaker configures the per-peer circuit breaker.
func WithBreaker(cfg config.CircuitBreakerConfig) ClientOption {
	return func(c *Client) { c.breakerCfg = cfg }
}

// WithBreakerObserver reports every breaker state change as the peer base
// URL and the new state name.
func WithBreakerObserver(fn func(peer, state string)) ClientOption {
	return func(c *Client) { c.onBreaker = fn }
}

// Client talks to peer agents. It implements domain.PeerTransport. Each peer
// base URL gets its own circuit breaker around message/send. Card discovery
// goes straight to the peer so its failure cause is always reported as is.
// Calls are never retried.
type Client struct {
	http       *http.Client
	resolver   *agentcard.Resolver
	timeout    time.Duration
	breakerCfg config.CircuitBreakerConfig
	onBreaker  func(peer, state string)
	logger     *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// NewClient creates a peer client.
func NewClient(logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		http:     &http.Client{},
		timeout:  DefaultTimeout,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
	for _, o := range opts {
		o(c)
	}
	c.resolver = agentcard.NewResolver(c.http)
	return c
}

var _ domain.PeerTransport = (*Client)(nil)

// FetchCard reads the agent card at baseURL.
func (c *Client) FetchCard(ctx context.Context, baseURL string) (domain.AgentDescriptor, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	card, err := c.resolver.Resolve(ctx, baseURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.AgentDescriptor{}, fmt.Errorf("agent card %s: %w: %w", baseURL, domain.ErrTimeout, err)
		}
		return domain.AgentDescriptor{}, fmt.Errorf("agent card %s: %w", baseURL, err)
	}
	return descriptorFromCard(card), nil
}

// Peer returns a client bound to baseURL.
func (c *Client) Peer(baseURL string) domain.PeerClient {
	return &peerClient{client: c, baseURL: strings.TrimRight(baseURL, "/")}
}

// SendMessage posts text as message/send to baseURL and returns the task.
func (c *Client) SendMessage(ctx context.Context, baseURL, text, contextID string) (*Task, error) {
	params, err := json.Marshal(MessageSendParams{Message: TextMessage(RoleUser, text, contextID)})
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	id, _ := json.Marshal(uuid.NewString())
	payload, err := json.Marshal(Request{JSONRPC: JSONRPCVersion, ID: id, Method: MethodSendMessage, Params: params})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	body, err := c.do(ctx, baseURL, http.MethodPost, baseURL+"/", payload)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	event, err := a2asdk.UnmarshalEventJSON(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	switch v := event.(type) {
	case *Task:
		return v, nil
	case *Message:
		// A direct message reply is a completed exchange.
		return &Task{
			ID:        v.TaskID,
			ContextID: v.ContextID,
			Status:    TaskStatus{State: a2asdk.TaskStateCompleted, Message: v},
		}, nil
	default:
		return nil, fmt.Errorf("unexpected result %T", event)
	}
}

// do performs one HTTP round trip through the peer's breaker and returns the
// body of a 200 response.
func (c *Client) do(ctx context.Context, peer, method, url string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.breaker(peer).Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, url, payload)
	})
	switch {
	case err == nil:
		return body, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("peer %s: %w: %w", peer, domain.ErrCircuitOpen, err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("peer %s: %w: %w", peer, domain.ErrTimeout, err)
	default:
		return nil, err
	}
}

func (c *Client) roundTrip(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: unexpected status %d: %s", method, url, resp.StatusCode, domain.Truncate(string(body), 200))
	}
	return body, nil
}

func (c *Client) breaker(peer string) *gobreaker.CircuitBreaker[[]byte] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[peer]; ok {
		return cb
	}

	maxFailures := c.breakerCfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := c.breakerCfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := c.breakerCfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	logger := c.logger
	observe := c.onBreaker
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "peer:" + peer,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if observe != nil {
				observe(peer, to.String())
			}
		},
	})
	c.breakers[peer] = cb
	return cb
}

type peerClient struct {
	client  *Client
	baseURL string
}

// SendMessage implements domain.PeerClient.
func (p *peerClient) SendMessage(ctx context.Context, text, contextID string) (domain.PeerReply, error) {
	task, err := p.client.SendMessage(ctx, p.baseURL, text, contextID)
	if err != nil {
		return domain.PeerReply{}, err
	}
	return domain.PeerReply{
		TaskID:    string(task.ID),
		ContextID: task.ContextID,
		State:     domain.TaskState(task.Status.State),
		Text:      MessageText(task.Status.Message),
	}, nil
}

func descriptorFromCard(card *AgentCard) domain.AgentDescriptor {
	d := domain.AgentDescriptor{
		Name:        card.Name,
		Description: card.Description,
		URL:         strings.TrimRight(card.URL, "/"),
	}
	if card.Skills != nil {
		d.Skills = make([]domain.Skill, 0, len(card.Skills))
		for _, s := range card.Skills {
			d.Skills = append(d.Skills, domain.Skill{ID: s.ID, Name: s.Name, Description: s.Description, Tags: s.Tags})
		}
	}
	return d
}
