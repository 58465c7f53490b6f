package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	a2asdk "github.com/a2aproject/a2a-go/a2a"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/middleware"
	"github.com/vidya-hub/a2a-orchestrator/internal/usecase"
)

// TaskExecutor runs one inbound message to a terminal task.
type TaskExecutor interface {
	Execute(ctx context.Context, req usecase.TaskRequest) *domain.Task
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMiddleware wraps every route. The first middleware is outermost.
func WithMiddleware(mws ...middleware.Middleware) ServerOption {
	return func(s *Server) { s.middleware = append(s.middleware, mws...) }
}

// WithMetricsHandler serves h at GET /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// Server exposes one executor over JSON-RPC and publishes its agent card.
type Server struct {
	executor   TaskExecutor
	card       AgentCard
	addr       string
	logger     *slog.Logger
	middleware []middleware.Middleware
	metrics    http.Handler

	handlerOnce sync.Once
	handler     http.Handler

	mu        sync.Mutex
	httpSrv   *http.Server
	boundAddr string
	ready     chan struct{}
}

// NewServer creates a server for executor listening on addr.
func NewServer(executor TaskExecutor, card AgentCard, addr string, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		executor: executor,
		card:     card,
		addr:     addr,
		logger:   logger,
		ready:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /{$}", s.handleRPC)
		mux.HandleFunc("GET "+WellKnownCardPath, s.handleCard)
		mux.HandleFunc("GET /healthz", s.handleHealth)
		if s.metrics != nil {
			mux.Handle("GET /metrics", s.metrics)
		}
		s.handler = middleware.Chain(mux, s.middleware...)
	})
	return s.handler
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("a2a listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("a2a server started", "agent", s.card.Name, "addr", s.BoundAddr())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("a2a serve: %w", err)
	}
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// BoundAddr returns the actual listen address. Only valid after Ready.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "agent": s.card.Name})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, nil, CodeInvalidRequest, "request body too large or unreadable")
		return
	}

	if trimmed := bytes.TrimLeft(body, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' && json.Valid(body) {
		writeRPCError(w, nil, CodeInvalidRequest, "invalid request: batch requests are not supported")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, nil, CodeParseError, "parse error: "+err.Error())
		return
	}
	if req.JSONRPC != JSONRPCVersion || req.Method == "" {
		writeRPCError(w, req.ID, CodeInvalidRequest, `invalid request: jsonrpc must be "2.0" and method is required`)
		return
	}
	if req.Method != MethodSendMessage {
		writeRPCError(w, req.ID, CodeMethodNotFound, "method not found: "+req.Method)
		return
	}

	var params MessageSendParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPCError(w, req.ID, CodeInvalidParams, "invalid params: "+err.Error())
		return
	}
	text := MessageText(params.Message)
	if text == "" {
		writeRPCError(w, req.ID, CodeInvalidRequest, "invalid request: message has no text part")
		return
	}

	task := s.executor.Execute(r.Context(), usecase.TaskRequest{
		Text:           text,
		ConversationID: params.Message.ContextID,
	})

	result, err := json.Marshal(taskResult(task))
	if err != nil {
		writeRPCError(w, req.ID, CodeInternalError, "encode result: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, Response{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result})
}

// taskResult renders a terminal task for the wire.
func taskResult(t *domain.Task) *Task {
	reply := TextMessage(RoleAgent, t.StatusText(), t.ConversationID)
	reply.TaskID = a2asdk.TaskID(t.ID)
	now := time.Now().UTC()
	return &Task{
		ID:        a2asdk.TaskID(t.ID),
		ContextID: t.ConversationID,
		Status: TaskStatus{
			State:     a2asdk.TaskState(t.State),
			Message:   reply,
			Timestamp: &now,
		},
	}
}

// CardFromConfig builds the agent card advertised by cfg.
func CardFromConfig(cfg *config.Config) AgentCard {
	skills := make([]AgentSkill, 0, len(cfg.Agent.Skills))
	for _, sk := range cfg.Agent.Skills {
		tags := sk.Tags
		if tags == nil {
			tags = []string{}
		}
		skills = append(skills, AgentSkill{ID: sk.ID, Name: sk.Name, Description: sk.Description, Tags: tags})
	}
	return AgentCard{
		Name:               cfg.Agent.Name,
		Description:        cfg.Agent.Description,
		URL:                cfg.AdvertisedURL(),
		Version:            cfg.Agent.Version,
		ProtocolVersion:    ProtocolVersion,
		PreferredTransport: a2asdk.TransportProtocolJSONRPC,
		Skills:             skills,
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
	}
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &RPCError{Code: code, Message: msg},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
