package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidya-hub/a2a-orchestrator/internal/adapter/a2a"
	"github.com/vidya-hub/a2a-orchestrator/internal/adapter/llm"
	"github.com/vidya-hub/a2a-orchestrator/internal/adapter/tool"
	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/logger"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/metrics"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/middleware"
	"github.com/vidya-hub/a2a-orchestrator/internal/usecase"
	"github.com/vidya-hub/a2a-orchestrator/internal/usecase/multiagent"
	"github.com/vidya-hub/a2a-orchestrator/internal/usecase/scheduling"
)

const refreshTaskName = "refresh-agent-cards"

// agentRuntime is one fully wired agent: tool connections, peer registry,
// executor, scheduler and HTTP server.
type agentRuntime struct {
	cfg       *config.Config
	log       *slog.Logger
	metrics   *metrics.Metrics
	tools     *tool.Manager
	registry  *multiagent.Registry
	executor  *usecase.Executor
	scheduler *scheduling.Scheduler
	server    *a2a.Server
}

// newReasoner builds the configured LLM-backed reasoner.
func newReasoner(cfg *config.Config, log *slog.Logger) (domain.Reasoner, error) {
	provider, err := llm.NewProvider(cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	return llm.NewReasoner(provider), nil
}

// newAgentRuntime connects tool servers and registers peers. A tool server
// that fails to start aborts startup; an unreachable peer is logged and
// skipped. ctx bounds startup and the lifetime of background helpers.
func newAgentRuntime(ctx context.Context, cfg *config.Config, reasoner domain.Reasoner, base *slog.Logger) (*agentRuntime, error) {
	log := logger.ForAgent(base, cfg.Agent.Name)
	m := metrics.New()
	rt := &agentRuntime{cfg: cfg, log: log, metrics: m}

	rt.tools = tool.NewManager(log,
		tool.WithCallTimeout(cfg.Agent.CallTimeout),
		tool.WithClientInfo(cfg.Agent.Name, cfg.Agent.Version),
		tool.WithCallObserver(m.ObserveToolCall),
		tool.WithConnectionObserver(func(n int) { m.ToolConnections.Set(float64(n)) }),
	)

	var toolset usecase.ToolInvoker
	if len(cfg.ToolServers) > 0 {
		conns := make([]*tool.Connection, 0, len(cfg.ToolServers))
		for _, ts := range cfg.ToolServers {
			conn, err := rt.tools.Connect(ctx, ts.Command, ts.Env)
			if err != nil {
				rt.tools.CloseAll()
				return nil, err
			}
			conns = append(conns, conn)
		}
		toolset = rt.tools.Toolset(conns...)
	}

	client := a2a.NewClient(log,
		a2a.WithTimeout(cfg.Agent.CallTimeout),
		a2a.WithBreakerObserver(m.ObservePeerBreaker),
	)
	rt.registry = multiagent.NewRegistry(client, log,
		multiagent.WithDiscoveryTimeout(cfg.Registry.DiscoveryTimeout),
		multiagent.WithSizeObserver(func(n int) { m.PeersRegistered.Set(float64(n)) }),
	)
	if len(cfg.Peers) > 0 {
		registered, err := rt.registry.RegisterMany(ctx, cfg.Peers)
		if err != nil {
			log.Warn("some peers could not be registered", "error", err)
		}
		for _, d := range registered {
			log.Info("peer registered", "peer", d.Name, "url", d.URL)
		}
	}

	broker := multiagent.NewBroker(rt.registry, log,
		multiagent.WithCallTimeout(cfg.Agent.CallTimeout),
		multiagent.WithDelegationObserver(m.ObserveDelegation),
	)

	locker := usecase.NewConversationLocker()
	rt.executor = usecase.NewExecutor(usecase.ExecutorDeps{
		Name:                  cfg.Agent.Name,
		SystemPrompt:          cfg.Agent.SystemPrompt,
		Reasoner:              reasoner,
		Logger:                log,
		Tools:                 toolset,
		Peers:                 rt.registry,
		Delegator:             broker,
		Locker:                locker,
		Observer:              m,
		MaxIterations:         cfg.Agent.MaxIterations,
		CallTimeout:           cfg.Agent.CallTimeout,
		PropagateConversation: cfg.Agent.PropagateConversation,
	})
	m.TrackConversations(rt.executor.Store(), locker)

	rt.scheduler = scheduling.NewScheduler(log)
	if len(cfg.Peers) > 0 && cfg.Registry.StaleAfter > 0 && cfg.Registry.RefreshSchedule != "" {
		window := cfg.Registry.StaleAfter
		rt.scheduler.RegisterAction(scheduling.ActionCardRefresh, func(ctx context.Context) error {
			rt.registry.RefreshStale(ctx, window)
			return nil
		})
		if err := rt.scheduler.AddTask(scheduling.ScheduledTask{
			Name:     refreshTaskName,
			Schedule: cfg.Registry.RefreshSchedule,
			Action:   scheduling.ActionCardRefresh,
			Timeout:  cfg.Registry.DiscoveryTimeout * time.Duration(len(cfg.Peers)+1),
		}); err != nil {
			rt.tools.CloseAll()
			return nil, err
		}
	}

	rl := cfg.Server.RateLimit
	rt.server = a2a.NewServer(rt.executor, a2a.CardFromConfig(cfg), cfg.Server.Listen, log,
		a2a.WithMiddleware(
			middleware.AccessLog(log, m),
			middleware.SecurityHeaders,
			middleware.RateLimit(ctx, middleware.RateLimitConfig{
				RequestsPerMin: rl.RequestsPerMin,
				Burst:          rl.Burst,
				TrustedProxies: rl.TrustedProxies,
			}),
			middleware.BodyLimit(middleware.MaxBodyBytes),
		),
		a2a.WithMetricsHandler(m.Handler()),
	)
	return rt, nil
}

// Run serves until ctx is cancelled, then releases tool connections.
func (rt *agentRuntime) Run(ctx context.Context) error {
	defer rt.Close()

	if err := rt.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if next := rt.scheduler.NextRun(refreshTaskName); next != nil {
		rt.log.Info("agent card refresh scheduled", "next", next.Format(time.RFC3339))
	}
	err := rt.server.Start(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// Close stops background work and terminates tool server subprocesses.
func (rt *agentRuntime) Close() {
	_ = rt.scheduler.Stop()
	rt.tools.CloseAll()
	rt.log.Info("agent stopped")
}
