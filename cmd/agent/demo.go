package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
)

// workerReadyTimeout bounds how long the demo waits for the worker agents
// to bind before the router registers them.
const workerReadyTimeout = 2 * time.Minute

// demoConfigs derives the three demo agents from base. Only the LLM,
// logger, tracer, registry and loop settings of base are shared.
func demoConfigs(base *config.Config, outputDir string) ([]*config.Config, error) {
	presets := []string{config.PresetResearch, config.PresetWriter, config.PresetRouting}
	cfgs := make([]*config.Config, 0, len(presets))
	for _, p := range presets {
		cfg := config.Defaults()
		cfg.LLM = base.LLM
		cfg.Logger = base.Logger
		cfg.Tracer = base.Tracer
		cfg.Registry = base.Registry
		cfg.Server.RateLimit = base.Server.RateLimit
		cfg.Agent.MaxIterations = base.Agent.MaxIterations
		cfg.Agent.CallTimeout = base.Agent.CallTimeout
		if err := config.ApplyPreset(cfg, p, outputDir); err != nil {
			return nil, err
		}
		if err := config.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s preset: %w", p, err)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

func runDemo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(flagOutput)
	configPath := fs.String("config", defaultConfigPath, "config file path (LLM and logging settings)")
	outputDir := fs.String("output-dir", "./output", "directory the writer agent may touch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	base, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfgs, err := demoConfigs(base, *outputDir)
	if err != nil {
		return err
	}

	log, cleanup, err := setupObservability(ctx, base)
	if err != nil {
		return err
	}
	defer cleanup()

	newReasonerFor := func(cfg *config.Config) (domain.Reasoner, error) { return newReasoner(cfg, log) }
	return runAgents(ctx, cfgs, newReasonerFor, log)
}

// runAgents starts every config but the last as a worker, waits until all
// workers are bound, then starts the last one, which registers the workers
// as peers. Any agent failing stops all of them.
func runAgents(ctx context.Context, cfgs []*config.Config, reasonerFor func(*config.Config) (domain.Reasoner, error), log *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// abort stops the agents already started and reports err.
	abort := func(err error) error {
		cancel()
		_ = g.Wait()
		return err
	}

	workers := cfgs[:len(cfgs)-1]
	ready := make([]<-chan struct{}, 0, len(workers))
	for _, cfg := range workers {
		rt, err := startAgent(ctx, g, cfg, reasonerFor, log)
		if err != nil {
			return abort(err)
		}
		ready = append(ready, rt.server.Ready())
	}

	timeout := time.NewTimer(workerReadyTimeout)
	defer timeout.Stop()
	for _, r := range ready {
		select {
		case <-r:
		case <-ctx.Done():
			return g.Wait()
		case <-timeout.C:
			return abort(fmt.Errorf("worker agents not ready after %s", workerReadyTimeout))
		}
	}

	if _, err := startAgent(ctx, g, cfgs[len(cfgs)-1], reasonerFor, log); err != nil {
		return abort(err)
	}
	log.Info("demo agents running", "agents", len(cfgs))
	return g.Wait()
}

func startAgent(ctx context.Context, g *errgroup.Group, cfg *config.Config, reasonerFor func(*config.Config) (domain.Reasoner, error), log *slog.Logger) (*agentRuntime, error) {
	reasoner, err := reasonerFor(cfg)
	if err != nil {
		return nil, err
	}
	rt, err := newAgentRuntime(ctx, cfg, reasoner, log)
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Agent.Name, err)
	}
	g.Go(func() error { return rt.Run(ctx) })
	return rt, nil
}
