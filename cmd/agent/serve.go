package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/logger"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/tracer"
)

const defaultConfigPath = "config.yaml"

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type serveOptions struct {
	configPath string
	preset     string
	listen     string
	outputDir  string
	peers      stringList
}

func parseServeFlags(args []string, errOut io.Writer) (serveOptions, error) {
	var opts serveOptions
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	fs.StringVar(&opts.preset, "preset", "", "demo agent preset: research, writer or routing")
	fs.StringVar(&opts.listen, "listen", "", "listen address, overrides config")
	fs.StringVar(&opts.outputDir, "output-dir", "./output", "directory the writer preset may touch")
	fs.Var(&opts.peers, "peer", "peer agent base URL (repeatable), overrides config")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// buildServeConfig loads the config file and layers the preset and flags on
// top. Flags win over the preset, which wins over the file.
func buildServeConfig(opts serveOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if len(opts.peers) > 0 {
		cfg.Peers = opts.peers
	}
	if opts.preset != "" {
		if err := config.ApplyPreset(cfg, opts.preset, opts.outputDir); err != nil {
			return nil, err
		}
	}
	if opts.listen != "" {
		cfg.Server.Listen = opts.listen
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupObservability creates the process logger and tracer. The returned
// cleanup flushes both.
func setupObservability(ctx context.Context, cfg *config.Config) (*slog.Logger, func(), error) {
	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		closeLog()
		return nil, nil, fmt.Errorf("setup tracer: %w", err)
	}
	return log, func() {
		_ = shutdownTracer(context.Background())
		_ = closeLog()
	}, nil
}

func runServe(ctx context.Context, args []string) error {
	opts, err := parseServeFlags(args, flagOutput)
	if err != nil {
		return err
	}
	cfg, err := buildServeConfig(opts)
	if err != nil {
		return err
	}

	log, cleanup, err := setupObservability(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	reasoner, err := newReasoner(cfg, log)
	if err != nil {
		return err
	}
	rt, err := newAgentRuntime(ctx, cfg, reasoner, log)
	if err != nil {
		return err
	}
	log.Info("agent starting",
		"agent", cfg.Agent.Name,
		"listen", cfg.Server.Listen,
		"llm", cfg.LLM.Provider+"/"+cfg.LLM.Model,
		"tool_servers", len(cfg.ToolServers),
		"peers", len(rt.registry.List()),
	)
	return rt.Run(ctx)
}
