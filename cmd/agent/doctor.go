package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vidya-hub/a2a-orchestrator/internal/adapter/a2a"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(ctx context.Context, cfg *config.Config) CheckResult
}

var notLoaded = CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}

// runDoctor executes all health checks and reports results.
func runDoctor(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseServeFlags(args, flagOutput)
	if err != nil {
		return err
	}

	// Some checks work without a config.
	cfg, cfgErr := buildServeConfig(opts)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(opts.configPath, cfgErr)},
		{Name: "LLM API key", Fn: checkLLMAPIKey},
		{Name: "LLM connectivity", Fn: checkLLMConnectivity},
		{Name: "Tool servers", Fn: checkToolServers},
		{Name: "Peers", Fn: checkPeers},
		{Name: "Listen address", Fn: checkListen},
	}

	fmt.Fprintln(out, "a2a-agent doctor")
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(ctx, cfg)
		result.Name = check.Name

		fmt.Fprintf(out, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(out, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("-", 50))
	fmt.Fprintf(out, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config file exists and loads. A
// missing file is only a warning: defaults apply.
func checkConfigFile(cfgPath string, cfgErr error) func(context.Context, *config.Config) CheckResult {
	return func(context.Context, *config.Config) CheckResult {
		if cfgErr != nil {
			var ve *config.ValidationError
			if errors.As(cfgErr, &ve) {
				return CheckResult{
					Status:  StatusFail,
					Message: fmt.Sprintf("config is invalid: %v", cfgErr),
					Fix:     "Fix the listed fields in " + cfgPath,
				}
			}
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config could not be loaded: %v", cfgErr),
				Fix:     "Check " + cfgPath + " syntax and permissions (0600 or 0644)",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLLMAPIKey verifies the selected provider has an API key.
func checkLLMAPIKey(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if cfg.LLM.APIKey == "" {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("no API key for provider %q", cfg.LLM.Provider),
			Fix:     "Set llm.api_key, A2A_LLM_API_KEY or the provider's usual variable (e.g. GOOGLE_API_KEY)",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("API key configured for %s", cfg.LLM.Provider),
	}
}

// checkLLMConnectivity tests if the provider endpoint is reachable.
func checkLLMConnectivity(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}

	endpoint := providerEndpoint(cfg.LLM)
	if endpoint == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("no known endpoint for provider %q, skipping connectivity test", cfg.LLM.Provider),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	resp, err := http.DefaultClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your internet connection, firewall settings or llm.base_url",
		}
	}
	resp.Body.Close()

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", cfg.LLM.Provider, latency.Milliseconds()),
	}
}

// providerEndpoint returns a URL that answers without credentials.
func providerEndpoint(llm config.LLMConfig) string {
	if llm.BaseURL != "" {
		return strings.TrimRight(llm.BaseURL, "/")
	}
	switch llm.Provider {
	case "openai":
		return "https://api.openai.com/v1/models"
	case "anthropic":
		return "https://api.anthropic.com/"
	case "gemini":
		return "https://generativelanguage.googleapis.com/"
	default:
		return ""
	}
}

// checkToolServers verifies every tool server executable is on PATH.
func checkToolServers(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if len(cfg.ToolServers) == 0 {
		return CheckResult{Status: StatusPass, Message: "no tool servers configured"}
	}

	var missing []string
	for _, ts := range cfg.ToolServers {
		fields := strings.Fields(ts.Command)
		if len(fields) == 0 {
			continue
		}
		if _, err := exec.LookPath(fields[0]); err != nil {
			missing = append(missing, fields[0])
		}
	}
	if len(missing) > 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("executables not found: %s", strings.Join(missing, ", ")),
			Fix:     "Install them (uvx ships with uv, npx with Node.js) or fix tool_servers",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d tool server executable(s) found", len(cfg.ToolServers)),
	}
}

// checkPeers fetches each peer's agent card.
func checkPeers(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if len(cfg.Peers) == 0 {
		return CheckResult{Status: StatusPass, Message: "no peers configured"}
	}

	client := a2a.NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)),
		a2a.WithTimeout(cfg.Registry.DiscoveryTimeout))

	var names, down []string
	for _, url := range cfg.Peers {
		d, err := client.FetchCard(ctx, url)
		if err != nil {
			down = append(down, url)
			continue
		}
		names = append(names, d.Name)
	}

	if len(down) > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("unreachable: %s; reachable: [%s]", strings.Join(down, ", "), strings.Join(names, ", ")),
			Fix:     "Start the peer agents first; unreachable peers are skipped at startup",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("peers reachable: %s", strings.Join(names, ", ")),
	}
}

// checkListen verifies the listen address is free.
func checkListen(_ context.Context, cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot listen on %s: %v", cfg.Server.Listen, err),
			Fix:     "Stop the process holding the port or pass --listen",
		}
	}
	ln.Close()
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s is free", cfg.Server.Listen),
	}
}
