package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAgent(cfg, ve)
	validateServer(cfg, ve)
	validatePeers(cfg, ve)
	validateToolServers(cfg, ve)
	validateRegistry(cfg, ve)
	validateLLM(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAgent(cfg *Config, ve *ValidationError) {
	if cfg.Agent.Name == "" {
		ve.Add("agent.name must not be empty")
	}
	if cfg.Agent.MaxIterations <= 0 {
		ve.Add("agent.max_iterations must be > 0")
	}
	if cfg.Agent.CallTimeout <= 0 {
		ve.Add("agent.call_timeout must be > 0")
	}
	if cfg.Agent.SystemPrompt == "" {
		ve.Add("agent.system_prompt must not be empty")
	}
	seen := make(map[string]bool)
	for i, s := range cfg.Agent.Skills {
		if s.ID == "" || s.Name == "" {
			ve.Add("agent.skills[%d]: id and name are required", i)
			continue
		}
		if seen[s.ID] {
			ve.Add("agent.skills[%d]: duplicate skill id %q", i, s.ID)
		}
		seen[s.ID] = true
	}
}

func validateServer(cfg *Config, ve *ValidationError) {
	if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		ve.Add("server.listen %q is invalid: %v", cfg.Server.Listen, err)
	}
	if cfg.Server.PublicURL != "" && !isHTTPURL(cfg.Server.PublicURL) {
		ve.Add("server.public_url %q must be an http(s) URL", cfg.Server.PublicURL)
	}
	rl := cfg.Server.RateLimit
	if rl.RequestsPerMin < 0 {
		ve.Add("server.rate_limit.requests_per_min must be >= 0")
	}
	if rl.RequestsPerMin > 0 && rl.Burst <= 0 {
		ve.Add("server.rate_limit.burst must be > 0 when rate limiting is enabled")
	}
	for i, p := range rl.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			ve.Add("server.rate_limit.trusted_proxies[%d] %q is not an IP or CIDR", i, p)
		}
	}
}

func validatePeers(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool)
	for i, p := range cfg.Peers {
		if !isHTTPURL(p) {
			ve.Add("peers[%d] %q must be an http(s) URL", i, p)
			continue
		}
		key := strings.TrimRight(p, "/")
		if seen[key] {
			ve.Add("peers[%d]: duplicate peer %q", i, p)
		}
		seen[key] = true
	}
}

func validateToolServers(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool)
	for i, ts := range cfg.ToolServers {
		if strings.TrimSpace(ts.Command) == "" {
			ve.Add("tool_servers[%d].command must not be empty", i)
			continue
		}
		if seen[ts.Command] {
			ve.Add("tool_servers[%d]: duplicate command %q", i, ts.Command)
		}
		seen[ts.Command] = true
		for k := range ts.Env {
			if k == "" || strings.ContainsAny(k, "= ") {
				ve.Add("tool_servers[%d].env: invalid variable name %q", i, k)
			}
		}
	}
}

func validateRegistry(cfg *Config, ve *ValidationError) {
	if cfg.Registry.DiscoveryTimeout <= 0 {
		ve.Add("registry.discovery_timeout must be > 0")
	}
	if cfg.Registry.StaleAfter < 0 {
		ve.Add("registry.stale_after must be >= 0")
	}
	if cfg.Registry.StaleAfter > 0 && cfg.Registry.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Registry.RefreshSchedule); err != nil {
			ve.Add("registry.refresh_schedule %q is invalid: %v", cfg.Registry.RefreshSchedule, err)
		}
	}
}

var validProviders = map[string]bool{
	"gemini":    true,
	"openai":    true,
	"anthropic": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if !validProviders[cfg.LLM.Provider] {
		ve.Add("llm.provider %q is invalid (want: gemini, openai, anthropic)", cfg.LLM.Provider)
	}
	if cfg.LLM.Model == "" {
		ve.Add("llm.model must not be empty")
	}
	if cfg.LLM.Timeout < 0 {
		ve.Add("llm.timeout must be >= 0")
	}
	if cfg.LLM.BaseURL != "" && !isHTTPURL(cfg.LLM.BaseURL) {
		ve.Add("llm.base_url %q must be an http(s) URL", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Breaker.Timeout < 0 || cfg.LLM.Breaker.Interval < 0 {
		ve.Add("llm.circuit_breaker durations must be >= 0")
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if cfg.Logger.Format != "text" && cfg.Logger.Format != "json" {
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
