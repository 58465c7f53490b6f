package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for one agent process.
type Config struct {
	Agent       AgentConfig        `yaml:"agent"`
	Server      ServerConfig       `yaml:"server"`
	Peers       []string           `yaml:"peers,omitempty"`
	ToolServers []ToolServerConfig `yaml:"tool_servers,omitempty"`
	Registry    RegistryConfig     `yaml:"registry"`
	LLM         LLMConfig          `yaml:"llm"`
	Logger      LoggerConfig       `yaml:"logger"`
	Tracer      TracerConfig       `yaml:"tracer"`
}

// AgentConfig describes the agent's identity and decision loop.
type AgentConfig struct {
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description"`
	Version      string        `yaml:"version"`
	SystemPrompt string        `yaml:"system_prompt"`
	Skills       []SkillConfig `yaml:"skills,omitempty"`

	MaxIterations int           `yaml:"max_iterations"`
	CallTimeout   time.Duration `yaml:"call_timeout"` // bound on every tool, peer and reasoning call
	// PropagateConversation sends the caller's conversation id to peers on
	// delegation. Off by default: peers get an independent conversation.
	PropagateConversation bool `yaml:"propagate_conversation"`
}

// SkillConfig is one skill published on the agent card.
type SkillConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags,omitempty"`
}

// ServerConfig holds the JSON-RPC listener settings.
type ServerConfig struct {
	Listen    string          `yaml:"listen"`
	PublicURL string          `yaml:"public_url"` // advertised on the card; derived from Listen if empty
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	RequestsPerMin int      `yaml:"requests_per_min"` // 0 disables
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// ToolServerConfig is one subprocess-backed tool server.
type ToolServerConfig struct {
	Command string            `yaml:"command"`
	Env     map[string]string `yaml:"env,omitempty"`
}

// RegistryConfig controls peer discovery.
type RegistryConfig struct {
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
	// StaleAfter is the age after which a cached card is re-fetched by the
	// refresh job. 0 disables refresh.
	StaleAfter      time.Duration `yaml:"stale_after"`
	RefreshSchedule string        `yaml:"refresh_schedule"` // cron spec
}

// LLMConfig selects the reasoning backend.
type LLMConfig struct {
	Provider string               `yaml:"provider"` // gemini, openai, anthropic
	Model    string               `yaml:"model"`
	APIKey   string               `yaml:"api_key"`
	BaseURL  string               `yaml:"base_url,omitempty"`
	Timeout  time.Duration        `yaml:"timeout"`
	Breaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig configures the breaker around an outbound dependency.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before transitioning to half-open.
	Timeout time.Duration `yaml:"timeout"`
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration `yaml:"interval"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Defaults returns a configuration that passes Validate.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:          "Agent",
			Description:   "A2A agent",
			Version:       "1.0.0",
			SystemPrompt:  "You are a helpful agent.",
			MaxIterations: 10,
			CallTimeout:   120 * time.Second,
		},
		Server: ServerConfig{
			Listen: "localhost:8000",
			RateLimit: RateLimitConfig{
				RequestsPerMin: 600,
				Burst:          60,
			},
		},
		Registry: RegistryConfig{
			DiscoveryTimeout: 10 * time.Second,
			StaleAfter:       10 * time.Minute,
			RefreshSchedule:  "@every 5m",
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.0-flash",
			Timeout:  120 * time.Second,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts
// secrets. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("A2A_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// providerKeyEnv lists the conventional API key variables per provider,
// consulted when llm.api_key is empty.
var providerKeyEnv = map[string][]string{
	"gemini":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

// ApplyEnvOverrides maps A2A_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("A2A_AGENT_NAME"); v != "" {
		cfg.Agent.Name = v
	}
	if v := os.Getenv("A2A_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agent.MaxIterations = n
		}
	}
	if v := os.Getenv("A2A_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Agent.CallTimeout = d
		}
	}
	if v := os.Getenv("A2A_PROPAGATE_CONVERSATION"); v != "" {
		cfg.Agent.PropagateConversation = v == "true"
	}
	if v := os.Getenv("A2A_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("A2A_PUBLIC_URL"); v != "" {
		cfg.Server.PublicURL = v
	}
	if v := os.Getenv("A2A_PEERS"); v != "" {
		cfg.Peers = splitAndTrim(v, ",")
	}
	if v := os.Getenv("A2A_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("A2A_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("A2A_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("A2A_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if cfg.LLM.APIKey == "" {
		for _, name := range providerKeyEnv[cfg.LLM.Provider] {
			if v := os.Getenv(name); v != "" {
				cfg.LLM.APIKey = v
				break
			}
		}
	}
	if v := os.Getenv("A2A_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("A2A_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("A2A_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("A2A_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// AdvertisedURL returns the URL published on the agent card.
func (c *Config) AdvertisedURL() string {
	if c.Server.PublicURL != "" {
		return strings.TrimRight(c.Server.PublicURL, "/")
	}
	return "http://" + c.Server.Listen
}

// splitAndTrim splits s by sep, trims whitespace and drops empty elements.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
