package llm

import (
	"fmt"
	"log/slog"

	"github.com/vidya-hub/a2a-orchestrator/internal/domain"
	"github.com/vidya-hub/a2a-orchestrator/internal/infra/config"
)

// NewProvider builds the configured provider behind a circuit breaker.
func NewProvider(cfg config.LLMConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	var inner domain.LLMProvider
	switch cfg.Provider {
	case "gemini":
		inner = NewGeminiProvider(cfg, logger)
	case "openai":
		inner = NewOpenAIProvider(cfg, logger)
	case "anthropic":
		inner = NewAnthropicProvider(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
	return NewCircuitBreakerProvider(inner, cfg.Breaker, logger), nil
}
