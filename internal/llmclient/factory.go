package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pdellibergoli/ai-test-automation/internal/config"
)

// NewClient builds the tiered Client for the configured provider: one
// model instance per tier, behind a Router.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		fast, err := NewGeminiClient(cfg.Fast, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create fast-tier client: %w", err)
		}
		powerful, err := NewGeminiClient(cfg.Powerful, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create powerful-tier client: %w", err)
		}
		return NewRouter(logger, fast, powerful)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}
