package llm

import (
	"fmt"
	"time"

	"github.com/aescanero/mythgate/internal/ports"
	"github.com/aescanero/mythgate/pkg/adapters/llm/anthropic"
	"go.uber.org/zap"
)

// Config holds summarizer configuration
type Config struct {
	Provider       string
	APIKey         string
	Model          string
	MaxTokens      int
	RequestTimeout time.Duration
	Metrics        ports.MetricsCollector
	Logger         *zap.Logger
}

// NewSummarizer creates a new report summarizer based on provider
func NewSummarizer(cfg *Config) (ports.Summarizer, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewSummarizer(&anthropic.Config{
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			MaxTokens:      cfg.MaxTokens,
			RequestTimeout: cfg.RequestTimeout,
			Metrics:        cfg.Metrics,
			Logger:         cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
