// Package anthropic summarizes analysis reports with Anthropic Claude.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/internal/ports"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const systemPrompt = "You are a smart contract security reviewer. Summarize static analysis " +
	"findings for a developer in at most five sentences. Name the most severe " +
	"weakness first and suggest the usual remediation. Do not invent findings."

// messageCreator is the subset of the SDK message service used here
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config holds summarizer configuration
type Config struct {
	APIKey         string
	Model          string
	MaxTokens      int
	RequestTimeout time.Duration
	Metrics        ports.MetricsCollector
	Logger         *zap.Logger
}

// Summarizer implements ports.Summarizer
type Summarizer struct {
	messages  messageCreator
	model     string
	maxTokens int64
	metrics   ports.MetricsCollector
	logger    *zap.Logger
}

// NewSummarizer creates a new Anthropic summarizer
func NewSummarizer(cfg *Config) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	client := anthropic.NewClient(opts...)

	return &Summarizer{
		messages:  &client.Messages,
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}, nil
}

// Summarize asks the model for a short prose summary of report
func (s *Summarizer) Summarize(ctx context.Context, report *domain.Report) (string, error) {
	start := time.Now()
	msg, err := s.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(report))),
		},
	})
	if s.metrics != nil {
		s.metrics.ObserveLLMLatency(s.model, time.Since(start))
	}
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	s.logger.Debug("report summarized",
		zap.String("address", report.Address),
		zap.String("model", s.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens))

	return strings.TrimSpace(b.String()), nil
}

// buildPrompt renders the findings as a compact list
func buildPrompt(report *domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contract %s", report.Address)
	if report.ContractName != "" {
		fmt.Fprintf(&b, " (%s)", report.ContractName)
	}
	fmt.Fprintf(&b, " was analyzed in %s mode. ", report.Mode)

	if len(report.Issues) == 0 {
		b.WriteString("No issues were reported.")
		return b.String()
	}

	fmt.Fprintf(&b, "%d issues were reported:\n", len(report.Issues))
	for _, issue := range report.Issues {
		fmt.Fprintf(&b, "- [%s] SWC-%s %s in %s.%s: %s\n",
			issue.Severity, issue.SWCID, issue.Title, issue.Contract, issue.Function, issue.Description)
	}
	return b.String()
}
