package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
)

const summarySystemPrompt = `You write short, factual profiles of survey respondents. Answer with the profile sentences only, in the language of the data.`

// AnthropicConfig configures the Claude summarizer.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	BaseURL   string // optional, for proxies and tests
	MaxTokens int
}

// AnthropicSummarizer implements port.Summarizer on top of langchaingo's Anthropic client.
type AnthropicSummarizer struct {
	client    llms.Model
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewAnthropicSummarizer creates a Claude-backed summarizer.
func NewAnthropicSummarizer(cfg AnthropicConfig) (*AnthropicSummarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: missing API key")
	}
	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	client, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicSummarizer{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		logger:    slog.Default().With("component", "anthropic-summarizer"),
	}, nil
}

// ModelName returns the Claude model identifier.
func (a *AnthropicSummarizer) ModelName() string {
	return a.model
}

// Summarize asks Claude for a profile of the respondent described in prompt.
func (a *AnthropicSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, summarySystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := a.client.GenerateContent(ctx, content, llms.WithMaxTokens(a.maxTokens))
	if err != nil {
		a.logger.Error("failed to generate summary", "err", err)
		return "", fmt.Errorf("anthropic summarize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anthropic summarize: %w", port.ErrEmptySummary)
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
