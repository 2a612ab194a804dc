package ai

import (
	"fmt"

	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"github.com/arturoeanton/go-survey-indexer/pkg/config"
)

// NewEmbedderFromConfig builds the embedding client described by cfg.
func NewEmbedderFromConfig(cfg *config.Config) port.Embedder {
	return NewOllamaEmbedder(OllamaEndpointConfig{
		BaseURL: cfg.OllamaEmbedURL,
		Model:   cfg.OllamaEmbedModel,
		Token:   cfg.OllamaEmbedToken,
	}, cfg.EmbeddingDimension)
}

// NewSummarizerFromConfig builds the paced summarizer described by cfg.
// It returns nil when summaries are composed locally.
func NewSummarizerFromConfig(cfg *config.Config) (port.Summarizer, error) {
	var s port.Summarizer
	switch cfg.Summarizer {
	case config.SummarizerNone:
		return nil, nil
	case config.SummarizerAnthropic:
		a, err := NewAnthropicSummarizer(AnthropicConfig{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
		})
		if err != nil {
			return nil, err
		}
		s = a
	case config.SummarizerOllama:
		s = NewOllamaSummarizer(OllamaEndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.OllamaChatModel,
			Token:   cfg.OllamaChatToken,
		})
	default:
		return nil, fmt.Errorf("unknown summarizer %q", cfg.Summarizer)
	}
	return NewPacedSummarizer(s, cfg.SummaryRatePerSec).WithTimeout(cfg.SummaryTimeout), nil
}
