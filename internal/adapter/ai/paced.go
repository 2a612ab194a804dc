package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/arturoeanton/go-survey-indexer/internal/port"
	"golang.org/x/time/rate"
)

// PacedSummarizer spaces out calls to a rate-limited completion API.
type PacedSummarizer struct {
	next    port.Summarizer
	limiter *rate.Limiter
	timeout time.Duration
}

// NewPacedSummarizer allows perSecond calls per second through to next.
// A non-positive rate disables pacing.
func NewPacedSummarizer(next port.Summarizer, perSecond float64) *PacedSummarizer {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &PacedSummarizer{next: next, limiter: rate.NewLimiter(limit, 1)}
}

// ModelName returns the wrapped model identifier.
func (p *PacedSummarizer) ModelName() string {
	return p.next.ModelName()
}

// WithTimeout bounds each delegated call. Zero means no bound.
func (p *PacedSummarizer) WithTimeout(d time.Duration) *PacedSummarizer {
	p.timeout = d
	return p
}

// Summarize waits for the limiter, then delegates.
func (p *PacedSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for summary slot: %w", err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.next.Summarize(ctx, prompt)
}
