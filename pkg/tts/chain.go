package tts

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain implements Synthesizer by trying multiple providers in order.
// The first provider whose stream opens wins; if all fail, an aggregate
// error is returned and the caller falls back to canned text.
type Chain struct {
	synths []Synthesizer
	logger *slog.Logger
}

// NewChain creates a synthesizer chain that tries providers in order.
// At least one synthesizer is required.
func NewChain(logger *slog.Logger, synths ...Synthesizer) (*Chain, error) {
	if len(synths) == 0 {
		return nil, ErrNoSynthesizers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		synths: synths,
		logger: logger.With("component", "tts.chain"),
	}, nil
}

// Stream tries each synthesizer until one opens a stream.
func (c *Chain) Stream(ctx context.Context, text string) (AudioStream, error) {
	var failures []error

	for i, s := range c.synths {
		stream, err := s.Stream(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback synthesizer succeeded",
					"synth_index", i,
					"chars", len(text),
				)
			}
			return stream, nil
		}

		failures = append(failures, err)
		c.logger.Warn("synthesizer failed, trying next",
			"synth_index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, &ChainError{Errors: failures}
}

// Health returns nil if at least one synthesizer is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error

	for _, s := range c.synths {
		if err := s.Health(ctx); err != nil {
			lastErr = err
		} else {
			healthy++
		}
	}
	if healthy == 0 {
		return fmt.Errorf("all %d synthesizers unhealthy: %w", len(c.synths), lastErr)
	}
	return nil
}

// Close closes all synthesizers.
func (c *Chain) Close() error {
	var lastErr error
	for _, s := range c.synths {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ChainError aggregates errors from all synthesizers in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "tts chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: all %d synthesizers failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// Verify Chain implements Synthesizer at compile time.
var _ Synthesizer = (*Chain)(nil)
