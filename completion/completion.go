// Package completion wraps the generative-language APIs behind a single
// prompt-in/text-out interface.
package completion

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrNoText means the provider answered without any candidate text.
	ErrNoText = errors.New("completion returned no text")
	// ErrMissingAPIKey is returned by constructors when no key is configured.
	ErrMissingAPIKey = errors.New("api key not configured")
)

// Sampling controls generation.
type Sampling struct {
	Temperature     float64
	MaxOutputTokens int64
}

// Service produces a completion for a single prompt.
type Service interface {
	Complete(ctx context.Context, prompt string, s Sampling) (string, error)
}

// Func adapts a plain function to Service.
type Func func(ctx context.Context, prompt string, s Sampling) (string, error)

func (f Func) Complete(ctx context.Context, prompt string, s Sampling) (string, error) {
	return f(ctx, prompt, s)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
