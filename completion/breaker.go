package completion

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

// Breaker stops calling a failing provider for a while so a bad key or an
// outage costs one error per item instead of one timeout per item.
type Breaker struct {
	next Service
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(name string, next Service, logger *log.Logger) *Breaker {
	if logger == nil {
		logger = log.Default()
	}
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			// An empty answer or a caller cancellation says nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNoText) || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("completion breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (b *Breaker) Complete(ctx context.Context, prompt string, s Sampling) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, prompt, s)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state for status output.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
