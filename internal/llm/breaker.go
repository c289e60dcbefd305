package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker stops calling a provider that keeps failing. While the circuit is
// open, Complete fails fast with gobreaker.ErrOpenState.
type Breaker struct {
	next Completer
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker that opens after failures
// consecutive errors and probes again after cooldown. Overflowing prompts
// and cancelled requests do not count as failures.
func NewBreaker(next Completer, name string, failures int, cooldown time.Duration, logger *slog.Logger) *Breaker {
	log := logger.With("component", "llm_breaker")

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrContextLengthExceeded) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) Complete(ctx context.Context, messages []Message) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Complete(ctx, messages)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state, for logging and tests.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
