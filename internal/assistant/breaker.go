package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before going half-open.
	Timeout time.Duration
	// Interval clears failure counts periodically while closed.
	Interval time.Duration
}

// BreakerGenerator wraps a Generator so repeated failures fail fast.
type BreakerGenerator struct {
	inner   Generator
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerGenerator wraps inner with a circuit breaker. Zero fields in cfg
// use the defaults.
func NewBreakerGenerator(inner Generator, cfg BreakerConfig) *BreakerGenerator {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "genai",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})

	return &BreakerGenerator{inner: inner, breaker: cb}
}

// Generate implements Generator.
func (g *BreakerGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.breaker.Execute(func() (string, error) {
		return g.inner.Generate(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: circuit open", ErrUpstreamUnavailable)
	}
	return text, err
}

// State returns the current circuit breaker state.
func (g *BreakerGenerator) State() gobreaker.State {
	return g.breaker.State()
}
