package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cf-ai-screenwriter-go/internal/config"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Guarded wraps a provider with optional client-side pacing and a circuit
// breaker. A tripped breaker fails fast so the caller can fall back.
type Guarded struct {
	inner   Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuarded returns p unchanged when neither pacing nor breaking is configured
func NewGuarded(p Provider, cfg config.ProviderConfig) Provider {
	g := &Guarded{inner: p}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.Breaker.Enabled {
		maxFailures := cfg.Breaker.MaxFailures
		if maxFailures == 0 {
			maxFailures = 5
		}
		timeout := cfg.Breaker.OpenTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    fmt.Sprintf("provider-%s", p.Name()),
			Timeout: timeout,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= maxFailures
			},
			IsSuccessful: func(err error) bool {
				// caller cancellation says nothing about provider health
				return err == nil || errors.Is(err, context.Canceled)
			},
		})
	}

	if g.limiter == nil && g.breaker == nil {
		return p
	}
	return g
}

func (g *Guarded) Name() string {
	return g.inner.Name()
}

func (g *Guarded) Call(ctx context.Context, prompt string, opts Options) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", &ProviderError{Provider: g.inner.Name(), Err: err}
		}
	}

	if g.breaker == nil {
		return g.inner.Call(ctx, prompt, opts)
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Call(ctx, prompt, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &ProviderError{Provider: g.inner.Name(), Err: err}
		}
		return "", err
	}
	return out.(string), nil
}

// State reports the breaker state, or closed when no breaker is configured
func (g *Guarded) State() gobreaker.State {
	if g.breaker == nil {
		return gobreaker.StateClosed
	}
	return g.breaker.State()
}
