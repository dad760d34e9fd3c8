// Package resilience decorates embedding and LLM services with a per-call
// timeout, a rate limiter and a circuit breaker.
//
// Failures surface as ordinary errors. An open breaker returns
// gobreaker.ErrOpenState; services map it to their own error kinds.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/tenk/internal/logger"
)

// Options configures a guard.
type Options struct {
	// Name labels the breaker in logs.
	Name string

	// Timeout bounds each call. Zero disables it.
	Timeout time.Duration

	// RatePerSecond caps call starts. Zero disables the limiter.
	RatePerSecond float64

	// Failures is the consecutive failure count that opens the breaker.
	// Zero disables the breaker.
	Failures int

	// Cooldown is how long the breaker stays open before probing again.
	Cooldown time.Duration
}

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = gobreaker.ErrOpenState

type guard struct {
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newGuard(opts Options) *guard {
	g := &guard{timeout: opts.Timeout}

	if opts.RatePerSecond > 0 {
		burst := max(1, int(opts.RatePerSecond))
		g.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	if opts.Failures > 0 {
		failures := uint32(opts.Failures)
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        opts.Name,
			MaxRequests: 1,
			Timeout:     opts.Cooldown,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			// A caller giving up is not the provider's fault.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker %s: %s -> %s", name, from, to)
			},
		})
	}
	return g
}

// do runs fn under the limiter, breaker and timeout, in that order.
func (g *guard) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	call := func() error {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err != nil && callCtx.Err() != nil && ctx.Err() == nil {
			// The per-call timeout fired; make that visible to errors.Is.
			return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return err
	}

	if g.breaker == nil {
		return call()
	}
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, call()
	})
	return err
}
