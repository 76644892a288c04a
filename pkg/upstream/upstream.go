// Package upstream bounds every outbound provider call. A Guard applies a
// per-call timeout, retries transient failures with exponential backoff and
// trips a circuit breaker when a provider keeps failing, so a slow or broken
// service degrades one call instead of stalling a whole request.
package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"Similar-Music-Go/pkg/music"
)

// Policy configures a Guard. Zero values fall back to the defaults below.
type Policy struct {
	Timeout        time.Duration
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// FailureThreshold is the number of consecutive transient failures that
	// opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

const (
	defaultTimeout          = 4 * time.Second
	defaultInitialBackoff   = 200 * time.Millisecond
	defaultMaxBackoff       = 2 * time.Second
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
)

// Guard wraps calls to a single provider.
type Guard struct {
	provider string
	policy   Policy
	breaker  *gobreaker.CircuitBreaker[any]
	log      logrus.FieldLogger
}

// NewGuard creates a Guard for provider.
func NewGuard(provider string, p Policy, log logrus.FieldLogger) *Guard {
	if p.Timeout <= 0 {
		p.Timeout = defaultTimeout
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	if p.FailureThreshold == 0 {
		p.FailureThreshold = defaultFailureThreshold
	}
	if p.OpenTimeout <= 0 {
		p.OpenTimeout = defaultOpenTimeout
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("provider", provider)
	settings := gobreaker.Settings{
		Name:    provider,
		Timeout: p.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= p.FailureThreshold
		},
		// Only transient failures count against the provider; a missing
		// track says nothing about its health.
		IsSuccessful: func(err error) bool {
			return err == nil || !music.KindOf(err).Transient()
		},
		// A caller that went away or ran out of budget says nothing about
		// the provider either.
		IsExcluded: func(err error) bool {
			var ab abandoned
			return errors.As(err, &ab)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("circuit breaker state change")
		},
	}
	return &Guard{
		provider: provider,
		policy:   p,
		breaker:  gobreaker.NewCircuitBreaker[any](settings),
		log:      log,
	}
}

// abandoned marks a failure that happened after the caller's own context
// ended. Only per-call timeouts under a live caller count against the breaker.
type abandoned struct{ err error }

func (a abandoned) Error() string { return a.err.Error() }
func (a abandoned) Unwrap() error { return a.err }

// Provider returns the name the guard was created for.
func (g *Guard) Provider() string { return g.provider }

// State reports the breaker state, e.g. "closed" or "open".
func (g *Guard) State() string { return g.breaker.State().String() }

// Do runs fn under the guard's policy. Each attempt gets its own timeout
// derived from ctx. The returned error is always an *music.Error or nil.
func Do[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var out T

	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(music.NewError(g.provider, op, music.KindUnavailable, err))
		}
		v, err := g.breaker.Execute(func() (any, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.policy.Timeout)
			defer cancel()
			v, err := fn(callCtx)
			if err != nil && ctx.Err() != nil {
				return v, abandoned{err}
			}
			return v, err
		})
		if err != nil {
			var ab abandoned
			if errors.As(err, &ab) {
				return backoff.Permanent(music.NewError(g.provider, op, music.KindUnavailable, ctx.Err()))
			}
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(music.NewError(g.provider, op, music.KindUnavailable, err))
			}
			merr := music.AsError(g.provider, op, err)
			if !merr.Kind.Transient() {
				return backoff.Permanent(merr)
			}
			g.log.WithFields(logrus.Fields{"op": op, "kind": merr.Kind.String()}).WithError(err).Debug("transient failure")
			return merr
		}
		out = v.(T)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.policy.InitialBackoff
	b.MaxInterval = g.policy.MaxBackoff
	b.MaxElapsedTime = 0
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, g.policy.MaxRetries), ctx))
	if err != nil {
		return zero, music.AsError(g.provider, op, err)
	}
	return out, nil
}
