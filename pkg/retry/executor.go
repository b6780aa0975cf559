package retry

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"iggrowth/pkg/apierr"
	"iggrowth/pkg/logger"
	"iggrowth/pkg/metrics"
)

// Policy holds the cooldown schedule and bounds for the executor
type Policy struct {
	// RateLimitCooldown is slept after a rate-limit response before retrying
	RateLimitCooldown time.Duration
	// NetworkCooldown is slept after a transient network failure
	NetworkCooldown time.Duration
	// MaxRateLimitRetries bounds consecutive rate-limit retries; exceeding it
	// aborts the whole operation rather than spinning forever
	MaxRateLimitRetries int
	// JitterBase and JitterSpread delay every attempt by
	// JitterBase + [0, JitterSpread) to avoid bursty request patterns
	JitterBase   time.Duration
	JitterSpread time.Duration
}

// DefaultPolicy returns the policy the platform has historically tolerated
func DefaultPolicy() Policy {
	return Policy{
		RateLimitCooldown:   10 * time.Minute,
		NetworkCooldown:     5 * time.Second,
		MaxRateLimitRetries: 3,
		JitterBase:          3 * time.Second,
		JitterSpread:        500 * time.Millisecond,
	}
}

// Sleeper abstracts blocking delays so tests can run without real time
type Sleeper interface {
	Sleep(d time.Duration)
}

// realSleeper blocks the calling goroutine. Blocking is deliberate: the
// cooldown is the throttle.
type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Executor wraps a single outbound API call with failure classification and
// cooldown/retry. It owns no shared state and is confined to one goroutine
// per account session.
type Executor struct {
	policy  Policy
	sleeper Sleeper
	rng     *rand.Rand
	log     logger.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithSleeper injects a sleeper, used by tests to avoid real delays
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleeper = s }
}

// WithRand injects the jitter source
func WithRand(r *rand.Rand) Option {
	return func(e *Executor) { e.rng = r }
}

// NewExecutor creates an executor with the given policy
func NewExecutor(policy Policy, log logger.Logger, opts ...Option) *Executor {
	if log == nil {
		log = logger.GetLogger()
	}
	e := &Executor{
		policy:  policy,
		sleeper: realSleeper{},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do executes op until it succeeds or fails fatally. op performs one complete
// attempt (request, decode, classify) and returns either a payload or a
// classified *apierr.Error. Unclassified errors are treated as fatal.
func Do[T any](e *Executor, op func() (T, error)) (T, error) {
	var zero T
	rateLimitFailures := 0

	for {
		e.jitter()

		result, err := op()
		if err == nil {
			return result, nil
		}

		var clsErr *apierr.Error
		if !errors.As(err, &clsErr) {
			return zero, err
		}

		switch clsErr.Type {
		case apierr.TypeRateLimited:
			if rateLimitFailures >= e.policy.MaxRateLimitRetries {
				metrics.RequestsFatal.WithLabelValues(string(clsErr.Type)).Inc()
				return zero, apierr.AsFatal(fmt.Errorf("too many rate limit failures (%d): %w", rateLimitFailures, clsErr))
			}
			rateLimitFailures++
			metrics.RequestRetries.WithLabelValues(string(clsErr.Type)).Inc()
			e.log.InfoWithFields("got rate limited, sleeping and retrying", map[string]interface{}{
				"cooldown": e.policy.RateLimitCooldown.String(),
				"failures": rateLimitFailures,
			})
			e.sleeper.Sleep(e.policy.RateLimitCooldown)

		case apierr.TypeNetworkTransient:
			// retried indefinitely, bounded only by process lifetime
			metrics.RequestRetries.WithLabelValues(string(clsErr.Type)).Inc()
			e.log.InfoWithFields("network issue, sleeping and retrying", map[string]interface{}{
				"cooldown": e.policy.NetworkCooldown.String(),
				"error":    clsErr.Message,
			})
			e.sleeper.Sleep(e.policy.NetworkCooldown)

		default:
			metrics.RequestsFatal.WithLabelValues(string(clsErr.Type)).Inc()
			return zero, clsErr
		}
	}
}

// jitter delays the next attempt by JitterBase plus a random spread
func (e *Executor) jitter() {
	d := e.policy.JitterBase
	if e.policy.JitterSpread > 0 {
		d += time.Duration(e.rng.Int63n(int64(e.policy.JitterSpread)))
	}
	if d > 0 {
		e.sleeper.Sleep(d)
	}
}
