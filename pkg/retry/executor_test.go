package retry

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iggrowth/pkg/apierr"
)

// fakeSleeper records requested delays instead of blocking
type fakeSleeper struct {
	slept []time.Duration
}

func (f *fakeSleeper) Sleep(d time.Duration) {
	f.slept = append(f.slept, d)
}

func newTestExecutor(policy Policy) (*Executor, *fakeSleeper) {
	sleeper := &fakeSleeper{}
	exec := NewExecutor(policy, nil,
		WithSleeper(sleeper),
		WithRand(rand.New(rand.NewSource(1))),
	)
	return exec, sleeper
}

func testPolicy() Policy {
	return Policy{
		RateLimitCooldown:   10 * time.Minute,
		NetworkCooldown:     5 * time.Second,
		MaxRateLimitRetries: 3,
		JitterBase:          3 * time.Second,
		JitterSpread:        500 * time.Millisecond,
	}
}

func TestDoSuccessFirstAttempt(t *testing.T) {
	exec, sleeper := newTestExecutor(testPolicy())

	calls := 0
	result, err := Do(exec, func() (string, error) {
		calls++
		return "payload", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", result)
	assert.Equal(t, 1, calls)

	// only the pre-attempt jitter was slept
	require.Len(t, sleeper.slept, 1)
	assert.GreaterOrEqual(t, sleeper.slept[0], 3*time.Second)
	assert.Less(t, sleeper.slept[0], 3*time.Second+500*time.Millisecond)
}

func TestDoRateLimitedRetriesThenSucceeds(t *testing.T) {
	exec, sleeper := newTestExecutor(testPolicy())

	calls := 0
	result, err := Do(exec, func() (int, error) {
		calls++
		if calls <= 2 {
			return 0, apierr.New(apierr.TypeRateLimited, "rate limited")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)

	// 3 jitters + 2 rate-limit cooldowns
	var cooldowns int
	for _, d := range sleeper.slept {
		if d == 10*time.Minute {
			cooldowns++
		}
	}
	assert.Equal(t, 2, cooldowns)
}

func TestDoRateLimitBoundExceededIsFatal(t *testing.T) {
	exec, _ := newTestExecutor(testPolicy())

	calls := 0
	_, err := Do(exec, func() (int, error) {
		calls++
		return 0, apierr.New(apierr.TypeRateLimited, "rate limited")
	})

	require.Error(t, err)
	// 1 initial + 3 retries
	assert.Equal(t, 4, calls)
	assert.True(t, apierr.IsFatalError(err), "exhausted rate limit must abort the whole operation")
	assert.Contains(t, err.Error(), "too many rate limit failures")
}

func TestDoNetworkTransientRetriesIndefinitely(t *testing.T) {
	exec, sleeper := newTestExecutor(testPolicy())

	calls := 0
	result, err := Do(exec, func() (string, error) {
		calls++
		if calls < 10 {
			return "", apierr.New(apierr.TypeNetworkTransient, "connection reset")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 10, calls)

	var cooldowns int
	for _, d := range sleeper.slept {
		if d == 5*time.Second {
			cooldowns++
		}
	}
	assert.Equal(t, 9, cooldowns)
}

func TestDoActionBlockedIsImmediatelyFatal(t *testing.T) {
	exec, _ := newTestExecutor(testPolicy())

	calls := 0
	_, err := Do(exec, func() (int, error) {
		calls++
		return 0, apierr.New(apierr.TypeActionBlocked, "action blocked")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "action block must never be retried")
	assert.True(t, apierr.IsFatalError(err))
}

func TestDoUnrecognizedIsImmediatelyFatal(t *testing.T) {
	exec, _ := newTestExecutor(testPolicy())

	calls := 0
	_, err := Do(exec, func() (int, error) {
		calls++
		return 0, apierr.NewWithPayload(apierr.TypeUnrecognized, `{"status":"fail"}`, "unrecognized")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var clsErr *apierr.Error
	require.True(t, errors.As(err, &clsErr))
	assert.Equal(t, `{"status":"fail"}`, clsErr.Payload, "payload must be surfaced for diagnosis")
}

func TestDoUnclassifiedErrorIsNotRetried(t *testing.T) {
	exec, _ := newTestExecutor(testPolicy())

	boom := errors.New("boom")
	calls := 0
	_, err := Do(exec, func() (int, error) {
		calls++
		return 0, boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestJitterAppliedBeforeEveryAttempt(t *testing.T) {
	exec, sleeper := newTestExecutor(testPolicy())

	calls := 0
	_, err := Do(exec, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, apierr.New(apierr.TypeNetworkTransient, "timeout")
		}
		return 1, nil
	})
	require.NoError(t, err)

	var jitters int
	for _, d := range sleeper.slept {
		if d >= 3*time.Second && d < 4*time.Second {
			jitters++
		}
	}
	assert.Equal(t, 3, jitters, "every attempt gets its own jitter delay")
}
