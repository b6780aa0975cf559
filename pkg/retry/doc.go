// Package retry wraps single outbound API calls with failure classification
// and cooldown/retry against an undocumented, rate-limited platform API.
//
// Classification outcomes and their handling:
//   - rate limited: fixed cooldown (minutes), at most a few consecutive
//     retries, then the whole operation aborts
//   - network transient: short cooldown (seconds), retried indefinitely
//   - action blocked: fatal immediately, no retry
//   - unrecognized: fatal immediately, surfaced with the raw payload
//
// Every attempt is preceded by a small random jitter delay so request timing
// never looks bursty. Cooldowns block the calling goroutine; the block is the
// throttle, not an inefficiency.
package retry
