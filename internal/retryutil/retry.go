// Package retryutil provides the exponential-backoff-with-jitter delay
// calculator used by the transcription controller's reconnect logic (spec
// §4.7). It deliberately only computes delays — the controller owns the
// timer and the decision of whether a given error is retryable.
package retryutil

import (
	"math"
	"math/rand"
	"time"
)

// Policy configures the backoff schedule: delay(attempt) = base *
// factor^(attempt-1), clipped to maxDelay, then jittered by +/- jitterRatio.
type Policy struct {
	BaseDelay   time.Duration
	Factor      float64
	MaxDelay    time.Duration
	JitterRatio float64
}

// DefaultPolicy matches the spec §4.7 defaults: base=300ms, factor=2,
// maxDelay=10s, jitter=0.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   300 * time.Millisecond,
		Factor:      2,
		MaxDelay:    10 * time.Second,
		JitterRatio: 0,
	}
}

// Delay computes the backoff delay for the given 1-indexed attempt number.
// attempt must be >= 1. A JitterRatio of 0 yields a deterministic value
// (needed for the retry-arithmetic testable property in spec §8 item 10).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	raw := float64(p.BaseDelay) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelay > 0 && raw > float64(p.MaxDelay) {
		raw = float64(p.MaxDelay)
	}
	if p.JitterRatio > 0 {
		lo := 1 - p.JitterRatio
		hi := 1 + p.JitterRatio
		mult := lo + rand.Float64()*(hi-lo)
		raw *= mult
	}
	return time.Duration(raw)
}
