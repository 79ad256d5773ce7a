package scheduler

import (
	"math/rand/v2"
	"time"
)

// Jitter computes the wait between two checks: Base plus a uniformly drawn
// whole number of Resolution units in [Min, Max].
type Jitter struct {
	Base time.Duration
	Min  time.Duration
	Max  time.Duration

	// Resolution is the granularity of the random part. Zero means one second.
	Resolution time.Duration
}

// DefaultJitter yields periods of 60 to 65 seconds.
var DefaultJitter = Jitter{
	Base: 55 * time.Second,
	Min:  5 * time.Second,
	Max:  10 * time.Second,
}

// NextDelay draws a new delay from rng. It must be called once per cycle.
func (j Jitter) NextDelay(rng *rand.Rand) time.Duration {
	res := j.Resolution
	if res <= 0 {
		res = time.Second
	}

	lo := int64(j.Min / res)
	hi := int64(j.Max / res)
	if hi <= lo {
		return j.Base + time.Duration(lo)*res
	}
	return j.Base + time.Duration(lo+rng.Int64N(hi-lo+1))*res
}

// Bounds returns the smallest and largest delay NextDelay can return.
func (j Jitter) Bounds() (lo, hi time.Duration) {
	res := j.Resolution
	if res <= 0 {
		res = time.Second
	}
	lo = j.Base + (j.Min/res)*res
	hi = j.Base + (j.Max/res)*res
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
