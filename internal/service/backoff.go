package service

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes exponential delays: Min*Factor^(attempt-1), capped at Max.
// With Jitter the delay is scaled into [50%, 100%] of that value.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter bool
}

func NewBackoff(min, max time.Duration, factor float64) *Backoff {
	if factor < 1 {
		factor = 1
	}
	return &Backoff{
		Min:    min,
		Max:    max,
		Factor: factor,
	}
}

func (b *Backoff) Duration(attempt int) time.Duration {
	if attempt <= 1 {
		return b.clamp(float64(b.Min))
	}

	d := b.clamp(float64(b.Min) * math.Pow(b.Factor, float64(attempt-1)))
	if b.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
	}
	return d
}

func (b *Backoff) clamp(d float64) time.Duration {
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
