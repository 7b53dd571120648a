package ingest

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: exponential growth capped at Max, with
// the upper half of each step randomised.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultBackoff starts at 500ms and caps at 30s.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 500 * time.Millisecond, Max: 30 * time.Second, Multiplier: 2}
}

// Next returns the delay before reconnect attempt n, counting from zero.
func (b Backoff) Next(attempt int) time.Duration {
	initial, ceiling, mult := b.Initial, b.Max, b.Multiplier
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if ceiling < initial {
		ceiling = initial
	}
	if mult < 1 {
		mult = 2
	}
	if attempt < 0 {
		attempt = 0
	}
	d := float64(initial) * math.Pow(mult, float64(attempt))
	if d > float64(ceiling) || math.IsInf(d, 0) {
		d = float64(ceiling)
	}
	r := b.Rand
	if r == nil {
		r = rand.Float64
	}
	half := d / 2
	return time.Duration(half + r()*half)
}
