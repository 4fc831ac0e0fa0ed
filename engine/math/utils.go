package math

import (
	"time"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/rand"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Random wraps a seeded generator. It is not safe for concurrent use.
type Random struct {
	r *rand.Rand
}

// NewRandom seeds a generator. A zero seed uses the current time.
func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{r: rand.New(rand.NewSource(seed))}
}

// IntRange returns a value in [low, high], both ends included.
func (r *Random) IntRange(low, high int) int {
	if high <= low {
		return low
	}
	return low + r.r.Intn(high-low+1)
}

// FloatRange returns a value in [low, high).
func (r *Random) FloatRange(low, high float32) float32 {
	return low + r.r.Float32()*(high-low)
}
