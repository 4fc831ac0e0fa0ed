package waves

import (
	"github.com/spaghettifunk/castle/engine/math"
)

// Weather drops random disturbances on a grid at a fixed interval of
// simulated time.
type Weather struct {
	Interval     float32
	MinMagnitude float32
	MaxMagnitude float32

	base float32
	rng  *math.Random
}

func NewWeather(interval, minMagnitude, maxMagnitude float32, rng *math.Random) *Weather {
	return &Weather{
		Interval:     interval,
		MinMagnitude: minMagnitude,
		MaxMagnitude: maxMagnitude,
		rng:          rng,
	}
}

// Tick disturbs one random interior cell of g if at least Interval seconds
// passed since the last drop. totalTime is the running simulation time.
// It reports whether a drop happened.
func (w *Weather) Tick(g *Grid, totalTime float32) (bool, error) {
	if totalTime-w.base < w.Interval {
		return false, nil
	}
	w.base += w.Interval

	i := w.rng.IntRange(DisturbMargin, g.RowCount()-1-DisturbMargin)
	j := w.rng.IntRange(DisturbMargin, g.ColumnCount()-1-DisturbMargin)
	magnitude := w.rng.FloatRange(w.MinMagnitude, w.MaxMagnitude)

	if err := g.Disturb(i, j, magnitude); err != nil {
		return false, err
	}
	return true, nil
}
