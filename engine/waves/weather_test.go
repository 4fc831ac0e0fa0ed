package waves

import (
	"testing"

	"github.com/spaghettifunk/castle/engine/math"
)

func TestWeatherInterval(t *testing.T) {
	g := newTestGrid(t, 32, 32)
	w := NewWeather(0.25, 0.2, 0.5, math.NewRandom(1))

	tests := []struct {
		total float32
		want  bool
	}{
		{0.10, false},
		{0.25, true},
		{0.30, false},
		{0.49, false},
		{0.50, true},
		{1.20, true},
		{1.21, true},
		{1.22, false},
		{1.25, true},
	}
	for _, tt := range tests {
		got, err := w.Tick(g, tt.total)
		if err != nil {
			t.Fatalf("Tick(%f): %v", tt.total, err)
		}
		if got != tt.want {
			t.Errorf("Tick(%f) = %v, want %v", tt.total, got, tt.want)
		}
	}
}

func TestWeatherStaysInsideInterior(t *testing.T) {
	// On a 9x9 grid (4,4) is the only legal cell.
	g := newTestGrid(t, 9, 9)
	w := NewWeather(0.25, 0.2, 0.5, math.NewRandom(99))
	var total float32
	for i := 0; i < 200; i++ {
		total += 0.25
		dropped, err := w.Tick(g, total)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if !dropped {
			t.Fatalf("tick %d did not drop", i)
		}
	}
	if g.Height(4, 4) < 200*0.2*0.99 {
		t.Errorf("centre height %f lower than the minimum total magnitude", g.Height(4, 4))
	}
	if i, j, ok := edgesAreFlat(g); !ok {
		t.Errorf("edge (%d,%d) disturbed", i, j)
	}
}
