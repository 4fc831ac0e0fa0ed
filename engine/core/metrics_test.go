package core

import (
	"math"
	"testing"
)

func TestMetricsMovingAverage(t *testing.T) {
	m := newMetricsState()
	for i := 0; i < AVG_COUNT; i++ {
		m.update(0.015625)
	}
	if math.Abs(m.MSavg-15.625) > 1e-9 {
		t.Errorf("MSavg = %f, want 15.625", m.MSavg)
	}
	// The window only keeps the last AVG_COUNT samples.
	for i := 0; i < AVG_COUNT; i++ {
		m.update(0.03125)
	}
	if math.Abs(m.MSavg-31.25) > 1e-9 {
		t.Errorf("MSavg = %f, want 31.25", m.MSavg)
	}
}

func TestMetricsFPS(t *testing.T) {
	m := newMetricsState()
	// 15.625 ms is exact in binary; the 65th frame crosses one second.
	for i := 0; i < 65; i++ {
		m.update(0.015625)
	}
	if m.FPS != 65 {
		t.Errorf("FPS = %f, want 65", m.FPS)
	}
	if m.Frames != 0 {
		t.Errorf("Frames = %d, want 0 after rollover", m.Frames)
	}
}
