package core

import (
	"sync"

	"github.com/spaghettifunk/castle/engine/containers"
)

const AVG_COUNT int = 30

type MetricsState struct {
	frameTimes         *containers.RingQueue[float64]
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = newMetricsState()
	})
	return nil
}

func newMetricsState() *MetricsState {
	return &MetricsState{
		frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

// MetricsUpdate records the duration of one frame, in seconds.
func MetricsUpdate(frameElapsedTime float64) {
	if metricsState == nil {
		return
	}
	metricsState.update(frameElapsedTime)
}

func (m *MetricsState) update(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0
	m.frameTimes.Push(frameMS)

	// Moving average over the last AVG_COUNT frames.
	sum := 0.0
	m.frameTimes.Each(func(ms float64) { sum += ms })
	m.MSavg = sum / float64(m.frameTimes.Len())

	m.AccumulatedFrameMS += frameMS
	m.Frames++
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}
}

func MetricsFPS() float64 {
	if metricsState == nil {
		return 0
	}
	return metricsState.FPS
}

func MetricsFrameTime() float64 {
	if metricsState == nil {
		return 0
	}
	return metricsState.MSavg
}

func MetricsFrame() (float64, float64) {
	return MetricsFPS(), MetricsFrameTime()
}
