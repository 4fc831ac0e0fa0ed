// Package telemetry writes per-frame timing rows and a run summary as CSV.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"

	"github.com/spaghettifunk/castle/engine/core"
)

// FrameRecord is one row of frames.csv.
type FrameRecord struct {
	RunID        string  `csv:"run_id"`
	Frame        uint64  `csv:"frame"`
	Slot         int     `csv:"slot"`
	Fence        uint64  `csv:"fence"`
	Completed    uint64  `csv:"completed_fence"`
	Waited       bool    `csv:"waited"`
	WaitMicros   int64   `csv:"wait_us"`
	UpdateMicros int64   `csv:"update_us"`
	DrawMicros   int64   `csv:"draw_us"`
	FrameMS      float64 `csv:"frame_ms"`
	ItemsDrawn   int     `csv:"items_drawn"`
	StaleWrites  int     `csv:"stale_writes"`
	WaveSteps    int     `csv:"wave_steps"`
	Hazards      uint64  `csv:"hazards"`
}

// Summary is the single row of summary.csv.
type Summary struct {
	RunID         string  `csv:"run_id"`
	Frames        int     `csv:"frames"`
	MeanFrameMS   float64 `csv:"mean_frame_ms"`
	StdDevFrameMS float64 `csv:"stddev_frame_ms"`
	P95FrameMS    float64 `csv:"p95_frame_ms"`
	Waits         int     `csv:"waits"`
	MeanWaitUS    float64 `csv:"mean_wait_us"`
	Hazards       uint64  `csv:"hazards"`
}

// Recorder appends sampled frames to frames.csv and keeps every frame time
// for the summary. A nil Recorder ignores all calls.
type Recorder struct {
	dir         string
	runID       string
	sampleEvery uint64

	framesFile    *os.File
	headerWritten bool

	frameMS []float64
	waitUS  []float64
	waits   int
	hazards uint64
}

// NewRecorder creates dir and frames.csv inside it. An empty dir disables
// telemetry and returns nil.
func NewRecorder(dir, runID string, sampleEvery int) (*Recorder, error) {
	if dir == "" {
		return nil, nil
	}
	if sampleEvery < 1 {
		sampleEvery = 1
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "frames.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating frames.csv: %w", err)
	}
	core.LogInfo("telemetry for run %s written to %s", runID, dir)
	return &Recorder{
		dir:         dir,
		runID:       runID,
		sampleEvery: uint64(sampleEvery),
		framesFile:  f,
	}, nil
}

// Record accounts for one frame and writes it if it falls on the sampling
// interval.
func (r *Recorder) Record(rec FrameRecord) error {
	if r == nil {
		return nil
	}
	r.frameMS = append(r.frameMS, rec.FrameMS)
	if rec.Waited {
		r.waits++
		r.waitUS = append(r.waitUS, float64(rec.WaitMicros))
	}
	r.hazards = rec.Hazards

	if rec.Frame%r.sampleEvery != 0 {
		return nil
	}
	rec.RunID = r.runID
	records := []FrameRecord{rec}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.framesFile); err != nil {
			return fmt.Errorf("writing frame record: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.framesFile); err != nil {
		return fmt.Errorf("writing frame record: %w", err)
	}
	return nil
}

// Summary computes the run statistics recorded so far.
func (r *Recorder) Summary() Summary {
	if r == nil {
		return Summary{}
	}
	s := Summary{
		RunID:   r.runID,
		Frames:  len(r.frameMS),
		Waits:   r.waits,
		Hazards: r.hazards,
	}
	if len(r.frameMS) > 0 {
		s.MeanFrameMS, s.StdDevFrameMS = stat.MeanStdDev(r.frameMS, nil)
		sorted := append([]float64(nil), r.frameMS...)
		sort.Float64s(sorted)
		s.P95FrameMS = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	}
	if len(r.waitUS) > 0 {
		s.MeanWaitUS = stat.Mean(r.waitUS, nil)
	}
	return s
}

func (r *Recorder) Dir() string {
	if r == nil {
		return ""
	}
	return r.dir
}

// Close writes summary.csv and closes frames.csv.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	summary := r.Summary()

	var firstErr error
	f, err := os.Create(filepath.Join(r.dir, "summary.csv"))
	if err != nil {
		firstErr = fmt.Errorf("creating summary.csv: %w", err)
	} else {
		if err := gocsv.Marshal([]Summary{summary}, f); err != nil {
			firstErr = fmt.Errorf("writing summary: %w", err)
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := r.framesFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	core.LogInfo("telemetry: %d frames, mean %.2f ms, p95 %.2f ms, %d waits",
		summary.Frames, summary.MeanFrameMS, summary.P95FrameMS, summary.Waits)
	return firstErr
}
