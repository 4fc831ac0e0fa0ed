package telemetry

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/spaghettifunk/castle/engine/core"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func TestDisabledRecorder(t *testing.T) {
	r, err := NewRecorder("", "run", 1)
	if err != nil || r != nil {
		t.Fatalf("NewRecorder(\"\") = %v, %v", r, err)
	}
	if err := r.Record(FrameRecord{Frame: 1}); err != nil {
		t.Error(err)
	}
	if err := r.Close(); err != nil {
		t.Error(err)
	}
}

func TestRecorderWritesSampledFramesAndSummary(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "telemetry")
	r, err := NewRecorder(dir, "run-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 10; i++ {
		rec := FrameRecord{
			Frame:   uint64(i),
			Slot:    (i - 1) % 3,
			Fence:   uint64(i),
			FrameMS: float64(i),
		}
		if i > 3 {
			rec.Waited = true
			rec.WaitMicros = 100
		}
		if err := r.Record(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	var rows []FrameRecord
	f, err := os.Open(filepath.Join(dir, "frames.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("%d rows, want 5", len(rows))
	}
	for i, row := range rows {
		if row.Frame != uint64(2*(i+1)) || row.RunID != "run-1" {
			t.Errorf("row %d = %+v", i, row)
		}
	}

	var summaries []Summary
	sf, err := os.Open(filepath.Join(dir, "summary.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer sf.Close()
	if err := gocsv.UnmarshalFile(sf, &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 {
		t.Fatalf("%d summary rows", len(summaries))
	}
	s := summaries[0]
	tests := []struct {
		name      string
		got, want float64
	}{
		{"mean", s.MeanFrameMS, 5.5},
		{"stddev", s.StdDevFrameMS, 3.0276503540974917},
		{"p95", s.P95FrameMS, 10},
		{"wait", s.MeanWaitUS, 100},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if s.Frames != 10 || s.Waits != 7 {
		t.Errorf("summary = %+v", s)
	}
}
