package engine

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/core"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func headlessConfig(t *testing.T, frames int) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.App.Width, cfg.App.Height = 96, 64
	cfg.Waves.Rows, cfg.Waves.Cols = 32, 32
	cfg.Waves.Seed = 11
	cfg.Renderer.HeadlessFrames = frames
	cfg.Assets.TexturesDir = t.TempDir()
	if err := cfg.Recompute(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestHeadlessRun(t *testing.T) {
	cfg := headlessConfig(t, 12)
	out := t.TempDir()
	cfg.Renderer.Screenshot = filepath.Join(out, "castle.bmp")
	cfg.Telemetry.OutputDir = filepath.Join(out, "telemetry")

	updates := 0
	g := &Game{Config: cfg}
	g.FnInitialize = func() error {
		if g.Systems == nil || g.Systems.Renderer == nil {
			t.Error("systems not set before initialize")
		}
		return nil
	}
	g.FnUpdate = func(dt float64) error {
		if dt != headlessDeltaTime {
			t.Errorf("delta %f, want the fixed headless step", dt)
		}
		updates++
		// exercise both pipelines
		g.Systems.Wireframe = updates%2 == 0
		return nil
	}

	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if e.Stage() != EngineStageInitialized {
		t.Fatalf("stage %d after initialize", e.Stage())
	}
	if e.platform != nil {
		t.Fatal("headless runs must not open a window")
	}
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if updates != 12 || e.frames != 12 {
		t.Fatalf("%d updates, %d frames", updates, e.frames)
	}
	if got := e.systems.Renderer.Ring().Completed(); got == 0 {
		t.Fatal("no frame completed")
	}
	if err := e.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	for _, name := range []string{"castle.bmp", "telemetry/frames.csv", "telemetry/summary.csv"} {
		fi, err := os.Stat(filepath.Join(out, name))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if fi.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestUpdateErrorStopsRun(t *testing.T) {
	boom := errors.New("boom")
	g := &Game{
		Config:   headlessConfig(t, 50),
		FnUpdate: func(float64) error { return boom },
	}
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.Run(); !errors.Is(err, boom) {
		t.Fatalf("Run returned %v", err)
	}
	if e.frames != 0 {
		t.Fatalf("%d frames rendered after a failed update", e.frames)
	}
}

func TestUnknownBackend(t *testing.T) {
	cfg := headlessConfig(t, 1)
	cfg.Renderer.Backend = "metal"
	_, err := createDevice(cfg, nil, 8, 8)
	if !errors.Is(err, core.ErrUnknownBackend) {
		t.Fatalf("got %v", err)
	}

	cfg.Renderer.Backend = "vulkan"
	if _, err := createDevice(cfg, nil, 8, 8); err == nil {
		t.Fatal("vulkan without a window must fail")
	}
}

func TestResizeEvents(t *testing.T) {
	g := &Game{Config: headlessConfig(t, 1)}
	var resized [2]uint32
	g.FnOnResize = func(w, h uint32) error {
		resized = [2]uint32{w, h}
		return nil
	}
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 0, WindowHeight: 0}})
	core.EventProcessPending()
	if !e.isSuspended {
		t.Fatal("a zero sized window suspends the engine")
	}

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 120, WindowHeight: 80}})
	core.EventProcessPending()
	if e.isSuspended {
		t.Fatal("restoring the window resumes the engine")
	}
	if w, h := e.systems.Device.BackBufferSize(); w != 120 || h != 80 {
		t.Fatalf("back buffer is %dx%d", w, h)
	}
	if resized != [2]uint32{120, 80} {
		t.Fatalf("game saw %v", resized)
	}
	if got := e.systems.Camera.Aspect(); got != 1.5 {
		t.Fatalf("aspect %f", got)
	}

	core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_ESCAPE}})
	core.EventProcessPending()
	core.EventProcessPending()
	if e.isRunning {
		t.Fatal("escape quits")
	}
}

func TestResizeFailureStopsRun(t *testing.T) {
	g := &Game{Config: headlessConfig(t, 1000)}
	e, err := New(g)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}

	// a lost device cannot resize its back buffer
	if err := e.systems.Device.Destroy(); err != nil {
		t.Fatal(err)
	}
	core.EventFire(core.EventContext{Type: core.EVENT_CODE_RESIZED, Data: &core.SystemEvent{WindowWidth: 120, WindowHeight: 80}})

	err = e.Run()
	if !errors.Is(err, core.ErrDeviceLost) {
		t.Fatalf("Run() = %v, want a lost device", err)
	}
	if e.frames != 0 {
		t.Fatalf("%d frames rendered after the failed resize", e.frames)
	}
}

func TestSamePath(t *testing.T) {
	if !samePath("assets/layouts/castle.yaml", "./assets/layouts/../layouts/castle.yaml") {
		t.Fatal("equivalent paths differ")
	}
	if samePath("a.yaml", "b.yaml") {
		t.Fatal("different paths match")
	}
}
