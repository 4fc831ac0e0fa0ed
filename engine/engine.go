package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spaghettifunk/castle/engine/assets"
	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/platform"
	"github.com/spaghettifunk/castle/engine/renderer"
	"github.com/spaghettifunk/castle/engine/renderer/components"
	"github.com/spaghettifunk/castle/engine/renderer/software"
	"github.com/spaghettifunk/castle/engine/telemetry"
	"github.com/spaghettifunk/castle/engine/waves"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// headlessDeltaTime keeps headless runs deterministic.
const headlessDeltaTime = 1.0 / 60.0

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *config.Config
	isRunning    bool
	isSuspended  bool
	platform     *platform.Platform
	systems      *Systems
	recorder     *telemetry.Recorder
	watcher      *assets.Watcher
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64
	totalTime    float64
	frames       int
	lastTitle    float64

	// set by event handlers when the device fails; Run returns it
	fatalErr error
}

func New(g *Game) (*Engine, error) {
	if g.Config == nil {
		return nil, fmt.Errorf("the game has no configuration")
	}
	if err := g.Config.Validate(); err != nil {
		return nil, err
	}
	core.SetLogLevel(g.Config.Log.Level)

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       g.Config,
		clock:        core.NewClock(),
		isRunning:    true,
		isSuspended:  false,
		width:        g.Config.App.Width,
		height:       g.Config.App.Height,
	}, nil
}

func (e *Engine) Stage() Stage { return e.currentStage }

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageBooting
	cfg := e.config
	core.LogInfo("booting %s, run %s", cfg.App.Name, core.ShortRunID())

	// initialize input
	if err := core.InputInitialize(); err != nil {
		return err
	}

	// initialize events
	if !core.EventSystemInitialize() {
		return fmt.Errorf("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	// register some events
	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e.onResized)

	if !cfg.Derived.Headless {
		p, err := platform.New()
		if err != nil {
			return err
		}
		if err := p.Startup(cfg.App.Name, cfg.App.StartPosX, cfg.App.StartPosY, cfg.App.Width, cfg.App.Height); err != nil {
			return err
		}
		e.platform = p
		// the framebuffer can be larger than the window on high DPI screens
		if w, h := p.FramebufferSize(); w > 0 && h > 0 {
			e.width, e.height = w, h
		}
	}
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing
	if err := e.initializeSystems(); err != nil {
		return err
	}

	if cfg.Telemetry.OutputDir != "" {
		rec, err := telemetry.NewRecorder(cfg.Telemetry.OutputDir, core.RunID().String(), cfg.Telemetry.SampleEvery)
		if err != nil {
			return err
		}
		e.recorder = rec
	}

	if cfg.Scene.HotReload && cfg.Scene.Layout != "" && !cfg.Derived.Headless {
		w, err := assets.NewWatcher()
		if err != nil {
			return err
		}
		if err := w.Watch(cfg.Scene.Layout); err != nil {
			w.Close()
			return err
		}
		e.watcher = w
		core.LogInfo("hot reload enabled for %s", cfg.Scene.Layout)
	}

	e.gameInstance.Systems = e.systems
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// initializeSystems creates the device, the wave grid, the camera and the
// castle, then the renderer on top of them.
func (e *Engine) initializeSystems() error {
	cfg := e.config

	device, err := createDevice(cfg, e.platform, e.width, e.height)
	if err != nil {
		return err
	}
	s := &Systems{Device: device}
	e.systems = s

	wc := cfg.Waves
	if s.Grid, err = waves.New(wc.Rows, wc.Cols, wc.SpatialStep, wc.TimeStep, wc.Speed, wc.Damping); err != nil {
		return err
	}
	s.Weather = waves.NewWeather(wc.DisturbInterval, wc.MinMagnitude, wc.MaxMagnitude, math.NewRandom(wc.Seed))
	s.Camera = components.NewOrbitCamera(cfg.Camera, float32(e.width)/float32(e.height))

	if s.Registry, err = buildScene(cfg, device, s.Grid); err != nil {
		return err
	}

	s.Renderer, err = renderer.New(device, renderer.Options{
		FramesInFlight: cfg.Renderer.FramesInFlight,
		Registry:       s.Registry,
		Camera:         s.Camera,
		Grid:           s.Grid,
		Weather:        s.Weather,
	})
	if err != nil {
		return err
	}
	// the static uploads must land before the first frame reads them
	return s.Renderer.Flush()
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if e.platform != nil && !e.platform.PumpMessages() {
			e.isRunning = false
		}
		core.EventProcessPending()
		e.reloadAssets()

		if e.fatalErr != nil {
			return e.fatalErr
		}
		if !e.isRunning {
			break
		}
		if e.isSuspended {
			e.platform.Sleep(10 * time.Millisecond)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		if e.config.Derived.Headless {
			delta = headlessDeltaTime
		}
		e.totalTime += delta
		frameStart := time.Now()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				core.LogError("game update failed, shutting down: %s", err)
				return err
			}
		}

		stats, err := e.systems.Renderer.Frame(renderer.FrameContext{
			TotalTime: float32(e.totalTime),
			DeltaTime: float32(delta),
			Wireframe: e.systems.Wireframe,
		})
		if err != nil && !errors.Is(err, core.ErrSwapchainBooting) {
			core.LogError("frame %d failed: %s", stats.Frame, err)
			return err
		}

		frameElapsed := time.Since(frameStart)
		core.MetricsUpdate(frameElapsed.Seconds())
		e.frames++
		e.presentStats(stats, frameElapsed, currentTime)

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		// As a safety, input is the last thing to be updated before
		// this frame ends.
		core.InputUpdate(delta)
		e.lastTime = currentTime

		if e.config.Derived.Headless && e.frames >= e.config.Renderer.HeadlessFrames {
			e.isRunning = false
		}
	}

	if e.config.Derived.Headless && e.config.Renderer.Screenshot != "" {
		if err := e.systems.Screenshot(e.config.Renderer.Screenshot); err != nil {
			core.LogError("screenshot failed: %s", err)
			return err
		}
	}
	core.LogInfo("ran %d frames in %.2fs", e.frames, e.clock.Elapsed())
	return nil
}

// presentStats feeds the HUD, the window title and the telemetry recorder.
func (e *Engine) presentStats(stats renderer.FrameStats, frameElapsed time.Duration, now float64) {
	fps, frameMS := core.MetricsFrame()
	completed := stats.Completed

	var hazards uint64
	if d, ok := e.systems.Device.(*software.Device); ok {
		hazards = d.Stats().Hazards
		d.SetOverlay(
			fmt.Sprintf("fps %.0f  frame %.2f ms", fps, frameMS),
			fmt.Sprintf("slot %d  fence %d  completed %d", stats.Slot, stats.Fence, completed),
			fmt.Sprintf("waves %d steps  stale writes %d", e.systems.Grid.Steps(), stats.StaleWrites),
		)
	}
	if e.platform != nil && now-e.lastTitle >= 1 {
		e.platform.SetTitle(fmt.Sprintf("%s    fps: %.0f   mspf: %.3f", e.config.App.Name, fps, frameMS))
		e.lastTitle = now
	}

	err := e.recorder.Record(telemetry.FrameRecord{
		Frame:        stats.Frame,
		Slot:         stats.Slot,
		Fence:        stats.Fence,
		Completed:    completed,
		Waited:       stats.Waited,
		WaitMicros:   stats.WaitTime.Microseconds(),
		UpdateMicros: stats.UpdateTime.Microseconds(),
		DrawMicros:   stats.DrawTime.Microseconds(),
		FrameMS:      float64(frameElapsed.Microseconds()) / 1000,
		ItemsDrawn:   stats.ItemsDrawn,
		StaleWrites:  stats.StaleWrites,
		WaveSteps:    stats.WaveSteps,
		Hazards:      hazards,
	})
	if err != nil {
		core.LogWarn("telemetry: %s", err)
	}
}

// reloadAssets re-applies a rewritten layout file. A broken or structurally
// different layout is logged and the current one stays.
func (e *Engine) reloadAssets() {
	if e.watcher == nil {
		return
	}
	for {
		select {
		case change, ok := <-e.watcher.Events():
			if !ok {
				return
			}
			if change.Type != assets.ASSET_TYPE_LAYOUT || !samePath(change.Path, e.config.Scene.Layout) {
				continue
			}
			layout, err := loadLayout(e.config)
			if err != nil {
				core.LogError("reloading %s: %s", change.Path, err)
				continue
			}
			changed, err := e.systems.Registry.Reload(layout)
			if err != nil {
				core.LogError("reloading %s: %s", change.Path, err)
				continue
			}
			core.LogInfo("layout %s reloaded, %d entries changed", change.Path, changed)
		case err, ok := <-e.watcher.Errors():
			if !ok {
				return
			}
			core.LogWarn("asset watcher: %s", err)
		default:
			return
		}
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("game shutdown: %s", err)
		}
	}

	var errs []error
	if e.watcher != nil {
		errs = append(errs, e.watcher.Close())
	}
	if e.recorder != nil {
		s := e.recorder.Summary()
		core.LogInfo("telemetry: %d frames, mean %.3f ms, p95 %.3f ms, %d waits, written to %s",
			s.Frames, s.MeanFrameMS, s.P95FrameMS, s.Waits, e.recorder.Dir())
		errs = append(errs, e.recorder.Close())
	}
	if s := e.systems; s != nil {
		if s.Renderer != nil {
			errs = append(errs, s.Renderer.Destroy())
		}
		if s.Registry != nil {
			s.Registry.Destroy()
		}
		if s.Device != nil {
			errs = append(errs, s.Device.Destroy())
		}
	}
	if e.platform != nil {
		errs = append(errs, e.platform.Shutdown())
	}
	errs = append(errs, core.EventSystemShutdown(), core.InputShutdown())
	return errors.Join(errs...)
}

// GetFramebufferSize returns the width and height (in this order)
// of the application framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(context core.EventContext) {
	switch context.Type {
	case core.EVENT_CODE_APPLICATION_QUIT:
		{
			core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
			e.isRunning = false
		}
	}
}

func (e *Engine) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	if ke.KeyCode == core.KEY_ESCAPE {
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	}
}

func (e *Engine) onResized(context core.EventContext) {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	width, height := se.WindowWidth, se.WindowHeight
	if width == e.width && height == e.height {
		return
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.systems != nil {
		if err := e.systems.Renderer.Resize(width, height); err != nil {
			core.LogError("resize failed, shutting down: %s", err)
			e.fatalErr = err
			e.isRunning = false
			return
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("%s", err)
		}
	}
}
