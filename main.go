/*
The castle demo: a lit stone castle standing in an animated pool of water,
rendered with several frames in flight.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/castle/engine"
	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/testbed"
)

func main() {
	configPath := flag.String("config", "", "TOML file overlaid on the built-in defaults")
	backend := flag.String("backend", "", "renderer backend: software or vulkan")
	framesInFlight := flag.Int("frames", 0, "number of frame resource slots (at least 2)")
	headless := flag.Int("headless", -1, "render this many frames without a window, then exit")
	screenshot := flag.String("screenshot", "", "BMP file written after a headless run")
	telemetryDir := flag.String("telemetry", "", "directory for frames.csv and summary.csv")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("loading configuration: %s", err)
	}
	if *backend != "" {
		cfg.Renderer.Backend = *backend
	}
	if *framesInFlight != 0 {
		cfg.Renderer.FramesInFlight = *framesInFlight
	}
	if *headless >= 0 {
		cfg.Renderer.HeadlessFrames = *headless
	}
	if *screenshot != "" {
		cfg.Renderer.Screenshot = *screenshot
	}
	if *telemetryDir != "" {
		cfg.Telemetry.OutputDir = *telemetryDir
	}
	if err := cfg.Recompute(); err != nil {
		core.LogFatal("invalid configuration: %s", err)
	}

	game, err := testbed.NewCastleGame(cfg)
	if err != nil {
		core.LogFatal("%s", err)
	}

	e, err := engine.New(game.Game)
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("initialization failed: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		// the frame loop picks the quit event up on its own goroutine
		<-sigCh
		core.EventFire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("engine stopped: %s", runErr)
	}
}
