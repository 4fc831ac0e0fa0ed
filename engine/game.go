package engine

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/renderer"
	"github.com/spaghettifunk/castle/engine/renderer/components"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/renderer/scene"
	"github.com/spaghettifunk/castle/engine/renderer/software"
	"github.com/spaghettifunk/castle/engine/waves"
)

type Game struct {
	Config *config.Config
	// Systems is filled in by the engine before FnInitialize runs.
	Systems      *Systems
	State        interface{}
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error

// Systems is what the engine hands to the game: the scene it renders and
// the per-frame toggles the game may flip.
type Systems struct {
	Device   metadata.Device
	Renderer *renderer.Renderer
	Registry *scene.Registry
	Camera   *components.OrbitCamera
	Grid     *waves.Grid
	Weather  *waves.Weather

	// Wireframe selects the wireframe pipeline for the next frame.
	Wireframe bool
}

// Screenshot writes the last presented frame as BMP. Only the software
// device keeps a CPU copy of its frames.
func (s *Systems) Screenshot(path string) error {
	d, ok := s.Device.(*software.Device)
	if !ok {
		return fmt.Errorf("screenshots are not supported on the %s device", s.Device.Name())
	}
	if err := s.Renderer.Flush(); err != nil {
		return err
	}
	return d.SaveScreenshot(path)
}
