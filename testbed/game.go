package testbed

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spaghettifunk/castle/engine"
	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/core"
)

// CastleGame drives the orbit camera from the mouse, toggles wireframe while
// '1' is held and takes screenshots on F12.
type CastleGame struct {
	*engine.Game
}

type gameState struct {
	width  uint32
	height uint32

	screenshotDir string
	screenshots   int
}

func NewCastleGame(cfg *config.Config) (*CastleGame, error) {
	if cfg == nil {
		return nil, fmt.Errorf("castle game needs a configuration")
	}
	cg := &CastleGame{
		Game: &engine.Game{
			Config: cfg,
			State: &gameState{
				width:         cfg.App.Width,
				height:        cfg.App.Height,
				screenshotDir: ".",
			},
		},
	}
	if cfg.Renderer.Screenshot != "" {
		cg.state().screenshotDir = filepath.Dir(cfg.Renderer.Screenshot)
	}

	cg.FnInitialize = cg.Initialize
	cg.FnUpdate = cg.Update
	cg.FnOnResize = cg.OnResize
	cg.FnShutdown = cg.Shutdown

	return cg, nil
}

func (g *CastleGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *CastleGame) Initialize() error {
	core.LogDebug("CastleGame Initialize fn....")

	if g.Systems == nil {
		return fmt.Errorf("the engine is not yet initialized with all the systems")
	}

	core.EventRegister(core.EVENT_CODE_MOUSE_MOVED, g.onMouseMove)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, g.onKey)
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, g.onAssetChanged)

	core.LogInfo("castle ready: %d render items, %dx%d wave grid",
		len(g.Systems.Registry.Items()), g.Systems.Grid.RowCount(), g.Systems.Grid.ColumnCount())
	return nil
}

func (g *CastleGame) Update(deltaTime float64) error {
	g.Systems.Wireframe = core.InputIsKeyDown(core.KEY_1)
	return nil
}

func (g *CastleGame) OnResize(width uint32, height uint32) error {
	state := g.state()
	state.width = width
	state.height = height
	return nil
}

func (g *CastleGame) Shutdown() error {
	core.LogDebug("CastleGame Shutdown fn....")
	return nil
}

// onMouseMove orbits with the left button and zooms with the right one.
func (g *CastleGame) onMouseMove(context core.EventContext) {
	me, ok := context.Data.(*core.MouseEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	dx := float32(me.PosX - me.PrevPosX)
	dy := float32(me.PosY - me.PrevPosY)
	g.handleDrag(dx, dy, core.InputIsButtonDown(core.BUTTON_LEFT), core.InputIsButtonDown(core.BUTTON_RIGHT))
}

func (g *CastleGame) handleDrag(dx, dy float32, left, right bool) {
	camera := g.Systems.Camera
	switch {
	case left:
		step := g.Config.Derived.RotatePerPixel
		camera.Rotate(step*dx, step*dy)
	case right:
		camera.Zoom(g.Config.Camera.ZoomPerPixel * (dx - dy))
	}
}

func (g *CastleGame) onKey(context core.EventContext) {
	ke, ok := context.Data.(*core.KeyEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return
	}
	if ke.KeyCode != core.KEY_F12 {
		return
	}
	state := g.state()
	state.screenshots++
	name := fmt.Sprintf("castle-%s-%s-%03d.bmp", core.ShortRunID(), time.Now().Format("150405"), state.screenshots)
	if err := g.Systems.Screenshot(filepath.Join(state.screenshotDir, name)); err != nil {
		core.LogWarn("screenshot: %s", err)
	}
}

func (g *CastleGame) onAssetChanged(context core.EventContext) {
	if ae, ok := context.Data.(*core.AssetEvent); ok {
		core.LogDebug("asset changed on disk: %s", ae.Path)
	}
}
