package testbed

import (
	"io"
	"testing"

	"github.com/spaghettifunk/castle/engine"
	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/components"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func newTestGame(t *testing.T) *CastleGame {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewCastleGame(cfg)
	if err != nil {
		t.Fatal(err)
	}
	g.Systems = &engine.Systems{Camera: components.NewOrbitCamera(cfg.Camera, 4.0/3.0)}
	return g
}

func TestDragRotatesAndZooms(t *testing.T) {
	g := newTestGame(t)
	cam := g.Systems.Camera
	theta, phi, radius := cam.Theta, cam.Phi, cam.Radius

	g.handleDrag(4, -2, true, false)
	step := g.Config.Derived.RotatePerPixel
	if cam.Theta != theta+4*step || cam.Phi != phi-2*step {
		t.Fatalf("rotate: theta %f phi %f", cam.Theta, cam.Phi)
	}
	if cam.Radius != radius {
		t.Fatal("rotating must not zoom")
	}

	g.handleDrag(10, 0, false, true)
	if want := radius + g.Config.Camera.ZoomPerPixel*10; cam.Radius != want {
		t.Fatalf("zoom: radius %f, want %f", cam.Radius, want)
	}

	r := cam.Radius
	g.handleDrag(5, 5, false, true)
	if cam.Radius != r {
		t.Fatal("equal dx and dy cancel out")
	}

	theta = cam.Theta
	g.handleDrag(30, 30, false, false)
	if cam.Theta != theta || cam.Radius != r {
		t.Fatal("moving without a button does nothing")
	}
}

func TestWireframeFollowsKey(t *testing.T) {
	g := newTestGame(t)
	if err := core.InputInitialize(); err != nil {
		t.Fatal(err)
	}
	defer core.InputShutdown()

	core.InputProcessKey(core.KEY_1, true)
	if err := g.Update(0.016); err != nil {
		t.Fatal(err)
	}
	if !g.Systems.Wireframe {
		t.Fatal("holding 1 selects wireframe")
	}
	core.InputProcessKey(core.KEY_1, false)
	g.Update(0.016)
	if g.Systems.Wireframe {
		t.Fatal("releasing 1 restores solid fill")
	}
}

func TestMouseMoveEvent(t *testing.T) {
	g := newTestGame(t)
	if err := core.InputInitialize(); err != nil {
		t.Fatal(err)
	}
	defer core.InputShutdown()

	theta := g.Systems.Camera.Theta
	core.InputProcessButton(core.BUTTON_LEFT, true)
	g.onMouseMove(core.EventContext{
		Type: core.EVENT_CODE_MOUSE_MOVED,
		Data: &core.MouseEvent{PosX: 12, PosY: 0, PrevPosX: 10, PrevPosY: 0},
	})
	if g.Systems.Camera.Theta == theta {
		t.Fatal("left drag did not orbit")
	}
}
