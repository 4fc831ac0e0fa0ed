package components

import (
	"testing"

	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/math"
)

func newTestCamera(t *testing.T) *OrbitCamera {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return NewOrbitCamera(cfg.Camera, 800.0/600.0)
}

func TestOrbitCameraInitialPose(t *testing.T) {
	c := newTestCamera(t)

	want := math.NewVec3(0, 50*math.Sin(0.1), -50*math.Cos(0.1))
	if !c.Position().Compare(want, 1e-3) {
		t.Errorf("eye = %v, want %v", c.Position(), want)
	}
	// The origin sits straight ahead at the orbit distance.
	if got := math.NewVec3Zero().Transform(c.View()); !got.Compare(math.NewVec3(0, 0, 50), 1e-3) {
		t.Errorf("origin in view space = %v", got)
	}
	if got := c.Position().Transform(c.View()); !got.Compare(math.NewVec3Zero(), 1e-3) {
		t.Errorf("eye in view space = %v", got)
	}
}

func TestOrbitCameraIdempotentUpdate(t *testing.T) {
	c := newTestCamera(t)
	view, eye := c.View(), c.Position()
	for i := 0; i < 5; i++ {
		c.Rotate(0, 0)
		c.Zoom(0)
		c.Update()
	}
	if c.View() != view || c.Position() != eye {
		t.Error("zero deltas moved the camera")
	}
}

func TestOrbitCameraClamps(t *testing.T) {
	tests := []struct {
		name       string
		dPhi, zoom float32
		wantPhi    float32
		wantRadius float32
	}{
		{"phi up", -10, 0, 0.1, 50},
		{"phi down", 10, 0, math.K_PI - 0.1, 50},
		{"zoom in", 0, -1000, 1.47079633, 5},
		{"zoom out", 0, 1000, 1.47079633, 150},
		{"inside", 0.05, 10, 1.52079633, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCamera(t)
			c.Rotate(0.3, tt.dPhi)
			c.Zoom(tt.zoom)
			if math.Abs(c.Phi-tt.wantPhi) > 1e-5 {
				t.Errorf("phi = %f, want %f", c.Phi, tt.wantPhi)
			}
			if math.Abs(c.Radius-tt.wantRadius) > 1e-4 {
				t.Errorf("radius = %f, want %f", c.Radius, tt.wantRadius)
			}
		})
	}
}

func TestOrbitCameraAspect(t *testing.T) {
	c := newTestCamera(t)
	h := c.Projection().Data[5]
	c.SetAspect(2)
	if got := c.Projection().Data[0]; math.Abs(got-h/2) > 1e-5 {
		t.Errorf("x scale = %f, want %f", got, h/2)
	}
	c.SetAspect(0)
	if c.Aspect() != 1 {
		t.Errorf("aspect = %f after a zero size", c.Aspect())
	}
}
