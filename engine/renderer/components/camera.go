package components

import (
	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/math"
)

/**
 * @brief A camera orbiting the world origin on a sphere. The pose is kept in
 * spherical coordinates: Theta around the Y axis, Phi down from +Y and the
 * distance Radius.
 */
type OrbitCamera struct {
	Theta  float32
	Phi    float32
	Radius float32

	minPhi    float32
	minRadius float32
	maxRadius float32

	fovY   float32
	nearZ  float32
	farZ   float32
	aspect float32

	position math.Vec3
	view     math.Mat4
	proj     math.Mat4
}

func NewOrbitCamera(cfg config.CameraConfig, aspect float32) *OrbitCamera {
	c := &OrbitCamera{
		Theta:     cfg.Theta,
		Phi:       cfg.Phi,
		Radius:    cfg.Radius,
		minPhi:    cfg.MinPhi,
		minRadius: cfg.MinRadius,
		maxRadius: cfg.MaxRadius,
		fovY:      cfg.FovY,
		nearZ:     cfg.NearZ,
		farZ:      cfg.FarZ,
	}
	c.clamp()
	c.SetAspect(aspect)
	c.Update()
	return c
}

func (c *OrbitCamera) clamp() {
	c.Phi = math.Clamp(c.Phi, c.minPhi, math.K_PI-c.minPhi)
	c.Radius = math.Clamp(c.Radius, c.minRadius, c.maxRadius)
}

// Rotate turns the camera by the given angles in radians.
func (c *OrbitCamera) Rotate(dTheta, dPhi float32) {
	c.Theta += dTheta
	c.Phi += dPhi
	c.clamp()
}

// Zoom moves the camera d world units away from the origin.
func (c *OrbitCamera) Zoom(d float32) {
	c.Radius += d
	c.clamp()
}

// SetAspect rebuilds the projection for a new back buffer aspect ratio.
func (c *OrbitCamera) SetAspect(aspect float32) {
	if aspect <= 0 {
		aspect = 1
	}
	c.aspect = aspect
	c.proj = math.NewMat4PerspectiveLH(c.fovY, aspect, c.nearZ, c.farZ)
}

// Update converts the pose to a position and rebuilds the view matrix.
func (c *OrbitCamera) Update() {
	sinPhi := math.Sin(c.Phi)
	c.position = math.NewVec3(
		c.Radius*sinPhi*math.Cos(c.Theta),
		c.Radius*math.Cos(c.Phi),
		c.Radius*sinPhi*math.Sin(c.Theta),
	)
	c.view = math.NewMat4LookAtLH(c.position, math.NewVec3Zero(), math.NewVec3Up())
}

func (c *OrbitCamera) Position() math.Vec3   { return c.position }
func (c *OrbitCamera) View() math.Mat4       { return c.view }
func (c *OrbitCamera) Projection() math.Mat4 { return c.proj }
func (c *OrbitCamera) Aspect() float32       { return c.aspect }
func (c *OrbitCamera) NearZ() float32        { return c.nearZ }
func (c *OrbitCamera) FarZ() float32         { return c.farZ }
