package metadata

import (
	"github.com/spaghettifunk/castle/engine/math"
)

/** @brief The number of light slots in the pass constants. */
const MaxLights int = 16

/**
 * @brief A light as the shaders see it. Directional lights use Direction,
 * point lights use Position and the falloff range, spot lights use all of
 * them plus SpotPower.
 */
type Light struct {
	Strength     math.Vec3
	FalloffStart float32
	Direction    math.Vec3
	FalloffEnd   float32
	Position     math.Vec3
	SpotPower    float32
}

// NewLight returns a light with the shader defaults.
func NewLight() Light {
	return Light{
		Strength:     math.NewVec3(0.5, 0.5, 0.5),
		FalloffStart: 1.0,
		Direction:    math.NewVec3(0, -1, 0),
		FalloffEnd:   10.0,
		SpotPower:    64.0,
	}
}

/**
 * @brief Per render item constants. Matrices are stored transposed so the
 * shaders can read them column-major.
 */
type ObjectConstants struct {
	World        math.Mat4
	TexTransform math.Mat4
}

/** @brief Per pass constants, written once per frame at index 0. */
type PassConstants struct {
	View        math.Mat4
	InvView     math.Mat4
	Proj        math.Mat4
	InvProj     math.Mat4
	ViewProj    math.Mat4
	InvViewProj math.Mat4

	EyePosW             math.Vec3
	_                   float32
	RenderTargetSize    math.Vec2
	InvRenderTargetSize math.Vec2
	NearZ               float32
	FarZ                float32
	TotalTime           float32
	DeltaTime           float32

	AmbientLight math.Vec4

	Lights [MaxLights]Light
}

// NewPassConstants returns pass constants with identity matrices and
// default lights.
func NewPassConstants() PassConstants {
	pc := PassConstants{
		View:         math.NewMat4Identity(),
		InvView:      math.NewMat4Identity(),
		Proj:         math.NewMat4Identity(),
		InvProj:      math.NewMat4Identity(),
		ViewProj:     math.NewMat4Identity(),
		InvViewProj:  math.NewMat4Identity(),
		AmbientLight: math.NewVec4(0, 0, 0, 1),
	}
	for i := range pc.Lights {
		pc.Lights[i] = NewLight()
	}
	return pc
}

/**
 * @brief The vertex format shared by every mesh: position, normal and one
 * set of texture coordinates. 32 bytes.
 */
type Vertex struct {
	Pos    math.Vec3
	Normal math.Vec3
	TexC   math.Vec2
}

/** @brief A range, typically of memory */
type MemoryRange struct {
	/** @brief The Offset in bytes. */
	Offset uint64
	/** @brief The size in bytes. */
	Size uint64
}

// End is one past the last byte of the range.
func (r MemoryRange) End() uint64 {
	return r.Offset + r.Size
}

// Overlaps reports whether the two ranges share at least one byte.
func (r MemoryRange) Overlaps(other MemoryRange) bool {
	if r.Size == 0 || other.Size == 0 {
		return false
	}
	return r.Offset < other.End() && other.Offset < r.End()
}
