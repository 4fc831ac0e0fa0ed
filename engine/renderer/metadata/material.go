package metadata

import "github.com/spaghettifunk/castle/engine/math"

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

/**
 * @brief Per material constants. MatTransform is stored transposed.
 */
type MaterialConstants struct {
	DiffuseAlbedo math.Vec4
	FresnelR0     math.Vec3
	Roughness     float32
	MatTransform  math.Mat4
}

func NewMaterialConstants() MaterialConstants {
	return MaterialConstants{
		DiffuseAlbedo: math.NewVec4(1, 1, 1, 1),
		FresnelR0:     math.NewVec3(0.01, 0.01, 0.01),
		Roughness:     0.25,
		MatTransform:  math.NewMat4Identity(),
	}
}
