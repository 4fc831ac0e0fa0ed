package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion Vec4

/**
 * @brief A 4x4 row-major matrix. Vectors are treated as rows and multiplied
 * on the left (v * M), so translation lives in elements 12, 13 and 14 and
 * transforms compose left to right: scale * rotation * translation.
 */
type Mat4 struct {
	Data [16]float32
}

/**
 * @brief Position, rotation and scale of an object. Matrix() composes them
 * into a world matrix.
 */
type Transform struct {
	Position Vec3
	Rotation Quaternion
	Scale    Vec3
}

// Extents3D is an axis-aligned bounding box.
type Extents3D struct {
	Min Vec3
	Max Vec3
}
