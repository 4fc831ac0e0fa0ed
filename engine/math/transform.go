package math

func TransformCreate() Transform {
	return Transform{
		Rotation: NewQuatIdentity(),
		Scale:    NewVec3One(),
	}
}

func TransformFromPositionRotationScale(position Vec3, rotation Quaternion, scale Vec3) Transform {
	return Transform{
		Position: position,
		Rotation: rotation,
		Scale:    scale,
	}
}

// Matrix composes scale, then rotation, then translation.
func (t Transform) Matrix() Mat4 {
	s := NewMat4Scale(t.Scale)
	r := t.Rotation.ToMat4()
	return s.Mul(r).Mul(NewMat4Translation(t.Position))
}
