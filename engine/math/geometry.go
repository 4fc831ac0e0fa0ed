package math

// MeshVertex is the full vertex produced by the procedural generators.
type MeshVertex struct {
	Position Vec3
	Normal   Vec3
	TangentU Vec3
	TexC     Vec2
}

// MeshData is an indexed triangle list.
type MeshData struct {
	Vertices []MeshVertex
	Indices  []uint32
}

func newMeshVertex(px, py, pz, nx, ny, nz, tx, ty, tz, u, v float32) MeshVertex {
	return MeshVertex{
		Position: Vec3{px, py, pz},
		Normal:   Vec3{nx, ny, nz},
		TangentU: Vec3{tx, ty, tz},
		TexC:     Vec2{u, v},
	}
}

// CreateBox builds an axis aligned box centred at the origin with
// 24 vertices, 4 per face. Each subdivision splits every triangle in four;
// the count is capped at 6.
func CreateBox(width, height, depth float32, numSubdivisions int) MeshData {
	w2 := 0.5 * width
	h2 := 0.5 * height
	d2 := 0.5 * depth

	v := []MeshVertex{
		// front
		newMeshVertex(-w2, -h2, -d2, 0, 0, -1, 1, 0, 0, 0, 1),
		newMeshVertex(-w2, +h2, -d2, 0, 0, -1, 1, 0, 0, 0, 0),
		newMeshVertex(+w2, +h2, -d2, 0, 0, -1, 1, 0, 0, 1, 0),
		newMeshVertex(+w2, -h2, -d2, 0, 0, -1, 1, 0, 0, 1, 1),
		// back
		newMeshVertex(-w2, -h2, +d2, 0, 0, 1, -1, 0, 0, 1, 1),
		newMeshVertex(+w2, -h2, +d2, 0, 0, 1, -1, 0, 0, 0, 1),
		newMeshVertex(+w2, +h2, +d2, 0, 0, 1, -1, 0, 0, 0, 0),
		newMeshVertex(-w2, +h2, +d2, 0, 0, 1, -1, 0, 0, 1, 0),
		// top
		newMeshVertex(-w2, +h2, -d2, 0, 1, 0, 1, 0, 0, 0, 1),
		newMeshVertex(-w2, +h2, +d2, 0, 1, 0, 1, 0, 0, 0, 0),
		newMeshVertex(+w2, +h2, +d2, 0, 1, 0, 1, 0, 0, 1, 0),
		newMeshVertex(+w2, +h2, -d2, 0, 1, 0, 1, 0, 0, 1, 1),
		// bottom
		newMeshVertex(-w2, -h2, -d2, 0, -1, 0, -1, 0, 0, 1, 1),
		newMeshVertex(+w2, -h2, -d2, 0, -1, 0, -1, 0, 0, 0, 1),
		newMeshVertex(+w2, -h2, +d2, 0, -1, 0, -1, 0, 0, 0, 0),
		newMeshVertex(-w2, -h2, +d2, 0, -1, 0, -1, 0, 0, 1, 0),
		// left
		newMeshVertex(-w2, -h2, +d2, -1, 0, 0, 0, 0, -1, 0, 1),
		newMeshVertex(-w2, +h2, +d2, -1, 0, 0, 0, 0, -1, 0, 0),
		newMeshVertex(-w2, +h2, -d2, -1, 0, 0, 0, 0, -1, 1, 0),
		newMeshVertex(-w2, -h2, -d2, -1, 0, 0, 0, 0, -1, 1, 1),
		// right
		newMeshVertex(+w2, -h2, -d2, 1, 0, 0, 0, 0, 1, 0, 1),
		newMeshVertex(+w2, +h2, -d2, 1, 0, 0, 0, 0, 1, 0, 0),
		newMeshVertex(+w2, +h2, +d2, 1, 0, 0, 0, 0, 1, 1, 0),
		newMeshVertex(+w2, -h2, +d2, 1, 0, 0, 0, 0, 1, 1, 1),
	}

	idx := make([]uint32, 0, 36)
	for face := uint32(0); face < 6; face++ {
		b := face * 4
		idx = append(idx, b, b+1, b+2, b, b+2, b+3)
	}

	mesh := MeshData{Vertices: v, Indices: idx}
	numSubdivisions = Clamp(numSubdivisions, 0, 6)
	for i := 0; i < numSubdivisions; i++ {
		mesh = subdivide(mesh)
	}
	return mesh
}

// CreateGrid builds an m x n vertex grid in the xz-plane centred at the
// origin. Row 0 lies at +depth/2.
func CreateGrid(width, depth float32, m, n int) MeshData {
	mesh := MeshData{}
	if m < 2 || n < 2 {
		return mesh
	}
	halfWidth := 0.5 * width
	halfDepth := 0.5 * depth

	dx := width / float32(n-1)
	dz := depth / float32(m-1)
	du := 1.0 / float32(n-1)
	dv := 1.0 / float32(m-1)

	mesh.Vertices = make([]MeshVertex, m*n)
	for i := 0; i < m; i++ {
		z := halfDepth - float32(i)*dz
		for j := 0; j < n; j++ {
			x := -halfWidth + float32(j)*dx
			mesh.Vertices[i*n+j] = newMeshVertex(x, 0, z, 0, 1, 0, 1, 0, 0, float32(j)*du, float32(i)*dv)
		}
	}

	mesh.Indices = make([]uint32, 0, (m-1)*(n-1)*6)
	for i := 0; i < m-1; i++ {
		for j := 0; j < n-1; j++ {
			a := uint32(i*n + j)
			b := uint32(i*n + j + 1)
			c := uint32((i+1)*n + j)
			d := uint32((i+1)*n + j + 1)
			mesh.Indices = append(mesh.Indices, a, b, c, c, b, d)
		}
	}
	return mesh
}

// CreateCylinder builds a capped frustum along +Y centred at the origin.
// A zero top radius yields a cone.
func CreateCylinder(bottomRadius, topRadius, height float32, sliceCount, stackCount int) MeshData {
	mesh := MeshData{}
	if sliceCount < 3 || stackCount < 1 {
		return mesh
	}

	stackHeight := height / float32(stackCount)
	radiusStep := (topRadius - bottomRadius) / float32(stackCount)
	ringCount := stackCount + 1
	dTheta := K_PI_2 / float32(sliceCount)

	for i := 0; i < ringCount; i++ {
		y := -0.5*height + float32(i)*stackHeight
		r := bottomRadius + float32(i)*radiusStep
		for j := 0; j <= sliceCount; j++ {
			c := kcos(float32(j) * dTheta)
			s := ksin(float32(j) * dTheta)

			tangent := Vec3{-s, 0, c}
			dr := bottomRadius - topRadius
			bitangent := Vec3{dr * c, -height, dr * s}

			mesh.Vertices = append(mesh.Vertices, MeshVertex{
				Position: Vec3{r * c, y, r * s},
				Normal:   tangent.Cross(bitangent).Normalize(),
				TangentU: tangent,
				TexC:     Vec2{float32(j) / float32(sliceCount), 1 - float32(i)/float32(stackCount)},
			})
		}
	}

	ringVertexCount := uint32(sliceCount + 1)
	for i := uint32(0); i < uint32(stackCount); i++ {
		for j := uint32(0); j < uint32(sliceCount); j++ {
			mesh.Indices = append(mesh.Indices,
				i*ringVertexCount+j,
				(i+1)*ringVertexCount+j,
				(i+1)*ringVertexCount+j+1,

				i*ringVertexCount+j,
				(i+1)*ringVertexCount+j+1,
				i*ringVertexCount+j+1,
			)
		}
	}

	buildCylinderCap(&mesh, topRadius, height, sliceCount, true)
	buildCylinderCap(&mesh, bottomRadius, height, sliceCount, false)
	return mesh
}

func buildCylinderCap(mesh *MeshData, radius, height float32, sliceCount int, top bool) {
	baseIndex := uint32(len(mesh.Vertices))
	y := 0.5 * height
	ny := float32(1)
	if !top {
		y = -y
		ny = -1
	}
	dTheta := K_PI_2 / float32(sliceCount)

	// Ring vertices are duplicated so the cap gets its own normals and UVs.
	for i := 0; i <= sliceCount; i++ {
		x := radius * kcos(float32(i)*dTheta)
		z := radius * ksin(float32(i)*dTheta)
		u := x/height + 0.5
		v := z/height + 0.5
		mesh.Vertices = append(mesh.Vertices, newMeshVertex(x, y, z, 0, ny, 0, 1, 0, 0, u, v))
	}
	mesh.Vertices = append(mesh.Vertices, newMeshVertex(0, y, 0, 0, ny, 0, 1, 0, 0, 0.5, 0.5))
	centerIndex := uint32(len(mesh.Vertices) - 1)

	for i := uint32(0); i < uint32(sliceCount); i++ {
		if top {
			mesh.Indices = append(mesh.Indices, centerIndex, baseIndex+i+1, baseIndex+i)
		} else {
			mesh.Indices = append(mesh.Indices, centerIndex, baseIndex+i, baseIndex+i+1)
		}
	}
}

// CreateSphere builds a UV sphere centred at the origin. Texture seams
// duplicate one column of vertices.
func CreateSphere(radius float32, sliceCount, stackCount int) MeshData {
	mesh := MeshData{}
	if sliceCount < 3 || stackCount < 2 {
		return mesh
	}

	mesh.Vertices = append(mesh.Vertices, newMeshVertex(0, radius, 0, 0, 1, 0, 1, 0, 0, 0, 0))

	phiStep := K_PI / float32(stackCount)
	thetaStep := K_PI_2 / float32(sliceCount)

	for i := 1; i <= stackCount-1; i++ {
		phi := float32(i) * phiStep
		for j := 0; j <= sliceCount; j++ {
			theta := float32(j) * thetaStep
			p := Vec3{
				radius * ksin(phi) * kcos(theta),
				radius * kcos(phi),
				radius * ksin(phi) * ksin(theta),
			}
			tangent := Vec3{
				-radius * ksin(phi) * ksin(theta),
				0,
				radius * ksin(phi) * kcos(theta),
			}
			mesh.Vertices = append(mesh.Vertices, MeshVertex{
				Position: p,
				Normal:   p.Normalize(),
				TangentU: tangent.Normalize(),
				TexC:     Vec2{theta / K_PI_2, phi / K_PI},
			})
		}
	}

	mesh.Vertices = append(mesh.Vertices, newMeshVertex(0, -radius, 0, 0, -1, 0, 1, 0, 0, 0, 1))

	// North pole fan.
	for i := uint32(1); i <= uint32(sliceCount); i++ {
		mesh.Indices = append(mesh.Indices, 0, i+1, i)
	}

	baseIndex := uint32(1)
	ringVertexCount := uint32(sliceCount + 1)
	for i := uint32(0); i < uint32(stackCount-2); i++ {
		for j := uint32(0); j < uint32(sliceCount); j++ {
			mesh.Indices = append(mesh.Indices,
				baseIndex+i*ringVertexCount+j,
				baseIndex+i*ringVertexCount+j+1,
				baseIndex+(i+1)*ringVertexCount+j,

				baseIndex+(i+1)*ringVertexCount+j,
				baseIndex+i*ringVertexCount+j+1,
				baseIndex+(i+1)*ringVertexCount+j+1,
			)
		}
	}

	// South pole fan.
	southPole := uint32(len(mesh.Vertices) - 1)
	baseIndex = southPole - ringVertexCount
	for i := uint32(0); i < uint32(sliceCount); i++ {
		mesh.Indices = append(mesh.Indices, southPole, baseIndex+i, baseIndex+i+1)
	}
	return mesh
}

func midpoint(a, b MeshVertex) MeshVertex {
	return MeshVertex{
		Position: a.Position.Add(b.Position).MulScalar(0.5),
		Normal:   a.Normal.Add(b.Normal).Normalize(),
		TangentU: a.TangentU.Add(b.TangentU).Normalize(),
		TexC:     a.TexC.Add(b.TexC).MulScalar(0.5),
	}
}

// subdivide splits each triangle into four:
//
//	      v1
//	      *
//	     / \
//	 m0 *---* m1
//	   / \ / \
//	  *---*---*
//	 v0   m2   v2
func subdivide(in MeshData) MeshData {
	out := MeshData{
		Vertices: make([]MeshVertex, 0, len(in.Indices)*2),
		Indices:  make([]uint32, 0, len(in.Indices)*4),
	}
	for i := 0; i+2 < len(in.Indices); i += 3 {
		v0 := in.Vertices[in.Indices[i]]
		v1 := in.Vertices[in.Indices[i+1]]
		v2 := in.Vertices[in.Indices[i+2]]

		b := uint32(len(out.Vertices))
		out.Vertices = append(out.Vertices, v0, v1, v2, midpoint(v0, v1), midpoint(v1, v2), midpoint(v0, v2))
		out.Indices = append(out.Indices,
			b+0, b+3, b+5,
			b+3, b+4, b+5,
			b+5, b+4, b+2,
			b+3, b+1, b+4,
		)
	}
	return out
}

// HillsHeight is the terrain height function used for the land mesh.
func HillsHeight(x, z float32) float32 {
	return 0.3 * (z*ksin(0.1*x) + x*kcos(0.1*z))
}

// HillsNormal is the analytic normal of HillsHeight.
func HillsNormal(x, z float32) Vec3 {
	n := Vec3{
		-0.03*z*kcos(0.1*x) - 0.3*kcos(0.1*z),
		1.0,
		-0.3*ksin(0.1*x) + 0.03*x*ksin(0.1*z),
	}
	return n.Normalize()
}

// CreateLand builds the hills terrain: a grid displaced by HillsHeight.
func CreateLand(width, depth float32, m, n int) MeshData {
	mesh := CreateGrid(width, depth, m, n)
	for i := range mesh.Vertices {
		p := &mesh.Vertices[i].Position
		p.Y = HillsHeight(p.X, p.Z)
		mesh.Vertices[i].Normal = HillsNormal(p.X, p.Z)
	}
	return mesh
}

// Extents returns the bounding box of the mesh positions.
func (md MeshData) Extents() Extents3D {
	if len(md.Vertices) == 0 {
		return Extents3D{}
	}
	ext := Extents3D{Min: md.Vertices[0].Position, Max: md.Vertices[0].Position}
	for _, v := range md.Vertices[1:] {
		p := v.Position
		ext.Min = NewVec3(min(ext.Min.X, p.X), min(ext.Min.Y, p.Y), min(ext.Min.Z, p.Z))
		ext.Max = NewVec3(max(ext.Max.X, p.X), max(ext.Max.Y, p.Y), max(ext.Max.Z, p.Z))
	}
	return ext
}
