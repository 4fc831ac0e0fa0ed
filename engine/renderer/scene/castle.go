package scene

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/waves"
)

const (
	ShapeGeometry = "shapeGeo"
	LandGeometry  = "landGeo"
	BoxGeometry   = "boxGeo"
	WaterGeometry = "waterGeo"

	GridSubmesh = "grid"
	BoxSubmesh  = "box"

	// the render item and material animated by the water simulation
	WaterItem     = "waves"
	WaterMaterial = "water"
)

type NamedMesh struct {
	Name string
	Mesh math.MeshData
}

// CastleShapes are the building blocks of the castle, in the order they
// are packed into the shape geometry.
func CastleShapes() []NamedMesh {
	return []NamedMesh{
		{"wholeWall", math.CreateBox(1, 1, 1, 0)},
		{"ground", math.CreateGrid(24, 24, 25, 25)},
		{"column", math.CreateCylinder(0.5, 0.5, 1, 20, 20)},
		{"columnTop", math.CreateSphere(0.5, 4, 2)},
		{"base1", math.CreateCylinder(0.5, 0.5, 1, 10, 2)},
		{"base2", math.CreateCylinder(0.5, 0.5, 1, 8, 2)},
		{"base3", math.CreateCylinder(0.5, 0, 1, 10, 1)},
		{"top", math.CreateSphere(0.5, 11, 10)},
	}
}

func toVertex(v math.MeshVertex) metadata.Vertex {
	return metadata.Vertex{Pos: v.Position, Normal: v.Normal, TexC: v.TexC}
}

// MergeMeshes packs several meshes into one vertex and one index array.
// Indices stay local to their mesh; each submesh records its base vertex.
func MergeMeshes(meshes []NamedMesh) ([]metadata.Vertex, []uint32, []metadata.Submesh) {
	var vertices []metadata.Vertex
	var indices []uint32
	submeshes := make([]metadata.Submesh, 0, len(meshes))

	for _, m := range meshes {
		submeshes = append(submeshes, metadata.Submesh{
			Name:       m.Name,
			IndexCount: uint32(len(m.Mesh.Indices)),
			StartIndex: uint32(len(indices)),
			BaseVertex: int32(len(vertices)),
			Extents:    m.Mesh.Extents(),
		})
		for _, v := range m.Mesh.Vertices {
			vertices = append(vertices, toVertex(v))
		}
		indices = append(indices, m.Mesh.Indices...)
	}
	return vertices, indices, submeshes
}

// UploadGeometry creates static vertex and index buffers for a packed mesh.
func UploadGeometry(device metadata.Device, name string, vertices []metadata.Vertex, indices []uint32, submeshes []metadata.Submesh) (*metadata.Geometry, error) {
	vb, err := device.CreateStaticBuffer(metadata.BUFFER_USAGE_VERTEX, metadata.SliceBytes(vertices))
	if err != nil {
		return nil, fmt.Errorf("geometry '%s' vertex buffer: %w", name, err)
	}
	ib, err := device.CreateStaticBuffer(metadata.BUFFER_USAGE_INDEX, metadata.SliceBytes(indices))
	if err != nil {
		vb.Destroy()
		return nil, fmt.Errorf("geometry '%s' index buffer: %w", name, err)
	}
	stride := uint32(metadata.SizeOf[metadata.Vertex]())
	return &metadata.Geometry{
		Name:             name,
		VertexBuffer:     vb,
		IndexBuffer:      ib,
		VertexByteStride: stride,
		VertexBufferSize: uint64(len(vertices)) * uint64(stride),
		IndexBufferSize:  uint64(len(indices)) * 4,
		Submeshes:        submeshes,
	}, nil
}

// NewWaterGeometry builds the wave mesh. Its indices never change; the
// vertex buffer is supplied per frame by the update pass.
func NewWaterGeometry(device metadata.Device, grid *waves.Grid) (*metadata.Geometry, error) {
	indices := grid.Indices()
	ib, err := device.CreateStaticBuffer(metadata.BUFFER_USAGE_INDEX, metadata.SliceBytes(indices))
	if err != nil {
		return nil, fmt.Errorf("water index buffer: %w", err)
	}
	stride := uint32(metadata.SizeOf[metadata.Vertex]())
	halfW, halfD := 0.5*grid.Width(), 0.5*grid.Depth()
	return &metadata.Geometry{
		Name:             WaterGeometry,
		IndexBuffer:      ib,
		VertexByteStride: stride,
		VertexBufferSize: uint64(grid.VertexCount()) * uint64(stride),
		IndexBufferSize:  uint64(len(indices)) * 4,
		Dynamic:          true,
		Submeshes: []metadata.Submesh{{
			Name:       GridSubmesh,
			IndexCount: uint32(len(indices)),
			Extents: math.Extents3D{
				Min: math.NewVec3(-halfW, -1, -halfD),
				Max: math.NewVec3(halfW, 1, halfD),
			},
		}},
	}, nil
}

// BuildGeometries creates every mesh the castle layouts can refer to.
func BuildGeometries(device metadata.Device, grid *waves.Grid) ([]*metadata.Geometry, error) {
	var out []*metadata.Geometry
	fail := func(err error) ([]*metadata.Geometry, error) {
		for _, g := range out {
			g.Destroy()
		}
		core.LogError("%s", err)
		return nil, err
	}

	packed := []struct {
		name   string
		meshes []NamedMesh
	}{
		{ShapeGeometry, CastleShapes()},
		{LandGeometry, []NamedMesh{{GridSubmesh, math.CreateLand(160, 160, 50, 50)}}},
		{BoxGeometry, []NamedMesh{{BoxSubmesh, math.CreateBox(8, 8, 8, 3)}}},
	}
	for _, p := range packed {
		vertices, indices, submeshes := MergeMeshes(p.meshes)
		geo, err := UploadGeometry(device, p.name, vertices, indices, submeshes)
		if err != nil {
			return fail(err)
		}
		core.LogDebug("geometry %s: %d vertices, %d indices, %d submeshes", p.name, len(vertices), len(indices), len(submeshes))
		out = append(out, geo)
	}

	water, err := NewWaterGeometry(device, grid)
	if err != nil {
		return fail(err)
	}
	out = append(out, water)
	return out, nil
}

// Build assembles a registry from geometries, textures and a layout.
// Textures are keyed by the layout's texture names.
func Build(geometries []*metadata.Geometry, textures map[string]metadata.Texture, layout *Layout) (*Registry, error) {
	r := NewRegistry()
	for _, g := range geometries {
		if _, err := r.AddMesh(g); err != nil {
			return nil, err
		}
	}
	for _, t := range layout.Textures {
		tex, ok := textures[t.Name]
		if !ok {
			return nil, fmt.Errorf("layout texture '%s' was not loaded: %w", t.Name, ErrUnknownTexture)
		}
		if _, err := r.AddTexture(t.Name, tex); err != nil {
			return nil, err
		}
	}
	if err := r.Apply(layout); err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	core.LogInfo("scene built: %d meshes, %d textures, %d materials, %d items",
		len(r.meshes), len(r.textures), len(r.materials), len(r.items))
	return r, nil
}
