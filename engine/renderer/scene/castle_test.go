package scene

import (
	"testing"

	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/renderer/software"
	"github.com/spaghettifunk/castle/engine/waves"
)

func TestMergeMeshesOffsets(t *testing.T) {
	box := math.CreateBox(1, 1, 1, 0)
	grid := math.CreateGrid(2, 2, 3, 3)
	vertices, indices, subs := MergeMeshes([]NamedMesh{{"box", box}, {"grid", grid}})

	if len(vertices) != len(box.Vertices)+len(grid.Vertices) {
		t.Fatalf("%d vertices", len(vertices))
	}
	if len(indices) != len(box.Indices)+len(grid.Indices) {
		t.Fatalf("%d indices", len(indices))
	}
	want := []metadata.Submesh{
		{Name: "box", IndexCount: uint32(len(box.Indices)), StartIndex: 0, BaseVertex: 0},
		{Name: "grid", IndexCount: uint32(len(grid.Indices)), StartIndex: uint32(len(box.Indices)), BaseVertex: int32(len(box.Vertices))},
	}
	for i, w := range want {
		got := subs[i]
		if got.Name != w.Name || got.IndexCount != w.IndexCount || got.StartIndex != w.StartIndex || got.BaseVertex != w.BaseVertex {
			t.Errorf("submesh %d = %+v, want %+v", i, got, w)
		}
	}
	// Indices stay local to each mesh.
	if indices[subs[1].StartIndex] != grid.Indices[0] {
		t.Errorf("grid indices were rebased")
	}
	if vertices[subs[1].BaseVertex].Pos != grid.Vertices[0].Position {
		t.Errorf("grid vertices out of place")
	}
}

func TestBuildGeometries(t *testing.T) {
	d, err := software.New(software.Options{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Destroy()
	grid, err := waves.New(16, 12, 1, 0.03, 4, 0.2)
	if err != nil {
		t.Fatal(err)
	}

	geos, err := BuildGeometries(d, grid)
	if err != nil {
		t.Fatalf("BuildGeometries: %v", err)
	}
	byName := make(map[string]*metadata.Geometry)
	for _, g := range geos {
		byName[g.Name] = g
	}

	shapes := byName[ShapeGeometry]
	if shapes == nil || len(shapes.Submeshes) != len(CastleShapes()) {
		t.Fatalf("shape geometry = %+v", shapes)
	}
	if shapes.Dynamic || shapes.VertexBuffer == nil {
		t.Error("shape geometry must own a static vertex buffer")
	}
	if shapes.VertexByteStride != 32 {
		t.Errorf("vertex stride %d", shapes.VertexByteStride)
	}
	if shapes.VertexBuffer.Size() != shapes.VertexBufferSize {
		t.Errorf("vertex buffer %d bytes, geometry says %d", shapes.VertexBuffer.Size(), shapes.VertexBufferSize)
	}
	for _, name := range []string{LandGeometry, BoxGeometry} {
		if byName[name] == nil {
			t.Errorf("missing geometry %s", name)
		}
	}

	water := byName[WaterGeometry]
	if water == nil || !water.Dynamic || water.VertexBuffer != nil {
		t.Fatalf("water geometry = %+v", water)
	}
	if water.VertexBufferSize != uint64(16*12*32) {
		t.Errorf("water vertex bytes = %d", water.VertexBufferSize)
	}
	if water.Submeshes[0].IndexCount != uint32(grid.TriangleCount()*3) {
		t.Errorf("water indices = %d", water.Submeshes[0].IndexCount)
	}

	for _, g := range geos {
		g.Destroy()
	}
}
