package metadata

import (
	"github.com/spaghettifunk/castle/engine/math"
)

/**
 * @brief A draw range inside a geometry's shared vertex and index buffers.
 */
type Submesh struct {
	Name       string
	IndexCount uint32
	StartIndex uint32
	BaseVertex int32
	/** @brief Local-space bounds of the submesh vertices. */
	Extents math.Extents3D
}

/**
 * @brief Vertex and index buffers shared by a group of submeshes. A
 * dynamic geometry has no static vertex buffer; its VertexBuffer is
 * re-pointed at the current frame slot's upload buffer every frame.
 */
type Geometry struct {
	/** @brief The geometry name. */
	Name string

	VertexBuffer     Buffer
	IndexBuffer      Buffer
	VertexByteStride uint32
	VertexBufferSize uint64
	IndexBufferSize  uint64

	Dynamic bool

	Submeshes []Submesh
}

func (g *Geometry) VertexBufferView() VertexBufferView {
	return VertexBufferView{
		Buffer: g.VertexBuffer,
		Size:   g.VertexBufferSize,
		Stride: g.VertexByteStride,
	}
}

func (g *Geometry) IndexBufferView() IndexBufferView {
	return IndexBufferView{
		Buffer: g.IndexBuffer,
		Size:   g.IndexBufferSize,
	}
}

// Submesh looks a draw range up by name. Only used while building.
func (g *Geometry) Submesh(name string) (int, bool) {
	for i := range g.Submeshes {
		if g.Submeshes[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

func (g *Geometry) Destroy() {
	if g.VertexBuffer != nil && !g.Dynamic {
		g.VertexBuffer.Destroy()
	}
	if g.IndexBuffer != nil {
		g.IndexBuffer.Destroy()
	}
	g.VertexBuffer = nil
	g.IndexBuffer = nil
}
