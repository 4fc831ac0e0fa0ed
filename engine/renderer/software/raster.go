package software

import (
	"image"
	"image/color"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type constantRef struct {
	buffer *Buffer
	offset uint64
}

type vertexStream struct {
	buffer *Buffer
	view   metadata.VertexBufferView
}

type indexStream struct {
	buffer *Buffer
	view   metadata.IndexBufferView
}

// rasterState is the executor side of a command list: bound resources and
// the render target. It lives for one submission.
type rasterState struct {
	target *image.RGBA
	depth  []float32

	pso      *Pipeline
	viewport metadata.Viewport
	pass     constantRef
	object   constantRef
	material constantRef
	texture  *Texture
	vertices vertexStream
	indices  indexStream
	topology metadata.PrimitiveTopology

	draws     uint64
	triangles uint64
}

// screenVertex holds window coordinates and attributes pre-divided by w
// for perspective-correct interpolation.
type screenVertex struct {
	x, y, z  float32
	invW     float32
	uv       math.Vec2
	diffuse  math.Vec3
	specular math.Vec3
}

func toRGBA(c math.Vec4) color.RGBA {
	return color.RGBA{
		R: uint8(saturate(c.X)*255 + 0.5),
		G: uint8(saturate(c.Y)*255 + 0.5),
		B: uint8(saturate(c.Z)*255 + 0.5),
		A: uint8(saturate(c.W)*255 + 0.5),
	}
}

func (rs *rasterState) clear(c math.Vec4) {
	col := toRGBA(c)
	pix := rs.target.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i+0] = col.R
		pix[i+1] = col.G
		pix[i+2] = col.B
		pix[i+3] = col.A
	}
	for i := range rs.depth {
		rs.depth[i] = 1
	}
}

func (rs *rasterState) drawIndexed(indexCount, startIndex uint32, baseVertex int32) {
	pass, okPass := readAs[metadata.PassConstants](rs.pass.buffer, rs.pass.offset)
	obj, okObj := readAs[metadata.ObjectConstants](rs.object.buffer, rs.object.offset)
	mat, okMat := readAs[metadata.MaterialConstants](rs.material.buffer, rs.material.offset)
	if !okPass || !okObj || !okMat {
		core.LogWarn("draw skipped: constant buffers not bound")
		return
	}
	if rs.pso == nil || rs.vertices.buffer == nil || rs.indices.buffer == nil {
		core.LogWarn("draw skipped: pipeline or geometry not bound")
		return
	}
	rs.draws++

	sh := newShader(pass, obj, mat, rs.pso.desc.Lights)
	stride := uint64(rs.vertices.view.Stride)
	if stride == 0 {
		stride = metadata.SizeOf[metadata.Vertex]()
	}
	vertexCount := int(rs.vertices.view.Size / stride)
	shaded := make([]shadedVertex, vertexCount)
	done := make([]bool, vertexCount)

	fetch := func(n uint32) (shadedVertex, bool) {
		idx, ok := readAs[uint32](rs.indices.buffer, rs.indices.view.Offset+uint64(startIndex+n)*4)
		if !ok {
			return shadedVertex{}, false
		}
		v := int(int64(idx) + int64(baseVertex))
		if v < 0 || v >= vertexCount {
			return shadedVertex{}, false
		}
		if !done[v] {
			in, ok := readAs[metadata.Vertex](rs.vertices.buffer, rs.vertices.view.Offset+uint64(v)*stride)
			if !ok {
				return shadedVertex{}, false
			}
			shaded[v] = sh.shade(in)
			done[v] = true
		}
		return shaded[v], true
	}

	var tex func(u, v float32) math.Vec4
	if rs.texture != nil {
		tex = rs.texture.Sample
	}
	albedo := mat.DiffuseAlbedo
	ambient := sh.ambient

	if rs.topology == metadata.PRIMITIVE_TOPOLOGY_LINE_LIST {
		for n := uint32(0); n+2 <= indexCount; n += 2 {
			a, okA := fetch(n)
			b, okB := fetch(n + 1)
			if !okA || !okB || a.clip.Z < 0 || b.clip.Z < 0 {
				continue
			}
			sa, sb := rs.project(a), rs.project(b)
			rs.line(sa, sb, flatColour(a, albedo, ambient))
		}
		return
	}

	for n := uint32(0); n+3 <= indexCount; n += 3 {
		a, okA := fetch(n)
		b, okB := fetch(n + 1)
		c, okC := fetch(n + 2)
		if !okA || !okB || !okC {
			continue
		}
		poly := clipNear([]shadedVertex{a, b, c})
		for i := 1; i+1 < len(poly); i++ {
			sa, sb, sc := rs.project(poly[0]), rs.project(poly[i]), rs.project(poly[i+1])
			if rs.pso.desc.FillMode == metadata.FillModeWireframe {
				if rs.culled(sa, sb, sc) {
					continue
				}
				col := flatColour(poly[0], albedo, ambient)
				rs.line(sa, sb, col)
				rs.line(sb, sc, col)
				rs.line(sc, sa, col)
			} else {
				rs.fill(sa, sb, sc, albedo, ambient, tex)
			}
			rs.triangles++
		}
	}
}

// clipNear clips a polygon against the z >= 0 plane of clip space.
func clipNear(in []shadedVertex) []shadedVertex {
	out := make([]shadedVertex, 0, len(in)+1)
	for i := range in {
		cur := in[i]
		next := in[(i+1)%len(in)]
		curIn := cur.clip.Z >= 0
		nextIn := next.clip.Z >= 0
		if curIn {
			out = append(out, cur)
		}
		if curIn != nextIn {
			t := cur.clip.Z / (cur.clip.Z - next.clip.Z)
			out = append(out, cur.lerp(next, t))
		}
	}
	return out
}

func (rs *rasterState) project(v shadedVertex) screenVertex {
	w := v.clip.W
	if w == 0 {
		w = 1e-6
	}
	invW := 1 / w
	vp := rs.viewport
	return screenVertex{
		x:        vp.X + (v.clip.X*invW+1)*0.5*vp.Width,
		y:        vp.Y + (1-v.clip.Y*invW)*0.5*vp.Height,
		z:        vp.MinDepth + v.clip.Z*invW*(vp.MaxDepth-vp.MinDepth),
		invW:     invW,
		uv:       v.uv.MulScalar(invW),
		diffuse:  v.diffuse.MulScalar(invW),
		specular: v.specular.MulScalar(invW),
	}
}

func edgeFunction(a, b screenVertex, x, y float32) float32 {
	return (b.x-a.x)*(y-a.y) - (x-a.x)*(b.y-a.y)
}

// culled applies the pipeline's cull mode. Front faces wind clockwise on
// screen, which gives a positive signed area with y pointing down.
func (rs *rasterState) culled(a, b, c screenVertex) bool {
	area := edgeFunction(a, b, c.x, c.y)
	if area == 0 {
		return true
	}
	switch rs.pso.desc.CullMode {
	case metadata.FaceCullModeBack:
		return area < 0
	case metadata.FaceCullModeFront:
		return area > 0
	}
	return false
}

func (rs *rasterState) bounds() image.Rectangle {
	vp := rs.viewport
	r := image.Rect(int(vp.X), int(vp.Y), int(vp.X+vp.Width), int(vp.Y+vp.Height))
	return r.Intersect(rs.target.Bounds())
}

func (rs *rasterState) fill(a, b, c screenVertex, albedo math.Vec4, ambient math.Vec3, tex func(u, v float32) math.Vec4) {
	if rs.culled(a, b, c) {
		return
	}
	area := edgeFunction(a, b, c.x, c.y)
	invArea := 1 / area

	clip := rs.bounds()
	minX := max(int(floor(min(a.x, b.x, c.x))), clip.Min.X)
	maxX := min(int(floor(max(a.x, b.x, c.x))), clip.Max.X-1)
	minY := max(int(floor(min(a.y, b.y, c.y))), clip.Min.Y)
	maxY := min(int(floor(max(a.y, b.y, c.y))), clip.Max.Y-1)

	stride := rs.target.Bounds().Dx()
	for y := minY; y <= maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float32(x) + 0.5
			w0 := edgeFunction(b, c, px, py) * invArea
			w1 := edgeFunction(c, a, px, py) * invArea
			w2 := edgeFunction(a, b, px, py) * invArea
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}

			z := w0*a.z + w1*b.z + w2*c.z
			di := y*stride + x
			if z < 0 || z > 1 || z >= rs.depth[di] {
				continue
			}
			rs.depth[di] = z

			oneOverW := w0*a.invW + w1*b.invW + w2*c.invW
			pw := 1 / oneOverW
			diffuse := a.diffuse.MulScalar(w0).Add(b.diffuse.MulScalar(w1)).Add(c.diffuse.MulScalar(w2)).MulScalar(pw)
			specular := a.specular.MulScalar(w0).Add(b.specular.MulScalar(w1)).Add(c.specular.MulScalar(w2)).MulScalar(pw)

			base := albedo
			if tex != nil {
				uv := a.uv.MulScalar(w0).Add(b.uv.MulScalar(w1)).Add(c.uv.MulScalar(w2)).MulScalar(pw)
				base = base.Mul(tex(uv.X, uv.Y))
			}
			lit := base.ToVec3().Mul(ambient.Add(diffuse)).Add(specular)
			rs.target.SetRGBA(x, y, toRGBA(lit.ToVec4(base.W)))
		}
	}
}

func flatColour(v shadedVertex, albedo math.Vec4, ambient math.Vec3) color.RGBA {
	lit := albedo.ToVec3().Mul(ambient.Add(v.diffuse)).Add(v.specular)
	return toRGBA(lit.ToVec4(1))
}

// line draws a Bresenham segment without depth testing.
func (rs *rasterState) line(a, b screenVertex, col color.RGBA) {
	x0, y0 := int(floor(a.x)), int(floor(a.y))
	x1, y1 := int(floor(b.x)), int(floor(b.y))
	clip := rs.bounds()

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errTerm := dx + dy
	// long off-screen segments are walked at most this far
	for steps := 0; steps < 1<<14; steps++ {
		if (image.Point{X: x0, Y: y0}).In(clip) {
			rs.target.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errTerm
		if e2 >= dy {
			errTerm += dy
			x0 += sx
		}
		if e2 <= dx {
			errTerm += dx
			y0 += sy
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
