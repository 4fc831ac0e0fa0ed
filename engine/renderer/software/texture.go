package software

import (
	"image"

	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type Texture struct {
	desc metadata.TextureDesc
	img  *image.RGBA
}

func (t *Texture) Name() string   { return t.desc.Name }
func (t *Texture) Width() uint32  { return uint32(t.img.Bounds().Dx()) }
func (t *Texture) Height() uint32 { return uint32(t.img.Bounds().Dy()) }
func (t *Texture) Destroy()       {}

func wrapCoord(c float32, size int, mode metadata.TextureRepeat) int {
	switch mode {
	case metadata.TextureRepeatClampToEdge:
		i := int(c * float32(size))
		return math.Clamp(i, 0, size-1)
	case metadata.TextureRepeatMirroredRepeat:
		i := int(floor(c * float32(size)))
		period := 2 * size
		i = ((i % period) + period) % period
		if i >= size {
			i = period - 1 - i
		}
		return i
	}
	i := int(floor(c * float32(size)))
	return ((i % size) + size) % size
}

func floor(x float32) float32 {
	i := float32(int(x))
	if x < 0 && i != x {
		return i - 1
	}
	return i
}

func (t *Texture) texel(x, y int) math.Vec4 {
	o := t.img.PixOffset(x, y)
	p := t.img.Pix[o : o+4 : o+4]
	return math.NewVec4(float32(p[0])/255, float32(p[1])/255, float32(p[2])/255, float32(p[3])/255)
}

// Sample returns the filtered colour at uv, components in [0,1].
func (t *Texture) Sample(u, v float32) math.Vec4 {
	w, h := t.img.Bounds().Dx(), t.img.Bounds().Dy()
	if t.desc.Filter == metadata.TextureFilterModeNearest {
		return t.texel(wrapCoord(u, w, t.desc.Repeat), wrapCoord(v, h, t.desc.Repeat))
	}

	fx := u*float32(w) - 0.5
	fy := v*float32(h) - 0.5
	x0f, y0f := floor(fx), floor(fy)
	ax, ay := fx-x0f, fy-y0f

	x0 := wrapCoord(x0f/float32(w), w, t.desc.Repeat)
	x1 := wrapCoord((x0f+1)/float32(w), w, t.desc.Repeat)
	y0 := wrapCoord(y0f/float32(h), h, t.desc.Repeat)
	y1 := wrapCoord((y0f+1)/float32(h), h, t.desc.Repeat)

	top := t.texel(x0, y0).MulScalar(1 - ax).Add(t.texel(x1, y0).MulScalar(ax))
	bottom := t.texel(x0, y1).MulScalar(1 - ax).Add(t.texel(x1, y1).MulScalar(ax))
	return top.MulScalar(1 - ay).Add(bottom.MulScalar(ay))
}
