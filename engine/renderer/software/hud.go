package software

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextDrawer renders one line of text with its top-left corner at (x, y).
// It returns the line height in pixels.
type TextDrawer interface {
	DrawText(dst draw.Image, x, y int, text string) int
}

// FaceFont draws white text with any font face.
type FaceFont struct {
	face   font.Face
	colour image.Image
}

func NewFaceFont(face font.Face) *FaceFont {
	return &FaceFont{
		face:   face,
		colour: image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
	}
}

// NewBasicFont uses the fixed 7x13 face that needs no font file.
func NewBasicFont() *FaceFont {
	return NewFaceFont(basicfont.Face7x13)
}

func (b *FaceFont) DrawText(dst draw.Image, x, y int, text string) int {
	metrics := b.face.Metrics()
	d := &font.Drawer{
		Dst:  dst,
		Src:  b.colour,
		Face: b.face,
		Dot:  fixed.P(x, y+metrics.Ascent.Ceil()),
	}
	d.DrawString(text)
	return metrics.Height.Ceil()
}

func drawOverlay(dst *image.RGBA, f TextDrawer, lines []string) {
	// darken the panel behind the text
	panel := image.Rect(4, 4, 4+260, 4+8+16*len(lines)).Intersect(dst.Bounds())
	draw.Draw(dst, panel, image.NewUniform(color.RGBA{A: 140}), image.Point{}, draw.Over)

	y := 8
	for _, line := range lines {
		y += f.DrawText(dst, 10, y, line) + 2
	}
}
