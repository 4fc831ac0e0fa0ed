package loaders

import (
	"image"
	"image/color"

	"github.com/spaghettifunk/castle/engine/math"
)

// Procedural generates a stand-in for the named castle texture. Unknown
// names get a magenta checkerboard.
func Procedural(name string, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	rng := math.NewRandom(uint64(len(name))*7919 + 17)

	switch name {
	case "grass":
		fill(img, func(x, y int) color.RGBA {
			n := rng.FloatRange(-28, 28)
			return shade(color.RGBA{R: 72, G: 132, B: 48, A: 255}, n)
		})
	case "water":
		fill(img, func(x, y int) color.RGBA {
			// soft diagonal ripples
			t := float32((x+y)%32) / 32.0
			ripple := 24 * math.Sin(t*math.K_PI_2)
			return shade(color.RGBA{R: 40, G: 96, B: 168, A: 160}, ripple+rng.FloatRange(-6, 6))
		})
	case "wirefence":
		cell := max(size/8, 2)
		fill(img, func(x, y int) color.RGBA {
			plank := color.RGBA{R: 150, G: 108, B: 64, A: 255}
			if x%cell == 0 || y%cell == 0 || (x+y)%cell == 0 {
				return shade(plank, -60)
			}
			return shade(plank, rng.FloatRange(-14, 14))
		})
	case "stone":
		brickH := max(size/8, 2)
		brickW := brickH * 2
		fill(img, func(x, y int) color.RGBA {
			row := y / brickH
			offset := 0
			if row%2 == 1 {
				offset = brickW / 2
			}
			if y%brickH == 0 || (x+offset)%brickW == 0 {
				return color.RGBA{R: 90, G: 90, B: 86, A: 255}
			}
			return shade(color.RGBA{R: 158, G: 154, B: 146, A: 255}, rng.FloatRange(-18, 18))
		})
	default:
		cell := max(size/8, 1)
		fill(img, func(x, y int) color.RGBA {
			if (x/cell+y/cell)%2 == 0 {
				return color.RGBA{R: 255, B: 255, A: 255}
			}
			return color.RGBA{A: 255}
		})
	}
	return img
}

func fill(img *image.RGBA, f func(x, y int) color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.SetRGBA(x, y, f(x, y))
		}
	}
}

func shade(c color.RGBA, delta float32) color.RGBA {
	adjust := func(v uint8) uint8 {
		return uint8(math.Clamp(float32(v)+delta, 0, 255))
	}
	return color.RGBA{R: adjust(c.R), G: adjust(c.G), B: adjust(c.B), A: c.A}
}
