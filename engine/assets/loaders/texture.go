package loaders

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"github.com/spaghettifunk/castle/engine/core"
)

// TextureLoader decodes images from Dir and resamples them to power-of-two
// squares no larger than MaxSize.
type TextureLoader struct {
	Dir     string
	MaxSize int
}

func (tl *TextureLoader) Load(file string) (*image.RGBA, error) {
	path := file
	if !filepath.IsAbs(file) {
		path = filepath.Join(tl.Dir, file)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	out := ToPowerOfTwo(img, tl.MaxSize)
	core.LogDebug("texture %s (%s %dx%d) loaded as %dx%d", path, format,
		img.Bounds().Dx(), img.Bounds().Dy(), out.Bounds().Dx(), out.Bounds().Dy())
	return out, nil
}

// LoadOrGenerate loads file, or generates the procedural texture called
// name when the file is missing or unreadable. The flag reports whether the
// file was used.
func (tl *TextureLoader) LoadOrGenerate(name, file string) (*image.RGBA, bool) {
	if file != "" {
		img, err := tl.Load(file)
		if err == nil {
			return img, true
		}
		core.LogWarn("texture %s: %s, using a generated one", name, err.Error())
	}
	size := tl.MaxSize
	if size <= 0 || size > 256 {
		size = 256
	}
	return Procedural(name, size), false
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// ToPowerOfTwo returns src as a square RGBA image whose side is the next
// power of two of its larger dimension, capped at maxSize when positive.
func ToPowerOfTwo(src image.Image, maxSize int) *image.RGBA {
	b := src.Bounds()
	size := nextPowerOfTwo(max(b.Dx(), b.Dy()))
	if maxSize > 0 && size > maxSize {
		size = nextPowerOfTwo(maxSize)
		if size > maxSize {
			size >>= 1
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	if b.Dx() == size && b.Dy() == size {
		draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
