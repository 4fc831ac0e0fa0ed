package loaders

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/tiff"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestToPowerOfTwo(t *testing.T) {
	tests := []struct {
		w, h, max int
		want      int
	}{
		{300, 200, 0, 512},
		{300, 200, 256, 256},
		{300, 200, 300, 256},
		{64, 64, 0, 64},
		{1, 3, 0, 4},
	}
	for _, tt := range tests {
		out := ToPowerOfTwo(solid(tt.w, tt.h, color.RGBA{R: 10, A: 255}), tt.max)
		if out.Bounds().Dx() != tt.want || out.Bounds().Dy() != tt.want {
			t.Errorf("%dx%d (max %d) became %v, want %d square", tt.w, tt.h, tt.max, out.Bounds(), tt.want)
		}
	}

	src := solid(4, 4, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	if out := ToPowerOfTwo(src, 0); !bytes.Equal(out.Pix, src.Pix) {
		t.Error("a power-of-two square was not copied as is")
	}
}

func TestTextureLoaderFormats(t *testing.T) {
	dir := t.TempDir()
	img := solid(48, 32, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	encoders := map[string]func(io.Writer, image.Image) error{
		"a.png": png.Encode,
		"b.bmp": bmp.Encode,
		"c.tif": func(w io.Writer, m image.Image) error { return tiff.Encode(w, m, nil) },
	}
	for name, enc := range encoders {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if err := enc(f, img); err != nil {
			t.Fatal(err)
		}
		f.Close()
	}

	tl := &TextureLoader{Dir: dir, MaxSize: 32}
	for name := range encoders {
		out, err := tl.Load(name)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if out.Bounds().Dx() != 32 || out.Bounds().Dy() != 32 {
			t.Errorf("%s loaded as %v", name, out.Bounds())
		}
		if c := out.RGBAAt(16, 16); c.R < 190 || c.G < 90 || c.B < 40 {
			t.Errorf("%s centre = %v", name, c)
		}
	}
}

func TestLoadOrGenerate(t *testing.T) {
	tl := &TextureLoader{Dir: t.TempDir(), MaxSize: 64}
	img, fromFile := tl.LoadOrGenerate("stone", "stone2.png")
	if fromFile {
		t.Error("missing file reported as loaded")
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("generated %v", img.Bounds())
	}

	tl.MaxSize = 0
	if img, _ := tl.LoadOrGenerate("grass", ""); img.Bounds().Dx() != 256 {
		t.Errorf("default generated size %v", img.Bounds())
	}
}

func TestProcedural(t *testing.T) {
	a := Procedural("grass", 32)
	b := Procedural("grass", 32)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("procedural textures are not deterministic")
	}
	if bytes.Equal(a.Pix, Procedural("water", 32).Pix) {
		t.Error("grass and water look the same")
	}
	if c := Procedural("stone", 32).RGBAAt(0, 0); c != (color.RGBA{R: 90, G: 90, B: 86, A: 255}) {
		t.Errorf("stone mortar = %v", c)
	}
	if c := Procedural("unknown", 16).RGBAAt(0, 0); c != (color.RGBA{R: 255, B: 255, A: 255}) {
		t.Errorf("fallback = %v", c)
	}
}

func spirvWords(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func TestBytesToBytecode(t *testing.T) {
	valid := spirvWords(SpirvMagic, 0x00010000, 0, 8, 0)
	code, err := BytesToBytecode(valid)
	if err != nil || len(code) != 5 || code[3] != 8 {
		t.Errorf("valid module = %v, %v", code, err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"short", spirvWords(SpirvMagic)},
		{"unaligned", append(spirvWords(SpirvMagic, 1, 2, 3, 4), 0)},
		{"magic", spirvWords(0xdeadbeef, 1, 2, 3, 4)},
	}
	for _, tt := range tests {
		if _, err := BytesToBytecode(tt.data); !errors.Is(err, ErrInvalidSpirv) {
			t.Errorf("%s: %v", tt.name, err)
		}
	}
}

func TestShaderLoader(t *testing.T) {
	dir := t.TempDir()
	cfg := metadata.DefaultShaderConfig()
	for _, stage := range cfg.Stages {
		if err := os.WriteFile(stage.SpirvPath(dir), spirvWords(SpirvMagic, 1, 2, 3, uint32(stage.Stage)), 0644); err != nil {
			t.Fatal(err)
		}
	}
	sl := &ShaderLoader{Dir: dir}
	code, err := sl.Load(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != len(cfg.Stages) || code[metadata.ShaderStageFragment][4] != uint32(metadata.ShaderStageFragment) {
		t.Errorf("loaded %v", code)
	}

	if _, err := (&ShaderLoader{Dir: t.TempDir()}).Load(cfg); err == nil {
		t.Error("missing stages loaded")
	}
}

func testBitmapFont() *BitmapFont {
	return &BitmapFont{
		Face:       "test",
		Size:       4,
		lineHeight: 6,
		glyphs: map[rune]fontGlyph{
			'A': {width: 4, height: 4, xAdvance: 5},
		},
		kerning: map[kerningPair]int{{'A', 'A'}: -1},
		pages:   map[int]image.Image{0: solid(8, 8, color.RGBA{R: 255, G: 255, B: 255, A: 255})},
	}
}

func TestBitmapFontDrawText(t *testing.T) {
	bf := testBitmapFont()
	dst := image.NewRGBA(image.Rect(0, 0, 20, 10))
	if h := bf.DrawText(dst, 1, 1, "AA"); h != 6 {
		t.Errorf("line height %d", h)
	}

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{1, 1, white},
		{4, 4, white},
		{5, 1, white},
		{8, 4, white},
		{9, 1, color.RGBA{}},
		{0, 0, color.RGBA{}},
		{1, 5, color.RGBA{}},
	}
	for _, tt := range tests {
		if got := dst.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}

	if w := bf.MeasureText("AA"); w != 9 {
		t.Errorf("width of AA = %d", w)
	}
	if w := bf.MeasureText("A?b"); w != 5 {
		t.Errorf("unknown runes measured as %d", w)
	}
}

func TestLoadFontFace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goregular.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0644); err != nil {
		t.Fatal(err)
	}
	face, err := LoadFontFace(path, 13)
	if err != nil {
		t.Fatal(err)
	}
	defer face.Close()
	if h := face.Metrics().Height.Ceil(); h < 10 || h > 20 {
		t.Errorf("13pt face is %d px high", h)
	}

	bad := filepath.Join(t.TempDir(), "bad.ttf")
	os.WriteFile(bad, []byte("not a font"), 0644)
	if _, err := LoadFontFace(bad, 13); err == nil {
		t.Error("garbage parsed as a font")
	}
}
