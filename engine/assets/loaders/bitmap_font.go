package loaders

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fzipp/bmfont"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/castle/engine/core"
)

type fontGlyph struct {
	x, y          int
	width, height int
	xOffset       int
	yOffset       int
	xAdvance      int
	page          int
}

type kerningPair struct {
	first, second rune
}

// BitmapFont draws text from an AngelCode .fnt atlas.
type BitmapFont struct {
	Face string
	Size int

	lineHeight int
	baseline   int

	glyphs  map[rune]fontGlyph
	kerning map[kerningPair]int
	pages   map[int]image.Image
}

// LoadBitmapFont reads a .fnt descriptor and the page images next to it.
func LoadBitmapFont(path string) (*BitmapFont, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading bitmap font %s: %w", path, err)
	}
	desc := font.Descriptor

	bf := &BitmapFont{
		Face:       desc.Info.Face,
		Size:       int(desc.Info.Size),
		lineHeight: int(desc.Common.LineHeight),
		baseline:   int(desc.Common.Base),
		glyphs:     make(map[rune]fontGlyph, len(desc.Chars)),
		kerning:    make(map[kerningPair]int, len(desc.Kerning)),
		pages:      make(map[int]image.Image, len(desc.Pages)),
	}
	for _, g := range desc.Chars {
		bf.glyphs[rune(g.ID)] = fontGlyph{
			x:        int(g.X),
			y:        int(g.Y),
			width:    int(g.Width),
			height:   int(g.Height),
			xOffset:  int(g.XOffset),
			yOffset:  int(g.YOffset),
			xAdvance: int(g.XAdvance),
			page:     int(g.Page),
		}
	}
	for p, k := range desc.Kerning {
		bf.kerning[kerningPair{rune(p.First), rune(p.Second)}] = int(k.Amount)
	}

	dir := filepath.Dir(path)
	for _, p := range desc.Pages {
		img, err := loadPage(filepath.Join(dir, p.File))
		if err != nil {
			return nil, fmt.Errorf("bitmap font %s page %d: %w", path, p.ID, err)
		}
		bf.pages[int(p.ID)] = img
	}

	core.LogInfo("bitmap font %s %dpx loaded: %d glyphs, %d pages", bf.Face, bf.Size, len(bf.glyphs), len(bf.pages))
	return bf, nil
}

func loadPage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func (bf *BitmapFont) glyph(r rune) (fontGlyph, bool) {
	if g, ok := bf.glyphs[r]; ok {
		return g, true
	}
	g, ok := bf.glyphs['?']
	return g, ok
}

// DrawText blits text with its top-left corner at (x, y) and returns the
// line height.
func (bf *BitmapFont) DrawText(dst draw.Image, x, y int, text string) int {
	prev := rune(-1)
	for _, r := range text {
		g, ok := bf.glyph(r)
		if !ok {
			continue
		}
		x += bf.kerning[kerningPair{prev, r}]
		if page := bf.pages[g.page]; page != nil && g.width > 0 && g.height > 0 {
			at := image.Pt(x+g.xOffset, y+g.yOffset)
			draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(image.Pt(g.width, g.height))},
				page, image.Pt(g.x, g.y), draw.Over)
		}
		x += g.xAdvance
		prev = r
	}
	return bf.lineHeight
}

// MeasureText returns the advance width of text in pixels.
func (bf *BitmapFont) MeasureText(text string) int {
	width := 0
	prev := rune(-1)
	for _, r := range text {
		g, ok := bf.glyph(r)
		if !ok {
			continue
		}
		width += bf.kerning[kerningPair{prev, r}] + g.xAdvance
		prev = r
	}
	return width
}

func (bf *BitmapFont) LineHeight() int { return bf.lineHeight }
