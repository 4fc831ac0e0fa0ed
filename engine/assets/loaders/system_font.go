package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// LoadFontFace opens a TrueType or OpenType font, or the first face of a
// collection, at size points and 72 DPI.
func LoadFontFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f *sfnt.Font
	if strings.EqualFold(filepath.Ext(path), ".ttc") {
		collection, err := opentype.ParseCollection(data)
		if err != nil {
			return nil, fmt.Errorf("parsing font collection %s: %w", path, err)
		}
		if f, err = collection.Font(0); err != nil {
			return nil, fmt.Errorf("font collection %s: %w", path, err)
		}
	} else if f, err = opentype.Parse(data); err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", path, err)
	}

	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
