package assets

import (
	"path/filepath"
	"strings"
)

type AssetType int

const (
	ASSET_TYPE_NONE AssetType = iota
	ASSET_TYPE_TEXTURE
	ASSET_TYPE_SHADER
	ASSET_TYPE_LAYOUT
	ASSET_TYPE_FONT
	ASSET_TYPE_CONFIG
)

func (t AssetType) String() string {
	switch t {
	case ASSET_TYPE_TEXTURE:
		return "texture"
	case ASSET_TYPE_SHADER:
		return "shader"
	case ASSET_TYPE_LAYOUT:
		return "layout"
	case ASSET_TYPE_FONT:
		return "font"
	case ASSET_TYPE_CONFIG:
		return "config"
	}
	return "none"
}

// DetermineAssetType classifies a file by its extension.
func DetermineAssetType(path string) AssetType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
		return ASSET_TYPE_TEXTURE
	case ".spv":
		return ASSET_TYPE_SHADER
	case ".yaml", ".yml":
		return ASSET_TYPE_LAYOUT
	case ".fnt", ".ttf", ".otf", ".ttc":
		return ASSET_TYPE_FONT
	case ".toml":
		return ASSET_TYPE_CONFIG
	default:
		return ASSET_TYPE_NONE
	}
}
