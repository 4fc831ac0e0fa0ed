package metadata

/** @brief Represents supported texture filtering modes. */
type TextureFilter int

const (
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest TextureFilter = 0x0
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = 0x1
)

type TextureRepeat int

const (
	TextureRepeatRepeat         TextureRepeat = 0x1
	TextureRepeatMirroredRepeat TextureRepeat = 0x2
	TextureRepeatClampToEdge    TextureRepeat = 0x3
)

/**
 * @brief Describes a sampled 2D texture. Pixels are always RGBA8.
 */
type TextureDesc struct {
	Name   string
	Filter TextureFilter
	Repeat TextureRepeat
}

// NewTextureDesc returns a linear, wrapping texture description.
func NewTextureDesc(name string) TextureDesc {
	return TextureDesc{
		Name:   name,
		Filter: TextureFilterModeLinear,
		Repeat: TextureRepeatRepeat,
	}
}
