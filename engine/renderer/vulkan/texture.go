package vulkan

import (
	"fmt"
	"image"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// Texture is a sampled RGBA8 image together with its sampler and the
// descriptor set that binds both.
type Texture struct {
	context *VulkanContext
	desc    metadata.TextureDesc
	image   *VulkanImage
	sampler vk.Sampler
	set     vk.DescriptorSet
}

func (t *Texture) Name() string   { return t.desc.Name }
func (t *Texture) Width() uint32  { return t.image.Width }
func (t *Texture) Height() uint32 { return t.image.Height }

func (t *Texture) Destroy() {
	if t.context == nil {
		return
	}
	if t.sampler != vk.NullSampler {
		vk.DestroySampler(t.context.Device.LogicalDevice, t.sampler, t.context.Allocator)
		t.sampler = vk.NullSampler
	}
	if t.image != nil {
		t.image.ImageDestroy(t.context)
	}
}

func filterFor(f metadata.TextureFilter) vk.Filter {
	if f == metadata.TextureFilterModeNearest {
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func addressModeFor(r metadata.TextureRepeat) vk.SamplerAddressMode {
	switch r {
	case metadata.TextureRepeatMirroredRepeat:
		return vk.SamplerAddressModeMirroredRepeat
	case metadata.TextureRepeatClampToEdge:
		return vk.SamplerAddressModeClampToEdge
	}
	return vk.SamplerAddressModeRepeat
}

func newTexture(context *VulkanContext, desc metadata.TextureDesc, pixels *image.RGBA) (*Texture, error) {
	if pixels == nil || pixels.Bounds().Empty() {
		return nil, fmt.Errorf("texture %q has no pixels", desc.Name)
	}
	width := uint32(pixels.Bounds().Dx())
	height := uint32(pixels.Bounds().Dy())

	// Pack the rows in case pixels is a sub-image.
	packed := make([]byte, 0, width*height*4)
	for y := pixels.Rect.Min.Y; y < pixels.Rect.Max.Y; y++ {
		row := pixels.PixOffset(pixels.Rect.Min.X, y)
		packed = append(packed, pixels.Pix[row:row+int(width)*4]...)
	}

	staging, err := newUploadBuffer(context, uint64(len(packed)))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.Write(0, packed); err != nil {
		return nil, err
	}

	img, err := ImageCreate(context, width, height, vk.FormatR8g8b8a8Unorm,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", desc.Name, err)
	}
	t := &Texture{context: context, desc: desc, image: img}

	err = withSingleUse(context, func(cmd *VulkanCommandBuffer) error {
		if err := img.TransitionLayout(cmd, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		img.CopyFromBuffer(cmd, staging.handle)
		return img.TransitionLayout(cmd, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		t.Destroy()
		return nil, fmt.Errorf("texture %q upload: %w", desc.Name, err)
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filterFor(desc.Filter),
		MinFilter:               filterFor(desc.Filter),
		AddressModeU:            addressModeFor(desc.Repeat),
		AddressModeV:            addressModeFor(desc.Repeat),
		AddressModeW:            addressModeFor(desc.Repeat),
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1.0,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if context.Device.Features.SamplerAnisotropy == vk.True {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = 16.0
	}

	var sampler vk.Sampler
	if err := vk.Error(vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler)); err != nil {
		t.Destroy()
		return nil, fmt.Errorf("texture %q sampler: %w", desc.Name, err)
	}
	t.sampler = sampler

	set, err := context.Descriptors.SamplerSet(img.View, sampler)
	if err != nil {
		t.Destroy()
		return nil, err
	}
	t.set = set
	return t, nil
}
