package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// VulkanImage is a device-local 2D image with one mip level and its view.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
}

func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags) (*VulkanImage, error) {
	device := context.Device.LogicalDevice
	out := &VulkanImage{Width: width, Height: height, Format: format}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if err := vk.Error(vk.CreateImage(device, &imageCreateInfo, context.Allocator, &handle)); err != nil {
		return nil, fmt.Errorf("vkCreateImage failed: %w", err)
	}
	out.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if memoryType < 0 {
		out.ImageDestroy(context)
		return nil, fmt.Errorf("required memory type not found, image not valid")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(device, &allocateInfo, context.Allocator, &memory)); err != nil {
		out.ImageDestroy(context)
		return nil, fmt.Errorf("failed to allocate image memory: %w", err)
	}
	out.Memory = memory

	if err := vk.Error(vk.BindImageMemory(device, handle, memory, 0)); err != nil {
		out.ImageDestroy(context)
		return nil, fmt.Errorf("failed to bind image memory: %w", err)
	}

	view, err := createImageView(context, handle, format, aspect)
	if err != nil {
		out.ImageDestroy(context)
		return nil, err
	}
	out.View = view
	return out, nil
}

func createImageView(context *VulkanContext, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := vk.Error(vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view)); err != nil {
		return vk.NullImageView, fmt.Errorf("failed to create image view: %w", err)
	}
	return view, nil
}

// TransitionLayout records a barrier moving a color image between the
// layouts used for uploads and sampling.
func (vi *VulkanImage) TransitionLayout(cmd *VulkanCommandBuffer, oldLayout, newLayout vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		return fmt.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}

	vk.CmdPipelineBarrier(cmd.Handle, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

func (vi *VulkanImage) CopyFromBuffer(cmd *VulkanCommandBuffer, buffer vk.Buffer) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{
			Width:  vi.Width,
			Height: vi.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(cmd.Handle, buffer, vi.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(device, vi.View, context.Allocator)
		vi.View = vk.NullImageView
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vi.Memory, context.Allocator)
		vi.Memory = vk.NullDeviceMemory
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(device, vi.Handle, context.Allocator)
		vi.Handle = vk.NullImage
	}
}
