package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/core"
	castlemath "github.com/spaghettifunk/castle/engine/math"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	// One per image. Signalled by the submission that renders into the image
	// and waited on by its present.
	RenderComplete []vk.Semaphore

	DepthAttachment *VulkanImage

	// framebuffers used for on-screen rendering.
	Framebuffers []*VulkanFramebuffer
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

func SwapchainCreate(context *VulkanContext, width uint32, height uint32) (*VulkanSwapchain, error) {
	return createSwapchain(context, width, height)
}

// SwapchainRecreate destroys the swapchain and builds a new one. The device
// must be idle.
func (vs *VulkanSwapchain) SwapchainRecreate(context *VulkanContext, width uint32, height uint32) (*VulkanSwapchain, error) {
	vs.destroySwapchain(context)
	return createSwapchain(context, width, height)
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) {
	vs.destroySwapchain(context)
}

// SwapchainAcquireNextImageIndex returns core.ErrSwapchainBooting when the
// swapchain is out of date and must be recreated before rendering.
func (vs *VulkanSwapchain) SwapchainAcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNS, imageAvailableSemaphore, fence, &imageIndex)
	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, nil
	case vk.ErrorOutOfDate:
		return 0, core.ErrSwapchainBooting
	case vk.ErrorDeviceLost:
		return 0, core.ErrDeviceLost
	}
	return 0, fmt.Errorf("failed to acquire swapchain image: %s", VulkanResultString(result, true))
}

// SwapchainPresent hands the image back for presentation. An out of date or
// suboptimal swapchain yields core.ErrSwapchainBooting.
func (vs *VulkanSwapchain) SwapchainPresent(context *VulkanContext, presentQueue vk.Queue, presentImageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vs.RenderComplete[presentImageIndex]},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	var result vk.Result
	_ = context.locks.SafeQueueCall(uint32(context.Device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(presentQueue, &presentInfo)
		return nil
	})
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return core.ErrSwapchainBooting
	case vk.ErrorDeviceLost:
		return core.ErrDeviceLost
	}
	return fmt.Errorf("failed to present swap chain image: %s", VulkanResultString(result, true))
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// choosePresentMode uses FIFO for vsync. Otherwise it prefers mailbox, then
// immediate.
func choosePresentMode(modes []vk.PresentMode, vsync bool) vk.PresentMode {
	if vsync {
		return vk.PresentModeFifo
	}
	best := vk.PresentModeFifo
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
		if mode == vk.PresentModeImmediate {
			best = mode
		}
	}
	return best
}

func createSwapchain(context *VulkanContext, width, height uint32) (*VulkanSwapchain, error) {
	support := &context.Device.SwapchainSupport
	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, support); err != nil {
		return nil, err
	}
	if len(support.Formats) == 0 {
		return nil, fmt.Errorf("surface reports no formats")
	}

	swapchain := &VulkanSwapchain{
		ImageFormat: chooseSurfaceFormat(support.Formats),
	}
	presentMode := choosePresentMode(support.PresentModes, context.VSync)

	extent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = support.Capabilities.CurrentExtent
	}

	// Clamp to the value allowed by the GPU.
	lo := support.Capabilities.MinImageExtent
	hi := support.Capabilities.MaxImageExtent
	extent.Width = castlemath.Clamp(extent.Width, lo.Width, hi.Width)
	extent.Height = castlemath.Clamp(extent.Height, lo.Height, hi.Height)
	swapchain.Extent = extent

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	}

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create swapchain: %s", VulkanResultString(res, true))
	}
	swapchain.Handle = handle

	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, nil); res != vk.Success {
		return nil, fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res, false))
	}
	swapchain.Images = make([]vk.Image, swapchain.ImageCount)
	swapchain.Views = make([]vk.ImageView, swapchain.ImageCount)
	swapchain.RenderComplete = make([]vk.Semaphore, swapchain.ImageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, swapchain.Handle, &swapchain.ImageCount, swapchain.Images); res != vk.Success {
		return nil, fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res, false))
	}

	for i := range swapchain.Images {
		view, err := createImageView(context, swapchain.Images[i], swapchain.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return nil, err
		}
		swapchain.Views[i] = view

		sem, err := createSemaphore(context)
		if err != nil {
			return nil, err
		}
		swapchain.RenderComplete[i] = sem
	}

	if !DeviceDetectDepthFormat(context.Device) {
		context.Device.DepthFormat = vk.FormatUndefined
		return nil, fmt.Errorf("failed to find a supported depth format")
	}

	depthAttachment, err := ImageCreate(
		context,
		extent.Width,
		extent.Height,
		context.Device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return nil, fmt.Errorf("failed to create depth attachment: %w", err)
	}
	swapchain.DepthAttachment = depthAttachment

	core.LogInfo("Swapchain created successfully (%dx%d, %d images).", extent.Width, extent.Height, swapchain.ImageCount)
	return swapchain, nil
}

// regenerateFramebuffers binds one framebuffer per swapchain image to the
// renderpass, sharing the depth attachment.
func (vs *VulkanSwapchain) regenerateFramebuffers(context *VulkanContext, renderpass *VulkanRenderpass) error {
	vs.Framebuffers = make([]*VulkanFramebuffer, vs.ImageCount)
	for i := range vs.Framebuffers {
		attachments := []vk.ImageView{vs.Views[i], vs.DepthAttachment.View}
		fb, err := FramebufferCreate(context, renderpass, vs.Extent.Width, vs.Extent.Height, attachments)
		if err != nil {
			return err
		}
		vs.Framebuffers[i] = fb
	}
	return nil
}

func (vs *VulkanSwapchain) destroySwapchain(context *VulkanContext) {
	device := context.Device.LogicalDevice
	for _, fb := range vs.Framebuffers {
		if fb != nil {
			fb.Destroy(context)
		}
	}
	vs.Framebuffers = nil

	if vs.DepthAttachment != nil {
		vs.DepthAttachment.ImageDestroy(context)
		vs.DepthAttachment = nil
	}

	// Only destroy the views, not the images, since those are owned by the
	// swapchain and are destroyed with it.
	for i := range vs.Views {
		vk.DestroyImageView(device, vs.Views[i], context.Allocator)
	}
	for i := range vs.RenderComplete {
		vk.DestroySemaphore(device, vs.RenderComplete[i], context.Allocator)
	}
	vs.Views = nil
	vs.RenderComplete = nil

	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(device, vs.Handle, context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
