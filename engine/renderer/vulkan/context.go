package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/core"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Bumped by every resize. The swapchain is rebuilt when it no longer
	// matches FramebufferSizeLastGeneration.
	FramebufferSizeGeneration     uint64
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain      *VulkanSwapchain
	MainRenderpass *VulkanRenderpass

	Descriptors *VulkanDescriptors
	// Shared by every pipeline so sets stay bound across pipeline switches.
	PipelineLayout vk.PipelineLayout

	RecreatingSwapchain bool
	VSync               bool

	locks *VulkanLockPool
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// all of propertyFlags, or -1.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		flags := memoryProperties.MemoryTypes[i].PropertyFlags
		if (typeFilter&(1<<i)) != 0 && flags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
