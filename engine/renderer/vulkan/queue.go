package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// Queue submits to the graphics queue and presents on the present queue.
type Queue struct {
	device *Device

	// The image rendered by the last executed frame, waiting to be presented.
	presentPending bool
	presentIndex   uint32
}

func (q *Queue) Execute(lists ...metadata.CommandList) error {
	context := q.device.context
	submits := make([]vk.SubmitInfo, 0, len(lists))
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("vulkan queue cannot execute %T: %w", l, core.ErrSubmitFailed)
		}
		if cl.recording {
			return fmt.Errorf("command list still recording: %w", core.ErrSubmitFailed)
		}
		if cl.err != nil {
			return fmt.Errorf("command list closed with error: %w", cl.err)
		}

		submit := vk.SubmitInfo{
			SType:              vk.StructureTypeSubmitInfo,
			CommandBufferCount: 1,
			PCommandBuffers:    []vk.CommandBuffer{cl.cmd.Handle},
		}
		if cl.hasImage {
			submit.WaitSemaphoreCount = 1
			submit.PWaitSemaphores = []vk.Semaphore{cl.allocator.imageAvailable}
			submit.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
			submit.SignalSemaphoreCount = 1
			submit.PSignalSemaphores = []vk.Semaphore{context.Swapchain.RenderComplete[cl.imageIndex]}
			q.presentPending = true
			q.presentIndex = cl.imageIndex
		}
		submits = append(submits, submit)
	}
	if len(submits) == 0 {
		return nil
	}

	err := context.locks.SafeQueueCall(uint32(context.Device.GraphicsQueueIndex), func() error {
		res := vk.QueueSubmit(context.Device.GraphicsQueue, uint32(len(submits)), submits, vk.NullFence)
		switch res {
		case vk.Success:
			return nil
		case vk.ErrorDeviceLost:
			return core.ErrDeviceLost
		}
		return fmt.Errorf("vkQueueSubmit failed with %s", VulkanResultString(res, true))
	})
	if err != nil {
		q.presentPending = false
		return err
	}
	for _, l := range lists {
		l.(*CommandList).cmd.UpdateSubmitted()
	}
	return nil
}

// Signal submits an empty batch carrying a pooled fence. The fence value
// advances once every earlier submission on the queue has completed.
func (q *Queue) Signal(fence metadata.Fence, value uint64) error {
	f, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("fence %T: %w", fence, errForeignResource)
	}
	context := q.device.context
	vf, err := q.device.fences.get()
	if err != nil {
		return err
	}
	submit := vk.SubmitInfo{SType: vk.StructureTypeSubmitInfo}
	err = context.locks.SafeQueueCall(uint32(context.Device.GraphicsQueueIndex), func() error {
		res := vk.QueueSubmit(context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submit}, vf.Handle)
		if res != vk.Success {
			return fmt.Errorf("fence signal submit failed with %s", VulkanResultString(res, true))
		}
		return nil
	})
	if err != nil {
		q.device.fences.put(vf)
		return err
	}
	f.push(value, vf)
	return nil
}

// Present shows the last rendered image. It returns core.ErrSwapchainBooting
// when there was nothing to show or the swapchain had to be rebuilt.
func (q *Queue) Present() error {
	if !q.presentPending {
		return core.ErrSwapchainBooting
	}
	q.presentPending = false

	context := q.device.context
	err := context.Swapchain.SwapchainPresent(context, context.Device.PresentQueue, q.presentIndex)
	if errors.Is(err, core.ErrSwapchainBooting) {
		if rerr := q.device.recreateSwapchain(); rerr != nil {
			return rerr
		}
	}
	return err
}
