package vulkan

import (
	"fmt"
	"math"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if res := vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("failed to create fence: %s", VulkanResultString(res, false))
	}
	fence.Handle = handle
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
		return fmt.Errorf("%w: timed out", core.ErrFenceWait)
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
		return core.ErrDeviceLost
	case vk.ErrorOutOfHostMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_HOST_MEMORY.")
	case vk.ErrorOutOfDeviceMemory:
		core.LogError("vk_fence_wait - VK_ERROR_OUT_OF_DEVICE_MEMORY.")
	default:
		core.LogError("vk_fence_wait - An unknown error has occurred.")
	}
	return fmt.Errorf("%w: %s", core.ErrFenceWait, VulkanResultString(result, false))
}

// Poll checks the fence without blocking.
func (vf *VulkanFence) Poll(context *VulkanContext) (bool, error) {
	if vf.IsSignaled {
		return true, nil
	}
	switch result := vk.GetFenceStatus(context.Device.LogicalDevice, vf.Handle); result {
	case vk.Success:
		vf.IsSignaled = true
		return true, nil
	case vk.NotReady:
		return false, nil
	case vk.ErrorDeviceLost:
		return false, core.ErrDeviceLost
	default:
		return false, fmt.Errorf("%w: %s", core.ErrFenceWait, VulkanResultString(result, false))
	}
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if vf.IsSignaled {
		if res := vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}); res != vk.Success {
			return fmt.Errorf("failed to reset fence: %s", VulkanResultString(res, false))
		}
		vf.IsSignaled = false
	}
	return nil
}

// fencePool recycles binary fences between timeline signals.
type fencePool struct {
	context *VulkanContext
	free    []*VulkanFence
}

func (fp *fencePool) get() (*VulkanFence, error) {
	var out *VulkanFence
	err := fp.context.locks.SafeCall(FenceManagement, func() error {
		if n := len(fp.free); n > 0 {
			out = fp.free[n-1]
			fp.free = fp.free[:n-1]
			return out.FenceReset(fp.context)
		}
		f, err := NewFence(fp.context, false)
		out = f
		return err
	})
	return out, err
}

func (fp *fencePool) put(f *VulkanFence) {
	_ = fp.context.locks.SafeCall(FenceManagement, func() error {
		fp.free = append(fp.free, f)
		return nil
	})
}

func (fp *fencePool) destroy() {
	_ = fp.context.locks.SafeCall(FenceManagement, func() error {
		for _, f := range fp.free {
			f.FenceDestroy(fp.context)
		}
		fp.free = nil
		return nil
	})
}

type pendingSignal struct {
	value uint64
	fence *VulkanFence
}

// Fence is a monotonic counter built from binary fences. Every Queue.Signal
// submits an empty batch carrying a fresh binary fence; the counter advances
// to a signal's value once its fence is observed.
type Fence struct {
	context *VulkanContext
	pool    *fencePool

	mu        sync.Mutex
	completed uint64
	pending   []pendingSignal
	err       error
}

func newFence(context *VulkanContext, pool *fencePool, initial uint64) *Fence {
	return &Fence{context: context, pool: pool, completed: initial}
}

func (f *Fence) push(value uint64, vf *VulkanFence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, pendingSignal{value: value, fence: vf})
}

// retire pops every signal the GPU has reached. Callers hold mu.
func (f *Fence) retire() {
	for len(f.pending) > 0 {
		head := f.pending[0]
		done, err := head.fence.Poll(f.context)
		if err != nil {
			f.err = err
			return
		}
		if !done {
			return
		}
		f.complete(head)
	}
}

func (f *Fence) complete(head pendingSignal) {
	f.completed = max(f.completed, head.value)
	f.pending = f.pending[1:]
	f.pool.put(head.fence)
}

func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retire()
	return f.completed
}

func (f *Fence) Wait(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for f.completed < value {
		if f.err != nil {
			return f.err
		}
		if len(f.pending) == 0 {
			return fmt.Errorf("%w: value %d was never signalled (completed %d)", core.ErrFenceWait, value, f.completed)
		}
		head := f.pending[0]
		if err := head.fence.FenceWait(f.context, math.MaxUint64); err != nil {
			f.err = err
			return err
		}
		f.complete(head)
	}
	return nil
}

// Destroy must only be called once the device is idle.
func (f *Fence) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.pending {
		p.fence.FenceDestroy(f.context)
	}
	f.pending = nil
}

func createSemaphore(context *VulkanContext) (vk.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &info, context.Allocator, &sem); res != vk.Success {
		return vk.NullSemaphore, fmt.Errorf("failed to create semaphore: %s", VulkanResultString(res, false))
	}
	return sem, nil
}
