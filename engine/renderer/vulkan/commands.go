package vulkan

import (
	"errors"
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/core"
	castlemath "github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

var errForeignResource = errors.New("resource was not created by the vulkan device")

/**
 * @brief A command pool owned by one frame slot. The image-available
 * semaphore lives here too: the slot's fence guarantees the previous
 * acquire on it has been consumed before the slot records again.
 */
type CommandAllocator struct {
	context        *VulkanContext
	pool           vk.CommandPool
	imageAvailable vk.Semaphore
}

func newCommandAllocator(context *VulkanContext) (*CommandAllocator, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &info, context.Allocator, &pool); res != vk.Success {
		return nil, fmt.Errorf("failed to create command pool: %s", VulkanResultString(res, true))
	}
	sem, err := createSemaphore(context)
	if err != nil {
		vk.DestroyCommandPool(context.Device.LogicalDevice, pool, context.Allocator)
		return nil, err
	}
	return &CommandAllocator{context: context, pool: pool, imageAvailable: sem}, nil
}

// Reset recycles every command buffer allocated from the pool.
func (a *CommandAllocator) Reset() error {
	if res := vk.ResetCommandPool(a.context.Device.LogicalDevice, a.pool, 0); res != vk.Success {
		return fmt.Errorf("failed to reset command pool: %s", VulkanResultString(res, false))
	}
	return nil
}

func (a *CommandAllocator) Destroy() {
	device := a.context.Device.LogicalDevice
	if a.pool != vk.NullCommandPool {
		vk.DestroyCommandPool(device, a.pool, a.context.Allocator)
		a.pool = vk.NullCommandPool
	}
	if a.imageAvailable != vk.NullSemaphore {
		vk.DestroySemaphore(device, a.imageAvailable, a.context.Allocator)
		a.imageAvailable = vk.NullSemaphore
	}
}

/**
 * @brief Records into a primary command buffer of whichever allocator it
 * was last reset with. One buffer is kept per allocator.
 */
type CommandList struct {
	device *Device

	buffers   map[*CommandAllocator]*VulkanCommandBuffer
	allocator *CommandAllocator
	cmd       *VulkanCommandBuffer
	pipeline  *VulkanPipeline

	recording bool
	inFrame   bool
	// Set when BeginFrame got a swapchain image. Without one the frame is
	// recorded as an empty submission and nothing is presented.
	hasImage   bool
	imageIndex uint32

	err error
}

func newCommandList(device *Device) *CommandList {
	return &CommandList{
		device:  device,
		buffers: make(map[*CommandAllocator]*VulkanCommandBuffer),
	}
}

func (cl *CommandList) fail(err error) {
	if cl.err == nil {
		cl.err = err
		core.LogError("%s", err)
	}
}

// ready reports whether a command can be recorded inside the render pass.
func (cl *CommandList) ready() bool {
	if !cl.recording {
		cl.fail(core.ErrListNotRecording)
		return false
	}
	return cl.err == nil && cl.hasImage
}

func (cl *CommandList) Reset(allocator metadata.CommandAllocator, pso metadata.Pipeline) error {
	a, ok := allocator.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("allocator %T: %w", allocator, errForeignResource)
	}
	cmd, ok := cl.buffers[a]
	if !ok {
		var err error
		cmd, err = NewVulkanCommandBuffer(a.context, a.pool, true)
		if err != nil {
			return err
		}
		cl.buffers[a] = cmd
	}
	// The pool reset already returned the buffer to the initial state.
	cmd.Reset()
	if err := cmd.Begin(true, false, false); err != nil {
		return err
	}

	cl.allocator = a
	cl.cmd = cmd
	cl.err = nil
	cl.recording = true
	cl.inFrame = false
	cl.hasImage = false
	cl.pipeline = nil
	if pso != nil {
		cl.SetPipeline(pso)
	}
	return nil
}

func (cl *CommandList) SetPipeline(pso metadata.Pipeline) {
	p, ok := pso.(*VulkanPipeline)
	if !ok {
		cl.fail(fmt.Errorf("pipeline %T: %w", pso, errForeignResource))
		return
	}
	cl.pipeline = p
	if cl.recording && cl.err == nil {
		p.Bind(cl.cmd)
	}
}

// SetViewport sets the viewport and a matching scissor rectangle. The
// viewport is flipped so that +y points up in clip space.
func (cl *CommandList) SetViewport(vp metadata.Viewport) {
	if !cl.recording {
		cl.fail(core.ErrListNotRecording)
		return
	}
	if cl.err != nil {
		return
	}
	viewport := vk.Viewport{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: int32(vp.X), Y: int32(vp.Y)},
		Extent: vk.Extent2D{Width: uint32(max(vp.Width, 0)), Height: uint32(max(vp.Height, 0))},
	}
	vk.CmdSetViewport(cl.cmd.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cl.cmd.Handle, 0, 1, []vk.Rect2D{scissor})
}

// BeginFrame acquires the next swapchain image and starts the main render
// pass on it. An out of date swapchain is rebuilt once; if that still
// yields no image the frame is skipped.
func (cl *CommandList) BeginFrame(clear castlemath.Vec4) {
	if !cl.recording {
		cl.fail(core.ErrListNotRecording)
		return
	}
	if cl.err != nil {
		return
	}
	cl.inFrame = true

	context := cl.device.context
	if context.FramebufferWidth == 0 || context.FramebufferHeight == 0 {
		return
	}
	if context.FramebufferSizeGeneration != context.FramebufferSizeLastGeneration {
		if err := cl.device.recreateSwapchain(); err != nil {
			cl.fail(err)
			return
		}
	}

	index, err := context.Swapchain.SwapchainAcquireNextImageIndex(context, math.MaxUint64, cl.allocator.imageAvailable, vk.NullFence)
	if errors.Is(err, core.ErrSwapchainBooting) {
		if err = cl.device.recreateSwapchain(); err == nil {
			index, err = context.Swapchain.SwapchainAcquireNextImageIndex(context, math.MaxUint64, cl.allocator.imageAvailable, vk.NullFence)
		}
	}
	if errors.Is(err, core.ErrSwapchainBooting) {
		core.LogDebug("no swapchain image this frame")
		return
	}
	if err != nil {
		cl.fail(err)
		return
	}

	cl.hasImage = true
	cl.imageIndex = index
	framebuffer := context.Swapchain.Framebuffers[index]
	context.MainRenderpass.RenderpassBegin(cl.cmd, framebuffer.Handle, context.Swapchain.Extent, clear)
	// Pipelines bound before the render pass stay bound.
	if cl.pipeline != nil {
		cl.pipeline.Bind(cl.cmd)
	}
}

func (cl *CommandList) EndFrame() {
	if !cl.recording || !cl.inFrame {
		cl.fail(fmt.Errorf("EndFrame without BeginFrame: %w", core.ErrListNotRecording))
		return
	}
	cl.inFrame = false
	if cl.hasImage && cl.cmd.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		cl.device.context.MainRenderpass.RenderpassEnd(cl.cmd)
	}
}

func (cl *CommandList) bindConstants(setIndex uint32, buffer metadata.Buffer, offset uint64) {
	if !cl.ready() {
		return
	}
	b, ok := buffer.(*Buffer)
	if !ok {
		cl.fail(fmt.Errorf("constant buffer %T: %w", buffer, errForeignResource))
		return
	}
	if offset+constantRange(setIndex) > b.size {
		cl.fail(fmt.Errorf("%w: set %d constants at offset %d of a %d byte buffer", core.ErrBufferOverflow, setIndex, offset, b.size))
		return
	}
	set, err := b.uniformSet(setIndex)
	if err != nil {
		cl.fail(err)
		return
	}
	vk.CmdBindDescriptorSets(cl.cmd.Handle, vk.PipelineBindPointGraphics, cl.device.context.PipelineLayout,
		setIndex, 1, []vk.DescriptorSet{set}, 1, []uint32{uint32(offset)})
}

func (cl *CommandList) SetPassConstants(buffer metadata.Buffer, offset uint64) {
	cl.bindConstants(SetPass, buffer, offset)
}

func (cl *CommandList) SetObjectConstants(buffer metadata.Buffer, offset uint64) {
	cl.bindConstants(SetObject, buffer, offset)
}

func (cl *CommandList) SetMaterialConstants(buffer metadata.Buffer, offset uint64) {
	cl.bindConstants(SetMaterial, buffer, offset)
}

func (cl *CommandList) SetTexture(texture metadata.Texture) {
	if !cl.ready() {
		return
	}
	t, ok := texture.(*Texture)
	if !ok || t == nil {
		cl.fail(fmt.Errorf("texture %T: %w", texture, errForeignResource))
		return
	}
	vk.CmdBindDescriptorSets(cl.cmd.Handle, vk.PipelineBindPointGraphics, cl.device.context.PipelineLayout,
		SetTexture, 1, []vk.DescriptorSet{t.set}, 0, nil)
}

func (cl *CommandList) SetVertexBuffer(view metadata.VertexBufferView) {
	if !cl.ready() {
		return
	}
	b, ok := view.Buffer.(*Buffer)
	if !ok {
		cl.fail(fmt.Errorf("vertex buffer %T: %w", view.Buffer, errForeignResource))
		return
	}
	if stride := uint32(metadata.SizeOf[metadata.Vertex]()); view.Stride != stride {
		cl.fail(fmt.Errorf("vertex stride %d, pipelines expect %d", view.Stride, stride))
		return
	}
	if view.Offset+view.Size > b.size {
		cl.fail(fmt.Errorf("%w: vertex view [%d, %d) of a %d byte buffer", core.ErrBufferOverflow, view.Offset, view.Offset+view.Size, b.size))
		return
	}
	vk.CmdBindVertexBuffers(cl.cmd.Handle, 0, 1, []vk.Buffer{b.handle}, []vk.DeviceSize{vk.DeviceSize(view.Offset)})
}

func (cl *CommandList) SetIndexBuffer(view metadata.IndexBufferView) {
	if !cl.ready() {
		return
	}
	b, ok := view.Buffer.(*Buffer)
	if !ok {
		cl.fail(fmt.Errorf("index buffer %T: %w", view.Buffer, errForeignResource))
		return
	}
	if view.Offset+view.Size > b.size {
		cl.fail(fmt.Errorf("%w: index view [%d, %d) of a %d byte buffer", core.ErrBufferOverflow, view.Offset, view.Offset+view.Size, b.size))
		return
	}
	vk.CmdBindIndexBuffer(cl.cmd.Handle, b.handle, vk.DeviceSize(view.Offset), vk.IndexTypeUint32)
}

// SetPrimitiveTopology only accepts triangle lists, the topology every
// pipeline is built with.
func (cl *CommandList) SetPrimitiveTopology(topology metadata.PrimitiveTopology) {
	if topology != metadata.PRIMITIVE_TOPOLOGY_TRIANGLE_LIST {
		cl.fail(fmt.Errorf("vulkan pipelines only draw triangle lists, got topology %d", topology))
	}
}

func (cl *CommandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	if !cl.inFrame {
		cl.fail(fmt.Errorf("draw recorded outside BeginFrame/EndFrame: %w", core.ErrListNotRecording))
		return
	}
	if !cl.ready() {
		return
	}
	if cl.pipeline == nil {
		cl.fail(fmt.Errorf("draw recorded without a pipeline: %w", core.ErrListNotRecording))
		return
	}
	vk.CmdDrawIndexed(cl.cmd.Handle, indexCount, instanceCount, startIndex, baseVertex, startInstance)
}

func (cl *CommandList) Close() error {
	if !cl.recording {
		return core.ErrListNotRecording
	}
	cl.recording = false
	if cl.inFrame {
		cl.fail(fmt.Errorf("command list closed inside a frame: %w", core.ErrListNotRecording))
	}
	if cl.cmd.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		cl.device.context.MainRenderpass.RenderpassEnd(cl.cmd)
	}
	if err := cl.cmd.End(); err != nil {
		cl.fail(err)
	}
	return cl.err
}
