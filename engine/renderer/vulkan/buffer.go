package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// Buffer is a VkBuffer with its own allocation. Upload buffers live in
// host-visible coherent memory and stay mapped for their whole life; static
// buffers are device local and filled once through a staging copy.
type Buffer struct {
	context *VulkanContext

	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
	usage  metadata.BufferUsage
	mapped unsafe.Pointer

	// Uniform sets over this buffer, created the first time it is bound as
	// pass, object or material constants.
	sets [SetTexture]vk.DescriptorSet
}

func (b *Buffer) Size() uint64                { return b.size }
func (b *Buffer) Usage() metadata.BufferUsage { return b.usage }

func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.mapped == nil {
		return core.ErrBufferNotMappable
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("%w: %d bytes at offset %d of a %d byte buffer", core.ErrBufferOverflow, len(data), offset, b.size)
	}
	if len(data) == 0 {
		return nil
	}
	vk.Memcopy(unsafe.Add(b.mapped, offset), data)
	return nil
}

// uniformSet returns the dynamic uniform set for the given set index.
func (b *Buffer) uniformSet(setIndex uint32) (vk.DescriptorSet, error) {
	if b.sets[setIndex] != nil {
		return b.sets[setIndex], nil
	}
	if b.size < constantRange(setIndex) {
		return nil, fmt.Errorf("%w: %d byte buffer cannot hold set %d constants", core.ErrBufferOverflow, b.size, setIndex)
	}
	set, err := b.context.Descriptors.UniformSet(b.handle, setIndex)
	if err != nil {
		return nil, err
	}
	b.sets[setIndex] = set
	return set, nil
}

func (b *Buffer) Destroy() {
	if b == nil || b.context == nil {
		return
	}
	device := b.context.Device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(device, b.memory)
		b.mapped = nil
	}
	if b.handle != vk.NullBuffer {
		vk.DestroyBuffer(device, b.handle, b.context.Allocator)
		b.handle = vk.NullBuffer
	}
	if b.memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, b.memory, b.context.Allocator)
		b.memory = vk.NullDeviceMemory
	}
	// Sets go back with their pool.
	b.sets = [SetTexture]vk.DescriptorSet{}
}

func createBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (vk.Buffer, vk.DeviceMemory, error) {
	device := context.Device.LogicalDevice
	// Zero sized buffers are invalid.
	allocSize := max(size, 4)

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(allocSize),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vk.Error(vk.CreateBuffer(device, &bufferInfo, context.Allocator, &buffer)); err != nil {
		return vk.NullBuffer, vk.NullDeviceMemory, fmt.Errorf("vkCreateBuffer failed: %w", err)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &requirements)
	requirements.Deref()

	memoryType := context.FindMemoryIndex(requirements.MemoryTypeBits, properties)
	if memoryType < 0 {
		vk.DestroyBuffer(device, buffer, context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, fmt.Errorf("no memory type for buffer with properties %#x", uint32(properties))
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := vk.Error(vk.AllocateMemory(device, &allocInfo, context.Allocator, &memory)); err != nil {
		vk.DestroyBuffer(device, buffer, context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, fmt.Errorf("vkAllocateMemory failed: %w", err)
	}
	if err := vk.Error(vk.BindBufferMemory(device, buffer, memory, 0)); err != nil {
		vk.FreeMemory(device, memory, context.Allocator)
		vk.DestroyBuffer(device, buffer, context.Allocator)
		return vk.NullBuffer, vk.NullDeviceMemory, fmt.Errorf("vkBindBufferMemory failed: %w", err)
	}
	return buffer, memory, nil
}

func hostVisible() vk.MemoryPropertyFlags {
	return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
}

// newUploadBuffer creates a persistently mapped buffer. It can back constants
// as well as per-frame vertex data.
func newUploadBuffer(context *VulkanContext, size uint64) (*Buffer, error) {
	usage := vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)

	handle, memory, err := createBuffer(context, size, usage, hostVisible())
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		context: context,
		handle:  handle,
		memory:  memory,
		size:    size,
		usage:   metadata.BUFFER_USAGE_UPLOAD,
	}

	var mapped unsafe.Pointer
	if err := vk.Error(vk.MapMemory(context.Device.LogicalDevice, memory, 0, vk.DeviceSize(max(size, 4)), 0, &mapped)); err != nil {
		b.Destroy()
		return nil, fmt.Errorf("vkMapMemory failed: %w", err)
	}
	b.mapped = mapped
	return b, nil
}

// newStaticBuffer copies data into device local memory through a staging
// buffer and waits for the copy.
func newStaticBuffer(context *VulkanContext, usage metadata.BufferUsage, data []byte) (*Buffer, error) {
	var flags vk.BufferUsageFlags
	switch usage {
	case metadata.BUFFER_USAGE_VERTEX:
		flags = vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	case metadata.BUFFER_USAGE_INDEX:
		flags = vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	default:
		return nil, fmt.Errorf("static buffers are vertex or index buffers, got usage %d", usage)
	}
	flags |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)

	size := uint64(len(data))
	staging, err := newUploadBuffer(context, size)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()
	if err := staging.Write(0, data); err != nil {
		return nil, err
	}

	handle, memory, err := createBuffer(context, size, flags, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		context: context,
		handle:  handle,
		memory:  memory,
		size:    size,
		usage:   usage,
	}

	if size > 0 {
		err = withSingleUse(context, func(cmd *VulkanCommandBuffer) error {
			region := vk.BufferCopy{SrcOffset: 0, DstOffset: 0, Size: vk.DeviceSize(size)}
			vk.CmdCopyBuffer(cmd.Handle, staging.handle, b.handle, 1, []vk.BufferCopy{region})
			return nil
		})
		if err != nil {
			b.Destroy()
			return nil, fmt.Errorf("static buffer upload: %w", err)
		}
	}
	return b, nil
}
