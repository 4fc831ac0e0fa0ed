package metadata

import (
	"image"

	"github.com/spaghettifunk/castle/engine/math"
)

/**
 * @brief A graphics device. Both the software rasterizer and the Vulkan
 * backend implement it; everything above the backends talks to this
 * interface only.
 */
type Device interface {
	/** @brief A short human readable backend name. */
	Name() string
	/**
	 * @brief The alignment, in bytes, that every constant buffer element
	 * must respect. Strides of constant upload buffers are rounded up to it.
	 */
	ConstantBufferAlignment() uint64
	/** @brief Creates a CPU-writable buffer that the GPU reads in place. */
	CreateUploadBuffer(size uint64) (Buffer, error)
	/** @brief Creates an immutable buffer initialised with data. */
	CreateStaticBuffer(usage BufferUsage, data []byte) (Buffer, error)
	CreateTexture(desc TextureDesc, pixels *image.RGBA) (Texture, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateCommandAllocator() (CommandAllocator, error)
	CreateCommandList() (CommandList, error)
	CreateFence(initial uint64) (Fence, error)
	Queue() Queue
	/** @brief Recreates the back buffer. The caller must have flushed the queue. */
	Resize(width, height uint32) error
	BackBufferSize() (uint32, uint32)
	/** @brief Blocks until every submitted command list has executed. */
	WaitIdle() error
	Destroy() error
}

type BufferUsage int

const (
	BUFFER_USAGE_UPLOAD BufferUsage = iota
	BUFFER_USAGE_VERTEX
	BUFFER_USAGE_INDEX
)

// Buffer is a linear range of device memory.
type Buffer interface {
	Size() uint64
	Usage() BufferUsage
	// Write copies data at offset. Only upload buffers are writable.
	Write(offset uint64, data []byte) error
	Destroy()
}

type Texture interface {
	Name() string
	Width() uint32
	Height() uint32
	Destroy()
}

type Pipeline interface {
	Desc() PipelineDesc
	Destroy()
}

/**
 * @brief Backing memory for recorded commands. An allocator may only be
 * reset once the GPU has finished every command list recorded into it.
 */
type CommandAllocator interface {
	Reset() error
	Destroy()
}

/**
 * @brief Records GPU work. Errors raised while recording are held back and
 * reported by Close, so the Set and Draw calls do not return them.
 */
type CommandList interface {
	Reset(allocator CommandAllocator, pso Pipeline) error
	SetPipeline(pso Pipeline)
	SetViewport(vp Viewport)
	BeginFrame(clear math.Vec4)
	SetPassConstants(buffer Buffer, offset uint64)
	SetObjectConstants(buffer Buffer, offset uint64)
	SetMaterialConstants(buffer Buffer, offset uint64)
	SetTexture(texture Texture)
	SetVertexBuffer(view VertexBufferView)
	SetIndexBuffer(view IndexBufferView)
	SetPrimitiveTopology(topology PrimitiveTopology)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)
	EndFrame()
	Close() error
}

// Queue executes closed command lists in submission order.
type Queue interface {
	Execute(lists ...CommandList) error
	// Signal sets fence to value once all work submitted before it is done.
	Signal(fence Fence, value uint64) error
	Present() error
}

/**
 * @brief A monotonically increasing counter written by the GPU. The CPU
 * polls it with CompletedValue or blocks on it with Wait.
 */
type Fence interface {
	CompletedValue() uint64
	// Wait blocks until the completed value reaches value.
	Wait(value uint64) error
	Destroy()
}

type VertexBufferView struct {
	Buffer Buffer
	Offset uint64
	Size   uint64
	Stride uint32
}

type IndexBufferView struct {
	Buffer Buffer
	Offset uint64
	Size   uint64
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type PrimitiveTopology int

const (
	PRIMITIVE_TOPOLOGY_TRIANGLE_LIST PrimitiveTopology = iota
	PRIMITIVE_TOPOLOGY_LINE_LIST
)
