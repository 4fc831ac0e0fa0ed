package software

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

var errForeignResource = errors.New("resource was not created by the software device")

type command func(rs *rasterState)

/**
 * @brief Records commands as closures run later by the executor. Constant
 * buffers and vertex data are referenced, not copied, so the executor reads
 * whatever the buffers hold when it gets to the command.
 */
type CommandList struct {
	device    *Device
	allocator *CommandAllocator
	recording bool
	inFrame   bool

	commands []command
	reads    []bufferRead
	err      error
}

func (cl *CommandList) fail(err error) {
	if cl.err == nil {
		cl.err = err
		core.LogError("%s", err)
	}
}

func (cl *CommandList) record(c command) bool {
	if !cl.recording {
		cl.fail(core.ErrListNotRecording)
		return false
	}
	cl.commands = append(cl.commands, c)
	return true
}

func (cl *CommandList) read(b *Buffer, offset, size uint64) {
	cl.reads = append(cl.reads, bufferRead{buffer: b, rng: metadata.MemoryRange{Offset: offset, Size: size}})
}

func (cl *CommandList) Reset(allocator metadata.CommandAllocator, pso metadata.Pipeline) error {
	a, ok := allocator.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("allocator %T: %w", allocator, errForeignResource)
	}
	cl.allocator = a
	// Fresh slices: the executor may still hold the previous recording.
	cl.commands = make([]command, 0, len(cl.commands))
	cl.reads = make([]bufferRead, 0, len(cl.reads))
	cl.err = nil
	cl.recording = true
	cl.inFrame = false
	if pso != nil {
		cl.SetPipeline(pso)
	}
	return nil
}

func (cl *CommandList) SetPipeline(pso metadata.Pipeline) {
	p, ok := pso.(*Pipeline)
	if !ok {
		cl.fail(fmt.Errorf("pipeline %T: %w", pso, errForeignResource))
		return
	}
	cl.record(func(rs *rasterState) { rs.pso = p })
}

func (cl *CommandList) SetViewport(vp metadata.Viewport) {
	cl.record(func(rs *rasterState) { rs.viewport = vp })
}

func (cl *CommandList) BeginFrame(clear math.Vec4) {
	if cl.record(func(rs *rasterState) { rs.clear(clear) }) {
		cl.inFrame = true
	}
}

func (cl *CommandList) EndFrame() {
	if cl.record(func(rs *rasterState) {}) {
		cl.inFrame = false
	}
}

func (cl *CommandList) constantBuffer(buffer metadata.Buffer, offset, size uint64, set func(rs *rasterState, ref constantRef)) {
	b, ok := buffer.(*Buffer)
	if !ok {
		cl.fail(fmt.Errorf("constant buffer %T: %w", buffer, errForeignResource))
		return
	}
	if offset+size > b.Size() {
		cl.fail(fmt.Errorf("constant view [%d,%d) past buffer of %d bytes: %w", offset, offset+size, b.Size(), core.ErrBufferOverflow))
		return
	}
	ref := constantRef{buffer: b, offset: offset}
	if cl.record(func(rs *rasterState) { set(rs, ref) }) {
		cl.read(b, offset, size)
	}
}

func (cl *CommandList) SetPassConstants(buffer metadata.Buffer, offset uint64) {
	cl.constantBuffer(buffer, offset, metadata.SizeOf[metadata.PassConstants](),
		func(rs *rasterState, ref constantRef) { rs.pass = ref })
}

func (cl *CommandList) SetObjectConstants(buffer metadata.Buffer, offset uint64) {
	cl.constantBuffer(buffer, offset, metadata.SizeOf[metadata.ObjectConstants](),
		func(rs *rasterState, ref constantRef) { rs.object = ref })
}

func (cl *CommandList) SetMaterialConstants(buffer metadata.Buffer, offset uint64) {
	cl.constantBuffer(buffer, offset, metadata.SizeOf[metadata.MaterialConstants](),
		func(rs *rasterState, ref constantRef) { rs.material = ref })
}

func (cl *CommandList) SetTexture(texture metadata.Texture) {
	t, ok := texture.(*Texture)
	if !ok && texture != nil {
		cl.fail(fmt.Errorf("texture %T: %w", texture, errForeignResource))
		return
	}
	cl.record(func(rs *rasterState) { rs.texture = t })
}

func (cl *CommandList) SetVertexBuffer(view metadata.VertexBufferView) {
	b, ok := view.Buffer.(*Buffer)
	if !ok {
		cl.fail(fmt.Errorf("vertex buffer %T: %w", view.Buffer, errForeignResource))
		return
	}
	if cl.record(func(rs *rasterState) { rs.vertices = vertexStream{buffer: b, view: view} }) {
		cl.read(b, view.Offset, view.Size)
	}
}

func (cl *CommandList) SetIndexBuffer(view metadata.IndexBufferView) {
	b, ok := view.Buffer.(*Buffer)
	if !ok {
		cl.fail(fmt.Errorf("index buffer %T: %w", view.Buffer, errForeignResource))
		return
	}
	if cl.record(func(rs *rasterState) { rs.indices = indexStream{buffer: b, view: view} }) {
		cl.read(b, view.Offset, view.Size)
	}
}

func (cl *CommandList) SetPrimitiveTopology(topology metadata.PrimitiveTopology) {
	cl.record(func(rs *rasterState) { rs.topology = topology })
}

func (cl *CommandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	if !cl.inFrame {
		cl.fail(fmt.Errorf("draw recorded outside BeginFrame/EndFrame: %w", core.ErrListNotRecording))
		return
	}
	cl.record(func(rs *rasterState) {
		for i := uint32(0); i < instanceCount; i++ {
			rs.drawIndexed(indexCount, startIndex, baseVertex)
		}
	})
}

func (cl *CommandList) Close() error {
	if !cl.recording {
		return core.ErrListNotRecording
	}
	cl.recording = false
	if cl.inFrame {
		cl.fail(fmt.Errorf("command list closed inside a frame: %w", core.ErrListNotRecording))
	}
	return cl.err
}
