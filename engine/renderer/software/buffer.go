package software

import (
	"fmt"
	"io"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// Buffer is plain host memory. Upload buffers are written by the CPU and
// read in place by the executor.
type Buffer struct {
	id     uint64
	usage  metadata.BufferUsage
	data   []byte
	device *Device
}

func (b *Buffer) Size() uint64 { return uint64(len(b.data)) }

func (b *Buffer) Usage() metadata.BufferUsage { return b.usage }

func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.usage != metadata.BUFFER_USAGE_UPLOAD {
		return fmt.Errorf("buffer %d: %w", b.id, core.ErrBufferNotMappable)
	}
	end := offset + uint64(len(data))
	if end > uint64(len(b.data)) {
		return fmt.Errorf("write [%d,%d) past buffer %d of %d bytes: %w", offset, end, b.id, len(b.data), core.ErrBufferOverflow)
	}
	b.device.hazards.check(b, metadata.MemoryRange{Offset: offset, Size: uint64(len(data))})
	copy(b.data[offset:end], data)
	return nil
}

// ReadAt copies buffer contents into p, satisfying io.ReaderAt. It is the
// software stand-in for a readback heap.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("buffer %d: negative offset %d", b.id, off)
	}
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *Buffer) Destroy() {
	b.data = nil
}

// readAs copies a T out of the buffer at offset.
func readAs[T any](b *Buffer, offset uint64) (T, bool) {
	var out T
	dst := metadata.AsBytes(&out)
	end := offset + uint64(len(dst))
	if b == nil || end > uint64(len(b.data)) {
		return out, false
	}
	copy(dst, b.data[offset:end])
	return out, true
}
