package frames

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// UploadBuffer is a typed array over a CPU-writable device buffer. Constant
// buffers pad every element to the device's constant buffer alignment.
type UploadBuffer[T any] struct {
	buffer      metadata.Buffer
	elementSize uint64
	stride      uint64
	count       int
}

func NewUploadBuffer[T any](device metadata.Device, count int, isConstantBuffer bool) (*UploadBuffer[T], error) {
	if count <= 0 {
		count = 1
	}
	size := metadata.SizeOf[T]()
	stride := size
	if isConstantBuffer {
		stride = metadata.GetAligned(size, device.ConstantBufferAlignment())
	}
	buffer, err := device.CreateUploadBuffer(stride * uint64(count))
	if err != nil {
		return nil, fmt.Errorf("failed to create upload buffer of %d elements: %w", count, err)
	}
	return &UploadBuffer[T]{
		buffer:      buffer,
		elementSize: size,
		stride:      stride,
		count:       count,
	}, nil
}

// CopyData writes one element at index i.
func (ub *UploadBuffer[T]) CopyData(i int, data *T) error {
	if i < 0 || i >= ub.count {
		err := fmt.Errorf("element %d outside upload buffer of %d: %w", i, ub.count, core.ErrBufferOverflow)
		core.LogError("%s", err)
		return err
	}
	return ub.buffer.Write(ub.Offset(i), metadata.AsBytes(data))
}

// CopyRange writes consecutive elements starting at first.
func (ub *UploadBuffer[T]) CopyRange(first int, data []T) error {
	if first < 0 || first+len(data) > ub.count {
		err := fmt.Errorf("range [%d,%d) outside upload buffer of %d: %w", first, first+len(data), ub.count, core.ErrBufferOverflow)
		core.LogError("%s", err)
		return err
	}
	if ub.stride == ub.elementSize {
		return ub.buffer.Write(ub.Offset(first), metadata.SliceBytes(data))
	}
	for i := range data {
		if err := ub.buffer.Write(ub.Offset(first+i), metadata.AsBytes(&data[i])); err != nil {
			return err
		}
	}
	return nil
}

// Offset is the byte offset of element i.
func (ub *UploadBuffer[T]) Offset(i int) uint64 { return uint64(i) * ub.stride }

func (ub *UploadBuffer[T]) Stride() uint64 { return ub.stride }

func (ub *UploadBuffer[T]) ElementSize() uint64 { return ub.elementSize }

func (ub *UploadBuffer[T]) Len() int { return ub.count }

func (ub *UploadBuffer[T]) Resource() metadata.Buffer { return ub.buffer }

func (ub *UploadBuffer[T]) Destroy() {
	if ub != nil && ub.buffer != nil {
		ub.buffer.Destroy()
		ub.buffer = nil
	}
}
