package metadata

import (
	"unsafe"
)

// GetAligned rounds operand up to a multiple of granularity, which must be
// a power of two.
func GetAligned(operand, granularity uint64) uint64 {
	return (operand + (granularity - 1)) &^ (granularity - 1)
}

// AsBytes views a value as its raw bytes. The slice aliases v.
func AsBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// SliceBytes views a slice as its raw bytes. The result aliases s.
func SliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

// SizeOf returns the byte size of T.
func SizeOf[T any]() uint64 {
	var zero T
	return uint64(unsafe.Sizeof(zero))
}
