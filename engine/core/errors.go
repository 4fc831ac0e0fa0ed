package core

import (
	"errors"
)

var (
	ErrSwapchainBooting  = errors.New("swapchain resized or recreated, booting")
	ErrDeviceLost        = errors.New("device lost")
	ErrSubmitFailed      = errors.New("command list submission failed")
	ErrFenceWait         = errors.New("fence wait failed")
	ErrBufferNotMappable = errors.New("buffer is not mappable from the CPU")
	ErrBufferOverflow    = errors.New("write exceeds buffer bounds")
	ErrAllocatorInUse    = errors.New("command allocator reset while its commands are still executing")
	ErrListNotRecording  = errors.New("command list is not in the recording state")
	ErrUnknownBackend    = errors.New("unknown renderer backend")
	ErrUnknown           = errors.New("unknown")
)
