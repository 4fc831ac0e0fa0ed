package software

import (
	"sync"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

type bufferRead struct {
	buffer *Buffer
	rng    metadata.MemoryRange
}

// hazardTracker remembers which byte ranges each in-flight submission reads
// and counts CPU writes that land on one of them.
type hazardTracker struct {
	mu       sync.Mutex
	inflight map[uint64][]bufferRead
	count    uint64
}

func newHazardTracker() *hazardTracker {
	return &hazardTracker{inflight: make(map[uint64][]bufferRead)}
}

func (h *hazardTracker) begin(submission uint64, reads []bufferRead) {
	h.mu.Lock()
	h.inflight[submission] = reads
	h.mu.Unlock()
}

func (h *hazardTracker) end(submission uint64) {
	h.mu.Lock()
	delete(h.inflight, submission)
	h.mu.Unlock()
}

func (h *hazardTracker) check(b *Buffer, rng metadata.MemoryRange) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, reads := range h.inflight {
		for _, r := range reads {
			if r.buffer == b && r.rng.Overlaps(rng) {
				h.count++
				core.LogWarn("write hazard: buffer %d bytes [%d,%d) are read by in-flight submission %d",
					b.id, rng.Offset, rng.End(), id)
				return true
			}
		}
	}
	return false
}

func (h *hazardTracker) total() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
