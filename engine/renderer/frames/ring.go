// Package frames implements the ring of per-frame resources that lets the
// CPU prepare frame n+1 while the GPU is still drawing frame n.
package frames

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

var ErrRingTooSmall = errors.New("a frame ring needs at least two slots")

type RingConfig struct {
	Frames       int
	Objects      int
	Materials    int
	WaveVertices int
}

type Stats struct {
	Acquires uint64
	Waits    uint64
	WaitTime time.Duration

	LastWaited   bool
	LastWaitTime time.Duration
}

/**
 * @brief A fixed ring of frame slots guarded by a single device fence.
 * Acquire is the only place the CPU blocks on the GPU.
 */
type Ring struct {
	queue metadata.Queue
	fence metadata.Fence

	slots   []*Slot
	index   int
	current uint64

	stats Stats
}

func NewRing(device metadata.Device, cfg RingConfig) (*Ring, error) {
	if cfg.Frames < 2 {
		err := fmt.Errorf("%d frames requested: %w", cfg.Frames, ErrRingTooSmall)
		core.LogError("%s", err)
		return nil, err
	}

	fence, err := device.CreateFence(0)
	if err != nil {
		err = fmt.Errorf("failed to create frame fence: %w", err)
		core.LogError("%s", err)
		return nil, err
	}

	r := &Ring{
		queue: device.Queue(),
		fence: fence,
		slots: make([]*Slot, 0, cfg.Frames),
		// the first Acquire lands on slot 0
		index: cfg.Frames - 1,
	}
	for i := 0; i < cfg.Frames; i++ {
		s, err := newSlot(i, device, cfg)
		if err != nil {
			core.LogError("%s", err)
			r.release()
			return nil, err
		}
		r.slots = append(r.slots, s)
	}

	core.LogInfo("frame ring created with %d slots (%d objects, %d materials, %d wave vertices)",
		cfg.Frames, cfg.Objects, cfg.Materials, cfg.WaveVertices)
	return r, nil
}

// Acquire moves to the next slot and waits until the GPU has finished the
// commands that last used it.
func (r *Ring) Acquire() (*Slot, error) {
	r.index = (r.index + 1) % len(r.slots)
	slot := r.slots[r.index]

	r.stats.Acquires++
	r.stats.LastWaited = false
	r.stats.LastWaitTime = 0

	if slot.Fence != 0 && r.fence.CompletedValue() < slot.Fence {
		start := time.Now()
		if err := r.fence.Wait(slot.Fence); err != nil {
			err = fmt.Errorf("waiting for slot %d fence %d: %w", slot.Index, slot.Fence, err)
			core.LogError("%s", err)
			return nil, err
		}
		waited := time.Since(start)
		r.stats.Waits++
		r.stats.WaitTime += waited
		r.stats.LastWaited = true
		r.stats.LastWaitTime = waited
		core.LogDebug("slot %d waited %s for fence %d", slot.Index, waited, slot.Fence)
	}
	return slot, nil
}

// Publish stamps the slot with a new fence value and asks the queue to
// signal it once the work submitted so far completes.
func (r *Ring) Publish(slot *Slot) (uint64, error) {
	r.current++
	slot.Fence = r.current
	if err := r.queue.Signal(r.fence, slot.Fence); err != nil {
		err = fmt.Errorf("signal of fence %d failed: %w", slot.Fence, err)
		core.LogError("%s", err)
		return 0, err
	}
	return slot.Fence, nil
}

// Flush blocks until the GPU has executed everything submitted so far.
func (r *Ring) Flush() error {
	r.current++
	target := r.current
	if err := r.queue.Signal(r.fence, target); err != nil {
		err = fmt.Errorf("signal of flush fence %d failed: %w", target, err)
		core.LogError("%s", err)
		return err
	}
	if err := r.fence.Wait(target); err != nil {
		err = fmt.Errorf("flush wait for fence %d failed: %w", target, err)
		core.LogError("%s", err)
		return err
	}
	return nil
}

// StaleSlots counts the slots that still hold an older version of an entity.
func (r *Ring) StaleSlots(kind EntityKind, index int, version uint64) int {
	stale := 0
	for _, s := range r.slots {
		if s.IsStale(kind, index, version) {
			stale++
		}
	}
	return stale
}

func (r *Ring) Current() uint64 { return r.current }

func (r *Ring) Completed() uint64 { return r.fence.CompletedValue() }

func (r *Ring) Len() int { return len(r.slots) }

func (r *Ring) Slot(i int) *Slot { return r.slots[i] }

func (r *Ring) Stats() Stats { return r.stats }

// Destroy flushes the queue and frees every slot.
func (r *Ring) Destroy() error {
	err := r.Flush()
	r.release()
	core.LogInfo("frame ring destroyed")
	return err
}

func (r *Ring) release() {
	for _, s := range r.slots {
		s.destroy()
	}
	r.slots = nil
	if r.fence != nil {
		r.fence.Destroy()
		r.fence = nil
	}
}
