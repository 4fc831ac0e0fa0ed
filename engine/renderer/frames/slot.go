package frames

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// EntityKind selects which version table of a slot is addressed.
type EntityKind int

const (
	ENTITY_KIND_OBJECT EntityKind = iota
	ENTITY_KIND_MATERIAL
)

/**
 * @brief The per-frame resources the CPU fills while the GPU may still be
 * reading the other slots. The CPU only writes a slot once the device fence
 * has passed its Fence value.
 */
type Slot struct {
	Index int

	Allocator  metadata.CommandAllocator
	ObjectCB   *UploadBuffer[metadata.ObjectConstants]
	MaterialCB *UploadBuffer[metadata.MaterialConstants]
	PassCB     *UploadBuffer[metadata.PassConstants]
	WavesVB    *UploadBuffer[metadata.Vertex]

	/** @brief Fence value stamped at the last submission. 0 means never submitted. */
	Fence uint64

	objectVersions   []uint64
	materialVersions []uint64
}

func newSlot(index int, device metadata.Device, cfg RingConfig) (*Slot, error) {
	s := &Slot{
		Index:            index,
		objectVersions:   make([]uint64, cfg.Objects),
		materialVersions: make([]uint64, cfg.Materials),
	}

	var err error
	defer func() {
		if err != nil {
			s.destroy()
		}
	}()
	if s.Allocator, err = device.CreateCommandAllocator(); err != nil {
		return nil, fmt.Errorf("slot %d: %w", index, err)
	}
	if s.PassCB, err = NewUploadBuffer[metadata.PassConstants](device, 1, true); err != nil {
		return nil, fmt.Errorf("slot %d pass constants: %w", index, err)
	}
	if s.ObjectCB, err = NewUploadBuffer[metadata.ObjectConstants](device, cfg.Objects, true); err != nil {
		return nil, fmt.Errorf("slot %d object constants: %w", index, err)
	}
	if s.MaterialCB, err = NewUploadBuffer[metadata.MaterialConstants](device, cfg.Materials, true); err != nil {
		return nil, fmt.Errorf("slot %d material constants: %w", index, err)
	}
	if s.WavesVB, err = NewUploadBuffer[metadata.Vertex](device, cfg.WaveVertices, false); err != nil {
		return nil, fmt.Errorf("slot %d wave vertices: %w", index, err)
	}
	return s, nil
}

func (s *Slot) versions(kind EntityKind) []uint64 {
	if kind == ENTITY_KIND_MATERIAL {
		return s.materialVersions
	}
	return s.objectVersions
}

// Version is the entity version last written into this slot.
func (s *Slot) Version(kind EntityKind, index int) uint64 {
	v := s.versions(kind)
	if index < 0 || index >= len(v) {
		return 0
	}
	return v[index]
}

func (s *Slot) SetVersion(kind EntityKind, index int, version uint64) {
	v := s.versions(kind)
	if index < 0 || index >= len(v) {
		return
	}
	v[index] = version
}

// IsStale reports whether the slot holds an older copy of the entity.
func (s *Slot) IsStale(kind EntityKind, index int, version uint64) bool {
	return s.Version(kind, index) != version
}

func (s *Slot) destroy() {
	for _, b := range []interface{ Destroy() }{s.ObjectCB, s.MaterialCB, s.PassCB, s.WavesVB} {
		if b != nil {
			b.Destroy()
		}
	}
	if s.Allocator != nil {
		s.Allocator.Destroy()
	}
}
