package frames

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/renderer/software"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func newTestRing(t *testing.T, frames int) (*Ring, *software.Device) {
	t.Helper()
	d, err := software.New(software.Options{Width: 16, Height: 16})
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRing(d, RingConfig{Frames: frames, Objects: 4, Materials: 2, WaveVertices: 81})
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	t.Cleanup(func() {
		d.SoftwareQueue().Resume()
		r.Destroy()
		d.Destroy()
	})
	return r, d
}

// readObject decodes the object constants a slot holds at index i.
func readObject(t *testing.T, s *Slot, i int) metadata.ObjectConstants {
	t.Helper()
	var oc metadata.ObjectConstants
	buf, ok := s.ObjectCB.Resource().(*software.Buffer)
	if !ok {
		t.Fatalf("slot %d object buffer is %T", s.Index, s.ObjectCB.Resource())
	}
	if _, err := buf.ReadAt(metadata.AsBytes(&oc), int64(s.ObjectCB.Offset(i))); err != nil {
		t.Fatalf("slot %d read object %d: %v", s.Index, i, err)
	}
	return oc
}

func TestRingNeedsTwoSlots(t *testing.T) {
	d, err := software.New(software.Options{Width: 4, Height: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Destroy()
	for _, n := range []int{-1, 0, 1} {
		if _, err := NewRing(d, RingConfig{Frames: n, Objects: 1, Materials: 1, WaveVertices: 1}); !errors.Is(err, ErrRingTooSmall) {
			t.Errorf("Frames=%d: err = %v, want ErrRingTooSmall", n, err)
		}
	}
}

func TestFirstAcquireNeverWaits(t *testing.T) {
	for _, n := range []int{2, 3, 4, 6} {
		r, d := newTestRing(t, n)
		// A stalled GPU must not matter while every slot is fresh.
		d.SoftwareQueue().Pause()
		for i := 0; i < n; i++ {
			s, err := r.Acquire()
			if err != nil {
				t.Fatalf("N=%d acquire %d: %v", n, i, err)
			}
			if s.Index != i {
				t.Errorf("N=%d acquire %d returned slot %d", n, i, s.Index)
			}
			if s.Fence != 0 {
				t.Errorf("N=%d fresh slot has fence %d", n, s.Fence)
			}
		}
		if w := r.Stats().Waits; w != 0 {
			t.Errorf("N=%d: %d waits on fresh slots", n, w)
		}
		d.SoftwareQueue().Resume()
	}
}

func TestAcquireBlocksUntilGPUCatchesUp(t *testing.T) {
	r, d := newTestRing(t, 3)
	q := d.SoftwareQueue()
	q.Pause()

	for i := 0; i < 3; i++ {
		s, err := r.Acquire()
		if err != nil {
			t.Fatal(err)
		}
		if _, err := r.Publish(s); err != nil {
			t.Fatal(err)
		}
	}
	if r.Completed() != 0 {
		t.Fatalf("paused GPU completed fence %d", r.Completed())
	}

	type result struct {
		slot *Slot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		s, err := r.Acquire()
		done <- result{s, err}
	}()

	select {
	case <-done:
		t.Fatal("Acquire returned while the slot was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	q.Resume()
	select {
	case res := <-done:
		if res.err != nil {
			t.Fatal(res.err)
		}
		if res.slot.Index != 0 {
			t.Errorf("wrapped to slot %d, want 0", res.slot.Index)
		}
		if r.Completed() < res.slot.Fence {
			t.Errorf("slot fence %d not reached (completed %d)", res.slot.Fence, r.Completed())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire still blocked after Resume")
	}

	st := r.Stats()
	if st.Waits != 1 || !st.LastWaited {
		t.Errorf("stats = %+v, want one wait", st)
	}
}

func TestPublishIsStrictlyIncreasing(t *testing.T) {
	r, _ := newTestRing(t, 3)
	var last uint64
	for i := 0; i < 20; i++ {
		s, err := r.Acquire()
		if err != nil {
			t.Fatal(err)
		}
		v, err := r.Publish(s)
		if err != nil {
			t.Fatal(err)
		}
		if v <= last {
			t.Fatalf("frame %d fence %d not above %d", i, v, last)
		}
		if s.Fence != v || r.Current() != v {
			t.Errorf("frame %d: slot fence %d, current %d, published %d", i, s.Fence, r.Current(), v)
		}
		last = v
		if i == 9 {
			if err := r.Flush(); err != nil {
				t.Fatal(err)
			}
			if r.Completed() != r.Current() {
				t.Errorf("after Flush completed %d, current %d", r.Completed(), r.Current())
			}
			last = r.Current()
		}
	}
}

func TestConstantBufferStride(t *testing.T) {
	r, _ := newTestRing(t, 2)
	s := r.Slot(0)

	check := func(name string, stride, size uint64) {
		if stride%256 != 0 || stride < size || stride-size >= 256 {
			t.Errorf("%s stride %d for %d bytes", name, stride, size)
		}
	}
	check("object", s.ObjectCB.Stride(), metadata.SizeOf[metadata.ObjectConstants]())
	check("material", s.MaterialCB.Stride(), metadata.SizeOf[metadata.MaterialConstants]())
	check("pass", s.PassCB.Stride(), metadata.SizeOf[metadata.PassConstants]())

	if s.WavesVB.Stride() != 32 {
		t.Errorf("vertex stride = %d, want 32", s.WavesVB.Stride())
	}
	for i := 0; i < s.ObjectCB.Len(); i++ {
		if s.ObjectCB.Offset(i) != uint64(i)*s.ObjectCB.Stride() {
			t.Errorf("offset(%d) = %d", i, s.ObjectCB.Offset(i))
		}
	}
	if s.ObjectCB.Resource().Size() != 4*s.ObjectCB.Stride() {
		t.Errorf("object buffer is %d bytes", s.ObjectCB.Resource().Size())
	}
}

func TestUploadBufferBounds(t *testing.T) {
	r, _ := newTestRing(t, 2)
	s := r.Slot(1)
	oc := metadata.ObjectConstants{World: math.NewMat4Identity()}
	if err := s.ObjectCB.CopyData(4, &oc); !errors.Is(err, core.ErrBufferOverflow) {
		t.Errorf("CopyData past end = %v", err)
	}
	if err := s.WavesVB.CopyRange(80, make([]metadata.Vertex, 2)); !errors.Is(err, core.ErrBufferOverflow) {
		t.Errorf("CopyRange past end = %v", err)
	}
	if err := s.WavesVB.CopyRange(0, make([]metadata.Vertex, 81)); err != nil {
		t.Errorf("CopyRange full = %v", err)
	}
}

// TestDirtyConvergence drives the version protocol the update pass uses:
// a slot rewrites an entity only while it holds an older version.
func TestDirtyConvergence(t *testing.T) {
	for _, n := range []int{2, 3, 5} {
		r, _ := newTestRing(t, n)
		version := uint64(1)
		writes := 0

		frame := func() {
			s, err := r.Acquire()
			if err != nil {
				t.Fatal(err)
			}
			if s.IsStale(ENTITY_KIND_OBJECT, 2, version) {
				oc := metadata.ObjectConstants{World: math.NewMat4Translation(math.NewVec3(float32(version), 0, 0))}
				if err := s.ObjectCB.CopyData(2, &oc); err != nil {
					t.Fatal(err)
				}
				s.SetVersion(ENTITY_KIND_OBJECT, 2, version)
				writes++
			}
			if _, err := r.Publish(s); err != nil {
				t.Fatal(err)
			}
		}

		for i := 0; i < n; i++ {
			frame()
		}
		if got := r.StaleSlots(ENTITY_KIND_OBJECT, 2, version); got != 0 {
			t.Fatalf("N=%d initial upload left %d stale slots", n, got)
		}

		version++
		writes = 0
		for i := 0; i < n; i++ {
			if got := r.StaleSlots(ENTITY_KIND_OBJECT, 2, version); got != n-i {
				t.Errorf("N=%d after %d frames: %d stale, want %d", n, i, got, n-i)
			}
			frame()
		}
		if got := r.StaleSlots(ENTITY_KIND_OBJECT, 2, version); got != 0 {
			t.Errorf("N=%d: %d stale slots after N frames", n, got)
		}
		if writes != n {
			t.Errorf("N=%d: %d writes, want one per slot", n, writes)
		}
		if err := r.Flush(); err != nil {
			t.Fatal(err)
		}
		want := math.NewMat4Translation(math.NewVec3(float32(version), 0, 0))
		for i := 0; i < n; i++ {
			if v := r.Slot(i).Version(ENTITY_KIND_OBJECT, 2); v != version {
				t.Errorf("N=%d slot %d holds version %d", n, i, v)
			}
			if got := readObject(t, r.Slot(i), 2).World; got != want {
				t.Errorf("N=%d slot %d world = %v, want %v", n, i, got, want)
			}
		}
		// A further frame is a no-op.
		frame()
		if writes != n {
			t.Errorf("N=%d: converged entity rewritten", n)
		}
	}
}

// countingDevice fails the upload buffer with index failAt and tracks what
// is still alive.
type countingDevice struct {
	metadata.Device
	failAt  int
	created int
	live    int
}

type countedBuffer struct {
	metadata.Buffer
	d *countingDevice
}

func (b *countedBuffer) Destroy() {
	b.d.live--
	b.Buffer.Destroy()
}

type countedAllocator struct {
	metadata.CommandAllocator
	d *countingDevice
}

func (a *countedAllocator) Destroy() {
	a.d.live--
	a.CommandAllocator.Destroy()
}

var errOutOfMemory = errors.New("out of device memory")

func (d *countingDevice) CreateUploadBuffer(size uint64) (metadata.Buffer, error) {
	if d.created == d.failAt {
		return nil, errOutOfMemory
	}
	d.created++
	b, err := d.Device.CreateUploadBuffer(size)
	if err != nil {
		return nil, err
	}
	d.live++
	return &countedBuffer{Buffer: b, d: d}, nil
}

func (d *countingDevice) CreateCommandAllocator() (metadata.CommandAllocator, error) {
	a, err := d.Device.CreateCommandAllocator()
	if err != nil {
		return nil, err
	}
	d.live++
	return &countedAllocator{CommandAllocator: a, d: d}, nil
}

func TestNewRingReleasesPartialSlot(t *testing.T) {
	// each slot owns four upload buffers; fail inside every position of
	// the second slot as well as the first
	for failAt := 0; failAt < 8; failAt++ {
		sd, err := software.New(software.Options{Width: 4, Height: 4})
		if err != nil {
			t.Fatal(err)
		}
		d := &countingDevice{Device: sd, failAt: failAt}
		r, err := NewRing(d, RingConfig{Frames: 2, Objects: 2, Materials: 1, WaveVertices: 9})
		if !errors.Is(err, errOutOfMemory) {
			t.Fatalf("failAt %d: NewRing() = %v, %v", failAt, r, err)
		}
		if d.live != 0 {
			t.Errorf("failAt %d: %d resources leaked", failAt, d.live)
		}
		sd.Destroy()
	}
}
