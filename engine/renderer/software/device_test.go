package software

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"io"
	"testing"
	"time"

	"golang.org/x/image/bmp"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	d, err := New(Options{Width: 64, Height: 48})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Destroy() })
	return d
}

func TestFenceWaitsForSignal(t *testing.T) {
	d := newTestDevice(t)
	f, _ := d.CreateFence(0)
	q := d.SoftwareQueue()

	q.Pause()
	if err := q.Signal(f, 5); err != nil {
		t.Fatal(err)
	}
	if got := f.CompletedValue(); got != 0 {
		t.Fatalf("paused queue signalled fence to %d", got)
	}

	done := make(chan error, 1)
	go func() { done <- f.Wait(5) }()
	select {
	case <-done:
		t.Fatal("Wait returned while the executor was paused")
	case <-time.After(50 * time.Millisecond):
	}

	q.Resume()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Resume")
	}
	if got := f.CompletedValue(); got != 5 {
		t.Errorf("completed = %d, want 5", got)
	}
}

func TestFenceNeverGoesBackwards(t *testing.T) {
	d := newTestDevice(t)
	f, _ := d.CreateFence(0)
	q := d.Queue()
	q.Signal(f, 7)
	q.Signal(f, 3)
	if err := f.Wait(7); err != nil {
		t.Fatal(err)
	}
	if err := d.WaitIdle(); err != nil {
		t.Fatal(err)
	}
	if got := f.CompletedValue(); got != 7 {
		t.Errorf("completed = %d, want 7", got)
	}
}

func TestDestroyReleasesWaiters(t *testing.T) {
	d, err := New(Options{Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	f, _ := d.CreateFence(0)
	done := make(chan error, 1)
	go func() { done <- f.Wait(1) }()
	time.Sleep(10 * time.Millisecond)
	d.Destroy()

	select {
	case err := <-done:
		if !errors.Is(err, core.ErrDeviceLost) {
			t.Errorf("Wait = %v, want ErrDeviceLost", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by Destroy")
	}
}

func TestStaticBufferIsNotMappable(t *testing.T) {
	d := newTestDevice(t)
	b, _ := d.CreateStaticBuffer(metadata.BUFFER_USAGE_VERTEX, make([]byte, 16))
	if err := b.Write(0, []byte{1}); !errors.Is(err, core.ErrBufferNotMappable) {
		t.Errorf("Write = %v, want ErrBufferNotMappable", err)
	}
	u, _ := d.CreateUploadBuffer(16)
	if err := u.Write(10, make([]byte, 8)); !errors.Is(err, core.ErrBufferOverflow) {
		t.Errorf("Write = %v, want ErrBufferOverflow", err)
	}
}

type testScene struct {
	pass     metadata.Buffer
	object   metadata.Buffer
	material metadata.Buffer
	vertices metadata.Buffer
	indices  metadata.Buffer
	pso      metadata.Pipeline
	list     metadata.CommandList
	alloc    metadata.CommandAllocator
}

func newTestScene(t *testing.T, d *Device, tri []metadata.Vertex, pso metadata.PipelineDesc) *testScene {
	t.Helper()
	s := &testScene{}
	var err error

	pc := metadata.NewPassConstants()
	pc.AmbientLight = math.NewVec4(1, 1, 1, 1)
	s.pass, _ = d.CreateUploadBuffer(metadata.GetAligned(metadata.SizeOf[metadata.PassConstants](), 256))
	s.pass.Write(0, metadata.AsBytes(&pc))

	oc := metadata.ObjectConstants{World: math.NewMat4Identity(), TexTransform: math.NewMat4Identity()}
	s.object, _ = d.CreateUploadBuffer(256)
	s.object.Write(0, metadata.AsBytes(&oc))

	mc := metadata.NewMaterialConstants()
	mc.DiffuseAlbedo = math.NewVec4(1, 0, 0, 1)
	s.material, _ = d.CreateUploadBuffer(256)
	s.material.Write(0, metadata.AsBytes(&mc))

	s.vertices, _ = d.CreateStaticBuffer(metadata.BUFFER_USAGE_VERTEX, metadata.SliceBytes(tri))
	idx := []uint32{0, 1, 2}
	s.indices, _ = d.CreateStaticBuffer(metadata.BUFFER_USAGE_INDEX, metadata.SliceBytes(idx))

	if s.pso, err = d.CreatePipeline(pso); err != nil {
		t.Fatal(err)
	}
	s.alloc, _ = d.CreateCommandAllocator()
	s.list, _ = d.CreateCommandList()
	return s
}

func (s *testScene) record(t *testing.T, clear math.Vec4) {
	t.Helper()
	if err := s.alloc.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := s.list.Reset(s.alloc, s.pso); err != nil {
		t.Fatal(err)
	}
	s.list.SetViewport(metadata.Viewport{Width: 64, Height: 48, MaxDepth: 1})
	s.list.BeginFrame(clear)
	s.list.SetPassConstants(s.pass, 0)
	s.list.SetVertexBuffer(metadata.VertexBufferView{Buffer: s.vertices, Size: s.vertices.Size(), Stride: 32})
	s.list.SetIndexBuffer(metadata.IndexBufferView{Buffer: s.indices, Size: s.indices.Size()})
	s.list.SetPrimitiveTopology(metadata.PRIMITIVE_TOPOLOGY_TRIANGLE_LIST)
	s.list.SetObjectConstants(s.object, 0)
	s.list.SetMaterialConstants(s.material, 0)
	s.list.DrawIndexedInstanced(3, 1, 0, 0, 0)
	s.list.EndFrame()
	if err := s.list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

// clockwise on screen: lower left, top, lower right
func frontTriangle() []metadata.Vertex {
	n := math.NewVec3(0, 0, -1)
	return []metadata.Vertex{
		{Pos: math.NewVec3(-0.5, -0.5, 0.5), Normal: n},
		{Pos: math.NewVec3(0, 0.5, 0.5), Normal: n},
		{Pos: math.NewVec3(0.5, -0.5, 0.5), Normal: n},
	}
}

func unlitPipeline() metadata.PipelineDesc {
	return metadata.PipelineDesc{Name: "unlit", CullMode: metadata.FaceCullModeBack}
}

func TestDrawTriangle(t *testing.T) {
	d := newTestDevice(t)
	s := newTestScene(t, d, frontTriangle(), unlitPipeline())
	clear := math.NewVec4(0, 0, 1, 1)

	s.record(t, clear)
	if err := d.Queue().Execute(s.list); err != nil {
		t.Fatal(err)
	}
	d.Queue().Present()
	if err := d.WaitIdle(); err != nil {
		t.Fatal(err)
	}

	frame := d.Frame()
	if got := frame.RGBAAt(32, 24); got != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("centre = %v, want red", got)
	}
	if got := frame.RGBAAt(0, 0); got != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("corner = %v, want the clear colour", got)
	}
	st := d.Stats()
	if st.Draws != 1 || st.Triangles != 1 || st.Presents != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestBackFacesAreCulled(t *testing.T) {
	d := newTestDevice(t)
	tri := frontTriangle()
	tri[1], tri[2] = tri[2], tri[1]
	s := newTestScene(t, d, tri, unlitPipeline())

	s.record(t, math.NewVec4(0, 0, 1, 1))
	d.Queue().Execute(s.list)
	d.Queue().Present()
	d.WaitIdle()

	if got := d.Frame().RGBAAt(32, 24); got != (color.RGBA{B: 255, A: 255}) {
		t.Errorf("back face drawn: centre = %v", got)
	}
}

func TestAllocatorInUse(t *testing.T) {
	d := newTestDevice(t)
	s := newTestScene(t, d, frontTriangle(), unlitPipeline())
	q := d.SoftwareQueue()

	q.Pause()
	s.record(t, math.NewVec4(0, 0, 0, 1))
	if err := q.Execute(s.list); err != nil {
		t.Fatal(err)
	}
	if err := s.alloc.Reset(); !errors.Is(err, core.ErrAllocatorInUse) {
		t.Errorf("Reset = %v, want ErrAllocatorInUse", err)
	}
	q.Resume()
	d.WaitIdle()
	if err := s.alloc.Reset(); err != nil {
		t.Errorf("Reset after idle = %v", err)
	}
}

func TestWriteHazardIsCounted(t *testing.T) {
	d := newTestDevice(t)
	s := newTestScene(t, d, frontTriangle(), unlitPipeline())
	q := d.SoftwareQueue()

	q.Pause()
	s.record(t, math.NewVec4(0, 0, 0, 1))
	q.Execute(s.list)

	// outside the 128 bytes the draw reads
	s.object.Write(200, []byte{1, 2, 3})
	if got := d.Stats().Hazards; got != 0 {
		t.Fatalf("disjoint write counted as hazard (%d)", got)
	}
	oc := metadata.ObjectConstants{World: math.NewMat4Scale(math.NewVec3(2, 2, 2)), TexTransform: math.NewMat4Identity()}
	s.object.Write(0, metadata.AsBytes(&oc))
	if got := d.Stats().Hazards; got != 1 {
		t.Errorf("hazards = %d, want 1", got)
	}

	q.Resume()
	d.WaitIdle()
	s.object.Write(0, metadata.AsBytes(&oc))
	if got := d.Stats().Hazards; got != 1 {
		t.Errorf("write after completion counted: %d", got)
	}
}

func TestRecordingErrors(t *testing.T) {
	d := newTestDevice(t)
	s := newTestScene(t, d, frontTriangle(), unlitPipeline())

	if err := s.list.Reset(s.alloc, s.pso); err != nil {
		t.Fatal(err)
	}
	s.list.DrawIndexedInstanced(3, 1, 0, 0, 0)
	if err := s.list.Close(); !errors.Is(err, core.ErrListNotRecording) {
		t.Errorf("draw outside frame: Close = %v", err)
	}
	if err := d.Queue().Execute(s.list); err == nil {
		t.Error("Execute accepted a list that failed to record")
	}
	if err := s.list.Close(); !errors.Is(err, core.ErrListNotRecording) {
		t.Errorf("double Close = %v", err)
	}
}

func TestScreenshotIsBMP(t *testing.T) {
	d, err := New(Options{Width: 64, Height: 48, HUD: true})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Destroy()

	alloc, _ := d.CreateCommandAllocator()
	list, _ := d.CreateCommandList()
	list.Reset(alloc, nil)
	list.BeginFrame(math.NewVec4(0.69, 0.77, 0.87, 1))
	list.EndFrame()
	if err := list.Close(); err != nil {
		t.Fatal(err)
	}
	d.SetOverlay("fps 60")
	d.Queue().Execute(list)
	d.Queue().Present()
	d.WaitIdle()

	var buf bytes.Buffer
	if err := d.Screenshot(&buf); err != nil {
		t.Fatal(err)
	}
	img, err := bmp.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 64, 48) {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestResize(t *testing.T) {
	d := newTestDevice(t)
	if err := d.Resize(32, 16); err != nil {
		t.Fatal(err)
	}
	w, h := d.BackBufferSize()
	if w != 32 || h != 16 {
		t.Errorf("size = %dx%d", w, h)
	}
	if got := d.Frame().Bounds(); got != image.Rect(0, 0, 32, 16) {
		t.Errorf("frame bounds = %v", got)
	}
}
