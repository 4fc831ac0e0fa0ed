package renderer

import (
	"image"
	"io"
	"testing"
	"time"

	"github.com/spaghettifunk/castle/engine/config"
	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/components"
	"github.com/spaghettifunk/castle/engine/renderer/frames"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/renderer/scene"
	"github.com/spaghettifunk/castle/engine/renderer/software"
	"github.com/spaghettifunk/castle/engine/waves"
)

func init() {
	core.SetLogOutput(io.Discard)
}

type fixture struct {
	device   *software.Device
	registry *scene.Registry
	renderer *Renderer
}

func newFixture(t *testing.T, framesInFlight int) *fixture {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	d, err := software.New(software.Options{Width: 64, Height: 48})
	if err != nil {
		t.Fatal(err)
	}
	grid, err := waves.New(16, 16, 1, 0.03, 4, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	geos, err := scene.BuildGeometries(d, grid)
	if err != nil {
		t.Fatal(err)
	}
	layout, err := scene.DefaultLayout()
	if err != nil {
		t.Fatal(err)
	}
	textures := make(map[string]metadata.Texture)
	for _, tl := range layout.Textures {
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		for i := range img.Pix {
			img.Pix[i] = 200
		}
		tex, err := d.CreateTexture(metadata.NewTextureDesc(tl.Name), img)
		if err != nil {
			t.Fatal(err)
		}
		textures[tl.Name] = tex
	}
	registry, err := scene.Build(geos, textures, layout)
	if err != nil {
		t.Fatal(err)
	}

	r, err := New(d, Options{
		FramesInFlight: framesInFlight,
		Registry:       registry,
		Camera:         components.NewOrbitCamera(cfg.Camera, 1),
		Grid:           grid,
		Weather:        waves.NewWeather(0.25, 0.2, 0.5, math.NewRandom(7)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		r.Destroy()
		registry.Destroy()
		d.Destroy()
	})
	return &fixture{device: d, registry: registry, renderer: r}
}

func (f *fixture) run(t *testing.T, n int, dt float32) []FrameStats {
	t.Helper()
	out := make([]FrameStats, 0, n)
	total := float32(0)
	for i := 0; i < n; i++ {
		total += dt
		st, err := f.renderer.Frame(FrameContext{TotalTime: total, DeltaTime: dt})
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		out = append(out, st)
	}
	return out
}

func TestFramesRenderWithoutHazards(t *testing.T) {
	f := newFixture(t, 3)
	items := len(f.registry.Items())

	stats := f.run(t, 12, 1.0/60.0)
	for i, st := range stats {
		if st.Fence != uint64(i+1) {
			t.Errorf("frame %d fence = %d", i, st.Fence)
		}
		if st.Slot != i%3 {
			t.Errorf("frame %d used slot %d", i, st.Slot)
		}
		if st.ItemsDrawn != items {
			t.Errorf("frame %d drew %d items", i, st.ItemsDrawn)
		}
	}
	if err := f.renderer.Flush(); err != nil {
		t.Fatal(err)
	}

	ds := f.device.Stats()
	if ds.Hazards != 0 {
		t.Errorf("%d write hazards", ds.Hazards)
	}
	if ds.Draws != uint64(12*items) || ds.Presents != 12 {
		t.Errorf("device saw %d draws and %d presents", ds.Draws, ds.Presents)
	}

	frame := f.device.Frame()
	sky := frame.RGBAAt(0, 0)
	if sky.R != 176 || sky.G != 196 || sky.B != 222 {
		t.Errorf("top left pixel = %v, want the clear colour", sky)
	}
	covered := 0
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			if frame.RGBAAt(x, y) != sky {
				covered++
			}
		}
	}
	if covered == 0 {
		t.Error("nothing was drawn over the clear colour")
	}
}

func TestStaleWritesConverge(t *testing.T) {
	f := newFixture(t, 3)
	items, materials := len(f.registry.Items()), len(f.registry.Materials())

	// Every slot starts empty; afterwards only the scrolling water
	// material changes from frame to frame.
	stats := f.run(t, 5, 0.01)
	want := []int{items + materials, items + materials, items + materials, 1, 1}
	for i, st := range stats {
		if st.StaleWrites != want[i] {
			t.Errorf("frame %d wrote %d entries, want %d", i, st.StaleWrites, want[i])
		}
	}

	h, _ := f.registry.FindItem("top")
	it := f.registry.Item(h)
	f.registry.SetWorld(h, math.NewMat4Translation(math.NewVec3(0, 20, 0)))

	ring := f.renderer.Ring()
	if n := ring.StaleSlots(frames.ENTITY_KIND_OBJECT, it.ObjCBIndex, it.Version); n != 3 {
		t.Fatalf("%d stale slots after the move, want 3", n)
	}
	for i := 0; i < 3; i++ {
		st := f.run(t, 1, 0.01)[0]
		if st.StaleWrites != 2 {
			t.Errorf("frame %d after the move wrote %d entries", i, st.StaleWrites)
		}
		if n := ring.StaleSlots(frames.ENTITY_KIND_OBJECT, it.ObjCBIndex, it.Version); n != 2-i {
			t.Errorf("%d stale slots after %d frames", n, i+1)
		}
	}
	if st := f.run(t, 1, 0.01)[0]; st.StaleWrites != 1 {
		t.Errorf("wrote %d entries once every slot caught up", st.StaleWrites)
	}

	// Every slot now holds the moved transform, transposed for the shader.
	if err := f.renderer.Flush(); err != nil {
		t.Fatal(err)
	}
	water, _ := f.registry.FindMaterial(scene.WaterMaterial)
	m := f.registry.Material(it.Material)
	for i := 0; i < ring.Len(); i++ {
		slot := ring.Slot(i)
		oc := readConstants[metadata.ObjectConstants](t, slot.ObjectCB.Resource(), slot.ObjectCB.Offset(it.ObjCBIndex))
		if oc.World != it.World.Transposed() {
			t.Errorf("slot %d world = %v, want %v", i, oc.World, it.World.Transposed())
		}
		if oc.TexTransform != it.TexTransform.Transposed() {
			t.Errorf("slot %d tex transform = %v", i, oc.TexTransform)
		}
		if it.Material == water {
			continue
		}
		mc := readConstants[metadata.MaterialConstants](t, slot.MaterialCB.Resource(), slot.MaterialCB.Offset(m.CBIndex))
		if mc.DiffuseAlbedo != m.DiffuseAlbedo || mc.Roughness != m.Roughness || mc.MatTransform != m.MatTransform.Transposed() {
			t.Errorf("slot %d material = %+v", i, mc)
		}
	}
}

// readConstants decodes a T from a software upload buffer at offset.
func readConstants[T any](t *testing.T, b metadata.Buffer, offset uint64) T {
	t.Helper()
	var out T
	buf, ok := b.(*software.Buffer)
	if !ok {
		t.Fatalf("buffer is %T", b)
	}
	if _, err := buf.ReadAt(metadata.AsBytes(&out), int64(offset)); err != nil {
		t.Fatalf("read at %d: %v", offset, err)
	}
	return out
}

func TestWaterFollowsSlot(t *testing.T) {
	f := newFixture(t, 2)
	mh, ok := f.registry.FindMesh(scene.WaterGeometry)
	if !ok {
		t.Fatal("no water mesh")
	}
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		st := f.run(t, 1, 0.05)[0]
		seen[st.Slot] = true
		want := f.renderer.Ring().Slot(st.Slot).WavesVB.Resource()
		if f.registry.Mesh(mh).VertexBuffer != want {
			t.Errorf("frame %d: water drawn from another slot", st.Frame)
		}
	}
	if len(seen) != 2 {
		t.Errorf("frames used %d slots, want 2", len(seen))
	}
}

func TestAnimateMaterialsWraps(t *testing.T) {
	f := newFixture(t, 2)
	h, _ := f.registry.FindMaterial(scene.WaterMaterial)
	water := f.registry.Material(h)
	version := water.Version

	for i := 0; i < 3; i++ {
		f.renderer.animateMaterials(4)
	}
	if tu := water.MatTransform.At(3, 0); math.Abs(tu-0.2) > 1e-5 {
		t.Errorf("u offset = %f, want 0.2", tu)
	}
	if tv := water.MatTransform.At(3, 1); math.Abs(tv-0.24) > 1e-5 {
		t.Errorf("v offset = %f, want 0.24", tv)
	}
	if water.Version != version+3 {
		t.Errorf("version %d, want %d", water.Version, version+3)
	}
}

func TestCastleLights(t *testing.T) {
	pc := metadata.NewPassConstants()
	castleLights(&pc)

	if pc.Lights[0].Strength != math.NewVec3(0.2, 0.1, 0) {
		t.Errorf("directional strength = %v", pc.Lights[0].Strength)
	}
	for i := 1; i <= 4; i++ {
		l := pc.Lights[i]
		if math.Abs(l.Position.X) != 9 || l.Position.Y != 13 || math.Abs(l.Position.Z) != 9 || l.SpotPower != 0.35 {
			t.Errorf("column light %d = %+v", i, l)
		}
	}
	if pc.Lights[5].Strength != math.NewVec3(1, 0, 0) || pc.Lights[5].Position.Y != 18 {
		t.Errorf("keep light = %+v", pc.Lights[5])
	}
}

func TestFrameBlocksOnBusySlot(t *testing.T) {
	f := newFixture(t, 2)
	q := f.device.SoftwareQueue()

	q.Pause()
	f.run(t, 2, 0.01)

	done := make(chan FrameStats, 1)
	go func() {
		st, err := f.renderer.Frame(FrameContext{TotalTime: 0.03, DeltaTime: 0.01})
		if err != nil {
			t.Error(err)
		}
		done <- st
	}()

	select {
	case <-done:
		t.Fatal("third frame did not wait for the first slot")
	case <-time.After(50 * time.Millisecond):
	}
	q.Resume()

	select {
	case st := <-done:
		if !st.Waited || st.Slot != 0 {
			t.Errorf("third frame = %+v", st)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("third frame never finished")
	}
}

func TestResizeAndWireframe(t *testing.T) {
	f := newFixture(t, 3)
	f.run(t, 2, 0.01)

	if err := f.renderer.Resize(32, 32); err != nil {
		t.Fatal(err)
	}
	if w, h := f.device.BackBufferSize(); w != 32 || h != 32 {
		t.Errorf("back buffer %dx%d", w, h)
	}
	if a := f.renderer.camera.Aspect(); a != 1 {
		t.Errorf("aspect = %f", a)
	}
	if err := f.renderer.Resize(0, 10); err != nil {
		t.Errorf("minimized resize: %v", err)
	}

	if _, err := f.renderer.Frame(FrameContext{TotalTime: 1, DeltaTime: 0.01, Wireframe: true}); err != nil {
		t.Fatalf("wireframe frame: %v", err)
	}
	if err := f.renderer.Flush(); err != nil {
		t.Fatal(err)
	}
	if f.device.Frame().Bounds().Dx() != 32 {
		t.Error("presented frame kept the old size")
	}
}
