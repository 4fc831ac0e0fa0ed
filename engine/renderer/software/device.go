// Package software is a CPU implementation of the graphics device. A single
// executor goroutine stands in for the GPU: submitted command lists run
// asynchronously and fences are signalled when it gets to them.
package software

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"golang.org/x/image/draw"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

// ConstantBufferAlignment matches the 256 byte rule of desktop GPUs.
const ConstantBufferAlignment uint64 = 256

type Options struct {
	Width  uint32
	Height uint32
	// HUD draws the overlay text on every presented frame.
	HUD  bool
	Font TextDrawer
}

type Stats struct {
	Submissions uint64
	Draws       uint64
	Triangles   uint64
	Presents    uint64
	Hazards     uint64
}

type counters struct {
	submissions atomic.Uint64
	draws       atomic.Uint64
	triangles   atomic.Uint64
	presents    atomic.Uint64
}

type Device struct {
	width  uint32
	height uint32

	queue   *Queue
	hazards *hazardTracker
	stats   counters

	// owned by the executor goroutine
	backBuffer *image.RGBA
	depth      []float32

	presentMu sync.Mutex
	presented *image.RGBA
	overlay   []string
	hud       bool
	font      TextDrawer

	fencesMu sync.Mutex
	fences   []*Fence

	nextID    atomic.Uint64
	destroyed atomic.Bool
}

func New(opts Options) (*Device, error) {
	if opts.Width == 0 || opts.Height == 0 {
		return nil, fmt.Errorf("software device needs a non-empty back buffer, got %dx%d", opts.Width, opts.Height)
	}
	d := &Device{
		hazards: newHazardTracker(),
		hud:     opts.HUD,
		font:    opts.Font,
	}
	if d.font == nil {
		d.font = NewBasicFont()
	}
	d.allocateTargets(opts.Width, opts.Height)
	d.queue = newQueue(d)

	core.LogInfo("software device created (%dx%d)", opts.Width, opts.Height)
	return d, nil
}

func (d *Device) allocateTargets(width, height uint32) {
	d.width, d.height = width, height
	d.backBuffer = image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	d.depth = make([]float32, int(width)*int(height))
	d.presentMu.Lock()
	d.presented = image.NewRGBA(d.backBuffer.Bounds())
	d.presentMu.Unlock()
}

func (d *Device) nextSubmission() uint64 {
	return d.nextID.Add(1)
}

func (d *Device) Name() string { return "software" }

func (d *Device) ConstantBufferAlignment() uint64 { return ConstantBufferAlignment }

func (d *Device) CreateUploadBuffer(size uint64) (metadata.Buffer, error) {
	return d.newBuffer(metadata.BUFFER_USAGE_UPLOAD, make([]byte, size)), nil
}

func (d *Device) CreateStaticBuffer(usage metadata.BufferUsage, data []byte) (metadata.Buffer, error) {
	owned := make([]byte, len(data))
	copy(owned, data)
	return d.newBuffer(usage, owned), nil
}

func (d *Device) newBuffer(usage metadata.BufferUsage, data []byte) *Buffer {
	return &Buffer{
		id:     d.nextID.Add(1),
		usage:  usage,
		data:   data,
		device: d,
	}
}

func (d *Device) CreateTexture(desc metadata.TextureDesc, pixels *image.RGBA) (metadata.Texture, error) {
	if pixels == nil || pixels.Bounds().Empty() {
		return nil, fmt.Errorf("texture '%s' has no pixels", desc.Name)
	}
	img := image.NewRGBA(image.Rect(0, 0, pixels.Bounds().Dx(), pixels.Bounds().Dy()))
	draw.Copy(img, image.Point{}, pixels, pixels.Bounds(), draw.Src, nil)
	return &Texture{desc: desc, img: img}, nil
}

func (d *Device) CreatePipeline(desc metadata.PipelineDesc) (metadata.Pipeline, error) {
	if desc.Name == "" {
		return nil, fmt.Errorf("pipeline needs a name")
	}
	return &Pipeline{desc: desc}, nil
}

func (d *Device) CreateCommandAllocator() (metadata.CommandAllocator, error) {
	return &CommandAllocator{}, nil
}

func (d *Device) CreateCommandList() (metadata.CommandList, error) {
	return &CommandList{device: d}, nil
}

func (d *Device) CreateFence(initial uint64) (metadata.Fence, error) {
	f := newFence(initial)
	d.fencesMu.Lock()
	d.fences = append(d.fences, f)
	d.fencesMu.Unlock()
	return f, nil
}

func (d *Device) Queue() metadata.Queue { return d.queue }

// SoftwareQueue exposes the executor controls used by tests and tools.
func (d *Device) SoftwareQueue() *Queue { return d.queue }

func (d *Device) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if err := d.WaitIdle(); err != nil {
		return err
	}
	d.allocateTargets(width, height)
	core.LogInfo("software back buffer resized to %dx%d", width, height)
	return nil
}

func (d *Device) BackBufferSize() (uint32, uint32) { return d.width, d.height }

func (d *Device) WaitIdle() error {
	f := newFence(0)
	if err := d.queue.push(func() { f.signal(1) }); err != nil {
		return err
	}
	return f.Wait(1)
}

func (d *Device) execute(commands []command) {
	rs := &rasterState{
		target: d.backBuffer,
		depth:  d.depth,
		viewport: metadata.Viewport{
			Width:    float32(d.width),
			Height:   float32(d.height),
			MaxDepth: 1,
		},
	}
	for _, c := range commands {
		c(rs)
	}
	d.stats.draws.Add(rs.draws)
	d.stats.triangles.Add(rs.triangles)
}

func (d *Device) present() {
	d.presentMu.Lock()
	defer d.presentMu.Unlock()
	draw.Copy(d.presented, image.Point{}, d.backBuffer, d.backBuffer.Bounds(), draw.Src, nil)
	if d.hud && len(d.overlay) > 0 {
		drawOverlay(d.presented, d.font, d.overlay)
	}
	d.stats.presents.Add(1)
}

// SetOverlay replaces the HUD text drawn on the next presents.
func (d *Device) SetOverlay(lines ...string) {
	d.presentMu.Lock()
	d.overlay = append(d.overlay[:0], lines...)
	d.presentMu.Unlock()
}

// Frame returns a copy of the last presented image.
func (d *Device) Frame() *image.RGBA {
	d.presentMu.Lock()
	defer d.presentMu.Unlock()
	out := image.NewRGBA(d.presented.Bounds())
	copy(out.Pix, d.presented.Pix)
	return out
}

func (d *Device) Stats() Stats {
	return Stats{
		Submissions: d.stats.submissions.Load(),
		Draws:       d.stats.draws.Load(),
		Triangles:   d.stats.triangles.Load(),
		Presents:    d.stats.presents.Load(),
		Hazards:     d.hazards.total(),
	}
}

func (d *Device) Destroy() error {
	if d.destroyed.Swap(true) {
		return nil
	}
	d.queue.Resume()
	err := d.WaitIdle()
	d.queue.close()

	d.fencesMu.Lock()
	for _, f := range d.fences {
		f.lose()
	}
	d.fences = nil
	d.fencesMu.Unlock()

	core.LogInfo("software device destroyed after %d submissions", d.stats.submissions.Load())
	return err
}
