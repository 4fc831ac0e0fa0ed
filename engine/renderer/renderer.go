// Package renderer drives one frame of the castle: it acquires a frame
// slot, refreshes the slot's constants and wave vertices, records the draw
// commands and submits them.
package renderer

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/components"
	"github.com/spaghettifunk/castle/engine/renderer/frames"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/renderer/scene"
	"github.com/spaghettifunk/castle/engine/waves"
)

// LightSteelBlue is the back buffer clear colour.
var LightSteelBlue = math.NewVec4(0.690196097, 0.768627524, 0.870588303, 1)

type Options struct {
	FramesInFlight int

	Registry *scene.Registry
	Camera   *components.OrbitCamera
	Grid     *waves.Grid
	// Weather may be nil; the water then only moves when disturbed by hand.
	Weather *waves.Weather
}

// FrameContext carries the timing and toggles of the frame being built.
type FrameContext struct {
	TotalTime float32
	DeltaTime float32
	Wireframe bool
}

// FrameStats describes what a single call to Frame did.
type FrameStats struct {
	Frame uint64
	Slot  int
	Fence uint64

	Completed uint64
	Waited    bool
	WaitTime  time.Duration

	UpdateTime time.Duration
	DrawTime   time.Duration

	ItemsDrawn  int
	StaleWrites int
	WaveSteps   int
	Disturbed   bool
}

type Renderer struct {
	device metadata.Device
	queue  metadata.Queue
	ring   *frames.Ring
	list   metadata.CommandList

	opaque    metadata.Pipeline
	wireframe metadata.Pipeline

	registry *scene.Registry
	camera   *components.OrbitCamera
	grid     *waves.Grid
	weather  *waves.Weather

	waterMesh     scene.MeshHandle
	waterMaterial scene.MaterialHandle
	waveVertices  []metadata.Vertex

	pass  metadata.PassConstants
	frame uint64
	stats FrameStats
}

func New(device metadata.Device, opts Options) (*Renderer, error) {
	if opts.Registry == nil || opts.Camera == nil || opts.Grid == nil {
		return nil, fmt.Errorf("renderer needs a registry, a camera and a wave grid")
	}
	r := &Renderer{
		device:        device,
		queue:         device.Queue(),
		registry:      opts.Registry,
		camera:        opts.Camera,
		grid:          opts.Grid,
		weather:       opts.Weather,
		waterMesh:     scene.InvalidHandle,
		waterMaterial: scene.InvalidHandle,
		waveVertices:  make([]metadata.Vertex, opts.Grid.VertexCount()),
		pass:          metadata.NewPassConstants(),
	}
	if h, ok := r.registry.FindMesh(scene.WaterGeometry); ok {
		r.waterMesh = h
	}
	if h, ok := r.registry.FindMaterial(scene.WaterMaterial); ok {
		r.waterMaterial = h
	}

	var err error
	opaqueDesc, wireDesc := metadata.DefaultPipelines()
	if r.opaque, err = device.CreatePipeline(opaqueDesc); err != nil {
		return nil, r.fail(fmt.Errorf("creating pipeline %s: %w", opaqueDesc.Name, err))
	}
	if r.wireframe, err = device.CreatePipeline(wireDesc); err != nil {
		return nil, r.fail(fmt.Errorf("creating pipeline %s: %w", wireDesc.Name, err))
	}
	if r.list, err = device.CreateCommandList(); err != nil {
		return nil, r.fail(fmt.Errorf("creating command list: %w", err))
	}
	r.ring, err = frames.NewRing(device, frames.RingConfig{
		Frames:       opts.FramesInFlight,
		Objects:      len(r.registry.Items()),
		Materials:    len(r.registry.Materials()),
		WaveVertices: r.grid.VertexCount(),
	})
	if err != nil {
		return nil, r.fail(err)
	}

	w, h := device.BackBufferSize()
	r.camera.SetAspect(float32(w) / float32(h))

	core.LogInfo("renderer initialized on the %s device: %d items, %d frames in flight",
		device.Name(), len(r.registry.Items()), opts.FramesInFlight)
	return r, nil
}

// fail releases whatever New created so far.
func (r *Renderer) fail(err error) error {
	core.LogError("%s", err)
	if r.ring != nil {
		r.ring.Destroy()
	}
	for _, p := range []metadata.Pipeline{r.opaque, r.wireframe} {
		if p != nil {
			p.Destroy()
		}
	}
	return err
}

// Frame runs one full frame: acquire a slot, update it, draw and submit.
func (r *Renderer) Frame(ctx FrameContext) (FrameStats, error) {
	r.frame++
	r.stats = FrameStats{Frame: r.frame}

	slot, err := r.ring.Acquire()
	if err != nil {
		return r.stats, err
	}
	ringStats := r.ring.Stats()
	r.stats.Slot = slot.Index
	r.stats.Waited = ringStats.LastWaited
	r.stats.WaitTime = ringStats.LastWaitTime

	start := time.Now()
	if err := r.Update(slot, ctx); err != nil {
		return r.stats, err
	}
	r.stats.UpdateTime = time.Since(start)

	start = time.Now()
	if err := r.Draw(slot, ctx); err != nil {
		return r.stats, err
	}
	r.stats.DrawTime = time.Since(start)
	r.stats.Fence = slot.Fence
	r.stats.Completed = r.ring.Completed()
	return r.stats, nil
}

// Resize drains the queue and recreates the back buffer.
func (r *Renderer) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	if err := r.ring.Flush(); err != nil {
		return err
	}
	if err := r.device.Resize(width, height); err != nil {
		err = fmt.Errorf("resizing back buffer to %dx%d: %w", width, height, err)
		core.LogError("%s", err)
		return err
	}
	r.camera.SetAspect(float32(width) / float32(height))
	core.LogDebug("renderer resized to %dx%d", width, height)
	return nil
}

func (r *Renderer) Ring() *frames.Ring { return r.ring }

func (r *Renderer) Device() metadata.Device { return r.device }

func (r *Renderer) Registry() *scene.Registry { return r.registry }

// Flush waits until the GPU is idle.
func (r *Renderer) Flush() error { return r.ring.Flush() }

// Destroy waits for the GPU and releases the frame resources and pipelines.
// The registry belongs to the caller.
func (r *Renderer) Destroy() error {
	err := r.ring.Destroy()
	r.opaque.Destroy()
	r.wireframe.Destroy()
	if g := r.waterGeometry(); g != nil {
		g.VertexBuffer = nil
	}
	core.LogInfo("renderer shut down after %d frames", r.frame)
	return err
}

func (r *Renderer) waterGeometry() *metadata.Geometry {
	if r.waterMesh == scene.InvalidHandle {
		return nil
	}
	return r.registry.Mesh(r.waterMesh)
}
