package renderer

import (
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/frames"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/renderer/scene"
)

// Update refreshes everything the GPU reads from slot. The slot must have
// been returned by Acquire, so the GPU is done with it.
func (r *Renderer) Update(slot *frames.Slot, ctx FrameContext) error {
	r.camera.Update()
	r.animateMaterials(ctx.DeltaTime)

	objects, err := r.updateObjectCBs(slot)
	if err != nil {
		return err
	}
	materials, err := r.updateMaterialCBs(slot)
	if err != nil {
		return err
	}
	r.stats.StaleWrites = objects + materials

	if err := r.updateMainPassCB(slot, ctx); err != nil {
		return err
	}
	return r.updateWaves(slot, ctx)
}

// animateMaterials scrolls the water texture.
func (r *Renderer) animateMaterials(dt float32) {
	if r.waterMaterial == scene.InvalidHandle {
		return
	}
	water := r.registry.Material(r.waterMaterial)

	tu := water.MatTransform.At(3, 0) + 0.1*dt
	tv := water.MatTransform.At(3, 1) + 0.02*dt
	if tu >= 1.0 {
		tu -= 1.0
	}
	if tv >= 1.0 {
		tv -= 1.0
	}
	water.MatTransform.Set(3, 0, tu)
	water.MatTransform.Set(3, 1, tv)

	r.registry.MarkMaterialDirty(r.waterMaterial)
}

func (r *Renderer) updateObjectCBs(slot *frames.Slot) (int, error) {
	written := 0
	for _, it := range r.registry.Items() {
		if !slot.IsStale(frames.ENTITY_KIND_OBJECT, it.ObjCBIndex, it.Version) {
			continue
		}
		oc := metadata.ObjectConstants{
			World:        it.World.Transposed(),
			TexTransform: it.TexTransform.Transposed(),
		}
		if err := slot.ObjectCB.CopyData(it.ObjCBIndex, &oc); err != nil {
			return written, fmt.Errorf("object constants of %s: %w", it.Name, err)
		}
		slot.SetVersion(frames.ENTITY_KIND_OBJECT, it.ObjCBIndex, it.Version)
		written++
	}
	return written, nil
}

func (r *Renderer) updateMaterialCBs(slot *frames.Slot) (int, error) {
	written := 0
	for _, m := range r.registry.Materials() {
		if !slot.IsStale(frames.ENTITY_KIND_MATERIAL, m.CBIndex, m.Version) {
			continue
		}
		mc := metadata.MaterialConstants{
			DiffuseAlbedo: m.DiffuseAlbedo,
			FresnelR0:     m.FresnelR0,
			Roughness:     m.Roughness,
			MatTransform:  m.MatTransform.Transposed(),
		}
		if err := slot.MaterialCB.CopyData(m.CBIndex, &mc); err != nil {
			return written, fmt.Errorf("material constants of %s: %w", m.Name, err)
		}
		slot.SetVersion(frames.ENTITY_KIND_MATERIAL, m.CBIndex, m.Version)
		written++
	}
	return written, nil
}

func (r *Renderer) updateMainPassCB(slot *frames.Slot, ctx FrameContext) error {
	view := r.camera.View()
	proj := r.camera.Projection()
	viewProj := view.Mul(proj)

	pc := &r.pass
	pc.View = view.Transposed()
	pc.InvView = view.Inverse().Transposed()
	pc.Proj = proj.Transposed()
	pc.InvProj = proj.Inverse().Transposed()
	pc.ViewProj = viewProj.Transposed()
	pc.InvViewProj = viewProj.Inverse().Transposed()

	w, h := r.device.BackBufferSize()
	pc.EyePosW = r.camera.Position()
	pc.RenderTargetSize = math.NewVec2(float32(w), float32(h))
	pc.InvRenderTargetSize = math.NewVec2(1.0/float32(w), 1.0/float32(h))
	pc.NearZ = r.camera.NearZ()
	pc.FarZ = r.camera.FarZ()
	pc.TotalTime = ctx.TotalTime
	pc.DeltaTime = ctx.DeltaTime
	pc.AmbientLight = math.NewVec4(1, 1, 1, 1)
	castleLights(pc)

	return slot.PassCB.CopyData(0, pc)
}

// castleLights sets one directional light followed by five spot lights:
// one above each column and a red one above the keep.
func castleLights(pc *metadata.PassConstants) {
	down := math.NewVec3(0, -5, 0)
	columnLight := math.NewVec3(0.541, 0.984, 1.0)

	pc.Lights[0].Direction = math.NewVec3(0.57735, -0.57735, 0.57735)
	pc.Lights[0].Strength = math.NewVec3(0.2, 0.1, 0.0)

	for i, pos := range []math.Vec3{
		math.NewVec3(-9, 13, -9),
		math.NewVec3(9, 13, -9),
		math.NewVec3(-9, 13, 9),
		math.NewVec3(9, 13, 9),
	} {
		l := &pc.Lights[1+i]
		l.Position = pos
		l.Direction = down
		l.Strength = columnLight
		l.SpotPower = 0.35
	}

	pc.Lights[5].Position = math.NewVec3(0, 18, 0)
	pc.Lights[5].Direction = down
	pc.Lights[5].Strength = math.NewVec3(1, 0, 0)
	pc.Lights[5].SpotPower = 0.95
}

// updateWaves runs the weather script and the simulation, then copies the
// grid into the slot's vertex buffer and points the water mesh at it.
func (r *Renderer) updateWaves(slot *frames.Slot, ctx FrameContext) error {
	if r.weather != nil {
		disturbed, err := r.weather.Tick(r.grid, ctx.TotalTime)
		if err != nil {
			core.LogError("%s", err)
			return err
		}
		r.stats.Disturbed = disturbed
	}
	r.stats.WaveSteps = r.grid.Update(ctx.DeltaTime)

	width, depth := r.grid.Width(), r.grid.Depth()
	for k := range r.waveVertices {
		pos := r.grid.Position(k)
		r.waveVertices[k] = metadata.Vertex{
			Pos:    pos,
			Normal: r.grid.Normal(k),
			// [-w/2, w/2] maps to [0, 1]
			TexC: math.NewVec2(0.5+pos.X/width, 0.5-pos.Z/depth),
		}
	}
	if err := slot.WavesVB.CopyRange(0, r.waveVertices); err != nil {
		return fmt.Errorf("wave vertices: %w", err)
	}

	if g := r.waterGeometry(); g != nil {
		g.VertexBuffer = slot.WavesVB.Resource()
	}
	return nil
}
