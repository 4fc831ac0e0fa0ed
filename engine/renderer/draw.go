package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/renderer/frames"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/renderer/scene"
)

// Draw records the frame into the command list, submits it, presents and
// stamps the slot with a new fence value.
func (r *Renderer) Draw(slot *frames.Slot, ctx FrameContext) error {
	if err := slot.Allocator.Reset(); err != nil {
		err = fmt.Errorf("slot %d allocator: %w", slot.Index, err)
		core.LogError("%s", err)
		return err
	}
	pso := r.opaque
	if ctx.Wireframe {
		pso = r.wireframe
	}
	if err := r.list.Reset(slot.Allocator, pso); err != nil {
		err = fmt.Errorf("command list reset: %w", err)
		core.LogError("%s", err)
		return err
	}

	w, h := r.device.BackBufferSize()
	r.list.SetViewport(metadata.Viewport{Width: float32(w), Height: float32(h), MaxDepth: 1})
	r.list.BeginFrame(LightSteelBlue)
	r.list.SetPassConstants(slot.PassCB.Resource(), slot.PassCB.Offset(0))

	r.stats.ItemsDrawn = r.drawRenderItems(slot, r.registry.Layer(scene.LAYER_OPAQUE))

	r.list.EndFrame()
	if err := r.list.Close(); err != nil {
		return fmt.Errorf("closing command list: %w", err)
	}
	if err := r.queue.Execute(r.list); err != nil {
		err = fmt.Errorf("%w: %w", core.ErrSubmitFailed, err)
		core.LogError("%s", err)
		return err
	}
	if err := r.queue.Present(); err != nil {
		if !errors.Is(err, core.ErrSwapchainBooting) {
			core.LogError("present failed: %s", err.Error())
			return err
		}
		core.LogDebug("present skipped while the swapchain is recreated")
	}

	_, err := r.ring.Publish(slot)
	return err
}

// drawRenderItems binds and draws every item in registration order.
func (r *Renderer) drawRenderItems(slot *frames.Slot, items []scene.ItemHandle) int {
	objectCB := slot.ObjectCB.Resource()
	materialCB := slot.MaterialCB.Resource()

	for _, h := range items {
		it := r.registry.Item(h)
		geo := r.registry.Mesh(it.Mesh)
		mat := r.registry.Material(it.Material)

		r.list.SetVertexBuffer(geo.VertexBufferView())
		r.list.SetIndexBuffer(geo.IndexBufferView())
		r.list.SetPrimitiveTopology(it.Topology)

		r.list.SetTexture(r.registry.Texture(mat.DiffuseTexture))
		r.list.SetObjectConstants(objectCB, slot.ObjectCB.Offset(it.ObjCBIndex))
		r.list.SetMaterialConstants(materialCB, slot.MaterialCB.Offset(mat.CBIndex))

		r.list.DrawIndexedInstanced(it.IndexCount, 1, it.StartIndex, it.BaseVertex, 0)
	}
	return len(items)
}
