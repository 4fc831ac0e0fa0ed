// Package scene owns the render items, materials, meshes and textures of the
// castle. Everything is addressed by integer handles resolved once at build
// time; the per-frame passes never look anything up by name.
package scene

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
)

var (
	ErrUnknownMesh     = errors.New("unknown mesh")
	ErrUnknownMaterial = errors.New("unknown material")
	ErrUnknownTexture  = errors.New("unknown texture")
	ErrDuplicateName   = errors.New("name already registered")
)

type MeshHandle int
type MaterialHandle int
type TextureHandle int
type ItemHandle int

const InvalidHandle = -1

type RenderLayer int

const (
	LAYER_OPAQUE RenderLayer = iota
	LAYER_COUNT
)

/**
 * @brief Surface parameters of a material. CBIndex is its slot in the
 * material constant buffer; Version grows with every CPU-side change.
 */
type Material struct {
	Name    string
	CBIndex int

	DiffuseTexture TextureHandle
	DiffuseAlbedo  math.Vec4
	FresnelR0      math.Vec3
	Roughness      float32
	MatTransform   math.Mat4

	Version uint64
}

/**
 * @brief One draw of a submesh with a material and a world transform. The
 * draw range is copied from the submesh when the item is added.
 */
type RenderItem struct {
	Name string

	World        math.Mat4
	TexTransform math.Mat4
	ObjCBIndex   int

	Mesh     MeshHandle
	Material MaterialHandle
	Topology metadata.PrimitiveTopology
	Layer    RenderLayer

	IndexCount uint32
	StartIndex uint32
	BaseVertex int32

	Version uint64
}

type MaterialDesc struct {
	Name          string
	Texture       string
	DiffuseAlbedo math.Vec4
	FresnelR0     math.Vec3
	Roughness     float32
	MatTransform  math.Mat4
}

type ItemDesc struct {
	Name         string
	Mesh         string
	Submesh      string
	Material     string
	Layer        RenderLayer
	World        math.Mat4
	TexTransform math.Mat4
}

type Registry struct {
	meshes     []*metadata.Geometry
	meshByName map[string]MeshHandle

	textures      []metadata.Texture
	textureByName map[string]TextureHandle

	materials      []*Material
	materialByName map[string]MaterialHandle

	items      []*RenderItem
	itemByName map[string]ItemHandle

	layers [LAYER_COUNT][]ItemHandle
}

func NewRegistry() *Registry {
	return &Registry{
		meshByName:     make(map[string]MeshHandle),
		textureByName:  make(map[string]TextureHandle),
		materialByName: make(map[string]MaterialHandle),
		itemByName:     make(map[string]ItemHandle),
	}
}

func (r *Registry) AddMesh(geo *metadata.Geometry) (MeshHandle, error) {
	if _, ok := r.meshByName[geo.Name]; ok {
		return InvalidHandle, fmt.Errorf("mesh '%s': %w", geo.Name, ErrDuplicateName)
	}
	h := MeshHandle(len(r.meshes))
	r.meshes = append(r.meshes, geo)
	r.meshByName[geo.Name] = h
	return h, nil
}

// AddTexture registers a texture. Handles double as shader resource indices.
func (r *Registry) AddTexture(name string, tex metadata.Texture) (TextureHandle, error) {
	if _, ok := r.textureByName[name]; ok {
		return InvalidHandle, fmt.Errorf("texture '%s': %w", name, ErrDuplicateName)
	}
	h := TextureHandle(len(r.textures))
	r.textures = append(r.textures, tex)
	r.textureByName[name] = h
	return h, nil
}

func (r *Registry) AddMaterial(desc MaterialDesc) (MaterialHandle, error) {
	if _, ok := r.materialByName[desc.Name]; ok {
		return InvalidHandle, fmt.Errorf("material '%s': %w", desc.Name, ErrDuplicateName)
	}
	tex, ok := r.textureByName[desc.Texture]
	if !ok {
		return InvalidHandle, fmt.Errorf("material '%s' uses texture '%s': %w", desc.Name, desc.Texture, ErrUnknownTexture)
	}
	h := MaterialHandle(len(r.materials))
	r.materials = append(r.materials, &Material{
		Name:           desc.Name,
		CBIndex:        int(h),
		DiffuseTexture: tex,
		DiffuseAlbedo:  desc.DiffuseAlbedo,
		FresnelR0:      desc.FresnelR0,
		Roughness:      desc.Roughness,
		MatTransform:   desc.MatTransform,
		Version:        1,
	})
	r.materialByName[desc.Name] = h
	return h, nil
}

func (r *Registry) AddItem(desc ItemDesc) (ItemHandle, error) {
	if _, ok := r.itemByName[desc.Name]; ok {
		return InvalidHandle, fmt.Errorf("item '%s': %w", desc.Name, ErrDuplicateName)
	}
	mesh, ok := r.meshByName[desc.Mesh]
	if !ok {
		return InvalidHandle, fmt.Errorf("item '%s' uses mesh '%s': %w", desc.Name, desc.Mesh, ErrUnknownMesh)
	}
	sub, ok := r.meshes[mesh].Submesh(desc.Submesh)
	if !ok {
		return InvalidHandle, fmt.Errorf("item '%s' uses submesh '%s/%s': %w", desc.Name, desc.Mesh, desc.Submesh, ErrUnknownMesh)
	}
	mat, ok := r.materialByName[desc.Material]
	if !ok {
		return InvalidHandle, fmt.Errorf("item '%s' uses material '%s': %w", desc.Name, desc.Material, ErrUnknownMaterial)
	}
	if desc.Layer < 0 || desc.Layer >= LAYER_COUNT {
		return InvalidHandle, fmt.Errorf("item '%s' has invalid layer %d", desc.Name, desc.Layer)
	}

	s := r.meshes[mesh].Submeshes[sub]
	h := ItemHandle(len(r.items))
	r.items = append(r.items, &RenderItem{
		Name:         desc.Name,
		World:        desc.World,
		TexTransform: desc.TexTransform,
		ObjCBIndex:   int(h),
		Mesh:         mesh,
		Material:     mat,
		Topology:     metadata.PRIMITIVE_TOPOLOGY_TRIANGLE_LIST,
		Layer:        desc.Layer,
		IndexCount:   s.IndexCount,
		StartIndex:   s.StartIndex,
		BaseVertex:   s.BaseVertex,
		Version:      1,
	})
	r.itemByName[desc.Name] = h
	r.layers[desc.Layer] = append(r.layers[desc.Layer], h)
	return h, nil
}

func (r *Registry) Mesh(h MeshHandle) *metadata.Geometry     { return r.meshes[h] }
func (r *Registry) Texture(h TextureHandle) metadata.Texture { return r.textures[h] }
func (r *Registry) Material(h MaterialHandle) *Material      { return r.materials[h] }
func (r *Registry) Item(h ItemHandle) *RenderItem            { return r.items[h] }
func (r *Registry) Layer(layer RenderLayer) []ItemHandle     { return r.layers[layer] }
func (r *Registry) Items() []*RenderItem                     { return r.items }
func (r *Registry) Materials() []*Material                   { return r.materials }
func (r *Registry) MeshCount() int                           { return len(r.meshes) }
func (r *Registry) TextureCount() int                        { return len(r.textures) }

func (r *Registry) FindMesh(name string) (MeshHandle, bool) {
	h, ok := r.meshByName[name]
	return h, ok
}

func (r *Registry) FindMaterial(name string) (MaterialHandle, bool) {
	h, ok := r.materialByName[name]
	return h, ok
}

func (r *Registry) FindItem(name string) (ItemHandle, bool) {
	h, ok := r.itemByName[name]
	return h, ok
}

// MarkItemDirty bumps the item version so every frame slot rewrites it.
func (r *Registry) MarkItemDirty(h ItemHandle) {
	r.items[h].Version++
}

func (r *Registry) MarkMaterialDirty(h MaterialHandle) {
	r.materials[h].Version++
}

func (r *Registry) SetWorld(h ItemHandle, world math.Mat4) {
	r.items[h].World = world
	r.MarkItemDirty(h)
}

func (r *Registry) SetTexTransform(h ItemHandle, tex math.Mat4) {
	r.items[h].TexTransform = tex
	r.MarkItemDirty(h)
}

// SetMaterial replaces the surface parameters of a material. The texture
// and constant buffer slot stay as they are.
func (r *Registry) SetMaterial(h MaterialHandle, albedo math.Vec4, fresnel math.Vec3, roughness float32) {
	m := r.materials[h]
	m.DiffuseAlbedo = albedo
	m.FresnelR0 = fresnel
	m.Roughness = roughness
	r.MarkMaterialDirty(h)
}

// Destroy releases every mesh and texture.
func (r *Registry) Destroy() {
	for _, m := range r.meshes {
		m.Destroy()
	}
	for _, t := range r.textures {
		if t != nil {
			t.Destroy()
		}
	}
	core.LogDebug("scene registry released %d meshes and %d textures", len(r.meshes), len(r.textures))
	r.meshes = nil
	r.textures = nil
}
