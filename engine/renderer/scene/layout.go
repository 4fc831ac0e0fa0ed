package scene

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
)

//go:embed default_layout.yaml
var defaultLayoutYAML []byte

var ErrLayoutStructure = errors.New("layout changes the set of items or materials")

// Layout describes the castle: textures, materials and the render items
// placed with them.
type Layout struct {
	Textures  []TextureLayout  `yaml:"textures"`
	Materials []MaterialLayout `yaml:"materials"`
	Items     []ItemLayout     `yaml:"items"`
}

type TextureLayout struct {
	Name string `yaml:"name"`
	File string `yaml:"file"` // relative to assets.textures_dir
}

type MaterialLayout struct {
	Name          string     `yaml:"name"`
	Texture       string     `yaml:"texture"`
	DiffuseAlbedo [4]float32 `yaml:"diffuse_albedo"`
	FresnelR0     [3]float32 `yaml:"fresnel_r0"`
	Roughness     float32    `yaml:"roughness"`
}

type ItemLayout struct {
	Name      string          `yaml:"name"`
	Mesh      string          `yaml:"mesh"`
	Submesh   string          `yaml:"submesh"`
	Material  string          `yaml:"material"`
	Layer     string          `yaml:"layer"`     // only "opaque" so far
	Transform TransformLayout `yaml:"transform"` // scale, then rotation about Y, then translation
	TexScale  *[3]float32     `yaml:"tex_scale"` // identity when omitted
}

type TransformLayout struct {
	Scale     *[3]float32 `yaml:"scale"`
	RotateY   float32     `yaml:"rotate_y"` // degrees
	Translate [3]float32  `yaml:"translate"`
}

func vec3(a [3]float32) math.Vec3 { return math.NewVec3(a[0], a[1], a[2]) }

// Matrix composes scale, Y rotation and translation for row vectors.
func (t TransformLayout) Matrix() math.Mat4 {
	scale := math.NewVec3One()
	if t.Scale != nil {
		scale = vec3(*t.Scale)
	}
	m := math.NewMat4Scale(scale)
	if t.RotateY != 0 {
		m = m.Mul(math.NewMat4RotationY(math.DegToRad(t.RotateY)))
	}
	return m.Mul(math.NewMat4Translation(vec3(t.Translate)))
}

func (il ItemLayout) TexTransform() math.Mat4 {
	if il.TexScale == nil {
		return math.NewMat4Identity()
	}
	return math.NewMat4Scale(vec3(*il.TexScale))
}

func (il ItemLayout) RenderLayer() (RenderLayer, error) {
	switch il.Layer {
	case "", "opaque":
		return LAYER_OPAQUE, nil
	}
	return LAYER_COUNT, fmt.Errorf("item '%s' has unknown layer '%s'", il.Name, il.Layer)
}

func (ml MaterialLayout) Desc() MaterialDesc {
	a := ml.DiffuseAlbedo
	return MaterialDesc{
		Name:          ml.Name,
		Texture:       ml.Texture,
		DiffuseAlbedo: math.NewVec4(a[0], a[1], a[2], a[3]),
		FresnelR0:     vec3(ml.FresnelR0),
		Roughness:     ml.Roughness,
		MatTransform:  math.NewMat4Identity(),
	}
}

// DefaultLayout returns the castle layout compiled into the binary.
func DefaultLayout() (*Layout, error) {
	return ParseLayout(defaultLayoutYAML)
}

func ParseLayout(data []byte) (*Layout, error) {
	l := &Layout{}
	if err := yaml.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// LoadLayout reads a layout file. An empty path gives the default layout.
func LoadLayout(path string) (*Layout, error) {
	if path == "" {
		return DefaultLayout()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout: %w", err)
	}
	return ParseLayout(data)
}

func (l *Layout) Validate() error {
	if len(l.Items) == 0 {
		return fmt.Errorf("layout has no items")
	}
	seen := make(map[string]bool)
	for _, m := range l.Materials {
		if m.Name == "" || seen["material/"+m.Name] {
			return fmt.Errorf("material name '%s' is empty or repeated", m.Name)
		}
		if m.Roughness < 0 || m.Roughness > 1 {
			return fmt.Errorf("material '%s' roughness %f outside [0,1]", m.Name, m.Roughness)
		}
		seen["material/"+m.Name] = true
	}
	for _, it := range l.Items {
		if it.Name == "" || seen["item/"+it.Name] {
			return fmt.Errorf("item name '%s' is empty or repeated", it.Name)
		}
		if !seen["material/"+it.Material] {
			return fmt.Errorf("item '%s' uses material '%s': %w", it.Name, it.Material, ErrUnknownMaterial)
		}
		if _, err := it.RenderLayer(); err != nil {
			return err
		}
		seen["item/"+it.Name] = true
	}
	return nil
}

// Apply registers the layout's materials and items. Textures must already
// be in the registry.
func (r *Registry) Apply(l *Layout) error {
	for _, m := range l.Materials {
		if _, err := r.AddMaterial(m.Desc()); err != nil {
			return err
		}
	}
	for _, it := range l.Items {
		layer, err := it.RenderLayer()
		if err != nil {
			return err
		}
		_, err = r.AddItem(ItemDesc{
			Name:         it.Name,
			Mesh:         it.Mesh,
			Submesh:      it.Submesh,
			Material:     it.Material,
			Layer:        layer,
			World:        it.Transform.Matrix(),
			TexTransform: it.TexTransform(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Reload re-applies transforms and material parameters from a changed
// layout. Only entities whose values differ get a version bump. A layout
// that adds, removes or re-wires anything is rejected untouched.
func (r *Registry) Reload(l *Layout) (int, error) {
	if len(l.Materials) != len(r.materials) || len(l.Items) != len(r.items) {
		return 0, ErrLayoutStructure
	}
	for _, m := range l.Materials {
		h, ok := r.materialByName[m.Name]
		if !ok || r.textureByName[m.Texture] != r.materials[h].DiffuseTexture {
			return 0, fmt.Errorf("material '%s': %w", m.Name, ErrLayoutStructure)
		}
	}
	for _, it := range l.Items {
		h, ok := r.itemByName[it.Name]
		if !ok {
			return 0, fmt.Errorf("item '%s': %w", it.Name, ErrLayoutStructure)
		}
		cur := r.items[h]
		mesh, okMesh := r.meshByName[it.Mesh]
		mat, okMat := r.materialByName[it.Material]
		if !okMesh || !okMat || mesh != cur.Mesh || mat != cur.Material {
			return 0, fmt.Errorf("item '%s': %w", it.Name, ErrLayoutStructure)
		}
		sub, ok := r.meshes[mesh].Submesh(it.Submesh)
		if !ok || r.meshes[mesh].Submeshes[sub].StartIndex != cur.StartIndex {
			return 0, fmt.Errorf("item '%s': %w", it.Name, ErrLayoutStructure)
		}
	}

	changed := 0
	for _, m := range l.Materials {
		h := r.materialByName[m.Name]
		d := m.Desc()
		cur := r.materials[h]
		if cur.DiffuseAlbedo != d.DiffuseAlbedo || cur.FresnelR0 != d.FresnelR0 || cur.Roughness != d.Roughness {
			r.SetMaterial(h, d.DiffuseAlbedo, d.FresnelR0, d.Roughness)
			changed++
		}
	}
	for _, it := range l.Items {
		h := r.itemByName[it.Name]
		cur := r.items[h]
		world, tex := it.Transform.Matrix(), it.TexTransform()
		if cur.World != world || cur.TexTransform != tex {
			cur.World = world
			cur.TexTransform = tex
			r.MarkItemDirty(h)
			changed++
		}
	}
	core.LogInfo("layout reloaded, %d entities changed", changed)
	return changed, nil
}
