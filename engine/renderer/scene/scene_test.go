package scene

import (
	"errors"
	"image"
	"io"
	"testing"

	"github.com/spaghettifunk/castle/engine/core"
	"github.com/spaghettifunk/castle/engine/math"
	"github.com/spaghettifunk/castle/engine/renderer/metadata"
	"github.com/spaghettifunk/castle/engine/renderer/software"
	"github.com/spaghettifunk/castle/engine/waves"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func mustDefaultLayout(t *testing.T) *Layout {
	t.Helper()
	l, err := DefaultLayout()
	if err != nil {
		t.Fatalf("DefaultLayout: %v", err)
	}
	return l
}

func buildCastle(t *testing.T) (*Registry, *Layout) {
	t.Helper()
	d, err := software.New(software.Options{Width: 8, Height: 8})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Destroy() })

	grid, err := waves.New(128, 128, 1, 0.03, 4, 0.2)
	if err != nil {
		t.Fatal(err)
	}
	geos, err := BuildGeometries(d, grid)
	if err != nil {
		t.Fatalf("BuildGeometries: %v", err)
	}
	layout := mustDefaultLayout(t)
	textures := make(map[string]metadata.Texture)
	for _, tl := range layout.Textures {
		tex, err := d.CreateTexture(metadata.NewTextureDesc(tl.Name), image.NewRGBA(image.Rect(0, 0, 2, 2)))
		if err != nil {
			t.Fatal(err)
		}
		textures[tl.Name] = tex
	}
	r, err := Build(geos, textures, layout)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return r, layout
}

func TestDefaultLayout(t *testing.T) {
	l := mustDefaultLayout(t)
	if len(l.Textures) != 4 || len(l.Materials) != 4 || len(l.Items) != 20 {
		t.Fatalf("layout has %d textures, %d materials, %d items", len(l.Textures), len(l.Materials), len(l.Items))
	}
	if l.Items[0].Name != "waves" || l.Items[0].Material != "water" {
		t.Errorf("first item = %+v, want the water surface", l.Items[0])
	}
}

func TestLayoutTransforms(t *testing.T) {
	l := mustDefaultLayout(t)
	byName := make(map[string]ItemLayout)
	for _, it := range l.Items {
		byName[it.Name] = it
	}

	tests := []struct {
		item string
		idx  int
		want float32
	}{
		{"backWall", 0, 18},
		{"backWall", 5, 8},
		{"backWall", 10, 0.5},
		{"backWall", 14, 9},
		{"leftWall", 0, 0},
		{"leftWall", 2, -18},
		{"leftWall", 8, 0.5},
		{"leftWall", 12, -9},
		{"rightWall", 12, 9},
		{"frontWall3", 13, 6.5},
		{"columnBackRight", 5, 10},
		{"columnBackRight", 14, 9},
		{"top", 13, 18},
		{"base3", 0, 4},
	}
	for _, tt := range tests {
		m := byName[tt.item].Transform.Matrix()
		if got := m.Data[tt.idx]; math.Abs(got-tt.want) > 1e-5 {
			t.Errorf("%s world[%d] = %f, want %f", tt.item, tt.idx, got, tt.want)
		}
	}

	if tex := byName["ground"].TexTransform(); tex != math.NewMat4Identity() {
		t.Errorf("ground tex transform = %v, want identity", tex)
	}
	if tex := byName["waves"].TexTransform(); tex.Data[0] != 5 || tex.Data[5] != 5 || tex.Data[10] != 1 {
		t.Errorf("waves tex transform = %v", tex)
	}
}

func TestParseLayoutErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"invalid yaml", "items: [\n"},
		{"no items", "materials: []\n"},
		{"unknown material", "items:\n  - {name: a, mesh: m, submesh: s, material: gold}\n"},
		{"duplicate item", "materials:\n  - {name: m, texture: t}\nitems:\n  - {name: a, material: m}\n  - {name: a, material: m}\n"},
		{"bad layer", "materials:\n  - {name: m, texture: t}\nitems:\n  - {name: a, material: m, layer: sky}\n"},
		{"rough", "materials:\n  - {name: m, texture: t, roughness: 2}\nitems:\n  - {name: a, material: m}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLayout([]byte(tt.yaml)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestBuildResolvesDrawRanges(t *testing.T) {
	r, layout := buildCastle(t)

	opaque := r.Layer(LAYER_OPAQUE)
	if len(opaque) != len(layout.Items) {
		t.Fatalf("%d opaque items, want %d", len(opaque), len(layout.Items))
	}
	for i, h := range opaque {
		it := r.Item(h)
		if it.Name != layout.Items[i].Name || it.ObjCBIndex != i {
			t.Errorf("item %d = %s/cb %d", i, it.Name, it.ObjCBIndex)
		}
		if it.Version != 1 {
			t.Errorf("%s starts at version %d", it.Name, it.Version)
		}
		geo := r.Mesh(it.Mesh)
		si, ok := geo.Submesh(layout.Items[i].Submesh)
		if !ok {
			t.Fatalf("%s: submesh %s missing", it.Name, layout.Items[i].Submesh)
		}
		sub := geo.Submeshes[si]
		if it.IndexCount != sub.IndexCount || it.StartIndex != sub.StartIndex || it.BaseVertex != sub.BaseVertex {
			t.Errorf("%s draw range (%d,%d,%d), submesh (%d,%d,%d)", it.Name,
				it.IndexCount, it.StartIndex, it.BaseVertex, sub.IndexCount, sub.StartIndex, sub.BaseVertex)
		}
		if it.IndexCount == 0 || it.IndexCount%3 != 0 {
			t.Errorf("%s has %d indices", it.Name, it.IndexCount)
		}
	}

	water := r.Item(opaque[0])
	if !r.Mesh(water.Mesh).Dynamic {
		t.Error("water mesh is not dynamic")
	}
	if water.IndexCount != 127*127*6 {
		t.Errorf("water draws %d indices", water.IndexCount)
	}

	for i, name := range []string{"grass", "water", "wirefence", "stone"} {
		h, ok := r.FindMaterial(name)
		if !ok || r.Material(h).CBIndex != i || int(r.Material(h).DiffuseTexture) != i {
			t.Errorf("material %s not at slot %d", name, i)
		}
	}
	if h, _ := r.FindMaterial("grass"); r.Material(h).Roughness != 0.125 {
		t.Errorf("grass roughness = %f", r.Material(h).Roughness)
	}
}

func TestAddItemErrors(t *testing.T) {
	r := NewRegistry()
	r.AddMesh(&metadata.Geometry{Name: "geo", Submeshes: []metadata.Submesh{{Name: "sub", IndexCount: 3}}})
	r.AddTexture("tex", nil)
	if _, err := r.AddMaterial(MaterialDesc{Name: "mat", Texture: "tex"}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.AddMaterial(MaterialDesc{Name: "other", Texture: "missing"}); !errors.Is(err, ErrUnknownTexture) {
		t.Errorf("missing texture: %v", err)
	}

	tests := []struct {
		desc ItemDesc
		want error
	}{
		{ItemDesc{Name: "a", Mesh: "nope", Submesh: "sub", Material: "mat"}, ErrUnknownMesh},
		{ItemDesc{Name: "b", Mesh: "geo", Submesh: "nope", Material: "mat"}, ErrUnknownMesh},
		{ItemDesc{Name: "c", Mesh: "geo", Submesh: "sub", Material: "nope"}, ErrUnknownMaterial},
		{ItemDesc{Name: "d", Mesh: "geo", Submesh: "sub", Material: "mat"}, nil},
		{ItemDesc{Name: "d", Mesh: "geo", Submesh: "sub", Material: "mat"}, ErrDuplicateName},
	}
	for _, tt := range tests {
		_, err := r.AddItem(tt.desc)
		if !errors.Is(err, tt.want) {
			t.Errorf("AddItem(%s) = %v, want %v", tt.desc.Name, err, tt.want)
		}
	}
	if len(r.Items()) != 1 {
		t.Errorf("%d items registered, want 1", len(r.Items()))
	}
}

func TestReloadBumpsOnlyChangedEntities(t *testing.T) {
	r, _ := buildCastle(t)

	changed := mustDefaultLayout(t)
	for i := range changed.Items {
		if changed.Items[i].Name == "backWall" {
			changed.Items[i].Transform.Translate[2] = 10
		}
	}
	for i := range changed.Materials {
		if changed.Materials[i].Name == "stone" {
			changed.Materials[i].Roughness = 0.5
		}
	}

	n, err := r.Reload(changed)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if n != 2 {
		t.Errorf("%d entities changed, want 2", n)
	}
	for _, it := range r.Items() {
		want := uint64(1)
		if it.Name == "backWall" {
			want = 2
			if it.World.Data[14] != 10 {
				t.Errorf("backWall z = %f", it.World.Data[14])
			}
		}
		if it.Version != want {
			t.Errorf("%s version %d, want %d", it.Name, it.Version, want)
		}
	}
	stone, _ := r.FindMaterial("stone")
	if r.Material(stone).Version != 2 || r.Material(stone).Roughness != 0.5 {
		t.Errorf("stone = %+v", r.Material(stone))
	}

	// Same layout again changes nothing.
	if n, err := r.Reload(changed); err != nil || n != 0 {
		t.Errorf("idempotent reload = %d, %v", n, err)
	}
}

func TestReloadRejectsStructuralChanges(t *testing.T) {
	r, _ := buildCastle(t)

	removed := mustDefaultLayout(t)
	removed.Items = removed.Items[1:]
	if _, err := r.Reload(removed); !errors.Is(err, ErrLayoutStructure) {
		t.Errorf("removed item: %v", err)
	}

	rewired := mustDefaultLayout(t)
	rewired.Items[2].Material = "grass"
	rewired.Items[2].Transform.Translate[0] = 100
	if _, err := r.Reload(rewired); !errors.Is(err, ErrLayoutStructure) {
		t.Errorf("rewired item: %v", err)
	}
	for _, it := range r.Items() {
		if it.Version != 1 {
			t.Errorf("%s bumped by a rejected reload", it.Name)
		}
	}
}
