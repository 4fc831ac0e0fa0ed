package math

import (
	m "math"
	"testing"
)

const eps = 1e-4

func TestMat4InverseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		mat  Mat4
	}{
		{"identity", NewMat4Identity()},
		{"translation", NewMat4Translation(NewVec3(3, -2, 9))},
		{"scale rotate translate", NewMat4Scale(NewVec3(18, 8, 0.5)).Mul(NewMat4RotationY(DegToRad(90))).Mul(NewMat4Translation(NewVec3(-9, 4, 0)))},
		{"view", NewMat4LookAtLH(NewVec3(0, 5, -50), NewVec3Zero(), NewVec3Up())},
		{"projection", NewMat4PerspectiveLH(K_QUARTER_PI, 800.0/600.0, 1, 1000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.mat.Mul(tt.mat.Inverse())
			if !got.Compare(NewMat4Identity(), eps) {
				t.Errorf("M * M^-1 = %v, want identity", got.Data)
			}
		})
	}
}

func TestMat4InverseSingular(t *testing.T) {
	if inv := (Mat4{}).Inverse(); inv != (Mat4{}) {
		t.Errorf("inverse of the zero matrix = %v, want zero", inv.Data)
	}
}

func TestTransposed(t *testing.T) {
	a := NewMat4Translation(NewVec3(1, 2, 3))
	tr := a.Transposed()
	if tr.At(0, 3) != 1 || tr.At(1, 3) != 2 || tr.At(2, 3) != 3 {
		t.Errorf("translation not moved to the last column: %v", tr.Data)
	}
	if tr.Transposed() != a {
		t.Error("double transpose is not the identity")
	}
}

func TestRowVectorComposition(t *testing.T) {
	// Scale first, then translate: the point (1,0,0) scales to (2,0,0) and
	// then moves by 5 on x.
	world := NewMat4Scale(NewVec3(2, 2, 2)).Mul(NewMat4Translation(NewVec3(5, 0, 0)))
	got := NewVec3(1, 0, 0).Transform(world)
	if !got.Compare(NewVec3(7, 0, 0), eps) {
		t.Errorf("got %+v, want (7,0,0)", got)
	}
	if dir := NewVec3(1, 0, 0).TransformNormal(world); !dir.Compare(NewVec3(2, 0, 0), eps) {
		t.Errorf("direction picked up translation: %+v", dir)
	}
}

func TestRotationYMatchesQuaternion(t *testing.T) {
	for _, deg := range []float32{0, 30, 90, 180, 270} {
		a := NewMat4RotationY(DegToRad(deg))
		b := NewQuatFromAxisAngle(NewVec3Up(), DegToRad(deg)).ToMat4()
		if !a.Compare(b, eps) {
			t.Errorf("%v degrees: matrix %v, quaternion %v", deg, a.Data, b.Data)
		}
	}
	// +90 degrees turns +Z towards +X.
	got := NewVec3(0, 0, 1).Transform(NewMat4RotationY(K_HALF_PI))
	if !got.Compare(NewVec3(1, 0, 0), eps) {
		t.Errorf("rotated +Z = %+v, want +X", got)
	}
}

func TestLookAtLHMapsTargetOntoForwardAxis(t *testing.T) {
	eye := NewVec3(10, 20, -30)
	view := NewMat4LookAtLH(eye, NewVec3Zero(), NewVec3Up())
	if p := eye.Transform(view); !p.Compare(NewVec3Zero(), eps) {
		t.Errorf("eye in view space = %+v, want origin", p)
	}
	p := NewVec3Zero().Transform(view)
	if kabs(p.X) > eps || kabs(p.Y) > eps || kabs(p.Z-eye.Length()) > eps {
		t.Errorf("target in view space = %+v, want (0,0,%f)", p, eye.Length())
	}
}

func TestPerspectiveLHDepthRange(t *testing.T) {
	proj := NewMat4PerspectiveLH(K_QUARTER_PI, 1, 1, 1000)
	near := NewVec4(0, 0, 1, 1).Transform(proj)
	far := NewVec4(0, 0, 1000, 1).Transform(proj)
	if d := near.Z / near.W; kabs(d) > eps {
		t.Errorf("near plane depth = %f, want 0", d)
	}
	if d := far.Z / far.W; kabs(d-1) > eps {
		t.Errorf("far plane depth = %f, want 1", d)
	}
}

func TestTransformMatrix(t *testing.T) {
	tr := TransformFromPositionRotationScale(NewVec3(0, 4, 9), NewQuatIdentity(), NewVec3(18, 8, 0.5))
	want := NewMat4Scale(NewVec3(18, 8, 0.5)).Mul(NewMat4Translation(NewVec3(0, 4, 9)))
	if !tr.Matrix().Compare(want, eps) {
		t.Errorf("Matrix() = %v, want %v", tr.Matrix().Data, want.Data)
	}
	if TransformCreate().Matrix() != NewMat4Identity() {
		t.Error("default transform is not the identity")
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Errorf("Clamp(5,0,3) = %d", got)
	}
	if got := Clamp(float32(-1), 0.1, 3); got != 0.1 {
		t.Errorf("Clamp(-1,0.1,3) = %f", got)
	}
}

func TestRandomRanges(t *testing.T) {
	r := NewRandom(42)
	for i := 0; i < 1000; i++ {
		if v := r.IntRange(4, 123); v < 4 || v > 123 {
			t.Fatalf("IntRange out of bounds: %d", v)
		}
		if f := r.FloatRange(0.2, 0.5); f < 0.2 || f >= 0.5 {
			t.Fatalf("FloatRange out of bounds: %f", f)
		}
	}
	a, b := NewRandom(7), NewRandom(7)
	for i := 0; i < 10; i++ {
		if a.IntRange(0, 1000) != b.IntRange(0, 1000) {
			t.Fatal("equal seeds produced different sequences")
		}
	}
}

func TestGeneratorCounts(t *testing.T) {
	tests := []struct {
		name     string
		mesh     MeshData
		vertices int
		indices  int
	}{
		{"box", CreateBox(1, 1, 1, 0), 24, 36},
		{"box subdivided", CreateBox(8, 8, 8, 1), 12 * 6, 36 * 4},
		{"grid", CreateGrid(24, 24, 25, 25), 625, 24 * 24 * 6},
		// rings*(slices+1) + 2 caps*(slices+2)
		{"column", CreateCylinder(0.5, 0.5, 1, 20, 20), 21*21 + 2*22, 20*20*6 + 2*20*3},
		{"cone", CreateCylinder(0.5, 0, 1, 10, 1), 2*11 + 2*12, 10*6 + 2*10*3},
		// 2 poles + (stacks-1)*(slices+1)
		{"column top", CreateSphere(0.5, 4, 2), 2 + 1*5, 4*3 + 4*3},
		{"dome", CreateSphere(0.5, 11, 10), 2 + 9*12, 11*3 + 8*11*6 + 11*3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.mesh.Vertices) != tt.vertices {
				t.Errorf("vertices = %d, want %d", len(tt.mesh.Vertices), tt.vertices)
			}
			if len(tt.mesh.Indices) != tt.indices {
				t.Errorf("indices = %d, want %d", len(tt.mesh.Indices), tt.indices)
			}
			for i, idx := range tt.mesh.Indices {
				if int(idx) >= len(tt.mesh.Vertices) {
					t.Fatalf("index %d = %d out of range", i, idx)
				}
			}
		})
	}
}

func TestSphereVerticesOnSurface(t *testing.T) {
	s := CreateSphere(0.5, 11, 10)
	for i, v := range s.Vertices {
		if d := v.Position.Length(); kabs(d-0.5) > eps {
			t.Fatalf("vertex %d at distance %f", i, d)
		}
		if l := v.Normal.Length(); kabs(l-1) > eps {
			t.Fatalf("normal %d has length %f", i, l)
		}
	}
}

func TestHillsNormalMatchesGradient(t *testing.T) {
	// The normal is (-dh/dx, 1, -dh/dz) normalized.
	const h = 1e-3
	for _, p := range [][2]float32{{0, 0}, {10, -20}, {-35, 42}} {
		x, z := float64(p[0]), float64(p[1])
		height := func(x, z float64) float64 { return 0.3 * (z*m.Sin(0.1*x) + x*m.Cos(0.1*z)) }
		dx := (height(x+h, z) - height(x-h, z)) / (2 * h)
		dz := (height(x, z+h) - height(x, z-h)) / (2 * h)
		want := NewVec3(float32(-dx), 1, float32(-dz)).Normalize()
		if got := HillsNormal(p[0], p[1]); !got.Compare(want, 1e-3) {
			t.Errorf("HillsNormal(%v) = %+v, want %+v", p, got, want)
		}
	}
}
