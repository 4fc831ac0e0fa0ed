// Package waves simulates a damped 2D wave equation on a regular height grid.
//
// Heights live in three buffers (previous, current, next) selected by a
// rotating index, so advancing a step renames buffers instead of copying.
// Only interior cells are simulated; the border stays flat at height 0 with
// an upward normal.
package waves

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/castle/engine/math"
)

// DisturbMargin is the minimum distance, in cells, between a disturbed cell
// and any edge of the grid.
const DisturbMargin = 4

var (
	ErrGridTooSmall      = errors.New("wave grid must be at least 4x4")
	ErrDisturbOutOfRange = errors.New("disturbance outside the grid interior")
)

type Grid struct {
	m, n int

	spatialStep float32
	timeStep    float32

	k1, k2, k3 float32

	heights [3][]float32
	current int

	normals  []math.Vec3
	tangents []math.Vec3

	accumulated float32
	steps       uint64
}

// New creates an m x n grid (rows x columns) with dx spacing, advanced in
// fixed steps of dt seconds.
func New(m, n int, dx, dt, speed, damping float32) (*Grid, error) {
	if m < 4 || n < 4 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrGridTooSmall, m, n)
	}
	if dx <= 0 || dt <= 0 {
		return nil, fmt.Errorf("wave grid spacing and time step must be positive, got dx=%f dt=%f", dx, dt)
	}

	d := damping*dt + 2.0
	e := (speed * speed) * (dt * dt) / (dx * dx)

	g := &Grid{
		m:           m,
		n:           n,
		spatialStep: dx,
		timeStep:    dt,
		k1:          (damping*dt - 2.0) / d,
		k2:          (4.0 - 8.0*e) / d,
		k3:          (2.0 * e) / d,
		normals:     make([]math.Vec3, m*n),
		tangents:    make([]math.Vec3, m*n),
	}
	for b := range g.heights {
		g.heights[b] = make([]float32, m*n)
	}
	for k := range g.normals {
		g.normals[k] = math.NewVec3Up()
		g.tangents[k] = math.NewVec3(1, 0, 0)
	}
	return g, nil
}

func (g *Grid) RowCount() int { return g.m }
func (g *Grid) ColumnCount() int { return g.n }
func (g *Grid) VertexCount() int { return g.m * g.n }
func (g *Grid) TriangleCount() int { return (g.m - 1) * (g.n - 1) * 2 }
func (g *Grid) SpatialStep() float32 { return g.spatialStep }
func (g *Grid) TimeStep() float32 { return g.timeStep }
func (g *Grid) Width() float32 { return float32(g.n) * g.spatialStep }
func (g *Grid) Depth() float32 { return float32(g.m) * g.spatialStep }

// Steps is the number of simulation steps taken so far.
func (g *Grid) Steps() uint64 { return g.steps }

// Coefficients returns the constant weights of the previous height, the
// current height and the neighbour sum.
func (g *Grid) Coefficients() (k1, k2, k3 float32) { return g.k1, g.k2, g.k3 }

func (g *Grid) prevIndex() int { return (g.current + 2) % 3 }
func (g *Grid) nextIndex() int { return (g.current + 1) % 3 }

// Height is the current height at row i, column j.
func (g *Grid) Height(i, j int) float32 {
	return g.heights[g.current][i*g.n+j]
}

// Heights exposes the current state buffer. It is overwritten two steps
// later, so callers must not keep it.
func (g *Grid) Heights() []float32 {
	return g.heights[g.current]
}

// Position returns the world-space vertex for flattened row-major index k.
func (g *Grid) Position(k int) math.Vec3 {
	i, j := k/g.n, k%g.n
	halfWidth := float32(g.n-1) * g.spatialStep * 0.5
	halfDepth := float32(g.m-1) * g.spatialStep * 0.5
	return math.NewVec3(
		-halfWidth+float32(j)*g.spatialStep,
		g.heights[g.current][k],
		halfDepth-float32(i)*g.spatialStep,
	)
}

func (g *Grid) Normal(k int) math.Vec3 {
	return g.normals[k]
}

func (g *Grid) TangentX(k int) math.Vec3 {
	return g.tangents[k]
}

// Indices returns the triangle list covering the grid, two triangles per
// quad, matching the vertex order of Position.
func (g *Grid) Indices() []uint32 {
	out := make([]uint32, 0, g.TriangleCount()*3)
	n := g.n
	for i := 0; i < g.m-1; i++ {
		for j := 0; j < n-1; j++ {
			a := uint32(i*n + j)
			b := uint32(i*n + j + 1)
			c := uint32((i+1)*n + j)
			d := uint32((i+1)*n + j + 1)
			out = append(out, a, b, c, c, b, d)
		}
	}
	return out
}

// Disturb raises the current height at (i, j) by magnitude and its four
// orthogonal neighbours by half of it. The cell must be at least
// DisturbMargin cells away from every edge; otherwise the grid is left
// untouched and ErrDisturbOutOfRange is returned.
func (g *Grid) Disturb(i, j int, magnitude float32) error {
	if i < DisturbMargin || i > g.m-1-DisturbMargin || j < DisturbMargin || j > g.n-1-DisturbMargin {
		return fmt.Errorf("%w: (%d,%d) on a %dx%d grid", ErrDisturbOutOfRange, i, j, g.m, g.n)
	}
	h := g.heights[g.current]
	n := g.n
	half := 0.5 * magnitude

	h[i*n+j] += magnitude
	h[i*n+j+1] += half
	h[i*n+j-1] += half
	h[(i+1)*n+j] += half
	h[(i-1)*n+j] += half
	return nil
}

// Update accumulates dt and advances the simulation by as many fixed steps
// as fit. The remainder carries over to the next call. Normals are
// recomputed once if any step was taken. It returns the number of steps.
func (g *Grid) Update(dt float32) int {
	g.accumulated += dt
	taken := 0
	for g.accumulated >= g.timeStep {
		g.step()
		g.accumulated -= g.timeStep
		taken++
	}
	if taken > 0 {
		g.computeNormals()
	}
	return taken
}

// Step advances the simulation by exactly one fixed step and refreshes the
// normals. The time accumulator is left alone.
func (g *Grid) Step() {
	g.step()
	g.computeNormals()
}

// Accumulated is the simulated time not yet consumed by a step.
func (g *Grid) Accumulated() float32 {
	return g.accumulated
}

func (g *Grid) step() {
	prev := g.heights[g.prevIndex()]
	curr := g.heights[g.current]
	next := g.heights[g.nextIndex()]
	n := g.n

	for i := 1; i < g.m-1; i++ {
		for j := 1; j < n-1; j++ {
			k := i*n + j
			next[k] = g.k1*prev[k] +
				g.k2*curr[k] +
				g.k3*(curr[k+n]+curr[k-n]+curr[k+1]+curr[k-1])
		}
	}

	// next becomes current, current becomes previous; the old previous is
	// recycled as the following next.
	g.current = g.nextIndex()
	g.steps++
}

func (g *Grid) computeNormals() {
	h := g.heights[g.current]
	n := g.n
	twoDx := 2.0 * g.spatialStep

	for i := 1; i < g.m-1; i++ {
		for j := 1; j < n-1; j++ {
			k := i*n + j
			l := h[k-1]
			r := h[k+1]
			t := h[k-n]
			b := h[k+n]
			g.normals[k] = math.NewVec3(l-r, twoDx, b-t).Normalize()
			g.tangents[k] = math.NewVec3(twoDx, r-l, 0).Normalize()
		}
	}
}
