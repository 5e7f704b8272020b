// Package interpolation evaluates regularly gridded complex data at arbitrary
// fractional positions.
package interpolation

import "math"

// Grid is a complex-valued width x height grid in row-major order. Row index
// i runs along the first axis, column index j along the second.
type Grid struct {
	Data   []complex128
	Width  int
	Height int
}

// At returns the grid value at row i, column j.
func (g *Grid) At(i, j int) complex128 {
	return g.Data[i*g.Width+j]
}

// Bilinear interpolates a Grid. Positions whose 2x2 stencil leaves the grid
// are outside the support and evaluate to zero.
type Bilinear struct {
	grid *Grid
}

// NewBilinear creates a bilinear interpolator over grid.
func NewBilinear(grid *Grid) *Bilinear {
	return &Bilinear{grid: grid}
}

// At evaluates the grid at fractional row fi and column fj. The second return
// value is false when the point lies outside the grid support, in which case
// the value is zero.
func (b *Bilinear) At(fi, fj float64) (complex128, bool) {
	i0, ti, ok := stencil(fi, b.grid.Height)
	if !ok {
		return 0, false
	}
	j0, tj, ok := stencil(fj, b.grid.Width)
	if !ok {
		return 0, false
	}

	// A zero fractional part never reads the upper neighbour, so a sample
	// lying exactly on the last row or column stays inside the support.
	i1, j1 := i0+1, j0+1
	if ti == 0 {
		i1 = i0
	}
	if tj == 0 {
		j1 = j0
	}

	g := b.grid
	v00 := g.At(i0, j0)
	v10 := g.At(i1, j0)
	v01 := g.At(i0, j1)
	v11 := g.At(i1, j1)

	wi, wj := complex(ti, 0), complex(tj, 0)
	return (1-wi)*(1-wj)*v00 + wi*(1-wj)*v10 + (1-wi)*wj*v01 + wi*wj*v11, true
}

// stencil returns the lower index and fractional offset of f on an axis of
// length n, and whether the stencil fits on the axis.
func stencil(f float64, n int) (int, float64, bool) {
	if math.IsNaN(f) || f < 0 || f > float64(n-1) {
		return 0, 0, false
	}
	lo := math.Floor(f)
	return int(lo), f - lo, true
}
