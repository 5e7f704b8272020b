package interpolation

import (
	"math/cmplx"
	"testing"
)

// createTestGrid builds a grid whose value is a linear function of position,
// which bilinear interpolation must reproduce exactly
func createTestGrid(width, height int) *Grid {
	g := &Grid{Data: make([]complex128, width*height), Width: width, Height: height}
	for i := 0; i < height; i++ {
		for j := 0; j < width; j++ {
			g.Data[i*width+j] = complex(float64(2*i+j), float64(i-j))
		}
	}
	return g
}

func TestBilinearReproducesLinearField(t *testing.T) {
	b := NewBilinear(createTestGrid(5, 4))

	points := [][2]float64{{0, 0}, {1.5, 2.25}, {2.75, 0.5}, {3, 4}, {0.1, 3.9}}
	for _, p := range points {
		got, ok := b.At(p[0], p[1])
		if !ok {
			t.Fatalf("Point %v should be inside the support", p)
		}
		want := complex(2*p[0]+p[1], p[0]-p[1])
		if cmplx.Abs(got-want) > 1e-12 {
			t.Errorf("At(%v) = %v, want %v", p, got, want)
		}
	}
}

// TestBilinearOutOfSupport verifies samples outside the grid are zero-filled
func TestBilinearOutOfSupport(t *testing.T) {
	b := NewBilinear(createTestGrid(4, 4))

	for _, p := range [][2]float64{{-0.01, 1}, {1, 3.01}, {4, 0}, {1, -5}} {
		got, ok := b.At(p[0], p[1])
		if ok {
			t.Errorf("Point %v should be outside the support", p)
		}
		if got != 0 {
			t.Errorf("Out-of-support value should be zero, got %v", got)
		}
	}
}
