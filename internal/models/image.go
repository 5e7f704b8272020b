package models

import "idftprep/pkg/units"

// Image is the square reference grid the visibilities are mapped onto.
type Image struct {
	// Data holds Size*Size brightness values in row-major order.
	Data []float64

	// Size is the pixel count per side.
	Size int

	// Cellsize is the angular size of one pixel along x and y.
	Cellsize [2]units.Angle

	// Chunks is the tiling used when the grid is evaluated or stored.
	Chunks [2]int

	// X and Y are the coordinate meshes of the grid: X[i*Size+j] = j and
	// Y[i*Size+j] = i.
	X []int32
	Y []int32

	// Attrs carries header metadata such as CDELT1 and CDELT2 (degrees).
	Attrs map[string]float64
}

// Shape returns (Size, Size).
func (img *Image) Shape() [2]int { return [2]int{img.Size, img.Size} }

// Delta returns the cellsize in radians along x and y.
func (img *Image) Delta() [2]float64 {
	return [2]float64{img.Cellsize[0].Radians(), img.Cellsize[1].Radians()}
}
