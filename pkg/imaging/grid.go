// Package imaging builds the reference image grid and maps its pixels to
// per-field coordinates relative to each pointing's phase centre.
package imaging

import (
	"idftprep/internal/models"
	"idftprep/pkg/units"
)

const (
	// DefaultOversampling divides the theoretical resolution to obtain the
	// cellsize, keeping the uv-plane comfortably Nyquist sampled.
	DefaultOversampling = 7

	// DefaultImageSize is the default number of pixels per side.
	DefaultImageSize = 64
)

// CellsizeFromResolution returns resolution / oversampling.
func CellsizeFromResolution(resolution units.Angle, oversampling float64) units.Angle {
	if oversampling <= 0 {
		oversampling = DefaultOversampling
	}
	return resolution / units.Angle(oversampling)
}

// NewImage creates a zero-filled size x size image with the same cellsize on
// both axes. See NewImageXY.
func NewImage(cellsize units.Angle, size int) *models.Image {
	return NewImageXY([2]units.Angle{cellsize, cellsize}, size)
}

// NewImageXY creates a zero-filled size x size image held in a single chunk.
// The X and Y coordinate meshes hold the column and row index of every pixel,
// and the CDELT1/CDELT2 attributes record the cellsize in degrees.
//
// size must be positive.
func NewImageXY(cellsize [2]units.Angle, size int) *models.Image {
	n := size * size
	img := &models.Image{
		Data:     make([]float64, n),
		Size:     size,
		Cellsize: cellsize,
		Chunks:   [2]int{size, size},
		X:        make([]int32, n),
		Y:        make([]int32, n),
		Attrs:    make(map[string]float64, 2),
	}

	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			img.X[i*size+j] = int32(j)
			img.Y[i*size+j] = int32(i)
		}
	}

	img.Attrs["CDELT1"] = cellsize[0].Degrees()
	img.Attrs["CDELT2"] = cellsize[1].Degrees()
	return img
}
