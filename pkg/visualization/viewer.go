// Package visualization renders quicklook images of prepared IDFT inputs:
// the uv coverage weighted by imaging weight, and the mean residual
// amplitude per uv cell.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"idftprep/internal/models"
)

// Plane selects what a quicklook shows.
type Plane string

const (
	// PlaneWeights accumulates imaging weight per uv cell.
	PlaneWeights Plane = "weights"

	// PlaneAmplitude shows the weighted mean residual amplitude per uv cell.
	PlaneAmplitude Plane = "amplitude"
)

// clipQuantile is the brightness saturation point of a rendered plane.
const clipQuantile = 0.99

// Viewer renders uv-plane quicklooks of a set of prepared partitions.
type Viewer struct {
	inputs models.IDFTInputs

	// size is the side length of the rendered uv plane in pixels
	size int

	// maxUV is the largest |u| or |v| in wavelengths; it maps to the edge
	maxUV float64
}

// NewViewer creates a viewer rendering size×size planes.
func NewViewer(inputs models.IDFTInputs, size int) *Viewer {
	v := &Viewer{inputs: inputs, size: size}
	for _, rec := range inputs {
		for i := 0; i+1 < len(rec.UVW.Data); i += 3 {
			v.maxUV = max(v.maxUV, math.Abs(rec.UVW.Data[i]), math.Abs(rec.UVW.Data[i+1]))
		}
	}
	return v
}

// MaxUV returns the uv extent covered by the rendered plane, in wavelengths.
func (v *Viewer) MaxUV() float64 { return v.maxUV }

func (v *Viewer) pixel(x float64) int {
	return int(math.Round((x/v.maxUV + 1) / 2 * float64(v.size-1)))
}

// Grid accumulates the selected plane onto a size×size row-major grid with
// v increasing upwards. Each sample also lands on its conjugate (-u, -v).
func (v *Viewer) Grid(plane Plane) ([]float64, error) {
	if v.size < 2 {
		return nil, fmt.Errorf("plane size must be at least 2, got %d", v.size)
	}
	if plane != PlaneWeights && plane != PlaneAmplitude {
		return nil, fmt.Errorf("invalid plane: %s (must be weights or amplitude)", plane)
	}

	sum := make([]float64, v.size*v.size)
	norm := make([]float64, v.size*v.size)
	if v.maxUV == 0 {
		return sum, nil
	}

	for _, rec := range v.inputs {
		shape := rec.Weights.Shape
		if len(shape) != 3 {
			return nil, fmt.Errorf("weights must be 3-dimensional, got shape %v", shape)
		}
		rows, nchan, nsel := shape[0], shape[1], shape[2]

		for r := 0; r < rows; r++ {
			for c := 0; c < nchan; c++ {
				base := (r*nchan + c) * 3
				uu, vv := rec.UVW.Data[base], rec.UVW.Data[base+1]
				for k := 0; k < nsel; k++ {
					idx := (r*nchan+c)*nsel + k
					weight := float64(rec.Weights.Data[idx])
					if weight == 0 {
						continue
					}
					value := weight
					if plane == PlaneAmplitude {
						value = weight * cmplx.Abs(complex128(rec.Visibilities.Data[idx]))
					}
					for _, sign := range []float64{1, -1} {
						cell := (v.size-1-v.pixel(sign*vv))*v.size + v.pixel(sign*uu)
						sum[cell] += value
						norm[cell] += weight
					}
				}
			}
		}
	}

	if plane == PlaneAmplitude {
		for i := range sum {
			if norm[i] > 0 {
				sum[i] /= norm[i]
			}
		}
	}
	return sum, nil
}

// ExtractPlane renders the selected plane as a 16-bit grayscale image.
// Brightness saturates at the 99th percentile of the occupied cells.
func (v *Viewer) ExtractPlane(plane Plane) (image.Image, error) {
	grid, err := v.Grid(plane)
	if err != nil {
		return nil, err
	}

	var occupied []float64
	for _, x := range grid {
		if x > 0 {
			occupied = append(occupied, x)
		}
	}

	img := image.NewGray16(image.Rect(0, 0, v.size, v.size))
	if len(occupied) == 0 {
		return img, nil
	}
	slices.Sort(occupied)
	hi := stat.Quantile(clipQuantile, stat.Empirical, occupied, nil)

	for y := 0; y < v.size; y++ {
		for x := 0; x < v.size; x++ {
			value := uint16(math.Max(0, math.Min(65535, grid[y*v.size+x]/hi*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img, nil
}

// SavePlane saves a rendered plane as PNG or JPEG depending on the file
// extension.
func (v *Viewer) SavePlane(img image.Image, filename string) error {
	var encode func(*os.File) error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		encode = func(f *os.File) error { return png.Encode(f, img) }
	case ".jpg", ".jpeg":
		encode = func(f *os.File) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 90}) }
	default:
		return fmt.Errorf("unsupported quicklook format %q (use .png or .jpg)", filepath.Ext(filename))
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return encode(file)
}

// SaveQuicklook writes the weights plane to filename and the amplitude plane
// next to it with an "_amplitude" suffix.
func (v *Viewer) SaveQuicklook(filename string) error {
	ext := filepath.Ext(filename)
	targets := []struct {
		plane Plane
		path  string
	}{
		{PlaneWeights, filename},
		{PlaneAmplitude, strings.TrimSuffix(filename, ext) + "_amplitude" + ext},
	}
	for _, t := range targets {
		img, err := v.ExtractPlane(t.plane)
		if err != nil {
			return err
		}
		if err := v.SavePlane(img, t.path); err != nil {
			return fmt.Errorf("failed to save %s plane: %w", t.plane, err)
		}
	}
	return nil
}
