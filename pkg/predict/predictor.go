// Package predict computes model visibilities from an image by a non-uniform
// forward transform: the image is Fourier transformed onto a regular uv grid
// and the grid is interpolated bilinearly at every visibility's (u, v).
package predict

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"idftprep/internal/models"
	"idftprep/pkg/interpolation"
	"idftprep/pkg/units"
)

// Params configures the predictor.
// These parameters control how the image is transformed onto the uv grid and
// how the partitions are scheduled.
type Params struct {
	// Cellsize is the pixel size used to scale the uv grid, per axis.
	// Zero means the image's own cellsize.
	Cellsize [2]units.Angle

	// PaddingFactor enlarges the transformed grid to refine its uv sampling.
	// 1.0 disables padding and smaller values are raised to 1.0.
	PaddingFactor float64

	// HermitianSymmetry evaluates only the u >= 0 half-plane and derives the
	// other half as the conjugate. Off by default: the full plane is sampled.
	HermitianSymmetry bool

	// Workers bounds the number of partitions predicted concurrently.
	// Values below one mean a single worker.
	Workers int

	// Logger receives the out-of-support warning of each run.
	// Nil means slog.Default().
	Logger *slog.Logger
}

// Stats summarises a prediction run.
type Stats struct {
	Samples      int64
	OutOfSupport int64
}

// Predictor fills the model column of a dataset from an image.
type Predictor struct {
	params Params
}

// NewPredictor creates a new predictor with the provided parameters.
// Out-of-range values are replaced by their defaults: padding 1.0, one
// worker and the default logger.
//
// Parameters:
//   - params: Transform and scheduling configuration
//
// Returns:
//   - A Predictor whose Transform can be called repeatedly and concurrently
func NewPredictor(params Params) *Predictor {
	if params.PaddingFactor < 1 {
		params.PaddingFactor = 1
	}
	if params.Workers < 1 {
		params.Workers = 1
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	return &Predictor{params: params}
}

// uvGrid is the transformed image together with its uv sampling.
type uvGrid struct {
	interp *interpolation.Bilinear
	du, dv float64
	centre float64
}

func (p *Predictor) grid(img *models.Image) (*uvGrid, error) {
	cell := p.params.Cellsize
	if cell[0] == 0 || cell[1] == 0 {
		cell = img.Cellsize
	}
	if cell[0] == 0 || cell[1] == 0 {
		return nil, fmt.Errorf("image cellsize is zero")
	}

	padded := int(math.Round(float64(img.Size) * p.params.PaddingFactor))
	if padded < img.Size {
		padded = img.Size
	}
	data := padImage(img.Data, img.Size, padded)
	vis := centredFFT2D(data, padded)

	n := float64(padded)
	return &uvGrid{
		interp: interpolation.NewBilinear(&interpolation.Grid{Data: vis, Width: padded, Height: padded}),
		du:     1 / (n * math.Abs(cell[0].Radians())),
		dv:     1 / (n * math.Abs(cell[1].Radians())),
		centre: float64(padded / 2),
	}, nil
}

// sample evaluates the grid at (u, v) in wavelengths.
func (g *uvGrid) sample(u, v float64, hermitian bool) (complex128, bool) {
	conj := false
	if hermitian && u < 0 {
		u, v = -u, -v
		conj = true
	}
	val, ok := g.interp.At(u/g.du+g.centre, v/g.dv+g.centre)
	if conj {
		val = complex(real(val), -imag(val))
	}
	return val, ok
}

// Transform returns a copy of ds whose partitions carry a freshly computed
// model column. ds itself is not modified: the copy shares the read-only
// data, flag, weight and uvw arrays and owns new model arrays.
//
// The model value is written to the parallel-hand correlations of each
// sample; cross-hand products of an unpolarised model are zero. Samples
// outside the uv support of the image are zero-filled and counted.
func (p *Predictor) Transform(ctx context.Context, ds *models.Dataset, img *models.Image) (*models.Dataset, Stats, error) {
	var stats Stats

	g, err := p.grid(img)
	if err != nil {
		return nil, stats, err
	}

	out := *ds
	out.Partitions = make([]*models.Partition, len(ds.Partitions))

	var samples, outside atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.params.Workers)

	for idx, part := range ds.Partitions {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			model, n, miss, err := p.predictPartition(ds, part, g)
			if err != nil {
				return fmt.Errorf("partition %d: %w", idx, err)
			}
			cp := *part
			cp.Model = model
			out.Partitions[idx] = &cp

			samples.Add(n)
			outside.Add(miss)
			p.params.Logger.Debug("predicted model visibilities",
				"partition", idx,
				"rows", part.Rows,
				"channels", part.Channels,
				"out_of_support", miss,
			)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, stats, err
	}

	stats.Samples = samples.Load()
	stats.OutOfSupport = outside.Load()
	if stats.OutOfSupport > 0 {
		p.params.Logger.Warn("uv samples outside image support were zero-filled",
			"count", stats.OutOfSupport,
			"samples", stats.Samples,
		)
	}
	return &out, stats, nil
}

func (p *Predictor) predictPartition(ds *models.Dataset, part *models.Partition, g *uvGrid) ([]complex64, int64, int64, error) {
	spw, err := ds.SpectralWindow(part.SpwID)
	if err != nil {
		return nil, 0, 0, err
	}
	pol, err := ds.Polarization(part.PolarizationID)
	if err != nil {
		return nil, 0, 0, err
	}
	if spw.NumChannels() != part.Channels {
		return nil, 0, 0, fmt.Errorf("spectral window %d has %d channels, partition has %d",
			part.SpwID, spw.NumChannels(), part.Channels)
	}
	if len(pol.Correlations) != part.Correlations {
		return nil, 0, 0, fmt.Errorf("polarization %d has %d correlations, partition has %d",
			part.PolarizationID, len(pol.Correlations), part.Correlations)
	}
	if len(part.UVW) != 3*part.Rows {
		return nil, 0, 0, fmt.Errorf("uvw has %d elements, expected %d", len(part.UVW), 3*part.Rows)
	}

	mask := pol.ParallelHandMask()
	eq := spw.Equivalency()
	nc, np := part.Channels, part.Correlations
	model := make([]complex64, part.Rows*nc*np)

	var n, miss int64
	for r := 0; r < part.Rows; r++ {
		um, vm := part.UVW[3*r], part.UVW[3*r+1]
		for c := 0; c < nc; c++ {
			u := eq.MetersToLambdas(um, c)
			v := eq.MetersToLambdas(vm, c)
			val, ok := g.sample(u, v, p.params.HermitianSymmetry)
			n++
			if !ok {
				miss++
				continue
			}
			base := (r*nc + c) * np
			for k, parallel := range mask {
				if parallel {
					model[base+k] = complex64(val)
				}
			}
		}
	}
	return model, n, miss, nil
}
