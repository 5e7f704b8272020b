package preparation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"idftprep/internal/models"
	"idftprep/pkg/imaging"
	"idftprep/pkg/ndarray"
	"idftprep/pkg/predict"
	"idftprep/pkg/units"
)

// ErrPrecondition marks malformed input: unknown table ids, inconsistent
// array shapes or a missing model column. It is never recovered from.
var ErrPrecondition = errors.New("precondition violated")

// Options holds the tunables of the two transforms.
type Options struct {
	// Oversampling divides the theoretical resolution to obtain the cellsize.
	Oversampling float64

	// ImageSize is the pixel count per side of the reference grid.
	ImageSize int

	// Cellsize overrides the resolution-derived cellsize when non-zero.
	Cellsize units.Angle

	// PaddingFactor is passed to the predictor; 1.0 means no padding.
	PaddingFactor float64

	// Workers bounds how many partitions are processed concurrently.
	Workers int

	Logger *slog.Logger
}

// DefaultOptions returns the standard settings: oversampling 7, a 64 pixel
// grid, no padding and one worker.
func DefaultOptions() Options {
	return Options{
		Oversampling:  imaging.DefaultOversampling,
		ImageSize:     imaging.DefaultImageSize,
		PaddingFactor: 1.0,
		Workers:       1,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return 1
	}
	return o.Workers
}

// ProcessModelVisibilities builds the reference image for ds and predicts
// its model visibilities. The returned dataset is a copy carrying the model
// column; ds is left untouched.
func ProcessModelVisibilities(ctx context.Context, ds *models.Dataset, opts Options) (*models.Dataset, *models.Image, error) {
	log := opts.logger()
	if err := ds.CheckTables(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}

	cellsize := opts.Cellsize
	if cellsize == 0 {
		res, err := ds.Resolution()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrPrecondition, err)
		}
		cellsize = imaging.CellsizeFromResolution(res, opts.Oversampling)
	}
	size := opts.ImageSize
	if size <= 0 {
		size = imaging.DefaultImageSize
	}

	img := imaging.NewImage(cellsize, size)
	log.Info("reference image created",
		"size", size,
		"cellsize_arcsec", cellsize.Arcseconds(),
	)

	predictor := predict.NewPredictor(predict.Params{
		Cellsize:      img.Cellsize,
		PaddingFactor: opts.PaddingFactor,
		Workers:       opts.workers(),
		Logger:        log,
	})
	withModel, stats, err := predictor.Transform(ctx, ds, img)
	if err != nil {
		return nil, nil, fmt.Errorf("model prediction failed: %w", err)
	}

	log.Info("model visibilities predicted",
		"partitions", len(withModel.Partitions),
		"samples", stats.Samples,
		"out_of_support", stats.OutOfSupport,
	)
	return withModel, img, nil
}

// ProcessDataIDFT2 prepares every partition of ds for direct Fourier
// imaging on img. The result is keyed by partition position in ds.
//
// Partitions are independent and processed concurrently; pixel coordinates
// are computed once per field and shared between partitions.
func ProcessDataIDFT2(ctx context.Context, ds *models.Dataset, img *models.Image, opts Options) (models.IDFTInputs, error) {
	log := opts.logger()
	if err := ds.CheckTables(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}
	mapper := imaging.NewCoordinateMapper(img, ds.Fields)

	records := make([]*models.IDFTInput, len(ds.Partitions))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.workers())

	for idx, part := range ds.Partitions {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := preparePartition(ds, part, mapper)
			if err != nil {
				return fmt.Errorf("partition %d: %w", idx, err)
			}
			records[idx] = rec
			log.Debug("partition prepared",
				"partition", idx,
				"field", part.FieldID,
				"spw", part.SpwID,
				"shape", rec.Visibilities.Shape,
			)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make(models.IDFTInputs, len(records))
	for idx, rec := range records {
		out[idx] = rec
	}
	log.Info("idft inputs prepared", "partitions", len(out))
	return out, nil
}

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

// preparePartition derives the five arrays of one partition.
func preparePartition(ds *models.Dataset, part *models.Partition, mapper *imaging.CoordinateMapper) (*models.IDFTInput, error) {
	if !part.HasModel() {
		return nil, preconditionf("model column has not been predicted")
	}
	if err := part.Validate(); err != nil {
		return nil, preconditionf("%v", err)
	}

	field, err := ds.Field(part.FieldID)
	if err != nil {
		return nil, preconditionf("%v", err)
	}
	spw, err := ds.SpectralWindow(part.SpwID)
	if err != nil {
		return nil, preconditionf("%v", err)
	}
	pol, err := ds.Polarization(part.PolarizationID)
	if err != nil {
		return nil, preconditionf("%v", err)
	}

	nchan := spw.NumChannels()
	if nchan != part.Channels {
		return nil, preconditionf("spectral window %d has %d channels, partition has %d",
			part.SpwID, nchan, part.Channels)
	}
	if len(pol.Correlations) != part.Correlations {
		return nil, preconditionf("polarization %d has %d correlations, partition has %d",
			part.PolarizationID, len(pol.Correlations), part.Correlations)
	}

	// Step 1: correlation selection
	mask := pol.ParallelHandMask()

	// Step 2: weights
	weights, err := flaggedWeights(part, nchan, mask)
	if err != nil {
		return nil, preconditionf("weights: %v", err)
	}

	// Step 3: residual visibilities
	visibilities, err := residuals(part, mask)
	if err != nil {
		return nil, preconditionf("visibilities: %v", err)
	}

	// Step 4: baselines in wavelengths
	uvw, err := uvwLambdas(part, spw.Equivalency())
	if err != nil {
		return nil, preconditionf("uvw: %v", err)
	}

	// Step 5: pixel coordinates
	x, y, err := mapper.Coordinates(field.ID)
	if err != nil {
		return nil, preconditionf("%v", err)
	}

	return &models.IDFTInput{
		X:            x,
		Y:            y,
		UVW:          uvw,
		Visibilities: visibilities,
		Weights:      weights,
	}, nil
}

// flaggedWeights repeats the imaging weights across channels, zeroes flagged
// samples and keeps the selected correlations.
func flaggedWeights(part *models.Partition, nchan int, mask []bool) (ndarray.Array[float32], error) {
	w, err := ndarray.FromSlice(part.ImagingWeight, part.Rows, part.Correlations)
	if err != nil {
		return ndarray.Array[float32]{}, err
	}
	broadcast, err := ndarray.RepeatAxis1(w, nchan)
	if err != nil {
		return ndarray.Array[float32]{}, err
	}
	if err := ndarray.ZeroWhere(broadcast, part.Flag); err != nil {
		return ndarray.Array[float32]{}, err
	}
	return ndarray.MaskLast(broadcast, mask)
}

// residuals returns data - model restricted to the selected correlations.
func residuals(part *models.Partition, mask []bool) (ndarray.Array[complex64], error) {
	shape := part.VisibilityShape()
	data, err := ndarray.FromSlice(part.Data, shape...)
	if err != nil {
		return ndarray.Array[complex64]{}, err
	}
	model, err := ndarray.FromSlice(part.Model, shape...)
	if err != nil {
		return ndarray.Array[complex64]{}, err
	}
	diff, err := ndarray.Sub(data, model)
	if err != nil {
		return ndarray.Array[complex64]{}, err
	}
	return ndarray.MaskLast(diff, mask)
}

// uvwLambdas repeats uvw across channels and converts each channel from
// metres to wavelengths with that channel's own frequency.
func uvwLambdas(part *models.Partition, eq units.SpectralEquivalency) (ndarray.Array[float64], error) {
	uvw, err := ndarray.FromSlice(part.UVW, part.Rows, 3)
	if err != nil {
		return ndarray.Array[float64]{}, err
	}
	broadcast, err := ndarray.RepeatAxis1(uvw, eq.NumChannels())
	if err != nil {
		return ndarray.Array[float64]{}, err
	}

	nchan := eq.NumChannels()
	for r := 0; r < part.Rows; r++ {
		for c := 0; c < nchan; c++ {
			base := (r*nchan + c) * 3
			for k := 0; k < 3; k++ {
				broadcast.Data[base+k] = eq.MetersToLambdas(broadcast.Data[base+k], c)
			}
		}
	}
	return broadcast, nil
}
