package preparation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"idftprep/internal/logging"
	"idftprep/internal/models"
	"idftprep/pkg/arraystore"
	"idftprep/pkg/datasetio"
	"idftprep/pkg/fitsio"
	"idftprep/pkg/visualization"
)

// DefaultQuicklookSize is the side length of quicklook images in pixels.
const DefaultQuicklookSize = 256

// Params holds the input/output configuration of a preparation run.
// These parameters select where the dataset comes from, how the transforms
// are tuned and where every product is written.
type Params struct {
	// InputDir is a dataset directory as written by datasetio.Write.
	// It is ignored when Dataset is set.
	InputDir string

	// Dataset, when non-nil, is used instead of reading InputDir.
	// The preparer never modifies it; the model column goes to a copy.
	Dataset *models.Dataset

	// OutputPath is the root of the array group receiving the IDFT inputs.
	// Each partition is stored under its own ms_<i> group.
	OutputPath string

	// Options tunes the two transforms: oversampling, grid size, an optional
	// cellsize override, predictor padding and the number of workers.
	// Options.Logger is shared by every stage of the run.
	Options Options

	// Store configures the array group: compression, chunking, overwrite
	// policy and the I/O rate limit. Store.Backend is also used when
	// reading the input dataset.
	Store arraystore.Options

	// FITSPath, when set, receives the reference image as a single-HDU FITS
	// file with the cellsize in degrees. Left empty, no image is written.
	FITSPath string

	// QuicklookPath, when set, receives the uv-coverage quicklook and its
	// residual amplitude companion. The extension picks PNG or JPEG.
	QuicklookPath string

	// QuicklookSize is the side length of the quicklook images in pixels.
	// Values of zero or less fall back to DefaultQuicklookSize.
	QuicklookSize int
}

// Preparer runs the whole preparation pipeline:
// 1. Loading the dataset
// 2. Building the reference image and predicting model visibilities
// 3. Deriving the per-partition IDFT inputs
// 4. Saving them to an array group
// 5. Writing the optional FITS image and quicklooks
type Preparer struct {
	params *Params
	log    *slog.Logger

	dataset *models.Dataset
	image   *models.Image
	inputs  models.IDFTInputs
}

// NewPreparer creates a new preparer with the provided parameters.
// When params.Options.Logger is nil the default slog logger is installed,
// so every stage logs through the same handler.
//
// Parameters:
//   - params: Configuration of the run, kept by reference
//
// Returns:
//   - A Preparer ready for Process
func NewPreparer(params *Params) *Preparer {
	log := params.Options.Logger
	if log == nil {
		log = slog.Default()
		params.Options.Logger = log
	}
	return &Preparer{params: params, log: log}
}

// Process runs the complete preparation pipeline. Each stage is logged with
// its duration and the first failure stops the run:
//  1. load reads the dataset, or takes Params.Dataset as is
//  2. predict builds the reference image and fills the model column
//  3. prepare derives weights, residuals, uvw and pixel coordinates
//  4. save writes one group per partition under OutputPath
//
// The FITS image and quicklooks are written afterwards when their paths are
// set. Malformed input surfaces as ErrPrecondition.
//
// Parameters:
//   - ctx: Cancels the run between and within stages
//
// Returns:
//   - An error if OutputPath is empty or any stage fails
func (p *Preparer) Process(ctx context.Context) error {
	if p.params.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}

	if err := p.stage(ctx, "load", p.load); err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	if err := p.stage(ctx, "predict", p.predict); err != nil {
		return err
	}
	if err := p.stage(ctx, "prepare", p.prepare); err != nil {
		return err
	}
	if err := p.stage(ctx, "save", p.save); err != nil {
		return fmt.Errorf("failed to save idft inputs: %w", err)
	}

	if p.params.FITSPath != "" {
		if err := fitsio.WriteImageFile(p.params.FITSPath, p.image); err != nil {
			return fmt.Errorf("failed to write reference image: %w", err)
		}
		p.log.Info("reference image written", "path", p.params.FITSPath)
	}
	if p.params.QuicklookPath != "" {
		size := p.params.QuicklookSize
		if size <= 0 {
			size = DefaultQuicklookSize
		}
		if err := visualization.NewViewer(p.inputs, size).SaveQuicklook(p.params.QuicklookPath); err != nil {
			return fmt.Errorf("failed to write quicklook: %w", err)
		}
		p.log.Info("quicklook written", "path", p.params.QuicklookPath)
	}
	return nil
}

func (p *Preparer) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	logging.LogStageStart(p.log, name)
	if err := fn(ctx); err != nil {
		return err
	}
	logging.LogStageComplete(p.log, name, time.Since(start))
	return nil
}

func (p *Preparer) load(ctx context.Context) error {
	if p.params.Dataset != nil {
		p.dataset = p.params.Dataset
		return nil
	}
	ds, err := datasetio.Read(ctx, p.params.InputDir, p.params.Store.Backend)
	if err != nil {
		return err
	}
	p.dataset = ds
	p.log.Info("dataset loaded",
		"path", p.params.InputDir,
		"partitions", len(ds.Partitions),
		"fields", len(ds.Fields),
	)
	return nil
}

func (p *Preparer) predict(ctx context.Context) error {
	withModel, img, err := ProcessModelVisibilities(ctx, p.dataset, p.params.Options)
	if err != nil {
		return err
	}
	p.dataset = withModel
	p.image = img
	return nil
}

func (p *Preparer) prepare(ctx context.Context) error {
	inputs, err := ProcessDataIDFT2(ctx, p.dataset, p.image, p.params.Options)
	if err != nil {
		return err
	}
	p.inputs = inputs
	return nil
}

func (p *Preparer) save(ctx context.Context) error {
	return arraystore.Open(p.params.OutputPath, p.params.Store).Save(ctx, p.inputs)
}

// Image returns the reference image built by the last Process call.
func (p *Preparer) Image() *models.Image { return p.image }

// Inputs returns the IDFT inputs produced by the last Process call.
func (p *Preparer) Inputs() models.IDFTInputs { return p.inputs }

// Dataset returns the dataset carrying the predicted model column.
func (p *Preparer) Dataset() *models.Dataset { return p.dataset }
