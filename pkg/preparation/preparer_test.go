package preparation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idftprep/internal/logging"
	"idftprep/pkg/arraystore"
	"idftprep/pkg/datasetio"
	"idftprep/pkg/fitsio"
)

func TestPreparerProcess(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	synth := datasetio.DefaultSynthOptions()
	synth.Rows = 60
	synth.Antennas = 6
	ds, err := datasetio.Synthesize(synth)
	require.NoError(t, err)

	inputDir := filepath.Join(tmpDir, "obs")
	require.NoError(t, datasetio.Write(ctx, inputDir, ds, datasetio.WriteOptions{}))

	opts := DefaultOptions()
	opts.ImageSize = 16
	opts.Workers = 2
	opts.Logger = logging.NewWriter(os.Stderr, "error", "text")

	params := &Params{
		InputDir:      inputDir,
		OutputPath:    filepath.Join(tmpDir, "out.zarr"),
		Options:       opts,
		Store:         arraystore.Options{Compressor: arraystore.CompressorLZ4, ChunkRows: 25},
		FITSPath:      filepath.Join(tmpDir, "model.fits"),
		QuicklookPath: filepath.Join(tmpDir, "coverage.png"),
		QuicklookSize: 32,
	}
	preparer := NewPreparer(params)
	require.NoError(t, preparer.Process(ctx))

	inputs := preparer.Inputs()
	require.Len(t, inputs, len(ds.Partitions))
	for i, part := range preparer.Dataset().Partitions {
		assert.True(t, part.HasModel(), "partition %d", i)
		assert.Equal(t, []int{part.Rows, part.Channels, 2}, inputs[i].Visibilities.Shape)
	}

	loaded, err := arraystore.Open(params.OutputPath, arraystore.Options{}).Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, len(inputs))
	for i, rec := range inputs {
		assert.Equal(t, rec.Visibilities, loaded[i].Visibilities)
		assert.Equal(t, rec.Weights, loaded[i].Weights)
		assert.Equal(t, rec.X, loaded[i].X)
	}

	img, _, err := fitsio.ReadImageFile(params.FITSPath)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Size)
	assert.InDelta(t, preparer.Image().Attrs["CDELT1"], img.Attrs["CDELT1"], 1e-15)

	for _, name := range []string{"coverage.png", "coverage_amplitude.png"} {
		_, err := os.Stat(filepath.Join(tmpDir, name))
		assert.NoError(t, err, name)
	}
}

func TestPreparerWithInMemoryDataset(t *testing.T) {
	ds := createTestDataset()
	for _, p := range ds.Partitions {
		p.Model = nil
	}
	opts := DefaultOptions()
	opts.ImageSize = 8

	preparer := NewPreparer(&Params{
		Dataset:    ds,
		OutputPath: filepath.Join(t.TempDir(), "out"),
		Options:    opts,
	})
	require.NoError(t, preparer.Process(context.Background()))
	assert.Len(t, preparer.Inputs(), 3)
	assert.Equal(t, 8, preparer.Image().Size)
}

func TestPreparerErrors(t *testing.T) {
	ctx := context.Background()

	err := NewPreparer(&Params{Dataset: createTestDataset()}).Process(ctx)
	assert.Error(t, err, "missing output path")

	err = NewPreparer(&Params{
		InputDir:   filepath.Join(t.TempDir(), "absent"),
		OutputPath: filepath.Join(t.TempDir(), "out"),
	}).Process(ctx)
	assert.ErrorIs(t, err, os.ErrNotExist)

	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "stale"), []byte("x"), 0644))
	ds := createTestDataset()
	for _, p := range ds.Partitions {
		p.Model = nil
	}
	opts := DefaultOptions()
	opts.ImageSize = 8
	err = NewPreparer(&Params{
		Dataset:    ds,
		OutputPath: out,
		Options:    opts,
		Store:      arraystore.Options{Overwrite: false},
	}).Process(ctx)
	assert.ErrorIs(t, err, arraystore.ErrExists)
}

func TestNewPreparerInstallsLogger(t *testing.T) {
	params := &Params{Dataset: createTestDataset()}
	p := NewPreparer(params)
	require.NotNil(t, params.Options.Logger)
	assert.Same(t, params.Options.Logger, p.log)
}

func TestPreparerRejectsSwappedFields(t *testing.T) {
	ds := createTestDataset()
	for _, part := range ds.Partitions {
		part.Model = nil
	}
	ds.Fields[0], ds.Fields[1] = ds.Fields[1], ds.Fields[0]

	opts := DefaultOptions()
	opts.ImageSize = 8
	err := NewPreparer(&Params{
		Dataset:    ds,
		OutputPath: filepath.Join(t.TempDir(), "out"),
		Options:    opts,
	}).Process(context.Background())
	assert.ErrorIs(t, err, ErrPrecondition)
}
