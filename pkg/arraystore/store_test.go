package arraystore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idftprep/internal/models"
	"idftprep/pkg/ndarray"
)

// createTestRecord builds a record with rows x channels x corrs visibilities
// and recognisable values in every array
func createTestRecord(t *testing.T, rows, channels, corrs, pixels int, seed float32) *models.IDFTInput {
	t.Helper()

	x := make([]float32, pixels)
	y := make([]float32, pixels)
	for i := range x {
		x[i] = seed + float32(i)*0.5
		y[i] = seed - float32(i)*0.25
	}

	uvw := ndarray.New[float64](rows, channels, 3)
	for i := range uvw.Data {
		uvw.Data[i] = float64(seed) * float64(i+1) * 1.5
	}
	vis := ndarray.New[complex64](rows, channels, corrs)
	weights := ndarray.New[float32](rows, channels, corrs)
	for i := range vis.Data {
		vis.Data[i] = complex(seed+float32(i), -float32(i))
		weights.Data[i] = float32(i%3) * seed
	}

	return &models.IDFTInput{X: x, Y: y, UVW: uvw, Visibilities: vis, Weights: weights}
}

func assertRecordsEqual(t *testing.T, want, got *models.IDFTInput) {
	t.Helper()
	assert.Equal(t, want.X, got.X)
	assert.Equal(t, want.Y, got.Y)
	assert.Equal(t, want.UVW.Shape, got.UVW.Shape)
	assert.Equal(t, want.UVW.Data, got.UVW.Data)
	assert.Equal(t, want.Visibilities.Shape, got.Visibilities.Shape)
	assert.Equal(t, want.Visibilities.Data, got.Visibilities.Data)
	assert.Equal(t, want.Weights.Shape, got.Weights.Shape)
	assert.Equal(t, want.Weights.Data, got.Weights.Data)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	inputs := models.IDFTInputs{
		0: createTestRecord(t, 7, 3, 2, 16, 1),
		1: createTestRecord(t, 2, 1, 2, 16, 2),
		2: createTestRecord(t, 5, 4, 1, 16, 3),
	}

	for _, comp := range []string{CompressorNone, CompressorZstd, CompressorLZ4} {
		for _, backend := range []Backend{HostBackend{}, AlignedBackend{Alignment: 64}} {
			t.Run(comp+"/"+backend.Name(), func(t *testing.T) {
				root := filepath.Join(t.TempDir(), "idft2_input")
				store := Open(root, Options{Compressor: comp, ChunkRows: 3, Backend: backend})

				require.NoError(t, store.Save(context.Background(), inputs))

				got, err := store.Load(context.Background())
				require.NoError(t, err)
				require.Len(t, got, 3)
				for k, want := range inputs {
					require.Contains(t, got, k)
					assertRecordsEqual(t, want, got[k])
				}
			})
		}
	}
}

func TestLayoutUsesPartitionGroups(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	store := Open(root, Options{Compressor: CompressorZstd, ChunkRows: 4})
	require.NoError(t, store.Save(context.Background(), models.IDFTInputs{
		3: createTestRecord(t, 5, 2, 2, 4, 1),
	}))

	for _, name := range models.RecordArrays {
		_, err := os.Stat(filepath.Join(root, "ms_3", name, ".zarray"))
		assert.NoError(t, err, "missing metadata for %s", name)
	}
	_, err := os.Stat(filepath.Join(root, ".zgroup"))
	assert.NoError(t, err)

	// Five rows in chunks of four: two chunks along the first axis.
	for _, key := range []string{"0.0.0", "1.0.0"} {
		_, err := os.Stat(filepath.Join(root, "ms_3", "visibilities", key))
		assert.NoError(t, err, "missing chunk %s", key)
	}

	meta, err := ReadMetadata(filepath.Join(root, "ms_3", "visibilities"))
	require.NoError(t, err)
	assert.Equal(t, "<c8", meta.DType)
	assert.Equal(t, []int{5, 2, 2}, meta.Shape)
	assert.Equal(t, []int{4, 2, 2}, meta.Chunks)
	require.NotNil(t, meta.Compressor)
	assert.Equal(t, "zstd", meta.Compressor.ID)

	indices, err := store.Partitions()
	require.NoError(t, err)
	assert.Equal(t, []int{3}, indices)
}

func TestSaveWithoutOverwriteFails(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	inputs := models.IDFTInputs{0: createTestRecord(t, 2, 1, 2, 4, 1)}

	require.NoError(t, Open(root, Options{}).Save(context.Background(), inputs))

	err := Open(root, Options{Overwrite: false}).Save(context.Background(), inputs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExists))

	replacement := models.IDFTInputs{5: createTestRecord(t, 1, 1, 2, 4, 9)}
	store := Open(root, Options{Overwrite: true})
	require.NoError(t, store.Save(context.Background(), replacement))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, 5)
}

func TestLoadRejectsNonGroup(t *testing.T) {
	_, err := Open(t.TempDir(), Options{}).Load(context.Background())
	assert.True(t, errors.Is(err, ErrNotGroup))
}

func TestReadArrayDTypeMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a")
	a, _ := ndarray.FromSlice([]float32{1, 2, 3}, 3)
	require.NoError(t, WriteArray(context.Background(), dir, a, ArrayOptions{}))

	_, err := ReadArray[float64](context.Background(), dir, nil)
	assert.Error(t, err)

	b, err := ReadArray[float32](context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, b.Data)
}

func TestBoolArrayRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "flag")
	a, _ := ndarray.FromSlice([]bool{true, false, false, true, true, false}, 3, 2)
	require.NoError(t, WriteArray(context.Background(), dir, a, ArrayOptions{Compressor: CompressorLZ4, ChunkRows: 2}))

	b, err := ReadArray[bool](context.Background(), dir, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestAlignedBackend(t *testing.T) {
	b := AlignedBackend{Alignment: 64}
	for _, n := range []int{1, 17, 4096} {
		buf := b.Alloc(n)
		require.Len(t, buf, n)
		assert.Zero(t, uintptr(unsafe.Pointer(&buf[0]))%64)
	}

	_, err := BackendByName("gpu")
	assert.Error(t, err)
	host, err := BackendByName("")
	require.NoError(t, err)
	assert.Equal(t, "host", host.Name())
}

func TestUnknownCompressor(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a")
	a, _ := ndarray.FromSlice([]float32{1}, 1)
	assert.Error(t, WriteArray(context.Background(), dir, a, ArrayOptions{Compressor: "blosc"}))
}
