package models

import "idftprep/pkg/ndarray"

// Array names of an IDFT input record, in storage order.
const (
	ArrayX            = "x"
	ArrayY            = "y"
	ArrayUVW          = "uvw"
	ArrayVisibilities = "visibilities"
	ArrayWeights      = "weights"
)

// RecordArrays lists the arrays every IDFT input record carries.
var RecordArrays = []string{ArrayX, ArrayY, ArrayUVW, ArrayVisibilities, ArrayWeights}

// IDFTInput is the prepared form of one partition, ready for a direct
// Fourier-transform imaging kernel. It is never modified after creation.
type IDFTInput struct {
	// X and Y are per-pixel coordinates (length Size*Size) relative to the
	// partition's phase centre. Partitions sharing a field share these slices.
	X []float32
	Y []float32

	// UVW has shape (rows, channels, 3) in wavelengths.
	UVW ndarray.Array[float64]

	// Visibilities has shape (rows, channels, selected correlations).
	Visibilities ndarray.Array[complex64]

	// Weights has the same shape as Visibilities; flagged samples are zero.
	Weights ndarray.Array[float32]
}

// IDFTInputs maps a partition index to its prepared record.
type IDFTInputs map[int]*IDFTInput
