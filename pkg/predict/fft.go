package predict

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// centredFFT2D computes the 2-D DFT of a size x size row-major image whose
// origin sits at pixel (size/2, size/2), returning a grid whose zero
// spatial frequency is also at (size/2, size/2):
//
//	V[p,q] = sum_ij I[i,j] exp(-2*pi*i*((i-c)(p-c) + (j-c)(q-c))/size),  c = size/2
//
// The input is ifftshifted, transformed along rows then columns with gonum's
// complex FFT, and fftshifted back.
func centredFFT2D(data []float64, size int) []complex128 {
	fft := fourier.NewCmplxFFT(size)
	half := size / 2

	// ifftshift while widening to complex
	grid := make([]complex128, size*size)
	for i := 0; i < size; i++ {
		si := (i + half) % size
		for j := 0; j < size; j++ {
			sj := (j + half) % size
			grid[i*size+j] = complex(data[si*size+sj], 0)
		}
	}

	// Row-wise FFT
	row := make([]complex128, size)
	for i := 0; i < size; i++ {
		fft.Coefficients(row, grid[i*size:(i+1)*size])
		copy(grid[i*size:(i+1)*size], row)
	}

	// Column-wise FFT
	col := make([]complex128, size)
	out := make([]complex128, size)
	for j := 0; j < size; j++ {
		for i := 0; i < size; i++ {
			col[i] = grid[i*size+j]
		}
		fft.Coefficients(out, col)
		for i := 0; i < size; i++ {
			grid[i*size+j] = out[i]
		}
	}

	// fftshift
	shifted := make([]complex128, size*size)
	for p := 0; p < size; p++ {
		sp := (p - half + size) % size
		for q := 0; q < size; q++ {
			sq := (q - half + size) % size
			shifted[p*size+q] = grid[sp*size+sq]
		}
	}
	return shifted
}

// padImage centres a size x size image in a padded x padded zero grid.
func padImage(data []float64, size, padded int) []float64 {
	if padded == size {
		return data
	}
	out := make([]float64, padded*padded)
	off := padded/2 - size/2
	for i := 0; i < size; i++ {
		copy(out[(i+off)*padded+off:(i+off)*padded+off+size], data[i*size:(i+1)*size])
	}
	return out
}
