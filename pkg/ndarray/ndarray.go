// Package ndarray holds the small set of dense, row-major array operations the
// preparation pipeline needs: shape bookkeeping, broadcasting a per-row array
// across a new channel axis, and selecting entries along the last axis.
package ndarray

import (
	"fmt"
	"slices"
)

// Numeric is the set of element types that support arithmetic.
type Numeric interface {
	~int32 | ~int64 | ~float32 | ~float64 | ~complex64 | ~complex128
}

// Array is a dense array stored in C (row-major) order.
type Array[T any] struct {
	Shape []int
	Data  []T
}

// New allocates a zeroed array of the given shape.
func New[T any](shape ...int) Array[T] {
	return Array[T]{Shape: slices.Clone(shape), Data: make([]T, Product(shape))}
}

// FromSlice wraps data with shape after checking the element count.
func FromSlice[T any](data []T, shape ...int) (Array[T], error) {
	if n := Product(shape); n != len(data) {
		return Array[T]{}, fmt.Errorf("shape %v needs %d elements, got %d", shape, n, len(data))
	}
	return Array[T]{Shape: slices.Clone(shape), Data: data}, nil
}

// Product returns the number of elements of an array with the given shape.
func Product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Size returns the number of elements.
func (a Array[T]) Size() int { return len(a.Data) }

// Ndim returns the number of dimensions.
func (a Array[T]) Ndim() int { return len(a.Shape) }

// Strides returns the element strides of each axis.
func (a Array[T]) Strides() []int {
	strides := make([]int, len(a.Shape))
	step := 1
	for i := len(a.Shape) - 1; i >= 0; i-- {
		strides[i] = step
		step *= a.Shape[i]
	}
	return strides
}

// At returns the element at the given multi-index.
func (a Array[T]) At(idx ...int) T {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("ndarray: %d indices for %d-d array", len(idx), len(a.Shape)))
	}
	off := 0
	for i, s := range a.Strides() {
		if idx[i] < 0 || idx[i] >= a.Shape[i] {
			panic(fmt.Sprintf("ndarray: index %v out of range for shape %v", idx, a.Shape))
		}
		off += idx[i] * s
	}
	return a.Data[off]
}

// SameShape reports whether two shapes are identical.
func SameShape(a, b []int) bool { return slices.Equal(a, b) }

// RepeatAxis1 turns a (rows, k) array into (rows, n, k) by repeating each row
// n times along a new axis 1.
func RepeatAxis1[T any](a Array[T], n int) (Array[T], error) {
	if a.Ndim() != 2 {
		return Array[T]{}, fmt.Errorf("repeat needs a 2-d array, got shape %v", a.Shape)
	}
	rows, k := a.Shape[0], a.Shape[1]
	out := New[T](rows, n, k)
	for r := 0; r < rows; r++ {
		src := a.Data[r*k : (r+1)*k]
		for c := 0; c < n; c++ {
			copy(out.Data[(r*n+c)*k:], src)
		}
	}
	return out, nil
}

// MaskLast keeps the entries of the last axis whose mask value is true.
func MaskLast[T any](a Array[T], mask []bool) (Array[T], error) {
	if a.Ndim() == 0 {
		return Array[T]{}, fmt.Errorf("mask needs at least one axis")
	}
	k := a.Shape[len(a.Shape)-1]
	if len(mask) != k {
		return Array[T]{}, fmt.Errorf("mask length %d does not match last axis %d", len(mask), k)
	}

	kept := CountTrue(mask)
	shape := slices.Clone(a.Shape)
	shape[len(shape)-1] = kept
	out := New[T](shape...)

	outer := 0
	if k > 0 {
		outer = len(a.Data) / k
	}
	dst := 0
	for i := 0; i < outer; i++ {
		row := a.Data[i*k : (i+1)*k]
		for j, keep := range mask {
			if keep {
				out.Data[dst] = row[j]
				dst++
			}
		}
	}
	return out, nil
}

// CountTrue returns the number of true entries in mask.
func CountTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

// ZeroWhere sets a[i] to zero wherever flag[i] is true, in place.
func ZeroWhere[T Numeric](a Array[T], flag []bool) error {
	if len(flag) != len(a.Data) {
		return fmt.Errorf("flag length %d does not match array size %d", len(flag), len(a.Data))
	}
	for i, f := range flag {
		if f {
			a.Data[i] = 0
		}
	}
	return nil
}

// Sub returns a - b element-wise. The shapes must match.
func Sub[T Numeric](a, b Array[T]) (Array[T], error) {
	if !SameShape(a.Shape, b.Shape) {
		return Array[T]{}, fmt.Errorf("shape mismatch %v vs %v", a.Shape, b.Shape)
	}
	out := New[T](a.Shape...)
	for i := range a.Data {
		out.Data[i] = a.Data[i] - b.Data[i]
	}
	return out, nil
}
