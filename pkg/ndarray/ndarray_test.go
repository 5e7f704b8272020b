package ndarray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeatAxis1(t *testing.T) {
	a, err := FromSlice([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	out, err := RepeatAxis1(a, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 2}, out.Shape)
	for c := 0; c < 3; c++ {
		assert.Equal(t, float32(1), out.At(0, c, 0))
		assert.Equal(t, float32(2), out.At(0, c, 1))
		assert.Equal(t, float32(3), out.At(1, c, 0))
		assert.Equal(t, float32(4), out.At(1, c, 1))
	}

	_, err = RepeatAxis1(New[float32](2, 2, 2), 3)
	assert.Error(t, err)
}

func TestMaskLast(t *testing.T) {
	a, err := FromSlice([]int32{0, 1, 2, 3, 10, 11, 12, 13}, 2, 4)
	require.NoError(t, err)

	out, err := MaskLast(a, []bool{true, false, false, true})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, out.Shape)
	assert.Equal(t, []int32{0, 3, 10, 13}, out.Data)

	_, err = MaskLast(a, []bool{true})
	assert.Error(t, err)
}

func TestZeroWhereAndSub(t *testing.T) {
	a, _ := FromSlice([]complex64{1 + 1i, 2, 3}, 3)
	b, _ := FromSlice([]complex64{1, 1, 1}, 3)

	d, err := Sub(a, b)
	require.NoError(t, err)
	assert.Equal(t, []complex64{1i, 1, 2}, d.Data)

	require.NoError(t, ZeroWhere(d, []bool{false, true, false}))
	assert.Equal(t, []complex64{1i, 0, 2}, d.Data)

	_, err = Sub(a, New[complex64](2))
	assert.Error(t, err)
}

func TestFromSliceRejectsWrongLength(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, 2, 2)
	assert.Error(t, err)
	assert.Equal(t, []int{12, 4, 1}, New[float64](2, 3, 4).Strides())
}
