package imaging

import (
	"fmt"
	"sync"

	"idftprep/internal/models"
)

// CoordinateMapper turns image pixel indices into coordinates relative to the
// phase centre of each field.
//
// The result depends only on the field and the image geometry, never on
// individual visibilities, so it is computed once per field and the same
// slices are handed to every partition observing that field.
type CoordinateMapper struct {
	delta [2]float64

	// cells holds the flattened base grid of each axis scaled by delta.
	cells [2][]float32

	// phase holds, per axis, the pixel position of every field's phase centre.
	phase [2][]float32

	// index maps a field ID to its position in phase.
	index map[int]int

	mu    sync.Mutex
	cache map[int][2][]float32
}

// NewCoordinateMapper prepares the per-axis base grids of img and the phase
// centre pixel of every field. Fields are later looked up by their ID, not by
// their position in fields.
func NewCoordinateMapper(img *models.Image, fields []models.Field) *CoordinateMapper {
	m := &CoordinateMapper{
		delta: img.Delta(),
		index: make(map[int]int, len(fields)),
		cache: make(map[int][2][]float32),
	}
	for i, field := range fields {
		m.index[field.ID] = i
	}

	// Axis 0 walks the row index of the flattened grid, axis 1 the column.
	indices := [2][]int32{img.Y, img.X}
	extents := [2]int{img.Shape()[1], img.Shape()[0]}

	for axis := 0; axis < 2; axis++ {
		d := m.delta[axis]

		cell := make([]float32, len(indices[axis]))
		for k, idx := range indices[axis] {
			cell[k] = float32(float64(idx) * d)
		}
		m.cells[axis] = cell

		phase := make([]float32, len(fields))
		for f, field := range fields {
			phase[f] = phasePixel(field.PhaseDirectionCosines[axis], d, extents[axis])
		}
		m.phase[axis] = phase
	}
	return m
}

// phasePixel locates a direction cosine on the pixel grid: cos/delta + extent//2.
func phasePixel(cosine, delta float64, extent int) float32 {
	return float32(cosine/delta + float64(extent/2))
}

// PhasePixels returns the phase centre pixel of every field along axis
// (0 for x, 1 for y), in the order the fields were given.
func (m *CoordinateMapper) PhasePixels(axis int) []float32 {
	return m.phase[axis]
}

// Coordinates returns the x and y coordinates of every image pixel relative
// to the phase centre of fieldID. Repeated calls for the same field return
// the same slices; callers must not modify them.
func (m *CoordinateMapper) Coordinates(fieldID int) (x, y []float32, err error) {
	pos, ok := m.index[fieldID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown field id %d", fieldID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.cache[fieldID]; ok {
		return c[0], c[1], nil
	}

	var out [2][]float32
	for axis := 0; axis < 2; axis++ {
		offset := m.phase[axis][pos] * float32(m.delta[axis])
		coord := make([]float32, len(m.cells[axis]))
		for k, c := range m.cells[axis] {
			coord[k] = c - offset
		}
		out[axis] = coord
	}
	m.cache[fieldID] = out
	return out[0], out[1], nil
}
