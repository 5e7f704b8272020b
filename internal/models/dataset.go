package models

import (
	"errors"
	"fmt"
	"math"

	"idftprep/pkg/units"
)

// ErrTableID is returned when a lookup table row's ID does not match its
// position. Partitions reference table rows by ID, so the two must agree.
var ErrTableID = errors.New("table id does not match row position")

// Field is a pointing direction of the observation.
type Field struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`

	// PhaseDirectionCosines are the (l, m) direction cosines of the field's
	// phase centre on the image tangent plane, in radians.
	PhaseDirectionCosines [2]float64 `yaml:"phaseDirectionCosines"`
}

// SpectralWindow describes the channelisation of one spectral window.
type SpectralWindow struct {
	ID int `yaml:"id"`

	// ChanFreq holds the centre frequency of each channel in Hz.
	ChanFreq []float64 `yaml:"chanFreq"`
}

// NumChannels returns the channel count of the window.
func (s SpectralWindow) NumChannels() int { return len(s.ChanFreq) }

// Equivalency returns the metre/wavelength conversion for this window.
func (s SpectralWindow) Equivalency() units.SpectralEquivalency {
	return units.NewSpectralEquivalency(s.ChanFreq)
}

// Polarization is one polarization setup: the ordered correlation products
// present on the correlation axis of the partitions that use it.
type Polarization struct {
	ID           int           `yaml:"id"`
	Correlations []Correlation `yaml:"correlations"`
}

// ParallelHandMask marks the positions of XX, YY, RR and LL products.
func (p Polarization) ParallelHandMask() []bool {
	mask := make([]bool, len(p.Correlations))
	for i, c := range p.Correlations {
		mask[i] = c.IsParallelHand()
	}
	return mask
}

// Partition is a contiguous group of visibilities sharing a field, a spectral
// window and a polarization setup.
//
// Data, Model and Flag have shape (Rows, Channels, Correlations); ImagingWeight
// has shape (Rows, Correlations); UVW has shape (Rows, 3) in metres. All are
// stored flat in row-major order.
type Partition struct {
	FieldID        int
	SpwID          int
	PolarizationID int

	Rows         int
	Channels     int
	Correlations int

	Data          []complex64
	Model         []complex64
	Flag          []bool
	ImagingWeight []float32
	UVW           []float64
}

// NewPartition allocates a partition with all arrays sized for its shape.
func NewPartition(fieldID, spwID, polID, rows, channels, corrs int) *Partition {
	n := rows * channels * corrs
	return &Partition{
		FieldID:        fieldID,
		SpwID:          spwID,
		PolarizationID: polID,
		Rows:           rows,
		Channels:       channels,
		Correlations:   corrs,
		Data:           make([]complex64, n),
		Model:          make([]complex64, n),
		Flag:           make([]bool, n),
		ImagingWeight:  make([]float32, rows*corrs),
		UVW:            make([]float64, rows*3),
	}
}

// VisibilityShape returns (Rows, Channels, Correlations).
func (p *Partition) VisibilityShape() []int {
	return []int{p.Rows, p.Channels, p.Correlations}
}

// HasModel reports whether the model column is populated.
func (p *Partition) HasModel() bool {
	return p.Model != nil
}

// Validate checks every array length against the declared shape.
func (p *Partition) Validate() error {
	n := p.Rows * p.Channels * p.Correlations
	checks := []struct {
		name      string
		got, want int
	}{
		{"data", len(p.Data), n},
		{"flag", len(p.Flag), n},
		{"imaging_weight", len(p.ImagingWeight), p.Rows * p.Correlations},
		{"uvw", len(p.UVW), p.Rows * 3},
	}
	if p.Model != nil {
		checks = append(checks, struct {
			name      string
			got, want int
		}{"model", len(p.Model), n})
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("%s has %d elements, expected %d for shape %v",
				c.name, c.got, c.want, p.VisibilityShape())
		}
	}
	return nil
}

// Clone returns a deep copy of the partition.
func (p *Partition) Clone() *Partition {
	c := *p
	c.Data = append([]complex64(nil), p.Data...)
	if p.Model != nil {
		c.Model = append([]complex64(nil), p.Model...)
	}
	c.Flag = append([]bool(nil), p.Flag...)
	c.ImagingWeight = append([]float32(nil), p.ImagingWeight...)
	c.UVW = append([]float64(nil), p.UVW...)
	return &c
}

// Dataset is an interferometric observation split into partitions plus the
// lookup tables they reference. The tables are read-only once loaded.
type Dataset struct {
	Partitions      []*Partition
	Fields          []Field
	SpectralWindows []SpectralWindow
	Polarizations   []Polarization

	// TheoResolution is the theoretical angular resolution, 1/max|uv|.
	// When zero it is derived from the partitions on demand.
	TheoResolution units.Angle
}

// CheckTables verifies that every field, spectral window and polarization row
// carries the ID equal to its position in its table.
func (d *Dataset) CheckTables() error {
	for i, f := range d.Fields {
		if f.ID != i {
			return fmt.Errorf("%w: field row %d has id %d", ErrTableID, i, f.ID)
		}
	}
	for i, s := range d.SpectralWindows {
		if s.ID != i {
			return fmt.Errorf("%w: spectral window row %d has id %d", ErrTableID, i, s.ID)
		}
	}
	for i, p := range d.Polarizations {
		if p.ID != i {
			return fmt.Errorf("%w: polarization row %d has id %d", ErrTableID, i, p.ID)
		}
	}
	return nil
}

// Field returns the field with the given id.
func (d *Dataset) Field(id int) (Field, error) {
	if id < 0 || id >= len(d.Fields) {
		return Field{}, fmt.Errorf("field id %d out of range [0,%d)", id, len(d.Fields))
	}
	if f := d.Fields[id]; f.ID != id {
		return Field{}, fmt.Errorf("%w: field row %d has id %d", ErrTableID, id, f.ID)
	}
	return d.Fields[id], nil
}

// SpectralWindow returns the spectral window with the given id.
func (d *Dataset) SpectralWindow(id int) (SpectralWindow, error) {
	if id < 0 || id >= len(d.SpectralWindows) {
		return SpectralWindow{}, fmt.Errorf("spectral window id %d out of range [0,%d)", id, len(d.SpectralWindows))
	}
	if s := d.SpectralWindows[id]; s.ID != id {
		return SpectralWindow{}, fmt.Errorf("%w: spectral window row %d has id %d", ErrTableID, id, s.ID)
	}
	return d.SpectralWindows[id], nil
}

// Polarization returns the polarization setup with the given id.
func (d *Dataset) Polarization(id int) (Polarization, error) {
	if id < 0 || id >= len(d.Polarizations) {
		return Polarization{}, fmt.Errorf("polarization id %d out of range [0,%d)", id, len(d.Polarizations))
	}
	if p := d.Polarizations[id]; p.ID != id {
		return Polarization{}, fmt.Errorf("%w: polarization row %d has id %d", ErrTableID, id, p.ID)
	}
	return d.Polarizations[id], nil
}

// Resolution returns TheoResolution, deriving it from the longest baseline at
// the highest frequency of its spectral window when unset.
func (d *Dataset) Resolution() (units.Angle, error) {
	if d.TheoResolution > 0 {
		return d.TheoResolution, nil
	}

	var maxUV float64
	for i, p := range d.Partitions {
		if err := p.Validate(); err != nil {
			return 0, fmt.Errorf("partition %d: %w", i, err)
		}
		spw, err := d.SpectralWindow(p.SpwID)
		if err != nil {
			return 0, fmt.Errorf("partition %d: %w", i, err)
		}
		fmax := spw.Equivalency().MaxFrequency()
		for r := 0; r < p.Rows; r++ {
			u, v := p.UVW[3*r], p.UVW[3*r+1]
			uv := math.Hypot(u, v) * fmax / units.SpeedOfLight
			if uv > maxUV {
				maxUV = uv
			}
		}
	}
	if maxUV == 0 {
		return 0, fmt.Errorf("cannot derive resolution: no non-zero baselines")
	}
	return units.Angle(1 / maxUV), nil
}
