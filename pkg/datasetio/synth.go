package datasetio

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"idftprep/internal/models"
)

// PointSource is an unresolved source at direction cosines (L, M) relative
// to the image centre.
type PointSource struct {
	L    float64 `yaml:"l"`
	M    float64 `yaml:"m"`
	Flux float64 `yaml:"flux"`
}

// SynthOptions describes a synthetic observation.
type SynthOptions struct {
	Seed uint64

	Fields          int
	SpectralWindows int
	Channels        int
	Rows            int
	Antennas        int

	// MaxBaseline is the array diameter in metres.
	MaxBaseline float64

	// RefFrequency is the first channel of the first window, ChannelWidth
	// the spacing between channels, both in Hz.
	RefFrequency float64
	ChannelWidth float64

	// FieldOffset shifts the phase centre of field i by i*FieldOffset
	// radians along both axes.
	FieldOffset float64

	Sources    []PointSource
	NoiseSigma float64

	// FlagFraction is the probability that a sample is flagged.
	FlagFraction float64

	// FullPolarization uses XX, XY, YX, YY instead of XX, YY.
	FullPolarization bool
}

// DefaultSynthOptions returns a small two-field, two-window observation of a
// single point source.
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{
		Seed:            1,
		Fields:          2,
		SpectralWindows: 2,
		Channels:        4,
		Rows:            256,
		Antennas:        12,
		MaxBaseline:     3000,
		RefFrequency:    1.4e9,
		ChannelWidth:    1e6,
		FieldOffset:     2e-5,
		Sources:         []PointSource{{L: 0, M: 0, Flux: 1}},
		NoiseSigma:      0.01,
		FlagFraction:    0.05,
	}
}

// Synthesize builds a deterministic dataset from opts: one partition per
// field and spectral window, with point-source visibilities plus gaussian
// noise on the parallel hands and noise only on the cross hands. The model
// column is left empty.
func Synthesize(opts SynthOptions) (*models.Dataset, error) {
	if opts.Fields < 1 || opts.SpectralWindows < 1 || opts.Channels < 1 || opts.Rows < 1 {
		return nil, fmt.Errorf("synthetic dataset needs at least one field, window, channel and row")
	}
	if opts.Antennas < 2 {
		return nil, fmt.Errorf("need at least 2 antennas, got %d", opts.Antennas)
	}
	if opts.RefFrequency <= 0 {
		return nil, fmt.Errorf("reference frequency must be positive, got %g", opts.RefFrequency)
	}

	src := rand.NewSource(opts.Seed)
	rng := rand.New(src)
	uniform := distuv.Uniform{Min: -opts.MaxBaseline / 2, Max: opts.MaxBaseline / 2, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: opts.NoiseSigma, Src: src}

	ds := &models.Dataset{}
	for f := 0; f < opts.Fields; f++ {
		off := float64(f) * opts.FieldOffset
		ds.Fields = append(ds.Fields, models.Field{
			ID:                    f,
			Name:                  fmt.Sprintf("FIELD%d", f),
			PhaseDirectionCosines: [2]float64{off, off},
		})
	}
	for s := 0; s < opts.SpectralWindows; s++ {
		freqs := make([]float64, opts.Channels)
		base := opts.RefFrequency + float64(s*opts.Channels)*opts.ChannelWidth
		for c := range freqs {
			freqs[c] = base + float64(c)*opts.ChannelWidth
		}
		ds.SpectralWindows = append(ds.SpectralWindows, models.SpectralWindow{ID: s, ChanFreq: freqs})
	}
	ds.Polarizations = []models.Polarization{
		{ID: 0, Correlations: []models.Correlation{models.CorrXX, models.CorrYY}},
		{ID: 1, Correlations: []models.Correlation{models.CorrXX, models.CorrXY, models.CorrYX, models.CorrYY}},
	}
	polID := 0
	if opts.FullPolarization {
		polID = 1
	}

	antennas := make([][2]float64, opts.Antennas)
	for i := range antennas {
		antennas[i] = [2]float64{uniform.Rand(), uniform.Rand()}
	}
	var baselines [][2]int
	for i := 0; i < opts.Antennas; i++ {
		for j := i + 1; j < opts.Antennas; j++ {
			baselines = append(baselines, [2]int{i, j})
		}
	}

	for f := 0; f < opts.Fields; f++ {
		for s := 0; s < opts.SpectralWindows; s++ {
			pol := ds.Polarizations[polID]
			ncorr := len(pol.Correlations)
			parallel := pol.ParallelHandMask()
			eq := ds.SpectralWindows[s].Equivalency()

			part := models.NewPartition(f, s, polID, opts.Rows, opts.Channels, ncorr)
			part.Model = nil

			for r := 0; r < opts.Rows; r++ {
				bl := baselines[r%len(baselines)]
				bx := antennas[bl[1]][0] - antennas[bl[0]][0]
				by := antennas[bl[1]][1] - antennas[bl[0]][1]

				// Earth rotation sweeps each baseline through a quarter turn.
				h := 0.5 * math.Pi * float64(r/len(baselines)+1) / float64(opts.Rows/len(baselines)+1)
				sin, cos := math.Sincos(h)
				u := bx*cos - by*sin
				v := bx*sin + by*cos
				part.UVW[3*r] = u
				part.UVW[3*r+1] = v

				for k := 0; k < ncorr; k++ {
					part.ImagingWeight[r*ncorr+k] = 1
				}

				for c := 0; c < opts.Channels; c++ {
					ul := eq.MetersToLambdas(u, c)
					vl := eq.MetersToLambdas(v, c)

					var sky complex128
					for _, ps := range opts.Sources {
						phase := -2 * math.Pi * (ul*ps.L + vl*ps.M)
						sky += complex(ps.Flux*math.Cos(phase), ps.Flux*math.Sin(phase))
					}

					for k := 0; k < ncorr; k++ {
						idx := (r*opts.Channels+c)*ncorr + k
						vis := complex(noise.Rand(), noise.Rand())
						if parallel[k] {
							vis += sky
						}
						part.Data[idx] = complex64(vis)
						part.Flag[idx] = opts.FlagFraction > 0 && rng.Float64() < opts.FlagFraction
					}
				}
			}
			ds.Partitions = append(ds.Partitions, part)
		}
	}
	return ds, nil
}
