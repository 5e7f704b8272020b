package visualization

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/stat"

	"idftprep/internal/models"
)

// PartitionSummary describes one prepared partition.
type PartitionSummary struct {
	Index    int
	Rows     int
	Channels int
	Selected int

	// Samples counts visibilities; Flagged those with zero weight.
	Samples int
	Flagged int

	WeightMean float64
	WeightStd  float64

	// AmplitudeMean and AmplitudeStd are weighted by imaging weight.
	AmplitudeMean float64
	AmplitudeStd  float64

	// MaxBaseline is the longest projected baseline in wavelengths.
	MaxBaseline float64
}

// Summarize computes per-partition statistics, ordered by partition index.
func Summarize(inputs models.IDFTInputs) []PartitionSummary {
	indices := make([]int, 0, len(inputs))
	for i := range inputs {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make([]PartitionSummary, 0, len(indices))
	for _, i := range indices {
		rec := inputs[i]
		s := PartitionSummary{Index: i, Samples: rec.Weights.Size()}
		if len(rec.Weights.Shape) == 3 {
			s.Rows, s.Channels, s.Selected = rec.Weights.Shape[0], rec.Weights.Shape[1], rec.Weights.Shape[2]
		}

		weights := make([]float64, len(rec.Weights.Data))
		amps := make([]float64, len(rec.Visibilities.Data))
		var total float64
		for k, w := range rec.Weights.Data {
			weights[k] = float64(w)
			total += weights[k]
			if w == 0 {
				s.Flagged++
			}
		}
		for k, vis := range rec.Visibilities.Data {
			amps[k] = cmplx.Abs(complex128(vis))
		}

		if len(weights) > 1 {
			s.WeightMean, s.WeightStd = stat.MeanStdDev(weights, nil)
		} else if len(weights) == 1 {
			s.WeightMean = weights[0]
		}
		if total > 0 && len(amps) == len(weights) {
			s.AmplitudeMean = stat.Mean(amps, weights)
			if total > 1 {
				s.AmplitudeStd = math.Sqrt(stat.Variance(amps, weights))
			}
		}

		for k := 0; k+1 < len(rec.UVW.Data); k += 3 {
			s.MaxBaseline = max(s.MaxBaseline, math.Hypot(rec.UVW.Data[k], rec.UVW.Data[k+1]))
		}
		out = append(out, s)
	}
	return out
}
