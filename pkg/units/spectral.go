package units

import (
	"gonum.org/v1/gonum/unit"
	"gonum.org/v1/gonum/unit/constant"
)

// SpectralEquivalency converts baseline lengths between metres and wavelengths
// for the channels of one spectral window. Every channel has its own
// wavelength, so the conversion is per channel rather than a single scale.
type SpectralEquivalency struct {
	freqs []unit.Frequency
}

// NewSpectralEquivalency builds an equivalency from channel centre frequencies in Hz.
func NewSpectralEquivalency(chanFreq []float64) SpectralEquivalency {
	freqs := make([]unit.Frequency, len(chanFreq))
	for i, f := range chanFreq {
		freqs[i] = unit.Frequency(f)
	}
	return SpectralEquivalency{freqs: freqs}
}

// NumChannels returns the number of channels covered.
func (e SpectralEquivalency) NumChannels() int { return len(e.freqs) }

// Frequency returns the centre frequency of channel ch in Hz.
func (e SpectralEquivalency) Frequency(ch int) float64 { return float64(e.freqs[ch]) }

// Wavelength returns the wavelength of channel ch.
func (e SpectralEquivalency) Wavelength(ch int) unit.Length {
	return unit.Length(float64(constant.LightSpeedInVacuum) / float64(e.freqs[ch]))
}

// MetersToLambdas converts a length in metres to wavelengths at channel ch,
// computed as length times frequency over c.
func (e SpectralEquivalency) MetersToLambdas(m float64, ch int) float64 {
	return lambdas(unit.Length(m), e.freqs[ch])
}

// LambdasToMeters is the inverse of MetersToLambdas.
func (e SpectralEquivalency) LambdasToMeters(l float64, ch int) float64 {
	return float64(unit.Length(l * float64(constant.LightSpeedInVacuum) / float64(e.freqs[ch])))
}

// MaxFrequency returns the highest channel frequency, or 0 for an empty window.
func (e SpectralEquivalency) MaxFrequency() float64 {
	var max unit.Frequency
	for _, f := range e.freqs {
		if f > max {
			max = f
		}
	}
	return float64(max)
}

func lambdas(l unit.Length, f unit.Frequency) float64 {
	return float64(l) * float64(f) / float64(constant.LightSpeedInVacuum)
}
