package units

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/unit"
)

func TestAngleConversions(t *testing.T) {
	a := 3600 * Arcsecond
	if !scalar.EqualWithinRel(a.Degrees(), 1, 1e-12) {
		t.Errorf("Expected 1 degree, got %g", a.Degrees())
	}
	if !scalar.EqualWithinRel(a.Radians(), math.Pi/180, 1e-12) {
		t.Errorf("Expected pi/180 rad, got %g", a.Radians())
	}
}

// TestAngleIsGonumAngle checks that angles carry angular dimensions and
// convert losslessly to gonum's unit.Angle.
func TestAngleIsGonumAngle(t *testing.T) {
	a := 2 * Degree
	if !unit.DimensionsMatch(a, unit.Angle(0)) {
		t.Errorf("Expected angle dimensions, got %v", a.Unit().Dimensions())
	}
	if unit.DimensionsMatch(a, unit.Length(0)) {
		t.Error("Angle should not match length dimensions")
	}
	if got := float64(unit.Angle(a)); !scalar.EqualWithinRel(got, 2*math.Pi/180, 1e-12) {
		t.Errorf("Expected %g rad, got %g", 2*math.Pi/180, got)
	}
	if got := a.Unit().Value(); !scalar.EqualWithinRel(got, a.Radians(), 1e-12) {
		t.Errorf("Unit value %g differs from radians %g", got, a.Radians())
	}
}

func TestParseAngle(t *testing.T) {
	cases := []struct {
		in   string
		want Angle
	}{
		{"1arcsec", Arcsecond},
		{"0.5 deg", 0.5 * Degree},
		{"2arcmin", 2 * Arcminute},
		{"1e-6rad", 1e-6},
		{"7", 7 * Arcsecond},
	}
	for _, c := range cases {
		got, err := ParseAngle(c.in)
		if err != nil {
			t.Fatalf("ParseAngle(%q) failed: %v", c.in, err)
		}
		if !scalar.EqualWithinRel(float64(got), float64(c.want), 1e-12) {
			t.Errorf("ParseAngle(%q) = %g, want %g", c.in, got, c.want)
		}
	}

	if _, err := ParseAngle("abc"); err == nil {
		t.Error("Expected error for malformed angle")
	}
}

// TestSpectralRoundTrip converts metres to wavelengths and back for every channel.
func TestSpectralRoundTrip(t *testing.T) {
	eq := NewSpectralEquivalency([]float64{100e9, 230e9, 345.796e9})
	for ch := 0; ch < eq.NumChannels(); ch++ {
		for _, m := range []float64{-1523.25, 0.125, 12.5, 16000} {
			l := eq.MetersToLambdas(m, ch)
			back := eq.LambdasToMeters(l, ch)
			if !scalar.EqualWithinRel(back, m, 1e-5) {
				t.Errorf("channel %d: %g m -> %g lambda -> %g m", ch, m, l, back)
			}
		}
	}

	// One wavelength at channel 0 is c/f metres.
	if got := eq.MetersToLambdas(float64(eq.Wavelength(0)), 0); !scalar.EqualWithinRel(got, 1, 1e-12) {
		t.Errorf("Expected 1 lambda, got %g", got)
	}
	if got := eq.MetersToLambdas(SpeedOfLight, 0); !scalar.EqualWithinRel(got, 100e9, 1e-12) {
		t.Errorf("Expected c metres at 100 GHz to be 1e11 lambda, got %g", got)
	}
	if eq.MaxFrequency() != 345.796e9 {
		t.Errorf("Unexpected max frequency %g", eq.MaxFrequency())
	}
}
