// Package units provides the angular and spectral unit handling used when
// mapping visibilities between metres, wavelengths and image pixels.
//
// Quantities are backed by gonum's unit package so they interoperate with
// unit.Uniter based code.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/unit"
	"gonum.org/v1/gonum/unit/constant"
)

// SpeedOfLight is the speed of light in vacuum in m/s.
const SpeedOfLight = float64(constant.LightSpeedInVacuum)

// Angle is an angular quantity stored in radians.
type Angle unit.Angle

// Common angular units.
const (
	Radian    = Angle(unit.Angle(1))
	Degree    = Radian * math.Pi / 180
	Arcminute = Degree / 60
	Arcsecond = Degree / 3600
)

// Unit returns the angle as a gonum dimensioned unit.
func (a Angle) Unit() *unit.Unit { return unit.Angle(a).Unit() }

// Radians returns the angle in radians.
func (a Angle) Radians() float64 { return float64(a) }

// Degrees returns the angle in degrees.
func (a Angle) Degrees() float64 { return float64(a / Degree) }

// Arcseconds returns the angle in arcseconds.
func (a Angle) Arcseconds() float64 { return float64(a / Arcsecond) }

func (a Angle) String() string {
	return strconv.FormatFloat(a.Arcseconds(), 'g', -1, 64) + "arcsec"
}

// ParseAngle parses strings like "0.5arcsec", "1e-3deg", "2arcmin" or "1e-6rad".
// A bare number is read as arcseconds.
func ParseAngle(s string) (Angle, error) {
	s = strings.TrimSpace(s)
	suffixes := []struct {
		name string
		unit Angle
	}{
		{"arcsec", Arcsecond},
		{"arcmin", Arcminute},
		{"deg", Degree},
		{"rad", Radian},
	}

	scale := Arcsecond
	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.name) {
			s = strings.TrimSpace(strings.TrimSuffix(s, sfx.name))
			scale = sfx.unit
			break
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid angle %q: %w", s, err)
	}
	return Angle(v) * scale, nil
}
