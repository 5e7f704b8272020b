package models

import (
	"fmt"
	"strings"
)

// Correlation identifies a correlation product by its Stokes code as stored
// in the POLARIZATION table of a measurement set.
type Correlation int

const (
	CorrUndefined Correlation = 0
	CorrRR        Correlation = 5
	CorrRL        Correlation = 6
	CorrLR        Correlation = 7
	CorrLL        Correlation = 8
	CorrXX        Correlation = 9
	CorrXY        Correlation = 10
	CorrYX        Correlation = 11
	CorrYY        Correlation = 12
)

var correlationNames = map[Correlation]string{
	CorrRR: "RR",
	CorrRL: "RL",
	CorrLR: "LR",
	CorrLL: "LL",
	CorrXX: "XX",
	CorrXY: "XY",
	CorrYX: "YX",
	CorrYY: "YY",
}

// ParseCorrelation maps a product name such as "XX" to its code.
func ParseCorrelation(name string) (Correlation, error) {
	up := strings.ToUpper(strings.TrimSpace(name))
	for c, n := range correlationNames {
		if n == up {
			return c, nil
		}
	}
	return CorrUndefined, fmt.Errorf("unknown correlation product %q", name)
}

func (c Correlation) String() string {
	if n, ok := correlationNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Correlation(%d)", int(c))
}

// IsParallelHand reports whether c is one of XX, YY, RR or LL.
func (c Correlation) IsParallelHand() bool {
	switch c {
	case CorrXX, CorrYY, CorrRR, CorrLL:
		return true
	}
	return false
}

// MarshalYAML writes the product by name.
func (c Correlation) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// UnmarshalYAML reads a product name.
func (c *Correlation) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	parsed, err := ParseCorrelation(name)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
