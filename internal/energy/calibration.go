package energy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roman-kulish/edxrd/internal/spectrum"
)

// Default is the beamline's usual detector calibration, E = 0.03758*Ch - 0.04962.
var Default = Quadratic{A: 0, B: 0.03758, C: -0.04962}

// Quadratic maps a detector channel to energy in keV: E = A*Ch² + B*Ch + C.
// A may be zero for a purely linear calibration.
type Quadratic struct {
	A float64 `yaml:"a" json:"a"`
	B float64 `yaml:"b" json:"b"`
	C float64 `yaml:"c" json:"c"`
}

// ParseQuadratic parses the three coefficients as entered by a user.
func ParseQuadratic(a, b, c string) (Quadratic, error) {
	var q Quadratic

	coefficients := []struct {
		name  string
		value string
		dst   *float64
	}{
		{name: "a", value: a, dst: &q.A},
		{name: "b", value: b, dst: &q.B},
		{name: "c", value: c, dst: &q.C},
	}
	for _, coef := range coefficients {
		v, err := strconv.ParseFloat(strings.TrimSpace(coef.value), 64)
		if err != nil {
			return Quadratic{}, &spectrum.ParameterError{Name: coef.name, Value: coef.value, Err: err}
		}
		*coef.dst = v
	}

	if err := q.Validate(); err != nil {
		return Quadratic{}, err
	}
	return q, nil
}

// Validate checks that every coefficient is a finite number.
func (q Quadratic) Validate() error {
	for _, coef := range []struct {
		name  string
		value float64
	}{{"a", q.A}, {"b", q.B}, {"c", q.C}} {
		if math.IsNaN(coef.value) || math.IsInf(coef.value, 0) {
			return &spectrum.ParameterError{Name: coef.name, Value: strconv.FormatFloat(coef.value, 'g', -1, 64)}
		}
	}
	return nil
}

// Energy returns the energy of a single channel.
func (q Quadratic) Energy(channel float64) float64 {
	return q.A*channel*channel + q.B*channel + q.C
}

// Apply transforms the X column of a raw series. Counts are copied unchanged.
func (q Quadratic) Apply(raw spectrum.Series) spectrum.Series {
	adjusted := make(spectrum.Series, len(raw))
	for i, s := range raw {
		adjusted[i] = spectrum.Sample{X: q.Energy(s.X), Y: s.Y}
	}
	return adjusted
}

func (q Quadratic) String() string {
	return fmt.Sprintf("E = %.6f*Ch² + %.6f*Ch + %.6f", q.A, q.B, q.C)
}

// Calibrate applies q to the dataset's raw series and switches the dataset to
// the energy axis. All regions and fit results of the dataset are removed:
// they were drawn in channel space and would be misread in energy space.
func Calibrate(ds *spectrum.Dataset, q Quadratic) error {
	if err := q.Validate(); err != nil {
		return fmt.Errorf("calibrating %s: %w", ds.Name, err)
	}
	if err := ds.SetAdjusted(q.Apply(ds.Raw())); err != nil {
		return fmt.Errorf("calibrating %s: %w", ds.Name, err)
	}
	return nil
}
