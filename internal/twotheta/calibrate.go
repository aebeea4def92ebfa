// Package twotheta derives the detector diffraction angle 2θ from reference
// reflections of known d-spacing observed at known energies, via Bragg's law
// with λ = hc/E.
package twotheta

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gopkg.in/guregu/null.v3"
)

// HC is the product of Planck's constant and the speed of light in keV·Å.
const HC = 12.39842

var (
	// ErrInsufficientData is returned when no complete reference pair is available
	ErrInsufficientData = errors.New("insufficient data")

	// ErrOutOfDomain is returned when a pair cannot satisfy Bragg's law
	ErrOutOfDomain = errors.New("out of domain")
)

// DomainError identifies the reference pair that could not be used.
type DomainError struct {
	Row int     // Zero-based index into the pairs passed to Calibrate
	D   float64 // d-spacing, Å
	E   float64 // Energy, keV
	Arg float64 // hc/(2·d·E), the arcsine argument
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: row %d: d=%g Å, E=%g keV: arcsin argument %g", ErrOutOfDomain, e.Row+1, e.D, e.E, e.Arg)
}

func (e *DomainError) Unwrap() error {
	return ErrOutOfDomain
}

// Pair is one row of the reference table. Either value may be missing.
type Pair struct {
	D       null.Float // d-spacing, Å
	E       null.Float // Energy, keV
	Remarks string
}

// NewPair creates a complete pair.
func NewPair(d, e float64, remarks string) Pair {
	return Pair{D: null.FloatFrom(d), E: null.FloatFrom(e), Remarks: remarks}
}

// Complete reports whether both d and E hold finite numbers.
func (p Pair) Complete() bool {
	return p.D.Valid && p.E.Valid && isFinite(p.D.Float64) && isFinite(p.E.Float64)
}

// DefaultPairs returns the MgO reference reflections with the energies left
// for the user to fill in.
func DefaultPairs() []Pair {
	return []Pair{
		{D: null.FloatFrom(2.1065), Remarks: "MgO_200"},
		{D: null.FloatFrom(1.4895), Remarks: "MgO_220"},
	}
}

// Result is the outcome of a calibration.
type Result struct {
	MeanTwoThetaDeg float64 `json:"meanTwoThetaDeg"`
	StdTwoThetaDeg  float64 `json:"stdTwoThetaDeg"` // Population standard deviation
	NPairs          int     `json:"nPairs"`         // Pairs that contributed to the mean
	ConstantUsed    float64 `json:"constantUsed"`   // hc in keV·Å
	Skipped         []int   `json:"skipped"`        // Rows dropped as out of domain
}

// Status renders the result as a one-line summary.
func (r Result) Status() string {
	return fmt.Sprintf("2θ = %.5f° ± %.5f° (n=%d)", r.MeanTwoThetaDeg, r.StdTwoThetaDeg, r.NPairs)
}

// TwoTheta returns 2θ in degrees for a reflection of spacing d (Å) observed at
// energy e (keV). It fails with ErrOutOfDomain when hc/(2·d·E) exceeds 1 or
// d·E is not positive.
func TwoTheta(d, e float64) (float64, error) {
	if d <= 0 || e <= 0 {
		return 0, fmt.Errorf("d=%g, E=%g: %w", d, e, ErrOutOfDomain)
	}
	a := arg(d, e)
	if a > 1 {
		return 0, fmt.Errorf("arcsin argument %g: %w", a, ErrOutOfDomain)
	}
	return 2 * math.Asin(a) * 180 / math.Pi, nil
}

type options struct {
	skipOutOfDomain bool
}

// Option changes how Calibrate treats pairs.
type Option func(o *options)

// SkipOutOfDomain drops pairs that violate Bragg's law instead of failing
// the calibration. Dropped rows are listed in Result.Skipped.
func SkipOutOfDomain() Option {
	return func(o *options) {
		o.skipOutOfDomain = true
	}
}

// Calibrate computes the mean and population standard deviation of 2θ over
// the complete pairs. Incomplete pairs are ignored. By default the first pair
// out of Bragg's domain aborts the calibration with a *DomainError.
func Calibrate(pairs []Pair, opts ...Option) (Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	result := Result{ConstantUsed: HC}

	var angles []float64
	for i, p := range pairs {
		if !p.Complete() {
			continue
		}

		d, e := p.D.Float64, p.E.Float64
		angle, err := TwoTheta(d, e)
		if err != nil {
			if o.skipOutOfDomain {
				result.Skipped = append(result.Skipped, i)
				continue
			}
			return Result{}, &DomainError{Row: i, D: d, E: e, Arg: arg(d, e)}
		}
		angles = append(angles, angle)
	}

	if len(angles) == 0 {
		if len(result.Skipped) > 0 {
			return Result{}, fmt.Errorf("%d pairs out of domain, none left: %w", len(result.Skipped), ErrInsufficientData)
		}
		return Result{}, fmt.Errorf("no complete reference pairs: %w", ErrInsufficientData)
	}

	mean, err := stats.Mean(angles)
	if err != nil {
		return Result{}, fmt.Errorf("mean: %w", err)
	}
	std, err := stats.StandardDeviationPopulation(angles)
	if err != nil {
		return Result{}, fmt.Errorf("standard deviation: %w", err)
	}

	result.MeanTwoThetaDeg = mean
	result.StdTwoThetaDeg = std
	result.NPairs = len(angles)
	return result, nil
}

func arg(d, e float64) float64 {
	return HC / (2 * d * e)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
