package twotheta

import (
	"errors"
	"math"
	"testing"

	"gopkg.in/guregu/null.v3"

	"github.com/roman-kulish/edxrd/internal/testutil"
)

func closedForm(d, e float64) float64 {
	return 2 * math.Asin(12.39842/(2*d*e)) * 180 / math.Pi
}

func TestCalibrate_SinglePair(t *testing.T) {
	res, err := Calibrate([]Pair{NewPair(2.1065, 5.9, "MgO_200")})
	if err != nil {
		t.Fatalf("Failed to calibrate: %v", err)
	}

	testutil.RequireNearlyEqual(t, "2θ", res.MeanTwoThetaDeg, closedForm(2.1065, 5.9), 1e-6)
	if res.StdTwoThetaDeg != 0 {
		t.Errorf("Expected zero spread for one pair, got %v", res.StdTwoThetaDeg)
	}
	if res.NPairs != 1 || res.ConstantUsed != HC {
		t.Errorf("Expected n=1 and hc=%v, got n=%d hc=%v", HC, res.NPairs, res.ConstantUsed)
	}
}

func TestCalibrate_PopulationStandardDeviation(t *testing.T) {
	pairs := []Pair{
		NewPair(2.1065, 5.9, "MgO_200"),
		{D: null.FloatFrom(3.0), Remarks: "no energy"},
		NewPair(1.4895, 8.4, "MgO_220"),
		{E: null.FloatFrom(7.0), Remarks: "no spacing"},
		{Remarks: "blank"},
	}

	res, err := Calibrate(pairs)
	if err != nil {
		t.Fatalf("Failed to calibrate: %v", err)
	}
	if res.NPairs != 2 {
		t.Fatalf("Expected 2 complete pairs, got %d", res.NPairs)
	}

	a, b := closedForm(2.1065, 5.9), closedForm(1.4895, 8.4)
	mean := (a + b) / 2
	testutil.RequireNearlyEqual(t, "mean", res.MeanTwoThetaDeg, mean, 1e-9)
	testutil.RequireNearlyEqual(t, "std", res.StdTwoThetaDeg, math.Abs(a-b)/2, 1e-9)
}

func TestCalibrate_InsufficientData(t *testing.T) {
	tests := []struct {
		name  string
		pairs []Pair
	}{
		{name: "nil", pairs: nil},
		{name: "defaults", pairs: DefaultPairs()},
		{name: "nan", pairs: []Pair{{D: null.FloatFrom(math.NaN()), E: null.FloatFrom(5)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calibrate(tt.pairs)
			if !errors.Is(err, ErrInsufficientData) {
				t.Fatalf("Expected ErrInsufficientData, got %v", err)
			}
		})
	}
}

func TestCalibrate_OutOfDomain(t *testing.T) {
	pairs := []Pair{
		NewPair(2.1065, 5.9, "ok"),
		{Remarks: "incomplete"},
		NewPair(1.0, 1.0, "too low"),
	}

	_, err := Calibrate(pairs)
	if !errors.Is(err, ErrOutOfDomain) {
		t.Fatalf("Expected ErrOutOfDomain, got %v", err)
	}

	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DomainError, got %T", err)
	}
	if de.Row != 2 || de.D != 1 || de.E != 1 {
		t.Errorf("Expected row 2 (d=1, E=1), got %+v", de)
	}
	testutil.RequireNearlyEqual(t, "arg", de.Arg, HC/2, 1e-12)
}

func TestCalibrate_SkipOutOfDomain(t *testing.T) {
	pairs := []Pair{
		NewPair(1.0, 1.0, "too low"),
		NewPair(2.1065, 5.9, "ok"),
		NewPair(-2, 5.9, "negative"),
	}

	res, err := Calibrate(pairs, SkipOutOfDomain())
	if err != nil {
		t.Fatalf("Failed to calibrate: %v", err)
	}
	if res.NPairs != 1 {
		t.Errorf("Expected 1 pair, got %d", res.NPairs)
	}
	if len(res.Skipped) != 2 || res.Skipped[0] != 0 || res.Skipped[1] != 2 {
		t.Errorf("Expected rows 0 and 2 skipped, got %v", res.Skipped)
	}

	_, err = Calibrate(pairs[:1], SkipOutOfDomain())
	if !errors.Is(err, ErrInsufficientData) {
		t.Errorf("Expected ErrInsufficientData when every pair is skipped, got %v", err)
	}
}

func TestTwoTheta(t *testing.T) {
	got, err := TwoTheta(1.4895, 8.4)
	if err != nil {
		t.Fatalf("Failed: %v", err)
	}
	testutil.RequireNearlyEqual(t, "2θ", got, closedForm(1.4895, 8.4), 1e-12)

	// Exactly on the domain edge: the reflection is back-scattered.
	edge, err := TwoTheta(HC/2, 1)
	if err != nil {
		t.Fatalf("Failed on domain edge: %v", err)
	}
	testutil.RequireNearlyEqual(t, "edge", edge, 180, 1e-9)

	for _, in := range [][2]float64{{0, 5}, {2, 0}, {-1, -1}, {0.5, 0.5}} {
		if _, err := TwoTheta(in[0], in[1]); !errors.Is(err, ErrOutOfDomain) {
			t.Errorf("d=%v E=%v: expected ErrOutOfDomain, got %v", in[0], in[1], err)
		}
	}
}

func TestResult_Status(t *testing.T) {
	r := Result{MeanTwoThetaDeg: 12.345674, StdTwoThetaDeg: 0.1, NPairs: 2}
	if got, want := r.Status(), "2θ = 12.34567° ± 0.10000° (n=2)"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}
