package energy

import (
	"errors"
	"math"
	"testing"

	"github.com/roman-kulish/edxrd/internal/spectrum"
)

func newDataset(t *testing.T) *spectrum.Dataset {
	t.Helper()
	table := make([][]float64, 0, 65)
	for ch := 0; ch <= 64; ch++ {
		table = append(table, []float64{float64(ch), math.Sqrt(float64(ch)) * 3.7})
	}
	ds, err := spectrum.NewDataset("test", table)
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}
	return ds
}

func TestQuadratic_ApplyKeepsCounts(t *testing.T) {
	raw := newDataset(t).Raw()

	calibrations := []Quadratic{
		Default,
		{A: 0, B: 1, C: 0},
		{A: 1e-6, B: 0.02, C: -0.5},
		{A: -3, B: 0, C: 1e9},
	}
	for _, q := range calibrations {
		adjusted := q.Apply(raw)
		if len(adjusted) != len(raw) {
			t.Fatalf("%s: expected %d samples, got %d", q, len(raw), len(adjusted))
		}
		for i := range raw {
			if math.Float64bits(adjusted[i].Y) != math.Float64bits(raw[i].Y) {
				t.Fatalf("%s: counts changed at %d: %v -> %v", q, i, raw[i].Y, adjusted[i].Y)
			}
			ch := raw[i].X
			if want := q.A*ch*ch + q.B*ch + q.C; math.Abs(adjusted[i].X-want) > 1e-12*math.Max(1, math.Abs(want)) {
				t.Fatalf("%s: energy at channel %v: got %v, want %v", q, ch, adjusted[i].X, want)
			}
		}
	}
}

func TestCalibrate_ClearsRegions(t *testing.T) {
	ds := newDataset(t)
	r := ds.AppendRegion(10, 20, "#1f77b4")
	r.Fit = &spectrum.FitResult{Status: spectrum.FitOK}
	ds.AppendRegion(30, 40, "#ff7f0e")

	if err := Calibrate(ds, Default); err != nil {
		t.Fatalf("Failed to calibrate: %v", err)
	}

	if !ds.XAxisAdjusted() {
		t.Errorf("Expected dataset to switch to the energy axis")
	}
	if n := ds.RegionCount(); n != 0 {
		t.Errorf("Expected 0 regions after calibration, got %d", n)
	}
	if n := len(ds.FitResults()); n != 0 {
		t.Errorf("Expected 0 fit results after calibration, got %d", n)
	}

	got := ds.CurrentSeries()[10].X
	if want := Default.Energy(10); got != want {
		t.Errorf("Expected energy %v at channel 10, got %v", want, got)
	}
}

func TestCalibrate_RejectsNonFinite(t *testing.T) {
	ds := newDataset(t)
	ds.AppendRegion(10, 20, "#1f77b4")

	err := Calibrate(ds, Quadratic{A: math.NaN(), B: 1})
	if !errors.Is(err, spectrum.ErrInvalidParameter) {
		t.Fatalf("Expected ErrInvalidParameter, got %v", err)
	}
	if ds.XAxisAdjusted() || ds.RegionCount() != 1 {
		t.Errorf("Expected dataset untouched after rejected calibration")
	}
}

func TestParseQuadratic(t *testing.T) {
	q, err := ParseQuadratic("0.0", " 0.03758 ", "-0.04962")
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if q != Default {
		t.Errorf("Expected %v, got %v", Default, q)
	}

	tests := []struct {
		a, b, c string
		name    string
	}{
		{a: "x", b: "1", c: "0", name: "a"},
		{a: "0", b: "", c: "0", name: "b"},
		{a: "0", b: "1", c: "Inf", name: "c"},
	}
	for _, tt := range tests {
		_, err = ParseQuadratic(tt.a, tt.b, tt.c)
		if !errors.Is(err, spectrum.ErrInvalidParameter) {
			t.Fatalf("Expected ErrInvalidParameter for %q/%q/%q, got %v", tt.a, tt.b, tt.c, err)
		}
		var pe *spectrum.ParameterError
		if !errors.As(err, &pe) || pe.Name != tt.name {
			t.Errorf("Expected coefficient %s to be named, got %v", tt.name, err)
		}
	}
}
