package spectrum

import (
	"errors"
	"math"
	"testing"
)

func TestNewDataset_DropsLastRow(t *testing.T) {
	table := [][]float64{
		{0, 10},
		{1, 12},
		{2, 15},
		{3, 0}, // terminator
	}

	ds, err := NewDataset("sample.txt", table)
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}

	raw := ds.Raw()
	if len(raw) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(raw))
	}
	if raw[2].X != 2 || raw[2].Y != 15 {
		t.Errorf("Expected last sample (2, 15), got (%v, %v)", raw[2].X, raw[2].Y)
	}

	if ds.XAxisAdjusted() {
		t.Errorf("Expected fresh dataset to use the raw axis")
	}

	adjusted := ds.Adjusted()
	for i := range raw {
		if raw[i] != adjusted[i] {
			t.Errorf("Expected adjusted[%d] == raw[%d], got %v vs %v", i, i, adjusted[i], raw[i])
		}
	}
}

func TestNewDataset_IgnoresExtraColumns(t *testing.T) {
	ds, err := NewDataset("wide", [][]float64{{0, 1, 99}, {1, 2, 98}, {2, 3, 97}})
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}
	if got := ds.CurrentSeries().Ys(); got[0] != 1 || got[1] != 2 {
		t.Errorf("Expected counts from the second column, got %v", got)
	}
}

func TestNewDataset_InvalidFormat(t *testing.T) {
	tests := []struct {
		name  string
		table [][]float64
	}{
		{name: "empty", table: nil},
		{name: "single row is dropped", table: [][]float64{{0, 1}}},
		{name: "one column", table: [][]float64{{0}, {1}, {2}}},
		{name: "short row", table: [][]float64{{0, 1}, {1}, {2, 3}}},
		{name: "nan", table: [][]float64{{0, math.NaN()}, {1, 2}}},
		{name: "decreasing channel", table: [][]float64{{5, 1}, {4, 2}, {6, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDataset(tt.name, tt.table)
			if !errors.Is(err, ErrInvalidFormat) {
				t.Fatalf("Expected ErrInvalidFormat, got %v", err)
			}

			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected *FormatError, got %T", err)
			}
			if fe.Dataset != tt.name {
				t.Errorf("Expected dataset name %q in error, got %q", tt.name, fe.Dataset)
			}
		})
	}
}

func TestDataset_CurrentSeries(t *testing.T) {
	ds, err := NewDataset("ds", [][]float64{{0, 1}, {1, 2}, {2, 3}, {3, 4}})
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}

	if got := ds.CurrentSeries()[1].X; got != 1 {
		t.Errorf("Expected raw channel 1, got %v", got)
	}
	if ds.Unit() != "ch" {
		t.Errorf("Expected unit ch, got %s", ds.Unit())
	}

	adjusted := ds.Raw()
	for i := range adjusted {
		adjusted[i].X *= 10
	}
	if err = ds.SetAdjusted(adjusted); err != nil {
		t.Fatalf("Failed to set adjusted series: %v", err)
	}

	if got := ds.CurrentSeries()[1].X; got != 10 {
		t.Errorf("Expected adjusted X 10, got %v", got)
	}
	if ds.Unit() != "keV" {
		t.Errorf("Expected unit keV, got %s", ds.Unit())
	}
	if got := ds.Raw()[1].X; got != 1 {
		t.Errorf("Expected raw series untouched, got %v", got)
	}
}

func TestDataset_SetAdjustedClearsRegions(t *testing.T) {
	ds, err := NewDataset("ds", [][]float64{{0, 1}, {1, 2}, {2, 3}, {3, 4}})
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}

	r := ds.AppendRegion(0, 1, "#1f77b4")
	r.Fit = &FitResult{Status: FitOK}
	ds.AppendRegion(1, 2, "#ff7f0e")

	if err = ds.SetAdjusted(ds.Raw()); err != nil {
		t.Fatalf("Failed to set adjusted series: %v", err)
	}
	if n := ds.RegionCount(); n != 0 {
		t.Errorf("Expected 0 regions, got %d", n)
	}
	if n := len(ds.FitResults()); n != 0 {
		t.Errorf("Expected 0 fit results, got %d", n)
	}

	if err = ds.SetAdjusted(Series{{X: 1, Y: 1}}); err == nil {
		t.Errorf("Expected length mismatch to be rejected")
	}
}

func TestDataset_FitResultsSkipEmptyRegions(t *testing.T) {
	ds, err := NewDataset("ds", [][]float64{{0, 1}, {1, 2}, {2, 3}, {3, 4}})
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}

	first := ds.AppendRegion(0, 1, "#1f77b4")
	empty := ds.AppendRegion(10, 11, "#ff7f0e")
	third := ds.AppendRegion(1, 2, "#2ca02c")
	ds.AppendRegion(2, 3, "#d62728") // unfitted

	first.Fit = &FitResult{Status: FitOK, Params: [NumParams]float64{1, 0.5, 0.1, 0, 0}}
	empty.Fit = &FitResult{Status: FitEmpty}
	third.Fit = &FitResult{Status: FitFailed, Params: [NumParams]float64{3, 1.5, 0.1, 0, 0}}

	results := ds.FitResults()
	if len(results) != 2 {
		t.Fatalf("Expected 2 fit results, got %d", len(results))
	}
	if results[0].Center() != 0.5 || results[1].Center() != 1.5 {
		t.Errorf("Expected centres [0.5 1.5], got [%v %v]", results[0].Center(), results[1].Center())
	}

	ds.ResetFits()
	if n := len(ds.FitResults()); n != 0 {
		t.Errorf("Expected no fit results after reset, got %d", n)
	}
	if n := ds.RegionCount(); n != 4 {
		t.Errorf("Expected regions to survive reset, got %d", n)
	}
}

func TestDataset_ExportTable(t *testing.T) {
	ds, err := NewDataset("ds", [][]float64{{0, 5}, {1, 6}, {2, 0}})
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}

	rows := ds.ExportTable()
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[1] != [2]float64{1, 6} {
		t.Errorf("Expected row (1, 6), got %v", rows[1])
	}
}

func TestSeries_Between(t *testing.T) {
	s := Series{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}}

	subset := s.Between(1, 3)
	if len(subset) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(subset))
	}
	if subset[0].X != 1 || subset[2].X != 3 {
		t.Errorf("Expected inclusive bounds, got %v", subset)
	}

	if got := s.Between(10, 20); len(got) != 0 {
		t.Errorf("Expected empty subset, got %v", got)
	}
}
