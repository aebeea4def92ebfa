package roi

import (
	"math"
	"testing"

	"github.com/roman-kulish/edxrd/internal/spectrum"
)

func newDataset(t *testing.T) *spectrum.Dataset {
	t.Helper()
	ds, err := spectrum.NewDataset("test", [][]float64{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0}})
	if err != nil {
		t.Fatalf("Failed to create dataset: %v", err)
	}
	return ds
}

func TestSelector_CommitNormalisesBounds(t *testing.T) {
	ds := newDataset(t)
	s := NewSelector(ds)

	s.Begin(3.5)
	s.Update(2.0)
	lo, hi, ok := s.Pending()
	if !ok || lo != 2.0 || hi != 3.5 {
		t.Errorf("Expected pending [2 3.5], got [%v %v] %v", lo, hi, ok)
	}

	r, ok := s.Commit(1.25)
	if !ok {
		t.Fatalf("Expected region to be created")
	}
	if r.XMin != 1.25 || r.XMax != 3.5 {
		t.Errorf("Expected [1.25 3.5], got [%v %v]", r.XMin, r.XMax)
	}
	if r.Width() != 2.25 {
		t.Errorf("Expected width 2.25, got %v", r.Width())
	}
	if r.Color != Palette[0] {
		t.Errorf("Expected first palette colour, got %s", r.Color)
	}
	if s.Active() {
		t.Errorf("Expected selection to end on commit")
	}
	if ds.RegionCount() != 1 {
		t.Errorf("Expected 1 region, got %d", ds.RegionCount())
	}
}

func TestSelector_RejectsShortDrags(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
	}{
		{name: "click", start: 1, end: 1},
		{name: "exactly epsilon", start: 1, end: 1 + Epsilon},
		{name: "backwards within epsilon", start: 1, end: 1 - Epsilon/2},
		{name: "tiny", start: 100, end: 100.0005},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := newDataset(t)
			s := NewSelector(ds)
			s.Begin(tt.start)
			if r, ok := s.Commit(tt.end); ok || r != nil {
				t.Fatalf("Expected no region, got %+v", r)
			}
			if ds.RegionCount() != 0 {
				t.Errorf("Expected 0 regions, got %d", ds.RegionCount())
			}
		})
	}
}

func TestSelector_CommitWithoutBegin(t *testing.T) {
	ds := newDataset(t)
	s := NewSelector(ds)

	if _, ok := s.Commit(2); ok {
		t.Fatalf("Expected commit without begin to be ignored")
	}

	s.Begin(0)
	s.Cancel()
	if _, ok := s.Commit(2); ok {
		t.Fatalf("Expected commit after cancel to be ignored")
	}
	s.Update(5)
	if _, _, ok := s.Pending(); ok {
		t.Errorf("Expected no pending selection")
	}
}

func TestColorFor_CyclesPalette(t *testing.T) {
	ds := newDataset(t)

	// Bounds vary wildly; colours depend on creation order only.
	bounds := [][2]float64{{3, 4}, {0, 1}, {2, 2.5}, {0.1, 3.9}, {1, 2}, {0, 4}, {2, 3}, {1.5, 1.6}, {0, 0.5}, {3.5, 4}, {0, 2}, {1, 3}}
	for i, b := range bounds {
		r, ok := Add(ds, b[0], b[1])
		if !ok {
			t.Fatalf("Failed to add region %d", i)
		}
		if want := Palette[i%10]; r.Color != want {
			t.Errorf("Region %d: expected colour %s, got %s", i, want, r.Color)
		}
	}

	if ColorFor(10) != ColorFor(0) || ColorFor(23) != Palette[3] {
		t.Errorf("Expected palette to cycle every 10 colours")
	}
}

func TestAdd_RejectsDegenerateBounds(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)

	tests := []struct {
		name   string
		x1, x2 float64
	}{
		{"equal", 2, 2},
		{"within epsilon", 2, 2 + Epsilon/2},
		{"exactly epsilon", 1, 1 + Epsilon},
		{"nan start", nan, 3},
		{"nan end", 1, nan},
		{"both nan", nan, nan},
		{"both infinite", inf, inf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := newDataset(t)
			if r, ok := Add(ds, tt.x1, tt.x2); ok || r != nil {
				t.Errorf("Expected (%v, %v) to be rejected, got %+v", tt.x1, tt.x2, r)
			}
			if ds.RegionCount() != 0 {
				t.Errorf("Expected no regions, got %d", ds.RegionCount())
			}
		})
	}
}

func TestSelector_CommitNaN(t *testing.T) {
	ds := newDataset(t)
	s := NewSelector(ds)
	s.Begin(1)

	if _, ok := s.Commit(math.NaN()); ok {
		t.Errorf("Expected a NaN end to be rejected")
	}
	if ds.RegionCount() != 0 {
		t.Errorf("Expected no regions, got %d", ds.RegionCount())
	}
}

func TestClearAll(t *testing.T) {
	ds := newDataset(t)
	r, _ := Add(ds, 0, 1)
	r.Fit = &spectrum.FitResult{Status: spectrum.FitOK}
	Add(ds, 1, 2)

	ClearAll(ds)

	if ds.RegionCount() != 0 || len(ds.FitResults()) != 0 {
		t.Errorf("Expected no regions or fits, got %d / %d", ds.RegionCount(), len(ds.FitResults()))
	}

	r, _ = Add(ds, 0, 1)
	if r.Color != Palette[0] {
		t.Errorf("Expected colours to restart after clear, got %s", r.Color)
	}
}
