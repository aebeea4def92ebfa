package spectrum

import (
	"errors"
	"testing"
)

func newTestDataset(t *testing.T, name string) *Dataset {
	t.Helper()
	ds, err := NewDataset(name, [][]float64{{0, 1}, {1, 2}, {2, 3}})
	if err != nil {
		t.Fatalf("Failed to create dataset %s: %v", name, err)
	}
	return ds
}

func TestCollection_ActiveSelection(t *testing.T) {
	c := NewCollection()

	if _, err := c.Active(); !errors.Is(err, ErrNoDataset) {
		t.Fatalf("Expected ErrNoDataset on empty collection, got %v", err)
	}

	a := newTestDataset(t, "a")
	b := newTestDataset(t, "b")
	c.Add(a)
	if idx := c.Add(b); idx != 1 {
		t.Errorf("Expected index 1, got %d", idx)
	}

	active, err := c.Active()
	if err != nil || active != b {
		t.Fatalf("Expected last added dataset to be active, got %v (%v)", active, err)
	}

	if err = c.Select(0); err != nil {
		t.Fatalf("Failed to select dataset: %v", err)
	}
	if active, _ = c.Active(); active != a {
		t.Errorf("Expected dataset a to be active")
	}

	if err = c.Select(5); err == nil {
		t.Errorf("Expected out of range selection to fail")
	}
}

func TestCollection_Remove(t *testing.T) {
	tests := []struct {
		name       string
		active     int
		remove     int
		wantActive string
	}{
		{name: "remove before active", active: 2, remove: 0, wantActive: "c"},
		{name: "remove active", active: 1, remove: 1, wantActive: "a"},
		{name: "remove first active", active: 0, remove: 0, wantActive: "b"},
		{name: "remove after active", active: 0, remove: 2, wantActive: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollection()
			datasets := []*Dataset{newTestDataset(t, "a"), newTestDataset(t, "b"), newTestDataset(t, "c")}
			for _, ds := range datasets {
				c.Add(ds)
			}
			datasets[tt.remove].AppendRegion(0, 1, "#1f77b4")

			if err := c.Select(tt.active); err != nil {
				t.Fatalf("Failed to select: %v", err)
			}
			if err := c.Remove(tt.remove); err != nil {
				t.Fatalf("Failed to remove: %v", err)
			}

			if c.Len() != 2 {
				t.Fatalf("Expected 2 datasets, got %d", c.Len())
			}
			active, err := c.Active()
			if err != nil {
				t.Fatalf("Expected an active dataset, got %v", err)
			}
			if active.Name != tt.wantActive {
				t.Errorf("Expected active %s, got %s", tt.wantActive, active.Name)
			}
			if n := datasets[tt.remove].RegionCount(); n != 0 {
				t.Errorf("Expected removed dataset regions to be cleared, got %d", n)
			}
		})
	}
}

func TestCollection_RemoveLast(t *testing.T) {
	c := NewCollection()
	c.Add(newTestDataset(t, "only"))

	if err := c.Remove(0); err != nil {
		t.Fatalf("Failed to remove: %v", err)
	}
	if c.ActiveIndex() != -1 {
		t.Errorf("Expected no active dataset, got %d", c.ActiveIndex())
	}
	if err := c.Remove(0); err == nil {
		t.Errorf("Expected removing from empty collection to fail")
	}
}
