package spectrum

import (
	"fmt"
	"math"
	"sync"
)

// Dataset holds one spectrum: the raw (channel, counts) series, the adjusted
// (energy, counts) series and the regions of interest marked on it.
//
// A Dataset does not lock itself. Callers sharing a dataset between
// goroutines must serialise mutations through WithLock.
type Dataset struct {
	Name string

	raw           Series
	adjusted      Series
	xAxisAdjusted bool
	regions       []*Region

	mu sync.Mutex
}

// NewDataset builds a dataset from an imported numeric table. The last row
// of the table is a terminator record in the acquisition format and is always
// dropped. Only the first two columns are used.
func NewDataset(name string, table [][]float64) (*Dataset, error) {
	if len(table) > 0 {
		table = table[:len(table)-1]
	}
	if len(table) == 0 {
		return nil, &FormatError{Dataset: name, Row: -1, Msg: "no usable rows"}
	}

	raw := make(Series, len(table))
	for i, row := range table {
		if len(row) < 2 {
			return nil, &FormatError{Dataset: name, Row: i, Msg: fmt.Sprintf("need at least 2 columns, got %d", len(row))}
		}
		if !isFinite(row[0]) || !isFinite(row[1]) {
			return nil, &FormatError{Dataset: name, Row: i, Msg: "non-finite value"}
		}
		if i > 0 && row[0] < raw[i-1].X {
			return nil, &FormatError{Dataset: name, Row: i, Msg: fmt.Sprintf("channel %g decreases after %g", row[0], raw[i-1].X)}
		}
		raw[i] = Sample{X: row[0], Y: row[1]}
	}

	return &Dataset{
		Name:     name,
		raw:      raw,
		adjusted: raw.Clone(),
	}, nil
}

// Raw returns a copy of the (channel, counts) series.
func (d *Dataset) Raw() Series {
	return d.raw.Clone()
}

// Adjusted returns a copy of the (energy, counts) series.
func (d *Dataset) Adjusted() Series {
	return d.adjusted.Clone()
}

// XAxisAdjusted reports whether an energy calibration has been applied.
func (d *Dataset) XAxisAdjusted() bool {
	return d.xAxisAdjusted
}

// CurrentSeries returns the adjusted series once calibrated, the raw series
// otherwise. The returned slice must not be modified.
func (d *Dataset) CurrentSeries() Series {
	if d.xAxisAdjusted {
		return d.adjusted
	}
	return d.raw
}

// Unit returns the unit of the current X axis.
func (d *Dataset) Unit() string {
	if d.xAxisAdjusted {
		return "keV"
	}
	return "ch"
}

// SetAdjusted replaces the adjusted series, switches the dataset to it and
// clears every region together with its fit. Regions were drawn in the
// previous coordinate system and cannot be carried over.
func (d *Dataset) SetAdjusted(s Series) error {
	if len(s) != len(d.raw) {
		return fmt.Errorf("adjusted series has %d samples, raw has %d", len(s), len(d.raw))
	}
	d.adjusted = s
	d.xAxisAdjusted = true
	d.ClearRegions()
	return nil
}

// AppendRegion adds a region to the end of the region list.
func (d *Dataset) AppendRegion(xMin, xMax float64, color string) *Region {
	r := &Region{XMin: xMin, XMax: xMax, Color: color}
	d.regions = append(d.regions, r)
	return r
}

// Regions returns the regions in creation order.
func (d *Dataset) Regions() []*Region {
	out := make([]*Region, len(d.regions))
	copy(out, d.regions)
	return out
}

// RegionCount returns the number of regions on the dataset.
func (d *Dataset) RegionCount() int {
	return len(d.regions)
}

// ClearRegions removes all regions and their fit results.
func (d *Dataset) ClearRegions() {
	d.regions = nil
}

// ResetFits marks every region as unfitted.
func (d *Dataset) ResetFits() {
	for _, r := range d.regions {
		r.Fit = nil
	}
}

// FitResults returns the fit records in region order. Regions that are
// unfitted or selected no samples contribute no entry, so the i-th result
// does not necessarily belong to the i-th region.
func (d *Dataset) FitResults() []FitResult {
	var results []FitResult
	for _, r := range d.regions {
		if r.Fitted() {
			results = append(results, *r.Fit)
		}
	}
	return results
}

// ExportTable returns the adjusted series as (energy, counts) rows.
func (d *Dataset) ExportTable() [][2]float64 {
	rows := make([][2]float64, len(d.adjusted))
	for i, p := range d.adjusted {
		rows[i] = [2]float64{p.X, p.Y}
	}
	return rows
}

// WithLock runs fn while holding the dataset lock.
func (d *Dataset) WithLock(fn func(*Dataset) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
