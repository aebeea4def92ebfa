package roi

import (
	"io"
	"log/slog"
	"math"

	"github.com/roman-kulish/edxrd/internal/spectrum"
)

// Epsilon is the smallest drag distance, in series X units, that creates a
// region. Shorter drags are treated as accidental clicks.
const Epsilon = 0.001

// Palette is the fixed set of region colours. A region gets the colour at
// the index equal to the number of regions that existed before it, modulo
// the palette size.
var Palette = [...]string{
	"#1f77b4", // Blue
	"#ff7f0e", // Orange
	"#2ca02c", // Green
	"#d62728", // Red
	"#9467bd", // Purple
	"#8c564b", // Brown
	"#e377c2", // Pink
	"#7f7f7f", // Gray
	"#bcbd22", // Olive
	"#17becf", // Cyan
}

// ColorFor returns the palette colour for the n-th region created on a dataset.
func ColorFor(n int) string {
	return Palette[n%len(Palette)]
}

// WithLogger sets the logger for the selector
func WithLogger(logger *slog.Logger) func(s *Selector) {
	return func(s *Selector) {
		s.logger = logger.With(slog.String("dataset", s.dataset.Name))
	}
}

// Selector turns a press/drag/release gesture into a region on a dataset.
// Callers translate pointer events into Begin, Update and Commit.
type Selector struct {
	dataset *spectrum.Dataset

	start   float64
	current float64
	active  bool

	logger *slog.Logger
}

// NewSelector creates a selector for a dataset with a discard logger
func NewSelector(ds *spectrum.Dataset, options ...func(s *Selector)) *Selector {
	s := Selector{
		dataset: ds,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Begin starts a selection at x.
func (s *Selector) Begin(x float64) {
	s.start = x
	s.current = x
	s.active = true
}

// Update moves the free end of the selection.
func (s *Selector) Update(x float64) {
	if !s.active {
		return
	}
	s.current = x
}

// Pending returns the normalised interval being dragged, for rubber-band display.
func (s *Selector) Pending() (lo, hi float64, ok bool) {
	if !s.active {
		return 0, 0, false
	}
	return min(s.start, s.current), max(s.start, s.current), true
}

// Active reports whether a selection is in progress.
func (s *Selector) Active() bool {
	return s.active
}

// Cancel abandons the selection in progress.
func (s *Selector) Cancel() {
	s.active = false
}

// Commit ends the selection at x. It returns the new region, or false when
// no selection was in progress or the drag was not longer than Epsilon.
func (s *Selector) Commit(x float64) (*spectrum.Region, bool) {
	if !s.active {
		return nil, false
	}
	s.active = false

	r, ok := Add(s.dataset, s.start, x)
	if !ok {
		s.logger.Debug("selection rejected", slog.Float64("start", s.start), slog.Float64("end", x))
		return nil, false
	}

	s.logger.Info("region selected",
		slog.Int("index", s.dataset.RegionCount()-1),
		slog.Float64("xMin", r.XMin),
		slog.Float64("xMax", r.XMax),
		slog.String("color", r.Color))
	return r, true
}

// Add appends the region spanned by x1 and x2 to the dataset, in either
// order. It applies the same Epsilon guard as an interactive selection.
func Add(ds *spectrum.Dataset, x1, x2 float64) (*spectrum.Region, bool) {
	if !(math.Abs(x2-x1) > Epsilon) {
		return nil, false
	}
	return ds.AppendRegion(min(x1, x2), max(x1, x2), ColorFor(ds.RegionCount())), true
}

// ClearAll removes every region and fit result from the dataset.
func ClearAll(ds *spectrum.Dataset) {
	ds.ClearRegions()
}
