// Package peakfit fits a single Gaussian peak on a linear baseline to the
// samples inside each region of interest of a dataset.
package peakfit

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/edxrd/internal/lsq"
	"github.com/roman-kulish/edxrd/internal/spectrum"
)

const (
	// DefaultGridPoints is the number of points the peak integral is evaluated on.
	DefaultGridPoints = 1000

	// minSigmaFraction keeps sigma strictly positive: its lower bound is this
	// fraction of the region width.
	minSigmaFraction = 1e-9
)

// Summary counts the outcomes of fitting every region of a dataset.
type Summary struct {
	Fitted int // Regions with a converged fit
	Failed int // Regions whose fit did not converge
	Empty  int // Regions that selected no samples
}

// Total returns the number of regions visited.
func (s Summary) Total() int {
	return s.Fitted + s.Failed + s.Empty
}

// WithLogger sets the logger for the fitter
func WithLogger(logger *slog.Logger) func(f *Fitter) {
	return func(f *Fitter) {
		f.logger = logger
	}
}

// WithMaxEvaluations caps the residual evaluations of a single region fit
func WithMaxEvaluations(n int) func(f *Fitter) {
	return func(f *Fitter) {
		if n > 0 {
			f.settings.MaxEvaluations = n
		}
	}
}

// WithGridPoints sets the number of points used to integrate the peak
func WithGridPoints(n int) func(f *Fitter) {
	return func(f *Fitter) {
		if n >= 3 {
			f.gridPoints = n
		}
	}
}

// Fitter fits regions of interest. It holds no per-dataset state and can be
// reused across datasets.
type Fitter struct {
	settings   lsq.Settings
	gridPoints int
	logger     *slog.Logger
}

// NewFitter creates a fitter with the default solver settings and a discard logger
func NewFitter(options ...func(f *Fitter)) *Fitter {
	f := Fitter{
		settings:   lsq.DefaultSettings(),
		gridPoints: DefaultGridPoints,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&f)
	}

	return &f
}

// FitDataset discards every previous fit of the dataset and fits its regions
// in order against the current series. Each region gets a result attached,
// including regions that selected no samples or failed to converge.
func (f *Fitter) FitDataset(ds *spectrum.Dataset) Summary {
	ds.ResetFits()

	series := ds.CurrentSeries()
	logger := f.logger.With(slog.String("dataset", ds.Name), slog.String("unit", ds.Unit()))

	var summary Summary
	for i, region := range ds.Regions() {
		result := f.FitRegion(series, region)
		region.Fit = &result

		attrs := []any{
			slog.Int("region", i+1),
			slog.Float64("xMin", region.XMin),
			slog.Float64("xMax", region.XMax),
			slog.Int("samples", result.Samples),
		}

		switch result.Status {
		case spectrum.FitOK:
			summary.Fitted++
			logger.Info("region fitted", append(attrs,
				slog.Group("peak",
					slog.Float64("center", result.Center()),
					slog.Float64("fwhm", result.FWHM),
					slog.Float64("integral", result.Integral),
					slog.Float64("rSquared", result.RSquared)))...)
		case spectrum.FitFailed:
			summary.Failed++
			logger.Warn("region fit failed", append(attrs, slog.Any("error", result.Reason))...)
		case spectrum.FitEmpty:
			summary.Empty++
			logger.Warn("region selected no samples", attrs...)
		}
	}

	return summary
}

// FitRegion fits the samples of series that fall inside region. It never
// fails: a region without samples yields a FitEmpty result and a fit that
// does not converge yields a FitFailed result carrying the initial guess.
func (f *Fitter) FitRegion(series spectrum.Series, region *spectrum.Region) spectrum.FitResult {
	subset := series.Between(region.XMin, region.XMax)
	if len(subset) == 0 {
		return spectrum.FitResult{Status: spectrum.FitEmpty}
	}

	guess := InitialGuess(subset, region)

	sol, err := lsq.Solve(f.problem(subset, region), guess[:], f.settings)
	if err == nil && !allFinite(sol.X) {
		err = fmt.Errorf("solution %v: %w", sol.X, lsq.ErrNonFinite)
	}
	if err != nil {
		return failed(guess, len(subset), err)
	}

	var params Params
	copy(params[:], sol.X)

	return spectrum.FitResult{
		Status:     spectrum.FitOK,
		Params:     params,
		Covariance: covariance(sol.Covariance),
		FWHM:       FWHM(params[spectrum.ParamSigma]),
		Integral:   f.integral(params, region.XMin, region.XMax),
		RSquared:   RSquared(subset, params),
		Samples:    len(subset),
	}
}

func (f *Fitter) problem(subset spectrum.Series, region *spectrum.Region) lsq.Problem {
	width := region.Width()
	inf := math.Inf(1)

	return lsq.Problem{
		M: len(subset),
		N: spectrum.NumParams,
		Residuals: func(dst, x []float64) {
			p := toParams(x)
			for i, s := range subset {
				dst[i] = Gaussian(s.X, p) - s.Y
			}
		},
		Jacobian: func(dst *mat.Dense, x []float64) {
			p := toParams(x)
			for i, s := range subset {
				gradient(dst.RawRowView(i), s.X, p)
			}
		},
		Lower: []float64{0, region.XMin, width * minSigmaFraction, -inf, -inf},
		Upper: []float64{inf, region.XMax, width, inf, inf},
	}
}

// integral integrates the Gaussian term over [lo, hi] with Simpson's rule.
func (f *Fitter) integral(p Params, lo, hi float64) float64 {
	xs := floats.Span(make([]float64, f.gridPoints), lo, hi)
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = peak(x, p)
	}
	return integrate.Simpsons(xs, ys)
}

// RSquared returns the coefficient of determination of the model over the
// samples, using their mean as the null model. A flat subset scores 1 when
// the model reproduces it exactly and 0 otherwise.
func RSquared(subset spectrum.Series, p Params) float64 {
	ys := subset.Ys()
	mean := stat.Mean(ys, nil)

	var ssRes, ssTot float64
	for i, s := range subset {
		r := s.Y - Gaussian(s.X, p)
		ssRes += r * r
		d := ys[i] - mean
		ssTot += d * d
	}

	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

func failed(guess Params, samples int, err error) spectrum.FitResult {
	return spectrum.FitResult{
		Status:  spectrum.FitFailed,
		Reason:  fmt.Errorf("%w: %w", spectrum.ErrFitNonConvergence, err),
		Params:  guess,
		Samples: samples,
	}
}

// covariance copies the solver covariance. Without one, every entry is +Inf:
// the parameters are not determined by the data.
func covariance(c *mat.SymDense) [spectrum.NumParams][spectrum.NumParams]float64 {
	var out [spectrum.NumParams][spectrum.NumParams]float64
	for i := range out {
		for j := range out[i] {
			if c == nil {
				out[i][j] = math.Inf(1)
				continue
			}
			out[i][j] = c.At(i, j)
		}
	}
	return out
}

func toParams(x []float64) Params {
	var p Params
	copy(p[:], x)
	return p
}

func allFinite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
