package spectrum

// Sample is a single (x, y) point of a spectrum. X is a channel index for raw
// data or an energy in keV once calibrated, Y is the detector count.
type Sample struct {
	X float64 `json:"x"` // Channel index or energy in keV
	Y float64 `json:"y"` // Counts
}

// Series is an ordered sequence of samples with non-decreasing X.
// It satisfies gonum's plotter.XYer so it can be plotted directly.
type Series []Sample

// Len returns the number of samples in the series.
func (s Series) Len() int {
	return len(s)
}

// XY returns the coordinates of the i-th sample.
func (s Series) XY(i int) (x, y float64) {
	return s[i].X, s[i].Y
}

// Clone returns a deep copy of the series.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	c := make(Series, len(s))
	copy(c, s)
	return c
}

// Xs returns the X column.
func (s Series) Xs() []float64 {
	xs := make([]float64, len(s))
	for i, p := range s {
		xs[i] = p.X
	}
	return xs
}

// Ys returns the Y column.
func (s Series) Ys() []float64 {
	ys := make([]float64, len(s))
	for i, p := range s {
		ys[i] = p.Y
	}
	return ys
}

// Between returns the samples with lo <= X <= hi, preserving order.
func (s Series) Between(lo, hi float64) Series {
	var subset Series
	for _, p := range s {
		if p.X >= lo && p.X <= hi {
			subset = append(subset, p)
		}
	}
	return subset
}

// FitStatus tags the outcome of fitting a single region.
type FitStatus string

const (
	// FitOK means the solver converged and all metrics are meaningful.
	FitOK FitStatus = "ok"

	// FitFailed means the solver did not converge; the result carries the
	// initial guess and zeroed metrics.
	FitFailed FitStatus = "failed"

	// FitEmpty means the region bounds selected no samples and nothing was fitted.
	FitEmpty FitStatus = "empty"
)

// Parameter indices of the Gaussian-plus-linear-baseline model
// f(x) = a*exp(-(x-x0)^2/(2*sigma^2)) + b*x + c.
const (
	ParamAmplitude = iota
	ParamCenter
	ParamSigma
	ParamSlope
	ParamIntercept

	NumParams
)

// FitResult is the outcome of fitting one region of interest.
type FitResult struct {
	Status     FitStatus                     `json:"status"`
	Reason     error                         `json:"-"`        // Why the fit failed, nil unless Status is FitFailed
	Params     [NumParams]float64            `json:"params"`   // a, x0, sigma, b, c
	Covariance [NumParams][NumParams]float64 `json:"-"`        // Parameter covariance estimate
	FWHM       float64                       `json:"fwhm"`     // Full width at half maximum
	Integral   float64                       `json:"integral"` // Area of the Gaussian term over the region
	RSquared   float64                       `json:"rSquared"` // Coefficient of determination over the region samples
	Samples    int                           `json:"samples"`  // Number of samples the fit used
}

// Center returns the fitted peak position x0.
func (r *FitResult) Center() float64 {
	return r.Params[ParamCenter]
}

// Sigma returns the fitted Gaussian width.
func (r *FitResult) Sigma() float64 {
	return r.Params[ParamSigma]
}

// Region is an x-interval of a spectrum selected for peak fitting.
// Bounds are expressed in the units of the series that was current when
// the region was created.
type Region struct {
	XMin  float64    `json:"xMin"`
	XMax  float64    `json:"xMax"`
	Color string     `json:"color"`         // Hex display colour, e.g. "#1f77b4"
	Fit   *FitResult `json:"fit,omitempty"` // nil while the region is unfitted
}

// Width returns XMax - XMin.
func (r *Region) Width() float64 {
	return r.XMax - r.XMin
}

// Fitted reports whether the region holds a fit record from the solver,
// either converged or failed.
func (r *Region) Fitted() bool {
	return r.Fit != nil && r.Fit.Status != FitEmpty
}
