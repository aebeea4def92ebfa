package peakfit

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/edxrd/internal/spectrum"
)

// Params are the model parameters a, x0, sigma, b, c indexed by the
// spectrum.Param* constants.
type Params = [spectrum.NumParams]float64

// fwhmFactor converts a Gaussian sigma into its full width at half maximum.
var fwhmFactor = 2 * math.Sqrt(2*math.Ln2)

// Gaussian evaluates a*exp(-(x-x0)²/(2σ²)) + b*x + c.
func Gaussian(x float64, p Params) float64 {
	return peak(x, p) + p[spectrum.ParamSlope]*x + p[spectrum.ParamIntercept]
}

// peak is the Gaussian term alone, without the baseline.
func peak(x float64, p Params) float64 {
	d := x - p[spectrum.ParamCenter]
	s := p[spectrum.ParamSigma]
	return p[spectrum.ParamAmplitude] * math.Exp(-d*d/(2*s*s))
}

// gradient writes the partial derivatives of Gaussian at x into dst.
func gradient(dst []float64, x float64, p Params) {
	a, x0, s := p[spectrum.ParamAmplitude], p[spectrum.ParamCenter], p[spectrum.ParamSigma]
	d := x - x0
	e := math.Exp(-d * d / (2 * s * s))

	dst[spectrum.ParamAmplitude] = e
	dst[spectrum.ParamCenter] = a * e * d / (s * s)
	dst[spectrum.ParamSigma] = a * e * d * d / (s * s * s)
	dst[spectrum.ParamSlope] = x
	dst[spectrum.ParamIntercept] = 1
}

// FWHM returns the full width at half maximum of a Gaussian with the given sigma.
func FWHM(sigma float64) float64 {
	return fwhmFactor * sigma
}

// InitialGuess derives starting parameters from the samples of a region:
// the highest sample gives amplitude and centre, a sixth of the region width
// gives sigma, and the lowest count gives a flat baseline.
func InitialGuess(subset spectrum.Series, region *spectrum.Region) Params {
	ys := subset.Ys()
	top := floats.MaxIdx(ys)

	var p Params
	p[spectrum.ParamAmplitude] = ys[top]
	p[spectrum.ParamCenter] = subset[top].X
	p[spectrum.ParamSigma] = region.Width() / 6
	p[spectrum.ParamSlope] = 0
	p[spectrum.ParamIntercept] = floats.Min(ys)
	return p
}

// Evaluate samples the model at xs.
func Evaluate(p Params, xs []float64) []float64 {
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = Gaussian(x, p)
	}
	return ys
}

// Curve samples the model at n evenly spaced points over [lo, hi].
func Curve(p Params, lo, hi float64, n int) spectrum.Series {
	if n < 2 {
		n = 2
	}
	xs := floats.Span(make([]float64, n), lo, hi)

	curve := make(spectrum.Series, n)
	for i, x := range xs {
		curve[i] = spectrum.Sample{X: x, Y: Gaussian(x, p)}
	}
	return curve
}
