// Package lsq implements a box-constrained Levenberg–Marquardt solver for
// small nonlinear least-squares problems.
//
// The solver minimises 0.5*||r(x)||² subject to lower <= x <= upper. Steps
// are projected onto the box; parameters sitting on a bound with the
// gradient pushing outward are frozen for that iteration.
package lsq

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultMaxEvaluations caps residual evaluations per solve.
	DefaultMaxEvaluations = 5000

	// dampingMax bounds the damping factor; beyond it the problem is
	// considered numerically singular.
	dampingMax = 1e16

	// diagFloor keeps zero columns of the Jacobian from making the scaled
	// system singular.
	diagFloor = 1e-12
)

var (
	// ErrMaxEvaluations is returned when the evaluation budget runs out before convergence
	ErrMaxEvaluations = errors.New("maximum number of function evaluations exceeded")

	// ErrSingular is returned when the damped normal equations cannot be solved
	ErrSingular = errors.New("normal equations are singular")

	// ErrNonFinite is returned when the residuals at the starting point are not finite
	ErrNonFinite = errors.New("non-finite residuals")
)

// Problem describes a least-squares problem with M residuals over N parameters.
type Problem struct {
	M int // Number of residuals
	N int // Number of parameters

	// Residuals writes r(x) into dst (len M).
	Residuals func(dst, x []float64)

	// Jacobian writes dr/dx into dst (M x N).
	Jacobian func(dst *mat.Dense, x []float64)

	// Lower and Upper bound every parameter. Use math.Inf for free parameters.
	// Nil means unbounded.
	Lower []float64
	Upper []float64
}

// Settings controls the termination of the solver.
type Settings struct {
	MaxEvaluations int     // Residual evaluation cap
	Tau            float64 // Initial damping factor, scales diag(JᵀJ)
	GradTol        float64 // Projected gradient infinity norm tolerance, relative to the cost
	StepTol        float64 // Relative step size tolerance
	ObjectiveTol   float64 // Relative cost reduction tolerance
}

// DefaultSettings returns the settings used by the peak fitter.
func DefaultSettings() Settings {
	return Settings{
		MaxEvaluations: DefaultMaxEvaluations,
		Tau:            1e-3,
		GradTol:        1e-12,
		StepTol:        1e-10,
		ObjectiveTol:   1e-12,
	}
}

// Result holds the solution of a Problem.
type Result struct {
	X           []float64     // Parameters at the solution
	Cost        float64       // 0.5 * sum of squared residuals
	Covariance  *mat.SymDense // Parameter covariance, nil when the Jacobian is rank deficient
	Evaluations int           // Number of residual evaluations
	Iterations  int           // Number of accepted steps
}

// Solve runs the solver from x0. The starting point is clipped into the bounds.
func Solve(p Problem, x0 []float64, settings Settings) (*Result, error) {
	if err := p.validate(x0); err != nil {
		return nil, err
	}
	if settings.MaxEvaluations <= 0 {
		settings.MaxEvaluations = DefaultMaxEvaluations
	}

	s := newState(p, x0)

	s.evaluate(s.x, s.r)
	if !allFinite(s.r) {
		return nil, fmt.Errorf("evaluating start point: %w", ErrNonFinite)
	}
	s.cost = halfSquaredNorm(s.r)
	s.linearise()

	damping := settings.Tau
	nu := 2.0

	for {
		if s.cost == 0 || s.projectedGradientNorm() <= settings.GradTol*math.Max(s.cost, 1) {
			return s.result(), nil
		}
		if s.evaluations >= settings.MaxEvaluations {
			return nil, fmt.Errorf("after %d evaluations (cost %g): %w", s.evaluations, s.cost, ErrMaxEvaluations)
		}

		step, err := s.step(damping)
		if err != nil {
			if damping > dampingMax {
				return nil, fmt.Errorf("at damping %g: %w", damping, ErrSingular)
			}
			damping *= nu
			nu *= 2
			continue
		}

		if floats.Norm(step, 2) <= settings.StepTol*(floats.Norm(s.x, 2)+settings.StepTol) {
			return s.result(), nil
		}

		floats.AddTo(s.trial, s.x, step)
		s.evaluate(s.trial, s.trialR)

		trialCost := halfSquaredNorm(s.trialR)
		actual := s.cost - trialCost
		predicted := s.predictedReduction(step)

		if allFinite(s.trialR) && actual > 0 && predicted > 0 {
			rho := actual / predicted

			copy(s.x, s.trial)
			copy(s.r, s.trialR)
			previous := s.cost
			s.cost = trialCost
			s.iterations++
			s.linearise()

			damping *= math.Max(1.0/3, 1-math.Pow(2*rho-1, 3))
			nu = 2

			if actual <= settings.ObjectiveTol*previous {
				return s.result(), nil
			}
			continue
		}

		if damping > dampingMax {
			// No descent is possible at any damping; the current point is
			// as good as the solver can do.
			return s.result(), nil
		}
		damping *= nu
		nu *= 2
	}
}

func (p Problem) validate(x0 []float64) error {
	switch {
	case p.N <= 0:
		return fmt.Errorf("lsq: invalid parameter count %d", p.N)
	case p.M <= 0:
		return fmt.Errorf("lsq: invalid residual count %d", p.M)
	case len(x0) != p.N:
		return fmt.Errorf("lsq: start point has %d parameters, want %d", len(x0), p.N)
	case p.Residuals == nil || p.Jacobian == nil:
		return errors.New("lsq: residuals and jacobian functions are required")
	case p.Lower != nil && len(p.Lower) != p.N:
		return fmt.Errorf("lsq: lower bounds have %d entries, want %d", len(p.Lower), p.N)
	case p.Upper != nil && len(p.Upper) != p.N:
		return fmt.Errorf("lsq: upper bounds have %d entries, want %d", len(p.Upper), p.N)
	}
	for i := 0; i < p.N; i++ {
		if lo, hi := p.lower(i), p.upper(i); lo > hi {
			return fmt.Errorf("lsq: parameter %d has empty bounds [%g, %g]", i, lo, hi)
		}
	}
	return nil
}

func (p Problem) lower(i int) float64 {
	if p.Lower == nil {
		return math.Inf(-1)
	}
	return p.Lower[i]
}

func (p Problem) upper(i int) float64 {
	if p.Upper == nil {
		return math.Inf(1)
	}
	return p.Upper[i]
}

type state struct {
	p Problem

	x, r          []float64
	trial, trialR []float64
	cost          float64

	jac  *mat.Dense
	jtj  *mat.Dense
	grad []float64

	evaluations int
	iterations  int
}

func newState(p Problem, x0 []float64) *state {
	s := &state{
		p:      p,
		x:      make([]float64, p.N),
		r:      make([]float64, p.M),
		trial:  make([]float64, p.N),
		trialR: make([]float64, p.M),
		jac:    mat.NewDense(p.M, p.N, nil),
		jtj:    mat.NewDense(p.N, p.N, nil),
		grad:   make([]float64, p.N),
	}
	for i, v := range x0 {
		s.x[i] = clamp(v, p.lower(i), p.upper(i))
	}
	return s
}

func (s *state) evaluate(x, dst []float64) {
	s.p.Residuals(dst, x)
	s.evaluations++
}

// linearise refreshes the Jacobian, JᵀJ and the gradient Jᵀr at s.x.
func (s *state) linearise() {
	s.p.Jacobian(s.jac, s.x)
	s.jtj.Mul(s.jac.T(), s.jac)

	g := mat.NewVecDense(s.p.N, s.grad)
	g.MulVec(s.jac.T(), mat.NewVecDense(s.p.M, s.r))
}

// active reports whether parameter i is held on a bound this iteration.
func (s *state) active(i int) bool {
	lo, hi := s.p.lower(i), s.p.upper(i)
	return (s.x[i] <= lo && s.grad[i] > 0) || (s.x[i] >= hi && s.grad[i] < 0)
}

// frozen reports whether parameter i is left out of the step: it is active
// or the residuals do not depend on it at s.x.
func (s *state) frozen(i int) bool {
	return s.active(i) || s.jtj.At(i, i) == 0
}

func (s *state) projectedGradientNorm() float64 {
	var norm float64
	for i, g := range s.grad {
		if s.active(i) {
			continue
		}
		norm = math.Max(norm, math.Abs(g))
	}
	return norm
}

// step solves (JᵀJ + damping*diag(JᵀJ)) h = -Jᵀr over the free parameters
// and projects x+h onto the bounds. It returns the projected step.
func (s *state) step(damping float64) ([]float64, error) {
	n := s.p.N
	sys := mat.NewSymDense(n, nil)
	rhs := mat.NewVecDense(n, nil)

	for i := 0; i < n; i++ {
		if s.frozen(i) {
			sys.SetSym(i, i, 1)
			continue
		}
		for j := i; j < n; j++ {
			if s.frozen(j) {
				continue
			}
			sys.SetSym(i, j, s.jtj.At(i, j))
		}
		diag := math.Max(s.jtj.At(i, i), diagFloor)
		sys.SetSym(i, i, s.jtj.At(i, i)+damping*diag)
		rhs.SetVec(i, -s.grad[i])
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sys); !ok {
		return nil, ErrSingular
	}

	// A mat.Condition error only warns about conditioning; h is still set.
	var h mat.VecDense
	if err := chol.SolveVecTo(&h, rhs); err != nil && !errors.As(err, new(mat.Condition)) {
		return nil, err
	}
	if !allFinite(h.RawVector().Data) {
		return nil, ErrSingular
	}

	step := make([]float64, n)
	for i := range step {
		next := clamp(s.x[i]+h.AtVec(i), s.p.lower(i), s.p.upper(i))
		step[i] = next - s.x[i]
	}
	return step, nil
}

// predictedReduction is the decrease of the linear model's cost for step h:
// -hᵀJᵀr - 0.5*hᵀJᵀJh.
func (s *state) predictedReduction(h []float64) float64 {
	hv := mat.NewVecDense(len(h), h)

	var jh mat.VecDense
	jh.MulVec(s.jac, hv)

	return -floats.Dot(h, s.grad) - 0.5*mat.Dot(&jh, &jh)
}

func (s *state) result() *Result {
	res := &Result{
		X:           append([]float64(nil), s.x...),
		Cost:        s.cost,
		Evaluations: s.evaluations,
		Iterations:  s.iterations,
	}
	res.Covariance = covariance(s.jac, 2*s.cost)
	return res
}

// covariance estimates inv(JᵀJ) scaled by the residual variance
// ssRes/(M-N). It returns nil when JᵀJ is not positive definite or there are
// no degrees of freedom left.
func covariance(jac *mat.Dense, ssRes float64) *mat.SymDense {
	m, n := jac.Dims()
	if m <= n {
		return nil
	}

	var jtj mat.SymDense
	jtj.SymOuterK(1, jac.T())

	var chol mat.Cholesky
	if ok := chol.Factorize(&jtj); !ok {
		return nil
	}

	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil
	}
	inv.ScaleSym(ssRes/float64(m-n), &inv)
	return &inv
}

func halfSquaredNorm(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}

func allFinite(v []float64) bool {
	for _, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
