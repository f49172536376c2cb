// Package linsolve solves assembled LDU systems with iterative (or direct)
// solvers selected by name, and reports normalised residual diagnostics.
package linsolve

import (
	"fmt"
	"math"

	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/parallel"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/types"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Small is added to the normalisation factor so a zero system has a finite
// residual
const Small = 1e-20

// System is an assembled matrix together with its coupled interfaces
type System struct {
	Field              string
	Matrix             *ldu.Matrix
	InterfaceBouCoeffs [][]float64
	InterfaceIntCoeffs [][]float64
	Interfaces         ldu.Interfaces
	Comm               parallel.Comm
}

func (s *System) comm() parallel.Comm {
	if s.Comm == nil {
		return parallel.Serial()
	}
	return s.Comm
}

func (s *System) Amul(result, psi []float64) {
	s.Matrix.Amul(result, psi, s.InterfaceBouCoeffs, s.Interfaces)
}

func (s *System) Residual(rA, psi, source []float64) {
	s.Matrix.Residual(rA, psi, source, s.InterfaceBouCoeffs, s.Interfaces)
}

// NormFactor is the residual normalisation
// sum(|A psi - A xRef| + |b - A xRef|) with xRef the average of psi
func (s *System) NormFactor(psi, source, Apsi, tmp []float64) float64 {
	s.Matrix.SumA(tmp, s.InterfaceBouCoeffs, s.Interfaces)
	xRef := s.gAverage(psi)
	floats.Scale(xRef, tmp)
	var sum float64
	for c := range tmp {
		sum += math.Abs(Apsi[c]-tmp[c]) + math.Abs(source[c]-tmp[c])
	}
	return s.comm().AllReduceSum(sum) + Small
}

func (s *System) gSumMag(v []float64) float64 { return s.comm().AllReduceSum(floats.Norm(v, 1)) }

func (s *System) gSumProd(a, b []float64) float64 { return s.comm().AllReduceSum(floats.Dot(a, b)) }

func (s *System) gAverage(v []float64) float64 {
	comm := s.comm()
	n := comm.AllReduceSum(float64(len(v)))
	if n == 0 {
		return 0
	}
	return comm.AllReduceSum(floats.Sum(v)) / n
}

type Solver interface {
	// Solve overwrites psi with the solution and reports the residuals
	Solve(psi, source []float64) Performance
}

type Args struct {
	System   *System
	Controls Controls
}

// Performance is the outcome of one linear solve
type Performance struct {
	Solver     string
	Field      string
	Initial    float64
	Final      float64
	Iterations int
	Converged  bool
	Singular   bool
}

func (p *Performance) CheckConvergence(tol, relTol float64) bool {
	p.Converged = belowTolerance(p.Final, p.Initial, tol, relTol)
	return p.Converged
}

// belowTolerance is true below the absolute tolerance, or below relTol times the
// initial residual when relTol is set
func belowTolerance(residual, initial, tol, relTol float64) bool {
	return residual < tol || (relTol > types.Small && residual < relTol*initial)
}

func (p *Performance) CheckSingularity(residual float64) bool {
	p.Singular = residual < types.VSmall
	return p.Singular
}

func (p Performance) String() string {
	return fmt.Sprintf("%s:  Solving for %s, Initial residual = %g, Final residual = %g, No Iterations %d",
		p.Solver, p.Field, p.Initial, p.Final, p.Iterations)
}

func (p Performance) Fields() []zap.Field {
	return []zap.Field{
		zap.String("field", p.Field),
		zap.String("solver", p.Solver),
		zap.Float64("initial", p.Initial),
		zap.Float64("final", p.Final),
		zap.Int("iterations", p.Iterations),
	}
}

// Log reports the solve, with a warning when it did not converge
func (p Performance) Log(l *zap.Logger) {
	switch {
	case p.Singular:
		l.Warn("singular matrix", p.Fields()...)
	case !p.Converged:
		l.Warn("linear solver did not converge", p.Fields()...)
	default:
		l.Info("solved", p.Fields()...)
	}
}

var (
	symSolvers  = newSolverTable("symmetric matrix solver", true)
	asymSolvers = newSolverTable("asymmetric matrix solver", false)
)

func newSolverTable(kind string, symmetric bool) *registry.Registry[Solver, Args] {
	r := registry.New[Solver, Args](kind).
		MustRegister("PBiCGStab", newPBiCGStab).
		MustRegister("smoothSolver", newSmoothSolver).
		MustRegister("diagonal", newDiagonalSolver).
		MustRegister("direct", newDirectSolver)
	if symmetric {
		r.MustRegister("PCG", newPCG)
	}
	return r
}

func SymmetricSolvers() *registry.Registry[Solver, Args]  { return symSolvers }
func AsymmetricSolvers() *registry.Registry[Solver, Args] { return asymSolvers }

// New selects a solver for the system from the controls. Diagonal
// matrices always use the diagonal solver.
func New(s *System, c Controls) (Solver, error) {
	var (
		args = Args{System: s, Controls: c}
	)
	switch {
	case s.Matrix.Diagonal():
		return newDiagonalSolver(args)
	case s.Matrix.Symmetric():
		return symSolvers.Create(c.Solver, args)
	case s.Matrix.Asymmetric():
		return asymSolvers.Create(c.Solver, args)
	}
	return nil, fmt.Errorf("cannot solve %s: matrix has no diagonal", s.Field)
}

// Solve solves the system with the controls in one call
func Solve(s *System, c Controls, psi, source []float64) (p Performance, err error) {
	solver, err := New(s, c)
	if err != nil {
		return p, err
	}
	return solver.Solve(psi, source), nil
}

// diagonalSolver divides the source by the diagonal
type diagonalSolver struct {
	s *System
}

func newDiagonalSolver(args Args) (Solver, error) { return &diagonalSolver{s: args.System}, nil }

func (d *diagonalSolver) Solve(psi, source []float64) Performance {
	floats.DivTo(psi, source, d.s.Matrix.DiagRO())
	return Performance{Solver: "diagonal", Field: d.s.Field, Converged: true}
}
