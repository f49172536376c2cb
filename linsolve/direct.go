package linsolve

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/gofvm/ldu"
	"gonum.org/v1/gonum/mat"
)

// Direct factorises the whole matrix with dense LU. It is for small serial
// systems and checks, as the matrix is densified.
type Direct struct {
	s   *System
	csr ldu.CSR
	lu  mat.LU
}

func newDirectSolver(args Args) (Solver, error) {
	s := args.System
	if s.comm().Parallel() || s.Interfaces.Coupled() {
		return nil, fmt.Errorf("direct solver for %s needs an uncoupled serial system", s.Field)
	}
	d := &Direct{s: s, csr: s.Matrix.CSR(s.Field)}
	d.lu.Factorize(d.csr)
	return d, nil
}

func (d *Direct) Solve(psi, source []float64) (perf Performance) {
	var (
		s  = d.s
		n  = len(psi)
		rA = make([]float64, n)
	)
	perf = Performance{Solver: "direct", Field: s.Field}
	Apsi := d.csr.MulVec(psi)
	normFactor := s.NormFactor(psi, source, Apsi, rA)
	for c := range rA {
		rA[c] = source[c] - Apsi[c]
	}
	perf.Initial = s.gSumMag(rA) / normFactor
	x := mat.NewVecDense(n, nil)
	if err := d.lu.SolveVecTo(x, false, mat.NewVecDense(n, source)); err != nil {
		// An ill conditioned solution is still the best available
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			perf.Singular = true
			perf.Final = perf.Initial
			return
		}
	}
	copy(psi, x.RawVector().Data)
	Apsi = d.csr.MulVec(psi)
	for c := range rA {
		rA[c] = source[c] - Apsi[c]
	}
	perf.Final = s.gSumMag(rA) / normFactor
	perf.Iterations = 1
	perf.Converged = true
	return
}
