package linsolve

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// PCG is the preconditioned conjugate gradient solver for symmetric matrices
type PCG struct {
	s       *System
	c       Controls
	precond Preconditioner
}

func newPCG(args Args) (Solver, error) {
	p, err := NewPreconditioner(args.Controls.Preconditioner, args.System)
	if err != nil {
		return nil, err
	}
	return &PCG{s: args.System, c: args.Controls, precond: p}, nil
}

func (sol *PCG) Solve(psi, source []float64) (perf Performance) {
	var (
		s    = sol.s
		c    = sol.c
		n    = len(psi)
		wA   = make([]float64, n)
		rA   = make([]float64, n)
		pA   = make([]float64, n)
		wArA = 1e300
	)
	perf = Performance{Solver: "PCG", Field: s.Field}
	s.Amul(wA, psi)
	floats.SubTo(rA, source, wA)
	normFactor := s.NormFactor(psi, source, wA, pA)
	perf.Initial = s.gSumMag(rA) / normFactor
	perf.Final = perf.Initial
	if c.MinIter == 0 && perf.CheckConvergence(c.Tolerance, c.RelTol) {
		return
	}
	for {
		wArAold := wArA
		sol.precond.Precondition(wA, rA)
		wArA = s.gSumProd(wA, rA)
		if perf.Iterations == 0 {
			copy(pA, wA)
		} else {
			beta := wArA / wArAold
			for i := range pA {
				pA[i] = wA[i] + beta*pA[i]
			}
		}
		s.Amul(wA, pA)
		wApA := s.gSumProd(wA, pA)
		if perf.CheckSingularity(math.Abs(wApA) / normFactor) {
			break
		}
		alpha := wArA / wApA
		floats.AddScaled(psi, alpha, pA)
		floats.AddScaled(rA, -alpha, wA)
		perf.Final = s.gSumMag(rA) / normFactor
		perf.Iterations++
		converged := perf.CheckConvergence(c.Tolerance, c.RelTol)
		if (perf.Iterations >= c.MaxIter || converged) && perf.Iterations >= c.MinIter {
			break
		}
	}
	return
}

// PBiCGStab is the preconditioned stabilised bi-conjugate gradient solver
type PBiCGStab struct {
	s       *System
	c       Controls
	precond Preconditioner
}

func newPBiCGStab(args Args) (Solver, error) {
	p, err := NewPreconditioner(args.Controls.Preconditioner, args.System)
	if err != nil {
		return nil, err
	}
	return &PBiCGStab{s: args.System, c: args.Controls, precond: p}, nil
}

func (sol *PBiCGStab) Solve(psi, source []float64) (perf Performance) {
	var (
		s   = sol.s
		c   = sol.c
		n   = len(psi)
		yA  = make([]float64, n)
		rA  = make([]float64, n)
		pA  = make([]float64, n)
		AyA = make([]float64, n)
		sA  = make([]float64, n)
		zA  = make([]float64, n)
		tA  = make([]float64, n)
		rA0 = make([]float64, n)
	)
	var rA0rA, alpha, omega float64
	perf = Performance{Solver: "PBiCGStab", Field: s.Field}
	s.Amul(yA, psi)
	floats.SubTo(rA, source, yA)
	normFactor := s.NormFactor(psi, source, yA, pA)
	perf.Initial = s.gSumMag(rA) / normFactor
	perf.Final = perf.Initial
	if c.MinIter == 0 && perf.CheckConvergence(c.Tolerance, c.RelTol) {
		return
	}
	copy(rA0, rA)
	for {
		rA0rAold := rA0rA
		rA0rA = s.gSumProd(rA0, rA)
		if perf.Iterations == 0 {
			copy(pA, rA)
		} else {
			if perf.CheckSingularity(math.Abs(rA0rA)) {
				break
			}
			beta := (rA0rA / rA0rAold) * (alpha / omega)
			for i := range pA {
				pA[i] = rA[i] + beta*(pA[i]-omega*AyA[i])
			}
		}
		sol.precond.Precondition(yA, pA)
		s.Amul(AyA, yA)
		rA0AyA := s.gSumProd(rA0, AyA)
		alpha = rA0rA / rA0AyA
		floats.AddScaledTo(sA, rA, -alpha, AyA)
		sResidual := s.gSumMag(sA) / normFactor
		if perf.Iterations >= c.MinIter && belowTolerance(sResidual, perf.Initial, c.Tolerance, c.RelTol) {
			floats.AddScaled(psi, alpha, yA)
			perf.Iterations++
			perf.Final = sResidual
			perf.Converged = true
			return
		}
		sol.precond.Precondition(zA, sA)
		s.Amul(tA, zA)
		tAtA := s.gSumProd(tA, tA)
		if perf.CheckSingularity(tAtA) {
			floats.AddScaled(psi, alpha, yA)
			copy(rA, sA)
			perf.Iterations++
			perf.Final = sResidual
			break
		}
		omega = s.gSumProd(tA, sA) / tAtA
		floats.AddScaled(psi, alpha, yA)
		floats.AddScaled(psi, omega, zA)
		floats.AddScaledTo(rA, sA, -omega, tA)
		perf.Final = s.gSumMag(rA) / normFactor
		perf.Iterations++
		converged := perf.CheckConvergence(c.Tolerance, c.RelTol)
		if (perf.Iterations >= c.MaxIter || converged) && perf.Iterations >= c.MinIter {
			break
		}
	}
	return
}

// SmoothSolver iterates a smoother until the residual converges, checking
// the residual every nSweeps sweeps
type SmoothSolver struct {
	s        *System
	c        Controls
	smoother Smoother
}

func newSmoothSolver(args Args) (Solver, error) {
	sm, err := NewSmoother(args.Controls.Smoother, args.System)
	if err != nil {
		return nil, err
	}
	c := args.Controls
	if c.NSweeps < 1 {
		c.NSweeps = 1
	}
	return &SmoothSolver{s: args.System, c: c, smoother: sm}, nil
}

func (sol *SmoothSolver) Solve(psi, source []float64) (perf Performance) {
	var (
		s   = sol.s
		c   = sol.c
		n   = len(psi)
		rA  = make([]float64, n)
		tmp = make([]float64, n)
	)
	perf = Performance{Solver: "smoothSolver", Field: s.Field}
	s.Amul(tmp, psi)
	normFactor := s.NormFactor(psi, source, tmp, rA)
	floats.SubTo(rA, source, tmp)
	perf.Initial = s.gSumMag(rA) / normFactor
	perf.Final = perf.Initial
	if c.MinIter == 0 && perf.CheckConvergence(c.Tolerance, c.RelTol) {
		return
	}
	for {
		sol.smoother.Smooth(psi, source, c.NSweeps)
		s.Residual(rA, psi, source)
		perf.Final = s.gSumMag(rA) / normFactor
		perf.Iterations += c.NSweeps
		converged := perf.CheckConvergence(c.Tolerance, c.RelTol)
		if (perf.Iterations >= c.MaxIter || converged) && perf.Iterations >= c.MinIter {
			break
		}
	}
	return
}
