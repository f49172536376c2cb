package linsolve

import (
	"github.com/notargets/gofvm/registry"
)

// Smoother reduces the high frequency error of psi with nSweeps sweeps
type Smoother interface {
	Smooth(psi, source []float64, nSweeps int)
}

var (
	symSmoothers  = newSmootherTable("symmetric matrix smoother", "DIC", newDIC)
	asymSmoothers = newSmootherTable("asymmetric matrix smoother", "DILU", newDILU)
)

func newSmootherTable(kind, incomplete string,
	precond registry.Constructor[Preconditioner, *System]) *registry.Registry[Smoother, *System] {
	return registry.New[Smoother, *System](kind).
		MustRegister("GaussSeidel", newGaussSeidel).
		MustRegister("symGaussSeidel", newSymGaussSeidel).
		MustRegister("Jacobi", newJacobi).
		MustRegister(incomplete, func(s *System) (Smoother, error) {
			p, err := precond(s)
			if err != nil {
				return nil, err
			}
			return newPreconditionerSmoother(s, p), nil
		})
}

func SymmetricSmoothers() *registry.Registry[Smoother, *System]  { return symSmoothers }
func AsymmetricSmoothers() *registry.Registry[Smoother, *System] { return asymSmoothers }

func NewSmoother(name string, s *System) (Smoother, error) {
	if s.Matrix.Symmetric() {
		return symSmoothers.Create(name, s)
	}
	return asymSmoothers.Create(name, s)
}

// negatedCoeffs moves the coupled contributions to the right hand side
func negatedCoeffs(coeffs [][]float64) (neg [][]float64) {
	neg = make([][]float64, len(coeffs))
	for p, c := range coeffs {
		if c == nil {
			continue
		}
		neg[p] = make([]float64, len(c))
		for i, v := range c {
			neg[p][i] = -v
		}
	}
	return
}

// gaussSeidel sweeps the rows in order, forward and optionally backward.
// Coupled values are frozen at the start of each sweep.
type gaussSeidel struct {
	s          *System
	symmetric  bool
	mBouCoeffs [][]float64
	bPrime     []float64
}

func newGaussSeidel(s *System) (Smoother, error) {
	return &gaussSeidel{
		s:          s,
		mBouCoeffs: negatedCoeffs(s.InterfaceBouCoeffs),
		bPrime:     make([]float64, s.Matrix.Addr.Size),
	}, nil
}

func newSymGaussSeidel(s *System) (Smoother, error) {
	sm, _ := newGaussSeidel(s)
	sm.(*gaussSeidel).symmetric = true
	return sm, nil
}

func (g *gaussSeidel) Smooth(psi, source []float64, nSweeps int) {
	var (
		n = g.s.Matrix.Addr.Size
	)
	for sweep := 0; sweep < nSweeps; sweep++ {
		copy(g.bPrime, source)
		g.s.Interfaces.InitUpdate(psi)
		g.s.Interfaces.Update(g.bPrime, g.mBouCoeffs)
		for c := 0; c < n; c++ {
			g.relaxRow(psi, c)
		}
		if g.symmetric {
			for c := n - 1; c >= 0; c-- {
				g.relaxRow(psi, c)
			}
		}
	}
}

// relaxRow solves row c for psi[c] using the current neighbour values
func (g *gaussSeidel) relaxRow(psi []float64, c int) {
	var (
		m           = g.s.Matrix
		addr        = m.Addr
		ownerStart  = addr.OwnerStart()
		losort      = addr.Losort()
		losortStart = addr.LosortStart()
		upper       = m.UpperRO()
		lower       = m.LowerRO()
		psii        = g.bPrime[c]
	)
	for f := ownerStart[c]; f < ownerStart[c+1]; f++ {
		psii -= upper[f] * psi[addr.UpperAddr[f]]
	}
	for i := losortStart[c]; i < losortStart[c+1]; i++ {
		f := losort[i]
		psii -= lower[f] * psi[addr.LowerAddr[f]]
	}
	psi[c] = psii / m.DiagRO()[c]
}

type jacobi struct {
	s          *System
	mBouCoeffs [][]float64
	bPrime     []float64
}

func newJacobi(s *System) (Smoother, error) {
	return &jacobi{
		s:          s,
		mBouCoeffs: negatedCoeffs(s.InterfaceBouCoeffs),
		bPrime:     make([]float64, s.Matrix.Addr.Size),
	}, nil
}

func (j *jacobi) Smooth(psi, source []float64, nSweeps int) {
	var (
		m    = j.s.Matrix
		diag = m.DiagRO()
	)
	for sweep := 0; sweep < nSweeps; sweep++ {
		copy(j.bPrime, source)
		j.s.Interfaces.InitUpdate(psi)
		j.s.Interfaces.Update(j.bPrime, j.mBouCoeffs)
		H := m.H(psi)
		for c := range psi {
			psi[c] = (j.bPrime[c] + H[c]) / diag[c]
		}
	}
}

// preconditionerSmoother corrects psi by the preconditioned residual
type preconditionerSmoother struct {
	s      *System
	p      Preconditioner
	rA, wA []float64
}

func newPreconditionerSmoother(s *System, p Preconditioner) *preconditionerSmoother {
	return &preconditionerSmoother{
		s:  s,
		p:  p,
		rA: make([]float64, s.Matrix.Addr.Size),
		wA: make([]float64, s.Matrix.Addr.Size),
	}
}

func (ps *preconditionerSmoother) Smooth(psi, source []float64, nSweeps int) {
	for sweep := 0; sweep < nSweeps; sweep++ {
		ps.s.Residual(ps.rA, psi, source)
		ps.p.Precondition(ps.wA, ps.rA)
		for c := range psi {
			psi[c] += ps.wA[c]
		}
	}
}
