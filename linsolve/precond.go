package linsolve

import (
	"github.com/notargets/gofvm/registry"
	"gonum.org/v1/gonum/floats"
)

// Preconditioner applies an approximate inverse: wA = M^-1 rA. Coupled
// interfaces are ignored, each rank preconditions its own block.
type Preconditioner interface {
	Precondition(wA, rA []float64)
}

var (
	symPreconditioners  = newPreconditionerTable("symmetric matrix preconditioner", "DIC", newDIC)
	asymPreconditioners = newPreconditionerTable("asymmetric matrix preconditioner", "DILU", newDILU)
)

func newPreconditionerTable(kind, incomplete string,
	ctor registry.Constructor[Preconditioner, *System]) *registry.Registry[Preconditioner, *System] {
	return registry.New[Preconditioner, *System](kind).
		MustRegister("none", newNoPreconditioner).
		MustRegister("diagonal", newDiagonalPreconditioner).
		MustRegister(incomplete, ctor)
}

func SymmetricPreconditioners() *registry.Registry[Preconditioner, *System] {
	return symPreconditioners
}
func AsymmetricPreconditioners() *registry.Registry[Preconditioner, *System] {
	return asymPreconditioners
}

func NewPreconditioner(name string, s *System) (Preconditioner, error) {
	if s.Matrix.Symmetric() {
		return symPreconditioners.Create(name, s)
	}
	return asymPreconditioners.Create(name, s)
}

type noPreconditioner struct{}

func newNoPreconditioner(*System) (Preconditioner, error) { return noPreconditioner{}, nil }

func (noPreconditioner) Precondition(wA, rA []float64) { copy(wA, rA) }

type diagonalPreconditioner struct {
	rD []float64
}

func newDiagonalPreconditioner(s *System) (Preconditioner, error) {
	rD := make([]float64, len(s.Matrix.DiagRO()))
	for c, d := range s.Matrix.DiagRO() {
		rD[c] = 1. / d
	}
	return &diagonalPreconditioner{rD: rD}, nil
}

func (p *diagonalPreconditioner) Precondition(wA, rA []float64) { floats.MulTo(wA, p.rD, rA) }

// DIC is the diagonal incomplete Cholesky preconditioner for symmetric
// matrices
type DIC struct {
	s  *System
	rD []float64
}

func newDIC(s *System) (Preconditioner, error) {
	p := &DIC{s: s, rD: make([]float64, s.Matrix.Addr.Size)}
	copy(p.rD, s.Matrix.DiagRO())
	var (
		l, u  = s.Matrix.Addr.LowerAddr, s.Matrix.Addr.UpperAddr
		upper = s.Matrix.UpperRO()
	)
	for f := range upper {
		p.rD[u[f]] -= upper[f] * upper[f] / p.rD[l[f]]
	}
	for c := range p.rD {
		p.rD[c] = 1. / p.rD[c]
	}
	return p, nil
}

func (p *DIC) Precondition(wA, rA []float64) {
	var (
		l, u  = p.s.Matrix.Addr.LowerAddr, p.s.Matrix.Addr.UpperAddr
		upper = p.s.Matrix.UpperRO()
		rD    = p.rD
	)
	floats.MulTo(wA, rD, rA)
	for f := range upper {
		wA[u[f]] -= rD[u[f]] * upper[f] * wA[l[f]]
	}
	for f := len(upper) - 1; f >= 0; f-- {
		wA[l[f]] -= rD[l[f]] * upper[f] * wA[u[f]]
	}
}

// DILU is the diagonal incomplete LU preconditioner for asymmetric matrices
type DILU struct {
	s  *System
	rD []float64
}

func newDILU(s *System) (Preconditioner, error) {
	p := &DILU{s: s, rD: make([]float64, s.Matrix.Addr.Size)}
	copy(p.rD, s.Matrix.DiagRO())
	var (
		l, u  = s.Matrix.Addr.LowerAddr, s.Matrix.Addr.UpperAddr
		upper = s.Matrix.UpperRO()
		lower = s.Matrix.LowerRO()
	)
	for f := range upper {
		p.rD[u[f]] -= upper[f] * lower[f] / p.rD[l[f]]
	}
	for c := range p.rD {
		p.rD[c] = 1. / p.rD[c]
	}
	return p, nil
}

func (p *DILU) Precondition(wA, rA []float64) {
	var (
		addr   = p.s.Matrix.Addr
		l, u   = addr.LowerAddr, addr.UpperAddr
		upper  = p.s.Matrix.UpperRO()
		lower  = p.s.Matrix.LowerRO()
		losort = addr.Losort()
		rD     = p.rD
	)
	floats.MulTo(wA, rD, rA)
	for _, f := range losort {
		wA[u[f]] -= rD[u[f]] * lower[f] * wA[l[f]]
	}
	for f := len(upper) - 1; f >= 0; f-- {
		wA[l[f]] -= rD[l[f]] * upper[f] * wA[u[f]]
	}
}
