package schemes

import (
	"fmt"

	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/types"
)

// Ddt discretises the time derivative of rho*psi. Implicit returns the
// volume integrated diagonal and source of the matrix; Explicit returns the
// rate in each cell. rho may be nil for unit density.
type Ddt interface {
	Name() string
	Implicit(rho, vf *fields.VolScalarField) (diag, source []float64)
	Explicit(rho, vf *fields.VolScalarField) []float64
}

var ddts = registry.New[Ddt, Args]("ddt scheme").
	MustRegister("steadyState", newSteadyState).
	MustRegister("Euler", newEuler).
	MustRegister("backward", newBackward)

func Ddts() *registry.Registry[Ddt, Args] { return ddts }

// DdtFor looks up term in the ddt schemes
func DdtFor(args Args, term string) (Ddt, error) {
	tokens, err := args.schemes().Lookup(DdtSchemes, term)
	if err != nil {
		return nil, err
	}
	return ddts.Create(tokens[0], args.with(tokens[1:]))
}

// density returns rho at the given time level, 0 being current
func density(rho *fields.VolScalarField, n, nCells int) []float64 {
	if rho == nil {
		return uniformOnes(nCells)
	}
	if n == 0 {
		return rho.Internal
	}
	return rho.OldTime(n)
}

func uniformOnes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

type steadyState struct{}

func newSteadyState(Args) (Ddt, error) { return steadyState{}, nil }

func (steadyState) Name() string { return "steadyState" }
func (steadyState) Implicit(_, vf *fields.VolScalarField) (diag, source []float64) {
	return make([]float64, vf.Mesh.NCells), make([]float64, vf.Mesh.NCells)
}
func (steadyState) Explicit(_, vf *fields.VolScalarField) []float64 {
	return make([]float64, vf.Mesh.NCells)
}

type euler struct{ t Time }

func newEuler(args Args) (Ddt, error) {
	if args.Time == nil {
		return nil, fmt.Errorf("Euler: no run time")
	}
	return &euler{t: args.Time}, nil
}

func (s *euler) Name() string { return "Euler" }

func (s *euler) Implicit(rho, vf *fields.VolScalarField) (diag, source []float64) {
	var (
		m       = vf.Mesh
		rDeltaT = 1 / s.t.DeltaT()
		rho0    = density(rho, 1, m.NCells)
		rho1    = density(rho, 0, m.NCells)
		psi0    = vf.OldTime(1)
	)
	diag, source = make([]float64, m.NCells), make([]float64, m.NCells)
	for c := range diag {
		diag[c] = rDeltaT * rho1[c] * m.V[c]
		source[c] = rDeltaT * rho0[c] * psi0[c] * m.V[c]
	}
	return
}

func (s *euler) Explicit(rho, vf *fields.VolScalarField) []float64 {
	var (
		m       = vf.Mesh
		rDeltaT = 1 / s.t.DeltaT()
		rho0    = density(rho, 1, m.NCells)
		rho1    = density(rho, 0, m.NCells)
		psi0    = vf.OldTime(1)
		out     = make([]float64, m.NCells)
	)
	for c := range out {
		out[c] = rDeltaT * (rho1[c]*vf.Internal[c] - rho0[c]*psi0[c])
	}
	return out
}

// backward is the second order three level scheme
type backward struct{ t Time }

func newBackward(args Args) (Ddt, error) {
	if args.Time == nil {
		return nil, fmt.Errorf("backward: no run time")
	}
	return &backward{t: args.Time}, nil
}

func (s *backward) Name() string { return "backward" }

func (s *backward) coeffs(vf *fields.VolScalarField) (rDeltaT, coefft, coefft0, coefft00 float64) {
	var (
		dt  = s.t.DeltaT()
		dt0 = s.t.DeltaT0()
	)
	// Without a second old level the previous step is taken as infinite,
	// which reduces the scheme to Euler
	if vf.NOldTimes() < 2 {
		dt0 = types.Great
	}
	rDeltaT = 1 / dt
	coefft = 1 + dt/(dt+dt0)
	coefft00 = dt * dt / (dt0 * (dt + dt0))
	coefft0 = coefft + coefft00
	return
}

func (s *backward) Implicit(rho, vf *fields.VolScalarField) (diag, source []float64) {
	var (
		m                                  = vf.Mesh
		rDeltaT, coefft, coefft0, coefft00 = s.coeffs(vf)
		rho1, rho0, rho00                  = density(rho, 0, m.NCells), density(rho, 1, m.NCells), density(rho, 2, m.NCells)
		psi0, psi00                        = vf.OldTime(1), vf.OldTime(2)
	)
	diag, source = make([]float64, m.NCells), make([]float64, m.NCells)
	for c := range diag {
		diag[c] = coefft * rDeltaT * rho1[c] * m.V[c]
		source[c] = rDeltaT * m.V[c] * (coefft0*rho0[c]*psi0[c] - coefft00*rho00[c]*psi00[c])
	}
	return
}

func (s *backward) Explicit(rho, vf *fields.VolScalarField) []float64 {
	var (
		m                                  = vf.Mesh
		rDeltaT, coefft, coefft0, coefft00 = s.coeffs(vf)
		rho1, rho0, rho00                  = density(rho, 0, m.NCells), density(rho, 1, m.NCells), density(rho, 2, m.NCells)
		psi0, psi00                        = vf.OldTime(1), vf.OldTime(2)
		out                                = make([]float64, m.NCells)
	)
	for c := range out {
		out[c] = rDeltaT * (coefft*rho1[c]*vf.Internal[c] - coefft0*rho0[c]*psi0[c] + coefft00*rho00[c]*psi00[c])
	}
	return out
}
