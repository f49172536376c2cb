package schemes

import (
	"fmt"
	"math"

	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/types"
)

// Interpolation evaluates cell values on the faces as
//
//	phi_f = w*phi_P + (1-w)*phi_N + correction
//
// with P the owner and N the neighbour. Boundary weights only matter on
// coupled patches; other patches use the patch field values.
type Interpolation interface {
	Name() string
	Weights(vf *fields.VolScalarField) *fields.SurfaceScalarField
	Corrected() bool
	Correction(vf *fields.VolScalarField) *fields.SurfaceScalarField
}

var interpolations *registry.Registry[Interpolation, Args]

func init() { interpolations = newInterpolationTable() }

func newInterpolationTable() *registry.Registry[Interpolation, Args] {
	r := registry.New[Interpolation, Args]("interpolation scheme").
		MustRegister("linear", newLinear).
		MustRegister("upwind", newUpwind).
		MustRegister("linearUpwind", newLinearUpwind)
	for _, name := range limiters.Keys() {
		r.MustRegister(name, newLimited(name))
	}
	return r
}

func Interpolations() *registry.Registry[Interpolation, Args] { return interpolations }

// NewInterpolation creates the scheme named by tokens[0] with the remaining
// tokens as its parameters
func NewInterpolation(args Args, tokens []string) (Interpolation, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty interpolation scheme")
	}
	return interpolations.Create(tokens[0], args.with(tokens[1:]))
}

// InterpolationFor looks up term in the interpolation schemes
func InterpolationFor(args Args, term string) (Interpolation, error) {
	tokens, err := args.schemes().Lookup(InterpolationSchemes, term)
	if err != nil {
		return nil, err
	}
	return NewInterpolation(args, tokens)
}

// Interpolate evaluates vf on the faces. Coupled patch values use the
// neighbour field from the last boundary evaluation of vf.
func Interpolate(s Interpolation, vf *fields.VolScalarField) *fields.SurfaceScalarField {
	var (
		m  = vf.Mesh
		w  = s.Weights(vf)
		sf = fields.NewSurfaceScalarField("interpolate("+vf.Name+")", m, vf.Dimensions)
	)
	for f := range sf.Internal {
		wf := w.Internal[f]
		sf.Internal[f] = wf*vf.Internal[m.Owner[f]] + (1-wf)*vf.Internal[m.Neighbour[f]]
	}
	for i, pf := range vf.Boundary {
		b := sf.Boundary[i]
		if len(b) == 0 {
			continue
		}
		if cpf, ok := pf.(fields.CoupledPatchField); ok {
			nbr := cpf.NeighbourField()
			for j, c := range m.Patches[i].FaceCells {
				wf := w.Boundary[i][j]
				b[j] = wf*vf.Internal[c] + (1-wf)*nbr[j]
			}
			continue
		}
		copy(b, pf.Values())
	}
	if s.Corrected() {
		if err := sf.Add(s.Correction(vf)); err != nil {
			panic(err)
		}
	}
	return sf
}

func weightsField(m *mesh.Mesh, fn func(face int) float64) *fields.SurfaceScalarField {
	return fields.NewSurfaceScalarFieldFrom("weights", m, types.DimLess, fn)
}

type linear struct{ m *mesh.Mesh }

func newLinear(args Args) (Interpolation, error) { return &linear{m: args.Mesh}, nil }

func (s *linear) Name() string    { return "linear" }
func (s *linear) Corrected() bool { return false }
func (s *linear) Weights(*fields.VolScalarField) *fields.SurfaceScalarField {
	return weightsField(s.m, func(f int) float64 { return s.m.Weights[f] })
}
func (s *linear) Correction(*fields.VolScalarField) *fields.SurfaceScalarField { return nil }

// pos0 is 1 for a non-negative flux, the upwind weight of the owner
func pos0(x float64) float64 {
	if x >= 0 {
		return 1
	}
	return 0
}

type upwind struct {
	m   *mesh.Mesh
	phi *fields.SurfaceScalarField
}

func newUpwind(args Args) (Interpolation, error) {
	phi, err := args.flux("upwind")
	if err != nil {
		return nil, err
	}
	return &upwind{m: args.Mesh, phi: phi}, nil
}

func (s *upwind) Name() string    { return "upwind" }
func (s *upwind) Corrected() bool { return false }
func (s *upwind) Weights(*fields.VolScalarField) *fields.SurfaceScalarField {
	return weightsField(s.m, func(f int) float64 { return pos0(s.phi.Face(f)) })
}
func (s *upwind) Correction(*fields.VolScalarField) *fields.SurfaceScalarField { return nil }

// linearUpwind is upwind with an explicit second order correction from the
// upwind cell gradient
type linearUpwind struct {
	upwind
	grad Grad
}

func newLinearUpwind(args Args) (Interpolation, error) {
	phi, err := args.flux("linearUpwind")
	if err != nil {
		return nil, err
	}
	s := &linearUpwind{upwind: upwind{m: args.Mesh, phi: phi}}
	// The first token names the gradient scheme entry, unless it names the flux
	var gradTerm string
	for _, tok := range args.Tokens {
		if _, isFlux := args.Mesh.Lookup(tok); !isFlux {
			gradTerm = tok
			break
		}
	}
	if s.grad, err = correctionGrad(args, gradTerm); err != nil {
		return nil, fmt.Errorf("linearUpwind: %w", err)
	}
	return s, nil
}

func (s *linearUpwind) Name() string    { return "linearUpwind" }
func (s *linearUpwind) Corrected() bool { return true }
func (s *linearUpwind) Correction(vf *fields.VolScalarField) *fields.SurfaceScalarField {
	var (
		m    = s.m
		grad = s.grad.Grad(vf)
	)
	corr := fields.NewSurfaceScalarField("linearUpwind::correction("+vf.Name+")", m, vf.Dimensions)
	for f := range corr.Internal {
		c := m.Owner[f]
		if s.phi.Internal[f] < 0 {
			c = m.Neighbour[f]
		}
		corr.Internal[f] = m.Cf[f].Sub(m.C[c]).Dot(grad.Internal[c])
	}
	for i, p := range m.Patches {
		if !p.Coupled() {
			continue
		}
		nbrGrad := grad.Boundary[i].NeighbourField()
		for j, c := range p.FaceCells {
			f := p.Start + j
			if s.phi.Boundary[i][j] >= 0 {
				corr.Boundary[i][j] = m.Cf[f].Sub(m.C[c]).Dot(grad.Internal[c])
			} else {
				corr.Boundary[i][j] = m.Cf[f].Sub(p.NeighbCellCentres[j]).Dot(nbrGrad[j])
			}
		}
	}
	return corr
}

// limited blends linear and upwind weights by a TVD limiter
type limited struct {
	upwind
	name    string
	limiter Limiter
}

func newLimited(name string) registry.Constructor[Interpolation, Args] {
	return func(args Args) (Interpolation, error) {
		phi, err := args.flux(name)
		if err != nil {
			return nil, err
		}
		lim, err := limiters.Create(name, args.Tokens)
		if err != nil {
			return nil, err
		}
		return &limited{upwind: upwind{m: args.Mesh, phi: phi}, name: name, limiter: lim}, nil
	}
}

func (s *limited) Name() string { return s.name }

func (s *limited) Weights(vf *fields.VolScalarField) *fields.SurfaceScalarField {
	var (
		m    = s.m
		grad = newGaussLinear(m).Grad(vf)
		w    = fields.NewSurfaceScalarField("weights", m, types.DimLess)
	)
	blend := func(f int, flux, phiP, phiN float64, gradP, gradN, d types.Vector) float64 {
		lim := s.limiter.Limit(tvdR(flux, phiP, phiN, gradP, gradN, d))
		return lim*m.Weights[f] + (1-lim)*pos0(flux)
	}
	for f := range w.Internal {
		own, nei := m.Owner[f], m.Neighbour[f]
		w.Internal[f] = blend(f, s.phi.Internal[f], vf.Internal[own], vf.Internal[nei],
			grad.Internal[own], grad.Internal[nei], m.C[nei].Sub(m.C[own]))
	}
	for i, p := range m.Patches {
		if !p.Coupled() {
			for j := range w.Boundary[i] {
				w.Boundary[i][j] = 1
			}
			continue
		}
		var (
			nbr     = vf.Boundary[i].(fields.CoupledPatchField).NeighbourField()
			nbrGrad = grad.Boundary[i].NeighbourField()
		)
		for j, c := range p.FaceCells {
			f := p.Start + j
			w.Boundary[i][j] = blend(f, s.phi.Boundary[i][j], vf.Internal[c], nbr[j],
				grad.Internal[c], nbrGrad[j], p.NeighbCellCentres[j].Sub(m.C[c]))
		}
	}
	return w
}

// tvdR is the ratio of successive gradients seen from the upwind cell
func tvdR(flux, phiP, phiN float64, gradP, gradN, d types.Vector) float64 {
	var (
		gradf  = phiN - phiP
		gradcf float64
	)
	if flux > 0 {
		gradcf = d.Dot(gradP)
	} else {
		gradcf = d.Dot(gradN)
	}
	if math.Abs(gradcf) >= 1000*math.Abs(gradf) {
		return 2*1000*sign(gradcf)*sign(gradf) - 1
	}
	return 2*(gradcf/gradf) - 1
}
