package schemes

import (
	"fmt"
	"math"

	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/types"
)

// SnGrad is the face normal gradient, split into an implicit two-point part
// DeltaCoeffs*(phi_N - phi_P) and an explicit non-orthogonal correction
type SnGrad interface {
	Name() string
	// DeltaCoeffs are indexed by mesh face
	DeltaCoeffs() []float64
	Corrected() bool
	Correction(vf *fields.VolScalarField) *fields.SurfaceScalarField
}

var snGrads = registry.New[SnGrad, Args]("snGrad scheme").
	MustRegister("corrected", newCorrected).
	MustRegister("uncorrected", newUncorrected).
	MustRegister("orthogonal", newOrthogonal).
	MustRegister("limited", newLimitedSnGrad)

func SnGrads() *registry.Registry[SnGrad, Args] { return snGrads }

func NewSnGrad(args Args, tokens []string) (SnGrad, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty snGrad scheme")
	}
	return snGrads.Create(tokens[0], args.with(tokens[1:]))
}

// SnGradFor looks up term in the snGrad schemes
func SnGradFor(args Args, term string) (SnGrad, error) {
	tokens, err := args.schemes().Lookup(SnGradSchemes, term)
	if err != nil {
		return nil, err
	}
	return NewSnGrad(args, tokens)
}

// SnGradOf evaluates the face normal gradient of vf. Non-coupled patches
// take the patch field gradient.
func SnGradOf(s SnGrad, vf *fields.VolScalarField) *fields.SurfaceScalarField {
	var (
		m  = vf.Mesh
		dc = s.DeltaCoeffs()
		sf = fields.NewSurfaceScalarField("snGrad("+vf.Name+")", m, vf.Dimensions.Div(types.DimLength))
	)
	for f := range sf.Internal {
		sf.Internal[f] = dc[f] * (vf.Internal[m.Neighbour[f]] - vf.Internal[m.Owner[f]])
	}
	for i, pf := range vf.Boundary {
		if len(sf.Boundary[i]) == 0 {
			continue
		}
		p := m.Patches[i]
		if cpf, ok := pf.(fields.CoupledPatchField); ok {
			nbr := cpf.NeighbourField()
			for j, c := range p.FaceCells {
				sf.Boundary[i][j] = dc[p.Start+j] * (nbr[j] - vf.Internal[c])
			}
			continue
		}
		copy(sf.Boundary[i], pf.SnGrad(vf.Internal))
	}
	if s.Corrected() {
		if err := sf.Add(s.Correction(vf)); err != nil {
			panic(err)
		}
	}
	return sf
}

type uncorrected struct{ m *mesh.Mesh }

func newUncorrected(args Args) (SnGrad, error) { return &uncorrected{m: args.Mesh}, nil }

func (s *uncorrected) Name() string                                                 { return "uncorrected" }
func (s *uncorrected) DeltaCoeffs() []float64                                       { return s.m.NonOrthDeltaCoeffs }
func (s *uncorrected) Corrected() bool                                              { return false }
func (s *uncorrected) Correction(*fields.VolScalarField) *fields.SurfaceScalarField { return nil }

// orthogonal uses the plain inverse centre distance, exact only on
// orthogonal meshes
type orthogonal struct{ uncorrected }

func newOrthogonal(args Args) (SnGrad, error) { return &orthogonal{uncorrected{m: args.Mesh}}, nil }

func (s *orthogonal) Name() string           { return "orthogonal" }
func (s *orthogonal) DeltaCoeffs() []float64 { return s.m.DeltaCoeffs }

// corrected adds the non-orthogonal part of the face gradient explicitly
type corrected struct {
	m    *mesh.Mesh
	grad Grad
	// non-orthogonal mesh, computed on construction
	nonOrth bool
}

func newCorrected(args Args) (SnGrad, error) {
	s := &corrected{m: args.Mesh}
	var (
		maxCorr float64
		err     error
	)
	if s.grad, err = correctionGrad(args, ""); err != nil {
		return nil, fmt.Errorf("corrected: %w", err)
	}
	for _, k := range args.Mesh.NonOrthCorrection {
		maxCorr = math.Max(maxCorr, k.Mag())
	}
	s.nonOrth = args.Mesh.Comm.AllReduceMax(maxCorr) > 1e-12
	return s, nil
}

func (s *corrected) Name() string           { return "corrected" }
func (s *corrected) DeltaCoeffs() []float64 { return s.m.NonOrthDeltaCoeffs }
func (s *corrected) Corrected() bool        { return s.nonOrth }

// Correction is the correction vector dotted with the linearly interpolated
// cell gradient. Only coupled patches are corrected.
func (s *corrected) Correction(vf *fields.VolScalarField) *fields.SurfaceScalarField {
	var (
		m    = s.m
		grad = s.grad.Grad(vf)
	)
	corr := fields.NewSurfaceScalarField("snGradCorr("+vf.Name+")", m, vf.Dimensions.Div(types.DimLength))
	for f := range corr.Internal {
		w := m.Weights[f]
		gf := grad.Internal[m.Owner[f]].Scale(w).Add(grad.Internal[m.Neighbour[f]].Scale(1 - w))
		corr.Internal[f] = m.NonOrthCorrection[f].Dot(gf)
	}
	for i, p := range m.Patches {
		if !p.Coupled() {
			continue
		}
		nbrGrad := grad.Boundary[i].NeighbourField()
		for j, c := range p.FaceCells {
			f := p.Start + j
			w := m.Weights[f]
			gf := grad.Internal[c].Scale(w).Add(nbrGrad[j].Scale(1 - w))
			corr.Boundary[i][j] = m.NonOrthCorrection[f].Dot(gf)
		}
	}
	return corr
}

// limited bounds the correction to psi/(1-psi) times the uncorrected
// gradient. psi 0 is uncorrected and psi 1 is corrected. Both "limited 0.5"
// and "limited corrected 0.5" are accepted.
type limitedSnGrad struct {
	*corrected
	psi float64
}

func newLimitedSnGrad(args Args) (SnGrad, error) {
	tokens := args.Tokens
	if len(tokens) > 0 && tokens[0] == "corrected" {
		tokens = tokens[1:]
	}
	psi, err := param("limited", tokens, 0)
	if err != nil {
		return nil, err
	}
	if psi < 0 || psi > 1 {
		return nil, fmt.Errorf("limited: coefficient %g outside [0,1]", psi)
	}
	c, err := newCorrected(args)
	if err != nil {
		return nil, err
	}
	return &limitedSnGrad{corrected: c.(*corrected), psi: psi}, nil
}

func (s *limitedSnGrad) Name() string    { return "limited" }
func (s *limitedSnGrad) Corrected() bool { return s.psi > 0 && s.corrected.Corrected() }

func (s *limitedSnGrad) Correction(vf *fields.VolScalarField) *fields.SurfaceScalarField {
	var (
		m    = s.m
		corr = s.corrected.Correction(vf)
		dc   = m.NonOrthDeltaCoeffs
	)
	if s.psi == 1 {
		return corr
	}
	limit := func(c, dphi float64) float64 {
		lim := math.Min(s.psi*math.Abs(dphi)/((1-s.psi)*math.Abs(c)+1e-20), 1)
		return lim * c
	}
	for f := range corr.Internal {
		corr.Internal[f] = limit(corr.Internal[f], dc[f]*(vf.Internal[m.Neighbour[f]]-vf.Internal[m.Owner[f]]))
	}
	for i, p := range m.Patches {
		if !p.Coupled() {
			continue
		}
		nbr := vf.Boundary[i].(fields.CoupledPatchField).NeighbourField()
		for j, c := range p.FaceCells {
			corr.Boundary[i][j] = limit(corr.Boundary[i][j], dc[p.Start+j]*(nbr[j]-vf.Internal[c]))
		}
	}
	return corr
}
