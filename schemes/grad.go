package schemes

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/types"
)

// Grad computes the cell gradient of a scalar field. The result has
// calculated patches holding the face gradient, and processor patches
// exchanged with the neighbouring ranks.
type Grad interface {
	Name() string
	Grad(vf *fields.VolScalarField) *fields.VolVectorField
}

// The gradient table is built on first use: Gauss gradients interpolate,
// and linearUpwind interpolation takes a gradient.
var (
	gradsOnce sync.Once
	grads     *registry.Registry[Grad, Args]
)

func Grads() *registry.Registry[Grad, Args] {
	gradsOnce.Do(func() {
		grads = registry.New[Grad, Args]("gradient scheme").
			MustRegister("Gauss", newGaussGrad).
			MustRegister("leastSquares", newLeastSquares)
	})
	return grads
}

// GradFor looks up term in the gradient schemes
func GradFor(args Args, term string) (Grad, error) {
	tokens, err := args.schemes().Lookup(GradSchemes, term)
	if err != nil {
		return nil, err
	}
	return Grads().Create(tokens[0], args.with(tokens[1:]))
}

// correctionGrad is the gradient scheme of an explicit correction. term is
// the gradSchemes key, grad(<field>) when empty, or the default when the
// field is not known either. Without any gradSchemes entry the correction
// uses Gauss linear.
func correctionGrad(args Args, term string) (Grad, error) {
	switch {
	case term != "":
	case args.Field != "":
		term = "grad(" + args.Field + ")"
	default:
		term = "default"
	}
	g, err := GradFor(args, term)
	if errors.Is(err, ErrNoEntry) {
		return newGaussLinear(args.Mesh), nil
	}
	return g, err
}

// gaussGrad is the surface integral of the face values over the cell volume
type gaussGrad struct {
	m      *mesh.Mesh
	interp Interpolation
}

func newGaussGrad(args Args) (Grad, error) {
	tokens := args.Tokens
	if len(tokens) == 0 {
		tokens = []string{"linear"}
	}
	interp, err := NewInterpolation(args, tokens)
	if err != nil {
		return nil, fmt.Errorf("Gauss gradient: %w", err)
	}
	return &gaussGrad{m: args.Mesh, interp: interp}, nil
}

func newGaussLinear(m *mesh.Mesh) Grad {
	return &gaussGrad{m: m, interp: &linear{m: m}}
}

func (g *gaussGrad) Name() string { return "Gauss " + g.interp.Name() }

func (g *gaussGrad) Grad(vf *fields.VolScalarField) *fields.VolVectorField {
	return GaussGrad(Interpolate(g.interp, vf), vf)
}

// GaussGrad integrates the face values ssf of vf over each cell
func GaussGrad(ssf *fields.SurfaceScalarField, vf *fields.VolScalarField) *fields.VolVectorField {
	var (
		m    = vf.Mesh
		grad = make([]types.Vector, m.NCells)
	)
	for f, nei := range m.Neighbour {
		own := m.Owner[f]
		s := m.Sf[f].Scale(ssf.Internal[f])
		grad[own] = grad[own].Add(s)
		grad[nei] = grad[nei].Sub(s)
	}
	for i, p := range m.Patches {
		for j, v := range ssf.Boundary[i] {
			c := p.FaceCells[j]
			grad[c] = grad[c].Add(m.Sf[p.Start+j].Scale(v))
		}
	}
	for c := range grad {
		grad[c] = grad[c].Scale(1 / m.V[c])
	}
	return gradField(vf, grad)
}

// gradField wraps the cell gradients, zeroing unsolved directions, and
// corrects the normal component of the boundary gradient to the patch
// normal gradient
func gradField(vf *fields.VolScalarField, grad []types.Vector) *fields.VolVectorField {
	m := vf.Mesh
	for c := range grad {
		for d, solved := range m.SolutionD {
			if !solved {
				grad[c][d] = 0
			}
		}
	}
	gf := fields.NewCalculatedVolVectorField("grad("+vf.Name+")", m, vf.Dimensions.Div(types.DimLength), grad)
	for i, p := range m.Patches {
		if p.Coupled() || p.FvSize() == 0 {
			continue
		}
		var (
			vals = gf.Boundary[i].Values
			sn   = vf.Boundary[i].SnGrad(vf.Internal)
		)
		for j := range vals {
			n := m.Sf[p.Start+j].Unit()
			vals[j] = vals[j].Add(n.Scale(sn[j] - n.Dot(vals[j])))
		}
	}
	gf.CorrectBoundaryConditions()
	return gf
}

// leastSquares fits the gradient to the differences to the face neighbours,
// weighted by inverse distance squared
type leastSquares struct {
	m *mesh.Mesh
}

func newLeastSquares(args Args) (Grad, error) { return &leastSquares{m: args.Mesh}, nil }

func (g *leastSquares) Name() string { return "leastSquares" }

func (g *leastSquares) Grad(vf *fields.VolScalarField) *fields.VolVectorField {
	var (
		m   = vf.Mesh
		dd  = make([][9]float64, m.NCells)
		rhs = make([]types.Vector, m.NCells)
	)
	add := func(c int, d types.Vector, dphi float64) {
		w2 := 1 / d.MagSqr()
		o := d.Outer(d)
		for k := range o {
			dd[c][k] += w2 * o[k]
		}
		rhs[c] = rhs[c].Add(d.Scale(w2 * dphi))
	}
	for f, nei := range m.Neighbour {
		own := m.Owner[f]
		d := m.C[nei].Sub(m.C[own])
		dphi := vf.Internal[nei] - vf.Internal[own]
		add(own, d, dphi)
		add(nei, d, dphi)
	}
	for i, p := range m.Patches {
		if p.FvSize() == 0 {
			continue
		}
		pf := vf.Boundary[i]
		if cpf, ok := pf.(fields.CoupledPatchField); ok {
			nbr := cpf.NeighbourField()
			for j, c := range p.FaceCells {
				add(c, p.NeighbCellCentres[j].Sub(m.C[c]), nbr[j]-vf.Internal[c])
			}
			continue
		}
		vals := pf.Values()
		for j, c := range p.FaceCells {
			add(c, m.Cf[p.Start+j].Sub(m.C[c]), vals[j]-vf.Internal[c])
		}
	}
	grad := make([]types.Vector, m.NCells)
	for c := range grad {
		A := mat.NewDense(3, 3, dd[c][:])
		for d, solved := range m.SolutionD {
			if !solved {
				A.Set(d, d, 1)
			}
		}
		var (
			inv mat.Dense
			x   mat.VecDense
		)
		if err := inv.Inverse(A); err != nil {
			panic(fmt.Errorf("leastSquares gradient: cell %d: %w", c, err))
		}
		x.MulVec(&inv, mat.NewVecDense(3, rhs[c][:]))
		grad[c] = types.Vector{x.AtVec(0), x.AtVec(1), x.AtVec(2)}
	}
	return gradField(vf, grad)
}
