package model_problems

import (
	"fmt"

	"github.com/notargets/gofvm/InputParameters"
	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/fvc"
	"github.com/notargets/gofvm/fvm"
	"github.com/notargets/gofvm/models"
	"github.com/notargets/gofvm/schemes"
)

// ScalarTransport carries T with the fixed velocity U,
//
//	ddt(T) + div(phi,T) - laplacian(DT,T) == 0
//
// where phi is the face flux of U and DT comes from the viscosity model
// evaluated at the strain rate of U.
type ScalarTransport struct {
	coeffs struct {
		Viscosity dict.Dict `dict:"viscosity"`
	}
	visc models.Viscosity

	env *Env
	T   *fields.VolScalarField
	U   *fields.VolVectorField
	phi *fields.SurfaceScalarField
	DT  *fields.VolScalarField
}

func newScalarTransport(cp *InputParameters.CaseParameters) (Problem, error) {
	st := &ScalarTransport{}
	if err := cp.Models.Decode(&st.coeffs); err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}
	if st.coeffs.Viscosity == nil {
		return nil, fmt.Errorf("models: no viscosity model for the diffusivity")
	}
	var err error
	if st.visc, err = models.NewViscosity(st.coeffs.Viscosity); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *ScalarTransport) Setup(env *Env) (err error) {
	st.env = env
	if st.T, err = env.Case.ScalarField("T", env.Mesh); err != nil {
		return err
	}
	if st.U, err = env.Case.VectorField("U", env.Mesh); err != nil {
		return err
	}
	st.T.Register()
	st.U.Register()
	st.U.CorrectBoundaryConditions()
	st.phi = fvc.Flux(st.U)
	if st.DT, err = models.ViscosityField("DT", st.visc, env.Args, st.U); err != nil {
		return err
	}
	st.DT.CorrectBoundaryConditions()
	return nil
}

func (st *ScalarTransport) Step() error {
	env := st.env
	for corr := 1; corr <= env.NCorrectors(); corr++ {
		M, err := fvm.Eqn(fvm.Ddt(env.Args, st.T)).
			Plus(fvm.Div(env.Args, st.phi, st.T)).
			Minus(fvm.Laplacian(env.Args, schemes.VolGamma(st.DT), st.T)).
			Matrix()
		if err != nil {
			return err
		}
		if err = M.RelaxDict(env.RelaxationFactors()); err != nil {
			return err
		}
		if _, err = M.SolveDict(env.Solvers(), corr == env.NCorrectors()); err != nil {
			return err
		}
	}
	return nil
}

func (st *ScalarTransport) Fields() []*fields.VolScalarField { return []*fields.VolScalarField{st.T} }
