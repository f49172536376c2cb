package model_problems

import (
	"fmt"

	"github.com/notargets/gofvm/InputParameters"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/fvm"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/types"
)

// Laplacian is diffusion of T with a uniform source,
//
//	ddt(T) - laplacian(DT,T) == source
//
// steady when the ddt scheme is steadyState
type Laplacian struct {
	coeffs struct {
		DT     float64 `dict:"DT"`
		Source float64 `dict:"source"`
	}
	env *Env
	T   *fields.VolScalarField
	S   *fields.VolScalarField
}

func newLaplacian(cp *InputParameters.CaseParameters) (Problem, error) {
	lp := &Laplacian{}
	if err := cp.Models.Decode(&lp.coeffs); err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}
	return lp, requirePositive("DT", lp.coeffs.DT)
}

func (lp *Laplacian) Setup(env *Env) (err error) {
	lp.env = env
	if lp.T, err = env.Case.ScalarField("T", env.Mesh); err != nil {
		return err
	}
	lp.T.Register()
	lp.S = uniformField("S", env.Mesh, lp.T.Dimensions.Div(types.DimTime), lp.coeffs.Source)
	return nil
}

func (lp *Laplacian) Step() error {
	var (
		env = lp.env
		DT  = schemes.UniformGamma("DT", types.DimViscosity, lp.coeffs.DT)
	)
	for corr := 1; corr <= env.NCorrectors(); corr++ {
		M, err := fvm.Eqn(fvm.Ddt(env.Args, lp.T)).
			Minus(fvm.Laplacian(env.Args, DT, lp.T)).
			Equals(lp.S).
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

func (lp *Laplacian) Fields() []*fields.VolScalarField { return []*fields.VolScalarField{lp.T} }
