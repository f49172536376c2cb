package model_problems

import (
	"fmt"
	"math"

	"github.com/notargets/gofvm/InputParameters"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/fvc"
	"github.com/notargets/gofvm/fvm"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/models"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/types"
)

// alphaMin bounds the phase fractions the exchange rates are divided by
const alphaMin = 1e-6

// PhaseExchange is a dispersed phase d carried through a continuous phase c
// with a fixed velocity Uc. Drag relaxes the dispersed velocity towards Uc
// and heat transfer couples the temperatures:
//
//	ddt(Ud) + Sp(K/(alpha rho_d), Ud) == K/(alpha rho_d) Uc
//	ddt(Td) + div(phid,Td) + Sp(Hd, Td) == Hd Tc
//	ddt(Tc) + div(phic,Tc) - laplacian(DTc,Tc) + Sp(Hc, Tc) == Hc Td
//
// with Hd = H/(alpha rho_d Cp_d), Hc = H/((1-alpha) rho_c Cp_c) and DTc the
// thermal diffusivity of c. K and H come from the first interaction of the
// phase system.
type PhaseExchange struct {
	pair *models.PhasePair

	env          *Env
	alpha        *fields.VolScalarField
	Td, Tc       *fields.VolScalarField
	Ud, Uc       *fields.VolVectorField
	UdComponents [3]*fields.VolScalarField
	phid, phic   *fields.SurfaceScalarField
	DTc          schemes.Gamma
}

func newPhaseExchange(cp *InputParameters.CaseParameters) (Problem, error) {
	ps, err := models.NewPhaseSystem(cp.Models)
	if err != nil {
		return nil, err
	}
	if len(ps.Pairs) == 0 {
		return nil, fmt.Errorf("models: no phaseInteraction between the phases")
	}
	return &PhaseExchange{pair: ps.Pairs[0]}, nil
}

func (pe *PhaseExchange) Setup(env *Env) (err error) {
	var (
		m    = env.Mesh
		d, c = pe.pair.Dispersed, pe.pair.Continuous
	)
	pe.env = env
	if pe.alpha, err = env.Case.ScalarField("alpha."+d.Name, m); err != nil {
		return err
	}
	if pe.Td, err = env.Case.ScalarField("T."+d.Name, m); err != nil {
		return err
	}
	if pe.Tc, err = env.Case.ScalarField("T."+c.Name, m); err != nil {
		return err
	}
	if pe.Ud, err = env.Case.VectorField("U."+d.Name, m); err != nil {
		return err
	}
	if pe.Uc, err = env.Case.VectorField("U."+c.Name, m); err != nil {
		return err
	}
	for _, f := range []*fields.VolScalarField{pe.alpha, pe.Td, pe.Tc} {
		f.Register()
	}
	pe.Ud.Register()
	pe.Uc.Register()
	pe.Ud.CorrectBoundaryConditions()
	pe.Uc.CorrectBoundaryConditions()
	for dir := range pe.UdComponents {
		if pe.UdComponents[dir], err = componentField(pe.Ud, dir); err != nil {
			return err
		}
		// Registered for the old time levels only
		pe.UdComponents[dir].Register()
	}
	pe.phic = flux("phi."+c.Name, pe.Uc)
	pe.phid = flux("phi."+d.Name, pe.Ud)
	pe.DTc = schemes.UniformGamma("DT."+c.Name, types.DimViscosity, c.Kappa/(c.Rho*c.Cp))
	return nil
}

func flux(name string, U *fields.VolVectorField) *fields.SurfaceScalarField {
	phi := fvc.Flux(U)
	phi.Name = name
	return phi
}

// rates are the exchange coefficients per unit of phase heat capacity or
// momentum, from the slip at the start of the step
func (pe *PhaseExchange) rates() (Kd, Hd, Hc []float64) {
	var (
		n     = pe.env.Mesh.NCells
		d, c  = pe.pair.Dispersed, pe.pair.Continuous
		magUr = make([]float64, n)
	)
	for i := range magUr {
		magUr[i] = pe.Uc.Internal[i].Sub(pe.Ud.Internal[i]).Mag()
	}
	K := pe.pair.KField(pe.alpha, magUr)
	H := pe.pair.HField(pe.alpha, magUr)
	Kd, Hd, Hc = make([]float64, n), make([]float64, n), make([]float64, n)
	for i, a := range pe.alpha.Internal {
		var (
			ad = math.Max(a, alphaMin)
			ac = math.Max(1-a, alphaMin)
		)
		Kd[i] = K.Internal[i] / (ad * d.Rho)
		Hd[i] = H.Internal[i] / (ad * d.Rho * d.Cp)
		Hc[i] = H.Internal[i] / (ac * c.Rho * c.Cp)
	}
	return
}

func rateField(name string, m *mesh.Mesh, rate []float64) *fields.VolScalarField {
	return fields.NewCalculatedVolScalarField(name, m, types.DimRate, rate)
}

// coupling is rate*other, the explicit side of an exchange term
func coupling(name string, m *mesh.Mesh, rate, other []float64, dims types.Dimensions) *fields.VolScalarField {
	vals := make([]float64, len(rate))
	for i := range vals {
		vals[i] = rate[i] * other[i]
	}
	return fields.NewCalculatedVolScalarField(name, m, dims.Mul(types.DimRate), vals)
}

func (pe *PhaseExchange) Step() error {
	var (
		env        = pe.env
		m          = env.Mesh
		Kd, Hd, Hc = pe.rates()
		nCorr      = env.NCorrectors()
	)
	for corr := 1; corr <= nCorr; corr++ {
		final := corr == nCorr
		for dir, Ui := range pe.UdComponents {
			Uci := make([]float64, m.NCells)
			for i, u := range pe.Uc.Internal {
				Uci[i] = u[dir]
			}
			M, err := fvm.Eqn(fvm.Ddt(env.Args, Ui)).
				Plus(fvm.Sp(rateField("Kd", m, Kd), Ui), nil).
				Equals(coupling("drag", m, Kd, Uci, Ui.Dimensions)).
				Matrix()
			if err != nil {
				return err
			}
			if _, err = M.SolveDict(env.Solvers(), final); err != nil {
				return err
			}
			setComponent(pe.Ud, dir, Ui)
		}
		pe.Ud.CorrectBoundaryConditions()
		pe.phid = flux(pe.phid.Name, pe.Ud)

		Md, err := fvm.Eqn(fvm.Ddt(env.Args, pe.Td)).
			Plus(fvm.Div(env.Args, pe.phid, pe.Td)).
			Plus(fvm.Sp(rateField("Hd", m, Hd), pe.Td), nil).
			Equals(coupling("heat", m, Hd, pe.Tc.Internal, pe.Td.Dimensions)).
			Matrix()
		if err != nil {
			return err
		}
		if err = pe.solve(Md, final); err != nil {
			return err
		}
		Mc, err := fvm.Eqn(fvm.Ddt(env.Args, pe.Tc)).
			Plus(fvm.Div(env.Args, pe.phic, pe.Tc)).
			Minus(fvm.Laplacian(env.Args, pe.DTc, pe.Tc)).
			Plus(fvm.Sp(rateField("Hc", m, Hc), pe.Tc), nil).
			Equals(coupling("heat", m, Hc, pe.Td.Internal, pe.Tc.Dimensions)).
			Matrix()
		if err != nil {
			return err
		}
		if err = pe.solve(Mc, final); err != nil {
			return err
		}
	}
	return nil
}

func (pe *PhaseExchange) solve(M *fvm.Matrix, final bool) error {
	if err := M.RelaxDict(pe.env.RelaxationFactors()); err != nil {
		return err
	}
	_, err := M.SolveDict(pe.env.Solvers(), final)
	return err
}

func (pe *PhaseExchange) Fields() []*fields.VolScalarField {
	return append([]*fields.VolScalarField{pe.Td, pe.Tc}, pe.UdComponents[:]...)
}
