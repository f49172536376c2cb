package models

import (
	"fmt"
	"math"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/fvc"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/types"
)

func newViscosityTable() *registry.Registry[Viscosity, dict.Dict] {
	return registry.New[Viscosity, dict.Dict]("viscosity").
		MustRegister("Newtonian", newNewtonian).
		MustRegister("powerLaw", newPowerLaw)
}

type newtonian struct {
	Nu0 float64 `dict:"nu"`
}

func newNewtonian(coeffs dict.Dict) (Viscosity, error) {
	n := &newtonian{}
	if err := decode("Newtonian", coeffs, n); err != nil {
		return nil, err
	}
	return n, requirePositive("Newtonian", "nu", n.Nu0)
}

func (n *newtonian) Name() string       { return "Newtonian" }
func (n *newtonian) Nu(float64) float64 { return n.Nu0 }

// powerLaw is nu = k sr^(n-1), clipped to [nuMin, nuMax]
type powerLaw struct {
	K     float64 `dict:"k"`
	N     float64 `dict:"n"`
	NuMin float64 `dict:"nuMin"`
	NuMax float64 `dict:"nuMax"`
}

func newPowerLaw(coeffs dict.Dict) (Viscosity, error) {
	pl := &powerLaw{N: 1}
	if err := decode("powerLaw", coeffs, pl); err != nil {
		return nil, err
	}
	keys := []string{"k", "n", "nuMin", "nuMax"}
	for i, v := range []float64{pl.K, pl.N, pl.NuMin, pl.NuMax} {
		if err := requirePositive("powerLaw", keys[i], v); err != nil {
			return nil, err
		}
	}
	if pl.NuMin > pl.NuMax {
		return nil, fmt.Errorf("powerLaw: nuMin %g above nuMax %g", pl.NuMin, pl.NuMax)
	}
	return pl, nil
}

func (pl *powerLaw) Name() string { return "powerLaw" }

func (pl *powerLaw) Nu(sr float64) float64 {
	nu := pl.K * math.Pow(math.Max(sr, types.VSmall), pl.N-1)
	return math.Max(pl.NuMin, math.Min(nu, pl.NuMax))
}

// StrainRate is sqrt(2) |symm(grad(U))| in each cell
func StrainRate(args schemes.Args, U *fields.VolVectorField) (*fields.VolScalarField, error) {
	var (
		m     = U.Mesh
		grads [3]*fields.VolVectorField
		err   error
	)
	for d := range grads {
		if grads[d], err = fvc.Grad(args, U.Component(d)); err != nil {
			return nil, err
		}
	}
	sr := make([]float64, m.NCells)
	for c := range sr {
		var sum float64
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				// grads[i] is the gradient of component i, so [j] is dU_i/dx_j
				s := 0.5 * (grads[i].Internal[c][j] + grads[j].Internal[c][i])
				sum += s * s
			}
		}
		sr[c] = math.Sqrt(2 * sum)
	}
	return fields.NewCalculatedVolScalarField("strainRate", m, types.DimRate, sr), nil
}

// ViscosityField evaluates the model in every cell at the strain rate of U
func ViscosityField(name string, v Viscosity, args schemes.Args, U *fields.VolVectorField) (*fields.VolScalarField, error) {
	sr, err := StrainRate(args, U)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	nu := make([]float64, len(sr.Internal))
	for c, s := range sr.Internal {
		nu[c] = v.Nu(s)
	}
	return fields.NewCalculatedVolScalarField(name, U.Mesh, types.DimViscosity, nu), nil
}
