package models

import (
	"math"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/registry"
)

func newDragTable() *registry.Registry[Drag, dict.Dict] {
	return registry.New[Drag, dict.Dict]("drag").
		MustRegister("Stokes", newStokes).
		MustRegister("SchillerNaumann", newSchillerNaumann).
		MustRegister("constantCoefficient", newConstantCoefficient)
}

// Stokes drag on a sphere in creeping flow, Cd = 24/Re
type stokes struct{}

func newStokes(coeffs dict.Dict) (Drag, error) {
	return stokes{}, decode("Stokes", coeffs, &struct{}{})
}

func (stokes) Name() string         { return "Stokes" }
func (stokes) CdRe(float64) float64 { return 24 }

type schillerNaumann struct {
	ResLimit float64 `dict:"residualRe"`
}

func newSchillerNaumann(coeffs dict.Dict) (Drag, error) {
	sn := &schillerNaumann{ResLimit: 1000}
	if err := decode("SchillerNaumann", coeffs, sn); err != nil {
		return nil, err
	}
	return sn, requirePositive("SchillerNaumann", "residualRe", sn.ResLimit)
}

func (sn *schillerNaumann) Name() string { return "SchillerNaumann" }

func (sn *schillerNaumann) CdRe(Re float64) float64 {
	if Re > sn.ResLimit {
		return 0.44 * Re
	}
	return 24 * (1 + 0.15*math.Pow(Re, 0.687))
}

type constantCoefficient struct {
	Cd float64 `dict:"Cd"`
}

func newConstantCoefficient(coeffs dict.Dict) (Drag, error) {
	cc := &constantCoefficient{}
	if err := decode("constantCoefficient", coeffs, cc); err != nil {
		return nil, err
	}
	return cc, requirePositive("constantCoefficient", "Cd", cc.Cd)
}

func (cc *constantCoefficient) Name() string            { return "constantCoefficient" }
func (cc *constantCoefficient) CdRe(Re float64) float64 { return cc.Cd * Re }
