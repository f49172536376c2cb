package models

import (
	"math"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/registry"
)

func newHeatTransferTable() *registry.Registry[HeatTransfer, dict.Dict] {
	return registry.New[HeatTransfer, dict.Dict]("heatTransfer").
		MustRegister("RanzMarshall", newRanzMarshall).
		MustRegister("constantNusselt", newConstantNusselt)
}

// Nu = 2 + 0.6 Re^1/2 Pr^1/3
type ranzMarshall struct{}

func newRanzMarshall(coeffs dict.Dict) (HeatTransfer, error) {
	return ranzMarshall{}, decode("RanzMarshall", coeffs, &struct{}{})
}

func (ranzMarshall) Name() string { return "RanzMarshall" }

func (ranzMarshall) Nu(Re, Pr float64) float64 {
	return 2 + 0.6*math.Sqrt(Re)*math.Cbrt(Pr)
}

type constantNusselt struct {
	Nusselt float64 `dict:"Nu"`
}

func newConstantNusselt(coeffs dict.Dict) (HeatTransfer, error) {
	cn := &constantNusselt{}
	if err := decode("constantNusselt", coeffs, cn); err != nil {
		return nil, err
	}
	return cn, requirePositive("constantNusselt", "Nu", cn.Nusselt)
}

func (cn *constantNusselt) Name() string              { return "constantNusselt" }
func (cn *constantNusselt) Nu(Re, Pr float64) float64 { return cn.Nusselt }
