package model_problems

import (
	"fmt"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/types"
)

func requirePositive(key string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("models: %s must be positive, have %g", key, v)
	}
	return nil
}

func uniformField(name string, m *mesh.Mesh, dims types.Dimensions, v float64) *fields.VolScalarField {
	vals := make([]float64, m.NCells)
	for c := range vals {
		vals[c] = v
	}
	return fields.NewCalculatedVolScalarField(name, m, dims, vals)
}

// componentField is one direction of U as a field of its own, with
// zeroGradient conditions
func componentField(U *fields.VolVectorField, d int) (*fields.VolScalarField, error) {
	c := U.Component(d)
	f, err := fields.NewVolScalarField(c.Name, U.Mesh, U.Dimensions, c.Internal,
		dict.Dict{".*": dict.Dict{"type": "zeroGradient"}})
	if err != nil {
		return nil, err
	}
	f.CorrectBoundaryConditions()
	return f, nil
}

// setComponent copies a component field back into U
func setComponent(U *fields.VolVectorField, d int, f *fields.VolScalarField) {
	for c, v := range f.Internal {
		U.Internal[c][d] = v
	}
}
