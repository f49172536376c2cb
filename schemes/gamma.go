package schemes

import (
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/types"
)

// Gamma is a laplacian coefficient, named in the term key as in
// laplacian(DT,T), and evaluated on the faces with the gamma interpolation
// of the laplacian scheme
type Gamma interface {
	Name() string
	Dimensions() types.Dimensions
	Faces(m *mesh.Mesh, interp Interpolation) *fields.SurfaceScalarField
}

// UniformGamma is a constant coefficient
func UniformGamma(name string, dims types.Dimensions, value float64) Gamma {
	return uniformGamma{name: name, dims: dims, value: value}
}

type uniformGamma struct {
	name  string
	dims  types.Dimensions
	value float64
}

func (g uniformGamma) Name() string                 { return g.name }
func (g uniformGamma) Dimensions() types.Dimensions { return g.dims }
func (g uniformGamma) Faces(m *mesh.Mesh, _ Interpolation) *fields.SurfaceScalarField {
	return fields.NewSurfaceScalarFieldFrom(g.name, m, g.dims, func(int) float64 { return g.value })
}

// VolGamma is a cell field coefficient
func VolGamma(vf *fields.VolScalarField) Gamma { return volGamma{vf} }

type volGamma struct{ vf *fields.VolScalarField }

func (g volGamma) Name() string                 { return g.vf.Name }
func (g volGamma) Dimensions() types.Dimensions { return g.vf.Dimensions }
func (g volGamma) Faces(_ *mesh.Mesh, interp Interpolation) *fields.SurfaceScalarField {
	return Interpolate(interp, g.vf)
}

// SurfaceGamma is a coefficient already given on the faces
func SurfaceGamma(sf *fields.SurfaceScalarField) Gamma { return surfaceGamma{sf} }

type surfaceGamma struct{ sf *fields.SurfaceScalarField }

func (g surfaceGamma) Name() string                 { return g.sf.Name }
func (g surfaceGamma) Dimensions() types.Dimensions { return g.sf.Dimensions }
func (g surfaceGamma) Faces(*mesh.Mesh, Interpolation) *fields.SurfaceScalarField {
	return g.sf
}
