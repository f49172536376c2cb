package fields

import (
	"fmt"

	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/types"
)

// SurfaceScalarField holds one value per internal face and one list per
// patch, usually a face flux.
type SurfaceScalarField struct {
	Name       string
	Mesh       *mesh.Mesh
	Dimensions types.Dimensions
	Internal   []float64
	Boundary   [][]float64
}

func NewSurfaceScalarField(name string, m *mesh.Mesh, dims types.Dimensions) *SurfaceScalarField {
	sf := &SurfaceScalarField{
		Name:       name,
		Mesh:       m,
		Dimensions: dims,
		Internal:   make([]float64, m.NInternalFaces()),
		Boundary:   make([][]float64, len(m.Patches)),
	}
	for i, p := range m.Patches {
		sf.Boundary[i] = make([]float64, p.FvSize())
	}
	return sf
}

// NewSurfaceScalarFieldFrom evaluates fn for every face of the mesh
func NewSurfaceScalarFieldFrom(name string, m *mesh.Mesh, dims types.Dimensions,
	fn func(face int) float64) *SurfaceScalarField {
	sf := NewSurfaceScalarField(name, m, dims)
	for f := range sf.Internal {
		sf.Internal[f] = fn(f)
	}
	for i, p := range m.Patches {
		for j := range sf.Boundary[i] {
			sf.Boundary[i][j] = fn(p.Start + j)
		}
	}
	return sf
}

func (sf *SurfaceScalarField) Register() *SurfaceScalarField {
	sf.Mesh.Register(sf.Name, sf)
	return sf
}

// Face returns the value at mesh face f, internal or boundary
func (sf *SurfaceScalarField) Face(f int) float64 {
	if f < len(sf.Internal) {
		return sf.Internal[f]
	}
	patchi, pf := sf.Mesh.WhichPatch(f)
	if pf >= len(sf.Boundary[patchi]) {
		return 0
	}
	return sf.Boundary[patchi][pf]
}

func (sf *SurfaceScalarField) Clone(name string) *SurfaceScalarField {
	c := NewSurfaceScalarField(name, sf.Mesh, sf.Dimensions)
	copy(c.Internal, sf.Internal)
	for i := range sf.Boundary {
		copy(c.Boundary[i], sf.Boundary[i])
	}
	return c
}

// Scale multiplies every face value by s
func (sf *SurfaceScalarField) Scale(s float64) *SurfaceScalarField {
	for f := range sf.Internal {
		sf.Internal[f] *= s
	}
	for _, b := range sf.Boundary {
		for j := range b {
			b[j] *= s
		}
	}
	return sf
}

// Mul multiplies face by face with o, combining dimensions
func (sf *SurfaceScalarField) Mul(o *SurfaceScalarField) *SurfaceScalarField {
	if sf.Mesh != o.Mesh {
		panic(fmt.Errorf("surface fields %s and %s are on different meshes", sf.Name, o.Name))
	}
	r := sf.Clone(sf.Name + "*" + o.Name)
	r.Dimensions = sf.Dimensions.Mul(o.Dimensions)
	for f := range r.Internal {
		r.Internal[f] *= o.Internal[f]
	}
	for i, b := range r.Boundary {
		for j := range b {
			b[j] *= o.Boundary[i][j]
		}
	}
	return r
}

// Add sums o into sf, which must have the same dimensions
func (sf *SurfaceScalarField) Add(o *SurfaceScalarField) error {
	if err := sf.Dimensions.Check(o.Dimensions, "surface field "+sf.Name+" + "+o.Name); err != nil {
		return err
	}
	for f := range sf.Internal {
		sf.Internal[f] += o.Internal[f]
	}
	for i, b := range sf.Boundary {
		for j := range b {
			b[j] += o.Boundary[i][j]
		}
	}
	return nil
}
