// Package fields holds the mesh-resident fields: cell-centred (vol) scalar
// and vector fields with their boundary conditions, face (surface) fields,
// and their storage in time directories.
package fields

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/types"
)

// ErrMalformed reports field data that does not fit its mesh or class
var ErrMalformed = errors.New("malformed field")

// MaxOldTimes is the number of previous time levels kept per field
const MaxOldTimes = 2

type VolScalarField struct {
	Name       string
	Mesh       *mesh.Mesh
	Dimensions types.Dimensions
	Internal   []float64
	Boundary   []PatchField
	oldTimes   [][]float64
}

// NewVolScalarField creates a field with boundary conditions from the
// boundary dictionary, one entry per patch (keys may be regular
// expressions). Empty and processor patches need no entry.
func NewVolScalarField(name string, m *mesh.Mesh, dims types.Dimensions, internal []float64,
	boundary dict.Dict) (f *VolScalarField, err error) {
	if len(internal) != m.NCells {
		return nil, fmt.Errorf("%w: %s has %d values for %d cells", ErrMalformed, name, len(internal), m.NCells)
	}
	f = &VolScalarField{
		Name:       name,
		Mesh:       m,
		Dimensions: dims,
		Internal:   internal,
		Boundary:   make([]PatchField, len(m.Patches)),
	}
	for i, p := range m.Patches {
		var pd dict.Dict
		if p.Type != types.Patch_Empty && p.Type != types.Patch_Processor {
			if pd, err = boundary.SubDictPattern(p.Name); err != nil {
				return nil, fmt.Errorf("field %s: boundary condition for patch %s: %w", name, p.Name, err)
			}
		}
		if f.Boundary[i], err = NewPatchField(PatchArgs{Mesh: m, Patch: p, Dict: pd, Internal: internal}); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
	}
	return
}

func NewUniformVolScalarField(name string, m *mesh.Mesh, dims types.Dimensions, value float64,
	boundary dict.Dict) (*VolScalarField, error) {
	return NewVolScalarField(name, m, dims, uniform(m.NCells, value), boundary)
}

// NewCalculatedVolScalarField creates a field whose boundary values are
// computed rather than imposed. Face values start at the adjacent cell values.
func NewCalculatedVolScalarField(name string, m *mesh.Mesh, dims types.Dimensions, internal []float64) *VolScalarField {
	boundary := dict.Dict{".*": dict.Dict{"type": "calculated"}}
	f, err := NewVolScalarField(name, m, dims, internal, boundary)
	if err != nil {
		panic(err)
	}
	return f
}

// Register adds the field to its mesh's object registry
func (f *VolScalarField) Register() *VolScalarField {
	f.Mesh.Register(f.Name, f)
	return f
}

// CorrectBoundaryConditions evaluates every patch from the internal field.
// Coupled patches send first, then every patch evaluates.
func (f *VolScalarField) CorrectBoundaryConditions() {
	for _, pf := range f.Boundary {
		if cpf, ok := pf.(CoupledPatchField); ok {
			cpf.InitEvaluate(f.Internal)
		}
	}
	for _, pf := range f.Boundary {
		pf.Evaluate(f.Internal)
	}
}

// Interfaces returns the matrix interfaces of the coupled patches, indexed
// by patch
func (f *VolScalarField) Interfaces() (ifs ldu.Interfaces) {
	ifs = make(ldu.Interfaces, len(f.Boundary))
	for i, pf := range f.Boundary {
		if cpf, ok := pf.(CoupledPatchField); ok {
			ifs[i] = cpf
		}
	}
	return
}

// FixesValue is true when any patch on any rank fixes the field value
func (f *VolScalarField) FixesValue() bool {
	var fixes float64
	for _, pf := range f.Boundary {
		if pf.FixesValue() && pf.Patch().Size > 0 {
			fixes = 1
		}
	}
	return f.Mesh.Comm.AllReduceMax(fixes) > 0
}

// StoreOldTimes shifts the time levels at the start of a new time step
func (f *VolScalarField) StoreOldTimes() {
	cur := append([]float64(nil), f.Internal...)
	f.oldTimes = append([][]float64{cur}, f.oldTimes...)
	if len(f.oldTimes) > MaxOldTimes {
		f.oldTimes = f.oldTimes[:MaxOldTimes]
	}
}

func (f *VolScalarField) NOldTimes() int { return len(f.oldTimes) }

// OldTime returns the internal values n time levels back (n >= 1). Missing
// levels fall back to the oldest one stored, or the current values.
func (f *VolScalarField) OldTime(n int) []float64 {
	if n < 1 {
		panic(fmt.Errorf("field %s: old time level %d", f.Name, n))
	}
	switch {
	case len(f.oldTimes) == 0:
		return f.Internal
	case n > len(f.oldTimes):
		return f.oldTimes[len(f.oldTimes)-1]
	}
	return f.oldTimes[n-1]
}

// SetOldTimes replaces the stored time levels, newest first
func (f *VolScalarField) SetOldTimes(levels ...[]float64) {
	f.oldTimes = nil
	for _, l := range levels {
		f.oldTimes = append(f.oldTimes, append([]float64(nil), l...))
	}
}

// Clone copies the field values and conditions under a new name
func (f *VolScalarField) Clone(name string) *VolScalarField {
	internal := append([]float64(nil), f.Internal...)
	boundary := make(dict.Dict, len(f.Boundary))
	for _, pf := range f.Boundary {
		boundary[pf.Patch().Name] = pf.Entries()
	}
	g, err := NewVolScalarField(name, f.Mesh, f.Dimensions, internal, boundary)
	if err != nil {
		panic(err)
	}
	for i, pf := range f.Boundary {
		copy(g.Boundary[i].Values(), pf.Values())
	}
	return g
}

// Global reductions over the internal field
func (f *VolScalarField) Max() float64 {
	v := -math.MaxFloat64
	for _, x := range f.Internal {
		v = math.Max(v, x)
	}
	return f.Mesh.Comm.AllReduceMax(v)
}

func (f *VolScalarField) Min() float64 {
	v := math.MaxFloat64
	for _, x := range f.Internal {
		v = math.Min(v, x)
	}
	return f.Mesh.Comm.AllReduceMin(v)
}

// WeightedAverage is the volume weighted mean
func (f *VolScalarField) WeightedAverage() float64 {
	var sum float64
	for c, x := range f.Internal {
		sum += x * f.Mesh.V[c]
	}
	return f.Mesh.Comm.AllReduceSum(sum) / f.Mesh.TotalVolume()
}

// PatchInternal is the internal field at the cells next to patch i
func (f *VolScalarField) PatchInternal(i int) []float64 {
	return patchInternal(f.Mesh.Patches[i], f.Internal)
}
