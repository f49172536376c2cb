package fields

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/parallel"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/types"
)

// VectorPatch is the boundary condition of a vector field. Vector fields
// only appear in explicit operators, so one struct covers the supported
// conditions: fixedValue, zeroGradient, calculated, empty and processor.
type VectorPatch struct {
	Kind   string
	Values []types.Vector
	mesh   *mesh.Mesh
	patch  *mesh.Patch
	nbr    []types.Vector
}

type VectorPatchArgs struct {
	Mesh     *mesh.Mesh
	Patch    *mesh.Patch
	Dict     dict.Dict
	Internal []types.Vector
}

var vectorPatches = newVectorPatchTable()

func newVectorPatchTable() *registry.Registry[*VectorPatch, VectorPatchArgs] {
	kind := func(k string, fixed bool) registry.Constructor[*VectorPatch, VectorPatchArgs] {
		return func(args VectorPatchArgs) (*VectorPatch, error) { return newVectorPatch(k, fixed, args) }
	}
	r := registry.New[*VectorPatch, VectorPatchArgs]("vector patch field").
		MustRegister("fixedValue", kind("fixedValue", true)).
		MustRegister("zeroGradient", kind("zeroGradient", false)).
		MustRegister("calculated", kind("calculated", false)).
		MustRegister("empty", kind("empty", false)).
		MustRegister("processor", kind("processor", false))
	for alias, name := range PatchFieldAliases {
		if r.Has(name) {
			if err := r.Alias(alias, name); err != nil {
				panic(err)
			}
		}
	}
	return r
}

func VectorPatches() *registry.Registry[*VectorPatch, VectorPatchArgs] { return vectorPatches }

func NewVectorPatch(args VectorPatchArgs) (*VectorPatch, error) {
	var (
		name string
		err  error
	)
	switch args.Patch.Type {
	case types.Patch_Empty:
		name = "empty"
	case types.Patch_Processor:
		name = "processor"
	default:
		if name, err = args.Dict.String("type"); err != nil {
			return nil, fmt.Errorf("patch %s: %w", args.Patch.Name, err)
		}
		if !vectorPatches.Has(name) {
			if lower := strings.ToLower(strings.TrimSpace(name)); vectorPatches.Has(lower) {
				name = lower
			}
		}
		if name == "empty" || name == "processor" {
			return nil, fmt.Errorf("patch %s of type %s cannot take a %s condition",
				args.Patch.Name, args.Patch.Type, name)
		}
	}
	vp, err := vectorPatches.Create(name, args)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", args.Patch.Name, err)
	}
	return vp, nil
}

func newVectorPatch(kind string, fixed bool, args VectorPatchArgs) (vp *VectorPatch, err error) {
	var (
		p = args.Patch
	)
	vp = &VectorPatch{Kind: kind, mesh: args.Mesh, patch: p}
	if kind == "empty" {
		return
	}
	vp.Values = make([]types.Vector, p.Size)
	if args.Internal != nil {
		for i, c := range p.FaceCells {
			vp.Values[i] = args.Internal[c]
		}
	}
	vp.nbr = append([]types.Vector(nil), vp.Values...)
	if fixed || args.Dict.Found("value") {
		if vp.Values, err = patchVectors(args.Dict, "value", p.Size); err != nil {
			return nil, err
		}
	}
	return
}

// patchVectors reads one vector per face, or a single vector for all faces
func patchVectors(d dict.Dict, key string, n int) ([]types.Vector, error) {
	v, err := d.Lookup(key)
	if err != nil {
		return nil, err
	}
	return parseVectors(v, n, key)
}

func (vp *VectorPatch) Patch() *mesh.Patch { return vp.patch }
func (vp *VectorPatch) Coupled() bool      { return vp.Kind == "processor" }
func (vp *VectorPatch) FixesValue() bool   { return vp.Kind == "fixedValue" }

func (vp *VectorPatch) comm() parallel.Comm { return vp.mesh.Comm }

func (vp *VectorPatch) InitEvaluate(internal []types.Vector) {
	if !vp.Coupled() {
		return
	}
	buf := make([]float64, 0, 3*vp.patch.Size)
	for _, c := range vp.patch.FaceCells {
		buf = append(buf, internal[c][:]...)
	}
	vp.comm().Send(vp.patch.NeighbProcNo, buf)
}

func (vp *VectorPatch) Evaluate(internal []types.Vector) {
	switch vp.Kind {
	case "zeroGradient":
		for i, c := range vp.patch.FaceCells {
			vp.Values[i] = internal[c]
		}
	case "processor":
		buf := vp.comm().Recv(vp.patch.NeighbProcNo)
		nbr := make([]types.Vector, vp.patch.Size)
		for i := range nbr {
			copy(nbr[i][:], buf[3*i:3*i+3])
		}
		vp.setNeighbour(internal, nbr)
	}
}

func (vp *VectorPatch) setNeighbour(internal, nbr []types.Vector) {
	w := vp.mesh.Weights[vp.patch.Start : vp.patch.Start+vp.patch.Size]
	vp.nbr = nbr
	for i, c := range vp.patch.FaceCells {
		vp.Values[i] = internal[c].Scale(w[i]).Add(nbr[i].Scale(1 - w[i]))
	}
}

// NeighbourField is the value in the cells across a processor patch
func (vp *VectorPatch) NeighbourField() []types.Vector { return vp.nbr }

func (vp *VectorPatch) Entries() dict.Dict {
	e := dict.Dict{"type": vp.Kind}
	if vp.Kind != "empty" && vp.Kind != "zeroGradient" {
		e["value"] = compactVectors(vp.Values)
	}
	return e
}

type VolVectorField struct {
	Name       string
	Mesh       *mesh.Mesh
	Dimensions types.Dimensions
	Internal   []types.Vector
	Boundary   []*VectorPatch
}

func NewVolVectorField(name string, m *mesh.Mesh, dims types.Dimensions, internal []types.Vector,
	boundary dict.Dict) (f *VolVectorField, err error) {
	if len(internal) != m.NCells {
		return nil, fmt.Errorf("%w: %s has %d values for %d cells", ErrMalformed, name, len(internal), m.NCells)
	}
	f = &VolVectorField{
		Name:       name,
		Mesh:       m,
		Dimensions: dims,
		Internal:   internal,
		Boundary:   make([]*VectorPatch, len(m.Patches)),
	}
	for i, p := range m.Patches {
		var pd dict.Dict
		if p.Type != types.Patch_Empty && p.Type != types.Patch_Processor {
			if pd, err = boundary.SubDictPattern(p.Name); err != nil {
				return nil, fmt.Errorf("field %s: boundary condition for patch %s: %w", name, p.Name, err)
			}
		}
		if f.Boundary[i], err = NewVectorPatch(VectorPatchArgs{Mesh: m, Patch: p, Dict: pd, Internal: internal}); err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
	}
	return
}

func NewUniformVolVectorField(name string, m *mesh.Mesh, dims types.Dimensions, value types.Vector,
	boundary dict.Dict) (*VolVectorField, error) {
	internal := make([]types.Vector, m.NCells)
	for c := range internal {
		internal[c] = value
	}
	return NewVolVectorField(name, m, dims, internal, boundary)
}

// NewCalculatedVolVectorField creates a vector field with calculated
// conditions, face values starting at the adjacent cell values
func NewCalculatedVolVectorField(name string, m *mesh.Mesh, dims types.Dimensions, internal []types.Vector) *VolVectorField {
	f, err := NewVolVectorField(name, m, dims, internal, dict.Dict{".*": dict.Dict{"type": "calculated"}})
	if err != nil {
		panic(err)
	}
	return f
}

func (f *VolVectorField) Register() *VolVectorField {
	f.Mesh.Register(f.Name, f)
	return f
}

func (f *VolVectorField) CorrectBoundaryConditions() {
	for _, vp := range f.Boundary {
		vp.InitEvaluate(f.Internal)
	}
	for _, vp := range f.Boundary {
		vp.Evaluate(f.Internal)
	}
}

// Component extracts direction d as a scalar field with calculated patches
func (f *VolVectorField) Component(d int) *VolScalarField {
	internal := make([]float64, len(f.Internal))
	for c, v := range f.Internal {
		internal[c] = v[d]
	}
	s := NewCalculatedVolScalarField(fmt.Sprintf("%s.%s", f.Name, "xyz"[d:d+1]), f.Mesh, f.Dimensions, internal)
	for i, vp := range f.Boundary {
		vals := s.Boundary[i].Values()
		for j := range vals {
			vals[j] = vp.Values[j][d]
		}
	}
	return s
}

// MaxMag is the largest vector magnitude over all ranks
func (f *VolVectorField) MaxMag() float64 {
	var v float64
	for _, x := range f.Internal {
		if m := x.Mag(); m > v {
			v = m
		}
	}
	return f.Mesh.Comm.AllReduceMax(v)
}

// parseVectors accepts a single vector (uniform) or a list of n vectors
func parseVectors(v interface{}, n int, key string) (out []types.Vector, err error) {
	list, err := cast.ToSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	if len(list) == 3 {
		if u, uerr := toVector(list); uerr == nil {
			out = make([]types.Vector, n)
			for i := range out {
				out[i] = u
			}
			return
		}
	}
	if len(list) != n {
		return nil, fmt.Errorf("%w: %s has %d vectors for %d entries", ErrMalformed, key, len(list), n)
	}
	out = make([]types.Vector, n)
	for i, item := range list {
		comps, cerr := cast.ToSliceE(item)
		if cerr != nil {
			return nil, fmt.Errorf("%w: %s entry %d: %v", ErrMalformed, key, i, cerr)
		}
		if out[i], err = toVector(comps); err != nil {
			return nil, fmt.Errorf("%w: %s entry %d: %v", ErrMalformed, key, i, err)
		}
	}
	return
}

func toVector(comps []interface{}) (v types.Vector, err error) {
	if len(comps) != 3 {
		return v, fmt.Errorf("vector has %d components", len(comps))
	}
	for d, c := range comps {
		if v[d], err = cast.ToFloat64E(c); err != nil {
			return
		}
	}
	return
}

// compactVectors writes a uniform list as a single vector
func compactVectors(vals []types.Vector) interface{} {
	vecs := make([][]float64, len(vals))
	uniform := len(vals) > 0
	for i, v := range vals {
		vecs[i] = []float64{v[0], v[1], v[2]}
		if v != vals[0] {
			uniform = false
		}
	}
	if uniform {
		return vecs[0]
	}
	return vecs
}
