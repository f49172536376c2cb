package fields

import (
	"fmt"
	"strings"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/types"
)

// PatchField is the boundary condition of a scalar field on one patch. The
// four coefficient methods express the face value and the face normal
// gradient as a linear function of the adjacent cell value:
//
//	value  = ValueInternalCoeffs*psi_P + ValueBoundaryCoeffs
//	snGrad = GradientInternalCoeffs*psi_P + GradientBoundaryCoeffs
type PatchField interface {
	Type() string
	Patch() *mesh.Patch
	// Values are the face values, one per patch face
	Values() []float64
	Coupled() bool
	FixesValue() bool
	// Evaluate updates the face values from the internal field
	Evaluate(internal []float64)
	SnGrad(internal []float64) []float64
	ValueInternalCoeffs(w []float64) []float64
	ValueBoundaryCoeffs(w []float64) []float64
	GradientInternalCoeffs() []float64
	GradientBoundaryCoeffs() []float64
	// Entries are written to the boundaryField block of the field file
	Entries() dict.Dict
}

// PatchArgs carries what a patch field constructor needs. Internal is the
// internal field, used to initialise face values.
type PatchArgs struct {
	Mesh     *mesh.Mesh
	Patch    *mesh.Patch
	Dict     dict.Dict
	Internal []float64
}

// Alternative names accepted for the patch field types, matched without
// regard to case
var PatchFieldAliases = map[string]string{
	"dirichlet":      "fixedValue",
	"inlet":          "fixedValue",
	"inflow":         "fixedValue",
	"velocity_inlet": "fixedValue",
	"isothermal":     "fixedValue",
	"neumann":        "fixedGradient",
	"heat_flux":      "fixedGradient",
	"robin":          "mixed",
	"outlet":         "zeroGradient",
	"outflow":        "zeroGradient",
	"exit":           "zeroGradient",
	"adiabatic":      "zeroGradient",
	"symmetry":       "zeroGradient",
	"wall":           "zeroGradient",
	"partition":      "processor",
}

var patchFields = newPatchFieldTable()

func newPatchFieldTable() *registry.Registry[PatchField, PatchArgs] {
	r := registry.New[PatchField, PatchArgs]("patch field").
		MustRegister("fixedValue", newFixedValue).
		MustRegister("zeroGradient", newZeroGradient).
		MustRegister("fixedGradient", newFixedGradient).
		MustRegister("mixed", newMixed).
		MustRegister("calculated", newCalculated).
		MustRegister("empty", newEmpty).
		MustRegister("processor", newProcessor)
	for alias, name := range PatchFieldAliases {
		if err := r.Alias(alias, name); err != nil {
			panic(err)
		}
	}
	return r
}

func PatchFields() *registry.Registry[PatchField, PatchArgs] { return patchFields }

// NewPatchField creates the patch field named by the type entry of args.Dict.
// Empty and processor patches always get their constraint type.
func NewPatchField(args PatchArgs) (PatchField, error) {
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
		if !patchFields.Has(name) {
			if lower := strings.ToLower(strings.TrimSpace(name)); patchFields.Has(lower) {
				name = lower
			}
		}
		if name == "empty" || name == "processor" {
			return nil, fmt.Errorf("patch %s of type %s cannot take a %s condition",
				args.Patch.Name, args.Patch.Type, name)
		}
	}
	pf, err := patchFields.Create(name, args)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", args.Patch.Name, err)
	}
	return pf, nil
}

// patchValues reads a value per patch face, from a single number or a list
func patchValues(d dict.Dict, key string, n int) ([]float64, error) {
	vals, err := d.Floats(key)
	if err != nil {
		return nil, err
	}
	if len(vals) == 1 && n != 1 {
		return uniform(n, vals[0]), nil
	}
	if len(vals) != n {
		return nil, fmt.Errorf("%w: %s has %d values for %d faces", ErrMalformed, key, len(vals), n)
	}
	return vals, nil
}

// compact writes a uniform list as a single number
func compact(vals []float64) interface{} {
	if len(vals) == 0 {
		return []float64{}
	}
	for _, v := range vals[1:] {
		if v != vals[0] {
			out := make([]float64, len(vals))
			copy(out, vals)
			return out
		}
	}
	return vals[0]
}

func uniform(n int, v float64) []float64 {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = v
	}
	return vals
}

func patchInternal(p *mesh.Patch, internal []float64) []float64 {
	vals := make([]float64, p.Size)
	for i, c := range p.FaceCells {
		vals[i] = internal[c]
	}
	return vals
}

// basePatch holds what every patch field has
type basePatch struct {
	mesh   *mesh.Mesh
	patch  *mesh.Patch
	values []float64
}

func newBase(args PatchArgs) basePatch {
	b := basePatch{mesh: args.Mesh, patch: args.Patch}
	if args.Internal != nil {
		b.values = patchInternal(args.Patch, args.Internal)
	} else {
		b.values = make([]float64, args.Patch.Size)
	}
	return b
}

func (b *basePatch) Patch() *mesh.Patch { return b.patch }
func (b *basePatch) Values() []float64  { return b.values }
func (b *basePatch) Coupled() bool      { return false }
func (b *basePatch) FixesValue() bool   { return false }

func (b *basePatch) deltaCoeffs() []float64 {
	return b.mesh.DeltaCoeffs[b.patch.Start : b.patch.Start+b.patch.Size]
}

func (b *basePatch) snGrad(internal []float64) []float64 {
	var (
		dc  = b.deltaCoeffs()
		out = make([]float64, b.patch.Size)
	)
	for i, c := range b.patch.FaceCells {
		out[i] = dc[i] * (b.values[i] - internal[c])
	}
	return out
}

func (b *basePatch) entries(typ string) dict.Dict {
	return dict.Dict{"type": typ, "value": compact(b.values)}
}

// fixedValue holds the face values constant
type fixedValue struct{ basePatch }

func newFixedValue(args PatchArgs) (PatchField, error) {
	vals, err := patchValues(args.Dict, "value", args.Patch.Size)
	if err != nil {
		return nil, err
	}
	p := &fixedValue{newBase(args)}
	p.values = vals
	return p, nil
}

func (p *fixedValue) Type() string                        { return "fixedValue" }
func (p *fixedValue) FixesValue() bool                    { return true }
func (p *fixedValue) Evaluate([]float64)                  {}
func (p *fixedValue) SnGrad(internal []float64) []float64 { return p.snGrad(internal) }
func (p *fixedValue) ValueInternalCoeffs([]float64) []float64 {
	return make([]float64, p.patch.Size)
}
func (p *fixedValue) ValueBoundaryCoeffs([]float64) []float64 {
	return append([]float64(nil), p.values...)
}
func (p *fixedValue) GradientInternalCoeffs() []float64 {
	out := make([]float64, p.patch.Size)
	for i, dc := range p.deltaCoeffs() {
		out[i] = -dc
	}
	return out
}
func (p *fixedValue) GradientBoundaryCoeffs() []float64 {
	out := make([]float64, p.patch.Size)
	for i, dc := range p.deltaCoeffs() {
		out[i] = dc * p.values[i]
	}
	return out
}
func (p *fixedValue) Entries() dict.Dict { return p.entries(p.Type()) }

// zeroGradient copies the adjacent cell values to the faces
type zeroGradient struct{ basePatch }

func newZeroGradient(args PatchArgs) (PatchField, error) {
	return &zeroGradient{newBase(args)}, nil
}

func (p *zeroGradient) Type() string { return "zeroGradient" }
func (p *zeroGradient) Evaluate(internal []float64) {
	for i, c := range p.patch.FaceCells {
		p.values[i] = internal[c]
	}
}
func (p *zeroGradient) SnGrad([]float64) []float64 { return make([]float64, p.patch.Size) }
func (p *zeroGradient) ValueInternalCoeffs([]float64) []float64 {
	return uniform(p.patch.Size, 1)
}
func (p *zeroGradient) ValueBoundaryCoeffs([]float64) []float64 { return make([]float64, p.patch.Size) }
func (p *zeroGradient) GradientInternalCoeffs() []float64       { return make([]float64, p.patch.Size) }
func (p *zeroGradient) GradientBoundaryCoeffs() []float64       { return make([]float64, p.patch.Size) }
func (p *zeroGradient) Entries() dict.Dict                      { return dict.Dict{"type": p.Type()} }

// fixedGradient holds the face normal gradient constant
type fixedGradient struct {
	basePatch
	gradient []float64
}

func newFixedGradient(args PatchArgs) (PatchField, error) {
	g, err := patchValues(args.Dict, "gradient", args.Patch.Size)
	if err != nil {
		return nil, err
	}
	p := &fixedGradient{basePatch: newBase(args), gradient: g}
	if args.Internal != nil {
		p.Evaluate(args.Internal)
	}
	return p, nil
}

func (p *fixedGradient) Type() string { return "fixedGradient" }
func (p *fixedGradient) Evaluate(internal []float64) {
	dc := p.deltaCoeffs()
	for i, c := range p.patch.FaceCells {
		p.values[i] = internal[c] + p.gradient[i]/dc[i]
	}
}
func (p *fixedGradient) SnGrad([]float64) []float64 { return append([]float64(nil), p.gradient...) }
func (p *fixedGradient) ValueInternalCoeffs([]float64) []float64 {
	return uniform(p.patch.Size, 1)
}
func (p *fixedGradient) ValueBoundaryCoeffs([]float64) []float64 {
	out := make([]float64, p.patch.Size)
	for i, dc := range p.deltaCoeffs() {
		out[i] = p.gradient[i] / dc
	}
	return out
}
func (p *fixedGradient) GradientInternalCoeffs() []float64 { return make([]float64, p.patch.Size) }
func (p *fixedGradient) GradientBoundaryCoeffs() []float64 {
	return append([]float64(nil), p.gradient...)
}
func (p *fixedGradient) Entries() dict.Dict {
	e := p.entries(p.Type())
	e["gradient"] = compact(p.gradient)
	return e
}

// Gradient gives write access to the fixed gradient
func (p *fixedGradient) Gradient() []float64 { return p.gradient }

// mixed blends a fixed value and a fixed gradient by valueFraction
type mixed struct {
	basePatch
	refValue, refGrad, valueFraction []float64
}

func newMixed(args PatchArgs) (PatchField, error) {
	var (
		n   = args.Patch.Size
		p   = &mixed{basePatch: newBase(args)}
		err error
	)
	if p.refValue, err = patchValues(args.Dict, "refValue", n); err != nil {
		return nil, err
	}
	if p.refGrad, err = patchValues(args.Dict, "refGradient", n); err != nil {
		return nil, err
	}
	if p.valueFraction, err = patchValues(args.Dict, "valueFraction", n); err != nil {
		return nil, err
	}
	for _, f := range p.valueFraction {
		if f < 0 || f > 1 {
			return nil, fmt.Errorf("valueFraction %g outside [0,1]", f)
		}
	}
	if args.Internal != nil {
		p.Evaluate(args.Internal)
	}
	return p, nil
}

func (p *mixed) Type() string { return "mixed" }
func (p *mixed) Evaluate(internal []float64) {
	dc := p.deltaCoeffs()
	for i, c := range p.patch.FaceCells {
		f := p.valueFraction[i]
		p.values[i] = f*p.refValue[i] + (1-f)*(internal[c]+p.refGrad[i]/dc[i])
	}
}
func (p *mixed) SnGrad(internal []float64) []float64 {
	var (
		dc  = p.deltaCoeffs()
		out = make([]float64, p.patch.Size)
	)
	for i, c := range p.patch.FaceCells {
		f := p.valueFraction[i]
		out[i] = f*dc[i]*(p.refValue[i]-internal[c]) + (1-f)*p.refGrad[i]
	}
	return out
}
func (p *mixed) ValueInternalCoeffs([]float64) []float64 {
	out := make([]float64, p.patch.Size)
	for i, f := range p.valueFraction {
		out[i] = 1 - f
	}
	return out
}
func (p *mixed) ValueBoundaryCoeffs([]float64) []float64 {
	out := make([]float64, p.patch.Size)
	for i, dc := range p.deltaCoeffs() {
		f := p.valueFraction[i]
		out[i] = f*p.refValue[i] + (1-f)*p.refGrad[i]/dc
	}
	return out
}
func (p *mixed) GradientInternalCoeffs() []float64 {
	out := make([]float64, p.patch.Size)
	for i, dc := range p.deltaCoeffs() {
		out[i] = -p.valueFraction[i] * dc
	}
	return out
}
func (p *mixed) GradientBoundaryCoeffs() []float64 {
	out := make([]float64, p.patch.Size)
	for i, dc := range p.deltaCoeffs() {
		f := p.valueFraction[i]
		out[i] = f*dc*p.refValue[i] + (1-f)*p.refGrad[i]
	}
	return out
}
func (p *mixed) Entries() dict.Dict {
	e := p.entries(p.Type())
	e["refValue"] = compact(p.refValue)
	e["refGradient"] = compact(p.refGrad)
	e["valueFraction"] = compact(p.valueFraction)
	return e
}

// calculated values are set by whoever computes the field. It cannot be
// used in an implicit operator.
type calculated struct{ basePatch }

func newCalculated(args PatchArgs) (PatchField, error) {
	p := &calculated{newBase(args)}
	if args.Dict.Found("value") {
		vals, err := patchValues(args.Dict, "value", args.Patch.Size)
		if err != nil {
			return nil, err
		}
		p.values = vals
	}
	return p, nil
}

func (p *calculated) Type() string                        { return "calculated" }
func (p *calculated) Evaluate([]float64)                  {}
func (p *calculated) SnGrad(internal []float64) []float64 { return p.snGrad(internal) }
func (p *calculated) notImplemented(what string) []float64 {
	panic(fmt.Errorf("%s on calculated patch %s: the value is not specified by a condition",
		what, p.patch.Name))
}
func (p *calculated) ValueInternalCoeffs([]float64) []float64 {
	return p.notImplemented("ValueInternalCoeffs")
}
func (p *calculated) ValueBoundaryCoeffs([]float64) []float64 {
	return p.notImplemented("ValueBoundaryCoeffs")
}
func (p *calculated) GradientInternalCoeffs() []float64 {
	return p.notImplemented("GradientInternalCoeffs")
}
func (p *calculated) GradientBoundaryCoeffs() []float64 {
	return p.notImplemented("GradientBoundaryCoeffs")
}
func (p *calculated) Entries() dict.Dict { return p.entries(p.Type()) }

// SetValues assigns the face values of a calculated patch
func (p *calculated) SetValues(vals []float64) { copy(p.values, vals) }

// empty patches take no part in the discretisation
type empty struct{ basePatch }

func newEmpty(args PatchArgs) (PatchField, error) {
	if args.Patch.Type != types.Patch_Empty {
		return nil, fmt.Errorf("empty condition on non-empty patch %s", args.Patch.Name)
	}
	return &empty{basePatch{mesh: args.Mesh, patch: args.Patch}}, nil
}

func (p *empty) Type() string                            { return "empty" }
func (p *empty) Evaluate([]float64)                      {}
func (p *empty) SnGrad([]float64) []float64              { return nil }
func (p *empty) ValueInternalCoeffs([]float64) []float64 { return nil }
func (p *empty) ValueBoundaryCoeffs([]float64) []float64 { return nil }
func (p *empty) GradientInternalCoeffs() []float64       { return nil }
func (p *empty) GradientBoundaryCoeffs() []float64       { return nil }
func (p *empty) Entries() dict.Dict                      { return dict.Dict{"type": p.Type()} }
