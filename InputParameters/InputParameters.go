package InputParameters

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/spf13/cast"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/types"
)

// CaseParameters is the case file. The dictionary blocks are read by the
// packages they configure: time by sim, schemes by schemes, solution by
// linsolve and fvm, models by models.
type CaseParameters struct {
	Title    string             `json:"title"`
	Problem  string             `json:"problem"`
	Mesh     MeshParameters     `json:"mesh"`
	Time     dict.Dict          `json:"time"`
	Schemes  dict.Dict          `json:"schemes"`
	Solution dict.Dict          `json:"solution"`
	Fields   dict.Dict          `json:"fields"`
	Models   dict.Dict          `json:"models"`
	Parallel ParallelParameters `json:"parallel"`
}

// MeshParameters is a block mesh, with a patch type per side
type MeshParameters struct {
	Name    string            `json:"name"`
	N       [3]int            `json:"n"`
	Min     [3]float64        `json:"min"`
	Max     [3]float64        `json:"max"`
	Shear   float64           `json:"shear"`
	Patches map[string]string `json:"patches"`
}

type ParallelParameters struct {
	NP int `json:"np"`
}

func (cp *CaseParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, cp); err != nil {
		return err
	}
	if cp.Parallel.NP == 0 {
		cp.Parallel.NP = 1
	}
	return nil
}

func ReadCaseParameters(path string) (cp *CaseParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(path); err != nil {
		return nil, err
	}
	cp = &CaseParameters{}
	if err = cp.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cp, nil
}

func (mp MeshParameters) BlockSpec() (bs mesh.BlockSpec, err error) {
	bs = mesh.BlockSpec{
		Name:  mp.Name,
		N:     mp.N,
		Min:   types.Vector(mp.Min),
		Max:   types.Vector(mp.Max),
		Shear: mp.Shear,
		Types: make(map[string]types.PatchType, len(mp.Patches)),
	}
	if bs.Name == "" {
		bs.Name = "block"
	}
	for side, label := range mp.Patches {
		if bs.Types[side], err = types.NewPatchType(label); err != nil {
			return bs, fmt.Errorf("mesh patch %s: %w", side, err)
		}
	}
	return bs, nil
}

func (cp *CaseParameters) NewMesh() (*mesh.Mesh, error) {
	bs, err := cp.Mesh.BlockSpec()
	if err != nil {
		return nil, err
	}
	return mesh.NewBlock(bs)
}

// fieldSpec is one entry of the fields block
type fieldSpec struct {
	Dimensions []float64   `dict:"dimensions"`
	Value      interface{} `dict:"value"`
	Boundary   dict.Dict   `dict:"boundaryField"`
}

func (cp *CaseParameters) fieldSpec(name string) (fs fieldSpec, err error) {
	fd, err := cp.Fields.SubDict(name)
	if err != nil {
		return fs, fmt.Errorf("fields: %w", err)
	}
	if err = fd.Decode(&fs); err != nil {
		return fs, fmt.Errorf("field %s: %w", name, err)
	}
	if fs.Boundary == nil {
		fs.Boundary = dict.Dict{}
	}
	return fs, nil
}

// ScalarField creates the named field of the fields block on m with its
// uniform initial value
func (cp *CaseParameters) ScalarField(name string, m *mesh.Mesh) (*fields.VolScalarField, error) {
	fs, err := cp.fieldSpec(name)
	if err != nil {
		return nil, err
	}
	v, err := cast.ToFloat64E(fs.Value)
	if err != nil {
		return nil, fmt.Errorf("field %s: value: %w", name, err)
	}
	return fields.NewUniformVolScalarField(name, m, types.NewDimensions(fs.Dimensions...), v, fs.Boundary)
}

func (cp *CaseParameters) VectorField(name string, m *mesh.Mesh) (*fields.VolVectorField, error) {
	fs, err := cp.fieldSpec(name)
	if err != nil {
		return nil, err
	}
	comps, err := cast.ToSliceE(fs.Value)
	if err != nil || len(comps) != 3 {
		return nil, fmt.Errorf("field %s: value must have 3 components, have %v", name, fs.Value)
	}
	var v types.Vector
	for d, c := range comps {
		if v[d], err = cast.ToFloat64E(c); err != nil {
			return nil, fmt.Errorf("field %s: value: %w", name, err)
		}
	}
	return fields.NewUniformVolVectorField(name, m, types.NewDimensions(fs.Dimensions...), v, fs.Boundary)
}

func (cp *CaseParameters) Print(w io.Writer) {
	fmt.Fprintf(w, "%q\t\t= Title\n", cp.Title)
	fmt.Fprintf(w, "[%s]\t= Problem\n", cp.Problem)
	fmt.Fprintf(w, "%v cells in [%v, %v]\t= Mesh\n", cp.Mesh.N, cp.Mesh.Min, cp.Mesh.Max)
	fmt.Fprintf(w, "[%d]\t\t\t= Ranks\n", cp.Parallel.NP)
	for _, block := range []struct {
		name string
		d    dict.Dict
	}{{"time", cp.Time}, {"fields", cp.Fields}, {"models", cp.Models}} {
		keys := make([]string, 0, len(block.d))
		for k := range block.d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "%s[%s] = %v\n", block.name, key, block.d[key])
		}
	}
}
