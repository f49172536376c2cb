package fields

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/parallel"
	"github.com/notargets/gofvm/types"
)

const (
	ClassVolScalar = "volScalarField"
	ClassVolVector = "volVectorField"
)

// fieldFile is the on-disk form of a vol field. internalField is a single
// value for a uniform field, otherwise a list with one entry per cell.
type fieldFile struct {
	Name          string    `yaml:"name"`
	Class         string    `yaml:"class"`
	Time          float64   `yaml:"time"`
	Dimensions    []float64 `yaml:"dimensions,flow"`
	InternalField yaml.Node `yaml:"internalField"`
	BoundaryField dict.Dict `yaml:"boundaryField"`
}

// TimeName is the directory name for simulation time t
func TimeName(t float64) string { return strconv.FormatFloat(t, 'g', 6, 64) }

// CaseDir is the directory a rank reads and writes its fields in
func CaseDir(root string, comm parallel.Comm) string {
	if comm == nil || !comm.Parallel() {
		return root
	}
	return ProcessorDir(root, comm.Rank())
}

func ProcessorDir(root string, rank int) string {
	return filepath.Join(root, fmt.Sprintf("processor%d", rank))
}

// FieldPath is <caseDir>/<time>/<name>
func FieldPath(caseDir string, t float64, name string) string {
	return filepath.Join(caseDir, TimeName(t), name)
}

// Times lists the time directories under caseDir in increasing order
func Times(caseDir string) (times []float64, err error) {
	entries, err := os.ReadDir(caseDir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if t, perr := strconv.ParseFloat(e.Name(), 64); perr == nil {
			times = append(times, t)
		}
	}
	sort.Float64s(times)
	return
}

func boundaryEntries(m *mesh.Mesh, entries func(i int) dict.Dict) dict.Dict {
	bf := make(dict.Dict, len(m.Patches))
	for i, p := range m.Patches {
		bf[p.Name] = map[string]interface{}(entries(i))
	}
	return bf
}

func writeFieldFile(path string, ff *fieldFile, internal interface{}) (err error) {
	if err = ff.InternalField.Encode(internal); err != nil {
		return
	}
	if ff.InternalField.Kind == yaml.SequenceNode {
		ff.InternalField.Style = yaml.FlowStyle
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err = enc.Encode(ff); err != nil {
		return
	}
	if err = enc.Close(); err != nil {
		return
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func readFieldFile(path, class string, m *mesh.Mesh) (ff *fieldFile, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ff = &fieldFile{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(ff); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	switch {
	case ff.Class != class:
		return nil, fmt.Errorf("%w: %s: class %q, expected %q", ErrMalformed, path, ff.Class, class)
	case len(ff.Dimensions) != types.NDimensions:
		return nil, fmt.Errorf("%w: %s: %d dimension exponents", ErrMalformed, path, len(ff.Dimensions))
	case ff.InternalField.Kind == 0:
		return nil, fmt.Errorf("%w: %s: no internalField", ErrMalformed, path)
	}
	for _, key := range ff.BoundaryField.Keys() {
		if !matchesPatch(m, key) {
			return nil, fmt.Errorf("%w: %s: unknown patch %q", ErrMalformed, path, key)
		}
	}
	return
}

func matchesPatch(m *mesh.Mesh, key string) bool {
	for _, p := range m.Patches {
		if dict.MatchKey(key, p.Name) {
			return true
		}
	}
	return false
}

func (f *VolScalarField) Write(caseDir string, t float64) error {
	ff := &fieldFile{
		Name:          f.Name,
		Class:         ClassVolScalar,
		Time:          t,
		Dimensions:    f.Dimensions.Slice(),
		BoundaryField: boundaryEntries(f.Mesh, func(i int) dict.Dict { return f.Boundary[i].Entries() }),
	}
	return writeFieldFile(FieldPath(caseDir, t, f.Name), ff, compact(f.Internal))
}

// ReadVolScalarField reads field name at time t of caseDir, checking the
// class, sizes and patch names against m
func ReadVolScalarField(m *mesh.Mesh, caseDir, name string, t float64) (f *VolScalarField, err error) {
	path := FieldPath(caseDir, t, name)
	ff, err := readFieldFile(path, ClassVolScalar, m)
	if err != nil {
		return nil, err
	}
	var internal []float64
	switch ff.InternalField.Kind {
	case yaml.ScalarNode:
		var v float64
		if err = ff.InternalField.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %s: internalField: %v", ErrMalformed, path, err)
		}
		internal = uniform(m.NCells, v)
	default:
		if err = ff.InternalField.Decode(&internal); err != nil {
			return nil, fmt.Errorf("%w: %s: internalField: %v", ErrMalformed, path, err)
		}
	}
	return NewVolScalarField(name, m, types.NewDimensions(ff.Dimensions...), internal, ff.BoundaryField)
}

func (f *VolVectorField) Write(caseDir string, t float64) error {
	ff := &fieldFile{
		Name:          f.Name,
		Class:         ClassVolVector,
		Time:          t,
		Dimensions:    f.Dimensions.Slice(),
		BoundaryField: boundaryEntries(f.Mesh, func(i int) dict.Dict { return f.Boundary[i].Entries() }),
	}
	return writeFieldFile(FieldPath(caseDir, t, f.Name), ff, compactVectors(f.Internal))
}

func ReadVolVectorField(m *mesh.Mesh, caseDir, name string, t float64) (f *VolVectorField, err error) {
	path := FieldPath(caseDir, t, name)
	ff, err := readFieldFile(path, ClassVolVector, m)
	if err != nil {
		return nil, err
	}
	var raw interface{}
	if err = ff.InternalField.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: internalField: %v", ErrMalformed, path, err)
	}
	internal, err := parseVectors(raw, m.NCells, "internalField")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewVolVectorField(name, m, types.NewDimensions(ff.Dimensions...), internal, ff.BoundaryField)
}

// WriteRegistered writes every vol field registered on m
func WriteRegistered(m *mesh.Mesh, caseDir string, t float64) (err error) {
	for _, name := range m.Names() {
		obj, _ := m.Lookup(name)
		switch f := obj.(type) {
		case *VolScalarField:
			err = f.Write(caseDir, t)
		case *VolVectorField:
			err = f.Write(caseDir, t)
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return
}
