// Package dict holds the nested keyword/value dictionaries used to configure
// schemes, solvers, boundary conditions and physical models.
package dict

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

var ErrNotFound = errors.New("keyword not found")

// Dict is a nested keyword dictionary, as produced by unmarshalling YAML
type Dict map[string]interface{}

func Parse(data []byte) (d Dict, err error) {
	d = Dict{}
	if err = yaml.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return
}

func asDict(v interface{}) (Dict, bool) {
	switch vv := v.(type) {
	case Dict:
		return vv, true
	case map[string]interface{}:
		return Dict(vv), true
	case map[interface{}]interface{}:
		d := make(Dict, len(vv))
		for k, val := range vv {
			d[fmt.Sprint(k)] = val
		}
		return d, true
	}
	return nil, false
}

func (d Dict) Found(key string) bool {
	_, ok := d[key]
	return ok
}

func (d Dict) Lookup(key string) (v interface{}, err error) {
	var ok bool
	if v, ok = d[key]; !ok {
		err = fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return
}

// LookupPattern finds key exactly, then tries the keys that are regular
// expressions (in sorted order) for a full match.
func (d Dict) LookupPattern(key string) (v interface{}, err error) {
	if v, ok := d[key]; ok {
		return v, nil
	}
	for _, k := range d.Keys() {
		if MatchKey(k, key) {
			return d[k], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
}

// MatchKey reports whether key equals k, or fully matches k read as a
// regular expression
func MatchKey(k, key string) bool {
	if k == key {
		return true
	}
	re, err := regexp.Compile("^(?:" + k + ")$")
	return err == nil && re.MatchString(key)
}

func (d Dict) SubDict(key string) (Dict, error) {
	v, err := d.Lookup(key)
	if err != nil {
		return nil, err
	}
	sd, ok := asDict(v)
	if !ok {
		return nil, fmt.Errorf("keyword %q is not a dictionary", key)
	}
	return sd, nil
}

// SubDictPattern is SubDict with LookupPattern semantics
func (d Dict) SubDictPattern(key string) (Dict, error) {
	v, err := d.LookupPattern(key)
	if err != nil {
		return nil, err
	}
	sd, ok := asDict(v)
	if !ok {
		return nil, fmt.Errorf("keyword %q is not a dictionary", key)
	}
	return sd, nil
}

// SubDictOrEmpty returns the named sub-dictionary, or an empty one
func (d Dict) SubDictOrEmpty(key string) Dict {
	sd, err := d.SubDict(key)
	if err != nil {
		return Dict{}
	}
	return sd
}

func (d Dict) String(key string) (string, error) {
	v, err := d.Lookup(key)
	if err != nil {
		return "", err
	}
	return cast.ToStringE(v)
}

func (d Dict) StringDefault(key, def string) string {
	if s, err := d.String(key); err == nil {
		return s
	}
	return def
}

func (d Dict) Float(key string) (float64, error) {
	v, err := d.Lookup(key)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("keyword %q: %w", key, err)
	}
	return f, nil
}

// FloatDefault is Float with def for a missing key. A malformed value is
// still an error.
func (d Dict) FloatDefault(key string, def float64) (float64, error) {
	f, err := d.Float(key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return f, err
}

func (d Dict) Int(key string) (int, error) {
	v, err := d.Lookup(key)
	if err != nil {
		return 0, err
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("keyword %q: %w", key, err)
	}
	return i, nil
}

func (d Dict) IntDefault(key string, def int) (int, error) {
	i, err := d.Int(key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return i, err
}

func (d Dict) Bool(key string) (bool, error) {
	v, err := d.Lookup(key)
	if err != nil {
		return false, err
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, fmt.Errorf("keyword %q: %w", key, err)
	}
	return b, nil
}

func (d Dict) BoolDefault(key string, def bool) (bool, error) {
	b, err := d.Bool(key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return b, err
}

// Floats reads a list of numbers, or a single number as a list of one
func (d Dict) Floats(key string) ([]float64, error) {
	v, err := d.Lookup(key)
	if err != nil {
		return nil, err
	}
	if f, ferr := cast.ToFloat64E(v); ferr == nil {
		return []float64{f}, nil
	}
	list, err := cast.ToSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("keyword %q: %w", key, err)
	}
	out := make([]float64, len(list))
	for i, item := range list {
		if out[i], err = cast.ToFloat64E(item); err != nil {
			return nil, fmt.Errorf("keyword %q entry %d: %w", key, i, err)
		}
	}
	return out, nil
}

func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode fills the struct pointed to by out from the dictionary, matching
// `dict` tags and converting weakly typed scalars. Unused keys are errors.
func (d Dict) Decode(out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "dict",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]interface{}(d))
}

// Merge returns a copy of d overlaid with the entries of o
func (d Dict) Merge(o Dict) Dict {
	r := make(Dict, len(d)+len(o))
	for k, v := range d {
		r[k] = v
	}
	for k, v := range o {
		r[k] = v
	}
	return r
}

// ParseFloat reads a number from a scheme or keyword token
func ParseFloat(s string) (float64, error) { return cast.ToFloat64E(s) }
