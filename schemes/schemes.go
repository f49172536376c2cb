// Package schemes holds the discretisation schemes selected per term from
// the schemes dictionary: face interpolation (with TVD limiters), cell
// gradients, face normal gradients and time derivatives.
//
// A scheme entry is a string of tokens, the first naming the scheme and the
// rest its parameters, e.g.
//
//	divSchemes:
//	  default: none
//	  div(phi,T): bounded Gauss limitedLinear 1
package schemes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
)

// ErrNoEntry is returned by Lookup when neither the term nor a default is
// given
var ErrNoEntry = errors.New("no scheme entry")

// Sections of the schemes dictionary
const (
	DdtSchemes           = "ddtSchemes"
	GradSchemes          = "gradSchemes"
	DivSchemes           = "divSchemes"
	LaplacianSchemes     = "laplacianSchemes"
	InterpolationSchemes = "interpolationSchemes"
	SnGradSchemes        = "snGradSchemes"
)

// FvSchemes looks up scheme tokens by term key, falling back to the section
// default
type FvSchemes struct {
	d dict.Dict
}

func NewFvSchemes(d dict.Dict) *FvSchemes {
	if d == nil {
		d = dict.Dict{}
	}
	return &FvSchemes{d: d}
}

// Lookup returns the tokens for term in section. The entry "none" means the
// term has no scheme and is an error.
func (s *FvSchemes) Lookup(section, term string) (tokens []string, err error) {
	sd, err := s.d.SubDict(section)
	if err != nil {
		return nil, fmt.Errorf("schemes: %w for %s: %w", ErrNoEntry, term, err)
	}
	entry, err := sd.String(term)
	if err != nil {
		if entry, err = sd.String("default"); err != nil {
			return nil, fmt.Errorf("schemes: %w for %s in %s and no default", ErrNoEntry, term, section)
		}
	}
	tokens = strings.Fields(entry)
	if len(tokens) == 0 || tokens[0] == "none" {
		return nil, fmt.Errorf("schemes: %s entry for %s is %q", section, term, entry)
	}
	return
}

// Time is what the time derivative schemes need from the run time
type Time interface {
	DeltaT() float64
	DeltaT0() float64
}

// Args carries what scheme constructors need. Tokens are the scheme
// parameters following its name.
type Args struct {
	Mesh    *mesh.Mesh
	Schemes *FvSchemes
	Flux    *fields.SurfaceScalarField
	Time    Time
	Tokens  []string
	// Field names the field being discretised, empty if unknown
	Field string
}

func (a Args) with(tokens []string) Args {
	a.Tokens = tokens
	return a
}

func (a Args) schemes() *FvSchemes {
	if a.Schemes == nil {
		return NewFvSchemes(nil)
	}
	return a.Schemes
}

// flux returns the face flux given in the args, or the surface field named
// by the first token
func (a Args) flux(scheme string) (*fields.SurfaceScalarField, error) {
	if a.Flux != nil {
		return a.Flux, nil
	}
	if len(a.Tokens) > 0 {
		if obj, ok := a.Mesh.Lookup(a.Tokens[0]); ok {
			if phi, ok := obj.(*fields.SurfaceScalarField); ok {
				return phi, nil
			}
		}
	}
	return nil, fmt.Errorf("%s needs a face flux", scheme)
}

func param(scheme string, tokens []string, i int) (v float64, err error) {
	if i >= len(tokens) {
		return 0, fmt.Errorf("%s: missing parameter %d", scheme, i+1)
	}
	if v, err = dict.ParseFloat(tokens[i]); err != nil {
		return 0, fmt.Errorf("%s: parameter %q: %w", scheme, tokens[i], err)
	}
	return
}
