package linsolve

import (
	"fmt"

	"github.com/notargets/gofvm/dict"
)

const (
	DefaultMaxIter   = 1000
	DefaultTolerance = 1e-6
)

// Controls are the per-field solver settings read from solvers.<field>
type Controls struct {
	Solver         string
	Preconditioner string
	Smoother       string
	Tolerance      float64
	RelTol         float64
	MinIter        int
	MaxIter        int
	NSweeps        int
}

func ReadControls(d dict.Dict) (c Controls, err error) {
	if c.Solver, err = d.String("solver"); err != nil {
		return c, fmt.Errorf("solver controls: %w", err)
	}
	if pd, perr := d.SubDict("preconditioner"); perr == nil {
		c.Preconditioner = pd.StringDefault("preconditioner", "none")
	} else {
		c.Preconditioner = d.StringDefault("preconditioner", "none")
	}
	c.Smoother = d.StringDefault("smoother", "GaussSeidel")
	if c.Tolerance, err = d.FloatDefault("tolerance", DefaultTolerance); err != nil {
		return c, fmt.Errorf("solver controls: %w", err)
	}
	if c.RelTol, err = d.FloatDefault("relTol", 0); err != nil {
		return c, fmt.Errorf("solver controls: %w", err)
	}
	if c.MinIter, err = d.IntDefault("minIter", 0); err != nil {
		return c, fmt.Errorf("solver controls: %w", err)
	}
	if c.MaxIter, err = d.IntDefault("maxIter", DefaultMaxIter); err != nil {
		return c, fmt.Errorf("solver controls: %w", err)
	}
	if c.NSweeps, err = d.IntDefault("nSweeps", 1); err != nil {
		return c, fmt.Errorf("solver controls: %w", err)
	}
	switch {
	case c.Tolerance < 0 || c.RelTol < 0:
		err = fmt.Errorf("solver controls: negative tolerance %g or relTol %g", c.Tolerance, c.RelTol)
	case c.MinIter < 0 || c.MaxIter < c.MinIter:
		err = fmt.Errorf("solver controls: need 0 <= minIter <= maxIter, have %d, %d", c.MinIter, c.MaxIter)
	case c.NSweeps < 1:
		err = fmt.Errorf("solver controls: nSweeps must be positive, have %d", c.NSweeps)
	}
	return
}

// FieldControls finds the controls for field in the solvers dictionary,
// using <field>Final for the final corrector when present. Keys may be
// regular expressions.
func FieldControls(solvers dict.Dict, field string, final bool) (c Controls, err error) {
	var (
		sd dict.Dict
	)
	if final {
		sd, err = solvers.SubDictPattern(field + "Final")
	}
	if !final || err != nil {
		if sd, err = solvers.SubDictPattern(field); err != nil {
			return c, fmt.Errorf("solver controls for %s: %w", field, err)
		}
	}
	if c, err = ReadControls(sd); err != nil {
		return c, fmt.Errorf("field %s: %w", field, err)
	}
	return
}
