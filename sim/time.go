// Package sim advances simulation time: the time step sequence the ddt
// schemes read, the run loop, and the write schedule.
package sim

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/utils"
)

// Controls is the time block of a case
type Controls struct {
	StartTime     float64 `dict:"startTime"`
	EndTime       float64 `dict:"endTime"`
	DeltaT        float64 `dict:"deltaT"`
	WriteInterval float64 `dict:"writeInterval"` // simulation time between writes, 0 writes only the end
	// MaxSteps bounds the number of steps, 0 for no bound
	MaxSteps int `dict:"maxSteps"`
}

func DecodeControls(d dict.Dict) (c Controls, err error) {
	if err = d.Decode(&c); err != nil {
		return c, fmt.Errorf("time controls: %w", err)
	}
	return c, c.validate()
}

func (c Controls) validate() error {
	switch {
	case c.DeltaT <= 0:
		return fmt.Errorf("time controls: deltaT must be positive, have %g", c.DeltaT)
	case c.EndTime < c.StartTime:
		return fmt.Errorf("time controls: endTime %g before startTime %g", c.EndTime, c.StartTime)
	case c.WriteInterval < 0:
		return fmt.Errorf("time controls: negative writeInterval %g", c.WriteInterval)
	}
	return nil
}

// Time is the current simulation time and the last two time steps
type Time struct {
	Controls
	value, dt, dt0 float64
	index          int
	lastWrite      float64
}

func NewTime(c Controls) (*Time, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Time{Controls: c, value: c.StartTime, dt: c.DeltaT, dt0: c.DeltaT, lastWrite: c.StartTime}, nil
}

func (t *Time) Value() float64   { return t.value }
func (t *Time) Index() int       { return t.index }
func (t *Time) DeltaT() float64  { return t.dt }
func (t *Time) DeltaT0() float64 { return t.dt0 }
func (t *Time) Name() string     { return fields.TimeName(t.value) }

// tol is the rounding allowance on time comparisons
func (t *Time) tol() float64 { return 1e-9 * t.DeltaT() }

// Running reports whether there are steps left
func (t *Time) Running() bool {
	if t.MaxSteps > 0 && t.index >= t.MaxSteps {
		return false
	}
	return t.value < t.EndTime-t.tol()
}

// Advance moves to the next time level. The last step is shortened to land
// on the end time.
func (t *Time) Advance() {
	dt := t.Controls.DeltaT
	if rest := t.EndTime - t.value; dt > rest && rest > t.tol() {
		dt = rest
	}
	if t.index > 0 {
		t.dt0 = t.dt
	} else {
		t.dt0 = dt
	}
	t.dt = dt
	t.value += dt
	t.index++
}

// WriteTime reports whether the current time is due for output
func (t *Time) WriteTime() bool {
	if !t.Running() {
		return true
	}
	if t.WriteInterval <= 0 {
		return false
	}
	return t.value-t.lastWrite >= t.WriteInterval-t.tol()
}

// Loop runs the time loop on m: it shifts the time levels of the scalar
// fields registered on m, calls step, and writes the registered fields to
// caseDir at write times. A cancelled context stops the loop before the next
// step.
func (t *Time) Loop(ctx context.Context, m *mesh.Mesh, caseDir string, step func() error) error {
	log := utils.RankLogger(m.Comm.Rank())
	for t.Running() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.Advance()
		log.Debug("time step", zap.Int("step", t.index), zap.Float64("time", t.value),
			zap.Float64("deltaT", t.dt))
		for _, name := range m.Names() {
			if f, ok := lookupScalar(m, name); ok {
				f.StoreOldTimes()
			}
		}
		if err := step(); err != nil {
			return fmt.Errorf("time %s: %w", t.Name(), err)
		}
		if caseDir != "" && t.WriteTime() {
			if err := fields.WriteRegistered(m, caseDir, t.value); err != nil {
				return err
			}
			t.lastWrite = t.value
			log.Info("wrote fields", zap.String("time", t.Name()))
		}
	}
	return nil
}

func lookupScalar(m *mesh.Mesh, name string) (*fields.VolScalarField, bool) {
	obj, ok := m.Lookup(name)
	if !ok {
		return nil, false
	}
	f, ok := obj.(*fields.VolScalarField)
	return f, ok
}
