// Package models holds the physical models that close the transport
// equations: interphase drag and heat transfer, and the viscosity or
// diffusivity of a phase. Each kind has a registry keyed by the "type"
// entry of its dictionary; the remaining entries are the coefficients.
package models

import (
	"fmt"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/registry"
)

// Drag closes the momentum exchange between a dispersed and a continuous
// phase
type Drag interface {
	Name() string
	// CdRe is the drag coefficient times the particle Reynolds number
	CdRe(Re float64) float64
}

// HeatTransfer closes the energy exchange between a dispersed and a
// continuous phase
type HeatTransfer interface {
	Name() string
	Nu(Re, Pr float64) float64
}

// Viscosity gives the kinematic viscosity, or a diffusivity, of a phase at a
// strain rate
type Viscosity interface {
	Name() string
	Nu(strainRate float64) float64
}

var (
	drags         = newDragTable()
	heatTransfers = newHeatTransferTable()
	viscosities   = newViscosityTable()
)

func Drags() *registry.Registry[Drag, dict.Dict]                 { return drags }
func HeatTransfers() *registry.Registry[HeatTransfer, dict.Dict] { return heatTransfers }
func Viscosities() *registry.Registry[Viscosity, dict.Dict]      { return viscosities }

// create builds a model from a dictionary with a "type" entry
func create[T any](r *registry.Registry[T, dict.Dict], d dict.Dict) (t T, err error) {
	typ, err := d.String("type")
	if err != nil {
		return t, fmt.Errorf("%s model: %w", r.Kind(), err)
	}
	coeffs := make(dict.Dict, len(d))
	for k, v := range d {
		if k != "type" {
			coeffs[k] = v
		}
	}
	if t, err = r.Create(typ, coeffs); err != nil {
		return t, fmt.Errorf("%s model: %w", r.Kind(), err)
	}
	return t, nil
}

func NewDrag(d dict.Dict) (Drag, error)                 { return create(drags, d) }
func NewHeatTransfer(d dict.Dict) (HeatTransfer, error) { return create(heatTransfers, d) }
func NewViscosity(d dict.Dict) (Viscosity, error)       { return create(viscosities, d) }

func decode(name string, coeffs dict.Dict, out interface{}) error {
	if err := coeffs.Decode(out); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func requirePositive(name, key string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%s: %s must be positive, have %g", name, key, v)
	}
	return nil
}
