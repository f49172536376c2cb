package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/types"
)

var (
	// DimMomentumExchange is the drag coefficient per unit volume, kg/m^3/s
	DimMomentumExchange = types.DimDensity.Mul(types.DimRate)
	// DimHeatExchange is the heat transfer coefficient per unit volume, W/m^3/K
	DimHeatExchange = types.NewDimensions(1, -1, -3, -1)
)

// Phase is the material of one phase
type Phase struct {
	Name          string
	Rho           float64   `dict:"rho"`
	Cp            float64   `dict:"Cp"`
	Kappa         float64   `dict:"kappa"` // thermal conductivity
	D             float64   `dict:"d"`     // diameter when dispersed
	ViscosityDict dict.Dict `dict:"viscosity"`
	Viscosity     Viscosity `dict:"-"`
}

func newPhase(name string, d dict.Dict) (ph *Phase, err error) {
	ph = &Phase{Name: name}
	if err = d.Decode(ph); err != nil {
		return nil, fmt.Errorf("phase %s: %w", name, err)
	}
	for _, kv := range []struct {
		key string
		v   float64
	}{{"rho", ph.Rho}, {"Cp", ph.Cp}, {"kappa", ph.Kappa}} {
		if err = requirePositive("phase "+name, kv.key, kv.v); err != nil {
			return nil, err
		}
	}
	if ph.ViscosityDict == nil {
		return nil, fmt.Errorf("phase %s: no viscosity model", name)
	}
	if ph.Viscosity, err = NewViscosity(ph.ViscosityDict); err != nil {
		return nil, fmt.Errorf("phase %s: %w", name, err)
	}
	return ph, nil
}

// Pr is the Prandtl number at a strain rate
func (ph *Phase) Pr(sr float64) float64 {
	return ph.Viscosity.Nu(sr) * ph.Rho * ph.Cp / ph.Kappa
}

// PhasePair holds the interphase models of a dispersed phase in a
// continuous one. Either model may be nil.
type PhasePair struct {
	Dispersed    *Phase
	Continuous   *Phase
	Drag         Drag
	HeatTransfer HeatTransfer
}

func PairKey(dispersed, continuous string) string { return dispersed + "_in_" + continuous }

func (pp *PhasePair) Name() string { return PairKey(pp.Dispersed.Name, pp.Continuous.Name) }

// Re is the particle Reynolds number at a slip velocity magnitude
func (pp *PhasePair) Re(magUr float64) float64 {
	return magUr * pp.Dispersed.D / pp.Continuous.Viscosity.Nu(0)
}

// K is the momentum exchange coefficient per unit volume, so the drag force
// on the dispersed phase is K (Uc - Ud)
func (pp *PhasePair) K(alpha, magUr float64) float64 {
	if pp.Drag == nil {
		return 0
	}
	var (
		c = pp.Continuous
		d = pp.Dispersed.D
	)
	return 0.75 * pp.Drag.CdRe(pp.Re(magUr)) * math.Max(alpha, 0) * c.Rho * c.Viscosity.Nu(0) / (d * d)
}

// H is the heat transfer coefficient per unit volume, so the heat flow into
// the dispersed phase is H (Tc - Td)
func (pp *PhasePair) H(alpha, magUr float64) float64 {
	if pp.HeatTransfer == nil {
		return 0
	}
	var (
		c  = pp.Continuous
		d  = pp.Dispersed.D
		Nu = pp.HeatTransfer.Nu(pp.Re(magUr), c.Pr(0))
	)
	return 6 * math.Max(alpha, 0) * c.Kappa * Nu / (d * d)
}

// KField and HField evaluate K and H per cell for the dispersed volume
// fraction and slip velocity magnitude
func (pp *PhasePair) KField(alpha *fields.VolScalarField, magUr []float64) *fields.VolScalarField {
	return pp.field("K."+pp.Name(), DimMomentumExchange, alpha, magUr, pp.K)
}

func (pp *PhasePair) HField(alpha *fields.VolScalarField, magUr []float64) *fields.VolScalarField {
	return pp.field("H."+pp.Name(), DimHeatExchange, alpha, magUr, pp.H)
}

func (pp *PhasePair) field(name string, dims types.Dimensions, alpha *fields.VolScalarField, magUr []float64,
	fn func(alpha, magUr float64) float64) *fields.VolScalarField {
	vals := make([]float64, len(alpha.Internal))
	for c, a := range alpha.Internal {
		vals[c] = fn(a, magUr[c])
	}
	return fields.NewCalculatedVolScalarField(name, alpha.Mesh, dims, vals)
}

// PhaseSystem is the set of phases and the models between each ordered pair
type PhaseSystem struct {
	Phases []*Phase
	Pairs  []*PhasePair
}

// NewPhaseSystem reads
//
//	phases: [air, water]
//	air:   {rho: 1.2, Cp: 1007, kappa: 0.026, d: 3e-3, viscosity: {type: Newtonian, nu: 1.5e-5}}
//	water: {...}
//	phaseInteraction:
//	  air_in_water: {drag: {type: SchillerNaumann}, heatTransfer: {type: RanzMarshall}}
func NewPhaseSystem(d dict.Dict) (ps *PhaseSystem, err error) {
	v, err := d.Lookup("phases")
	if err != nil {
		return nil, fmt.Errorf("phase system: %w", err)
	}
	names, err := cast.ToStringSliceE(v)
	if err != nil || len(names) == 0 {
		return nil, fmt.Errorf("phase system: phases must be a list of names, have %v", v)
	}
	ps = &PhaseSystem{}
	for _, name := range names {
		if _, err = ps.Phase(name); err == nil {
			return nil, fmt.Errorf("phase system: phase %s listed twice", name)
		}
		var pd dict.Dict
		if pd, err = d.SubDict(name); err != nil {
			return nil, fmt.Errorf("phase system: %w", err)
		}
		var ph *Phase
		if ph, err = newPhase(name, pd); err != nil {
			return nil, err
		}
		ps.Phases = append(ps.Phases, ph)
	}
	interactions := d.SubDictOrEmpty("phaseInteraction")
	used := make(map[string]bool)
	for _, disp := range ps.Phases {
		for _, cont := range ps.Phases {
			key := PairKey(disp.Name, cont.Name)
			if disp == cont || !interactions.Found(key) {
				continue
			}
			used[key] = true
			var pp *PhasePair
			if pp, err = newPhasePair(disp, cont, interactions.SubDictOrEmpty(key)); err != nil {
				return nil, err
			}
			ps.Pairs = append(ps.Pairs, pp)
		}
	}
	for _, key := range interactions.Keys() {
		if !used[key] {
			return nil, fmt.Errorf("phase system: interaction %s does not name two of the phases %s",
				key, strings.Join(names, ", "))
		}
	}
	return ps, nil
}

func newPhasePair(disp, cont *Phase, d dict.Dict) (pp *PhasePair, err error) {
	pp = &PhasePair{Dispersed: disp, Continuous: cont}
	if disp.D <= 0 {
		return nil, fmt.Errorf("phase pair %s: dispersed phase needs a positive diameter d", pp.Name())
	}
	var sd dict.Dict
	if d.Found("drag") {
		if sd, err = d.SubDict("drag"); err == nil {
			pp.Drag, err = NewDrag(sd)
		}
		if err != nil {
			return nil, fmt.Errorf("phase pair %s: %w", pp.Name(), err)
		}
	}
	if d.Found("heatTransfer") {
		if sd, err = d.SubDict("heatTransfer"); err == nil {
			pp.HeatTransfer, err = NewHeatTransfer(sd)
		}
		if err != nil {
			return nil, fmt.Errorf("phase pair %s: %w", pp.Name(), err)
		}
	}
	return pp, nil
}

func (ps *PhaseSystem) Phase(name string) (*Phase, error) {
	for _, ph := range ps.Phases {
		if ph.Name == name {
			return ph, nil
		}
	}
	return nil, fmt.Errorf("phase system: no phase %s", name)
}

func (ps *PhaseSystem) Pair(dispersed, continuous string) (*PhasePair, error) {
	for _, pp := range ps.Pairs {
		if pp.Dispersed.Name == dispersed && pp.Continuous.Name == continuous {
			return pp, nil
		}
	}
	return nil, fmt.Errorf("phase system: no interaction %s", PairKey(dispersed, continuous))
}
