package models

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/types"
)

func TestDrag(t *testing.T) {
	st, err := NewDrag(dict.Dict{"type": "Stokes"})
	require.NoError(t, err)
	assert.Equal(t, 24., st.CdRe(0.1))

	sn, err := NewDrag(dict.Dict{"type": "SchillerNaumann"})
	require.NoError(t, err)
	assert.InDelta(t, 24*(1+0.15*math.Pow(10, 0.687)), sn.CdRe(10), 1e-12)
	assert.InDelta(t, 0.44*2000, sn.CdRe(2000), 1e-12)
	// Nearly continuous at the switch
	assert.InDelta(t, sn.CdRe(1000), sn.CdRe(1000.0001), 0.5)

	cc, err := NewDrag(dict.Dict{"type": "constantCoefficient", "Cd": "0.5"})
	require.NoError(t, err)
	assert.Equal(t, "constantCoefficient", cc.Name())
	assert.InDelta(t, 5, cc.CdRe(10), 1e-12)

	_, err = NewDrag(dict.Dict{"type": "constantCoefficient"})
	assert.Error(t, err, "Cd is required")
	_, err = NewDrag(dict.Dict{"type": "Stokes", "Cd": 1})
	assert.Error(t, err, "unused coefficient")
	_, err = NewDrag(dict.Dict{"Cd": 1})
	assert.ErrorIs(t, err, dict.ErrNotFound)
	_, err = NewDrag(dict.Dict{"type": "Ergun"})
	require.ErrorIs(t, err, registry.ErrUnknownType)
	assert.Contains(t, err.Error(), "SchillerNaumann")
}

func TestHeatTransferAndViscosity(t *testing.T) {
	rm, err := NewHeatTransfer(dict.Dict{"type": "RanzMarshall"})
	require.NoError(t, err)
	assert.InDelta(t, 2+0.6*10*2, rm.Nu(100, 8), 1e-12)
	assert.Equal(t, 2., rm.Nu(0, 0.7))

	cn, err := NewHeatTransfer(dict.Dict{"type": "constantNusselt", "Nu": 3.5})
	require.NoError(t, err)
	assert.Equal(t, 3.5, cn.Nu(100, 8))

	nw, err := NewViscosity(dict.Dict{"type": "Newtonian", "nu": 1e-6})
	require.NoError(t, err)
	assert.Equal(t, 1e-6, nw.Nu(123))

	pl, err := NewViscosity(dict.Dict{"type": "powerLaw", "k": 1e-3, "n": 0.5, "nuMin": 1e-6, "nuMax": 1e-2})
	require.NoError(t, err)
	assert.InDelta(t, 1e-3/math.Sqrt(4), pl.Nu(4), 1e-15)
	assert.Equal(t, 1e-2, pl.Nu(0), "shear thinning is clipped at rest")
	assert.Equal(t, 1e-6, pl.Nu(1e9))

	_, err = NewViscosity(dict.Dict{"type": "powerLaw", "k": 1e-3, "n": 0.5, "nuMin": 1, "nuMax": 1e-2})
	assert.Error(t, err)
}

func TestStrainRate(t *testing.T) {
	m, err := mesh.NewBlock(mesh.BlockSpec{
		N:   [3]int{4, 4, 1},
		Max: types.Vector{1, 1, 1},
		Types: map[string]types.PatchType{
			"back": types.Patch_Empty, "front": types.Patch_Empty,
		},
	})
	require.NoError(t, err)
	// Simple shear U = (2y, 0, 0) has strain rate 2
	internal := make([]types.Vector, m.NCells)
	for c := range internal {
		internal[c] = types.Vector{2 * m.C[c][1], 0, 0}
	}
	U, err := fields.NewVolVectorField("U", m, types.DimVelocity, internal, dict.Dict{
		"bottom": dict.Dict{"type": "fixedValue", "value": []interface{}{0., 0., 0.}},
		"top":    dict.Dict{"type": "fixedValue", "value": []interface{}{2., 0., 0.}},
		".*":     dict.Dict{"type": "zeroGradient"},
	})
	require.NoError(t, err)
	U.CorrectBoundaryConditions()
	args := schemes.Args{Schemes: schemes.NewFvSchemes(dict.Dict{
		schemes.GradSchemes: dict.Dict{"default": "leastSquares"},
	})}
	sr, err := StrainRate(args, U)
	require.NoError(t, err)
	for c := range sr.Internal {
		assert.InDelta(t, 2, sr.Internal[c], 1e-10)
	}

	pl, err := NewViscosity(dict.Dict{"type": "powerLaw", "k": 1, "n": 2, "nuMin": 1e-3, "nuMax": 10})
	require.NoError(t, err)
	nu, err := ViscosityField("nu", pl, args, U)
	require.NoError(t, err)
	assert.Equal(t, types.DimViscosity, nu.Dimensions)
	assert.InDelta(t, 2, nu.Internal[5], 1e-10)
}

func phaseDict() dict.Dict {
	d, err := dict.Parse([]byte(`
phases: [air, water]
air:
  rho: 1.2
  Cp: 1007
  kappa: 0.026
  d: 3.0e-3
  viscosity: {type: Newtonian, nu: 1.5e-5}
water:
  rho: 1000
  Cp: 4180
  kappa: 0.6
  viscosity: {type: Newtonian, nu: 1.0e-6}
phaseInteraction:
  air_in_water:
    drag: {type: SchillerNaumann}
    heatTransfer: {type: RanzMarshall}
`))
	if err != nil {
		panic(err)
	}
	return d
}

func TestPhaseSystem(t *testing.T) {
	ps, err := NewPhaseSystem(phaseDict())
	require.NoError(t, err)
	require.Len(t, ps.Phases, 2)
	require.Len(t, ps.Pairs, 1)

	pp, err := ps.Pair("air", "water")
	require.NoError(t, err)
	assert.Equal(t, "air_in_water", pp.Name())
	_, err = ps.Pair("water", "air")
	assert.Error(t, err)

	var (
		Re = 0.1 * 3e-3 / 1e-6
		Pr = 1e-6 * 1000 * 4180 / 0.6
	)
	assert.InDelta(t, Re, pp.Re(0.1), 1e-9)
	assert.InDelta(t, Pr, ps.Phases[1].Pr(0), 1e-12)
	wantK := 0.75 * 24 * (1 + 0.15*math.Pow(Re, 0.687)) * 0.1 * 1000 * 1e-6 / 9e-6
	assert.InDelta(t, wantK, pp.K(0.1, 0.1), 1e-9*wantK)
	wantH := 6 * 0.1 * 0.6 * (2 + 0.6*math.Sqrt(Re)*math.Cbrt(Pr)) / 9e-6
	assert.InDelta(t, wantH, pp.H(0.1, 0.1), 1e-9*wantH)
	assert.Zero(t, pp.K(-0.01, 0.1), "negative fractions exchange nothing")

	m, err := mesh.NewBlock(mesh.BlockSpec{N: [3]int{2, 1, 1}, Max: types.Vector{1, 1, 1}})
	require.NoError(t, err)
	alpha := fields.NewCalculatedVolScalarField("alpha.air", m, types.DimLess, []float64{0.1, 0})
	K := pp.KField(alpha, []float64{0.1, 0.1})
	assert.Equal(t, DimMomentumExchange, K.Dimensions)
	assert.InDeltaSlice(t, []float64{wantK, 0}, K.Internal, 1e-9*wantK)
	H := pp.HField(alpha, []float64{0.1, 0.1})
	assert.Equal(t, "H.air_in_water", H.Name)
}

func TestPhaseSystemErrors(t *testing.T) {
	for name, edit := range map[string]func(d dict.Dict){
		"unknown pair phase": func(d dict.Dict) {
			d["phaseInteraction"] = dict.Dict{"oil_in_water": dict.Dict{}}
		},
		"self interaction": func(d dict.Dict) {
			d["phaseInteraction"] = dict.Dict{"water_in_water": dict.Dict{}}
		},
		"no diameter": func(d dict.Dict) {
			d["phaseInteraction"] = dict.Dict{"water_in_air": dict.Dict{}}
		},
		"missing phase": func(d dict.Dict) { delete(d, "water") },
		"no phases":     func(d dict.Dict) { d["phases"] = []interface{}{} },
		"twice":         func(d dict.Dict) { d["phases"] = []interface{}{"air", "air"} },
		"bad drag": func(d dict.Dict) {
			d["phaseInteraction"] = dict.Dict{"air_in_water": dict.Dict{"drag": dict.Dict{"type": "Ergun"}}}
		},
		"no viscosity": func(d dict.Dict) {
			d["air"] = dict.Dict{"rho": 1.2, "Cp": 1007, "kappa": 0.026, "d": 3e-3}
		},
		"unknown coefficient": func(d dict.Dict) {
			d["air"] = dict.Dict{"rho": 1.2, "Cp": 1007, "kappa": 0.026, "mu": 1,
				"viscosity": dict.Dict{"type": "Newtonian", "nu": 1}}
		},
	} {
		d := phaseDict()
		edit(d)
		_, err := NewPhaseSystem(d)
		assert.Error(t, err, name)
	}
	d := phaseDict()
	d["phaseInteraction"] = dict.Dict{"air_in_water": dict.Dict{"drag": dict.Dict{"type": "Ergun"}}}
	_, err := NewPhaseSystem(d)
	assert.True(t, errors.Is(err, registry.ErrUnknownType))
}
