package fvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/types"
)

type fixedTime float64

func (t fixedTime) DeltaT() float64  { return float64(t) }
func (t fixedTime) DeltaT0() float64 { return float64(t) }

func channel(t *testing.T) *mesh.Mesh {
	m, err := mesh.NewBlock(mesh.BlockSpec{
		N:   [3]int{4, 1, 1},
		Max: types.Vector{1, 1, 1},
		Types: map[string]types.PatchType{
			"left": types.Patch_Generic, "right": types.Patch_Generic,
			"bottom": types.Patch_Empty, "top": types.Patch_Empty,
			"back": types.Patch_Empty, "front": types.Patch_Empty,
		},
	})
	require.NoError(t, err)
	return m
}

func fixedEnds(left, right float64) dict.Dict {
	return dict.Dict{
		"left":  dict.Dict{"type": "fixedValue", "value": left},
		"right": dict.Dict{"type": "fixedValue", "value": right},
	}
}

func testArgs() schemes.Args {
	return schemes.Args{
		Schemes: schemes.NewFvSchemes(dict.Dict{
			schemes.DdtSchemes:           dict.Dict{"default": "Euler"},
			schemes.GradSchemes:          dict.Dict{"default": "Gauss linear"},
			schemes.DivSchemes:           dict.Dict{"default": "none", "div(phi,T)": "Gauss upwind"},
			schemes.LaplacianSchemes:     dict.Dict{"default": "Gauss linear corrected"},
			schemes.InterpolationSchemes: dict.Dict{"default": "linear"},
			schemes.SnGradSchemes:        dict.Dict{"default": "corrected"},
		}),
		Time: fixedTime(0.1),
	}
}

func TestFluxAndDiv(t *testing.T) {
	m := channel(t)
	U, err := fields.NewUniformVolVectorField("U", m, types.DimVelocity, types.Vector{2, 0, 0}, dict.Dict{
		"left":  dict.Dict{"type": "fixedValue", "value": []interface{}{2., 0., 0.}},
		"right": dict.Dict{"type": "zeroGradient"},
	})
	require.NoError(t, err)
	U.CorrectBoundaryConditions()
	phi := Flux(U)
	assert.Equal(t, types.DimFlux, phi.Dimensions)
	assert.InDeltaSlice(t, []float64{2, 2, 2}, phi.Internal, 1e-12)
	assert.InDeltaSlice(t, []float64{-2}, phi.Boundary[0], 1e-12)
	assert.InDeltaSlice(t, []float64{2}, phi.Boundary[1], 1e-12)

	div := Div(phi)
	assert.Equal(t, "div(phi)", div.Name)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, div.Internal, 1e-12, "uniform flow is divergence free")

	T, err := fields.NewUniformVolScalarField("T", m, types.DimTemperature, 3, fixedEnds(3, 3))
	require.NoError(t, err)
	divT, err := DivFlux(testArgs(), phi, T)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, divT.Internal, 1e-12)

	args := testArgs()
	phi.Name = "phiU"
	_, err = DivFlux(args, phi, T)
	assert.Error(t, err, "div(phiU,T) falls back to the none default")
}

func TestLaplacianAndSnGrad(t *testing.T) {
	var (
		m        = channel(t)
		internal = make([]float64, m.NCells)
	)
	for c := range internal {
		internal[c] = 4*m.C[c][0] + 0.5
	}
	T, err := fields.NewVolScalarField("T", m, types.DimTemperature, internal, fixedEnds(0.5, 4.5))
	require.NoError(t, err)

	sn, err := SnGrad(testArgs(), T)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, 4, 4}, sn.Internal, 1e-12)

	lap, err := Laplacian(testArgs(), schemes.UniformGamma("DT", types.DimViscosity, 2), T)
	require.NoError(t, err)
	assert.Equal(t, "laplacian(DT,T)", lap.Name)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0}, lap.Internal, 1e-10, "linear profile")
	assert.Equal(t, types.DimTemperature.Div(types.DimTime), lap.Dimensions)

	grad, err := Grad(testArgs(), T)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{4, 0, 0}, grad.Internal[2][:], 1e-12)

	Tf, err := Interpolate(testArgs(), T)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1.5, 2.5, 3.5}, Tf.Internal, 1e-12)
}

func TestDdtAndSums(t *testing.T) {
	m := channel(t)
	T, err := fields.NewUniformVolScalarField("T", m, types.DimTemperature, 1, fixedEnds(1, 1))
	require.NoError(t, err)
	T.StoreOldTimes()
	T.Internal[1] = 1.5
	ddt, err := Ddt(testArgs(), nil, T)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 5, 0, 0}, ddt.Internal, 1e-12)

	ones := fields.NewSurfaceScalarFieldFrom("one", m, types.DimLess, func(int) float64 { return 1 })
	assert.Equal(t, []float64{2, 2, 2, 2}, SurfaceSum(ones).Internal)
	// Owner faces count positive, so only the first cell is left unbalanced
	assert.InDeltaSlice(t, []float64{8, 0, 0, 0}, SurfaceIntegrate(ones).Internal, 1e-12)
}
