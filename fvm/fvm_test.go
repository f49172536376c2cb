package fvm

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/linsolve"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/parallel"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/types"
)

type fixedTime float64

func (t fixedTime) DeltaT() float64  { return float64(t) }
func (t fixedTime) DeltaT0() float64 { return float64(t) }

var (
	dimT = types.DimTemperature
	DT   = schemes.UniformGamma("DT", types.DimViscosity, 0.1)
)

func block(t *testing.T, n [3]int, shear float64) *mesh.Mesh {
	sides := map[string]types.PatchType{
		"left":  types.Patch_Generic,
		"right": types.Patch_Generic,
		"back":  types.Patch_Empty,
		"front": types.Patch_Empty,
	}
	if n[1] == 1 {
		sides["bottom"] = types.Patch_Empty
		sides["top"] = types.Patch_Empty
	}
	m, err := mesh.NewBlock(mesh.BlockSpec{N: n, Max: types.Vector{1, 1, 1}, Shear: shear, Types: sides})
	require.NoError(t, err)
	return m
}

func testArgs(div string) schemes.Args {
	return schemes.Args{
		Schemes: schemes.NewFvSchemes(dict.Dict{
			schemes.DdtSchemes:       dict.Dict{"default": "Euler"},
			schemes.GradSchemes:      dict.Dict{"default": "Gauss linear"},
			schemes.DivSchemes:       dict.Dict{"default": "none", "div(phi,T)": div},
			schemes.LaplacianSchemes: dict.Dict{"default": "Gauss linear corrected"},
		}),
		Time: fixedTime(0.1),
	}
}

func field(t *testing.T, m *mesh.Mesh, value float64, boundary dict.Dict) *fields.VolScalarField {
	T, err := fields.NewUniformVolScalarField("T", m, dimT, value, boundary)
	require.NoError(t, err)
	return T
}

func fixedEnds(left, right float64) dict.Dict {
	return dict.Dict{
		"left":  dict.Dict{"type": "fixedValue", "value": left},
		"right": dict.Dict{"type": "fixedValue", "value": right},
		".*":    dict.Dict{"type": "zeroGradient"},
	}
}

func uniformFlux(m *mesh.Mesh, u float64) *fields.SurfaceScalarField {
	return fields.NewSurfaceScalarFieldFrom("phi", m, types.DimFlux, func(f int) float64 {
		return u * m.Sf[f][0]
	})
}

func controls(solver, precond string) linsolve.Controls {
	return linsolve.Controls{
		Solver:         solver,
		Preconditioner: precond,
		Smoother:       "GaussSeidel",
		Tolerance:      1e-12,
		MaxIter:        1000,
		NSweeps:        1,
	}
}

func outflow(phi *fields.SurfaceScalarField) []float64 { return surfaceSumSigned(phi) }

func TestConservation(t *testing.T) {
	var (
		m = block(t, [3]int{3, 3, 1}, 0.3)
		// An arbitrary, not divergence free, flux
		phi = fields.NewSurfaceScalarFieldFrom("phi", m, types.DimFlux, func(f int) float64 {
			return math.Sin(float64(f)) + 0.2
		})
		T = field(t, m, 1, dict.Dict{
			"left": dict.Dict{"type": "fixedValue", "value": 1},
			".*":   dict.Dict{"type": "zeroGradient"},
		})
	)
	for _, scheme := range []string{"Gauss upwind", "Gauss linear", "Gauss vanLeer", "Gauss linearUpwind grad(T)"} {
		M, err := Div(testArgs(scheme), phi, T)
		require.NoError(t, err, scheme)
		// The operator on a uniform field is the net outflow of each cell
		want := outflow(phi)
		res := M.Residual()
		for c := range res {
			assert.InDelta(t, -want[c], res[c], 1e-12, scheme)
		}
		assert.InDeltaSlice(t, want, outflow(M.Flux()), 1e-12, scheme)
	}
	// Diffusion of a uniform field vanishes on a non-orthogonal mesh
	L, err := Laplacian(testArgs("none"), DT, T)
	require.NoError(t, err)
	assert.InDeltaSlice(t, make([]float64, m.NCells), L.Residual(), 1e-12)
	assert.InDeltaSlice(t, make([]float64, m.NCells), outflow(L.Flux()), 1e-12)
}

func TestZeroForcing(t *testing.T) {
	var (
		m    = block(t, [3]int{3, 3, 1}, 0.3)
		T    = field(t, m, 0, dict.Dict{".*": dict.Dict{"type": "fixedValue", "value": 0}})
		phi  = uniformFlux(m, 1)
		args = testArgs("Gauss linear")
	)
	for c := range T.Internal {
		T.Internal[c] = float64(c%3) - 1
	}
	args.Schemes = schemes.NewFvSchemes(dict.Dict{
		schemes.DivSchemes:       dict.Dict{"div(phi,T)": "Gauss linear"},
		schemes.LaplacianSchemes: dict.Dict{"default": "Gauss linear uncorrected"},
	})
	M, err := Eqn(Div(args, phi, T)).Minus(Laplacian(args, DT, T)).Matrix()
	require.NoError(t, err)
	perf, err := M.Solve(controls("PBiCGStab", "DILU"))
	require.NoError(t, err)
	assert.True(t, perf.Converged)
	assert.InDeltaSlice(t, make([]float64, m.NCells), T.Internal, 1e-10)
}

func TestRelax(t *testing.T) {
	var (
		m    = block(t, [3]int{6, 1, 1}, 0)
		T    = field(t, m, 0.5, fixedEnds(0, 1))
		args = testArgs("Gauss upwind")
	)
	build := func() *Matrix {
		M, err := Eqn(Ddt(args, T)).Plus(Div(args, uniformFlux(m, 2), T)).Minus(Laplacian(args, DT, T)).Matrix()
		require.NoError(t, err)
		return M
	}
	M := build()
	require.NoError(t, M.Relax(1))
	ref := build()
	opt := cmpopts.EquateApprox(0, 0)
	assert.True(t, cmp.Equal(ref.DiagRO(), M.DiagRO(), opt))
	assert.True(t, cmp.Equal(ref.UpperRO(), M.UpperRO(), opt))
	assert.True(t, cmp.Equal(ref.LowerRO(), M.LowerRO(), opt))
	assert.Empty(t, cmp.Diff(ref.Source, M.Source))

	for _, alpha := range []float64{0, -0.5, 1.5} {
		assert.Error(t, M.Relax(alpha), alpha)
	}

	// Relaxation changes the matrix but not its residual at the current psi
	res0 := M.Residual()
	require.NoError(t, M.Relax(0.5))
	for c, d := range M.DiagRO() {
		assert.Greater(t, d, ref.DiagRO()[c])
	}
	assert.InDeltaSlice(t, res0, M.Residual(), 1e-12)

	// Factors by field name, regular expressions allowed
	M = build()
	require.NoError(t, M.RelaxDict(dict.Dict{"equations": dict.Dict{"(T|U)": 0.7}}))
	assert.NotEqual(t, ref.DiagRO(), M.DiagRO())
	assert.Error(t, build().RelaxDict(dict.Dict{"T": 2}))

	// A negative coefficient on an uncoupled patch counts by magnitude
	M = build()
	left := m.FindPatch("left")
	require.NotNil(t, left)
	c := left.FaceCells[0]
	M.InternalCoeffs[left.Index][0] = -10
	var (
		D0     = M.DiagRO()[c]
		sumOff = make([]float64, m.NCells)
	)
	M.SumMagOffDiag(sumOff)
	res0 = M.Residual()
	require.NoError(t, M.Relax(0.5))
	assert.InDelta(t, math.Max(D0+10, sumOff[c])/0.5+10, M.DiagRO()[c], 1e-12)
	assert.InDeltaSlice(t, res0, M.Residual(), 1e-12)
}

func TestSolveConstraints(t *testing.T) {
	m := block(t, [3]int{6, 1, 1}, 0)
	{
		T := field(t, m, 0, fixedEnds(0, 1))
		M, err := Laplacian(testArgs("none"), DT, T)
		require.NoError(t, err)
		M.Negate()
		M.SetValues([]int{2}, []float64{5})
		_, err = M.Solve(controls("PCG", "DIC"))
		require.NoError(t, err)
		assert.InDelta(t, 5, T.Internal[2], 1e-10)
		// Linear between the left wall and the fixed cell
		assert.InDelta(t, 3, T.Internal[1], 1e-8)
	}
	{
		T := field(t, m, 0, dict.Dict{".*": dict.Dict{"type": "zeroGradient"}})
		M, err := Laplacian(testArgs("none"), DT, T)
		require.NoError(t, err)
		M.Negate()
		M.SetReference(0, 2)
		_, err = M.Solve(controls("PCG", "DIC"))
		require.NoError(t, err)
		for c := range T.Internal {
			assert.InDelta(t, 2, T.Internal[c], 1e-8)
		}
	}
	{ // Fixed values make the reference a no-op
		T := field(t, m, 0, fixedEnds(1, 1))
		M, err := Laplacian(testArgs("none"), DT, T)
		require.NoError(t, err)
		diag := append([]float64(nil), M.DiagRO()...)
		M.SetReference(0, 2)
		assert.Equal(t, diag, M.DiagRO())
	}
}

func TestAssemble(t *testing.T) {
	m := block(t, [3]int{4, 1, 1}, 0)
	T := field(t, m, 0, fixedEnds(1, 3))
	M, err := Laplacian(testArgs("none"), DT, T)
	require.NoError(t, err)
	M.Negate()
	diag := append([]float64(nil), M.DiagRO()...)
	sys1, src1 := M.Assemble()
	sys2, src2 := M.Assemble()
	assert.Equal(t, sys1.Matrix.DiagRO(), sys2.Matrix.DiagRO())
	assert.Equal(t, src1, src2)
	assert.Equal(t, diag, M.DiagRO(), "assembly leaves the matrix as it was")
	// The fixed values enter the end cells only
	assert.NotZero(t, src1[0])
	assert.Zero(t, src1[1])
	assert.Zero(t, src1[2])
	assert.Greater(t, src1[3], src1[0])
	assert.Greater(t, sys1.Matrix.DiagRO()[0], diag[0])
}

func TestHAndA(t *testing.T) {
	var (
		m = block(t, [3]int{6, 1, 1}, 0)
		T = field(t, m, 0, fixedEnds(0, 1))
		S = fields.NewCalculatedVolScalarField("S", m, dimT.Div(types.DimTime), []float64{1, 1, 1, 1, 1, 1})
	)
	args := testArgs("Gauss upwind")
	M, err := Eqn(Div(args, uniformFlux(m, 1), T)).Minus(Laplacian(args, DT, T)).Equals(S).Matrix()
	require.NoError(t, err)
	_, err = M.Solve(controls("PBiCGStab", "DILU"))
	require.NoError(t, err)
	var (
		A = M.A()
		H = M.H()
	)
	for c := range T.Internal {
		assert.InDelta(t, T.Internal[c], H.Internal[c]/A.Internal[c], 1e-9)
	}
	assert.Equal(t, types.DimRate, A.Dimensions)
}

func TestImplicitSources(t *testing.T) {
	var (
		m    = block(t, [3]int{4, 1, 1}, 0)
		T    = field(t, m, 1, fixedEnds(1, 1))
		k    = fields.NewCalculatedVolScalarField("k", m, types.DimRate, []float64{2, 2, -2, 0})
		args = testArgs("none")
	)
	T.StoreOldTimes()
	M, err := Eqn(Ddt(args, T)).Plus(Sp(k, T), nil).Matrix()
	require.NoError(t, err)
	_, err = M.Solve(controls("diagonal", "none"))
	require.NoError(t, err)
	// Backward Euler decay T1 = T0/(1 + k dt)
	assert.InDeltaSlice(t, []float64{1 / 1.2, 1 / 1.2, 1 / 0.8, 1}, T.Internal, 1e-12)

	T.Internal = []float64{1, 1, 1, 1}
	SS := SuSp(k, T)
	assert.Equal(t, []float64{0.5, 0.5, 0, 0}, SS.DiagRO())
	assert.Equal(t, []float64{0, 0, 0.5, 0}, SS.Source)

	su := fields.NewCalculatedVolScalarField("su", m, dimT.Div(types.DimTime), []float64{4, 4, 4, 4})
	assert.Equal(t, []float64{-1, -1, -1, -1}, Su(su, T).Source)

	_, err = Eqn(Ddt(args, T)).Plus(Sp(fields.NewCalculatedVolScalarField("c", m, types.DimLess, make([]float64, 4)), T), nil).Matrix()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrDimensions))

	other := field(t, m, 1, fixedEnds(1, 1))
	_, err = Eqn(Ddt(args, T)).Plus(Ddt(args, other)).Matrix()
	assert.Error(t, err, "different fields")
}

func TestUnknownScheme(t *testing.T) {
	var (
		m = block(t, [3]int{4, 1, 1}, 0)
		T = field(t, m, 1, fixedEnds(1, 1))
	)
	_, err := Div(testArgs("Gauss cubic"), uniformFlux(m, 1), T)
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrUnknownType))
	assert.Contains(t, err.Error(), "vanLeer")

	phiU := uniformFlux(m, 1)
	phiU.Name = "phiU"
	_, err = Div(testArgs("Gauss upwind"), phiU, T)
	assert.Error(t, err, "no div(phiU,T) entry and default none")

	// A misspelt gradient scheme fails the operators that correct with it
	args := schemes.Args{
		Schemes: schemes.NewFvSchemes(dict.Dict{
			schemes.GradSchemes:      dict.Dict{"default": "bogusGrad"},
			schemes.DivSchemes:       dict.Dict{"div(phi,T)": "Gauss linearUpwind grad(T)"},
			schemes.LaplacianSchemes: dict.Dict{"default": "Gauss linear corrected"},
		}),
	}
	_, err = Div(args, uniformFlux(m, 1), T)
	require.Error(t, err)
	assert.True(t, errors.Is(err, registry.ErrUnknownType))
	assert.Contains(t, err.Error(), "leastSquares")
	_, err = Laplacian(args, DT, T)
	assert.True(t, errors.Is(err, registry.ErrUnknownType))
}

// solveTransport solves div(phi,T) - laplacian(DT,T) == 1 on the mesh of T
func solveTransport(T *fields.VolScalarField, div string) error {
	var (
		m    = T.Mesh
		args = testArgs(div)
		ones = make([]float64, m.NCells)
	)
	for c := range ones {
		ones[c] = 1
	}
	S := fields.NewCalculatedVolScalarField("S", m, dimT.Div(types.DimTime), ones)
	M, err := Eqn(Div(args, uniformFlux(m, 0.5), T)).Minus(Laplacian(args, DT, T)).Equals(S).Matrix()
	if err != nil {
		return err
	}
	_, err = M.Solve(controls("PBiCGStab", "DILU"))
	return err
}

func TestSerialMatchesDecomposed(t *testing.T) {
	defer goleak.VerifyNone(t)
	for _, div := range []string{"Gauss upwind", "Gauss linear", "Gauss limitedLinear 1"} {
		t.Run(div, func(t *testing.T) {
			g := block(t, [3]int{6, 2, 1}, 0.2)
			serial := field(t, g, 0, fixedEnds(0, 1))
			global := field(t, g, 0, fixedEnds(0, 1))
			require.NoError(t, solveTransport(serial, div))

			d, err := mesh.Decompose(g, 3)
			require.NoError(t, err)
			parts, err := fields.DecomposeVolScalarField(d, global)
			require.NoError(t, err)
			err = parallel.Run(context.Background(), d.NP, func(comm parallel.Comm) error {
				d.Mesh(comm)
				T := parts[comm.Rank()]
				T.CorrectBoundaryConditions()
				return solveTransport(T, div)
			})
			require.NoError(t, err)
			r, err := fields.ReconstructVolScalarField(d, parts)
			require.NoError(t, err)
			assert.InDeltaSlice(t, serial.Internal, r.Internal, 1e-8)
		})
	}
}
