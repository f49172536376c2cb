package model_problems

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/notargets/gofvm/InputParameters"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/registry"
)

const channel = `
mesh:
  n: [12, 1, 1]
  max: [1, 0.1, 0.1]
  patches: {left: inlet, right: outlet, bottom: empty, top: empty, back: empty, front: empty}
`

func caseParams(t *testing.T, text string, np int) *InputParameters.CaseParameters {
	cp := &InputParameters.CaseParameters{}
	require.NoError(t, cp.Parse([]byte(channel+text)))
	cp.Parallel.NP = np
	return cp
}

// run solves the case and reads back the named fields at the end time
func run(t *testing.T, cp *InputParameters.CaseParameters, end float64, names ...string) [][]float64 {
	dir := t.TempDir()
	require.NoError(t, Run(context.Background(), cp, dir))
	m, err := cp.NewMesh()
	require.NoError(t, err)
	out := make([][]float64, len(names))
	for i, name := range names {
		f, err := fields.ReadVolScalarField(m, dir, name, end)
		require.NoError(t, err, name)
		out[i] = f.Internal
	}
	return out
}

const laplacianCase = `
problem: Laplacian
time: {endTime: 1, deltaT: 1}
schemes:
  ddtSchemes: {default: steadyState}
  laplacianSchemes: {default: Gauss linear corrected}
solution:
  solvers:
    T: {solver: PCG, preconditioner: DIC, tolerance: 1.0e-12}
models: {DT: 2, source: 0}
fields:
  T:
    dimensions: [0, 0, 0, 1]
    value: 0
    boundaryField:
      left: {type: fixedValue, value: 0}
      right: {type: fixedValue, value: 1}
`

func TestLaplacian(t *testing.T) {
	defer goleak.VerifyNone(t)
	for _, np := range []int{1, 3} {
		T := run(t, caseParams(t, laplacianCase, np), 1, "T")[0]
		for c, v := range T {
			assert.InDelta(t, (float64(c)+0.5)/12, v, 1e-9, "np %d cell %d", np, c)
		}
	}
}

const transportCase = `
problem: ScalarTransport
time: {endTime: 0.2, deltaT: 0.02, writeInterval: 0.1}
schemes:
  ddtSchemes: {default: backward}
  gradSchemes: {default: Gauss linear}
  divSchemes: {default: none, "div(phi,T)": Gauss vanLeer}
  laplacianSchemes: {default: Gauss linear corrected}
solution:
  nCorrectors: 2
  solvers:
    T: {solver: PBiCGStab, preconditioner: DILU, tolerance: 1.0e-12}
    TFinal: {solver: smoothSolver, smoother: symGaussSeidel, tolerance: 1.0e-13, maxIter: 5000}
  relaxationFactors:
    equations: {T: 0.9}
models:
  viscosity: {type: Newtonian, nu: 1.0e-3}
fields:
  T:
    dimensions: [0, 0, 0, 1]
    value: 0
    boundaryField:
      left: {type: fixedValue, value: 1}
      right: {type: zeroGradient}
  U:
    dimensions: [0, 1, -1]
    value: [1, 0, 0]
    boundaryField:
      ".*": {type: fixedValue, value: [1, 0, 0]}
`

func TestScalarTransport(t *testing.T) {
	defer goleak.VerifyNone(t)
	serial := run(t, caseParams(t, transportCase, 1), 0.2, "T")[0]
	// The front has moved about 0.2 into the channel
	assert.Greater(t, serial[0], 0.7)
	assert.Less(t, serial[11], 0.01)
	for c := range serial {
		assert.True(t, serial[c] > -1e-3 && serial[c] < 1+1e-3, "bounded")
	}
	decomposed := run(t, caseParams(t, transportCase, 3), 0.2, "T")[0]
	assert.InDeltaSlice(t, serial, decomposed, 1e-9)
}

func TestScalarTransportWritesTimes(t *testing.T) {
	cp := caseParams(t, transportCase, 2)
	dir := t.TempDir()
	require.NoError(t, Run(context.Background(), cp, dir))
	for rank := 0; rank < 2; rank++ {
		times, err := fields.Times(fields.ProcessorDir(dir, rank))
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{0, 0.1, 0.2}, times, 1e-12)
	}
	// Reconstructed end time
	_, err := os.Stat(filepath.Join(dir, "0.2", "T"))
	assert.NoError(t, err)
}

const phaseCase = `
problem: PhaseExchange
time: {endTime: 0.05, deltaT: 0.005}
schemes:
  ddtSchemes: {default: Euler}
  divSchemes: {default: Gauss upwind}
  laplacianSchemes: {default: Gauss linear uncorrected}
solution:
  solvers:
    "U.*": {solver: diagonal}
    "T.*": {solver: PBiCGStab, preconditioner: DILU, tolerance: 1.0e-12}
models:
  phases: [air, water]
  air:
    rho: 1.2
    Cp: 1007
    kappa: 0.026
    d: 5.0e-3
    viscosity: {type: Newtonian, nu: 1.5e-5}
  water:
    rho: 1000
    Cp: 4180
    kappa: 0.6
    viscosity: {type: Newtonian, nu: 1.0e-6}
  phaseInteraction:
    air_in_water:
      drag: {type: SchillerNaumann}
      heatTransfer: {type: constantNusselt, Nu: 2}
fields:
  alpha.air:
    value: 0.05
    boundaryField: {".*": {type: zeroGradient}}
  T.air:
    dimensions: [0, 0, 0, 1]
    value: 350
    boundaryField:
      left: {type: fixedValue, value: 350}
      right: {type: zeroGradient}
  T.water:
    dimensions: [0, 0, 0, 1]
    value: 300
    boundaryField:
      left: {type: fixedValue, value: 300}
      right: {type: zeroGradient}
  U.air:
    dimensions: [0, 1, -1]
    value: [0, 0, 0]
    boundaryField: {".*": {type: fixedValue, value: [0.1, 0, 0]}}
  U.water:
    dimensions: [0, 1, -1]
    value: [0.1, 0, 0]
    boundaryField: {".*": {type: fixedValue, value: [0.1, 0, 0]}}
`

func TestPhaseExchange(t *testing.T) {
	defer goleak.VerifyNone(t)
	names := []string{"T.air", "T.water", "U.air.x"}
	serial := run(t, caseParams(t, phaseCase, 1), 0.05, names...)
	var (
		Ta, Tw, Ua = serial[0], serial[1], serial[2]
	)
	for c := range Ta {
		// Bubbles lose heat to the water, which warms only slightly
		assert.Less(t, Ta[c], 350.)
		assert.Greater(t, Ta[c], Tw[c])
		assert.Greater(t, Tw[c], 300.)
		assert.Less(t, Tw[c], 301.)
		// Drag accelerates the air towards the water velocity
		assert.Greater(t, Ua[c], 0.)
		assert.LessOrEqual(t, Ua[c], 0.1+1e-12)
	}
	decomposed := run(t, caseParams(t, phaseCase, 2), 0.05, names...)
	for i := range names {
		assert.InDeltaSlice(t, serial[i], decomposed[i], 1e-6, names[i])
	}
}

func TestRunCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, np := range []int{1, 2} {
		dir := t.TempDir()
		err := Run(ctx, caseParams(t, laplacianCase, np), dir)
		assert.ErrorIs(t, err, context.Canceled, "np %d", np)
		_, err = os.Stat(filepath.Join(dir, "1"))
		assert.True(t, os.IsNotExist(err), "np %d wrote the end time", np)
	}
}

func TestSetupErrors(t *testing.T) {
	for name, text := range map[string]string{
		"unknown problem": "problem: Poisson\ntime: {endTime: 1, deltaT: 1}\n",
		"no diffusivity":  "problem: Laplacian\ntime: {endTime: 1, deltaT: 1}\nmodels: {source: 1}\n",
		"no viscosity":    "problem: ScalarTransport\ntime: {endTime: 1, deltaT: 1}\n",
		"no phases":       "problem: PhaseExchange\ntime: {endTime: 1, deltaT: 1}\n",
		"no T field":      "problem: Laplacian\ntime: {endTime: 1, deltaT: 1}\nmodels: {DT: 1}\n",
		"no time":         "problem: Laplacian\nmodels: {DT: 1}\nfields: {T: {value: 0, boundaryField: {\".*\": {type: zeroGradient}}}}\n",
		"bad nCorrectors": "problem: Laplacian\ntime: {endTime: 1, deltaT: 1}\nmodels: {DT: 1}\nsolution: {nCorrectors: many}\n" +
			"fields: {T: {value: 0, boundaryField: {\".*\": {type: zeroGradient}}}}\n",
	} {
		err := Run(context.Background(), caseParams(t, text, 1), t.TempDir())
		assert.Error(t, err, name)
	}
	err := Run(context.Background(), caseParams(t, "problem: Poisson\n", 1), "")
	require.ErrorIs(t, err, registry.ErrUnknownType)
	for _, key := range Problems().Keys() {
		assert.Contains(t, err.Error(), key)
	}
	assert.Equal(t, []string{"Laplacian", "PhaseExchange", "ScalarTransport"}, Problems().Keys())
}
