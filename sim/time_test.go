package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/types"
)

// Time drives the ddt schemes
var _ schemes.Time = (*Time)(nil)

func TestControls(t *testing.T) {
	c, err := DecodeControls(dict.Dict{"endTime": 1, "deltaT": "0.25", "writeInterval": 0.5})
	require.NoError(t, err)
	assert.Equal(t, Controls{EndTime: 1, DeltaT: 0.25, WriteInterval: 0.5}, c)

	for name, d := range map[string]dict.Dict{
		"no deltaT":      {"endTime": 1},
		"backwards":      {"startTime": 2, "endTime": 1, "deltaT": 0.1},
		"unknown key":    {"endTime": 1, "deltaT": 0.1, "CFL": 1},
		"negative write": {"endTime": 1, "deltaT": 0.1, "writeInterval": -1},
	} {
		_, err = DecodeControls(d)
		assert.Error(t, err, name)
	}
}

func TestAdvance(t *testing.T) {
	tm, err := NewTime(Controls{EndTime: 1, DeltaT: 0.3, WriteInterval: 0.6})
	require.NoError(t, err)
	var (
		values, dts, dt0s []float64
		writes            []bool
	)
	for tm.Running() {
		tm.Advance()
		values = append(values, tm.Value())
		dts = append(dts, tm.DeltaT())
		dt0s = append(dt0s, tm.DeltaT0())
		w := tm.WriteTime()
		writes = append(writes, w)
		if w {
			tm.lastWrite = tm.Value()
		}
	}
	assert.InDeltaSlice(t, []float64{0.3, 0.6, 0.9, 1}, values, 1e-12)
	assert.InDeltaSlice(t, []float64{0.3, 0.3, 0.3, 0.1}, dts, 1e-12)
	assert.InDeltaSlice(t, []float64{0.3, 0.3, 0.3, 0.3}, dt0s, 1e-12)
	assert.Equal(t, []bool{false, true, false, true}, writes)
	assert.Equal(t, 4, tm.Index())
	assert.Equal(t, "1", tm.Name())

	tm, err = NewTime(Controls{EndTime: 10, DeltaT: 1, MaxSteps: 3})
	require.NoError(t, err)
	for tm.Running() {
		tm.Advance()
	}
	assert.Equal(t, 3., tm.Value())
}

func TestLoop(t *testing.T) {
	m, err := mesh.NewBlock(mesh.BlockSpec{N: [3]int{2, 1, 1}, Max: types.Vector{1, 1, 1}})
	require.NoError(t, err)
	T, err := fields.NewUniformVolScalarField("T", m, types.DimTemperature, 0,
		dict.Dict{".*": dict.Dict{"type": "zeroGradient"}})
	require.NoError(t, err)
	T.Register()

	tm, err := NewTime(Controls{EndTime: 0.4, DeltaT: 0.1, WriteInterval: 0.2})
	require.NoError(t, err)
	dir := t.TempDir()
	var steps int
	err = tm.Loop(context.Background(), m, dir, func() error {
		steps++
		// The previous level was stored before the step
		assert.Equal(t, float64(steps-1), T.OldTime(1)[0])
		for c := range T.Internal {
			T.Internal[c] = float64(steps)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, steps)
	times, err := fields.Times(dir)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 0.4}, times, 1e-12)
	back, err := fields.ReadVolScalarField(m, dir, "T", 0.4)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4}, back.Internal)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tm, _ = NewTime(Controls{EndTime: 0.4, DeltaT: 0.1})
	err = tm.Loop(ctx, m, "", func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	boom := errors.New("boom")
	tm, _ = NewTime(Controls{EndTime: 0.4, DeltaT: 0.1})
	err = tm.Loop(context.Background(), m, "", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "time 0.1")
}
