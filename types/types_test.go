package types

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypes(t *testing.T) {
	{
		tokens := []string{"WALL", "empty", " processor ", "symmetryPlane", "inlet"}
		types := []PatchType{Patch_Wall, Patch_Empty, Patch_Processor, Patch_Symmetry, Patch_Generic}
		for i, token := range tokens {
			pt, err := NewPatchType(token)
			assert.NoError(t, err)
			assert.Equal(t, types[i], pt)
		}
		_, err := NewPatchType("cyclicAMI")
		assert.Error(t, err)
		assert.True(t, Patch_Processor.Coupled())
		assert.False(t, Patch_Wall.Coupled())
	}
}

func TestDimensions(t *testing.T) {
	assert.Equal(t, "[0 2 -1 0 0 0 0]", DimViscosity.String())
	assert.True(t, DimFlux.Equal(DimVelocity.Mul(DimArea)))
	assert.True(t, DimVolume.Pow(1./3.).Equal(DimLength))
	assert.True(t, DimVelocity.Div(DimVelocity).Dimensionless())

	err := DimLength.Check(DimTime, "a + b")
	assert.True(t, errors.Is(err, ErrDimensions))
	assert.NoError(t, DimDensity.Check(NewDimensions(1, -3), "a + b"))
	assert.Panics(t, func() { NewDimensions(1, 2, 3, 4, 5, 6, 7, 8) })
}

func TestVector(t *testing.T) {
	a, b := Vector{1, 0, 0}, Vector{0, 1, 0}
	assert.Equal(t, Vector{0, 0, 1}, a.Cross(b))
	assert.Equal(t, 0., a.Dot(b))
	assert.InDelta(t, math.Sqrt(2), a.Add(b).Mag(), 1.e-14)
	assert.Equal(t, Zero, Zero.Unit())
	assert.InDelta(t, 1., Vector{3, 4, 12}.Unit().Mag(), 1.e-14)
	o := a.Outer(b)
	assert.Equal(t, 1., o[1])
}
