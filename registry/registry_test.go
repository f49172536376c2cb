package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shape interface{ Area() float64 }

type square struct{ side float64 }

func (s square) Area() float64 { return s.side * s.side }

type circle struct{ r float64 }

func (c circle) Area() float64 { return 3 * c.r * c.r }

func newTable() *Registry[shape, float64] {
	r := New[shape, float64]("shape")
	r.MustRegister("square", func(a float64) (shape, error) { return square{a}, nil })
	r.MustRegister("circle", func(a float64) (shape, error) {
		if a < 0 {
			return nil, fmt.Errorf("negative radius %g", a)
		}
		return circle{a}, nil
	})
	return r
}

func TestCreate(t *testing.T) {
	r := newTable()
	s, err := r.Create("square", 2)
	require.NoError(t, err)
	assert.Equal(t, 4., s.Area())

	_, err = r.Create("triangle", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownType))
	var ute *UnknownTypeError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, []string{"circle", "square"}, ute.Valid)
	assert.Contains(t, err.Error(), "valid shape types are: circle, square")

	_, err = r.Create("circle", -1)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownType))
}

func TestRegister(t *testing.T) {
	r := newTable()
	err := r.Register("square", func(a float64) (shape, error) { return square{a}, nil })
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.Error(t, r.Register("", nil))
	assert.Error(t, r.Register("hexagon", nil))
	assert.Panics(t, func() { r.MustRegister("circle", nil) })

	assert.NoError(t, r.Alias("box", "square"))
	assert.Error(t, r.Alias("box", "square"))
	assert.Error(t, r.Alias("disc", "ellipse"))
	s, err := r.Create("box", 3)
	require.NoError(t, err)
	assert.Equal(t, 9., s.Area())
	assert.True(t, r.Has("box"))
	assert.Equal(t, []string{"circle", "square"}, r.Keys())
	assert.Equal(t, [][2]string{{"box", "square"}}, r.Aliases())
	assert.Equal(t, "shape", r.Kind())
}
