package types

import "math"

const (
	Small  = 1.e-15
	VSmall = 1.e-300
	Great  = 1.e15
	VGreat = 1.e300
)

type Vector [3]float64

var Zero = Vector{}

func (a Vector) Add(b Vector) Vector   { return Vector{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a Vector) Sub(b Vector) Vector   { return Vector{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a Vector) Scale(s float64) Vector { return Vector{s * a[0], s * a[1], s * a[2]} }
func (a Vector) Dot(b Vector) float64  { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a Vector) Mag() float64          { return math.Sqrt(a.Dot(a)) }
func (a Vector) MagSqr() float64       { return a.Dot(a) }

func (a Vector) Cross(b Vector) Vector {
	return Vector{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Unit returns a/|a|, or the zero vector when |a| is below VSmall.
func (a Vector) Unit() Vector {
	m := a.Mag()
	if m < VSmall {
		return Zero
	}
	return a.Scale(1. / m)
}

// Outer returns the dyadic product a b as a row-major 3x3 array
func (a Vector) Outer(b Vector) (t [9]float64) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[3*i+j] = a[i] * b[j]
		}
	}
	return
}
