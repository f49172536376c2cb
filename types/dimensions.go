package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrDimensions is returned when two quantities of different physical
// dimensions are combined additively.
var ErrDimensions = errors.New("incompatible dimensions for operation")

const dimensionTol = 1.e-10

// Dimension exponents, SI base units
const (
	Mass = iota
	Length
	Time
	Temperature
	Moles
	Current
	LuminousIntensity
	NDimensions
)

type Dimensions [NDimensions]float64

var (
	DimLess         = Dimensions{}
	DimMass         = Dimensions{Mass: 1}
	DimLength       = Dimensions{Length: 1}
	DimTime         = Dimensions{Time: 1}
	DimTemperature  = Dimensions{Temperature: 1}
	DimArea         = DimLength.Mul(DimLength)
	DimVolume       = DimArea.Mul(DimLength)
	DimVelocity     = DimLength.Div(DimTime)
	DimAcceleration = DimVelocity.Div(DimTime)
	DimDensity      = DimMass.Div(DimVolume)
	DimFlux         = DimVolume.Div(DimTime)
	DimViscosity    = DimArea.Div(DimTime) // kinematic viscosity and diffusivities
	DimRate         = DimLess.Div(DimTime)
)

func NewDimensions(exps ...float64) (d Dimensions) {
	if len(exps) > NDimensions {
		panic(fmt.Errorf("too many dimension exponents: %d > %d", len(exps), NDimensions))
	}
	copy(d[:], exps)
	return
}

func (d Dimensions) Mul(o Dimensions) (r Dimensions) {
	for i := range d {
		r[i] = d[i] + o[i]
	}
	return
}

func (d Dimensions) Div(o Dimensions) (r Dimensions) {
	for i := range d {
		r[i] = d[i] - o[i]
	}
	return
}

func (d Dimensions) Pow(p float64) (r Dimensions) {
	for i := range d {
		r[i] = d[i] * p
	}
	return
}

func (d Dimensions) Equal(o Dimensions) bool {
	for i := range d {
		if math.Abs(d[i]-o[i]) > dimensionTol {
			return false
		}
	}
	return true
}

func (d Dimensions) Dimensionless() bool { return d.Equal(DimLess) }

// Check returns ErrDimensions wrapped with the operation name when d and o differ.
func (d Dimensions) Check(o Dimensions, op string) error {
	if !d.Equal(o) {
		return fmt.Errorf("%w %s: %s vs %s", ErrDimensions, op, d, o)
	}
	return nil
}

func (d Dimensions) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range d {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(fmt.Sprintf("%g", e))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Slice returns the exponents as a slice, used for field files.
func (d Dimensions) Slice() []float64 {
	s := make([]float64, NDimensions)
	copy(s, d[:])
	return s
}
