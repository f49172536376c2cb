package schemes

import (
	"fmt"
	"math"

	"github.com/notargets/gofvm/registry"
)

// Limiter maps the gradient ratio r of a face to the weight of the linear
// scheme: 0 is upwind, 1 is linear
type Limiter interface {
	Limit(r float64) float64
}

type LimiterFunc func(r float64) float64

func (lf LimiterFunc) Limit(r float64) float64 { return lf(r) }

var limiters = newLimiterTable()

func newLimiterTable() *registry.Registry[Limiter, []string] {
	fixed := func(lf LimiterFunc) registry.Constructor[Limiter, []string] {
		return func([]string) (Limiter, error) { return lf, nil }
	}
	return registry.New[Limiter, []string]("limiter").
		MustRegister("limitedLinear", newLimitedLinear).
		MustRegister("vanLeer", fixed(vanLeer)).
		MustRegister("Minmod", fixed(minmod)).
		MustRegister("SuperBee", fixed(superBee)).
		MustRegister("vanAlbada", fixed(vanAlbada)).
		MustRegister("MUSCL", fixed(muscl))
}

func Limiters() *registry.Registry[Limiter, []string] { return limiters }

func sign(x float64) float64 {
	if x >= 0 {
		return 1
	}
	return -1
}

// newLimitedLinear takes k in [0,1]; smaller k is closer to linear
func newLimitedLinear(tokens []string) (Limiter, error) {
	k, err := param("limitedLinear", tokens, 0)
	if err != nil {
		return nil, err
	}
	if k < 0 || k > 1 {
		return nil, fmt.Errorf("limitedLinear: coefficient %g outside [0,1]", k)
	}
	twoByK := 2 / math.Max(k, 1e-15)
	return LimiterFunc(func(r float64) float64 {
		return math.Max(math.Min(twoByK*r, 1), 0)
	}), nil
}

func vanLeer(r float64) float64 { return (r + math.Abs(r)) / (1 + math.Abs(r)) }

func minmod(r float64) float64 { return math.Max(math.Min(r, 1), 0) }

func superBee(r float64) float64 {
	return math.Max(math.Max(math.Min(2*r, 1), math.Min(r, 2)), 0)
}

func vanAlbada(r float64) float64 { return math.Max(r*(r+1)/(r*r+1), 0) }

func muscl(r float64) float64 {
	return math.Max(math.Min(math.Min(2*r, 0.5*r+0.5), 2), 0)
}
