package fields

import (
	"fmt"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/parallel"
	"github.com/notargets/gofvm/types"
)

// CoupledPatchField is a patch field whose face values depend on cells of
// another rank. Its neighbour values arrive in two steps so that every
// coupled patch can send before any of them waits.
type CoupledPatchField interface {
	PatchField
	ldu.Interface
	InitEvaluate(internal []float64)
	// NeighbourField is the value in the cells across the patch, as of the
	// last evaluation
	NeighbourField() []float64
}

// processor couples the cells of a processor patch to those of the
// neighbouring rank. Faces are in the same order on both sides.
type processor struct {
	basePatch
	nbr []float64
}

func newProcessor(args PatchArgs) (PatchField, error) {
	if args.Patch.Type != types.Patch_Processor {
		return nil, fmt.Errorf("processor condition on non-processor patch %s", args.Patch.Name)
	}
	p := &processor{basePatch: newBase(args)}
	p.nbr = append([]float64(nil), p.values...)
	if args.Dict.Found("value") {
		vals, err := patchValues(args.Dict, "value", args.Patch.Size)
		if err != nil {
			return nil, err
		}
		p.values = vals
	}
	return p, nil
}

func (p *processor) Type() string     { return "processor" }
func (p *processor) Coupled() bool    { return true }
func (p *processor) FaceCells() []int { return p.patch.FaceCells }

func (p *processor) comm() parallel.Comm { return p.mesh.Comm }

func (p *processor) weights() []float64 {
	return p.mesh.Weights[p.patch.Start : p.patch.Start+p.patch.Size]
}

func (p *processor) InitEvaluate(internal []float64) {
	p.comm().Send(p.patch.NeighbProcNo, patchInternal(p.patch, internal))
}

func (p *processor) Evaluate(internal []float64) {
	p.setNeighbour(internal, p.comm().Recv(p.patch.NeighbProcNo))
}

func (p *processor) setNeighbour(internal, nbr []float64) {
	var (
		w = p.weights()
	)
	if len(nbr) != p.patch.Size {
		panic(fmt.Errorf("processor patch %s: received %d values for %d faces", p.patch.Name, len(nbr), p.patch.Size))
	}
	p.nbr = nbr
	for i, c := range p.patch.FaceCells {
		p.values[i] = w[i]*internal[c] + (1-w[i])*nbr[i]
	}
}

func (p *processor) NeighbourField() []float64 { return p.nbr }

func (p *processor) SnGrad(internal []float64) []float64 {
	var (
		dc  = p.deltaCoeffs()
		out = make([]float64, p.patch.Size)
	)
	for i, c := range p.patch.FaceCells {
		out[i] = dc[i] * (p.nbr[i] - internal[c])
	}
	return out
}

func (p *processor) ValueInternalCoeffs(w []float64) []float64 {
	return append([]float64(nil), w...)
}

func (p *processor) ValueBoundaryCoeffs(w []float64) []float64 {
	out := make([]float64, len(w))
	for i := range w {
		out[i] = 1 - w[i]
	}
	return out
}

func (p *processor) GradientInternalCoeffs() []float64 {
	out := make([]float64, p.patch.Size)
	for i, dc := range p.deltaCoeffs() {
		out[i] = -dc
	}
	return out
}

func (p *processor) GradientBoundaryCoeffs() []float64 {
	return append([]float64(nil), p.deltaCoeffs()...)
}

func (p *processor) Entries() dict.Dict { return p.entries(p.Type()) }

// InitUpdate and Update make the patch a matrix interface: the coupled
// coefficients multiply the neighbour rank's solution.
func (p *processor) InitUpdate(psi []float64) {
	p.comm().Send(p.patch.NeighbProcNo, patchInternal(p.patch, psi))
}

func (p *processor) Update(result, coeffs []float64) {
	nbr := p.comm().Recv(p.patch.NeighbProcNo)
	for i, c := range p.patch.FaceCells {
		result[c] -= coeffs[i] * nbr[i]
	}
}
