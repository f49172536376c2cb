// Package fvm discretises operators implicitly into a Matrix for one field.
//
// A Matrix M stands for the expression M(psi) = A psi - source, so terms
// combine by adding matrices and M.Solve finds psi with M(psi) = 0. Patch
// contributions are kept apart from the LDU coefficients until the solve:
// internal coefficients join the diagonal, boundary coefficients join the
// source, and on coupled patches they become interface coefficients.
package fvm

import (
	"fmt"
	"math"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/linsolve"
	"github.com/notargets/gofvm/types"
	"github.com/notargets/gofvm/utils"
)

type Matrix struct {
	*ldu.Matrix
	Psi *fields.VolScalarField
	// Dimensions of each row, those of the operator times volume
	Dimensions     types.Dimensions
	Source         []float64
	InternalCoeffs [][]float64
	BoundaryCoeffs [][]float64
	// Explicit face flux that Flux adds to the implicit part, nil if none
	FaceFluxCorrection *fields.SurfaceScalarField
}

// New returns an empty matrix for psi
func New(psi *fields.VolScalarField, dims types.Dimensions) *Matrix {
	m := psi.Mesh
	M := &Matrix{
		Matrix:         ldu.NewMatrix(m.LduAddr()),
		Psi:            psi,
		Dimensions:     dims,
		Source:         make([]float64, m.NCells),
		InternalCoeffs: make([][]float64, len(m.Patches)),
		BoundaryCoeffs: make([][]float64, len(m.Patches)),
	}
	for i, p := range m.Patches {
		M.InternalCoeffs[i] = make([]float64, p.FvSize())
		M.BoundaryCoeffs[i] = make([]float64, p.FvSize())
	}
	return M
}

func (M *Matrix) Clone() *Matrix {
	C := New(M.Psi, M.Dimensions)
	C.Matrix = M.Matrix.Clone()
	copy(C.Source, M.Source)
	for i := range M.InternalCoeffs {
		copy(C.InternalCoeffs[i], M.InternalCoeffs[i])
		copy(C.BoundaryCoeffs[i], M.BoundaryCoeffs[i])
	}
	if M.FaceFluxCorrection != nil {
		C.FaceFluxCorrection = M.FaceFluxCorrection.Clone(M.FaceFluxCorrection.Name)
	}
	return C
}

func (M *Matrix) check(o *Matrix, op string) error {
	if M.Psi != o.Psi {
		return fmt.Errorf("%s: matrices for different fields %s and %s", op, M.Psi.Name, o.Psi.Name)
	}
	return M.Dimensions.Check(o.Dimensions, op)
}

func (M *Matrix) combine(o *Matrix, sign float64, op string) error {
	if err := M.check(o, op); err != nil {
		return err
	}
	if sign > 0 {
		M.Matrix.Add(o.Matrix)
	} else {
		M.Matrix.Sub(o.Matrix)
	}
	for c := range M.Source {
		M.Source[c] += sign * o.Source[c]
	}
	for i := range M.InternalCoeffs {
		for j := range M.InternalCoeffs[i] {
			M.InternalCoeffs[i][j] += sign * o.InternalCoeffs[i][j]
			M.BoundaryCoeffs[i][j] += sign * o.BoundaryCoeffs[i][j]
		}
	}
	if o.FaceFluxCorrection != nil {
		corr := o.FaceFluxCorrection.Clone("faceFluxCorrection").Scale(sign)
		if M.FaceFluxCorrection == nil {
			M.FaceFluxCorrection = corr
		} else if err := M.FaceFluxCorrection.Add(corr); err != nil {
			return err
		}
	}
	return nil
}

// Add sums o into M. Both must be for the same field with the same
// dimensions.
func (M *Matrix) Add(o *Matrix) error { return M.combine(o, 1, "fvMatrix +") }

func (M *Matrix) Sub(o *Matrix) error { return M.combine(o, -1, "fvMatrix -") }

func (M *Matrix) Negate() *Matrix { return M.Scale(-1) }

// Scale multiplies every coefficient and the source by s
func (M *Matrix) Scale(s float64) *Matrix {
	M.Matrix.Scale(s)
	for c := range M.Source {
		M.Source[c] *= s
	}
	for i := range M.InternalCoeffs {
		for j := range M.InternalCoeffs[i] {
			M.InternalCoeffs[i][j] *= s
			M.BoundaryCoeffs[i][j] *= s
		}
	}
	if M.FaceFluxCorrection != nil {
		M.FaceFluxCorrection.Scale(s)
	}
	return M
}

// ScaleField multiplies each row by the value of vf in its cell
func (M *Matrix) ScaleField(vf *fields.VolScalarField) *Matrix {
	M.Matrix.ScaleRows(vf.Internal)
	for c := range M.Source {
		M.Source[c] *= vf.Internal[c]
	}
	for i, p := range M.Psi.Mesh.Patches {
		for j := range M.InternalCoeffs[i] {
			s := vf.Internal[p.FaceCells[j]]
			M.InternalCoeffs[i][j] *= s
			M.BoundaryCoeffs[i][j] *= s
		}
	}
	// The face flux correction is left unscaled
	M.Dimensions = M.Dimensions.Mul(vf.Dimensions)
	return M
}

// AddField adds the explicit term su to the expression
func (M *Matrix) AddField(su *fields.VolScalarField) error {
	if err := M.Dimensions.Check(su.Dimensions.Mul(types.DimVolume), "fvMatrix + "+su.Name); err != nil {
		return err
	}
	V := M.Psi.Mesh.V
	for c := range M.Source {
		M.Source[c] -= su.Internal[c] * V[c]
	}
	return nil
}

// Equal sets the expression equal to su, A psi - source == su
func (M *Matrix) Equal(su *fields.VolScalarField) error {
	if err := M.Dimensions.Check(su.Dimensions.Mul(types.DimVolume), "fvMatrix == "+su.Name); err != nil {
		return err
	}
	V := M.Psi.Mesh.V
	for c := range M.Source {
		M.Source[c] += su.Internal[c] * V[c]
	}
	return nil
}

// Relax under-relaxes the matrix by alpha in (0,1]. The diagonal, patch
// internal coefficients included, is first made at least the sum of the off
// diagonal magnitudes, and the change moves to the source at the current
// psi. Uncoupled patches contribute the magnitude of their internal
// coefficients. Relaxing by 1 leaves the matrix unchanged.
func (M *Matrix) Relax(alpha float64) error {
	if alpha <= 0 || alpha > 1 {
		return fmt.Errorf("relaxation factor %g for %s outside (0,1]", alpha, M.Psi.Name)
	}
	if alpha == 1 || !M.HasDiag() {
		return nil
	}
	var (
		mesh   = M.Psi.Mesh
		psi    = M.Psi.Internal
		D0     = M.DiagRO()
		D      = append([]float64(nil), D0...)
		sumOff = make([]float64, len(D))
	)
	M.SumMagOffDiag(sumOff)
	for i, p := range mesh.Patches {
		for j, ic := range M.InternalCoeffs[i] {
			c := p.FaceCells[j]
			if p.Coupled() {
				D[c] += ic
				sumOff[c] += math.Abs(M.BoundaryCoeffs[i][j])
			} else {
				D[c] += math.Abs(ic)
			}
		}
	}
	for c := range D {
		D[c] = math.Max(math.Abs(D[c]), sumOff[c]) / alpha
	}
	for i, p := range mesh.Patches {
		for j, ic := range M.InternalCoeffs[i] {
			D[p.FaceCells[j]] -= ic
		}
	}
	for c := range D {
		M.Source[c] += (D[c] - D0[c]) * psi[c]
	}
	copy(M.Diag(), D)
	return nil
}

// RelaxDict relaxes by the factor for the field in the relaxationFactors
// dictionary, if there is one
func (M *Matrix) RelaxDict(factors dict.Dict) error {
	if factors == nil {
		return nil
	}
	if eq, err := factors.SubDict("equations"); err == nil {
		factors = eq
	}
	v, err := factors.LookupPattern(M.Psi.Name)
	if err != nil {
		return nil
	}
	alpha, err := cast.ToFloat64E(v)
	if err != nil {
		return fmt.Errorf("relaxation factor for %s: %w", M.Psi.Name, err)
	}
	return M.Relax(alpha)
}

// SetValues fixes psi in the given cells. Couplings to those cells move to
// the source of their neighbours, and the rows reduce to diag*psi = diag*value.
func (M *Matrix) SetValues(cells []int, values []float64) {
	var (
		mesh  = M.Psi.Mesh
		psi   = M.Psi.Internal
		diag  = M.Diag()
		nInt  = mesh.NInternalFaces()
		faces = mesh.Cells()
	)
	for i, c := range cells {
		v := values[i]
		psi[c] = v
		M.Source[c] = v * diag[c]
		if !M.HasUpper() && !M.HasLower() {
			continue
		}
		upper, lower := M.Upper(), M.LowerRO()
		for _, f := range faces[c] {
			if f < nInt {
				own, nei := mesh.Owner[f], mesh.Neighbour[f]
				if c == own {
					M.Source[nei] -= lower[f] * v
				} else {
					M.Source[own] -= upper[f] * v
				}
				upper[f] = 0
				if M.HasLower() {
					M.Lower()[f] = 0
				}
				continue
			}
			patchi, pf := mesh.WhichPatch(f)
			if pf < len(M.InternalCoeffs[patchi]) {
				M.InternalCoeffs[patchi][pf] = 0
				M.BoundaryCoeffs[patchi][pf] = 0
			}
		}
	}
}

// SetReference fixes the level of psi at cell (negative when the cell is
// on another rank) when no patch on any rank fixes the value
func (M *Matrix) SetReference(cell int, value float64) {
	if M.Psi.FixesValue() || cell < 0 {
		return
	}
	diag := M.Diag()
	M.Source[cell] += diag[cell] * value
	diag[cell] += diag[cell]
}

// Assemble produces the final system: the diagonal with patch internal
// coefficients, the source with uncoupled boundary coefficients, and the
// coupled boundary coefficients as interface coefficients. M is unchanged.
func (M *Matrix) Assemble() (sys *linsolve.System, source []float64) {
	var (
		mesh = M.Psi.Mesh
		A    = M.Matrix.Clone()
		diag = A.Diag()
		ifs  = M.Psi.Interfaces()
		bou  = make([][]float64, len(mesh.Patches))
	)
	source = append([]float64(nil), M.Source...)
	for i, p := range mesh.Patches {
		for j, ic := range M.InternalCoeffs[i] {
			diag[p.FaceCells[j]] += ic
		}
		if ifs[i] != nil {
			bou[i] = M.BoundaryCoeffs[i]
			continue
		}
		for j, bc := range M.BoundaryCoeffs[i] {
			source[p.FaceCells[j]] += bc
		}
	}
	sys = &linsolve.System{
		Field:              M.Psi.Name,
		Matrix:             A,
		InterfaceBouCoeffs: bou,
		Interfaces:         ifs,
		Comm:               mesh.Comm,
	}
	return
}

// Solve solves M(psi) = 0 in place and re-evaluates the boundary
// conditions of psi. Non-convergence is logged and not an error.
func (M *Matrix) Solve(c linsolve.Controls) (perf linsolve.Performance, err error) {
	sys, source := M.Assemble()
	M.Psi.Mesh.Comm.Barrier()
	if perf, err = linsolve.Solve(sys, c, M.Psi.Internal, source); err != nil {
		return perf, fmt.Errorf("solving for %s: %w", M.Psi.Name, err)
	}
	M.Psi.CorrectBoundaryConditions()
	perf.Log(M.logger())
	return
}

// SolveDict solves with the controls for psi in the solvers dictionary
func (M *Matrix) SolveDict(solvers dict.Dict, final bool) (linsolve.Performance, error) {
	c, err := linsolve.FieldControls(solvers, M.Psi.Name, final)
	if err != nil {
		return linsolve.Performance{}, err
	}
	return M.Solve(c)
}

// Residual is source - A psi per cell, boundary and coupled contributions
// included
func (M *Matrix) Residual() []float64 {
	sys, source := M.Assemble()
	rA := make([]float64, len(source))
	sys.Residual(rA, M.Psi.Internal, source)
	return rA
}

// boundaryDiag is the diagonal with the patch internal coefficients
func (M *Matrix) boundaryDiag() []float64 {
	D := append([]float64(nil), M.Diag()...)
	for i, p := range M.Psi.Mesh.Patches {
		for j, ic := range M.InternalCoeffs[i] {
			D[p.FaceCells[j]] += ic
		}
	}
	return D
}

// A is the diagonal per unit volume
func (M *Matrix) A() *fields.VolScalarField {
	var (
		mesh = M.Psi.Mesh
		D    = M.boundaryDiag()
	)
	for c := range D {
		D[c] /= mesh.V[c]
	}
	return fields.NewCalculatedVolScalarField("A("+M.Psi.Name+")", mesh,
		M.Dimensions.Div(M.Psi.Dimensions).Div(types.DimVolume), D)
}

// H is the source less the off-diagonal part applied to psi, per unit
// volume, so psi = H/A at convergence
func (M *Matrix) H() *fields.VolScalarField {
	var (
		mesh = M.Psi.Mesh
		H    = M.Matrix.H(M.Psi.Internal)
	)
	for c := range H {
		H[c] += M.Source[c]
	}
	for i, p := range mesh.Patches {
		var nbr []float64
		if cpf, ok := M.Psi.Boundary[i].(fields.CoupledPatchField); ok {
			nbr = cpf.NeighbourField()
		}
		for j, bc := range M.BoundaryCoeffs[i] {
			if nbr != nil {
				bc *= nbr[j]
			}
			H[p.FaceCells[j]] += bc
		}
	}
	for c := range H {
		H[c] /= mesh.V[c]
	}
	return fields.NewCalculatedVolScalarField("H("+M.Psi.Name+")", mesh,
		M.Dimensions.Div(types.DimVolume), H)
}

// Flux is the face flux of the operator at the current psi, the explicit
// correction included
func (M *Matrix) Flux() *fields.SurfaceScalarField {
	var (
		mesh = M.Psi.Mesh
		flux = fields.NewSurfaceScalarField("flux("+M.Psi.Name+")", mesh, M.Dimensions)
	)
	if M.HasUpper() || M.HasLower() {
		copy(flux.Internal, M.FaceH(M.Psi.Internal))
	}
	for i, p := range mesh.Patches {
		var nbr []float64
		if cpf, ok := M.Psi.Boundary[i].(fields.CoupledPatchField); ok {
			nbr = cpf.NeighbourField()
		}
		for j, ic := range M.InternalCoeffs[i] {
			bc := M.BoundaryCoeffs[i][j]
			if nbr != nil {
				bc *= nbr[j]
			}
			flux.Boundary[i][j] = ic*M.Psi.Internal[p.FaceCells[j]] - bc
		}
	}
	if M.FaceFluxCorrection != nil {
		if err := flux.Add(M.FaceFluxCorrection); err != nil {
			panic(err)
		}
	}
	return flux
}

func (M *Matrix) logger() *zap.Logger { return utils.RankLogger(M.Psi.Mesh.Comm.Rank()) }
