package fvm

import (
	"fmt"
	"math"

	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/types"
)

func on(args schemes.Args, psi *fields.VolScalarField) schemes.Args {
	args.Mesh = psi.Mesh
	args.Field = psi.Name
	return args
}

// Ddt is the time derivative of psi with the ddt(<psi>) scheme
func Ddt(args schemes.Args, psi *fields.VolScalarField) (*Matrix, error) {
	return ddt(args, nil, psi, "ddt("+psi.Name+")")
}

// DdtRho is the time derivative of rho*psi with the ddt(<rho>,<psi>) scheme
func DdtRho(args schemes.Args, rho, psi *fields.VolScalarField) (*Matrix, error) {
	return ddt(args, rho, psi, fmt.Sprintf("ddt(%s,%s)", rho.Name, psi.Name))
}

func ddt(args schemes.Args, rho, psi *fields.VolScalarField, term string) (*Matrix, error) {
	ds, err := schemes.DdtFor(on(args, psi), term)
	if err != nil {
		return nil, err
	}
	dims := psi.Dimensions.Div(types.DimTime).Mul(types.DimVolume)
	if rho != nil {
		dims = dims.Mul(rho.Dimensions)
	}
	M := New(psi, dims)
	diag, source := ds.Implicit(rho, psi)
	copy(M.Diag(), diag)
	copy(M.Source, source)
	return M, nil
}

// Div is the convection of psi by the face flux phi with the
// div(<phi>,<psi>) scheme. Interpolation corrections are explicit.
func Div(args schemes.Args, phi *fields.SurfaceScalarField, psi *fields.VolScalarField) (*Matrix, error) {
	args = on(args, psi)
	args.Flux = phi
	cs, err := schemes.NewConvection(args, fmt.Sprintf("div(%s,%s)", phi.Name, psi.Name))
	if err != nil {
		return nil, err
	}
	var (
		M       = New(psi, phi.Dimensions.Mul(psi.Dimensions))
		weights = cs.Interp.Weights(psi)
		lower   = M.Lower()
		upper   = M.Upper()
	)
	for f, w := range weights.Internal {
		lower[f] = -w * phi.Internal[f]
		upper[f] = lower[f] + phi.Internal[f]
	}
	M.NegSumDiag()
	for i, pf := range psi.Boundary {
		if len(M.InternalCoeffs[i]) == 0 {
			continue
		}
		var (
			pw  = weights.Boundary[i]
			vic = pf.ValueInternalCoeffs(pw)
			vbc = pf.ValueBoundaryCoeffs(pw)
		)
		for j, pphi := range phi.Boundary[i] {
			M.InternalCoeffs[i][j] = pphi * vic[j]
			M.BoundaryCoeffs[i][j] = -pphi * vbc[j]
		}
	}
	if cs.Interp.Corrected() {
		corr := phi.Mul(cs.Interp.Correction(psi))
		M.FaceFluxCorrection = corr
		sum := surfaceSumSigned(corr)
		for c := range M.Source {
			M.Source[c] -= sum[c]
		}
	}
	if cs.Bounded {
		divPhi := surfaceSumSigned(phi)
		diag := M.Diag()
		for c := range diag {
			diag[c] -= divPhi[c]
		}
	}
	return M, nil
}

// surfaceSumSigned is the outflow of a face field from each cell, the
// surface integral without the volume division
func surfaceSumSigned(ssf *fields.SurfaceScalarField) []float64 {
	var (
		m   = ssf.Mesh
		sum = make([]float64, m.NCells)
	)
	for f, v := range ssf.Internal {
		sum[m.Owner[f]] += v
		sum[m.Neighbour[f]] -= v
	}
	for i, p := range m.Patches {
		for j, v := range ssf.Boundary[i] {
			sum[p.FaceCells[j]] += v
		}
	}
	return sum
}

// Laplacian is div(gamma grad(psi)) with the laplacian(<gamma>,<psi>)
// scheme. The non-orthogonal correction is explicit.
func Laplacian(args schemes.Args, gamma schemes.Gamma, psi *fields.VolScalarField) (*Matrix, error) {
	var (
		mesh = psi.Mesh
		term = fmt.Sprintf("laplacian(%s,%s)", gamma.Name(), psi.Name)
	)
	ls, err := schemes.NewLaplacian(on(args, psi), term)
	if err != nil {
		return nil, err
	}
	var (
		gammaMagSf = gamma.Faces(mesh, ls.GammaInterp).Mul(magSf(psi))
		dc         = ls.SnGrad.DeltaCoeffs()
		M          = New(psi, gammaMagSf.Dimensions.Mul(psi.Dimensions).Div(types.DimLength))
		upper      = M.Upper()
	)
	for f := range upper {
		upper[f] = dc[f] * gammaMagSf.Internal[f]
	}
	M.NegSumDiag()
	for i, pf := range psi.Boundary {
		if len(M.InternalCoeffs[i]) == 0 {
			continue
		}
		var (
			p      = mesh.Patches[i]
			pGamma = gammaMagSf.Boundary[i]
		)
		if pf.Coupled() {
			// Coupled faces use the scheme's delta coefficients, as the
			// internal faces do
			for j, g := range pGamma {
				M.InternalCoeffs[i][j] = -g * dc[p.Start+j]
				M.BoundaryCoeffs[i][j] = -g * dc[p.Start+j]
			}
			continue
		}
		var (
			gic = pf.GradientInternalCoeffs()
			gbc = pf.GradientBoundaryCoeffs()
		)
		for j, g := range pGamma {
			M.InternalCoeffs[i][j] = g * gic[j]
			M.BoundaryCoeffs[i][j] = -g * gbc[j]
		}
	}
	if ls.SnGrad.Corrected() {
		corr := gammaMagSf.Mul(ls.SnGrad.Correction(psi))
		M.FaceFluxCorrection = corr
		sum := surfaceSumSigned(corr)
		for c := range M.Source {
			M.Source[c] -= sum[c]
		}
	}
	return M, nil
}

func magSf(psi *fields.VolScalarField) *fields.SurfaceScalarField {
	m := psi.Mesh
	return fields.NewSurfaceScalarFieldFrom("magSf", m, types.DimArea, func(f int) float64 { return m.MagSf[f] })
}

// Sp is the implicit source sp*psi
func Sp(sp, psi *fields.VolScalarField) *Matrix {
	var (
		V    = psi.Mesh.V
		M    = New(psi, sp.Dimensions.Mul(psi.Dimensions).Mul(types.DimVolume))
		diag = M.Diag()
	)
	for c := range diag {
		diag[c] = sp.Internal[c] * V[c]
	}
	return M
}

// Su is the explicit source su, with the dimensions of the equation for psi
// per unit volume
func Su(su, psi *fields.VolScalarField) *Matrix {
	var (
		V = psi.Mesh.V
		M = New(psi, su.Dimensions.Mul(types.DimVolume))
	)
	for c := range M.Source {
		M.Source[c] = -su.Internal[c] * V[c]
	}
	return M
}

// SuSp is susp*psi, implicit where susp is positive and explicit where it
// is negative, which keeps the diagonal from weakening
func SuSp(susp, psi *fields.VolScalarField) *Matrix {
	var (
		V    = psi.Mesh.V
		M    = New(psi, susp.Dimensions.Mul(psi.Dimensions).Mul(types.DimVolume))
		diag = M.Diag()
	)
	for c := range diag {
		diag[c] = math.Max(susp.Internal[c], 0) * V[c]
		M.Source[c] = -math.Min(susp.Internal[c], 0) * V[c] * psi.Internal[c]
	}
	return M
}
