// Package fvc evaluates finite-volume operators explicitly from the current
// field values. Results are new fields with calculated boundary conditions.
//
// Operators taking schemes.Args look up their scheme by term key, e.g.
// grad(T) in gradSchemes, and fall back to the section default.
package fvc

import (
	"fmt"

	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/types"
)

func on(args schemes.Args, vf *fields.VolScalarField) schemes.Args {
	args.Mesh = vf.Mesh
	args.Field = vf.Name
	return args
}

// Interpolate evaluates vf on the faces with the interpolate(<name>) scheme
func Interpolate(args schemes.Args, vf *fields.VolScalarField) (*fields.SurfaceScalarField, error) {
	s, err := schemes.InterpolationFor(on(args, vf), "interpolate("+vf.Name+")")
	if err != nil {
		return nil, err
	}
	return schemes.Interpolate(s, vf), nil
}

// Flux is the linearly interpolated face velocity dotted with the face area
// vectors, the volumetric flux of U
func Flux(U *fields.VolVectorField) *fields.SurfaceScalarField {
	var (
		m   = U.Mesh
		phi = fields.NewSurfaceScalarField("phi", m, U.Dimensions.Mul(types.DimArea))
	)
	for f := range phi.Internal {
		w := m.Weights[f]
		uf := U.Internal[m.Owner[f]].Scale(w).Add(U.Internal[m.Neighbour[f]].Scale(1 - w))
		phi.Internal[f] = m.Sf[f].Dot(uf)
	}
	for i, p := range m.Patches {
		if p.FvSize() == 0 {
			continue
		}
		vp := U.Boundary[i]
		for j := range phi.Boundary[i] {
			phi.Boundary[i][j] = m.Sf[p.Start+j].Dot(vp.Values[j])
		}
	}
	return phi
}

// Grad is the cell gradient of vf with the grad(<name>) scheme
func Grad(args schemes.Args, vf *fields.VolScalarField) (*fields.VolVectorField, error) {
	g, err := schemes.GradFor(on(args, vf), "grad("+vf.Name+")")
	if err != nil {
		return nil, err
	}
	return g.Grad(vf), nil
}

// Div is the divergence of a face flux field
func Div(ssf *fields.SurfaceScalarField) *fields.VolScalarField {
	d := SurfaceIntegrate(ssf)
	d.Name = "div(" + ssf.Name + ")"
	return d
}

// DivFlux is the convective divergence div(phi,vf), with vf interpolated by
// the divergence scheme of the term
func DivFlux(args schemes.Args, phi *fields.SurfaceScalarField, vf *fields.VolScalarField) (*fields.VolScalarField, error) {
	args = on(args, vf)
	args.Flux = phi
	term := fmt.Sprintf("div(%s,%s)", phi.Name, vf.Name)
	cs, err := schemes.NewConvection(args, term)
	if err != nil {
		return nil, err
	}
	d := SurfaceIntegrate(schemes.Interpolate(cs.Interp, vf).Mul(phi))
	d.Name = term
	return d, nil
}

// SnGrad is the face normal gradient of vf with the snGrad(<name>) scheme
func SnGrad(args schemes.Args, vf *fields.VolScalarField) (*fields.SurfaceScalarField, error) {
	s, err := schemes.SnGradFor(on(args, vf), "snGrad("+vf.Name+")")
	if err != nil {
		return nil, err
	}
	return schemes.SnGradOf(s, vf), nil
}

// Laplacian is div(gamma grad(vf)) evaluated as the surface integral of
// gamma_f |Sf| snGrad(vf)
func Laplacian(args schemes.Args, gamma schemes.Gamma, vf *fields.VolScalarField) (*fields.VolScalarField, error) {
	var (
		m    = vf.Mesh
		term = fmt.Sprintf("laplacian(%s,%s)", gamma.Name(), vf.Name)
	)
	ls, err := schemes.NewLaplacian(on(args, vf), term)
	if err != nil {
		return nil, err
	}
	var (
		gammaMagSf = gamma.Faces(m, ls.GammaInterp).Mul(magSf(m))
		flux       = gammaMagSf.Mul(schemes.SnGradOf(ls.SnGrad, vf))
	)
	d := SurfaceIntegrate(flux)
	d.Name = term
	return d, nil
}

func magSf(m *mesh.Mesh) *fields.SurfaceScalarField {
	return fields.NewSurfaceScalarFieldFrom("magSf", m, types.DimArea, func(f int) float64 { return m.MagSf[f] })
}

// Ddt is the explicit time derivative of rho*vf, rho nil for unit density
func Ddt(args schemes.Args, rho, vf *fields.VolScalarField) (*fields.VolScalarField, error) {
	var (
		term = "ddt(" + vf.Name + ")"
		dims = vf.Dimensions.Div(types.DimTime)
	)
	if rho != nil {
		term = fmt.Sprintf("ddt(%s,%s)", rho.Name, vf.Name)
		dims = dims.Mul(rho.Dimensions)
	}
	ds, err := schemes.DdtFor(on(args, vf), term)
	if err != nil {
		return nil, err
	}
	return fields.NewCalculatedVolScalarField(term, vf.Mesh, dims, ds.Explicit(rho, vf)), nil
}

// SurfaceSum adds the face values around each cell
func SurfaceSum(ssf *fields.SurfaceScalarField) *fields.VolScalarField {
	var (
		m   = ssf.Mesh
		sum = make([]float64, m.NCells)
	)
	for f, v := range ssf.Internal {
		sum[m.Owner[f]] += v
		sum[m.Neighbour[f]] += v
	}
	for i, p := range m.Patches {
		for j, v := range ssf.Boundary[i] {
			sum[p.FaceCells[j]] += v
		}
	}
	return fields.NewCalculatedVolScalarField("surfaceSum("+ssf.Name+")", m, ssf.Dimensions, sum)
}

// SurfaceIntegrate sums the face values leaving each cell and divides by
// the cell volume
func SurfaceIntegrate(ssf *fields.SurfaceScalarField) *fields.VolScalarField {
	var (
		m   = ssf.Mesh
		ivf = make([]float64, m.NCells)
	)
	for f, v := range ssf.Internal {
		ivf[m.Owner[f]] += v
		ivf[m.Neighbour[f]] -= v
	}
	for i, p := range m.Patches {
		for j, v := range ssf.Boundary[i] {
			ivf[p.FaceCells[j]] += v
		}
	}
	for c := range ivf {
		ivf[c] /= m.V[c]
	}
	return fields.NewCalculatedVolScalarField("surfaceIntegrate("+ssf.Name+")", m,
		ssf.Dimensions.Div(types.DimVolume), ivf)
}
