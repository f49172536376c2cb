package mesh

import (
	"math"

	"github.com/notargets/gofvm/types"
)

func (m *Mesh) calcFaceGeometry() {
	var (
		nFaces = len(m.Faces)
	)
	m.Sf = make([]types.Vector, nFaces)
	m.MagSf = make([]float64, nFaces)
	m.Cf = make([]types.Vector, nFaces)
	for f, face := range m.Faces {
		m.Cf[f], m.Sf[f] = faceCentreAndArea(m.Points, face)
		m.MagSf[f] = m.Sf[f].Mag()
	}
}

// faceCentreAndArea decomposes the face into triangles about its point
// average. The area vector follows the right-hand rule on point order.
func faceCentreAndArea(points []types.Vector, face []int) (centre, area types.Vector) {
	var (
		nPoints = len(face)
	)
	if nPoints == 3 {
		p0, p1, p2 := points[face[0]], points[face[1]], points[face[2]]
		centre = p0.Add(p1).Add(p2).Scale(1. / 3.)
		area = p1.Sub(p0).Cross(p2.Sub(p0)).Scale(0.5)
		return
	}
	var (
		est   types.Vector
		sumN  types.Vector
		sumA  float64
		sumAc types.Vector
	)
	for _, pi := range face {
		est = est.Add(points[pi])
	}
	est = est.Scale(1. / float64(nPoints))
	for i := 0; i < nPoints; i++ {
		p := points[face[i]]
		pNext := points[face[(i+1)%nPoints]]
		c := p.Add(pNext).Add(est)
		n := pNext.Sub(p).Cross(est.Sub(p))
		a := n.Mag()
		sumN = sumN.Add(n)
		sumA += a
		sumAc = sumAc.Add(c.Scale(a))
	}
	if sumA < types.VSmall {
		centre = est
	} else {
		centre = sumAc.Scale(1. / (3. * sumA))
	}
	area = sumN.Scale(0.5)
	return
}

// calcCellGeometry decomposes each cell into pyramids from its faces to an
// estimated centre, giving volume and centroid.
func (m *Mesh) calcCellGeometry() {
	var (
		nInt   = m.NInternalFaces()
		cEst   = make([]types.Vector, m.NCells)
		nCellF = make([]int, m.NCells)
	)
	m.C = make([]types.Vector, m.NCells)
	m.V = make([]float64, m.NCells)
	for f, own := range m.Owner {
		cEst[own] = cEst[own].Add(m.Cf[f])
		nCellF[own]++
	}
	for f, nei := range m.Neighbour {
		cEst[nei] = cEst[nei].Add(m.Cf[f])
		nCellF[nei]++
	}
	for c := range cEst {
		cEst[c] = cEst[c].Scale(1. / float64(nCellF[c]))
	}
	for f, own := range m.Owner {
		pyr3Vol := math.Max(m.Sf[f].Dot(m.Cf[f].Sub(cEst[own])), types.VSmall)
		pc := m.Cf[f].Scale(0.75).Add(cEst[own].Scale(0.25))
		m.C[own] = m.C[own].Add(pc.Scale(pyr3Vol))
		m.V[own] += pyr3Vol
	}
	for f := 0; f < nInt; f++ {
		nei := m.Neighbour[f]
		pyr3Vol := math.Max(m.Sf[f].Dot(cEst[nei].Sub(m.Cf[f])), types.VSmall)
		pc := m.Cf[f].Scale(0.75).Add(cEst[nei].Scale(0.25))
		m.C[nei] = m.C[nei].Add(pc.Scale(pyr3Vol))
		m.V[nei] += pyr3Vol
	}
	for c := range m.C {
		m.C[c] = m.C[c].Scale(1. / m.V[c])
		m.V[c] /= 3.
	}
}

// calcInterpolationGeometry computes linear interpolation weights, delta
// coefficients and non-orthogonal correction vectors for every face.
// Non-coupled boundary faces interpolate with weight one.
func (m *Mesh) calcInterpolationGeometry() {
	var (
		nFaces = m.NFaces()
		nInt   = m.NInternalFaces()
	)
	m.Weights = make([]float64, nFaces)
	m.DeltaCoeffs = make([]float64, nFaces)
	m.NonOrthDeltaCoeffs = make([]float64, nFaces)
	m.NonOrthCorrection = make([]types.Vector, nFaces)
	for f := 0; f < nInt; f++ {
		own, nei := m.Owner[f], m.Neighbour[f]
		m.setFaceInterpolation(f, m.C[own], m.C[nei], true)
	}
	for _, p := range m.Patches {
		for i := 0; i < p.Size; i++ {
			f := p.Start + i
			if p.Coupled() {
				m.setFaceInterpolation(f, m.C[p.FaceCells[i]], p.NeighbCellCentres[i], true)
			} else {
				m.setFaceInterpolation(f, m.C[p.FaceCells[i]], m.Cf[f], false)
			}
		}
	}
	m.calcSolutionD()
}

func (m *Mesh) setFaceInterpolation(f int, cOwn, cNei types.Vector, twoSided bool) {
	var (
		delta = cNei.Sub(cOwn)
		nf    = m.Sf[f].Unit()
	)
	if twoSided {
		dOwn := math.Abs(m.Sf[f].Dot(m.Cf[f].Sub(cOwn)))
		dNei := math.Abs(m.Sf[f].Dot(cNei.Sub(m.Cf[f])))
		if dOwn+dNei > types.VSmall {
			m.Weights[f] = dNei / (dOwn + dNei)
		} else {
			m.Weights[f] = 0.5
		}
	} else {
		m.Weights[f] = 1
		// Uncoupled boundaries use the normal distance to the face
		delta = nf.Scale(nf.Dot(delta))
	}
	m.DeltaCoeffs[f] = 1. / math.Max(delta.Mag(), types.VSmall)
	m.NonOrthDeltaCoeffs[f] = 1. / math.Max(nf.Dot(delta), 0.05*delta.Mag())
	if twoSided {
		m.NonOrthCorrection[f] = nf.Sub(delta.Scale(m.NonOrthDeltaCoeffs[f]))
	}
}

// calcSolutionD excludes the directions normal to empty patches
func (m *Mesh) calcSolutionD() {
	m.SolutionD = [3]bool{true, true, true}
	for _, p := range m.Patches {
		if p.Type != types.Patch_Empty {
			continue
		}
		for i := 0; i < p.Size; i++ {
			nf := m.Sf[p.Start+i].Unit()
			for d := 0; d < 3; d++ {
				if math.Abs(nf[d]) > 0.5 {
					m.SolutionD[d] = false
				}
			}
		}
	}
}

// NonOrthogonality returns the maximum angle, in degrees, between a face
// normal and the line joining the cells either side of it.
func (m *Mesh) NonOrthogonality() (maxDeg float64) {
	for f := 0; f < m.NInternalFaces(); f++ {
		d := m.C[m.Neighbour[f]].Sub(m.C[m.Owner[f]])
		cosT := d.Unit().Dot(m.Sf[f].Unit())
		cosT = math.Max(-1, math.Min(1, cosT))
		deg := math.Acos(cosT) * 180. / math.Pi
		if deg > maxDeg {
			maxDeg = deg
		}
	}
	return m.Comm.AllReduceMax(maxDeg)
}
