package ldu

import (
	"fmt"
	"math"
)

// Interface couples the cells next to a patch to values held elsewhere,
// typically on another rank. Updates are split so every interface can send
// before any of them waits to receive.
type Interface interface {
	FaceCells() []int
	// InitUpdate sends the values of psi next to the interface
	InitUpdate(psi []float64)
	// Update receives the coupled values and applies
	// result[FaceCells[i]] -= coeffs[i]*psiNbr[i]
	Update(result, coeffs []float64)
}

// Interfaces is indexed by patch, with nil entries for uncoupled patches
type Interfaces []Interface

func (ifs Interfaces) InitUpdate(psi []float64) {
	for _, i := range ifs {
		if i != nil {
			i.InitUpdate(psi)
		}
	}
}

func (ifs Interfaces) Update(result []float64, coeffs [][]float64) {
	for p, i := range ifs {
		if i != nil {
			i.Update(result, coeffs[p])
		}
	}
}

func (ifs Interfaces) Coupled() bool {
	for _, i := range ifs {
		if i != nil {
			return true
		}
	}
	return false
}

// Matrix is a face-addressed sparse matrix: one diagonal coefficient per
// row, and one upper and one lower coefficient per face. A matrix with no
// lower coefficients is symmetric, lower reads return the upper ones.
type Matrix struct {
	Addr               *Addressing
	diag, lower, upper []float64
}

func NewMatrix(addr *Addressing) *Matrix { return &Matrix{Addr: addr} }

func (m *Matrix) Clone() *Matrix {
	return &Matrix{
		Addr:  m.Addr,
		diag:  cloneSlice(m.diag),
		lower: cloneSlice(m.lower),
		upper: cloneSlice(m.upper),
	}
}

func cloneSlice(s []float64) []float64 {
	if s == nil {
		return nil
	}
	r := make([]float64, len(s))
	copy(r, s)
	return r
}

func (m *Matrix) HasDiag() bool  { return m.diag != nil }
func (m *Matrix) HasUpper() bool { return m.upper != nil }
func (m *Matrix) HasLower() bool { return m.lower != nil }

func (m *Matrix) Diagonal() bool   { return m.diag != nil && m.upper == nil && m.lower == nil }
func (m *Matrix) Symmetric() bool  { return m.diag != nil && m.upper != nil && m.lower == nil }
func (m *Matrix) Asymmetric() bool { return m.diag != nil && m.lower != nil }

// Diag returns the diagonal for writing, allocating it on first use
func (m *Matrix) Diag() []float64 {
	if m.diag == nil {
		m.diag = make([]float64, m.Addr.Size)
	}
	return m.diag
}

func (m *Matrix) Upper() []float64 {
	if m.upper == nil {
		if m.lower != nil {
			m.upper = cloneSlice(m.lower)
		} else {
			m.upper = make([]float64, m.Addr.NFaces())
		}
	}
	return m.upper
}

// Lower returns the lower coefficients for writing, which makes the matrix
// asymmetric.
func (m *Matrix) Lower() []float64 {
	if m.lower == nil {
		if m.upper != nil {
			m.lower = cloneSlice(m.upper)
		} else {
			m.lower = make([]float64, m.Addr.NFaces())
		}
	}
	return m.lower
}

// Read-only views, nil when the matrix has no such coefficients
func (m *Matrix) DiagRO() []float64 { return m.diag }
func (m *Matrix) UpperRO() []float64 {
	if m.upper == nil {
		return m.lower
	}
	return m.upper
}
func (m *Matrix) LowerRO() []float64 {
	if m.lower == nil {
		return m.upper
	}
	return m.lower
}

func (m *Matrix) Type() string {
	switch {
	case m.Asymmetric():
		return "asymmetric"
	case m.Symmetric():
		return "symmetric"
	case m.Diagonal():
		return "diagonal"
	}
	return "empty"
}

func (m *Matrix) checkAddressing(o *Matrix) {
	if m.Addr != o.Addr && (m.Addr.Size != o.Addr.Size || m.Addr.NFaces() != o.Addr.NFaces()) {
		panic(fmt.Errorf("matrix addressing mismatch: %d/%d rows, %d/%d faces",
			m.Addr.Size, o.Addr.Size, m.Addr.NFaces(), o.Addr.NFaces()))
	}
}

func addInto(a, b []float64, sign float64) {
	for i := range a {
		a[i] += sign * b[i]
	}
}

func (m *Matrix) combine(o *Matrix, sign float64) {
	m.checkAddressing(o)
	if o.diag != nil {
		addInto(m.Diag(), o.diag, sign)
	}
	switch {
	case o.upper != nil && o.lower == nil:
		if m.lower != nil {
			addInto(m.lower, o.upper, sign)
		}
		addInto(m.Upper(), o.upper, sign)
	case o.lower != nil:
		addInto(m.Lower(), o.lower, sign)
		addInto(m.Upper(), o.UpperRO(), sign)
	}
}

func (m *Matrix) Add(o *Matrix) { m.combine(o, 1) }
func (m *Matrix) Sub(o *Matrix) { m.combine(o, -1) }

func (m *Matrix) Negate() { m.Scale(-1) }

func (m *Matrix) Scale(s float64) {
	for _, c := range [][]float64{m.diag, m.upper, m.lower} {
		for i := range c {
			c[i] *= s
		}
	}
}

// ScaleRows multiplies row c by sf[c], breaking symmetry unless sf is uniform
func (m *Matrix) ScaleRows(sf []float64) {
	var (
		l, u = m.Addr.LowerAddr, m.Addr.UpperAddr
	)
	for c := range m.diag {
		m.diag[c] *= sf[c]
	}
	if m.upper == nil && m.lower == nil {
		return
	}
	lower := m.Lower()
	upper := m.Upper()
	for f := range upper {
		upper[f] *= sf[l[f]]
		lower[f] *= sf[u[f]]
	}
}

// NegSumDiag sets the diagonal to the negated sum of the off-diagonals of
// each row and column, which makes a conservative operator.
func (m *Matrix) NegSumDiag() {
	var (
		l, u  = m.Addr.LowerAddr, m.Addr.UpperAddr
		diag  = m.Diag()
		lower = m.LowerRO()
		upper = m.UpperRO()
	)
	for f := range upper {
		diag[l[f]] -= lower[f]
		diag[u[f]] -= upper[f]
	}
}

// SumMagOffDiag adds to sumOff the magnitudes of the off-diagonal
// coefficients of each row.
func (m *Matrix) SumMagOffDiag(sumOff []float64) {
	var (
		l, u  = m.Addr.LowerAddr, m.Addr.UpperAddr
		lower = m.LowerRO()
		upper = m.UpperRO()
	)
	for f := range upper {
		sumOff[u[f]] += math.Abs(lower[f])
		sumOff[l[f]] += math.Abs(upper[f])
	}
}

// Amul computes result = A psi. Coupled contributions are subtracted using
// the interface coefficients.
func (m *Matrix) Amul(result, psi []float64, coeffs [][]float64, ifs Interfaces) {
	var (
		l, u  = m.Addr.LowerAddr, m.Addr.UpperAddr
		diag  = m.diag
		lower = m.LowerRO()
		upper = m.UpperRO()
	)
	ifs.InitUpdate(psi)
	for c := range result {
		result[c] = diag[c] * psi[c]
	}
	for f := range upper {
		result[u[f]] += lower[f] * psi[l[f]]
		result[l[f]] += upper[f] * psi[u[f]]
	}
	ifs.Update(result, coeffs)
}

// Tmul computes result = A^T psi
func (m *Matrix) Tmul(result, psi []float64, coeffs [][]float64, ifs Interfaces) {
	var (
		l, u  = m.Addr.LowerAddr, m.Addr.UpperAddr
		diag  = m.diag
		lower = m.LowerRO()
		upper = m.UpperRO()
	)
	ifs.InitUpdate(psi)
	for c := range result {
		result[c] = diag[c] * psi[c]
	}
	for f := range upper {
		result[u[f]] += upper[f] * psi[l[f]]
		result[l[f]] += lower[f] * psi[u[f]]
	}
	ifs.Update(result, coeffs)
}

// SumA computes the row sums, including coupled coefficients
func (m *Matrix) SumA(sumA []float64, coeffs [][]float64, ifs Interfaces) {
	var (
		l, u  = m.Addr.LowerAddr, m.Addr.UpperAddr
		lower = m.LowerRO()
		upper = m.UpperRO()
	)
	copy(sumA, m.diag)
	for f := range upper {
		sumA[u[f]] += lower[f]
		sumA[l[f]] += upper[f]
	}
	for p, i := range ifs {
		if i == nil {
			continue
		}
		for face, c := range i.FaceCells() {
			sumA[c] -= coeffs[p][face]
		}
	}
}

// Residual computes rA = source - A psi
func (m *Matrix) Residual(rA, psi, source []float64, coeffs [][]float64, ifs Interfaces) {
	m.Amul(rA, psi, coeffs, ifs)
	for c := range rA {
		rA[c] = source[c] - rA[c]
	}
}

// H returns the negated off-diagonal part of A applied to psi
func (m *Matrix) H(psi []float64) (H []float64) {
	var (
		l, u  = m.Addr.LowerAddr, m.Addr.UpperAddr
		lower = m.LowerRO()
		upper = m.UpperRO()
	)
	H = make([]float64, m.Addr.Size)
	for f := range lower {
		H[u[f]] -= lower[f] * psi[l[f]]
		H[l[f]] -= upper[f] * psi[u[f]]
	}
	return
}

// H1 returns the negated off-diagonal row sums
func (m *Matrix) H1() (H1 []float64) {
	var (
		l, u  = m.Addr.LowerAddr, m.Addr.UpperAddr
		lower = m.LowerRO()
		upper = m.UpperRO()
	)
	H1 = make([]float64, m.Addr.Size)
	for f := range lower {
		H1[u[f]] -= lower[f]
		H1[l[f]] -= upper[f]
	}
	return
}

// FaceH returns the flux of the off-diagonal part across each face
func (m *Matrix) FaceH(psi []float64) (faceH []float64) {
	var (
		l, u  = m.Addr.LowerAddr, m.Addr.UpperAddr
		lower = m.LowerRO()
		upper = m.UpperRO()
	)
	faceH = make([]float64, m.Addr.NFaces())
	for f := range upper {
		faceH[f] = upper[f]*psi[u[f]] - lower[f]*psi[l[f]]
	}
	return
}
