package ldu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// chain of four rows coupled to their neighbours, with one boundary patch on
// each end
func chain() *Addressing {
	return NewAddressing(4, []int{0, 1, 2}, []int{1, 2, 3}, [][]int{{0}, {3}})
}

func dense(m *Matrix) *mat.Dense {
	var (
		n = m.Addr.Size
		A = mat.NewDense(n, n, nil)
	)
	for c, d := range m.DiagRO() {
		A.Set(c, c, d)
	}
	lower, upper := m.LowerRO(), m.UpperRO()
	for f := range upper {
		l, u := m.Addr.LowerAddr[f], m.Addr.UpperAddr[f]
		A.Set(l, u, upper[f])
		A.Set(u, l, lower[f])
	}
	return A
}

// constIface couples the cells of a patch to fixed values
type constIface struct {
	cells []int
	nbr   []float64
}

func (c *constIface) FaceCells() []int     { return c.cells }
func (c *constIface) InitUpdate([]float64) {}
func (c *constIface) Update(result, coeffs []float64) {
	for i, cell := range c.cells {
		result[cell] -= coeffs[i] * c.nbr[i]
	}
}

func TestMatrixStorage(t *testing.T) {
	{ // Symmetric until lower is written
		m := NewMatrix(chain())
		assert.Equal(t, "empty", m.Type())
		copy(m.Diag(), []float64{2, 2, 2, 2})
		assert.True(t, m.Diagonal())
		copy(m.Upper(), []float64{-1, -1, -1})
		assert.True(t, m.Symmetric())
		assert.Equal(t, m.UpperRO(), m.LowerRO())
		m.Lower()[0] = -2
		assert.True(t, m.Asymmetric())
		assert.Equal(t, "asymmetric", m.Type())
		assert.Equal(t, []float64{-2, -1, -1}, m.LowerRO())
		assert.Equal(t, []float64{-1, -1, -1}, m.UpperRO())
	}
	{ // Combining symmetric and asymmetric matrices
		a := NewMatrix(chain())
		copy(a.Diag(), []float64{1, 1, 1, 1})
		copy(a.Upper(), []float64{1, 2, 3})
		b := a.Clone()
		copy(b.Lower(), []float64{-1, -2, -3})
		a.Add(b)
		assert.True(t, a.Asymmetric())
		assert.Equal(t, []float64{2, 2, 2, 2}, a.DiagRO())
		assert.Equal(t, []float64{2, 4, 6}, a.UpperRO())
		assert.Equal(t, []float64{0, 0, 0}, a.LowerRO())
		c := NewMatrix(chain())
		copy(c.Upper(), []float64{1, 1, 1})
		a.Sub(c)
		assert.Equal(t, []float64{1, 3, 5}, a.UpperRO())
		assert.Equal(t, []float64{-1, -1, -1}, a.LowerRO())
		a.Negate()
		assert.Equal(t, []float64{-2, -2, -2, -2}, a.DiagRO())
		assert.Panics(t, func() { a.Add(NewMatrix(NewAddressing(2, []int{0}, []int{1}, nil))) })
	}
}

func TestMatrixProducts(t *testing.T) {
	var (
		m   = NewMatrix(chain())
		psi = []float64{1, -2, 3, 0.5}
		r   = make([]float64, 4)
	)
	copy(m.Diag(), []float64{4, 5, 6, 7})
	copy(m.Upper(), []float64{-1, -2, -0.5})
	copy(m.Lower(), []float64{-3, -0.25, -1})
	A := dense(m)
	{ // Amul and Tmul against dense products
		var want, wantT mat.VecDense
		want.MulVec(A, mat.NewVecDense(4, psi))
		wantT.MulVec(A.T(), mat.NewVecDense(4, psi))
		m.Amul(r, psi, nil, nil)
		assert.InDeltaSlice(t, want.RawVector().Data, r, 1e-14)
		m.Tmul(r, psi, nil, nil)
		assert.InDeltaSlice(t, wantT.RawVector().Data, r, 1e-14)
	}
	{ // Sparse export reproduces the dense matrix
		csr := m.CSR("A")
		assert.Equal(t, 10, csr.NNZ())
		assert.True(t, mat.EqualApprox(A, csr.Dense(), 1e-15))
		var want mat.VecDense
		want.MulVec(A, mat.NewVecDense(4, psi))
		assert.InDeltaSlice(t, want.RawVector().Data, csr.MulVec(psi), 1e-14)
	}
	{ // Interface contributions
		ifs := Interfaces{nil, &constIface{cells: []int{3}, nbr: []float64{2}}}
		coeffs := [][]float64{nil, {0.5}}
		assert.True(t, ifs.Coupled())
		m.Amul(r, psi, coeffs, ifs)
		var want mat.VecDense
		want.MulVec(A, mat.NewVecDense(4, psi))
		w := want.RawVector().Data
		w[3] -= 1
		assert.InDeltaSlice(t, w, r, 1e-14)
		source := []float64{1, 1, 1, 1}
		m.Residual(r, psi, source, coeffs, ifs)
		for c := range r {
			assert.InDelta(t, source[c]-w[c], r[c], 1e-14)
		}
		sumA := make([]float64, 4)
		m.SumA(sumA, coeffs, ifs)
		assert.InDeltaSlice(t, []float64{4 - 1, 5 - 3 - 2, 6 - 0.25 - 0.5, 7 - 1 - 0.5}, sumA, 1e-14)
	}
	{ // H and H1 are the negated off-diagonal parts
		H := m.H(psi)
		for c := range H {
			var off float64
			for j := 0; j < 4; j++ {
				if j != c {
					off += A.At(c, j) * psi[j]
				}
			}
			assert.InDelta(t, -off, H[c], 1e-14)
		}
		H1 := m.H1()
		assert.InDeltaSlice(t, []float64{1, 5, 0.75, 1}, H1, 1e-14)
		faceH := m.FaceH(psi)
		assert.InDelta(t, -1*(-2)-(-3)*1, faceH[0], 1e-14)
	}
}

func TestMatrixRowOperations(t *testing.T) {
	m := NewMatrix(chain())
	copy(m.Upper(), []float64{-1, -2, -3})
	m.NegSumDiag()
	assert.Equal(t, []float64{1, 3, 5, 3}, m.DiagRO())
	sumA := make([]float64, 4)
	m.SumA(sumA, nil, nil)
	assert.Equal(t, []float64{0, 0, 0, 0}, sumA)
	sumOff := make([]float64, 4)
	m.SumMagOffDiag(sumOff)
	assert.Equal(t, []float64{1, 3, 5, 3}, sumOff)
	m.ScaleRows([]float64{1, 2, 3, 4})
	assert.True(t, m.Asymmetric())
	assert.Equal(t, []float64{1, 6, 15, 12}, m.DiagRO())
	assert.Equal(t, []float64{-1, -4, -9}, m.UpperRO())
	assert.Equal(t, []float64{-2, -6, -12}, m.LowerRO())
	m.Scale(0.5)
	assert.Equal(t, []float64{0.5, 3, 7.5, 6}, m.DiagRO())
}

func TestAddressingChecks(t *testing.T) {
	assert.Panics(t, func() { NewAddressing(3, []int{0, 1}, []int{1}, nil) })
}
