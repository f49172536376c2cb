package ldu

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/mat"
)

// DOK is a dictionary of keys sparse matrix, used to assemble a matrix in
// general sparse form before converting it to CSR.
type DOK struct {
	M    *sparse.DOK
	name string
}

func NewDOK(nr, nc int, name string) (R DOK) {
	R = DOK{
		M:    sparse.NewDOK(nr, nc),
		name: name,
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)   { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }
func (m DOK) Name() string        { return m.name }

// AddAt accumulates v into entry (i, j)
func (m DOK) AddAt(i, j int, v float64) {
	nr, nc := m.Dims()
	if i < 0 || i >= nr || j < 0 || j >= nc {
		panic(fmt.Errorf("index (%d, %d) outside %dx%d matrix named: \"%v\"", i, j, nr, nc, m.name))
	}
	m.M.Set(i, j, m.M.At(i, j)+v)
}

func (m DOK) ToCSR() CSR {
	return CSR{
		M:    m.M.ToCSR(),
		name: m.name,
	}
}

type CSR struct {
	M    *sparse.CSR
	name string
}

func (m CSR) Dims() (r, c int)              { return m.M.Dims() }
func (m CSR) At(i, j int) float64           { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix                 { return m.M.T() }
func (m CSR) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }
func (m CSR) NNZ() int                      { return m.M.NNZ() }
func (m CSR) Name() string                  { return m.name }

// MulVec returns the product of the matrix and x
func (m CSR) MulVec(x []float64) (y []float64) {
	nr, _ := m.Dims()
	y = make([]float64, nr)
	m.M.MulVecTo(y, false, x)
	return
}

// Dense copies the matrix into dense storage
func (m CSR) Dense() *mat.Dense { return mat.DenseCopyOf(m.M) }

// DOK assembles the matrix, without coupled interfaces, in general sparse
// form. Only the self, owner and neighbour entries of each row are present.
func (m *Matrix) DOK(name string) (R DOK) {
	var (
		l, u  = m.Addr.LowerAddr, m.Addr.UpperAddr
		lower = m.LowerRO()
		upper = m.UpperRO()
	)
	R = NewDOK(m.Addr.Size, m.Addr.Size, name)
	for c, d := range m.diag {
		R.AddAt(c, c, d)
	}
	for f := range upper {
		R.AddAt(l[f], u[f], upper[f])
		R.AddAt(u[f], l[f], lower[f])
	}
	return
}

func (m *Matrix) CSR(name string) CSR { return m.DOK(name).ToCSR() }
