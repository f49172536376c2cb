package fvm

import "github.com/notargets/gofvm/fields"

// Expr builds an equation term by term and keeps the first error, so
//
//	eqn, err := fvm.Eqn(fvm.Ddt(args, T)).
//		Plus(fvm.Div(args, phi, T)).
//		Minus(fvm.Laplacian(args, DT, T)).
//		Equals(S).
//		Matrix()
type Expr struct {
	M   *Matrix
	err error
}

func Eqn(M *Matrix, err error) *Expr { return &Expr{M: M, err: err} }

func (e *Expr) apply(M *Matrix, err error, sign float64) *Expr {
	switch {
	case e.err != nil:
	case err != nil:
		e.err = err
	case sign > 0:
		e.err = e.M.Add(M)
	default:
		e.err = e.M.Sub(M)
	}
	return e
}

func (e *Expr) Plus(M *Matrix, err error) *Expr  { return e.apply(M, err, 1) }
func (e *Expr) Minus(M *Matrix, err error) *Expr { return e.apply(M, err, -1) }

// Source adds an explicit term
func (e *Expr) Source(su *fields.VolScalarField) *Expr {
	if e.err == nil {
		e.err = e.M.AddField(su)
	}
	return e
}

func (e *Expr) Equals(su *fields.VolScalarField) *Expr {
	if e.err == nil {
		e.err = e.M.Equal(su)
	}
	return e
}

func (e *Expr) Matrix() (*Matrix, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.M, nil
}
