package ldu

import "fmt"

// Addressing is the lower/upper face addressing of an LDU matrix. Faces must
// be in upper-triangular order: LowerAddr[f] < UpperAddr[f], sorted by lower
// address and then by upper address.
type Addressing struct {
	Size      int   // number of rows (cells)
	LowerAddr []int // row of the upper coefficient, column of the lower
	UpperAddr []int // column of the upper coefficient, row of the lower
	PatchAddr [][]int

	ownerStart, losort, losortStart []int
}

func NewAddressing(size int, lower, upper []int, patchAddr [][]int) (a *Addressing) {
	if len(lower) != len(upper) {
		panic(fmt.Errorf("lower and upper addressing differ in length: %d vs %d", len(lower), len(upper)))
	}
	a = &Addressing{
		Size:      size,
		LowerAddr: lower,
		UpperAddr: upper,
		PatchAddr: patchAddr,
	}
	return
}

func (a *Addressing) NFaces() int { return len(a.LowerAddr) }

// OwnerStart gives, for each row, the first face owned by it; faces
// OwnerStart[c]..OwnerStart[c+1]-1 have LowerAddr == c.
func (a *Addressing) OwnerStart() []int {
	if a.ownerStart == nil {
		a.ownerStart = make([]int, a.Size+1)
		for _, l := range a.LowerAddr {
			a.ownerStart[l+1]++
		}
		for c := 0; c < a.Size; c++ {
			a.ownerStart[c+1] += a.ownerStart[c]
		}
	}
	return a.ownerStart
}

// Losort lists faces ordered by upper address
func (a *Addressing) Losort() []int {
	if a.losort == nil {
		a.calcLosort()
	}
	return a.losort
}

// LosortStart gives, for each row, the first entry of Losort with UpperAddr == row
func (a *Addressing) LosortStart() []int {
	if a.losortStart == nil {
		a.calcLosort()
	}
	return a.losortStart
}

func (a *Addressing) calcLosort() {
	var (
		start = make([]int, a.Size+1)
		next  = make([]int, a.Size)
	)
	for _, u := range a.UpperAddr {
		start[u+1]++
	}
	for c := 0; c < a.Size; c++ {
		start[c+1] += start[c]
	}
	copy(next, start[:a.Size])
	losort := make([]int, len(a.UpperAddr))
	for f, u := range a.UpperAddr {
		losort[next[u]] = f
		next[u]++
	}
	a.losort, a.losortStart = losort, start
}
