package mesh

import (
	"context"
	"testing"

	"github.com/notargets/gofvm/parallel"
	"github.com/notargets/gofvm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitBlock(t *testing.T, nx, ny, nz int, shear float64, pt map[string]types.PatchType) *Mesh {
	m, err := NewBlock(BlockSpec{
		N:     [3]int{nx, ny, nz},
		Min:   types.Vector{0, 0, 0},
		Max:   types.Vector{1, 1, 1},
		Shear: shear,
		Types: pt,
	})
	require.NoError(t, err)
	return m
}

// closedCells checks the outward area vectors of every cell sum to zero
func closedCells(t *testing.T, m *Mesh) {
	sum := make([]types.Vector, m.NCells)
	for f, own := range m.Owner {
		sum[own] = sum[own].Add(m.Sf[f])
	}
	for f, nei := range m.Neighbour {
		sum[nei] = sum[nei].Sub(m.Sf[f])
	}
	for c := range sum {
		assert.InDelta(t, 0, sum[c].Mag(), 1e-12, "cell %d", c)
	}
}

func TestBlockGeometry(t *testing.T) {
	{ // Orthogonal cube
		m := unitBlock(t, 2, 2, 2, 0, nil)
		assert.Equal(t, 8, m.NCells)
		assert.Equal(t, 12, m.NInternalFaces())
		assert.Equal(t, 36, m.NFaces())
		assert.Equal(t, 6, len(m.Patches))
		assert.InDelta(t, 1., m.TotalVolume(), 1e-12)
		for c := 0; c < m.NCells; c++ {
			assert.InDelta(t, 0.125, m.V[c], 1e-12)
		}
		assert.InDeltaSlice(t, []float64{0.25, 0.25, 0.25}, m.C[0][:], 1e-12)
		assert.InDeltaSlice(t, []float64{0.75, 0.75, 0.75}, m.C[7][:], 1e-12)
		closedCells(t, m)
		for f := 0; f < m.NInternalFaces(); f++ {
			assert.InDelta(t, 0.5, m.Weights[f], 1e-12)
			assert.InDelta(t, 2., m.DeltaCoeffs[f], 1e-12)
			assert.InDelta(t, 2., m.NonOrthDeltaCoeffs[f], 1e-12)
			assert.InDelta(t, 0., m.NonOrthCorrection[f].Mag(), 1e-12)
			// owner to neighbour
			d := m.C[m.Neighbour[f]].Sub(m.C[m.Owner[f]])
			assert.True(t, d.Dot(m.Sf[f]) > 0)
		}
		left := m.FindPatch("left")
		require.NotNil(t, left)
		assert.Equal(t, 4, left.Size)
		for i := 0; i < left.Size; i++ {
			f := left.Start + i
			assert.InDelta(t, -0.25, m.Sf[f][0], 1e-12)
			assert.Equal(t, 1., m.Weights[f])
			assert.InDelta(t, 4., m.DeltaCoeffs[f], 1e-12)
		}
		assert.Equal(t, 0., m.NonOrthogonality())
		assert.Equal(t, [3]bool{true, true, true}, m.SolutionD)
		pi, pf := m.WhichPatch(left.Start + 2)
		assert.Equal(t, left.Index, pi)
		assert.Equal(t, 2, pf)
	}
	{ // Sheared block keeps volumes and closure but is non-orthogonal
		m := unitBlock(t, 3, 3, 1, 0.5, nil)
		closedCells(t, m)
		assert.InDelta(t, 1., m.TotalVolume(), 1e-12)
		assert.True(t, m.NonOrthogonality() > 10)
		var nonOrth bool
		for f := 0; f < m.NInternalFaces(); f++ {
			if m.NonOrthCorrection[f].Mag() > 1e-8 {
				nonOrth = true
			}
			// The correction is orthogonal to the face normal
			assert.InDelta(t, 1-m.Sf[f].Unit().Dot(m.C[m.Neighbour[f]].Sub(m.C[m.Owner[f]]))*m.NonOrthDeltaCoeffs[f],
				m.NonOrthCorrection[f].Dot(m.Sf[f].Unit()), 1e-12)
		}
		assert.True(t, nonOrth)
		// Boundary faces use the normal distance from the cell centre
		var skewed int
		for _, p := range m.Patches {
			for i, c := range p.FaceCells {
				f := p.Start + i
				d := m.Cf[f].Sub(m.C[c])
				dn := m.Sf[f].Unit().Dot(d)
				assert.InDelta(t, 1/dn, m.DeltaCoeffs[f], 1e-10)
				assert.InDelta(t, 1/dn, m.NonOrthDeltaCoeffs[f], 1e-10)
				if d.Mag()-dn > 1e-6 {
					skewed++
				}
			}
		}
		assert.True(t, skewed > 0)
	}
	{ // Two dimensional
		m := unitBlock(t, 4, 2, 1, 0, map[string]types.PatchType{
			"back": types.Patch_Empty, "front": types.Patch_Empty,
		})
		assert.Equal(t, [3]bool{true, true, false}, m.SolutionD)
		assert.Equal(t, 2, m.NSolutionD())
		assert.Equal(t, 0, m.FindPatch("front").FvSize())
		assert.Equal(t, 8, m.FindPatch("front").Size)
		addr := m.LduAddr()
		assert.Equal(t, 0, len(addr.PatchAddr[m.FindPatch("front").Index]))
	}
	{ // Bad specs
		_, err := NewBlock(BlockSpec{N: [3]int{0, 1, 1}, Max: types.Vector{1, 1, 1}})
		assert.Error(t, err)
		_, err = NewBlock(BlockSpec{N: [3]int{1, 1, 1}, Max: types.Vector{1, 0, 1}})
		assert.Error(t, err)
		_, err = NewBlock(BlockSpec{N: [3]int{1, 1, 1}, Max: types.Vector{1, 1, 1},
			Types: map[string]types.PatchType{"middle": types.Patch_Wall}})
		assert.Error(t, err)
	}
}

func TestCellsAndAddressing(t *testing.T) {
	m := unitBlock(t, 3, 2, 1, 0, nil)
	cells := m.Cells()
	for c := range cells {
		assert.Equal(t, 6, len(cells[c]))
	}
	addr := m.LduAddr()
	ownerStart := addr.OwnerStart()
	for c := 0; c < addr.Size; c++ {
		for f := ownerStart[c]; f < ownerStart[c+1]; f++ {
			assert.Equal(t, c, addr.LowerAddr[f])
		}
	}
	losort, losortStart := addr.Losort(), addr.LosortStart()
	assert.Equal(t, addr.NFaces(), len(losort))
	for c := 0; c < addr.Size; c++ {
		for i := losortStart[c]; i < losortStart[c+1]; i++ {
			assert.Equal(t, c, addr.UpperAddr[losort[i]])
		}
	}
}

func TestObjectRegistry(t *testing.T) {
	m := unitBlock(t, 1, 1, 1, 0, nil)
	m.Register("T", 1)
	m.Register("U", 2)
	v, ok := m.Lookup("T")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"T", "U"}, m.Names())
	m.Unregister("T")
	_, ok = m.Lookup("T")
	assert.False(t, ok)
}

func TestDecompose(t *testing.T) {
	g := unitBlock(t, 5, 3, 1, 0.2, nil)
	d, err := Decompose(g, 3)
	require.NoError(t, err)
	var nCells int
	for p := 0; p < d.NP; p++ {
		m := d.Meshes[p]
		nCells += m.NCells
		for c, gc := range d.CellProcAddressing[p] {
			local, bn := d.Cells.GetLocal(gc)
			assert.Equal(t, [2]int{c, p}, [2]int{local, bn})
			assert.Equal(t, g.C[gc], m.C[c])
			assert.Equal(t, g.V[gc], m.V[c])
		}
		// Every global patch appears on every rank, in the same order
		for gp := range g.Patches {
			assert.Equal(t, g.Patches[gp].Name, m.Patches[gp].Name)
			assert.Equal(t, gp, d.BoundaryProcAddressing[p][gp])
		}
		for _, pp := range m.Patches {
			if !pp.Coupled() {
				continue
			}
			q := pp.NeighbProcNo
			other := d.Meshes[q].FindPatch(ProcPatchName(q, p))
			require.NotNil(t, other)
			require.Equal(t, pp.Size, other.Size)
			for i := 0; i < pp.Size; i++ {
				f, of := pp.Start+i, other.Start+i
				assert.Equal(t, d.FaceProcAddressing[p][f], d.FaceProcAddressing[q][of])
				assert.InDelta(t, 0, m.Sf[f].Add(d.Meshes[q].Sf[of]).Mag(), 1e-14)
				assert.InDelta(t, 1., m.Weights[f]+d.Meshes[q].Weights[of], 1e-12)
				assert.InDelta(t, m.DeltaCoeffs[f], d.Meshes[q].DeltaCoeffs[of], 1e-12)
				gf := d.FaceProcAddressing[p][f]
				if !d.FaceFlip[p][f] {
					assert.InDelta(t, g.Weights[gf], m.Weights[f], 1e-12)
					assert.InDelta(t, g.NonOrthDeltaCoeffs[gf], m.NonOrthDeltaCoeffs[f], 1e-12)
				}
				assert.Equal(t, d.FaceFlip[p][f], p > q)
			}
		}
	}
	assert.Equal(t, g.NCells, nCells)
	vols := make([]float64, d.NP)
	err = parallel.Run(context.Background(), d.NP, func(comm parallel.Comm) error {
		vols[comm.Rank()] = d.Mesh(comm).TotalVolume()
		return nil
	})
	require.NoError(t, err)
	for _, v := range vols {
		assert.InDelta(t, 1., v, 1e-12)
	}
	_, err = Decompose(g, 100)
	assert.Error(t, err)
}
