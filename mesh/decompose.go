package mesh

import (
	"fmt"

	"github.com/notargets/gofvm/parallel"
	"github.com/notargets/gofvm/types"
)

// Decomposition splits a mesh into NP contiguous cell ranges, one per rank.
// Faces between ranks become processor patches, named procBoundary<p>to<q>,
// whose faces are ordered by global face index on both sides.
type Decomposition struct {
	NP     int
	Global *Mesh
	Cells  *parallel.PartitionMap
	// Per rank
	Meshes                 []*Mesh
	CellProcAddressing     [][]int  // local cell -> global cell
	FaceProcAddressing     [][]int  // local face -> global face
	FaceFlip               [][]bool // local face points opposite to the global face
	BoundaryProcAddressing [][]int  // local patch -> global patch, -1 for processor patches
}

func ProcPatchName(p, q int) string { return fmt.Sprintf("procBoundary%dto%d", p, q) }

func Decompose(global *Mesh, NP int) (d *Decomposition, err error) {
	if NP < 1 {
		return nil, fmt.Errorf("decompose %s: need at least one rank, have %d", global.Name, NP)
	}
	if NP > global.NCells {
		return nil, fmt.Errorf("decompose %s: %d ranks for %d cells", global.Name, NP, global.NCells)
	}
	d = &Decomposition{
		NP:                     NP,
		Global:                 global,
		Cells:                  parallel.NewPartitionMap(NP, global.NCells),
		Meshes:                 make([]*Mesh, NP),
		CellProcAddressing:     make([][]int, NP),
		FaceProcAddressing:     make([][]int, NP),
		FaceFlip:               make([][]bool, NP),
		BoundaryProcAddressing: make([][]int, NP),
	}
	for p := 0; p < NP; p++ {
		if err = d.buildRank(p); err != nil {
			return nil, err
		}
	}
	return
}

func (d *Decomposition) buildRank(p int) (err error) {
	var (
		g          = d.Global
		cMin, cMax = d.Cells.GetBucketRange(p)
		nCells     = d.Cells.GetBucketDimension(p)
		owner      []int
		neighbour  []int
		faceAddr   []int
		flip       []bool
		patches    []PatchSpec
		patchAddr  []int
		Sf, Cf     []types.Vector
		nbrCentres []types.Vector
	)
	local := func(c int) int {
		l, _ := d.Cells.GetLocal(c)
		return l
	}
	onRank := func(c int) bool { return d.rankOf(c) == p }
	addFace := func(gf, own int, flipped bool) {
		owner = append(owner, own)
		faceAddr = append(faceAddr, gf)
		flip = append(flip, flipped)
		sf := g.Sf[gf]
		if flipped {
			sf = sf.Scale(-1)
		}
		Sf = append(Sf, sf)
		Cf = append(Cf, g.Cf[gf])
	}
	for gf := 0; gf < g.NInternalFaces(); gf++ {
		own, nei := g.Owner[gf], g.Neighbour[gf]
		if onRank(own) && onRank(nei) {
			addFace(gf, local(own), false)
			neighbour = append(neighbour, local(nei))
		}
	}
	for _, gp := range g.Patches {
		start := len(owner)
		for i := 0; i < gp.Size; i++ {
			gf := gp.Start + i
			if onRank(g.Owner[gf]) {
				addFace(gf, local(g.Owner[gf]), false)
			}
		}
		patches = append(patches, PatchSpec{Name: gp.Name, Type: gp.Type, Start: start, Size: len(owner) - start})
		patchAddr = append(patchAddr, gp.Index)
	}
	for q := 0; q < d.NP; q++ {
		if q == p {
			continue
		}
		start := len(owner)
		nbrCentres = nil
		for gf := 0; gf < g.NInternalFaces(); gf++ {
			own, nei := g.Owner[gf], g.Neighbour[gf]
			switch {
			case onRank(own) && d.rankOf(nei) == q:
				addFace(gf, local(own), false)
				nbrCentres = append(nbrCentres, g.C[nei])
			case onRank(nei) && d.rankOf(own) == q:
				addFace(gf, local(nei), true)
				nbrCentres = append(nbrCentres, g.C[own])
			}
		}
		if len(owner) == start {
			continue
		}
		patches = append(patches, PatchSpec{
			Name:              ProcPatchName(p, q),
			Type:              types.Patch_Processor,
			Start:             start,
			Size:              len(owner) - start,
			MyProcNo:          p,
			NeighbProcNo:      q,
			NeighbCellCentres: nbrCentres,
		})
		patchAddr = append(patchAddr, -1)
	}
	var (
		C = make([]types.Vector, nCells)
		V = make([]float64, nCells)
	)
	copy(C, g.C[cMin:cMax])
	copy(V, g.V[cMin:cMax])
	m, err := NewFromGeometry(fmt.Sprintf("%s.processor%d", g.Name, p), nCells, owner, neighbour, patches, Sf, Cf, C, V)
	if err != nil {
		return fmt.Errorf("decompose rank %d: %w", p, err)
	}
	// Empty directions are a property of the whole mesh
	m.SolutionD = g.SolutionD
	cellAddr := make([]int, nCells)
	for c := range cellAddr {
		cellAddr[c] = d.Cells.GetGlobal(c, p)
	}
	d.Meshes[p] = m
	d.CellProcAddressing[p] = cellAddr
	d.FaceProcAddressing[p] = faceAddr
	d.FaceFlip[p] = flip
	d.BoundaryProcAddressing[p] = patchAddr
	return nil
}

func (d *Decomposition) rankOf(cell int) int {
	bn, _, _ := d.Cells.GetBucket(cell)
	return bn
}

// Mesh returns the partition of the calling rank, bound to its communicator
func (d *Decomposition) Mesh(comm parallel.Comm) *Mesh {
	if comm.Size() != d.NP {
		panic(fmt.Errorf("decomposition has %d ranks, communicator has %d", d.NP, comm.Size()))
	}
	m := d.Meshes[comm.Rank()]
	m.Comm = comm
	return m
}
