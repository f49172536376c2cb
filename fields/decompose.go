package fields

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/types"
)

// localFaces maps the faces of local patch i of rank p to face indices of
// the matching global patch
func localFaces(d *mesh.Decomposition, p, i int) (faces []int) {
	var (
		lp = d.Meshes[p].Patches[i]
		gp = d.Global.Patches[d.BoundaryProcAddressing[p][i]]
	)
	faces = make([]int, lp.Size)
	for j := range faces {
		faces[j] = d.FaceProcAddressing[p][lp.Start+j] - gp.Start
	}
	return
}

// neighbourCells are the global cells across the faces of processor patch i
func neighbourCells(d *mesh.Decomposition, p, i int) (cells []int) {
	var (
		g  = d.Global
		lp = d.Meshes[p].Patches[i]
	)
	cells = make([]int, lp.Size)
	for j := range cells {
		lf := lp.Start + j
		gf := d.FaceProcAddressing[p][lf]
		if d.FaceFlip[p][lf] {
			cells[j] = g.Owner[gf]
		} else {
			cells[j] = g.Neighbour[gf]
		}
	}
	return
}

// sliceEntries keeps the per-face list entries of faces only. A uniform
// vector is a list of three numbers and is kept whole.
func sliceEntries(e dict.Dict, faces []int, vector bool) dict.Dict {
	out := make(dict.Dict, len(e))
	for k, v := range e {
		switch vv := v.(type) {
		case []float64:
			if vector {
				out[k] = vv
				continue
			}
			s := make([]float64, len(faces))
			for j, f := range faces {
				s[j] = vv[f]
			}
			out[k] = s
		case [][]float64:
			s := make([][]float64, len(faces))
			for j, f := range faces {
				s[j] = vv[f]
			}
			out[k] = s
		default:
			out[k] = v
		}
	}
	return out
}

// DecomposeVolScalarField splits f, defined on d.Global, into one field per
// rank. Processor patch values are set from the global cells across them.
func DecomposeVolScalarField(d *mesh.Decomposition, f *VolScalarField) (parts []*VolScalarField, err error) {
	if f.Mesh != d.Global {
		return nil, fmt.Errorf("decompose %s: field is not on mesh %s", f.Name, d.Global.Name)
	}
	parts = make([]*VolScalarField, d.NP)
	for p, m := range d.Meshes {
		internal := make([]float64, m.NCells)
		for c, gc := range d.CellProcAddressing[p] {
			internal[c] = f.Internal[gc]
		}
		boundary := dict.Dict{}
		for i, lp := range m.Patches {
			if gi := d.BoundaryProcAddressing[p][i]; gi >= 0 {
				boundary[lp.Name] = sliceEntries(f.Boundary[gi].Entries(), localFaces(d, p, i), false)
			}
		}
		if parts[p], err = NewVolScalarField(f.Name, m, f.Dimensions, internal, boundary); err != nil {
			return nil, fmt.Errorf("decompose rank %d: %w", p, err)
		}
		for i, pf := range parts[p].Boundary {
			if gi := d.BoundaryProcAddressing[p][i]; gi >= 0 {
				vals, gvals := pf.Values(), f.Boundary[gi].Values()
				if len(vals) == 0 {
					continue
				}
				for j, gj := range localFaces(d, p, i) {
					vals[j] = gvals[gj]
				}
				continue
			}
			proc := pf.(*processor)
			nbr := make([]float64, m.Patches[i].Size)
			for j, gc := range neighbourCells(d, p, i) {
				nbr[j] = f.Internal[gc]
			}
			proc.setNeighbour(internal, nbr)
		}
		parts[p].SetOldTimes(sliceOldTimes(f.oldTimes, d.CellProcAddressing[p])...)
	}
	return
}

func sliceOldTimes(levels [][]float64, cells []int) (out [][]float64) {
	for _, l := range levels {
		s := make([]float64, len(cells))
		for c, gc := range cells {
			s[c] = l[gc]
		}
		out = append(out, s)
	}
	return
}

// expand returns the per-face values of an entry, n faces long
func expand(v interface{}, n int, vector bool) (out [][]float64, err error) {
	out = make([][]float64, n)
	if vector {
		if vv, ok := v.([][]float64); ok {
			copy(out, vv)
			return
		}
		u, err := cast.ToFloat64SliceE(v)
		if err != nil {
			return nil, err
		}
		for j := range out {
			out[j] = u
		}
		return out, nil
	}
	if x, ferr := cast.ToFloat64E(v); ferr == nil {
		for j := range out {
			out[j] = []float64{x}
		}
		return
	}
	list, err := cast.ToFloat64SliceE(v)
	if err != nil {
		return nil, err
	}
	if len(list) != n {
		return nil, fmt.Errorf("%w: %d values for %d faces", ErrMalformed, len(list), n)
	}
	for j, x := range list {
		out[j] = []float64{x}
	}
	return
}

// gatherEntries rebuilds the entries of a global patch from the entries of
// its pieces on every rank
func gatherEntries(gp *mesh.Patch, pieces []dict.Dict, faces [][]int, vector bool) (e dict.Dict, err error) {
	e = dict.Dict{}
	for k, v := range pieces[0] {
		if k == "type" {
			e[k] = v
			continue
		}
		full := make([][]float64, gp.Size)
		for r, piece := range pieces {
			vals, err := expand(piece[k], len(faces[r]), vector)
			if err != nil {
				return nil, fmt.Errorf("patch %s entry %s: %w", gp.Name, k, err)
			}
			for j, f := range faces[r] {
				full[f] = vals[j]
			}
		}
		if vector {
			vecs := make([]types.Vector, gp.Size)
			for j := range full {
				copy(vecs[j][:], full[j])
			}
			e[k] = compactVectors(vecs)
			continue
		}
		flat := make([]float64, gp.Size)
		for j := range full {
			if full[j] != nil {
				flat[j] = full[j][0]
			}
		}
		e[k] = compact(flat)
	}
	return
}

// ReconstructVolScalarField joins per-rank fields back onto d.Global
func ReconstructVolScalarField(d *mesh.Decomposition, parts []*VolScalarField) (f *VolScalarField, err error) {
	if len(parts) != d.NP {
		return nil, fmt.Errorf("reconstruct: %d parts for %d ranks", len(parts), d.NP)
	}
	var (
		g        = d.Global
		name     = parts[0].Name
		internal = make([]float64, g.NCells)
		boundary = dict.Dict{}
	)
	for p, part := range parts {
		for c, gc := range d.CellProcAddressing[p] {
			internal[gc] = part.Internal[c]
		}
	}
	for gi, gp := range g.Patches {
		var (
			pieces []dict.Dict
			faces  [][]int
		)
		for p, part := range parts {
			for i, pf := range part.Boundary {
				if d.BoundaryProcAddressing[p][i] == gi {
					pieces = append(pieces, pf.Entries())
					faces = append(faces, localFaces(d, p, i))
				}
			}
		}
		if boundary[gp.Name], err = gatherEntries(gp, pieces, faces, false); err != nil {
			return nil, fmt.Errorf("reconstruct %s: %w", name, err)
		}
	}
	if f, err = NewVolScalarField(name, g, parts[0].Dimensions, internal, boundary); err != nil {
		return nil, err
	}
	for p, part := range parts {
		for i, pf := range part.Boundary {
			gi := d.BoundaryProcAddressing[p][i]
			if gi < 0 || len(pf.Values()) == 0 {
				continue
			}
			gvals := f.Boundary[gi].Values()
			for j, gj := range localFaces(d, p, i) {
				gvals[gj] = pf.Values()[j]
			}
		}
	}
	return
}

func DecomposeVolVectorField(d *mesh.Decomposition, f *VolVectorField) (parts []*VolVectorField, err error) {
	if f.Mesh != d.Global {
		return nil, fmt.Errorf("decompose %s: field is not on mesh %s", f.Name, d.Global.Name)
	}
	parts = make([]*VolVectorField, d.NP)
	for p, m := range d.Meshes {
		internal := make([]types.Vector, m.NCells)
		for c, gc := range d.CellProcAddressing[p] {
			internal[c] = f.Internal[gc]
		}
		boundary := dict.Dict{}
		for i, lp := range m.Patches {
			if gi := d.BoundaryProcAddressing[p][i]; gi >= 0 {
				boundary[lp.Name] = sliceEntries(f.Boundary[gi].Entries(), localFaces(d, p, i), true)
			}
		}
		if parts[p], err = NewVolVectorField(f.Name, m, f.Dimensions, internal, boundary); err != nil {
			return nil, fmt.Errorf("decompose rank %d: %w", p, err)
		}
		for i, vp := range parts[p].Boundary {
			if gi := d.BoundaryProcAddressing[p][i]; gi >= 0 {
				if vp.Values == nil {
					continue
				}
				for j, gj := range localFaces(d, p, i) {
					vp.Values[j] = f.Boundary[gi].Values[gj]
				}
				continue
			}
			nbr := make([]types.Vector, m.Patches[i].Size)
			for j, gc := range neighbourCells(d, p, i) {
				nbr[j] = f.Internal[gc]
			}
			vp.setNeighbour(internal, nbr)
		}
	}
	return
}

func ReconstructVolVectorField(d *mesh.Decomposition, parts []*VolVectorField) (f *VolVectorField, err error) {
	if len(parts) != d.NP {
		return nil, fmt.Errorf("reconstruct: %d parts for %d ranks", len(parts), d.NP)
	}
	var (
		g        = d.Global
		name     = parts[0].Name
		internal = make([]types.Vector, g.NCells)
		boundary = dict.Dict{}
	)
	for p, part := range parts {
		for c, gc := range d.CellProcAddressing[p] {
			internal[gc] = part.Internal[c]
		}
	}
	for gi, gp := range g.Patches {
		var (
			pieces []dict.Dict
			faces  [][]int
		)
		for p, part := range parts {
			for i, vp := range part.Boundary {
				if d.BoundaryProcAddressing[p][i] == gi {
					pieces = append(pieces, vp.Entries())
					faces = append(faces, localFaces(d, p, i))
				}
			}
		}
		if boundary[gp.Name], err = gatherEntries(gp, pieces, faces, true); err != nil {
			return nil, fmt.Errorf("reconstruct %s: %w", name, err)
		}
	}
	if f, err = NewVolVectorField(name, g, parts[0].Dimensions, internal, boundary); err != nil {
		return nil, err
	}
	for p, part := range parts {
		for i, vp := range part.Boundary {
			gi := d.BoundaryProcAddressing[p][i]
			if gi < 0 || vp.Values == nil {
				continue
			}
			for j, gj := range localFaces(d, p, i) {
				f.Boundary[gi].Values[gj] = vp.Values[j]
			}
		}
	}
	return
}
