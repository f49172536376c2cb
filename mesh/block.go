package mesh

import (
	"fmt"

	"github.com/notargets/gofvm/types"
)

// Block side names, in patch order
var BlockSides = [6]string{"left", "right", "bottom", "top", "back", "front"}

// BlockSpec describes a hexahedral block of N[0] x N[1] x N[2] cells between
// Min and Max. Shear moves every point in x by Shear*(y - Min.y), which
// makes the mesh non-orthogonal.
type BlockSpec struct {
	Name     string
	N        [3]int
	Min, Max types.Vector
	Shear    float64
	// Patch type per side, missing sides are walls
	Types map[string]types.PatchType
}

func NewBlock(bs BlockSpec) (m *Mesh, err error) {
	var (
		nx, ny, nz = bs.N[0], bs.N[1], bs.N[2]
	)
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("block %s: cell counts must be positive, have %v", bs.Name, bs.N)
	}
	for d := 0; d < 3; d++ {
		if bs.Max[d] <= bs.Min[d] {
			return nil, fmt.Errorf("block %s: max %v must exceed min %v", bs.Name, bs.Max, bs.Min)
		}
	}
	for side := range bs.Types {
		if !isBlockSide(side) {
			return nil, fmt.Errorf("block %s: unknown side %q, valid sides are %v", bs.Name, side, BlockSides)
		}
	}
	var (
		pointIndex = func(i, j, k int) int { return i + (nx+1)*(j+(ny+1)*k) }
		cellIndex  = func(i, j, k int) int { return i + nx*(j+ny*k) }
		points     = make([]types.Vector, (nx+1)*(ny+1)*(nz+1))
		faces      [][]int
		owner      []int
		neighbour  []int
		dx         = (bs.Max[0] - bs.Min[0]) / float64(nx)
		dy         = (bs.Max[1] - bs.Min[1]) / float64(ny)
		dz         = (bs.Max[2] - bs.Min[2]) / float64(nz)
	)
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				y := bs.Min[1] + float64(j)*dy
				points[pointIndex(i, j, k)] = types.Vector{
					bs.Min[0] + float64(i)*dx + bs.Shear*(y-bs.Min[1]),
					y,
					bs.Min[2] + float64(k)*dz,
				}
			}
		}
	}
	// Faces normal to +x, +y and +z of each cell, in upper-triangular order
	xFace := func(i, j, k int) []int {
		return []int{pointIndex(i, j, k), pointIndex(i, j+1, k), pointIndex(i, j+1, k+1), pointIndex(i, j, k+1)}
	}
	yFace := func(i, j, k int) []int {
		return []int{pointIndex(i, j, k), pointIndex(i, j, k+1), pointIndex(i+1, j, k+1), pointIndex(i+1, j, k)}
	}
	zFace := func(i, j, k int) []int {
		return []int{pointIndex(i, j, k), pointIndex(i+1, j, k), pointIndex(i+1, j+1, k), pointIndex(i, j+1, k)}
	}
	reverse := func(f []int) []int {
		for a, b := 0, len(f)-1; a < b; a, b = a+1, b-1 {
			f[a], f[b] = f[b], f[a]
		}
		return f
	}
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := cellIndex(i, j, k)
				if i < nx-1 {
					faces = append(faces, xFace(i+1, j, k))
					owner, neighbour = append(owner, c), append(neighbour, cellIndex(i+1, j, k))
				}
				if j < ny-1 {
					faces = append(faces, yFace(i, j+1, k))
					owner, neighbour = append(owner, c), append(neighbour, cellIndex(i, j+1, k))
				}
				if k < nz-1 {
					faces = append(faces, zFace(i, j, k+1))
					owner, neighbour = append(owner, c), append(neighbour, cellIndex(i, j, k+1))
				}
			}
		}
	}
	var (
		patches = make([]PatchSpec, 0, 6)
	)
	addPatch := func(side string, fn func()) {
		start := len(faces)
		fn()
		pt, ok := bs.Types[side]
		if !ok {
			pt = types.Patch_Wall
		}
		patches = append(patches, PatchSpec{Name: side, Type: pt, Start: start, Size: len(faces) - start})
	}
	addPatch("left", func() {
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				faces, owner = append(faces, reverse(xFace(0, j, k))), append(owner, cellIndex(0, j, k))
			}
		}
	})
	addPatch("right", func() {
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				faces, owner = append(faces, xFace(nx, j, k)), append(owner, cellIndex(nx-1, j, k))
			}
		}
	})
	addPatch("bottom", func() {
		for k := 0; k < nz; k++ {
			for i := 0; i < nx; i++ {
				faces, owner = append(faces, reverse(yFace(i, 0, k))), append(owner, cellIndex(i, 0, k))
			}
		}
	})
	addPatch("top", func() {
		for k := 0; k < nz; k++ {
			for i := 0; i < nx; i++ {
				faces, owner = append(faces, yFace(i, ny, k)), append(owner, cellIndex(i, ny-1, k))
			}
		}
	})
	addPatch("back", func() {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				faces, owner = append(faces, reverse(zFace(i, j, 0))), append(owner, cellIndex(i, j, 0))
			}
		}
	})
	addPatch("front", func() {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				faces, owner = append(faces, zFace(i, j, nz)), append(owner, cellIndex(i, j, nz-1))
			}
		}
	})
	name := bs.Name
	if name == "" {
		name = "block"
	}
	return New(name, points, faces, owner, neighbour, patches)
}

func isBlockSide(side string) bool {
	for _, s := range BlockSides {
		if s == side {
			return true
		}
	}
	return false
}
