// Package mesh holds the face-addressed finite-volume mesh: cells, faces with
// owner/neighbour addressing, boundary patches and the derived geometry used
// by the discretisation (face area vectors, cell volumes, interpolation
// weights and delta coefficients).
//
// Faces are ordered internal faces first, in upper-triangular order
// (owner < neighbour, sorted by owner then neighbour), followed by the
// boundary faces grouped by patch.
package mesh

import (
	"fmt"
	"sort"
	"sync"

	"github.com/notargets/gofvm/ldu"
	"github.com/notargets/gofvm/parallel"
	"github.com/notargets/gofvm/types"
)

type Patch struct {
	Name        string
	Type        types.PatchType
	Index       int
	Start, Size int   // global face range [Start, Start+Size)
	FaceCells   []int // owner cell of each patch face
	// Processor patches only
	MyProcNo, NeighbProcNo int
	NeighbCellCentres      []types.Vector
}

// FvSize is the number of discretisation faces: zero for empty patches,
// whose faces lie in directions that are not solved for.
func (p *Patch) FvSize() int {
	if p.Type == types.Patch_Empty {
		return 0
	}
	return p.Size
}

func (p *Patch) Coupled() bool { return p.Type.Coupled() }

// PatchSpec describes a patch when building a mesh
type PatchSpec struct {
	Name  string
	Type  types.PatchType
	Start int
	Size  int
	// Processor patches only
	MyProcNo, NeighbProcNo int
	NeighbCellCentres      []types.Vector
}

type Mesh struct {
	Name      string
	Points    []types.Vector // optional, absent on decomposed meshes
	Faces     [][]int        // optional, point labels of each face
	Owner     []int          // all faces
	Neighbour []int          // internal faces
	Patches   []*Patch
	NCells    int

	// Primitive geometry, indexed by face or cell
	Sf    []types.Vector
	MagSf []float64
	Cf    []types.Vector
	C     []types.Vector
	V     []float64

	// Interpolation geometry, indexed by face (boundary faces included)
	Weights            []float64
	DeltaCoeffs        []float64
	NonOrthDeltaCoeffs []float64
	NonOrthCorrection  []types.Vector
	SolutionD          [3]bool // directions that are solved for

	Comm parallel.Comm

	mu      sync.Mutex
	cells   [][]int
	lduAddr *ldu.Addressing
	objects map[string]interface{}
}

// New builds a mesh from points and point-labelled faces, computing the
// geometry by triangle and pyramid decomposition.
func New(name string, points []types.Vector, faces [][]int, owner, neighbour []int,
	patches []PatchSpec) (m *Mesh, err error) {
	if len(faces) != len(owner) {
		return nil, fmt.Errorf("mesh %s: %d faces but %d owners", name, len(faces), len(owner))
	}
	m = &Mesh{
		Name:      name,
		Points:    points,
		Faces:     faces,
		Owner:     owner,
		Neighbour: neighbour,
		Comm:      parallel.Serial(),
	}
	m.NCells = countCells(owner, neighbour)
	if err = m.addPatches(patches); err != nil {
		return nil, err
	}
	m.calcFaceGeometry()
	m.calcCellGeometry()
	if err = m.Check(); err != nil {
		return nil, err
	}
	m.calcInterpolationGeometry()
	return
}

// NewFromGeometry builds a mesh from precomputed face and cell geometry
func NewFromGeometry(name string, nCells int, owner, neighbour []int, patches []PatchSpec,
	Sf, Cf, C []types.Vector, V []float64) (m *Mesh, err error) {
	if len(Sf) != len(owner) || len(Cf) != len(owner) {
		return nil, fmt.Errorf("mesh %s: face geometry size mismatch", name)
	}
	if len(C) != nCells || len(V) != nCells {
		return nil, fmt.Errorf("mesh %s: cell geometry size mismatch", name)
	}
	m = &Mesh{
		Name:      name,
		Owner:     owner,
		Neighbour: neighbour,
		NCells:    nCells,
		Sf:        Sf,
		Cf:        Cf,
		C:         C,
		V:         V,
		Comm:      parallel.Serial(),
	}
	m.MagSf = make([]float64, len(Sf))
	for f := range Sf {
		m.MagSf[f] = Sf[f].Mag()
	}
	if err = m.addPatches(patches); err != nil {
		return nil, err
	}
	if err = m.Check(); err != nil {
		return nil, err
	}
	m.calcInterpolationGeometry()
	return
}

func countCells(owner, neighbour []int) (n int) {
	for _, c := range owner {
		if c+1 > n {
			n = c + 1
		}
	}
	for _, c := range neighbour {
		if c+1 > n {
			n = c + 1
		}
	}
	return
}

func (m *Mesh) addPatches(specs []PatchSpec) error {
	m.Patches = make([]*Patch, len(specs))
	for i, ps := range specs {
		if ps.Start < 0 || ps.Start+ps.Size > len(m.Owner) {
			return fmt.Errorf("mesh %s: patch %s faces [%d,%d) outside face list of %d",
				m.Name, ps.Name, ps.Start, ps.Start+ps.Size, len(m.Owner))
		}
		p := &Patch{
			Name:              ps.Name,
			Type:              ps.Type,
			Index:             i,
			Start:             ps.Start,
			Size:              ps.Size,
			FaceCells:         make([]int, ps.Size),
			MyProcNo:          ps.MyProcNo,
			NeighbProcNo:      ps.NeighbProcNo,
			NeighbCellCentres: ps.NeighbCellCentres,
		}
		copy(p.FaceCells, m.Owner[ps.Start:ps.Start+ps.Size])
		if p.Coupled() && len(p.NeighbCellCentres) != p.Size {
			return fmt.Errorf("mesh %s: processor patch %s has %d neighbour centres for %d faces",
				m.Name, p.Name, len(p.NeighbCellCentres), p.Size)
		}
		m.Patches[i] = p
	}
	return nil
}

func (m *Mesh) NFaces() int         { return len(m.Owner) }
func (m *Mesh) NInternalFaces() int { return len(m.Neighbour) }

// Check validates face ordering and patch layout
func (m *Mesh) Check() error {
	var (
		nInt = m.NInternalFaces()
	)
	for f := 0; f < nInt; f++ {
		own, nei := m.Owner[f], m.Neighbour[f]
		if own >= nei {
			return fmt.Errorf("mesh %s: internal face %d has owner %d >= neighbour %d", m.Name, f, own, nei)
		}
		if f > 0 {
			pown, pnei := m.Owner[f-1], m.Neighbour[f-1]
			if own < pown || (own == pown && nei <= pnei) {
				return fmt.Errorf("mesh %s: internal face %d is not in upper-triangular order", m.Name, f)
			}
		}
	}
	start := nInt
	for _, p := range m.Patches {
		if p.Start != start {
			return fmt.Errorf("mesh %s: patch %s starts at face %d, expected %d", m.Name, p.Name, p.Start, start)
		}
		start += p.Size
	}
	if start != m.NFaces() {
		return fmt.Errorf("mesh %s: patches cover %d faces of %d", m.Name, start, m.NFaces())
	}
	for c, v := range m.V {
		if v <= 0 {
			return fmt.Errorf("mesh %s: cell %d has non-positive volume %g", m.Name, c, v)
		}
	}
	return nil
}

// Cells lists the faces of each cell, owned faces and neighbour faces
func (m *Mesh) Cells() [][]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cells == nil {
		count := make([]int, m.NCells)
		for _, c := range m.Owner {
			count[c]++
		}
		for _, c := range m.Neighbour {
			count[c]++
		}
		m.cells = make([][]int, m.NCells)
		for c := range m.cells {
			m.cells[c] = make([]int, 0, count[c])
		}
		for f, c := range m.Owner {
			m.cells[c] = append(m.cells[c], f)
		}
		for f, c := range m.Neighbour {
			m.cells[c] = append(m.cells[c], f)
		}
		for c := range m.cells {
			sort.Ints(m.cells[c])
		}
	}
	return m.cells
}

// WhichPatch returns the patch index and patch-local face of a boundary face
func (m *Mesh) WhichPatch(face int) (patchi, patchFace int) {
	for _, p := range m.Patches {
		if face >= p.Start && face < p.Start+p.Size {
			return p.Index, face - p.Start
		}
	}
	return -1, -1
}

func (m *Mesh) LduAddr() *ldu.Addressing {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lduAddr == nil {
		patchAddr := make([][]int, len(m.Patches))
		for i, p := range m.Patches {
			patchAddr[i] = p.FaceCells[:p.FvSize()]
		}
		m.lduAddr = ldu.NewAddressing(m.NCells, m.Owner[:m.NInternalFaces()], m.Neighbour, patchAddr)
	}
	return m.lduAddr
}

func (m *Mesh) FindPatch(name string) *Patch {
	for _, p := range m.Patches {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Register stores an object (usually a field) under name in the mesh registry
func (m *Mesh) Register(name string, obj interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string]interface{})
	}
	m.objects[name] = obj
}

func (m *Mesh) Lookup(name string) (obj interface{}, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok = m.objects[name]
	return
}

func (m *Mesh) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
}

// Names lists the registered object names, sorted
func (m *Mesh) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.objects))
	for k := range m.objects {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// TotalVolume is the volume of the mesh summed over all ranks
func (m *Mesh) TotalVolume() float64 {
	var sum float64
	for _, v := range m.V {
		sum += v
	}
	return m.Comm.AllReduceSum(sum)
}

// NSolutionD is the number of solved-for directions
func (m *Mesh) NSolutionD() (n int) {
	for _, s := range m.SolutionD {
		if s {
			n++
		}
	}
	return
}
