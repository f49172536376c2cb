package types

import (
	"fmt"
	"strings"
)

// PatchType is the geometric type of a boundary patch. Field boundary
// conditions are chosen separately, per field.
type PatchType uint8

const (
	Patch_Generic PatchType = iota
	Patch_Wall
	Patch_Empty
	Patch_Symmetry
	Patch_Processor
)

var PatchNameMap = map[string]PatchType{
	"patch":         Patch_Generic,
	"inlet":         Patch_Generic,
	"outlet":        Patch_Generic,
	"wall":          Patch_Wall,
	"empty":         Patch_Empty,
	"symmetry":      Patch_Symmetry,
	"symmetryplane": Patch_Symmetry,
	"processor":     Patch_Processor,
}

func NewPatchType(label string) (pt PatchType, err error) {
	var (
		ok bool
	)
	if pt, ok = PatchNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown patch type %q", label)
	}
	return
}

func (pt PatchType) String() string {
	switch pt {
	case Patch_Generic:
		return "patch"
	case Patch_Wall:
		return "wall"
	case Patch_Empty:
		return "empty"
	case Patch_Symmetry:
		return "symmetryPlane"
	case Patch_Processor:
		return "processor"
	}
	return "unknown"
}

// Coupled patches exchange values with a neighbouring rank
func (pt PatchType) Coupled() bool { return pt == Patch_Processor }
