package reactor

import "fmt"

// CellKind distinguishes the two cell arenas.
type CellKind uint8

const (
	// KindInput marks a handle into the input arena.
	KindInput CellKind = iota + 1
	// KindCompute marks a handle into the compute arena.
	KindCompute
)

func (k CellKind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindCompute:
		return "compute"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// InputID identifies an input cell.
type InputID int

// ComputeID identifies a compute cell.
type ComputeID int

// CellID is a handle to either kind of cell.
//
// The zero CellID is not valid. Use Input or Compute to build one.
type CellID struct {
	Kind  CellKind
	Index int
}

// Input returns the CellID for an input handle.
func Input(id InputID) CellID {
	return CellID{Kind: KindInput, Index: int(id)}
}

// Compute returns the CellID for a compute handle.
func Compute(id ComputeID) CellID {
	return CellID{Kind: KindCompute, Index: int(id)}
}

// String renders the handle as "input:3" or "compute:0".
func (c CellID) String() string {
	return fmt.Sprintf("%s:%d", c.Kind, c.Index)
}

// ComputeFunc derives a compute cell's value from its dependency values.
// args is ordered exactly as the dependency list. The slice is owned by
// the reactor and must not be retained.
type ComputeFunc[T any] func(args []T) T

type inputCell[T any] struct {
	value T
}

type computeCell[T any] struct {
	value    T
	resolved bool
	deps     []CellID
	fn       ComputeFunc[T]
}
