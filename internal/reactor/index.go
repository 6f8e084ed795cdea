package reactor

import "sort"

// dependencyIndex maps a cell to the compute cells that read it.
//
// INVARIANT: c is in dependents[x] exactly when x is in c's dependency
// list. Every edit of a dependency list goes through link, unlink or
// rewire so the two sides never disagree.
type dependencyIndex struct {
	dependents map[CellID]map[ComputeID]struct{}
}

func newDependencyIndex() *dependencyIndex {
	return &dependencyIndex{
		dependents: make(map[CellID]map[ComputeID]struct{}),
	}
}

// link records that c reads each of deps.
func (ix *dependencyIndex) link(c ComputeID, deps []CellID) {
	for _, dep := range deps {
		set, ok := ix.dependents[dep]
		if !ok {
			set = make(map[ComputeID]struct{})
			ix.dependents[dep] = set
		}
		set[c] = struct{}{}
	}
}

// unlink removes c from the dependent sets of deps.
func (ix *dependencyIndex) unlink(c ComputeID, deps []CellID) {
	for _, dep := range deps {
		set, ok := ix.dependents[dep]
		if !ok {
			continue
		}
		delete(set, c)
		if len(set) == 0 {
			delete(ix.dependents, dep)
		}
	}
}

// rewire moves c's reverse edges from oldDeps to newDeps.
func (ix *dependencyIndex) rewire(c ComputeID, oldDeps, newDeps []CellID) {
	ix.unlink(c, oldDeps)
	ix.link(c, newDeps)
}

// of returns the direct dependents of id in ascending order.
func (ix *dependencyIndex) of(id CellID) []ComputeID {
	set := ix.dependents[id]
	if len(set) == 0 {
		return nil
	}

	result := make([]ComputeID, 0, len(set))
	for c := range set {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// has reports whether c is a dependent of id.
func (ix *dependencyIndex) has(id CellID, c ComputeID) bool {
	_, ok := ix.dependents[id][c]
	return ok
}

// size returns the number of cells with at least one dependent.
func (ix *dependencyIndex) size() int {
	return len(ix.dependents)
}
