package reactor

// findCycle reports whether giving target the dependency list deps would
// let target reach itself. It returns the offending path, starting and
// ending at target, or nil.
//
// The walk follows dependency lists (not the reverse index) using the
// stored lists of every other compute cell and deps for target itself.
// Handles that name no existing cell are leaves.
func (r *Reactor[T]) findCycle(target ComputeID, deps []CellID) []CellID {
	// three states: unvisited (not in map), visiting (false), done (true)
	state := make(map[ComputeID]bool)
	var path []CellID

	var visit func(c ComputeID, list []CellID) bool
	visit = func(c ComputeID, list []CellID) bool {
		state[c] = false
		path = append(path, Compute(c))

		for _, dep := range list {
			if dep.Kind != KindCompute {
				continue
			}
			next := ComputeID(dep.Index)
			if next == target {
				path = append(path, dep)
				return true
			}
			if _, seen := state[next]; seen {
				// either finished, or part of a cycle that does not pass
				// through target and is not this edit's to report
				continue
			}
			if !r.computeExists(next) {
				continue
			}
			if visit(next, r.computes[next].deps) {
				return true
			}
		}

		state[c] = true
		path = path[:len(path)-1]
		return false
	}

	if visit(target, deps) {
		return path
	}
	return nil
}
