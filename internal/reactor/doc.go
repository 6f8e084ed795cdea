// Package reactor implements an in-memory reactive cell graph.
//
// A Reactor holds input cells, whose values are set from outside, and
// compute cells, whose values are pure functions of other cells. Writing
// an input (or redefining a compute cell) refreshes every compute cell that
// depends on it, directly or transitively, so that after each call returns
// the graph is at a fixed point.
//
// ARCHITECTURE:
//
// Cell Store:
// Inputs and computes live in two flat arenas. Handles (InputID, ComputeID,
// or the tagged CellID) are indices into those arenas. Handles are never
// reused and cells are never removed.
//
// Dependency Index:
// A reverse-edge map from a cell to the compute cells that list it as a
// dependency. A compute cell is in the dependent set of X exactly when X
// is in its dependency list.
//
// Propagation:
// A FIFO work queue seeded with the dependents of the changed cell. Each
// dequeued cell is recomputed and its own dependents are appended. A cell
// with ancestors at different depths may be recomputed more than once in a
// pass; the last visit always sees fresh inputs, so the pass ends at a
// fixed point. Dependents are enqueued in ascending ComputeID order so a
// pass is reproducible.
//
// Cycles are not detected unless WithCycleDetection is set. Without it a
// cycle makes propagation run until WithMaxSteps (if any) stops it.
//
// CONCURRENCY:
//
// A Reactor is not safe for concurrent use. Every operation runs to
// completion on the caller's goroutine; callers that share a Reactor must
// serialize access themselves.
package reactor
