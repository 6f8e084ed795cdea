package reactor

// workQueue is the FIFO of compute cells waiting to be recomputed during a
// propagation pass.
//
// The queue is unbounded: a diamond-shaped graph enqueues the same cell
// once per refreshed dependency, and an undetected cycle enqueues forever.
// Only the reactor's own goroutine touches it, so there is no locking.
type workQueue struct {
	items []ComputeID
	head  int
}

// newWorkQueue creates an empty queue.
func newWorkQueue() *workQueue {
	return &workQueue{
		items: make([]ComputeID, 0, 16),
	}
}

// Push appends ids to the back of the queue, preserving their order.
func (q *workQueue) Push(ids ...ComputeID) {
	q.items = append(q.items, ids...)
}

// Pop removes and returns the front id.
// Returns (0, false) if the queue is empty.
func (q *workQueue) Pop() (ComputeID, bool) {
	if q.head == len(q.items) {
		return 0, false
	}

	id := q.items[q.head]
	q.head++

	// Reset once drained so a long pass does not keep growing the backing
	// array with consumed slots.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}

	return id, true
}

// Len returns the number of ids still waiting.
func (q *workQueue) Len() int {
	return len(q.items) - q.head
}
