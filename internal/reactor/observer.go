package reactor

// EventType distinguishes observer events.
type EventType int

const (
	// EventPassStarted opens a propagation pass.
	EventPassStarted EventType = iota + 1
	// EventRecomputed reports a compute cell that received a new value.
	EventRecomputed
	// EventUnresolved reports a compute cell left unchanged because a
	// dependency had no value.
	EventUnresolved
	// EventPassFinished closes a propagation pass.
	EventPassFinished
)

func (t EventType) String() string {
	switch t {
	case EventPassStarted:
		return "pass_started"
	case EventRecomputed:
		return "recomputed"
	case EventUnresolved:
		return "unresolved"
	case EventPassFinished:
		return "pass_finished"
	default:
		return "unknown"
	}
}

// Event describes one step of engine activity.
type Event[T any] struct {
	Type EventType

	// PassID groups the events of one write. Recomputations done by
	// CreateCompute, outside any pass, carry an empty PassID.
	PassID string

	// Seq is the logical clock stamp. Strictly increasing per reactor.
	Seq int64

	// Origin is the cell whose write started the pass.
	Origin CellID

	// Cell is the recomputed cell (EventRecomputed, EventUnresolved).
	Cell ComputeID

	// Value is the new value (EventRecomputed).
	Value T

	// Changed is true when Value differs from the previous value or the
	// cell had none. Informational: it never stops propagation.
	Changed bool

	// Steps is the number of recomputations (EventPassFinished).
	Steps int
}

// Observer receives engine events synchronously, in order.
//
// Observers must not call back into the reactor.
type Observer[T any] interface {
	Observe(Event[T])
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[T any] func(Event[T])

// Observe calls f(ev).
func (f ObserverFunc[T]) Observe(ev Event[T]) {
	f(ev)
}

// ObserverID identifies a registered observer.
type ObserverID int

// AddObserver registers o and returns its id.
func (r *Reactor[T]) AddObserver(o Observer[T]) ObserverID {
	r.nextObserver++
	id := r.nextObserver
	r.observers = append(r.observers, registeredObserver[T]{id: id, obs: o})
	return id
}

// RemoveObserver unregisters an observer.
// Returns ErrCodeNonexistentObserver if id is not registered.
func (r *Reactor[T]) RemoveObserver(id ObserverID) error {
	for i, ro := range r.observers {
		if ro.id == id {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return nil
		}
	}
	return newNonexistentObserverError(id)
}

type registeredObserver[T any] struct {
	id  ObserverID
	obs Observer[T]
}

// emit stamps ev and delivers it to observers in registration order.
func (r *Reactor[T]) emit(ev Event[T]) {
	ev.Seq = r.clock.Next()
	for _, ro := range r.observers {
		ro.obs.Observe(ev)
	}
}
