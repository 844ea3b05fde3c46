package core

// Event is one message on a transient event queue.
type Event struct {
	// ID is unique and increasing within one queue.
	ID uint64

	// Payload is the published value.
	Payload any
}

// EventQueue is an append-only, short-retention message queue living
// inside the State. Retention is two ticks: an event published at tick T
// is readable during T and T+1, and gone at T+2. Consumers must poll
// promptly or miss it; see the pause hazard notes on Registry.Pause.
//
// Like everything else inside State, an EventQueue is only touched under
// exclusive access, so it needs no locking of its own.
type EventQueue struct {
	name string

	// Double buffer: curr holds this tick's events, prev last tick's.
	// rotate() discards prev and swaps.
	prev []Event
	curr []Event

	nextID uint64
}

func newEventQueue(name string) *EventQueue {
	return &EventQueue{name: name}
}

// Name returns the queue's registration name.
func (q *EventQueue) Name() string {
	return q.name
}

// Publish appends a message and returns its queue-local ID.
func (q *EventQueue) Publish(payload any) uint64 {
	q.nextID++
	q.curr = append(q.curr, Event{ID: q.nextID, Payload: payload})
	return q.nextID
}

// Len returns the number of retained (still readable) events.
func (q *EventQueue) Len() int {
	return len(q.prev) + len(q.curr)
}

// rotate expires last tick's buffer. Called by State.BeginTick.
func (q *EventQueue) rotate() {
	q.prev = q.curr
	q.curr = nil
}

// Read appends all retained events newer than the cursor to dst, advances
// the cursor past them, and returns dst. A zero EventCursor reads
// everything still retained.
func (q *EventQueue) Read(cursor *EventCursor, dst []Event) []Event {
	for _, evt := range q.prev {
		if evt.ID > cursor.lastSeen {
			dst = append(dst, evt)
		}
	}
	for _, evt := range q.curr {
		if evt.ID > cursor.lastSeen {
			dst = append(dst, evt)
		}
	}
	if q.nextID > cursor.lastSeen {
		cursor.lastSeen = q.nextID
	}
	return dst
}

// EventCursor tracks a reader's position in one EventQueue. Each reader
// owns its cursor; the queue itself keeps no per-reader state.
//
// A cursor does not protect against expiry: if events rotate out before
// the reader's next Read, the cursor silently skips past them.
type EventCursor struct {
	lastSeen uint64
}
