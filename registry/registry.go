// Package registry is the Vector Registry: runtime state for any
// (line, cpu) pair that has ever acquired a handler, plus the subscriber
// chains for shared-mode lines.
//
// The source represents this as a singly-linked list kept in ascending
// key order. Since there are only NumLines*NumCPUs = 64 possible keys,
// this implementation uses a fixed array indexed by key instead (design
// note in spec §9): lookup is O(1), insertion never allocates, and the
// ascending-key ordering invariant holds by construction since Entries
// always returns keys 0..63 in order.
package registry

import "github.com/example/xtirq/catalog"

// Flags is a bitmask of runtime state attached to a line.
type Flags uint8

const (
	// ReservedAtRuntime lines are never returned by the Allocator.
	ReservedAtRuntime Flags = 1 << iota
	// FlashResident handlers remain callable while flash is unavailable.
	FlashResident
	// SharedMode lines dispatch through the chain of Subscribers.
	SharedMode
	// ExclusiveMode lines have exactly one directly-installed handler.
	ExclusiveMode
)

// Subscriber is one shared-mode handler: it fires when StatusReg is nil
// (always dispatch) or when *StatusReg&StatusMask is nonzero.
type Subscriber struct {
	StatusReg  *uint32
	StatusMask uint32
	Handler    func(arg any)
	Arg        any

	next *Subscriber
}

// Matches reports whether this subscriber's status condition is satisfied.
func (s *Subscriber) Matches() bool {
	return s.StatusReg == nil || (*s.StatusReg&s.StatusMask) != 0
}

// Entry is the runtime state for one (line, cpu) pair.
type Entry struct {
	Line int
	CPU  int

	Flags       Flags
	subscribers *Subscriber // head; most-recently-pushed first
}

// Key returns the entry's encoded (line, cpu) identifier: line in the low
// 5 bits, cpu in the next bit. Monotonically orderable, per spec.
func (e *Entry) Key() int {
	return Key(e.Line, e.CPU)
}

// Key encodes a (line, cpu) pair the same way Entry.Key does, without
// requiring an Entry.
func Key(line, cpu int) int {
	return (cpu << 5) | (line & 0x1f)
}

// PushSubscriber adds a subscriber to the head of the chain (most-recent-
// first visibility order, matching the source's push-front chain).
func (e *Entry) PushSubscriber(s *Subscriber) {
	s.next = e.subscribers
	e.subscribers = s
}

// RemoveSubscriber unlinks s from the chain. Reports whether the chain is
// now empty.
func (e *Entry) RemoveSubscriber(s *Subscriber) (empty bool) {
	var prev *Subscriber
	for cur := e.subscribers; cur != nil; cur = cur.next {
		if cur == s {
			if prev == nil {
				e.subscribers = cur.next
			} else {
				prev.next = cur.next
			}
			break
		}
		prev = cur
	}
	return e.subscribers == nil
}

// SubscriberCount returns the number of subscribers currently chained.
func (e *Entry) SubscriberCount() int {
	n := 0
	for cur := e.subscribers; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Subscribers returns the chain head, for walking in dispatch order
// (most-recently-pushed first). The registry has no lock of its own:
// callers must not mutate the chain while walking it without holding the
// platform critical section the Allocator takes around registry access.
func (e *Entry) Subscribers() *Subscriber {
	return e.subscribers
}

// Next returns the next subscriber in the chain.
func (s *Subscriber) Next() *Subscriber {
	return s.next
}

// reset clears an entry back to its zero runtime state, in place, so the
// array slot can be reused without disturbing its identity.
func (e *Entry) reset() {
	e.Flags = 0
	e.subscribers = nil
}

// Registry is the array-backed Vector Registry for all lines on all CPUs.
type Registry struct {
	slots [catalog.NumLines * catalog.NumCPUs]Entry
	live  [catalog.NumLines * catalog.NumCPUs]bool
}

// New returns an empty Vector Registry.
func New() *Registry {
	return &Registry{}
}

// Find returns the entry for (line, cpu) if it has ever been touched.
func (r *Registry) Find(line, cpu int) (*Entry, bool) {
	k := Key(line, cpu)
	if !r.live[k] {
		return nil, false
	}
	return &r.slots[k], true
}

// GetOrCreate returns the entry for (line, cpu), creating a zeroed one if
// this is the first time it's been touched.
func (r *Registry) GetOrCreate(line, cpu int) *Entry {
	k := Key(line, cpu)
	if !r.live[k] {
		r.slots[k] = Entry{Line: line, CPU: cpu}
		r.live[k] = true
	}
	return &r.slots[k]
}

// Remove reclaims an entry back to the free state. Optional per spec
// (implementers may instead leave zeroed entries in place); this
// implementation does reclaim, since the array backing makes it free.
func (r *Registry) Remove(e *Entry) {
	k := e.Key()
	if !r.live[k] {
		return
	}
	e.reset()
	r.live[k] = false
}

// Entries returns every live entry in ascending key order, for invariant
// checks and tests.
func (r *Registry) Entries() []*Entry {
	var out []*Entry
	for k := 0; k < len(r.slots); k++ {
		if r.live[k] {
			out = append(out, &r.slots[k])
		}
	}
	return out
}
