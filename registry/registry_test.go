package registry_test

import (
	"testing"

	"github.com/example/xtirq/registry"
)

func TestFindReportsAbsentUntilTouched(t *testing.T) {
	r := registry.New()
	if _, ok := r.Find(9, 0); ok {
		t.Fatalf("Find should report false for a line never touched")
	}
	e := r.GetOrCreate(9, 0)
	if e.Line != 9 || e.CPU != 0 {
		t.Fatalf("GetOrCreate(9, 0) = {Line:%d CPU:%d}, want {9 0}", e.Line, e.CPU)
	}
	found, ok := r.Find(9, 0)
	if !ok || found != e {
		t.Fatalf("Find(9, 0) did not return the entry GetOrCreate created")
	}
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	r := registry.New()
	first := r.GetOrCreate(5, 1)
	first.Flags |= registry.SharedMode
	second := r.GetOrCreate(5, 1)
	if second != first {
		t.Fatalf("GetOrCreate returned a different entry on the second call")
	}
	if second.Flags&registry.SharedMode == 0 {
		t.Fatalf("expected the mutation on the first call to be visible through the second")
	}
}

func TestDistinctCPUsOnTheSameLineAreIndependent(t *testing.T) {
	r := registry.New()
	e0 := r.GetOrCreate(9, 0)
	e1 := r.GetOrCreate(9, 1)
	if e0 == e1 {
		t.Fatalf("expected (9, 0) and (9, 1) to be distinct entries")
	}
	e0.Flags |= registry.ExclusiveMode
	if e1.Flags&registry.ExclusiveMode != 0 {
		t.Fatalf("mutating (9, 0) should not affect (9, 1)")
	}
}

func TestPushSubscriberOrdersMostRecentFirst(t *testing.T) {
	e := &registry.Entry{Line: 9, CPU: 0}
	a := &registry.Subscriber{Arg: "a"}
	b := &registry.Subscriber{Arg: "b"}
	c := &registry.Subscriber{Arg: "c"}

	e.PushSubscriber(a)
	e.PushSubscriber(b)
	e.PushSubscriber(c)

	var order []string
	for s := e.Subscribers(); s != nil; s = s.Next() {
		order = append(order, s.Arg.(string))
	}
	want := []string{"c", "b", "a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if e.SubscriberCount() != 3 {
		t.Fatalf("SubscriberCount() = %d, want 3", e.SubscriberCount())
	}
}

func TestRemoveSubscriberUnlinksAndReportsEmpty(t *testing.T) {
	e := &registry.Entry{Line: 9, CPU: 0}
	a := &registry.Subscriber{Arg: "a"}
	b := &registry.Subscriber{Arg: "b"}
	e.PushSubscriber(a)
	e.PushSubscriber(b)

	if empty := e.RemoveSubscriber(b); empty {
		t.Fatalf("chain should not be empty after removing one of two subscribers")
	}
	if e.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", e.SubscriberCount())
	}
	if empty := e.RemoveSubscriber(a); !empty {
		t.Fatalf("chain should be empty after removing the last subscriber")
	}
	if e.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() = %d, want 0", e.SubscriberCount())
	}
}

func TestRemoveSubscriberNotInChainIsANoop(t *testing.T) {
	e := &registry.Entry{Line: 9, CPU: 0}
	a := &registry.Subscriber{Arg: "a"}
	e.PushSubscriber(a)

	stray := &registry.Subscriber{Arg: "stray"}
	if empty := e.RemoveSubscriber(stray); empty {
		t.Fatalf("removing a subscriber that was never chained should not report empty")
	}
	if e.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1 (unaffected)", e.SubscriberCount())
	}
}

func TestRemoveReclaimsTheSlot(t *testing.T) {
	r := registry.New()
	e := r.GetOrCreate(9, 0)
	e.Flags |= registry.ExclusiveMode

	r.Remove(e)

	if _, ok := r.Find(9, 0); ok {
		t.Fatalf("Find should report false once the entry has been removed")
	}
	fresh := r.GetOrCreate(9, 0)
	if fresh.Flags != 0 {
		t.Fatalf("a recreated entry should start with no flags, got %v", fresh.Flags)
	}
}

func TestRemoveOnAnAlreadyAbsentEntryIsANoop(t *testing.T) {
	r := registry.New()
	e := &registry.Entry{Line: 9, CPU: 0}
	r.Remove(e) // never created through r; must not panic or corrupt state
	if _, ok := r.Find(9, 0); ok {
		t.Fatalf("Find should still report false")
	}
}

func TestEntriesReturnsAscendingKeyOrder(t *testing.T) {
	r := registry.New()
	// Touch entries out of order to verify Entries() sorts by key, not by
	// insertion order (spec's ascending-key-order invariant).
	r.GetOrCreate(20, 1)
	r.GetOrCreate(3, 0)
	r.GetOrCreate(3, 1)
	r.GetOrCreate(0, 0)

	entries := r.Entries()
	if len(entries) != 4 {
		t.Fatalf("len(Entries()) = %d, want 4", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Key() >= entries[i].Key() {
			t.Fatalf("Entries() not in ascending key order: %d then %d", entries[i-1].Key(), entries[i].Key())
		}
	}
}

func TestKeyOrdersCPUAboveLine(t *testing.T) {
	if registry.Key(31, 0) >= registry.Key(0, 1) {
		t.Fatalf("expected every cpu-0 key to sort below every cpu-1 key")
	}
}
