package xtirq

import "github.com/example/xtirq/registry"

// Handle is the opaque result of a successful allocation. Callers carry it
// around to enable, disable, or free the binding it represents; its fields
// are unexported so the only way to affect an allocation is through the
// Allocator that produced it.
type Handle struct {
	line int
	cpu  int

	entry      *registry.Entry
	subscriber *registry.Subscriber // nil for an exclusive (non-shared) handle

	freed bool
}

// Line returns the hardware interrupt line this handle was bound to.
func (h *Handle) Line() int { return h.line }

// CPU returns the CPU this handle is bound to.
func (h *Handle) CPU() int { return h.cpu }

// shared reports whether this handle represents one subscriber on a
// shared-mode line, as opposed to sole ownership of an exclusive line.
func (h *Handle) shared() bool { return h.subscriber != nil }
