package devices

import "sync"

// StatusSource is a shared status register, the same shape a UART's
// interrupt-identification register plays in the source's shared-line
// examples: several independent conditions (line a, line b, ...) OR
// together into one register, and a shared-mode handler chain fires only
// for the bits that are currently set.
//
// It is not safe to read Register()'s pointer concurrently with SetBit/
// ClearBit from another goroutine: reads through that pointer do not take
// the mutex. cmd/irqdemo orders each mutation and the dispatch that reads
// it one after the other: it sets a bit, then hands the raise to the
// CPUWorker with Run, which blocks until dispatch has returned, before it
// touches the register again, the way a real core serializes ISR and
// register access by construction.
type StatusSource struct {
	mu  sync.Mutex
	reg uint32
}

// NewStatusSource returns a StatusSource with every condition bit clear.
func NewStatusSource() *StatusSource {
	return &StatusSource{}
}

// Register returns a pointer suitable for xtirq.AllocWithStatus's
// statusReg argument.
func (s *StatusSource) Register() *uint32 {
	return &s.reg
}

// SetBit raises the condition bits in mask.
func (s *StatusSource) SetBit(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg |= mask
}

// ClearBit lowers the condition bits in mask, the way an ISR acknowledges
// a condition after handling it.
func (s *StatusSource) ClearBit(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg &^= mask
}

// Snapshot returns the register's current value.
func (s *StatusSource) Snapshot() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg
}
