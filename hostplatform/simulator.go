package hostplatform

import (
	"runtime"
	"sync"

	"golang.org/x/sys/unix"
)

const numLines = 32
const numCPUs = 2

func key(line, cpu int) int { return cpu*numLines + line }

type vectorSlot struct {
	handler   HandlerFunc
	arg       any
	installed bool
}

// Simulator is an in-process Platform: a real mutex standing in for the
// interrupt-masking spinlock, a vector table array, per-CPU enable masks,
// and a routing-matrix map. It is sufficient to drive and test the whole
// allocation core without real hardware.
//
// Go has no way to mask asynchronous interrupts the way the spinlock's
// portENTER_CRITICAL does on Xtensa, because in this model there are no
// asynchronous interrupts in the first place: RaiseIRQ below is an
// ordinary function call, not a hardware trap, so mutual exclusion from
// the mutex alone is enough to give the Shared Dispatcher (§4.5) the same
// serialization the lock gives every other mutator.
type Simulator struct {
	mu sync.Mutex

	vectors [numLines * numCPUs]vectorSlot
	enabled [numCPUs]uint32
	routes  map[routeKey]int
}

type routeKey struct {
	cpu    int
	source int
}

// NewSimulator returns a Platform with every line at its default,
// unhandled state.
func NewSimulator() *Simulator {
	return &Simulator{routes: make(map[routeKey]int)}
}

func (s *Simulator) CriticalEnter() { s.mu.Lock() }
func (s *Simulator) CriticalExit()  { s.mu.Unlock() }

func (s *Simulator) InstallVector(line, cpu int, handler HandlerFunc, arg any) {
	s.vectors[key(line, cpu)] = vectorSlot{handler: handler, arg: arg, installed: true}
}

func (s *Simulator) RestoreDefaultVector(line, cpu int) {
	s.vectors[key(line, cpu)] = vectorSlot{}
}

func (s *Simulator) HasNonDefaultVector(line, cpu int) bool {
	return s.vectors[key(line, cpu)].installed
}

func (s *Simulator) EnableLine(line, cpu int) {
	s.enabled[cpu] |= 1 << uint(line)
}

func (s *Simulator) DisableLine(line, cpu int) {
	s.enabled[cpu] &^= 1 << uint(line)
}

func (s *Simulator) ClearPending(line, cpu int) {
	// No pending-interrupt latch is modeled for simulated lines; a real
	// register-mapped Platform would clear INTCLEAR here.
}

func (s *Simulator) EnabledMask(cpu int) uint32 {
	return s.enabled[cpu]
}

func (s *Simulator) SetEnabledMask(cpu int, mask uint32) {
	s.enabled[cpu] = mask
}

func (s *Simulator) Route(cpu, source, line int) {
	s.routes[routeKey{cpu, source}] = line
}

// RoutedLine reports which line a (cpu, source) pair was last routed to,
// for tests and diagnostics.
func (s *Simulator) RoutedLine(cpu, source int) (int, bool) {
	line, ok := s.routes[routeKey{cpu, source}]
	return line, ok
}

// RaiseIRQ invokes line's installed handler on cpu, simulating a hardware
// interrupt. If no handler is installed this is a no-op: on real hardware
// it would vector through the default "unhandled interrupt" stub.
func (s *Simulator) RaiseIRQ(line, cpu int) {
	slot := s.vectors[key(line, cpu)]
	if slot.installed && slot.handler != nil {
		slot.handler(slot.arg)
	}
}

// CPUWorker is a goroutine pinned to a specific host CPU via
// sched_setaffinity, standing in for one of the chip's two physical cores.
// Work submitted with Run executes on that pinned OS thread, so CPU
// affinity claims made via hostplatform.WithCPU are backed by a real
// scheduling guarantee, not just bookkeeping.
type CPUWorker struct {
	cpu  int
	work chan func()
	done chan struct{}
}

// NewCPUWorker starts a goroutine locked to the OS thread it runs on and
// pinned to the given host CPU index. Callers submit work with Run and
// must call Stop when finished.
func NewCPUWorker(cpu int) (*CPUWorker, error) {
	w := &CPUWorker{cpu: cpu, work: make(chan func()), done: make(chan struct{})}
	ready := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		var set unix.CPUSet
		set.Zero()
		set.Set(cpu)
		ready <- unix.SchedSetaffinity(0, &set)

		for {
			select {
			case fn := <-w.work:
				fn()
			case <-w.done:
				return
			}
		}
	}()
	if err := <-ready; err != nil {
		close(w.done)
		return nil, err
	}
	return w, nil
}

// Run executes fn on the pinned worker goroutine and blocks until it
// returns.
func (w *CPUWorker) Run(fn func()) {
	done := make(chan struct{})
	w.work <- func() {
		fn()
		close(done)
	}
	<-done
}

// CPU returns the host CPU index this worker is pinned to.
func (w *CPUWorker) CPU() int { return w.cpu }

// Stop terminates the worker goroutine.
func (w *CPUWorker) Stop() {
	close(w.done)
}
