// Package devices provides small interrupt sources used by tests and
// cmd/irqdemo to exercise the allocation core end to end: a periodic timer
// and a status-register-driven source suitable for shared-mode dispatch.
//
// Neither is a full peripheral emulation — this module's domain is
// interrupt allocation, not device modeling — so both are trimmed to just
// the state a caller of xtirq.AllocWithStatus needs: something that raises
// a line, and optionally a status register the Shared Dispatcher can
// filter on.
package devices

import (
	"sync"
	"time"
)

// TimerSource periodically invokes the raise callback given to Start,
// standing in for a hardware timer's count-to-zero event. It owns no line
// or CPU identity itself; the caller wires raise to whatever mechanism signals the allocated
// line (hostplatform.Simulator.RaiseIRQ on a real chip's counterpart).
type TimerSource struct {
	mu      sync.Mutex
	period  time.Duration
	stop    chan struct{}
	running bool
}

// NewTimerSource returns a TimerSource that fires every period once
// started.
func NewTimerSource(period time.Duration) *TimerSource {
	return &TimerSource{period: period}
}

// Start launches the ticking goroutine, calling raise on every tick, until
// Stop is called. Calling Start while already running is a no-op.
func (t *TimerSource) Start(raise func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.running = true
	t.stop = make(chan struct{})
	stop := t.stop
	go func() {
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				raise()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the ticking goroutine. Safe to call even if never started.
func (t *TimerSource) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	close(t.stop)
	t.running = false
}
