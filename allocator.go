// Package xtirq is the interrupt allocation core: it hands out hardware
// interrupt lines to software sources under the catalog's static
// constraints, tracks what's been handed out in the Vector Registry, and
// runs the Shared Dispatcher for lines multiple sources agreed to share.
//
// The allocator itself never touches hardware. Everything it needs from
// the chip — the masking spinlock, the vector table, line enable state,
// and the routing matrix — comes through the hostplatform.Platform it is
// built with, so the same allocation logic drives both a real board and
// the in-process hostplatform.Simulator used in tests and the demo.
package xtirq

import (
	"context"
	"fmt"
	"log"

	"github.com/example/xtirq/catalog"
	"github.com/example/xtirq/hostplatform"
	"github.com/example/xtirq/registry"
)

// Allocator is the interrupt allocation core for one chip instance: a
// catalog of lines, a registry of what's been handed out, and the
// platform that does the actual hardware work.
type Allocator struct {
	catalog  *catalog.Catalog
	registry *registry.Registry
	platform hostplatform.Platform

	logger *log.Logger
	Debug  bool

	// nonIRAM[cpu] is the bitmask of lines on cpu whose current handler is
	// NOT flash-resident, i.e. the set the Flash-Unsafe Window must mask
	// out while flash is unavailable (spec §4.8).
	nonIRAM [catalog.NumCPUs]uint32
	// windowOpen[cpu] guards against nested or unbalanced window calls.
	windowOpen [catalog.NumCPUs]bool
	// savedMask[cpu] is the set of lines the window disabled, so Enable
	// can restore exactly them.
	savedMask [catalog.NumCPUs]uint32
}

// Option configures an Allocator at construction time.
type Option func(*Allocator)

// WithLogger directs diagnostic output at l instead of the default
// (discarded unless Debug is set).
func WithLogger(l *log.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// New builds an Allocator over cat and reg, driving platform for all
// hardware effects.
func New(cat *catalog.Catalog, reg *registry.Registry, platform hostplatform.Platform, opts ...Option) *Allocator {
	a := &Allocator{
		catalog:  cat,
		registry: reg,
		platform: platform,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Allocator) logf(format string, args ...any) {
	if a.Debug {
		a.logger.Printf(format, args...)
	}
}

func (a *Allocator) currentCPU(ctx context.Context) (int, error) {
	cpu, ok := hostplatform.CPUFromContext(ctx)
	if !ok {
		return 0, fmt.Errorf("xtirq: context carries no CPU identity, see hostplatform.WithCPU")
	}
	if cpu < 0 || cpu >= catalog.NumCPUs {
		return 0, fmt.Errorf("%w: cpu %d out of range", ErrInvalidArg, cpu)
	}
	return cpu, nil
}

// Alloc is AllocWithStatus without a shared status-register filter: the
// common case for an exclusive handler, or a shared handler that always
// fires.
func (a *Allocator) Alloc(ctx context.Context, source int, flags Flags, handler hostplatform.HandlerFunc, arg any) (*Handle, error) {
	return a.AllocWithStatus(ctx, source, flags, nil, 0, handler, arg)
}

// AllocWithStatus binds source to a hardware line chosen by choose_line
// (spec §4.4), installing handler (or chaining it behind existing
// subscribers, for Shared) and programming the routing matrix if source
// identifies a routable peripheral (source >= 0).
//
// statusReg/statusMask are only meaningful when flags has Shared set: the
// Shared Dispatcher only invokes handler when *statusReg&statusMask is
// nonzero, or always if statusReg is nil.
func (a *Allocator) AllocWithStatus(ctx context.Context, source int, flags Flags, statusReg *uint32, statusMask uint32, handler hostplatform.HandlerFunc, arg any) (*Handle, error) {
	if err := validateAllocFlags(flags, statusReg, statusMask, handler); err != nil {
		return nil, err
	}

	cpu, err := a.currentCPU(ctx)
	if err != nil {
		return nil, err
	}

	force := noForce
	if line, ok := forcedLine(source); ok {
		force = line
	}

	a.platform.CriticalEnter()
	defer a.platform.CriticalExit()

	line, ok := a.chooseLine(flags, cpu, force)
	if !ok {
		return nil, fmt.Errorf("%w: no line satisfies flags=%v on cpu %d", ErrNotFound, flags, cpu)
	}

	entry := a.registry.GetOrCreate(line, cpu)
	h := &Handle{line: line, cpu: cpu, entry: entry}

	if flags&Shared != 0 {
		sub := &registry.Subscriber{
			StatusReg:  statusReg,
			StatusMask: statusMask,
			Handler:    handler,
			Arg:        arg,
		}
		entry.PushSubscriber(sub)
		entry.Flags |= registry.SharedMode
		h.subscriber = sub
		a.platform.InstallVector(line, cpu, a.sharedDispatch, entry)
	} else {
		entry.Flags = registry.ExclusiveMode
		if handler != nil {
			a.platform.InstallVector(line, cpu, handler, arg)
		}
	}

	if flags&Edge != 0 {
		a.platform.ClearPending(line, cpu)
	}

	if flags&IRAM != 0 {
		entry.Flags |= registry.FlashResident
		a.nonIRAM[cpu] &^= 1 << uint(line)
	} else {
		entry.Flags &^= registry.FlashResident
		a.nonIRAM[cpu] |= 1 << uint(line)
	}

	if source >= 0 {
		a.platform.Route(cpu, source, line)
	}

	a.platform.EnableLine(line, cpu)
	a.logf("xtirq: allocated line %d cpu %d source %d flags %v", line, cpu, source, flags)
	return h, nil
}

func validateAllocFlags(flags Flags, statusReg *uint32, statusMask uint32, handler hostplatform.HandlerFunc) error {
	if flags&Shared != 0 && flags&Edge != 0 {
		return fmt.Errorf("%w: SHARED and EDGE are mutually exclusive", ErrInvalidArg)
	}
	if flags&High != 0 && handler != nil {
		return fmt.Errorf("%w: HIGH interrupts are not C-callable, handler must be nil", ErrInvalidArg)
	}
	if flags&Shared != 0 && handler == nil {
		return fmt.Errorf("%w: SHARED requires a non-nil handler", ErrInvalidArg)
	}
	if statusReg != nil {
		if flags&Shared == 0 {
			return fmt.Errorf("%w: a status register filter requires SHARED", ErrInvalidArg)
		}
		if statusMask == 0 {
			return fmt.Errorf("%w: a status register filter requires a nonzero mask", ErrInvalidArg)
		}
	}
	return nil
}

// chooseLine is get_free_int from the source, adapted to this package's
// catalog/registry types; the places where it departs from the source are
// described below.
//
// Three tiers are scored independently while scanning lines 0..30 (line 31
// is never a candidate; see catalog's table) in ascending order:
//
//   - exclusive requests: the lowest-priority Normal, unoccupied,
//     trigger-compatible, priority-compatible line; ties go to the first
//     line found (ascending order), matching the source's strict '>' test.
//   - shared requests that can join an existing shared-mode line: scored
//     by (subscriber count, priority), both ascending, so the least-loaded
//     chain wins and priority only breaks a tie.
//   - shared requests with nothing to join yet: the lowest-priority
//     unallocated, shareable line, considered only if no already-shared
//     candidate exists. Unlike the source (which freezes on the first such
//     line it finds, because it reuses a single "best" variable shared
//     with the exclusive-candidate tracking), this keeps scanning for a
//     strictly better priority, matching spec's explicit "scored only by
//     priority" description of this branch; see DESIGN.md.
//
// A line already carrying a Special class is skipped unless force names
// it explicitly: Special lines are fixed-function and only reachable by
// the internal source that owns them.
func (a *Allocator) chooseLine(flags Flags, cpu, force int) (int, bool) {
	if flags&LevelMask == 0 {
		if flags&Shared != 0 {
			flags |= Level1
		} else {
			flags |= LowMed
		}
	}

	const none = -1
	exclusiveBest, exclusiveBestPriority := none, 8

	sharedBest, sharedBestN, sharedBestPriority := none, int(^uint(0)>>1), 8
	fallbackBest, fallbackBestPriority := none, 8

	for x := 0; x < 31; x++ {
		if force != noForce && x != force {
			continue
		}
		cat, ok := a.catalog.Lookup(x)
		if !ok {
			continue
		}
		if cat.Class[cpu] == catalog.ReservedByDesign {
			continue
		}
		if force == noForce && cat.Class[cpu] == catalog.Special {
			continue
		}
		if flags&priorityBit(cat.Priority) == 0 {
			continue
		}
		if flags&Edge != 0 && cat.Trigger == catalog.Level {
			continue
		}
		if flags&Edge == 0 && cat.Trigger == catalog.Edge {
			continue
		}

		entry, live := a.registry.Find(x, cpu)
		var rflags registry.Flags
		if live {
			rflags = entry.Flags
		}

		if a.platform.HasNonDefaultVector(x, cpu) && rflags&registry.SharedMode == 0 {
			continue
		}
		if rflags&registry.ReservedAtRuntime != 0 {
			continue
		}

		if flags&Shared != 0 {
			if rflags&registry.ExclusiveMode != 0 {
				continue
			}
			if rflags&registry.SharedMode != 0 {
				wantIRAM := flags&IRAM != 0
				haveIRAM := rflags&registry.FlashResident != 0
				if wantIRAM != haveIRAM {
					continue
				}
				n := entry.SubscriberCount()
				if n < sharedBestN || (n == sharedBestN && int(cat.Priority) < sharedBestPriority) {
					sharedBest, sharedBestN, sharedBestPriority = x, n, int(cat.Priority)
				}
			} else if int(cat.Priority) < fallbackBestPriority {
				fallbackBest, fallbackBestPriority = x, int(cat.Priority)
			}
		} else {
			if rflags&(registry.SharedMode|registry.ExclusiveMode) != 0 {
				continue
			}
			if int(cat.Priority) < exclusiveBestPriority {
				exclusiveBest, exclusiveBestPriority = x, int(cat.Priority)
			}
		}
	}

	if flags&Shared != 0 {
		if sharedBest != none {
			return sharedBest, true
		}
		if fallbackBest != none {
			return fallbackBest, true
		}
		return 0, false
	}
	if exclusiveBest != none {
		return exclusiveBest, true
	}
	return 0, false
}

// sharedDispatch walks arg's subscriber chain (most-recently-pushed
// first), invoking every subscriber whose status condition currently
// matches. It is installed as the hardware handler for every shared-mode
// line, standing in for the source's shared_intr_isr.
func (a *Allocator) sharedDispatch(arg any) {
	entry := arg.(*registry.Entry)
	a.platform.CriticalEnter()
	defer a.platform.CriticalExit()
	for s := entry.Subscribers(); s != nil; s = s.Next() {
		if s.Matches() {
			s.Handler(s.Arg)
		}
	}
}

// Free releases h. For a shared handle this only unchains its subscriber;
// the line itself reverts to its default, unallocated state once the last
// subscriber is removed (spec §4.6).
func (a *Allocator) Free(ctx context.Context, h *Handle) error {
	if h.freed {
		return fmt.Errorf("%w: handle already freed", ErrInvalidArg)
	}
	cpu, err := a.currentCPU(ctx)
	if err != nil {
		return err
	}
	if cpu != h.cpu {
		return fmt.Errorf("%w: handle bound to cpu %d, freed from cpu %d", ErrInvalidArg, h.cpu, cpu)
	}

	a.platform.CriticalEnter()
	defer a.platform.CriticalExit()

	if h.freed {
		return fmt.Errorf("%w: handle already freed", ErrInvalidArg)
	}

	lineNowFree := true
	if h.shared() {
		lineNowFree = h.entry.RemoveSubscriber(h.subscriber)
	}

	if lineNowFree {
		a.platform.DisableLine(h.line, h.cpu)
		a.platform.RestoreDefaultVector(h.line, h.cpu)
		a.registry.Remove(h.entry)
		a.nonIRAM[h.cpu] &^= 1 << uint(h.line)
	}

	h.freed = true
	return nil
}

// Enable and Disable toggle INTENABLE for h's line. They refuse a shared
// handle, since turning off one subscriber's visibility would silently
// affect every other subscriber chained on the same line.
func (a *Allocator) Enable(ctx context.Context, h *Handle) error {
	return a.setEnabled(ctx, h, true)
}

func (a *Allocator) Disable(ctx context.Context, h *Handle) error {
	return a.setEnabled(ctx, h, false)
}

func (a *Allocator) setEnabled(ctx context.Context, h *Handle, enabled bool) error {
	if h.shared() {
		return fmt.Errorf("%w: cannot enable/disable a single subscriber of a shared line", ErrInvalidArg)
	}
	cpu, err := a.currentCPU(ctx)
	if err != nil {
		return err
	}
	if cpu != h.cpu {
		return fmt.Errorf("%w: handle bound to cpu %d, toggled from cpu %d", ErrInvalidArg, h.cpu, cpu)
	}

	a.platform.CriticalEnter()
	defer a.platform.CriticalExit()
	if enabled {
		a.platform.EnableLine(h.line, h.cpu)
	} else {
		a.platform.DisableLine(h.line, h.cpu)
	}
	return nil
}

// GetLine returns the hardware line h is bound to.
func (a *Allocator) GetLine(h *Handle) int { return h.Line() }

// GetCPU returns the CPU h is bound to.
func (a *Allocator) GetCPU(h *Handle) int { return h.CPU() }

// MarkShared pre-declares (line, cpu) as shared-mode, optionally
// flash-resident, before anything has allocated against it. This mirrors
// the source's esp_intr_mark_shared, used by board bring-up code that
// knows ahead of time a line will be multiplexed.
func (a *Allocator) MarkShared(line, cpu int, flashResident bool) error {
	if err := validateLineCPU(line, cpu); err != nil {
		return err
	}
	a.platform.CriticalEnter()
	defer a.platform.CriticalExit()
	entry := a.registry.GetOrCreate(line, cpu)
	entry.Flags = registry.SharedMode
	if flashResident {
		entry.Flags |= registry.FlashResident
	}
	return nil
}

// Reserve marks (line, cpu) as reserved at runtime, removing it from
// future allocation without needing a catalog change. Mirrors the
// source's esp_intr_reserve.
func (a *Allocator) Reserve(line, cpu int) error {
	if err := validateLineCPU(line, cpu); err != nil {
		return err
	}
	a.platform.CriticalEnter()
	defer a.platform.CriticalExit()
	entry := a.registry.GetOrCreate(line, cpu)
	entry.Flags = registry.ReservedAtRuntime
	return nil
}

func validateLineCPU(line, cpu int) error {
	if line < 0 || line >= catalog.NumLines || cpu < 0 || cpu >= catalog.NumCPUs {
		return fmt.Errorf("%w: line %d cpu %d out of range", ErrInvalidArg, line, cpu)
	}
	return nil
}

// NonIRAMDisable opens the Flash-Unsafe Window on the calling CPU: every
// line whose current handler is not flash-resident is masked off, so code
// running with flash unavailable (e.g. during an in-place update) can't
// be interrupted into code that isn't there. It panics if the window is
// already open on this CPU, mirroring the source's assert against nested
// calls.
func (a *Allocator) NonIRAMDisable(ctx context.Context) error {
	cpu, err := a.currentCPU(ctx)
	if err != nil {
		return err
	}
	a.platform.CriticalEnter()
	defer a.platform.CriticalExit()
	if a.windowOpen[cpu] {
		panic("xtirq: NonIRAMDisable called while the flash-unsafe window is already open")
	}
	a.windowOpen[cpu] = true
	mask := a.platform.EnabledMask(cpu)
	a.savedMask[cpu] = mask & a.nonIRAM[cpu]
	a.platform.SetEnabledMask(cpu, mask&^a.nonIRAM[cpu])
	return nil
}

// NonIRAMEnable closes the Flash-Unsafe Window, restoring exactly the
// lines NonIRAMDisable masked off. It panics if the window isn't open.
func (a *Allocator) NonIRAMEnable(ctx context.Context) error {
	cpu, err := a.currentCPU(ctx)
	if err != nil {
		return err
	}
	a.platform.CriticalEnter()
	defer a.platform.CriticalExit()
	if !a.windowOpen[cpu] {
		panic("xtirq: NonIRAMEnable called while the flash-unsafe window is not open")
	}
	a.windowOpen[cpu] = false
	mask := a.platform.EnabledMask(cpu)
	a.platform.SetEnabledMask(cpu, mask|a.savedMask[cpu])
	a.savedMask[cpu] = 0
	return nil
}
