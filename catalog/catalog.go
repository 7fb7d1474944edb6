// Package catalog holds the static, read-only table of hardware interrupt
// lines: their priority, trigger type, and per-CPU reservation class. It
// encodes hardware reality and has a single operation, lookup.
package catalog

import "fmt"

// NumLines is the number of hardware interrupt lines per CPU.
const NumLines = 32

// NumCPUs is the number of CPU cores that multiplex the line table.
const NumCPUs = 2

// Trigger is the edge/level discipline of a line, or NA for lines (timers,
// software interrupts) that don't participate in edge/level selection.
type Trigger int

const (
	Level Trigger = iota
	Edge
	NA
)

func (t Trigger) String() string {
	switch t {
	case Level:
		return "level"
	case Edge:
		return "edge"
	case NA:
		return "n/a"
	default:
		return fmt.Sprintf("Trigger(%d)", int(t))
	}
}

// Class says who may use a line on a given CPU.
type Class int

const (
	// Normal lines are freely allocatable.
	Normal Class = iota
	// ReservedByDesign lines are owned by the chip/kernel and are never
	// returned by the Allocator.
	ReservedByDesign
	// Special lines are fixed-function (core timer, software trigger,
	// profiling) and are only reachable when a caller's source identity
	// forces exactly that line.
	Special
)

func (c Class) String() string {
	switch c {
	case Normal:
		return "normal"
	case ReservedByDesign:
		return "reserved-by-design"
	case Special:
		return "special"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// CoreTimer identifies one of the three candidate core-timer lines. Build
// configuration selects exactly one of these as kernel-owned; the other two
// remain Special.
type CoreTimer int

const (
	CoreTimer0 CoreTimer = iota
	CoreTimer1
	CoreTimer2
)

// coreTimerLine maps each candidate core timer to its fixed hardware line.
var coreTimerLine = map[CoreTimer]int{
	CoreTimer0: 6,
	CoreTimer1: 15,
	CoreTimer2: 16,
}

// Entry is one line's static facts: a priority shared by both CPUs, a
// trigger type shared by both CPUs, and a class that may differ per CPU.
type Entry struct {
	Priority uint8
	Trigger  Trigger
	Class    [NumCPUs]Class
}

// Catalog is the static, per-line table. Built once at startup and never
// mutated afterward.
type Catalog struct {
	entries [NumLines]Entry
}

// New builds the line catalog, wiring in which core timer build
// configuration selected as kernel-owned. The other two core-timer lines
// remain Special.
func New(owned CoreTimer) *Catalog {
	c := &Catalog{entries: baseTable}
	for ct, line := range coreTimerLine {
		if ct == owned {
			c.entries[line].Class = [NumCPUs]Class{ReservedByDesign, ReservedByDesign}
		} else {
			c.entries[line].Class = [NumCPUs]Class{Special, Special}
		}
	}
	return c
}

// Lookup returns the static entry for a line, or false if line is out of
// range.
func (c *Catalog) Lookup(line int) (Entry, bool) {
	if line < 0 || line >= NumLines {
		return Entry{}, false
	}
	return c.entries[line], true
}

// baseTable is the hardware-usage table for the 32 lines, transcribed from
// the chip's soc.h interrupt usage table. Lines 6, 15, and 16 (the
// candidate core timers) have their Class overwritten by New.
var baseTable = [NumLines]Entry{
	{1, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 0
	{1, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 1
	{1, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 2
	{1, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 3
	{1, Level, [2]Class{ReservedByDesign, Normal}},           // 4
	{1, Level, [2]Class{ReservedByDesign, Normal}},           // 5
	{1, NA, [2]Class{Special, Special}},                      // 6 (core timer 0 candidate)
	{1, NA, [2]Class{Special, Special}},                      // 7 (software trigger 0)
	{1, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 8
	{1, Level, [2]Class{Normal, Normal}},                     // 9
	{1, Edge, [2]Class{ReservedByDesign, Normal}},             // 10
	{3, NA, [2]Class{Special, Special}},                      // 11 (profiling)
	{1, Level, [2]Class{Normal, Normal}},                     // 12
	{1, Level, [2]Class{Normal, Normal}},                     // 13
	{7, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 14, NMI
	{3, NA, [2]Class{Special, Special}},                      // 15 (core timer 1 candidate)
	{5, NA, [2]Class{Special, Special}},                      // 16 (core timer 2 candidate)
	{1, Level, [2]Class{Normal, Normal}},                     // 17
	{1, Level, [2]Class{Normal, Normal}},                     // 18
	{2, Level, [2]Class{Normal, Normal}},                     // 19
	{2, Level, [2]Class{Normal, Normal}},                     // 20
	{2, Level, [2]Class{Normal, Normal}},                     // 21
	{3, Edge, [2]Class{ReservedByDesign, Normal}},             // 22
	{3, Level, [2]Class{Normal, Normal}},                     // 23
	{4, Level, [2]Class{ReservedByDesign, Normal}},           // 24
	{4, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 25
	{5, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 26
	{3, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 27
	{4, Edge, [2]Class{Normal, Normal}},                      // 28
	{3, NA, [2]Class{Special, Special}},                      // 29 (software trigger 1)
	{4, Edge, [2]Class{ReservedByDesign, ReservedByDesign}},  // 30
	{5, Level, [2]Class{ReservedByDesign, ReservedByDesign}}, // 31
}
