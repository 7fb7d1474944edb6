package xtirq

// Internal source identities that the allocator forces onto exactly one
// hardware line: choose_line then considers only that line, and its
// reservation, priority and trigger filters still apply (spec §4.2,
// §4.4 step "force"). Real chip source IDs for these are assigned by the
// peripheral routing matrix's own numbering, which original_source/ does
// not carry in the retrieved intr_alloc.c; these values only need to be
// distinct and stable within this package, since callers pass them by
// name, not by number.
const (
	SourceCoreTimer0 = 1000 + iota
	SourceCoreTimer1
	SourceCoreTimer2
	SourceSoftware0
	SourceSoftware1
	SourceProfiling
)

// noForce marks the absence of a forced line in choose_line's signature.
const noForce = -1

// forcedLine reports the single line a source forces itself onto, if any.
func forcedLine(source int) (line int, ok bool) {
	switch source {
	case SourceCoreTimer0:
		return 6, true
	case SourceCoreTimer1:
		return 15, true
	case SourceCoreTimer2:
		return 16, true
	case SourceSoftware0:
		return 7, true
	case SourceSoftware1:
		return 29, true
	case SourceProfiling:
		return 11, true
	default:
		return 0, false
	}
}
