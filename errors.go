package xtirq

import "errors"

// ErrInvalidArg reports a malformed or self-contradictory request: an
// illegal flag combination, an out-of-range line/cpu, or a handle used in
// a way its allocation mode forbids.
var ErrInvalidArg = errors.New("xtirq: invalid argument")

// ErrNotFound reports that no line in the catalog satisfies a request, or
// that a lookup found nothing live.
var ErrNotFound = errors.New("xtirq: no matching interrupt line")
