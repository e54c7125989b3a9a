// Package ledger holds the money and chip bookkeeping for a single
// session together with the lifecycle guards deciding which mutations
// are legal.  Every function works on a snapshot of rows handed in by
// the caller; nothing here touches storage, and nothing is cached
// between calls.
package ledger

import "errors"

// ErrNotFound is returned when a session or participant id does not
// resolve.  Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrInvalidTransition is returned when a lifecycle guard rejects an
// operation: wrong status, too few participants, or a caller other
// than the host.  The caller must change state before retrying.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrNotHost is the host-only guard failure.  It matches
// ErrInvalidTransition under errors.Is.
var ErrNotHost = &hostError{}

// ErrInvalidInput is returned for negative chip counts, unknown
// override targets, duplicate participants and similar bad input.
// Nothing is mutated when it is returned.
var ErrInvalidInput = errors.New("invalid input")

type hostError struct{}

func (*hostError) Error() string        { return "only the host can do this" }
func (*hostError) Is(target error) bool { return target == ErrInvalidTransition }
