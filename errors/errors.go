// Package errors defines the recoverable/fatal error kinds the core
// subsystems report, per the error handling design: recoverable conditions
// (duplicate key, not found, lock aborted) surface as ordinary errors a
// caller inspects with KindOf; fatal conditions (out of memory, state
// violations, corruption) are also ordinary errors, but callers are
// expected to unwind pinned pages/latches before propagating them rather
// than attempt to continue the operation.
package errors

import "errors"

// Kind classifies why an operation failed.
type Kind int

const (
	// OutOfMemory means the buffer pool had no free frame to allocate or
	// fetch a page into. Fatal to the caller's in-flight operation.
	OutOfMemory Kind = iota
	// DuplicateKey means Insert was called with a key already present.
	DuplicateKey
	// NotFound means Remove/GetValue/Find missed.
	NotFound
	// Aborted means the transaction was aborted by wait-die or by
	// violating 2PL while unlocking.
	Aborted
	// StateViolation means Unlock was attempted in strict mode before
	// commit/abort.
	StateViolation
	// Corruption means an invariant of a wait-list or tree node was
	// violated.
	Corruption
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "out of memory"
	case DuplicateKey:
		return "duplicate key"
	case NotFound:
		return "not found"
	case Aborted:
		return "aborted"
	case StateViolation:
		return "state violation"
	case Corruption:
		return "corruption"
	default:
		return "unknown error kind"
	}
}

// Error is a typed error carrying a Kind plus a free-form message.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// KindOf reports the Kind err was created with, so callers can write
// `if kind, ok := errors.KindOf(err); ok && kind == errors.OutOfMemory`-
// style checks.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
