// Package apperr defines the error-kind taxonomy the core raises (§7).
// The core raises kinds, not HTTP status codes; a boundary adapter (out of
// scope per §1) maps kinds to status codes via errors.Is.
package apperr

import "errors"

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Kind) at the point
// an operation fails so callers can still errors.Is against the kind after
// layers of context have been added.
var (
	// NotFound: entity absent or soft-deleted without include_deleted.
	NotFound = errors.New("not found")

	// Deleted: entity present but soft-deleted, returned only when the
	// caller explicitly asked to see deleted rows and hit a deleted one
	// where that's still an error (e.g. restoring an already-active row).
	Deleted = errors.New("deleted")

	// Duplicate: uniqueness violation (dedupe key, memory-event link,
	// an already-running dream session, an already-revoked API key).
	Duplicate = errors.New("duplicate")

	// Validation: a business-rule violation (score out of range, a merge
	// group smaller than 2, a split producing fewer than 2 results, an
	// unrecognized knowledge/event type).
	Validation = errors.New("validation")

	// Unauthorized: missing or invalid credential at the boundary.
	Unauthorized = errors.New("unauthorized")

	// Transient: an LLM/embedding or DB failure the caller should retry or
	// abandon without leaking partial state. All mutation happens inside
	// atomic tenant sessions, so a Transient error during a workflow node
	// always rolls back cleanly.
	Transient = errors.New("transient failure")
)

// Wrap annotates kind with msg, preserving errors.Is(result, kind).
func Wrap(kind error, msg string) error {
	return &wrapped{kind: kind, msg: msg}
}

type wrapped struct {
	kind error
	msg  string
}

func (w *wrapped) Error() string { return w.msg + ": " + w.kind.Error() }
func (w *wrapped) Unwrap() error { return w.kind }
