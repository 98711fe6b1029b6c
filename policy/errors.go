package policy

// Error categories this package's exported functions may return, in the
// errcat convention (see lib/errcat).  Callers switch on these, not on
// error strings.
const (
	// ErrParse marks an unrecoverable policy-level problem: the document
	// path was given explicitly (via -c) and could not be read at all,
	// or some other condition makes "proceed under defaults" unsafe.
	ErrParse = "policy-parse"

	// ErrViolation marks a structurally valid but semantically invalid
	// policy -- e.g. a named principal that does not resolve, caught
	// later by the orchestrator.  Nothing in this package returns it:
	// invalid limit values are parse warnings, not errors.
	ErrViolation = "policy-violation"
)
