package orchestrate

import "go.polydawn.net/isolate/lib/errcat"

// Error categories, matching spec §7's machine-distinguishable error kinds
// not otherwise owned by another package (hostprim owns PrimitiveFailed,
// policy owns PolicyParse).
const (
	ErrPolicyViolation = "policy-violation"
	ErrAborted         = "aborted"
)

func errViolation(msg string) error {
	return &errcat.Error{Category: ErrPolicyViolation, Msg: msg}
}

// NewAborted builds the Aborted-categorized diagnostic spec §7 requires
// for external cancellation during provisioning. It's exported because
// the caller that observes the cancellation -- guard, reacting to a
// termination signal -- lives outside this package.
func NewAborted(msg string) error {
	return &errcat.Error{Category: ErrAborted, Msg: msg}
}
