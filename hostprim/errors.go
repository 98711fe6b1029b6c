package hostprim

import "go.polydawn.net/isolate/lib/errcat"

// ErrPrimitiveFailed is the errcat category for any host primitive
// defined as fatal in spec §4.3/§7.  Callers that need the name of the
// specific primitive and the underlying OS error should use
// Errorf(primitive, cause) below, then inspect err.(*errcat.Error).Details.
const ErrPrimitiveFailed = "primitive-failed"

// Errorf builds an ErrPrimitiveFailed error carrying both the name of
// the primitive that failed and its underlying cause, matching spec
// §7's `PrimitiveFailed{primitive, cause}`.
func Errorf(primitive string, cause error) error {
	return &errcat.Error{
		Category: ErrPrimitiveFailed,
		Msg:      primitive + ": " + cause.Error(),
		Details:  map[string]string{"primitive": primitive, "cause": cause.Error()},
	}
}
