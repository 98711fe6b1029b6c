package launch

import "go.polydawn.net/isolate/lib/errcat"

// ErrUnprivileged and ErrLaunchFailed are spec §7's remaining two error
// kinds not owned by another package.
const (
	ErrUnprivileged = "unprivileged"
	ErrLaunchFailed = "launch-failed"
)

func errUnprivileged(msg string) error {
	return &errcat.Error{Category: ErrUnprivileged, Msg: msg}
}

func errLaunchFailed(cause error) error {
	return &errcat.Error{
		Category: ErrLaunchFailed,
		Msg:      "replacing process image: " + cause.Error(),
		Details:  map[string]string{"cause": cause.Error()},
	}
}
