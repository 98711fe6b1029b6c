package orchestrate

import "go.polydawn.net/isolate/lib/guid"

// newTag synthesizes the unique invocation tag T required by spec §4.5
// step 1: it drives the container name, the ephemeral principal name
// (when applicable), and the root directory path, and must be unique
// across concurrent invocations on the same host. guid.New already gives
// us that (random plus a millisecond clock component), so we just borrow
// it rather than hand-rolling pid+time bookkeeping.
func newTag() string {
	return "isolate-" + guid.New()
}
