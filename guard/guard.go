/*
	Package guard implements the signal/exit guard (spec §4.7): it makes
	sure a journal's rollback runs on normal process exit during the
	pre-exec window, on external termination signals arriving mid
	provisioning, and on a best-effort basis for the orchestrator's own
	fatal signals. Rollback is idempotent (journal.Journal.Rollback
	already guarantees that), so the guard can safely race its own
	triggers without coordination.
*/
package guard

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/inconshreveable/log15"

	"go.polydawn.net/isolate/journal"
	"go.polydawn.net/isolate/orchestrate"
)

// Guard arms a journal's rollback against the signals and exit paths
// spec §4.7 names. Install returns a Guard whose Disarm should be
// deferred once the process has safely passed the point where rollback
// is no longer the correct response (i.e. once the payload has been
// exec'd -- which in practice means Disarm is never reached, since exec
// replaces this process entirely on success).
type Guard struct {
	log     log15.Logger
	journal *journal.Journal
	stderr  io.Writer
	sigCh   chan os.Signal
	once    sync.Once
	done    chan struct{}
}

// Install arms j's rollback against SIGTERM, SIGINT, SIGHUP (converted
// to an abort during provisioning per §4.7) and, best-effort, SIGSEGV
// and SIGABRT (rolled back then re-raised, since those indicate the
// orchestrator itself is in a corrupted state). It returns a Guard;
// callers should call Disarm once they've passed the pre-exec window
// without needing it (e.g. in tests that provision but never hand off).
//
// stderr receives the same one-line "isolate: <error>" diagnostic that
// main's normal error path writes (nil defaults to os.Stderr); the
// SIGTERM/SIGINT/SIGHUP path is reported as an orchestrate.ErrAborted
// *errcat.Error through that path rather than a bare log line, since
// spec §7 requires external cancellation during provisioning to produce
// a machine-distinguishable Aborted diagnostic like any other failure.
func Install(j *journal.Journal, log log15.Logger, stderr io.Writer) *Guard {
	if log == nil {
		log = log15.Root()
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	g := &Guard{
		log:     log,
		journal: j,
		stderr:  stderr,
		sigCh:   make(chan os.Signal, 4),
		done:    make(chan struct{}),
	}
	signal.Notify(g.sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP, syscall.SIGSEGV, syscall.SIGABRT)
	go g.watch()
	return g
}

func (g *Guard) watch() {
	for {
		select {
		case sig := <-g.sigCh:
			g.log.Warn("signal received during provisioning, rolling back", "signal", sig)
			g.journal.Rollback()
			switch sig {
			case syscall.SIGSEGV, syscall.SIGABRT:
				signal.Stop(g.sigCh)
				// re-raise so the default handler (core dump, non-zero
				// exit) still takes effect -- rollback only buys the
				// journal a chance to unwind first.
				syscall.Kill(os.Getpid(), sig.(syscall.Signal))
				return
			default:
				err := orchestrate.NewAborted(fmt.Sprintf("aborted by signal %s during provisioning", sig))
				fmt.Fprintf(g.stderr, "isolate: %s\n", err)
				os.Exit(1)
			}
		case <-g.done:
			return
		}
	}
}

// Disarm stops watching for signals. It does not roll the journal back;
// callers that need the normal-exit rollback of the pre-exec window call
// RollbackOnExit.
func (g *Guard) Disarm() {
	g.once.Do(func() {
		close(g.done)
		signal.Stop(g.sigCh)
	})
}

// RollbackOnExit invokes the journal's rollback unconditionally; safe to
// call from a deferred position in main() to cover the normal-exit case.
// A successful exec never reaches this, since exec replaces the process.
func (g *Guard) RollbackOnExit() {
	g.journal.Rollback()
}
