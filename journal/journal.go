/*
	Package journal implements the transaction journal described in
	spec §4.4: an ordered, append-only record of acquired resources, each
	carrying its own release action, rolled back in strict LIFO order.

	This is deliberately the simplest possible implementation of that
	contract -- a mutex-guarded slice -- because the orchestrator is
	single-threaded per spec §5 ("a single-threaded, synchronous
	orchestrator"); the mutex exists only to make Rollback safe to call
	from a signal-adjacent goroutine (see guard.Guard) without a data race,
	not to support concurrent provisioning.
*/
package journal

import (
	"sync"

	"github.com/inconshreveable/log15"
)

// Kind identifies what sort of resource a journal Entry represents.
// These mirror the acquisition order listed in spec §4.4.
type Kind string

const (
	KindPrincipalCreated    Kind = "principal-created"
	KindRootDirCreated      Kind = "root-dir-created"
	KindWorkspaceMounted    Kind = "workspace-mounted"
	KindBindMounted         Kind = "bind-mounted"
	KindDevMounted          Kind = "dev-mounted"
	KindContainerCreated    Kind = "container-created"
	KindAccountingRuleAdded Kind = "accounting-rule-added"
)

// Entry is one acquired resource together with the action that releases
// it.  Handle is an opaque human-readable identifier used only for
// logging (container id, mount target, principal name, ...).
type Entry struct {
	Kind    Kind
	Handle  string
	Release func() error
}

// Journal is an ordered, append-only log of Entries with LIFO rollback.
type Journal struct {
	mu      sync.Mutex
	log     log15.Logger
	entries []Entry
	rolled  bool
}

func New(log log15.Logger) *Journal {
	if log == nil {
		log = log15.Root()
	}
	return &Journal{log: log}
}

// Record appends entry to the journal.  No deduplication is performed --
// recording the same resource twice means it will be released twice,
// which every release action in this codebase is written to tolerate
// (principal_destroy, unmount, dir_remove_recursive, container_destroy
// are all specified as best-effort in spec §4.3).
func (j *Journal) Record(entry Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

// Len reports how many entries are currently recorded (test/diagnostic use).
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Commit discards all entries without releasing them.  Per spec §4.4,
// this is legal essentially only after the orchestrator has handed off
// responsibility for any remaining state to something else (e.g. the
// container's own teardown-on-destroy semantics) -- it must never be
// called before the pre-exec point described in spec §9.
func (j *Journal) Commit() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

// Rollback invokes every recorded entry's Release action in strict
// reverse order of recording.  A release failure is logged and rollback
// continues with the next entry -- spec §4.4: "A release failure is
// logged; rollback continues."  Rollback is idempotent: a second call,
// concurrent or sequential, is a no-op.
func (j *Journal) Rollback() {
	j.mu.Lock()
	if j.rolled {
		j.mu.Unlock()
		return
	}
	j.rolled = true
	entries := j.entries
	j.entries = nil
	j.mu.Unlock()

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Release == nil {
			continue
		}
		if err := e.Release(); err != nil {
			j.log.Warn("rollback: release failed", "kind", e.Kind, "handle", e.Handle, "error", err)
		}
	}
}
