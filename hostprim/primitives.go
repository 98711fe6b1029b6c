/*
	Package hostprim defines the narrow host-primitive interface described
	in spec §4.3: the only surface through which the orchestrator touches
	the operating system.  Keeping it this narrow is what makes the
	orchestrator itself mockable and the rollback journal reliable -- every
	primitive here either fully succeeds or returns a typed error, never a
	partial, ambiguous state.

	Two implementations live alongside this file: Linux (the real thing,
	built on golang.org/x/sys/unix and syndtr/gocapability) and Mock (an
	in-memory recording fake used by orchestrate's test suite).
*/
package hostprim

import "os"

// MountMode selects whether a bind mount is writable from inside the
// sandbox.
type MountMode int

const (
	ReadOnly MountMode = iota
	ReadWrite
)

// Metric is a resource-accounting dimension (spec §4.3 primitive 12).
type Metric string

const (
	MetricMemory    Metric = "memory"
	MetricProcesses Metric = "processes"
	MetricOpenFiles Metric = "open_files"
	MetricCPU       Metric = "cpu_percent"
)

// NetworkMode selects how a container's network namespace is configured.
// The only mode the current host primitive offers is inheriting the
// host's network namespace outright -- see spec §9's discussion of the
// network-enforcement gap.
type NetworkMode string

const (
	NetworkInheritHost NetworkMode = "inherit_host"
)

// ContainerSpec parameterizes container creation (spec §4.3 primitive 9).
type ContainerSpec struct {
	Name              string
	Root              string
	NetworkMode       NetworkMode
	IPCAllowed        bool
	RawSocketsAllowed bool
	AFSocketsAllowed  bool
}

// Primitives is the complete, narrow set of host operations the
// orchestrator is allowed to call.  All operations are synchronous; see
// spec §5 ("every primitive call is blocking").
type Primitives interface {
	// PrincipalLookup resolves an existing host principal by name.  ok is
	// false if no such principal exists; in that case uid/gid are zero.
	PrincipalLookup(name string) (uid, gid int, ok bool, err error)

	// PrincipalCreateEphemeral provisions a fresh principal named name.
	// It is idempotent: a second call with the same name returns the
	// same ids without modifying anything.
	PrincipalCreateEphemeral(name string) (uid, gid int, err error)

	// PrincipalDestroy removes a principal previously created by
	// PrincipalCreateEphemeral.  Best-effort: the returned error exists
	// for diagnostics, not to gate caller behavior (spec §4.3: "never
	// fails the caller"); Linux always returns nil.
	PrincipalDestroy(name string) error

	// RootDirCreate removes any previous directory at path and creates a
	// fresh one with mode 0755.
	RootDirCreate(path string) error

	// BindMount bind-mounts source onto target with the given mode.
	BindMount(source, target string, mode MountMode) error

	// OverlayMountDev mounts a device-node filesystem at target providing
	// at minimum stdin/stdout/stderr/null.
	OverlayMountDev(target string) error

	// Unmount unmounts target.  Best-effort.
	Unmount(target string) error

	// DirRemoveRecursive removes path and its contents.  Best-effort.
	DirRemoveRecursive(path string) error

	// ContainerCreate creates (but does not enter) a confinement
	// container per spec.
	ContainerCreate(spec ContainerSpec) (containerID string, err error)

	// ContainerAttach transfers the calling process into containerID;
	// subsequent filesystem references resolve inside the sandbox.
	ContainerAttach(containerID string) error

	// ContainerDestroy tears down a container.  Best-effort.
	ContainerDestroy(containerID string) error

	// AccountingAddRule installs a resource-accounting rule for
	// containerName.  Failure is a recoverable condition -- the feature
	// may simply be disabled on this host (spec §4.3 primitive 12).
	AccountingAddRule(containerName string, metric Metric, limit int64) error

	// CredentialSwitch sets gid then uid.  Atomic from the caller's
	// perspective: either both succeed, or the process's credentials are
	// left exactly as they were (spec §4.3 primitive 13).
	CredentialSwitch(uid, gid int) error

	// FileWrite writes the in-container /etc/passwd and /etc/group stubs
	// (and similar small synthesized files).
	FileWrite(path string, data []byte, mode os.FileMode) error
}
