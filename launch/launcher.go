/*
	Package launch implements the launcher (spec §4.6): the component
	that checks for sufficient privilege before orchestration begins, and,
	once the orchestrator has handed off an attached, privilege-dropped
	IsolationContext, replaces the current process image with the
	payload.

	Exec uses syscall.Exec rather than os/exec: os/exec forks a child and
	waits on it, but spec §4.6 requires replacing the *current* process
	image in place, so that the journal and any exit guard installed in
	this process apply right up until the moment the payload's code
	starts running.
*/
package launch

import (
	"os"
	"path/filepath"
	"syscall"

	"go.polydawn.net/isolate/orchestrate"
)

// CheckPrivilege is the precondition spec §4.6 requires be checked
// before orchestration begins: the caller must be able to create the
// host primitives (principals, mounts, containers) the orchestrator is
// about to ask for. On Linux that's simply "running as root" -- there is
// no partial-privilege mode for this pipeline.
func CheckPrivilege() error {
	if os.Geteuid() != 0 {
		return errUnprivileged("isolate must be run as root (re-run under a privilege-raising wrapper, e.g. sudo)")
	}
	return nil
}

// Exec replaces the current process image with the payload binary
// materialized at ctx.RootPath/<basename of binaryPath> during
// provisioning. Because ContainerAttach has already chrooted this
// process to ctx.RootPath, that binary is addressable as "/" +
// basename from here on.
//
// args is the original argv beginning at the payload (args[0] is the
// original invocation path on the host); argv[0] is rewritten to the
// in-sandbox basename per spec §4.6.
func Exec(ctx *orchestrate.IsolationContext, env []string, hostBinaryPath string, args []string) error {
	base := filepath.Base(hostBinaryPath)
	sandboxPath := "/" + base
	argv := buildArgv(base, args)

	if err := syscall.Exec(sandboxPath, argv, env); err != nil {
		return errLaunchFailed(err)
	}
	return nil // unreachable on success: Exec only returns on failure
}

// buildArgv rewrites args[0] to base, the in-sandbox invocation path,
// per spec §4.6. Split out from Exec so the rewrite itself is testable
// without actually replacing the test binary's process image.
func buildArgv(base string, args []string) []string {
	if len(args) == 0 {
		return []string{base}
	}
	argv := make([]string, len(args))
	copy(argv, args)
	argv[0] = base
	return argv
}
