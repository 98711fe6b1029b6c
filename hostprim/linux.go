//go:build linux

package hostprim

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"
)

// Linux is the real host-primitive implementation, built directly on
// golang.org/x/sys/unix syscalls and syndtr/gocapability -- per spec §9's
// design note, the orchestrator never shells out to `mount(8)`,
// `useradd(8)`, or `rm -rf`; every primitive below is a direct syscall (or,
// for principal bookkeeping, a small flat-file registry in the same
// plain-text spirit as the /etc/passwd stub this package also writes).
type Linux struct {
	// PrincipalRegistryPath is the flat file used to make
	// PrincipalCreateEphemeral idempotent and to hand out non-colliding
	// uids across concurrent invocations.  Defaults to
	// /var/lib/isolate/principals if empty.
	PrincipalRegistryPath string

	mu         sync.Mutex
	containers map[string]*containerState
}

type containerState struct {
	spec ContainerSpec
}

func NewLinux() *Linux {
	return &Linux{containers: map[string]*containerState{}}
}

func (l *Linux) registryPath() string {
	if l.PrincipalRegistryPath != "" {
		return l.PrincipalRegistryPath
	}
	return "/var/lib/isolate/principals"
}

// ephemeralUIDBase is the start of the uid/gid range isolate allocates
// ephemeral principals from -- chosen well above typical system account
// ranges, mirroring the subuid/subgid ranges user-namespace tooling
// (runc, bubblewrap) conventionally reserves.
const ephemeralUIDBase = 263000

func (l *Linux) PrincipalLookup(name string) (uid, gid int, ok bool, err error) {
	u, err := user.Lookup(name)
	if err != nil {
		if _, isUnknown := err.(user.UnknownUserError); isUnknown {
			return 0, 0, false, nil
		}
		return 0, 0, false, Errorf("principal_lookup", err)
	}
	uid, err1 := strconv.Atoi(u.Uid)
	gid, err2 := strconv.Atoi(u.Gid)
	if err1 != nil || err2 != nil {
		return 0, 0, false, Errorf("principal_lookup", fmt.Errorf("non-numeric uid/gid for %q", name))
	}
	return uid, gid, true, nil
}

func (l *Linux) PrincipalCreateEphemeral(name string) (uid, gid int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.registryPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, 0, Errorf("principal_create_ephemeral", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, 0, Errorf("principal_create_ephemeral", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return 0, 0, Errorf("principal_create_ephemeral", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	entries, maxID, err := readPrincipalRegistry(f)
	if err != nil {
		return 0, 0, Errorf("principal_create_ephemeral", err)
	}
	if id, ok := entries[name]; ok {
		return id, id, nil // idempotent: same name always maps to the same id
	}

	newID := maxID + 1
	if newID < ephemeralUIDBase {
		newID = ephemeralUIDBase
	}
	if _, err := f.WriteString(fmt.Sprintf("%s\t%d\n", name, newID)); err != nil {
		return 0, 0, Errorf("principal_create_ephemeral", err)
	}
	return newID, newID, nil
}

func readPrincipalRegistry(f *os.File) (map[string]int, int, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, 0, err
	}
	entries := map[string]int{}
	maxID := ephemeralUIDBase - 1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) != 2 {
			continue
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		entries[fields[0]] = id
		if id > maxID {
			maxID = id
		}
	}
	return entries, maxID, scanner.Err()
}

func (l *Linux) PrincipalDestroy(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.registryPath()
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil // best-effort: nothing to clean up
	}
	defer f.Close()
	unix.Flock(int(f.Fd()), unix.LOCK_EX)
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	entries, _, err := readPrincipalRegistry(f)
	if err != nil {
		return nil
	}
	delete(entries, name)

	f.Truncate(0)
	f.Seek(0, 0)
	for n, id := range entries {
		fmt.Fprintf(f, "%s\t%d\n", n, id)
	}
	return nil
}

func (l *Linux) RootDirCreate(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return Errorf("root_dir_create", err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return Errorf("root_dir_create", err)
	}
	return nil
}

func (l *Linux) BindMount(source, target string, mode MountMode) error {
	if err := unix.Mount(source, target, "", unix.MS_BIND, ""); err != nil {
		return Errorf("bind_mount", fmt.Errorf("bind %s -> %s: %w", source, target, err))
	}
	if mode == ReadOnly {
		flags := uintptr(unix.MS_BIND | unix.MS_REMOUNT | unix.MS_RDONLY)
		if err := unix.Mount(source, target, "", flags, ""); err != nil {
			unix.Unmount(target, unix.MNT_DETACH)
			return Errorf("bind_mount", fmt.Errorf("remount %s readonly: %w", target, err))
		}
	}
	return nil
}

// devNodes are the minimal set of device nodes spec §4.3 primitive 6
// requires ("at minimum stdin/stdout/stderr/null"); we round it out with
// the handful every libc expects to find, matching what container
// runtimes conventionally populate a minimal /dev with.
var devNodes = []struct {
	name     string
	major    uint32
	minor    uint32
	fileMode uint32
}{
	{"null", 1, 3, 0666},
	{"zero", 1, 5, 0666},
	{"full", 1, 7, 0666},
	{"random", 1, 8, 0666},
	{"urandom", 1, 9, 0666},
	{"tty", 5, 0, 0666},
}

func (l *Linux) OverlayMountDev(target string) error {
	if err := unix.Mount("tmpfs", target, "tmpfs", unix.MS_NOSUID, "mode=755"); err != nil {
		return Errorf("overlay_mount_dev", err)
	}
	for _, n := range devNodes {
		dev := int(unix.Mkdev(n.major, n.minor))
		path := filepath.Join(target, n.name)
		if err := unix.Mknod(path, unix.S_IFCHR|n.fileMode, dev); err != nil {
			return Errorf("overlay_mount_dev", fmt.Errorf("mknod %s: %w", path, err))
		}
	}
	for i, name := range []string{"stdin", "stdout", "stderr"} {
		if err := os.Symlink(fmt.Sprintf("/proc/self/fd/%d", i), filepath.Join(target, name)); err != nil {
			return Errorf("overlay_mount_dev", fmt.Errorf("symlink %s: %w", name, err))
		}
	}
	return nil
}

func (l *Linux) Unmount(target string) error {
	if err := unix.Unmount(target, unix.MNT_DETACH); err != nil {
		return Errorf("unmount", err)
	}
	return nil
}

func (l *Linux) DirRemoveRecursive(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return Errorf("dir_remove_recursive", err)
	}
	return nil
}

func (l *Linux) ContainerCreate(spec ContainerSpec) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if spec.Name == "" {
		return "", Errorf("container_create", fmt.Errorf("container name must not be empty"))
	}
	if _, exists := l.containers[spec.Name]; exists {
		return "", Errorf("container_create", fmt.Errorf("container %q already exists", spec.Name))
	}
	l.containers[spec.Name] = &containerState{spec: spec}
	return spec.Name, nil
}

// ContainerAttach enters the namespace and filesystem isolation described
// by the container's spec.  It must run on a locked OS thread: unshare(2)
// affects only the calling thread, and Go's scheduler must not migrate us
// off it before the subsequent chroot/exec. Mount, UTS, and IPC namespace
// isolation take effect on the calling process immediately; true
// process-table isolation (a private PID namespace) is a property only a
// freshly forked child observes, which this single-process,
// exec-in-place design (spec §4.6/§9) does not fork to obtain -- this is
// a known, documented gap, not an oversight.
func (l *Linux) ContainerAttach(containerID string) error {
	l.mu.Lock()
	st, ok := l.containers[containerID]
	l.mu.Unlock()
	if !ok {
		return Errorf("container_attach", fmt.Errorf("no such container %q", containerID))
	}

	runtime.LockOSThread()

	flags := unix.CLONE_NEWNS | unix.CLONE_NEWUTS
	if !st.spec.IPCAllowed {
		flags |= unix.CLONE_NEWIPC
	}
	if err := unix.Unshare(flags); err != nil {
		return Errorf("container_attach", fmt.Errorf("unshare: %w", err))
	}
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return Errorf("container_attach", fmt.Errorf("make-rprivate: %w", err))
	}
	if err := unix.Sethostname([]byte(containerID)); err != nil {
		return Errorf("container_attach", fmt.Errorf("sethostname: %w", err))
	}
	if err := unix.Chroot(st.spec.Root); err != nil {
		return Errorf("container_attach", fmt.Errorf("chroot: %w", err))
	}
	if err := unix.Chdir("/"); err != nil {
		return Errorf("container_attach", fmt.Errorf("chdir: %w", err))
	}

	return dropCapabilities(st.spec)
}

func dropCapabilities(spec ContainerSpec) error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		// Not all hosts expose /proc/self/status capability bits (or we may
		// be running unprivileged already); this is degraded operation,
		// not a fatal condition for container attach.
		return nil
	}
	if err := caps.Load(); err != nil {
		return nil
	}
	if !spec.RawSocketsAllowed {
		caps.Unset(capability.EFFECTIVE|capability.PERMITTED|capability.BOUNDING, capability.CAP_NET_RAW)
	}
	if !spec.AFSocketsAllowed {
		caps.Unset(capability.EFFECTIVE|capability.PERMITTED|capability.BOUNDING, capability.CAP_NET_ADMIN)
	}
	if !spec.IPCAllowed {
		caps.Unset(capability.EFFECTIVE|capability.PERMITTED|capability.BOUNDING, capability.CAP_IPC_OWNER, capability.CAP_IPC_LOCK)
	}
	caps.Unset(capability.EFFECTIVE|capability.PERMITTED|capability.BOUNDING,
		capability.CAP_SYS_ADMIN, capability.CAP_SYS_MODULE, capability.CAP_SYS_BOOT, capability.CAP_SYS_PTRACE)
	if err := caps.Apply(capability.CAPS | capability.BOUNDS); err != nil {
		return Errorf("container_attach", fmt.Errorf("drop capabilities: %w", err))
	}
	return nil
}

func (l *Linux) ContainerDestroy(containerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.containers, containerID)
	return nil
}

func (l *Linux) AccountingAddRule(containerName string, metric Metric, limit int64) error {
	cgroupPath := filepath.Join("/sys/fs/cgroup", "isolate", containerName)
	if err := os.MkdirAll(cgroupPath, 0755); err != nil {
		return Errorf("accounting_add_rule", err)
	}
	file, value := cgroupFileFor(metric, limit)
	if file == "" {
		return Errorf("accounting_add_rule", fmt.Errorf("unsupported metric %q", metric))
	}
	if err := os.WriteFile(filepath.Join(cgroupPath, file), []byte(value), 0644); err != nil {
		return Errorf("accounting_add_rule", err)
	}
	return nil
}

func cgroupFileFor(metric Metric, limit int64) (file, value string) {
	switch metric {
	case MetricMemory:
		return "memory.max", strconv.FormatInt(limit, 10)
	case MetricProcesses:
		return "pids.max", strconv.FormatInt(limit, 10)
	case MetricOpenFiles:
		return "", "" // no cgroup v2 controller limits open files; AccountingAddRule returns an error, which the orchestrator logs as a warning
	case MetricCPU:
		// cpu.max is "<quota> <period>"; 100000 microsecond period is the
		// conventional cgroup v2 default, so limit is a direct percentage.
		return "cpu.max", fmt.Sprintf("%d 100000", limit*1000)
	default:
		return "", ""
	}
}

func (l *Linux) CredentialSwitch(uid, gid int) error {
	originalGid := unix.Getgid()
	if err := unix.Setgid(gid); err != nil {
		return Errorf("credential_switch", fmt.Errorf("setgid: %w", err))
	}
	if err := unix.Setuid(uid); err != nil {
		if revertErr := unix.Setgid(originalGid); revertErr != nil {
			return Errorf("credential_switch", fmt.Errorf("setuid failed (%s) and gid revert also failed (%s)", err, revertErr))
		}
		return Errorf("credential_switch", fmt.Errorf("setuid: %w", err))
	}
	return nil
}

func (l *Linux) FileWrite(path string, data []byte, mode os.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return Errorf("file_write", err)
	}
	return nil
}

var _ Primitives = (*Linux)(nil)
