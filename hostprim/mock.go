package hostprim

import (
	"fmt"
	"os"
	"sync"
)

// Call records a single primitive invocation for assertion in tests.
type Call struct {
	Op   string
	Args []interface{}
}

// Mock is an in-memory, non-privileged Primitives implementation: it
// never touches the real filesystem or process credentials, it just
// records what was asked of it and returns configurable results. This is
// what orchestrate's test suite runs the full pipeline against, the same
// way the teacher's mixins tests drive a recording fake executor instead
// of a real chroot.
type Mock struct {
	mu sync.Mutex

	Calls []Call

	// Principals simulates an existing principal database; populate
	// before the test to make PrincipalLookup succeed.
	Principals map[string][2]int // name -> [uid, gid]

	// FailOn, if set, names a primitive (matching Call.Op) that should
	// return FailErr instead of succeeding, letting rollback-on-failure
	// tests target a specific step.
	FailOn  string
	FailErr error

	nextUID int
}

func NewMock() *Mock {
	return &Mock{
		Principals: map[string][2]int{},
		nextUID:    ephemeralUIDBaseMock,
	}
}

const ephemeralUIDBaseMock = 263000

func (m *Mock) record(op string, args ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, Call{Op: op, Args: args})
	if m.FailOn == op {
		if m.FailErr != nil {
			return m.FailErr
		}
		return Errorf(op, fmt.Errorf("mock induced failure"))
	}
	return nil
}

func (m *Mock) PrincipalLookup(name string) (uid, gid int, ok bool, err error) {
	if err := m.record("principal_lookup", name); err != nil {
		return 0, 0, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.Principals[name]
	if !ok {
		return 0, 0, false, nil
	}
	return ids[0], ids[1], true, nil
}

func (m *Mock) PrincipalCreateEphemeral(name string) (uid, gid int, err error) {
	if err := m.record("principal_create_ephemeral", name); err != nil {
		return 0, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ids, ok := m.Principals[name]; ok {
		return ids[0], ids[1], nil
	}
	id := m.nextUID
	m.nextUID++
	m.Principals[name] = [2]int{id, id}
	return id, id, nil
}

func (m *Mock) PrincipalDestroy(name string) error {
	if err := m.record("principal_destroy", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Principals, name)
	return nil
}

func (m *Mock) RootDirCreate(path string) error {
	return m.record("root_dir_create", path)
}

func (m *Mock) BindMount(source, target string, mode MountMode) error {
	return m.record("bind_mount", source, target, mode)
}

func (m *Mock) OverlayMountDev(target string) error {
	return m.record("overlay_mount_dev", target)
}

func (m *Mock) Unmount(target string) error {
	return m.record("unmount", target)
}

func (m *Mock) DirRemoveRecursive(path string) error {
	return m.record("dir_remove_recursive", path)
}

func (m *Mock) ContainerCreate(spec ContainerSpec) (string, error) {
	if err := m.record("container_create", spec); err != nil {
		return "", err
	}
	return spec.Name, nil
}

func (m *Mock) ContainerAttach(containerID string) error {
	return m.record("container_attach", containerID)
}

func (m *Mock) ContainerDestroy(containerID string) error {
	return m.record("container_destroy", containerID)
}

func (m *Mock) AccountingAddRule(containerName string, metric Metric, limit int64) error {
	return m.record("accounting_add_rule", containerName, metric, limit)
}

func (m *Mock) CredentialSwitch(uid, gid int) error {
	return m.record("credential_switch", uid, gid)
}

func (m *Mock) FileWrite(path string, data []byte, mode os.FileMode) error {
	return m.record("file_write", path, mode)
}

// Ops returns the sequence of recorded primitive names, for terse
// assertions like ShouldResemble against an expected call order.
func (m *Mock) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		ops[i] = c.Op
	}
	return ops
}

var _ Primitives = (*Mock)(nil)
