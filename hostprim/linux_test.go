//go:build linux

package hostprim

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"go.polydawn.net/isolate/lib/testutil"
)

func TestLinuxPrincipalRegistry(t *testing.T) {
	Convey("Given a Linux primitives backed by a scratch registry file", t, func() {
		dir, err := os.MkdirTemp("", "isolate-hostprim-test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(dir)

		l := &Linux{PrincipalRegistryPath: filepath.Join(dir, "principals")}

		Convey("creating an ephemeral principal is idempotent", func() {
			uid1, gid1, err := l.PrincipalCreateEphemeral("build-17")
			So(err, ShouldBeNil)
			So(uid1, ShouldEqual, gid1)
			So(uid1, ShouldBeGreaterThanOrEqualTo, ephemeralUIDBase)

			uid2, gid2, err := l.PrincipalCreateEphemeral("build-17")
			So(err, ShouldBeNil)
			So(uid2, ShouldEqual, uid1)
			So(gid2, ShouldEqual, gid1)
		})

		Convey("distinct names get distinct, increasing ids", func() {
			uidA, _, err := l.PrincipalCreateEphemeral("job-a")
			So(err, ShouldBeNil)
			uidB, _, err := l.PrincipalCreateEphemeral("job-b")
			So(err, ShouldBeNil)
			So(uidB, ShouldBeGreaterThan, uidA)
		})

		Convey("destroying a principal removes it from the registry", func() {
			_, _, err := l.PrincipalCreateEphemeral("transient")
			So(err, ShouldBeNil)
			So(l.PrincipalDestroy("transient"), ShouldBeNil)

			entries, _, err := readRegistryFile(l.registryPath())
			So(err, ShouldBeNil)
			_, stillThere := entries["transient"]
			So(stillThere, ShouldBeFalse)
		})
	})
}

func readRegistryFile(path string) (map[string]int, int, error) {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return readPrincipalRegistry(f)
}

// The remaining suites require real mount/chroot/setuid privileges and are
// skipped outside of a root-capable test runner, matching this codebase's
// older convention for the chroot and nsinit executor suites.
func TestLinuxMountsAndContainers(t *testing.T) {
	if !testutil.HaveRoot() {
		t.Skip("requires root: mount, chroot, and credential-switch syscalls")
	}

	Convey("Given a root directory and a Linux primitives", t, func() {
		root, err := os.MkdirTemp("", "isolate-hostprim-root")
		So(err, ShouldBeNil)
		defer os.RemoveAll(root)

		l := NewLinux()

		Convey("RootDirCreate produces a clean directory", func() {
			target := filepath.Join(root, "sandbox")
			So(l.RootDirCreate(target), ShouldBeNil)
			So(target, testutil.ShouldBeFile)
		})

		Convey("BindMount then Unmount round-trips", func() {
			src, err := os.MkdirTemp("", "isolate-hostprim-src")
			So(err, ShouldBeNil)
			defer os.RemoveAll(src)
			dst := filepath.Join(root, "mnt")
			So(os.MkdirAll(dst, 0755), ShouldBeNil)

			So(l.BindMount(src, dst, ReadOnly), ShouldBeNil)
			So(l.Unmount(dst), ShouldBeNil)
		})

		Convey("OverlayMountDev populates minimal device nodes", func() {
			dst := filepath.Join(root, "dev")
			So(os.MkdirAll(dst, 0755), ShouldBeNil)
			So(l.OverlayMountDev(dst), ShouldBeNil)
			defer l.Unmount(dst)

			So(filepath.Join(dst, "null"), testutil.ShouldBeFile)
			So(filepath.Join(dst, "stdout"), testutil.ShouldBeFile)
		})

		Convey("ContainerCreate refuses a duplicate name", func() {
			spec := ContainerSpec{Name: "dup", Root: root}
			_, err := l.ContainerCreate(spec)
			So(err, ShouldBeNil)
			_, err = l.ContainerCreate(spec)
			So(err, ShouldNotBeNil)
		})
	})
}
