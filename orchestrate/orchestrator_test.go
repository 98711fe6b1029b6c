package orchestrate

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"go.polydawn.net/isolate/hostprim"
	"go.polydawn.net/isolate/journal"
	"go.polydawn.net/isolate/lib/testutil"
	"go.polydawn.net/isolate/policy"
)

func writeFakeBinary(t *testing.T) string {
	dir, err := os.MkdirTemp("", "isolate-orchestrate-test")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "payload")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProvisionHappyPath(t *testing.T) {
	Convey("Given a default policy and a mock primitives layer", t, func(c C) {
		binaryPath := writeFakeBinary(t)
		defer os.RemoveAll(filepath.Dir(binaryPath))

		mock := hostprim.NewMock()
		o := New(mock, testutil.TestLogger(c))

		var installed *journal.Journal
		ctx, env, err := o.Provision(policy.Default(), binaryPath, func(j *journal.Journal) { installed = j })

		So(err, ShouldBeNil)
		So(ctx.State, ShouldEqual, HandedOff)
		So(ctx.UID, ShouldBeGreaterThan, 0)
		So(installed, ShouldEqual, ctx.Journal)
		So(env, ShouldNotBeEmpty)

		Convey("the primitive call order matches the provisioning pipeline", func() {
			ops := mock.Ops()
			So(ops[0], ShouldEqual, "principal_create_ephemeral")
			So(ops, ShouldContain, "root_dir_create")
			So(ops, ShouldContain, "container_create")
			So(ops[len(ops)-2], ShouldEqual, "container_attach")
			So(ops[len(ops)-1], ShouldEqual, "credential_switch")
		})

		Convey("default env carries the USER/HOME/LIBRARY_SEARCH_PATH triplet", func() {
			So(env, ShouldContain, "HOME=/tmp")
			found := false
			for _, kv := range env {
				if kv == "USER="+ctx.PrincipalName {
					found = true
				}
			}
			So(found, ShouldBeTrue)
		})
	})
}

func TestProvisionNamedPrincipalMissing(t *testing.T) {
	Convey("Given a policy naming a principal the host doesn't have", t, func(c C) {
		binaryPath := writeFakeBinary(t)
		defer os.RemoveAll(filepath.Dir(binaryPath))

		mock := hostprim.NewMock()
		o := New(mock, testutil.TestLogger(c))

		pol := policy.Default()
		pol.Principal = policy.NamedPrincipal("nobody-such")

		ctx, env, err := o.Provision(pol, binaryPath, nil)

		So(err, ShouldNotBeNil)
		So(env, ShouldBeNil)
		So(ctx.State, ShouldEqual, RolledBack)
	})
}

func TestProvisionRollsBackOnPrimitiveFailure(t *testing.T) {
	Convey("Given a mock that fails container creation", t, func(c C) {
		binaryPath := writeFakeBinary(t)
		defer os.RemoveAll(filepath.Dir(binaryPath))

		mock := hostprim.NewMock()
		mock.FailOn = "container_create"
		o := New(mock, testutil.TestLogger(c))

		ctx, _, err := o.Provision(policy.Default(), binaryPath, nil)

		So(err, ShouldNotBeNil)
		So(ctx.State, ShouldEqual, RolledBack)
		So(ctx.Journal.Len(), ShouldEqual, 0)

		Convey("the principal created earlier in the pipeline was destroyed on rollback", func() {
			So(mock.Ops(), ShouldContain, "principal_destroy")
		})
	})
}

func TestProvisionDowngradesDevMountFailureToWarning(t *testing.T) {
	Convey("Given a mock that fails the device filesystem mount", t, func(c C) {
		binaryPath := writeFakeBinary(t)
		defer os.RemoveAll(filepath.Dir(binaryPath))

		mock := hostprim.NewMock()
		mock.FailOn = "overlay_mount_dev"
		o := New(mock, testutil.TestLogger(c))

		ctx, _, err := o.Provision(policy.Default(), binaryPath, nil)

		So(err, ShouldBeNil)
		So(ctx.State, ShouldEqual, HandedOff)
	})
}
