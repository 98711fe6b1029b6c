package launch

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"go.polydawn.net/isolate/lib/testutil"
)

func TestBuildArgv(t *testing.T) {
	Convey("argv[0] is rewritten to the in-sandbox basename", t, func() {
		So(buildArgv("payload", []string{"/host/path/payload", "--flag", "x"}),
			ShouldResemble, []string{"payload", "--flag", "x"})
	})

	Convey("an empty args slice still yields a one-element argv", t, func() {
		So(buildArgv("payload", nil), ShouldResemble, []string{"payload"})
	})
}

func TestCheckPrivilege(t *testing.T) {
	Convey("CheckPrivilege reflects the real effective uid", t, func() {
		err := CheckPrivilege()
		if testutil.HaveRoot() {
			So(err, ShouldBeNil)
		} else {
			So(err, ShouldNotBeNil)
		}
	})
}
