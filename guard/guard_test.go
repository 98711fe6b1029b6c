package guard

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"go.polydawn.net/isolate/journal"
)

func TestGuardDisarmPreventsRollback(t *testing.T) {
	Convey("Given a guard installed over a journal", t, func() {
		j := journal.New(nil)
		released := false
		j.Record(journal.Entry{Release: func() error { released = true; return nil }})

		g := Install(j, nil, nil)
		g.Disarm()

		Convey("disarming does not itself roll back", func() {
			So(released, ShouldBeFalse)
		})
	})
}

func TestGuardRollbackOnExit(t *testing.T) {
	Convey("Given a guard whose RollbackOnExit is invoked", t, func() {
		j := journal.New(nil)
		released := false
		j.Record(journal.Entry{Release: func() error { released = true; return nil }})

		g := Install(j, nil, nil)
		defer g.Disarm()
		g.RollbackOnExit()

		time.Sleep(10 * time.Millisecond)
		So(released, ShouldBeTrue)
	})
}
