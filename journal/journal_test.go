package journal

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestJournalOrder(t *testing.T) {
	Convey("Rollback releases entries in strict reverse of recording order", t, func() {
		var released []string
		j := New(nil)
		for _, name := range []string{"a", "b", "c"} {
			name := name
			j.Record(Entry{Kind: KindBindMounted, Handle: name, Release: func() error {
				released = append(released, name)
				return nil
			}})
		}
		So(j.Len(), ShouldEqual, 3)
		j.Rollback()
		So(released, ShouldResemble, []string{"c", "b", "a"})
		So(j.Len(), ShouldEqual, 0)
	})

	Convey("Rollback is idempotent", t, func() {
		calls := 0
		j := New(nil)
		j.Record(Entry{Release: func() error { calls++; return nil }})
		j.Rollback()
		j.Rollback()
		So(calls, ShouldEqual, 1)
	})

	Convey("A release failure does not halt rollback of earlier entries", t, func() {
		var released []string
		j := New(nil)
		j.Record(Entry{Handle: "first", Release: func() error {
			released = append(released, "first")
			return nil
		}})
		j.Record(Entry{Handle: "second", Release: func() error {
			return errFake{}
		}})
		j.Rollback()
		So(released, ShouldResemble, []string{"first"})
	})

	Convey("Commit discards entries without releasing them", t, func() {
		calls := 0
		j := New(nil)
		j.Record(Entry{Release: func() error { calls++; return nil }})
		j.Commit()
		So(j.Len(), ShouldEqual, 0)
		j.Rollback()
		So(calls, ShouldEqual, 0)
	})
}

type errFake struct{}

func (errFake) Error() string { return "fake release failure" }
