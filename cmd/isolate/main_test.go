package main

import (
	"bytes"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func determineBehavior(args ...string) behavior {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	return Main(args, stdout, stderr)
}

func TestCLIParse(t *testing.T) {
	Convey("Missing the required binary argument is a usage error", t, func() {
		bhv := determineBehavior()
		So(bhv.action(), ShouldNotBeNil)
	})

	Convey("A bare binary argument parses into a run behavior", t, func() {
		bhv := determineBehavior("/bin/true")
		So(bhv.parsedArgs, ShouldNotBeNil)
	})

	Convey("-d selects the detect behavior", t, func() {
		bhv := determineBehavior("-d", "/bin/true", "-o", "/tmp/out.caps")
		So(bhv.parsedArgs, ShouldNotBeNil)
	})

	Convey("flags after the payload binary are not consumed by isolate itself", t, func() {
		bhv := determineBehavior("/bin/true", "-n", "--also-payload-flag")
		So(bhv.parsedArgs, ShouldNotBeNil)
	})
}
