package policy

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseBasics(t *testing.T) {
	Convey("Parsing a well-formed capability document", t, func() {
		doc := `
			# a comment line, and a blank line above
			user: auto
			memory: 64M
			processes: 10
			files: 256
			cpu: 50
			network: tcp:8080
			network: unix:/run/demo.sock
			network: none
			filesystem: /usr/lib:r
			file: /home/op/bin:rx
			env: FOO=bar
			env_clear: true
			network_default: deny
			filesystem_default: allow
			workspace: /tmp/demo
		`
		p, warnings, err := Parse(strings.NewReader(doc))
		So(err, ShouldBeNil)
		So(warnings, ShouldBeEmpty)

		So(p.Principal, ShouldResemble, EphemeralPrincipal())
		So(p.Limits.MemoryBytes, ShouldEqual, 64<<20)
		So(p.Limits.MaxProcesses, ShouldEqual, 10)
		So(p.Limits.MaxFiles, ShouldEqual, 256)
		So(p.Limits.MaxCPUPercent, ShouldEqual, 50)
		So(p.EnvClear, ShouldBeTrue)
		So(p.NetworkDefaultDeny, ShouldBeTrue)
		So(p.FSDefaultDeny, ShouldBeFalse)
		So(p.WorkspacePath, ShouldEqual, "/tmp/demo")

		So(p.NetworkRules, ShouldHaveLength, 3)
		So(p.NetworkRules[0], ShouldResemble, NetworkRule{Protocol: ProtoTCP, Address: "0.0.0.0", Port: 8080, Direction: DirBoth})
		So(p.NetworkRules[1], ShouldResemble, NetworkRule{Protocol: ProtoUnix, Address: "/run/demo.sock", Port: PortAny})
		So(p.NetworkRules[2], ShouldResemble, NetworkRule{Protocol: ProtoNone, Port: PortAny})

		So(p.FileRules, ShouldHaveLength, 2)
		So(p.FileRules[0].Path, ShouldEqual, "/usr/lib")
		So(p.FileRules[0].Has(PermRead), ShouldBeTrue)
		So(p.FileRules[0].Has(PermWrite), ShouldBeFalse)
		So(p.FileRules[1].Has(PermExecute), ShouldBeTrue)

		So(p.EnvRules, ShouldResemble, []EnvRule{{"FOO", "bar"}})
	})

	Convey("Named principal", t, func() {
		p, _, err := Parse(strings.NewReader("user: nosuchuser\n"))
		So(err, ShouldBeNil)
		So(p.Principal, ShouldResemble, NamedPrincipal("nosuchuser"))
	})
}

func TestParseTolerance(t *testing.T) {
	Convey("A malformed line is warned about and skipped, not fatal", t, func() {
		doc := "memory: banana\nuser: auto\n"
		p, warnings, err := Parse(strings.NewReader(doc))
		So(err, ShouldBeNil)
		So(warnings, ShouldHaveLength, 1)
		So(p.Principal, ShouldResemble, EphemeralPrincipal())
		So(p.Limits.MemoryBytes, ShouldEqual, 0)
	})

	Convey("An unknown key is warned about and skipped", t, func() {
		_, warnings, err := Parse(strings.NewReader("frobnicate: true\n"))
		So(err, ShouldBeNil)
		So(warnings, ShouldHaveLength, 1)
	})

	Convey("Rule caps discard excess entries with a warning", t, func() {
		var sb strings.Builder
		for i := 0; i < maxFileRules+3; i++ {
			sb.WriteString("file: /tmp\n")
		}
		p, warnings, err := Parse(strings.NewReader(sb.String()))
		So(err, ShouldBeNil)
		So(p.FileRules, ShouldHaveLength, maxFileRules)
		So(warnings, ShouldHaveLength, 3)
	})

	Convey("Parsing never fails outright, for any input", t, func() {
		inputs := []string{
			"",
			"::::\n",
			"network: tcp:1:2:3:4:5\n",
			"file:\n",
			"env: \n",
		}
		for _, in := range inputs {
			_, _, err := Parse(strings.NewReader(in))
			So(err, ShouldBeNil)
		}
	})
}

func TestLoadMissingFile(t *testing.T) {
	Convey("Loading a nonexistent document falls back to defaults with a warning", t, func() {
		p, warnings, err := Load("/nonexistent/path/to/nothing.caps")
		So(err, ShouldBeNil)
		So(warnings, ShouldHaveLength, 1)
		So(p, ShouldResemble, Default())
	})
}
