package testutil

import (
	"fmt"
	"os"
)

// ShouldBeFile asserts that 'actual' (a path) exists.  If 'expected'
// contains a single os.FileMode, the file's mode must match it exactly.
//
// hostprim's root-only Linux suite uses it to check that directories and
// device nodes were created.
func ShouldBeFile(actual interface{}, expected ...interface{}) string {
	filename, ok := actual.(string)
	if !ok {
		return "You must provide a filename as the first argument to this assertion."
	}

	info, err := os.Stat(filename)
	if err != nil {
		return err.Error()
	}

	switch len(expected) {
	case 0:
		return ""
	case 1:
		mode, ok := expected[0].(os.FileMode)
		if !ok {
			return "You must provide a FileMode as the second argument to this assertion, if any."
		}
		if info.Mode() != mode {
			return fmt.Sprintf("Expected file to have mode %v but it had %v instead!", mode, info.Mode())
		}
		return ""
	default:
		return "You must provide zero or one parameters as expectations to this assertion."
	}
}

// ShouldBeNotFile asserts that no file or directory exists at 'actual'.
func ShouldBeNotFile(actual interface{}, expected ...interface{}) string {
	filename, ok := actual.(string)
	if !ok {
		return "You must provide a filename as the first argument to this assertion."
	}
	if len(expected) != 0 {
		return "You must provide zero parameters as expectations to this assertion."
	}

	info, err := os.Stat(filename)
	if err == nil {
		modeType := info.Mode() & os.ModeType
		return fmt.Sprintf("Expected file not to exist but it had mode %v instead!", modeType)
	}
	if os.IsNotExist(err) {
		return ""
	}
	return err.Error()
}
