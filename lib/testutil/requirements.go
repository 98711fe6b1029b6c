package testutil

import "os"

// HaveRoot reports whether the test process is running as uid 0.  Several
// of the hostprim.Linux specs can only exercise real mounts, namespaces,
// and credential switches under root, and are skipped (not failed) when
// it's unavailable -- consistent with this codebase's older convention of
// gating root-only suites rather than asserting on something the test
// runner can't grant.
func HaveRoot() bool {
	return os.Getuid() == 0
}
