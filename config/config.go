package config

import (
	"os"
	"path/filepath"
)

// RootParent is the directory new sandbox root filesystems are created
// under (spec §6: "ephemeral root directories live under a well-known
// temporary parent; name pattern isolate-<tag>"). Overridable with
// ISOLATE_ROOT_PARENT for hosts whose default temp dir is unsuitable
// (tmpfs too small, noexec-mounted, etc).
func RootParent() string {
	if pth := os.Getenv("ISOLATE_ROOT_PARENT"); pth != "" {
		abs, err := filepath.Abs(pth)
		if err != nil {
			panic(err)
		}
		return abs
	}
	return filepath.Join(os.TempDir(), "isolate-roots")
}

// PolicyPath resolves the capability document path for a given payload
// binary per spec §6: "-c FILE: policy document path; default
// <binary>.caps".
func PolicyPath(explicit, binaryPath string) string {
	if explicit != "" {
		return explicit
	}
	return binaryPath + ".caps"
}

// PrincipalRegistryPath is the flat file hostprim.Linux uses to make
// ephemeral principal creation idempotent and collision-free across
// concurrent invocations. Overridable with ISOLATE_PRINCIPAL_REGISTRY.
func PrincipalRegistryPath() string {
	if pth := os.Getenv("ISOLATE_PRINCIPAL_REGISTRY"); pth != "" {
		return pth
	}
	return "/var/lib/isolate/principals"
}
