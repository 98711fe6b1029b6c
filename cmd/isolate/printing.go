package main

import (
	"fmt"
	"io"

	"go.polydawn.net/isolate/policy"
)

// printPolicy renders the resolved policy for `-n` dry-run invocations
// (spec §6: "parse, print resolved policy, do not provision").
func printPolicy(w io.Writer, pol policy.Policy) {
	principal := "auto"
	if !pol.Principal.Ephemeral {
		principal = pol.Principal.Name
	}
	fmt.Fprintf(w, "principal: %s\n", principal)
	if pol.WorkspacePath != "" {
		fmt.Fprintf(w, "workspace: %s\n", pol.WorkspacePath)
	}
	fmt.Fprintf(w, "network_default_deny: %v\n", pol.NetworkDefaultDeny)
	fmt.Fprintf(w, "fs_default_deny: %v\n", pol.FSDefaultDeny)
	fmt.Fprintf(w, "env_clear: %v\n", pol.EnvClear)

	if pol.Limits.MemoryBytes > 0 {
		fmt.Fprintf(w, "limit memory: %d bytes\n", pol.Limits.MemoryBytes)
	}
	if pol.Limits.MaxProcesses > 0 {
		fmt.Fprintf(w, "limit processes: %d\n", pol.Limits.MaxProcesses)
	}
	if pol.Limits.MaxFiles > 0 {
		fmt.Fprintf(w, "limit files: %d\n", pol.Limits.MaxFiles)
	}
	if pol.Limits.MaxCPUPercent > 0 {
		fmt.Fprintf(w, "limit cpu: %d%%\n", pol.Limits.MaxCPUPercent)
	}

	for _, r := range pol.FileRules {
		fmt.Fprintf(w, "file: %s %v\n", r.Path, permString(r))
	}
	for _, r := range pol.NetworkRules {
		fmt.Fprintf(w, "network: %s %s:%d %s\n", r.Protocol, r.Address, r.Port, r.Direction)
	}
	for _, r := range pol.EnvRules {
		fmt.Fprintf(w, "env: %s=%s\n", r.Name, r.Value)
	}
}

func permString(r policy.FileRule) string {
	out := ""
	for _, p := range []policy.Perm{policy.PermRead, policy.PermWrite, policy.PermExecute} {
		if r.Has(p) {
			out += string(rune(p))
		}
	}
	return out
}
