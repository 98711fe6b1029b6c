/*
	Package orchestrate implements the isolation orchestrator: the
	component that turns a parsed policy.Policy into a live
	IsolationContext by driving hostprim.Primitives through the ordered
	provisioning pipeline, recording every acquired resource in a
	journal.Journal so any failure can be unwound cleanly.

	This is the transactional heart of the whole program. The ordering of
	the steps in Provision is load-bearing: later steps depend on earlier
	side effects, and the journal's LIFO release order is only correct
	because acquisition happened in exactly this order.
*/
package orchestrate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/inconshreveable/log15"

	"go.polydawn.net/isolate/config"
	"go.polydawn.net/isolate/hostprim"
	"go.polydawn.net/isolate/journal"
	"go.polydawn.net/isolate/policy"
)

// skeletonDirs is the fixed subdirectory layout spec §4.5 step 3
// requires inside every sandbox root. These are plain directory
// creations under a root this orchestrator already owns (via
// RootDirCreate) -- they don't need their own primitive or journal
// entry, since removing the root recursively reclaims them all.
var skeletonDirs = []string{
	"bin", "lib", "usr/lib", "usr/local/lib", "dev",
	"libexec", "etc", "var/log", "var/tmp", "var/run",
}

// Orchestrator drives the provisioning pipeline against a Primitives
// implementation -- hostprim.Linux in production, hostprim.Mock in
// tests.
type Orchestrator struct {
	Prims hostprim.Primitives
	Log   log15.Logger
}

func New(prims hostprim.Primitives, log log15.Logger) *Orchestrator {
	if log == nil {
		log = log15.Root()
	}
	return &Orchestrator{Prims: prims, Log: log}
}

// Provision runs spec §4.5 steps 1-13: it builds a fresh IsolationContext
// from pol, leaving the calling process attached to the sandbox and
// running under the dropped-privilege identity, with env holding the
// environment the payload should be exec'd with. installGuard is called
// once as the very last step before hand-off (step 13), after which
// responsibility for triggering rollback on external signals belongs to
// whatever installGuard wired up (see package guard).
//
// Any failure during steps 1-11 triggers an automatic rollback before
// returning; the caller never needs to call ctx.Journal.Rollback itself
// in that case. Failures in steps 12-13 occur after the point of no
// return for privilege (step 11) and are returned as-is, uncorrected by
// rollback, per spec §4.5.
func (o *Orchestrator) Provision(pol policy.Policy, binaryPath string, installGuard func(*journal.Journal)) (ctx *IsolationContext, env []string, err error) {
	tag := newTag()
	j := journal.New(o.Log)
	ctx = &IsolationContext{Tag: tag, Journal: j, State: Provisioning}

	fail := func(stepErr error) (*IsolationContext, []string, error) {
		j.Rollback()
		ctx.State = RolledBack
		return ctx, nil, stepErr
	}

	// 1. name synthesis already done (tag).

	// 2. principal resolution.
	if pol.Principal.Ephemeral {
		uid, gid, err := o.Prims.PrincipalCreateEphemeral(tag)
		if err != nil {
			return fail(err)
		}
		j.Record(journal.Entry{Kind: journal.KindPrincipalCreated, Handle: tag, Release: func() error {
			return o.Prims.PrincipalDestroy(tag)
		}})
		ctx.UID, ctx.GID, ctx.PrincipalName = uid, gid, tag
	} else {
		uid, gid, ok, err := o.Prims.PrincipalLookup(pol.Principal.Name)
		if err != nil {
			return fail(err)
		}
		if !ok {
			return fail(errViolation(fmt.Sprintf("named principal %q does not exist", pol.Principal.Name)))
		}
		ctx.UID, ctx.GID, ctx.PrincipalName = uid, gid, pol.Principal.Name
	}

	// 3. root filesystem.
	rootPath := filepath.Join(config.RootParent(), tag)
	ctx.RootPath = rootPath
	if err := o.Prims.RootDirCreate(rootPath); err != nil {
		return fail(err)
	}
	j.Record(journal.Entry{Kind: journal.KindRootDirCreated, Handle: rootPath, Release: func() error {
		return o.Prims.DirRemoveRecursive(rootPath)
	}})
	for _, sub := range skeletonDirs {
		if err := os.MkdirAll(filepath.Join(rootPath, sub), 0755); err != nil {
			return fail(hostprim.Errorf("root_dir_create", err))
		}
	}
	if err := os.MkdirAll(filepath.Join(rootPath, "tmp"), 01777); err != nil {
		return fail(hostprim.Errorf("root_dir_create", err))
	}
	if err := os.Chmod(filepath.Join(rootPath, "tmp"), 01777); err != nil {
		return fail(hostprim.Errorf("root_dir_create", err))
	}
	if err := o.materializeBinary(rootPath, binaryPath); err != nil {
		return fail(err)
	}
	if err := o.writeIdentityFiles(rootPath, ctx); err != nil {
		return fail(err)
	}

	// 4. workspace.
	if pol.WorkspacePath != "" {
		target := filepath.Join(rootPath, "workspace")
		if err := os.MkdirAll(target, 0755); err != nil {
			return fail(hostprim.Errorf("root_dir_create", err))
		}
		if err := o.Prims.BindMount(pol.WorkspacePath, target, hostprim.ReadWrite); err != nil {
			return fail(err)
		}
		j.Record(journal.Entry{Kind: journal.KindWorkspaceMounted, Handle: target, Release: func() error {
			return o.Prims.Unmount(target)
		}})
	}

	// 5. device filesystem -- failure here is a warning, not fatal.
	devTarget := filepath.Join(rootPath, "dev")
	if err := o.Prims.OverlayMountDev(devTarget); err != nil {
		o.Log.Warn("device filesystem unavailable, continuing without it", "err", err)
	} else {
		j.Record(journal.Entry{Kind: journal.KindDevMounted, Handle: devTarget, Release: func() error {
			return o.Prims.Unmount(devTarget)
		}})
	}

	// 6. filesystem capability materialization.
	for _, rule := range pol.FileRules {
		if !rule.Has(policy.PermRead) {
			continue
		}
		info, err := os.Stat(rule.Path)
		if err != nil || !info.IsDir() {
			o.Log.Warn("file rule skipped: not an existing directory", "path", rule.Path)
			continue
		}
		mountPoint := filepath.Join(rootPath, rule.Path)
		if err := os.MkdirAll(mountPoint, 0755); err != nil {
			return fail(hostprim.Errorf("root_dir_create", err))
		}
		mode := hostprim.ReadOnly
		if rule.Has(policy.PermWrite) {
			mode = hostprim.ReadWrite
		}
		if err := o.Prims.BindMount(rule.Path, mountPoint, mode); err != nil {
			return fail(err)
		}
		j.Record(journal.Entry{Kind: journal.KindBindMounted, Handle: mountPoint, Release: func() error {
			return o.Prims.Unmount(mountPoint)
		}})
	}

	// 7. container creation.
	containerID, err := o.Prims.ContainerCreate(hostprim.ContainerSpec{
		Name:              tag,
		Root:              rootPath,
		NetworkMode:       hostprim.NetworkInheritHost,
		IPCAllowed:        false,
		RawSocketsAllowed: false,
		AFSocketsAllowed:  true,
	})
	if err != nil {
		return fail(err)
	}
	ctx.ContainerID = containerID
	j.Record(journal.Entry{Kind: journal.KindContainerCreated, Handle: containerID, Release: func() error {
		return o.Prims.ContainerDestroy(containerID)
	}})

	// 8. resource accounting -- a rejected rule is a warning, not fatal.
	for metric, limit := range limitsToMetrics(pol.Limits) {
		if limit == 0 {
			continue
		}
		if err := o.Prims.AccountingAddRule(tag, metric, limit); err != nil {
			o.Log.Warn("accounting rule rejected by host", "metric", metric, "err", err)
			continue
		}
		j.Record(journal.Entry{Kind: journal.KindAccountingRuleAdded, Handle: string(metric), Release: func() error {
			return nil // rules die with the container; nothing to release independently
		}})
	}

	// 9. network policy: the current host primitive has no per-rule
	// firewall to program, so pol.NetworkRules is retained only as
	// documentation at this stage (see open questions).

	// 10. attach.
	if err := o.Prims.ContainerAttach(containerID); err != nil {
		return fail(err)
	}
	ctx.State = Attached

	// 11. credential drop: point of no return for privilege. A failure
	// past this point is no longer corrected by rollback.
	if err := o.Prims.CredentialSwitch(ctx.UID, ctx.GID); err != nil {
		return fail(err)
	}
	ctx.State = Dropped

	// 12. environment preparation.
	env = buildEnv(pol, ctx.PrincipalName)

	// 13. install exit guard.
	if installGuard != nil {
		installGuard(j)
	}

	ctx.State = HandedOff
	return ctx, env, nil
}

func limitsToMetrics(l policy.Limits) map[hostprim.Metric]int64 {
	return map[hostprim.Metric]int64{
		hostprim.MetricMemory:    l.MemoryBytes,
		hostprim.MetricProcesses: int64(l.MaxProcesses),
		hostprim.MetricOpenFiles: int64(l.MaxFiles),
		hostprim.MetricCPU:       int64(l.MaxCPUPercent),
	}
}

func (o *Orchestrator) materializeBinary(rootPath, binaryPath string) error {
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		return hostprim.Errorf("file_write", err)
	}
	dest := filepath.Join(rootPath, filepath.Base(binaryPath))
	return o.Prims.FileWrite(dest, data, 0755)
}

func (o *Orchestrator) writeIdentityFiles(rootPath string, ctx *IsolationContext) error {
	passwd := fmt.Sprintf("root:x:0:0:root:/root:/bin/sh\n%s:x:%d:%d:%s:/tmp:/bin/sh\n",
		ctx.PrincipalName, ctx.UID, ctx.GID, ctx.PrincipalName)
	group := fmt.Sprintf("root:x:0:\n%s:x:%d:\n", ctx.PrincipalName, ctx.GID)
	if err := o.Prims.FileWrite(filepath.Join(rootPath, "etc", "passwd"), []byte(passwd), 0644); err != nil {
		return err
	}
	return o.Prims.FileWrite(filepath.Join(rootPath, "etc", "group"), []byte(group), 0644)
}

// defaultLibrarySearchPath is the conventional ELF dynamic-linker search
// path for a minimal, freestanding root -- matching the /lib and /usr/lib
// skeleton directories step 3 creates.
const defaultLibrarySearchPath = "/lib:/usr/lib:/usr/local/lib"

// buildEnv assembles the payload's starting environment per spec §4.5
// step 12: optionally clear it, apply env_rules (overriding any
// colliding inherited var in place so ordering-sensitive readers see one
// final value), then set the default triplet, replacing any inherited
// value, for every name no env rule already set.
func buildEnv(pol policy.Policy, principalName string) []string {
	var base []string
	if pol.EnvClear {
		base = nil
	} else {
		base = os.Environ()
	}

	index := map[string]int{}
	for i, kv := range base {
		if name, _, ok := splitEnv(kv); ok {
			index[name] = i
		}
	}
	ruleSet := map[string]bool{}
	for _, rule := range pol.EnvRules {
		ruleSet[rule.Name] = true
		entry := rule.Name + "=" + rule.Value
		if i, ok := index[rule.Name]; ok {
			base[i] = entry
		} else {
			index[rule.Name] = len(base)
			base = append(base, entry)
		}
	}

	defaults := []policy.EnvRule{
		{Name: "USER", Value: principalName},
		{Name: "HOME", Value: "/tmp"},
		{Name: "LIBRARY_SEARCH_PATH", Value: defaultLibrarySearchPath},
	}
	for _, d := range defaults {
		if ruleSet[d.Name] {
			continue
		}
		entry := d.Name + "=" + d.Value
		if i, ok := index[d.Name]; ok {
			base[i] = entry
		} else {
			base = append(base, entry)
		}
	}
	return base
}

func splitEnv(kv string) (name, value string, ok bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}
