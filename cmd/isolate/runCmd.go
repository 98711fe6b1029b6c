package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/inconshreveable/log15"

	"go.polydawn.net/isolate/config"
	"go.polydawn.net/isolate/guard"
	"go.polydawn.net/isolate/hostprim"
	"go.polydawn.net/isolate/journal"
	"go.polydawn.net/isolate/launch"
	"go.polydawn.net/isolate/lib/errcat"
	"go.polydawn.net/isolate/orchestrate"
	"go.polydawn.net/isolate/policy"
)

type RunArgs struct {
	PolicyPath string
	Verbose    bool
	DryRun     bool
	Binary     string
	Args       []string // original argv starting at the payload
	Log        log15.Logger
	Stdout     io.Writer
	Stderr     io.Writer
}

// RunCmd implements `isolate [-c FILE] [-v] [-n] <binary> [args...]`
// (spec §6). With -n it prints the resolved policy and returns nil;
// otherwise, on success it never returns: the launcher has replaced this
// process's image with the payload.
func RunCmd(args RunArgs) error {
	binaryPath, err := resolveBinary(args.Binary)
	if err != nil {
		return errcat.Errorf(ErrUsage, "%s", err)
	}

	policyPath := config.PolicyPath(args.PolicyPath, binaryPath)
	pol, warnings, err := policy.Load(policyPath)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(args.Stderr, "isolate: %s\n", w)
	}

	if args.DryRun {
		printPolicy(args.Stdout, pol)
		return nil
	}

	if err := launch.CheckPrivilege(); err != nil {
		return err
	}

	prims := hostprim.NewLinux()
	prims.PrincipalRegistryPath = config.PrincipalRegistryPath()
	o := orchestrate.New(prims, args.Log)

	var g *guard.Guard
	ctx, env, err := o.Provision(pol, binaryPath, func(j *journal.Journal) {
		g = guard.Install(j, args.Log, args.Stderr)
	})
	if err != nil {
		return err
	}

	// From here on a failure is post-privilege-drop: spec §4.5 says it's
	// reported as a launch error, not corrected by rollback. We still
	// roll back on a best-effort basis ourselves, since this process
	// (unlike a successful exec) is still alive to do it.
	err = launch.Exec(ctx, env, binaryPath, args.Args)
	if g != nil {
		g.RollbackOnExit()
	}
	return err
}

func resolveBinary(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}
