package main

import (
	"fmt"
	"io"
	"os"

	"github.com/inconshreveable/log15"
	"gopkg.in/alecthomas/kingpin.v2"

	"go.polydawn.net/isolate/lib/errcat"
)

func main() {
	bhv := Main(os.Args[1:], os.Stdout, os.Stderr)
	err := bhv.action()
	if err != nil {
		fmt.Fprintf(os.Stderr, "isolate: %s\n", err)
		os.Exit(1)
	}
}

// behavior separates argument parsing from execution so tests can
// inspect what was parsed without actually running the action.
type behavior struct {
	parsedArgs interface{}
	action     func() error
}

func Main(args []string, stdout, stderr io.Writer) behavior {
	app := kingpin.New("isolate", "Run a binary inside a private, policy-governed sandbox.")
	app.HelpFlag.Short('h')
	app.UsageWriter(stderr)
	app.ErrorWriter(stderr)
	app.Interspersed(false) // everything after <binary> belongs to the payload, not to us

	cliArgs := struct {
		PolicyPath string
		Verbose    bool
		DryRun     bool
		Detect     bool
		OutputPath string
		Binary     string
		Rest       []string
	}{}

	app.Flag("config", "Policy document path (default <binary>.caps)").Short('c').StringVar(&cliArgs.PolicyPath)
	app.Flag("verbose", "Verbose diagnostic output on stderr").Short('v').BoolVar(&cliArgs.Verbose)
	app.Flag("dry-run", "Parse and print the resolved policy; do not provision").Short('n').BoolVar(&cliArgs.DryRun)
	app.Flag("detect", "Write a draft policy document for <binary> instead of running it").Short('d').BoolVar(&cliArgs.Detect)
	app.Flag("output", "Draft policy output path, used with --detect").Short('o').StringVar(&cliArgs.OutputPath)
	app.Arg("binary", "Payload binary to run or detect.").Required().StringVar(&cliArgs.Binary)
	app.Arg("args", "Arguments passed through to the payload.").StringsVar(&cliArgs.Rest)

	if _, err := app.Parse(args); err != nil {
		return behavior{nil, func() error {
			return errcat.Errorf(ErrUsage, "%s", err)
		}}
	}

	log := log15.New()
	if cliArgs.Verbose {
		log.SetHandler(log15.StreamHandler(stderr, log15.TerminalFormat()))
	} else {
		log.SetHandler(log15.LvlFilterHandler(log15.LvlWarn, log15.StreamHandler(stderr, log15.TerminalFormat())))
	}

	if cliArgs.Detect {
		// Flags are not interspersed, so `-d <binary> -o FILE` leaves
		// "-o FILE" in Rest; take the output path from there.
		if cliArgs.OutputPath == "" && len(cliArgs.Rest) == 2 &&
			(cliArgs.Rest[0] == "-o" || cliArgs.Rest[0] == "--output") {
			cliArgs.OutputPath = cliArgs.Rest[1]
			cliArgs.Rest = nil
		}
		return behavior{&cliArgs, func() error {
			return DetectCmd(cliArgs.Binary, cliArgs.OutputPath, stdout)
		}}
	}
	return behavior{&cliArgs, func() error {
		return RunCmd(RunArgs{
			PolicyPath: cliArgs.PolicyPath,
			Verbose:    cliArgs.Verbose,
			DryRun:     cliArgs.DryRun,
			Binary:     cliArgs.Binary,
			Args:       append([]string{cliArgs.Binary}, cliArgs.Rest...),
			Log:        log,
			Stdout:     stdout,
			Stderr:     stderr,
		})
	}}
}

const ErrUsage = "usage"
