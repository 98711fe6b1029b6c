package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.polydawn.net/isolate/config"
	"go.polydawn.net/isolate/lib/flak"
)

// DetectCmd implements `isolate -d <binary> [-o FILE]`. Per spec §6,
// capability detection itself is out of scope for this binary; this
// writes a conservative default document (ephemeral principal, no
// rules) in the shared grammar so a real heuristic detector -- an
// external tool -- has something to refine, and so this binary can
// demonstrate it writes exactly what policy.Load reads.
func DetectCmd(binaryPath, outputPath string, stdout io.Writer) error {
	abs, err := resolveBinary(binaryPath)
	if err != nil {
		return err
	}
	dest := config.PolicyPath(outputPath, abs)

	// Stage the write in a scratch dir next to dest and rename into
	// place, so a reader never observes a half-written document -- the
	// same atomic-write-via-staging-dir technique flak.WithTempDir was
	// written for.
	var writeErr error
	err = flak.WithTempDir(filepath.Dir(dest), func(dir string) {
		staged := filepath.Join(dir, "draft.caps")
		if writeErr = os.WriteFile(staged, []byte(draftPolicyDoc), 0644); writeErr != nil {
			return
		}
		writeErr = os.Rename(staged, dest)
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}

	fmt.Fprintf(stdout, "wrote draft policy to %s\n", dest)
	return nil
}

const draftPolicyDoc = `# draft capability document
# generated by isolate -d; this is a conservative default, not a detection
# result -- capability detection is an external tool's job (see the
# project's design notes). Edit the rules below by hand.
user: auto
network_default: deny
filesystem_default: deny
env_clear: false
`
