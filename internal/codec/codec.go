// Package codec adapts external media tools (vips, ffprobe, exiftool)
// to the pipeline collaborator interfaces. Every adapter degrades to
// an error when its tool is absent; callers treat that as missing
// enrichment, not failure.
package codec

import (
	"context"
	"fmt"
	"os/exec"
)

// runner executes a tool and returns its stdout. Swapped in tests.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %v: %s", name, err, ee.Stderr)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// lookPath reports whether a tool is installed.
func lookPath(name string) error {
	_, err := exec.LookPath(name)
	return err
}
