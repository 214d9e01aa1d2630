// SPDX-License-Identifier: MIT

package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/altqx/akane/internal/log"
)

// stderrTailLimit bounds how much captured stderr ends up in error
// messages and progress frames.
const stderrTailLimit = 4 << 10

// Runner executes an external media tool and returns its stdout.
// Implementations must include a useful stderr excerpt in errors.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools via os/exec.
type ExecRunner struct{}

// Run executes name with args, optionally in dir, and returns stdout.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := log.WithComponentFromContext(ctx, "media")
	logger.Debug().
		Str("tool", name).
		Strs("args", args).
		Msg("running media tool")

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, tail(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

func tail(b []byte) string {
	if len(b) > stderrTailLimit {
		b = b[len(b)-stderrTailLimit:]
	}
	return string(bytes.TrimSpace(b))
}
