package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

// ErrToolUnavailable is returned when an external tool is not installed.
var ErrToolUnavailable = errors.New("tool unavailable")

// toolRunner executes external command-line tools with a per-call timeout.
type toolRunner struct {
	timeout time.Duration
	env     []string
}

// run executes name with args in dir and returns its stdout. On failure the
// error carries the trimmed stderr.
func (r toolRunner) run(ctx context.Context, dir m.Path, name string, args ...string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = string(dir)

	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s: %w", ErrToolUnavailable, name, err)
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout.String(), fmt.Errorf("%s %s: %w", name, firstArg(args), ctxErr)
		}

		return stdout.String(), fmt.Errorf("%s %s: %w: %s", name, firstArg(args), err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}

	return args[0]
}
