package adapter

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

func TestToolRunner_Run_Success(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	runner := toolRunner{timeout: 30 * time.Second}

	out, err := runner.run(context.Background(), m.Path(t.TempDir()), "git", "--version")
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if !strings.Contains(out, "git version") {
		t.Fatalf("run() output does not look like git output: %q", out)
	}
}

func TestToolRunner_Run_Failure(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	runner := toolRunner{timeout: 30 * time.Second}

	_, err := runner.run(context.Background(), m.Path(t.TempDir()), "git", "rev-parse", "--verify", "no-such-ref")
	if err == nil {
		t.Fatalf("run() expected error outside a repository")
	}

	if !strings.Contains(err.Error(), "git rev-parse") {
		t.Fatalf("run() error = %v, want command name in message", err)
	}
}

func TestToolRunner_Run_MissingBinary(t *testing.T) {
	runner := toolRunner{timeout: time.Second}

	_, err := runner.run(context.Background(), m.Path(t.TempDir()), "auditscope-no-such-tool")
	if !errors.Is(err, ErrToolUnavailable) {
		t.Fatalf("run() error = %v, want ErrToolUnavailable", err)
	}
}
