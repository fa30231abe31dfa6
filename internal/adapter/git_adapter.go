package adapter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

// DefaultGitTimeout bounds a single git invocation.
const DefaultGitTimeout = 10 * time.Minute

// GitAdapter abstracts the git operations needed to materialise a target and
// list the files it changes.
type GitAdapter interface {
	// Clone clones the target repository into dest. A non-empty token is used
	// as the HTTPS credential.
	Clone(ctx context.Context, target m.Target, token string, dest m.Path) error

	// Fetch fetches refspec from origin, authenticating with a non-empty token.
	Fetch(ctx context.Context, dir m.Path, refspec, token string) error

	// Checkout checks out ref in the working tree.
	Checkout(ctx context.Context, dir m.Path, ref string) error

	// ResolveRef returns a revision git accepts for ref, falling back to the
	// remote-tracking branch when no local ref exists.
	ResolveRef(ctx context.Context, dir m.Path, ref string) (string, error)

	// Numstat lists changed files with line counts. One revision lists the
	// changes of that commit; two revisions list BASE...HEAD.
	Numstat(ctx context.Context, dir m.Path, revisions ...string) ([]m.ChangeRecord, error)
}

// LocalGitAdapter implements GitAdapter with the git binary.
type LocalGitAdapter struct {
	runner toolRunner
}

// NewLocalGitAdapter constructs a LocalGitAdapter. A non-positive timeout
// selects DefaultGitTimeout.
func NewLocalGitAdapter(timeout time.Duration) *LocalGitAdapter {
	if timeout <= 0 {
		timeout = DefaultGitTimeout
	}

	return &LocalGitAdapter{
		runner: toolRunner{
			timeout: timeout,
			env:     []string{"GIT_TERMINAL_PROMPT=0"},
		},
	}
}

// Clone clones the target repository into dest. The token travels as a
// per-process extra header and is never written to the clone's config.
func (a *LocalGitAdapter) Clone(ctx context.Context, target m.Target, token string, dest m.Path) error {
	_, err := a.withToken(token).run(ctx, "", "git", "clone", "--quiet", target.CloneURL(), string(dest))

	return redactToken(err, token)
}

// Fetch fetches refspec from origin.
func (a *LocalGitAdapter) Fetch(ctx context.Context, dir m.Path, refspec, token string) error {
	_, err := a.withToken(token).run(ctx, dir, "git", "fetch", "--quiet", "origin", refspec)

	return redactToken(err, token)
}

// withToken returns a runner that sends token as GitHub basic auth through
// GIT_CONFIG_* environment entries.
func (a *LocalGitAdapter) withToken(token string) toolRunner {
	if token == "" {
		return a.runner
	}

	credential := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
	runner := a.runner
	runner.env = append(append([]string{}, a.runner.env...),
		"GIT_CONFIG_COUNT=1",
		"GIT_CONFIG_KEY_0=http.https://github.com/.extraheader",
		"GIT_CONFIG_VALUE_0=AUTHORIZATION: basic "+credential,
	)

	return runner
}

func redactToken(err error, token string) error {
	if err == nil || token == "" || !strings.Contains(err.Error(), token) {
		return err
	}

	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "***"))
}

// Checkout checks out ref in the working tree.
func (a *LocalGitAdapter) Checkout(ctx context.Context, dir m.Path, ref string) error {
	_, err := a.runner.run(ctx, dir, "git", "checkout", "--quiet", ref)

	return err
}

// ResolveRef returns ref when it names a commit, otherwise origin/ref.
func (a *LocalGitAdapter) ResolveRef(ctx context.Context, dir m.Path, ref string) (string, error) {
	for _, candidate := range []string{ref, "origin/" + ref} {
		if _, err := a.runner.run(ctx, dir, "git", "rev-parse", "--verify", "--quiet", candidate+"^{commit}"); err == nil {
			return candidate, nil
		} else if errors.Is(err, ErrToolUnavailable) {
			return "", err
		}
	}

	return "", fmt.Errorf("unknown revision %q", ref)
}

// Numstat lists changed files with their added and deleted line counts.
func (a *LocalGitAdapter) Numstat(ctx context.Context, dir m.Path, revisions ...string) ([]m.ChangeRecord, error) {
	var args []string

	switch len(revisions) {
	case 1:
		// show also covers root commits, which have no parent to diff against.
		args = []string{"show", "--numstat", "--format=", revisions[0]}
	case 2:
		args = []string{"diff", "--numstat", revisions[0] + "..." + revisions[1]}
	default:
		return nil, fmt.Errorf("numstat needs one or two revisions, got %d", len(revisions))
	}

	out, err := a.runner.run(ctx, dir, "git", args...)
	if err != nil {
		return nil, err
	}

	return parseNumstat(out)
}

// parseNumstat parses `git --numstat` output. Binary files report "-" and
// count as zero lines. Renames are attributed to the new path.
func parseNumstat(out string) ([]m.ChangeRecord, error) {
	records := []m.ChangeRecord{}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.SplitN(line, "\t", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed numstat line %q", line)
		}

		additions, err := numstatCount(fields[0])
		if err != nil {
			return nil, fmt.Errorf("malformed numstat line %q: %w", line, err)
		}

		deletions, err := numstatCount(fields[1])
		if err != nil {
			return nil, fmt.Errorf("malformed numstat line %q: %w", line, err)
		}

		records = append(records, m.ChangeRecord{
			Path:      m.NormalizePath(renamedPath(fields[2])),
			Additions: additions,
			Deletions: deletions,
		})
	}

	return records, nil
}

func numstatCount(field string) (int, error) {
	if field == "-" {
		return 0, nil
	}

	return strconv.Atoi(field)
}

// renamedPath resolves "old => new" and "dir/{old => new}/file" to the new path.
func renamedPath(p string) string {
	open := strings.Index(p, "{")
	closing := strings.LastIndex(p, "}")

	if open >= 0 && closing > open && strings.Contains(p[open:closing], " => ") {
		_, newPart, _ := strings.Cut(p[open+1:closing], " => ")
		joined := p[:open] + newPart + p[closing+1:]

		return strings.ReplaceAll(joined, "//", "/")
	}

	if _, newPath, found := strings.Cut(p, " => "); found {
		return newPath
	}

	return p
}
