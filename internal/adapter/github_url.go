package adapter

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

// ErrInvalidTargetURL is returned for URLs that do not name a GitHub repository.
var ErrInvalidTargetURL = errors.New("invalid GitHub URL")

// ParseGitHubURL classifies a GitHub URL as a repository, branch, commit,
// pull request or comparison. Credentials embedded in the URL are dropped.
func ParseGitHubURL(raw string) (m.Target, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return m.Target{}, fmt.Errorf("%w: empty URL", ErrInvalidTargetURL)
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return m.Target{}, fmt.Errorf("%w: %w", ErrInvalidTargetURL, err)
	}

	host := strings.ToLower(u.Hostname())
	if host != "github.com" && !strings.HasSuffix(host, ".github.com") {
		return m.Target{}, fmt.Errorf("%w: %s is not a GitHub host", ErrInvalidTargetURL, u.Hostname())
	}

	parts := splitURLPath(u.Path)
	if len(parts) < 2 {
		return m.Target{}, fmt.Errorf("%w: expected /owner/repo in %s", ErrInvalidTargetURL, u.Path)
	}

	target := m.Target{
		Kind:  m.TargetRepo,
		Owner: parts[0],
		Repo:  strings.TrimSuffix(parts[1], ".git"),
	}

	if len(parts) == 2 {
		return target, nil
	}

	rest := parts[3:]

	switch parts[2] {
	case "tree":
		if len(rest) == 0 {
			return m.Target{}, fmt.Errorf("%w: tree URL without a ref", ErrInvalidTargetURL)
		}

		target.Branch = rest[0]
	case "commit":
		if len(rest) == 0 {
			return m.Target{}, fmt.Errorf("%w: commit URL without a sha", ErrInvalidTargetURL)
		}

		target.Kind = m.TargetCommit
		target.Commit = rest[0]
	case "pull", "pulls":
		if len(rest) == 0 {
			return m.Target{}, fmt.Errorf("%w: pull request URL without a number", ErrInvalidTargetURL)
		}

		number, err := strconv.Atoi(rest[0])
		if err != nil || number <= 0 {
			return m.Target{}, fmt.Errorf("%w: bad pull request number %q", ErrInvalidTargetURL, rest[0])
		}

		target.Kind = m.TargetPR
		target.PRNumber = number
	case "compare":
		base, head, ok := splitComparison(strings.Join(rest, "/"))
		if !ok {
			return m.Target{}, fmt.Errorf("%w: comparison must be BASE...HEAD or BASE..HEAD", ErrInvalidTargetURL)
		}

		target.Kind = m.TargetComparison
		target.Base = base
		target.Head = head
	}

	return target, nil
}

func splitURLPath(p string) []string {
	var parts []string

	for _, part := range strings.Split(p, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}

	return parts
}

func splitComparison(revRange string) (string, string, bool) {
	for _, sep := range []string{"...", ".."} {
		base, head, found := strings.Cut(revRange, sep)
		if found {
			return base, head, base != "" && head != ""
		}
	}

	return "", "", false
}
