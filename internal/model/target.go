package model

import "fmt"

// TargetKind describes what a GitHub URL points at.
type TargetKind string

const (
	// TargetLocal is a directory already on disk.
	TargetLocal TargetKind = "local"
	// TargetRepo is a whole repository, optionally at a branch or commit.
	TargetRepo TargetKind = "repo"
	// TargetPR is a pull request.
	TargetPR TargetKind = "pr"
	// TargetCommit is a single commit.
	TargetCommit TargetKind = "commit"
	// TargetComparison is a base...head comparison.
	TargetComparison TargetKind = "comparison"
)

// Target identifies the code to analyse.
type Target struct {
	Kind     TargetKind `yaml:"kind"`
	Owner    string     `yaml:"owner,omitempty"`
	Repo     string     `yaml:"repo,omitempty"`
	Branch   string     `yaml:"branch,omitempty"`
	Commit   string     `yaml:"commit,omitempty"`
	PRNumber int        `yaml:"pr_number,omitempty"`
	Base     string     `yaml:"base,omitempty"`
	Head     string     `yaml:"head,omitempty"`
	Dir      Path       `yaml:"dir,omitempty"`
}

// IsRemote reports whether the target has to be cloned first.
func (t Target) IsRemote() bool {
	return t.Kind != TargetLocal && t.Kind != ""
}

// HasChangeList reports whether the primary files come from a change list
// rather than a full scan.
func (t Target) HasChangeList() bool {
	switch t.Kind {
	case TargetPR, TargetCommit, TargetComparison:
		return true
	}

	return false
}

// CloneURL returns the public https clone URL.
func (t Target) CloneURL() string {
	return "https://github.com/" + t.Owner + "/" + t.Repo + ".git"
}

func (t Target) String() string {
	name := t.Owner + "/" + t.Repo

	switch t.Kind {
	case TargetLocal, "":
		return "directory " + string(t.Dir)
	case TargetPR:
		return fmt.Sprintf("%s pull request #%d", name, t.PRNumber)
	case TargetCommit:
		return name + " commit " + t.Commit
	case TargetComparison:
		return name + " " + t.Base + "..." + t.Head
	}

	if t.Branch != "" {
		return name + "@" + t.Branch
	}

	return name
}
