package model

import "fmt"

// WarningKind classifies recoverable problems met during a run.
type WarningKind string

const (
	// WarnUnresolvableReference is a reference that maps to no file under the root.
	WarnUnresolvableReference WarningKind = "unresolvable-reference"
	// WarnMalformedRegion is a test marker whose body never balances.
	WarnMalformedRegion WarningKind = "malformed-delimiter-region"
	// WarnPatternSyntax is an empty or malformed filter pattern.
	WarnPatternSyntax WarningKind = "pattern-syntax"
	// WarnMissingCandidate is a candidate path that does not exist under the root.
	WarnMissingCandidate WarningKind = "missing-candidate"
	// WarnSyntaxCheck is stripped output that no longer parses.
	WarnSyntaxCheck WarningKind = "syntax-check"
	// WarnToolUnavailable is an external tool that could not be run.
	WarnToolUnavailable WarningKind = "tool-unavailable"
	// WarnUnreadableFile is a file that could not be read or written.
	WarnUnreadableFile WarningKind = "unreadable-file"
)

// Warning is a non-fatal problem attached to a result.
type Warning struct {
	Kind    WarningKind `yaml:"kind"`
	Path    Path        `yaml:"path,omitempty"`
	Message string      `yaml:"message"`
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}

	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Path, w.Message)
}
