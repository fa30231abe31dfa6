// Package controller provides output adapters for displaying analysis results.
package controller

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeAnalyze StartMode = iota
	ModeStrip
	ModeChanges
	ModeView
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
}

// WithMode sets the mode the UI starts in.
func WithMode(mode StartMode) StartOption {
	return func(c *StartConfig) {
		c.mode = mode
	}
}

// UI defines the interface for displaying analysis progress and results.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayConfiguration(ctx context.Context, target m.Target, extensions []string, rules m.FilterRules)
	DisplayProgress(ctx context.Context, message string)
	DisplayAnalysis(ctx context.Context, analysis m.Analysis) error
	DisplayChanges(ctx context.Context, changes m.Classification) error
	DisplayDiff(ctx context.Context, path m.Path, diff string)
	DisplayStripSummary(ctx context.Context, summary m.StripSummary) error
	DisplayWarnings(ctx context.Context, warnings []m.Warning)
	DisplayReports(ctx context.Context, paths []m.Path)
	DisplayCleaned(ctx context.Context, base m.Path, names []string)
}

// NewUI returns the pager UI when output goes to a terminal and the plain
// UI otherwise.
func NewUI(cmd *cobra.Command, useTTY bool) UI {
	if useTTY {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}
