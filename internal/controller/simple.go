package controller

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

const noneLabel = "(none)"

// SimpleUI implements UI using cobra Command's output stream.
type SimpleUI struct {
	cmd *cobra.Command
	out io.Writer
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		return
	}
	// SimpleUI doesn't block - it just prints and continues
}

// DisplayConfiguration prints the target and filter settings of the run.
func (s *SimpleUI) DisplayConfiguration(ctx context.Context, target m.Target, extensions []string, rules m.FilterRules) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Target:      %s\n", target)
	s.printf("Extensions:  %s\n", joinOrNone(extensions))
	s.printf("Include:     %s\n", joinOrNone(rules.Include))
	s.printf("Exclude:     %s\n\n", joinOrNone(rules.Exclude))
}

// DisplayProgress prints a single progress line.
func (s *SimpleUI) DisplayProgress(ctx context.Context, message string) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("%s\n", message)
}

// DisplayAnalysis prints the file tables, line counts, changes and warnings
// of an analysis.
func (s *SimpleUI) DisplayAnalysis(ctx context.Context, analysis m.Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(analysis.Primary) == 0 {
		s.printf("No files found matching the specified criteria.\n")
	} else {
		s.printf("\nPrimary files:\n%s", renderEntryTable(analysis.Primary))
	}

	if len(analysis.Dependencies) > 0 {
		s.printf("\nDependencies:\n%s", renderEntryTable(analysis.Dependencies))
	}

	if analysis.PrimaryCount != nil || analysis.FullCount != nil {
		s.printf("\nLine counts:\n%s", renderCountTable(analysis.PrimaryCount, analysis.FullCount))
	}

	if analysis.Changes != nil {
		if err := s.DisplayChanges(ctx, *analysis.Changes); err != nil {
			return err
		}
	}

	if analysis.Stripped != nil {
		if err := s.DisplayStripSummary(ctx, *analysis.Stripped); err != nil {
			return err
		}
	}

	s.DisplayWarnings(ctx, analysis.Warnings)

	return nil
}

// DisplayChanges prints the in-scope changes and the dropped paths.
func (s *SimpleUI) DisplayChanges(ctx context.Context, changes m.Classification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\nChanged files in scope:\n%s", renderChangeTable(changes))

	if len(changes.Dropped) > 0 {
		s.printf("\nOut of scope (%d):\n", len(changes.Dropped))

		for _, c := range changes.Dropped {
			s.printf("  - %s\n", c.Path)
		}
	}

	return nil
}

// DisplayDiff prints the unified diff of a file.
func (s *SimpleUI) DisplayDiff(ctx context.Context, path m.Path, diff string) {
	if err := ctx.Err(); err != nil {
		return
	}

	if diff == "" {
		return
	}

	s.printf("\n%s\n%s", path, diff)
}

// DisplayStripSummary prints what the test removal pass changed.
func (s *SimpleUI) DisplayStripSummary(ctx context.Context, summary m.StripSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\nTest removal: %d regions removed, %d files modified, %d test files deleted\n",
		summary.Regions, len(summary.Modified), len(summary.Removed))

	for _, p := range summary.Removed {
		s.printf("  deleted   %s\n", p)
	}

	for _, p := range summary.Modified {
		s.printf("  modified  %s\n", p)
	}

	return nil
}

// DisplayWarnings prints warnings, if any.
func (s *SimpleUI) DisplayWarnings(ctx context.Context, warnings []m.Warning) {
	if err := ctx.Err(); err != nil {
		return
	}

	if len(warnings) == 0 {
		return
	}

	s.printf("\nWarnings (%d):\n", len(warnings))

	for _, w := range warnings {
		s.printf("  - %s\n", w)
	}
}

// DisplayReports prints where reports were written.
func (s *SimpleUI) DisplayReports(ctx context.Context, paths []m.Path) {
	if err := ctx.Err(); err != nil {
		return
	}

	for _, p := range paths {
		s.printf("Report written to %s\n", p)
	}
}

// DisplayCleaned prints the workspaces removed by clean.
func (s *SimpleUI) DisplayCleaned(ctx context.Context, base m.Path, names []string) {
	if err := ctx.Err(); err != nil {
		return
	}

	if len(names) == 0 {
		s.printf("No workspaces under %s\n", base)
		return
	}

	s.printf("Removed %d workspace(s) from %s:\n", len(names), base)

	for _, name := range names {
		s.printf("  - %s\n", name)
	}
}

func renderEntryTable(entries []m.FileEntry) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Fingerprint"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	for _, entry := range entries {
		table.Append([]string{string(entry.Path), entry.Fingerprint})
	}

	table.SetFooter([]string{fmt.Sprintf("Total Files %d", len(entries)), ""})
	table.Render()

	return tableBuffer.String()
}

func renderCountTable(primary, full *m.CodeCount) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Scope", "Files", "Blank", "Comment", "Code"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})

	for _, row := range []struct {
		label string
		count *m.CodeCount
	}{{"Primary", primary}, {"With dependencies", full}} {
		if row.count == nil {
			continue
		}

		table.Append([]string{
			row.label,
			strconv.Itoa(row.count.Files),
			strconv.Itoa(row.count.Blank),
			strconv.Itoa(row.count.Comment),
			strconv.Itoa(row.count.Code),
		})
	}

	table.Render()

	return tableBuffer.String()
}

func renderChangeTable(changes m.Classification) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Path", "Added", "Deleted"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})

	for _, c := range changes.Kept {
		table.Append([]string{string(c.Path), "+" + strconv.Itoa(c.Additions), "-" + strconv.Itoa(c.Deletions)})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", changes.Totals.Files),
		"+" + strconv.Itoa(changes.Totals.Additions),
		"-" + strconv.Itoa(changes.Totals.Deletions),
	})
	table.Render()

	return tableBuffer.String()
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return noneLabel
	}

	return strings.Join(values, ", ")
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.writer(), format, args...)
}

func (s *SimpleUI) writer() io.Writer {
	if s.out != nil {
		return s.out
	}

	return s.cmd.OutOrStdout()
}
