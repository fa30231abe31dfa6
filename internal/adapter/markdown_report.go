package adapter

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

// RenderMarkdownReport renders the human-readable report of an analysis.
func RenderMarkdownReport(analysis m.Analysis) string {
	var b strings.Builder

	primary := entryPaths(analysis.Primary)
	dependencies := entryPaths(analysis.Dependencies)

	b.WriteString("# Code Analysis Report\n\n")
	fmt.Fprintf(&b, "Target: %s\n\n", analysis.Target)
	fmt.Fprintf(&b, "Extensions: %s\n\n", strings.Join(analysis.Extensions, ", "))

	fmt.Fprintf(&b, "## Primary Analysis (%s)\n\n", countSummary(len(primary), analysis.PrimaryCount))
	b.WriteString("### Files Analyzed:\n\n")
	writeFileList(&b, primary)
	b.WriteString("\n### File Tree:\n\n```\n")
	b.WriteString(RenderFileTree(primary))
	b.WriteString("```\n")
	writeCodeCount(&b, analysis.PrimaryCount)

	if len(dependencies) > 0 {
		all := slices.Concat(primary, dependencies)
		slices.Sort(all)

		fmt.Fprintf(&b, "\n## Full Analysis (%s)\n\n", countSummary(len(all), analysis.FullCount))
		b.WriteString("### Additional Dependencies:\n\n")
		writeFileList(&b, dependencies)
		b.WriteString("\n### File Tree:\n\n```\n")
		b.WriteString(RenderFileTree(all))
		b.WriteString("```\n")
		writeCodeCount(&b, analysis.FullCount)
	}

	if analysis.Changes != nil {
		writeChanges(&b, *analysis.Changes)
	}

	if analysis.Stripped != nil {
		fmt.Fprintf(&b, "\n## Test Removal\n\n%d test regions removed, %d files modified, %d test files deleted.\n",
			analysis.Stripped.Regions, len(analysis.Stripped.Modified), len(analysis.Stripped.Removed))
	}

	if len(analysis.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")

		for _, w := range analysis.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	return b.String()
}

// RenderFileTree draws paths as an indented tree using box-drawing characters.
func RenderFileTree(paths []m.Path) string {
	root := &treeNode{}

	for _, p := range paths {
		node := root
		for _, part := range strings.Split(string(p), "/") {
			node = node.child(part)
		}
	}

	var b strings.Builder

	root.write(&b, "")

	return b.String()
}

type treeNode struct {
	name     string
	children []*treeNode
}

func (n *treeNode) child(name string) *treeNode {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}

	c := &treeNode{name: name}
	n.children = append(n.children, c)

	return c
}

func (n *treeNode) write(b *strings.Builder, prefix string) {
	slices.SortFunc(n.children, func(x, y *treeNode) int {
		return strings.Compare(x.name, y.name)
	})

	for i, c := range n.children {
		last := i == len(n.children)-1

		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}

		b.WriteString(prefix + branch + c.name + "\n")
		c.write(b, prefix+indent)
	}
}

func entryPaths(entries []m.FileEntry) []m.Path {
	paths := make([]m.Path, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}

	slices.Sort(paths)

	return paths
}

func countSummary(files int, count *m.CodeCount) string {
	if count == nil {
		return fmt.Sprintf("%d files", files)
	}

	return fmt.Sprintf("%d files, %d nSLOC", files, count.Code)
}

func writeFileList(b *strings.Builder, paths []m.Path) {
	if len(paths) == 0 {
		b.WriteString("_none_\n")
		return
	}

	for _, p := range paths {
		fmt.Fprintf(b, "- %s\n", p)
	}
}

func writeCodeCount(b *strings.Builder, count *m.CodeCount) {
	if count == nil {
		return
	}

	languages := make([]string, 0, len(count.Language))
	for language := range count.Language {
		languages = append(languages, language)
	}

	slices.Sort(languages)

	rows := make([][]string, 0, len(languages))
	for _, language := range languages {
		rows = append(rows, []string{language, strconv.Itoa(count.Language[language])})
	}

	rows = append(rows, []string{"Total", strconv.Itoa(count.Code)})

	b.WriteString("\n### Line Counts\n\n")
	b.WriteString(markdownTable([]string{"Language", "Code"}, rows))
	fmt.Fprintf(b, "\nBlank: %d, comment: %d, code: %d\n", count.Blank, count.Comment, count.Code)
}

func writeChanges(b *strings.Builder, changes m.Classification) {
	fmt.Fprintf(b, "\n## Changes (%d files, +%d -%d)\n\n", changes.Totals.Files, changes.Totals.Additions, changes.Totals.Deletions)

	if len(changes.Kept) == 0 {
		b.WriteString("_no changed files in scope_\n")
	} else {
		rows := make([][]string, 0, len(changes.Kept))
		for _, c := range changes.Kept {
			rows = append(rows, []string{string(c.Path), "+" + strconv.Itoa(c.Additions), "-" + strconv.Itoa(c.Deletions)})
		}

		b.WriteString(markdownTable([]string{"Path", "Added", "Deleted"}, rows))
	}

	if len(changes.Dropped) > 0 {
		fmt.Fprintf(b, "\n%d changed files out of scope:\n\n", len(changes.Dropped))

		for _, c := range changes.Dropped {
			fmt.Fprintf(b, "- %s\n", c.Path)
		}
	}
}

func markdownTable(header []string, rows [][]string) string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.AppendBulk(rows)
	table.Render()

	return buf.String()
}
