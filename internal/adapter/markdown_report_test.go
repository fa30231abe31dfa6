package adapter

import (
	"strings"
	"testing"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

func TestRenderFileTree(t *testing.T) {
	got := RenderFileTree([]m.Path{"src/Vault.sol", "README.md", "src/libs/Math.sol", "src/libs/Fees.sol"})

	want := "├── README.md\n" +
		"└── src\n" +
		"    ├── Vault.sol\n" +
		"    └── libs\n" +
		"        ├── Fees.sol\n" +
		"        └── Math.sol\n"

	if got != want {
		t.Fatalf("RenderFileTree() =\n%s\nwant\n%s", got, want)
	}

	if RenderFileTree(nil) != "" {
		t.Fatalf("RenderFileTree(nil) should be empty")
	}
}

func TestRenderMarkdownReport(t *testing.T) {
	report := RenderMarkdownReport(sampleAnalysis())

	for _, want := range []string{
		"# Code Analysis Report",
		"Target: acme/vault pull request #7",
		"## Primary Analysis (1 files, 40 nSLOC)",
		"- src/Vault.sol",
		"## Full Analysis (2 files, 65 nSLOC)",
		"### Additional Dependencies:",
		"- src/libs/Math.sol",
		"└── src",
		"Solidity",
		"## Changes (1 files, +10 -2)",
		"1 changed files out of scope:",
		"- test/Vault.t.sol",
		"## Warnings",
		"unresolvable-reference: src/Vault.sol",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("RenderMarkdownReport() missing %q in:\n%s", want, report)
		}
	}
}

func TestRenderMarkdownReport_NoDependencies(t *testing.T) {
	analysis := m.Analysis{
		Target:  m.Target{Kind: m.TargetLocal, Dir: "/work/vault"},
		Primary: []m.FileEntry{{FileRecord: m.FileRecord{Path: "Vault.sol"}}},
	}

	report := RenderMarkdownReport(analysis)

	if strings.Contains(report, "## Full Analysis") {
		t.Fatalf("RenderMarkdownReport() rendered a full analysis without dependencies:\n%s", report)
	}

	if !strings.Contains(report, "## Primary Analysis (1 files)") || !strings.Contains(report, "Target: directory /work/vault") {
		t.Fatalf("RenderMarkdownReport() unexpected output:\n%s", report)
	}
}
