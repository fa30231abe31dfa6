package domain

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditscope.dev/pkg/auditscope/internal/adapter"
	"auditscope.dev/pkg/auditscope/internal/controller"
	m "auditscope.dev/pkg/auditscope/internal/model"
)

const libRS = `mod math;

pub fn add(a: u32, b: u32) -> u32 {
    math::sum(a, b)
}

#[cfg(test)]
mod tests {
    use super::*;

    #[test]
    fn adds() {
        assert_eq!(add(1, 2), 3);
    }
}
`

// fakeGit writes files on Clone and records every call.
type fakeGit struct {
	files   map[string]string
	records []m.ChangeRecord
	calls   []string
}

func (f *fakeGit) Clone(_ context.Context, target m.Target, _ string, dest m.Path) error {
	f.calls = append(f.calls, "clone "+target.Owner+"/"+target.Repo)

	for name, content := range f.files {
		full := filepath.Join(string(dest), filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			return err
		}
	}

	return nil
}

func (f *fakeGit) Fetch(_ context.Context, _ m.Path, refspec, _ string) error {
	f.calls = append(f.calls, "fetch "+refspec)
	return nil
}

func (f *fakeGit) Checkout(_ context.Context, _ m.Path, ref string) error {
	f.calls = append(f.calls, "checkout "+ref)
	return nil
}

func (f *fakeGit) ResolveRef(_ context.Context, _ m.Path, ref string) (string, error) {
	if ref == "missing" {
		return "", fmt.Errorf("unknown revision %s", ref)
	}

	return "origin/" + ref, nil
}

func (f *fakeGit) Numstat(_ context.Context, _ m.Path, revisions ...string) ([]m.ChangeRecord, error) {
	f.calls = append(f.calls, "numstat "+strings.Join(revisions, " "))
	return f.records, nil
}

type fakeCounter struct {
	calls [][]m.Path
	err   error
}

func (f *fakeCounter) Count(_ context.Context, _ m.Path, files []m.Path) (m.CodeCount, error) {
	f.calls = append(f.calls, files)

	if f.err != nil {
		return m.CodeCount{}, f.err
	}

	return m.CodeCount{Files: len(files), Code: 10 * len(files)}, nil
}

type workflowFixture struct {
	workflow Workflow
	out      *bytes.Buffer
	base     string
	git      *fakeGit
	counter  *fakeCounter
	reports  adapter.ReportStore
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)

	fs := adapter.NewLocalSourceFSAdapter()
	f := &workflowFixture{
		out:     out,
		base:    t.TempDir(),
		git:     &fakeGit{},
		counter: &fakeCounter{},
		reports: adapter.NewReportStore(fs),
	}

	f.workflow = NewWorkflow(WorkflowDeps{
		FS:         fs,
		Reports:    f.reports,
		Git:        f.git,
		Workspaces: adapter.NewAFSWorkspaceAdapter(m.Path(f.base)),
		Counter:    f.counter,
		Syntax:     adapter.NewTreeSitterChecker(),
		UI:         controller.NewSimpleUI(cmd),
	})

	return f
}

func (f *workflowFixture) workspaces(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(f.base)
	if os.IsNotExist(err) {
		return nil
	}

	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}

func TestWorkflow_Analyze_LocalDirectory(t *testing.T) {
	f := newWorkflowFixture(t)
	root := t.TempDir()
	output := filepath.Join(t.TempDir(), "out")

	writeTree(t, root, map[string]string{
		"src/Vault.sol":     `import "./libs/Math.sol"; contract Vault {}`,
		"src/libs/Math.sol": `library Math {}`,
		"test/Vault.t.sol":  `import "../src/Vault.sol"; contract VaultTest {}`,
		"README.md":         "# vault",
	})

	err := f.workflow.Analyze(context.Background(), AnalyzeArgs{
		Target:     m.Target{Kind: m.TargetLocal, Dir: m.Path(root)},
		Extensions: []string{"sol"},
		Rules:      m.FilterRules{Exclude: []string{"test/*"}},
		Output:     m.Path(output),
		Threads:    2,
	})
	require.NoError(t, err)

	analysis, err := f.reports.LoadAnalysis(m.Path(output))
	require.NoError(t, err)

	paths := make([]m.Path, 0, len(analysis.Primary))
	for _, entry := range analysis.Primary {
		paths = append(paths, entry.Path)
		assert.Len(t, entry.Fingerprint, 16)
	}

	assert.Equal(t, []m.Path{"src/Vault.sol", "src/libs/Math.sol"}, paths)
	assert.Empty(t, analysis.Dependencies)
	assert.Equal(t, []string{".sol"}, analysis.Extensions)
	assert.Nil(t, analysis.Changes)
	assert.Nil(t, analysis.Stripped)

	require.NotNil(t, analysis.PrimaryCount)
	assert.Equal(t, 2, analysis.PrimaryCount.Files)
	require.NotNil(t, analysis.FullCount)
	assert.Equal(t, 2, analysis.FullCount.Files)
	assert.Len(t, f.counter.calls, 1)

	assert.FileExists(t, filepath.Join(output, adapter.MarkdownReportFileName))
	assert.Contains(t, f.out.String(), "src/libs/Math.sol")
	assert.Contains(t, f.out.String(), "Report written to")
	assert.Empty(t, f.workspaces(t))
}

func TestWorkflow_Analyze_PullRequest(t *testing.T) {
	f := newWorkflowFixture(t)
	output := t.TempDir()

	f.git.files = map[string]string{
		"src/Vault.sol":     `import "./libs/Math.sol"; contract Vault {}`,
		"src/libs/Math.sol": `library Math {}`,
		"test/Vault.t.sol":  `import "../src/Vault.sol"; contract VaultTest {}`,
	}
	f.git.records = []m.ChangeRecord{
		{Path: "src/Vault.sol", Additions: 10, Deletions: 2},
		{Path: "test/Vault.t.sol", Additions: 5},
	}

	err := f.workflow.Analyze(context.Background(), AnalyzeArgs{
		Target:     m.Target{Kind: m.TargetPR, Owner: "acme", Repo: "vault", PRNumber: 7},
		Extensions: []string{".sol"},
		Rules:      m.FilterRules{Exclude: []string{"test/*"}},
		Output:     m.Path(output),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"clone acme/vault",
		"fetch pull/7/head:auditscope-pr-7",
		"checkout auditscope-pr-7",
		"numstat origin/HEAD auditscope-pr-7",
	}, f.git.calls)

	analysis, err := f.reports.LoadAnalysis(m.Path(output))
	require.NoError(t, err)

	require.Len(t, analysis.Primary, 1)
	assert.Equal(t, m.Path("src/Vault.sol"), analysis.Primary[0].Path)
	require.Len(t, analysis.Dependencies, 1)
	assert.Equal(t, m.Path("src/libs/Math.sol"), analysis.Dependencies[0].Path)

	require.NotNil(t, analysis.Changes)
	assert.Len(t, analysis.Changes.Kept, 1)
	assert.Len(t, analysis.Changes.Dropped, 1)
	assert.Equal(t, m.Totals{Files: 1, Additions: 10, Deletions: 2}, analysis.Changes.Totals)

	require.Len(t, f.counter.calls, 2)
	assert.Equal(t, []m.Path{"src/Vault.sol"}, f.counter.calls[0])
	assert.Equal(t, []m.Path{"src/Vault.sol", "src/libs/Math.sol"}, f.counter.calls[1])

	assert.Empty(t, f.workspaces(t))
}

func TestWorkflow_Analyze_KeepWorkspace(t *testing.T) {
	f := newWorkflowFixture(t)
	f.git.files = map[string]string{"src/Vault.sol": `contract Vault {}`}

	err := f.workflow.Analyze(context.Background(), AnalyzeArgs{
		Target:        m.Target{Kind: m.TargetRepo, Owner: "acme", Repo: "vault", Branch: "dev"},
		Extensions:    []string{".sol"},
		Output:        m.Path(t.TempDir()),
		KeepWorkspace: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"clone acme/vault", "checkout dev"}, f.git.calls)
	assert.Equal(t, []string{"acme_vault"}, f.workspaces(t))
	assert.Contains(t, f.out.String(), "Workspace kept at")
}

func TestWorkflow_Analyze_RemoveTestsLeavesLocalTreeUntouched(t *testing.T) {
	f := newWorkflowFixture(t)
	root := t.TempDir()
	output := t.TempDir()

	writeTree(t, root, map[string]string{
		"src/lib.rs":       libRS,
		"src/math.rs":      "pub fn sum(a: u32, b: u32) -> u32 { a + b }\n",
		"src/math_test.rs": "#[test]\nfn sums() {}\n",
	})

	err := f.workflow.Analyze(context.Background(), AnalyzeArgs{
		Target:      m.Target{Kind: m.TargetLocal, Dir: m.Path(root)},
		Extensions:  []string{".rs"},
		Output:      m.Path(output),
		Threads:     2,
		RemoveTests: true,
	})
	require.NoError(t, err)

	analysis, err := f.reports.LoadAnalysis(m.Path(output))
	require.NoError(t, err)

	require.NotNil(t, analysis.Stripped)
	assert.Equal(t, []m.Path{"src/math_test.rs"}, analysis.Stripped.Removed)
	assert.Equal(t, []m.Path{"src/lib.rs"}, analysis.Stripped.Modified)
	assert.GreaterOrEqual(t, analysis.Stripped.Regions, 2)

	paths := make([]m.Path, 0, len(analysis.Primary))
	for _, entry := range analysis.Primary {
		paths = append(paths, entry.Path)
	}

	assert.Equal(t, []m.Path{"src/lib.rs", "src/math.rs"}, paths)

	original, err := os.ReadFile(filepath.Join(root, "src", "lib.rs"))
	require.NoError(t, err)
	assert.Equal(t, libRS, string(original))
	assert.FileExists(t, filepath.Join(root, "src", "math_test.rs"))
	assert.Empty(t, f.workspaces(t))
}

func TestWorkflow_Analyze_CounterUnavailable(t *testing.T) {
	f := newWorkflowFixture(t)
	f.counter.err = fmt.Errorf("%w: cloc", adapter.ErrToolUnavailable)

	root := t.TempDir()
	output := t.TempDir()
	writeTree(t, root, map[string]string{"Vault.sol": `contract Vault {}`})

	err := f.workflow.Analyze(context.Background(), AnalyzeArgs{
		Target:     m.Target{Kind: m.TargetLocal, Dir: m.Path(root)},
		Extensions: []string{".sol"},
		Output:     m.Path(output),
	})
	require.NoError(t, err)

	analysis, err := f.reports.LoadAnalysis(m.Path(output))
	require.NoError(t, err)

	assert.Nil(t, analysis.PrimaryCount)
	assert.Nil(t, analysis.FullCount)
	assert.Equal(t, []m.WarningKind{m.WarnToolUnavailable}, warningKinds(analysis.Warnings))
}

func TestWorkflow_Analyze_ConfigurationErrors(t *testing.T) {
	f := newWorkflowFixture(t)

	err := f.workflow.Analyze(context.Background(), AnalyzeArgs{
		Target:     m.Target{Kind: m.TargetLocal, Dir: m.Path(t.TempDir())},
		Extensions: []string{" ", "."},
	})
	require.ErrorIs(t, err, ErrConfiguration)

	err = f.workflow.Analyze(context.Background(), AnalyzeArgs{
		Target:     m.Target{Kind: m.TargetLocal, Dir: m.Path(filepath.Join(t.TempDir(), "missing"))},
		Extensions: []string{".sol"},
	})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestWorkflow_Strip_InPlace(t *testing.T) {
	f := newWorkflowFixture(t)
	root := t.TempDir()

	writeTree(t, root, map[string]string{
		"src/lib.rs":       libRS,
		"src/math_test.rs": "#[test]\nfn sums() {}\n",
		"src/Vault.sol":    `contract Vault {}`,
	})

	err := f.workflow.Strip(context.Background(), StripArgs{
		Target:  m.Target{Kind: m.TargetLocal, Dir: m.Path(root)},
		Threads: 4,
	})
	require.NoError(t, err)

	stripped, err := os.ReadFile(filepath.Join(root, "src", "lib.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(stripped), "pub fn add")
	assert.NotContains(t, string(stripped), "mod tests")
	assert.NotContains(t, string(stripped), "#[cfg(test)]")

	assert.NoFileExists(t, filepath.Join(root, "src", "math_test.rs"))
	assert.FileExists(t, filepath.Join(root, "src", "Vault.sol"))

	assert.Contains(t, f.out.String(), "deleted   src/math_test.rs")
	assert.Contains(t, f.out.String(), "modified  src/lib.rs")
}

func TestWorkflow_Strip_DryRun(t *testing.T) {
	f := newWorkflowFixture(t)
	root := t.TempDir()

	writeTree(t, root, map[string]string{
		"src/lib.rs":       libRS,
		"src/math_test.rs": "#[test]\nfn sums() {}\n",
	})

	err := f.workflow.Strip(context.Background(), StripArgs{
		Target: m.Target{Kind: m.TargetLocal, Dir: m.Path(root)},
		DryRun: true,
	})
	require.NoError(t, err)

	original, err := os.ReadFile(filepath.Join(root, "src", "lib.rs"))
	require.NoError(t, err)
	assert.Equal(t, libRS, string(original))
	assert.FileExists(t, filepath.Join(root, "src", "math_test.rs"))

	output := f.out.String()
	assert.Contains(t, output, "--- a/src/lib.rs")
	assert.Contains(t, output, "+++ b/src/lib.rs")
	assert.Contains(t, output, "-#[cfg(test)]")
	assert.Contains(t, output, "+++ /dev/null")
	assert.Less(t, strings.Index(output, "a/src/lib.rs"), strings.Index(output, "a/src/math_test.rs"))
}

// truncatingStripper drops the last line of every file, which leaves an
// unbalanced Rust body behind.
type truncatingStripper struct{}

func (truncatingStripper) Strip(_ string, text []byte) m.StripResult {
	cut := bytes.LastIndexByte(bytes.TrimRight(text, "\n"), '\n')

	return m.StripResult{
		Text:    text[:cut+1],
		Regions: []m.TestRegion{{Start: cut + 1, End: len(text), Kind: m.AttributeMarkedBlock}},
	}
}

func TestWorkflow_Strip_KeepsFileThatWouldNotParse(t *testing.T) {
	f := newWorkflowFixture(t)
	f.workflow.(*workflow).stripper = truncatingStripper{}

	root := t.TempDir()
	source := "pub fn add(a: i32, b: i32) -> i32 {\n    a + b\n}\n"
	writeTree(t, root, map[string]string{"src/lib.rs": source})

	for _, dryRun := range []bool{false, true} {
		f.out.Reset()

		err := f.workflow.Strip(context.Background(), StripArgs{
			Target: m.Target{Kind: m.TargetLocal, Dir: m.Path(root)},
			DryRun: dryRun,
		})
		require.NoError(t, err)

		kept, err := os.ReadFile(filepath.Join(root, "src", "lib.rs"))
		require.NoError(t, err)
		assert.Equal(t, source, string(kept))

		output := f.out.String()
		assert.Contains(t, output, "0 files modified")
		assert.Contains(t, output, "syntax-check")
		assert.NotContains(t, output, "modified  src/lib.rs")
		assert.NotContains(t, output, "+++ b/src/lib.rs")
	}
}

func TestWorkflow_Strip_RemoteKeepsWorkspace(t *testing.T) {
	f := newWorkflowFixture(t)
	f.git.files = map[string]string{"src/lib.rs": libRS}

	err := f.workflow.Strip(context.Background(), StripArgs{
		Target: m.Target{Kind: m.TargetCommit, Owner: "acme", Repo: "vault", Commit: "4f2a9c1"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"acme_vault"}, f.workspaces(t))

	stripped, err := os.ReadFile(filepath.Join(f.base, "acme_vault", "src", "lib.rs"))
	require.NoError(t, err)
	assert.NotContains(t, string(stripped), "mod tests")
}

func TestWorkflow_Changes(t *testing.T) {
	f := newWorkflowFixture(t)
	f.git.records = []m.ChangeRecord{
		{Path: "src/Vault.sol", Additions: 3, Deletions: 1},
		{Path: "test/Vault.t.sol", Additions: 8},
	}

	err := f.workflow.Changes(context.Background(), ChangesArgs{
		Dir:   m.Path(t.TempDir()),
		Base:  "main",
		Head:  "feature",
		Rules: m.FilterRules{Exclude: []string{"test/*"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"numstat origin/main origin/feature"}, f.git.calls)
	assert.Contains(t, f.out.String(), "src/Vault.sol")
	assert.Contains(t, f.out.String(), "Out of scope (1)")
	assert.Contains(t, f.out.String(), "test/Vault.t.sol")
}

func TestWorkflow_Changes_Errors(t *testing.T) {
	f := newWorkflowFixture(t)

	err := f.workflow.Changes(context.Background(), ChangesArgs{Dir: ".", Base: "main"})
	require.ErrorIs(t, err, ErrConfiguration)

	err = f.workflow.Changes(context.Background(), ChangesArgs{Dir: ".", Base: "missing", Head: "main"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolve base")
	assert.Empty(t, f.git.calls)
}

func TestWorkflow_View(t *testing.T) {
	f := newWorkflowFixture(t)
	dir := t.TempDir()

	_, err := f.reports.SaveAnalysis(m.Path(dir), m.Analysis{
		Version:    1,
		Target:     m.Target{Kind: m.TargetRepo, Owner: "acme", Repo: "vault"},
		Extensions: []string{".sol"},
		Primary:    []m.FileEntry{{FileRecord: m.FileRecord{Path: "src/Vault.sol", Role: m.RolePrimary}}},
	})
	require.NoError(t, err)

	require.NoError(t, f.workflow.View(context.Background(), ViewArgs{Reports: m.Path(dir)}))

	assert.Contains(t, f.out.String(), "acme/vault")
	assert.Contains(t, f.out.String(), "src/Vault.sol")

	err = f.workflow.View(context.Background(), ViewArgs{Reports: m.Path(t.TempDir())})
	require.ErrorIs(t, err, adapter.ErrNoAnalysis)
}

func TestWorkflow_Clean(t *testing.T) {
	f := newWorkflowFixture(t)

	require.NoError(t, os.MkdirAll(filepath.Join(f.base, "acme_vault", "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(f.base, "local_project"), 0o755))

	require.NoError(t, f.workflow.Clean(context.Background()))

	assert.Contains(t, f.out.String(), "Removed 2 workspace(s)")
	assert.Contains(t, f.out.String(), "acme_vault")
	assert.NoDirExists(t, filepath.Join(f.base, "acme_vault"))
}
