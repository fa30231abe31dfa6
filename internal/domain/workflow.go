package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"

	"auditscope.dev/pkg/auditscope/internal/adapter"
	"auditscope.dev/pkg/auditscope/internal/controller"
	m "auditscope.dev/pkg/auditscope/internal/model"
)

const currentAnalysisVersion = 1

// strippableExtensions are the languages the test stripper understands.
var strippableExtensions = map[string]bool{".rs": true, ".cairo": true}

// AnalyzeArgs contains the arguments of a full analysis.
type AnalyzeArgs struct {
	Target     m.Target
	Token      string
	Extensions []string
	Rules      m.FilterRules
	Output     m.Path
	Threads    int
	// KeepWorkspace leaves the cloned or copied tree on disk after the run.
	KeepWorkspace bool
	// RemoveTests strips Rust and Cairo test code before resolving. Local
	// directories are copied to a workspace first and never modified.
	RemoveTests bool
}

// StripArgs contains the arguments of a test removal run.
type StripArgs struct {
	Target  m.Target
	Token   string
	Threads int
	// DryRun reports the diffs without touching any file.
	DryRun        bool
	KeepWorkspace bool
}

// ChangesArgs contains the arguments for classifying a local comparison.
type ChangesArgs struct {
	Dir   m.Path
	Base  string
	Head  string
	Rules m.FilterRules
}

// ViewArgs contains the arguments for displaying a stored analysis.
type ViewArgs struct {
	Reports m.Path
}

// Workflow runs the auditscope commands end to end.
type Workflow interface {
	Analyze(ctx context.Context, args AnalyzeArgs) error
	Strip(ctx context.Context, args StripArgs) error
	Changes(ctx context.Context, args ChangesArgs) error
	View(ctx context.Context, args ViewArgs) error
	Clean(ctx context.Context) error
}

// WorkflowDeps lists the collaborators of a Workflow.
type WorkflowDeps struct {
	FS         adapter.SourceFSAdapter
	Reports    adapter.ReportStore
	Git        adapter.GitAdapter
	Workspaces adapter.WorkspaceAdapter
	Counter    adapter.CodeCounter
	Syntax     adapter.SyntaxChecker
	UI         controller.UI
}

type workflow struct {
	adapter.SourceFSAdapter
	adapter.ReportStore
	adapter.GitAdapter
	adapter.CodeCounter
	adapter.SyntaxChecker
	controller.UI
	Resolver

	workspaces adapter.WorkspaceAdapter
	stripper   Stripper
	now        func() time.Time
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(deps WorkflowDeps) Workflow {
	return &workflow{
		SourceFSAdapter: deps.FS,
		ReportStore:     deps.Reports,
		GitAdapter:      deps.Git,
		CodeCounter:     deps.Counter,
		SyntaxChecker:   deps.Syntax,
		UI:              deps.UI,
		Resolver:        NewResolver(deps.FS),
		workspaces:      deps.Workspaces,
		stripper:        NewStripper(),
		now:             time.Now,
	}
}

// checkout is a materialised target: the tree to analyse and, for remote
// targets, the change list of the comparison.
type checkout struct {
	root      m.Path
	workspace m.Path
	changes   []m.ChangeRecord
}

func (w *workflow) Analyze(ctx context.Context, args AnalyzeArgs) error {
	extensions := NormalizeExtensions(args.Extensions)
	if len(extensions) == 0 {
		return configError("extensions", "at least one extension is required", nil)
	}

	if err := w.Start(ctx, controller.WithMode(controller.ModeAnalyze)); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	sortedExtensions := slices.Sorted(maps.Keys(extensions))
	w.DisplayConfiguration(ctx, args.Target, sortedExtensions, args.Rules)

	stripExts := map[string]bool{}
	if args.RemoveTests {
		stripExts = intersect(extensions, strippableExtensions)
	}

	co, err := w.materialize(ctx, args.Target, args.Token, len(stripExts) > 0)
	if err != nil {
		slog.Error("Failed to prepare target", "target", args.Target.String(), "error", err)
		return err
	}
	defer w.release(ctx, co, args.KeepWorkspace)

	filter := NewFilter(args.Rules)
	analysis := m.Analysis{
		Version:    currentAnalysisVersion,
		CreatedAt:  w.now().UTC(),
		Target:     args.Target,
		Extensions: sortedExtensions,
		Rules:      args.Rules,
		Warnings:   filter.Warnings(),
	}

	removed := map[m.Path]bool{}

	if len(stripExts) > 0 {
		w.DisplayProgress(ctx, "Removing test code...")

		outcome, err := w.stripTree(ctx, co.root, stripExts, args.Threads, false)
		if err != nil {
			return fmt.Errorf("remove tests: %w", err)
		}

		analysis.Stripped = &outcome.summary
		analysis.Warnings = append(analysis.Warnings, outcome.warnings...)

		for _, p := range outcome.summary.Removed {
			removed[p] = true
		}
	}

	candidates, err := w.candidates(co, args.Target, extensions, removed)
	if err != nil {
		return err
	}

	if args.Target.HasChangeList() {
		classification := Classify(co.changes, filter)
		analysis.Changes = &classification
	}

	res, err := w.Resolve(ResolveArgs{
		Root:       co.root,
		Candidates: candidates,
		Extensions: sortedExtensions,
		Filter:     filter,
	})
	if err != nil {
		slog.Error("Failed to resolve dependencies", "error", err)
		return fmt.Errorf("resolve: %w", err)
	}

	slog.Info("Resolved files", "primary", len(res.Primary), "dependencies", len(res.Dependencies))

	analysis.Primary = w.entries(co.root, res.Primary)
	analysis.Dependencies = w.entries(co.root, res.Dependencies)
	analysis.Warnings = append(analysis.Warnings, res.Warnings...)

	if len(res.Primary) > 0 {
		w.DisplayProgress(ctx, "Counting lines...")
		w.countLines(ctx, co.root, res, &analysis)
	}

	written, err := w.SaveAnalysis(args.Output, analysis)
	if err != nil {
		slog.Error("Failed to save analysis", "output", args.Output, "error", err)
		return fmt.Errorf("save analysis: %w", err)
	}

	if err := w.DisplayAnalysis(ctx, analysis); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	w.DisplayReports(ctx, written)
	w.Wait(ctx)

	return nil
}

func (w *workflow) Strip(ctx context.Context, args StripArgs) error {
	if err := w.Start(ctx, controller.WithMode(controller.ModeStrip)); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	w.DisplayConfiguration(ctx, args.Target, slices.Sorted(maps.Keys(strippableExtensions)), m.FilterRules{})

	co, err := w.materialize(ctx, args.Target, args.Token, false)
	if err != nil {
		slog.Error("Failed to prepare target", "target", args.Target.String(), "error", err)
		return err
	}
	// A stripped clone is the result of the command, so it is kept unless
	// nothing was written.
	defer w.release(ctx, co, args.KeepWorkspace || !args.DryRun)

	outcome, err := w.stripTree(ctx, co.root, strippableExtensions, args.Threads, args.DryRun)
	if err != nil {
		return fmt.Errorf("remove tests: %w", err)
	}

	for _, p := range slices.Sorted(maps.Keys(outcome.diffs)) {
		w.DisplayDiff(ctx, p, outcome.diffs[p])
	}

	if err := w.DisplayStripSummary(ctx, outcome.summary); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	w.DisplayWarnings(ctx, outcome.warnings)
	w.Wait(ctx)

	return nil
}

func (w *workflow) Changes(ctx context.Context, args ChangesArgs) error {
	if strings.TrimSpace(args.Base) == "" || strings.TrimSpace(args.Head) == "" {
		return configError("base/head", "both revisions are required", nil)
	}

	if err := w.Start(ctx, controller.WithMode(controller.ModeChanges)); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}
	defer w.Close(ctx)

	base, err := w.ResolveRef(ctx, args.Dir, args.Base)
	if err != nil {
		return fmt.Errorf("resolve base: %w", err)
	}

	head, err := w.ResolveRef(ctx, args.Dir, args.Head)
	if err != nil {
		return fmt.Errorf("resolve head: %w", err)
	}

	records, err := w.Numstat(ctx, args.Dir, base, head)
	if err != nil {
		slog.Error("Failed to list changes", "base", base, "head", head, "error", err)
		return fmt.Errorf("list changes: %w", err)
	}

	filter := NewFilter(args.Rules)

	if err := w.DisplayChanges(ctx, Classify(records, filter)); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	w.DisplayWarnings(ctx, filter.Warnings())
	w.Wait(ctx)

	return nil
}

func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	analysis, err := w.LoadAnalysis(args.Reports)
	if err != nil {
		slog.Error("Failed to load analysis", "reports", args.Reports, "error", err)
		return fmt.Errorf("load analysis: %w", err)
	}

	if err := w.Start(ctx, controller.WithMode(controller.ModeView)); err != nil {
		return err
	}
	defer w.Close(ctx)

	w.DisplayConfiguration(ctx, analysis.Target, analysis.Extensions, analysis.Rules)

	if err := w.DisplayAnalysis(ctx, analysis); err != nil {
		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)

	return nil
}

func (w *workflow) Clean(ctx context.Context) error {
	names, err := w.workspaces.Clean(ctx)
	if err != nil {
		slog.Error("Failed to clean workspaces", "base", w.workspaces.Base(), "error", err)
		return fmt.Errorf("clean: %w", err)
	}

	w.DisplayCleaned(ctx, w.workspaces.Base(), names)

	return nil
}

// materialize makes the target available on disk. Remote targets are
// cloned into a fresh workspace; local directories are used in place unless
// copy is set.
func (w *workflow) materialize(ctx context.Context, target m.Target, token string, copyLocal bool) (*checkout, error) {
	if !target.IsRemote() {
		info, err := w.FileInfo(target.Dir)
		if err != nil || !info.IsDir() {
			return nil, configError("dir", fmt.Sprintf("%s is not a directory", target.Dir), err)
		}

		if !copyLocal {
			return &checkout{root: target.Dir}, nil
		}

		abs, err := filepath.Abs(string(target.Dir))
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", target.Dir, err)
		}

		dir, err := w.workspaces.Prepare(ctx, "local_"+filepath.Base(abs))
		if err != nil {
			return nil, err
		}

		co := &checkout{root: dir, workspace: dir}

		if err := w.workspaces.CopyTree(ctx, target.Dir, dir); err != nil {
			w.release(ctx, co, false)
			return nil, fmt.Errorf("copy %s: %w", target.Dir, err)
		}

		return co, nil
	}

	dir, err := w.workspaces.Prepare(ctx, target.Owner+"_"+target.Repo)
	if err != nil {
		return nil, err
	}

	co := &checkout{root: dir, workspace: dir}

	if token == "" {
		slog.Debug("No GitHub token configured, cloning anonymously")
	}

	w.DisplayProgress(ctx, fmt.Sprintf("Cloning %s...", target.CloneURL()))

	if err := w.Clone(ctx, target, token, dir); err != nil {
		w.release(ctx, co, false)
		return nil, fmt.Errorf("clone: %w", err)
	}

	changes, err := w.checkoutTarget(ctx, dir, target, token)
	if err != nil {
		w.release(ctx, co, false)
		return nil, err
	}

	co.changes = changes

	return co, nil
}

// checkoutTarget checks out the revision the target names and returns its
// change list, if it has one.
func (w *workflow) checkoutTarget(ctx context.Context, dir m.Path, target m.Target, token string) ([]m.ChangeRecord, error) {
	switch target.Kind {
	case m.TargetCommit:
		if err := w.Checkout(ctx, dir, target.Commit); err != nil {
			return nil, fmt.Errorf("checkout commit %s: %w", target.Commit, err)
		}

		return w.Numstat(ctx, dir, target.Commit)

	case m.TargetPR:
		ref := fmt.Sprintf("auditscope-pr-%d", target.PRNumber)

		if err := w.Fetch(ctx, dir, fmt.Sprintf("pull/%d/head:%s", target.PRNumber, ref), token); err != nil {
			return nil, fmt.Errorf("fetch pull request %d: %w", target.PRNumber, err)
		}

		if err := w.Checkout(ctx, dir, ref); err != nil {
			return nil, fmt.Errorf("checkout pull request %d: %w", target.PRNumber, err)
		}

		return w.Numstat(ctx, dir, "origin/HEAD", ref)

	case m.TargetComparison:
		base, err := w.ResolveRef(ctx, dir, target.Base)
		if err != nil {
			return nil, fmt.Errorf("resolve base: %w", err)
		}

		head, err := w.ResolveRef(ctx, dir, target.Head)
		if err != nil {
			return nil, fmt.Errorf("resolve head: %w", err)
		}

		if err := w.Checkout(ctx, dir, head); err != nil {
			return nil, fmt.Errorf("checkout %s: %w", head, err)
		}

		return w.Numstat(ctx, dir, base, head)
	}

	if target.Branch != "" {
		if err := w.Checkout(ctx, dir, target.Branch); err != nil {
			return nil, fmt.Errorf("checkout branch %s: %w", target.Branch, err)
		}
	}

	return nil, nil
}

func (w *workflow) release(ctx context.Context, co *checkout, keep bool) {
	if co == nil || co.workspace == "" {
		return
	}

	if keep {
		w.DisplayProgress(ctx, fmt.Sprintf("Workspace kept at %s", co.workspace))
		return
	}

	if err := w.workspaces.Remove(context.WithoutCancel(ctx), co.workspace); err != nil {
		slog.Warn("Failed to remove workspace", "workspace", co.workspace, "error", err)
	}
}

// candidates returns the primary candidates: the change list for PR, commit
// and comparison targets, otherwise every file with a configured extension.
func (w *workflow) candidates(co *checkout, target m.Target, extensions map[string]bool, removed map[m.Path]bool) ([]m.Path, error) {
	if !target.HasChangeList() {
		return w.scan(co.root, extensions)
	}

	var candidates []m.Path

	for _, record := range co.changes {
		if !removed[record.Path] {
			candidates = append(candidates, record.Path)
		}
	}

	return candidates, nil
}

// scan lists the root-relative files whose extension is in extensions.
func (w *workflow) scan(root m.Path, extensions map[string]bool) ([]m.Path, error) {
	var files []m.Path

	err := w.Walk(root, true, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !extensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}

		rel, err := w.RelPath(root, m.Path(p))
		if err != nil {
			return err
		}

		files = append(files, m.NormalizePath(filepath.ToSlash(string(rel))))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	slices.Sort(files)

	return files, nil
}

func (w *workflow) entries(root m.Path, records []m.FileRecord) []m.FileEntry {
	entries := make([]m.FileEntry, 0, len(records))

	for _, record := range records {
		fingerprint, err := w.HashFile(w.JoinPath(string(root), string(record.Path)))
		if err != nil {
			slog.Warn("Failed to fingerprint file", "path", record.Path, "error", err)
		}

		entries = append(entries, m.FileEntry{FileRecord: record, Fingerprint: fingerprint})
	}

	return entries
}

// countLines fills the line counts of the primary files and of the primary
// files plus dependencies. A missing counter becomes a warning.
func (w *workflow) countLines(ctx context.Context, root m.Path, res m.Resolution, analysis *m.Analysis) {
	primary, err := w.Count(ctx, root, m.Paths(res.Primary))
	if err != nil {
		analysis.Warnings = append(analysis.Warnings, countWarning(err))
		return
	}

	analysis.PrimaryCount = &primary

	if len(res.Dependencies) == 0 {
		analysis.FullCount = &primary
		return
	}

	full, err := w.Count(ctx, root, m.Paths(res.All()))
	if err != nil {
		analysis.Warnings = append(analysis.Warnings, countWarning(err))
		return
	}

	analysis.FullCount = &full
}

func countWarning(err error) m.Warning {
	if errors.Is(err, adapter.ErrToolUnavailable) {
		slog.Warn("Line counter unavailable", "error", err)
	} else {
		slog.Error("Line counting failed", "error", err)
	}

	return m.Warning{Kind: m.WarnToolUnavailable, Message: "line counts skipped: " + err.Error()}
}

// stripOutcome aggregates a test removal pass over a tree.
type stripOutcome struct {
	summary  m.StripSummary
	warnings []m.Warning
	diffs    map[m.Path]string
}

type fileOutcome struct {
	removed  bool
	modified bool
	regions  int
	warnings []m.Warning
	diff     string
}

// stripTree strips every file with one of exts under root using a bounded
// worker pool. Per-file failures become warnings.
func (w *workflow) stripTree(ctx context.Context, root m.Path, exts map[string]bool, threads int, dryRun bool) (stripOutcome, error) {
	outcome := stripOutcome{diffs: map[m.Path]string{}}

	files, err := w.scan(root, exts)
	if err != nil {
		return outcome, err
	}

	var (
		mu    sync.Mutex
		group errgroup.Group
	)

	if threads > 0 {
		group.SetLimit(threads)
	}

	for _, file := range files {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			result := w.stripFile(ctx, root, file, dryRun)

			mu.Lock()
			defer mu.Unlock()

			outcome.summary.Regions += result.regions
			outcome.warnings = append(outcome.warnings, result.warnings...)

			if result.removed {
				outcome.summary.Removed = append(outcome.summary.Removed, file)
			}

			if result.modified {
				outcome.summary.Modified = append(outcome.summary.Modified, file)
			}

			if result.diff != "" {
				outcome.diffs[file] = result.diff
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return outcome, err
	}

	slices.Sort(outcome.summary.Removed)
	slices.Sort(outcome.summary.Modified)
	slices.SortStableFunc(outcome.warnings, func(a, b m.Warning) int {
		return strings.Compare(string(a.Path), string(b.Path))
	})

	slog.Info("Removed test code",
		"files", len(files), "removed", len(outcome.summary.Removed),
		"modified", len(outcome.summary.Modified), "regions", outcome.summary.Regions, "dry_run", dryRun)

	return outcome, nil
}

func (w *workflow) stripFile(ctx context.Context, root, file m.Path, dryRun bool) fileOutcome {
	abs := w.JoinPath(string(root), string(file))

	text, err := w.ReadFile(abs)
	if err != nil {
		slog.Warn("Failed to read source", "path", file, "error", err)
		return fileOutcome{warnings: []m.Warning{{Kind: m.WarnUnreadableFile, Path: file, Message: err.Error()}}}
	}

	result := w.stripper.Strip(string(file), text)
	out := fileOutcome{regions: len(result.Regions), warnings: result.Warnings}

	if !result.Changed() {
		return out
	}

	if !result.Remove {
		// The original stays when the stripped text no longer parses.
		if warning, ok := w.checkSyntax(ctx, file, text, result.Text); ok {
			return fileOutcome{warnings: append(out.warnings, warning)}
		}
	}

	out.removed = result.Remove
	out.modified = !result.Remove

	if dryRun {
		out.diff = unifiedDiff(file, text, result.Text, result.Remove)
		return out
	}

	if result.Remove {
		if err := w.Remove(abs); err != nil {
			slog.Warn("Failed to remove test file", "path", file, "error", err)
			return fileOutcome{warnings: append(out.warnings, m.Warning{Kind: m.WarnUnreadableFile, Path: file, Message: err.Error()})}
		}

		return out
	}

	perm := os.FileMode(0o644)
	if info, err := w.FileInfo(abs); err == nil {
		perm = info.Mode().Perm()
	}

	if err := w.WriteFile(abs, result.Text, perm); err != nil {
		slog.Warn("Failed to write stripped source", "path", file, "error", err)
		return fileOutcome{warnings: append(out.warnings, m.Warning{Kind: m.WarnUnreadableFile, Path: file, Message: err.Error()})}
	}

	return out
}

// checkSyntax warns when text parsed before stripping but not after. The
// file is then left unchanged.
func (w *workflow) checkSyntax(ctx context.Context, file m.Path, before, after []byte) (m.Warning, bool) {
	ext := strings.ToLower(path.Ext(string(file)))
	if w.SyntaxChecker == nil || !w.Supports(ext) {
		return m.Warning{}, false
	}

	brokenBefore, err := w.HasErrors(ctx, ext, before)
	if err != nil || brokenBefore {
		return m.Warning{}, false
	}

	brokenAfter, err := w.HasErrors(ctx, ext, after)
	if err != nil || !brokenAfter {
		return m.Warning{}, false
	}

	slog.Warn("Stripped source no longer parses", "path", file)

	return m.Warning{Kind: m.WarnSyntaxCheck, Path: file, Message: "source parsed before test removal but not after; file left unchanged"}, true
}

func unifiedDiff(file m.Path, before, after []byte, removed bool) string {
	toFile := "b/" + string(file)
	if removed {
		toFile = "/dev/null"
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + string(file),
		ToFile:   toFile,
		Context:  3,
	})
	if err != nil {
		slog.Warn("Failed to build diff", "path", file, "error", err)
		return ""
	}

	return diff
}

func intersect(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}

	for k := range a {
		if b[k] {
			out[k] = true
		}
	}

	return out
}
