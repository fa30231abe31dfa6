package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/viant/afs"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

// WorkspaceDirName is the directory under the system temp dir holding workspaces.
const WorkspaceDirName = "auditscope"

var unsafeWorkspaceChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// WorkspaceAdapter manages scratch copies of projects under a single base
// directory.
type WorkspaceAdapter interface {
	// Base returns the directory holding every workspace.
	Base() m.Path

	// Prepare returns an empty workspace directory for name, deleting any
	// previous one.
	Prepare(ctx context.Context, name string) (m.Path, error)

	// CopyTree copies the files under src into dest, skipping SkippedDirs.
	CopyTree(ctx context.Context, src, dest m.Path) error

	// Remove deletes a workspace directory.
	Remove(ctx context.Context, dir m.Path) error

	// Clean deletes every workspace and returns the removed names.
	Clean(ctx context.Context) ([]string, error)
}

// AFSWorkspaceAdapter implements WorkspaceAdapter with viant/afs.
type AFSWorkspaceAdapter struct {
	fs   afs.Service
	base string
}

// NewAFSWorkspaceAdapter creates workspaces under base. An empty base selects
// $TMPDIR/auditscope.
func NewAFSWorkspaceAdapter(base m.Path) *AFSWorkspaceAdapter {
	if base == "" {
		base = m.Path(filepath.Join(os.TempDir(), WorkspaceDirName))
	}

	return &AFSWorkspaceAdapter{fs: afs.New(), base: string(base)}
}

// WorkspaceName turns an arbitrary label into a safe directory name.
func WorkspaceName(label string) string {
	name := unsafeWorkspaceChars.ReplaceAllString(label, "_")
	if name == "" || name == "." || name == ".." {
		return "workspace"
	}

	return name
}

// Base returns the directory holding every workspace.
func (a *AFSWorkspaceAdapter) Base() m.Path {
	return m.Path(a.base)
}

// Prepare returns an empty workspace directory for name.
func (a *AFSWorkspaceAdapter) Prepare(ctx context.Context, name string) (m.Path, error) {
	dir := filepath.Join(a.base, WorkspaceName(name))

	if err := a.Remove(ctx, m.Path(dir)); err != nil {
		return "", err
	}

	if err := a.fs.Create(ctx, dir, os.ModeDir|0o755, true); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", dir, err)
	}

	return m.Path(dir), nil
}

// CopyTree copies regular files under src into dest.
func (a *AFSWorkspaceAdapter) CopyTree(ctx context.Context, src, dest m.Path) error {
	srcRoot := string(src)

	return filepath.WalkDir(srcRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(srcRoot, p)
		if err != nil {
			return err
		}

		target := filepath.Join(string(dest), rel)

		if d.IsDir() {
			if p != srcRoot && SkippedDirs[d.Name()] {
				return filepath.SkipDir
			}

			return a.fs.Create(ctx, target, os.ModeDir|0o755, true)
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		data, err := a.fs.DownloadWithURL(ctx, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}

		if err := a.fs.Upload(ctx, target, info.Mode().Perm(), bytes.NewReader(data)); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}

		return nil
	})
}

// Remove deletes a workspace directory. Missing directories are not an error.
func (a *AFSWorkspaceAdapter) Remove(ctx context.Context, dir m.Path) error {
	exists, err := a.fs.Exists(ctx, string(dir))
	if err != nil {
		return fmt.Errorf("check workspace %s: %w", dir, err)
	}

	if !exists {
		return nil
	}

	if err := a.fs.Delete(ctx, string(dir)); err != nil {
		return fmt.Errorf("delete workspace %s: %w", dir, err)
	}

	return nil
}

// Clean deletes the base directory and reports the workspaces it held.
func (a *AFSWorkspaceAdapter) Clean(ctx context.Context) ([]string, error) {
	exists, err := a.fs.Exists(ctx, a.base)
	if err != nil {
		return nil, fmt.Errorf("check workspaces %s: %w", a.base, err)
	}

	if !exists {
		return nil, nil
	}

	objects, err := a.fs.List(ctx, a.base)
	if err != nil {
		return nil, fmt.Errorf("list workspaces %s: %w", a.base, err)
	}

	var names []string

	for _, object := range objects {
		// The listing includes the base directory itself.
		if !object.IsDir() || object.Name() == path.Base(filepath.ToSlash(a.base)) {
			continue
		}

		names = append(names, object.Name())
	}

	if err := a.fs.Delete(ctx, a.base); err != nil {
		return nil, fmt.Errorf("delete workspaces %s: %w", a.base, err)
	}

	return names, nil
}
