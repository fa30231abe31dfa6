package adapter

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

func TestLocalSourceFSAdapter_Walk(t *testing.T) {
	t.Run("non recursive skips nested files", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		writeTestFile(t, filepath.Join(root, "Token.sol"), "contract Token {}\n")

		nestedDir := filepath.Join(root, "nested")
		mustMkdir(t, nestedDir)
		writeTestFile(t, filepath.Join(nestedDir, "Child.sol"), "contract Child {}\n")

		visited := walkPaths(t, adapter, root, false)

		for _, forbidden := range []string{nestedDir, filepath.Join(nestedDir, "Child.sol")} {
			if containsPath(visited, forbidden) {
				t.Fatalf("Walk() unexpectedly visited %s when recursive is false", forbidden)
			}
		}

		if !containsPath(visited, filepath.Join(root, "Token.sol")) {
			t.Fatalf("Walk() did not visit top-level file")
		}
	})

	t.Run("recursive visits nested files", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		nestedDir := filepath.Join(root, "nested")
		mustMkdir(t, nestedDir)
		child := filepath.Join(nestedDir, "Child.sol")
		writeTestFile(t, child, "contract Child {}\n")

		visited := walkPaths(t, adapter, root, true)

		if !containsPath(visited, child) {
			t.Fatalf("Walk() did not visit nested file when recursive")
		}
	})

	t.Run("skipped directories are never entered", func(t *testing.T) {
		adapter := NewLocalSourceFSAdapter()

		root := t.TempDir()
		for _, dir := range []string{".git", "node_modules", "target"} {
			mustMkdir(t, filepath.Join(root, dir))
			writeTestFile(t, filepath.Join(root, dir, "Hidden.sol"), "contract Hidden {}\n")
		}

		writeTestFile(t, filepath.Join(root, "Visible.sol"), "contract Visible {}\n")

		visited := walkPaths(t, adapter, root, true)

		for _, dir := range []string{".git", "node_modules", "target"} {
			if containsPath(visited, filepath.Join(root, dir, "Hidden.sol")) {
				t.Fatalf("Walk() entered skipped directory %s", dir)
			}
		}

		if !containsPath(visited, filepath.Join(root, "Visible.sol")) {
			t.Fatalf("Walk() did not visit top-level file")
		}
	})
}

func TestLocalSourceFSAdapter_ReadWriteRemove(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	root := t.TempDir()
	path := filepath.Join(root, "lib.rs")
	content := "pub fn add() {}\n"

	if err := adapter.WriteFile(m.Path(path), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := adapter.ReadFile(m.Path(path))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	if string(got) != content {
		t.Fatalf("ReadFile() = %q, want %q", string(got), content)
	}

	if err := adapter.Remove(m.Path(path)); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Remove() did not delete file, stat err=%v", err)
	}
}

func TestLocalSourceFSAdapter_HashFile(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	root := t.TempDir()
	first := filepath.Join(root, "A.sol")
	same := filepath.Join(root, "B.sol")
	other := filepath.Join(root, "C.sol")
	writeTestBytes(t, first, []byte("contract A {}\n"))
	writeTestBytes(t, same, []byte("contract A {}\n"))
	writeTestBytes(t, other, []byte("contract C {}\n"))

	hashA, err := adapter.HashFile(m.Path(first))
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}

	if len(hashA) != 16 {
		t.Fatalf("HashFile() = %q, want 16 hex digits", hashA)
	}

	hashB, err := adapter.HashFile(m.Path(same))
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}

	if hashA != hashB {
		t.Fatalf("HashFile() differs for identical content: %s != %s", hashA, hashB)
	}

	hashC, err := adapter.HashFile(m.Path(other))
	if err != nil {
		t.Fatalf("HashFile() error = %v", err)
	}

	if hashA == hashC {
		t.Fatalf("HashFile() collides for different content: %s", hashA)
	}

	if _, err := adapter.HashFile(m.Path(filepath.Join(root, "missing.sol"))); err == nil {
		t.Fatalf("HashFile() expected error for missing file")
	}
}

func TestLocalSourceFSAdapter_FileInfo(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	root := t.TempDir()
	path := filepath.Join(root, "main.rs")
	writeTestFile(t, path, "fn main() {}\n")

	info, err := adapter.FileInfo(m.Path(path))
	if err != nil {
		t.Fatalf("FileInfo() error = %v", err)
	}

	if info.IsDir() {
		t.Fatalf("FileInfo() reported file as directory")
	}

	dirInfo, err := adapter.FileInfo(m.Path(root))
	if err != nil {
		t.Fatalf("FileInfo() error = %v", err)
	}

	if !dirInfo.IsDir() {
		t.Fatalf("FileInfo() reported directory as file")
	}
}

func TestLocalSourceFSAdapter_FindProjectRoot(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	root := t.TempDir()
	crateDir := filepath.Join(root, "crate")
	mustMkdir(t, crateDir)
	writeTestFile(t, filepath.Join(crateDir, "Cargo.toml"), "[package]\nname = \"crate\"\n")

	subDir := filepath.Join(crateDir, "src", "util")
	if err := os.MkdirAll(subDir, 0o755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}

	got, err := adapter.FindProjectRoot(m.Path(filepath.Join(subDir, "mod.rs")), "Scarb.toml", "Cargo.toml")
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}

	if got != m.Path(crateDir) {
		t.Fatalf("FindProjectRoot() = %s, want %s", got, crateDir)
	}

	_, err = adapter.FindProjectRoot(m.Path(subDir), "no-such-marker.toml")
	if !errors.Is(err, ErrProjectRootNotFound) {
		t.Fatalf("FindProjectRoot() error = %v, want ErrProjectRootNotFound", err)
	}
}

func TestLocalSourceFSAdapter_PathHelpers(t *testing.T) {
	adapter := NewLocalSourceFSAdapter()

	base := m.Path("/tmp/project")
	target := m.Path("/tmp/project/src/utils/Math.sol")

	rel, err := adapter.RelPath(base, target)
	if err != nil {
		t.Fatalf("RelPath() error = %v", err)
	}

	if string(rel) != filepath.Join("src", "utils", "Math.sol") {
		t.Fatalf("RelPath() = %s, want %s", rel, filepath.Join("src", "utils", "Math.sol"))
	}

	joined := adapter.JoinPath("/tmp", "project", "src", "Math.sol")
	if string(joined) != filepath.Join("/tmp", "project", "src", "Math.sol") {
		t.Fatalf("JoinPath() = %s, want %s", joined, filepath.Join("/tmp", "project", "src", "Math.sol"))
	}
}

func walkPaths(t *testing.T, adapter *LocalSourceFSAdapter, root string, recursive bool) []string {
	t.Helper()

	var visited []string

	err := adapter.Walk(m.Path(root), recursive, func(path string, _ os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		visited = append(visited, path)

		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	return visited
}

func writeTestFile(t *testing.T, path, contents string) {
	t.Helper()
	writeTestBytes(t, path, []byte(contents))
}

func writeTestBytes(t *testing.T, path string, contents []byte) {
	t.Helper()
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("failed to create dir %s: %v", path, err)
	}
}

func containsPath(paths []string, target string) bool {
	for _, p := range paths {
		if p == target {
			return true
		}
	}

	return false
}
