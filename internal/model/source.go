// Package model defines the data structures shared by the audit scoping workflow.
package model

import (
	"path"
	"strings"
)

// Path represents a file system path. Inside a resolution it is always
// root-relative and uses forward slashes.
type Path string

// NormalizePath converts p to the canonical repo-relative form: forward
// slashes, no leading "./" or "/", cleaned of "." and ".." segments.
func NormalizePath(p string) Path {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")

	if p == "" {
		return ""
	}

	return Path(path.Clean(p))
}

// Role defines why a file takes part in the audit scope.
type Role string

const (
	// RolePrimary marks a file selected directly by a scan or a change list.
	RolePrimary Role = "primary"

	// RoleDependency marks a file reached only through references from primary files.
	RoleDependency Role = "dependency"
)

// FileRecord is one file of a resolution result.
type FileRecord struct {
	Path      Path   `yaml:"path"`
	Role      Role   `yaml:"role"`
	Extension string `yaml:"extension"`
}

// DependencyGraph maps a visited file to the files it references.
// A visited file without local references maps to an empty slice.
type DependencyGraph map[Path][]Path

// Resolution is the outcome of dependency resolution.
type Resolution struct {
	Primary      []FileRecord
	Dependencies []FileRecord
	Graph        DependencyGraph
	Warnings     []Warning
}

// Paths returns the paths of records in order.
func Paths(records []FileRecord) []Path {
	paths := make([]Path, 0, len(records))
	for _, record := range records {
		paths = append(paths, record.Path)
	}

	return paths
}

// All returns primary records followed by dependency records.
func (r Resolution) All() []FileRecord {
	all := make([]FileRecord, 0, len(r.Primary)+len(r.Dependencies))
	all = append(all, r.Primary...)
	all = append(all, r.Dependencies...)

	return all
}
