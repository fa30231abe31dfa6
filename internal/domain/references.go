package domain

import (
	"path"
	"strings"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

// reference is one import-like statement found in a source file together
// with the root-relative files it may point to, most likely first.
type reference struct {
	raw        string
	candidates []m.Path
	// local references are written relative to the referring file; when
	// none of their candidates exist the reference is reported.
	local bool
}

// scope answers the project questions an extractor needs while it builds
// candidate lists. Paths are root-relative.
type scope interface {
	exists(p m.Path) bool
	remappings() []remapping
	projectDir(file m.Path, manifest string) (string, bool)
}

// referenceExtractor finds the references of one language family.
type referenceExtractor interface {
	references(sc scope, file m.Path, text []byte) []reference
}

// extractorFor returns the extractor for a file extension, or nil when the
// extension has no reference syntax we recognise.
func extractorFor(ext string) referenceExtractor {
	switch strings.ToLower(ext) {
	case ".sol":
		return solidityExtractor{}
	case ".rs":
		return rustExtractor{ext: ".rs", manifest: "Cargo.toml"}
	case ".cairo":
		return rustExtractor{ext: ".cairo", manifest: "Scarb.toml", packageQualified: true}
	}

	return nil
}

// joinRel joins root-relative elements and reports false when the result
// escapes the root.
func joinRel(elem ...string) (m.Path, bool) {
	joined := m.NormalizePath(path.Join(elem...))
	if joined == "" || joined == "." || joined == ".." || strings.HasPrefix(string(joined), "../") {
		return "", false
	}

	return joined, true
}

// dirOf returns the root-relative directory of p, "" for the root itself.
func dirOf(p m.Path) string {
	d := path.Dir(string(p))
	if d == "." || d == "/" {
		return ""
	}

	return d
}

// candidateList collects unique in-root candidates in insertion order.
type candidateList struct {
	seen  map[m.Path]bool
	paths []m.Path
}

func (c *candidateList) add(elem ...string) {
	p, ok := joinRel(elem...)
	if !ok || c.seen[p] {
		return
	}

	if c.seen == nil {
		c.seen = map[m.Path]bool{}
	}

	c.seen[p] = true
	c.paths = append(c.paths, p)
}
