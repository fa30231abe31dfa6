package domain

import (
	"path"
	"regexp"
	"slices"
	"strings"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

var (
	rustModDecl     = regexp.MustCompile(`\bmod\s+([A-Za-z_]\w*)\s*;`)
	rustUseDecl     = regexp.MustCompile(`\buse\s+([^;]+);`)
	rustExternCrate = regexp.MustCompile(`\bextern\s+crate\s+([A-Za-z_]\w*)`)
	rustUseAlias    = regexp.MustCompile(`\s+as\s+[A-Za-z_]\w*`)
	rustWhitespace  = regexp.MustCompile(`\s+`)
)

// Crates whose modules never live in the project tree.
var rustBuiltinCrates = map[string]bool{"std": true, "core": true, "alloc": true, "starknet": true}

// rustExtractor handles Rust and Cairo. Both map module paths onto files
// the same way; Cairo also allows the package name as the first segment.
type rustExtractor struct {
	ext              string
	manifest         string
	packageQualified bool
}

func (x rustExtractor) references(sc scope, file m.Path, text []byte) []reference {
	code := maskComments(text, syntaxFor(string(file)))
	moduleDir := x.moduleDir(file)

	var refs []reference

	for _, match := range rustModDecl.FindAllSubmatch(code, -1) {
		name := string(match[1])

		var list candidateList
		list.add(moduleDir, name+x.ext)
		list.add(moduleDir, name, "mod"+x.ext)
		list.add(dirOf(file), name+x.ext)
		list.add(dirOf(file), name, "lib"+x.ext)

		refs = append(refs, reference{raw: "mod " + name, candidates: list.paths, local: true})
	}

	var paths [][]string

	for _, match := range rustUseDecl.FindAllSubmatch(code, -1) {
		tree := rustUseAlias.ReplaceAllString(string(match[1]), "")
		tree = rustWhitespace.ReplaceAllString(tree, "")
		tree = strings.TrimPrefix(tree, "::")

		paths = append(paths, expandUseTree(nil, tree)...)
	}

	for _, match := range rustExternCrate.FindAllSubmatch(code, -1) {
		paths = append(paths, []string{string(match[1])})
	}

	for _, segments := range paths {
		refs = append(refs, x.pathReferences(sc, file, moduleDir, segments)...)
	}

	return refs
}

// pathReferences turns a::b::c into one reference per prefix: the module
// a, the module a::b and the module a::b::c. Prefixes naming items rather
// than modules simply resolve to nothing.
func (x rustExtractor) pathReferences(sc scope, file m.Path, moduleDir string, segments []string) []reference {
	segments = slices.DeleteFunc(slices.Clone(segments), func(s string) bool {
		return s == "" || s == "*"
	})

	if len(segments) == 0 || rustBuiltinCrates[segments[0]] {
		return nil
	}

	// A trailing self names the module before it.
	if n := len(segments); n > 1 && segments[n-1] == "self" {
		segments = segments[:n-1]
	}

	type origin struct {
		base string
		walk []string
	}

	var origins []origin

	switch segments[0] {
	case "crate":
		for _, dir := range x.crateDirs(sc, file) {
			origins = append(origins, origin{base: dir, walk: segments[1:]})
		}
	case "super":
		base := moduleDir
		for len(segments) > 0 && segments[0] == "super" {
			base = path.Join(base, "..")
			segments = segments[1:]
		}

		origins = append(origins, origin{base: base, walk: segments})
	case "self":
		origins = append(origins, origin{base: moduleDir, walk: segments[1:]})
	default:
		origins = append(origins, origin{base: moduleDir, walk: segments})

		if x.packageQualified {
			for _, dir := range x.crateDirs(sc, file) {
				origins = append(origins, origin{base: dir, walk: segments[1:]})
			}
		}
	}

	var refs []reference

	for _, o := range origins {
		for i, name := range o.walk {
			dir := path.Join(append([]string{o.base}, o.walk[:i]...)...)

			var list candidateList
			list.add(dir, name+x.ext)
			list.add(dir, name, "mod"+x.ext)
			list.add(dir, name, "lib"+x.ext)

			if len(list.paths) > 0 {
				refs = append(refs, reference{raw: strings.Join(o.walk[:i+1], "::"), candidates: list.paths})
			}
		}
	}

	return refs
}

// moduleDir is the directory holding the child modules of file: the
// file's own directory for mod/lib/main files, a sibling directory named
// after the file otherwise.
func (x rustExtractor) moduleDir(file m.Path) string {
	stem := strings.TrimSuffix(path.Base(string(file)), x.ext)

	switch stem {
	case "mod", "lib", "main":
		return dirOf(file)
	}

	return path.Join(dirOf(file), stem)
}

// crateDirs returns the source directories of the crate owning file: the
// src directory next to the nearest manifest, then the manifest directory.
func (x rustExtractor) crateDirs(sc scope, file m.Path) []string {
	dir, ok := sc.projectDir(file, x.manifest)
	if !ok {
		return []string{"src", ""}
	}

	return []string{path.Join(dir, "src"), dir}
}

// expandUseTree flattens a use tree such as a::{b,c::{d,e}} into its paths.
func expandUseTree(prefix []string, tree string) [][]string {
	open := strings.IndexByte(tree, '{')
	if open < 0 {
		return [][]string{append(slices.Clone(prefix), strings.Split(tree, "::")...)}
	}

	closing := strings.LastIndexByte(tree, '}')
	if closing < open {
		return nil
	}

	head := strings.TrimSuffix(tree[:open], "::")

	base := slices.Clone(prefix)
	if head != "" {
		base = append(base, strings.Split(head, "::")...)
	}

	var out [][]string

	for _, part := range splitTopLevel(tree[open+1:closing], '{', '}') {
		if part == "" {
			continue
		}

		out = append(out, expandUseTree(base, part)...)
	}

	return out
}
