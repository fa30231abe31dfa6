package domain

import (
	"fmt"
	"log/slog"
	"maps"
	"path"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"auditscope.dev/pkg/auditscope/internal/adapter"
	m "auditscope.dev/pkg/auditscope/internal/model"
)

const (
	probeCacheSize = 4096
	remappingsFile = "remappings.txt"
)

// ResolveArgs contains the inputs of a single resolution.
type ResolveArgs struct {
	// Root is the project directory every other path is relative to.
	Root m.Path
	// Candidates are the root-relative primary candidates, from a scan or a change list.
	Candidates []m.Path
	// Extensions lists the file extensions under analysis, e.g. ".sol".
	Extensions []string
	// Filter holds the compiled include/exclude rules. Nil admits everything.
	Filter *Filter
}

// Resolver splits candidates into primary files and the local files they
// reference, directly or transitively.
type Resolver interface {
	Resolve(args ResolveArgs) (m.Resolution, error)
}

type resolver struct {
	adapter.SourceFSAdapter
}

// NewResolver creates a Resolver reading project files through fsAdapter.
func NewResolver(fsAdapter adapter.SourceFSAdapter) Resolver {
	return &resolver{SourceFSAdapter: fsAdapter}
}

func (r *resolver) Resolve(args ResolveArgs) (m.Resolution, error) {
	extensions := NormalizeExtensions(args.Extensions)
	if len(extensions) == 0 {
		return m.Resolution{}, configError("extensions", "at least one extension is required", nil)
	}

	info, err := r.FileInfo(args.Root)
	if err != nil {
		return m.Resolution{}, configError("root", fmt.Sprintf("%s does not exist", args.Root), err)
	}

	if !info.IsDir() {
		return m.Resolution{}, configError("root", fmt.Sprintf("%s is not a directory", args.Root), nil)
	}

	filter := args.Filter
	if filter == nil {
		filter = NewFilter(m.FilterRules{})
	}

	probes, err := lru.New[m.Path, bool](probeCacheSize)
	if err != nil {
		return m.Resolution{}, fmt.Errorf("create probe cache: %w", err)
	}

	s := &resolveSession{
		resolver:   r,
		root:       args.Root,
		extensions: extensions,
		filter:     filter,
		probes:     probes,
		primary:    map[m.Path]bool{},
		dependency: map[m.Path]bool{},
		graph:      m.DependencyGraph{},
	}

	if extensions[".sol"] {
		s.remaps = s.loadRemappings()
	}

	s.selectPrimary(args.Candidates)
	s.traverse()

	return s.result(), nil
}

// NormalizeExtensions lowercases extensions and gives each a leading dot.
// Blank entries are dropped.
func NormalizeExtensions(exts []string) map[string]bool {
	set := map[string]bool{}

	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		set[ext] = true
	}

	return set
}

// resolveSession holds the state of one Resolve call.
type resolveSession struct {
	*resolver

	root       m.Path
	extensions map[string]bool
	filter     *Filter
	probes     *lru.Cache[m.Path, bool]
	remaps     []remapping

	primary    map[m.Path]bool
	dependency map[m.Path]bool
	graph      m.DependencyGraph
	warnings   []m.Warning
}

func (s *resolveSession) selectPrimary(candidates []m.Path) {
	for _, candidate := range candidates {
		p := m.NormalizePath(string(candidate))

		if !s.hasExtension(p) {
			continue
		}

		if _, inside := joinRel(string(p)); !inside {
			slog.Warn("Primary candidate escapes the root", "path", p, "root", s.root)
			s.warn(m.WarnMissingCandidate, p, "candidate lies outside the root")

			continue
		}

		if !s.filter.IsIncluded(string(p)) {
			slog.Debug("Filtered out primary candidate", "path", p)
			continue
		}

		if !s.exists(p) {
			slog.Warn("Primary candidate does not exist", "path", p, "root", s.root)
			s.warn(m.WarnMissingCandidate, p, "candidate does not exist under the root")

			continue
		}

		s.primary[p] = true
	}
}

// traverse walks references breadth first from the primary files. The
// visited set keyed by normalized path guarantees termination on cycles.
func (s *resolveSession) traverse() {
	queue := slices.Sorted(maps.Keys(s.primary))
	visited := map[m.Path]bool{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current] {
			continue
		}

		visited[current] = true

		targets := s.referencesOf(current)
		s.graph[current] = targets

		for _, target := range targets {
			if !s.primary[target] {
				s.dependency[target] = true
			}

			if !visited[target] {
				queue = append(queue, target)
			}
		}
	}
}

// referencesOf returns the admitted files current refers to, in order of
// first appearance.
func (s *resolveSession) referencesOf(current m.Path) []m.Path {
	targets := []m.Path{}

	extractor := extractorFor(path.Ext(string(current)))
	if extractor == nil {
		return targets
	}

	text, err := s.ReadFile(s.abs(current))
	if err != nil {
		slog.Warn("Failed to read source", "path", current, "error", err)
		s.warn(m.WarnUnreadableFile, current, err.Error())

		return targets
	}

	seen := map[m.Path]bool{}

	for _, ref := range extractor.references(s, current, text) {
		target, ok := s.firstExisting(ref.candidates)
		if !ok {
			if ref.local {
				slog.Debug("Unresolvable reference", "path", current, "reference", ref.raw)
				s.warn(m.WarnUnresolvableReference, current, fmt.Sprintf("%q does not map to a file under the root", ref.raw))
			}

			continue
		}

		if target == current || seen[target] {
			continue
		}

		if !s.filter.IsIncluded(string(target)) {
			slog.Debug("Filtered out dependency", "path", target, "from", current)
			continue
		}

		seen[target] = true
		targets = append(targets, target)
	}

	return targets
}

func (s *resolveSession) firstExisting(candidates []m.Path) (m.Path, bool) {
	for _, candidate := range candidates {
		if s.hasExtension(candidate) && s.exists(candidate) {
			return candidate, true
		}
	}

	return "", false
}

func (s *resolveSession) hasExtension(p m.Path) bool {
	return s.extensions[strings.ToLower(path.Ext(string(p)))]
}

// exists reports whether p is a regular file under the root. Results are
// cached for the duration of the session.
func (s *resolveSession) exists(p m.Path) bool {
	if found, ok := s.probes.Get(p); ok {
		return found
	}

	info, err := s.FileInfo(s.abs(p))
	found := err == nil && !info.IsDir()
	s.probes.Add(p, found)

	return found
}

// projectDir returns the root-relative directory of the nearest manifest
// at or above file's directory. Manifests outside the root are ignored.
func (s *resolveSession) projectDir(file m.Path, manifest string) (string, bool) {
	found, err := s.FindProjectRoot(s.abs(m.Path(dirOf(file))), manifest)
	if err != nil {
		return "", false
	}

	rel, err := s.RelPath(s.root, found)
	if err != nil {
		return "", false
	}

	dir := m.NormalizePath(string(rel))
	if dir == "." {
		return "", true
	}

	if _, inside := joinRel(string(dir)); !inside {
		return "", false
	}

	return string(dir), true
}

func (s *resolveSession) remappings() []remapping {
	return s.remaps
}

func (s *resolveSession) loadRemappings() []remapping {
	text, err := s.ReadFile(s.abs(remappingsFile))
	if err != nil {
		return nil
	}

	remaps := parseRemappings(text)
	slog.Debug("Loaded import remappings", "count", len(remaps))

	return remaps
}

func (s *resolveSession) abs(p m.Path) m.Path {
	return s.JoinPath(string(s.root), string(p))
}

func (s *resolveSession) warn(kind m.WarningKind, p m.Path, msg string) {
	s.warnings = append(s.warnings, m.Warning{Kind: kind, Path: p, Message: msg})
}

func (s *resolveSession) result() m.Resolution {
	res := m.Resolution{
		Graph:    s.graph,
		Warnings: s.warnings,
	}

	for _, p := range slices.Sorted(maps.Keys(s.primary)) {
		res.Primary = append(res.Primary, s.record(p, m.RolePrimary))
	}

	for _, p := range slices.Sorted(maps.Keys(s.dependency)) {
		res.Dependencies = append(res.Dependencies, s.record(p, m.RoleDependency))
	}

	return res
}

func (s *resolveSession) record(p m.Path, role m.Role) m.FileRecord {
	return m.FileRecord{Path: p, Role: role, Extension: strings.ToLower(path.Ext(string(p)))}
}
