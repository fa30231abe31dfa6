package domain

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

type patternKind int

const (
	patternInvalid patternKind = iota
	patternBareName
	patternSuffix
	patternComponentGlob
	patternDirAnywhere
	patternSegments
)

// pattern is a compiled include/exclude pattern.
type pattern struct {
	raw      string
	kind     patternKind
	literal  string
	segments []string
}

// Filter evaluates compiled filter rules against paths. A Filter is
// immutable and safe to share between the resolver and the classifier.
type Filter struct {
	include    []pattern
	exclude    []pattern
	hasInclude bool
	warnings   []m.Warning
}

// NewFilter compiles rules. Empty or malformed patterns are dropped and
// reported through Warnings; they never match anything, so an include list
// made only of them admits no path.
func NewFilter(rules m.FilterRules) *Filter {
	f := &Filter{hasInclude: len(rules.Include) > 0}
	f.include = f.compileAll(rules.Include)
	f.exclude = f.compileAll(rules.Exclude)

	return f
}

func (f *Filter) compileAll(raws []string) []pattern {
	compiled := make([]pattern, 0, len(raws))

	for _, raw := range raws {
		p := compilePattern(raw)
		if p.kind == patternInvalid {
			slog.Warn("Ignoring filter pattern", "pattern", raw)
			f.warnings = append(f.warnings, m.Warning{
				Kind:    m.WarnPatternSyntax,
				Message: fmt.Sprintf("pattern %q is empty or malformed and matches nothing", raw),
			})

			continue
		}

		compiled = append(compiled, p)
	}

	return compiled
}

// Warnings returns the pattern problems found while compiling.
func (f *Filter) Warnings() []m.Warning {
	return append([]m.Warning(nil), f.warnings...)
}

// IsIncluded reports whether path survives the rules. Exclude patterns are
// authoritative: a path matching any of them is never included.
func (f *Filter) IsIncluded(p string) bool {
	normalized := normalizeForMatch(p)

	for _, ex := range f.exclude {
		if ex.match(normalized) {
			return false
		}
	}

	if !f.hasInclude {
		return true
	}

	for _, in := range f.include {
		if in.match(normalized) {
			return true
		}
	}

	return false
}

// Matches reports whether path matches a single pattern.
func Matches(p, raw string) bool {
	return compilePattern(raw).match(normalizeForMatch(p))
}

// IsIncluded is the functional form of Filter.IsIncluded.
func IsIncluded(p string, rules m.FilterRules) bool {
	return NewFilter(rules).IsIncluded(p)
}

func normalizeForMatch(p string) string {
	return strings.ToLower(string(m.NormalizePath(p)))
}

func compilePattern(raw string) pattern {
	p := pattern{raw: raw}

	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, "\\", "/")
	norm = strings.TrimPrefix(norm, "./")
	norm = strings.TrimPrefix(norm, "/")

	if norm == "" {
		return p
	}

	if !strings.Contains(norm, "/") {
		return compileSingleSegment(p, norm)
	}

	segments := splitSegments(norm)
	if len(segments) == 0 {
		return p
	}

	for _, segment := range segments {
		if _, err := path.Match(segment, ""); err != nil {
			return p
		}
	}

	if isDirAnywhere(segments) {
		p.kind = patternDirAnywhere
		p.segments = segments[1 : len(segments)-1]

		return p
	}

	p.kind = patternSegments
	p.segments = segments

	return p
}

func compileSingleSegment(p pattern, norm string) pattern {
	if _, err := path.Match(norm, ""); err != nil {
		return p
	}

	if !hasWildcard(norm) {
		p.kind = patternBareName
		p.literal = norm

		return p
	}

	if rest := strings.TrimLeft(norm, "*"); rest != "" && !hasWildcard(rest) {
		p.kind = patternSuffix
		p.literal = rest

		return p
	}

	if strings.Trim(norm, "*") == "" {
		// "*" or "**" alone matches every path.
		p.kind = patternSegments
		p.segments = []string{"**"}

		return p
	}

	p.kind = patternComponentGlob
	p.literal = norm

	return p
}

func splitSegments(norm string) []string {
	parts := strings.Split(norm, "/")
	segments := parts[:0]

	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}

		segments = append(segments, part)
	}

	return segments
}

// isDirAnywhere recognises "*/name/*", "**/a/b/**" and friends: wildcard-only
// first and last segments around literal directory names.
func isDirAnywhere(segments []string) bool {
	if len(segments) < 3 {
		return false
	}

	if !isWildcardOnly(segments[0]) || !isWildcardOnly(segments[len(segments)-1]) {
		return false
	}

	for _, segment := range segments[1 : len(segments)-1] {
		if hasWildcard(segment) {
			return false
		}
	}

	return true
}

func (p pattern) match(normalized string) bool {
	if normalized == "" {
		return false
	}

	components := strings.Split(normalized, "/")

	switch p.kind {
	case patternBareName:
		// A bare name matches a whole component or a literal suffix.
		for _, component := range components {
			if component == p.literal {
				return true
			}
		}

		return strings.HasSuffix(normalized, p.literal)
	case patternSuffix:
		return strings.HasSuffix(normalized, p.literal)
	case patternComponentGlob:
		for _, component := range components {
			if ok, _ := path.Match(p.literal, component); ok {
				return true
			}
		}

		return false
	case patternDirAnywhere:
		return containsRun(components[:len(components)-1], p.segments)
	case patternSegments:
		return matchSegments(p.segments, components)
	}

	return false
}

// matchSegments matches pattern segments against a prefix of the path
// components. "**" consumes zero or more components.
func matchSegments(segments, components []string) bool {
	if len(segments) == 0 {
		return true
	}

	if segments[0] == "**" {
		for i := 0; i <= len(components); i++ {
			if matchSegments(segments[1:], components[i:]) {
				return true
			}
		}

		return false
	}

	if len(components) == 0 {
		return false
	}

	if ok, _ := path.Match(segments[0], components[0]); !ok {
		return false
	}

	return matchSegments(segments[1:], components[1:])
}

func containsRun(components, run []string) bool {
	for i := 0; i+len(run) <= len(components); i++ {
		found := true

		for j, segment := range run {
			if components[i+j] != segment {
				found = false
				break
			}
		}

		if found {
			return true
		}
	}

	return false
}

func hasWildcard(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func isWildcardOnly(s string) bool {
	return s != "" && strings.Trim(s, "*") == ""
}
