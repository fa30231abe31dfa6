package domain

import (
	"bytes"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

// Stripper removes test-only code from Rust and Cairo sources.
type Stripper interface {
	// Strip computes the test regions of text and returns the text with
	// those regions excised. name is only used for the whole-file rule
	// and for warnings.
	Strip(name string, text []byte) m.StripResult
}

type stripper struct{}

// NewStripper creates a Stripper.
func NewStripper() Stripper {
	return &stripper{}
}

// IsTestFileName reports whether the base name of p marks a test-only file.
func IsTestFileName(p string) bool {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.Contains(strings.ToLower(base), "test")
}

func (s *stripper) Strip(name string, text []byte) m.StripResult {
	if IsTestFileName(name) {
		return m.StripResult{
			Remove:  true,
			Regions: []m.TestRegion{{Start: 0, End: len(text), Kind: m.NamedTestFile}},
		}
	}

	scan := &regionScanner{name: name, src: text, tokens: tokenize(text, syntaxFor(name))}
	scan.run()

	if len(scan.regions) == 0 {
		return m.StripResult{Text: text, Warnings: scan.warnings}
	}

	return m.StripResult{
		Text:     excise(text, scan.regions),
		Regions:  scan.regions,
		Warnings: scan.warnings,
	}
}

// excise removes regions from text working from the highest offset down so
// earlier offsets stay valid. Regions must not overlap.
func excise(text []byte, regions []m.TestRegion) []byte {
	ordered := slices.Clone(regions)
	slices.SortFunc(ordered, func(a, b m.TestRegion) int { return b.Start - a.Start })

	out := bytes.Clone(text)
	for _, r := range ordered {
		out = append(out[:r.Start], out[r.End:]...)
	}

	return out
}

type regionScanner struct {
	name     string
	src      []byte
	tokens   []token
	regions  []m.TestRegion
	warnings []m.Warning
}

// run walks items at any nesting level. Each item is preceded by a lead of
// attributes, doc comments and modifiers; the lead decides whether the
// item is test-only.
func (s *regionScanner) run() {
	lead := -1
	marked := false

	for i := 0; i < len(s.tokens); {
		tok := s.tokens[i]

		switch {
		case tok.isComment():
			if isDocComment(tok.text(s.src)) && lead < 0 {
				lead = i
			}

			i++

			continue
		case tok.isPunct(s.src, '#'):
			open := s.nextCode(i + 1)
			if open < 0 || !s.tokens[open].isPunct(s.src, '[') {
				lead, marked = -1, false
				i++

				continue
			}

			closing := s.matching(open, '[', ']')
			if closing < 0 {
				s.warn(tok.start, "attribute never closes; leaving the rest of the file in place")
				return
			}

			if lead < 0 {
				lead = i
			}

			if isTestAttribute(s.joined(open+1, closing)) {
				marked = true
			}

			i = closing + 1

			continue
		case isItemModifier(s.src, tok):
			if lead < 0 {
				lead = i
			}

			i = s.skipModifier(i)

			continue
		}

		if isCloser(s.src, tok) {
			// Attributes with nothing left to decorate in this body.
			lead, marked = -1, false
			i++

			continue
		}

		start := i
		if lead >= 0 {
			start = lead
		}

		kind := m.AttributeMarkedBlock
		if !marked {
			if !s.isTestModule(i) {
				lead = -1
				i++

				continue
			}

			kind = m.NamedTestModule
		}

		end, ok := s.itemEnd(i)
		if !ok {
			s.warn(s.tokens[start].start, "test region body never closes; leaving it in place")
			return
		}

		s.addRegion(s.tokens[start].start, s.tokens[end].end, kind)

		lead, marked = -1, false
		i = end + 1
	}
}

// itemEnd returns the index of the last token of the item starting at i.
// Keyword items (fn, impl, mod...) end at a ';' or the closing brace of their
// body and may carry commas anywhere in their signature. Other items, such as
// fields, variants and match arms, also end at a ',' outside any generic
// argument list.
func (s *regionScanner) itemEnd(i int) (int, bool) {
	kw := s.itemKeyword(i)
	keyword := kw != ""
	bodyEnds := bodyItemKeywords[kw]
	depth := 0
	angles := 0
	typePosition := !keyword

	for j := i; j < len(s.tokens); j++ {
		tok := s.tokens[j]
		if tok.kind != tokPunct {
			continue
		}

		switch s.src[tok.start] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth < 0 {
				return j - 1, true
			}
		case '<':
			if typePosition && depth == 0 {
				angles++
			}
		case '>':
			if s.joinedWithPrev(j, '=') {
				// => leaves the pattern of a match arm.
				typePosition, angles = false, 0
			} else if typePosition && depth == 0 && angles > 0 && !s.joinedWithPrev(j, '-') {
				angles--
			}
		case '=':
			if depth == 0 && !s.joinedWithNext(j, '>') {
				typePosition, angles = false, 0
			}
		case '{':
			if depth > 0 {
				continue
			}

			if keyword && !bodyEnds {
				depth++
				continue
			}

			closing := s.matching(j, '{', '}')
			if closing < 0 {
				return 0, false
			}

			next := s.nextCode(closing + 1)
			if next >= 0 && (s.tokens[next].isPunct(s.src, ';') || (!keyword && s.tokens[next].isPunct(s.src, ','))) {
				return next, true
			}

			return closing, true
		case ';':
			if depth == 0 {
				return j, true
			}
		case ',':
			if !keyword && depth == 0 && angles == 0 {
				return j, true
			}
		case '}':
			if depth > 0 {
				depth--
				continue
			}

			// The decorated element was the last one of its enclosing body.
			return j - 1, true
		}
	}

	return 0, false
}

// itemKeywords start items whose end is a ';' or a body, never a ','.
var itemKeywords = map[string]bool{
	"fn": true, "mod": true, "impl": true, "trait": true, "struct": true, "enum": true,
	"union": true, "const": true, "static": true, "type": true, "use": true, "let": true,
	"extern": true, "macro_rules": true,
}

// bodyItemKeywords end at the closing brace of their first top-level body.
var bodyItemKeywords = map[string]bool{
	"fn": true, "mod": true, "impl": true, "trait": true, "struct": true, "enum": true,
	"union": true, "extern": true, "macro_rules": true,
}

// itemQualifiers may precede the keyword that decides how an item ends.
var itemQualifiers = map[string]bool{"const": true, "unsafe": true, "async": true, "extern": true, "default": true}

// itemKeyword returns the keyword of the item at i, looking through
// qualifiers as in const fn and extern "C" fn, or "" for items without one.
func (s *regionScanner) itemKeyword(i int) string {
	first := ""

	for j := i; j >= 0; j = s.nextCode(j + 1) {
		tok := s.tokens[j]
		if tok.kind == tokString && first == "extern" {
			continue
		}

		if tok.kind != tokIdent {
			break
		}

		word := tok.text(s.src)
		if first == "" {
			first = word
			if !itemQualifiers[word] {
				break
			}

			continue
		}

		if !itemQualifiers[word] {
			if itemKeywords[word] {
				return word
			}

			break
		}
	}

	if itemKeywords[first] {
		return first
	}

	return ""
}

// joinedWithPrev reports whether the token before j is the punctuation c
// with no space in between, as in -> and =>.
func (s *regionScanner) joinedWithPrev(j int, c byte) bool {
	return j > 0 && s.tokens[j-1].isPunct(s.src, c) && s.tokens[j-1].end == s.tokens[j].start
}

func (s *regionScanner) joinedWithNext(j int, c byte) bool {
	return j+1 < len(s.tokens) && s.tokens[j+1].isPunct(s.src, c) && s.tokens[j].end == s.tokens[j+1].start
}

// matching returns the index of the delimiter closing the one at open, or
// -1 when depth never returns to zero.
func (s *regionScanner) matching(open int, opener, closer byte) int {
	depth := 0

	for j := open; j < len(s.tokens); j++ {
		tok := s.tokens[j]
		if tok.kind != tokPunct {
			continue
		}

		switch s.src[tok.start] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return j
			}
		}
	}

	return -1
}

func (s *regionScanner) nextCode(i int) int {
	for ; i < len(s.tokens); i++ {
		if !s.tokens[i].isComment() {
			return i
		}
	}

	return -1
}

// isTestModule matches `mod tests {` and `mod tests;` style declarations.
func (s *regionScanner) isTestModule(i int) bool {
	if !s.tokens[i].isIdent(s.src, "mod") {
		return false
	}

	name := s.nextCode(i + 1)
	if name < 0 || s.tokens[name].kind != tokIdent || !isTestModuleName(s.tokens[name].text(s.src)) {
		return false
	}

	body := s.nextCode(name + 1)

	return body >= 0 && (s.tokens[body].isPunct(s.src, '{') || s.tokens[body].isPunct(s.src, ';'))
}

// skipModifier steps over pub, pub(crate) and friends.
func (s *regionScanner) skipModifier(i int) int {
	next := s.nextCode(i + 1)
	if s.tokens[i].isIdent(s.src, "pub") && next >= 0 && s.tokens[next].isPunct(s.src, '(') {
		if closing := s.matching(next, '(', ')'); closing >= 0 {
			return closing + 1
		}
	}

	return i + 1
}

// joined concatenates the token texts in [from, to) without whitespace.
func (s *regionScanner) joined(from, to int) string {
	var b strings.Builder

	for _, tok := range s.tokens[from:to] {
		if !tok.isComment() {
			b.WriteString(tok.text(s.src))
		}
	}

	return b.String()
}

// addRegion records [start, end) widened to whole lines when the item is
// alone on its lines.
func (s *regionScanner) addRegion(start, end int, kind m.RegionKind) {
	lineEnd := end
	for lineEnd < len(s.src) && (s.src[lineEnd] == ' ' || s.src[lineEnd] == '\t' || s.src[lineEnd] == '\r') {
		lineEnd++
	}

	if lineEnd == len(s.src) || s.src[lineEnd] == '\n' {
		if lineEnd < len(s.src) {
			lineEnd++
		}

		lineStart := start
		for lineStart > 0 && (s.src[lineStart-1] == ' ' || s.src[lineStart-1] == '\t') {
			lineStart--
		}

		if lineStart == 0 || s.src[lineStart-1] == '\n' {
			start = lineStart
		}

		end = lineEnd
	}

	s.regions = append(s.regions, m.TestRegion{Start: start, End: end, Kind: kind})
}

func (s *regionScanner) warn(offset int, msg string) {
	line := bytes.Count(s.src[:offset], []byte{'\n'}) + 1

	slog.Warn("Malformed test region", "file", s.name, "line", line)

	s.warnings = append(s.warnings, m.Warning{
		Kind:    m.WarnMalformedRegion,
		Path:    m.NormalizePath(s.name),
		Message: fmt.Sprintf("line %d: %s", line, msg),
	})
}

func isCloser(src []byte, tok token) bool {
	return tok.isPunct(src, '}') || tok.isPunct(src, ')') || tok.isPunct(src, ']')
}

func isDocComment(text string) bool {
	return (strings.HasPrefix(text, "///") && !strings.HasPrefix(text, "////")) ||
		(strings.HasPrefix(text, "/**") && !strings.HasPrefix(text, "/**/"))
}

// isItemModifier reports tokens that may sit between attributes and the
// item keyword.
func isItemModifier(src []byte, tok token) bool {
	if tok.kind != tokIdent {
		return false
	}

	switch tok.text(src) {
	case "pub", "async", "unsafe":
		return true
	}

	return false
}

func isTestModuleName(name string) bool {
	return name == "test" || name == "tests" ||
		strings.HasPrefix(name, "test_") ||
		strings.HasSuffix(name, "_test") || strings.HasSuffix(name, "_tests")
}

// isTestAttribute reports whether the attribute body (the text between #[
// and ], whitespace removed) marks its item as test-only.
func isTestAttribute(attr string) bool {
	name, args, _ := strings.Cut(attr, "(")

	switch {
	case name == "test", name == "bench", name == "rstest", name == "test_case":
		return true
	case strings.HasSuffix(name, "::test"):
		return true
	case name == "cfg":
		return cfgRequiresTest(strings.TrimSuffix(args, ")"))
	}

	return false
}

// cfgRequiresTest reports whether a cfg predicate can only hold in test builds.
func cfgRequiresTest(pred string) bool {
	if pred == "test" {
		return true
	}

	inner, ok := strings.CutPrefix(pred, "all(")
	if !ok || !strings.HasSuffix(inner, ")") {
		return false
	}

	return slices.ContainsFunc(splitTopLevel(strings.TrimSuffix(inner, ")"), '(', ')'), cfgRequiresTest)
}

// splitTopLevel splits s on commas outside open/closing pairs.
func splitTopLevel(s string, open, closing byte) []string {
	var (
		parts []string
		depth int
		from  int
	)

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case closing:
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[from:i])
				from = i + 1
			}
		}
	}

	return append(parts, s[from:])
}
