package domain

import (
	"bytes"
	"path"
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokChar
	tokLifetime
	tokLineComment
	tokBlockComment
	tokPunct
)

// token is a lexical span of the source. Whitespace is never tokenized.
type token struct {
	kind       tokenKind
	start      int
	end        int
	terminated bool
}

func (t token) isComment() bool {
	return t.kind == tokLineComment || t.kind == tokBlockComment
}

func (t token) isPunct(src []byte, c byte) bool {
	return t.kind == tokPunct && src[t.start] == c
}

func (t token) isIdent(src []byte, word string) bool {
	return t.kind == tokIdent && string(src[t.start:t.end]) == word
}

func (t token) text(src []byte) string {
	return string(src[t.start:t.end])
}

// syntax selects the lexical rules of a language family.
type syntax struct {
	nestedComments bool
	rawStrings     bool
	quoteIsString  bool
}

var (
	// rustSyntax has nested block comments, raw strings, and single quotes
	// for chars and lifetimes.
	rustSyntax = syntax{nestedComments: true, rawStrings: true}

	// cairoSyntax reads single quotes as short strings such as 'msg'.
	cairoSyntax = syntax{nestedComments: true, quoteIsString: true}

	// soliditySyntax uses single quotes as string delimiters.
	soliditySyntax = syntax{quoteIsString: true}
)

// syntaxFor picks the lexical rules for a Rust or Cairo file by extension.
func syntaxFor(name string) syntax {
	if strings.EqualFold(path.Ext(name), ".cairo") {
		return cairoSyntax
	}

	return rustSyntax
}

type lexer struct {
	src []byte
	pos int
	syntax
}

// tokenize splits src into tokens. Strings and comments that never close
// extend to the end of the input and are flagged as unterminated, so no
// delimiter inside them is ever seen as structure.
func tokenize(src []byte, s syntax) []token {
	lx := &lexer{src: src, syntax: s}

	var tokens []token

	for {
		lx.skipSpace()

		if lx.pos >= len(lx.src) {
			return tokens
		}

		tokens = append(tokens, lx.next())
	}
}

// maskComments returns a copy of src with comment bytes replaced by spaces.
// Newlines are kept so offsets and line numbers stay valid.
func maskComments(src []byte, s syntax) []byte {
	masked := bytes.Clone(src)

	for _, tok := range tokenize(src, s) {
		if !tok.isComment() {
			continue
		}

		for i := tok.start; i < tok.end; i++ {
			if masked[i] != '\n' && masked[i] != '\r' {
				masked[i] = ' '
			}
		}
	}

	return masked
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			lx.pos++
		default:
			return
		}
	}
}

func (lx *lexer) peek(offset int) byte {
	if lx.pos+offset < len(lx.src) {
		return lx.src[lx.pos+offset]
	}

	return 0
}

func (lx *lexer) next() token {
	start := lx.pos
	c := lx.src[start]

	switch {
	case c == '/' && lx.peek(1) == '/':
		end := bytes.IndexByte(lx.src[start:], '\n')
		if end < 0 {
			lx.pos = len(lx.src)
		} else {
			lx.pos = start + end
		}

		return token{kind: tokLineComment, start: start, end: lx.pos, terminated: true}
	case c == '/' && lx.peek(1) == '*':
		return lx.blockComment()
	case c == '"':
		return lx.quoted(start, 1, '"', tokString)
	case c == '\'':
		if lx.quoteIsString {
			return lx.quoted(start, 1, '\'', tokString)
		}

		return lx.charOrLifetime()
	case lx.rawStrings && (c == 'r' || c == 'b'):
		if tok, ok := lx.prefixedString(); ok {
			return tok
		}

		return lx.ident()
	case isIdentByte(c) && !isDigit(c):
		return lx.ident()
	case isDigit(c):
		return lx.number()
	}

	lx.pos++

	return token{kind: tokPunct, start: start, end: lx.pos, terminated: true}
}

func (lx *lexer) blockComment() token {
	start := lx.pos
	lx.pos += 2
	depth := 1

	for lx.pos < len(lx.src) {
		switch {
		case lx.nestedComments && lx.src[lx.pos] == '/' && lx.peek(1) == '*':
			depth++
			lx.pos += 2
		case lx.src[lx.pos] == '*' && lx.peek(1) == '/':
			depth--
			lx.pos += 2

			if depth == 0 {
				return token{kind: tokBlockComment, start: start, end: lx.pos, terminated: true}
			}
		default:
			lx.pos++
		}
	}

	return token{kind: tokBlockComment, start: start, end: len(lx.src)}
}

// quoted scans an escaped literal whose body starts skip bytes after start.
func (lx *lexer) quoted(start, skip int, quote byte, kind tokenKind) token {
	lx.pos = start + skip

	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case '\\':
			lx.pos += 2
		case quote:
			lx.pos++
			return token{kind: kind, start: start, end: lx.pos, terminated: true}
		default:
			lx.pos++
		}
	}

	lx.pos = len(lx.src)

	return token{kind: kind, start: start, end: lx.pos}
}

// prefixedString handles b"..", b'..', r"..", r#".."#, br"..", br#".."#.
func (lx *lexer) prefixedString() (token, bool) {
	start := lx.pos
	i := start

	if lx.src[i] == 'b' {
		i++

		if i < len(lx.src) && lx.src[i] == '"' {
			return lx.quoted(start, 2, '"', tokString), true
		}

		if i < len(lx.src) && lx.src[i] == '\'' {
			return lx.quoted(start, 2, '\'', tokChar), true
		}
	}

	if i >= len(lx.src) || lx.src[i] != 'r' {
		return token{}, false
	}

	i++
	hashes := 0

	for i < len(lx.src) && lx.src[i] == '#' {
		hashes++
		i++
	}

	if i >= len(lx.src) || lx.src[i] != '"' {
		return token{}, false
	}

	closing := append([]byte{'"'}, bytes.Repeat([]byte{'#'}, hashes)...)

	end := bytes.Index(lx.src[i+1:], closing)
	if end < 0 {
		lx.pos = len(lx.src)
		return token{kind: tokString, start: start, end: lx.pos}, true
	}

	lx.pos = i + 1 + end + len(closing)

	return token{kind: tokString, start: start, end: lx.pos, terminated: true}, true
}

// charOrLifetime tells 'a' and '\n' apart from the lifetime 'a.
func (lx *lexer) charOrLifetime() token {
	start := lx.pos

	if lx.peek(1) == '\\' {
		// Escapes are at most '\u{10FFFF}'.
		limit := min(start+12, len(lx.src))

		for i := start + 3; i < limit; i++ {
			if lx.src[i] == '\'' {
				lx.pos = i + 1
				return token{kind: tokChar, start: start, end: lx.pos, terminated: true}
			}
		}

		lx.pos = start + 1

		return token{kind: tokPunct, start: start, end: lx.pos, terminated: true}
	}

	if start+1 < len(lx.src) {
		_, size := utf8.DecodeRune(lx.src[start+1:])
		if closeAt := start + 1 + size; closeAt < len(lx.src) && lx.src[closeAt] == '\'' {
			lx.pos = closeAt + 1
			return token{kind: tokChar, start: start, end: lx.pos, terminated: true}
		}
	}

	lx.pos = start + 1
	for lx.pos < len(lx.src) && isIdentByte(lx.src[lx.pos]) {
		lx.pos++
	}

	return token{kind: tokLifetime, start: start, end: lx.pos, terminated: true}
}

func (lx *lexer) ident() token {
	start := lx.pos
	for lx.pos < len(lx.src) && isIdentByte(lx.src[lx.pos]) {
		lx.pos++
	}

	return token{kind: tokIdent, start: start, end: lx.pos, terminated: true}
}

func (lx *lexer) number() token {
	start := lx.pos
	for lx.pos < len(lx.src) && isIdentByte(lx.src[lx.pos]) {
		lx.pos++
	}

	return token{kind: tokNumber, start: start, end: lx.pos, terminated: true}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isIdentByte accepts ASCII word bytes and any non-ASCII byte, which keeps
// UTF-8 identifiers in one token.
func isIdentByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}
