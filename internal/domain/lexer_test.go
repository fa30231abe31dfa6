package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kindsOf(tokens []token) []tokenKind {
	kinds := make([]tokenKind, 0, len(tokens))
	for _, tok := range tokens {
		kinds = append(kinds, tok.kind)
	}

	return kinds
}

func TestTokenize_Rust(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []tokenKind
	}{
		{"char vs lifetime", `'a' 'b`, []tokenKind{tokChar, tokLifetime}},
		{"escaped char", `'\'' '\u{1F600}'`, []tokenKind{tokChar, tokChar}},
		{"unicode char", `'é'`, []tokenKind{tokChar}},
		{"raw string", `r##"a "# b"## x`, []tokenKind{tokString, tokIdent}},
		{"byte string", `b"\"" b'x'`, []tokenKind{tokString, tokChar}},
		{"nested comment", "/* a /* b */ c */ d", []tokenKind{tokBlockComment, tokIdent}},
		{"line comment", "x // y\nz", []tokenKind{tokIdent, tokLineComment, tokIdent}},
		{"punct and numbers", "f(1_000);", []tokenKind{tokIdent, tokPunct, tokNumber, tokPunct, tokPunct}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kindsOf(tokenize([]byte(tt.input), rustSyntax)))
		})
	}
}

func TestTokenize_Unterminated(t *testing.T) {
	src := []byte("a \"never closed { }")

	tokens := tokenize(src, rustSyntax)
	require.Len(t, tokens, 2)
	assert.Equal(t, tokString, tokens[1].kind)
	assert.False(t, tokens[1].terminated)
	assert.Equal(t, len(src), tokens[1].end)
}

func TestTokenize_SoliditySingleQuotes(t *testing.T) {
	tokens := tokenize([]byte(`import 'a//b.sol';`), soliditySyntax)

	assert.Equal(t, []tokenKind{tokIdent, tokString, tokPunct}, kindsOf(tokens))
}

func TestTokenize_CairoShortStrings(t *testing.T) {
	src := []byte(`assert(x, 'no }');`)

	tokens := tokenize(src, syntaxFor("src/lib.cairo"))
	assert.Equal(t, []tokenKind{tokIdent, tokPunct, tokIdent, tokPunct, tokString, tokPunct, tokPunct}, kindsOf(tokens))
	assert.Equal(t, "'no }'", tokens[4].text(src))

	assert.Equal(t, rustSyntax, syntaxFor("src/lib.rs"))
	assert.Equal(t, cairoSyntax, syntaxFor("src/LIB.CAIRO"))
}

func TestMaskComments(t *testing.T) {
	src := []byte("import \"./A.sol\"; // import \"./B.sol\";\n/* import\n\"./C.sol\"; */ x")

	masked := maskComments(src, soliditySyntax)

	require.Len(t, masked, len(src))
	assert.Equal(t, "import \"./A.sol\";"+strings.Repeat(" ", 21)+"\n"+strings.Repeat(" ", 9)+"\n"+strings.Repeat(" ", 14)+"x", string(masked))
}
