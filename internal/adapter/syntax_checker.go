package adapter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// SyntaxChecker reports whether source text still parses.
type SyntaxChecker interface {
	// Supports reports whether the checker has a grammar for ext.
	Supports(ext string) bool

	// HasErrors parses src and reports whether the tree contains error nodes.
	HasErrors(ctx context.Context, ext string, src []byte) (bool, error)
}

// TreeSitterChecker implements SyntaxChecker with tree-sitter grammars.
type TreeSitterChecker struct {
	languages map[string]*sitter.Language
}

// NewTreeSitterChecker constructs a checker for Rust sources.
func NewTreeSitterChecker() *TreeSitterChecker {
	return &TreeSitterChecker{
		languages: map[string]*sitter.Language{
			".rs": rust.GetLanguage(),
		},
	}
}

// Supports reports whether a grammar is registered for ext.
func (c *TreeSitterChecker) Supports(ext string) bool {
	_, ok := c.languages[strings.ToLower(ext)]

	return ok
}

// HasErrors parses src with the grammar registered for ext.
func (c *TreeSitterChecker) HasErrors(ctx context.Context, ext string, src []byte) (bool, error) {
	language, ok := c.languages[strings.ToLower(ext)]
	if !ok {
		return false, fmt.Errorf("no grammar for %q", ext)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(language)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return false, fmt.Errorf("parse: %w", err)
	}

	return tree.RootNode().HasError(), nil
}
