package model

// RegionKind describes why a span of source text is removed.
type RegionKind string

const (
	// AttributeMarkedBlock is an item decorated with a test attribute such as #[test] or #[cfg(test)].
	AttributeMarkedBlock RegionKind = "attribute"
	// NamedTestModule is a module whose name marks it as test-only (mod tests { ... }).
	NamedTestModule RegionKind = "module"
	// NamedTestFile is a whole file whose name contains "test".
	NamedTestFile RegionKind = "file"
)

// TestRegion is a half-open byte span [Start, End) of the original text.
type TestRegion struct {
	Start int
	End   int
	Kind  RegionKind
}

// StripResult is the outcome of stripping a single file.
// When Remove is set the whole file goes away and Text is empty.
type StripResult struct {
	Text     []byte
	Remove   bool
	Regions  []TestRegion
	Warnings []Warning
}

// Changed reports whether the result differs from the input it was produced from.
func (r StripResult) Changed() bool {
	return r.Remove || len(r.Regions) > 0
}
