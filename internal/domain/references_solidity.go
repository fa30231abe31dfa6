package domain

import (
	"bufio"
	"bytes"
	"cmp"
	"regexp"
	"slices"
	"strings"

	m "auditscope.dev/pkg/auditscope/internal/model"
)

var (
	solidityImport = regexp.MustCompile(`\bimport\s+(?:[^;"']*?\bfrom\s+)?["']([^"']+)["']`)

	solidityInheritance = regexp.MustCompile(
		`\b(?:abstract\s+contract|contract|interface|library)\s+\w+\s+is\s+([^{;]+)\{`)

	solidityIdent = regexp.MustCompile(`^\s*([A-Za-z_$][\w$]*)`)

	// Directories searched for non-relative imports, from the root and
	// from the importing file.
	solidityRootBases = []string{"", "src", "contracts", "interfaces", "lib"}
	solidityFileBases = []string{"", "..", "interfaces", "libraries"}
)

// remapping is one Foundry import remapping: [context:]prefix=target.
type remapping struct {
	context string
	prefix  string
	target  string
}

// parseRemappings reads remappings.txt content. Longer prefixes come first
// so the most specific remapping wins.
func parseRemappings(text []byte) []remapping {
	var remaps []remapping

	lines := bufio.NewScanner(bytes.NewReader(text))
	for lines.Scan() {
		line := strings.TrimSpace(lines.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		from, to, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		var r remapping
		if ctx, prefix, found := strings.Cut(from, ":"); found {
			r.context, r.prefix = ctx, prefix
		} else {
			r.prefix = from
		}

		r.target = strings.TrimSpace(to)
		r.prefix = strings.TrimSpace(r.prefix)

		if r.prefix != "" {
			remaps = append(remaps, r)
		}
	}

	slices.SortStableFunc(remaps, func(a, b remapping) int {
		return cmp.Compare(len(b.prefix), len(a.prefix))
	})

	return remaps
}

// solidityExtractor finds import statements and inherited contracts.
type solidityExtractor struct{}

func (solidityExtractor) references(sc scope, file m.Path, text []byte) []reference {
	code := maskComments(text, soliditySyntax)

	var refs []reference

	for _, match := range solidityImport.FindAllSubmatch(code, -1) {
		refs = append(refs, importReference(sc, file, string(match[1])))
	}

	for _, match := range solidityInheritance.FindAllSubmatch(code, -1) {
		for _, parent := range strings.Split(string(match[1]), ",") {
			name := solidityIdent.FindStringSubmatch(parent)
			if name == nil {
				continue
			}

			refs = append(refs, inheritanceReference(sc, file, name[1]))
		}
	}

	return refs
}

func importReference(sc scope, file m.Path, target string) reference {
	target = strings.ReplaceAll(target, "\\", "/")

	var list candidateList

	if strings.HasPrefix(target, "./") || strings.HasPrefix(target, "../") {
		addWithSolExt(&list, dirOf(file), target)

		return reference{raw: target, candidates: list.paths, local: true}
	}

	addNamedImport(&list, sc, file, target)

	return reference{raw: target, candidates: list.paths}
}

// inheritanceReference guesses the file declaring a parent contract from
// common naming layouts.
func inheritanceReference(sc scope, file m.Path, name string) reference {
	var list candidateList

	for _, guess := range []string{
		name + ".sol",
		"I" + name + ".sol",
		name + "Storage.sol",
		name + "Logic.sol",
		"contracts/" + name + ".sol",
		"src/" + name + ".sol",
		"interfaces/I" + name + ".sol",
	} {
		addNamedImport(&list, sc, file, guess)
	}

	return reference{raw: name, candidates: list.paths}
}

func addNamedImport(list *candidateList, sc scope, file m.Path, target string) {
	for _, r := range sc.remappings() {
		if r.context != "" && !strings.HasPrefix(string(file), r.context) {
			continue
		}

		if rest, ok := strings.CutPrefix(target, r.prefix); ok {
			addWithSolExt(list, r.target, rest)
		}
	}

	for _, base := range solidityRootBases {
		addWithSolExt(list, base, target)
	}

	for _, base := range solidityFileBases {
		addWithSolExt(list, dirOf(file), base, target)
	}
}

func addWithSolExt(list *candidateList, elem ...string) {
	list.add(elem...)

	last := elem[len(elem)-1]
	if !strings.HasSuffix(strings.ToLower(last), ".sol") {
		withExt := slices.Clone(elem)
		withExt[len(withExt)-1] = last + ".sol"
		list.add(withExt...)
	}
}
