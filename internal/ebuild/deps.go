package ebuild

import (
	"strings"
)

// ExtractDepAtoms scans a raw dependency string and returns the package
// atoms it references. Grouping operators, USE conditionals, blockers, slot
// deps and use-deps are stripped: visibility analysis only needs to know
// which packages are named, not under which conditions.
func ExtractDepAtoms(dep string) []Atom {
	var atoms []Atom
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(dep) {
		switch {
		case tok == "(" || tok == ")" || tok == "||":
			continue
		case strings.HasSuffix(tok, "?"): // USE conditional
			continue
		case strings.HasPrefix(tok, "!"): // blockers are conflicts, not deps
			continue
		}
		// strip use-deps and slot restriction
		if i := strings.IndexByte(tok, '['); i != -1 {
			tok = tok[:i]
		}
		if i := strings.IndexByte(tok, ':'); i != -1 {
			tok = tok[:i]
		}
		a, err := ParseAtom(tok)
		if err != nil {
			continue
		}
		if _, dup := seen[a.String()]; dup {
			continue
		}
		seen[a.String()] = struct{}{}
		atoms = append(atoms, a)
	}
	return atoms
}
