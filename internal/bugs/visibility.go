package bugs

import (
	"sort"

	"pkgdev/internal/ebuild"
)

// RepoChecker is a visibility checker backed by repository metadata: a
// dependency is unsolvable under a candidate stable keyword when no tracked
// version of it is stable on that arch. It scans dependency strings for the
// atoms they mention without evaluating USE conditionals, which matches how
// the stabilization table is read by arch testers: every named dependency
// must be stabilizable.
type RepoChecker struct {
	resolver Resolver
}

// NewRepoChecker returns a checker over the given resolver.
func NewRepoChecker(resolver Resolver) *RepoChecker {
	return &RepoChecker{resolver: resolver}
}

// Check fabricates the package with the candidate keyword set and reports,
// per keyword, the dependency atoms that have no stable match on that arch.
func (c *RepoChecker) Check(pkg *ebuild.Package, keywords []string) []Diagnostic {
	depAtoms := c.depAtoms(pkg)
	var diags []Diagnostic
	for _, kw := range keywords {
		arch := ebuild.KeywordArch(kw)
		var unsolvable []ebuild.Atom
		for _, dep := range depAtoms {
			if !c.solvable(dep, arch) {
				unsolvable = append(unsolvable, dep)
			}
		}
		if len(unsolvable) > 0 {
			diags = append(diags, Diagnostic{Keyword: arch, Deps: unsolvable})
		}
	}
	return diags
}

func (c *RepoChecker) depAtoms(pkg *ebuild.Package) []ebuild.Atom {
	vars := make([]string, 0, len(pkg.DepStrings))
	for name := range pkg.DepStrings {
		vars = append(vars, name)
	}
	sort.Strings(vars)

	var atoms []ebuild.Atom
	seen := make(map[string]struct{})
	for _, name := range vars {
		for _, dep := range ebuild.ExtractDepAtoms(pkg.DepStrings[name]) {
			if _, dup := seen[dep.String()]; dup {
				continue
			}
			seen[dep.String()] = struct{}{}
			atoms = append(atoms, dep)
		}
	}
	return atoms
}

// solvable reports whether some version matching the dependency is stable on
// the arch. Dependencies on packages entirely absent from the repository are
// treated as solvable here; target resolution reports those separately as
// fatal no-match errors.
func (c *RepoChecker) solvable(dep ebuild.Atom, arch string) bool {
	matches := c.resolver.Match(dep)
	if len(matches) == 0 {
		return true
	}
	for _, p := range matches {
		for _, kw := range p.Keywords {
			if ebuild.KeywordStable(kw) && kw == arch {
				return true
			}
		}
	}
	return false
}
