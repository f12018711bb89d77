package bugs

import (
	"time"

	"pkgdev/internal/bugzilla"
	"pkgdev/internal/ebuild"
)

// Resolver is the repository lookup surface the graph needs: restriction
// matching plus the configured stabilization groups. *ebuild.Repo satisfies
// it.
type Resolver interface {
	Match(a ebuild.Atom) []*ebuild.Package
	StabilizationGroups() map[string][]ebuild.Atom
}

// Diagnostic reports that the named dependency atoms were unsatisfiable when
// the checked package was given the keyword. Keywords are reported in plain
// arch form, without the ~ prefix.
type Diagnostic struct {
	Keyword string
	Deps    []ebuild.Atom
}

// VisibilityChecker yields unsolvable-dependency diagnostics for a package
// fabricated with a candidate keyword set.
type VisibilityChecker interface {
	Check(pkg *ebuild.Package, keywords []string) []Diagnostic
}

// History answers when a package version entered the tree and when it was
// last touched. It feeds the advisory age lines in bug descriptions and the
// exported graph document; a nil History simply omits them.
type History interface {
	LastAdded(a ebuild.Atom) (time.Time, bool)
	LastModified(a ebuild.Atom) (time.Time, bool)
}

// Tracker is the issue tracker surface used for filing and reconciliation.
// *bugzilla.Client satisfies it.
type Tracker interface {
	CreateBug(req bugzilla.CreateRequest) (int, error)
	SearchStabilizationBugs(component string, words []string) ([]bugzilla.Bug, error)
}
