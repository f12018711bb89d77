package ebuild

import (
	"fmt"
	"strings"
)

// Atom is a textual package-matching restriction: a category/package pair
// with an optional version operator.
type Atom struct {
	Op       string // "", "=", "~", "<", "<=", ">", ">="
	Category string
	Package  string
	Version  string // empty for unversioned atoms
}

var atomOps = []string{">=", "<=", ">", "<", "=", "~"}

// ParseAtom parses a package atom such as "dev-libs/foo" or
// "=dev-libs/foo-1.2.3-r1". A version requires an operator and an operator
// requires a version.
func ParseAtom(s string) (Atom, error) {
	orig := s
	var a Atom
	for _, op := range atomOps {
		if strings.HasPrefix(s, op) {
			a.Op = op
			s = s[len(op):]
			break
		}
	}

	cat, rest, ok := strings.Cut(s, "/")
	if !ok || cat == "" || rest == "" {
		return Atom{}, fmt.Errorf("malformed atom: %q", orig)
	}
	a.Category = cat

	if a.Op == "" {
		if splitPV(rest) != -1 {
			return Atom{}, fmt.Errorf("malformed atom: %q: versioned atom requires an operator", orig)
		}
		a.Package = rest
		return a, nil
	}

	i := splitPV(rest)
	if i == -1 {
		return Atom{}, fmt.Errorf("malformed atom: %q: operator requires a version", orig)
	}
	a.Package = rest[:i]
	a.Version = rest[i+1:]
	if a.Package == "" {
		return Atom{}, fmt.Errorf("malformed atom: %q", orig)
	}
	return a, nil
}

// ParseUserAtom parses an atom the way a user would type it: a bare
// "cat/pkg-1.2.3" without an operator is retried as "=cat/pkg-1.2.3".
func ParseUserAtom(s string) (Atom, error) {
	a, err := ParseAtom(s)
	if err == nil {
		return a, nil
	}
	if retry, retryErr := ParseAtom("=" + s); retryErr == nil {
		return retry, nil
	}
	return Atom{}, err
}

// splitPV returns the index of the hyphen separating the package name from
// the version in a "pkg-1.2.3-r1" string, or -1 when no version is present.
func splitPV(s string) int {
	for i := len(s) - 1; i > 0; i-- {
		if s[i] != '-' {
			continue
		}
		if IsVersion(s[i+1:]) {
			return i
		}
	}
	return -1
}

// Key returns the unversioned "category/package" form.
func (a Atom) Key() string {
	return a.Category + "/" + a.Package
}

// Unversioned returns the atom stripped of operator and version.
func (a Atom) Unversioned() Atom {
	return Atom{Category: a.Category, Package: a.Package}
}

// Versioned reports whether the atom restricts to a specific version range.
func (a Atom) Versioned() bool {
	return a.Version != ""
}

func (a Atom) String() string {
	if a.Version == "" {
		return a.Key()
	}
	return a.Op + a.Key() + "-" + a.Version
}

// CPV returns the "category/package-version" form without the operator.
func (a Atom) CPV() string {
	if a.Version == "" {
		return a.Key()
	}
	return a.Key() + "-" + a.Version
}

// Match reports whether the package satisfies this restriction.
func (a Atom) Match(p *Package) bool {
	if a.Category != p.Category || a.Package != p.Name {
		return false
	}
	if a.Version == "" {
		return true
	}
	switch a.Op {
	case "=":
		return CompareVersions(p.Version, a.Version) == 0
	case "~":
		return CompareVersions(stripRevision(p.Version), stripRevision(a.Version)) == 0
	case "<":
		return CompareVersions(p.Version, a.Version) < 0
	case "<=":
		return CompareVersions(p.Version, a.Version) <= 0
	case ">":
		return CompareVersions(p.Version, a.Version) > 0
	case ">=":
		return CompareVersions(p.Version, a.Version) >= 0
	}
	return false
}

func stripRevision(v string) string {
	if i := strings.LastIndex(v, "-r"); i != -1 && IsVersion(v[:i]) {
		return v[:i]
	}
	return v
}
