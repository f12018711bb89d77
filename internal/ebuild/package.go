package ebuild

import (
	"sort"
	"strings"
)

// Maintainer is a package maintainer entry from metadata.xml.
type Maintainer struct {
	Email string
	Name  string
}

// Package is one concrete package version as described by the repository
// metadata cache.
type Package struct {
	Category string
	Name     string
	Version  string

	EAPI        string
	Slot        string
	Keywords    []string
	Properties  []string
	Maintainers []Maintainer

	// DepStrings holds the raw dependency variables keyed by their metadata
	// name (DEPEND, RDEPEND, BDEPEND, PDEPEND, IDEPEND).
	DepStrings map[string]string
}

// Key returns the unversioned "category/package" form.
func (p *Package) Key() string {
	return p.Category + "/" + p.Name
}

// CPV returns the "category/package-version" form.
func (p *Package) CPV() string {
	return p.Key() + "-" + p.Version
}

// VersionedAtom returns an exact-version restriction for this package.
func (p *Package) VersionedAtom() Atom {
	return Atom{Op: "=", Category: p.Category, Package: p.Name, Version: p.Version}
}

// UnversionedAtom returns the bare category/package restriction.
func (p *Package) UnversionedAtom() Atom {
	return Atom{Category: p.Category, Package: p.Name}
}

// Live reports whether this is a VCS-snapshot package.
func (p *Package) Live() bool {
	for _, prop := range p.Properties {
		if prop == "live" {
			return true
		}
	}
	// -9999 convention as a fallback for repos without PROPERTIES metadata
	return strings.HasSuffix(p.Version, "9999")
}

// HasStableKeyword reports whether any arch keyword is stable.
func (p *Package) HasStableKeyword() bool {
	for _, kw := range p.Keywords {
		if KeywordStable(kw) {
			return true
		}
	}
	return false
}

// SortPackages orders packages ascending by category, name and version.
func SortPackages(pkgs []*Package) {
	sort.SliceStable(pkgs, func(i, j int) bool {
		if pkgs[i].Category != pkgs[j].Category {
			return pkgs[i].Category < pkgs[j].Category
		}
		if pkgs[i].Name != pkgs[j].Name {
			return pkgs[i].Name < pkgs[j].Name
		}
		return CompareVersions(pkgs[i].Version, pkgs[j].Version) < 0
	})
}
