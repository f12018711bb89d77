// Package ebuild implements the small slice of the ebuild repository domain
// model that pkgdev needs: atom parsing and matching, version comparison,
// keyword handling and a read-only repository metadata reader.
//
// It is deliberately not a package manager. Dependency strings are scanned
// for the atoms they mention, not resolved; USE conditionals and slot
// operators are ignored. The repository reader prefers metadata/md5-cache
// entries and falls back to scraping plain variable assignments out of
// ebuilds for repositories (and test fixtures) without a cache.
package ebuild
