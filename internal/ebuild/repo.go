package ebuild

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"pkgdev/pkg/logging"
)

// Repo reads package metadata from an ebuild repository checkout. The
// metadata/md5-cache tree is used when present; otherwise variables are
// scraped directly from the ebuilds, which is enough for the assignment-only
// style used across the tree.
type Repo struct {
	Location string
	name     string

	pkgs        map[string][]*Package  // key "cat/pkg" -> versions ascending
	maintainers map[string][]Maintainer
}

var depVars = []string{"DEPEND", "RDEPEND", "BDEPEND", "PDEPEND", "IDEPEND"}

// OpenRepo opens the ebuild repository rooted at location.
func OpenRepo(location string) (*Repo, error) {
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(abs, "profiles")); err != nil {
		return nil, fmt.Errorf("not an ebuild repository: %s", abs)
	}
	r := &Repo{
		Location:    abs,
		pkgs:        make(map[string][]*Package),
		maintainers: make(map[string][]Maintainer),
	}
	if data, err := os.ReadFile(filepath.Join(abs, "profiles", "repo_name")); err == nil {
		r.name = strings.TrimSpace(string(data))
	}
	return r, nil
}

// Name returns the repository name from profiles/repo_name, or the base
// directory name when that file is absent.
func (r *Repo) Name() string {
	if r.name != "" {
		return r.name
	}
	return filepath.Base(r.Location)
}

// Match returns all package versions satisfying the restriction, sorted
// ascending by version.
func (r *Repo) Match(a Atom) []*Package {
	all := r.versions(a.Key())
	var out []*Package
	for _, p := range all {
		if a.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// MatchLatest returns the highest version satisfying the restriction, or nil.
func (r *Repo) MatchLatest(a Atom) *Package {
	matches := r.Match(a)
	if len(matches) == 0 {
		return nil
	}
	return matches[len(matches)-1]
}

// versions loads (and caches) every version of the given cat/pkg key.
func (r *Repo) versions(key string) []*Package {
	if pkgs, ok := r.pkgs[key]; ok {
		return pkgs
	}
	cat, name, ok := strings.Cut(key, "/")
	if !ok {
		return nil
	}

	pkgs := r.loadFromCache(cat, name)
	if pkgs == nil {
		pkgs = r.loadFromEbuilds(cat, name)
	}
	maintainers := r.maintainersOf(key)
	for _, p := range pkgs {
		p.Maintainers = maintainers
	}
	SortPackages(pkgs)
	r.pkgs[key] = pkgs
	return pkgs
}

func (r *Repo) loadFromCache(cat, name string) []*Package {
	dir := filepath.Join(r.Location, "metadata", "md5-cache", cat)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var pkgs []*Package
	for _, e := range entries {
		ver, ok := cutVersionSuffix(e.Name(), name)
		if !ok {
			continue
		}
		vars, err := readCacheFile(filepath.Join(dir, e.Name()))
		if err != nil {
			logging.Warn("Repo", "skipping unreadable cache entry %s/%s: %v", cat, e.Name(), err)
			continue
		}
		pkgs = append(pkgs, newPackage(cat, name, ver, vars))
	}
	return pkgs
}

func (r *Repo) loadFromEbuilds(cat, name string) []*Package {
	dir := filepath.Join(r.Location, cat, name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var pkgs []*Package
	for _, e := range entries {
		base, isEbuild := strings.CutSuffix(e.Name(), ".ebuild")
		if !isEbuild {
			continue
		}
		ver, ok := cutVersionSuffix(base, name)
		if !ok {
			continue
		}
		vars, err := scrapeEbuildVars(filepath.Join(dir, e.Name()))
		if err != nil {
			logging.Warn("Repo", "skipping unreadable ebuild %s/%s: %v", cat, e.Name(), err)
			continue
		}
		pkgs = append(pkgs, newPackage(cat, name, ver, vars))
	}
	return pkgs
}

func newPackage(cat, name, ver string, vars map[string]string) *Package {
	p := &Package{
		Category:   cat,
		Name:       name,
		Version:    ver,
		EAPI:       vars["EAPI"],
		Slot:       vars["SLOT"],
		DepStrings: make(map[string]string),
	}
	if p.EAPI == "" {
		p.EAPI = "0"
	}
	if kw := vars["KEYWORDS"]; kw != "" {
		p.Keywords = strings.Fields(kw)
	}
	if props := vars["PROPERTIES"]; props != "" {
		p.Properties = strings.Fields(props)
	}
	for _, dep := range depVars {
		if v := vars[dep]; v != "" {
			p.DepStrings[dep] = v
		}
	}
	return p
}

// cutVersionSuffix splits "pkg-1.2.3" into its version when the name part
// matches exactly.
func cutVersionSuffix(s, name string) (string, bool) {
	rest, ok := strings.CutPrefix(s, name+"-")
	if !ok || !IsVersion(rest) {
		return "", false
	}
	return rest, true
}

// readCacheFile parses a metadata/md5-cache entry (KEY=value per line).
func readCacheFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if key, value, ok := strings.Cut(scanner.Text(), "="); ok {
			vars[key] = value
		}
	}
	return vars, scanner.Err()
}

var ebuildVarRe = regexp.MustCompile(`^(EAPI|SLOT|KEYWORDS|PROPERTIES|DEPEND|RDEPEND|BDEPEND|PDEPEND|IDEPEND)=(.*)$`)

// scrapeEbuildVars pulls simple single-line variable assignments out of an
// ebuild. Continuation lines and computed values are not supported; repos
// with such ebuilds are expected to carry an md5 cache.
func scrapeEbuildVars(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vars := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := ebuildVarRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		vars[m[1]] = strings.Trim(m[2], `"'`)
	}
	return vars, scanner.Err()
}

// maintainersOf reads (and caches) the metadata.xml maintainer list for a
// cat/pkg key.
func (r *Repo) maintainersOf(key string) []Maintainer {
	if m, ok := r.maintainers[key]; ok {
		return m
	}
	m, err := readMetadataXML(filepath.Join(r.Location, key, "metadata.xml"))
	if err != nil {
		logging.Warn("Repo", "bad metadata.xml for %s: %v", key, err)
	}
	r.maintainers[key] = m
	return m
}

// Keys walks the repository and returns every cat/pkg key. Categories come
// from profiles/categories when present, directory scanning otherwise.
func (r *Repo) Keys() []string {
	var keys []string
	for _, cat := range r.categories() {
		entries, err := os.ReadDir(filepath.Join(r.Location, cat))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				keys = append(keys, cat+"/"+e.Name())
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func (r *Repo) categories() []string {
	if data, err := os.ReadFile(filepath.Join(r.Location, "profiles", "categories")); err == nil {
		return strings.Fields(string(data))
	}
	entries, err := os.ReadDir(r.Location)
	if err != nil {
		return nil
	}
	var cats []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		switch e.Name() {
		case "profiles", "metadata", "eclass", "licenses", "scripts", ".git":
			continue
		}
		cats = append(cats, e.Name())
	}
	return cats
}

// Arches returns the arch list from profiles/arch.list.
func (r *Repo) Arches() []string {
	data, err := os.ReadFile(filepath.Join(r.Location, "profiles", "arch.list"))
	if err != nil {
		return nil
	}
	var arches []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			arches = append(arches, line)
		}
	}
	return arches
}

// StabilizationGroups reads metadata/stabilization-groups/: each file is a
// named group holding one package atom per line.
func (r *Repo) StabilizationGroups() map[string][]Atom {
	groups := make(map[string][]Atom)
	root := filepath.Join(r.Location, "metadata", "stabilization-groups")
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		var atoms []Atom
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			a, err := ParseUserAtom(line)
			if err != nil {
				logging.Warn("Repo", "stabilization group %s: %v", rel, err)
				continue
			}
			atoms = append(atoms, a)
		}
		if len(atoms) > 0 {
			groups[rel] = atoms
		}
		return nil
	})
	return groups
}

// MaintainedBy returns the keys of packages whose metadata.xml lists any of
// the given maintainer emails.
func (r *Repo) MaintainedBy(emails map[string]struct{}) []string {
	var keys []string
	for _, key := range r.Keys() {
		for _, m := range r.maintainersOf(key) {
			if _, ok := emails[m.Email]; ok {
				keys = append(keys, key)
				break
			}
		}
	}
	return keys
}

// PathRestrict maps a path inside the repository to a package restriction:
// an ebuild file maps to its exact version, a package directory to the
// unversioned atom.
func (r *Repo) PathRestrict(path string) (Atom, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Atom{}, err
	}
	rel, err := filepath.Rel(r.Location, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Atom{}, fmt.Errorf("%s is not inside repository %s", path, r.Location)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch {
	case len(parts) >= 3 && strings.HasSuffix(parts[2], ".ebuild"):
		base := strings.TrimSuffix(parts[2], ".ebuild")
		ver, ok := cutVersionSuffix(base, parts[1])
		if !ok {
			return Atom{}, fmt.Errorf("malformed ebuild name: %s", parts[2])
		}
		return Atom{Op: "=", Category: parts[0], Package: parts[1], Version: ver}, nil
	case len(parts) >= 2:
		return Atom{Category: parts[0], Package: parts[1]}, nil
	default:
		return Atom{}, fmt.Errorf("not in a package directory: %s", path)
	}
}
