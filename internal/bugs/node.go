package bugs

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"pkgdev/internal/bugzilla"
	"pkgdev/internal/ebuild"
)

const (
	bugProduct   = "Gentoo Linux"
	bugComponent = "Stabilization"
	bugSeverity  = "enhancement"
	bugVersion   = "unspecified"

	maintainerNeeded = "maintainer-needed@gentoo.org"

	// summaries longer than this collapse to "<first> and friends"
	summaryLimit = 90
)

// PackageKeywords pairs one package version with the keyword set it should
// be stabilized on. The set mutates during graph build and cleanup.
type PackageKeywords struct {
	Pkg      *ebuild.Package
	Keywords map[string]struct{}
}

// GraphNode is one unit of stabilization work: the packages that will become
// a single Bugzilla bug. Identity is pointer identity; two nodes with equal
// contents are still distinct until explicitly merged.
type GraphNode struct {
	Pkgs  []PackageKeywords
	Edges map[*GraphNode]struct{}

	// BugNo is zero until the bug is filed or discovered on the tracker.
	BugNo int
	// Summary overrides the computed bug summary when set via import.
	Summary string
	// CCArches, when non-nil, overrides the ShouldCCArches computation.
	CCArches *bool
}

// NewGraphNode constructs a node over the given pairs. A non-zero bugno
// marks a placeholder for an already-filed external bug.
func NewGraphNode(pkgs []PackageKeywords, bugno int) *GraphNode {
	return &GraphNode{
		Pkgs:  pkgs,
		Edges: make(map[*GraphNode]struct{}),
		BugNo: bugno,
	}
}

func (n *GraphNode) String() string {
	if len(n.Pkgs) == 0 && n.BugNo != 0 {
		return fmt.Sprintf("bug #%d", n.BugNo)
	}
	atoms := make([]string, len(n.Pkgs))
	for i, pk := range n.Pkgs {
		atoms[i] = pk.Pkg.VersionedAtom().String()
	}
	return strings.Join(atoms, ", ")
}

// Lines renders one stabilization-field line per package:
// "<versioned-atom> <sorted keywords>".
func (n *GraphNode) Lines() []string {
	lines := make([]string, len(n.Pkgs))
	for i, pk := range n.Pkgs {
		lines[i] = pk.Pkg.VersionedAtom().String() + " " + strings.Join(keywordSlice(pk.Keywords), " ")
	}
	return lines
}

// dotName is the node identifier used in dot output: the bug number when
// filed, the first versioned atom otherwise.
func (n *GraphNode) dotName() string {
	if n.BugNo != 0 {
		return fmt.Sprintf("bug_%d", n.BugNo)
	}
	return fmt.Sprintf("%q", n.Pkgs[0].Pkg.VersionedAtom().String())
}

// SuggestedKeywords computes the default stabilization keywords for a
// package: arches where an older version is already stable, limited to the
// arches this version is currently testing on. Rare platform-arch keywords
// (containing a hyphen) are never suggested.
func SuggestedKeywords(res Resolver, pkg *ebuild.Package) map[string]struct{} {
	stable := make(map[string]struct{})
	for _, pkgver := range res.Match(pkg.UnversionedAtom()) {
		for _, kw := range pkgver.Keywords {
			if ebuild.KeywordStable(kw) {
				stable[kw] = struct{}{}
			}
		}
	}

	suggested := make(map[string]struct{})
	for _, kw := range pkg.Keywords {
		if !ebuild.KeywordTesting(kw) {
			continue
		}
		arch := ebuild.KeywordArch(kw)
		if strings.Contains(arch, "-") {
			continue
		}
		if _, ok := stable[arch]; ok {
			suggested[arch] = struct{}{}
		}
	}
	return suggested
}

// CleanupKeywords is a display/editing pass over the node's pairs:
// consecutive duplicate keyword sets collapse to "^" and sets equal to the
// computed suggestion collapse to "*". It mutates in place and is
// idempotent.
func (n *GraphNode) CleanupKeywords(res Resolver) {
	previous := map[string]struct{}{}
	for _, pk := range n.Pkgs {
		if keywordSetsEqual(pk.Keywords, previous) {
			clearSet(pk.Keywords)
			pk.Keywords["^"] = struct{}{}
		} else {
			previous = copySet(pk.Keywords)
		}
	}

	for _, pk := range n.Pkgs {
		suggested := SuggestedKeywords(res, pk.Pkg)
		if len(suggested) > 0 && keywordSetsEqual(pk.Keywords, suggested) {
			clearSet(pk.Keywords)
			pk.Keywords["*"] = struct{}{}
		}
	}
}

// BugSummary returns the explicit summary when one was imported, the
// comma-joined atom listing otherwise, collapsed to "<first> and friends"
// when over length for multi-package nodes.
func (n *GraphNode) BugSummary() string {
	if n.Summary != "" {
		return n.Summary
	}
	atoms := make([]string, len(n.Pkgs))
	for i, pk := range n.Pkgs {
		atoms[i] = pk.Pkg.CPV()
	}
	summary := strings.Join(atoms, ", ") + ": stablereq"
	if len(summary) > summaryLimit && len(n.Pkgs) > 1 {
		return n.Pkgs[0].Pkg.CPV() + " and friends: stablereq"
	}
	return summary
}

// MaintainerEmails returns the node's maintainer addresses deduplicated in
// order of first appearance.
func (n *GraphNode) MaintainerEmails() []string {
	var emails []string
	seen := make(map[string]struct{})
	for _, pk := range n.Pkgs {
		for _, m := range pk.Pkg.Maintainers {
			if _, dup := seen[m.Email]; dup {
				continue
			}
			seen[m.Email] = struct{}{}
			emails = append(emails, m.Email)
		}
	}
	return emails
}

// ShouldCCArches decides whether the arch teams get CC'd: always for
// maintainer-needed packages, when the "*" wildcard is configured, or when
// any maintainer matches the configured auto-CC set. An explicit per-node
// override takes precedence.
func (n *GraphNode) ShouldCCArches(autoCC map[string]struct{}) bool {
	if n.CCArches != nil {
		return *n.CCArches
	}
	emails := n.MaintainerEmails()
	if len(emails) == 0 {
		return true
	}
	if _, ok := autoCC["*"]; ok {
		return true
	}
	for _, email := range emails {
		if _, ok := autoCC[email]; ok {
			return true
		}
	}
	return false
}

// fileBug submits this node to the tracker and records the returned id.
// Already-filed nodes return immediately without a network call. All edge
// targets must already be filed; the graph's topological filing order
// guarantees that.
func (n *GraphNode) fileBug(tracker Tracker, autoCC map[string]struct{}, blocks []int, hist History, observer func(*GraphNode)) (int, error) {
	if n.BugNo != 0 {
		return n.BugNo, nil
	}

	dependsOn := make([]int, 0, len(n.Edges))
	for dep := range n.Edges {
		if dep.BugNo == 0 {
			return 0, fmt.Errorf("dependency %s of %s is not filed yet", dep, n)
		}
		dependsOn = append(dependsOn, dep.BugNo)
	}
	sort.Ints(dependsOn)

	var keywords []string
	if n.ShouldCCArches(autoCC) {
		keywords = []string{"CC-ARCHES"}
	}

	maintainers := n.MaintainerEmails()
	if len(maintainers) == 0 {
		maintainers = []string{maintainerNeeded}
	}

	bugno, err := tracker.CreateBug(bugzilla.CreateRequest{
		Product:            bugProduct,
		Component:          bugComponent,
		Severity:           bugSeverity,
		Version:            bugVersion,
		Summary:            n.BugSummary(),
		Description:        n.description(hist),
		Keywords:           keywords,
		StabilisationAtoms: strings.Join(n.Lines(), "\n"),
		AssignedTo:         maintainers[0],
		CC:                 maintainers[1:],
		DependsOn:          dependsOn,
		Blocks:             blocks,
	})
	if err != nil {
		return 0, err
	}
	n.BugNo = bugno
	if observer != nil {
		observer(n)
	}
	return bugno, nil
}

// description builds the advisory bug text: per-package age lines when a
// history index is available.
func (n *GraphNode) description(hist History) string {
	lines := []string{"Please stabilize", ""}
	if hist != nil {
		for _, pk := range n.Pkgs {
			modified, ok := hist.LastModified(pk.Pkg.VersionedAtom())
			if !ok {
				continue
			}
			days := int(time.Since(modified).Hours() / 24)
			lines = append(lines, fmt.Sprintf(" %s: no change for %d days, since %s",
				pk.Pkg.CPV(), days, modified.Format("2006-01-02")))
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func keywordSet(kws []string) map[string]struct{} {
	set := make(map[string]struct{}, len(kws))
	for _, kw := range kws {
		set[kw] = struct{}{}
	}
	return set
}

func keywordSlice(set map[string]struct{}) []string {
	kws := make([]string, 0, len(set))
	for kw := range set {
		kws = append(kws, kw)
	}
	return ebuild.SortKeywords(kws)
}

func keywordSetsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for kw := range a {
		if _, ok := b[kw]; !ok {
			return false
		}
	}
	return true
}

func copySet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for kw := range set {
		out[kw] = struct{}{}
	}
	return out
}

func clearSet(set map[string]struct{}) {
	for kw := range set {
		delete(set, kw)
	}
}
