package bugs

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"pkgdev/internal/ebuild"
	"pkgdev/pkg/logging"
)

// DependencyGraph owns the node set and drives the whole workflow: worklist
// construction through the visibility checker, canonicalizing merges, and
// dependency-ordered filing against the tracker.
type DependencyGraph struct {
	resolver Resolver
	checker  VisibilityChecker
	history  History
	out      io.Writer

	// AutoCCArches is the set of maintainer emails that opt their packages
	// into CC-ARCHES; "*" matches everyone.
	AutoCCArches map[string]struct{}

	Nodes         map[*GraphNode]struct{}
	StartingNodes map[*GraphNode]struct{}
	Targets       []*ebuild.Package
}

// NewDependencyGraph assembles a graph over the given collaborators. history
// may be nil; progress output goes to out.
func NewDependencyGraph(resolver Resolver, checker VisibilityChecker, history History, out io.Writer) *DependencyGraph {
	return &DependencyGraph{
		resolver:      resolver,
		checker:       checker,
		history:       history,
		out:           out,
		AutoCCArches:  make(map[string]struct{}),
		Nodes:         make(map[*GraphNode]struct{}),
		StartingNodes: make(map[*GraphNode]struct{}),
	}
}

// LoadTargets resolves the user-supplied restrictions to concrete packages.
// Any restriction without a repository match is fatal.
func (g *DependencyGraph) LoadTargets(restricts []ebuild.Atom) error {
	var targets []*ebuild.Package
	for _, restrict := range restricts {
		pool := g.resolver.Match(restrict.Unversioned())
		match, err := g.FindBestMatch([]ebuild.Atom{restrict}, pool, false)
		if err != nil {
			return fmt.Errorf("restriction %s has no match in repository", restrict)
		}
		targets = append(targets, match)
	}
	g.Targets = targets
	return nil
}

// FindBestMatch picks the concrete package a set of dependency restrictions
// should converge on. Preference order: a package among the command-line
// targets, then a package already in the graph, then the highest pool match
// that is not purely ~-keyworded (when preferSemiStable), then the highest
// keyworded match, then the highest match outright. Live packages are never
// candidates.
func (g *DependencyGraph) FindBestMatch(restricts []ebuild.Atom, pool []*ebuild.Package, preferSemiStable bool) (*ebuild.Package, error) {
	matches := func(p *ebuild.Package) bool {
		if p.Live() {
			return false
		}
		for _, r := range restricts {
			if !r.Match(p) {
				return false
			}
		}
		return true
	}

	if best := maxPackage(filterPackages(g.Targets, matches)); best != nil {
		return best, nil
	}

	var graphPkgs []*ebuild.Package
	for node := range g.Nodes {
		for _, pk := range node.Pkgs {
			graphPkgs = append(graphPkgs, pk.Pkg)
		}
	}
	if best := maxPackage(filterPackages(graphPkgs, matches)); best != nil {
		return best, nil
	}

	candidates := filterPackages(pool, matches)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("unable to find match for restrictions: %s", atomsJoin(restricts))
	}
	ebuild.SortPackages(candidates)

	if preferSemiStable {
		for i := len(candidates) - 1; i >= 0; i-- {
			if candidates[i].HasStableKeyword() {
				return candidates[i], nil
			}
		}
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if len(candidates[i].Keywords) > 0 {
			return candidates[i], nil
		}
	}
	return candidates[len(candidates)-1], nil
}

type workItem struct {
	pkg      *ebuild.Package
	keywords map[string]struct{}
	reason   string
}

// BuildFullGraph expands outward from the targets: each popped package gets
// its required keywords computed (explicit request plus suggestion), becomes
// a node, and every unsolvable-dependency diagnostic enqueues the implicated
// dependency with an edge back from the originating package.
func (g *DependencyGraph) BuildFullGraph() error {
	queue := make([]workItem, 0, len(g.Targets))
	for _, pkg := range g.Targets {
		queue = append(queue, workItem{pkg: pkg, keywords: make(map[string]struct{})})
	}

	vertices := make(map[string]*GraphNode) // keyed by CPV
	type edge struct{ src, dst string }
	var edges []edge

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		cpv := item.pkg.CPV()

		if node, known := vertices[cpv]; known {
			// diamond dependency: merge the new requirement, do not re-expand
			for kw := range item.keywords {
				node.Pkgs[0].Keywords[kw] = struct{}{}
			}
			continue
		}

		hasStable := item.pkg.HasStableKeyword()
		for kw := range SuggestedKeywords(g.resolver, item.pkg) {
			item.keywords[kw] = struct{}{}
		}
		if hasStable && len(item.keywords) == 0 {
			fmt.Fprintf(g.out, "Nothing to stable for %s\n", item.pkg.Key())
			continue
		}
		if len(item.keywords) == 0 {
			return fmt.Errorf("no keywords to stabilize %s on, scenario currently unsupported", item.pkg.CPV())
		}

		node := NewGraphNode([]PackageKeywords{{Pkg: item.pkg, Keywords: item.keywords}}, 0)
		g.Nodes[node] = struct{}{}
		vertices[cpv] = node

		reason := ""
		if item.reason != "" {
			reason = fmt.Sprintf(" [added for %s]", item.reason)
		}
		fmt.Fprintf(g.out, "Checking %s on %q%s\n",
			item.pkg.VersionedAtom(), strings.Join(keywordSlice(item.keywords), " "), reason)

		deps, err := g.findDependencies(item.pkg, item.keywords)
		if err != nil {
			return err
		}
		for _, dep := range deps {
			edges = append(edges, edge{src: cpv, dst: dep.pkg.CPV()})
			queue = append(queue, workItem{
				pkg:      dep.pkg,
				keywords: dep.keywords,
				reason:   item.pkg.VersionedAtom().String(),
			})
		}
	}

	for _, e := range edges {
		if src, dst := vertices[e.src], vertices[e.dst]; src != nil && dst != nil && src != dst {
			src.Edges[dst] = struct{}{}
		}
	}
	for _, target := range g.Targets {
		if node, ok := vertices[target.CPV()]; ok {
			g.StartingNodes[node] = struct{}{}
		}
	}
	return nil
}

type depRequirement struct {
	pkg      *ebuild.Package
	keywords map[string]struct{}
}

// findDependencies runs the visibility checker for the package fabricated
// with the candidate keywords and resolves each offending dependency to the
// best concrete package.
func (g *DependencyGraph) findDependencies(pkg *ebuild.Package, keywords map[string]struct{}) ([]depRequirement, error) {
	diags := g.checker.Check(pkg, keywordSlice(keywords))

	// group restrictions by dependency key, then by implicated keyword
	issues := make(map[string]map[string][]ebuild.Atom)
	for _, diag := range diags {
		arch := strings.TrimPrefix(diag.Keyword, "~")
		for _, dep := range diag.Deps {
			key := dep.Key()
			if issues[key] == nil {
				issues[key] = make(map[string][]ebuild.Atom)
			}
			issues[key][arch] = append(issues[key][arch], dep)
		}
	}

	keys := make([]string, 0, len(issues))
	for key := range issues {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []depRequirement
	for _, key := range keys {
		problems := issues[key]
		keyAtom, err := ebuild.ParseAtom(key)
		if err != nil {
			return nil, err
		}
		pool := g.resolver.Match(keyAtom)

		var all []ebuild.Atom
		archSet := make(map[string]struct{})
		for arch, deps := range problems {
			all = append(all, deps...)
			archSet[arch] = struct{}{}
		}
		if match, err := g.FindBestMatch(dedupeAtoms(all), pool, true); err == nil {
			out = append(out, depRequirement{pkg: match, keywords: archSet})
			continue
		}

		// no single version satisfies every keyword's restrictions at once;
		// fall back to one match per keyword
		perMatch := make(map[*ebuild.Package]map[string]struct{})
		arches := make([]string, 0, len(problems))
		for arch := range problems {
			arches = append(arches, arch)
		}
		sort.Strings(arches)
		for _, arch := range arches {
			match, err := g.FindBestMatch(dedupeAtoms(problems[arch]), pool, true)
			if err != nil {
				return nil, err
			}
			if perMatch[match] == nil {
				perMatch[match] = make(map[string]struct{})
			}
			perMatch[match][arch] = struct{}{}
		}
		for match, archs := range perMatch {
			out = append(out, depRequirement{pkg: match, keywords: archs})
		}
	}
	return out, nil
}

// MergeNodes replaces the given nodes with a single node carrying the union
// of their package pairs and outgoing edges (self-references excluded), and
// rewrites every other node's edges onto the merged node. Starting status is
// preserved.
func (g *DependencyGraph) MergeNodes(nodes []*GraphNode) *GraphNode {
	merged := make(map[*GraphNode]struct{}, len(nodes))
	for _, n := range nodes {
		merged[n] = struct{}{}
	}

	isStart := false
	for _, n := range nodes {
		if _, ok := g.StartingNodes[n]; ok {
			isStart = true
		}
		delete(g.Nodes, n)
		delete(g.StartingNodes, n)
	}

	var pkgs []PackageKeywords
	for _, n := range nodes {
		pkgs = append(pkgs, n.Pkgs...)
	}
	newNode := NewGraphNode(pkgs, 0)

	for _, n := range nodes {
		for dep := range n.Edges {
			if _, self := merged[dep]; !self {
				newNode.Edges[dep] = struct{}{}
			}
		}
	}

	for node := range g.Nodes {
		rewritten := false
		for dep := range node.Edges {
			if _, ok := merged[dep]; ok {
				delete(node.Edges, dep)
				rewritten = true
			}
		}
		if rewritten {
			node.Edges[newNode] = struct{}{}
		}
	}

	g.Nodes[newNode] = struct{}{}
	if isStart {
		g.StartingNodes[newNode] = struct{}{}
	}
	return newNode
}

// findCycle walks depth-first from the last stack entry and returns the
// first cycle found as the path segment from the repeated node to itself.
// Membership is checked against the current path, not a visited set: a node
// reached twice over different paths is not a cycle.
func findCycle(stack []*GraphNode) []*GraphNode {
	node := stack[len(stack)-1]
	for _, dep := range sortedNodes(node.Edges) {
		for i, onPath := range stack {
			if onPath == dep {
				return append([]*GraphNode{}, stack[i:]...)
			}
		}
		if cycle := findCycle(append(stack, dep)); len(cycle) > 0 {
			return cycle
		}
	}
	return nil
}

// MergeCycles eliminates directed cycles reachable from the starting nodes
// by merging each cycle's node set, iterating to a fixed point. Filing
// requires an acyclic graph, and this pass is the sole cycle-breaking
// mechanism.
func (g *DependencyGraph) MergeCycles() {
	remaining := make(map[*GraphNode]struct{}, len(g.StartingNodes))
	for n := range g.StartingNodes {
		remaining[n] = struct{}{}
	}
	for len(remaining) > 0 {
		start := sortedNodes(remaining)[0]
		delete(remaining, start)
		for {
			cycle := findCycle([]*GraphNode{start})
			if len(cycle) == 0 {
				break
			}
			names := make([]string, len(cycle))
			for i, n := range cycle {
				names[i] = n.String()
			}
			fmt.Fprintf(g.out, "Found cycle: %s\n", strings.Join(names, " -> "))
			for _, n := range cycle {
				delete(remaining, n)
			}
			newNode := g.MergeNodes(cycle)
			if _, alive := g.Nodes[start]; !alive {
				start = newNode
			}
		}
	}
}

// MergeNewKeywordsChildren folds a node into its single parent when the
// node's requested keywords are entirely new, i.e. no tracked version of its
// packages carries any of them yet: a dependency introduced purely for the
// parent's stabilization should not become its own bug. Runs to a fixed
// point.
func (g *DependencyGraph) MergeNewKeywordsChildren() {
	for {
		reverse := make(map[*GraphNode]map[*GraphNode]struct{})
		for node := range g.Nodes {
			for dep := range node.Edges {
				if reverse[dep] == nil {
					reverse[dep] = make(map[*GraphNode]struct{})
				}
				reverse[dep][node] = struct{}{}
			}
		}

		mergedSomeone := false
		for _, node := range sortedNodes(g.Nodes) {
			parents := reverse[node]
			if len(parents) != 1 {
				continue
			}
			if !g.keywordsAllNew(node) {
				continue
			}
			parent := sortedNodes(parents)[0]
			fmt.Fprintf(g.out, "Merging %s into %s\n", node, parent)
			g.MergeNodes([]*GraphNode{parent, node})
			mergedSomeone = true
			break
		}
		if !mergedSomeone {
			return
		}
	}
}

// keywordsAllNew reports whether none of the node's requested keywords
// appear on any tracked version of its packages.
func (g *DependencyGraph) keywordsAllNew(node *GraphNode) bool {
	existing := make(map[string]struct{})
	for _, pk := range node.Pkgs {
		for _, pkgver := range g.resolver.Match(pk.Pkg.UnversionedAtom()) {
			for _, kw := range pkgver.Keywords {
				existing[kw] = struct{}{}
			}
		}
	}
	for _, pk := range node.Pkgs {
		for kw := range pk.Keywords {
			if _, ok := existing[kw]; ok {
				return false
			}
		}
	}
	return true
}

// MergeStabilizationGroups merges nodes whose packages fall into the same
// configured stabilization group, so pre-declared related packages end up in
// one bug regardless of dependency-derived clustering.
func (g *DependencyGraph) MergeStabilizationGroups() {
	groups := g.resolver.StabilizationGroups()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		atoms := groups[name]
		var mergable []*GraphNode
		for _, node := range sortedNodes(g.Nodes) {
			if nodeMatchesAny(node, atoms) {
				mergable = append(mergable, node)
			}
		}
		if len(mergable) > 1 {
			names := make([]string, len(mergable))
			for i, n := range mergable {
				names[i] = n.String()
			}
			fmt.Fprintf(g.out, "Merging @%s group nodes: %s\n", name, strings.Join(names, "; "))
			g.MergeNodes(mergable)
		}
	}
}

// Canonicalize runs the merge passes in the order filing depends on.
// Stabilization groups go first: a group whose members sit at both ends of
// a dependency chain turns that chain into a cycle when merged, so the
// cycle pass must run after it. New-keyword child folding runs last over
// the already-acyclic graph.
func (g *DependencyGraph) Canonicalize() {
	g.MergeStabilizationGroups()
	g.MergeCycles()
	g.MergeNewKeywordsChildren()
}

// ScanExistingBugs queries the tracker for open stabilization bugs touching
// any package in the graph and marks unfiled nodes whose every package is
// covered by a found bug's atom list, avoiding duplicate filings.
func (g *DependencyGraph) ScanExistingBugs(tracker Tracker) error {
	wordSet := make(map[string]struct{})
	for node := range g.Nodes {
		for _, pk := range node.Pkgs {
			wordSet[pk.Pkg.Key()] = struct{}{}
		}
	}
	words := make([]string, 0, len(wordSet))
	for w := range wordSet {
		words = append(words, w)
	}
	sort.Strings(words)

	found, err := tracker.SearchStabilizationBugs(bugComponent, words)
	if err != nil {
		return err
	}

	for _, bug := range found {
		bugKeys := make(map[string]struct{})
		for _, line := range strings.Split(bug.StabilisationAtoms, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			word, _, _ := strings.Cut(line, " ")
			if a, err := ebuild.ParseUserAtom(word); err == nil {
				bugKeys[a.Key()] = struct{}{}
			}
		}
		for _, node := range sortedNodes(g.Nodes) {
			if node.BugNo != 0 || len(node.Pkgs) == 0 {
				continue
			}
			covered := true
			for _, pk := range node.Pkgs {
				if _, ok := bugKeys[pk.Pkg.Key()]; !ok {
					covered = false
					break
				}
			}
			if covered {
				node.BugNo = bug.ID
				fmt.Fprintf(g.out, "Found https://bugs.gentoo.org/%d for node %s\n", bug.ID, node)
				fmt.Fprintf(g.out, " -> bug summary: %s\n", bug.Summary)
				break
			}
		}
	}
	return nil
}

// FileBugs walks the starting nodes' dependency closure in post-order,
// dependencies strictly before dependents, filing each unfiled node. The
// extra blocking bug ids apply only to the starting nodes themselves. A
// tracker failure aborts the sequence; nodes filed before the failure keep
// their ids.
func (g *DependencyGraph) FileBugs(tracker Tracker, blocks []int, observer func(*GraphNode)) error {
	for _, node := range g.fileOrder() {
		nodeBlocks := []int(nil)
		if _, isStart := g.StartingNodes[node]; isStart {
			nodeBlocks = blocks
		}
		if _, err := node.fileBug(tracker, g.AutoCCArches, nodeBlocks, g.history, observer); err != nil {
			return err
		}
	}
	return nil
}

// fileOrder computes a post-order traversal from the starting nodes. The
// graph must be acyclic by the time this runs (MergeCycles guarantees it).
func (g *DependencyGraph) fileOrder() []*GraphNode {
	var order []*GraphNode
	visited := make(map[*GraphNode]struct{})
	var visit func(*GraphNode)
	visit = func(n *GraphNode) {
		if _, done := visited[n]; done {
			return
		}
		visited[n] = struct{}{}
		for _, dep := range sortedNodes(n.Edges) {
			visit(dep)
		}
		order = append(order, n)
	}
	for _, n := range sortedNodes(g.StartingNodes) {
		visit(n)
	}
	return order
}

// SetStartingNodes overrides the filing entry points, for callers that know
// better than the computed roots.
func (g *DependencyGraph) SetStartingNodes(nodes []*GraphNode) {
	g.StartingNodes = make(map[*GraphNode]struct{}, len(nodes))
	for _, n := range nodes {
		g.StartingNodes[n] = struct{}{}
	}
}

// SortedNodes returns the graph's nodes in deterministic display order.
func (g *DependencyGraph) SortedNodes() []*GraphNode {
	return sortedNodes(g.Nodes)
}

// UnfiledCount returns how many live nodes still need a bug.
func (g *DependencyGraph) UnfiledCount() int {
	count := 0
	for node := range g.Nodes {
		if node.BugNo == 0 {
			count++
		}
	}
	return count
}

// CleanupKeywords runs the display cleanup pass over every node.
func (g *DependencyGraph) CleanupKeywords() {
	for node := range g.Nodes {
		node.CleanupKeywords(g.resolver)
	}
	logging.Debug("Graph", "keyword cleanup pass over %d nodes", len(g.Nodes))
}

func nodeMatchesAny(node *GraphNode, atoms []ebuild.Atom) bool {
	for _, pk := range node.Pkgs {
		for _, a := range atoms {
			if a.Match(pk.Pkg) {
				return true
			}
		}
	}
	return false
}

func filterPackages(pkgs []*ebuild.Package, keep func(*ebuild.Package) bool) []*ebuild.Package {
	var out []*ebuild.Package
	for _, p := range pkgs {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func maxPackage(pkgs []*ebuild.Package) *ebuild.Package {
	if len(pkgs) == 0 {
		return nil
	}
	sorted := make([]*ebuild.Package, len(pkgs))
	copy(sorted, pkgs)
	ebuild.SortPackages(sorted)
	return sorted[len(sorted)-1]
}

func dedupeAtoms(atoms []ebuild.Atom) []ebuild.Atom {
	var out []ebuild.Atom
	seen := make(map[string]struct{})
	for _, a := range atoms {
		if _, dup := seen[a.String()]; dup {
			continue
		}
		seen[a.String()] = struct{}{}
		out = append(out, a)
	}
	return out
}

func atomsJoin(atoms []ebuild.Atom) string {
	strs := make([]string, len(atoms))
	for i, a := range atoms {
		strs[i] = a.String()
	}
	return strings.Join(strs, " , ")
}

// sortedNodes returns the map's nodes ordered by their string form, for
// deterministic traversal and output.
func sortedNodes(set map[*GraphNode]struct{}) []*GraphNode {
	nodes := make([]*GraphNode, 0, len(set))
	for n := range set {
		nodes = append(nodes, n)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].String() < nodes[j].String()
	})
	return nodes
}
