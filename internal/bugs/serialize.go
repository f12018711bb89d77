package bugs

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"pkgdev/internal/ebuild"
)

// WriteDot renders the graph in dot format for visual inspection.
func (g *DependencyGraph) WriteDot(w io.Writer) error {
	if _, err := fmt.Fprint(w, "digraph {\n\trankdir=LR;\n"); err != nil {
		return err
	}
	for _, node := range sortedNodes(g.Nodes) {
		text := strings.Join(node.Lines(), `\n`)
		if node.BugNo != 0 {
			if text != "" {
				text += `\n`
			}
			text += fmt.Sprintf("bug #%d", node.BugNo)
		}
		fmt.Fprintf(w, "\t%s[label=\"%s\"];\n", node.dotName(), text)
		for _, other := range sortedNodes(node.Edges) {
			fmt.Fprintf(w, "\t%s -> %s;\n", node.dotName(), other.dotName())
		}
	}
	_, err := fmt.Fprint(w, "}\n")
	return err
}

// ExportDocument renders every unfiled node as an editable TOML section
// keyed by a synthetic per-run identifier. Sections carry the computed
// summary, the cc-arches decision, dependency references (synthetic ids for
// unfiled deps, real bug numbers for filed ones), the reverse blocks
// listing, and per-package provenance comments followed by the atom-to-
// keywords lines. The output is parsed back by ImportDocument.
func (g *DependencyGraph) ExportDocument(w io.Writer) error {
	nodes := sortedNodes(g.Nodes)
	ids := make(map[*GraphNode]int, len(nodes))
	for i, node := range nodes {
		ids[node] = i + 1
	}

	for _, node := range nodes {
		if node.BugNo != 0 {
			continue // already filed
		}
		fmt.Fprintf(w, "[bug-%d]\n", ids[node])
		fmt.Fprintf(w, "summary = %q\n", node.BugSummary())
		fmt.Fprintf(w, "cc_arches = %t\n", node.ShouldCCArches(g.AutoCCArches))

		var depends []string
		for _, dep := range sortedNodes(node.Edges) {
			if dep.BugNo != 0 {
				depends = append(depends, fmt.Sprintf("%d", dep.BugNo))
			} else {
				depends = append(depends, fmt.Sprintf("%q", fmt.Sprintf("bug-%d", ids[dep])))
			}
		}
		if len(depends) > 0 {
			fmt.Fprintf(w, "depends = [%s]\n", strings.Join(depends, ", "))
		}

		var blocks []string
		for _, src := range nodes {
			if _, ok := src.Edges[node]; ok {
				blocks = append(blocks, fmt.Sprintf("%q", fmt.Sprintf("bug-%d", ids[src])))
			}
		}
		if len(blocks) > 0 {
			fmt.Fprintf(w, "blocks = [%s]\n", strings.Join(blocks, ", "))
		}

		for _, pk := range node.Pkgs {
			atom := pk.Pkg.VersionedAtom()
			fmt.Fprintf(w, "# added on %s, last modified on %s\n",
				g.historyText(atom, History.LastAdded), g.historyText(atom, History.LastModified))
			quoted := make([]string, 0, len(pk.Keywords))
			for _, kw := range keywordSlice(pk.Keywords) {
				quoted = append(quoted, fmt.Sprintf("%q", kw))
			}
			fmt.Fprintf(w, "%q = [%s]\n", atom.String(), strings.Join(quoted, ", "))
		}
		fmt.Fprint(w, "\n\n")
	}
	return nil
}

func (g *DependencyGraph) historyText(atom ebuild.Atom, lookup func(History, ebuild.Atom) (time.Time, bool)) string {
	if g.history == nil {
		return "<unknown>"
	}
	when, ok := lookup(g.history, atom)
	if !ok {
		return "<unknown>"
	}
	age := int(time.Since(when).Hours() / 24)
	return fmt.Sprintf("%s (age %d days)", when.Format("2006-01-02"), age)
}

// ImportDocument replaces the graph's node set wholesale with the parsed
// document. Integer dependency references create (or reuse) placeholder
// nodes carrying only that bug number; a synthetic reference must name
// another declared section or the import fails. Starting nodes are
// recomputed as the root nodes (those no other node depends on) so the
// filing traversal still reaches every node.
func (g *DependencyGraph) ImportDocument(content []byte) error {
	var raw map[string]map[string]any
	meta, err := toml.Decode(string(content), &raw)
	if err != nil {
		return fmt.Errorf("parsing graph document: %w", err)
	}

	// recover declaration order, which the maps lose
	var sections []string
	atomKeys := make(map[string][]string)
	for _, key := range meta.Keys() {
		parts := []string(key)
		switch len(parts) {
		case 1:
			sections = append(sections, parts[0])
		case 2:
			if strings.HasPrefix(parts[1], "=") {
				atomKeys[parts[0]] = append(atomKeys[parts[0]], parts[1])
			}
		}
	}

	declared := make(map[string]*GraphNode, len(sections))
	for _, section := range sections {
		var pkgs []PackageKeywords
		for _, atomKey := range atomKeys[section] {
			atom, err := ebuild.ParseAtom(atomKey)
			if err != nil {
				return fmt.Errorf("[%s]: %w", section, err)
			}
			matches := g.resolver.Match(atom)
			if len(matches) == 0 {
				return fmt.Errorf("[%s]: no repository match for %s", section, atom)
			}
			keywords, err := stringList(raw[section][atomKey])
			if err != nil {
				return fmt.Errorf("[%s][%q]: %w", section, atomKey, err)
			}
			pkgs = append(pkgs, PackageKeywords{Pkg: matches[0], Keywords: keywordSet(keywords)})
		}
		declared[section] = NewGraphNode(pkgs, 0)
	}

	placeholders := make(map[int]*GraphNode)
	nodes := make(map[*GraphNode]struct{}, len(declared))
	for _, node := range declared {
		nodes[node] = struct{}{}
	}

	for _, section := range sections {
		node := declared[section]
		if summary, ok := raw[section]["summary"].(string); ok {
			node.Summary = summary
		}
		if cc, ok := raw[section]["cc_arches"].(bool); ok {
			node.CCArches = &cc
		}
		deps, _ := raw[section]["depends"].([]any)
		for _, dep := range deps {
			switch ref := dep.(type) {
			case int64:
				placeholder, ok := placeholders[int(ref)]
				if !ok {
					placeholder = NewGraphNode(nil, int(ref))
					placeholders[int(ref)] = placeholder
					nodes[placeholder] = struct{}{}
				}
				node.Edges[placeholder] = struct{}{}
			case string:
				target, ok := declared[ref]
				if !ok {
					return fmt.Errorf("[%s] depends: unknown dependency %q", section, ref)
				}
				node.Edges[target] = struct{}{}
			default:
				return fmt.Errorf("[%s] depends: unsupported reference %v", section, dep)
			}
		}
	}

	g.Nodes = nodes
	g.StartingNodes = rootNodes(nodes)
	return nil
}

// rootNodes returns the nodes without incoming edges. On an acyclic graph
// every node is reachable from some root, which is exactly what the filing
// traversal needs from its entry points.
func rootNodes(nodes map[*GraphNode]struct{}) map[*GraphNode]struct{} {
	roots := make(map[*GraphNode]struct{}, len(nodes))
	for n := range nodes {
		roots[n] = struct{}{}
	}
	for n := range nodes {
		for dep := range n.Edges {
			delete(roots, dep)
		}
	}
	return roots
}

func stringList(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}
