package bugs

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdev/internal/ebuild"
)

func docTestGraph(t *testing.T) *DependencyGraph {
	t.Helper()
	resolver := &fakeResolver{pkgs: []*ebuild.Package{
		mkpkg(t, "app-misc/a-1.0", []string{"~amd64", "~x86"}, ""),
		mkpkg(t, "app-misc/b-1.0", []string{"~amd64"}, ""),
	}}
	g := NewDependencyGraph(resolver, nil, nil, io.Discard)

	a := NewGraphNode([]PackageKeywords{{Pkg: resolver.pkgs[0], Keywords: keywordSet([]string{"amd64", "x86"})}}, 0)
	b := NewGraphNode([]PackageKeywords{{Pkg: resolver.pkgs[1], Keywords: keywordSet([]string{"amd64"})}}, 0)
	filed := NewGraphNode(nil, 42)
	a.Edges[b] = struct{}{}
	a.Edges[filed] = struct{}{}
	for _, n := range []*GraphNode{a, b, filed} {
		g.Nodes[n] = struct{}{}
	}
	g.StartingNodes[a] = struct{}{}
	return g
}

func TestWriteDot(t *testing.T) {
	g := docTestGraph(t)
	var out strings.Builder
	require.NoError(t, g.WriteDot(&out))

	dot := out.String()
	assert.True(t, strings.HasPrefix(dot, "digraph {\n\trankdir=LR;\n"))
	assert.True(t, strings.HasSuffix(dot, "}\n"))
	assert.Contains(t, dot, `"=app-misc/a-1.0"[label="=app-misc/a-1.0 amd64 x86"];`)
	assert.Contains(t, dot, `"=app-misc/a-1.0" -> "=app-misc/b-1.0";`)
	assert.Contains(t, dot, `"=app-misc/a-1.0" -> bug_42;`)
	assert.Contains(t, dot, `bug_42[label="bug #42"];`)
}

func TestExportDocument(t *testing.T) {
	g := docTestGraph(t)
	var out strings.Builder
	require.NoError(t, g.ExportDocument(&out))

	doc := out.String()
	// nodes sort as =app-misc/a-1.0, =app-misc/b-1.0, bug #42
	assert.Contains(t, doc, "[bug-1]")
	assert.Contains(t, doc, `summary = "app-misc/a-1.0: stablereq"`)
	assert.Contains(t, doc, "cc_arches = true")
	assert.Contains(t, doc, `depends = ["bug-2", 42]`)
	assert.Contains(t, doc, `blocks = ["bug-1"]`)
	assert.Contains(t, doc, "# added on <unknown>, last modified on <unknown>")
	assert.Contains(t, doc, `"=app-misc/a-1.0" = ["amd64", "x86"]`)
	// the filed placeholder gets no section of its own
	assert.NotContains(t, doc, "[bug-3]")
}

func TestDocumentRoundTrip(t *testing.T) {
	g := docTestGraph(t)
	var out strings.Builder
	require.NoError(t, g.ExportDocument(&out))

	imported := NewDependencyGraph(g.resolver, nil, nil, io.Discard)
	require.NoError(t, imported.ImportDocument([]byte(out.String())))

	require.Len(t, imported.Nodes, 3)
	a := nodeFor(imported, "app-misc/a-1.0")
	b := nodeFor(imported, "app-misc/b-1.0")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, []string{"amd64", "x86"}, keywordSlice(a.Pkgs[0].Keywords))
	assert.Equal(t, []string{"amd64"}, keywordSlice(b.Pkgs[0].Keywords))

	// the summary and cc decision survive as explicit overrides
	assert.Equal(t, "app-misc/a-1.0: stablereq", a.BugSummary())
	require.NotNil(t, a.CCArches)
	assert.True(t, *a.CCArches)

	// integer references become placeholder nodes again
	require.Len(t, a.Edges, 2)
	assert.Contains(t, a.Edges, b)
	var placeholder *GraphNode
	for dep := range a.Edges {
		if dep != b {
			placeholder = dep
		}
	}
	assert.Equal(t, 42, placeholder.BugNo)
	assert.Empty(t, placeholder.Pkgs)

	// the only root is the one nothing depends on
	assert.Equal(t, map[*GraphNode]struct{}{a: {}}, imported.StartingNodes)

	imported.SetStartingNodes([]*GraphNode{b})
	assert.Equal(t, map[*GraphNode]struct{}{b: {}}, imported.StartingNodes)
}

func TestImportDocumentEdited(t *testing.T) {
	resolver := &fakeResolver{pkgs: []*ebuild.Package{
		mkpkg(t, "app-misc/a-1.0", []string{"~amd64"}, ""),
	}}
	g := NewDependencyGraph(resolver, nil, nil, io.Discard)

	doc := `
[bug-1]
summary = "custom words"
cc_arches = false
depends = [1234]
"=app-misc/a-1.0" = ["amd64"]
`
	require.NoError(t, g.ImportDocument([]byte(doc)))

	require.Len(t, g.Nodes, 2)
	node := nodeFor(g, "app-misc/a-1.0")
	require.NotNil(t, node)
	assert.Equal(t, "custom words", node.BugSummary())
	assert.False(t, node.ShouldCCArches(keywordSet([]string{"*"})))
	require.Len(t, node.Edges, 1)
	for dep := range node.Edges {
		assert.Equal(t, 1234, dep.BugNo)
	}
}

func TestImportDocumentErrors(t *testing.T) {
	resolver := &fakeResolver{pkgs: []*ebuild.Package{
		mkpkg(t, "app-misc/a-1.0", []string{"~amd64"}, ""),
	}}

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "unknown synthetic reference",
			doc:     "[bug-1]\ndepends = [\"bug-9\"]\n\"=app-misc/a-1.0\" = [\"amd64\"]\n",
			wantErr: `unknown dependency "bug-9"`,
		},
		{
			name:    "atom without repository match",
			doc:     "[bug-1]\n\"=app-misc/gone-1.0\" = [\"amd64\"]\n",
			wantErr: "no repository match",
		},
		{
			name:    "broken toml",
			doc:     "[bug-1\n",
			wantErr: "parsing graph document",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewDependencyGraph(resolver, nil, nil, io.Discard)
			err := g.ImportDocument([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
