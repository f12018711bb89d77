package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdev/internal/bugs"
	"pkgdev/internal/bugzilla"
	"pkgdev/internal/ebuild"
)

func testRepo(t *testing.T) *ebuild.Repo {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "profiles"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "profiles", "repo_name"), []byte("testrepo\n"), 0o644))

	pkgdir := filepath.Join(root, "app-misc", "tool")
	require.NoError(t, os.MkdirAll(pkgdir, 0o755))
	ebuildSrc := "EAPI=8\nSLOT=\"0\"\nKEYWORDS=\"~amd64\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(pkgdir, "tool-1.0.ebuild"), []byte(ebuildSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkgdir, "metadata.xml"), []byte(
		`<?xml version="1.0" encoding="UTF-8"?>
<pkgmetadata>
	<maintainer type="person">
		<email>alice@gentoo.org</email>
	</maintainer>
</pkgmetadata>
`), 0o644))

	repo, err := ebuild.OpenRepo(root)
	require.NoError(t, err)
	return repo
}

func TestResolveBugTargets(t *testing.T) {
	repo := testRepo(t)

	t.Run("atoms", func(t *testing.T) {
		restricts, err := resolveBugTargets(repo, []string{"app-misc/tool", "=app-misc/tool-1.0"}, nil, nil)
		require.NoError(t, err)
		require.Len(t, restricts, 2)
		assert.Equal(t, "app-misc/tool", restricts[0].String())
		assert.Equal(t, "=app-misc/tool-1.0", restricts[1].String())
	})

	t.Run("paths", func(t *testing.T) {
		path := filepath.Join(repo.Location, "app-misc", "tool", "tool-1.0.ebuild")
		restricts, err := resolveBugTargets(repo, []string{path}, nil, nil)
		require.NoError(t, err)
		require.Len(t, restricts, 1)
		assert.Equal(t, "=app-misc/tool-1.0", restricts[0].String())
	})

	t.Run("maintainer query", func(t *testing.T) {
		restricts, err := resolveBugTargets(repo, nil, []string{"alice@gentoo.org"}, nil)
		require.NoError(t, err)
		require.Len(t, restricts, 1)
		assert.Equal(t, "app-misc/tool", restricts[0].String())
	})

	t.Run("stdin lines", func(t *testing.T) {
		stdin := strings.NewReader("app-misc/tool\n\n=app-misc/tool-1.0\n")
		restricts, err := resolveBugTargets(repo, nil, nil, stdin)
		require.NoError(t, err)
		assert.Len(t, restricts, 2)
	})

	t.Run("bad atom", func(t *testing.T) {
		_, err := resolveBugTargets(repo, []string{"definitely not an atom"}, nil, nil)
		assert.Error(t, err)
	})
}

func TestBugsKeywordingUnsupported(t *testing.T) {
	cmd := newBugsCmd()
	cmd.SetArgs([]string{"-k", "app-misc/tool"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, "keywording is not implemented yet", err.Error())
}

// stubResolver serves matches from an in-memory package list.
type stubResolver struct {
	pkgs []*ebuild.Package
}

func (r *stubResolver) Match(a ebuild.Atom) []*ebuild.Package {
	var out []*ebuild.Package
	for _, p := range r.pkgs {
		if a.Match(p) {
			out = append(out, p)
		}
	}
	ebuild.SortPackages(out)
	return out
}

func (r *stubResolver) StabilizationGroups() map[string][]ebuild.Atom {
	return map[string][]ebuild.Atom{}
}

// stubTracker counts searches; the commands under test never file.
type stubTracker struct {
	searches int
}

func (t *stubTracker) CreateBug(req bugzilla.CreateRequest) (int, error) {
	return 0, fmt.Errorf("unexpected bug creation")
}

func (t *stubTracker) SearchStabilizationBugs(component string, words []string) ([]bugzilla.Bug, error) {
	t.searches++
	return nil, nil
}

func stubGraph(t *testing.T) *bugs.DependencyGraph {
	t.Helper()
	resolver := &stubResolver{pkgs: []*ebuild.Package{
		{Category: "app-misc", Name: "tool", Version: "0.9", EAPI: "8", Slot: "0", Keywords: []string{"amd64"}},
		{Category: "app-misc", Name: "tool", Version: "1.0", EAPI: "8", Slot: "0", Keywords: []string{"~amd64"}},
	}}
	g := bugs.NewDependencyGraph(resolver, bugs.NewRepoChecker(resolver), nil, io.Discard)
	target, err := ebuild.ParseAtom("=app-misc/tool-1.0")
	require.NoError(t, err)
	require.NoError(t, g.LoadTargets([]ebuild.Atom{target}))
	require.NoError(t, g.BuildFullGraph())
	return g
}

func TestPrepareGraphExportsBeforeKeywordCleanup(t *testing.T) {
	g := stubGraph(t)

	var exported string
	edit := func(doc []byte, suffix string) ([]byte, error) {
		exported = string(doc)
		assert.Equal(t, ".toml", suffix)
		return doc, nil
	}
	require.NoError(t, prepareGraph(g, "", edit))

	// the editable document carries the real keyword list
	assert.Contains(t, exported, `"=app-misc/tool-1.0" = ["amd64"]`)
	assert.NotContains(t, exported, `"*"`)

	// the cleanup sentinels appear only after the edit round trip
	nodes := g.SortedNodes()
	require.Len(t, nodes, 1)
	require.Len(t, nodes[0].Pkgs, 1)
	assert.Contains(t, nodes[0].Pkgs[0].Keywords, "*")
}

func TestScanExistingBugsNeedsConfirmation(t *testing.T) {
	g := stubGraph(t)
	tracker := &stubTracker{}

	var question string
	declined := func(q string) bool {
		question = q
		return false
	}
	require.NoError(t, scanExistingBugs(g, tracker, true, declined))
	assert.Equal(t, "Check for open bugs matching current graph?", question)
	assert.Zero(t, tracker.searches)

	accepted := func(string) bool { return true }
	require.NoError(t, scanExistingBugs(g, tracker, true, accepted))
	assert.Equal(t, 1, tracker.searches)
}
