package mask

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkgdev/internal/ebuild"
)

const sampleMask = `# Masked packages live here.
#
#--- END OF EXAMPLES ---

# Larry The Cow <larry@gentoo.org> (2026-08-20)
# Broken on modern toolchains.
# Removal on 2026-09-19.  Bug #123456.
app-misc/doomed
=app-misc/shaky-2.0

# Old Maintainer <old@gentoo.org> (2024-01-01)
# Masked pending security review.
dev-libs/risky
`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleMask))
	require.NoError(t, err)

	assert.Equal(t, []string{"# Masked packages live here.", "#", "#--- END OF EXAMPLES ---"}, f.Header)
	require.Len(t, f.Entries, 2)

	first := f.Entries[0]
	assert.Equal(t, "Larry The Cow", first.Author)
	assert.Equal(t, "larry@gentoo.org", first.Email)
	assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, []string{"Broken on modern toolchains.", "Removal on 2026-09-19.  Bug #123456."}, first.Comment)
	require.Len(t, first.Atoms, 2)
	assert.Equal(t, "app-misc/doomed", first.Atoms[0].String())
	assert.Equal(t, "=app-misc/shaky-2.0", first.Atoms[1].String())

	removal, ok := first.RemovalDate()
	require.True(t, ok)
	assert.Equal(t, "2026-09-19", removal.Format("2006-01-02"))

	_, ok = f.Entries[1].RemovalDate()
	assert.False(t, ok)
}

func TestParseBadAtom(t *testing.T) {
	_, err := Parse(strings.NewReader("# A B <a@b.org> (2026-01-01)\n# why\nnot-an-atom\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad atom")
}

func TestRoundTrip(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleMask))
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, f.Write(&out))
	assert.Equal(t, sampleMask, out.String())
}

func TestAddPutsNewEntryFirst(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleMask))
	require.NoError(t, err)

	atom, err := ebuild.ParseUserAtom("app-misc/new")
	require.NoError(t, err)
	f.Add(Entry{
		Author:  "New Dev",
		Email:   "new@gentoo.org",
		Date:    time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		Comment: []string{"Does not build."},
		Atoms:   []ebuild.Atom{atom},
	})

	var out strings.Builder
	require.NoError(t, f.Write(&out))
	assert.True(t, strings.Contains(out.String(),
		"#--- END OF EXAMPLES ---\n\n# New Dev <new@gentoo.org> (2026-08-28)\n# Does not build.\napp-misc/new\n\n# Larry The Cow"))
}

func TestRemove(t *testing.T) {
	f, err := Parse(strings.NewReader(sampleMask))
	require.NoError(t, err)

	atom, err := ebuild.ParseUserAtom("dev-libs/risky")
	require.NoError(t, err)
	assert.True(t, f.Remove(atom))
	require.Len(t, f.Entries, 1)
	assert.Equal(t, "Larry The Cow", f.Entries[0].Author)

	assert.False(t, f.Remove(atom))
}

func TestScaffoldRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	text, err := Scaffold("Larry The Cow", "larry@gentoo.org", now, 30, []int{123456, 654321})
	require.NoError(t, err)
	assert.Equal(t, `Larry The Cow <larry@gentoo.org> (2026-08-28)
Describe why the package has been masked.
Removal on 2026-09-27.  Bug #123456, Bug #654321.
`, text)

	entry, err := ParseScaffold(strings.Replace(text,
		"Describe why the package has been masked.", "Fails to build with curl-9.", 1))
	require.NoError(t, err)
	assert.Equal(t, "Larry The Cow", entry.Author)
	assert.Equal(t, "larry@gentoo.org", entry.Email)
	assert.Equal(t, []string{"Fails to build with curl-9.", "Removal on 2026-09-27.  Bug #123456, Bug #654321."}, entry.Comment)

	removal, ok := entry.RemovalDate()
	require.True(t, ok)
	assert.Equal(t, "2026-09-27", removal.Format("2006-01-02"))
}

func TestScaffoldWithoutRites(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	text, err := Scaffold("Larry The Cow", "larry@gentoo.org", now, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, `Larry The Cow <larry@gentoo.org> (2026-08-28)
Describe why the package has been masked.
`, text)
}

func TestParseScaffoldRejectsBadHeader(t *testing.T) {
	_, err := ParseScaffold("just some words\nmore words\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first line must be")
}
