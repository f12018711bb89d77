package manifest

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func writeDistfile(t *testing.T, dir, name, content string) Entry {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	blake := blake2b.Sum512([]byte(content))
	sha := sha512.Sum512([]byte(content))
	return Entry{
		Name:    name,
		Size:    int64(len(content)),
		Blake2b: hex.EncodeToString(blake[:]),
		Sha512:  hex.EncodeToString(sha[:]),
	}
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	want := writeDistfile(t, dir, "foo-1.0.tar.gz", "not really a tarball")

	got, err := HashFile(filepath.Join(dir, "foo-1.0.tar.gz"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadAndWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Manifest")
	entries := []Entry{
		{Name: "zzz.tar.gz", Size: 10, Blake2b: "aa", Sha512: "bb"},
		{Name: "aaa.tar.gz", Size: 20, Blake2b: "cc", Sha512: "dd"},
	}
	require.NoError(t, Write(path, entries))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"DIST aaa.tar.gz 20 BLAKE2B cc SHA512 dd\nDIST zzz.tar.gz 10 BLAKE2B aa SHA512 bb\n",
		string(content))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "aaa.tar.gz", Size: 20, Blake2b: "cc", Sha512: "dd"},
		{Name: "zzz.tar.gz", Size: 10, Blake2b: "aa", Sha512: "bb"},
	}, loaded)
}

func TestLoadRejectsUnknownLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Manifest")
	require.NoError(t, os.WriteFile(path, []byte("EBUILD foo-1.0.ebuild 100\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported manifest line")
}

func TestRegenerate(t *testing.T) {
	repo := t.TempDir()
	distdir := t.TempDir()
	manifestPath := filepath.Join(repo, "Manifest")

	good := writeDistfile(t, distdir, "pkg-1.0.tar.gz", strings.Repeat("x", 100))
	stale := fmt.Sprintf("DIST pkg-1.0.tar.gz 1 BLAKE2B %s SHA512 %s\n", "00", "00")
	missing := "DIST pkg-0.9.tar.gz 5 BLAKE2B ee SHA512 ff\n"
	require.NoError(t, os.WriteFile(manifestPath, []byte(stale+missing), 0o644))

	t.Run("rehashes present distfiles, keeps missing ones", func(t *testing.T) {
		changed, err := Regenerate(manifestPath, distdir, false)
		require.NoError(t, err)
		assert.True(t, changed)

		entries, err := Load(manifestPath)
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{Name: "pkg-0.9.tar.gz", Size: 5, Blake2b: "ee", Sha512: "ff"},
			good,
		}, entries)
	})

	t.Run("unchanged manifest is not rewritten", func(t *testing.T) {
		changed, err := Regenerate(manifestPath, distdir, false)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("force errors on missing distfiles", func(t *testing.T) {
		_, err := Regenerate(manifestPath, distdir, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pkg-0.9.tar.gz not found")
	})
}
