package ebuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortKeywords(t *testing.T) {
	in := []string{"x86", "~amd64", "-*", "~arm64", "amd64-linux", "hppa"}
	assert.Equal(t,
		[]string{"-*", "~amd64", "~arm64", "hppa", "x86", "amd64-linux"},
		SortKeywords(in))
	// input untouched
	assert.Equal(t, "x86", in[0])
}

func TestKeywordPredicates(t *testing.T) {
	assert.True(t, KeywordStable("amd64"))
	assert.False(t, KeywordStable("~amd64"))
	assert.False(t, KeywordStable("-amd64"))
	assert.True(t, KeywordTesting("~amd64"))
	assert.False(t, KeywordTesting("amd64"))
	assert.Equal(t, "amd64", KeywordArch("~amd64"))
	assert.Equal(t, "amd64", KeywordArch("-amd64"))
}

func TestReduceKeywords(t *testing.T) {
	pkgs := []*Package{
		{Keywords: []string{"amd64", "~x86"}},
		{Keywords: []string{"x86", "-hppa"}},
	}
	stable := ReduceKeywords(pkgs)
	assert.Equal(t, map[string]struct{}{"amd64": {}, "x86": {}}, stable)
}
