package ebuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAtom(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Atom
		wantErr  bool
	}{
		{
			name:     "unversioned",
			input:    "dev-libs/foo",
			expected: Atom{Category: "dev-libs", Package: "foo"},
		},
		{
			name:     "exact version",
			input:    "=dev-libs/foo-1.2.3",
			expected: Atom{Op: "=", Category: "dev-libs", Package: "foo", Version: "1.2.3"},
		},
		{
			name:     "ranged version",
			input:    ">=dev-libs/foo-1.2.3-r1",
			expected: Atom{Op: ">=", Category: "dev-libs", Package: "foo", Version: "1.2.3-r1"},
		},
		{
			name:     "hyphenated package name",
			input:    "=app-misc/some-tool-2.0",
			expected: Atom{Op: "=", Category: "app-misc", Package: "some-tool", Version: "2.0"},
		},
		{name: "version without operator", input: "dev-libs/foo-1.2.3", wantErr: true},
		{name: "operator without version", input: "=dev-libs/foo", wantErr: true},
		{name: "missing category", input: "foo", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAtom(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, a)
			assert.Equal(t, tt.input, a.String())
		})
	}
}

func TestParseUserAtom(t *testing.T) {
	// a bare versioned form is retried with "="
	a, err := ParseUserAtom("dev-libs/foo-1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Atom{Op: "=", Category: "dev-libs", Package: "foo", Version: "1.2.3"}, a)

	_, err = ParseUserAtom("not an atom")
	assert.Error(t, err)
}

func TestAtomMatch(t *testing.T) {
	pkg := &Package{Category: "dev-libs", Name: "foo", Version: "1.2.3-r1"}

	match := func(s string) bool {
		a, err := ParseAtom(s)
		require.NoError(t, err)
		return a.Match(pkg)
	}

	assert.True(t, match("dev-libs/foo"))
	assert.True(t, match("=dev-libs/foo-1.2.3-r1"))
	assert.False(t, match("=dev-libs/foo-1.2.3"))
	assert.True(t, match("~dev-libs/foo-1.2.3"))
	assert.True(t, match(">=dev-libs/foo-1.2"))
	assert.True(t, match("<dev-libs/foo-2"))
	assert.False(t, match(">dev-libs/foo-1.2.3-r1"))
	assert.False(t, match("dev-libs/bar"))
}

func TestAtomAccessors(t *testing.T) {
	a, err := ParseAtom("=dev-libs/foo-1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "dev-libs/foo", a.Key())
	assert.Equal(t, "dev-libs/foo-1.2.3", a.CPV())
	assert.True(t, a.Versioned())
	assert.Equal(t, "dev-libs/foo", a.Unversioned().String())
}
