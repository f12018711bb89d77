package ebuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected int
	}{
		{name: "equal", a: "1.2.3", b: "1.2.3", expected: 0},
		{name: "numeric ordering", a: "1.2", b: "1.10", expected: -1},
		{name: "component count", a: "1.2", b: "1.2.0", expected: -1},
		{name: "letter suffix", a: "1.2a", b: "1.2b", expected: -1},
		{name: "letter beats none", a: "1.2", b: "1.2a", expected: -1},
		{name: "alpha before release", a: "1.0_alpha1", b: "1.0", expected: -1},
		{name: "alpha before beta", a: "1.0_alpha2", b: "1.0_beta1", expected: -1},
		{name: "rc before release", a: "2.0_rc3", b: "2.0", expected: -1},
		{name: "p after release", a: "2.0", b: "2.0_p1", expected: -1},
		{name: "suffix numbers", a: "1.0_p1", b: "1.0_p2", expected: -1},
		{name: "revision ordering", a: "1.0-r1", b: "1.0-r2", expected: -1},
		{name: "revision beats none", a: "1.0", b: "1.0-r1", expected: -1},
		{name: "leading zero as string", a: "1.01", b: "1.1", expected: -1},
		{name: "big numbers", a: "20230101", b: "20240101", expected: -1},
		{name: "chained suffixes", a: "1.0_beta1_p1", b: "1.0_beta1_p2", expected: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompareVersions(tt.a, tt.b))
			assert.Equal(t, -tt.expected, CompareVersions(tt.b, tt.a))
		})
	}
}

func TestIsVersion(t *testing.T) {
	valid := []string{"1", "1.2.3", "1.2.3a", "1.0_alpha", "1.0_rc2", "1.0_beta1_p2", "1.0-r5", "9999"}
	for _, v := range valid {
		assert.True(t, IsVersion(v), v)
	}
	invalid := []string{"", "a", "1.", "1..2", "-r1", "1.0_gamma", "r1", "1.0-r"}
	for _, v := range invalid {
		assert.False(t, IsVersion(v), v)
	}
}
