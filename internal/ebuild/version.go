package ebuild

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// versionRe matches a full ebuild version string including the optional
// revision, e.g. "1.2.3c_alpha4_p1-r2".
var versionRe = regexp.MustCompile(
	`^(\d+(?:\.\d+)*)([a-z]?)((?:_(?:alpha|beta|pre|rc|p)\d*)*)(?:-r(\d+))?$`)

// suffix ranks, ordered per PMS:
// _alpha < _beta < _pre < _rc < plain release < _p
var suffixRank = map[string]int{
	"alpha": -4,
	"beta":  -3,
	"pre":   -2,
	"rc":    -1,
	"p":     1,
}

type versionSuffix struct {
	rank int
	num  int
}

type parsedVersion struct {
	nums     []string
	letter   byte
	suffixes []versionSuffix
	revision int
}

// IsVersion reports whether s is a syntactically valid ebuild version.
func IsVersion(s string) bool {
	return versionRe.MatchString(s)
}

func parseVersion(s string) (parsedVersion, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return parsedVersion{}, fmt.Errorf("invalid version: %q", s)
	}
	v := parsedVersion{nums: strings.Split(m[1], ".")}
	if m[2] != "" {
		v.letter = m[2][0]
	}
	for _, part := range strings.Split(m[3], "_") {
		if part == "" {
			continue
		}
		name := strings.TrimRight(part, "0123456789")
		num := 0
		if digits := part[len(name):]; digits != "" {
			num, _ = strconv.Atoi(digits)
		}
		v.suffixes = append(v.suffixes, versionSuffix{rank: suffixRank[name], num: num})
	}
	if m[4] != "" {
		v.revision, _ = strconv.Atoi(m[4])
	}
	return v, nil
}

// CompareVersions compares two ebuild version strings and returns -1, 0 or 1.
// Invalid versions compare as plain strings, which keeps sorting stable for
// garbage input without forcing every caller to handle a parse error.
func CompareVersions(a, b string) int {
	va, errA := parseVersion(a)
	vb, errB := parseVersion(b)
	if errA != nil || errB != nil {
		return strings.Compare(a, b)
	}
	return compareParsed(va, vb)
}

func compareParsed(a, b parsedVersion) int {
	// First numeric component compares as an integer; later components
	// compare as strings when either side has a leading zero (so 1.01 < 1.1
	// per PMS), as integers otherwise.
	n := len(a.nums)
	if len(b.nums) < n {
		n = len(b.nums)
	}
	for i := 0; i < n; i++ {
		var c int
		if i > 0 && (strings.HasPrefix(a.nums[i], "0") || strings.HasPrefix(b.nums[i], "0")) {
			c = strings.Compare(
				strings.TrimRight(a.nums[i], "0"),
				strings.TrimRight(b.nums[i], "0"))
		} else {
			ai, _ := strconv.Atoi(a.nums[i])
			bi, _ := strconv.Atoi(b.nums[i])
			c = compareInts(ai, bi)
		}
		if c != 0 {
			return c
		}
	}
	if c := compareInts(len(a.nums), len(b.nums)); c != 0 {
		return c
	}
	if c := compareInts(int(a.letter), int(b.letter)); c != 0 {
		return c
	}
	if c := compareSuffixes(a.suffixes, b.suffixes); c != 0 {
		return c
	}
	return compareInts(a.revision, b.revision)
}

func compareSuffixes(a, b []versionSuffix) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		// a missing suffix compares as the plain release
		sa, sb := versionSuffix{}, versionSuffix{}
		if i < len(a) {
			sa = a[i]
		}
		if i < len(b) {
			sb = b[i]
		}
		if c := compareInts(sa.rank, sb.rank); c != 0 {
			return c
		}
		if c := compareInts(sa.num, sb.num); c != 0 {
			return c
		}
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
