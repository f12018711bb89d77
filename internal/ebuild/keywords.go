package ebuild

import (
	"sort"
	"strings"
)

// KeywordArch returns the keyword stripped of any ~ or - stability prefix.
func KeywordArch(kw string) string {
	return strings.TrimLeft(kw, "~-")
}

// KeywordStable reports whether the keyword marks a stable arch
// (no ~ testing or - unsupported prefix).
func KeywordStable(kw string) bool {
	return kw != "" && kw[0] != '~' && kw[0] != '-'
}

// KeywordTesting reports whether the keyword marks a testing (~) arch.
func KeywordTesting(kw string) bool {
	return strings.HasPrefix(kw, "~")
}

// SortKeywords returns the keywords in canonical display order: "-*" first,
// then sorted by arch ignoring the stability prefix; arch-platform pairs such
// as "amd64-linux" sort after plain arches, grouped by platform.
func SortKeywords(kws []string) []string {
	out := make([]string, len(kws))
	copy(out, kws)
	sort.SliceStable(out, func(i, j int) bool {
		return keywordSortKey(out[i]) < keywordSortKey(out[j])
	})
	return out
}

func keywordSortKey(kw string) string {
	if KeywordArch(kw) == "*" {
		return ""
	}
	arch, platform, _ := strings.Cut(KeywordArch(kw), "-")
	return platform + "\x00" + arch
}

// ReduceKeywords returns the set of arches carrying a stable keyword across
// the given packages.
func ReduceKeywords(pkgs []*Package) map[string]struct{} {
	stable := make(map[string]struct{})
	for _, p := range pkgs {
		for _, kw := range p.Keywords {
			if KeywordStable(kw) {
				stable[kw] = struct{}{}
			}
		}
	}
	return stable
}
