// Package mangle normalizes source files before they are committed: an
// explicit ordered list of named transforms, each guarded by a path
// predicate, applied to the file contents as a whole.
package mangle

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"pkgdev/internal/ebuild"
	"pkgdev/pkg/logging"
)

// Transform is one named normalization step.
type Transform struct {
	Name string
	// Applies filters by path; nil means every file.
	Applies func(path string) bool
	Apply   func(content string) string
}

var (
	copyrightRe = regexp.MustCompile(`^# Copyright (\d{4})(?:-\d{4})? [\w. ]*\w`)
	keywordsRe  = regexp.MustCompile(`(?m)^KEYWORDS="([^"]*)"`)
	trailingRe  = regexp.MustCompile(`(?m)[ \t]+$`)
)

func isEbuild(path string) bool {
	return strings.HasSuffix(path, ".ebuild")
}

// Transforms returns the standard transform list, in application order. The
// current time fixes the copyright year span.
func Transforms(now time.Time) []Transform {
	year := now.Format("2006")
	return []Transform{
		{
			Name: "update-copyright",
			Apply: func(content string) string {
				return copyrightRe.ReplaceAllStringFunc(content, func(header string) string {
					first := copyrightRe.FindStringSubmatch(header)[1]
					if first == year {
						return fmt.Sprintf("# Copyright %s Gentoo Authors", year)
					}
					return fmt.Sprintf("# Copyright %s-%s Gentoo Authors", first, year)
				})
			},
		},
		{
			Name: "strip-trailing-whitespace",
			Apply: func(content string) string {
				return trailingRe.ReplaceAllString(content, "")
			},
		},
		{
			Name: "single-newline-at-eof",
			Apply: func(content string) string {
				return strings.TrimRight(content, "\n") + "\n"
			},
		},
		{
			Name:    "sort-keywords",
			Applies: isEbuild,
			Apply: func(content string) string {
				return keywordsRe.ReplaceAllStringFunc(content, func(line string) string {
					kws := strings.Fields(keywordsRe.FindStringSubmatch(line)[1])
					return fmt.Sprintf("KEYWORDS=%q", strings.Join(ebuild.SortKeywords(kws), " "))
				})
			},
		},
	}
}

// Apply runs every applicable transform over the content and returns the
// result plus the names of the transforms that changed anything.
func Apply(path string, content []byte, transforms []Transform) ([]byte, []string) {
	text := string(content)
	var applied []string
	for _, tr := range transforms {
		if tr.Applies != nil && !tr.Applies(path) {
			continue
		}
		mangled := tr.Apply(text)
		if mangled != text {
			applied = append(applied, tr.Name)
			text = mangled
		}
	}
	return []byte(text), applied
}

// Files mangles the given files in place and returns the paths that changed.
// Empty files are left alone so placeholder files survive untouched.
func Files(paths []string, transforms []Transform) ([]string, error) {
	var changed []string
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return changed, err
		}
		if len(content) == 0 {
			continue
		}
		mangled, applied := Apply(path, content, transforms)
		if len(applied) == 0 {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return changed, err
		}
		if err := os.WriteFile(path, mangled, info.Mode().Perm()); err != nil {
			return changed, err
		}
		logging.Debug("Mangle", "%s: applied %s", path, strings.Join(applied, ", "))
		changed = append(changed, path)
	}
	return changed, nil
}
