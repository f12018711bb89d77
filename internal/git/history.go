package git

import (
	"strings"
	"time"

	"pkgdev/internal/ebuild"
)

// History indexes when each ebuild was first added and last touched,
// derived from `git log` over *.ebuild paths. It backs the advisory age
// lines in stabilization bug descriptions and the exported graph document.
type History struct {
	added    map[string]time.Time // cpv -> commit time of addition
	modified map[string]time.Time // cpv -> commit time of last change
}

// LoadHistory walks the commit log of the repository at dir, newest first.
// The newest commit touching an ebuild wins for the modification index, the
// newest commit adding it wins for the addition index.
func LoadHistory(dir string) (*History, error) {
	out, err := Run(dir, "log", "--format=@%ct", "--name-status", "--diff-filter=AM", "--", "*.ebuild")
	if err != nil {
		return nil, err
	}

	h := &History{
		added:    make(map[string]time.Time),
		modified: make(map[string]time.Time),
	}
	var commitTime time.Time
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "@"):
			commitTime = parseUnix(line[1:])
		default:
			status, path, ok := strings.Cut(line, "\t")
			if !ok {
				continue
			}
			cpv, ok := ebuildCPV(path)
			if !ok {
				continue
			}
			if _, seen := h.modified[cpv]; !seen {
				h.modified[cpv] = commitTime
			}
			if status == "A" {
				// newest addition wins (re-adds count)
				if _, seen := h.added[cpv]; !seen {
					h.added[cpv] = commitTime
				}
			}
		}
	}
	return h, nil
}

// LastAdded returns when the exact version matched by the atom was added.
func (h *History) LastAdded(a ebuild.Atom) (time.Time, bool) {
	t, ok := h.added[a.CPV()]
	return t, ok
}

// LastModified returns when the exact version matched by the atom was last
// changed.
func (h *History) LastModified(a ebuild.Atom) (time.Time, bool) {
	t, ok := h.modified[a.CPV()]
	return t, ok
}

func parseUnix(s string) time.Time {
	var secs int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return time.Time{}
		}
		secs = secs*10 + int64(c-'0')
	}
	return time.Unix(secs, 0)
}

// ebuildCPV maps "cat/pkg/pkg-1.0.ebuild" to "cat/pkg-1.0".
func ebuildCPV(path string) (string, bool) {
	base, ok := strings.CutSuffix(path, ".ebuild")
	if !ok {
		return "", false
	}
	parts := strings.Split(base, "/")
	if len(parts) != 3 {
		return "", false
	}
	rest, ok := strings.CutPrefix(parts[2], parts[1]+"-")
	if !ok || !ebuild.IsVersion(rest) {
		return "", false
	}
	return parts[0] + "/" + parts[2], true
}
