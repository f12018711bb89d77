// Package manifest regenerates Gentoo Manifest files: DIST entries carrying
// the size plus BLAKE2B and SHA512 checksums of each distfile.
package manifest

import (
	"bufio"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"pkgdev/pkg/logging"
)

// Entry is one DIST line.
type Entry struct {
	Name    string
	Size    int64
	Blake2b string
	Sha512  string
}

func (e Entry) String() string {
	return fmt.Sprintf("DIST %s %d BLAKE2B %s SHA512 %s", e.Name, e.Size, e.Blake2b, e.Sha512)
}

// Load reads an existing Manifest. Only thin manifests are supported: every
// line must be a DIST entry.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if fields[0] != "DIST" || len(fields) < 3 {
			return nil, fmt.Errorf("%s: unsupported manifest line %q", path, line)
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad size in %q", path, line)
		}
		entry := Entry{Name: fields[1], Size: size}
		for i := 3; i+1 < len(fields); i += 2 {
			switch fields[i] {
			case "BLAKE2B":
				entry.Blake2b = fields[i+1]
			case "SHA512":
				entry.Sha512 = fields[i+1]
			}
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Write replaces the Manifest with the given entries, sorted by name.
func Write(path string, entries []Entry) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, e := range sorted {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// HashFile computes the DIST entry for one distfile.
func HashFile(path string) (Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	blake, err := blake2b.New512(nil)
	if err != nil {
		return Entry{}, err
	}
	sha := sha512.New()

	size, err := io.Copy(io.MultiWriter(blake, sha), f)
	if err != nil {
		return Entry{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return Entry{
		Name:    filepath.Base(path),
		Size:    size,
		Blake2b: hex.EncodeToString(blake.Sum(nil)),
		Sha512:  hex.EncodeToString(sha.Sum(nil)),
	}, nil
}

// Regenerate re-hashes every distfile named by the package's Manifest from
// distdir and rewrites the Manifest. Without force, entries whose distfile is
// missing locally are kept as they are; with force a missing distfile is an
// error. Hashing runs in parallel.
func Regenerate(manifestPath, distdir string, force bool) (bool, error) {
	old, err := Load(manifestPath)
	if err != nil {
		return false, err
	}

	fresh := make([]Entry, len(old))
	var group errgroup.Group
	group.SetLimit(runtime.NumCPU())
	for i, entry := range old {
		i, entry := i, entry
		group.Go(func() error {
			distfile := filepath.Join(distdir, entry.Name)
			if _, err := os.Stat(distfile); os.IsNotExist(err) {
				if force {
					return fmt.Errorf("distfile %s not found in %s", entry.Name, distdir)
				}
				fresh[i] = entry
				return nil
			}
			hashed, err := HashFile(distfile)
			if err != nil {
				return err
			}
			fresh[i] = hashed
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return false, err
	}

	changed := false
	for i := range old {
		if old[i] != fresh[i] {
			changed = true
		}
	}
	if !changed && !force {
		return false, nil
	}
	logging.Debug("Manifest", "rewriting %s (%d entries)", manifestPath, len(fresh))
	return true, Write(manifestPath, fresh)
}
