// Package mask reads and edits profiles/package.mask: attributed, dated
// comment blocks followed by the masked atoms, newest entry first.
package mask

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"pkgdev/internal/ebuild"
)

const dateLayout = "2006-01-02"

var (
	authorRe  = regexp.MustCompile(`^# (.+?) <(.+?)> \((\d{4}-\d{2}-\d{2})\)$`)
	removalRe = regexp.MustCompile(`Removal on (\d{4}-\d{2}-\d{2})`)
)

// Entry is one mask block.
type Entry struct {
	Author string
	Email  string
	Date   time.Time
	// Comment lines without the leading "# ".
	Comment []string
	Atoms   []ebuild.Atom
}

// RemovalDate extracts the scheduled removal date from a last-rites comment,
// if the entry carries one.
func (e Entry) RemovalDate() (time.Time, bool) {
	for _, line := range e.Comment {
		if m := removalRe.FindStringSubmatch(line); m != nil {
			when, err := time.Parse(dateLayout, m[1])
			if err == nil {
				return when, true
			}
		}
	}
	return time.Time{}, false
}

// File is a parsed package.mask: the verbatim leading header (the repository
// boilerplate up to the first attributed entry) plus the entries in file
// order.
type File struct {
	Header  []string
	Entries []Entry
}

// Parse reads a package.mask. Lines before the first attributed comment
// block are preserved verbatim as the header.
func Parse(r io.Reader) (*File, error) {
	f := &File{}
	var entry *Entry

	flush := func() {
		if entry != nil {
			f.Entries = append(f.Entries, *entry)
			entry = nil
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if m := authorRe.FindStringSubmatch(line); m != nil {
			flush()
			date, err := time.Parse(dateLayout, m[3])
			if err != nil {
				return nil, fmt.Errorf("bad date in mask header %q", line)
			}
			entry = &Entry{Author: m[1], Email: m[2], Date: date}
			continue
		}

		switch {
		case entry == nil:
			f.Header = append(f.Header, line)
		case strings.HasPrefix(line, "#"):
			entry.Comment = append(entry.Comment, strings.TrimPrefix(strings.TrimPrefix(line, "#"), " "))
		case strings.TrimSpace(line) == "":
			flush()
		default:
			atom, err := ebuild.ParseUserAtom(strings.TrimSpace(line))
			if err != nil {
				return nil, fmt.Errorf("bad atom in package.mask: %w", err)
			}
			entry.Atoms = append(entry.Atoms, atom)
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	// drop trailing blank header lines so rendering controls spacing
	for len(f.Header) > 0 && strings.TrimSpace(f.Header[len(f.Header)-1]) == "" {
		f.Header = f.Header[:len(f.Header)-1]
	}
	return f, nil
}

// Add inserts a new entry at the top, the conventional position for fresh
// masks.
func (f *File) Add(e Entry) {
	f.Entries = append([]Entry{e}, f.Entries...)
}

// Remove deletes entries masking the given atom and reports whether any
// matched.
func (f *File) Remove(atom ebuild.Atom) bool {
	removed := false
	var kept []Entry
	for _, e := range f.Entries {
		var atoms []ebuild.Atom
		for _, a := range e.Atoms {
			if a.String() == atom.String() {
				removed = true
				continue
			}
			atoms = append(atoms, a)
		}
		if len(atoms) > 0 {
			e.Atoms = atoms
			kept = append(kept, e)
		}
	}
	f.Entries = kept
	return removed
}

// Write renders the file back out in the canonical layout.
func (f *File) Write(w io.Writer) error {
	var b strings.Builder
	for _, line := range f.Header {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(f.Header) > 0 && len(f.Entries) > 0 {
		b.WriteByte('\n')
	}
	for i, e := range f.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "# %s <%s> (%s)\n", e.Author, e.Email, e.Date.Format(dateLayout))
		for _, line := range e.Comment {
			if line == "" {
				b.WriteString("#\n")
			} else {
				fmt.Fprintf(&b, "# %s\n", line)
			}
		}
		for _, a := range e.Atoms {
			b.WriteString(a.String())
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
