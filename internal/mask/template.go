package mask

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// scaffoldTemplate seeds the editor when composing a mask comment. The first
// line is the attribution header; everything below it is the comment the
// author is expected to rewrite.
const scaffoldTemplate = `{{ .Author }} <{{ .Email }}> ({{ .Date }})
Describe why the package has been masked.
{{- if .Removal }}
Removal on {{ .Removal }}.{{ if .Bugs }}  {{ .Bugs | join ", " }}.{{ end }}
{{- else if .Bugs }}
{{ .Bugs | join ", " }}.
{{- end }}
`

// Scaffold renders the editor seed for a new mask entry. ritesDays of zero
// means a plain mask without a removal date.
func Scaffold(author, email string, now time.Time, ritesDays int, bugs []int) (string, error) {
	data := struct {
		Author, Email, Date, Removal string
		Bugs                         []string
	}{
		Author: author,
		Email:  email,
		Date:   now.Format(dateLayout),
	}
	if ritesDays > 0 {
		data.Removal = now.AddDate(0, 0, ritesDays).Format(dateLayout)
	}
	for _, bug := range bugs {
		data.Bugs = append(data.Bugs, fmt.Sprintf("Bug #%d", bug))
	}

	tmpl, err := template.New("scaffold").Funcs(sprig.TxtFuncMap()).Parse(scaffoldTemplate)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

// ParseScaffold turns the edited scaffold text back into an entry: the first
// line must still be the attribution header, the rest become comment lines.
func ParseScaffold(text string) (Entry, error) {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 {
		return Entry{}, fmt.Errorf("empty mask comment")
	}
	m := authorRe.FindStringSubmatch("# " + lines[0])
	if m == nil {
		return Entry{}, fmt.Errorf("first line must be %q, got %q", "Author <email> (YYYY-MM-DD)", lines[0])
	}
	date, err := time.Parse(dateLayout, m[3])
	if err != nil {
		return Entry{}, fmt.Errorf("bad date %q in mask comment", m[3])
	}
	entry := Entry{Author: m[1], Email: m[2], Date: date}
	for _, line := range lines[1:] {
		entry.Comment = append(entry.Comment, strings.TrimRight(line, " \t"))
	}
	for len(entry.Comment) > 0 && entry.Comment[len(entry.Comment)-1] == "" {
		entry.Comment = entry.Comment[:len(entry.Comment)-1]
	}
	return entry, nil
}
