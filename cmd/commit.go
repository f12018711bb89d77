package cmd

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkgdev/internal/cli"
	"pkgdev/internal/config"
	"pkgdev/internal/git"
	"pkgdev/internal/mangle"
)

type commitOptions struct {
	message string
	signoff bool
	edit    bool
	dryRun  bool
	bugs    []int
	closes  []int
}

func newCommitCmd() *cobra.Command {
	opts := &commitOptions{}
	cmd := &cobra.Command{
		Use:   "commit [path...]",
		Short: "Commit package changes with a generated summary",
		Long: `commit normalizes the changed files, stages them, and commits with a
summary generated from the ebuild changes (added or dropped versions,
metadata updates). Paths limit the commit scope; the default is the
current directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "commit message (replaces the generated summary)")
	cmd.Flags().BoolVarP(&opts.signoff, "signoff", "s", false, "add a Signed-off-by trailer")
	cmd.Flags().BoolVarP(&opts.edit, "edit", "e", false, "open the message in the editor before committing")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "show what would be committed without committing")
	cmd.Flags().IntSliceVarP(&opts.bugs, "bug", "b", nil, "referenced bug ids (Bug: trailers)")
	cmd.Flags().IntSliceVarP(&opts.closes, "closes", "c", nil, "fixed bug ids (Closes: trailers)")

	return cmd
}

// fileChange is one entry of `git status --porcelain`.
type fileChange struct {
	status byte // A, M, D
	path   string
}

func runCommit(opts *commitOptions, args []string) error {
	root, err := git.Run(".", "rev-parse", "--show-toplevel")
	if err != nil {
		return err
	}
	cfg, err := config.Load(strings.TrimSpace(root))
	if err != nil {
		return err
	}

	scope := args
	if len(scope) == 0 {
		scope = []string{"."}
	}

	porcelain, err := git.Run(".", append([]string{"status", "--porcelain", "--"}, scope...)...)
	if err != nil {
		return err
	}
	changes := parseStatus(porcelain)
	if len(changes) == 0 {
		return fmt.Errorf("no changes to commit")
	}

	var surviving []string
	for _, c := range changes {
		if c.status != 'D' {
			surviving = append(surviving, c.path)
		}
	}
	if _, err := mangle.Files(surviving, mangle.Transforms(time.Now())); err != nil {
		return err
	}

	if _, err := git.Run(".", append([]string{"add", "--all", "--"}, scope...)...); err != nil {
		return err
	}

	message := opts.message
	if message == "" {
		if message, err = commitSummary(changes); err != nil {
			return err
		}
	}
	message = withTrailers(message, opts.bugs, opts.closes)

	commitArgs := []string{"commit", "-m", message}
	if opts.signoff || cfg.Commit.Signoff {
		commitArgs = append(commitArgs, "--signoff")
	}
	if opts.edit {
		commitArgs = append(commitArgs, "--edit")
	}
	if opts.dryRun {
		commitArgs = append(commitArgs, "--dry-run")
	}
	return git.RunAttached(".", commitArgs...)
}

// parseStatus reads `git status --porcelain` output. Renames count as a
// modification of the new path.
func parseStatus(out string) []fileChange {
	var changes []fileChange
	for _, line := range strings.Split(out, "\n") {
		if len(line) < 4 {
			continue
		}
		code, file := line[:2], line[3:]
		if _, renamed, ok := strings.Cut(file, " -> "); ok {
			file = renamed
		}

		status := code[0]
		if status == ' ' || status == '?' {
			status = code[1]
		}
		switch status {
		case 'A', 'M', 'D', 'R', 'C', '?':
			if status == '?' {
				status = 'A'
			}
			if status == 'R' || status == 'C' {
				status = 'M'
			}
			changes = append(changes, fileChange{status: status, path: file})
		}
	}
	return changes
}

// commitSummary derives "category/package: <what>" from the changed files.
// Commits touching more than one package need an explicit message.
func commitSummary(changes []fileChange) (string, error) {
	pkgs := make(map[string]struct{})
	var added, dropped []string
	otherFiles := make(map[string]struct{})

	for _, c := range changes {
		parts := strings.Split(c.path, "/")
		if len(parts) < 3 {
			return "", &cli.UsageError{Message: fmt.Sprintf(
				"cannot summarize changes outside a package directory (%s), use -m", c.path)}
		}
		pkg := parts[0] + "/" + parts[1]
		pkgs[pkg] = struct{}{}

		base := path.Base(c.path)
		if version, ok := ebuildVersion(base, parts[1]); ok {
			switch c.status {
			case 'A':
				added = append(added, version)
			case 'D':
				dropped = append(dropped, version)
			}
			continue
		}
		otherFiles[base] = struct{}{}
	}

	if len(pkgs) != 1 {
		return "", &cli.UsageError{Message: "cannot generate a summary for changes across packages, use -m"}
	}
	var pkg string
	for p := range pkgs {
		pkg = p
	}

	var parts []string
	if len(added) > 0 {
		sort.Strings(added)
		parts = append(parts, "add "+strings.Join(added, ", "))
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		parts = append(parts, "drop "+strings.Join(dropped, ", "))
	}
	if len(parts) == 0 {
		switch {
		case len(otherFiles) == 1 && hasKey(otherFiles, "metadata.xml"):
			parts = append(parts, "update metadata")
		case len(otherFiles) == 1 && hasKey(otherFiles, "Manifest"):
			parts = append(parts, "update Manifest")
		default:
			parts = append(parts, "update")
		}
	}
	return pkg + ": " + strings.Join(parts, ", "), nil
}

// ebuildVersion extracts "1.2.3-r1" from "name-1.2.3-r1.ebuild".
func ebuildVersion(base, name string) (string, bool) {
	rest, ok := strings.CutSuffix(base, ".ebuild")
	if !ok {
		return "", false
	}
	version, ok := strings.CutPrefix(rest, name+"-")
	if !ok {
		return "", false
	}
	return version, true
}

func withTrailers(message string, bugs, closes []int) string {
	var trailers []string
	for _, id := range bugs {
		trailers = append(trailers, fmt.Sprintf("Bug: https://bugs.gentoo.org/%d", id))
	}
	for _, id := range closes {
		trailers = append(trailers, fmt.Sprintf("Closes: https://bugs.gentoo.org/%d", id))
	}
	if len(trailers) == 0 {
		return message
	}
	return message + "\n\n" + strings.Join(trailers, "\n")
}

func hasKey(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}
