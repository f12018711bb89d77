package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"pkgdev/internal/cli"
	"pkgdev/internal/ebuild"
)

type showkwOptions struct {
	repoPath string
	stable   bool
	testing  bool
}

func newShowkwCmd() *cobra.Command {
	opts := &showkwOptions{}
	cmd := &cobra.Command{
		Use:   "showkw [target...]",
		Short: "Show a keyword table for package versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowkw(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.repoPath, "repo", ".", "path to the ebuild repository")
	cmd.Flags().BoolVarP(&opts.stable, "stable", "s", false, "only arches with a stable keyword")
	cmd.Flags().BoolVarP(&opts.testing, "testing", "t", false, "only arches with a testing keyword")

	return cmd
}

func runShowkw(cmd *cobra.Command, opts *showkwOptions, args []string) error {
	repo, err := ebuild.OpenRepo(opts.repoPath)
	if err != nil {
		return err
	}

	targets := args
	if len(targets) == 0 {
		targets = []string{"."}
	}

	out := cmd.OutOrStdout()
	for _, target := range targets {
		atom, err := resolveMaskTarget(repo, target)
		if err != nil {
			return err
		}
		pkgs := repo.Match(atom.Unversioned())
		if len(pkgs) == 0 {
			return &cli.UsageError{Message: fmt.Sprintf("%s has no match in repository", atom)}
		}
		fmt.Fprintf(out, "keywords for %s:\n", atom.Key())
		renderKeywordTable(out, pkgs, keywordArches(pkgs, opts))
	}
	return nil
}

// keywordArches picks the table columns: every arch that appears on any
// version, filtered down by --stable/--testing.
func keywordArches(pkgs []*ebuild.Package, opts *showkwOptions) []string {
	set := make(map[string]struct{})
	for _, p := range pkgs {
		for _, kw := range p.Keywords {
			if kw == "-*" {
				continue
			}
			if opts.stable && !ebuild.KeywordStable(kw) {
				continue
			}
			if opts.testing && !ebuild.KeywordTesting(kw) {
				continue
			}
			set[ebuild.KeywordArch(kw)] = struct{}{}
		}
	}
	arches := make([]string, 0, len(set))
	for arch := range set {
		arches = append(arches, arch)
	}
	return ebuild.SortKeywords(arches)
}

func renderKeywordTable(out io.Writer, pkgs []*ebuild.Package, arches []string) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	if !isTerminal(out) {
		t.SetStyle(table.StyleDefault)
	} else {
		t.SetStyle(table.StyleRounded)
	}

	header := table.Row{"version"}
	for _, arch := range arches {
		header = append(header, arch)
	}
	header = append(header, "eapi", "slot")
	t.AppendHeader(header)

	for _, p := range pkgs {
		marks := make(map[string]string, len(p.Keywords))
		for _, kw := range p.Keywords {
			switch {
			case kw == "-*":
				// lowers every arch without an explicit keyword
			case ebuild.KeywordStable(kw):
				marks[kw] = "+"
			case ebuild.KeywordTesting(kw):
				marks[ebuild.KeywordArch(kw)] = "~"
			default:
				marks[ebuild.KeywordArch(kw)] = "-"
			}
		}
		row := table.Row{p.Version}
		for _, arch := range arches {
			mark, ok := marks[arch]
			if !ok {
				mark = ""
			}
			row = append(row, mark)
		}
		row = append(row, p.EAPI, p.Slot)
		t.AppendRow(row)
	}
	t.Render()
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
