package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"pkgdev/internal/bugs"
	"pkgdev/internal/bugzilla"
	"pkgdev/internal/cli"
	"pkgdev/internal/config"
	"pkgdev/internal/ebuild"
	"pkgdev/internal/git"
	"pkgdev/pkg/logging"
)

type bugsOptions struct {
	repoPath         string
	stablereq        bool
	keywording       bool
	dotPath          string
	editGraph        bool
	autoCCArches     []string
	findByMaintainer []string
	blocks           []int
	apiKey           string
	baseURL          string
	dryRun           bool
	quiet            bool
}

func newBugsCmd() *cobra.Command {
	opts := &bugsOptions{}
	cmd := &cobra.Command{
		Use:   "bugs [target...]",
		Short: "File stabilization bugs for packages and their dependencies",
		Long: `bugs builds the stabilization dependency graph for the given targets,
merges cycles and related packages into shared bugs, and files the
resulting bugs on Bugzilla in dependency order.

Targets are package atoms or paths inside the ebuild repository. With no
targets and piped input, atoms are read from stdin, one per line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBugs(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.repoPath, "repo", ".", "path to the ebuild repository")
	cmd.Flags().BoolVarP(&opts.stablereq, "stablereq", "s", true, "file stabilization bugs")
	cmd.Flags().BoolVarP(&opts.keywording, "keywording", "k", false, "file keywording bugs")
	cmd.Flags().StringVar(&opts.dotPath, "dot", "", "write the dependency graph to FILE in dot format")
	cmd.Flags().BoolVar(&opts.editGraph, "edit-graph", false, "edit the graph in $EDITOR before filing")
	cmd.Flags().StringSliceVar(&opts.autoCCArches, "auto-cc-arches", nil,
		"maintainer emails whose bugs get CC-ARCHES ('*' for all)")
	cmd.Flags().StringSliceVar(&opts.findByMaintainer, "find-by-maintainer", nil,
		"add all packages maintained by these emails as targets")
	cmd.Flags().IntSliceVar(&opts.blocks, "blocks", nil, "bug ids the filed target bugs should block")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Bugzilla API key (overrides configuration)")
	cmd.Flags().StringVar(&opts.baseURL, "bugzilla-url", "", "Bugzilla instance URL (defaults to bugs.gentoo.org)")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "build and print the graph without filing anything")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress progress output")

	return cmd
}

func runBugs(cmd *cobra.Command, opts *bugsOptions, args []string) error {
	if opts.keywording {
		return fmt.Errorf("keywording is not implemented yet")
	}

	repo, err := ebuild.OpenRepo(opts.repoPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(repo.Location)
	if err != nil {
		return err
	}

	var stdin io.Reader
	if len(args) == 0 && len(opts.findByMaintainer) == 0 && !isatty.IsTerminal(os.Stdin.Fd()) {
		stdin = cmd.InOrStdin()
	}
	restricts, err := resolveBugTargets(repo, args, opts.findByMaintainer, stdin)
	if err != nil {
		return err
	}
	if len(restricts) == 0 {
		return &cli.UsageError{Message: "no targets specified"}
	}

	history, err := git.LoadHistory(repo.Location)
	if err != nil {
		// not committing anything here, ages are advisory
		logging.Warn("Bugs", "no git history available: %v", err)
		history = nil
	}

	out := cmd.OutOrStdout()
	graph := bugs.NewDependencyGraph(repo, bugs.NewRepoChecker(repo), historyOrNil(history), out)
	for _, email := range autoCCList(opts, cfg) {
		graph.AutoCCArches[email] = struct{}{}
	}

	if err := graph.LoadTargets(restricts); err != nil {
		return err
	}
	if err := graph.BuildFullGraph(); err != nil {
		return err
	}
	var edit func([]byte, string) ([]byte, error)
	if opts.editGraph {
		edit = cli.RunEditor
	}
	if err := prepareGraph(graph, opts.dotPath, edit); err != nil {
		return err
	}

	apiKey := opts.apiKey
	if apiKey == "" {
		if apiKey, err = cfg.ResolveAPIKey(); err != nil {
			return err
		}
	}
	tracker := bugzilla.NewClient(opts.baseURL, apiKey)

	if err := scanExistingBugs(graph, tracker, opts.quiet, cli.Userquery); err != nil {
		return err
	}

	printGraphSummary(out, graph)

	unfiled := graph.UnfiledCount()
	if unfiled == 0 {
		fmt.Fprintln(out, "Every node already has a bug, nothing to file.")
		return nil
	}
	if opts.dryRun {
		return nil
	}
	if apiKey == "" {
		return fmt.Errorf("no Bugzilla API key configured")
	}
	if !cli.Userquery(fmt.Sprintf("File %d bug(s)?", unfiled)) {
		return &cli.CancelledError{Action: "filing bugs"}
	}

	blocks := opts.blocks
	if len(blocks) == 0 {
		blocks = cfg.Bugs.Blocks
	}
	return graph.FileBugs(tracker, blocks, func(n *bugs.GraphNode) {
		fmt.Fprintf(out, "Filed https://bugs.gentoo.org/%d for %s\n", n.BugNo, n)
	})
}

// resolveBugTargets turns command-line arguments, maintainer queries and
// piped stdin lines into repository restrictions. Arguments naming an
// existing path are resolved through the repository layout; anything else
// must parse as an atom.
// prepareGraph canonicalizes the built graph and runs the optional export
// hooks. The editable document carries the full keyword lists; the display
// cleanup pass runs only after a possible edit round trip so hand edits see
// real keywords rather than the collapsed sentinels.
func prepareGraph(graph *bugs.DependencyGraph, dotPath string, edit func([]byte, string) ([]byte, error)) error {
	graph.Canonicalize()

	if dotPath != "" {
		if err := writeDotFile(graph, dotPath); err != nil {
			return err
		}
	}

	if edit != nil {
		var doc bytes.Buffer
		if err := graph.ExportDocument(&doc); err != nil {
			return err
		}
		edited, err := edit(doc.Bytes(), ".toml")
		if err != nil {
			return err
		}
		if err := graph.ImportDocument(edited); err != nil {
			return err
		}
	}

	graph.CleanupKeywords()
	return nil
}

// scanExistingBugs reconciles the graph against open tracker bugs, but only
// when the user agrees to the extra queries.
func scanExistingBugs(graph *bugs.DependencyGraph, tracker bugs.Tracker, quiet bool, confirm func(string) bool) error {
	if !confirm("Check for open bugs matching current graph?") {
		return nil
	}
	return cli.WithSpinner("Checking for existing bugs", quiet, func() error {
		return graph.ScanExistingBugs(tracker)
	})
}

func resolveBugTargets(repo *ebuild.Repo, args, maintainers []string, stdin io.Reader) ([]ebuild.Atom, error) {
	var restricts []ebuild.Atom

	addWord := func(word string) error {
		if _, err := os.Stat(word); err == nil {
			atom, err := repo.PathRestrict(word)
			if err != nil {
				return err
			}
			restricts = append(restricts, atom)
			return nil
		}
		atom, err := ebuild.ParseUserAtom(word)
		if err != nil {
			return err
		}
		restricts = append(restricts, atom)
		return nil
	}

	for _, arg := range args {
		if err := addWord(arg); err != nil {
			return nil, err
		}
	}

	if len(maintainers) > 0 {
		emails := make(map[string]struct{}, len(maintainers))
		for _, email := range maintainers {
			emails[email] = struct{}{}
		}
		for _, key := range repo.MaintainedBy(emails) {
			atom, err := ebuild.ParseAtom(key)
			if err != nil {
				return nil, err
			}
			restricts = append(restricts, atom)
		}
	}

	if stdin != nil {
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" {
				continue
			}
			if err := addWord(word); err != nil {
				return nil, err
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
	}

	return restricts, nil
}

// historyOrNil keeps a typed-nil *git.History from sneaking into the
// interface.
func historyOrNil(h *git.History) bugs.History {
	if h == nil {
		return nil
	}
	return h
}

func autoCCList(opts *bugsOptions, cfg config.Config) []string {
	if len(opts.autoCCArches) > 0 {
		return opts.autoCCArches
	}
	return cfg.Bugs.AutoCCArches
}

func writeDotFile(graph *bugs.DependencyGraph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := graph.WriteDot(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printGraphSummary(out io.Writer, graph *bugs.DependencyGraph) {
	for _, node := range graph.SortedNodes() {
		if len(node.Pkgs) == 0 {
			continue
		}
		if node.BugNo != 0 {
			fmt.Fprintf(out, "%s (bug #%d)\n", strings.Join(node.Lines(), "\n"), node.BugNo)
		} else {
			fmt.Fprintln(out, strings.Join(node.Lines(), "\n"))
		}
		fmt.Fprintln(out)
	}
}
