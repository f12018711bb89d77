package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pkgdev/internal/cli"
	"pkgdev/internal/config"
	"pkgdev/internal/ebuild"
	"pkgdev/internal/git"
	"pkgdev/internal/mask"
)

type maskOptions struct {
	repoPath  string
	rites     bool
	ritesDays int
	bugs      []int
	remove    bool
}

func newMaskCmd() *cobra.Command {
	opts := &maskOptions{}
	cmd := &cobra.Command{
		Use:   "mask [target]",
		Short: "Add or remove profiles/package.mask entries",
		Long: `mask composes a new package.mask entry for the target in your editor
and inserts it at the top of the file. The target is an atom or a path
inside the repository; the default is the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMask(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.repoPath, "repo", ".", "path to the ebuild repository")
	cmd.Flags().BoolVarP(&opts.rites, "rites", "r", false, "mask for removal (last rites)")
	cmd.Flags().IntVar(&opts.ritesDays, "rites-days", 0, "removal window in days (defaults to configuration)")
	cmd.Flags().IntSliceVarP(&opts.bugs, "bug", "b", nil, "referenced bug ids")
	cmd.Flags().BoolVar(&opts.remove, "remove", false, "remove the target's mask entry instead")

	return cmd
}

func runMask(cmd *cobra.Command, opts *maskOptions, args []string) error {
	repo, err := ebuild.OpenRepo(opts.repoPath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(repo.Location)
	if err != nil {
		return err
	}

	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	atom, err := resolveMaskTarget(repo, target)
	if err != nil {
		return err
	}

	maskPath := filepath.Join(repo.Location, "profiles", "package.mask")
	data, err := os.ReadFile(maskPath)
	if err != nil {
		return err
	}
	file, err := mask.Parse(strings.NewReader(string(data)))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.remove {
		if !file.Remove(atom) {
			return fmt.Errorf("%s is not masked", atom)
		}
		fmt.Fprintf(out, "Unmasked %s\n", atom)
		return writeMaskFile(maskPath, file)
	}

	author, email, err := gitIdentity(repo.Location)
	if err != nil {
		return err
	}

	days := 0
	if opts.rites {
		days = opts.ritesDays
		if days == 0 {
			days = cfg.Mask.RitesDays
		}
	}

	scaffold, err := mask.Scaffold(author, email, time.Now(), days, opts.bugs)
	if err != nil {
		return err
	}
	edited, err := cli.RunEditor([]byte(scaffold), ".txt")
	if err != nil {
		return err
	}
	entry, err := mask.ParseScaffold(string(edited))
	if err != nil {
		return err
	}
	entry.Atoms = []ebuild.Atom{atom}

	file.Add(entry)
	if err := writeMaskFile(maskPath, file); err != nil {
		return err
	}
	fmt.Fprintf(out, "Masked %s\n", atom)
	return nil
}

// resolveMaskTarget accepts an atom or a repository path standing for one.
func resolveMaskTarget(repo *ebuild.Repo, target string) (ebuild.Atom, error) {
	if _, err := os.Stat(target); err == nil {
		return repo.PathRestrict(target)
	}
	return ebuild.ParseUserAtom(target)
}

func gitIdentity(dir string) (name, email string, err error) {
	if name, err = git.ConfigValue(dir, "user.name"); err != nil {
		return "", "", fmt.Errorf("git user.name not configured: %w", err)
	}
	if email, err = git.ConfigValue(dir, "user.email"); err != nil {
		return "", "", fmt.Errorf("git user.email not configured: %w", err)
	}
	return name, email, nil
}

func writeMaskFile(path string, file *mask.File) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := file.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
