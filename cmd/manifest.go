package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pkgdev/internal/cli"
	"pkgdev/internal/ebuild"
	"pkgdev/internal/git"
	"pkgdev/internal/manifest"
)

const defaultDistdir = "/var/cache/distfiles"

type manifestOptions struct {
	repoPath   string
	distdir    string
	force      bool
	ifModified bool
	quiet      bool
}

func newManifestCmd() *cobra.Command {
	opts := &manifestOptions{}
	cmd := &cobra.Command{
		Use:   "manifest [target...]",
		Short: "Regenerate package Manifest files",
		Long: `manifest re-hashes the distfiles of the targeted packages and rewrites
their Manifest files. Targets are package directories or atoms; the
default is the current directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifest(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.repoPath, "repo", ".", "path to the ebuild repository")
	cmd.Flags().StringVar(&opts.distdir, "distdir", "", "distfiles directory (defaults to $DISTDIR)")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "rewrite even when unchanged, fail on missing distfiles")
	cmd.Flags().BoolVarP(&opts.ifModified, "if-modified", "m", false, "only packages with uncommitted changes")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress progress output")

	return cmd
}

func runManifest(cmd *cobra.Command, opts *manifestOptions, args []string) error {
	repo, err := ebuild.OpenRepo(opts.repoPath)
	if err != nil {
		return err
	}

	dirs, err := resolveManifestDirs(repo, args)
	if err != nil {
		return err
	}

	distdir := opts.distdir
	if distdir == "" {
		distdir = os.Getenv("DISTDIR")
	}
	if distdir == "" {
		distdir = defaultDistdir
	}

	out := cmd.OutOrStdout()
	for _, dir := range dirs {
		if opts.ifModified {
			status, err := git.Run(repo.Location, "status", "--porcelain", "--", dir)
			if err != nil {
				return err
			}
			if strings.TrimSpace(status) == "" {
				continue
			}
		}

		manifestPath := filepath.Join(dir, "Manifest")
		if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
			continue // nothing fetched for this package yet
		}

		var changed bool
		err := cli.WithSpinner(fmt.Sprintf("Hashing distfiles for %s", filepath.Base(dir)), opts.quiet, func() error {
			var err error
			changed, err = manifest.Regenerate(manifestPath, distdir, opts.force)
			return err
		})
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintf(out, "Updated %s\n", manifestPath)
		}
	}
	return nil
}

// resolveManifestDirs maps arguments to package directories: existing paths
// are taken as-is, anything else must be an atom inside the repository. No
// arguments means the current directory.
func resolveManifestDirs(repo *ebuild.Repo, args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"."}
	}
	var dirs []string
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			dirs = append(dirs, arg)
			continue
		}
		atom, err := ebuild.ParseUserAtom(arg)
		if err != nil {
			return nil, &cli.UsageError{Message: fmt.Sprintf("%s is neither a directory nor an atom", arg)}
		}
		dirs = append(dirs, filepath.Join(repo.Location, atom.Key()))
	}
	return dirs, nil
}
