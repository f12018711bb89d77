package cmd

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"pkgdev/internal/cli"
	"pkgdev/internal/config"
	"pkgdev/internal/git"
	"pkgdev/pkg/logging"
)

type pushOptions struct {
	dryRun bool
	noScan bool
	signed bool
}

func newPushCmd() *cobra.Command {
	opts := &pushOptions{}
	cmd := &cobra.Command{
		Use:   "push [remote [branch]]",
		Short: "Push commits after a QA scan",
		Long: `push runs pkgcheck over the commits about to leave (when the scanner is
installed) and then pushes, signing the push when the remote requires
it.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "show what would be pushed without pushing")
	cmd.Flags().BoolVar(&opts.noScan, "no-scan", false, "skip the pkgcheck scan")
	cmd.Flags().BoolVar(&opts.signed, "signed", false, "force a signed push")

	return cmd
}

func runPush(cmd *cobra.Command, opts *pushOptions, args []string) error {
	root, err := git.Run(".", "rev-parse", "--show-toplevel")
	if err != nil {
		return err
	}
	root = strings.TrimSpace(root)
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	if !opts.noScan && cfg.Push.Pkgcheck {
		if err := scanCommits(cmd, root); err != nil {
			return err
		}
	}

	remote := "origin"
	if len(args) > 0 {
		remote = args[0]
	}

	pushArgs := []string{"push"}
	if opts.signed || signedRemote(cfg, remote) {
		pushArgs = append(pushArgs, "--signed")
	}
	if opts.dryRun {
		pushArgs = append(pushArgs, "--dry-run")
	}
	pushArgs = append(pushArgs, args...)

	return git.RunAttached(root, pushArgs...)
}

// scanCommits runs `pkgcheck scan --commits` when the scanner is installed.
// Findings abort the push unless the user insists.
func scanCommits(cmd *cobra.Command, root string) error {
	if _, err := exec.LookPath("pkgcheck"); err != nil {
		logging.Debug("Push", "pkgcheck not installed, skipping scan")
		return nil
	}

	scan := exec.Command("pkgcheck", "scan", "--commits")
	scan.Dir = root
	out, err := scan.CombinedOutput()
	if err == nil {
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), string(out))
	findings := strings.Count(strings.TrimSpace(string(out)), "\n") + 1
	if !cli.Userquery("pkgcheck reported problems. Push anyway?") {
		return &cli.QAError{Findings: findings}
	}
	return nil
}

func signedRemote(cfg config.Config, remote string) bool {
	for _, r := range cfg.Push.SignedRemotes {
		if r == remote {
			return true
		}
	}
	return false
}
