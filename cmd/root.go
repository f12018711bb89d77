package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"pkgdev/internal/cli"
	"pkgdev/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeUsage indicates invalid command-line input.
	ExitCodeUsage = 2
	// ExitCodeCancelled indicates the user declined a confirmation prompt.
	ExitCodeCancelled = 130
)

var debugFlag bool

// rootCmd represents the base command for the pkgdev application.
var rootCmd = &cobra.Command{
	Use:   "pkgdev",
	Short: "Gentoo ebuild maintainer helpers",
	Long: `pkgdev bundles the day-to-day chores of a Gentoo ebuild maintainer:
filing stabilization bugs with their dependency graph, committing and
pushing package changes, regenerating Manifests, and editing
profiles/package.mask.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if debugFlag {
			level = logging.LevelDebug
		}
		logging.InitForCLI(level, os.Stderr)
	},
}

// SetVersion sets the version for the root command. Called from the main
// package, which injects the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application. It runs the root
// command and maps errors to semantic exit codes.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "pkgdev version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the exit code for an error, so scripts can tell
// usage mistakes and declined prompts from real failures.
func getExitCode(err error) int {
	var usage *cli.UsageError
	if errors.As(err, &usage) {
		return ExitCodeUsage
	}

	var cancelled *cli.CancelledError
	if errors.As(err, &cancelled) {
		return ExitCodeCancelled
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	rootCmd.AddCommand(newBugsCmd())
	rootCmd.AddCommand(newCommitCmd())
	rootCmd.AddCommand(newManifestCmd())
	rootCmd.AddCommand(newMaskCmd())
	rootCmd.AddCommand(newPushCmd())
	rootCmd.AddCommand(newShowkwCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
