// Package git wraps the git command line for repository maintenance tasks
// and derives package history indices from the commit log.
package git

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Error is a failed git invocation carrying the process exit code.
type Error struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("git %s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Run executes git with the given arguments in dir and returns its stdout.
// The PKGDEV environment variable is set so that repository hooks can detect
// tool-driven operations. When --dry-run is among the arguments the
// equivalent real command is echoed to stderr, matching `git push -n` style
// previewing for the whole tool.
func Run(dir string, args ...string) (string, error) {
	for _, arg := range args {
		if arg == "--dry-run" {
			fmt.Fprintf(os.Stderr, "git %s\n", strings.Join(withoutDryRun(args), " "))
			break
		}
	}

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PKGDEV=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return stdout.String(), &Error{Args: args, ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return "", fmt.Errorf("running git: %w", err)
	}
	return stdout.String(), nil
}

// RunAttached executes git with the caller's terminal attached, for
// subcommands that may open an editor (commit) or prompt for signing keys
// (push --signed).
func RunAttached(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PKGDEV=1")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &Error{Args: args, ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("running git: %w", err)
	}
	return nil
}

func withoutDryRun(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if arg != "--dry-run" {
			out = append(out, arg)
		}
	}
	return out
}

// ConfigValue reads a git config key in dir.
func ConfigValue(dir, key string) (string, error) {
	out, err := Run(dir, "config", key)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
