package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Editor resolves the user's editor command: $VISUAL, then $EDITOR, then
// nano as the conventional fallback.
func Editor() string {
	if visual := os.Getenv("VISUAL"); visual != "" {
		return visual
	}
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	return "nano"
}

// RunEditor opens the user's editor on a temp file seeded with initial and
// returns the saved contents. suffix controls the temp file extension so the
// editor picks sensible highlighting.
func RunEditor(initial []byte, suffix string) ([]byte, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("pkgdev-%s%s", uuid.NewString(), suffix))
	if err := os.WriteFile(path, initial, 0o600); err != nil {
		return nil, fmt.Errorf("creating editor scratch file: %w", err)
	}
	defer os.Remove(path)

	// $VISUAL/$EDITOR may carry arguments ("code -w")
	words := strings.Fields(Editor())
	cmd := exec.Command(words[0], append(words[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("editor failed: %w", err)
	}

	edited, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading edited file: %w", err)
	}
	return edited, nil
}
