package cli

import (
	"io"
	"strings"

	"github.com/chzyer/readline"

	"pkgdev/pkg/logging"
)

// Userquery asks a yes/no question on the terminal and reports the answer.
// Anything that is not an explicit yes counts as no, including EOF and
// interrupt.
func Userquery(question string) bool {
	rl, err := readline.New(question + " [y/N] ")
	if err != nil {
		logging.Debug("Prompt", "readline unavailable: %v", err)
		return false
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		if err != readline.ErrInterrupt && err != io.EOF {
			logging.Debug("Prompt", "reading answer: %v", err)
		}
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
