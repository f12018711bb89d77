package cli

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// WithSpinner runs fn behind a progress spinner. Quiet mode and non-terminal
// output skip the spinner entirely so piped output stays clean.
func WithSpinner(message string, quiet bool, fn func() error) error {
	if quiet || !isatty.IsTerminal(os.Stderr.Fd()) {
		return fn()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	defer s.Stop()

	err := fn()
	if err != nil {
		s.FinalMSG = text.FgRed.Sprint(message+" failed") + "\n"
	}
	return err
}
