// Package terminal answers the one question the CLI needs about its
// output stream: is it a TTY, used to suppress progress-bar/color
// rendering when stdout is piped or redirected.
package terminal

import (
	"os"

	"github.com/mattn/go-isatty"
)

// IsInteractive reports whether stdout is attached to a terminal.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Shell classifies the $SHELL environment variable into one of the
// interactive shells the `shell` verb knows how to drop into, falling
// back to "sh" when unset or unrecognized.
func Shell() string {
	shell := os.Getenv("SHELL")
	switch {
	case hasSuffix(shell, "zsh"):
		return "zsh"
	case hasSuffix(shell, "fish"):
		return "fish"
	case hasSuffix(shell, "bash"):
		return "bash"
	default:
		return "sh"
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
