package main

import (
	"os"

	"golang.org/x/term"
)

// isInteractive reports whether stdout is attached to a terminal, used
// to pick a sensible default for --no-wizard when gday is run from a
// script or CI job instead of a shell.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
