package cli

import (
	"log/slog"

	"golang.org/x/term"
)

// TerminalDetector reports whether a file descriptor is an interactive
// terminal. An interface so tests can force either answer.
type TerminalDetector interface {
	IsTerminal(fd int) bool
}

// DefaultTerminalDetector uses golang.org/x/term.
type DefaultTerminalDetector struct{}

func (d *DefaultTerminalDetector) IsTerminal(fd int) bool {
	isTerminal := term.IsTerminal(fd)
	slog.Debug("terminal detection result", "fd", fd, "is_terminal", isTerminal)
	return isTerminal
}

// fixedTerminalDetector always answers the same; used in tests.
type fixedTerminalDetector struct {
	interactive bool
}

func (f *fixedTerminalDetector) IsTerminal(fd int) bool { return f.interactive }
