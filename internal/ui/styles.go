// Package ui renders grove's terminal output: aligned tables, styled
// tree headers, and progress counters. Styling is disabled automatically
// when stdout is not a terminal.
package ui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	markerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	cmdStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	styled = term.IsTerminal(int(os.Stdout.Fd()))
)

// SetStyled overrides TTY detection, for tests and --color flags.
func SetStyled(on bool) { styled = on }

func render(s lipgloss.Style, text string) string {
	if !styled {
		return text
	}
	return s.Render(text)
}

// TreeHeader formats the banner printed before running commands in a
// tree. Verbose output includes the resolved path.
func TreeHeader(name, path string, verbose bool) string {
	if verbose {
		return fmt.Sprintf("%s %s  %s",
			render(markerStyle, "#"), render(nameStyle, name), render(pathStyle, path))
	}
	return fmt.Sprintf("%s %s", render(markerStyle, "#"), render(nameStyle, name))
}

// MissingTree formats the notice for a tree whose path does not exist.
func MissingTree(name, path string, verbose bool) string {
	if verbose {
		return render(skippedStyle, fmt.Sprintf("# %s  %s (skipped)", name, path))
	}
	return render(skippedStyle, fmt.Sprintf("# %s (skipped)", name))
}

// CommandLine formats an echoed script line in verbose mode.
func CommandLine(line string) string {
	return fmt.Sprintf("%s %s", render(markerStyle, ":"), render(cmdStyle, line))
}

// Errorf formats an error message for terminal display.
func Errorf(format string, args ...any) string {
	return render(errorStyle, fmt.Sprintf(format, args...))
}
