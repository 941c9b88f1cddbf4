// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	resultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// SupportsColor checks if stdout is a terminal that understands ANSI colors
func SupportsColor() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) { // #nosec G115 - file descriptors are small integers
		return false
	}

	termEnv := os.Getenv("TERM")
	if termEnv == "" || termEnv == "dumb" {
		return false
	}

	return os.Getenv("NO_COLOR") == ""
}

func render(style lipgloss.Style, s string) string {
	if !SupportsColor() {
		return s
	}
	return style.Render(s)
}

// FormatBlocked renders a blocked code generation message.
func FormatBlocked(msg string) string {
	return render(blockedStyle, "⛔ "+msg)
}

// FormatError renders a script or host error.
func FormatError(msg string) string {
	return render(errorStyle, msg)
}

// FormatResult renders a script result value.
func FormatResult(s string) string {
	return render(resultStyle, s)
}

// FormatDim renders secondary information such as request IDs.
func FormatDim(s string) string {
	return render(dimStyle, s)
}
