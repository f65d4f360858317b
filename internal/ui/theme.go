// Package ui provides terminal styling and prompts for the padlink CLI
package ui

import (
	"os"

	"golang.org/x/term"
)

// ANSI color codes
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Cyan   = "\033[36m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Red    = "\033[31m"
)

// Box drawing characters
const (
	BoxTopLeft     = "╭"
	BoxTopRight    = "╮"
	BoxBottomLeft  = "╰"
	BoxBottomRight = "╯"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
)

var (
	colorEnabled = true
	stdoutTTY    = true
	stdinTTY     = true
)

func init() {
	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" {
		colorEnabled = false
	}
	stdoutTTY = term.IsTerminal(int(os.Stdout.Fd()))
	stdinTTY = term.IsTerminal(int(os.Stdin.Fd()))
	if !stdoutTTY {
		colorEnabled = false
	}
}

// SetNoColor disables color output
func SetNoColor(disable bool) {
	if disable {
		colorEnabled = false
	}
}

// IsTTY returns whether stdout is a terminal
func IsTTY() bool {
	return stdoutTTY
}

// IsInteractive returns whether stdin is a terminal
func IsInteractive() bool {
	return stdinTTY
}

// Color wraps text with an ANSI color code
func Color(code, text string) string {
	if !colorEnabled {
		return text
	}
	return code + text + Reset
}
