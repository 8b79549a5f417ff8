// Package ui renders NeuroLink's terminal output: ANSI theme, the header box,
// log lines, chat turns, the confirmation card and a spinner.
package ui

import (
	"os"
	"regexp"

	"golang.org/x/term"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Dim     = "\033[2m"
	Cyan    = "\033[36m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Red     = "\033[31m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	White   = "\033[37m"
)

// Box drawing characters
const (
	BoxTopLeft     = "╭"
	BoxTopRight    = "╮"
	BoxBottomLeft  = "╰"
	BoxBottomRight = "╯"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
	BoxTeeRight    = "├"
	BoxTeeLeft     = "┤"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

var (
	colorEnabled = true
	isTTY        = true
)

func init() {
	// NO_COLOR (https://no-color.org/) and a non-terminal stdout both disable colour
	isTTY = term.IsTerminal(int(os.Stdout.Fd()))
	colorEnabled = isTTY && os.Getenv("NO_COLOR") == ""
}

// SetNoColor disables color output. It never re-enables it.
func SetNoColor(disable bool) {
	if disable {
		colorEnabled = false
	}
}

// IsColorEnabled returns whether color output is enabled
func IsColorEnabled() bool {
	return colorEnabled
}

// IsTTY returns whether stdout is a terminal
func IsTTY() bool {
	return isTTY
}

// Color wraps text with an ANSI color code
func Color(code, text string) string {
	if !colorEnabled {
		return text
	}
	return code + text + Reset
}

// StatusColor returns the color for a device status: green online, yellow
// while a transition is in flight, dim otherwise.
func StatusColor(status string) string {
	switch status {
	case "online":
		return Green + Bold
	case "booting", "shutting_down":
		return Yellow + Bold
	default:
		return Dim
	}
}

// Strip removes ANSI escape sequences
func Strip(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
