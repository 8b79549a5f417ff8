package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const cardWidth = 70

// ActionCardOptions configures the action card display
type ActionCardOptions struct {
	Action    string
	Target    string
	Rationale string
	RiskLevel string // "HIGH", "MEDIUM", "LOW"
	Locked    bool
}

func riskStyle(level string) (string, string) {
	switch strings.ToUpper(level) {
	case "HIGH":
		return "HIGH", Red
	case "MEDIUM":
		return "MEDIUM", Yellow
	default:
		return "LOW", Green
	}
}

// RenderActionCard draws the confirmation card shown before a destructive
// command is sent.
func RenderActionCard(opts ActionCardOptions) string {
	b := newBox(cardWidth, Yellow)
	b.sb.WriteString("\n")
	b.top(fmt.Sprintf(" Confirm: %s ", opts.Action), Yellow, 2)

	if opts.Target != "" {
		b.row(Color(Bold, "Target:") + " " + truncate(opts.Target, cardWidth-13))
	}

	lock := Color(Green, "released")
	if opts.Locked {
		lock = Color(Red+Bold, "ENGAGED (request will be a no-op)")
	}
	b.row(Color(Dim, "Lock:") + " " + lock)

	risk, color := riskStyle(opts.RiskLevel)
	b.row(Color(Dim, "Risk:") + " " + Color(Bold+color, risk))

	if opts.Rationale != "" {
		b.rule(BoxTeeRight, BoxTeeLeft)
		for _, line := range wrapText(opts.Rationale, cardWidth-4) {
			b.row(line)
		}
	}

	b.bottom()
	return b.String()
}

// RenderActionOptions displays the action choice menu
func RenderActionOptions() string {
	return "\n" + Color(Bold, "Choose an option:\n") +
		fmt.Sprintf("  %s Yes, execute\n", Color(Green, "[1/y]")) +
		fmt.Sprintf("  %s No, abort\n", Color(Red, "[2/n]")) + "\n"
}

// RenderChoicePrompt displays the choice input prompt
func RenderChoicePrompt() string {
	return "Choice [y/N]: "
}

// truncate shortens s to maxLen runes, marking the cut with "..."
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 3 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// wrapText breaks s into lines at most width cells wide. Words longer than
// width, including unspaced CJK runs, are split hard.
func wrapText(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	wrapped := lipgloss.NewStyle().Width(width).Render(s)
	lines := strings.Split(wrapped, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return lines
}
