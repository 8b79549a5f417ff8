package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const headerWidth = 78

var logo = []string{
	"▗▖  ▗▖ ▗▄▄▄▖ ▗▖ ▗▖ ▗▄▄▖  ▗▄▖",
	"▐▛▚▖▐▌ ▐▌    ▐▌ ▐▌ ▐▌ ▐▌▐▌ ▐▌",
	"▐▌ ▝▜▌ ▐▛▀▀▘ ▝▚▄▞▘ ▐▛▀▚▖▝▚▄▞▘",
}

// box draws fixed width frames. Cell widths come from lipgloss so ANSI
// sequences and double width runes are measured correctly.
type box struct {
	sb     strings.Builder
	width  int
	border string
}

func newBox(width int, border string) *box {
	return &box{width: width, border: border}
}

// top writes ╭─── title ───╮ with the title offset by lead dashes.
func (b *box) top(title, titleColor string, lead int) {
	fill := b.width - 2 - lead - lipgloss.Width(title)
	if fill < 0 {
		fill = 0
	}
	b.sb.WriteString(Color(b.border, BoxTopLeft+strings.Repeat(BoxHorizontal, lead)))
	b.sb.WriteString(Color(titleColor, title))
	b.sb.WriteString(Color(b.border, strings.Repeat(BoxHorizontal, fill)+BoxTopRight))
	b.sb.WriteString("\n")
}

func (b *box) rule(left, right string) {
	b.sb.WriteString(Color(b.border, left+strings.Repeat(BoxHorizontal, b.width-2)+right))
	b.sb.WriteString("\n")
}

func (b *box) bottom() {
	b.rule(BoxBottomLeft, BoxBottomRight)
}

// row writes text left aligned behind a single space.
func (b *box) row(text string) {
	b.line(" "+text, false)
}

// center writes text centered in the frame.
func (b *box) center(text string) {
	b.line(text, true)
}

func (b *box) line(text string, centered bool) {
	inner := b.width - 2
	gap := inner - lipgloss.Width(text)
	if gap < 0 {
		gap = 0
	}
	left := 0
	if centered {
		left = gap / 2
	}
	b.sb.WriteString(Color(b.border, BoxVertical))
	b.sb.WriteString(strings.Repeat(" ", left))
	b.sb.WriteString(text)
	b.sb.WriteString(strings.Repeat(" ", gap-left))
	b.sb.WriteString(Color(b.border, BoxVertical))
	b.sb.WriteString("\n")
}

func (b *box) String() string {
	return b.sb.String()
}

// RenderHeader displays the welcome panel for the chat REPL
func RenderHeader(version, user, serverURL string) string {
	b := newBox(headerWidth, Cyan)
	b.top(fmt.Sprintf(" NeuroLink v%s ", version), Cyan+Bold, 3)
	b.center("")
	b.center(Color(Bold, fmt.Sprintf("Welcome back %s!", user)))
	b.center("")
	for _, l := range logo {
		b.center(Color(Magenta, l))
	}
	b.center("")
	b.center(Color(Bold+Cyan, "Neuromancer tech support"))
	b.center("")
	b.row(Color(Dim, "server:") + " " + serverURL)
	b.bottom()
	return b.String()
}

// visibleLength returns the terminal cell width of s, ignoring ANSI codes
func visibleLength(s string) int {
	return lipgloss.Width(s)
}

// RenderMessage formats a chat message with role styling
func RenderMessage(role, text string) string {
	switch role {
	case "user":
		return RenderUserPrompt() + text
	case "model", "assistant":
		return RenderAssistantPrefix() + text
	case "system":
		return Color(Dim, text)
	default:
		return text
	}
}

// LogColor returns the ANSI color used for an event log type
func LogColor(typ string) string {
	switch typ {
	case "success":
		return Green
	case "warning":
		return Yellow
	case "error":
		return Red
	case "ai":
		return Magenta
	default:
		return Cyan
	}
}

// RenderLogLine formats one event log entry: "[15:04:05] > message"
func RenderLogLine(timestamp, typ, message string) string {
	c := LogColor(typ)
	return Color(Dim, "["+timestamp+"]") + " " + Color(c, ">") + " " + Color(c, message)
}

// RenderHelpLines lists the REPL commands
func RenderHelpLines() string {
	sep := Color(Dim, " | ")
	return Color(Dim, "  Commands: ") + strings.Join([]string{"exit", "clear", "history", "status"}, sep) + "\n" +
		Color(Dim, "  Press Ctrl+C to interrupt") + "\n\n"
}

// RenderUserPrompt returns the styled "You: " prompt
func RenderUserPrompt() string {
	return Color(Bold+Green, "You:") + " "
}

// RenderAssistantPrefix returns the styled "Neuromancer: " prefix
func RenderAssistantPrefix() string {
	return Color(Bold+Blue, "Neuromancer:") + " "
}

// RenderError formats an error message
func RenderError(err error) string {
	return Color(Red, fmt.Sprintf("Error: %v", err))
}

// RenderSuccess formats a success message
func RenderSuccess(msg string) string {
	return Color(Green, msg)
}

// RenderDim formats text in dim style
func RenderDim(msg string) string {
	return Color(Dim, msg)
}

// RenderDegradedIndicator marks a reply that came from a fallback
func RenderDegradedIndicator() string {
	return Color(Red+Bold, "[OFFLINE FALLBACK]")
}
