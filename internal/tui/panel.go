// Package tui is the terminal rendition of the NeuroLink panel: device card,
// protocol log and the Neuromancer chat, driven by the in-process core.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/edgecli/neurolink/internal/approval"
	"github.com/edgecli/neurolink/internal/assistant"
	"github.com/edgecli/neurolink/internal/chatmem"
	"github.com/edgecli/neurolink/internal/device"
	"github.com/edgecli/neurolink/internal/eventlog"
	"github.com/edgecli/neurolink/internal/lifecycle"
	"github.com/edgecli/neurolink/internal/notify"
	"github.com/edgecli/neurolink/internal/ui"
)

const (
	chatTimeout = 3 * time.Minute
	maxLogLines = eventlog.DefaultCapacity + 1
	cardHeight  = 8
)

var (
	quitKeys    = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	wakeKey     = key.NewBinding(key.WithKeys("w"))
	shutdownKey = key.NewBinding(key.WithKeys("s"))
	lockKey     = key.NewBinding(key.WithKeys("l"))
	yesKey      = key.NewBinding(key.WithKeys("y"))
	noKey       = key.NewBinding(key.WithKeys("n", "esc"))
	focusKey    = key.NewBinding(key.WithKeys("tab", "i"))
	blurKey     = key.NewBinding(key.WithKeys("tab", "esc"))
	enterKey    = key.NewBinding(key.WithKeys("enter"))
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
	activeStyle = boxStyle.BorderForeground(lipgloss.Color("86"))

	statusStyles = map[device.Status]lipgloss.Style{
		device.StatusOnline:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		device.StatusBooting:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		device.StatusShuttingDown: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		device.StatusOffline:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245")),
	}
)

// Device is the part of the lifecycle controller the panel drives.
type Device interface {
	Snapshot() lifecycle.Snapshot
	Subscribe() *notify.Subscription[lifecycle.Snapshot]
	PowerOn() bool
	RequestPowerOff() (*approval.Ticket, error)
	ConfirmPowerOff(token string) (bool, error)
	ToggleLock() bool
}

// LogFeed is satisfied by *eventlog.Log.
type LogFeed interface {
	Entries() []eventlog.Entry
	Subscribe() *notify.Subscription[eventlog.Entry]
}

// Chat is satisfied by *assistant.Assistant.
type Chat interface {
	Send(ctx context.Context, text string) (assistant.Reply, error)
	Memory() *chatmem.ChatMemory
}

type snapshotMsg lifecycle.Snapshot
type logMsg eventlog.Entry
type chatMsg chatmem.Message
type feedClosedMsg struct{}

type intentMsg struct {
	action   string
	accepted bool
	err      error
}

type ticketMsg struct {
	ticket *approval.Ticket
	err    error
}

type lockMsg struct{ locked bool }

type chatDoneMsg struct {
	reply assistant.Reply
	err   error
}

type paneFocus int

const (
	focusControls paneFocus = iota
	focusInput
)

// Model is the bubbletea model for the panel.
type Model struct {
	ctx    context.Context
	device Device
	logs   LogFeed
	chat   Chat

	snapSub *notify.Subscription[lifecycle.Snapshot]
	logSub  *notify.Subscription[eventlog.Entry]
	chatSub *notify.Subscription[chatmem.Message]

	snap     lifecycle.Snapshot
	logLines []eventlog.Entry
	messages []chatmem.Message

	logView  viewport.Model
	chatView viewport.Model
	input    textinput.Model
	focused  paneFocus

	pending *approval.Ticket
	sending bool
	notice  string
	err     error

	width  int
	height int
}

// New creates the model and subscribes to the core's feeds. Call Close when
// the program exits.
func New(ctx context.Context, dev Device, logs LogFeed, chat Chat) Model {
	m := Model{
		ctx:      ctx,
		device:   dev,
		logs:     logs,
		chat:     chat,
		snap:     dev.Snapshot(),
		logView:  viewport.New(0, 0),
		chatView: viewport.New(0, 0),
		input:    textinput.New(),
	}

	m.snapSub = dev.Subscribe()
	m.logSub = logs.Subscribe()
	m.chatSub = chat.Memory().Subscribe()

	m.logLines = logs.Entries()
	m.messages = chat.Memory().Messages()

	m.input.Placeholder = "询问 Neuromancer..."
	m.input.CharLimit = 500
	m.input.Prompt = "» "

	return m
}

// Close releases the feed subscriptions.
func (m Model) Close() {
	m.snapSub.Cancel()
	m.logSub.Cancel()
	m.chatSub.Cancel()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitSnapshot(m.snapSub),
		waitLog(m.logSub),
		waitChat(m.chatSub),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		m.snap = lifecycle.Snapshot(msg)
		return m, waitSnapshot(m.snapSub)

	case logMsg:
		if n := len(m.logLines); n > 0 && msg.Seq <= m.logLines[n-1].Seq {
			return m, waitLog(m.logSub)
		}
		m.logLines = append(m.logLines, eventlog.Entry(msg))
		if len(m.logLines) > maxLogLines {
			m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
		}
		m.refreshLogs()
		return m, waitLog(m.logSub)

	case chatMsg:
		if n := len(m.messages); n > 0 && m.messages[n-1].ID == msg.ID {
			return m, waitChat(m.chatSub)
		}
		m.messages = append(m.messages, chatmem.Message(msg))
		m.refreshChat()
		return m, waitChat(m.chatSub)

	case intentMsg:
		m.err = msg.err
		if msg.err == nil && !msg.accepted {
			m.notice = fmt.Sprintf("%s ignored (%s)", msg.action, m.snap.Device.Status.Label())
		} else {
			m.notice = ""
		}
		return m, nil

	case ticketMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.pending = msg.ticket
		m.notice = ""
		return m, nil

	case lockMsg:
		if msg.locked {
			m.notice = "安全锁已启用"
		} else {
			m.notice = "安全锁已解除"
		}
		return m, nil

	case chatDoneMsg:
		m.sending = false
		m.err = msg.err
		if msg.err == nil && msg.reply.Degraded {
			m.notice = "Neuromancer 离线 (" + string(msg.reply.Reason) + ")"
		}
		return m, nil

	case feedClosedMsg:
		m.notice = "core stopped"
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.focused == focusInput {
		switch {
		case key.Matches(msg, blurKey):
			m.focused = focusControls
			m.input.Blur()
			return m, nil
		case key.Matches(msg, enterKey):
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.sending {
				return m, nil
			}
			m.input.Reset()
			m.sending = true
			return m, sendCmd(m.ctx, m.chat, text)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if m.pending != nil {
		switch {
		case key.Matches(msg, yesKey):
			token := m.pending.Token
			m.pending = nil
			return m, confirmCmd(m.device, token)
		case key.Matches(msg, noKey):
			m.pending = nil
			m.notice = "关机已取消"
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, quitKeys):
		return m, tea.Quit
	case key.Matches(msg, wakeKey):
		return m, powerOnCmd(m.device)
	case key.Matches(msg, shutdownKey):
		return m, requestOffCmd(m.device)
	case key.Matches(msg, lockKey):
		return m, lockCmd(m.device)
	case key.Matches(msg, focusKey), key.Matches(msg, enterKey):
		m.focused = focusInput
		cmd := m.input.Focus()
		return m, cmd
	}
	return m, nil
}

func (m *Model) layout() {
	colW := m.width/2 - 4
	if colW < 20 {
		colW = 20
	}
	body := m.height - 4
	if body < cardHeight+3 {
		body = cardHeight + 3
	}

	m.logView.Width = colW
	m.logView.Height = body - cardHeight - 4
	m.chatView.Width = colW
	m.chatView.Height = body - 5
	m.input.Width = colW - 3

	m.refreshLogs()
	m.refreshChat()
}

func (m *Model) refreshLogs() {
	if m.logView.Width == 0 {
		return
	}
	wrap := lipgloss.NewStyle().Width(m.logView.Width)
	lines := make([]string, 0, len(m.logLines))
	for _, e := range m.logLines {
		lines = append(lines, wrap.Render(ui.RenderLogLine(e.Timestamp, string(e.Type), e.Message)))
	}
	m.logView.SetContent(strings.Join(lines, "\n"))
	m.logView.GotoBottom()
}

func (m *Model) refreshChat() {
	if m.chatView.Width == 0 {
		return
	}
	wrap := lipgloss.NewStyle().Width(m.chatView.Width)
	blocks := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		blocks = append(blocks, wrap.Render(ui.RenderMessage(string(msg.Role), msg.Text)))
	}
	m.chatView.SetContent(strings.Join(blocks, "\n\n"))
	m.chatView.GotoBottom()
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	header := titleStyle.Render("NeuroLink Remote") + dimStyle.Render("  ·  Neuromancer tech support")

	left := lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Width(m.logView.Width+2).Render(m.renderCard()),
		boxStyle.Width(m.logView.Width+2).Render(m.logView.View()),
	)

	var right string
	if m.pending != nil {
		right = m.renderConfirm()
	} else {
		inputBox := boxStyle
		if m.focused == focusInput {
			inputBox = activeStyle
		}
		chatBody := m.chatView.View()
		if m.sending {
			chatBody += "\n" + dimStyle.Render("Neuromancer 正在输入...")
		}
		right = lipgloss.JoinVertical(lipgloss.Left,
			boxStyle.Width(m.chatView.Width+2).Render(chatBody),
			inputBox.Width(m.chatView.Width+2).Render(m.input.View()),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		m.renderFooter(),
	)
	return content
}

func (m Model) renderCard() string {
	d := m.snap.Device
	style, ok := statusStyles[d.Status]
	if !ok {
		style = statusStyles[device.StatusOffline]
	}

	status := style.Render(d.Status.Label())
	if m.snap.Busy {
		status += dimStyle.Render("  (" + string(m.snap.Phase) + ")")
	}

	lock := "已解除"
	if m.snap.Locked {
		lock = "已启用"
	}

	lines := []string{
		"状态     " + status,
		"IP       " + d.IPAddress,
		"MAC      " + d.MACAddress,
		"最后在线 " + d.LastSeen,
		fmt.Sprintf("CPU      %d%%", d.CPULoad),
		fmt.Sprintf("温度     %d°C", d.Temp),
		"安全锁   " + lock,
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderConfirm() string {
	d := m.snap.Device
	card := ui.RenderActionCard(ui.ActionCardOptions{
		Action:    m.pending.Action,
		Target:    fmt.Sprintf("%s (%s)", d.MACAddress, d.IPAddress),
		Rationale: "目标设备将收到远程关机指令，所有未保存的工作将丢失。",
		RiskLevel: string(approval.AssessRisk(m.pending.Action)),
		Locked:    m.snap.Locked,
	})
	return card + "\n" + ui.RenderChoicePrompt()
}

func (m Model) renderFooter() string {
	var help string
	switch {
	case m.focused == focusInput:
		help = "enter 发送  ·  tab/esc 返回  ·  ctrl+c 退出"
	case m.pending != nil:
		help = "y 确认关机  ·  n 取消"
	default:
		help = "w 唤醒  ·  s 关机  ·  l 安全锁  ·  tab 对话  ·  q 退出"
	}

	footer := dimStyle.Render(help)
	if m.err != nil {
		footer += "\n" + errStyle.Render(fmt.Sprintf("Error: %v", m.err))
	} else if m.notice != "" {
		footer += "\n" + dimStyle.Render(m.notice)
	}
	return footer
}

func waitSnapshot(sub *notify.Subscription[lifecycle.Snapshot]) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-sub.C()
		if !ok {
			return feedClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

func waitLog(sub *notify.Subscription[eventlog.Entry]) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-sub.C()
		if !ok {
			return feedClosedMsg{}
		}
		return logMsg(e)
	}
}

func waitChat(sub *notify.Subscription[chatmem.Message]) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-sub.C()
		if !ok {
			return feedClosedMsg{}
		}
		return chatMsg(msg)
	}
}

func powerOnCmd(dev Device) tea.Cmd {
	return func() tea.Msg {
		return intentMsg{action: "power_on", accepted: dev.PowerOn()}
	}
}

func requestOffCmd(dev Device) tea.Cmd {
	return func() tea.Msg {
		t, err := dev.RequestPowerOff()
		return ticketMsg{ticket: t, err: err}
	}
}

func confirmCmd(dev Device, token string) tea.Cmd {
	return func() tea.Msg {
		accepted, err := dev.ConfirmPowerOff(token)
		return intentMsg{action: approval.ActionPowerOff, accepted: accepted, err: err}
	}
}

func lockCmd(dev Device) tea.Cmd {
	return func() tea.Msg {
		return lockMsg{locked: dev.ToggleLock()}
	}
}

func sendCmd(parent context.Context, chat Chat, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, chatTimeout)
		defer cancel()
		reply, err := chat.Send(ctx, text)
		return chatDoneMsg{reply: reply, err: err}
	}
}

// Run starts the panel in the alternate screen and blocks until the operator
// quits or ctx is cancelled.
func Run(ctx context.Context, dev Device, logs LogFeed, chat Chat) error {
	m := New(ctx, dev, logs, chat)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
