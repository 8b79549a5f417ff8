package ui

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestVisibleLengthIgnoresANSI(t *testing.T) {
	colored := Cyan + "hello" + Reset
	if got := visibleLength(colored); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestRenderMessageRoles(t *testing.T) {
	SetNoColor(true)

	tests := []struct {
		role string
		want string
	}{
		{"user", "You: hi"},
		{"model", "Neuromancer: hi"},
		{"assistant", "Neuromancer: hi"},
		{"system", "hi"},
		{"other", "hi"},
	}

	for _, tt := range tests {
		if got := RenderMessage(tt.role, "hi"); got != tt.want {
			t.Errorf("RenderMessage(%q) = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestRenderLogLine(t *testing.T) {
	SetNoColor(true)

	got := RenderLogLine("21:04:05", "success", "连接已建立。准备接收指令。")
	if got != "[21:04:05] > 连接已建立。准备接收指令。" {
		t.Errorf("unexpected line: %q", got)
	}
}

func TestRenderHeaderAndCard(t *testing.T) {
	SetNoColor(true)

	header := RenderHeader("1.0", "alice", "localhost:8080")
	if !strings.Contains(header, "NeuroLink v1.0") || !strings.Contains(header, "localhost:8080") {
		t.Errorf("header missing content:\n%s", header)
	}

	card := RenderActionCard(ActionCardOptions{
		Action:    "power_off",
		Target:    "AB:CD:EF:12:34:56 (192.168.1.15)",
		Rationale: "远程关机协议",
		RiskLevel: "high",
		Locked:    true,
	})
	for _, want := range []string{"Confirm: power_off", "AB:CD:EF:12:34:56", "ENGAGED", "HIGH"} {
		if !strings.Contains(card, want) {
			t.Errorf("card missing %q:\n%s", want, card)
		}
	}

	if got := RenderError(errors.New("boom")); got != "Error: boom" {
		t.Errorf("unexpected error render: %q", got)
	}
}

func TestTruncateAndWrap(t *testing.T) {
	if got := truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("unexpected truncate: %q", got)
	}
	if got := truncate("目标设备已确认", 5); got != "目标..." {
		t.Errorf("unexpected rune truncate: %q", got)
	}
	lines := wrapText("one two three four", 9)
	if len(lines) != 3 || lines[0] != "one two" || lines[2] != "four" {
		t.Errorf("unexpected wrap: %q", lines)
	}
}

type lockedBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func TestSpinnerDrawsAndClears(t *testing.T) {
	SetNoColor(true)

	var buf lockedBuffer
	s := NewSpinnerTo(&buf, "Neuromancer 正在输入...")
	s.interval = time.Millisecond
	s.Start()
	s.Start()
	time.Sleep(20 * time.Millisecond)
	if !s.IsRunning() {
		t.Fatal("expected spinner to be running")
	}
	s.Stop()
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "正在输入") {
		t.Errorf("spinner never drew its message: %q", out)
	}
	if !strings.HasSuffix(out, "\r") {
		t.Errorf("spinner did not clear its line: %q", out)
	}
	if s.IsRunning() {
		t.Error("expected spinner to be stopped")
	}
}

func TestStripAndStatusColor(t *testing.T) {
	if got := Strip(Green + "在线" + Reset); got != "在线" {
		t.Errorf("unexpected strip: %q", got)
	}
	if StatusColor("online") == StatusColor("offline") {
		t.Error("online and offline should differ")
	}
	if StatusColor("booting") != StatusColor("shutting_down") {
		t.Error("transitional states share a color")
	}
}
