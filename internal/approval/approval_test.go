package approval

import (
	"bytes"
	"strings"
	"testing"
)

func TestAssessRisk(t *testing.T) {
	tests := []struct {
		action string
		want   RiskLevel
	}{
		{ActionPowerOff, RiskHigh},
		{"SHUTDOWN", RiskHigh},
		{ActionUnlock, RiskMedium},
		{ActionPowerOn, RiskLow},
		{"status", RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			if got := AssessRisk(tt.action); got != tt.want {
				t.Errorf("AssessRisk(%q) = %s, want %s", tt.action, got, tt.want)
			}
		})
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		input string
		want  Decision
	}{
		{"1", DecisionYes},
		{"y", DecisionYes},
		{" YES ", DecisionYes},
		{"2", DecisionNo},
		{"n", DecisionNo},
		{"", DecisionCancel},
		{"maybe", DecisionCancel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseDecision(tt.input); got != tt.want {
				t.Errorf("ParseDecision(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestPromptApproval(t *testing.T) {
	action := NewAction(ActionPowerOff, "AB:CD:EF:12:34:56 (192.168.1.15)", "远程关机", false)

	var out bytes.Buffer
	res := PromptApproval(strings.NewReader("y\n"), &out, action)
	if res.Decision != DecisionYes {
		t.Fatalf("expected yes, got %d", res.Decision)
	}
	if !strings.Contains(out.String(), "power_off") {
		t.Errorf("card does not name the action: %q", out.String())
	}
	if !strings.Contains(out.String(), "HIGH") {
		t.Errorf("card does not show risk: %q", out.String())
	}

	res = PromptApproval(strings.NewReader(""), &out, action)
	if res.Decision != DecisionCancel {
		t.Fatalf("expected cancel on EOF, got %d", res.Decision)
	}

	res = PromptApproval(strings.NewReader("no"), &out, action)
	if res.Decision != DecisionNo {
		t.Fatalf("expected no without trailing newline, got %d", res.Decision)
	}
}
