// Package approval implements the request/confirm step that guards
// destructive device actions, both as server-side tickets and as an
// interactive terminal prompt.
package approval

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/edgecli/neurolink/internal/ui"
)

// Decision represents the operator's answer
type Decision int

const (
	DecisionYes    Decision = iota // Go ahead
	DecisionNo                     // Explicit refusal
	DecisionCancel                 // No usable answer
)

// RiskLevel represents how destructive an action is
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Device actions that can be put in front of the operator
const (
	ActionPowerOn  = "power_on"
	ActionPowerOff = "power_off"
	ActionUnlock   = "unlock"
)

// Action represents a proposed device action
type Action struct {
	Name      string // e.g. "power_off"
	Target    string // e.g. "AB:CD:EF:12:34:56 (192.168.1.15)"
	Rationale string // Shown under the card
	Locked    bool   // Whether the safety lock is currently engaged
	RiskLevel RiskLevel
}

// Result contains the decision
type Result struct {
	Decision Decision
	Input    string
}

// NewAction builds an Action with its risk assessed
func NewAction(name, target, rationale string, locked bool) *Action {
	return &Action{
		Name:      name,
		Target:    target,
		Rationale: rationale,
		Locked:    locked,
		RiskLevel: AssessRisk(name),
	}
}

// AssessRisk determines the risk level of a device action
func AssessRisk(action string) RiskLevel {
	switch strings.ToLower(action) {
	case ActionPowerOff, "shutdown":
		return RiskHigh
	case ActionUnlock:
		return RiskMedium
	default:
		return RiskLow
	}
}

// PromptApproval renders the action card and reads one answer from in
func PromptApproval(in io.Reader, out io.Writer, action *Action) *Result {
	card := ui.RenderActionCard(ui.ActionCardOptions{
		Action:    action.Name,
		Target:    action.Target,
		Rationale: action.Rationale,
		RiskLevel: string(action.RiskLevel),
		Locked:    action.Locked,
	})
	fmt.Fprint(out, card)
	fmt.Fprint(out, ui.RenderActionOptions())
	fmt.Fprint(out, ui.RenderChoicePrompt())

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return &Result{Decision: DecisionCancel}
	}

	input = strings.TrimSpace(input)
	return &Result{Decision: ParseDecision(input), Input: input}
}

// ParseDecision maps a typed answer to a Decision
func ParseDecision(input string) Decision {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "y", "yes":
		return DecisionYes
	case "2", "n", "no":
		return DecisionNo
	default:
		return DecisionCancel
	}
}
