package advisor

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/edgecli/neurolink/internal/device"
)

//go:embed prompts.yaml
var defaultPromptYAML []byte

// PromptPack is the on-disk shape of a prompt file.
type PromptPack struct {
	Explain string `yaml:"explain"`
	Persona string `yaml:"persona"`
}

// Prompts holds the compiled templates.
type Prompts struct {
	explain *template.Template
	persona *template.Template
}

var defaultPrompts = mustParsePrompts(defaultPromptYAML)

// DefaultPrompts returns the built-in prompt pack.
func DefaultPrompts() *Prompts { return defaultPrompts }

func mustParsePrompts(data []byte) *Prompts {
	p, err := parsePack(data, nil)
	if err != nil {
		panic(fmt.Sprintf("advisor: built-in prompts: %v", err))
	}
	return p
}

// ParsePrompts compiles a YAML prompt pack. Missing entries fall back to
// the built-in ones.
func ParsePrompts(data []byte) (*Prompts, error) {
	return parsePack(data, defaultPrompts)
}

// LoadPromptFile reads and compiles a prompt pack from disk.
func LoadPromptFile(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt file: %w", err)
	}
	p, err := ParsePrompts(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func parsePack(data []byte, base *Prompts) (*Prompts, error) {
	var pack PromptPack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse prompt yaml: %w", err)
	}

	if strings.TrimSpace(pack.Explain) == "" && strings.TrimSpace(pack.Persona) == "" {
		return nil, fmt.Errorf("prompt pack has no entries")
	}

	p := &Prompts{}
	if base != nil {
		*p = *base
	}

	if strings.TrimSpace(pack.Explain) != "" {
		t, err := template.New("explain").Option("missingkey=error").Parse(pack.Explain)
		if err != nil {
			return nil, fmt.Errorf("explain template: %w", err)
		}
		p.explain = t
	}
	if strings.TrimSpace(pack.Persona) != "" {
		t, err := template.New("persona").Option("missingkey=error").Parse(pack.Persona)
		if err != nil {
			return nil, fmt.Errorf("persona template: %w", err)
		}
		p.persona = t
	}

	if p.explain == nil || p.persona == nil {
		return nil, fmt.Errorf("prompt pack needs both explain and persona")
	}
	return p, nil
}

type explainData struct {
	Action string
	Device device.State
}

type personaData struct {
	Device device.State
}

// Explain renders the one-shot explanation prompt.
func (p *Prompts) Explain(action Action, snap device.State) (string, error) {
	var sb strings.Builder
	if err := p.explain.Execute(&sb, explainData{Action: strings.ToUpper(string(action)), Device: snap}); err != nil {
		return "", fmt.Errorf("render explain prompt: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Persona renders the chat system preamble.
func (p *Prompts) Persona(snap device.State) (string, error) {
	var sb strings.Builder
	if err := p.persona.Execute(&sb, personaData{Device: snap}); err != nil {
		return "", fmt.Errorf("render persona prompt: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// PromptStore holds the active prompt pack and allows hot swaps.
type PromptStore struct {
	mu  sync.RWMutex
	cur *Prompts
}

// NewPromptStore creates a store. A nil pack selects the defaults.
func NewPromptStore(p *Prompts) *PromptStore {
	if p == nil {
		p = defaultPrompts
	}
	return &PromptStore{cur: p}
}

// Current returns the active pack.
func (s *PromptStore) Current() *Prompts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Swap replaces the active pack.
func (s *PromptStore) Swap(p *Prompts) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.cur = p
	s.mu.Unlock()
}
