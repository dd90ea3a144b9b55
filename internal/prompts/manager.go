package prompts

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// Manager holds the interview script lines and the follow-up generation
// prompt, loaded from embedded YAML at startup.
type Manager struct {
	script   map[string]string
	followUp string
}

type scriptTemplate struct {
	Script         map[string]string `yaml:"script"`
	FollowUpPrompt string            `yaml:"follow_up_prompt"`
}

func NewManager() (*Manager, error) {
	m := &Manager{script: make(map[string]string)}
	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return m, nil
}

// Script returns a named scripted line (greeting, check_in, closing),
// with {{.Candidate}} substituted.
func (m *Manager) Script(name, candidate string) (string, error) {
	line, ok := m.script[name]
	if !ok {
		return "", fmt.Errorf("script line not found: %s", name)
	}
	return strings.ReplaceAll(line, "{{.Candidate}}", candidate), nil
}

// FollowUpPrompt builds the LLM prompt for follow-up generation.
func (m *Manager) FollowUpPrompt(question string, criteria []string, answer string) string {
	result := strings.ReplaceAll(m.followUp, "{{.Question}}", question)
	result = strings.ReplaceAll(result, "{{.Criteria}}", strings.Join(criteria, "; "))
	return strings.ReplaceAll(result, "{{.Answer}}", answer)
}

func (m *Manager) load() error {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		var tmpl scriptTemplate
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}

		for name, line := range tmpl.Script {
			m.script[name] = line
		}
		if tmpl.FollowUpPrompt != "" {
			m.followUp = tmpl.FollowUpPrompt
		}
	}

	if len(m.script) == 0 {
		return fmt.Errorf("no script lines loaded")
	}
	return nil
}
