// Package prompt holds the persona table and the deterministic
// prompt/context builder.
package prompt

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPersonaID is used when a request names no persona.
const DefaultPersonaID = "strategic-advisor"

// ErrUnknownPersona is returned when a persona id is not in the table.
// Unknown personas surface to the caller instead of being defaulted so
// that configuration bugs are visible, not masked.
var ErrUnknownPersona = errors.New("unknown persona")

// Persona is a named system-prompt/style configuration. Read-only after
// load.
type Persona struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Role           string   `yaml:"role"`
	Expertise      []string `yaml:"expertise"`
	Tone           string   `yaml:"tone"`
	Style          string   `yaml:"style"`
	Greeting       string   `yaml:"greeting"`
	Specialization string   `yaml:"specialization"`
}

// Table is a read-only persona lookup, supplied at startup.
type Table struct {
	personas map[string]Persona
}

// styleModifiers maps a persona style to its response instruction.
var styleModifiers = map[string]string{
	"professional": "formal, structured, and business-focused",
	"casual":       "conversational, relaxed, and approachable",
	"technical":    "detailed, precise, and technically comprehensive",
	"concise":      "brief, direct, and to-the-point",
}

// DefaultTable returns the built-in persona set.
func DefaultTable() *Table {
	return newTable([]Persona{
		{
			ID:             "strategic-advisor",
			Name:           "Strategic Advisor",
			Role:           "Strategic Business Advisor",
			Expertise:      []string{"Business Strategy", "Leadership", "Market Analysis", "Innovation"},
			Tone:           "Professional and insightful",
			Style:          "professional",
			Greeting:       "I am your strategic business advisor.",
			Specialization: "Strategic business guidance and leadership insights",
		},
		{
			ID:             "technical-expert",
			Name:           "Technical Expert",
			Role:           "Technology Specialist",
			Expertise:      []string{"Technology Solutions", "System Architecture", "Software Development", "Technical Strategy"},
			Tone:           "Precise and knowledgeable",
			Style:          "technical",
			Greeting:       "I am your technical expert and technology advisor.",
			Specialization: "Technical solutions and system optimization",
		},
		{
			ID:             "research-analyst",
			Name:           "Research Analyst",
			Role:           "Research Scientist",
			Expertise:      []string{"Data Analysis", "Research Methodology", "Scientific Inquiry"},
			Tone:           "Methodical and evidence-driven",
			Style:          "concise",
			Greeting:       "I am your research analyst.",
			Specialization: "Rigorous analysis and evidence-based conclusions",
		},
		{
			ID:             "friendly-companion",
			Name:           "Friendly Companion",
			Role:           "Supportive Assistant",
			Expertise:      []string{"Communication", "Support", "Problem Solving"},
			Tone:           "Warm and approachable",
			Style:          "casual",
			Greeting:       "I am here as your friendly companion and supportive guide.",
			Specialization: "Personal support and encouraging guidance",
		},
	})
}

// LoadTable reads a persona table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	var personas []Persona
	if err := yaml.Unmarshal(data, &personas); err != nil {
		return nil, fmt.Errorf("parse persona file: %w", err)
	}
	if len(personas) == 0 {
		return nil, fmt.Errorf("persona file %s defines no personas", path)
	}
	for _, p := range personas {
		if p.ID == "" {
			return nil, fmt.Errorf("persona file %s contains a persona without an id", path)
		}
	}
	return newTable(personas), nil
}

func newTable(personas []Persona) *Table {
	t := &Table{personas: make(map[string]Persona, len(personas))}
	for _, p := range personas {
		t.personas[p.ID] = p
	}
	return t
}

// Lookup returns the persona for an id.
func (t *Table) Lookup(id string) (Persona, error) {
	p, ok := t.personas[id]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %q", ErrUnknownPersona, id)
	}
	return p, nil
}

// IDs returns all persona ids.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.personas))
	for id := range t.personas {
		ids = append(ids, id)
	}
	return ids
}
