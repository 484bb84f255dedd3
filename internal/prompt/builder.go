package prompt

import (
	"fmt"
	"strings"

	"github.com/quorumai/quorum/internal/models"
)

// DefaultTailTurns bounds how much session history enters a prompt.
const DefaultTailTurns = 8

// Builder assembles provider-agnostic prompts from a persona, the user
// message, and a bounded suffix of session memory. Build is fully
// deterministic: identical inputs produce byte-identical output.
type Builder struct {
	table     *Table
	tailTurns int
}

// NewBuilder creates a builder over the given persona table. tailTurns
// bounds the session suffix included in the prompt; values <= 0 use the
// default.
func NewBuilder(table *Table, tailTurns int) *Builder {
	if tailTurns <= 0 {
		tailTurns = DefaultTailTurns
	}
	return &Builder{table: table, tailTurns: tailTurns}
}

// Build renders the prompt for one turn. An empty or missing history is
// treated as no prior context. Unknown personas return ErrUnknownPersona.
func (b *Builder) Build(personaID, userMessage string, history []models.Turn) (*models.RenderedPrompt, error) {
	persona, err := b.table.Lookup(personaID)
	if err != nil {
		return nil, err
	}

	if len(history) > b.tailTurns {
		history = history[len(history)-b.tailTurns:]
	}

	messages := make([]models.Message, 0, len(history)+1)
	for _, turn := range history {
		role := turn.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		messages = append(messages, models.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, models.Message{Role: "user", Content: userMessage})

	return &models.RenderedPrompt{
		System:   systemPrompt(persona),
		Messages: messages,
	}, nil
}

// BuildClassification renders a sentiment classification prompt. The
// instruction pins the JSON shape so every provider's output can be
// parsed uniformly.
func (b *Builder) BuildClassification(text string) *models.RenderedPrompt {
	system := "You are an expert sentiment analysis system. " +
		"Analyze the given text and respond with only a JSON object of the form " +
		`{"sentiment": "positive|negative|neutral", "confidence": 0.0-1.0, "emotional_intensity": 0.0-1.0}. ` +
		"Do not include any other text."
	return &models.RenderedPrompt{
		System: system,
		Messages: []models.Message{
			{Role: "user", Content: fmt.Sprintf("Analyze the sentiment of this text: %q", text)},
		},
	}
}

func systemPrompt(p Persona) string {
	style, ok := styleModifiers[p.Style]
	if !ok {
		style = styleModifiers["professional"]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a %s.\n\n", p.Name, p.Role)
	fmt.Fprintf(&sb, "Your expertise includes: %s.\n", strings.Join(p.Expertise, ", "))
	fmt.Fprintf(&sb, "Your communication style is %s.\n", p.Tone)
	fmt.Fprintf(&sb, "Respond in a %s manner.\n\n", style)
	fmt.Fprintf(&sb, "%s\n\n", p.Specialization)
	sb.WriteString("Always provide helpful, accurate, and actionable guidance while maintaining your professional persona.")
	return sb.String()
}
