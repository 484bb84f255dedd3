// Package fallback generates deterministic local responses when no
// provider succeeds. It makes no network calls and has no failure mode:
// Respond always returns a non-empty string, whatever its input.
package fallback

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/quorumai/quorum/internal/prompt"
)

// Intent is the detected category of a user message.
type Intent string

const (
	IntentGreeting Intent = "greeting"
	IntentHelp     Intent = "help"
	IntentDomain   Intent = "domain"
	IntentGeneric  Intent = "generic"
)

// Keyword sets are checked in a fixed priority order and the first
// match wins: greeting before help before domain. Overlapping sets are
// therefore resolved by position, never by specificity — "help me say
// hello" classifies as greeting because greeting is checked first.
var (
	greetingWords = []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "greetings"}
	helpWords     = []string{"help", "assist", "support", "guide", "advice", "how to", "how do i"}
)

// Responder picks a template response keyed by detected intent. The
// pseudo-random choice among variants is seeded explicitly so tests can
// pin the output.
type Responder struct {
	table *prompt.Table
	mu    sync.Mutex
	rng   *rand.Rand
}

// New creates a responder over the persona table with a fixed seed.
func New(table *prompt.Table, seed int64) *Responder {
	return &Responder{
		table: table,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Classify detects the intent of a message. Exported so tests can pin
// the priority-order behavior directly.
func (r *Responder) Classify(personaID, message string) Intent {
	lower := strings.ToLower(message)
	if matchesAny(lower, greetingWords) {
		return IntentGreeting
	}
	if matchesAny(lower, helpWords) {
		return IntentHelp
	}
	if persona, err := r.table.Lookup(personaID); err == nil {
		for _, topic := range persona.Expertise {
			for _, word := range strings.Fields(strings.ToLower(topic)) {
				if len(word) > 3 && strings.Contains(lower, word) {
					return IntentDomain
				}
			}
		}
	}
	return IntentGeneric
}

// Respond produces the fallback content for a message. An unknown
// persona falls back to a neutral voice rather than failing: this path
// is the availability backstop and must not propagate configuration
// errors.
func (r *Responder) Respond(personaID, message string) string {
	persona, err := r.table.Lookup(personaID)
	if err != nil {
		persona = prompt.Persona{
			Name:           "your assistant",
			Role:           "assistant",
			Expertise:      []string{"general guidance"},
			Greeting:       "I am your assistant.",
			Specialization: "general assistance",
		}
	}

	switch r.Classify(personaID, message) {
	case IntentGreeting:
		return r.pick(greetingTemplates(persona))
	case IntentHelp:
		return r.pick(helpTemplates(persona))
	case IntentDomain:
		return r.pick(domainTemplates(persona, message))
	default:
		return r.pick(genericTemplates(persona, message))
	}
}

func (r *Responder) pick(variants []string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return variants[r.rng.Intn(len(variants))]
}

// matchesAny treats multi-word entries as phrases and single words as
// whole tokens, so "hi" does not fire inside "this".
func matchesAny(message string, words []string) bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(message) {
		tokens[strings.Trim(tok, ".,!?;:\"'")] = true
	}
	for _, w := range words {
		if strings.ContainsRune(w, ' ') {
			if strings.Contains(message, w) {
				return true
			}
		} else if tokens[w] {
			return true
		}
	}
	return false
}

func excerpt(message string) string {
	if len(message) > 50 {
		return message[:50] + "..."
	}
	return message
}

func greetingTemplates(p prompt.Persona) []string {
	lead := strings.Join(p.Expertise[:min(2, len(p.Expertise))], " and ")
	return []string{
		fmt.Sprintf("%s I bring expertise in %s. How can I assist you today?", p.Greeting, lead),
		fmt.Sprintf("%s It's good to hear from you. My focus areas are %s — what would you like to explore?", p.Greeting, lead),
	}
}

func helpTemplates(p prompt.Persona) []string {
	return []string{
		fmt.Sprintf("I'm %s, and I'm here to help. I specialize in %s. What specific area would you like to work through together?",
			p.Name, strings.ToLower(p.Specialization)),
		fmt.Sprintf("Happy to help. As your %s, my strengths are %s. Tell me more about what you need and we'll take it step by step.",
			strings.ToLower(p.Role), strings.Join(p.Expertise, ", ")),
	}
}

func domainTemplates(p prompt.Persona, message string) []string {
	lead := p.Expertise[0]
	return []string{
		fmt.Sprintf("You're asking about %q, which sits squarely in my area of %s. The key considerations are understanding your context, the outcome you want, and the constraints you're working under. Share more detail and I'll give you a concrete view.",
			excerpt(message), lead),
		fmt.Sprintf("That touches on %s, one of my core areas. For %q, I'd start by clarifying objectives, then weigh the main approaches against your constraints. What's driving this question right now?",
			lead, excerpt(message)),
	}
}

func genericTemplates(p prompt.Persona, message string) []string {
	return []string{
		fmt.Sprintf("Thank you for reaching out. I've considered your message about %q. Drawing on my background in %s, I can offer a structured perspective — could you share what outcome you're aiming for?",
			excerpt(message), strings.Join(p.Expertise[:min(2, len(p.Expertise))], " and ")),
		fmt.Sprintf("I've read your message about %q. To give you a useful answer I'd focus on the context, the objective, and the practical next step. Which of those should we start with?",
			excerpt(message)),
	}
}
