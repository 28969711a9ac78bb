// Package routing decides which persona answers an inbound message.
package routing

import (
	"strings"

	"github.com/aleen-ai/aleen-agents/backend/internal/model/persona"
)

// Classifier holds the keyword sets that drive persona selection.
// Matching is substring containment on the lowercased message.
type Classifier struct {
	OutOfContext  []string
	Domain        []string
	Transactional []string
	HowItWorks    []string
	Greetings     []string
}

// DefaultClassifier returns the fitness and nutrition keyword sets.
func DefaultClassifier() *Classifier {
	return &Classifier{
		OutOfContext: []string{
			"tempo", "weather", "clima", "política", "notícia", "futebol", "filme",
			"música", "receita", "cozinhar", "viagem", "trabalho", "estudo", "escola",
			"matemática", "história", "geografia", "programação", "tecnologia", "carros",
			"games", "jogos", "amor", "relacionamento", "piada", "joke", "previsão",
		},
		Domain: []string{
			"treino", "exercício", "workout", "musculação", "cardio", "peso", "academia",
			"fitness", "saúde", "emagrecer", "massa", "dieta", "nutrição", "calorias",
			"alimentação", "proteína", "carboidrato", "suplemento", "plano", "meta",
			"objetivo", "resultado", "progresso", "medidas", "corpo", "físico",
		},
		Transactional: []string{
			"preço", "valor", "custo", "plano", "contratar", "comprar", "orçamento",
			"quero começar", "interessado", "teste", "gratis", "trial", "assinar",
		},
		HowItWorks: []string{
			"como funciona", "como usar", "dúvida", "pergunta", "ajuda", "problema",
			"não entendi", "explicar", "dashboard", "acompanhar", "progresso",
		},
		Greetings: []string{"oi", "olá", "hello", "hi", "bom dia", "boa tarde", "boa noite"},
	}
}

// Classify picks a persona for message. The first matching rule wins:
// a loaded hint, off-topic keywords, first contact, generic chatter,
// purchase intent, how-it-works questions, and finally onboarding.
// hint is either a persona type or a store identifier such as "DOUBT".
// loaded reports which personas are available; nil treats none as loaded.
func (c *Classifier) Classify(message string, history []string, hint string, loaded func(persona.Type) bool) persona.Type {
	if t := hintType(hint); t != "" && loaded != nil && loaded(t) {
		return t
	}

	text := strings.ToLower(message)

	if containsAny(text, c.OutOfContext) {
		return persona.OutContext
	}

	if len(history) == 0 {
		return persona.Onboarding
	}

	if !c.inDomain(text) {
		trimmed := strings.TrimSpace(text)
		for _, greeting := range c.Greetings {
			if trimmed == greeting {
				return persona.Onboarding
			}
		}
		if len(strings.Fields(text)) > 2 {
			return persona.OutContext
		}
	}

	switch {
	case containsAny(text, c.Transactional):
		return persona.Sales
	case containsAny(text, c.HowItWorks):
		return persona.Support
	default:
		return persona.Onboarding
	}
}

// inDomain treats purchase and how-it-works intent as on-topic alongside the
// subject keywords.
func (c *Classifier) inDomain(text string) bool {
	return containsAny(text, c.Domain) ||
		containsAny(text, c.Transactional) ||
		containsAny(text, c.HowItWorks)
}

// hintType maps a store identifier onto its slot; anything else is taken as
// a persona type as-is.
func hintType(hint string) persona.Type {
	if t, ok := persona.LookupIdentifier(hint); ok {
		return t
	}
	return persona.Type(hint)
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
