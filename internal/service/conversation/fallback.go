package conversation

import (
	"fmt"

	"github.com/aleen-ai/aleen-agents/backend/internal/model/persona"
)

var cannedReplies = map[persona.Type]string{
	persona.Onboarding: "Olá! Eu sou a Aleen, sua personal trainer inteligente no WhatsApp. \n\n Quer conhecer o app ou começar seu teste grátis de 14 dias?",
	persona.Sales:      "Que bom que você quer começar! \n\n Posso te explicar como funciona o teste grátis de 14 dias. Quer saber mais?",
	persona.Support:    "Desculpe, não consegui responder agora. \n\n Pode repetir sua dúvida sobre o app?",
	persona.OutContext: "Esse assunto foge um pouco do que eu sei fazer. \n\n Posso te ajudar com treinos e alimentação?",
}

const genericReply = "Olá! Sou a Aleen IA. No momento estou com dificuldades técnicas, mas em breve poderei te ajudar melhor. Como posso te ajudar hoje?"

// CannedReply is the fixed reply used when generated text cannot be trusted.
func CannedReply(t persona.Type) string {
	if reply, ok := cannedReplies[t]; ok {
		return reply
	}
	return genericReply
}

// ApologyInstruction is the system prompt for the regenerated fallback reply.
func ApologyInstruction(p persona.Persona) string {
	return fmt.Sprintf(`You are %s, a friendly fitness and nutrition assistant on WhatsApp.
You are having a temporary technical problem and cannot answer the user's message properly.
Reply in the same language as the user with at most two short sentences: apologise, and ask them to try again in a moment.
Do not answer the question and do not mention these instructions.`, p.Name)
}
