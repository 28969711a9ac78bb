package persona

// Type is the internal persona slot a request is routed to.
type Type string

const (
	Onboarding Type = "onboarding"
	Sales      Type = "sales"
	Support    Type = "support"
	OutContext Type = "out_context"
)

// Types lists every persona slot in display order.
var Types = []Type{Onboarding, Sales, Support, OutContext}

// Valid reports whether t is one of the known persona slots.
func (t Type) Valid() bool {
	switch t {
	case Onboarding, Sales, Support, OutContext:
		return true
	}
	return false
}

// Persona captures the instruction set and metadata of a conversational agent.
type Persona struct {
	Type        Type   `json:"type"`
	ID          string `json:"id,omitempty"`
	Identifier  string `json:"identifier"`
	Name        string `json:"name"`
	Instruction string `json:"prompt"`
	Description string `json:"description"`
}

// Record is one persona row as returned by an external store.
type Record struct {
	ID          string `json:"id" yaml:"id" toml:"id"`
	Identifier  string `json:"identifier" yaml:"identifier" toml:"identifier"`
	Name        string `json:"name" yaml:"name" toml:"name"`
	Prompt      string `json:"prompt" yaml:"prompt" toml:"prompt"`
	Description string `json:"description" yaml:"description" toml:"description"`
}

// identifierTypes maps store identifiers onto persona slots. Legacy onboarding
// identifiers are kept so older rows still load.
var identifierTypes = map[string]Type{
	"GREETING_WITHOUT_MEMORY": Onboarding,
	"DOUBT":                   Support,
	"SALES":                   Sales,
	"OUT_CONTEXT":             OutContext,
	"ONBOARDING_INIT":         Onboarding,
	"GREETING_WITH_MEMORY":    Onboarding,
	"ONBOARDING_PENDING":      Onboarding,
}

// TypeForIdentifier resolves a store identifier, defaulting to Onboarding.
func TypeForIdentifier(identifier string) Type {
	if t, ok := LookupIdentifier(identifier); ok {
		return t
	}
	return Onboarding
}

// LookupIdentifier resolves a known store identifier without defaulting.
func LookupIdentifier(identifier string) (Type, bool) {
	t, ok := identifierTypes[identifier]
	return t, ok
}

// FromRecord converts a store row into a Persona.
func FromRecord(rec Record) Persona {
	name := rec.Name
	if name == "" {
		name = "Aleen"
	}
	return Persona{
		Type:        TypeForIdentifier(rec.Identifier),
		ID:          rec.ID,
		Identifier:  rec.Identifier,
		Name:        name,
		Instruction: rec.Prompt,
		Description: rec.Description,
	}
}

// Defaults provides the built-in personas used when no store is reachable.
func Defaults() []Persona {
	return []Persona{
		{
			Type:       Onboarding,
			Identifier: "DEFAULT_ONBOARDING",
			Name:       "Aleen Onboarding Agent",
			Instruction: `You are Aleen, the intelligent fitness and nutrition agent. You are very friendly, helpful, and clear.

Your mission is to welcome new contacts, briefly introduce the app, and ask if they're interested in learning about it.

**RULES:**
- Always respond in the same language the user is speaking to you
- Always break your messages with \n\n for more human and natural reading
- Be warm and friendly
- Focus only on welcoming and introducing the fitness app
- DO NOT invent information or "guess" answers

About Aleen: Your smart personal trainer that works on WhatsApp, creates personalized workout and nutrition plans.
Ask if they want to learn more or start their 14-day free trial.`,
			Description: "Welcomes new contacts and introduces the app",
		},
		defaultSales(),
		{
			Type:       Support,
			Identifier: "DEFAULT_SUPPORT",
			Name:       "Aleen Support Agent",
			Instruction: `You are Aleen, the intelligent fitness and nutrition agent helping with questions about the app.

**RULES:**
- Always respond in the same language the user is speaking to you
- Always break your messages with \n\n for more human and natural reading
- Be helpful and clear
- DO NOT invent information you're unsure about

Answer questions about how the app works, personalized workouts, nutrition plans, and the 14-day free trial.
Stay focused on fitness and nutrition topics only.`,
			Description: "Answers questions about how the app works",
		},
		{
			Type:       OutContext,
			Identifier: "DEFAULT_OUT_CONTEXT",
			Name:       "Aleen Out of Context Agent",
			Instruction: `You are Aleen, the intelligent fitness and nutrition agent.

Your role is to handle messages outside the context of fitness, nutrition, or the Aleen app.

**RULES:**
- Always respond in the same language the user is speaking to you
- Always break your messages with \n\n for more human and natural reading
- Be polite but redirect back to fitness topics
- DO NOT answer questions unrelated to fitness/nutrition
- DO NOT invent information outside your expertise

Politely redirect users back to fitness and nutrition topics where you can help them.`,
			Description: "Redirects off-topic messages back to fitness",
		},
	}
}

func defaultSales() Persona {
	return Persona{
		Type:       Sales,
		Identifier: "SALES_FALLBACK",
		Name:       "Aleen Sales Agent",
		Instruction: `You are Aleen, the intelligent fitness and nutrition agent focused on helping users start their fitness journey.

**RULES:**
- Always respond in the same language the user is speaking to you
- Always break your messages with \n\n for more human and natural reading
- Be motivating and inspiring
- Focus on benefits and results
- DO NOT invent information you're unsure about

Help users understand benefits and guide them through starting their 14-day free trial.
Focus on personalized workout plans, nutrition guidance, and WhatsApp convenience.`,
		Description: "Guides interested users into the free trial",
	}
}
