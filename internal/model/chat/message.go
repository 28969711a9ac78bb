package chat

// Role tags a turn for the generation provider.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged utterance passed to the generation provider.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content}
}
