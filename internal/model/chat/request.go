package chat

// Request is one inbound message to route and answer.
type Request struct {
	UserID      string   `json:"user_id"`
	UserName    string   `json:"user_name"`
	Message     string   `json:"message"`
	History     []string `json:"conversation_history"`
	Recommended string   `json:"recommended_agent,omitempty"`
}

// Response is the reply returned to the inbound caller.
type Response struct {
	Response      string  `json:"response"`
	AgentUsed     string  `json:"agent_used"`
	ShouldHandoff bool    `json:"should_handoff"`
	NextAgent     *string `json:"next_agent"`
}

// WhatsAppRequest extends Request with delivery to a phone number.
type WhatsAppRequest struct {
	Request
	PhoneNumber    string `json:"phone_number"`
	SendToWhatsApp *bool  `json:"send_to_whatsapp,omitempty"`
}

// ShouldSend defaults to true when the flag is omitted.
func (r WhatsAppRequest) ShouldSend() bool {
	return r.SendToWhatsApp == nil || *r.SendToWhatsApp
}

// WhatsAppResponse reports the reply along with the delivery outcome.
type WhatsAppResponse struct {
	Response
	DeliveryAttempted bool `json:"delivery_attempted"`
	WhatsAppSent      bool `json:"whatsapp_sent"`
	MessagesSent      int  `json:"messages_sent"`
	ChunksSent        int  `json:"chunks_sent"`
}
