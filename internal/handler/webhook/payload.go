package webhook

import "strings"

// Payload is the Evolution API "messages.upsert" webhook body.
type Payload struct {
	Event       string      `json:"event"`
	Instance    string      `json:"instance"`
	Data        MessageData `json:"data"`
	Destination string      `json:"destination,omitempty"`
	DateTime    string      `json:"date_time,omitempty"`
	Sender      string      `json:"sender,omitempty"`
	ServerURL   string      `json:"server_url,omitempty"`
	APIKey      string      `json:"apikey"`
}

type MessageData struct {
	Key              MessageKey `json:"key"`
	PushName         string     `json:"pushName"`
	Message          Message    `json:"message"`
	MessageType      string     `json:"messageType"`
	MessageTimestamp int64      `json:"messageTimestamp"`
	InstanceID       string     `json:"instanceId"`
	Source           string     `json:"source"`
}

type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

type Message struct {
	Conversation string        `json:"conversation,omitempty"`
	ExtendedText *ExtendedText `json:"extendedTextMessage,omitempty"`
	Audio        *Media        `json:"audioMessage,omitempty"`
	Image        *Media        `json:"imageMessage,omitempty"`
	Video        *Media        `json:"videoMessage,omitempty"`
	Document     *Media        `json:"documentMessage,omitempty"`
}

type ExtendedText struct {
	Text string `json:"text"`
}

type Media struct {
	URL      string `json:"url"`
	Mimetype string `json:"mimetype,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Title    string `json:"title,omitempty"`
}

// Routes a message can take.
const (
	RouteText     = "texto"
	RouteAudio    = "audio"
	RouteImage    = "image"
	RouteVideo    = "video"
	RouteFile     = "file"
	RouteExtra    = "extra"
	RouteIgnored  = "ignored"
	actionUnknown = "unknown"
)

// Action is what happens to a routed message next.
type Action struct {
	Name        string
	Description string
}

var actions = map[string]Action{
	RouteText:  {"process_text", "Process text message directly"},
	RouteAudio: {"download_and_transcribe", "Download audio file and transcribe"},
	RouteImage: {"download_and_analyze", "Download image and analyze content"},
	RouteVideo: {"download_and_analyze", "Download video and analyze content"},
	RouteFile:  {"download_document", "Download and process document"},
	RouteExtra: {"send_unsupported_message", "Send error message for unsupported type"},
}

// NextAction describes the follow-up for route.
func NextAction(route string) Action {
	if a, ok := actions[route]; ok {
		return a
	}
	return Action{actionUnknown, "Unknown action required"}
}

// Route maps an Evolution messageType onto a processing route.
func Route(messageType string) string {
	switch messageType {
	case "conversation", "extendedTextMessage":
		return RouteText
	case "audioMessage":
		return RouteAudio
	case "imageMessage":
		return RouteImage
	case "videoMessage":
		return RouteVideo
	case "documentMessage", "file":
		return RouteFile
	default:
		return RouteExtra
	}
}

// Missing lists required fields that are absent.
func (p Payload) Missing() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name+" is required")
		}
	}
	check("event", p.Event)
	check("data.key.remoteJid", p.Data.Key.RemoteJID)
	check("data.key.id", p.Data.Key.ID)
	check("data.messageType", p.Data.MessageType)
	return missing
}

// Number is the sender's address without the WhatsApp domain.
func (d MessageData) Number() string {
	number, _, _ := strings.Cut(d.Key.RemoteJID, "@")
	return number
}

// Content extracts the text, caption, title or media URL for route.
func (d MessageData) Content(route string) string {
	m := d.Message
	switch route {
	case RouteText:
		if m.Conversation != "" {
			return m.Conversation
		}
		if m.ExtendedText != nil {
			return m.ExtendedText.Text
		}
	case RouteAudio:
		return mediaContent(m.Audio)
	case RouteImage:
		return mediaContent(m.Image)
	case RouteVideo:
		return mediaContent(m.Video)
	case RouteFile:
		return mediaContent(m.Document)
	}
	return ""
}

func mediaContent(m *Media) string {
	if m == nil {
		return ""
	}
	for _, v := range []string{m.Caption, m.Title, m.URL} {
		if v != "" {
			return v
		}
	}
	return ""
}
