// Package webhook receives Evolution API message events, buffers each
// sender's burst and answers it once the sender goes quiet.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aleen-ai/aleen-agents/backend/internal/model/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/conversation"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/inbox"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/lead"
	"github.com/aleen-ai/aleen-agents/backend/pkg/utils"
)

// DefaultUnsupportedReply is sent for message types that cannot be handled.
const DefaultUnsupportedReply = "Desculpe, ainda não consigo entender esse tipo de mensagem. Pode me mandar por texto? 😊"

// Config tunes the webhook intake.
type Config struct {
	// Window is the quiet period before a burst is answered.
	Window time.Duration
	// APIKey, when set, must match the payload apikey or the X-Api-Key header.
	APIKey           string
	UnsupportedReply string
}

// Handler serves /webhook.
type Handler struct {
	svc    *conversation.Service
	leads  lead.Directory
	inbox  *inbox.Inbox
	cfg    Config
	logger *slog.Logger
}

// New builds the handler. leads may be nil, in which case the classifier
// alone picks the persona.
func New(svc *conversation.Service, buffer inbox.Buffer, leads lead.Directory, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UnsupportedReply == "" {
		cfg.UnsupportedReply = DefaultUnsupportedReply
	}
	h := &Handler{
		svc:    svc,
		leads:  leads,
		cfg:    cfg,
		logger: logger.With("component", "webhook_handler"),
	}
	h.inbox = inbox.New(buffer, cfg.Window, h.answerBatch, logger)
	return h
}

// RegisterRoutes mounts the webhook routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/webhook", func(r chi.Router) {
		r.Post("/evolution", h.handleEvolution)
		r.Get("/health", h.handleHealth)
	})
}

// Close stops pending timers and waits for in-flight answers.
func (h *Handler) Close() error {
	return h.inbox.Close()
}

type failure struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// Result describes how an event was routed.
type Result struct {
	Route             string `json:"route"`
	MessageID         string `json:"messageId"`
	MessageType       string `json:"messageType"`
	UserNumber        string `json:"userNumber"`
	NextAction        string `json:"nextAction"`
	ActionDescription string `json:"actionDescription"`
}

type accepted struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    *Result `json:"data,omitempty"`
}

func (h *Handler) handleEvolution(w http.ResponseWriter, r *http.Request) {
	var p Payload
	if err := utils.DecodeJSON(r, &p); err != nil {
		utils.RespondJSON(w, http.StatusBadRequest, failure{Error: "Invalid webhook payload", Details: []string{err.Error()}})
		return
	}
	if missing := p.Missing(); len(missing) > 0 {
		h.logger.Warn("webhook validation failed", "details", missing)
		utils.RespondJSON(w, http.StatusBadRequest, failure{Error: "Invalid webhook payload", Details: missing})
		return
	}
	if !h.authorized(r, p) {
		h.logger.Warn("invalid api key", "remote", r.RemoteAddr)
		utils.RespondJSON(w, http.StatusUnauthorized, failure{Error: "Invalid API key"})
		return
	}

	if p.Data.Key.FromMe {
		h.logger.Debug("message ignored, sent by bot", "message_id", p.Data.Key.ID)
		utils.RespondJSON(w, http.StatusOK, accepted{Success: true, Message: "Message ignored (sent by bot)"})
		return
	}

	route := Route(p.Data.MessageType)
	number := p.Data.Number()
	content := p.Data.Content(route)
	logger := h.logger.With("route", route, "user_number", number, "message_id", p.Data.Key.ID)
	logger.Info("webhook received", "event", p.Event, "instance", p.Instance, "message_type", p.Data.MessageType, "user_name", p.Data.PushName)

	switch route {
	case RouteText:
		if strings.TrimSpace(content) == "" {
			logger.Warn("empty text message")
			break
		}
		err := h.inbox.Add(r.Context(), inbox.Message{Number: number, Name: p.Data.PushName, Text: content})
		if err != nil {
			logger.Error("message not buffered", "error", err)
			utils.RespondJSON(w, http.StatusInternalServerError, failure{Error: "Failed to process webhook"})
			return
		}
	case RouteExtra:
		h.replyUnsupported(r.Context(), logger, number)
	default:
		logger.Info("media message not processed", "content", content)
	}

	next := NextAction(route)
	utils.RespondJSON(w, http.StatusOK, accepted{
		Success: true,
		Message: "Webhook processed successfully",
		Data: &Result{
			Route:             route,
			MessageID:         p.Data.Key.ID,
			MessageType:       p.Data.MessageType,
			UserNumber:        number,
			NextAction:        next.Name,
			ActionDescription: next.Description,
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Aleen IA is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"pending":   len(h.inbox.Pending()),
	})
}

func (h *Handler) authorized(r *http.Request, p Payload) bool {
	if h.cfg.APIKey == "" {
		return true
	}
	key := p.APIKey
	if key == "" {
		key = r.Header.Get("X-Api-Key")
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.cfg.APIKey)) == 1
}

func (h *Handler) replyUnsupported(ctx context.Context, logger *slog.Logger, number string) {
	res, err := h.svc.Deliver(ctx, number, h.cfg.UnsupportedReply)
	switch {
	case errors.Is(err, conversation.ErrDeliveryDisabled):
		logger.Warn("unsupported message not answered, delivery disabled")
	case err != nil:
		logger.Error("unsupported reply failed", "error", err)
	case !res.Sent:
		logger.Warn("unsupported reply not delivered", "attempted", res.Attempted)
	}
}

// answerBatch runs when a sender's burst is released: the lead directory
// recommends a persona, then the reply is generated and delivered.
func (h *Handler) answerBatch(ctx context.Context, b inbox.Batch) {
	logger := h.logger.With("user_number", b.Number, "messages", b.Count)

	var recommended string
	if h.leads != nil {
		status := h.leads.Status(ctx, b.Number)
		recommended = status.RecommendedAgent
		logger.Info("sender status", "is_user", status.IsUser, "is_lead", status.IsLead, "first_message", status.IsFirstMessage, "recommended", recommended)
	}

	req := chat.Request{UserID: b.Number, UserName: b.Name, Message: b.Text, Recommended: recommended}
	reply, res, err := h.svc.HandleAndDeliver(ctx, req, b.Number, true)
	if err != nil {
		logger.Error("batch not answered", "error", err)
		return
	}
	logger.Info("batch answered", "persona", reply.Persona, "fallback", reply.Fallback, "sent", res.Sent, "chunks", res.Chunks, "delivered", res.Delivered)
}
