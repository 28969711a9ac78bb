package chat

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/aleen-ai/aleen-agents/backend/internal/model/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/conversation"
	"github.com/aleen-ai/aleen-agents/backend/pkg/utils"
)

// Handler serves the message endpoints.
type Handler struct {
	svc    *conversation.Service
	logger *slog.Logger
}

// New builds a chat handler.
func New(svc *conversation.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger.With("component", "chat_handler")}
}

// RegisterRoutes mounts the chat routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/whatsapp-chat", h.handleWhatsAppChat)
	r.Post("/send-whatsapp", h.handleSendWhatsApp)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.svc.Handle(r.Context(), req)
	if err != nil {
		h.respondFailure(w, req.UserID, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, ToResponse(reply))
}

func (h *Handler) handleWhatsAppChat(w http.ResponseWriter, r *http.Request) {
	var req chat.WhatsAppRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	send := req.ShouldSend()
	if send && strings.TrimSpace(req.PhoneNumber) == "" {
		utils.RespondError(w, http.StatusBadRequest, "phone_number is required")
		return
	}

	reply, result, err := h.svc.HandleAndDeliver(r.Context(), req.Request, req.PhoneNumber, send)
	if err != nil {
		h.respondFailure(w, req.UserID, err)
		return
	}

	if send {
		if result.Sent {
			h.logger.Info("reply delivered", "user_id", req.UserID, "chunks", result.Chunks)
		} else {
			h.logger.Warn("reply not delivered", "user_id", req.UserID, "attempted", result.Attempted, "chunks", result.Chunks)
		}
	}

	utils.RespondJSON(w, http.StatusOK, chat.WhatsAppResponse{
		Response:          ToResponse(reply),
		DeliveryAttempted: result.Attempted > 0,
		WhatsAppSent:      result.Sent,
		MessagesSent:      result.Chunks,
		ChunksSent:        result.Delivered,
	})
}

type sendRequest struct {
	PhoneNumber string `json:"phone_number"`
	Message     string `json:"message"`
}

type sendResponse struct {
	Success       bool   `json:"success"`
	PhoneNumber   string `json:"phone_number"`
	MessagesSent  int    `json:"messages_sent"`
	MessageLength int    `json:"message_length"`
}

func (h *Handler) handleSendWhatsApp(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" || strings.TrimSpace(req.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "phone_number and message are required")
		return
	}

	result, err := h.svc.Deliver(r.Context(), req.PhoneNumber, req.Message)
	if err != nil {
		h.respondFailure(w, "", err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, sendResponse{
		Success:       result.Sent,
		PhoneNumber:   req.PhoneNumber,
		MessagesSent:  result.Chunks,
		MessageLength: utf8.RuneCountInString(req.Message),
	})
}

func (h *Handler) respondFailure(w http.ResponseWriter, userID string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "user_id", userID, "error", err)
	}
	utils.RespondError(w, status, err.Error())
}

// ToResponse converts an orchestrator reply into the wire response.
func ToResponse(reply conversation.Reply) chat.Response {
	return chat.Response{
		Response:  reply.Text,
		AgentUsed: string(reply.Persona),
	}
}

// StatusFor maps orchestrator errors onto HTTP statuses.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, conversation.ErrMessageRequired), errors.Is(err, conversation.ErrUserRequired):
		return http.StatusBadRequest
	case errors.Is(err, conversation.ErrServiceUnavailable),
		errors.Is(err, conversation.ErrNoPersonas),
		errors.Is(err, conversation.ErrDeliveryDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
