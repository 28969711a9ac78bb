package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aleen-ai/aleen-agents/backend/internal/handler/chat"
	model "github.com/aleen-ai/aleen-agents/backend/internal/model/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/conversation"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/delivery"
	"github.com/aleen-ai/aleen-agents/backend/pkg/utils"
)

var errStreamingUnsupported = errors.New("streaming unsupported")

// Handler answers a message and paces the reply chunks back as Server-Sent
// Events, the same way they would reach a phone.
type Handler struct {
	svc    *conversation.Service
	pacer  *delivery.Pacer
	logger *slog.Logger
}

// New builds a stream handler. pacer supplies segmentation and pacing; its
// gateway is replaced per request.
func New(svc *conversation.Service, pacer *delivery.Pacer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, pacer: pacer, logger: logger.With("component", "stream_handler")}
}

// RegisterRoutes mounts the stream route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream", h.handleStream)
}

// Event is the payload of every SSE event on the stream.
type Event struct {
	Agent     string `json:"agent_used,omitempty"`
	Index     int    `json:"index,omitempty"`
	Content   string `json:"content,omitempty"`
	Chunks    int    `json:"chunks,omitempty"`
	Delivered int    `json:"delivered,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, errStreamingUnsupported.Error())
		return
	}

	var req model.Request
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.svc.Handle(r.Context(), req)
	if err != nil {
		status := chat.StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("stream request failed", "user_id", req.UserID, "error", err)
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	if err := utils.SendSSEEvent(w, flusher, "start", Event{Agent: string(reply.Persona), Fallback: reply.Fallback}); err != nil {
		h.logger.Warn("client went away", "user_id", req.UserID, "error", err)
		return
	}

	gw := NewGateway(w, flusher)
	res := h.pacer.WithGateway(gw).Stream(r.Context(), reply.Text)

	end := Event{Agent: string(reply.Persona), Chunks: res.Chunks, Delivered: res.Delivered}
	if !res.Sent {
		end.Error = "stream interrupted"
	}
	if err := utils.SendSSEEvent(w, flusher, "end", end); err != nil {
		h.logger.Warn("client went away", "user_id", req.UserID, "error", err)
		return
	}

	h.logger.Info("stream completed", "user_id", req.UserID, "persona", reply.Persona, "chunks", res.Chunks)
}

// Gateway writes each chunk as a "chunk" event on an open SSE response.
type Gateway struct {
	w       http.ResponseWriter
	flusher http.Flusher
	sent    int
}

// NewGateway wraps an SSE response writer.
func NewGateway(w http.ResponseWriter, flusher http.Flusher) *Gateway {
	return &Gateway{w: w, flusher: flusher}
}

func (g *Gateway) SendText(ctx context.Context, msg delivery.OutboundText) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(msg.Text) == "" {
		return http.StatusBadRequest, nil
	}
	g.sent++
	if err := utils.SendSSEEvent(g.w, g.flusher, "chunk", Event{Index: g.sent, Content: msg.Text}); err != nil {
		return 0, err
	}
	return http.StatusOK, nil
}
