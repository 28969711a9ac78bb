package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aleen-ai/aleen-agents/backend/internal/handler/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/handler/live"
	"github.com/aleen-ai/aleen-agents/backend/internal/handler/persona"
	"github.com/aleen-ai/aleen-agents/backend/internal/handler/stream"
	"github.com/aleen-ai/aleen-agents/backend/internal/handler/webhook"
	middlewarePkg "github.com/aleen-ai/aleen-agents/backend/internal/middleware"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/conversation"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/delivery"
	"github.com/aleen-ai/aleen-agents/backend/pkg/utils"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "aleen-ai-agents"

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Conversation *conversation.Service
	Personas     persona.Registry
	// Pacer segments and paces streamed replies; its gateway is swapped per
	// connection.
	Pacer *delivery.Pacer
	// Webhook is mounted under /webhook when set.
	Webhook *webhook.Handler
	Logger  *slog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "healthy",
			"service": ServiceName,
			"agents":  len(deps.Personas.List()),
		})
	})

	persona.New(deps.Personas, logger).RegisterRoutes(r)
	chat.New(deps.Conversation, logger).RegisterRoutes(r)
	stream.New(deps.Conversation, deps.Pacer, logger).RegisterRoutes(r)
	live.New(deps.Conversation, deps.Pacer, logger).RegisterRoutes(r)
	if deps.Webhook != nil {
		deps.Webhook.RegisterRoutes(r)
	}

	return r
}
