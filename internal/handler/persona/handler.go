package persona

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aleen-ai/aleen-agents/backend/internal/model/persona"
	"github.com/aleen-ai/aleen-agents/backend/pkg/utils"
)

// Registry is the persona store plus the reload operation.
type Registry interface {
	persona.Store
	Reload(ctx context.Context) error
}

// Handler serves persona listing and reload.
type Handler struct {
	personas Registry
	logger   *slog.Logger
}

// New builds a persona handler.
func New(personas Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{personas: personas, logger: logger.With("component", "persona_handler")}
}

// RegisterRoutes mounts the persona routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/agents", h.handleList)
	r.Get("/agents/config", h.handleConfig)
	r.Post("/reload-agents", h.handleReload)
}

type detail struct {
	Name        string `json:"name"`
	Identifier  string `json:"identifier"`
	Description string `json:"description"`
}

type listResponse struct {
	Agents  []persona.Type          `json:"agents"`
	Details map[persona.Type]detail `json:"details"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items := h.personas.List()
	resp := listResponse{
		Agents:  make([]persona.Type, 0, len(items)),
		Details: make(map[persona.Type]detail, len(items)),
	}
	for _, p := range items {
		resp.Agents = append(resp.Agents, p.Type)
		resp.Details[p.Type] = detail{Name: p.Name, Identifier: p.Identifier, Description: p.Description}
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

type configResponse struct {
	AgentsConfig map[persona.Type]persona.Persona `json:"agents_config"`
	TotalAgents  int                              `json:"total_agents"`
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	items := h.personas.List()
	resp := configResponse{
		AgentsConfig: make(map[persona.Type]persona.Persona, len(items)),
		TotalAgents:  len(items),
	}
	for _, p := range items {
		resp.AgentsConfig[p.Type] = p
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

type reloadResponse struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message"`
	AgentsLoaded []persona.Type `json:"agents_loaded,omitempty"`
	Total        int            `json:"total,omitempty"`
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.personas.Reload(r.Context()); err != nil {
		h.logger.Warn("persona reload failed", "error", err)
		utils.RespondJSON(w, http.StatusOK, reloadResponse{
			Success: false,
			Message: "failed to reload personas: " + err.Error(),
		})
		return
	}

	items := h.personas.List()
	loaded := make([]persona.Type, 0, len(items))
	for _, p := range items {
		loaded = append(loaded, p.Type)
	}
	utils.RespondJSON(w, http.StatusOK, reloadResponse{
		Success:      true,
		Message:      "personas reloaded",
		AgentsLoaded: loaded,
		Total:        len(loaded),
	})
}
