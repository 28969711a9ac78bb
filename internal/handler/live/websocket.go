// Package live serves the websocket chat: each inbound frame is a message and
// the reply comes back as paced chunk frames.
package live

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	handlerchat "github.com/aleen-ai/aleen-agents/backend/internal/handler/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/model/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/conversation"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/delivery"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler upgrades connections and runs one conversation loop per socket.
type Handler struct {
	svc         *conversation.Service
	pacer       *delivery.Pacer
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

// New builds the websocket handler. pacer supplies segmentation and pacing.
func New(svc *conversation.Service, pacer *delivery.Pacer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:         svc,
		pacer:       pacer,
		logger:      logger.With("component", "live_handler"),
		readTimeout: readTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// Frame is every server-to-client message.
type Frame struct {
	Type      string `json:"type"`
	ConnID    string `json:"conn_id,omitempty"`
	Agent     string `json:"agent_used,omitempty"`
	Index     int    `json:"index,omitempty"`
	Content   string `json:"content,omitempty"`
	Chunks    int    `json:"chunks,omitempty"`
	Delivered int    `json:"delivered,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// Conn serialises writes to a websocket; gorilla allows one writer at a time.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// NewConn wraps ws.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Write sends one frame.
func (c *Conn) Write(f Frame) error {
	f.Timestamp = time.Now().Unix()
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(f)
}

func (c *Conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	defaultUser := strings.TrimSpace(r.URL.Query().Get("user_id"))

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	conn := NewConn(ws)
	connID := uuid.NewString()
	logger := h.logger.With("conn_id", connID)
	logger.Info("connection opened", "user_id", defaultUser)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	extend := func() error {
		return ws.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
	_ = extend()
	ws.SetPongHandler(func(string) error { return extend() })

	go h.pingLoop(ctx, conn)

	if err := conn.Write(Frame{Type: "connected", ConnID: connID}); err != nil {
		return
	}

	for {
		var req chat.Request
		if err := ws.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("read failed", "error", err)
			}
			logger.Info("connection closed")
			return
		}
		_ = extend()

		if req.UserID == "" {
			req.UserID = defaultUser
		}
		if err := h.answer(ctx, conn, req); err != nil {
			logger.Warn("write failed", "error", err)
			return
		}
		// pongs are not read while answering
		_ = extend()
	}
}

// answer handles one inbound message. Only write errors are returned;
// request failures are reported to the client as error frames.
func (h *Handler) answer(ctx context.Context, conn *Conn, req chat.Request) error {
	reply, err := h.svc.Handle(ctx, req)
	if err != nil {
		if handlerchat.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("live request failed", "user_id", req.UserID, "error", err)
		}
		return conn.Write(Frame{Type: "error", Error: err.Error()})
	}

	if err := conn.Write(Frame{Type: "start", Agent: string(reply.Persona), Fallback: reply.Fallback}); err != nil {
		return err
	}

	gw := NewGateway(conn)
	res := h.pacer.WithGateway(gw).Stream(ctx, reply.Text)
	if gw.err != nil {
		return gw.err
	}

	end := Frame{Type: "end", Agent: string(reply.Persona), Chunks: res.Chunks, Delivered: res.Delivered}
	if !res.Sent {
		end.Error = "stream interrupted"
	}
	return conn.Write(end)
}

func (h *Handler) pingLoop(ctx context.Context, conn *Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

// Gateway writes each chunk as a "chunk" frame on a live connection.
type Gateway struct {
	conn *Conn
	sent int
	err  error
}

// NewGateway binds a gateway to conn.
func NewGateway(conn *Conn) *Gateway {
	return &Gateway{conn: conn}
}

func (g *Gateway) SendText(ctx context.Context, msg delivery.OutboundText) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	g.sent++
	if err := g.conn.Write(Frame{Type: "chunk", Index: g.sent, Content: msg.Text}); err != nil {
		g.err = err
		return 0, err
	}
	return http.StatusOK, nil
}
