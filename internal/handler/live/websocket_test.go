package live

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleen-ai/aleen-agents/backend/internal/model/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/model/persona"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/ai"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/conversation"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/delivery"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/session"
)

type fixedGenerator string

func (g fixedGenerator) Generate(context.Context, string, []chat.Turn) ai.Result {
	return ai.Result{Text: string(g)}
}

// slowGenerator answers after a fixed pause.
type slowGenerator struct {
	reply string
	pause time.Duration
}

func (g slowGenerator) Generate(context.Context, string, []chat.Turn) ai.Result {
	time.Sleep(g.pause)
	return ai.Result{Text: g.reply}
}

func dial(t *testing.T, reply string, store session.Store) *websocket.Conn {
	t.Helper()
	return dialWith(t, fixedGenerator(reply), store, nil)
}

func dialWith(t *testing.T, gen ai.Generator, store session.Store, tune func(*Handler)) *websocket.Conn {
	t.Helper()
	svc := conversation.New(persona.NewStaticRegistry(nil), nil, store, gen, nil, conversation.Config{}, nil)
	pacer := delivery.NewPacer(nil, delivery.Config{MaxLength: 40}, nil)

	h := New(svc, pacer, nil)
	if tune != nil {
		tune(h)
	}
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user_id=u-live"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	var f Frame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestLiveChatStreamsChunks(t *testing.T) {
	store := session.NewMemoryStore()
	ws := dial(t, "Primeira parte da resposta.\n\nSegunda parte da resposta.", store)

	connected := readFrame(t, ws)
	assert.Equal(t, "connected", connected.Type)
	assert.NotEmpty(t, connected.ConnID)

	require.NoError(t, ws.WriteJSON(chat.Request{Message: "oi"}))

	start := readFrame(t, ws)
	assert.Equal(t, "start", start.Type)
	assert.Equal(t, "onboarding", start.Agent)

	first := readFrame(t, ws)
	second := readFrame(t, ws)
	assert.Equal(t, "chunk", first.Type)
	assert.Equal(t, "Primeira parte da resposta.", first.Content)
	assert.Equal(t, 2, second.Index)

	end := readFrame(t, ws)
	assert.Equal(t, "end", end.Type)
	assert.Equal(t, 2, end.Delivered)

	// user_id from the query string is used for the context key
	_, ok := store.Get(context.Background(), "u-live")
	assert.True(t, ok)
}

func TestLiveChatReportsErrors(t *testing.T) {
	ws := dial(t, "ok", nil)
	readFrame(t, ws)

	require.NoError(t, ws.WriteJSON(chat.Request{Message: "   "}))

	f := readFrame(t, ws)
	assert.Equal(t, "error", f.Type)
	assert.Contains(t, f.Error, "message is required")

	// connection stays usable
	require.NoError(t, ws.WriteJSON(chat.Request{Message: "oi"}))
	assert.Equal(t, "start", readFrame(t, ws).Type)
}

func TestLiveChatSurvivesAnswerLongerThanReadTimeout(t *testing.T) {
	gen := slowGenerator{reply: "ok", pause: 400 * time.Millisecond}
	ws := dialWith(t, gen, nil, func(h *Handler) { h.readTimeout = 200 * time.Millisecond })
	readFrame(t, ws)

	require.NoError(t, ws.WriteJSON(chat.Request{Message: "oi"}))
	assert.Equal(t, "start", readFrame(t, ws).Type)
	assert.Equal(t, "chunk", readFrame(t, ws).Type)
	assert.Equal(t, "end", readFrame(t, ws).Type)

	require.NoError(t, ws.WriteJSON(chat.Request{Message: "oi de novo"}))
	assert.Equal(t, "start", readFrame(t, ws).Type)
}
