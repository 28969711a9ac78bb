package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/aleen-ai/aleen-agents/backend/internal/model/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/model/persona"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/ai"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/conversation"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/delivery"
)

type fixedGenerator string

func (g fixedGenerator) Generate(context.Context, string, []model.Turn) ai.Result {
	return ai.Result{Text: string(g)}
}

type sseEvent struct {
	name string
	data Event
}

func parseEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.data))
		case line == "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func setupRouter(reply string) *chi.Mux {
	svc := conversation.New(persona.NewStaticRegistry(nil), nil, nil, fixedGenerator(reply), nil, conversation.Config{}, nil)
	pacer := delivery.NewPacer(nil, delivery.Config{MaxLength: 40, Delay: 0}, nil)

	r := chi.NewRouter()
	New(svc, pacer, nil).RegisterRoutes(r)
	return r
}

func TestStreamPacesChunks(t *testing.T) {
	r := setupRouter("Primeira parte da resposta.\n\nSegunda parte da resposta.")

	body := bytes.NewBufferString(`{"user_id":"u1","message":"quanto custa o plano?","conversation_history":["oi"]}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/stream", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, "start", events[0].name)
	assert.Equal(t, "sales", events[0].data.Agent)
	assert.Equal(t, "chunk", events[1].name)
	assert.Equal(t, 1, events[1].data.Index)
	assert.Equal(t, "Primeira parte da resposta.", events[1].data.Content)
	assert.Equal(t, "Segunda parte da resposta.", events[2].data.Content)
	assert.Equal(t, "end", events[3].name)
	assert.Equal(t, 2, events[3].data.Delivered)
	assert.Empty(t, events[3].data.Error)
}

func TestStreamRejectsInvalidRequest(t *testing.T) {
	r := setupRouter("ok")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/stream", bytes.NewBufferString(`{"user_id":"u1"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestGatewayStopsOnCancelledContext(t *testing.T) {
	rec := httptest.NewRecorder()
	gw := NewGateway(rec, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.SendText(ctx, delivery.OutboundText{Text: "hello"})
	assert.Error(t, err)
	assert.Empty(t, rec.Body.String())
}
