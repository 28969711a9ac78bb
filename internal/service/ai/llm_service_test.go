package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleen-ai/aleen-agents/backend/internal/model/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/model/persona"
)

type fakeChatModel struct {
	reply string
	err   error
	delay time.Duration
	input []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.input = input
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestServiceGenerate(t *testing.T) {
	fake := &fakeChatModel{reply: "  Olá! Vamos treinar?  "}
	svc, err := NewService(context.Background(), fake, time.Second, nil)
	require.NoError(t, err)

	res := svc.Generate(context.Background(), "be aleen", []chat.Turn{
		chat.NewTurn(chat.RoleSystem, "User context: likes running"),
		chat.NewTurn(chat.RoleUser, "oi"),
	})

	require.True(t, res.OK(), "fault: %v", res.Fault)
	assert.Equal(t, "Olá! Vamos treinar?", res.Text)
	require.Len(t, fake.input, 3)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Equal(t, "be aleen", fake.input[0].Content)
	assert.Equal(t, schema.User, fake.input[2].Role)
	assert.Equal(t, "oi", fake.input[2].Content)
}

func TestServiceGenerateFaults(t *testing.T) {
	svc, err := NewService(context.Background(), &fakeChatModel{err: errors.New("boom")}, time.Second, nil)
	require.NoError(t, err)
	res := svc.Generate(context.Background(), "sys", []chat.Turn{chat.NewTurn(chat.RoleUser, "oi")})
	assert.False(t, res.OK())
	assert.Error(t, res.Fault)

	svc, err = NewService(context.Background(), &fakeChatModel{reply: "   "}, time.Second, nil)
	require.NoError(t, err)
	res = svc.Generate(context.Background(), "sys", []chat.Turn{chat.NewTurn(chat.RoleUser, "oi")})
	assert.ErrorIs(t, res.Fault, ErrEmptyCompletion)
}

func TestUnavailableAlwaysFaults(t *testing.T) {
	res := Unavailable{}.Generate(context.Background(), "sys", nil)
	assert.ErrorIs(t, res.Fault, ErrNotConfigured)
	assert.False(t, res.OK())
}

func TestServiceGenerateTimeout(t *testing.T) {
	svc, err := NewService(context.Background(), &fakeChatModel{reply: "late", delay: time.Second}, 20*time.Millisecond, nil)
	require.NoError(t, err)

	res := svc.Generate(context.Background(), "sys", []chat.Turn{chat.NewTurn(chat.RoleUser, "oi")})
	assert.False(t, res.OK())
}

func TestToSchemaMessages(t *testing.T) {
	msgs := ToSchemaMessages([]chat.Turn{
		{Role: chat.RoleSystem, Content: "ctx"},
		{Role: chat.RoleUser, Content: "  "},
		{Role: chat.RoleAssistant, Content: "reply"},
		{Role: "", Content: "untagged"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, schema.Assistant, msgs[1].Role)
	assert.Equal(t, schema.User, msgs[2].Role)
}

func TestEchoGuard(t *testing.T) {
	g := DefaultEchoGuard()
	instruction := persona.Defaults()[0].Instruction

	assert.False(t, g.Echoed("Olá! Eu sou a Aleen.", instruction), "short replies are never echoes")

	echo := instruction + "\n\n" + strings.Repeat("padding ", 100)
	assert.True(t, g.Echoed(echo, instruction))

	genuine := strings.Repeat("Seu treino de hoje começa com aquecimento leve. ", 30)
	assert.False(t, g.Echoed(genuine, instruction))
}

func TestEchoGuardMatchThreshold(t *testing.T) {
	g := EchoGuard{MinLength: 10, MinMatches: 2}
	instruction := "You are a very helpful fitness assistant.\n**RULES:**\n- Always reply in Portuguese to the user"

	oneHit := "Sure! **rules:** nothing else here to see at all"
	assert.False(t, g.Echoed(oneHit, instruction))

	twoHits := "**RULES:** always reply in portuguese to the user, that's it"
	assert.True(t, g.Echoed(twoHits, instruction))
}

func TestFragments(t *testing.T) {
	got := Fragments("You are Aleen, the intelligent agent. Be nice.\n\n**RULES:**\n- short\n- Always respond in the same language", "**rules:**")

	assert.Contains(t, got, "you are aleen, the intelligent agent")
	assert.Contains(t, got, "**rules:**")
	assert.Contains(t, got, "always respond in the same language")
	assert.NotContains(t, got, "short")

	count := 0
	for _, f := range got {
		if f == "**rules:**" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
