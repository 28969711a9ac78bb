package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/aleen-ai/aleen-agents/backend/internal/model/chat"
)

var (
	ErrEmptyCompletion = errors.New("model returned an empty completion")
	ErrNotConfigured   = errors.New("chat model not configured")
)

// Result is the outcome of one generation call. Fault is set when no usable
// text was produced.
type Result struct {
	Text  string
	Fault error
}

// OK reports whether the call produced text.
func (r Result) OK() bool {
	return r.Fault == nil && strings.TrimSpace(r.Text) != ""
}

// Generator produces a reply from a system instruction and role-tagged turns.
type Generator interface {
	Generate(ctx context.Context, system string, turns []chat.Turn) Result
}

// Unavailable stands in when no chat model is configured; every call faults.
type Unavailable struct{}

func (Unavailable) Generate(context.Context, string, []chat.Turn) Result {
	return Result{Fault: ErrNotConfigured}
}

// Service runs the persona chain: system instruction, turns, chat model.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	timeout   time.Duration
	logger    *slog.Logger
}

// NewService compiles the chain around chatModel. timeout bounds each call;
// zero leaves calls bounded only by the caller's context.
func NewService(ctx context.Context, chatModel model.ChatModel, timeout time.Duration, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("turns", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		chain:     runnable,
		timeout:   timeout,
		logger:    logger.With("component", "ai"),
	}, nil
}

// Generate invokes the chain once. Faults are returned in the Result, never
// as a panic or separate error value.
func (s *Service) Generate(ctx context.Context, system string, turns []chat.Turn) Result {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	msg, err := s.chain.Invoke(ctx, map[string]any{
		"system": system,
		"turns":  ToSchemaMessages(turns),
	})
	if err != nil {
		s.logger.Error("generation failed", "error", err, "elapsed", time.Since(started))
		return Result{Fault: fmt.Errorf("failed to run AI chain: %w", err)}
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return Result{Fault: ErrEmptyCompletion}
	}

	s.logger.Info("generated response", "length", len(msg.Content), "elapsed", time.Since(started))
	return Result{Text: strings.TrimSpace(msg.Content)}
}

// ChatModel returns the underlying model.
func (s *Service) ChatModel() model.ChatModel {
	return s.chatModel
}

// ToSchemaMessages converts turns into eino messages, dropping empty ones.
func ToSchemaMessages(turns []chat.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		switch turn.Role {
		case chat.RoleSystem:
			out = append(out, schema.SystemMessage(turn.Content))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(turn.Content, nil))
		default:
			out = append(out, schema.UserMessage(turn.Content))
		}
	}
	return out
}
