// Package conversation routes a message to a persona, generates the reply and
// keeps the user's short-term context up to date.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aleen-ai/aleen-agents/backend/internal/model/chat"
	"github.com/aleen-ai/aleen-agents/backend/internal/model/persona"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/ai"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/delivery"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/routing"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/session"
)

var (
	ErrMessageRequired    = errors.New("message is required")
	ErrUserRequired       = errors.New("user id is required")
	ErrNoPersonas         = errors.New("no personas loaded")
	ErrServiceUnavailable = errors.New("reply generation unavailable")
	ErrDeliveryDisabled   = errors.New("delivery not configured")
)

const (
	DefaultHistoryWindow = 5
	regenerateTimeout    = 15 * time.Second
)

// safeDefaults are tried in order when the classified persona is not loaded.
var safeDefaults = []persona.Type{persona.Support, persona.Onboarding}

// Config tunes the orchestrator.
type Config struct {
	ContextTTL    time.Duration
	HistoryWindow int
	Guard         ai.EchoGuard
}

// Reply is the outcome of handling one message.
type Reply struct {
	Text     string       `json:"text"`
	Persona  persona.Type `json:"persona"`
	Fallback bool         `json:"fallback"`
}

// Service composes classification, context, generation and delivery.
type Service struct {
	personas   persona.Store
	classifier *routing.Classifier
	contexts   session.Store
	generator  ai.Generator
	pacer      *delivery.Pacer
	cfg        Config
	logger     *slog.Logger
}

// New builds the orchestrator. pacer may be nil when no gateway is wired.
func New(personas persona.Store, classifier *routing.Classifier, contexts session.Store, generator ai.Generator, pacer *delivery.Pacer, cfg Config, logger *slog.Logger) *Service {
	if classifier == nil {
		classifier = routing.DefaultClassifier()
	}
	if contexts == nil {
		contexts = session.NoopStore{}
	}
	if cfg.ContextTTL <= 0 {
		cfg.ContextTTL = session.DefaultTTL
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Guard.MinLength == 0 && cfg.Guard.MinMatches == 0 {
		cfg.Guard = ai.DefaultEchoGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		personas:   personas,
		classifier: classifier,
		contexts:   contexts,
		generator:  generator,
		pacer:      pacer,
		cfg:        cfg,
		logger:     logger.With("component", "conversation"),
	}
}

// Pacer returns the delivery pacer, or nil.
func (s *Service) Pacer() *delivery.Pacer {
	return s.pacer
}

// Handle answers one message. Context store problems and a failed first
// generation are absorbed; ErrServiceUnavailable is returned only when the
// fallback generation fails as well.
func (s *Service) Handle(ctx context.Context, req chat.Request) (Reply, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return Reply{}, ErrUserRequired
	}
	if strings.TrimSpace(req.Message) == "" {
		return Reply{}, ErrMessageRequired
	}

	chosen := s.classifier.Classify(req.Message, req.History, req.Recommended, s.personas.Has)
	p, ok := s.resolve(chosen)
	if !ok {
		return Reply{}, ErrNoPersonas
	}

	logger := s.logger.With("user_id", req.UserID, "persona", p.Type)
	if p.Type != chosen {
		logger.Warn("classified persona not loaded, using default", "classified", chosen)
	}

	prior, _ := s.contexts.Get(ctx, req.UserID)
	turns := BuildTurns(prior, req.History, req.Message, s.cfg.HistoryWindow)

	logger.Info("handling message", "user_name", req.UserName, "turns", len(turns), "has_context", prior != "")

	reply := Reply{Persona: p.Type}
	res := s.generator.Generate(ctx, p.Instruction, turns)
	switch {
	case !res.OK():
		logger.Warn("generation failed, regenerating fallback", "error", res.Fault)
		text, err := s.regenerate(ctx, p, req.Message)
		if err != nil {
			logger.Error("fallback generation failed", "error", err)
			return Reply{Persona: p.Type}, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		reply.Text = text
		reply.Fallback = true
	case s.cfg.Guard.Echoed(res.Text, p.Instruction):
		logger.Warn("model echoed its instruction, using canned reply", "length", len(res.Text))
		reply.Text = CannedReply(p.Type)
		reply.Fallback = true
	default:
		reply.Text = res.Text
	}

	updated := session.AppendExchange(prior, req.Message, reply.Text)
	if err := s.contexts.Put(ctx, req.UserID, updated, s.cfg.ContextTTL); err != nil {
		logger.Warn("context not saved", "error", err)
	}

	return reply, nil
}

// HandleAndDeliver answers the message and, when send is set, delivers the
// reply to recipient through the pacer.
func (s *Service) HandleAndDeliver(ctx context.Context, req chat.Request, recipient string, send bool) (Reply, delivery.Result, error) {
	reply, err := s.Handle(ctx, req)
	if err != nil || !send {
		return reply, delivery.Result{}, err
	}
	if s.pacer == nil {
		s.logger.Warn("delivery requested but no gateway configured", "user_id", req.UserID)
		return reply, delivery.Result{}, nil
	}
	return reply, s.pacer.Deliver(ctx, recipient, reply.Text), nil
}

// Deliver sends text through the pacer without generating anything.
func (s *Service) Deliver(ctx context.Context, recipient, text string) (delivery.Result, error) {
	if s.pacer == nil {
		return delivery.Result{}, ErrDeliveryDisabled
	}
	return s.pacer.Deliver(ctx, recipient, text), nil
}

// resolve returns the persona for t, falling back to the safe defaults and
// then to any loaded persona.
func (s *Service) resolve(t persona.Type) (persona.Persona, bool) {
	if p, ok := s.personas.Get(t); ok {
		return p, true
	}
	for _, fallback := range safeDefaults {
		if p, ok := s.personas.Get(fallback); ok {
			return p, true
		}
	}
	if list := s.personas.List(); len(list) > 0 {
		return list[0], true
	}
	return persona.Persona{}, false
}

// regenerate asks the model for a short in-character apology.
func (s *Service) regenerate(ctx context.Context, p persona.Persona, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, regenerateTimeout)
	defer cancel()

	res := s.generator.Generate(ctx, ApologyInstruction(p), []chat.Turn{chat.NewTurn(chat.RoleUser, message)})
	if !res.OK() {
		if res.Fault != nil {
			return "", res.Fault
		}
		return "", ai.ErrEmptyCompletion
	}
	return res.Text, nil
}

// BuildTurns assembles the generation input: prior context, the last window
// history entries, and the current message.
func BuildTurns(prior string, history []string, message string, window int) []chat.Turn {
	turns := make([]chat.Turn, 0, window+2)
	if ctxText := strings.TrimSpace(prior); ctxText != "" {
		turns = append(turns, chat.NewTurn(chat.RoleSystem, "User context: "+ctxText))
	}

	start := 0
	if window > 0 && len(history) > window {
		start = len(history) - window
	}
	for _, h := range history[start:] {
		if strings.TrimSpace(h) == "" {
			continue
		}
		turns = append(turns, chat.NewTurn(chat.RoleUser, h))
	}

	return append(turns, chat.NewTurn(chat.RoleUser, message))
}
