package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aleen-ai/aleen-agents/backend/internal/config"
	"github.com/aleen-ai/aleen-agents/backend/internal/handler"
	"github.com/aleen-ai/aleen-agents/backend/internal/handler/webhook"
	"github.com/aleen-ai/aleen-agents/backend/internal/model/persona"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/ai"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/conversation"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/delivery"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/inbox"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/lead"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/routing"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/session"
)

type app struct {
	Router http.Handler
	// closed in order: the webhook inbox before the Redis pool it uses
	closers []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func newPersonaSource(cfg config.PersonaConfig) persona.Source {
	if cfg.File != "" {
		return persona.NewFileSource(cfg.File)
	}
	if url, key, ok := cfg.Supabase(); ok {
		return persona.NewSupabaseSource(url, key)
	}
	return nil
}

// newInboxBuffer shares the context store's Redis pool when there is one.
func newInboxBuffer(contexts session.Store) inbox.Buffer {
	if rs, ok := contexts.(*session.RedisStore); ok {
		return inbox.NewRedisBuffer(rs.Client())
	}
	return inbox.NewMemoryBuffer()
}

func newLeadDirectory(cfg *config.Config, logger *slog.Logger) lead.Directory {
	if !cfg.Webhook.LeadLookup {
		return nil
	}
	url, key, ok := cfg.Personas.Supabase()
	if !ok {
		return nil
	}
	return lead.NewSupabaseDirectory(url, key, logger)
}

// buildApp wires every service. Only configuration errors are fatal; an
// unreachable persona source, context store or model degrades instead.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	source := newPersonaSource(cfg.Personas)
	if source == nil {
		logger.Warn("no persona source configured, using built-in personas")
	}
	personas := persona.NewRegistry(source, logger)
	if err := personas.Load(ctx); err != nil && !errors.Is(err, persona.ErrNoSource) {
		logger.Warn("persona load failed", "error", err)
	}
	logger.Info("personas ready", "count", personas.Len())

	contexts := session.Open(ctx, cfg.Session.Store(), logger)
	logger.Info("context store ready", "backend", contexts.Name())

	var generator ai.Generator = ai.Unavailable{}
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			logger.Warn("chat model unavailable", "error", err)
		} else {
			svc, err := ai.NewService(ctx, chatModel, cfg.AI.Timeout, logger)
			if err != nil {
				return nil, fmt.Errorf("build ai service: %w", err)
			}
			generator = svc
			logger.Info("ai service initialized", "model", cfg.AI.Model)
		}
	} else {
		logger.Warn("ark credentials not configured, replies will fail with 503")
	}

	var pacer *delivery.Pacer
	gwCfg := cfg.Evolution.Gateway()
	if gwCfg.Complete() {
		gateway := delivery.NewEvolutionGateway(gwCfg, logger)
		pacer = delivery.NewPacer(gateway, cfg.Evolution.Pacer(), logger)
		go func() {
			healthCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			defer cancel()
			logger.Info("evolution api health", "connected", gateway.HealthCheck(healthCtx))
		}()
	} else {
		logger.Warn("evolution api not configured, whatsapp delivery disabled")
	}

	conv := conversation.New(personas, routing.DefaultClassifier(), contexts, generator, pacer, conversation.Config{
		ContextTTL: cfg.Session.TTL,
	}, logger)

	a := &app{}

	var hook *webhook.Handler
	if cfg.Webhook.Enabled {
		buffer := newInboxBuffer(contexts)
		leads := newLeadDirectory(cfg, logger)
		hook = webhook.New(conv, buffer, leads, webhook.Config{
			Window:           cfg.Webhook.Debounce,
			APIKey:           cfg.Webhook.APIKey,
			UnsupportedReply: cfg.Webhook.UnsupportedReply,
		}, logger)
		a.closers = append(a.closers, hook)
		logger.Info("webhook intake ready", "buffer", buffer.Name(), "debounce", cfg.Webhook.Debounce, "lead_lookup", leads != nil)
	}

	a.Router = handler.NewRouter(handler.Deps{
		Conversation: conv,
		Personas:     personas,
		Pacer:        delivery.NewPacer(nil, cfg.Evolution.Pacer(), logger),
		Webhook:      hook,
		Logger:       logger,
	})

	if c, ok := contexts.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	return a, nil
}

func serve(ctx context.Context, addr string, router http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("aleen backend listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
