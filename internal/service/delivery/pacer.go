// Package delivery sends segmented replies to a messaging gateway in order,
// pausing between chunks so they read like a person typing.
package delivery

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aleen-ai/aleen-agents/backend/internal/service/segment"
)

const (
	DefaultMaxLength = 300
	DefaultDelay     = 1500 * time.Millisecond
)

// Config tunes segmentation and pacing.
type Config struct {
	MaxLength int
	Delay     time.Duration
	Presence  string
}

// Result describes a whole delivery. Sent is true only when every chunk was
// accepted.
type Result struct {
	Sent      bool `json:"sent"`
	Chunks    int  `json:"chunks"`
	Attempted int  `json:"attempted"`
	Delivered int  `json:"delivered"`
}

// Pacer segments text and sends the chunks serially through a Gateway.
type Pacer struct {
	gateway Gateway
	cfg     Config
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPacer builds a pacer around gateway.
func NewPacer(gateway Gateway, cfg Config, logger *slog.Logger) *Pacer {
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Presence == "" {
		cfg.Presence = "composing"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pacer{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger.With("component", "pacer"),
		sleep:   sleepContext,
	}
}

// WithGateway returns a copy of the pacer that sends through gateway.
func (p *Pacer) WithGateway(gateway Gateway) *Pacer {
	cp := *p
	cp.gateway = gateway
	return &cp
}

// Preview returns the chunks Deliver would send for text.
func (p *Pacer) Preview(text string) []string {
	return segment.Split(text, p.cfg.MaxLength)
}

// Deliver sends text to recipient. Chunks go out one at a time with the
// configured delay between them; the first rejected or failed chunk aborts
// the rest and the whole delivery is reported as failed.
//
// Cancelling ctx does not cut a delivery short; each send is still bounded
// by the gateway's own timeout.
func (p *Pacer) Deliver(ctx context.Context, recipient, text string) Result {
	number := NormalizeRecipient(recipient)
	if number == "" {
		p.logger.Warn("nothing to deliver", "recipient", recipient, "text_length", len(text))
		return Result{Chunks: len(p.Preview(text))}
	}
	return p.pace(context.WithoutCancel(ctx), number, text)
}

// Stream paces text through a gateway already bound to a single client, such
// as an SSE response or a websocket connection. No recipient is attached.
// Unlike Deliver, cancelling ctx stops the stream between chunks.
func (p *Pacer) Stream(ctx context.Context, text string) Result {
	return p.pace(ctx, "", text)
}

func (p *Pacer) pace(ctx context.Context, number, text string) Result {
	chunks := p.Preview(text)
	result := Result{Chunks: len(chunks)}

	if strings.TrimSpace(text) == "" || len(chunks) == 0 {
		p.logger.Warn("nothing to deliver", "number", number, "text_length", len(text))
		return result
	}

	p.logger.Info("delivering message", "number", number, "chunks", len(chunks))

	for i, chunk := range chunks {
		result.Attempted++
		status, err := p.gateway.SendText(ctx, OutboundText{
			Number: number,
			Text:   chunk,
			Options: Options{
				Delay:    delayMillis(p.cfg.Delay),
				Presence: p.cfg.Presence,
			},
		})
		if err != nil {
			p.logger.Error("chunk send failed", "number", number, "part", i+1, "total", len(chunks), "error", err)
			return result
		}
		if !Accepted(status) {
			p.logger.Error("chunk rejected", "number", number, "part", i+1, "total", len(chunks), "status", status)
			return result
		}

		result.Delivered++
		p.logger.Debug("chunk sent", "number", number, "part", i+1, "total", len(chunks), "chars", len([]rune(chunk)))

		if i < len(chunks)-1 && p.cfg.Delay > 0 {
			if err := p.sleep(ctx, p.cfg.Delay); err != nil {
				p.logger.Warn("delivery interrupted", "number", number, "part", i+1, "error", err)
				return result
			}
		}
	}

	result.Sent = true
	return result
}

// NormalizeRecipient keeps only the digits of an address.
func NormalizeRecipient(recipient string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, recipient)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
