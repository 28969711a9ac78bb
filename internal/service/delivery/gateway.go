package delivery

import (
	"context"
	"net/http"
	"time"
)

// Options mirrors the pacing hints the messaging gateway accepts per send.
type Options struct {
	Delay       int    `json:"delay"`
	Presence    string `json:"presence"`
	LinkPreview bool   `json:"linkPreview"`
}

// OutboundText is one chunk addressed to a numeric recipient.
type OutboundText struct {
	Number  string  `json:"number"`
	Text    string  `json:"text"`
	Options Options `json:"options"`
}

// Gateway sends a single chunk and reports the HTTP-style status it got back.
// A non-nil error means the send never produced a status.
type Gateway interface {
	SendText(ctx context.Context, msg OutboundText) (int, error)
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, msg OutboundText) (int, error)

func (f GatewayFunc) SendText(ctx context.Context, msg OutboundText) (int, error) {
	return f(ctx, msg)
}

// Accepted reports whether status counts as a successful send.
func Accepted(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated
}

func delayMillis(d time.Duration) int {
	return int(d / time.Millisecond)
}
