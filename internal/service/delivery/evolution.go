package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var ErrGatewayNotConfigured = errors.New("evolution api configuration incomplete")

// EvolutionConfig locates an Evolution API instance.
type EvolutionConfig struct {
	BaseURL  string
	APIKey   string
	Instance string
	Timeout  time.Duration
}

// Complete reports whether every field needed to send is present.
func (c EvolutionConfig) Complete() bool {
	return c.BaseURL != "" && c.APIKey != "" && c.Instance != ""
}

// EvolutionGateway posts text messages to the Evolution WhatsApp API.
type EvolutionGateway struct {
	cfg    EvolutionConfig
	client *http.Client
	logger *slog.Logger
}

// NewEvolutionGateway builds a gateway. Incomplete configuration is logged
// and every send then fails with ErrGatewayNotConfigured.
func NewEvolutionGateway(cfg EvolutionConfig, logger *slog.Logger) *EvolutionGateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	logger = logger.With("component", "evolution")
	if !cfg.Complete() {
		logger.Warn("evolution api configuration incomplete",
			"has_base_url", cfg.BaseURL != "",
			"has_api_key", cfg.APIKey != "",
			"has_instance", cfg.Instance != "")
	}
	return &EvolutionGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// SendText posts one message and returns the response status.
func (g *EvolutionGateway) SendText(ctx context.Context, msg OutboundText) (int, error) {
	if !g.cfg.Complete() {
		return 0, ErrGatewayNotConfigured
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", g.cfg.BaseURL, g.cfg.Instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send text: %w", err)
	}
	defer resp.Body.Close()

	if !Accepted(resp.StatusCode) {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.logger.Error("evolution api returned non-success status",
			"status", resp.StatusCode,
			"number", msg.Number,
			"body", strings.TrimSpace(string(detail)))
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, nil
}

// HealthCheck asks the instance connect endpoint whether the session is up.
func (g *EvolutionGateway) HealthCheck(ctx context.Context) bool {
	if !g.cfg.Complete() {
		return false
	}

	url := fmt.Sprintf("%s/instance/connect/%s", g.cfg.BaseURL, g.cfg.Instance)
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("apikey", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("evolution api health check failed", "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
