package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/aleen-ai/aleen-agents/backend/internal/service/delivery"
	"github.com/aleen-ai/aleen-agents/backend/internal/service/session"
)

// Config aggregates every setting of the service.
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Session   SessionConfig
	Evolution EvolutionConfig
	Personas  PersonaConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables only.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if _, err := cfg.Server.Addr(); err != nil {
		return nil, err
	}
	if _, err := cfg.Log.Level(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8000"`
}

// Addr accepts "8000", ":8000" or "127.0.0.1:8000".
func (c ServerConfig) Addr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8000"
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

// AIConfig describes the Ark chat model.
type AIConfig struct {
	APIKey      string        `env:"ARK_API_KEY"`
	AccessKey   string        `env:"ARK_ACCESS_KEY"`
	SecretKey   string        `env:"ARK_SECRET_KEY"`
	Model       string        `env:"Model"`
	BaseURL     string        `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string        `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64      `env:"ARK_TEMPERATURE"`
	TopP        *float64      `env:"ARK_TOP_P"`
	MaxTokens   *int          `env:"ARK_MAX_TOKENS"`
	Timeout     time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
}

// Enabled reports whether the model and credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds the Ark chat model.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark model not configured: set Model and ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

// SessionConfig describes the short-term context store.
type SessionConfig struct {
	Backend  string        `env:"SESSION_BACKEND" envDefault:"redis"`
	URL      string        `env:"REDIS_URL"`
	Host     string        `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int           `env:"REDIS_PORT" envDefault:"6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"CONTEXT_TTL" envDefault:"1h"`
}

// Store converts the settings for session.Open.
func (c SessionConfig) Store() session.Config {
	return session.Config{
		Backend:  c.Backend,
		URL:      c.URL,
		Host:     c.Host,
		Port:     c.Port,
		Password: c.Password,
		DB:       c.DB,
	}
}

// EvolutionConfig describes the WhatsApp gateway and pacing.
type EvolutionConfig struct {
	BaseURL    string        `env:"EVOLUTION_API_BASE_URL"`
	APIKey     string        `env:"EVOLUTION_API_KEY"`
	Instance   string        `env:"EVOLUTION_INSTANCE"`
	MaxLength  int           `env:"WHATSAPP_MAX_LENGTH" envDefault:"300"`
	ChunkDelay time.Duration `env:"WHATSAPP_CHUNK_DELAY" envDefault:"1500ms"`
}

// Gateway converts the settings for delivery.NewEvolutionGateway.
func (c EvolutionConfig) Gateway() delivery.EvolutionConfig {
	return delivery.EvolutionConfig{BaseURL: c.BaseURL, APIKey: c.APIKey, Instance: c.Instance}
}

// Pacer converts the settings for delivery.NewPacer.
func (c EvolutionConfig) Pacer() delivery.Config {
	return delivery.Config{MaxLength: c.MaxLength, Delay: c.ChunkDelay}
}

// PersonaConfig describes where personas are loaded from. A file wins over
// Supabase when both are set.
type PersonaConfig struct {
	File              string `env:"PERSONA_FILE"`
	SupabaseURL       string `env:"SUPABASE_URL"`
	PublicSupabaseURL string `env:"NEXT_PUBLIC_SUPABASE_URL"`
	ServiceRoleKey    string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	AnonKey           string `env:"SUPABASE_ANON_KEY"`
}

// Supabase returns the project URL and key, preferring the server-side names.
func (c PersonaConfig) Supabase() (url, key string, ok bool) {
	url = firstNonEmpty(c.SupabaseURL, c.PublicSupabaseURL)
	key = firstNonEmpty(c.ServiceRoleKey, c.AnonKey)
	return url, key, url != "" && key != ""
}

// WebhookConfig describes the Evolution webhook intake.
type WebhookConfig struct {
	Enabled          bool          `env:"WEBHOOK_ENABLED" envDefault:"true"`
	Debounce         time.Duration `env:"WEBHOOK_DEBOUNCE" envDefault:"10s"`
	APIKey           string        `env:"WEBHOOK_API_KEY"`
	UnsupportedReply string        `env:"WEBHOOK_UNSUPPORTED_REPLY"`
	LeadLookup       bool          `env:"WEBHOOK_LEAD_LOOKUP" envDefault:"true"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	LevelName string `env:"LOG_LEVEL" envDefault:"info"`
	Format    string `env:"LOG_FORMAT" envDefault:"text"`
}

// Level parses LevelName.
func (c LogConfig) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LevelName))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL value %q: %w", c.LevelName, err)
	}
	return level, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
