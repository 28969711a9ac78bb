package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	addr, err := cfg.Server.Addr()
	require.NoError(t, err)
	assert.Equal(t, ":8000", addr)

	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Nil(t, cfg.AI.Temperature)

	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.Equal(t, "localhost", cfg.Session.Store().Host)
	assert.Equal(t, 6379, cfg.Session.Store().Port)

	assert.Equal(t, 300, cfg.Evolution.Pacer().MaxLength)
	assert.Equal(t, 1500*time.Millisecond, cfg.Evolution.Pacer().Delay)
	assert.False(t, cfg.Evolution.Gateway().Complete())

	assert.True(t, cfg.Webhook.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Debounce)
	assert.True(t, cfg.Webhook.LeadLookup)
	assert.Empty(t, cfg.Webhook.APIKey)

	level, err := cfg.Log.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadWebhookOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"WEBHOOK_DEBOUNCE":    "3s",
		"WEBHOOK_API_KEY":     "hook",
		"WEBHOOK_LEAD_LOOKUP": "false",
		"WEBHOOK_ENABLED":     "false",
	})
	require.NoError(t, err)

	assert.False(t, cfg.Webhook.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Webhook.Debounce)
	assert.Equal(t, "hook", cfg.Webhook.APIKey)
	assert.False(t, cfg.Webhook.LeadLookup)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"PORT":                     "127.0.0.1:9000",
		"ARK_API_KEY":              "key",
		"Model":                    "doubao",
		"ARK_TEMPERATURE":          "0.7",
		"ARK_MAX_TOKENS":           "512",
		"REDIS_URL":                "redis://cache:6379/2",
		"CONTEXT_TTL":              "30m",
		"EVOLUTION_API_BASE_URL":   "https://evo.example.com",
		"EVOLUTION_API_KEY":        "evo",
		"EVOLUTION_INSTANCE":       "aleen",
		"WHATSAPP_CHUNK_DELAY":     "2s",
		"NEXT_PUBLIC_SUPABASE_URL": "https://project.supabase.co",
		"SUPABASE_ANON_KEY":        "anon",
		"LOG_LEVEL":                "debug",
	})
	require.NoError(t, err)

	addr, _ := cfg.Server.Addr()
	assert.Equal(t, "127.0.0.1:9000", addr)

	assert.True(t, cfg.AI.Enabled())
	require.NotNil(t, cfg.AI.Temperature)
	assert.InDelta(t, 0.7, *cfg.AI.Temperature, 1e-9)
	require.NotNil(t, cfg.AI.MaxTokens)
	assert.Equal(t, 512, *cfg.AI.MaxTokens)

	assert.Equal(t, "redis://cache:6379/2", cfg.Session.Store().URL)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)

	assert.True(t, cfg.Evolution.Gateway().Complete())
	assert.Equal(t, 2*time.Second, cfg.Evolution.Pacer().Delay)

	url, key, ok := cfg.Personas.Supabase()
	assert.True(t, ok)
	assert.Equal(t, "https://project.supabase.co", url)
	assert.Equal(t, "anon", key)

	level, _ := cfg.Log.Level()
	assert.Equal(t, slog.LevelDebug, level)
}

func TestSupabasePrefersServerSideNames(t *testing.T) {
	c := PersonaConfig{
		SupabaseURL: "https://a", PublicSupabaseURL: "https://b",
		ServiceRoleKey: "service", AnonKey: "anon",
	}
	url, key, ok := c.Supabase()
	assert.True(t, ok)
	assert.Equal(t, "https://a", url)
	assert.Equal(t, "service", key)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := LoadFrom(map[string]string{"PORT": "80 80"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"LOG_LEVEL": "loud"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"REDIS_PORT": "six"})
	assert.Error(t, err)
}
