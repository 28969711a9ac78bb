package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config selects the context backend ("redis", "memory" or "none") and
// locates the Redis server. URL wins over the discrete fields.
type Config struct {
	Backend     string
	URL         string
	Host        string
	Port        int
	Password    string
	DB          int
	PingTimeout time.Duration
}

// Options converts the configuration into go-redis options.
func (c Config) Options() (*redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}

	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: c.Password,
		DB:       c.DB,
	}, nil
}

// RedisStore keeps context under user_context:{id} with SET ... EX ttl, so
// every write restarts the expiry window.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger.With("component", "session")}
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Get(ctx context.Context, userID string) (string, bool) {
	val, err := s.client.Get(ctx, Key(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("context read failed", "user_id", userID, "error", err)
		}
		return "", false
	}
	return val, true
}

func (s *RedisStore) Put(ctx context.Context, userID, text string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := s.client.Set(ctx, Key(userID), text, ttl).Err(); err != nil {
		s.logger.Warn("context write failed", "user_id", userID, "error", err)
		return fmt.Errorf("store context: %w", err)
	}
	return nil
}

// Client exposes the connection so other Redis-backed components can share it.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Open builds the configured store. For Redis (the default backend) the
// server is checked with PING; when it cannot be reached the NoopStore is
// returned so callers keep working without memory.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")

	switch cfg.Backend {
	case "memory":
		logger.Info("using in-process context store")
		return NewMemoryStore()
	case "none":
		logger.Info("context memory disabled")
		return NoopStore{}
	}

	opts, err := cfg.Options()
	if err != nil {
		logger.Warn("invalid redis configuration, running without context memory", "error", err)
		return NoopStore{}
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := redis.NewClient(opts)
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		logger.Warn("redis unreachable, running without context memory", "addr", opts.Addr, "error", err)
		return NoopStore{}
	}

	logger.Info("redis connected", "addr", opts.Addr, "db", opts.DB)
	return NewRedisStore(client, logger)
}
