// Package session keeps short-lived per-user conversation context.
package session

import (
	"context"
	"time"
)

const (
	DefaultTTL = time.Hour
	keyPrefix  = "user_context:"
)

// Store is an expiring per-user context blob. Get reports absence for both a
// missing key and an unreachable backend.
type Store interface {
	Name() string
	Get(ctx context.Context, userID string) (string, bool)
	Put(ctx context.Context, userID, text string, ttl time.Duration) error
}

// Key returns the storage key for a user.
func Key(userID string) string {
	return keyPrefix + userID
}

// AppendExchange appends one user/agent exchange to prior context.
func AppendExchange(prior, message, reply string) string {
	return prior + "\nUser: " + message + "\nAgent: " + reply
}

// NoopStore remembers nothing. It stands in when no backend is reachable.
type NoopStore struct{}

func (NoopStore) Name() string { return "noop" }

func (NoopStore) Get(context.Context, string) (string, bool) { return "", false }

func (NoopStore) Put(context.Context, string, string, time.Duration) error { return nil }
