package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// settledTTL bounds the fast-path marker. The embedded receipt in the
// task thread remains the durable idempotency record; the marker only
// short-circuits redelivered webhooks, so a bounded lifetime is fine.
const settledTTL = 30 * 24 * time.Hour

// SettledMarker is the Redis-backed fast path for the idempotency check.
// When Redis is unreachable the marker degrades to always-miss and the
// pipeline falls through to scanning the thread for a receipt.
type SettledMarker struct {
	client  *redis.Client
	enabled bool
}

// NewSettledMarker connects to Redis at addr. An empty addr or a failed
// ping yields a disabled marker rather than an error.
func NewSettledMarker(addr string) *SettledMarker {
	if addr == "" {
		slog.Warn("Redis not configured, settled-task fast path disabled")
		return &SettledMarker{enabled: false}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed, settled-task fast path disabled", "error", err)
		return &SettledMarker{enabled: false}
	}

	slog.Info("Redis connected", "addr", addr)
	return &SettledMarker{client: client, enabled: true}
}

func settledKey(repo string, taskNumber int) string {
	return fmt.Sprintf("settled:%s:%d", repo, taskNumber)
}

// IsSettled reports whether a settlement marker exists for the task.
// Errors degrade to a miss.
func (m *SettledMarker) IsSettled(ctx context.Context, repo string, taskNumber int) bool {
	if !m.enabled {
		return false
	}

	n, err := m.client.Exists(ctx, settledKey(repo, taskNumber)).Result()
	if err != nil {
		slog.Warn("Settled-marker lookup failed", "error", err)
		return false
	}
	return n > 0
}

// MarkSettled records that the task has been settled. Failures are
// logged and swallowed since the embedded receipt is authoritative.
func (m *SettledMarker) MarkSettled(ctx context.Context, repo string, taskNumber int, permitIDs []string) {
	if !m.enabled {
		return
	}

	value := fmt.Sprintf("%d permits", len(permitIDs))
	if err := m.client.Set(ctx, settledKey(repo, taskNumber), value, settledTTL).Err(); err != nil {
		slog.Warn("Settled-marker write failed", "error", err)
	}
}

// Close releases the Redis connection.
func (m *SettledMarker) Close() error {
	if !m.enabled {
		return nil
	}
	return m.client.Close()
}
