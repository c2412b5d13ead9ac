package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyLimiter enforces a fixed-window request budget shared by every replica.
type ValkeyLimiter struct {
	client valkey.CoreClient
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewValkeyLimiter allows limit requests per window for each key.
func NewValkeyLimiter(client valkey.CoreClient, prefix string, limit int, window time.Duration) *ValkeyLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	if window <= 0 {
		window = time.Minute
	}
	return &ValkeyLimiter{client: client, prefix: prefix, limit: int64(limit), window: window, now: time.Now}
}

// Allow counts the request and reports whether it fits in the current window.
func (l *ValkeyLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowKey := l.windowKey(key, l.now())
	count, err := l.client.Do(ctx, l.client.B().Incr().Key(windowKey).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", windowKey, err)
	}
	if count == 1 {
		ttl := int64((2 * l.window).Seconds())
		if err := l.client.Do(ctx, l.client.B().Expire().Key(windowKey).Seconds(ttl).Build()).Error(); err != nil {
			return false, fmt.Errorf("expire %s: %w", windowKey, err)
		}
	}
	return count <= l.limit, nil
}

// Close releases the underlying connection pool.
func (l *ValkeyLimiter) Close() {
	l.client.Close()
}

func (l *ValkeyLimiter) windowKey(key string, now time.Time) string {
	bucket := now.UnixNano() / int64(l.window)
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, bucket)
}

// ClientOption parses either a bare host:port or a valkey:// / redis:// URL.
func ClientOption(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
