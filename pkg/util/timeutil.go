package util

import "time"

// NowUTC exposes time.Now for deterministic testing.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// OlderThan reports whether ts is at least ttl before now.
func OlderThan(ts, now time.Time, ttl time.Duration) bool {
	return now.Sub(ts) >= ttl
}
