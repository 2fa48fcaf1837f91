package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers event ids that have already been delivered downstream
type IdempotencyStore interface {
	// MarkProcessed records eventID for ttl.
	// It reports true only for the first caller; later calls within ttl get false.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether eventID is currently recorded
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	Close() error
}

// IdempotencyConfig controls deduplication of change facts
type IdempotencyConfig struct {
	// TTL is how long a delivered event id is remembered
	TTL time.Duration
	// Enabled turns deduplication on or off
	Enabled bool
}

// DefaultIdempotencyConfig remembers event ids for a day
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
