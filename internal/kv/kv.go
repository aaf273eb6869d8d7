// Package kv defines the small key-value contract the gating chain and
// rate limiter depend on, with a Redis-backed implementation for
// production and an in-memory one for standalone mode and tests.
package kv

import (
	"context"
	"time"
)

// Store is the contract gating gates program against. Implementations must
// be safe for concurrent use.
type Store interface {
	// Incr increments the counter at key and returns the post-increment
	// value, setting key to expire after window if this call created it.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)

	// Exists reports whether key is present (used for blocklist/mute
	// membership checks, which are set/cleared elsewhere).
	Exists(ctx context.Context, key string) (bool, error)

	// GetQuietHours returns the configured quiet-hours window for a user,
	// as hour-of-day boundaries in UTC, and whether one is configured.
	GetQuietHours(ctx context.Context, userID string) (startHour, endHour int, ok bool, err error)

	// IsPlanActive reports whether the account's subscription entitles it
	// to active-intent responses.
	IsPlanActive(ctx context.Context, accountID string) (bool, error)

	// IsBotIdentifier reports whether identifier (a sender id on platform)
	// has been registered as one of the gateway's own outbound identities,
	// used by the echo gate to catch messages the gateway sent itself that
	// a platform looped back as inbound.
	IsBotIdentifier(ctx context.Context, platform, identifier string) (bool, error)

	// IsGroupAllowed reports whether (platform, groupID) is present in the
	// group allowlist table.
	IsGroupAllowed(ctx context.Context, platform, groupID string) (bool, error)

	// BotNames returns the configured bot display names the mention gate
	// matches against group message content, with or without a leading "@".
	BotNames(ctx context.Context) ([]string, error)
}
