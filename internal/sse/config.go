package sse

import "time"

// Config configures the SSE publisher (spec's SSEPublisher: auth,
// per-connection throttling, heartbeats, snapshot gap guard).
type Config struct {
	// Token, if non-empty, is required as the X-API-Token header on
	// GET /summary/events and /summary/resync.
	Token string
	// AllowedIPs, if non-empty, restricts connections to these exact
	// client IPs (after RealIP resolution). Empty allows any IP.
	AllowedIPs []string
	// AllowedUAPrefixes, if non-empty, requires User-Agent to start
	// with one of these prefixes. Empty allows any UA.
	AllowedUAPrefixes []string
	// ConnectRatePerIP bounds new connections per IP within ConnectRateWindow.
	ConnectRatePerIP int
	ConnectRateWindow time.Duration
	// MaxConnections is the global concurrent connection cap; excess
	// requests get 429 with Retry-After: 5.
	MaxConnections int
	// EventsPerSec is the per-connection token-bucket rate for
	// non-heartbeat events; burst is 2x this rate.
	EventsPerSec float64
	// MaxEventBytes truncates oversized event payloads, flagging them.
	MaxEventBytes int
	// HeartbeatInterval is the idle-cycle heartbeat cadence.
	HeartbeatInterval time.Duration
	// SnapshotGapMax triggers the snapshot guard when
	// latest_event_id - last_panel_full_id exceeds it.
	SnapshotGapMax uint64
	// ForceFullRetrySeconds cools down repeated forced-full-snapshot
	// triggers for the same reason.
	ForceFullRetrySeconds int
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		ConnectRatePerIP:      5,
		ConnectRateWindow:     10 * time.Second,
		MaxConnections:        50,
		EventsPerSec:          10,
		MaxEventBytes:         65536,
		HeartbeatInterval:     15 * time.Second,
		SnapshotGapMax:        500,
		ForceFullRetrySeconds: 30,
	}
}
