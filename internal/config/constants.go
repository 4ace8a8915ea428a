package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 5 * time.Minute

// Presence classification windows. A participant whose last heartbeat is
// within OnlineWindow is online, within AwayWindow away, otherwise offline.
const (
	PresenceOnlineWindow = 30 * time.Second
	PresenceAwayWindow   = 60 * time.Second
)

// Presence rows older than this are deleted by the cleanup job.
const PresenceStaleAfter = 24 * time.Hour

// Recommended client heartbeat interval, surfaced to clients on join.
const HeartbeatInterval = 15 * time.Second

// Minimum members before a group session may start.
const MinGroupParticipants = 2

// Default rate limiting
const DefaultRateLimitPerMin = 60
