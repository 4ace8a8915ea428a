package model

import (
	"time"

	"github.com/havenmind/coach-server-go/internal/config"
)

// PresenceRecord holds the last heartbeat per (session, user). Liveness is a
// pure function of now minus the last heartbeat; nothing sweeps these rows
// for correctness, stale ones simply classify offline.
type PresenceRecord struct {
	SessionID       string    `db:"session_id" json:"sessionId"`
	UserID          string    `db:"user_id" json:"userId"`
	LastHeartbeatAt time.Time `db:"last_heartbeat_at" json:"lastHeartbeatAt"`
}

// Status classifies the record at the given instant.
func (p *PresenceRecord) Status(now time.Time) PresenceStatus {
	return ClassifyPresence(p.LastHeartbeatAt, now)
}

// ClassifyPresence maps heartbeat recency to a presence status. A zero
// lastHeartbeat (never seen) classifies offline.
func ClassifyPresence(lastHeartbeat, now time.Time) PresenceStatus {
	if lastHeartbeat.IsZero() {
		return PresenceOffline
	}
	elapsed := now.Sub(lastHeartbeat)
	switch {
	case elapsed <= config.PresenceOnlineWindow:
		return PresenceOnline
	case elapsed <= config.PresenceAwayWindow:
		return PresenceAway
	default:
		return PresenceOffline
	}
}
