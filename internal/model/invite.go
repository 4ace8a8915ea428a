package model

import (
	"time"
)

// Invite is a capability granting entry to one session. Codes are short
// opaque tokens, unique case-insensitively across all invites.
type Invite struct {
	Code            string    `db:"code" json:"code"`
	SessionID       string    `db:"session_id" json:"sessionId"`
	CreatedBy       string    `db:"created_by" json:"createdBy"`
	MaxParticipants int       `db:"max_participants" json:"maxParticipants"`
	Active          bool      `db:"active" json:"active"`
	ExpiresAt       time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

type CreateInviteParams struct {
	Code            string
	SessionID       string
	CreatedBy       string
	MaxParticipants int
	ExpiresAt       time.Time
}

// IsExpired checks the computed, lazily evaluated expiry. Expired rows stay
// in storage until the cleanup job removes them; every read applies this
// check before trusting an invite.
func (i *Invite) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
