package model

import (
	"time"
)

type Session struct {
	ID             string        `db:"id" json:"id"`
	OwnerID        string        `db:"owner_id" json:"ownerId"`
	Title          string        `db:"title" json:"title"`
	Kind           SessionKind   `db:"kind" json:"kind"`
	Status         SessionStatus `db:"status" json:"status"`
	Locked         bool          `db:"locked" json:"locked"`
	LockReason     *string       `db:"lock_reason" json:"lockReason,omitempty"`
	LockedBy       *string       `db:"locked_by" json:"lockedBy,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	LastActivityAt time.Time     `db:"last_activity_at" json:"lastActivityAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

type CreateSessionParams struct {
	OwnerID string
	Title   string
	Kind    SessionKind
	Status  SessionStatus
}

// IsGroup reports whether the session coordinates multiple participants.
func (s *Session) IsGroup() bool {
	return s.Kind == SessionKindGroup
}
