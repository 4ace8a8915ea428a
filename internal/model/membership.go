package model

import (
	"time"
)

// Membership is the durable record that a user belongs to a session.
// Exactly one row per (session, user); joins are idempotent.
type Membership struct {
	ID        string     `db:"id" json:"id"`
	SessionID string     `db:"session_id" json:"sessionId"`
	UserID    string     `db:"user_id" json:"userId"`
	Role      MemberRole `db:"role" json:"role"`
	Ready     bool       `db:"ready" json:"ready"`
	JoinedAt  time.Time  `db:"joined_at" json:"joinedAt"`
}

type CreateMembershipParams struct {
	SessionID string
	UserID    string
	Role      MemberRole
}
