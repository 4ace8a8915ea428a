package model

import (
	"time"
)

type Message struct {
	ID        string      `db:"id" json:"id"`
	SessionID string      `db:"session_id" json:"sessionId"`
	AuthorID  *string     `db:"author_id" json:"authorId,omitempty"`
	Role      MessageRole `db:"role" json:"role"`
	Content   string      `db:"content" json:"content"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

type CreateMessageParams struct {
	SessionID string
	AuthorID  *string
	Role      MessageRole
	Content   string
}
