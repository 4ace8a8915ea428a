package handler

import (
	"net/http"
	"time"

	"github.com/havenmind/coach-server-go/internal/httputil"
	"github.com/havenmind/coach-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func formatSession(s *model.Session) map[string]any {
	return map[string]any{
		"id":             s.ID,
		"ownerId":        s.OwnerID,
		"title":          s.Title,
		"kind":           s.Kind,
		"status":         s.Status,
		"locked":         s.Locked,
		"createdAt":      s.CreatedAt.Format(time.RFC3339),
		"lastActivityAt": s.LastActivityAt.Format(time.RFC3339),
	}
}
