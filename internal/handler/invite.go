package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/havenmind/coach-server-go/internal/middleware"
	"github.com/havenmind/coach-server-go/internal/service"
)

// InviteHandler serves the public invite surface. Validation is reachable
// without authentication so a recipient can preview the session before
// signing in; the route sits behind an IP rate limit.
type InviteHandler struct {
	invites *service.InviteService
	members *service.MembershipService
}

func NewInviteHandler(invites *service.InviteService, members *service.MembershipService) *InviteHandler {
	return &InviteHandler{invites: invites, members: members}
}

func (h *InviteHandler) PublicRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{code}", h.Validate)
	return r
}

// GET /v1/invites/{code}
func (h *InviteHandler) Validate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	status, err := h.invites.Validate(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// POST /v1/invites/{code}/join
func (h *InviteHandler) Join(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}
	code := chi.URLParam(r, "code")

	result, err := h.members.JoinByCode(r.Context(), code, account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"membership":          result.Membership,
		"heartbeatIntervalMs": result.HeartbeatInterval.Milliseconds(),
	})
}
