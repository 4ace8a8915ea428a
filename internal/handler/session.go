package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/havenmind/coach-server-go/internal/errors"
	"github.com/havenmind/coach-server-go/internal/middleware"
	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/service"
)

type SessionHandler struct {
	lifecycle *service.LifecycleService
	invites   *service.InviteService
	members   *service.MembershipService
	presence  *service.PresenceService
	messages  *service.MessageService
	intake    *service.IntakeService
}

func NewSessionHandler(
	lifecycle *service.LifecycleService,
	invites *service.InviteService,
	members *service.MembershipService,
	presence *service.PresenceService,
	messages *service.MessageService,
	intake *service.IntakeService,
) *SessionHandler {
	return &SessionHandler{
		lifecycle: lifecycle,
		invites:   invites,
		members:   members,
		presence:  presence,
		messages:  messages,
		intake:    intake,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)

		r.Post("/start", h.Start)
		r.Post("/pause", h.Pause)
		r.Post("/end", h.End)
		r.Post("/lock", h.Lock)
		r.Post("/restart", h.Restart)
		r.Post("/ready", h.ToggleReady)
		r.Post("/join", h.Join)

		r.Post("/invites", h.CreateInvite)
		r.Delete("/invites", h.RevokeInvites)

		r.Get("/members", h.ListMembers)
		r.Delete("/members/{userID}", h.RemoveMember)

		r.Get("/presence", h.Presence)
		r.Post("/heartbeat", h.Heartbeat)

		r.Get("/messages", h.ListMessages)
		r.Post("/messages", h.PostMessage)

		r.Get("/intake", h.GetIntake)
		r.Put("/intake", h.SubmitIntake)
	})

	return r
}

// POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		Title string `json:"title"`
		Kind  string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, apperrors.MissingRequired("title"))
		return
	}

	kind := model.SessionKind(req.Kind)
	switch kind {
	case model.SessionKindIndividual, model.SessionKindGroup, model.SessionKindIntroduction:
	case "":
		kind = model.SessionKindIndividual
	default:
		writeError(w, apperrors.InvalidInput("kind", "must be individual, group, or introduction"))
		return
	}

	session, err := h.lifecycle.Create(r.Context(), account.ID, req.Title, kind)
	if err != nil {
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, formatSession(session))
}

// GET /v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	sessions, err := h.lifecycle.ListOwn(r.Context(), account.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list sessions")
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(sessions))
	for i := range sessions {
		out = append(out, formatSession(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// GET /v1/sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.lifecycle.Get(r.Context(), sessionID, account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formatSession(session))
}

// DELETE /v1/sessions/{sessionID}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.lifecycle.Delete(r.Context(), sessionID, account.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// POST /v1/sessions/{sessionID}/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.lifecycle.Start(r.Context(), sessionID, account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, formatSession(session))
}

// POST /v1/sessions/{sessionID}/pause
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.lifecycle.Pause(r.Context(), sessionID, account.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.SessionStatusPaused)})
}

// POST /v1/sessions/{sessionID}/end
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.lifecycle.End(r.Context(), sessionID, account.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.SessionStatusEnded)})
}

// POST /v1/sessions/{sessionID}/lock
func (h *SessionHandler) Lock(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
			return
		}
	}

	if err := h.lifecycle.Lock(r.Context(), sessionID, account.ID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"locked": true})
}

// POST /v1/sessions/{sessionID}/restart
func (h *SessionHandler) Restart(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	opening, err := h.lifecycle.Restart(r.Context(), sessionID, account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"opening": opening})
}

// POST /v1/sessions/{sessionID}/ready
func (h *SessionHandler) ToggleReady(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	ready, err := h.lifecycle.ToggleReady(r.Context(), sessionID, account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": ready})
}

// POST /v1/sessions/{sessionID}/join
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	result, err := h.members.JoinBySession(r.Context(), sessionID, account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"membership":          result.Membership,
		"heartbeatIntervalMs": result.HeartbeatInterval.Milliseconds(),
	})
}

// POST /v1/sessions/{sessionID}/invites
func (h *SessionHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req struct {
		MaxParticipants int `json:"maxParticipants"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
			return
		}
	}

	result, err := h.invites.Create(r.Context(), sessionID, account.ID, req.MaxParticipants)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"code":            result.Invite.Code,
		"shareUrl":        result.ShareURL,
		"expiresAt":       result.Invite.ExpiresAt.Format(time.RFC3339),
		"maxParticipants": result.Invite.MaxParticipants,
	})
}

// DELETE /v1/sessions/{sessionID}/invites
func (h *SessionHandler) RevokeInvites(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.invites.Revoke(r.Context(), sessionID, account.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

// GET /v1/sessions/{sessionID}/members
func (h *SessionHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	members, err := h.members.ListMembers(r.Context(), sessionID, account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// DELETE /v1/sessions/{sessionID}/members/{userID}
func (h *SessionHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	userID := chi.URLParam(r, "userID")

	if err := h.members.RemoveMember(r.Context(), sessionID, account.ID, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

// GET /v1/sessions/{sessionID}/presence
func (h *SessionHandler) Presence(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	list, err := h.presence.List(r.Context(), sessionID, account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// POST /v1/sessions/{sessionID}/heartbeat
func (h *SessionHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.presence.Heartbeat(r.Context(), sessionID, account.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /v1/sessions/{sessionID}/messages
func (h *SessionHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	page := ParsePagination(r)

	messages, total, err := h.messages.List(r.Context(), sessionID, account.ID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"total":    total,
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// POST /v1/sessions/{sessionID}/messages
func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}

	result, err := h.messages.Post(r.Context(), sessionID, account.ID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// GET /v1/sessions/{sessionID}/intake
func (h *SessionHandler) GetIntake(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	form, err := h.intake.Get(r.Context(), sessionID, account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// PUT /v1/sessions/{sessionID}/intake
func (h *SessionHandler) SubmitIntake(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req struct {
		Category string          `json:"category"`
		Details  json.RawMessage `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.InvalidInput("body", "invalid JSON"))
		return
	}
	if req.Category == "" {
		writeError(w, apperrors.MissingRequired("category"))
		return
	}

	form, err := h.intake.Submit(r.Context(), sessionID, account.ID, model.IntakeCategory(req.Category), req.Details)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}
