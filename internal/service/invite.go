package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/havenmind/coach-server-go/internal/audit"
	apperrors "github.com/havenmind/coach-server-go/internal/errors"
	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/repository"
	"github.com/havenmind/coach-server-go/internal/util"
)

// Invite codes avoid ambiguous characters (0/O, 1/I).
const (
	inviteCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeLength = 8
)

type CreateInviteResult struct {
	Invite   *model.Invite `json:"invite"`
	ShareURL string        `json:"shareUrl"`
}

// InviteStatus is what an invite-holder sees before joining. Validation is
// deliberately available without authentication so a recipient can preview
// the session; the IP rate limiter guards the route.
type InviteStatus struct {
	SessionID           string              `json:"sessionId"`
	Title               string              `json:"title"`
	Kind                model.SessionKind   `json:"kind"`
	Status              model.SessionStatus `json:"status"`
	ExpiresAt           time.Time           `json:"expiresAt"`
	MaxParticipants     int                 `json:"maxParticipants"`
	CurrentParticipants int                 `json:"currentParticipants"`
	CanJoin             bool                `json:"canJoin"`
}

type InviteService struct {
	inviteRepo      repository.InviteRepository
	sessionRepo     repository.SessionRepository
	memberRepo      repository.MembershipRepository
	shareBaseURL    string
	ttl             time.Duration
	defaultCapacity int
}

func NewInviteService(
	inviteRepo repository.InviteRepository,
	sessionRepo repository.SessionRepository,
	memberRepo repository.MembershipRepository,
	shareBaseURL string,
	ttl time.Duration,
	defaultCapacity int,
) *InviteService {
	return &InviteService{
		inviteRepo:      inviteRepo,
		sessionRepo:     sessionRepo,
		memberRepo:      memberRepo,
		shareBaseURL:    shareBaseURL,
		ttl:             ttl,
		defaultCapacity: defaultCapacity,
	}
}

// Create issues an invite for the session, or returns the active unexpired
// one unchanged. Session.OwnerID is the single source of truth for ownership.
func (s *InviteService) Create(ctx context.Context, sessionID, requesterID string, maxParticipants int) (*CreateInviteResult, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if session.OwnerID != requesterID {
		return nil, apperrors.Forbidden("Only the session owner can create invites")
	}

	existing, err := s.inviteRepo.FindActiveBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find active invite: %w", err)
	}
	if existing != nil && !existing.IsExpired(time.Now()) {
		return &CreateInviteResult{Invite: existing, ShareURL: s.shareURL(existing.Code)}, nil
	}

	if maxParticipants <= 0 {
		maxParticipants = s.defaultCapacity
	}

	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	invite, err := s.inviteRepo.Create(ctx, model.CreateInviteParams{
		Code:            code,
		SessionID:       sessionID,
		CreatedBy:       requesterID,
		MaxParticipants: maxParticipants,
		ExpiresAt:       time.Now().Add(s.ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("create invite: %w", err)
	}

	log.Info().
		Str("code", util.MaskCode(code)).
		Str("sessionId", sessionID).
		Time("expiresAt", invite.ExpiresAt).
		Int("maxParticipants", maxParticipants).
		Msg("invite created")

	audit.Log(ctx, audit.Event{
		Type:      audit.EventInviteCreate,
		UserID:    requesterID,
		SessionID: sessionID,
		Details:   map[string]interface{}{"maxParticipants": maxParticipants},
	})

	return &CreateInviteResult{Invite: invite, ShareURL: s.shareURL(invite.Code)}, nil
}

// Validate resolves a code to session details. Revoked and expired codes fail
// with distinct kinds so the caller can show "get a new invite" rather than a
// generic failure.
func (s *InviteService) Validate(ctx context.Context, code string) (*InviteStatus, error) {
	invite, err := s.ResolveActive(ctx, code)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindByID(ctx, invite.SessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	count, err := s.memberRepo.CountBySession(ctx, invite.SessionID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}

	return &InviteStatus{
		SessionID:           session.ID,
		Title:               session.Title,
		Kind:                session.Kind,
		Status:              session.Status,
		ExpiresAt:           invite.ExpiresAt,
		MaxParticipants:     invite.MaxParticipants,
		CurrentParticipants: count,
		CanJoin:             count < invite.MaxParticipants && session.Status == model.SessionStatusWaiting,
	}, nil
}

// ResolveActive returns the invite behind a code if it is active and
// unexpired, otherwise a distinct invalid / revoked / expired rejection.
func (s *InviteService) ResolveActive(ctx context.Context, code string) (*model.Invite, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, apperrors.MissingRequired("code")
	}

	invite, err := s.inviteRepo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("find invite: %w", err)
	}
	if invite == nil {
		log.Warn().Str("code", util.MaskCode(normalized)).Msg("unknown invite code")
		return nil, apperrors.InviteInvalid()
	}
	if !invite.Active {
		return nil, apperrors.InviteRevoked()
	}
	if invite.IsExpired(time.Now()) {
		return nil, apperrors.InviteExpired()
	}
	return invite, nil
}

// Revoke deactivates every active invite for the session. Revoking with no
// active invite is a no-op success.
func (s *InviteService) Revoke(ctx context.Context, sessionID, requesterID string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}
	if session.OwnerID != requesterID {
		return apperrors.Forbidden("Only the session owner can revoke invites")
	}

	revoked, err := s.inviteRepo.RevokeAllForSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("revoke invites: %w", err)
	}

	if revoked > 0 {
		log.Info().
			Str("sessionId", sessionID).
			Int64("revoked", revoked).
			Msg("invites revoked")

		audit.Log(ctx, audit.Event{
			Type:      audit.EventInviteRevoke,
			UserID:    requesterID,
			SessionID: sessionID,
			Details:   map[string]interface{}{"revoked": revoked},
		})
	}

	return nil
}

func (s *InviteService) shareURL(code string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(s.shareBaseURL, "/"), code)
}

func (s *InviteService) generateUniqueCode(ctx context.Context) (string, error) {
	for attempts := 0; attempts < 10; attempts++ {
		code := generateInviteCode()
		existing, err := s.inviteRepo.FindByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code collision: %w", err)
		}
		if existing == nil {
			return code, nil
		}
	}
	return "", apperrors.Internal("Could not generate a unique invite code")
}

func generateInviteCode() string {
	chars := []byte(inviteCodeChars)
	code := make([]byte, inviteCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		code[i] = chars[n.Int64()]
	}
	return string(code)
}
