package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/havenmind/coach-server-go/internal/audit"
	"github.com/havenmind/coach-server-go/internal/config"
	"github.com/havenmind/coach-server-go/internal/database"
	apperrors "github.com/havenmind/coach-server-go/internal/errors"
	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/repository"
	"github.com/havenmind/coach-server-go/internal/sse"
)

type JoinResult struct {
	Membership *model.Membership `json:"membership"`
	// HeartbeatInterval tells the client how often to call the presence
	// endpoint while the session view is open.
	HeartbeatInterval time.Duration `json:"heartbeatIntervalMs"`
}

type MembershipService struct {
	db          database.TxRunner
	memberRepo  repository.MembershipRepository
	sessionRepo repository.SessionRepository
	inviteRepo  repository.InviteRepository
	invites     *InviteService
	broker      EventPublisher
	defaultCap  int
}

func NewMembershipService(
	db database.TxRunner,
	memberRepo repository.MembershipRepository,
	sessionRepo repository.SessionRepository,
	inviteRepo repository.InviteRepository,
	invites *InviteService,
	broker EventPublisher,
	defaultCap int,
) *MembershipService {
	return &MembershipService{
		db:          db,
		memberRepo:  memberRepo,
		sessionRepo: sessionRepo,
		inviteRepo:  inviteRepo,
		invites:     invites,
		broker:      broker,
		defaultCap:  defaultCap,
	}
}

// JoinByCode admits an external participant holding an invite code. Invite
// validation errors (invalid / revoked / expired) propagate unchanged.
func (s *MembershipService) JoinByCode(ctx context.Context, code, userID string) (*JoinResult, error) {
	invite, err := s.invites.ResolveActive(ctx, code)
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

	return s.admit(ctx, session, userID, invite.MaxParticipants)
}

// JoinBySession handles owner self-admission and member re-entry by direct
// session id. A non-owner joining without a code still needs a live invite
// for the session.
func (s *MembershipService) JoinBySession(ctx context.Context, sessionID, userID string) (*JoinResult, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	capacity := s.defaultCap
	if userID != session.OwnerID {
		existing, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, userID)
		if err != nil {
			return nil, fmt.Errorf("find membership: %w", err)
		}
		if existing == nil {
			invite, err := s.inviteRepo.FindActiveBySession(ctx, sessionID)
			if err != nil {
				return nil, fmt.Errorf("find active invite: %w", err)
			}
			if invite == nil || invite.IsExpired(time.Now()) {
				return nil, apperrors.Forbidden("No valid invite for this session")
			}
			capacity = invite.MaxParticipants
		}
	}

	return s.admit(ctx, session, userID, capacity)
}

// admit performs the idempotent check-capacity-insert sequence inside a
// serializable transaction so two simultaneous joiners cannot both pass the
// capacity check.
func (s *MembershipService) admit(ctx context.Context, session *model.Session, userID string, capacity int) (*JoinResult, error) {
	var membership *model.Membership
	created := false

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.memberRepo.WithTx(tx)

		existing, err := repo.FindBySessionAndUser(ctx, session.ID, userID)
		if err != nil {
			return fmt.Errorf("find membership: %w", err)
		}
		if existing != nil {
			membership = existing
			return nil
		}

		// New participants are admitted only while the group is assembling.
		// Existing members re-enter through the branch above regardless of
		// status.
		if session.IsGroup() && userID != session.OwnerID && session.Status != model.SessionStatusWaiting {
			return apperrors.InvalidState("This session has already started")
		}

		if session.IsGroup() {
			count, err := repo.CountBySession(ctx, session.ID)
			if err != nil {
				return fmt.Errorf("count members: %w", err)
			}
			if count >= capacity {
				return apperrors.SessionFull()
			}
		}

		role := model.MemberRoleParticipant
		if userID == session.OwnerID {
			role = model.MemberRoleOwner
		}

		membership, err = repo.Create(ctx, model.CreateMembershipParams{
			SessionID: session.ID,
			UserID:    userID,
			Role:      role,
		})
		if err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		log.Info().
			Str("sessionId", session.ID).
			Str("userId", userID).
			Str("role", string(membership.Role)).
			Msg("participant joined")

		audit.Log(ctx, audit.Event{
			Type:      audit.EventMemberJoin,
			UserID:    userID,
			SessionID: session.ID,
			Details:   map[string]interface{}{"role": string(membership.Role)},
		})

		if err := s.broker.PublishJSON(ctx, session.ID, sse.EventParticipantJoined, membership); err != nil {
			log.Warn().Err(err).Str("sessionId", session.ID).Msg("failed to publish join event")
		}
	}

	return &JoinResult{
		Membership:        membership,
		HeartbeatInterval: config.HeartbeatInterval,
	}, nil
}

// RemoveMember deletes a participant's membership. Owner-only; the owner row
// itself cannot be removed.
func (s *MembershipService) RemoveMember(ctx context.Context, sessionID, ownerID, targetUserID string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}
	if session.OwnerID != ownerID {
		return apperrors.Forbidden("Only the session owner can remove members")
	}
	if targetUserID == session.OwnerID {
		return apperrors.InvalidState("The session owner cannot be removed")
	}

	member, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, targetUserID)
	if err != nil {
		return fmt.Errorf("find membership: %w", err)
	}
	if member == nil {
		return apperrors.NotFound("Membership")
	}

	if err := s.memberRepo.Delete(ctx, sessionID, targetUserID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventMemberRemove,
		UserID:    ownerID,
		SessionID: sessionID,
		Details:   map[string]interface{}{"removedUserId": targetUserID},
	})

	if err := s.broker.PublishJSON(ctx, sessionID, sse.EventMemberRemoved, map[string]string{"userId": targetUserID}); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish removal event")
	}

	return nil
}

// ListMembers returns the session roster. Any member may read it; the read
// crosses user boundaries so it is audited.
func (s *MembershipService) ListMembers(ctx context.Context, sessionID, requesterID string) ([]model.Membership, error) {
	requester, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if requester == nil {
		return nil, apperrors.Forbidden("Not a member of this session")
	}

	members, err := s.memberRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventRosterRead,
		UserID:    requesterID,
		SessionID: sessionID,
		Details:   map[string]interface{}{"members": len(members)},
	})

	return members, nil
}
