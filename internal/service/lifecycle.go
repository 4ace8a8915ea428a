package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/havenmind/coach-server-go/internal/audit"
	"github.com/havenmind/coach-server-go/internal/config"
	apperrors "github.com/havenmind/coach-server-go/internal/errors"
	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/repository"
	"github.com/havenmind/coach-server-go/internal/sse"
)

const (
	lockReasonEnded  = "ended by owner"
	lockReasonManual = "locked by owner"
)

// LifecycleService drives sessions through waiting -> active -> (paused) ->
// ended, plus the orthogonal terminal lock, and owns the single gate every
// message passes before reaching storage and text generation.
type LifecycleService struct {
	sessionRepo repository.SessionRepository
	memberRepo  repository.MembershipRepository
	messageRepo repository.MessageRepository
	accountRepo repository.AccountRepository
	intakeRepo  repository.IntakeRepository
	presence    *PresenceService
	generator   TextGenerator
	broker      EventPublisher

	// minReady of 0 means every current member must be ready.
	minReady      int
	freeTierLimit int
}

func NewLifecycleService(
	sessionRepo repository.SessionRepository,
	memberRepo repository.MembershipRepository,
	messageRepo repository.MessageRepository,
	accountRepo repository.AccountRepository,
	intakeRepo repository.IntakeRepository,
	presence *PresenceService,
	generator TextGenerator,
	broker EventPublisher,
	minReady int,
	freeTierLimit int,
) *LifecycleService {
	return &LifecycleService{
		sessionRepo:   sessionRepo,
		memberRepo:    memberRepo,
		messageRepo:   messageRepo,
		accountRepo:   accountRepo,
		intakeRepo:    intakeRepo,
		presence:      presence,
		generator:     generator,
		broker:        broker,
		minReady:      minReady,
		freeTierLimit: freeTierLimit,
	}
}

// Create makes a new session owned by ownerID and records the owner's
// membership. Group sessions start waiting; individual and introduction
// sessions have nothing to coordinate and start active, with a best-effort
// opening message.
func (s *LifecycleService) Create(ctx context.Context, ownerID, title string, kind model.SessionKind) (*model.Session, error) {
	status := model.SessionStatusActive
	if kind == model.SessionKindGroup {
		status = model.SessionStatusWaiting
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		OwnerID: ownerID,
		Title:   title,
		Kind:    kind,
		Status:  status,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if _, err := s.memberRepo.Create(ctx, model.CreateMembershipParams{
		SessionID: session.ID,
		UserID:    ownerID,
		Role:      model.MemberRoleOwner,
	}); err != nil {
		return nil, fmt.Errorf("create owner membership: %w", err)
	}

	if status == model.SessionStatusActive {
		s.storeOpeningMessage(ctx, session)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("ownerId", ownerID).
		Str("kind", string(kind)).
		Msg("session created")

	return session, nil
}

// Get returns a session to one of its members.
func (s *LifecycleService) Get(ctx context.Context, sessionID, requesterID string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	member, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if member == nil {
		return nil, apperrors.Forbidden("Not a member of this session")
	}
	return session, nil
}

// ListOwn returns the sessions the user owns.
func (s *LifecycleService) ListOwn(ctx context.Context, ownerID string) ([]model.Session, error) {
	return s.sessionRepo.FindByOwner(ctx, ownerID)
}

// ToggleReady flips the member's readiness flag and returns the new value.
// Always allowed for members regardless of session status.
func (s *LifecycleService) ToggleReady(ctx context.Context, sessionID, userID string) (bool, error) {
	member, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("find membership: %w", err)
	}
	if member == nil {
		return false, apperrors.Forbidden("Not a member of this session")
	}

	ready := !member.Ready
	if err := s.memberRepo.SetReady(ctx, sessionID, userID, ready); err != nil {
		return false, fmt.Errorf("set ready: %w", err)
	}

	if err := s.broker.PublishJSON(ctx, sessionID, sse.EventReadyChanged, map[string]any{
		"userId": userID,
		"ready":  ready,
	}); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish ready event")
	}

	return ready, nil
}

// Start transitions a waiting (or paused) session to active once the
// readiness gate holds. Starting an already-active session is a no-op.
func (s *LifecycleService) Start(ctx context.Context, sessionID, ownerID string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if session.OwnerID != ownerID {
		return nil, apperrors.Forbidden("Only the session owner can start the session")
	}

	switch session.Status {
	case model.SessionStatusActive:
		return session, nil
	case model.SessionStatusWaiting, model.SessionStatusPaused:
	default:
		return nil, apperrors.InvalidState(fmt.Sprintf("Session cannot start from status %q", session.Status))
	}

	fresh := session.Status == model.SessionStatusWaiting

	if session.IsGroup() && fresh {
		if err := s.checkReadiness(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	changed, err := s.sessionRepo.UpdateStatus(ctx, sessionID, session.Status, model.SessionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if !changed {
		// Concurrent start already won; treat as success.
		current, err := s.sessionRepo.FindByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("find session: %w", err)
		}
		if current == nil || current.Status != model.SessionStatusActive {
			return nil, apperrors.InvalidState("Session state changed, try again")
		}
		return current, nil
	}

	session.Status = model.SessionStatusActive

	if fresh {
		s.storeOpeningMessage(ctx, session)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionStart,
		UserID:    ownerID,
		SessionID: sessionID,
	})

	if err := s.broker.PublishJSON(ctx, sessionID, sse.EventSessionStarted, session); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish start event")
	}

	return session, nil
}

// Pause suspends an active session; members can re-ready and the owner can
// start it again.
func (s *LifecycleService) Pause(ctx context.Context, sessionID, ownerID string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}
	if session.OwnerID != ownerID {
		return apperrors.Forbidden("Only the session owner can pause the session")
	}
	if session.Status == model.SessionStatusPaused {
		return nil
	}

	changed, err := s.sessionRepo.UpdateStatus(ctx, sessionID, model.SessionStatusActive, model.SessionStatusPaused)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if !changed {
		return apperrors.InvalidState(fmt.Sprintf("Session cannot pause from status %q", session.Status))
	}
	return nil
}

// End terminates the session. Ending is modeled as a terminal lock: the
// status becomes ended and the lock flag is set in one update, so no further
// messages are ever accepted.
func (s *LifecycleService) End(ctx context.Context, sessionID, ownerID string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}
	if session.OwnerID != ownerID {
		return apperrors.Forbidden("Only the session owner can end the session")
	}
	if session.Status == model.SessionStatusEnded {
		return nil
	}

	if err := s.sessionRepo.MarkEnded(ctx, sessionID, lockReasonEnded, ownerID); err != nil {
		return fmt.Errorf("mark ended: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionEnd,
		UserID:    ownerID,
		SessionID: sessionID,
	})

	if err := s.broker.PublishJSON(ctx, sessionID, sse.EventSessionEnded, map[string]string{
		"reason": lockReasonEnded,
	}); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish end event")
	}

	return nil
}

// Lock blocks further messages without ending the session. Unlike End it
// leaves the status alone, so it works from any state; the lock itself is
// permanent.
func (s *LifecycleService) Lock(ctx context.Context, sessionID, ownerID, reason string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}
	if session.OwnerID != ownerID {
		return apperrors.Forbidden("Only the session owner can lock the session")
	}
	if session.Locked {
		return nil
	}

	if reason == "" {
		reason = lockReasonManual
	}

	if err := s.sessionRepo.SetLock(ctx, sessionID, reason, ownerID); err != nil {
		return fmt.Errorf("set lock: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionLock,
		UserID:    ownerID,
		SessionID: sessionID,
		Details:   map[string]interface{}{"reason": reason},
	})

	if err := s.broker.PublishJSON(ctx, sessionID, sse.EventSessionLocked, map[string]string{
		"reason": reason,
	}); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish lock event")
	}

	return nil
}

// AcceptMessage is the single authorization gate consulted before a message
// is stored or handed to text generation. A nil return means allow.
func (s *LifecycleService) AcceptMessage(ctx context.Context, sessionID, authorID string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}

	member, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, authorID)
	if err != nil {
		return fmt.Errorf("find membership: %w", err)
	}
	if member == nil {
		return apperrors.Forbidden("Not a member of this session")
	}

	if session.Locked {
		reason := lockReasonEnded
		if session.LockReason != nil {
			reason = *session.LockReason
		}
		return apperrors.InvalidState(fmt.Sprintf("Session is locked: %s", reason))
	}

	switch session.Status {
	case model.SessionStatusWaiting:
		return apperrors.InvalidState("Session has not started")
	case model.SessionStatusPaused:
		return apperrors.InvalidState("Session is paused")
	case model.SessionStatusEnded:
		return apperrors.InvalidState("Session has ended")
	}

	if !session.IsGroup() {
		if err := s.checkFreeTierBudget(ctx, session, authorID); err != nil {
			return err
		}
		return nil
	}

	// Conversation flow pauses while any participant is offline and resumes
	// automatically once all are back; re-evaluated on every attempt.
	allOnline, err := s.presence.AllOnline(ctx, sessionID)
	if err != nil {
		return err
	}
	if !allOnline {
		return apperrors.InvalidState("Waiting for participants")
	}

	return nil
}

// Restart clears the session's stored messages and regenerates the opening,
// keeping invites and memberships intact.
func (s *LifecycleService) Restart(ctx context.Context, sessionID, ownerID string) (*model.Message, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	if session.OwnerID != ownerID {
		return nil, apperrors.Forbidden("Only the session owner can restart the session")
	}

	if _, err := s.messageRepo.DeleteBySession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}

	opening := s.storeOpeningMessage(ctx, session)

	if err := s.sessionRepo.TouchActivity(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to touch session activity")
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionRestart,
		UserID:    ownerID,
		SessionID: sessionID,
	})

	if err := s.broker.PublishJSON(ctx, sessionID, sse.EventSessionRestarted, map[string]string{
		"sessionId": sessionID,
	}); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to publish restart event")
	}

	return opening, nil
}

// Delete removes a session by explicit owner request. An introduction
// session anchors onboarding and cannot be deleted while the owner has other
// sessions.
func (s *LifecycleService) Delete(ctx context.Context, sessionID, ownerID string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return apperrors.NotFound("Session")
	}
	if session.OwnerID != ownerID {
		return apperrors.Forbidden("Only the session owner can delete the session")
	}

	if session.Kind == model.SessionKindIntroduction {
		count, err := s.sessionRepo.CountByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("count sessions: %w", err)
		}
		if count > 1 {
			return apperrors.InvalidState("Introduction session cannot be deleted while other sessions exist")
		}
	}

	if err := s.sessionRepo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionDelete,
		UserID:    ownerID,
		SessionID: sessionID,
	})

	return nil
}

func (s *LifecycleService) checkReadiness(ctx context.Context, sessionID string) error {
	total, err := s.memberRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("count members: %w", err)
	}
	if total < config.MinGroupParticipants {
		return apperrors.InvalidState(fmt.Sprintf("At least %d participants are required to start", config.MinGroupParticipants))
	}

	ready, err := s.memberRepo.CountReadyBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("count ready members: %w", err)
	}

	required := s.minReady
	if required == 0 || required > total {
		required = total
	}
	if ready < required {
		return apperrors.InvalidState(fmt.Sprintf("Waiting for participants to be ready (%d of %d)", ready, required))
	}
	return nil
}

func (s *LifecycleService) checkFreeTierBudget(ctx context.Context, session *model.Session, authorID string) error {
	account, err := s.accountRepo.FindByID(ctx, authorID)
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}
	if account == nil || account.Tier != model.TierFree {
		return nil
	}

	count, err := s.messageRepo.CountUserMessagesBySession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("count messages: %w", err)
	}
	if count >= s.freeTierLimit {
		return apperrors.InvalidState("Free tier message limit reached for this session")
	}
	return nil
}

// storeOpeningMessage asks the collaborator for a personalized opening and
// stores it as an assistant message, falling back to the static string.
// Enrichment never fails the parent operation.
func (s *LifecycleService) storeOpeningMessage(ctx context.Context, session *model.Session) *model.Message {
	intakes, err := s.intakeRepo.ListBySession(ctx, session.ID)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("failed to load intake forms")
		intakes = nil
	}

	content, err := s.generator.Opening(ctx, session, intakes)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("opening generation failed, using fallback")
		content = OpeningFallback
	}

	msg, err := s.messageRepo.Create(ctx, model.CreateMessageParams{
		SessionID: session.ID,
		Role:      model.MessageRoleAssistant,
		Content:   content,
	})
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to store opening message")
		return nil
	}
	return msg
}
