package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	apperrors "github.com/havenmind/coach-server-go/internal/errors"
	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/repository"
)

const maxMessageLength = 8000

// replyHistoryLimit bounds how much conversation is replayed to the
// text-generation collaborator per reply.
const replyHistoryLimit = 40

type MessageService struct {
	messageRepo repository.MessageRepository
	memberRepo  repository.MembershipRepository
	sessionRepo repository.SessionRepository
	lifecycle   *LifecycleService
	generator   TextGenerator
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	memberRepo repository.MembershipRepository,
	sessionRepo repository.SessionRepository,
	lifecycle *LifecycleService,
	generator TextGenerator,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		memberRepo:  memberRepo,
		sessionRepo: sessionRepo,
		lifecycle:   lifecycle,
		generator:   generator,
	}
}

// PostResult carries the stored user message and, when generation succeeded,
// the coach's reply.
type PostResult struct {
	Message *model.Message `json:"message"`
	Reply   *model.Message `json:"reply,omitempty"`
}

// Post runs the lifecycle gate, stores the user's message, and asks the
// collaborator for a reply. A failed reply is logged and omitted rather than
// failing the post; the user's message is already durable at that point.
func (s *MessageService) Post(ctx context.Context, sessionID, authorID, content string) (*PostResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.MissingRequired("content")
	}
	if len(content) > maxMessageLength {
		return nil, apperrors.InvalidInput("content", fmt.Sprintf("must be at most %d characters", maxMessageLength))
	}

	if err := s.lifecycle.AcceptMessage(ctx, sessionID, authorID); err != nil {
		return nil, err
	}

	msg, err := s.messageRepo.Create(ctx, model.CreateMessageParams{
		SessionID: sessionID,
		AuthorID:  &authorID,
		Role:      model.MessageRoleUser,
		Content:   content,
	})
	if err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	if err := s.sessionRepo.TouchActivity(ctx, sessionID); err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("failed to touch session activity")
	}

	result := &PostResult{Message: msg}

	reply, err := s.generateReply(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("reply generation failed")
		return result, nil
	}
	result.Reply = reply
	return result, nil
}

// List returns the session's messages in chronological order, member-gated.
func (s *MessageService) List(ctx context.Context, sessionID, requesterID string, limit, offset int) ([]model.Message, int, error) {
	member, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, requesterID)
	if err != nil {
		return nil, 0, fmt.Errorf("find membership: %w", err)
	}
	if member == nil {
		return nil, 0, apperrors.Forbidden("Not a member of this session")
	}

	total, err := s.messageRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	messages, err := s.messageRepo.ListBySession(ctx, sessionID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	return messages, total, nil
}

func (s *MessageService) generateReply(ctx context.Context, sessionID string) (*model.Message, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	total, err := s.messageRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	offset := 0
	if total > replyHistoryLimit {
		offset = total - replyHistoryLimit
	}
	history, err := s.messageRepo.ListBySession(ctx, sessionID, replyHistoryLimit, offset)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	content, err := s.generator.Reply(ctx, session, history)
	if err != nil {
		return nil, err
	}

	reply, err := s.messageRepo.Create(ctx, model.CreateMessageParams{
		SessionID: sessionID,
		Role:      model.MessageRoleAssistant,
		Content:   content,
	})
	if err != nil {
		return nil, fmt.Errorf("store reply: %w", err)
	}
	return reply, nil
}
