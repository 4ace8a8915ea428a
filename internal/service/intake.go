package service

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/havenmind/coach-server-go/internal/errors"
	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/repository"
)

type IntakeService struct {
	intakeRepo repository.IntakeRepository
	memberRepo repository.MembershipRepository
}

func NewIntakeService(intakeRepo repository.IntakeRepository, memberRepo repository.MembershipRepository) *IntakeService {
	return &IntakeService{intakeRepo: intakeRepo, memberRepo: memberRepo}
}

// Submit validates the category-specific details and upserts the member's
// intake form for the session. Resubmitting replaces the previous form.
func (s *IntakeService) Submit(ctx context.Context, sessionID, userID string, category model.IntakeCategory, rawDetails json.RawMessage) (*model.IntakeForm, error) {
	member, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if member == nil {
		return nil, apperrors.Forbidden("Not a member of this session")
	}

	details, err := model.ParseIntakeDetails(category, rawDetails)
	if err != nil {
		return nil, apperrors.InvalidInput("details", err.Error())
	}

	form, err := s.intakeRepo.Upsert(ctx, model.UpsertIntakeParams{
		SessionID: sessionID,
		UserID:    userID,
		Category:  category,
		Details:   details,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert intake: %w", err)
	}
	return form, nil
}

// Get returns the caller's own intake form for the session, or NotFound.
func (s *IntakeService) Get(ctx context.Context, sessionID, userID string) (*model.IntakeForm, error) {
	form, err := s.intakeRepo.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("find intake: %w", err)
	}
	if form == nil {
		return nil, apperrors.NotFound("Intake form")
	}
	return form, nil
}
