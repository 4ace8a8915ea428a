package service

import (
	"context"
	"fmt"
	"time"

	"github.com/havenmind/coach-server-go/internal/audit"
	apperrors "github.com/havenmind/coach-server-go/internal/errors"
	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/repository"
)

type ParticipantPresence struct {
	UserID        string               `json:"userId"`
	Role          model.MemberRole     `json:"role"`
	Ready         bool                 `json:"ready"`
	Status        model.PresenceStatus `json:"status"`
	LastHeartbeat *time.Time           `json:"lastHeartbeatAt,omitempty"`
}

type PresenceList struct {
	Participants []ParticipantPresence `json:"participants"`
	AllOnline    bool                  `json:"allOnline"`
	OnlineCount  int                   `json:"onlineCount"`
	TotalCount   int                   `json:"totalCount"`
}

// PresenceService records liveness via heartbeats and classifies it on read.
// There is no sweeper; classification is recomputed against the clock every
// time, so the tracker is stateless beyond the upsert table.
type PresenceService struct {
	presenceRepo repository.PresenceRepository
	memberRepo   repository.MembershipRepository
}

func NewPresenceService(
	presenceRepo repository.PresenceRepository,
	memberRepo repository.MembershipRepository,
) *PresenceService {
	return &PresenceService{
		presenceRepo: presenceRepo,
		memberRepo:   memberRepo,
	}
}

// Heartbeat records that the user's session view is open right now.
func (s *PresenceService) Heartbeat(ctx context.Context, sessionID, userID string) error {
	member, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("find membership: %w", err)
	}
	if member == nil {
		return apperrors.Forbidden("Not a member of this session")
	}

	if err := s.presenceRepo.Upsert(ctx, sessionID, userID, time.Now()); err != nil {
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

// List returns per-participant presence plus the aggregate the lifecycle
// controller's gates read. Requester must be a member; the cross-user read is
// audited.
func (s *PresenceService) List(ctx context.Context, sessionID, requesterID string) (*PresenceList, error) {
	requester, err := s.memberRepo.FindBySessionAndUser(ctx, sessionID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if requester == nil {
		return nil, apperrors.Forbidden("Not a member of this session")
	}

	list, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.Event{
		Type:      audit.EventRosterRead,
		UserID:    requesterID,
		SessionID: sessionID,
		Details:   map[string]interface{}{"participants": list.TotalCount},
	})

	return list, nil
}

// AllOnline reports whether every current member classifies online. This is
// the internal read used by the message gate; it is re-evaluated per call,
// never cached.
func (s *PresenceService) AllOnline(ctx context.Context, sessionID string) (bool, error) {
	list, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return list.AllOnline, nil
}

func (s *PresenceService) snapshot(ctx context.Context, sessionID string) (*PresenceList, error) {
	members, err := s.memberRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	records, err := s.presenceRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}

	byUser := make(map[string]model.PresenceRecord, len(records))
	for _, r := range records {
		byUser[r.UserID] = r
	}

	now := time.Now()
	list := &PresenceList{
		Participants: make([]ParticipantPresence, 0, len(members)),
		TotalCount:   len(members),
	}

	for _, m := range members {
		p := ParticipantPresence{
			UserID: m.UserID,
			Role:   m.Role,
			Ready:  m.Ready,
			Status: model.PresenceOffline,
		}
		if record, ok := byUser[m.UserID]; ok {
			p.Status = record.Status(now)
			hb := record.LastHeartbeatAt
			p.LastHeartbeat = &hb
		}
		if p.Status == model.PresenceOnline {
			list.OnlineCount++
		}
		list.Participants = append(list.Participants, p)
	}

	list.AllOnline = list.TotalCount > 0 && list.OnlineCount == list.TotalCount
	return list, nil
}
