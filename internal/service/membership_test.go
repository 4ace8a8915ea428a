package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/coach-server-go/internal/config"
	apperrors "github.com/havenmind/coach-server-go/internal/errors"
	"github.com/havenmind/coach-server-go/internal/model"
)

func newMembershipServiceForTest(
	memberRepo *mockMembershipRepo,
	sessionRepo *mockSessionRepo,
	inviteRepo *mockInviteRepo,
) *MembershipService {
	invites := newInviteServiceForTest(inviteRepo, sessionRepo, memberRepo)
	return NewMembershipService(fakeTxRunner{}, memberRepo, sessionRepo, inviteRepo, invites, NopPublisher(), 8)
}

func liveInvite(sessionID string, capacity int) *model.Invite {
	return &model.Invite{
		Code:            "GHJK2345",
		SessionID:       sessionID,
		CreatedBy:       "owner-1",
		MaxParticipants: capacity,
		Active:          true,
		ExpiresAt:       time.Now().Add(time.Hour),
	}
}

func TestJoinByCode_AdmitsParticipant(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	session := groupSession("sess-1", "owner-1")
	inviteRepo.On("FindByCode", mock.Anything, "GHJK2345").Return(liveInvite("sess-1", 4), nil)
	sessionRepo.On("FindByID", mock.Anything, "sess-1").Return(session, nil)
	memberRepo.On("FindBySessionAndUser", mock.Anything, "sess-1", "user-2").Return(nil, nil)
	memberRepo.On("CountBySession", mock.Anything, "sess-1").Return(1, nil)
	memberRepo.On("Create", mock.Anything, mock.MatchedBy(func(params model.CreateMembershipParams) bool {
		return params.SessionID == "sess-1" && params.UserID == "user-2" && params.Role == model.MemberRoleParticipant
	})).Return(&model.Membership{
		ID:        "mem-2",
		SessionID: "sess-1",
		UserID:    "user-2",
		Role:      model.MemberRoleParticipant,
	}, nil)

	result, err := svc.JoinByCode(context.Background(), "ghjk2345", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "mem-2", result.Membership.ID)
	assert.Equal(t, config.HeartbeatInterval, result.HeartbeatInterval)
}

func TestJoinByCode_Idempotent(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	session := groupSession("sess-1", "owner-1")
	existing := &model.Membership{
		ID:        "mem-2",
		SessionID: "sess-1",
		UserID:    "user-2",
		Role:      model.MemberRoleParticipant,
	}
	inviteRepo.On("FindByCode", mock.Anything, "GHJK2345").Return(liveInvite("sess-1", 4), nil)
	sessionRepo.On("FindByID", mock.Anything, "sess-1").Return(session, nil)
	memberRepo.On("FindBySessionAndUser", mock.Anything, "sess-1", "user-2").Return(existing, nil)

	result, err := svc.JoinByCode(context.Background(), "GHJK2345", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "mem-2", result.Membership.ID)
	memberRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJoinByCode_RejectsNewMemberAfterStart(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	session := groupSession("sess-1", "owner-1")
	session.Status = model.SessionStatusActive
	inviteRepo.On("FindByCode", mock.Anything, "GHJK2345").Return(liveInvite("sess-1", 4), nil)
	sessionRepo.On("FindByID", mock.Anything, "sess-1").Return(session, nil)
	memberRepo.On("FindBySessionAndUser", mock.Anything, "sess-1", "user-9").Return(nil, nil)

	_, err := svc.JoinByCode(context.Background(), "GHJK2345", "user-9")
	require.Error(t, err, "new participant must not be admitted once the session has started")
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.GetCode(err))
	memberRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJoinByCode_ExistingMemberReentersStartedSession(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	session := groupSession("sess-1", "owner-1")
	session.Status = model.SessionStatusActive
	existing := &model.Membership{
		ID:        "mem-2",
		SessionID: "sess-1",
		UserID:    "user-2",
		Role:      model.MemberRoleParticipant,
	}
	inviteRepo.On("FindByCode", mock.Anything, "GHJK2345").Return(liveInvite("sess-1", 4), nil)
	sessionRepo.On("FindByID", mock.Anything, "sess-1").Return(session, nil)
	memberRepo.On("FindBySessionAndUser", mock.Anything, "sess-1", "user-2").Return(existing, nil)

	result, err := svc.JoinByCode(context.Background(), "GHJK2345", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "mem-2", result.Membership.ID)
}

func TestJoinByCode_CapacityEnforced(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	session := groupSession("sess-1", "owner-1")
	inviteRepo.On("FindByCode", mock.Anything, "GHJK2345").Return(liveInvite("sess-1", 2), nil)
	sessionRepo.On("FindByID", mock.Anything, "sess-1").Return(session, nil)
	memberRepo.On("FindBySessionAndUser", mock.Anything, "sess-1", "user-3").Return(nil, nil)
	memberRepo.On("CountBySession", mock.Anything, "sess-1").Return(2, nil)

	_, err := svc.JoinByCode(context.Background(), "GHJK2345", "user-3")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSessionFull, apperrors.GetCode(err))
	memberRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestJoinByCode_InvitePropagatesRejection(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	revoked := liveInvite("sess-1", 4)
	revoked.Active = false
	inviteRepo.On("FindByCode", mock.Anything, "GHJK2345").Return(revoked, nil)

	_, err := svc.JoinByCode(context.Background(), "GHJK2345", "user-2")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInviteRevoked, apperrors.GetCode(err))
}

func TestJoinBySession_OwnerGetsOwnerRole(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	session := groupSession("sess-1", "owner-1")
	sessionRepo.On("FindByID", mock.Anything, "sess-1").Return(session, nil)
	memberRepo.On("FindBySessionAndUser", mock.Anything, "sess-1", "owner-1").Return(nil, nil)
	memberRepo.On("CountBySession", mock.Anything, "sess-1").Return(0, nil)
	memberRepo.On("Create", mock.Anything, mock.MatchedBy(func(params model.CreateMembershipParams) bool {
		return params.Role == model.MemberRoleOwner
	})).Return(&model.Membership{
		ID:        "mem-1",
		SessionID: "sess-1",
		UserID:    "owner-1",
		Role:      model.MemberRoleOwner,
	}, nil)

	result, err := svc.JoinBySession(context.Background(), "sess-1", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, model.MemberRoleOwner, result.Membership.Role)
}

func TestJoinBySession_StrangerNeedsLiveInvite(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	session := groupSession("sess-1", "owner-1")
	sessionRepo.On("FindByID", mock.Anything, "sess-1").Return(session, nil)
	memberRepo.On("FindBySessionAndUser", mock.Anything, "sess-1", "stranger").Return(nil, nil)
	inviteRepo.On("FindActiveBySession", mock.Anything, "sess-1").Return(nil, nil)

	_, err := svc.JoinBySession(context.Background(), "sess-1", "stranger")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
}

func TestRemoveMember_OwnerRowProtected(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	sessionRepo.On("FindByID", mock.Anything, "sess-1").Return(groupSession("sess-1", "owner-1"), nil)

	err := svc.RemoveMember(context.Background(), "sess-1", "owner-1", "owner-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInvalidState, apperrors.GetCode(err))
	memberRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveMember_OwnerOnly(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	sessionRepo.On("FindByID", mock.Anything, "sess-1").Return(groupSession("sess-1", "owner-1"), nil)

	err := svc.RemoveMember(context.Background(), "sess-1", "user-2", "user-3")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
}

func TestListMembers_RequiresMembership(t *testing.T) {
	memberRepo := new(mockMembershipRepo)
	sessionRepo := new(mockSessionRepo)
	inviteRepo := new(mockInviteRepo)
	svc := newMembershipServiceForTest(memberRepo, sessionRepo, inviteRepo)

	memberRepo.On("FindBySessionAndUser", mock.Anything, "sess-1", "stranger").Return(nil, nil)

	_, err := svc.ListMembers(context.Background(), "sess-1", "stranger")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.GetCode(err))
}
