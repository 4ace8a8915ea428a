package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"

	"github.com/havenmind/coach-server-go/internal/database"
	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/repository"
)

// Shared mock repositories for service tests.

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindByOwner(ctx context.Context, ownerID string) ([]model.Session, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) UpdateStatus(ctx context.Context, id string, from, to model.SessionStatus) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) SetLock(ctx context.Context, id string, reason string, lockedBy string) error {
	args := m.Called(ctx, id, reason, lockedBy)
	return args.Error(0)
}

func (m *mockSessionRepo) MarkEnded(ctx context.Context, id string, reason string, lockedBy string) error {
	args := m.Called(ctx, id, reason, lockedBy)
	return args.Error(0)
}

func (m *mockSessionRepo) TouchActivity(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockInviteRepo struct {
	mock.Mock
}

func (m *mockInviteRepo) FindByCode(ctx context.Context, code string) (*model.Invite, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invite), args.Error(1)
}

func (m *mockInviteRepo) FindActiveBySession(ctx context.Context, sessionID string) (*model.Invite, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invite), args.Error(1)
}

func (m *mockInviteRepo) Create(ctx context.Context, params model.CreateInviteParams) (*model.Invite, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Invite), args.Error(1)
}

func (m *mockInviteRepo) RevokeAllForSession(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockInviteRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockInviteRepo) WithTx(tx *sqlx.Tx) repository.InviteRepository {
	return m
}

type mockMembershipRepo struct {
	mock.Mock
}

func (m *mockMembershipRepo) FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.Membership, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Membership), args.Error(1)
}

func (m *mockMembershipRepo) ListBySession(ctx context.Context, sessionID string) ([]model.Membership, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Membership), args.Error(1)
}

func (m *mockMembershipRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *mockMembershipRepo) CountReadyBySession(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *mockMembershipRepo) Create(ctx context.Context, params model.CreateMembershipParams) (*model.Membership, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Membership), args.Error(1)
}

func (m *mockMembershipRepo) SetReady(ctx context.Context, sessionID, userID string, ready bool) error {
	args := m.Called(ctx, sessionID, userID, ready)
	return args.Error(0)
}

func (m *mockMembershipRepo) Delete(ctx context.Context, sessionID, userID string) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *mockMembershipRepo) WithTx(tx *sqlx.Tx) repository.MembershipRepository {
	return m
}

type mockPresenceRepo struct {
	mock.Mock
}

func (m *mockPresenceRepo) Upsert(ctx context.Context, sessionID, userID string, at time.Time) error {
	args := m.Called(ctx, sessionID, userID, at)
	return args.Error(0)
}

func (m *mockPresenceRepo) FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.PresenceRecord, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PresenceRecord), args.Error(1)
}

func (m *mockPresenceRepo) ListBySession(ctx context.Context, sessionID string) ([]model.PresenceRecord, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PresenceRecord), args.Error(1)
}

func (m *mockPresenceRepo) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) ListBySession(ctx context.Context, sessionID string, limit, offset int) ([]model.Message, error) {
	args := m.Called(ctx, sessionID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) CountUserMessagesBySession(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *mockMessageRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Account, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Account, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

func (m *mockAccountRepo) UpdateTier(ctx context.Context, id string, tier model.SubscriptionTier, subscriptionID *string) error {
	args := m.Called(ctx, id, tier, subscriptionID)
	return args.Error(0)
}

func (m *mockAccountRepo) SetStripeCustomerID(ctx context.Context, id string, customerID string) error {
	args := m.Called(ctx, id, customerID)
	return args.Error(0)
}

type mockIntakeRepo struct {
	mock.Mock
}

func (m *mockIntakeRepo) Upsert(ctx context.Context, params model.UpsertIntakeParams) (*model.IntakeForm, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IntakeForm), args.Error(1)
}

func (m *mockIntakeRepo) FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.IntakeForm, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IntakeForm), args.Error(1)
}

func (m *mockIntakeRepo) ListBySession(ctx context.Context, sessionID string) ([]model.IntakeForm, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.IntakeForm), args.Error(1)
}

// fakeTxRunner runs the callback without a real transaction so the
// WithTx-returns-self mocks above see the same expectations.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	return fn(nil)
}

// stubGenerator is a canned TextGenerator.
type stubGenerator struct {
	opening string
	reply   string
	err     error
}

func (s *stubGenerator) Opening(ctx context.Context, session *model.Session, intakes []model.IntakeForm) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.opening, nil
}

func (s *stubGenerator) Reply(ctx context.Context, session *model.Session, history []model.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}
