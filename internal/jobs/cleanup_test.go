package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/repository"
)

type mockInviteRepo struct {
	deleteExpiredCount int64
	deleteExpiredCalls int
}

func (m *mockInviteRepo) FindByCode(ctx context.Context, code string) (*model.Invite, error) {
	return nil, nil
}

func (m *mockInviteRepo) FindActiveBySession(ctx context.Context, sessionID string) (*model.Invite, error) {
	return nil, nil
}

func (m *mockInviteRepo) Create(ctx context.Context, params model.CreateInviteParams) (*model.Invite, error) {
	return nil, nil
}

func (m *mockInviteRepo) RevokeAllForSession(ctx context.Context, sessionID string) (int64, error) {
	return 0, nil
}

func (m *mockInviteRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.deleteExpiredCalls++
	return m.deleteExpiredCount, nil
}

func (m *mockInviteRepo) WithTx(tx *sqlx.Tx) repository.InviteRepository {
	return m
}

type mockPresenceRepo struct {
	deleteStaleCount int64
	deleteStaleCalls int
	lastOlderThan    time.Duration
}

func (m *mockPresenceRepo) Upsert(ctx context.Context, sessionID, userID string, at time.Time) error {
	return nil
}

func (m *mockPresenceRepo) FindBySessionAndUser(ctx context.Context, sessionID, userID string) (*model.PresenceRecord, error) {
	return nil, nil
}

func (m *mockPresenceRepo) ListBySession(ctx context.Context, sessionID string) ([]model.PresenceRecord, error) {
	return nil, nil
}

func (m *mockPresenceRepo) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	m.deleteStaleCalls++
	m.lastOlderThan = olderThan
	return m.deleteStaleCount, nil
}

func TestCleanup_RunsAllSweeps(t *testing.T) {
	inviteRepo := &mockInviteRepo{deleteExpiredCount: 3}
	presenceRepo := &mockPresenceRepo{deleteStaleCount: 12}

	job := NewCleanupJob(inviteRepo, presenceRepo, time.Minute)
	job.cleanup()

	assert.Equal(t, 1, inviteRepo.deleteExpiredCalls)
	assert.Equal(t, 1, presenceRepo.deleteStaleCalls)
	assert.Equal(t, 24*time.Hour, presenceRepo.lastOlderThan)
}

func TestCleanup_StartStop(t *testing.T) {
	inviteRepo := &mockInviteRepo{}
	presenceRepo := &mockPresenceRepo{}

	job := NewCleanupJob(inviteRepo, presenceRepo, 10*time.Millisecond)
	job.Start()
	time.Sleep(25 * time.Millisecond)
	job.Stop()

	// Runs once immediately plus at least one tick.
	assert.GreaterOrEqual(t, inviteRepo.deleteExpiredCalls, 2)
}
