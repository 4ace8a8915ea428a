package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/havenmind/coach-server-go/internal/config"
	"github.com/havenmind/coach-server-go/internal/repository"
)

// CleanupJob lazily reaps invite rows past their retention window and
// presence rows that stopped mattering long ago. Neither sweep affects
// correctness; expiry and liveness are evaluated at read time.
type CleanupJob struct {
	inviteRepo   repository.InviteRepository
	presenceRepo repository.PresenceRepository
	interval     time.Duration
	done         chan struct{}
}

func NewCleanupJob(
	inviteRepo repository.InviteRepository,
	presenceRepo repository.PresenceRepository,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		inviteRepo:   inviteRepo,
		presenceRepo: presenceRepo,
		interval:     interval,
		done:         make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "expired invites", j.inviteRepo.DeleteExpired)
	j.runCleanup(ctx, "stale presence records", func(ctx context.Context) (int64, error) {
		return j.presenceRepo.DeleteStale(ctx, config.PresenceStaleAfter)
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
