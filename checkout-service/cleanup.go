package main

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/whisthq/whist/backend/checkout/utils"
	logger "github.com/whisthq/whist/backend/checkout/whistlogger"
)

// staleOrderDeleter is implemented by every orders.Store.
type staleOrderDeleter interface {
	DeleteStaleUnpaid(ctx context.Context, createdBefore time.Time) (int, error)
}

// cleanupJob deletes unpaid orders whose checkout session can no longer be
// completed.
type cleanupJob struct {
	store  staleOrderDeleter
	maxAge time.Duration
	now    func() time.Time
}

func (j cleanupJob) run(ctx context.Context) {
	cutoff := j.now().Add(-j.maxAge)

	deleted, err := j.store.DeleteStaleUnpaid(ctx, cutoff)
	if err != nil {
		logger.Errorf("failed to delete unpaid orders created before %s: %s", cutoff.Format(time.RFC3339), err)
		return
	} else if deleted < 1 {
		logger.Debugf("Didn't find any stale unpaid orders")
		return
	}

	logger.Infof("Deleted %d unpaid orders created before %s", deleted, cutoff.Format(time.RFC3339))
}

// startCleanupScheduler runs job every interval until the scheduler is
// stopped. The first run happens immediately.
func startCleanupScheduler(ctx context.Context, job cleanupJob, interval time.Duration) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)

	_, err := s.Every(interval).SingletonMode().Do(func() {
		job.run(ctx)
	})
	if err != nil {
		return nil, utils.MakeError("failed to schedule order cleanup: %w", err)
	}

	s.StartAsync()
	logger.Infof("Scheduled cleanup of unpaid orders older than %s every %s", job.maxAge, interval)

	return s, nil
}
