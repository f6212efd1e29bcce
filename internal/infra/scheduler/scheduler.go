package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Purger removes expired dedup entries. Implemented by app.AdminService.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// DedupPurgeScheduler runs the retention purge on a cron schedule.
type DedupPurgeScheduler struct {
	cronEngine *cron.Cron
	purger     Purger
	logger     *logrus.Entry
	cronSpec   string
	jobTimeout time.Duration
}

func NewDedupPurgeScheduler(purger Purger, logger *logrus.Entry, cronSpec string, loc *time.Location) *DedupPurgeScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &DedupPurgeScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		purger:     purger,
		logger:     logger,
		cronSpec:   cronSpec,
		jobTimeout: 1 * time.Minute,
	}
}

// Start registers the purge job and starts the cron engine.
func (s *DedupPurgeScheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.runPurge); err != nil {
		return fmt.Errorf("could not add dedup purge cron job %q: %w", s.cronSpec, err)
	}
	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Dedup purge scheduler started")
	return nil
}

func (s *DedupPurgeScheduler) runPurge() {
	s.logger.Debug("Cron job triggered for dedup purge")
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	if _, err := s.purger.PurgeExpired(ctx); err != nil {
		s.logger.WithError(err).Error("Error during dedup purge")
	}
}

// Stop stops the engine and waits for a running purge to finish.
func (s *DedupPurgeScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Dedup purge scheduler stopped")
}

// Entries exposes the registered jobs.
func (s *DedupPurgeScheduler) Entries() []cron.Entry {
	return s.cronEngine.Entries()
}
