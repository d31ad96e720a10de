package invitation

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/zap"
)

// Janitor periodically removes invitations that expired longer ago than the retention window.
type Janitor struct {
	service   *Service
	retention time.Duration
	cron      *cron.Cron
	logger    *logging.Service
}

func NewJanitor(service *Service, retention time.Duration, schedule string, logger *logging.Service) (*Janitor, error) {
	j := &Janitor{
		service:   service,
		retention: retention,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		logger:    logger,
	}

	if _, err := j.cron.AddFunc(schedule, j.run); err != nil {
		return nil, fmt.Errorf("invalid invitation purge schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) run() {
	if _, err := j.Purge(context.Background()); err != nil {
		j.logger.Error("invitation purge failed", zap.Error(err))
	}
}

// Purge deletes invitations whose expiry is older than now minus the retention window.
func (j *Janitor) Purge(ctx context.Context) (int64, error) {
	cutoff := j.service.now().Add(-j.retention)
	n, err := j.service.PurgeExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("purged expired invitations", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

func (j *Janitor) Start() {
	j.logger.Info("starting invitation janitor", zap.Duration("retention", j.retention))
	j.cron.Start()
}

func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("invitation janitor stopped")
}
