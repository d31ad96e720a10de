package invitation

import (
	"context"

	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/tech-arch1tect/confadmin/services/mail"
	"github.com/tech-arch1tect/confadmin/services/metrics"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideInvitationService(cfg *config.Config, db *gorm.DB, mailer *mail.Service, m *metrics.Service, logger *logging.Service) *Service {
	return NewService(cfg, db, mailer, m, logger.Named("invitation"))
}

// ProvideJanitor returns nil when retention is disabled.
func ProvideJanitor(cfg *config.Config, svc *Service, logger *logging.Service) (*Janitor, error) {
	if cfg.Invitation.Retention <= 0 {
		return nil, nil
	}
	return NewJanitor(svc, cfg.Invitation.Retention, cfg.Invitation.PurgeSchedule, logger.Named("invitation.janitor"))
}

func registerJanitor(lc fx.Lifecycle, j *Janitor) {
	if j == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			j.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			j.Stop()
			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(ProvideInvitationService),
	fx.Provide(ProvideJanitor),
	fx.Invoke(registerJanitor),
)
