package logging

import (
	"context"

	"github.com/tech-arch1tect/confadmin/config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewLoggingService),
	SyncOnStop,
)

// SyncOnStop flushes buffered entries when the application stops.
var SyncOnStop = fx.Invoke(func(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stdout cannot always be synced; the error is not actionable.
			_ = svc.Sync()
			return nil
		},
	})
})

func NewLoggingService(cfg *config.Config) (*Service, error) {
	return NewService(Config{
		Level:      LogLevel(cfg.Log.Level),
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.Output,
	})
}
