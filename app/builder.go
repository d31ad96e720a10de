package app

import (
	"fmt"

	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/database"
	"github.com/tech-arch1tect/confadmin/handlers"
	"github.com/tech-arch1tect/confadmin/internal/options"
	"github.com/tech-arch1tect/confadmin/middleware/gate"
	"github.com/tech-arch1tect/confadmin/middleware/ratelimit"
	"github.com/tech-arch1tect/confadmin/openapi"
	"github.com/tech-arch1tect/confadmin/server"
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/invitation"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/tech-arch1tect/confadmin/services/mail"
	"github.com/tech-arch1tect/confadmin/services/metrics"
	"github.com/tech-arch1tect/confadmin/services/signup"
	"github.com/tech-arch1tect/confadmin/services/templates"
	"github.com/tech-arch1tect/confadmin/session"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Models are the tables owned by the portal.
func Models() []any {
	return []any{&account.User{}, &invitation.Invitation{}}
}

// New assembles the portal. Without a config option the environment is loaded.
func New(opts ...options.Option) (*App, error) {
	o := options.Apply(opts...)

	cfg := o.Config
	if cfg == nil {
		cfg = &config.Config{}
		if err := config.LoadConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.NewLoggingService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	fxOptions := []fx.Option{
		fx.NopLogger,
		fx.Supply(cfg, logger),
		logging.SyncOnStop,
		fx.Supply(database.WithModels(append(Models(), o.DatabaseModels...)...)),
		database.Module,
		metrics.Module,
		mail.Module,
		templates.Module,
		session.Module,
		account.Module,
		invitation.Module,
		signup.Module,
		ratelimit.Module,
		openapi.Module,
		handlers.Module,
		server.Module,
		gate.Module,
		fx.Invoke(registerRoutes),
		fx.Populate(&app.db, &app.server),
	}
	if o.Listen {
		fxOptions = append(fxOptions, server.Listener)
	}
	fxOptions = append(fxOptions, o.ExtraFxOptions...)

	app.fx = fx.New(fxOptions...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to assemble application: %w", err)
	}
	return app, nil
}

// Migrate opens the configured database and migrates the portal tables without starting anything.
func Migrate(cfg *config.Config, logger *logging.Service) (*gorm.DB, error) {
	migrating := *cfg
	migrating.Database.AutoMigrate = true
	return database.ProvideDatabase(migrating, database.WithModels(Models()...), logger)
}
