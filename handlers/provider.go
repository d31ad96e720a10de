package handlers

import (
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/fx"
)

var Module = fx.Module("handlers",
	fx.Decorate(func(logger *logging.Service) *logging.Service {
		return logger.Named("handlers")
	}),
	fx.Provide(
		NewInvitationHandler,
		NewAuthHandler,
		NewSignupHandler,
		NewDashboardHandler,
	),
)
