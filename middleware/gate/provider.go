package gate

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"github.com/tech-arch1tect/confadmin/services/metrics"
	"github.com/tech-arch1tect/confadmin/session"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func ProvidePolicy(cfg *config.Config) Policy {
	return NewPolicy(cfg.Gate, session.MarkerCookieNames(cfg.Session.Name))
}

func register(e *echo.Echo, p Policy, m *metrics.Service, logger *logging.Service) {
	logger.Info("request gate enabled",
		zap.String("api_prefix", p.APIPrefix),
		zap.Strings("allowed_origins", p.AllowedOrigins),
		zap.Bool("permissive_fallback", p.PermissiveFallback),
		zap.Strings("protected_prefixes", p.ProtectedPrefixes))
	e.Pre(Middleware(p, m, logger.Named("gate")))
}

var Module = fx.Options(
	fx.Provide(ProvidePolicy),
	fx.Invoke(register),
)
