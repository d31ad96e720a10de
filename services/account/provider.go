package account

import (
	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAccountService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return NewService(&cfg.Auth, db, logger.Named("account"))
}

var Module = fx.Options(
	fx.Provide(ProvideAccountService),
)
