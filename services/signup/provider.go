package signup

import (
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/invitation"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideProvisioner(db *gorm.DB, accounts *account.Service, invitations *invitation.Service, logger *logging.Service) *Provisioner {
	return NewProvisioner(db, accounts, invitations, logger.Named("signup"))
}

var Module = fx.Options(
	fx.Provide(ProvideProvisioner),
)
