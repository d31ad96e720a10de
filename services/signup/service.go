package signup

import (
	"context"
	"errors"

	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/invitation"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Provisioner turns a valid invitation into an admin account.
type Provisioner struct {
	db          *gorm.DB
	accounts    *account.Service
	invitations *invitation.Service
	logger      *logging.Service
}

func NewProvisioner(db *gorm.DB, accounts *account.Service, invitations *invitation.Service, logger *logging.Service) *Provisioner {
	return &Provisioner{
		db:          db,
		accounts:    accounts,
		invitations: invitations,
		logger:      logger,
	}
}

// Register creates the invited admin and consumes the invitation in one transaction.
// If the invitation is consumed concurrently the user insert is rolled back and
// invitation.ErrInvalidOrExpired is returned.
func (p *Provisioner) Register(ctx context.Context, token, name, password string) (*account.User, error) {
	var user *account.User

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitations := p.invitations.WithTx(tx)
		accounts := p.accounts.WithTx(tx)

		inv, err := invitations.Validate(ctx, token)
		if err != nil {
			return err
		}

		user, err = accounts.Create(ctx, name, inv.Email, password, true)
		if err != nil {
			return err
		}

		return invitations.Consume(ctx, token, user.ID)
	})
	if err != nil {
		if !errors.Is(err, invitation.ErrInvalidOrExpired) {
			p.logger.Warn("admin registration failed", zap.Error(err))
		}
		return nil, err
	}

	p.logger.Info("admin registered from invitation",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email))
	return user, nil
}
