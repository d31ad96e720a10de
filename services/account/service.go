package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUserNotFound          = errors.New("user not found")
	ErrEmailTaken            = errors.New("a user with this email already exists")
	ErrNameRequired          = errors.New("name is required")
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrPasswordTooShort      = errors.New("password too short")
)

// dummyHash keeps Authenticate's timing similar whether or not the email exists.
var dummyHash = []byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z6kWx5e5E1e9yQ5s8pE6Lh3e")

type Service struct {
	config *config.AuthConfig
	db     *gorm.DB
	logger *logging.Service
}

func NewService(cfg *config.AuthConfig, db *gorm.DB, logger *logging.Service) *Service {
	authCfg := *cfg
	if authCfg.BcryptCost < bcrypt.MinCost || authCfg.BcryptCost > bcrypt.MaxCost {
		authCfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		config: &authCfg,
		db:     db,
		logger: logger,
	}
}

// WithTx returns a copy of the service bound to an open transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	return &clone
}

// NormalizeEmail is the canonical form used for every email comparison and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.config.MinLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, s.config.MinLength)
	}
	return nil
}

func (s *Service) HashPassword(password string) (string, error) {
	if err := s.ValidatePassword(password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		s.logger.Error("password hashing failed", zap.Error(err))
		return "", ErrPasswordHashingFailed
	}
	return string(hash), nil
}

func (s *Service) VerifyPassword(hashedPassword, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Create inserts a new admin user. The email must not belong to another account.
func (s *Service) Create(ctx context.Context, name, email, password string, verified bool) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	email = NormalizeEmail(email)

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	exists, err := s.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	user := &User{
		Name:          name,
		Email:         email,
		EmailVerified: verified,
		PasswordHash:  hash,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("failed to create user", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("admin user created", zap.String("user_id", user.ID), zap.String("email", email))
	return user, nil
}

// Seed creates an admin user, replacing any existing account with the same email.
func (s *Service) Seed(ctx context.Context, name, email, password string) (*User, error) {
	var user *User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txSvc := s.WithTx(tx)
		result := tx.Where("email = ?", NormalizeEmail(email)).Delete(&User{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove existing user: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			s.logger.Warn("replacing existing user", zap.String("email", email))
		}

		var err error
		user, err = txSvc.Create(ctx, name, email, password, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			s.logger.Warn("sign-in attempt for unknown email", zap.String("email", email))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := s.VerifyPassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("sign-in attempt with wrong password", zap.String("user_id", user.ID))
		return nil, err
	}
	return &user, nil
}

func (s *Service) FindByID(ctx context.Context, id string) (*User, error) {
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return &user, nil
}

func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&User{}).
		Where("email = ?", NormalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check existing user: %w", err)
	}
	return count > 0, nil
}

// DisplayNames resolves user ids to names. Unknown ids are absent from the result.
func (s *Service) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var users []User
	if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve user names: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// Delete removes a user. Invitations the user issued are removed by the database.
func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&User{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	s.logger.Info("admin user deleted", zap.String("user_id", id))
	return nil
}
