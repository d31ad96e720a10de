package invitation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/tech-arch1tect/confadmin/config"
	"github.com/tech-arch1tect/confadmin/services/account"
	"github.com/tech-arch1tect/confadmin/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	unknownName  = "Unknown"
	mailTemplate = "invitation"
)

// Mailer delivers the invitation email.
type Mailer interface {
	SendTemplate(templateName string, to []string, subject string, data map[string]any) error
}

// Recorder receives lifecycle counts. Implemented by the metrics service.
type Recorder interface {
	InvitationCreated()
	InvitationConsumed()
	InvitationDeliveryFailed()
}

type Service struct {
	config   config.InvitationConfig
	appName  string
	appURL   string
	db       *gorm.DB
	mailer   Mailer
	recorder Recorder
	logger   *logging.Service
	now      func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, mailer Mailer, recorder Recorder, logger *logging.Service) *Service {
	return &Service{
		config:   cfg.Invitation,
		appName:  cfg.App.Name,
		appURL:   strings.TrimRight(cfg.App.URL, "/"),
		db:       db,
		mailer:   mailer,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithTx returns a copy of the service bound to an open transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	clone := *s
	clone.db = tx
	return &clone
}

// Create issues an invitation for email and sends it. If the email cannot be
// delivered the invitation is removed again and ErrDeliveryFailed is returned.
func (s *Service) Create(ctx context.Context, email, issuerID string) (*Invitation, error) {
	if issuerID == "" {
		return nil, ErrIssuerRequired
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	now := s.now()
	db := s.db.WithContext(ctx)

	var accounts int64
	if err := db.Model(&account.User{}).Where("email = ?", email).Count(&accounts).Error; err != nil {
		s.logger.Error("failed to check existing accounts", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to check existing accounts: %w", err)
	}
	if accounts > 0 {
		return nil, ErrDuplicateAccount
	}

	var outstanding int64
	err = db.Model(&Invitation{}).
		Where("email = ? AND used_at IS NULL AND expires_at > ?", email, now).
		Count(&outstanding).Error
	if err != nil {
		s.logger.Error("failed to check outstanding invitations", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to check outstanding invitations: %w", err)
	}
	if outstanding > 0 {
		return nil, ErrDuplicateInvitation
	}

	token, err := s.generateToken()
	if err != nil {
		return nil, err
	}

	inv := &Invitation{
		Email:     email,
		Token:     token,
		CreatedBy: issuerID,
		ExpiresAt: now.Add(s.config.Expiry),
	}
	if err := db.Create(inv).Error; err != nil {
		s.logger.Error("failed to store invitation", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to store invitation: %w", err)
	}

	if err := s.send(ctx, inv); err != nil {
		s.recordDeliveryFailure()
		s.logger.Error("invitation email failed, removing invitation",
			zap.Error(err),
			zap.String("invitation_id", inv.ID),
			zap.String("email", email))

		cleanup := s.db.WithContext(context.WithoutCancel(ctx))
		if delErr := cleanup.Where("id = ?", inv.ID).Delete(&Invitation{}).Error; delErr != nil {
			s.logger.Error("failed to remove orphaned invitation",
				zap.Error(delErr),
				zap.String("invitation_id", inv.ID))
		}
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	if s.recorder != nil {
		s.recorder.InvitationCreated()
	}
	s.logger.Info("invitation created",
		zap.String("invitation_id", inv.ID),
		zap.String("email", email),
		zap.String("created_by", issuerID),
		zap.Time("expires_at", inv.ExpiresAt))
	return inv, nil
}

func (s *Service) send(ctx context.Context, inv *Invitation) error {
	if s.mailer == nil {
		return errors.New("no mailer configured")
	}

	var inviterName string
	var issuer account.User
	if err := s.db.WithContext(ctx).Select("name").Where("id = ?", inv.CreatedBy).First(&issuer).Error; err == nil {
		inviterName = issuer.Name
	}

	subject := fmt.Sprintf("Invitation to %s", s.appName)
	return s.mailer.SendTemplate(mailTemplate, []string{inv.Email}, subject, map[string]any{
		"Subject":     subject,
		"AppName":     s.appName,
		"Email":       inv.Email,
		"InviterName": inviterName,
		"InviteURL":   s.InviteURL(inv.Token),
		"ExpiresAt":   inv.ExpiresAt.Format("02 Jan 2006 15:04 MST"),
	})
}

// InviteURL is the signup link delivered to the invitee.
func (s *Service) InviteURL(token string) string {
	return s.appURL + s.config.SignupPath + "?token=" + token
}

// Validate returns the invitation for token if it is unused and not expired.
func (s *Service) Validate(ctx context.Context, token string) (*Invitation, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	var inv Invitation
	err := s.db.WithContext(ctx).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, s.now()).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidOrExpired
		}
		s.logger.Error("failed to validate invitation", zap.Error(err))
		return nil, fmt.Errorf("failed to validate invitation: %w", err)
	}
	return &inv, nil
}

// Consume marks the invitation for token as used. The check and the write are one
// conditional UPDATE, so of any number of concurrent calls at most one succeeds.
// consumerID is recorded as the consuming account when not empty.
func (s *Service) Consume(ctx context.Context, token, consumerID string) error {
	if token == "" {
		return ErrTokenRequired
	}

	now := s.now()
	updates := map[string]any{"used_at": now}
	if consumerID != "" {
		updates["used_by"] = consumerID
	}

	result := s.db.WithContext(ctx).Model(&Invitation{}).
		Where("token = ? AND used_at IS NULL AND expires_at > ?", token, now).
		Updates(updates)
	if result.Error != nil {
		s.logger.Error("failed to consume invitation", zap.Error(result.Error))
		return fmt.Errorf("failed to consume invitation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidOrExpired
	}

	if s.recorder != nil {
		s.recorder.InvitationConsumed()
	}
	s.logger.Info("invitation consumed", zap.String("used_by", consumerID))
	return nil
}

// List returns every invitation, newest first, with issuer and consumer names resolved.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	var invitations []Invitation
	err := s.db.WithContext(ctx).
		Preload("Creator").
		Preload("Consumer").
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		s.logger.Error("failed to list invitations", zap.Error(err))
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	now := s.now()
	entries := make([]Entry, 0, len(invitations))
	for i := range invitations {
		inv := &invitations[i]
		entry := Entry{
			ID:            inv.ID,
			Email:         inv.Email,
			CreatedBy:     inv.CreatedBy,
			UsedBy:        inv.UsedBy,
			ExpiresAt:     inv.ExpiresAt,
			UsedAt:        inv.UsedAt,
			CreatedAt:     inv.CreatedAt,
			CreatedByName: unknownName,
			Status:        inv.Status(now),
		}
		if inv.Creator != nil && inv.Creator.Name != "" {
			entry.CreatedByName = inv.Creator.Name
		}
		if inv.IsUsed() {
			entry.UsedByName = unknownName
			if inv.Consumer != nil && inv.Consumer.Name != "" {
				entry.UsedByName = inv.Consumer.Name
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Delete removes an invitation regardless of its state.
func (s *Service) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Invitation{})
	if result.Error != nil {
		s.logger.Error("failed to delete invitation", zap.Error(result.Error), zap.String("invitation_id", id))
		return fmt.Errorf("failed to delete invitation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	s.logger.Info("invitation deleted", zap.String("invitation_id", id))
	return nil
}

// PurgeExpired hard-deletes invitations that expired before cutoff, used or not.
func (s *Service) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", cutoff.UTC()).Delete(&Invitation{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge expired invitations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *Service) generateToken() (string, error) {
	b := make([]byte, s.config.TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate invitation token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) recordDeliveryFailure() {
	if s.recorder != nil {
		s.recorder.InvitationDeliveryFailed()
	}
}

func normalizeEmail(raw string) (string, error) {
	email := account.NormalizeEmail(raw)
	if email == "" {
		return "", ErrEmailRequired
	}
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}
