package invitation

import (
	"time"

	"github.com/google/uuid"
	"github.com/tech-arch1tect/confadmin/services/account"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
)

// Invitation is a single-use, time-limited grant to create one admin account.
// Rows are hard-deleted; there is no soft-delete column.
type Invitation struct {
	ID        string        `json:"id" gorm:"primaryKey;size:36"`
	Email     string        `json:"email" gorm:"size:255;not null;index"`
	Token     string        `json:"-" gorm:"uniqueIndex;size:255;not null"`
	CreatedBy string        `json:"createdBy" gorm:"size:36;not null;index"`
	Creator   *account.User `json:"-" gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE"`
	UsedBy    *string       `json:"usedBy" gorm:"size:36;index"`
	Consumer  *account.User `json:"-" gorm:"foreignKey:UsedBy;constraint:OnDelete:SET NULL"`
	ExpiresAt time.Time     `json:"expiresAt" gorm:"not null;index"`
	UsedAt    *time.Time    `json:"usedAt"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (Invitation) TableName() string {
	return "invitations"
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

func (i *Invitation) IsUsed() bool {
	return i.UsedAt != nil
}

func (i *Invitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsValid reports whether the invitation can still be consumed at now.
func (i *Invitation) IsValid(now time.Time) bool {
	return !i.IsUsed() && !i.IsExpired(now)
}

func (i *Invitation) Status(now time.Time) Status {
	switch {
	case i.IsUsed():
		return StatusUsed
	case i.IsExpired(now):
		return StatusExpired
	default:
		return StatusPending
	}
}

// Entry is an invitation as shown in the admin listing.
type Entry struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	CreatedBy     string     `json:"createdBy"`
	UsedBy        *string    `json:"usedBy"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	UsedAt        *time.Time `json:"usedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	CreatedByName string     `json:"createdByName"`
	UsedByName    string     `json:"usedByName,omitempty"`
	Status        Status     `json:"status"`
}
