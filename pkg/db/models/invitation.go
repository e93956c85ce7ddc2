package models

import (
	"time"

	"github.com/naosaki/naowatt-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invitation is a single-use, token-backed account creation offer. The token
// column carries a unique index so a consumed or cancelled token can never be
// reissued. Expired-but-pending rows keep status=pending; expiry is derived.
type Invitation struct {
	ID             uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string                 `gorm:"type:text;not null;index:idx_invitations_email_inviter,priority:1"`
	Name           string                 `gorm:"column:name;not null"`
	Role           enums.Role             `gorm:"column:role;type:text;not null"`
	CompanyName    *string                `gorm:"column:company_name"`
	OrganizationID *uuid.UUID             `gorm:"column:organization_id;type:uuid"`
	InviterID      uuid.UUID              `gorm:"column:inviter_id;type:uuid;not null;index:idx_invitations_email_inviter,priority:2"`
	InviterName    string                 `gorm:"column:inviter_name;not null"`
	InviterCompany string                 `gorm:"column:inviter_company"`
	Token          string                 `gorm:"column:token;not null;uniqueIndex"`
	Status         enums.InvitationStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt      time.Time              `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt      time.Time              `gorm:"column:expires_at;not null"`
	AcceptedAt     *time.Time             `gorm:"column:accepted_at"`
}

// BeforeCreate assigns the primary key so inserts do not depend on a
// database-side default.
func (i *Invitation) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Expired reports whether the invitation's acceptance window has closed.
func (i Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Pending reports whether the invitation can still be acted on at the given
// instant: persisted status pending and the expiry window still open.
func (i Invitation) Pending(now time.Time) bool {
	return i.Status == enums.InvitationStatusPending && !i.Expired(now)
}
