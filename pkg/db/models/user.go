package models

import (
	"time"

	dbtypes "github.com/naosaki/naowatt-backend/pkg/db/types"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents the canonical identity entity. DistributorID and
// IsDistributorAdmin are meaningful only for distributor accounts and must
// always agree with the owning organization's membership arrays.
type User struct {
	ID                 uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email              string            `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash       string            `gorm:"column:password_hash;not null"`
	DisplayName        string            `gorm:"column:display_name;not null"`
	Role               enums.Role        `gorm:"column:role;type:text;not null"`
	DistributorID      *uuid.UUID        `gorm:"column:distributor_id;type:uuid"`
	IsDistributorAdmin bool              `gorm:"column:is_distributor_admin;not null;default:false"`
	ManagedUsers       dbtypes.UUIDArray `gorm:"type:uuid[];column:managed_users;not null;default:ARRAY[]::uuid[]"`
	Version            int64             `gorm:"column:version;not null;default:0"`
	IsActive           bool              `gorm:"column:is_active;not null;default:true"`
	LastLoginAt        *time.Time        `gorm:"column:last_login_at"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key so inserts do not depend on a
// database-side default.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
