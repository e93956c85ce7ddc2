package models

import (
	"time"

	dbtypes "github.com/naosaki/naowatt-backend/pkg/db/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the distributor tenant aggregate. AdminMembers is always a
// subset of TeamMembers, and every member's User.DistributorID points back at
// this record.
type Organization struct {
	ID           uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CompanyName  string            `gorm:"column:company_name;not null"`
	ContactEmail string            `gorm:"column:contact_email;not null"`
	ContactPhone *string           `gorm:"column:contact_phone"`
	Active       bool              `gorm:"column:active;not null;default:true"`
	TeamMembers  dbtypes.UUIDArray `gorm:"type:uuid[];column:team_members;not null;default:ARRAY[]::uuid[]"`
	AdminMembers dbtypes.UUIDArray `gorm:"type:uuid[];column:admin_members;not null;default:ARRAY[]::uuid[]"`
	Version      int64             `gorm:"column:version;not null;default:0"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key so inserts do not depend on a
// database-side default.
func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
