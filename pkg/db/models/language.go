package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Language is a selectable document language. Role-scoped so region-specific
// locales can be limited to the distributors that serve them.
type Language struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code        string         `gorm:"column:code;not null;uniqueIndex"`
	Name        string         `gorm:"column:name;not null"`
	AccessRoles pq.StringArray `gorm:"type:text[];column:access_roles;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key so inserts do not depend on a
// database-side default.
func (l *Language) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
