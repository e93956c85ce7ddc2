package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Document is a downloadable asset (datasheet, manual, firmware note) scoped
// by access roles and indexed by category, product type, and language.
type Document struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title         string         `gorm:"column:title;not null"`
	CategoryID    *uuid.UUID     `gorm:"column:category_id;type:uuid;index"`
	ProductTypeID *uuid.UUID     `gorm:"column:product_type_id;type:uuid;index"`
	ProductID     *uuid.UUID     `gorm:"column:product_id;type:uuid;index"`
	LanguageCode  string         `gorm:"column:language_code;not null;default:'en'"`
	FileURL       string         `gorm:"column:file_url;not null"`
	VersionLabel  *string        `gorm:"column:version_label"`
	AccessRoles   pq.StringArray `gorm:"type:text[];column:access_roles;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key so inserts do not depend on a
// database-side default.
func (d *Document) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
