package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Product is a catalog entry that documents attach to.
type Product struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string         `gorm:"column:name;not null"`
	Reference     string         `gorm:"column:reference;not null;uniqueIndex"`
	ProductTypeID *uuid.UUID     `gorm:"column:product_type_id;type:uuid;index"`
	Description   *string        `gorm:"column:description"`
	ImageURL      *string        `gorm:"column:image_url"`
	AccessRoles   pq.StringArray `gorm:"type:text[];column:access_roles;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the primary key so inserts do not depend on a
// database-side default.
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
