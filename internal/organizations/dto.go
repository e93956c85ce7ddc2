package organizations

import (
	"time"

	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/pkg/db/models"
)

// OrganizationDTO is the transport shape for a distributor account.
type OrganizationDTO struct {
	ID           uuid.UUID   `json:"id"`
	CompanyName  string      `json:"company_name"`
	ContactEmail string      `json:"contact_email"`
	ContactPhone *string     `json:"contact_phone,omitempty"`
	Active       bool        `json:"active"`
	TeamMembers  []uuid.UUID `json:"team_members"`
	AdminMembers []uuid.UUID `json:"admin_members"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CreateOrganizationDTO holds the data required to persist a new organization.
type CreateOrganizationDTO struct {
	CompanyName  string
	ContactEmail string
	ContactPhone *string
}

func FromModel(o *models.Organization) *OrganizationDTO {
	if o == nil {
		return nil
	}

	return &OrganizationDTO{
		ID:           o.ID,
		CompanyName:  o.CompanyName,
		ContactEmail: o.ContactEmail,
		ContactPhone: cloneStringPtr(o.ContactPhone),
		Active:       o.Active,
		TeamMembers:  append([]uuid.UUID(nil), []uuid.UUID(o.TeamMembers)...),
		AdminMembers: append([]uuid.UUID(nil), []uuid.UUID(o.AdminMembers)...),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	cpy := *value
	return &cpy
}
