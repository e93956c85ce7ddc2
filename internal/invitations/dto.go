package invitations

import (
	"time"

	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/pkg/db/models"
	"github.com/naosaki/naowatt-backend/pkg/enums"
)

// statusExpired is the derived, read-time view of a pending invitation whose
// window has closed. It is never persisted.
const statusExpired = "expired"

// CreateInvitationDTO carries a create request. Inviter fields come from the
// authenticated caller, never from the request body.
type CreateInvitationDTO struct {
	Email          string
	Name           string
	Role           enums.Role
	CompanyName    *string
	OrganizationID *uuid.UUID
	InviterID      uuid.UUID
	InviterName    string
	InviterCompany string
}

// InvitationDTO is the transport shape of an invitation. Status folds in the
// derived expired state.
type InvitationDTO struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name"`
	Role           enums.Role `json:"role"`
	CompanyName    *string    `json:"company_name,omitempty"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	InviterID      uuid.UUID  `json:"inviter_id"`
	InviterName    string     `json:"inviter_name"`
	InviterCompany string     `json:"inviter_company,omitempty"`
	Token          string     `json:"token,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
}

// VerificationDTO is the read-only answer to a token check.
type VerificationDTO struct {
	Valid      bool           `json:"valid"`
	Invitation *InvitationDTO `json:"invitation,omitempty"`
}

// FromModel converts a stored invitation, deriving the expired status as of
// the given instant.
func FromModel(inv *models.Invitation, now time.Time) *InvitationDTO {
	if inv == nil {
		return nil
	}

	status := inv.Status.String()
	if inv.Status == enums.InvitationStatusPending && inv.Expired(now) {
		status = statusExpired
	}

	dto := &InvitationDTO{
		ID:             inv.ID,
		Email:          inv.Email,
		Name:           inv.Name,
		Role:           inv.Role,
		InviterID:      inv.InviterID,
		InviterName:    inv.InviterName,
		InviterCompany: inv.InviterCompany,
		Token:          inv.Token,
		Status:         status,
		CreatedAt:      inv.CreatedAt,
		ExpiresAt:      inv.ExpiresAt,
		AcceptedAt:     inv.AcceptedAt,
	}
	if inv.CompanyName != nil {
		name := *inv.CompanyName
		dto.CompanyName = &name
	}
	if inv.OrganizationID != nil {
		id := *inv.OrganizationID
		dto.OrganizationID = &id
	}
	return dto
}
