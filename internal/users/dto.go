package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/pkg/db/models"
	"github.com/naosaki/naowatt-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                 uuid.UUID   `json:"id"`
	Email              string      `json:"email"`
	DisplayName        string      `json:"display_name"`
	Role               enums.Role  `json:"role"`
	DistributorID      *uuid.UUID  `json:"distributor_id,omitempty"`
	IsDistributorAdmin bool        `json:"is_distributor_admin"`
	ManagedUsers       []uuid.UUID `json:"managed_users,omitempty"`
	IsActive           bool        `json:"is_active"`
	LastLoginAt        *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email              string
	PasswordHash       string
	DisplayName        string
	Role               enums.Role
	DistributorID      *uuid.UUID
	IsDistributorAdmin bool
	IsActive           *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:                 u.ID,
		Email:              u.Email,
		DisplayName:        u.DisplayName,
		Role:               u.Role,
		DistributorID:      copyUUIDPointer(u.DistributorID),
		IsDistributorAdmin: u.IsDistributorAdmin,
		ManagedUsers:       append([]uuid.UUID(nil), []uuid.UUID(u.ManagedUsers)...),
		IsActive:           u.IsActive,
		LastLoginAt:        u.LastLoginAt,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}

	return &models.User{
		Email:              c.Email,
		PasswordHash:       c.PasswordHash,
		DisplayName:        c.DisplayName,
		Role:               c.Role,
		DistributorID:      copyUUIDPointer(c.DistributorID),
		IsDistributorAdmin: c.IsDistributorAdmin,
		IsActive:           isActive,
	}
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}
