package auth

import (
	"github.com/naosaki/naowatt-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID             uuid.UUID
	Role               enums.Role
	DistributorID      *uuid.UUID
	IsDistributorAdmin bool
	JTI                string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID             uuid.UUID  `json:"user_id"`
	Role               enums.Role `json:"role"`
	DistributorID      *uuid.UUID `json:"distributor_id,omitempty"`
	IsDistributorAdmin bool       `json:"is_distributor_admin,omitempty"`
	jwt.RegisteredClaims
}
