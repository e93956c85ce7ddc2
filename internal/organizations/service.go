package organizations

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/internal/users"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
)

// MemberDTO is a roster entry: the user plus their standing within the
// organization.
type MemberDTO struct {
	users.UserDTO
	IsOrgAdmin bool `json:"is_org_admin"`
}

// Service reads organizations and their member rosters. Roster mutation
// lives in the memberships service; this one only answers questions.
type Service struct {
	orgs  *Repository
	users *users.Repository
}

func NewService(orgs *Repository, userRepo *users.Repository) *Service {
	return &Service{orgs: orgs, users: userRepo}
}

// List returns every organization, ordered by company name.
func (s *Service) List(ctx context.Context) ([]OrganizationDTO, error) {
	rows, err := s.orgs.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing organizations")
	}
	out := make([]OrganizationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out, nil
}

// Get loads a single organization.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*OrganizationDTO, error) {
	org, err := s.orgs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading organization")
	}
	return FromModel(org), nil
}

// ListMembers returns the organization's roster with each member's admin
// standing resolved from the admin roster.
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]MemberDTO, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading organization")
	}

	admins := make(map[uuid.UUID]struct{}, len(org.AdminMembers))
	for _, id := range org.AdminMembers {
		admins[id] = struct{}{}
	}

	rows, err := s.users.ListByDistributor(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing organization members")
	}

	out := make([]MemberDTO, 0, len(rows))
	for i := range rows {
		_, isAdmin := admins[rows[i].ID]
		out = append(out, MemberDTO{
			UserDTO:    *users.FromModel(&rows[i]),
			IsOrgAdmin: isAdmin,
		})
	}
	return out, nil
}
