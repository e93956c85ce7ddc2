package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/api/middleware"
	"github.com/naosaki/naowatt-backend/api/responses"
	"github.com/naosaki/naowatt-backend/api/validators"
	"github.com/naosaki/naowatt-backend/internal/invitations"
	"github.com/naosaki/naowatt-backend/internal/organizations"
	"github.com/naosaki/naowatt-backend/internal/users"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
)

type createInvitationRequest struct {
	Email          string  `json:"email" validate:"required,email"`
	Name           string  `json:"name" validate:"required,max=200"`
	Role           string  `json:"role" validate:"required,oneof=user distributor installer"`
	CompanyName    *string `json:"company_name,omitempty" validate:"omitempty,max=200"`
	OrganizationID *string `json:"organization_id,omitempty" validate:"omitempty,uuid"`
}

type acceptInvitationRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// InvitationCreate issues an invitation on behalf of the authenticated
// inviter. The inviter's display name and company are resolved
// server-side so the invitation email cannot impersonate anyone.
func InvitationCreate(svc *invitations.Service, userRepo *users.Repository, orgRepo *organizations.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		inviterID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var body createInvitationRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		role, err := enums.ParseRole(body.Role)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		inviter, err := userRepo.FindByID(ctx, inviterID)
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading inviter"))
			return
		}

		dto := invitations.CreateInvitationDTO{
			Email:       body.Email,
			Name:        body.Name,
			Role:        role,
			CompanyName: body.CompanyName,
			InviterID:   inviter.ID,
			InviterName: inviter.DisplayName,
		}

		if body.OrganizationID != nil {
			orgID, parseErr := uuid.Parse(*body.OrganizationID)
			if parseErr != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, `field "organization_id" must be a valid UUID`))
				return
			}
			dto.OrganizationID = &orgID
		}

		if inviter.DistributorID != nil {
			org, orgErr := orgRepo.FindByID(ctx, *inviter.DistributorID)
			if orgErr != nil && !errors.Is(orgErr, gorm.ErrRecordNotFound) {
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeInternal, orgErr, "loading inviter organization"))
				return
			}
			if org != nil {
				dto.InviterCompany = org.CompanyName
				// Distributor admins invite into their own organization.
				if inviter.Role == enums.RoleDistributor && dto.OrganizationID == nil {
					id := org.ID
					dto.OrganizationID = &id
				}
			}
		}

		created, err := svc.Create(ctx, dto)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// InvitationVerify is the public pre-acceptance check. It never mutates
// state and reports invalid tokens as a negative result, not an error.
func InvitationVerify(svc *invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, `query parameter "token" is required`))
			return
		}

		result, err := svc.Verify(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func InvitationAccept(svc *invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body acceptInvitationRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Accept(r.Context(), body.Token, body.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func InvitationResend(svc *invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := validators.PathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if _, err := svc.Resend(ctx, id, actorScope(ctx)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}

func InvitationCancel(svc *invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := validators.PathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Cancel(ctx, id, actorScope(ctx)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}

func InvitationList(svc *invitations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		rows, err := svc.List(ctx, actorScope(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, rows)
	}
}

// actorScope returns nil for global admins, who see every invitation,
// and the caller's own ID otherwise.
func actorScope(ctx context.Context) *uuid.UUID {
	if role, ok := middleware.RoleFromContext(ctx); ok && role == enums.RoleAdmin {
		return nil
	}
	if id, ok := middleware.UserIDFromContext(ctx); ok {
		return &id
	}
	return nil
}
