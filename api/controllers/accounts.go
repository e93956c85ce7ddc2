package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/api/responses"
	"github.com/naosaki/naowatt-backend/api/validators"
	"github.com/naosaki/naowatt-backend/internal/accounts"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
)

type createUserRequest struct {
	Email          string  `json:"email" validate:"required,email"`
	Name           string  `json:"name" validate:"required,max=200"`
	Role           string  `json:"role" validate:"required,oneof=admin user distributor installer"`
	Password       string  `json:"password,omitempty" validate:"omitempty,min=8"`
	OrganizationID *string `json:"organization_id,omitempty" validate:"omitempty,uuid"`
	CompanyName    *string `json:"company_name,omitempty" validate:"omitempty,max=200"`
}

// UserCreate is the admin path that bypasses the invitation flow.
func UserCreate(prov *accounts.Provisioner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body createUserRequest
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

		dto := accounts.DirectCreateDTO{
			Email:       body.Email,
			Name:        body.Name,
			Role:        role,
			Password:    body.Password,
			CompanyName: body.CompanyName,
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

		result, err := prov.CreateDirect(ctx, dto)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// UserDeprovision tears an account down: membership detach, profile
// delete, session sweep. Converges on repeat calls.
func UserDeprovision(prov *accounts.Provisioner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		uid, err := validators.PathUUID(chi.URLParam(r, "uid"), "uid")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := prov.Deprovision(ctx, uid); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}
