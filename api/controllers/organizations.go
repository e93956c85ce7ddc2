package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/naosaki/naowatt-backend/api/responses"
	"github.com/naosaki/naowatt-backend/api/validators"
	"github.com/naosaki/naowatt-backend/internal/memberships"
	"github.com/naosaki/naowatt-backend/internal/organizations"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
)

type attachMemberRequest struct {
	UserID  string `json:"user_id" validate:"required,uuid"`
	IsAdmin bool   `json:"is_admin"`
}

type setMemberAdminRequest struct {
	IsAdmin *bool `json:"is_admin" validate:"required"`
}

func OrganizationList(svc *organizations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgs, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orgs)
	}
}

func OrganizationGet(svc *organizations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, err := validators.PathUUID(chi.URLParam(r, "orgID"), "orgID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		org, err := svc.Get(r.Context(), orgID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, org)
	}
}

func OrganizationMembers(svc *organizations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, err := validators.PathUUID(chi.URLParam(r, "orgID"), "orgID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		members, err := svc.ListMembers(r.Context(), orgID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, members)
	}
}

// MemberAttach links an existing user into the organization roster.
func MemberAttach(svc *memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orgID, err := validators.PathUUID(chi.URLParam(r, "orgID"), "orgID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body attachMemberRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID, err := validators.PathUUID(body.UserID, "user_id")
		if err != nil {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, `field "user_id" must be a valid UUID`))
			return
		}

		if err := svc.Attach(ctx, orgID, userID, body.IsAdmin); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}

// MemberDetach removes a user from the roster. Detaching an absent
// member succeeds, so retried deletes converge.
func MemberDetach(svc *memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orgID, err := validators.PathUUID(chi.URLParam(r, "orgID"), "orgID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, err := validators.PathUUID(chi.URLParam(r, "userID"), "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Detach(ctx, orgID, userID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}

// MemberSetAdmin flips a member's admin standing within the roster.
func MemberSetAdmin(svc *memberships.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		orgID, err := validators.PathUUID(chi.URLParam(r, "orgID"), "orgID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, err := validators.PathUUID(chi.URLParam(r, "userID"), "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var body setMemberAdminRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.SetAdmin(ctx, orgID, userID, *body.IsAdmin); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteNoContent(w)
	}
}
