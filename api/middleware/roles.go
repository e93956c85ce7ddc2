package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/api/responses"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
)

// RequireRole allows the request through only when the authenticated
// role is one of allowed. Must run after Authenticate.
func RequireRole(logg *logger.Logger, allowed ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			role, ok := RoleFromContext(ctx)
			if !ok {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}

			for _, a := range allowed {
				if role == a {
					next.ServeHTTP(w, r)
					return
				}
			}

			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeForbidden, "insufficient permissions"))
		})
	}
}

// RequireInviter limits invitation management to the two inviter kinds:
// global admins, and distributors holding the admin flag in their own
// organization. A plain distributor team member is not an inviter. Must run
// after Authenticate.
func RequireInviter(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			role, ok := RoleFromContext(ctx)
			if !ok {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}

			if role == enums.RoleAdmin || (role == enums.RoleDistributor && OrgAdminFromContext(ctx)) {
				next.ServeHTTP(w, r)
				return
			}

			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeForbidden, "insufficient permissions"))
		})
	}
}

// RequireOrgAdmin guards organization member management routes: only a
// global admin, or an organization admin acting on their own
// organization, may pass. The org is taken from the orgID path param.
func RequireOrgAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			role, ok := RoleFromContext(ctx)
			if !ok {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}

			orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
			if err != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, `path parameter "orgID" must be a valid UUID`))
				return
			}

			if role == enums.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			ownOrg, hasOrg := OrganizationIDFromContext(ctx)
			if !hasOrg || ownOrg != orgID || !OrgAdminFromContext(ctx) {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
