package middleware

import (
	"net/http"
	"strings"

	"github.com/naosaki/naowatt-backend/api/responses"
	"github.com/naosaki/naowatt-backend/pkg/auth"
	"github.com/naosaki/naowatt-backend/pkg/auth/session"
	"github.com/naosaki/naowatt-backend/pkg/config"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
)

// Authenticate validates the bearer token and checks the session it was
// minted under is still live, so revoked tokens stop working before
// their JWT expiry.
func Authenticate(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			header := r.Header.Get("Authorization")
			if header == "" {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "missing authorization header"))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid authorization header"))
				return
			}

			claims, err := auth.ParseAccessToken(cfg, parts[1])
			if err != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token"))
				return
			}

			live, err := sessions.HasSession(ctx, claims.ID)
			if err != nil {
				responses.WriteError(ctx, logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "session lookup failed"))
				return
			}
			if !live {
				responses.WriteError(ctx, logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked"))
				return
			}

			ctx = WithUserID(ctx, claims.UserID)
			ctx = WithRole(ctx, claims.Role)
			ctx = WithOrgAdmin(ctx, claims.IsDistributorAdmin)
			ctx = WithClaims(ctx, claims)
			if claims.DistributorID != nil {
				ctx = WithOrganizationID(ctx, *claims.DistributorID)
			}

			ctx = logg.WithUserID(ctx, claims.UserID.String())
			ctx = logg.WithActorRole(ctx, claims.Role.String())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
