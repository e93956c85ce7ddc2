package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/pkg/auth"
	"github.com/naosaki/naowatt-backend/pkg/enums"
)

type contextKey string

const (
	ctxKeyUserID    contextKey = "auth.user_id"
	ctxKeyRole      contextKey = "auth.role"
	ctxKeyOrgID     contextKey = "auth.org_id"
	ctxKeyOrgAdmin  contextKey = "auth.org_admin"
	ctxKeyClaims    contextKey = "auth.claims"
	ctxKeyRequestID contextKey = "request.id"
)

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, id)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKeyUserID).(uuid.UUID)
	return id, ok
}

func WithRole(ctx context.Context, role enums.Role) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) (enums.Role, bool) {
	role, ok := ctx.Value(ctxKeyRole).(enums.Role)
	return role, ok
}

func WithOrganizationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxKeyOrgID, id)
}

func OrganizationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxKeyOrgID).(uuid.UUID)
	return id, ok
}

func WithOrgAdmin(ctx context.Context, isAdmin bool) context.Context {
	return context.WithValue(ctx, ctxKeyOrgAdmin, isAdmin)
}

func OrgAdminFromContext(ctx context.Context) bool {
	isAdmin, _ := ctx.Value(ctxKeyOrgAdmin).(bool)
	return isAdmin
}

func WithClaims(ctx context.Context, claims *auth.AccessTokenClaims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

func ClaimsFromContext(ctx context.Context) (*auth.AccessTokenClaims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(*auth.AccessTokenClaims)
	return claims, ok
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
