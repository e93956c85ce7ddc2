package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/pkg/enums"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name    string
		role    enums.Role
		allowed []enums.Role
		want    int
	}{
		{"admin allowed", enums.RoleAdmin, []enums.Role{enums.RoleAdmin}, http.StatusOK},
		{"any of several", enums.RoleDistributor, []enums.Role{enums.RoleAdmin, enums.RoleDistributor}, http.StatusOK},
		{"installer denied", enums.RoleInstaller, []enums.Role{enums.RoleAdmin}, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireRole(testLogger(), tc.allowed...)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithRole(req.Context(), tc.role))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestRequireInviter(t *testing.T) {
	cases := []struct {
		name     string
		role     enums.Role
		orgAdmin bool
		want     int
	}{
		{"global admin", enums.RoleAdmin, false, http.StatusOK},
		{"distributor org admin", enums.RoleDistributor, true, http.StatusOK},
		{"distributor team member", enums.RoleDistributor, false, http.StatusForbidden},
		{"plain user", enums.RoleUser, false, http.StatusForbidden},
		{"installer", enums.RoleInstaller, false, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireInviter(testLogger())(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/", nil)
			ctx := WithRole(req.Context(), tc.role)
			ctx = WithOrgAdmin(ctx, tc.orgAdmin)
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req.WithContext(ctx))

			if resp.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, resp.Code)
			}
		})
	}
}

func TestRequireInviterWithoutAuthContext(t *testing.T) {
	handler := RequireInviter(testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireRoleWithoutAuthContext(t *testing.T) {
	handler := RequireRole(testLogger(), enums.RoleAdmin)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func memberRoute(mw func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.With(mw).Get("/organizations/{orgID}/members", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestRequireOrgAdmin_GlobalAdminBypasses(t *testing.T) {
	r := memberRoute(RequireOrgAdmin(testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/organizations/"+uuid.NewString()+"/members", nil)
	req = req.WithContext(WithRole(req.Context(), enums.RoleAdmin))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRequireOrgAdmin_OwnOrganization(t *testing.T) {
	orgID := uuid.New()
	r := memberRoute(RequireOrgAdmin(testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/organizations/"+orgID.String()+"/members", nil)
	ctx := WithRole(req.Context(), enums.RoleDistributor)
	ctx = WithOrganizationID(ctx, orgID)
	ctx = WithOrgAdmin(ctx, true)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRequireOrgAdmin_DeniesOtherOrganizations(t *testing.T) {
	r := memberRoute(RequireOrgAdmin(testLogger()))

	// Org admin of a different organization.
	req := httptest.NewRequest(http.MethodGet, "/organizations/"+uuid.NewString()+"/members", nil)
	ctx := WithRole(req.Context(), enums.RoleDistributor)
	ctx = WithOrganizationID(ctx, uuid.New())
	ctx = WithOrgAdmin(ctx, true)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRequireOrgAdmin_DeniesPlainMember(t *testing.T) {
	orgID := uuid.New()
	r := memberRoute(RequireOrgAdmin(testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/organizations/"+orgID.String()+"/members", nil)
	ctx := WithRole(req.Context(), enums.RoleDistributor)
	ctx = WithOrganizationID(ctx, orgID)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req.WithContext(ctx))

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
