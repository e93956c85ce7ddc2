package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/pkg/auth"
	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	"github.com/naosaki/naowatt-backend/pkg/logger"
)

type stubSessionChecker struct {
	live bool
}

func (s stubSessionChecker) HasSession(ctx context.Context, accessID string) (bool, error) {
	return s.live, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "secret", Issuer: "naowatt", ExpirationMinutes: 10}
	return cfg
}

func testRouter() http.Handler {
	return NewRouter(Deps{
		Config:   testConfig(),
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Sessions: stubSessionChecker{},
	})
}

func TestHealthLive(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if env := resp.Header().Get("X-NaoWatt-Env"); env != "test" {
		t.Fatalf("expected env header, got %q", env)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r := testRouter()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/catalog/documents"},
		{http.MethodGet, "/api/v1/invitations/"},
		{http.MethodPost, "/api/v1/organizations/b1946ac9-2f6e-4bfb-ae16-8f9a1f1c0001/members"},
		{http.MethodPost, "/api/admin/v1/users"},
		{http.MethodDelete, "/api/admin/v1/catalog/documents/b1946ac9-2f6e-4bfb-ae16-8f9a1f1c0001"},
	}

	for _, tc := range routes {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401 got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestInvitationRoutesRequireInviterStanding(t *testing.T) {
	cfg := testConfig()
	r := NewRouter(Deps{
		Config:   cfg,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Sessions: stubSessionChecker{live: true},
	})

	mint := func(t *testing.T, orgAdmin bool) string {
		t.Helper()
		orgID := uuid.New()
		token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
			UserID:             uuid.New(),
			Role:               enums.RoleDistributor,
			DistributorID:      &orgID,
			IsDistributorAdmin: orgAdmin,
		})
		if err != nil {
			t.Fatalf("minting token: %v", err)
		}
		return token
	}

	// A distributor without the org-admin flag must be stopped at the
	// authorization boundary on every invitation management route.
	member := mint(t, false)
	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/invitations/"},
		{http.MethodGet, "/api/v1/invitations/"},
		{http.MethodPost, "/api/v1/invitations/" + uuid.NewString() + "/resend"},
		{http.MethodDelete, "/api/v1/invitations/" + uuid.NewString()},
	}
	for _, tc := range routes {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+member)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403 for plain team member, got %d", tc.method, tc.path, resp.Code)
		}
	}

	// An org admin clears authorization: the empty body is rejected by
	// validation (400), not by the permission boundary (403).
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invitations/", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+mint(t, true))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected org admin to reach validation (400), got %d", resp.Code)
	}
}

func TestVerifyIsPublic(t *testing.T) {
	r := testRouter()

	// No token query parameter: the route itself must answer (400), not
	// the auth middleware (401).
	req := httptest.NewRequest(http.MethodGet, "/api/v1/invitations/verify", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
