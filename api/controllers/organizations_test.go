package controllers

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/internal/memberships"
	"github.com/naosaki/naowatt-backend/internal/organizations"
	"github.com/naosaki/naowatt-backend/internal/users"
	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/db"
	"github.com/naosaki/naowatt-backend/pkg/db/models"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	"github.com/naosaki/naowatt-backend/pkg/logger"
	"github.com/naosaki/naowatt-backend/pkg/metrics"
)

const controllerSchema = `
CREATE TABLE organizations (
	id TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	contact_email TEXT NOT NULL,
	contact_phone TEXT,
	active BOOLEAN NOT NULL DEFAULT true,
	team_members TEXT NOT NULL DEFAULT '{}',
	admin_members TEXT NOT NULL DEFAULT '{}',
	version INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name TEXT NOT NULL,
	role TEXT NOT NULL,
	distributor_id TEXT,
	is_distributor_admin BOOLEAN NOT NULL DEFAULT false,
	managed_users TEXT NOT NULL DEFAULT '{}',
	version INTEGER NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT true,
	last_login_at DATETIME,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE invitations (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	name TEXT NOT NULL,
	role TEXT NOT NULL,
	company_name TEXT,
	organization_id TEXT,
	inviter_id TEXT NOT NULL,
	inviter_name TEXT NOT NULL,
	inviter_company TEXT,
	token TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME,
	expires_at DATETIME NOT NULL,
	accepted_at DATETIME
);
`

func testConn(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.Exec(controllerSchema).Error; err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return conn
}

func discardLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newMembershipService(t *testing.T, conn *gorm.DB) *memberships.Service {
	t.Helper()
	return memberships.NewService(
		db.NewWithConn(conn),
		users.NewRepository(conn),
		organizations.NewRepository(conn),
		metrics.NewInvitationMetrics(prometheus.NewRegistry()),
		discardLogger(),
		config.InvitationConfig{RetryAttempts: 2, RetryBaseWait: 1},
	)
}

func TestMemberAttachRespondsNoContent(t *testing.T) {
	conn := testConn(t)

	org := &models.Organization{
		ID:           uuid.New(),
		CompanyName:  "Volt Distribution",
		ContactEmail: "ops@volt.example",
		Active:       true,
	}
	if err := conn.Create(org).Error; err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        "member@volt.example",
		PasswordHash: "x",
		DisplayName:  "Plain Member",
		Role:         enums.RoleDistributor,
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/organizations/{orgID}/members", MemberAttach(newMembershipService(t, conn), discardLogger()))

	body := fmt.Sprintf(`{"user_id": %q, "is_admin": false}`, user.ID)
	req := httptest.NewRequest(http.MethodPost, "/organizations/"+org.ID.String()+"/members", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d (%s)", resp.Code, resp.Body.String())
	}
	if resp.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", resp.Body.String())
	}

	var fresh models.Organization
	if err := conn.First(&fresh, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("reloading organization: %v", err)
	}
	if !fresh.TeamMembers.Contains(user.ID) {
		t.Fatal("attach did not land in the roster")
	}
}
