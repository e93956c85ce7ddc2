package organizations

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/internal/users"
	"github.com/naosaki/naowatt-backend/pkg/db/models"
	dbtypes "github.com/naosaki/naowatt-backend/pkg/db/types"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
)

const orgSchema = `
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
`

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.Exec(orgSchema).Error; err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return NewService(NewRepository(conn), users.NewRepository(conn)), conn
}

func seedMember(t *testing.T, conn *gorm.DB, orgID uuid.UUID, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID:            uuid.New(),
		Email:         email,
		PasswordHash:  "x",
		DisplayName:   "Member",
		Role:          enums.RoleDistributor,
		DistributorID: &orgID,
		IsActive:      true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func TestGet_UnknownOrganization(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Get(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected CodeNotFound, got %v", err)
	}
}

func TestListMembers_ResolvesAdminStanding(t *testing.T) {
	svc, conn := newTestService(t)

	org := &models.Organization{
		ID:           uuid.New(),
		CompanyName:  "Volt Distribution",
		ContactEmail: "ops@volt.example",
		Active:       true,
	}
	if err := conn.Create(org).Error; err != nil {
		t.Fatalf("seed org: %v", err)
	}

	admin := seedMember(t, conn, org.ID, "admin@volt.example")
	plain := seedMember(t, conn, org.ID, "plain@volt.example")

	err := conn.Model(&models.Organization{}).
		Where("id = ?", org.ID).
		UpdateColumns(map[string]any{
			"team_members":  dbtypes.UUIDArray{admin.ID, plain.ID},
			"admin_members": dbtypes.UUIDArray{admin.ID},
		}).Error
	if err != nil {
		t.Fatalf("seed rosters: %v", err)
	}

	members, err := svc.ListMembers(context.Background(), org.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	byID := map[uuid.UUID]bool{}
	for _, m := range members {
		byID[m.ID] = m.IsOrgAdmin
	}
	if !byID[admin.ID] {
		t.Fatalf("expected %s to be org admin", admin.Email)
	}
	if byID[plain.ID] {
		t.Fatalf("expected %s to not be org admin", plain.Email)
	}
}

func TestList_OrderedByCompanyName(t *testing.T) {
	svc, conn := newTestService(t)

	for _, name := range []string{"Zeta Energy", "Alpha Grid"} {
		org := &models.Organization{
			ID:           uuid.New(),
			CompanyName:  name,
			ContactEmail: fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
			Active:       true,
		}
		if err := conn.Create(org).Error; err != nil {
			t.Fatalf("seed org: %v", err)
		}
	}

	orgs, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(orgs) != 2 || orgs[0].CompanyName != "Alpha Grid" {
		t.Fatalf("expected alphabetical order, got %+v", orgs)
	}
}
