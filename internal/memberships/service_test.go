package memberships

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/internal/organizations"
	"github.com/naosaki/naowatt-backend/internal/users"
	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/db"
	"github.com/naosaki/naowatt-backend/pkg/db/models"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
	"github.com/naosaki/naowatt-backend/pkg/metrics"
)

const membershipSchema = `
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
	if err := conn.Exec(membershipSchema).Error; err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	client := db.NewWithConn(conn)
	m := metrics.NewInvitationMetrics(prometheus.NewRegistry())
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := config.InvitationConfig{RetryAttempts: 3, RetryBaseWait: 1}

	svc := NewService(client, users.NewRepository(conn), organizations.NewRepository(conn), m, log, cfg)
	return svc, conn
}

func seedOrg(t *testing.T, conn *gorm.DB) *models.Organization {
	t.Helper()
	org := &models.Organization{
		ID:           uuid.New(),
		CompanyName:  "Volt Distribution",
		ContactEmail: "ops@volt.example",
		Active:       true,
	}
	if err := conn.Create(org).Error; err != nil {
		t.Fatalf("failed to seed organization: %v", err)
	}
	return org
}

func seedUser(t *testing.T, conn *gorm.DB, role enums.Role) *models.User {
	t.Helper()
	user := &models.User{
		ID:           uuid.New(),
		Email:        fmt.Sprintf("%s@volt.example", uuid.NewString()[:8]),
		PasswordHash: "x",
		DisplayName:  "Test User",
		Role:         role,
		IsActive:     true,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func TestAttach_LinksBothAggregates(t *testing.T) {
	svc, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	if err := svc.Attach(context.Background(), org.ID, user.ID, false); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	var gotUser models.User
	if err := conn.First(&gotUser, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if gotUser.DistributorID == nil || *gotUser.DistributorID != org.ID {
		t.Fatalf("expected user to point at org %s, got %v", org.ID, gotUser.DistributorID)
	}
	if gotUser.Version != 1 {
		t.Fatalf("expected user version 1, got %d", gotUser.Version)
	}

	var gotOrg models.Organization
	if err := conn.First(&gotOrg, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("reload org: %v", err)
	}
	if !gotOrg.TeamMembers.Contains(user.ID) {
		t.Fatal("expected user in team_members")
	}
	if gotOrg.AdminMembers.Contains(user.ID) {
		t.Fatal("attach must not grant admin standing")
	}
	if gotOrg.Version != 1 {
		t.Fatalf("expected org version 1, got %d", gotOrg.Version)
	}
}

func TestAttach_IsIdempotentForSameOrg(t *testing.T) {
	svc, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	ctx := context.Background()
	if err := svc.Attach(ctx, org.ID, user.ID, false); err != nil {
		t.Fatalf("first Attach failed: %v", err)
	}
	if err := svc.Attach(ctx, org.ID, user.ID, false); err != nil {
		t.Fatalf("second Attach should be a no-op, got: %v", err)
	}

	var gotOrg models.Organization
	if err := conn.First(&gotOrg, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("reload org: %v", err)
	}
	if len(gotOrg.TeamMembers) != 1 {
		t.Fatalf("expected a single roster entry, got %d", len(gotOrg.TeamMembers))
	}
	if gotOrg.Version != 1 {
		t.Fatalf("no-op attach must not bump version, got %d", gotOrg.Version)
	}
}

func TestAttach_RejectsCrossOrgMembership(t *testing.T) {
	svc, conn := newTestService(t)
	orgA := seedOrg(t, conn)
	orgB := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	ctx := context.Background()
	if err := svc.Attach(ctx, orgA.ID, user.ID, false); err != nil {
		t.Fatalf("Attach to first org failed: %v", err)
	}

	err := svc.Attach(ctx, orgB.ID, user.ID, false)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAttach_UnknownTargets(t *testing.T) {
	svc, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	ctx := context.Background()

	err := svc.Attach(ctx, uuid.New(), user.ID, false)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for missing org, got %v", err)
	}

	err = svc.Attach(ctx, org.ID, uuid.New(), false)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for missing user, got %v", err)
	}
}

func TestDetach_ClearsBothSidesIncludingAdmin(t *testing.T) {
	svc, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	ctx := context.Background()
	if err := svc.Attach(ctx, org.ID, user.ID, false); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := svc.SetAdmin(ctx, org.ID, user.ID, true); err != nil {
		t.Fatalf("SetAdmin failed: %v", err)
	}
	if err := svc.Detach(ctx, org.ID, user.ID); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	var gotUser models.User
	if err := conn.First(&gotUser, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if gotUser.DistributorID != nil {
		t.Fatal("expected distributor link cleared")
	}
	if gotUser.IsDistributorAdmin {
		t.Fatal("expected admin flag cleared")
	}

	var gotOrg models.Organization
	if err := conn.First(&gotOrg, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("reload org: %v", err)
	}
	if gotOrg.TeamMembers.Contains(user.ID) || gotOrg.AdminMembers.Contains(user.ID) {
		t.Fatal("expected user removed from both rosters")
	}
}

func TestDetach_NonMemberIsNoop(t *testing.T) {
	svc, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	if err := svc.Detach(context.Background(), org.ID, user.ID); err != nil {
		t.Fatalf("detaching a non-member should succeed, got: %v", err)
	}

	var gotOrg models.Organization
	if err := conn.First(&gotOrg, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("reload org: %v", err)
	}
	if gotOrg.Version != 0 {
		t.Fatalf("no-op detach must not bump version, got %d", gotOrg.Version)
	}
}

func TestSetAdmin_RequiresMembership(t *testing.T) {
	svc, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	err := svc.SetAdmin(context.Background(), org.ID, user.ID, true)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for non-member, got %v", err)
	}
}

func TestSetAdmin_GrantAndRevoke(t *testing.T) {
	svc, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	ctx := context.Background()
	if err := svc.Attach(ctx, org.ID, user.ID, false); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := svc.SetAdmin(ctx, org.ID, user.ID, true); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	var gotOrg models.Organization
	if err := conn.First(&gotOrg, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("reload org: %v", err)
	}
	if !gotOrg.AdminMembers.Contains(user.ID) {
		t.Fatal("expected user in admin_members")
	}
	if !gotOrg.TeamMembers.Contains(user.ID) {
		t.Fatal("admin must remain a team member")
	}

	if err := svc.SetAdmin(ctx, org.ID, user.ID, false); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if err := conn.First(&gotOrg, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("reload org: %v", err)
	}
	if gotOrg.AdminMembers.Contains(user.ID) {
		t.Fatal("expected user removed from admin_members")
	}

	var gotUser models.User
	if err := conn.First(&gotUser, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if gotUser.IsDistributorAdmin {
		t.Fatal("expected admin flag cleared after revoke")
	}
}

func TestAttach_AsAdminJoinsBothRosters(t *testing.T) {
	svc, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	if err := svc.Attach(context.Background(), org.ID, user.ID, true); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	var gotOrg models.Organization
	if err := conn.First(&gotOrg, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("reload org: %v", err)
	}
	if !gotOrg.TeamMembers.Contains(user.ID) || !gotOrg.AdminMembers.Contains(user.ID) {
		t.Fatal("expected user in both rosters")
	}

	var gotUser models.User
	if err := conn.First(&gotUser, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if !gotUser.IsDistributorAdmin {
		t.Fatal("expected admin flag set")
	}
}

func TestGuardedWrite_StaleVersionTouchesNothing(t *testing.T) {
	_, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	ctx := context.Background()
	orgRepo := organizations.NewRepository(conn)

	affected, err := orgRepo.UpdateMembersGuarded(ctx, org.ID, org.Version+10, org.TeamMembers.Add(user.ID), org.AdminMembers)
	if err != nil {
		t.Fatalf("guarded write errored: %v", err)
	}
	if affected != 0 {
		t.Fatalf("stale version must touch zero rows, got %d", affected)
	}

	userRepo := users.NewRepository(conn)
	affected, err = userRepo.UpdateMembershipGuarded(ctx, user.ID, user.Version+10, &org.ID, false)
	if err != nil {
		t.Fatalf("guarded write errored: %v", err)
	}
	if affected != 0 {
		t.Fatalf("stale version must touch zero rows, got %d", affected)
	}
}

func TestRun_PersistentContentionSurfacesConflict(t *testing.T) {
	svc, conn := newTestService(t)
	org := seedOrg(t, conn)
	user := seedUser(t, conn, enums.RoleDistributor)

	ctx := context.Background()
	orgRepo := organizations.NewRepository(conn)

	// Every attempt loses the version race: the guarded write is issued
	// against a version another writer already advanced past.
	attempts := 0
	err := svc.run(ctx, "attach", func(tx *gorm.DB) error {
		attempts++
		affected, err := orgRepo.WithDB(tx).UpdateMembersGuarded(
			ctx, org.ID, org.Version+10, org.TeamMembers.Add(user.ID), org.AdminMembers)
		if err != nil {
			return err
		}
		if affected != 0 {
			t.Fatalf("stale guard matched %d rows", affected)
		}
		return ErrStaleAggregate
	})

	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict after exhausted retries, got %v", err)
	}

	// Initial attempt plus the configured retries, then give up.
	if want := 1 + 3; attempts != want {
		t.Fatalf("expected %d attempts, got %d", want, attempts)
	}

	// The losing transactions rolled back: neither roster ever moved.
	var fresh models.Organization
	if err := conn.First(&fresh, "id = ?", org.ID).Error; err != nil {
		t.Fatalf("reloading organization: %v", err)
	}
	if len(fresh.TeamMembers) != 0 || len(fresh.AdminMembers) != 0 {
		t.Fatalf("contended transaction leaked roster writes: %+v", fresh)
	}
}
