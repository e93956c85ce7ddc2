package accounts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

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
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
	"github.com/naosaki/naowatt-backend/pkg/mailer"
	"github.com/naosaki/naowatt-backend/pkg/metrics"
)

const accountSchema = `
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

type recordingRevoker struct {
	revoked []string
	fail    error
}

func (r *recordingRevoker) RevokeAllForUser(_ context.Context, userID string) error {
	if r.fail != nil {
		return r.fail
	}
	r.revoked = append(r.revoked, userID)
	return nil
}

func newTestProvisioner(t *testing.T, revoker SessionRevoker) (*Provisioner, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.Exec(accountSchema).Error; err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	client := db.NewWithConn(conn)
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	m := metrics.NewInvitationMetrics(prometheus.NewRegistry())
	invCfg := config.InvitationConfig{TTL: 7 * 24 * time.Hour, TokenBytes: 32, RetryAttempts: 3, RetryBaseWait: 1}
	pwCfg := config.PasswordConfig{ArgonMemoryKB: 8 * 1024, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}

	userRepo := users.NewRepository(conn)
	orgRepo := organizations.NewRepository(conn)
	membershipSvc := memberships.NewService(client, userRepo, orgRepo, m, log, invCfg)

	p := NewProvisioner(client, userRepo, orgRepo, membershipSvc, revoker, mailer.LogOnly{}, log, pwCfg, invCfg)
	return p, conn
}

func TestCreateDirect_PlainUser(t *testing.T) {
	p, conn := newTestProvisioner(t, &recordingRevoker{})

	res, err := p.CreateDirect(context.Background(), DirectCreateDTO{
		Email:    "direct@x.com",
		Name:     "Direct User",
		Role:     enums.RoleUser,
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("CreateDirect failed: %v", err)
	}
	if res.Role != enums.RoleUser || res.OrganizationID != nil {
		t.Fatalf("unexpected result %+v", res)
	}

	var user models.User
	if err := conn.First(&user, "id = ?", res.UserID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.PasswordHash == "" || user.PasswordHash == "hunter2hunter2" {
		t.Fatal("password must be stored hashed")
	}
}

func TestCreateDirect_GeneratesTempPassword(t *testing.T) {
	p, conn := newTestProvisioner(t, &recordingRevoker{})

	res, err := p.CreateDirect(context.Background(), DirectCreateDTO{
		Email: "temp@x.com",
		Name:  "Temp User",
		Role:  enums.RoleInstaller,
	})
	if err != nil {
		t.Fatalf("CreateDirect failed: %v", err)
	}

	var user models.User
	if err := conn.First(&user, "id = ?", res.UserID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.PasswordHash == "" {
		t.Fatal("expected a hashed temporary password")
	}
}

func TestCreateDirect_DuplicateEmail(t *testing.T) {
	p, _ := newTestProvisioner(t, &recordingRevoker{})
	ctx := context.Background()

	dto := DirectCreateDTO{Email: "dup@x.com", Name: "Dup", Role: enums.RoleUser, Password: "hunter2hunter2"}
	if _, err := p.CreateDirect(ctx, dto); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := p.CreateDirect(ctx, dto)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateDirect_DistributorCreatesOrganization(t *testing.T) {
	p, conn := newTestProvisioner(t, &recordingRevoker{})

	company := "Fresh Dist"
	res, err := p.CreateDirect(context.Background(), DirectCreateDTO{
		Email:       "owner@x.com",
		Name:        "Owner",
		Role:        enums.RoleDistributor,
		Password:    "hunter2hunter2",
		CompanyName: &company,
	})
	if err != nil {
		t.Fatalf("CreateDirect failed: %v", err)
	}
	if res.OrganizationID == nil {
		t.Fatal("expected organization for distributor")
	}

	var org models.Organization
	if err := conn.First(&org, "id = ?", res.OrganizationID).Error; err != nil {
		t.Fatalf("reload org: %v", err)
	}
	if !org.AdminMembers.Contains(res.UserID) {
		t.Fatal("creator must be the organization admin")
	}
}

func TestDeprovision_DetachesAndDeletesAndRevokes(t *testing.T) {
	revoker := &recordingRevoker{}
	p, conn := newTestProvisioner(t, revoker)
	ctx := context.Background()

	company := "Teardown Dist"
	res, err := p.CreateDirect(ctx, DirectCreateDTO{
		Email:       "bye@x.com",
		Name:        "Bye",
		Role:        enums.RoleDistributor,
		Password:    "hunter2hunter2",
		CompanyName: &company,
	})
	if err != nil {
		t.Fatalf("CreateDirect failed: %v", err)
	}

	if err := p.Deprovision(ctx, res.UserID); err != nil {
		t.Fatalf("Deprovision failed: %v", err)
	}

	var count int64
	if err := conn.Model(&models.User{}).Where("id = ?", res.UserID).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 0 {
		t.Fatal("expected profile row deleted")
	}

	var org models.Organization
	if err := conn.First(&org, "id = ?", res.OrganizationID).Error; err != nil {
		t.Fatalf("reload org: %v", err)
	}
	if org.TeamMembers.Contains(res.UserID) || org.AdminMembers.Contains(res.UserID) {
		t.Fatal("expected rosters cleared on deprovision")
	}

	if len(revoker.revoked) != 1 || revoker.revoked[0] != res.UserID.String() {
		t.Fatalf("expected a session revocation for the user, got %v", revoker.revoked)
	}
}

func TestDeprovision_UnknownUserConverges(t *testing.T) {
	revoker := &recordingRevoker{}
	p, _ := newTestProvisioner(t, revoker)

	if err := p.Deprovision(context.Background(), uuid.New()); err != nil {
		t.Fatalf("deprovisioning an absent profile must not be an error: %v", err)
	}
	if len(revoker.revoked) != 1 {
		t.Fatal("sessions should still be swept for an absent profile")
	}
}

func TestDeprovision_ReportsPartialFailure(t *testing.T) {
	revoker := &recordingRevoker{fail: errors.New("redis down")}
	p, conn := newTestProvisioner(t, revoker)
	ctx := context.Background()

	res, err := p.CreateDirect(ctx, DirectCreateDTO{
		Email:    "half@x.com",
		Name:     "Half",
		Role:     enums.RoleUser,
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("CreateDirect failed: %v", err)
	}

	err = p.Deprovision(ctx, res.UserID)
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error for partial failure, got %v", err)
	}
	details, ok := coded.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected structured details, got %T", coded.Details())
	}
	if details["profile_deleted"] != true || details["sessions_revoked"] != false {
		t.Fatalf("details must name the partial state, got %v", details)
	}

	// The profile is gone; a retry only has the identity left to sweep.
	var count int64
	if err := conn.Model(&models.User{}).Where("id = ?", res.UserID).Count(&count).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 0 {
		t.Fatal("profile delete should have committed despite revoke failure")
	}

	revoker.fail = nil
	if err := p.Deprovision(ctx, res.UserID); err != nil {
		t.Fatalf("retry after partial failure must converge: %v", err)
	}
}
