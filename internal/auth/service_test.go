package auth

import (
	"context"
	"fmt"
	"io"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/internal/users"
	pkgauth "github.com/naosaki/naowatt-backend/pkg/auth"
	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/db/models"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
	"github.com/naosaki/naowatt-backend/pkg/security"
)

const authSchema = `
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

type stubSessions struct {
	generated []string
	revoked   []string
}

func (s *stubSessions) Generate(_ context.Context, userID, accessID string) (string, error) {
	s.generated = append(s.generated, accessID)
	return "refresh-" + accessID, nil
}

func (s *stubSessions) Rotate(_ context.Context, _, oldAccessID, provided string) (string, string, error) {
	if provided != "refresh-"+oldAccessID {
		return "", "", fmt.Errorf("invalid refresh token")
	}
	return "rotated", "refresh-rotated", nil
}

func (s *stubSessions) Revoke(_ context.Context, _, accessID string) error {
	s.revoked = append(s.revoked, accessID)
	return nil
}

var testPasswordCfg = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

var testJWTCfg = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "naowatt-test",
	ExpirationMinutes: 15,
}

func newAuthService(t *testing.T) (*Service, *gorm.DB, *stubSessions) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.Exec(authSchema).Error; err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	sessions := &stubSessions{}
	log := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc := NewService(users.NewRepository(conn), sessions, log, testJWTCfg)
	return svc, conn, sessions
}

func seedAccount(t *testing.T, conn *gorm.DB, email, password string, active bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswordCfg)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Account Holder",
		Role:         enums.RoleUser,
		IsActive:     active,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return user
}

func TestLogin_Succeeds(t *testing.T) {
	svc, conn, sessions := newAuthService(t)
	seedAccount(t, conn, "login@x.com", "hunter2hunter2", true)

	res, err := svc.Login(context.Background(), "Login@X.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatal("expected a full credential pair")
	}
	if res.User == nil || res.User.Email != "login@x.com" {
		t.Fatalf("unexpected profile %+v", res.User)
	}
	if len(sessions.generated) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions.generated))
	}

	claims, err := pkgauth.ParseAccessToken(testJWTCfg, res.AccessToken)
	if err != nil {
		t.Fatalf("minted token must parse: %v", err)
	}
	if claims.Role != enums.RoleUser {
		t.Fatalf("unexpected role claim %s", claims.Role)
	}
	if claims.ID != sessions.generated[0] {
		t.Fatal("jti must match the stored session access id")
	}
}

func TestLogin_RecordsLastLogin(t *testing.T) {
	svc, conn, _ := newAuthService(t)
	user := seedAccount(t, conn, "stamp@x.com", "hunter2hunter2", true)

	if _, err := svc.Login(context.Background(), "stamp@x.com", "hunter2hunter2"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	var got models.User
	if err := conn.First(&got, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.LastLoginAt == nil {
		t.Fatal("expected last_login_at set")
	}
}

func TestLogin_IndistinguishableFailures(t *testing.T) {
	svc, conn, _ := newAuthService(t)
	seedAccount(t, conn, "known@x.com", "hunter2hunter2", true)
	seedAccount(t, conn, "inactive@x.com", "hunter2hunter2", false)

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "nobody@x.com", "hunter2hunter2"},
		{"wrong password", "known@x.com", "wrong-password"},
		{"deactivated account", "inactive@x.com", "hunter2hunter2"},
	}
	var messages []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tc.email, tc.password)
			coded := pkgerrors.As(err)
			if coded == nil || coded.Code() != pkgerrors.CodeUnauthorized {
				t.Fatalf("expected unauthorized, got %v", err)
			}
			messages = append(messages, coded.Message())
		})
	}
	for _, msg := range messages {
		if msg != messages[0] {
			t.Fatalf("failure messages must not reveal which check failed: %v", messages)
		}
	}
}

func TestRefresh_RotatesSession(t *testing.T) {
	svc, conn, sessions := newAuthService(t)
	seedAccount(t, conn, "rotate@x.com", "hunter2hunter2", true)

	login, err := svc.Login(context.Background(), "rotate@x.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	claims, err := pkgauth.ParseAccessToken(testJWTCfg, login.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	res, err := svc.Refresh(context.Background(), claims, login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if res.RefreshToken != "refresh-rotated" {
		t.Fatalf("expected rotated refresh token, got %s", res.RefreshToken)
	}

	newClaims, err := pkgauth.ParseAccessToken(testJWTCfg, res.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if newClaims.ID == claims.ID {
		t.Fatal("rotation must change the access id")
	}
	_ = sessions
}

func TestRefresh_RejectsBadToken(t *testing.T) {
	svc, conn, _ := newAuthService(t)
	seedAccount(t, conn, "bad@x.com", "hunter2hunter2", true)

	login, err := svc.Login(context.Background(), "bad@x.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	claims, err := pkgauth.ParseAccessToken(testJWTCfg, login.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	_, err = svc.Refresh(context.Background(), claims, "stolen-token")
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	svc, conn, sessions := newAuthService(t)
	seedAccount(t, conn, "out@x.com", "hunter2hunter2", true)

	login, err := svc.Login(context.Background(), "out@x.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	claims, err := pkgauth.ParseAccessToken(testJWTCfg, login.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	if err := svc.Logout(context.Background(), claims); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if len(sessions.revoked) != 1 || sessions.revoked[0] != claims.ID {
		t.Fatalf("expected the session revoked, got %v", sessions.revoked)
	}
}
