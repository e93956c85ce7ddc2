package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/naosaki/naowatt-backend/internal/invitations"
	"github.com/naosaki/naowatt-backend/internal/users"
	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/db"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	"github.com/naosaki/naowatt-backend/pkg/mailer"
	"github.com/naosaki/naowatt-backend/pkg/metrics"
)

func TestInvitationResendRespondsNoContent(t *testing.T) {
	conn := testConn(t)

	// Acceptance never runs here, so no provisioner is wired.
	svc := invitations.NewService(
		db.NewWithConn(conn),
		invitations.NewRepository(conn),
		users.NewRepository(conn),
		nil,
		mailer.LogOnly{},
		metrics.NewInvitationMetrics(prometheus.NewRegistry()),
		discardLogger(),
		config.InvitationConfig{TTL: 7 * 24 * time.Hour, TokenBytes: 32, RetryAttempts: 1, RetryBaseWait: 1},
		"https://portal.test",
	)

	created, err := svc.Create(context.Background(), invitations.CreateInvitationDTO{
		Email:       "resend@volt.example",
		Name:        "Jordan Invitee",
		Role:        enums.RoleUser,
		InviterID:   uuid.New(),
		InviterName: "Sam Admin",
	})
	if err != nil {
		t.Fatalf("creating invitation: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/invitations/{id}/resend", InvitationResend(svc, discardLogger()))

	req := httptest.NewRequest(http.MethodPost, "/invitations/"+created.ID.String()+"/resend", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d (%s)", resp.Code, resp.Body.String())
	}
	if resp.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", resp.Body.String())
	}
}
