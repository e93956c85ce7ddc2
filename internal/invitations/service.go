package invitations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/internal/accounts"
	"github.com/naosaki/naowatt-backend/internal/memberships"
	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/db"
	"github.com/naosaki/naowatt-backend/pkg/db/models"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
	"github.com/naosaki/naowatt-backend/pkg/mailer"
	"github.com/naosaki/naowatt-backend/pkg/metrics"
	"github.com/naosaki/naowatt-backend/pkg/security"
)

// AccountProvisioner creates the identity and profile for an accepted
// invitation inside the acceptance transaction.
type AccountProvisioner interface {
	Provision(ctx context.Context, tx *gorm.DB, inv *models.Invitation, password string) (*accounts.ProvisionResult, error)
}

// EmailChecker reports whether an identity already exists for an email.
type EmailChecker interface {
	EmailTaken(ctx context.Context, email string) (bool, error)
}

// Service owns the invitation lifecycle: create, verify, accept, resend,
// cancel.
//
// Two deliberate choices around the open edges of the lifecycle:
//   - Exactly one pending invitation may exist per (email, inviter) pair. A
//     clashing create is rejected, except when the existing one has lapsed,
//     in which case the lapsed row is marked rejected and replaced.
//   - Resend restarts the acceptance window but keeps the token, so a link
//     already sitting in the invitee's inbox stays valid. Rotation happens
//     only through cancel-and-reissue, which mints a fresh token.
type Service struct {
	db          *db.Client
	repo        *Repository
	emails      EmailChecker
	provisioner AccountProvisioner
	mail        mailer.Mailer
	metrics     *metrics.InvitationMetrics
	log         *logger.Logger
	cfg         config.InvitationConfig
	portalURL   string
	now         func() time.Time
}

func NewService(
	client *db.Client,
	repo *Repository,
	emails EmailChecker,
	provisioner AccountProvisioner,
	mail mailer.Mailer,
	m *metrics.InvitationMetrics,
	log *logger.Logger,
	cfg config.InvitationConfig,
	portalURL string,
) *Service {
	return &Service{
		db:          client,
		repo:        repo,
		emails:      emails,
		provisioner: provisioner,
		mail:        mail,
		metrics:     m,
		log:         log,
		cfg:         cfg,
		portalURL:   strings.TrimRight(portalURL, "/"),
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create issues a new invitation and notifies the invitee. A send failure is
// logged, not surfaced: the invitation stands and can be resent.
func (s *Service) Create(ctx context.Context, dto CreateInvitationDTO) (*InvitationDTO, error) {
	email := strings.ToLower(strings.TrimSpace(dto.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(dto.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !dto.Role.IsInvitable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role cannot be granted by invitation")
	}
	if dto.Role == enums.RoleDistributor && dto.OrganizationID == nil {
		if dto.CompanyName == nil || strings.TrimSpace(*dto.CompanyName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "distributor invitations need an organization or a company name")
		}
	}

	taken, err := s.emails.EmailTaken(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to check existing accounts")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account already exists for this email")
	}

	now := s.now()
	if existing, findErr := s.repo.FindPendingByEmailAndInviter(ctx, email, dto.InviterID); findErr == nil {
		if !existing.Expired(now) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an invitation is already pending for this email").
				WithDetails(map[string]any{"invitation_id": existing.ID})
		}
		// Lapsed but still pending. Materialize the expiry so the fresh
		// invitation can take its place.
		if _, rejErr := s.repo.MarkRejected(ctx, existing.ID); rejErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, rejErr, "failed to retire lapsed invitation")
		}
		s.metrics.IncExpiredRejection()
	} else if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "failed to check pending invitations")
	}

	token, err := security.GenerateToken(s.cfg.TokenBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to generate invitation token")
	}

	inv := &models.Invitation{
		Email:          email,
		Name:           strings.TrimSpace(dto.Name),
		Role:           dto.Role,
		InviterID:      dto.InviterID,
		InviterName:    dto.InviterName,
		InviterCompany: dto.InviterCompany,
		Token:          token,
		Status:         enums.InvitationStatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.cfg.TTL),
	}
	if dto.CompanyName != nil {
		name := strings.TrimSpace(*dto.CompanyName)
		inv.CompanyName = &name
	}
	if dto.OrganizationID != nil {
		id := *dto.OrganizationID
		inv.OrganizationID = &id
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an invitation is already pending for this email")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create invitation")
	}
	s.metrics.IncCreated()

	s.sendInvitationMail(ctx, inv, enums.MailTemplateInvitation)
	return FromModel(inv, now), nil
}

// Verify answers whether a token can still be accepted. It never mutates
// state: a lapsed invitation stays pending in the store and simply reads as
// invalid.
func (s *Service) Verify(ctx context.Context, token string) (*VerificationDTO, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	inv, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &VerificationDTO{Valid: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load invitation")
	}

	now := s.now()
	if !inv.Pending(now) {
		return &VerificationDTO{Valid: false}, nil
	}
	return &VerificationDTO{Valid: true, Invitation: FromModel(inv, now)}, nil
}

// Accept consumes the token and provisions the account in one transaction.
// The validity check and the pending-to-accepted flip are a single guarded
// write, so a token can only ever be consumed once; any provisioning failure
// rolls the flip back and the invitation stays pending.
func (s *Service) Accept(ctx context.Context, token, password string) (*accounts.ProvisionResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	var result *accounts.ProvisionResult
	err := s.withContentionRetry(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithDB(tx)

		inv, err := txRepo.FindByToken(ctx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invitation token not recognized")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load invitation")
		}

		now := s.now()
		if inv.Status != enums.InvitationStatusPending {
			return pkgerrors.New(pkgerrors.CodeConflict, "invitation has already been used")
		}
		if inv.Expired(now) {
			s.metrics.IncExpiredRejection()
			return pkgerrors.New(pkgerrors.CodeExpired, "invitation has expired")
		}

		affected, err := txRepo.Consume(ctx, token, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to consume invitation")
		}
		if affected == 0 {
			// A concurrent accept won the race between our read and write.
			return pkgerrors.New(pkgerrors.CodeConflict, "invitation has already been used")
		}

		created, err := s.provisioner.Provision(ctx, tx, inv, password)
		if err != nil {
			return err
		}
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAccepted()
	return result, nil
}

// Resend restarts the acceptance window and re-sends the invitation email.
// The token is preserved so the original link keeps working. A non-nil
// actorID scopes the operation to that inviter's invitations; others
// surface as not found rather than confirming the invitation exists.
func (s *Service) Resend(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (*InvitationDTO, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load invitation")
	}
	if actorID != nil && inv.InviterID != *actorID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
	}
	if inv.Status != enums.InvitationStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "invitation has already been used")
	}

	now := s.now()
	affected, err := s.repo.RefreshWindow(ctx, id, now, now.Add(s.cfg.TTL))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to refresh invitation window")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "invitation has already been used")
	}

	inv.CreatedAt = now
	inv.ExpiresAt = now.Add(s.cfg.TTL)
	s.sendInvitationMail(ctx, inv, enums.MailTemplateInvitationReminder)
	return FromModel(inv, now), nil
}

// Cancel deletes the invitation. Cancelling an already-cancelled or unknown
// invitation succeeds silently. A non-nil actorID restricts cancellation to
// that inviter's invitations; a mismatch is treated the same as an unknown
// invitation.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error {
	if actorID != nil {
		inv, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load invitation")
		}
		if inv.InviterID != *actorID {
			return nil
		}
	}

	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to cancel invitation")
	}
	if affected > 0 {
		s.metrics.IncCancelled()
	}
	return nil
}

// List returns invitations visible to the caller: everything for admins,
// the inviter's own otherwise.
func (s *Service) List(ctx context.Context, inviterID *uuid.UUID) ([]InvitationDTO, error) {
	var (
		rows []models.Invitation
		err  error
	)
	if inviterID == nil {
		rows, err = s.repo.List(ctx)
	} else {
		rows, err = s.repo.ListByInviter(ctx, *inviterID)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list invitations")
	}

	now := s.now()
	out := make([]InvitationDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i], now))
	}
	return out, nil
}

func (s *Service) sendInvitationMail(ctx context.Context, inv *models.Invitation, template enums.MailTemplate) {
	variables := map[string]string{
		"name":            inv.Name,
		"inviter_name":    inv.InviterName,
		"inviter_company": inv.InviterCompany,
		"role":            inv.Role.String(),
		"link":            fmt.Sprintf("%s/invite?token=%s", s.portalURL, inv.Token),
		"expires_at":      inv.ExpiresAt.Format(time.RFC3339),
	}
	if err := s.mail.SendTemplated(ctx, template, inv.Email, variables); err != nil {
		s.log.Error(ctx, "failed to send invitation email", err)
	}
}

// withContentionRetry runs fn in a transaction, retrying the whole thing when
// a membership version guard trips during provisioning.
func (s *Service) withContentionRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	backoff := retry.WithMaxRetries(uint64(s.cfg.RetryAttempts), retry.NewFibonacci(s.cfg.RetryBaseWait))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		txErr := s.db.WithTx(ctx, fn)
		if errors.Is(txErr, memberships.ErrStaleAggregate) {
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, memberships.ErrStaleAggregate) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "membership update contended, please retry")
	}
	return err
}
