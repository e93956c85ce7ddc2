package accounts

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
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
	"github.com/naosaki/naowatt-backend/pkg/security"
)

const minPasswordLength = 8

// SessionRevoker tears down every live session for a user. Satisfied by the
// session manager; stubbed in tests.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// ProvisionResult reports the account created from an invitation or a direct
// admin request.
type ProvisionResult struct {
	UserID         uuid.UUID  `json:"uid"`
	Role           enums.Role `json:"role"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
}

// DirectCreateDTO is the admin-issued account creation request. When Password
// is empty a temporary one is generated and included in the welcome email.
type DirectCreateDTO struct {
	Email          string
	Name           string
	Role           enums.Role
	Password       string
	OrganizationID *uuid.UUID
	CompanyName    *string
}

// Provisioner turns accepted invitations and direct admin requests into
// identity plus profile records, and tears them down again. Creation of the
// profile and its organization linkage is one transaction; the invitation
// acceptance path passes its own transaction handle in so the status flip
// rides along.
type Provisioner struct {
	db          *db.Client
	users       *users.Repository
	orgs        *organizations.Repository
	memberships *memberships.Service
	sessions    SessionRevoker
	mail        mailer.Mailer
	log         *logger.Logger
	passwordCfg config.PasswordConfig
	retryCfg    config.InvitationConfig
}

func NewProvisioner(
	client *db.Client,
	userRepo *users.Repository,
	orgRepo *organizations.Repository,
	membershipSvc *memberships.Service,
	sessions SessionRevoker,
	mail mailer.Mailer,
	log *logger.Logger,
	passwordCfg config.PasswordConfig,
	retryCfg config.InvitationConfig,
) *Provisioner {
	return &Provisioner{
		db:          client,
		users:       userRepo,
		orgs:        orgRepo,
		memberships: membershipSvc,
		sessions:    sessions,
		mail:        mail,
		log:         log,
		passwordCfg: passwordCfg,
		retryCfg:    retryCfg,
	}
}

// Provision creates the account described by an invitation inside the
// caller's transaction. A distributor invitation that names an organization
// joins it; one that names a company instead creates a fresh organization
// with the new user as its sole admin member. Returns memberships'
// ErrStaleAggregate unchanged so the caller can retry the whole transaction.
func (p *Provisioner) Provision(ctx context.Context, tx *gorm.DB, inv *models.Invitation, password string) (*ProvisionResult, error) {
	return p.createAccount(ctx, tx, accountParams{
		email:          inv.Email,
		displayName:    inv.Name,
		role:           inv.Role,
		password:       password,
		organizationID: inv.OrganizationID,
		companyName:    inv.CompanyName,
	})
}

// CreateDirect provisions an account without an invitation, for admin use.
// The welcome email carries the temporary password when one was generated.
func (p *Provisioner) CreateDirect(ctx context.Context, dto DirectCreateDTO) (*ProvisionResult, error) {
	password := dto.Password
	generated := false
	if password == "" {
		temp, err := security.GenerateTempPassword(12)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to generate temporary password")
		}
		password = temp
		generated = true
	}

	var result *ProvisionResult
	err := p.withContentionRetry(ctx, func(tx *gorm.DB) error {
		created, err := p.createAccount(ctx, tx, accountParams{
			email:          dto.Email,
			displayName:    dto.Name,
			role:           dto.Role,
			password:       password,
			organizationID: dto.OrganizationID,
			companyName:    dto.CompanyName,
		})
		if err != nil {
			return err
		}
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	variables := map[string]string{
		"name":  dto.Name,
		"email": dto.Email,
		"role":  dto.Role.String(),
	}
	if generated {
		variables["temporary_password"] = password
	}
	if mailErr := p.mail.SendTemplated(ctx, enums.MailTemplateAccountCreated, dto.Email, variables); mailErr != nil {
		p.log.Error(ctx, "failed to send account creation email", mailErr)
	}

	return result, nil
}

// Deprovision removes the account as a unit: the organization linkage and the
// profile row go in one transaction, then every live session is revoked. A
// missing profile is treated as already deleted so retries converge. When the
// profile is gone but session revocation fails, the error reports the partial
// state so the caller knows a retry is safe.
func (p *Provisioner) Deprovision(ctx context.Context, userID uuid.UUID) error {
	profileDeleted := false

	profileErr := p.withContentionRetry(ctx, func(tx *gorm.DB) error {
		user, err := p.users.WithDB(tx).FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if user.DistributorID != nil {
			if err := p.memberships.DetachWithin(ctx, tx, *user.DistributorID, userID); err != nil {
				return err
			}
		}
		return p.users.WithDB(tx).Delete(ctx, userID)
	})
	if profileErr == nil {
		profileDeleted = true
	}

	identityErr := p.sessions.RevokeAllForUser(ctx, userID.String())

	switch {
	case profileErr == nil && identityErr == nil:
		return nil
	case profileErr != nil && identityErr != nil:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, multierr.Combine(profileErr, identityErr), "account deprovisioning failed")
	case identityErr != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, identityErr, "account partially deprovisioned").
			WithDetails(map[string]any{"profile_deleted": profileDeleted, "sessions_revoked": false})
	default:
		if coded := pkgerrors.As(profileErr); coded != nil {
			return coded.WithDetails(map[string]any{"profile_deleted": false, "sessions_revoked": true})
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, profileErr, "account partially deprovisioned").
			WithDetails(map[string]any{"profile_deleted": false, "sessions_revoked": true})
	}
}

type accountParams struct {
	email          string
	displayName    string
	role           enums.Role
	password       string
	organizationID *uuid.UUID
	companyName    *string
}

func (p *Provisioner) createAccount(ctx context.Context, tx *gorm.DB, params accountParams) (*ProvisionResult, error) {
	email := strings.ToLower(strings.TrimSpace(params.email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !params.role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown role")
	}
	if len(params.password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if params.role == enums.RoleDistributor && params.organizationID == nil {
		if params.companyName == nil || strings.TrimSpace(*params.companyName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "distributor accounts need an organization or a company name")
		}
	}

	txUsers := p.users.WithDB(tx)
	if _, err := txUsers.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account already exists for this email")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to check existing accounts")
	}

	hash, err := security.HashPassword(params.password, p.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to hash password")
	}

	user, err := txUsers.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  params.displayName,
		Role:         params.role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create user profile")
	}

	result := &ProvisionResult{UserID: user.ID, Role: user.Role}
	if params.role != enums.RoleDistributor {
		return result, nil
	}

	if params.organizationID != nil {
		if err := p.memberships.AttachWithin(ctx, tx, *params.organizationID, user.ID, false); err != nil {
			return nil, err
		}
		result.OrganizationID = params.organizationID
		return result, nil
	}

	org := &models.Organization{
		CompanyName:  strings.TrimSpace(*params.companyName),
		ContactEmail: email,
		Active:       true,
	}
	if err := p.orgs.WithDB(tx).Create(ctx, org); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create organization")
	}
	if err := p.memberships.AttachWithin(ctx, tx, org.ID, user.ID, true); err != nil {
		return nil, err
	}
	result.OrganizationID = &org.ID
	return result, nil
}

// withContentionRetry runs fn in a transaction, retrying the whole thing when
// a membership version guard trips.
func (p *Provisioner) withContentionRetry(ctx context.Context, fn func(tx *gorm.DB) error) error {
	backoff := retry.WithMaxRetries(uint64(p.retryCfg.RetryAttempts), retry.NewFibonacci(p.retryCfg.RetryBaseWait))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		txErr := p.db.WithTx(ctx, fn)
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
