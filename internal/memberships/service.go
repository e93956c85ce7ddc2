package memberships

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/internal/organizations"
	"github.com/naosaki/naowatt-backend/internal/users"
	"github.com/naosaki/naowatt-backend/pkg/config"
	"github.com/naosaki/naowatt-backend/pkg/db"
	"github.com/naosaki/naowatt-backend/pkg/db/models"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
	"github.com/naosaki/naowatt-backend/pkg/metrics"
)

// ErrStaleAggregate signals that a version-guarded write touched zero rows,
// meaning a concurrent writer advanced one of the aggregates between our read
// and our write. Callers roll back the enclosing transaction and retry it as
// a whole.
var ErrStaleAggregate = errors.New("membership aggregate changed concurrently")

// Service keeps the Organization and User sides of a membership in agreement.
// Every mutation runs as a single transaction over both aggregates, guarded by
// their version columns and retried with bounded backoff when a guard trips.
type Service struct {
	db      *db.Client
	users   *users.Repository
	orgs    *organizations.Repository
	metrics *metrics.InvitationMetrics
	log     *logger.Logger
	cfg     config.InvitationConfig
}

func NewService(client *db.Client, userRepo *users.Repository, orgRepo *organizations.Repository, m *metrics.InvitationMetrics, log *logger.Logger, cfg config.InvitationConfig) *Service {
	return &Service{
		db:      client,
		users:   userRepo,
		orgs:    orgRepo,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
}

// Attach links the user to the organization: the user's distributor_id is set
// and the user joins the organization's rosters in the same transaction.
// Attaching an already-attached member is a no-op; attaching a user that
// belongs to a different organization is a conflict.
func (s *Service) Attach(ctx context.Context, orgID, userID uuid.UUID, asAdmin bool) error {
	return s.run(ctx, "attach", func(tx *gorm.DB) error {
		return s.AttachWithin(ctx, tx, orgID, userID, asAdmin)
	})
}

// AttachWithin applies the attach inside an existing transaction handle. It
// exists so account provisioning can link a fresh distributor user in the
// same transaction that creates the account. Returns ErrStaleAggregate when a
// version guard trips; the caller owns the rollback-and-retry decision.
func (s *Service) AttachWithin(ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID, asAdmin bool) error {
	org, user, err := s.loadPair(ctx, tx, orgID, userID)
	if err != nil {
		return err
	}

	if user.DistributorID != nil {
		if *user.DistributorID == orgID {
			if user.IsDistributorAdmin == asAdmin {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "user already attached with a different admin standing")
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "user already belongs to another organization")
	}

	team := org.TeamMembers.Add(userID)
	admins := org.AdminMembers
	if asAdmin {
		admins = admins.Add(userID)
	}
	affected, err := s.orgs.WithDB(tx).UpdateMembersGuarded(ctx, orgID, org.Version, team, admins)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStaleAggregate
	}

	affected, err = s.users.WithDB(tx).UpdateMembershipGuarded(ctx, userID, user.Version, &orgID, asAdmin)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStaleAggregate
	}
	return nil
}

// Detach removes the user from the organization: the roster entries (team and
// admin) and the user's distributor linkage are cleared together. Detaching a
// user that is not a member is a no-op.
func (s *Service) Detach(ctx context.Context, orgID, userID uuid.UUID) error {
	return s.run(ctx, "detach", func(tx *gorm.DB) error {
		return s.DetachWithin(ctx, tx, orgID, userID)
	})
}

// DetachWithin applies the detach inside an existing transaction handle, for
// callers that must clear the linkage and delete the profile as one unit.
// Returns ErrStaleAggregate when a version guard trips.
func (s *Service) DetachWithin(ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID) error {
	org, user, err := s.loadPair(ctx, tx, orgID, userID)
	if err != nil {
		return err
	}

	attached := user.DistributorID != nil && *user.DistributorID == orgID
	if !attached && !org.TeamMembers.Contains(userID) {
		return nil
	}

	team := org.TeamMembers.Remove(userID)
	admins := org.AdminMembers.Remove(userID)
	affected, err := s.orgs.WithDB(tx).UpdateMembersGuarded(ctx, orgID, org.Version, team, admins)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrStaleAggregate
	}

	if attached {
		affected, err = s.users.WithDB(tx).UpdateMembershipGuarded(ctx, userID, user.Version, nil, false)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrStaleAggregate
		}
	}
	return nil
}

// SetAdmin grants or revokes organization-admin standing for an existing
// member, keeping the admin roster and the user's flag in step. The user must
// already be attached to the organization; an admin entry without a matching
// team entry is never created.
func (s *Service) SetAdmin(ctx context.Context, orgID, userID uuid.UUID, isAdmin bool) error {
	return s.run(ctx, "set_admin", func(tx *gorm.DB) error {
		org, user, err := s.loadPair(ctx, tx, orgID, userID)
		if err != nil {
			return err
		}

		if user.DistributorID == nil || *user.DistributorID != orgID {
			return pkgerrors.New(pkgerrors.CodeConflict, "user is not a member of the organization")
		}
		if user.IsDistributorAdmin == isAdmin && org.AdminMembers.Contains(userID) == isAdmin {
			return nil
		}

		admins := org.AdminMembers.Remove(userID)
		if isAdmin {
			admins = admins.Add(userID)
		}
		affected, err := s.orgs.WithDB(tx).UpdateMembersGuarded(ctx, orgID, org.Version, org.TeamMembers, admins)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrStaleAggregate
		}

		affected, err = s.users.WithDB(tx).UpdateMembershipGuarded(ctx, userID, user.Version, user.DistributorID, isAdmin)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrStaleAggregate
		}
		return nil
	})
}

// run executes fn inside a transaction, retrying the whole transaction with
// capped fibonacci backoff whenever a version guard trips. Exhausting the
// retry budget surfaces as a retryable state conflict to the caller.
func (s *Service) run(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	backoff := retry.WithMaxRetries(uint64(s.cfg.RetryAttempts), retry.NewFibonacci(s.cfg.RetryBaseWait))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		txErr := s.db.WithTx(ctx, fn)
		if errors.Is(txErr, ErrStaleAggregate) {
			s.metrics.IncMembershipConflict(operation)
			s.log.Warn(s.log.WithField(ctx, "operation", operation), "membership transaction lost a version race, retrying")
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStaleAggregate) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "membership update contended, please retry").
			WithDetails(map[string]any{"operation": operation})
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "membership transaction failed")
}

// loadPair fetches both sides of the membership inside the transaction,
// translating missing rows into not-found errors.
func (s *Service) loadPair(ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID) (*models.Organization, *models.User, error) {
	org, err := s.orgs.WithDB(tx).FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "organization not found")
		}
		return nil, nil, err
	}

	user, err := s.users.WithDB(tx).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, nil, err
	}
	return org, user, nil
}
