package invitations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/pkg/db/models"
	"github.com/naosaki/naowatt-backend/pkg/enums"
)

// Repository exposes invitation persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an invitations repo bound to the provided GORM DB.
// Passing a transaction handle scopes every operation to that transaction.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithDB returns a copy of the repository bound to the given handle.
func (r *Repository) WithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new invitation row.
func (r *Repository) Create(ctx context.Context, inv *models.Invitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

// FindByToken loads an invitation by its opaque token.
func (r *Repository) FindByToken(ctx context.Context, token string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindByID loads an invitation by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	var inv models.Invitation
	if err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindPendingByEmailAndInviter returns the pending invitation for the
// (email, inviter) pair, whether or not its window has closed.
func (r *Repository) FindPendingByEmailAndInviter(ctx context.Context, email string, inviterID uuid.UUID) (*models.Invitation, error) {
	var inv models.Invitation
	err := r.db.WithContext(ctx).
		Where("email = ? AND inviter_id = ? AND status = ?", email, inviterID, enums.InvitationStatusPending).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// MarkRejected flips a pending invitation to rejected. Used to materialize
// soft expiry when a fresh invitation replaces a lapsed one.
func (r *Repository) MarkRejected(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, enums.InvitationStatusPending).
		UpdateColumn("status", enums.InvitationStatusRejected)
	return res.RowsAffected, res.Error
}

// Consume flips a pending, unexpired invitation to accepted in one statement.
// The validity check and the status transition share the same write so two
// racing accepts can never both succeed.
func (r *Repository) Consume(ctx context.Context, token string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("token = ? AND status = ? AND expires_at > ?", token, enums.InvitationStatusPending, now).
		UpdateColumns(map[string]any{
			"status":      enums.InvitationStatusAccepted,
			"accepted_at": now,
		})
	return res.RowsAffected, res.Error
}

// RefreshWindow restarts the acceptance window of a pending invitation,
// leaving the token untouched.
func (r *Repository) RefreshWindow(ctx context.Context, id uuid.UUID, createdAt, expiresAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, enums.InvitationStatusPending).
		UpdateColumns(map[string]any{
			"created_at": createdAt,
			"expires_at": expiresAt,
		})
	return res.RowsAffected, res.Error
}

// Delete removes the invitation row. Deleting an absent row is not an error.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Invitation{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// ListByInviter returns every invitation issued by the given inviter, newest
// first.
func (r *Repository) ListByInviter(ctx context.Context, inviterID uuid.UUID) ([]models.Invitation, error) {
	var rows []models.Invitation
	err := r.db.WithContext(ctx).
		Where("inviter_id = ?", inviterID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// List returns every invitation, newest first. Admin use.
func (r *Repository) List(ctx context.Context) ([]models.Invitation, error) {
	var rows []models.Invitation
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
