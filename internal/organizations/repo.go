package organizations

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/pkg/db/models"
	dbtypes "github.com/naosaki/naowatt-backend/pkg/db/types"
)

// Repository exposes organization persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an organizations repo bound to the provided GORM
// DB. Passing a transaction handle scopes every operation to that transaction.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithDB returns a copy of the repository bound to the given handle.
func (r *Repository) WithDB(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new organization row.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

// FindByID loads an organization by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// FindByContactEmail retrieves the organization registered under the email.
func (r *Repository) FindByContactEmail(ctx context.Context, email string) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where("contact_email = ?", email).First(&org).Error; err != nil {
		return nil, err
	}
	return &org, nil
}

// UpdateMembersGuarded writes both member arrays only when the row still
// carries the expected version, bumping the version on success. Returns the
// number of rows touched; zero means a concurrent writer won.
func (r *Repository) UpdateMembersGuarded(ctx context.Context, id uuid.UUID, expectedVersion int64, team, admins dbtypes.UUIDArray) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Organization{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		UpdateColumns(map[string]any{
			"team_members":  team,
			"admin_members": admins,
			"version":       expectedVersion + 1,
		})
	return res.RowsAffected, res.Error
}

// SetActive toggles the organization's active flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Organization{}).
		Where("id = ?", id).
		UpdateColumn("active", active)
	return res.RowsAffected, res.Error
}

// List returns every organization ordered by company name.
func (r *Repository) List(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	err := r.db.WithContext(ctx).Order("company_name ASC").Find(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}
