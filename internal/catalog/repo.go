package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/pkg/db/models"
	"github.com/naosaki/naowatt-backend/pkg/pagination"
)

// Repository exposes persistence for the five access-controlled catalog
// entities. The shape-generic helpers keep the per-entity surface thin.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func getByID[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) (*T, error) {
	var row T
	if err := db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func createRow[T any](ctx context.Context, db *gorm.DB, row *T) error {
	return db.WithContext(ctx).Create(row).Error
}

func saveRow[T any](ctx context.Context, db *gorm.DB, row *T) error {
	return db.WithContext(ctx).Save(row).Error
}

func deleteByID[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) (int64, error) {
	var zero T
	res := db.WithContext(ctx).Delete(&zero, "id = ?", id)
	return res.RowsAffected, res.Error
}

// cursorScope applies keyset pagination over (created_at, id) descending.
func cursorScope(cursor *pagination.Cursor) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if cursor != nil {
			db = db.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
		}
		return db.Order("created_at DESC, id DESC")
	}
}

func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return getByID[models.Category](ctx, r.db, id)
}

func (r *Repository) CreateCategory(ctx context.Context, row *models.Category) error {
	return createRow(ctx, r.db, row)
}

func (r *Repository) SaveCategory(ctx context.Context, row *models.Category) error {
	return saveRow(ctx, r.db, row)
}

func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) (int64, error) {
	return deleteByID[models.Category](ctx, r.db, id)
}

// ListCategories returns every category in tree order. The catalog tree is
// small; no pagination.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("sort_order ASC, name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) GetProductType(ctx context.Context, id uuid.UUID) (*models.ProductType, error) {
	return getByID[models.ProductType](ctx, r.db, id)
}

func (r *Repository) CreateProductType(ctx context.Context, row *models.ProductType) error {
	return createRow(ctx, r.db, row)
}

func (r *Repository) SaveProductType(ctx context.Context, row *models.ProductType) error {
	return saveRow(ctx, r.db, row)
}

func (r *Repository) DeleteProductType(ctx context.Context, id uuid.UUID) (int64, error) {
	return deleteByID[models.ProductType](ctx, r.db, id)
}

func (r *Repository) ListProductTypes(ctx context.Context) ([]models.ProductType, error) {
	var rows []models.ProductType
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) GetLanguage(ctx context.Context, id uuid.UUID) (*models.Language, error) {
	return getByID[models.Language](ctx, r.db, id)
}

func (r *Repository) CreateLanguage(ctx context.Context, row *models.Language) error {
	return createRow(ctx, r.db, row)
}

func (r *Repository) SaveLanguage(ctx context.Context, row *models.Language) error {
	return saveRow(ctx, r.db, row)
}

func (r *Repository) DeleteLanguage(ctx context.Context, id uuid.UUID) (int64, error) {
	return deleteByID[models.Language](ctx, r.db, id)
}

func (r *Repository) ListLanguages(ctx context.Context) ([]models.Language, error) {
	var rows []models.Language
	err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return getByID[models.Product](ctx, r.db, id)
}

func (r *Repository) CreateProduct(ctx context.Context, row *models.Product) error {
	return createRow(ctx, r.db, row)
}

func (r *Repository) SaveProduct(ctx context.Context, row *models.Product) error {
	return saveRow(ctx, r.db, row)
}

func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) (int64, error) {
	return deleteByID[models.Product](ctx, r.db, id)
}

func (r *Repository) ListProducts(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Scopes(cursorScope(cursor)).
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return getByID[models.Document](ctx, r.db, id)
}

func (r *Repository) CreateDocument(ctx context.Context, row *models.Document) error {
	return createRow(ctx, r.db, row)
}

func (r *Repository) SaveDocument(ctx context.Context, row *models.Document) error {
	return saveRow(ctx, r.db, row)
}

func (r *Repository) DeleteDocument(ctx context.Context, id uuid.UUID) (int64, error) {
	return deleteByID[models.Document](ctx, r.db, id)
}

func (r *Repository) ListDocuments(ctx context.Context, filter DocumentFilter, cursor *pagination.Cursor, limit int) ([]models.Document, error) {
	query := r.db.WithContext(ctx).Scopes(cursorScope(cursor))
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ProductTypeID != nil {
		query = query.Where("product_type_id = ?", *filter.ProductTypeID)
	}
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.LanguageCode != "" {
		query = query.Where("language_code = ?", filter.LanguageCode)
	}

	var rows []models.Document
	err := query.Limit(limit).Find(&rows).Error
	return rows, err
}
