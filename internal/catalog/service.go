package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/naosaki/naowatt-backend/pkg/access"
	"github.com/naosaki/naowatt-backend/pkg/db/models"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/pagination"
)

// Service is the authorization boundary for catalog reads: every listing and
// lookup evaluates the access predicate against the requester's role before
// anything leaves the server, so entities a role may not see are never
// transmitted. Writes are admin-only (enforced at the routes) and always
// persist a normalized access role set.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// visible applies the access predicate to a loaded slice and converts the
// survivors.
func visible[M any, D any](rows []M, requester enums.Role, roles func(*M) pq.StringArray, conv func(*M) D) []D {
	out := make([]D, 0, len(rows))
	for i := range rows {
		if access.IsVisible(roles(&rows[i]), requester) {
			out = append(out, conv(&rows[i]))
		}
	}
	return out
}

func (s *Service) ListCategories(ctx context.Context, requester enums.Role) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list categories")
	}
	return visible(rows, requester,
		func(m *models.Category) pq.StringArray { return m.AccessRoles },
		categoryFromModel), nil
}

func (s *Service) ListProductTypes(ctx context.Context, requester enums.Role) ([]ProductTypeDTO, error) {
	rows, err := s.repo.ListProductTypes(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list product types")
	}
	return visible(rows, requester,
		func(m *models.ProductType) pq.StringArray { return m.AccessRoles },
		productTypeFromModel), nil
}

func (s *Service) ListLanguages(ctx context.Context, requester enums.Role) ([]LanguageDTO, error) {
	rows, err := s.repo.ListLanguages(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to list languages")
	}
	return visible(rows, requester,
		func(m *models.Language) pq.StringArray { return m.AccessRoles },
		languageFromModel), nil
}

// ListProducts pages through products newest first, skipping entities the
// requester may not see. Skipped rows still advance the cursor so a filtered
// page never stalls.
func (s *Service) ListProducts(ctx context.Context, requester enums.Role, params pagination.Params) (*Page[ProductDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &Page[ProductDTO]{Items: make([]ProductDTO, 0, limit)}
	var last *models.Product

	for len(page.Items) < limit {
		rows, listErr := s.repo.ListProducts(ctx, cursor, pagination.LimitWithBuffer(limit))
		if listErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, listErr, "failed to list products")
		}
		for i := range rows {
			row := &rows[i]
			last = row
			if !access.IsVisible(row.AccessRoles, requester) {
				continue
			}
			page.Items = append(page.Items, productFromModel(row))
			if len(page.Items) == limit {
				break
			}
		}
		if len(rows) < pagination.LimitWithBuffer(limit) {
			return page, nil
		}
		cursor = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	page.HasMore = true
	page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	return page, nil
}

// ListDocuments pages through documents matching the filter, newest first,
// under the same visibility rules as ListProducts.
func (s *Service) ListDocuments(ctx context.Context, requester enums.Role, filter DocumentFilter, params pagination.Params) (*Page[DocumentDTO], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &Page[DocumentDTO]{Items: make([]DocumentDTO, 0, limit)}
	var last *models.Document

	for len(page.Items) < limit {
		rows, listErr := s.repo.ListDocuments(ctx, filter, cursor, pagination.LimitWithBuffer(limit))
		if listErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, listErr, "failed to list documents")
		}
		for i := range rows {
			row := &rows[i]
			last = row
			if !access.IsVisible(row.AccessRoles, requester) {
				continue
			}
			page.Items = append(page.Items, documentFromModel(row))
			if len(page.Items) == limit {
				break
			}
		}
		if len(rows) < pagination.LimitWithBuffer(limit) {
			return page, nil
		}
		cursor = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	page.HasMore = true
	page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	return page, nil
}

// GetDocument returns the document when the requester may see it. A document
// outside the requester's roles reads as not found so its existence does not
// leak.
func (s *Service) GetDocument(ctx context.Context, requester enums.Role, id uuid.UUID) (*DocumentDTO, error) {
	row, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load document")
	}
	if !access.IsVisible(row.AccessRoles, requester) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	dto := documentFromModel(row)
	return &dto, nil
}

// GetProduct mirrors GetDocument's visibility rule.
func (s *Service) GetProduct(ctx context.Context, requester enums.Role, id uuid.UUID) (*ProductDTO, error) {
	row, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load product")
	}
	if !access.IsVisible(row.AccessRoles, requester) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := productFromModel(row)
	return &dto, nil
}

func (s *Service) CreateCategory(ctx context.Context, dto UpsertCategoryDTO) (*CategoryDTO, error) {
	roles, err := normalizeRoles(dto.AccessRoles)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dto.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	row := &models.Category{
		Name:        strings.TrimSpace(dto.Name),
		Description: dto.Description,
		SortOrder:   dto.SortOrder,
		AccessRoles: roles,
	}
	if err := s.repo.CreateCategory(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create category")
	}
	out := categoryFromModel(row)
	return &out, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id uuid.UUID, dto UpsertCategoryDTO) (*CategoryDTO, error) {
	roles, err := normalizeRoles(dto.AccessRoles)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load category")
	}

	row.Name = strings.TrimSpace(dto.Name)
	row.Description = dto.Description
	row.SortOrder = dto.SortOrder
	row.AccessRoles = roles
	if err := s.repo.SaveCategory(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update category")
	}
	out := categoryFromModel(row)
	return &out, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteCategory(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to delete category")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	return nil
}

func (s *Service) CreateProductType(ctx context.Context, dto UpsertProductTypeDTO) (*ProductTypeDTO, error) {
	roles, err := normalizeRoles(dto.AccessRoles)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dto.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	row := &models.ProductType{
		Name:        strings.TrimSpace(dto.Name),
		Description: dto.Description,
		AccessRoles: roles,
	}
	if err := s.repo.CreateProductType(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create product type")
	}
	out := productTypeFromModel(row)
	return &out, nil
}

func (s *Service) DeleteProductType(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteProductType(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to delete product type")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product type not found")
	}
	return nil
}

func (s *Service) CreateLanguage(ctx context.Context, dto UpsertLanguageDTO) (*LanguageDTO, error) {
	roles, err := normalizeRoles(dto.AccessRoles)
	if err != nil {
		return nil, err
	}
	code := strings.ToLower(strings.TrimSpace(dto.Code))
	if code == "" || strings.TrimSpace(dto.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code and name are required")
	}

	row := &models.Language{
		Code:        code,
		Name:        strings.TrimSpace(dto.Name),
		AccessRoles: roles,
	}
	if err := s.repo.CreateLanguage(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create language")
	}
	out := languageFromModel(row)
	return &out, nil
}

func (s *Service) DeleteLanguage(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteLanguage(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to delete language")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "language not found")
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, dto UpsertProductDTO) (*ProductDTO, error) {
	roles, err := normalizeRoles(dto.AccessRoles)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dto.Name) == "" || strings.TrimSpace(dto.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name and reference are required")
	}

	row := &models.Product{
		Name:          strings.TrimSpace(dto.Name),
		Reference:     strings.TrimSpace(dto.Reference),
		ProductTypeID: dto.ProductTypeID,
		Description:   dto.Description,
		ImageURL:      dto.ImageURL,
		AccessRoles:   roles,
	}
	if err := s.repo.CreateProduct(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create product")
	}
	out := productFromModel(row)
	return &out, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, dto UpsertProductDTO) (*ProductDTO, error) {
	roles, err := normalizeRoles(dto.AccessRoles)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load product")
	}

	row.Name = strings.TrimSpace(dto.Name)
	row.Reference = strings.TrimSpace(dto.Reference)
	row.ProductTypeID = dto.ProductTypeID
	row.Description = dto.Description
	row.ImageURL = dto.ImageURL
	row.AccessRoles = roles
	if err := s.repo.SaveProduct(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update product")
	}
	out := productFromModel(row)
	return &out, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteProduct(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to delete product")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *Service) CreateDocument(ctx context.Context, dto UpsertDocumentDTO) (*DocumentDTO, error) {
	roles, err := normalizeRoles(dto.AccessRoles)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dto.Title) == "" || strings.TrimSpace(dto.FileURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and file_url are required")
	}

	language := strings.ToLower(strings.TrimSpace(dto.LanguageCode))
	if language == "" {
		language = "en"
	}

	row := &models.Document{
		Title:         strings.TrimSpace(dto.Title),
		CategoryID:    dto.CategoryID,
		ProductTypeID: dto.ProductTypeID,
		ProductID:     dto.ProductID,
		LanguageCode:  language,
		FileURL:       strings.TrimSpace(dto.FileURL),
		VersionLabel:  dto.VersionLabel,
		AccessRoles:   roles,
	}
	if err := s.repo.CreateDocument(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to create document")
	}
	out := documentFromModel(row)
	return &out, nil
}

func (s *Service) UpdateDocument(ctx context.Context, id uuid.UUID, dto UpsertDocumentDTO) (*DocumentDTO, error) {
	roles, err := normalizeRoles(dto.AccessRoles)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to load document")
	}

	row.Title = strings.TrimSpace(dto.Title)
	row.CategoryID = dto.CategoryID
	row.ProductTypeID = dto.ProductTypeID
	row.ProductID = dto.ProductID
	if code := strings.ToLower(strings.TrimSpace(dto.LanguageCode)); code != "" {
		row.LanguageCode = code
	}
	row.FileURL = strings.TrimSpace(dto.FileURL)
	row.VersionLabel = dto.VersionLabel
	row.AccessRoles = roles
	if err := s.repo.SaveDocument(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to update document")
	}
	out := documentFromModel(row)
	return &out, nil
}

func (s *Service) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.DeleteDocument(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "failed to delete document")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "document not found")
	}
	return nil
}

func normalizeRoles(raw []string) (pq.StringArray, error) {
	roles, err := access.Normalize(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid access roles")
	}
	return roles, nil
}
