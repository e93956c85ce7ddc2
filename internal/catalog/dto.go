package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/pkg/db/models"
)

// Page is one cursor-paginated slice of results.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	SortOrder   int       `json:"sort_order"`
	AccessRoles []string  `json:"access_roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductTypeDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	AccessRoles []string  `json:"access_roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductDTO struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Reference     string     `json:"reference"`
	ProductTypeID *uuid.UUID `json:"product_type_id,omitempty"`
	Description   *string    `json:"description,omitempty"`
	ImageURL      *string    `json:"image_url,omitempty"`
	AccessRoles   []string   `json:"access_roles"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type DocumentDTO struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	ProductTypeID *uuid.UUID `json:"product_type_id,omitempty"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	LanguageCode  string     `json:"language_code"`
	FileURL       string     `json:"file_url"`
	VersionLabel  *string    `json:"version_label,omitempty"`
	AccessRoles   []string   `json:"access_roles"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type LanguageDTO struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	AccessRoles []string  `json:"access_roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertCategoryDTO carries admin create/update input for a category.
type UpsertCategoryDTO struct {
	Name        string
	Description *string
	SortOrder   int
	AccessRoles []string
}

type UpsertProductTypeDTO struct {
	Name        string
	Description *string
	AccessRoles []string
}

type UpsertProductDTO struct {
	Name          string
	Reference     string
	ProductTypeID *uuid.UUID
	Description   *string
	ImageURL      *string
	AccessRoles   []string
}

type UpsertDocumentDTO struct {
	Title         string
	CategoryID    *uuid.UUID
	ProductTypeID *uuid.UUID
	ProductID     *uuid.UUID
	LanguageCode  string
	FileURL       string
	VersionLabel  *string
	AccessRoles   []string
}

type UpsertLanguageDTO struct {
	Code        string
	Name        string
	AccessRoles []string
}

// DocumentFilter narrows a document listing.
type DocumentFilter struct {
	CategoryID    *uuid.UUID
	ProductTypeID *uuid.UUID
	ProductID     *uuid.UUID
	LanguageCode  string
}

func categoryFromModel(m *models.Category) CategoryDTO {
	return CategoryDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		SortOrder:   m.SortOrder,
		AccessRoles: append([]string(nil), m.AccessRoles...),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func productTypeFromModel(m *models.ProductType) ProductTypeDTO {
	return ProductTypeDTO{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		AccessRoles: append([]string(nil), m.AccessRoles...),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func productFromModel(m *models.Product) ProductDTO {
	return ProductDTO{
		ID:            m.ID,
		Name:          m.Name,
		Reference:     m.Reference,
		ProductTypeID: m.ProductTypeID,
		Description:   m.Description,
		ImageURL:      m.ImageURL,
		AccessRoles:   append([]string(nil), m.AccessRoles...),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func documentFromModel(m *models.Document) DocumentDTO {
	return DocumentDTO{
		ID:            m.ID,
		Title:         m.Title,
		CategoryID:    m.CategoryID,
		ProductTypeID: m.ProductTypeID,
		ProductID:     m.ProductID,
		LanguageCode:  m.LanguageCode,
		FileURL:       m.FileURL,
		VersionLabel:  m.VersionLabel,
		AccessRoles:   append([]string(nil), m.AccessRoles...),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func languageFromModel(m *models.Language) LanguageDTO {
	return LanguageDTO{
		ID:          m.ID,
		Code:        m.Code,
		Name:        m.Name,
		AccessRoles: append([]string(nil), m.AccessRoles...),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
