package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/naosaki/naowatt-backend/api/middleware"
	"github.com/naosaki/naowatt-backend/api/responses"
	"github.com/naosaki/naowatt-backend/api/validators"
	"github.com/naosaki/naowatt-backend/internal/catalog"
	"github.com/naosaki/naowatt-backend/pkg/enums"
	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
	"github.com/naosaki/naowatt-backend/pkg/logger"
	"github.com/naosaki/naowatt-backend/pkg/pagination"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

type upsertCategoryRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description *string  `json:"description,omitempty"`
	SortOrder   int      `json:"sort_order"`
	AccessRoles []string `json:"access_roles" validate:"required,min=1"`
}

type upsertProductTypeRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description *string  `json:"description,omitempty"`
	AccessRoles []string `json:"access_roles" validate:"required,min=1"`
}

type upsertProductRequest struct {
	Name          string   `json:"name" validate:"required,max=200"`
	Reference     string   `json:"reference" validate:"required,max=100"`
	ProductTypeID *string  `json:"product_type_id,omitempty" validate:"omitempty,uuid"`
	Description   *string  `json:"description,omitempty"`
	ImageURL      *string  `json:"image_url,omitempty" validate:"omitempty,url"`
	AccessRoles   []string `json:"access_roles" validate:"required,min=1"`
}

type upsertDocumentRequest struct {
	Title         string   `json:"title" validate:"required,max=300"`
	CategoryID    *string  `json:"category_id,omitempty" validate:"omitempty,uuid"`
	ProductTypeID *string  `json:"product_type_id,omitempty" validate:"omitempty,uuid"`
	ProductID     *string  `json:"product_id,omitempty" validate:"omitempty,uuid"`
	LanguageCode  string   `json:"language_code" validate:"required,max=10"`
	FileURL       string   `json:"file_url" validate:"required,url"`
	VersionLabel  *string  `json:"version_label,omitempty" validate:"omitempty,max=50"`
	AccessRoles   []string `json:"access_roles" validate:"required,min=1"`
}

type upsertLanguageRequest struct {
	Code        string   `json:"code" validate:"required,max=10"`
	Name        string   `json:"name" validate:"required,max=100"`
	AccessRoles []string `json:"access_roles" validate:"required,min=1"`
}

func requesterRole(r *http.Request) (enums.Role, error) {
	role, ok := middleware.RoleFromContext(r.Context())
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return role, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.QueryLimit(r, "limit", defaultPageSize, maxPageSize)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}, nil
}

func CatalogCategories(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := requesterRole(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListCategories(r.Context(), role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func CatalogProductTypes(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := requesterRole(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListProductTypes(r.Context(), role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func CatalogLanguages(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := requesterRole(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListLanguages(r.Context(), role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

func CatalogProducts(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := requesterRole(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListProducts(r.Context(), role, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CatalogProductGet(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := requesterRole(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.GetProduct(r.Context(), role, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// CatalogDocuments lists documents visible to the caller, optionally
// narrowed by category, product type, product or language.
func CatalogDocuments(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		role, err := requesterRole(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var filter catalog.DocumentFilter
		if filter.CategoryID, err = validators.QueryUUID(r, "category_id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if filter.ProductTypeID, err = validators.QueryUUID(r, "product_type_id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if filter.ProductID, err = validators.QueryUUID(r, "product_id"); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		filter.LanguageCode = r.URL.Query().Get("language")

		page, err := svc.ListDocuments(ctx, role, filter, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CatalogDocumentGet(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role, err := requesterRole(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.PathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.GetDocument(r.Context(), role, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func CategoryCreate(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body upsertCategoryRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.CreateCategory(r.Context(), catalog.UpsertCategoryDTO{
			Name:        body.Name,
			Description: body.Description,
			SortOrder:   body.SortOrder,
			AccessRoles: body.AccessRoles,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

func CategoryUpdate(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body upsertCategoryRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.UpdateCategory(r.Context(), id, catalog.UpsertCategoryDTO{
			Name:        body.Name,
			Description: body.Description,
			SortOrder:   body.SortOrder,
			AccessRoles: body.AccessRoles,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func CategoryDelete(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return catalogDelete(svc.DeleteCategory, logg)
}

func ProductTypeCreate(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body upsertProductTypeRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.CreateProductType(r.Context(), catalog.UpsertProductTypeDTO{
			Name:        body.Name,
			Description: body.Description,
			AccessRoles: body.AccessRoles,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

func ProductTypeDelete(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return catalogDelete(svc.DeleteProductType, logg)
}

func LanguageCreate(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body upsertLanguageRequest
		if err := validators.DecodeJSONBody(w, r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.CreateLanguage(r.Context(), catalog.UpsertLanguageDTO{
			Code:        body.Code,
			Name:        body.Name,
			AccessRoles: body.AccessRoles,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

func LanguageDelete(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return catalogDelete(svc.DeleteLanguage, logg)
}

func ProductCreate(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dto, err := decodeProduct(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.CreateProduct(r.Context(), dto)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

func ProductUpdate(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := decodeProduct(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.UpdateProduct(r.Context(), id, dto)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func ProductDelete(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return catalogDelete(svc.DeleteProduct, logg)
}

func DocumentCreate(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dto, err := decodeDocument(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.CreateDocument(r.Context(), dto)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

func DocumentUpdate(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dto, err := decodeDocument(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := svc.UpdateDocument(r.Context(), id, dto)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func DocumentDelete(svc *catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return catalogDelete(svc.DeleteDocument, logg)
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (catalog.UpsertProductDTO, error) {
	var body upsertProductRequest
	if err := validators.DecodeJSONBody(w, r, &body); err != nil {
		return catalog.UpsertProductDTO{}, err
	}
	dto := catalog.UpsertProductDTO{
		Name:        body.Name,
		Reference:   body.Reference,
		Description: body.Description,
		ImageURL:    body.ImageURL,
		AccessRoles: body.AccessRoles,
	}
	id, err := optionalUUID(body.ProductTypeID, "product_type_id")
	if err != nil {
		return catalog.UpsertProductDTO{}, err
	}
	dto.ProductTypeID = id
	return dto, nil
}

func decodeDocument(w http.ResponseWriter, r *http.Request) (catalog.UpsertDocumentDTO, error) {
	var body upsertDocumentRequest
	if err := validators.DecodeJSONBody(w, r, &body); err != nil {
		return catalog.UpsertDocumentDTO{}, err
	}
	dto := catalog.UpsertDocumentDTO{
		Title:        body.Title,
		LanguageCode: body.LanguageCode,
		FileURL:      body.FileURL,
		VersionLabel: body.VersionLabel,
		AccessRoles:  body.AccessRoles,
	}
	var err error
	if dto.CategoryID, err = optionalUUID(body.CategoryID, "category_id"); err != nil {
		return catalog.UpsertDocumentDTO{}, err
	}
	if dto.ProductTypeID, err = optionalUUID(body.ProductTypeID, "product_type_id"); err != nil {
		return catalog.UpsertDocumentDTO{}, err
	}
	if dto.ProductID, err = optionalUUID(body.ProductID, "product_id"); err != nil {
		return catalog.UpsertDocumentDTO{}, err
	}
	return dto, nil
}

func catalogDelete(del func(ctx context.Context, id uuid.UUID) error, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := del(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func optionalUUID(raw *string, field string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("field %q must be a valid UUID", field))
	}
	return &id, nil
}
