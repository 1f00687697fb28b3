package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/rigzlion8/deedeeshealthandwellness/internal/auth"
	"github.com/rigzlion8/deedeeshealthandwellness/internal/catalog"
)

type CreateProductRequest struct {
	Name                string           `json:"name" validate:"required,max=200"`
	Slug                string           `json:"slug" validate:"required,max=200"`
	Description         string           `json:"description" validate:"required"`
	DetailedDescription string           `json:"detailedDescription"`
	Price               *float64         `json:"price" validate:"required,gte=0"`
	DiscountPrice       *float64         `json:"discountPrice" validate:"omitempty,gte=0"`
	Category            catalog.Category `json:"category" validate:"required,oneof=herbal skincare supplements teas oils"`
	Subcategory         string           `json:"subcategory"`
	Images              catalog.Images   `json:"images"`
	Ingredients         []string         `json:"ingredients"`
	Benefits            []string         `json:"benefits"`
	UsageInstructions   string           `json:"usageInstructions"`
	StockQuantity       int              `json:"stockQuantity"`
	MinStockLevel       *int             `json:"minStockLevel"`
	IsFeatured          bool             `json:"isFeatured"`
	IsNewArrival        bool             `json:"isNewArrival"`
	Rating              float64          `json:"rating" validate:"gte=0,lte=5"`
	Tags                []string         `json:"tags"`
	MetaTitle           string           `json:"metaTitle"`
	MetaDescription     string           `json:"metaDescription"`
}

// optionalFloat tells "absent" apart from an explicit null.
type optionalFloat struct {
	Set   bool
	Value *float64
}

func (o *optionalFloat) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

type UpdateProductRequest struct {
	Name                *string           `json:"name" validate:"omitempty,min=1,max=200"`
	Slug                *string           `json:"slug" validate:"omitempty,min=1,max=200"`
	Description         *string           `json:"description" validate:"omitempty,min=1"`
	DetailedDescription *string           `json:"detailedDescription"`
	Price               *float64          `json:"price" validate:"omitempty,gte=0"`
	DiscountPrice       optionalFloat     `json:"discountPrice"`
	Category            *catalog.Category `json:"category" validate:"omitempty,oneof=herbal skincare supplements teas oils"`
	Subcategory         *string           `json:"subcategory"`
	Images              *catalog.Images   `json:"images"`
	Ingredients         *[]string         `json:"ingredients"`
	Benefits            *[]string         `json:"benefits"`
	UsageInstructions   *string           `json:"usageInstructions"`
	StockQuantity       *int              `json:"stockQuantity"`
	MinStockLevel       *int              `json:"minStockLevel"`
	IsFeatured          *bool             `json:"isFeatured"`
	IsNewArrival        *bool             `json:"isNewArrival"`
	Rating              *float64          `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Tags                *[]string         `json:"tags"`
	MetaTitle           *string           `json:"metaTitle"`
	MetaDescription     *string           `json:"metaDescription"`
}

func (req UpdateProductRequest) patch() catalog.Patch {
	p := catalog.Patch{
		Name:                req.Name,
		Slug:                req.Slug,
		Description:         req.Description,
		DetailedDescription: req.DetailedDescription,
		Price:               req.Price,
		Category:            req.Category,
		Subcategory:         req.Subcategory,
		Images:              req.Images,
		Ingredients:         req.Ingredients,
		Benefits:            req.Benefits,
		UsageInstructions:   req.UsageInstructions,
		StockQuantity:       req.StockQuantity,
		MinStockLevel:       req.MinStockLevel,
		IsFeatured:          req.IsFeatured,
		IsNewArrival:        req.IsNewArrival,
		Rating:              req.Rating,
		Tags:                req.Tags,
		MetaTitle:           req.MetaTitle,
		MetaDescription:     req.MetaDescription,
	}
	if req.DiscountPrice.Set {
		p.DiscountPrice = req.DiscountPrice.Value
		p.ClearDiscount = req.DiscountPrice.Value == nil
	}
	return p
}

type ProductHandler struct {
	service  catalog.Service
	validate *validator.Validate
}

func NewProductHandler(service catalog.Service) *ProductHandler {
	return &ProductHandler{service: service, validate: NewValidator()}
}

// RegisterRoutes mounts the public catalog reads and the admin writes.
func (h *ProductHandler) RegisterRoutes(router chi.Router, admin func(http.Handler) http.Handler) {
	router.Get("/products", h.handleListProducts)
	router.Get("/products/{id}", h.handleGetProduct)
	router.Get("/categories", h.handleListCategories)

	router.Group(func(r chi.Router) {
		r.Use(admin)
		r.Post("/products", h.handleCreateProduct)
		r.Put("/products/{id}", h.handleUpdateProduct)
		r.Delete("/products/{id}", h.handleDeleteProduct)
	})
}

func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q, err := catalog.QueryFromValues(r.URL.Query())
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.ListProducts(r.Context(), q)
	if err != nil {
		status := mapErrorToStatusCode(err)
		if status == http.StatusBadRequest {
			respondWithError(w, status, err.Error())
			return
		}
		log.Error().Err(err).Msg("Failed to list products via service")
		respondWithError(w, status, "Failed to fetch products")
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

func (h *ProductHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := mapErrorToStatusCode(err)
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondWithError(w, status, "Product not found")
			return
		}
		log.Error().Err(err).Msg("Failed to get product via service")
		respondWithError(w, status, "Failed to fetch product")
		return
	}
	respondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list categories via service")
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch categories")
		return
	}
	respondWithJSON(w, http.StatusOK, categories)
}

func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if !decodeJSON(w, r, &req) || !validate(w, h.validate, req) {
		return
	}

	minStock := catalog.DefaultMinStockLevel
	if req.MinStockLevel != nil {
		minStock = *req.MinStockLevel
	}
	createdBy := ""
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		createdBy = id.Email
	}

	product := &catalog.Product{
		Name:                req.Name,
		Slug:                req.Slug,
		Description:         req.Description,
		DetailedDescription: req.DetailedDescription,
		Price:               *req.Price,
		DiscountPrice:       req.DiscountPrice,
		Category:            req.Category,
		Subcategory:         req.Subcategory,
		Images:              req.Images,
		Ingredients:         req.Ingredients,
		Benefits:            req.Benefits,
		UsageInstructions:   req.UsageInstructions,
		StockQuantity:       req.StockQuantity,
		MinStockLevel:       minStock,
		IsFeatured:          req.IsFeatured,
		IsNewArrival:        req.IsNewArrival,
		Rating:              req.Rating,
		Tags:                req.Tags,
		MetaTitle:           req.MetaTitle,
		MetaDescription:     req.MetaDescription,
		CreatedBy:           createdBy,
	}

	created, err := h.service.CreateProduct(r.Context(), product)
	if err != nil {
		status := mapErrorToStatusCode(err)
		switch {
		case errors.Is(err, catalog.ErrSlugExists):
			respondWithError(w, status, "Product with this slug already exists")
		case status == http.StatusBadRequest:
			respondWithError(w, status, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to create product via service")
			respondWithError(w, status, "Failed to create product")
		}
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ProductHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if !decodeJSON(w, r, &req) || !validate(w, h.validate, req) {
		return
	}
	if req.DiscountPrice.Value != nil && *req.DiscountPrice.Value < 0 {
		respondWithValidation(w, []FieldError{{Field: "discountPrice", Message: "must be greater than or equal to 0"}})
		return
	}

	updated, err := h.service.UpdateProduct(r.Context(), chi.URLParam(r, "id"), req.patch())
	if err != nil {
		status := mapErrorToStatusCode(err)
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			respondWithError(w, status, "Product not found")
		case errors.Is(err, catalog.ErrSlugExists):
			respondWithError(w, status, "Product with this slug already exists")
		case status == http.StatusBadRequest:
			respondWithError(w, status, err.Error())
		default:
			log.Error().Err(err).Msg("Failed to update product via service")
			respondWithError(w, status, "Failed to update product")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *ProductHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status := mapErrorToStatusCode(err)
		switch {
		case errors.Is(err, catalog.ErrInvalidID):
			respondWithError(w, status, "Invalid product id")
		case errors.Is(err, catalog.ErrProductNotFound):
			respondWithError(w, status, "Product not found")
		default:
			log.Error().Err(err).Msg("Failed to delete product via service")
			respondWithError(w, status, "Failed to delete product")
		}
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}
