package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/storage"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

const defaultSearchMaxAge = 30 * time.Second

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for creating a product.
type CreateProductRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=200"`
	Slug         string   `json:"slug" validate:"omitempty,slug"`
	Category     string   `json:"category" validate:"max=100"`
	Image        string   `json:"image"`
	Price        float64  `json:"price" validate:"gte=0"`
	OfferPrice   *float64 `json:"offerPrice" validate:"omitempty,gte=0"`
	CountInStock int      `json:"countInStock" validate:"gte=0"`
	Brand        string   `json:"brand" validate:"max=100"`
	Description  string   `json:"description" validate:"max=5000"`
	Featured     bool     `json:"featured"`
}

// UpdateProductRequest is the JSON request body for updating a product.
// Rating, numReviews and reviews are not accepted here.
type UpdateProductRequest struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Slug         *string  `json:"slug" validate:"omitempty,slug"`
	Category     *string  `json:"category" validate:"omitempty,max=100"`
	Image        *string  `json:"image"`
	Price        *float64 `json:"price" validate:"omitempty,gte=0"`
	OfferPrice   *float64 `json:"offerPrice" validate:"omitempty,gte=0"`
	CountInStock *int     `json:"countInStock" validate:"omitempty,gte=0"`
	Brand        *string  `json:"brand" validate:"omitempty,max=100"`
	Description  *string  `json:"description" validate:"omitempty,max=5000"`
	Featured     *bool    `json:"featured"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

// Search handles GET /api/v1/products/search
//
// Query parameters are passed through verbatim; "all" or an absent value
// disables a filter. Malformed values answer 400.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.service.Search(r.Context(), domain.SearchQuery{
		Page:     q.Get("page"),
		PageSize: q.Get("pageSize"),
		Category: q.Get("category"),
		Price:    q.Get("price"),
		Rating:   q.Get("rating"),
		Order:    q.Get("order"),
		Query:    q.Get("query"),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// ListCategories handles GET /api/v1/products/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cats)
}

// GetProductBySlug handles GET /api/v1/products/slug/{slug}
func (h *ProductHandler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProductBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /api/v1/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), domain.CreateProductInput{
		Name:         req.Name,
		Slug:         req.Slug,
		Category:     req.Category,
		Image:        req.Image,
		Price:        req.Price,
		OfferPrice:   req.OfferPrice,
		CountInStock: req.CountInStock,
		Brand:        req.Brand,
		Description:  req.Description,
		Featured:     req.Featured,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusCreated, "Product Created", "product", p)
}

// UpdateProduct handles PUT /api/v1/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateProductRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), id, domain.UpdateProductInput{
		Name:         req.Name,
		Slug:         req.Slug,
		Category:     req.Category,
		Image:        req.Image,
		Price:        req.Price,
		OfferPrice:   req.OfferPrice,
		CountInStock: req.CountInStock,
		Brand:        req.Brand,
		Description:  req.Description,
		Featured:     req.Featured,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Product Updated", "product", p)
}

// DeleteProduct handles DELETE /api/v1/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "product deleted successfully", "", nil)
}

// UploadImage handles POST /api/v1/products/images
//
// The image travels in the multipart field "image". An optional
// "productId" field attaches the upload to that product.
func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	// Allow some room for the multipart envelope; the service enforces the
	// exact image limit.
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+(1<<20))

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		msg := "failed to parse multipart form: " + err.Error()
		if errors.As(err, &tooLarge) {
			msg = "image exceeds the 6 MiB limit"
		}
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: msg},
		})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile("image")
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "image is required: " + err.Error()},
		})
		return
	}
	defer file.Close()

	productID := r.FormValue("productId")
	if productID != "" {
		if _, ok := httputil.ParseID(w, productID); !ok {
			return
		}
	}

	res, err := h.service.UploadImage(r.Context(), productID, file)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.MessageResponse{
		"message": "Image Uploaded",
		"image":   res.URL,
		"key":     res.Key,
	})
}
