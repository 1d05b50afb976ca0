package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/query"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/storage"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/slug"
)

// DefaultSearchPageSize applies when a search omits pageSize.
const DefaultSearchPageSize = 3

// ProductService implements catalog search and administration.
type ProductService struct {
	repo     repository.ProductRepository
	cache    SearchCache
	store    storage.Storage
	producer *event.Producer
	logger   *slog.Logger
	pageSize int
	now      func() time.Time
}

// ProductServiceOption configures a ProductService.
type ProductServiceOption func(*ProductService)

// WithSearchCache enables result caching for Search.
func WithSearchCache(c SearchCache) ProductServiceOption {
	return func(s *ProductService) { s.cache = c }
}

// WithPageSize overrides DefaultSearchPageSize.
func WithPageSize(n int) ProductServiceOption {
	return func(s *ProductService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewProductService creates a new product service.
func NewProductService(repo repository.ProductRepository, store storage.Storage, producer *event.Producer, logger *slog.Logger, opts ...ProductServiceOption) *ProductService {
	s := &ProductService{
		repo:     repo,
		store:    store,
		producer: producer,
		logger:   logger,
		pageSize: DefaultSearchPageSize,
		now:      utcNow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func searchCacheKey(f query.Filter, s query.Sort, p pagination.Params) string {
	return f.Key() + "|order=" + s.Token + "|page=" + strconv.Itoa(p.Page) + "|size=" + strconv.Itoa(p.PerPage)
}

// Search returns one page of products matching q. Count and FindMany
// receive the same filter, and sorting happens before the page window is
// applied.
func (s *ProductService) Search(ctx context.Context, q domain.SearchQuery) (*domain.SearchResult, error) {
	filter, err := query.BuildFilter(q)
	if err != nil {
		return nil, err
	}
	params, err := pagination.Parse(q.Page, q.PageSize, s.pageSize)
	if err != nil {
		return nil, err
	}
	order := query.ResolveSort(q.Order)

	var vkey string
	if s.cache != nil {
		k, err := s.cache.Versioned(ctx, searchCacheKey(filter, order, params))
		if err != nil {
			s.logger.WarnContext(ctx, "search cache version lookup failed", slog.String("error", err.Error()))
		} else {
			vkey = k
		}
	}
	if vkey != "" {
		res, ok, err := s.cache.Get(ctx, vkey)
		if err != nil {
			s.logger.WarnContext(ctx, "search cache lookup failed", slog.String("error", err.Error()))
		} else if ok {
			return res, nil
		}
	}

	count, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	products, err := s.repo.FindMany(ctx, filter, order, params.Offset, params.Limit())
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}

	res := &domain.SearchResult{
		Products:      products,
		CountProducts: count,
		Page:          params.Page,
		Pages:         pagination.TotalPages(int(count), params.PerPage),
	}

	if vkey != "" {
		if err := s.cache.Set(ctx, vkey, res); err != nil {
			s.logger.WarnContext(ctx, "search cache store failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

// GetProduct retrieves a product by its ID.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return p, nil
}

// GetProductBySlug retrieves a product by its slug.
func (s *ProductService) GetProductBySlug(ctx context.Context, sl string) (*domain.Product, error) {
	p, err := s.repo.FindBySlug(ctx, sl)
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	return p, nil
}

// ListProducts returns the whole catalog, newest id first.
func (s *ProductService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.FindMany(ctx, query.Filter{}, query.ResolveSort(""), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// ListCategories returns the distinct categories in ascending order.
func (s *ProductService) ListCategories(ctx context.Context) ([]string, error) {
	cats, err := s.repo.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func validateCatalogFields(name string, price float64, offer *float64, stock int) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.InvalidInput("product name is required")
	}
	if price < 0 {
		return apperrors.InvalidInput("price must not be negative")
	}
	if offer != nil && *offer < 0 {
		return apperrors.InvalidInput("offerPrice must not be negative")
	}
	if stock < 0 {
		return apperrors.InvalidInput("countInStock must not be negative")
	}
	return nil
}

// CreateProduct adds a product with no reviews. A missing slug is derived
// from the name.
func (s *ProductService) CreateProduct(ctx context.Context, in domain.CreateProductInput) (*domain.Product, error) {
	if err := validateCatalogFields(in.Name, in.Price, in.OfferPrice, in.CountInStock); err != nil {
		return nil, err
	}
	sl := in.Slug
	if sl == "" {
		sl = slug.Generate(in.Name)
	}
	if sl == "" {
		return nil, apperrors.InvalidInput("slug could not be derived from the product name")
	}

	now := s.now()
	p := &domain.Product{
		ID:           newID(),
		Name:         strings.TrimSpace(in.Name),
		Slug:         sl,
		Category:     in.Category,
		Image:        in.Image,
		Price:        in.Price,
		OfferPrice:   in.OfferPrice,
		CountInStock: in.CountInStock,
		Brand:        in.Brand,
		Description:  in.Description,
		Featured:     in.Featured,
		Reviews:      []domain.Review{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.catalogChanged(ctx)
	if err := s.producer.ProductCreated(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", p.ID),
		slog.String("slug", p.Slug),
	)
	return p, nil
}

// UpdateProduct applies a partial update. Reviews and the values derived
// from them are never touched.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in domain.UpdateProductInput) (*domain.Product, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product for update: %w", err)
	}

	in.Apply(p)
	if err := validateCatalogFields(p.Name, p.Price, p.OfferPrice, p.CountInStock); err != nil {
		return nil, err
	}
	if p.Slug == "" {
		p.Slug = slug.Generate(p.Name)
	}
	p.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.catalogChanged(ctx)
	if err := s.producer.ProductUpdated(ctx, p); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
	return p, nil
}

// DeleteProduct removes a product.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.catalogChanged(ctx)
	if err := s.producer.ProductDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// UploadImage stores an image of at most storage.MaxImageSize bytes. The
// content type is sniffed from the data rather than trusted from the
// client. When productID is set the product's image is pointed at the
// upload.
func (s *ProductService) UploadImage(ctx context.Context, productID string, r io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, storage.MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, apperrors.InvalidInput("image is empty")
	}
	if len(data) > storage.MaxImageSize {
		return nil, apperrors.InvalidInput("image exceeds the 6 MiB limit")
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported file type %s, expected an image", mt.String()))
	}

	var p *domain.Product
	if productID != "" {
		if p, err = s.repo.FindByID(ctx, productID); err != nil {
			return nil, fmt.Errorf("get product for image: %w", err)
		}
	}

	res, err := s.store.Upload(ctx, &storage.UploadInput{
		Key:         uuid.NewString() + mt.Extension(),
		ContentType: mt.String(),
		Size:        int64(len(data)),
		Data:        bytes.NewReader(data),
	})
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	if p != nil {
		p.Image = res.URL
		p.UpdatedAt = s.now()
		if err := s.repo.Save(ctx, p); err != nil {
			return nil, fmt.Errorf("attach image: %w", err)
		}
		s.catalogChanged(ctx)
	}

	s.logger.InfoContext(ctx, "image uploaded",
		slog.String("key", res.Key),
		slog.String("content_type", mt.String()),
		slog.Int("size", len(data)),
	)
	return res, nil
}

func (s *ProductService) catalogChanged(ctx context.Context) {
	invalidateSearchCache(ctx, s.cache, s.logger)
}

func invalidateSearchCache(ctx context.Context, c SearchCache, logger *slog.Logger) {
	if c == nil {
		return
	}
	if err := c.Invalidate(ctx); err != nil {
		logger.WarnContext(ctx, "search cache invalidation failed", slog.String("error", err.Error()))
	}
}
