// Package memory provides mutex-guarded in-process repositories for local
// development and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/query"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ProductRepository keeps products in a map keyed by id.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product
}

// NewProductRepository returns an empty repository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[string]*domain.Product)}
}

func clone(p *domain.Product) *domain.Product {
	c := *p
	c.Reviews = slices.Clone(p.Reviews)
	if p.OfferPrice != nil {
		v := *p.OfferPrice
		c.OfferPrice = &v
	}
	return &c
}

func (r *ProductRepository) matching(filter query.Filter) []*domain.Product {
	var out []*domain.Product
	for _, p := range r.products {
		if filter.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// FindMany filters, sorts, then windows the catalog.
func (r *ProductRepository) FindMany(_ context.Context, filter query.Filter, sort query.Sort, skip, limit int) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := r.matching(filter)
	slices.SortFunc(matches, sort.Compare)

	if skip >= len(matches) {
		return []domain.Product{}, nil
	}
	matches = matches[skip:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	out := make([]domain.Product, len(matches))
	for i, p := range matches {
		out[i] = *clone(p)
	}
	return out, nil
}

// Count returns the number of matches for filter.
func (r *ProductRepository) Count(_ context.Context, filter query.Filter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.matching(filter))), nil
}

// FindByID returns a copy of the product.
func (r *ProductRepository) FindByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return clone(p), nil
}

// FindBySlug returns a copy of the product with slug.
func (r *ProductRepository) FindBySlug(_ context.Context, slug string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.Slug == slug {
			return clone(p), nil
		}
	}
	return nil, apperrors.NotFound("product", slug)
}

func (r *ProductRepository) slugTaken(slug, exceptID string) bool {
	for id, p := range r.products {
		if id != exceptID && p.Slug == slug {
			return true
		}
	}
	return false
}

// Create stores a copy of p.
func (r *ProductRepository) Create(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return apperrors.AlreadyExists("product", "id", p.ID)
	}
	if r.slugTaken(p.Slug, "") {
		return apperrors.AlreadyExists("product", "slug", p.Slug)
	}
	r.products[p.ID] = clone(p)
	return nil
}

// Save overwrites catalog fields, keeping the stored reviews and rating.
func (r *ProductRepository) Save(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.products[p.ID]
	if !ok {
		return apperrors.NotFound("product", p.ID)
	}
	if r.slugTaken(p.Slug, p.ID) {
		return apperrors.AlreadyExists("product", "slug", p.Slug)
	}
	next := clone(p)
	next.Reviews = cur.Reviews
	next.NumReviews = cur.NumReviews
	next.Rating = cur.Rating
	next.CreatedAt = cur.CreatedAt
	r.products[p.ID] = next
	return nil
}

// AppendReview adds rev under the write lock so the duplicate check and
// the append are one step.
func (r *ProductRepository) AppendReview(_ context.Context, productID string, rev domain.Review) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, apperrors.NotFound("product", productID)
	}
	next := clone(p)
	if err := next.AddReview(rev); err != nil {
		return nil, err
	}
	next.UpdatedAt = rev.CreatedAt
	r.products[productID] = next
	return clone(next), nil
}

// Delete removes the product.
func (r *ProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return apperrors.NotFound("product", id)
	}
	delete(r.products, id)
	return nil
}

// Categories returns the sorted distinct categories.
func (r *ProductRepository) Categories(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	out := []string{}
	for _, p := range r.products {
		if _, ok := seen[p.Category]; ok || p.Category == "" {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	slices.Sort(out)
	return out, nil
}
