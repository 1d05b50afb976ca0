// Package repository defines the persistence contracts the services depend
// on. Backends live in the mongo, postgres and memory subpackages.
package repository

import (
	"context"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/query"
)

// ProductRepository persists products with their embedded reviews.
// Lookups of missing documents return an apperrors not-found error; driver
// failures are wrapped with apperrors.Persistence.
type ProductRepository interface {
	// FindMany returns the products matching filter, ordered by sort, after
	// skipping skip matches and returning at most limit of them.
	FindMany(ctx context.Context, filter query.Filter, sort query.Sort, skip, limit int) ([]domain.Product, error)

	// Count returns the number of products matching filter.
	Count(ctx context.Context, filter query.Filter) (int64, error)

	FindByID(ctx context.Context, id string) (*domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Product, error)

	// Create inserts a new product. A slug collision yields an
	// already-exists error.
	Create(ctx context.Context, p *domain.Product) error

	// Save overwrites the catalog fields of an existing product. Reviews,
	// NumReviews and Rating on the stored document are preserved.
	Save(ctx context.Context, p *domain.Product) error

	// AppendReview atomically appends r to the product's reviews and
	// recomputes NumReviews and Rating, unless a review by r.Name already
	// exists, in which case it returns a duplicate review error and leaves
	// the product untouched. It returns the updated product.
	AppendReview(ctx context.Context, productID string, r domain.Review) (*domain.Product, error)

	Delete(ctx context.Context, id string) error

	// Categories returns the distinct categories in ascending order.
	Categories(ctx context.Context) ([]string, error)
}

// OrderRepository persists orders.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// List returns every order, newest first.
	List(ctx context.Context) ([]domain.Order, error)
	// Transition stores o only if the stored order is still in state from.
	// It returns a conflict error when another writer moved the order first.
	Transition(ctx context.Context, o *domain.Order, from domain.OrderState) error
	Delete(ctx context.Context, id string) error
}

// UserRepository persists user accounts. Emails are unique.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
}
