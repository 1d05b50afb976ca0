package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/query"
	"github.com/utafrali/storefront/internal/repository/memory"
	"github.com/utafrali/storefront/pkg/pagination"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Events are dropped: the producer has no Kafka writer.
func newTestProducer() *event.Producer {
	return event.NewProducer(nil, newTestLogger())
}

func ptr[T any](v T) *T { return &v }

func seedCatalog(t *testing.T) *memory.ProductRepository {
	t.Helper()
	repo := memory.NewProductRepository()
	catalog := []domain.Product{
		{ID: "000000000000000000000001", Name: "Nike Slim Shirt", Slug: "nike-slim-shirt", Category: "Shirts", Price: 120},
		{ID: "000000000000000000000002", Name: "Adidas Fit Shirt", Slug: "adidas-fit-shirt", Category: "Shirts", Price: 250},
		{ID: "000000000000000000000003", Name: "Nike Slim Pant", Slug: "nike-slim-pant", Category: "Pants", Price: 25},
		{ID: "000000000000000000000004", Name: "Adidas Fit Pant", Slug: "adidas-fit-pant", Category: "Pants", Price: 65},
		{ID: "000000000000000000000005", Name: "Nike Running Shoes", Slug: "nike-nike-t-shoes", Category: "Shoes", Price: 150},
		{ID: "000000000000000000000006", Name: "Levi's Slim Jeans", Slug: "levis-slim-jeans", Category: "Jeans", Price: 80},
	}
	for i := range catalog {
		require.NoError(t, repo.Create(context.Background(), &catalog[i]))
	}
	return repo
}

// --- Mock Repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) FindMany(ctx context.Context, filter query.Filter, sort query.Sort, skip, limit int) ([]domain.Product, error) {
	args := m.Called(ctx, filter, sort, skip, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockProductRepository) Count(ctx context.Context, filter query.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) Save(ctx context.Context, p *domain.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepository) AppendReview(ctx context.Context, productID string, r domain.Review) (*domain.Product, error) {
	args := m.Called(ctx, productID, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductRepository) Categories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- Mock Cache ---

type mockSearchCache struct {
	mock.Mock
}

func (m *mockSearchCache) Versioned(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockSearchCache) Get(ctx context.Context, key string) (*domain.SearchResult, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.SearchResult), args.Bool(1), args.Error(2)
}

func (m *mockSearchCache) Set(ctx context.Context, key string, res *domain.SearchResult) error {
	return m.Called(ctx, key, res).Error(0)
}

func (m *mockSearchCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func mustParams(t *testing.T, page, size string) pagination.Params {
	t.Helper()
	p, err := pagination.Parse(page, size, DefaultSearchPageSize)
	require.NoError(t, err)
	return p
}
