package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/query"
	"github.com/utafrali/storefront/internal/storage"
	storagemem "github.com/utafrali/storefront/internal/storage/memory"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func prices(ps []domain.Product) []float64 {
	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = p.Price
	}
	return out
}

func productIDs(ps []domain.Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestSearch_LowestFirstPage(t *testing.T) {
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger())

	res, err := svc.Search(context.Background(), domain.SearchQuery{Order: "lowest"})
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 65, 80}, prices(res.Products))
	assert.Equal(t, int64(6), res.CountProducts)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 2, res.Pages)
}

func TestSearch_CategoryShirts(t *testing.T) {
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger())

	res, err := svc.Search(context.Background(), domain.SearchQuery{Category: "Shirts"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.CountProducts)
	assert.Equal(t, 1, res.Pages)
	assert.Len(t, res.Products, 2)
}

func TestSearch_PastLastPageIsEmpty(t *testing.T) {
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger())

	res, err := svc.Search(context.Background(), domain.SearchQuery{Page: "9"})
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Equal(t, int64(6), res.CountProducts)
	assert.Equal(t, 9, res.Page)
	assert.Equal(t, 2, res.Pages)
}

func TestSearch_WildcardsAndFilters(t *testing.T) {
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger())
	ctx := context.Background()

	res, err := svc.Search(ctx, domain.SearchQuery{Category: "all", Price: "all", Rating: "all", Query: "all", PageSize: "10"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.CountProducts)

	res, err = svc.Search(ctx, domain.SearchQuery{Query: "SLIM", Price: "50-130", Order: "highest"})
	require.NoError(t, err)
	assert.Equal(t, []float64{120, 80}, prices(res.Products))
}

func TestSearch_InvalidInputNeverReachesRepository(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewProductService(repo, storagemem.New(""), newTestProducer(), newTestLogger())

	for _, q := range []domain.SearchQuery{
		{Price: "abc"},
		{Price: "50-10"},
		{Rating: "7"},
		{Page: "0"},
		{PageSize: "-3"},
		{PageSize: "101"},
	} {
		_, err := svc.Search(context.Background(), q)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "query %+v", q)
	}
	repo.AssertExpectations(t)
}

func TestSearch_CountAndFindShareFilter(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewProductService(repo, storagemem.New(""), newTestProducer(), newTestLogger())
	ctx := context.Background()

	want, err := query.BuildFilter(domain.SearchQuery{Category: "Pants", Rating: "4"})
	require.NoError(t, err)
	sort := query.ResolveSort("toprated")

	repo.On("Count", ctx, want).Return(int64(7), nil)
	repo.On("FindMany", ctx, want, sort, 3, 3).Return([]domain.Product{{ID: "x"}}, nil)

	res, err := svc.Search(ctx, domain.SearchQuery{Category: "Pants", Rating: "4", Order: "TopRated", Page: "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.CountProducts)
	assert.Equal(t, 3, res.Pages)
	repo.AssertExpectations(t)
}

func TestSearch_PersistenceErrorPropagates(t *testing.T) {
	repo := new(mockProductRepository)
	svc := NewProductService(repo, storagemem.New(""), newTestProducer(), newTestLogger())
	ctx := context.Background()

	repo.On("Count", ctx, query.Filter{}).Return(int64(0), apperrors.Persistence("count products", errors.New("socket closed")))

	_, err := svc.Search(ctx, domain.SearchQuery{})
	assert.ErrorIs(t, err, apperrors.ErrPersistence)
}

func TestSearch_CacheHitSkipsRepository(t *testing.T) {
	repo := new(mockProductRepository)
	cache := new(mockSearchCache)
	svc := NewProductService(repo, storagemem.New(""), newTestProducer(), newTestLogger(), WithSearchCache(cache))
	ctx := context.Background()

	cached := &domain.SearchResult{CountProducts: 1, Page: 1, Pages: 1, Products: []domain.Product{{ID: "c"}}}
	cache.On("Versioned", ctx, mock.AnythingOfType("string")).Return("search:v3:k", nil)
	cache.On("Get", ctx, "search:v3:k").Return(cached, true, nil)

	res, err := svc.Search(ctx, domain.SearchQuery{})
	require.NoError(t, err)
	assert.Same(t, cached, res)
	repo.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestSearch_CacheErrorFallsThroughAndStores(t *testing.T) {
	cache := new(mockSearchCache)
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger(), WithSearchCache(cache))
	ctx := context.Background()

	cache.On("Versioned", ctx, mock.AnythingOfType("string")).Return("search:v0:k", nil)
	cache.On("Get", ctx, "search:v0:k").Return(nil, false, errors.New("redis down"))
	cache.On("Set", ctx, "search:v0:k", mock.AnythingOfType("*domain.SearchResult")).Return(errors.New("redis down"))

	res, err := svc.Search(ctx, domain.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.CountProducts)
	cache.AssertExpectations(t)
}

func TestSearch_StoresUnderVersionSeenAtLookup(t *testing.T) {
	cache := new(mockSearchCache)
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger(), WithSearchCache(cache))
	ctx := context.Background()

	cache.On("Versioned", ctx, mock.AnythingOfType("string")).Return("search:v7:k", nil).Once()
	cache.On("Get", ctx, "search:v7:k").Return(nil, false, nil).Once()
	cache.On("Set", ctx, "search:v7:k", mock.AnythingOfType("*domain.SearchResult")).Return(nil).Once()

	_, err := svc.Search(ctx, domain.SearchQuery{})
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestSearch_VersionErrorBypassesCache(t *testing.T) {
	cache := new(mockSearchCache)
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger(), WithSearchCache(cache))
	ctx := context.Background()

	cache.On("Versioned", ctx, mock.AnythingOfType("string")).Return("", errors.New("redis down"))

	res, err := svc.Search(ctx, domain.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.CountProducts)
	cache.AssertExpectations(t)
	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestSearch_DefaultQueryNewestFirst(t *testing.T) {
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger())

	res, err := svc.Search(context.Background(), domain.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.CountProducts)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, []string{
		"000000000000000000000006",
		"000000000000000000000005",
		"000000000000000000000004",
	}, productIDs(res.Products))
}

func TestSearchCacheKey_DistinguishesPagesAndSorts(t *testing.T) {
	f := query.Filter{Category: "Pants"}
	a := searchCacheKey(f, query.ResolveSort("lowest"), mustParams(t, "1", "3"))
	b := searchCacheKey(f, query.ResolveSort("lowest"), mustParams(t, "2", "3"))
	c := searchCacheKey(f, query.ResolveSort("highest"), mustParams(t, "1", "3"))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCreateProduct(t *testing.T) {
	repo := seedCatalog(t)
	cache := new(mockSearchCache)
	svc := NewProductService(repo, storagemem.New(""), newTestProducer(), newTestLogger(), WithSearchCache(cache))
	ctx := context.Background()
	cache.On("Invalidate", ctx).Return(nil).Once()

	p, err := svc.CreateProduct(ctx, domain.CreateProductInput{Name: "Puma Track Jacket", Category: "Jackets", Price: 99, CountInStock: 4})
	require.NoError(t, err)
	assert.Equal(t, "puma-track-jacket", p.Slug)
	assert.Len(t, p.ID, 24)
	assert.Zero(t, p.NumReviews)
	assert.NotNil(t, p.Reviews)
	cache.AssertExpectations(t)

	_, err = svc.CreateProduct(ctx, domain.CreateProductInput{Name: "Nike Slim Shirt", Slug: "nike-slim-shirt"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestCreateProduct_Validation(t *testing.T) {
	svc := NewProductService(new(mockProductRepository), storagemem.New(""), newTestProducer(), newTestLogger())
	ctx := context.Background()

	for _, in := range []domain.CreateProductInput{
		{Name: "  "},
		{Name: "x", Price: -1},
		{Name: "x", CountInStock: -1},
		{Name: "x", Price: 10, OfferPrice: ptr(-0.5)},
	} {
		_, err := svc.CreateProduct(ctx, in)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

func TestUpdateProduct_KeepsReviews(t *testing.T) {
	repo := seedCatalog(t)
	ctx := context.Background()
	_, err := repo.AppendReview(ctx, "000000000000000000000003", domain.Review{ID: "r1", Name: "John", Rating: 4})
	require.NoError(t, err)

	svc := NewProductService(repo, storagemem.New(""), newTestProducer(), newTestLogger())
	p, err := svc.UpdateProduct(ctx, "000000000000000000000003", domain.UpdateProductInput{Price: ptr(30.0), Featured: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, 30.0, p.Price)
	assert.True(t, p.Featured)

	stored, err := repo.FindByID(ctx, "000000000000000000000003")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.NumReviews)
	assert.Equal(t, 4.0, stored.Rating)
	assert.Equal(t, 30.0, stored.Price)
}

func TestOfferPrice_CreateAndPartialUpdate(t *testing.T) {
	repo := seedCatalog(t)
	svc := NewProductService(repo, storagemem.New(""), newTestProducer(), newTestLogger())
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, domain.CreateProductInput{Name: "Puma Track Jacket", Price: 99, OfferPrice: ptr(79.0)})
	require.NoError(t, err)
	require.NotNil(t, p.OfferPrice)
	assert.Equal(t, 79.0, *p.OfferPrice)

	p, err = svc.UpdateProduct(ctx, p.ID, domain.UpdateProductInput{CountInStock: ptr(3)})
	require.NoError(t, err)
	require.NotNil(t, p.OfferPrice)
	assert.Equal(t, 79.0, *p.OfferPrice)

	_, err = svc.UpdateProduct(ctx, p.ID, domain.UpdateProductInput{OfferPrice: ptr(59.0)})
	require.NoError(t, err)
	stored, err := repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 59.0, *stored.OfferPrice)

	_, err = svc.UpdateProduct(ctx, p.ID, domain.UpdateProductInput{OfferPrice: ptr(-1.0)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	plain, err := svc.GetProduct(ctx, "000000000000000000000003")
	require.NoError(t, err)
	assert.Nil(t, plain.OfferPrice)
}

func TestUpdateProduct_NotFound(t *testing.T) {
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger())
	_, err := svc.UpdateProduct(context.Background(), "ffffffffffffffffffffffff", domain.UpdateProductInput{Name: ptr("x")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteProduct(t *testing.T) {
	repo := seedCatalog(t)
	svc := NewProductService(repo, storagemem.New(""), newTestProducer(), newTestLogger())
	ctx := context.Background()

	require.NoError(t, svc.DeleteProduct(ctx, "000000000000000000000001"))
	assert.ErrorIs(t, svc.DeleteProduct(ctx, "000000000000000000000001"), apperrors.ErrNotFound)

	cats, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jeans", "Pants", "Shirts", "Shoes"}, cats)
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestUploadImage(t *testing.T) {
	repo := seedCatalog(t)
	store := storagemem.New("/uploads")
	svc := NewProductService(repo, store, newTestProducer(), newTestLogger())
	ctx := context.Background()

	res, err := svc.UploadImage(ctx, "000000000000000000000003", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Key, ".png"), res.Key)
	assert.Equal(t, "/uploads/"+res.Key, res.URL)

	_, ct, ok := store.Open(res.Key)
	require.True(t, ok)
	assert.Equal(t, "image/png", ct)

	p, err := repo.FindByID(ctx, "000000000000000000000003")
	require.NoError(t, err)
	assert.Equal(t, res.URL, p.Image)
}

func TestUploadImage_Rejects(t *testing.T) {
	svc := NewProductService(seedCatalog(t), storagemem.New(""), newTestProducer(), newTestLogger())
	ctx := context.Background()

	_, err := svc.UploadImage(ctx, "", strings.NewReader("just some text"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.UploadImage(ctx, "", bytes.NewReader(nil))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	big := append(append([]byte{}, pngHeader...), make([]byte, storage.MaxImageSize)...)
	_, err = svc.UploadImage(ctx, "", bytes.NewReader(big))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.UploadImage(ctx, "ffffffffffffffffffffffff", bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
