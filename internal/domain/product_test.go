package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

func TestAddReview_RecomputesMean(t *testing.T) {
	p := &Product{ID: "p1"}
	ratings := []int{5, 4, 4, 1, 3}
	sum := 0
	for i, r := range ratings {
		require.NoError(t, p.AddReview(Review{Name: string(rune('a' + i)), Rating: r}))
		sum += r
		assert.Equal(t, i+1, p.NumReviews)
		assert.InDelta(t, float64(sum)/float64(i+1), p.Rating, 1e-9)
	}
	assert.Len(t, p.Reviews, len(ratings))
	assert.Equal(t, "a", p.Reviews[0].Name, "reviews keep submission order")
}

func TestAddReview_KeepsFullPrecision(t *testing.T) {
	p := &Product{}
	require.NoError(t, p.AddReview(Review{Name: "a", Rating: 5}))
	require.NoError(t, p.AddReview(Review{Name: "b", Rating: 4}))
	require.NoError(t, p.AddReview(Review{Name: "c", Rating: 4}))
	assert.Equal(t, 13.0/3.0, p.Rating)
}

func TestAddReview_DuplicateLeavesProductUnchanged(t *testing.T) {
	p := &Product{ID: "p1"}
	require.NoError(t, p.AddReview(Review{Name: "John", Rating: 5}))

	err := p.AddReview(Review{Name: "John", Rating: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateReview))
	assert.Equal(t, 1, p.NumReviews)
	assert.Equal(t, 5.0, p.Rating)
	assert.Len(t, p.Reviews, 1)
}

func TestAddReview_NamesAreCaseSensitive(t *testing.T) {
	p := &Product{}
	require.NoError(t, p.AddReview(Review{Name: "john", Rating: 2}))
	require.NoError(t, p.AddReview(Review{Name: "John", Rating: 4}))
	assert.Equal(t, 2, p.NumReviews)
}

func TestMeanRating_Empty(t *testing.T) {
	assert.Equal(t, 0.0, MeanRating(nil))
}

func TestValidReviewRating(t *testing.T) {
	for r := MinReviewRating; r <= MaxReviewRating; r++ {
		assert.True(t, ValidReviewRating(r))
	}
	assert.False(t, ValidReviewRating(0))
	assert.False(t, ValidReviewRating(6))
	assert.False(t, ValidReviewRating(-1))
}

func TestUpdateProductInput_ApplyLeavesReviewsAlone(t *testing.T) {
	p := &Product{Name: "Nike Slim Shirt", Price: 120, Rating: 4.5, NumReviews: 2, Reviews: []Review{{Name: "a"}, {Name: "b"}}}
	name := "Nike Slim Shirt v2"
	price := 99.5
	featured := true
	UpdateProductInput{Name: &name, Price: &price, Featured: &featured}.Apply(p)

	assert.Equal(t, name, p.Name)
	assert.Equal(t, price, p.Price)
	assert.True(t, p.Featured)
	assert.Equal(t, 4.5, p.Rating)
	assert.Equal(t, 2, p.NumReviews)
	assert.Len(t, p.Reviews, 2)
}
