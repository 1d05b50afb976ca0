package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ReviewService records product reviews.
type ReviewService struct {
	repo     repository.ProductRepository
	cache    SearchCache
	producer *event.Producer
	logger   *slog.Logger
	now      func() time.Time
}

// NewReviewService creates a review service. cache may be nil.
func NewReviewService(repo repository.ProductRepository, cache SearchCache, producer *event.Producer, logger *slog.Logger) *ReviewService {
	return &ReviewService{repo: repo, cache: cache, producer: producer, logger: logger, now: utcNow}
}

// SubmitReview appends a review by reviewerName. Each reviewer may review a
// product once; the append and the recomputation of numReviews and rating
// happen in a single conditional write.
func (s *ReviewService) SubmitReview(ctx context.Context, productID, reviewerName string, rating int, comment string) (*domain.ReviewOutcome, error) {
	reviewerName = strings.TrimSpace(reviewerName)
	if reviewerName == "" {
		return nil, apperrors.InvalidInput("reviewer name is required")
	}
	if !domain.ValidReviewRating(rating) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d, got %d",
			domain.MinReviewRating, domain.MaxReviewRating, rating))
	}

	rev := domain.Review{
		ID:        uuid.NewString(),
		Name:      reviewerName,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: s.now(),
	}

	p, err := s.repo.AppendReview(ctx, productID, rev)
	if err != nil {
		return nil, fmt.Errorf("append review: %w", err)
	}

	out := &domain.ReviewOutcome{Review: rev, NumReviews: p.NumReviews, Rating: p.Rating}

	invalidateSearchCache(ctx, s.cache, s.logger)
	if err := s.producer.ProductReviewed(ctx, productID, *out); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.reviewed event",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "review submitted",
		slog.String("product_id", productID),
		slog.String("reviewer", reviewerName),
		slog.Int("num_reviews", out.NumReviews),
	)
	return out, nil
}
