package domain

import (
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// Product is a catalog entry together with its embedded reviews.
//
// Rating and NumReviews are derived from Reviews: NumReviews == len(Reviews)
// and Rating is the arithmetic mean of the review ratings, or 0 when there
// are none. Only AddReview and the repository's AppendReview change them.
type Product struct {
	ID           string    `json:"_id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Slug         string    `json:"slug" bson:"slug"`
	Category     string    `json:"category" bson:"category"`
	Image        string    `json:"image" bson:"image"`
	Price        float64   `json:"price" bson:"price"`
	OfferPrice   *float64  `json:"offerPrice,omitempty" bson:"offerPrice,omitempty"`
	CountInStock int       `json:"countInStock" bson:"countInStock"`
	Brand        string    `json:"brand" bson:"brand"`
	Description  string    `json:"description" bson:"description"`
	Featured     bool      `json:"featured" bson:"featured"`
	Rating       float64   `json:"rating" bson:"rating"`
	NumReviews   int       `json:"numReviews" bson:"numReviews"`
	Reviews      []Review  `json:"reviews" bson:"reviews"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// CreateProductInput holds the fields an admin supplies for a new product.
type CreateProductInput struct {
	Name         string
	Slug         string
	Category     string
	Image        string
	Price        float64
	OfferPrice   *float64
	CountInStock int
	Brand        string
	Description  string
	Featured     bool
}

// UpdateProductInput is a partial update; nil fields are left untouched.
// Reviews and the values derived from them cannot be changed here.
type UpdateProductInput struct {
	Name         *string
	Slug         *string
	Category     *string
	Image        *string
	Price        *float64
	OfferPrice   *float64
	CountInStock *int
	Brand        *string
	Description  *string
	Featured     *bool
}

// Apply copies the non-nil fields of in onto p.
func (in UpdateProductInput) Apply(p *Product) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Slug != nil {
		p.Slug = *in.Slug
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.OfferPrice != nil {
		v := *in.OfferPrice
		p.OfferPrice = &v
	}
	if in.CountInStock != nil {
		p.CountInStock = *in.CountInStock
	}
	if in.Brand != nil {
		p.Brand = *in.Brand
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Featured != nil {
		p.Featured = *in.Featured
	}
}

// HasReviewFrom reports whether name already reviewed the product.
func (p *Product) HasReviewFrom(name string) bool {
	for _, r := range p.Reviews {
		if r.Name == name {
			return true
		}
	}
	return false
}

// AddReview appends r and recomputes NumReviews and Rating. It fails with a
// duplicate review error, leaving p untouched, when r.Name already reviewed
// the product.
func (p *Product) AddReview(r Review) error {
	if p.HasReviewFrom(r.Name) {
		return apperrors.DuplicateReview(p.ID, r.Name)
	}
	p.Reviews = append(p.Reviews, r)
	p.recomputeRating()
	return nil
}

func (p *Product) recomputeRating() {
	p.NumReviews = len(p.Reviews)
	p.Rating = MeanRating(p.Reviews)
}

// MeanRating is the unrounded mean of the review ratings, 0 for none.
func MeanRating(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return float64(sum) / float64(len(reviews))
}
