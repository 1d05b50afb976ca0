package domain

import "time"

// Review rating bounds.
const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

// Review is a single rating left on a product. A reviewer name appears at
// most once per product and reviews keep their submission order.
type Review struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Rating    int       `json:"rating" bson:"rating"`
	Comment   string    `json:"comment" bson:"comment"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// ValidReviewRating reports whether rating is within 1..5.
func ValidReviewRating(rating int) bool {
	return rating >= MinReviewRating && rating <= MaxReviewRating
}

// ReviewOutcome is what a successful review submission echoes back.
type ReviewOutcome struct {
	Review     Review  `json:"review"`
	NumReviews int     `json:"numReviews"`
	Rating     float64 `json:"rating"`
}
