// Package service holds the storefront business logic. Services depend on
// the repository interfaces and report failures as apperrors values.
package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/utafrali/storefront/internal/domain"
)

// SearchCache caches search result pages. Implementations must be safe for
// concurrent use. Versioned pins a key to the catalog version current at
// lookup time; Get and Set take the pinned key.
type SearchCache interface {
	Versioned(ctx context.Context, key string) (string, error)
	Get(ctx context.Context, vkey string) (*domain.SearchResult, bool, error)
	Set(ctx context.Context, vkey string, res *domain.SearchResult) error
	Invalidate(ctx context.Context) error
}

// Caller identifies the authenticated user making a request.
type Caller struct {
	UserID  string
	IsAdmin bool
}

// CanAccess reports whether the caller may act on a resource owned by ownerID.
func (c Caller) CanAccess(ownerID string) bool {
	return c.IsAdmin || (c.UserID != "" && c.UserID == ownerID)
}

// newID returns a document id in ObjectID hex form.
func newID() string {
	return primitive.NewObjectID().Hex()
}

func utcNow() time.Time {
	return time.Now().UTC()
}
