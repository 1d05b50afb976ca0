package query

import (
	"cmp"
	"strings"

	"github.com/utafrali/storefront/internal/domain"
)

// Field is a sortable product attribute.
type Field string

// Sortable fields.
const (
	FieldID        Field = "_id"
	FieldFeatured  Field = "featured"
	FieldPrice     Field = "price"
	FieldRating    Field = "rating"
	FieldCreatedAt Field = "createdAt"
)

// Key is one ordering criterion.
type Key struct {
	Field      Field
	Descending bool
}

// Sort is an ordered list of keys, most significant first. Every Sort
// produced by ResolveSort ends on the id so orderings are total.
type Sort struct {
	Token string
	Keys  []Key
}

// ResolveSort maps a sort token to an ordering. Unknown and empty tokens
// fall back to newest id first.
func ResolveSort(token string) Sort {
	token = strings.ToLower(strings.TrimSpace(token))
	var primary Key
	switch token {
	case domain.SortFeatured:
		primary = Key{FieldFeatured, true}
	case domain.SortLowest:
		primary = Key{FieldPrice, false}
	case domain.SortHighest:
		primary = Key{FieldPrice, true}
	case domain.SortTopRated:
		primary = Key{FieldRating, true}
	case domain.SortNewest:
		primary = Key{FieldCreatedAt, true}
	default:
		return Sort{Token: "", Keys: []Key{{FieldID, true}}}
	}
	return Sort{Token: token, Keys: []Key{primary, {FieldID, false}}}
}

// Less reports whether a orders before b.
func (s Sort) Less(a, b *domain.Product) bool {
	return s.Compare(a, b) < 0
}

// Compare returns -1, 0 or 1 as a orders before, level with or after b.
func (s Sort) Compare(a, b *domain.Product) int {
	for _, k := range s.Keys {
		c := compareField(k.Field, a, b)
		if k.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func compareField(f Field, a, b *domain.Product) int {
	switch f {
	case FieldFeatured:
		return compareBool(a.Featured, b.Featured)
	case FieldPrice:
		return cmp.Compare(a.Price, b.Price)
	case FieldRating:
		return cmp.Compare(a.Rating, b.Rating)
	case FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return strings.Compare(a.ID, b.ID)
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}
