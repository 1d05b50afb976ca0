package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/query"
)

func TestFilterDoc_Empty(t *testing.T) {
	assert.Equal(t, bson.D{}, filterDoc(query.Filter{}))
}

func TestFilterDoc_AllPredicates(t *testing.T) {
	f, err := query.BuildFilter(domain.SearchQuery{
		Query:    "Slim (Fit)",
		Category: "Shirts",
		Rating:   "4",
		Price:    "1-50",
	})
	require.NoError(t, err)

	doc := filterDoc(f)
	require.Len(t, doc, 4)

	assert.Equal(t, "name", doc[0].Key)
	assert.Equal(t, primitive.Regex{Pattern: `Slim \(Fit\)`, Options: "i"}, doc[0].Value)
	assert.Equal(t, bson.E{Key: "category", Value: "Shirts"}, doc[1])
	assert.Equal(t, bson.E{Key: "rating", Value: bson.D{{Key: "$gte", Value: 4.0}}}, doc[2])
	assert.Equal(t, bson.E{Key: "price", Value: bson.D{
		{Key: "$gte", Value: 1.0},
		{Key: "$lte", Value: 50.0},
	}}, doc[3])
}

func TestSortDoc(t *testing.T) {
	tests := []struct {
		token string
		want  bson.D
	}{
		{"", bson.D{{Key: "_id", Value: -1}}},
		{"lowest", bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}},
		{"highest", bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}},
		{"toprated", bson.D{{Key: "rating", Value: -1}, {Key: "_id", Value: 1}}},
		{"featured", bson.D{{Key: "featured", Value: -1}, {Key: "_id", Value: 1}}},
		{"newest", bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, sortDoc(query.ResolveSort(tt.token)))
		})
	}
}
