// Package mongo implements the repositories on MongoDB. Products embed
// their reviews so a review submission is a single-document update.
package mongo

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/utafrali/storefront/internal/query"
)

// filterDoc translates f into a find/count filter.
func filterDoc(f query.Filter) bson.D {
	doc := bson.D{}
	if f.Term != "" {
		doc = append(doc, bson.E{Key: "name", Value: primitive.Regex{Pattern: regexp.QuoteMeta(f.Term), Options: "i"}})
	}
	if f.Category != "" {
		doc = append(doc, bson.E{Key: "category", Value: f.Category})
	}
	if f.MinRating != nil {
		doc = append(doc, bson.E{Key: "rating", Value: bson.D{{Key: "$gte", Value: *f.MinRating}}})
	}
	if f.Price != nil {
		doc = append(doc, bson.E{Key: "price", Value: bson.D{
			{Key: "$gte", Value: f.Price.Low},
			{Key: "$lte", Value: f.Price.High},
		}})
	}
	return doc
}

// sortDoc translates s into a Mongo sort document.
func sortDoc(s query.Sort) bson.D {
	doc := make(bson.D, 0, len(s.Keys))
	for _, k := range s.Keys {
		dir := 1
		if k.Descending {
			dir = -1
		}
		doc = append(doc, bson.E{Key: string(k.Field), Value: dir})
	}
	return doc
}
