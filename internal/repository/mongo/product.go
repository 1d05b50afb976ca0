package mongo

import (
	"context"
	"errors"
	"slices"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/query"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// ProductCollection is the collection products are stored in.
const ProductCollection = "products"

// ProductRepository stores products as documents with embedded reviews.
type ProductRepository struct {
	coll *mongo.Collection
}

// NewProductRepository returns a repository over db.products.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(ProductCollection)}
}

// FindMany runs a sorted, windowed find. Sorting happens server side before
// skip and limit are applied.
func (r *ProductRepository) FindMany(ctx context.Context, filter query.Filter, sort query.Sort, skip, limit int) (_ []domain.Product, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "FindProducts", "products.find")
	defer func() { end(err) }()

	opts := options.Find().SetSort(sortDoc(sort)).SetSkip(int64(skip))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.coll.Find(ctx, filterDoc(filter), opts)
	if err != nil {
		return nil, apperrors.Persistence("find products", err)
	}
	products := []domain.Product{}
	if err := cur.All(ctx, &products); err != nil {
		return nil, apperrors.Persistence("decode products", err)
	}
	return products, nil
}

// Count counts documents matching filter.
func (r *ProductRepository) Count(ctx context.Context, filter query.Filter) (_ int64, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "CountProducts", "products.countDocuments")
	defer func() { end(err) }()

	n, err := r.coll.CountDocuments(ctx, filterDoc(filter))
	if err != nil {
		return 0, apperrors.Persistence("count products", err)
	}
	return n, nil
}

func (r *ProductRepository) findOne(ctx context.Context, key, value string) (*domain.Product, error) {
	var p domain.Product
	err := r.coll.FindOne(ctx, bson.D{{Key: key, Value: value}}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("product", value)
	}
	if err != nil {
		return nil, apperrors.Persistence("find product", err)
	}
	return &p, nil
}

// FindByID loads a product by id.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "FindProductByID", "products.findOne")
	defer func() { end(err) }()
	return r.findOne(ctx, "_id", id)
}

// FindBySlug loads a product by slug.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (_ *domain.Product, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "FindProductBySlug", "products.findOne")
	defer func() { end(err) }()
	return r.findOne(ctx, "slug", slug)
}

// Create inserts p. The unique slug index turns collisions into an
// already-exists error.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "CreateProduct", "products.insertOne")
	defer func() { end(err) }()

	if p.Reviews == nil {
		p.Reviews = []domain.Review{}
	}
	if _, err := r.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return apperrors.Persistence("insert product", err)
	}
	return nil
}

// Save overwrites the catalog fields of p. Review fields are not part of
// the update so concurrent review submissions are never clobbered.
func (r *ProductRepository) Save(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "SaveProduct", "products.updateOne")
	defer func() { end(err) }()

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "name", Value: p.Name},
		{Key: "slug", Value: p.Slug},
		{Key: "category", Value: p.Category},
		{Key: "image", Value: p.Image},
		{Key: "price", Value: p.Price},
		{Key: "offerPrice", Value: p.OfferPrice},
		{Key: "countInStock", Value: p.CountInStock},
		{Key: "brand", Value: p.Brand},
		{Key: "description", Value: p.Description},
		{Key: "featured", Value: p.Featured},
		{Key: "updatedAt", Value: p.UpdatedAt},
	}}}
	res, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: p.ID}}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return apperrors.Persistence("update product", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

// AppendReview appends rev with a single findOneAndUpdate whose filter only
// matches while no review by rev.Name exists. The update pipeline rebuilds
// numReviews and rating from the new review list in the same write.
func (r *ProductRepository) AppendReview(ctx context.Context, productID string, rev domain.Review) (_ *domain.Product, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "AppendReview", "products.findOneAndUpdate")
	defer func() { end(err) }()

	filter := bson.D{
		{Key: "_id", Value: productID},
		{Key: "reviews.name", Value: bson.D{{Key: "$ne", Value: rev.Name}}},
	}
	update := appendReviewPipeline(rev)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p domain.Product
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&p)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.Persistence("append review", err)
	}

	// Nothing matched: either the product is gone or the reviewer is taken.
	if _, err := r.findOne(ctx, "_id", productID); err != nil {
		return nil, err
	}
	return nil, apperrors.DuplicateReview(productID, rev.Name)
}

func appendReviewPipeline(rev domain.Review) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "reviews", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$reviews", bson.A{}}}},
				bson.A{bson.D{{Key: "$literal", Value: rev}}},
			}}}},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "numReviews", Value: bson.D{{Key: "$size", Value: "$reviews"}}},
			{Key: "rating", Value: bson.D{{Key: "$avg", Value: "$reviews.rating"}}},
			{Key: "updatedAt", Value: rev.CreatedAt},
		}}},
	}
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "DeleteProduct", "products.deleteOne")
	defer func() { end(err) }()

	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return apperrors.Persistence("delete product", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// Categories returns the distinct category values, sorted.
func (r *ProductRepository) Categories(ctx context.Context) (_ []string, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "ProductCategories", "products.distinct")
	defer func() { end(err) }()

	values, err := r.coll.Distinct(ctx, "category", bson.D{})
	if err != nil {
		return nil, apperrors.Persistence("distinct categories", err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out, nil
}
