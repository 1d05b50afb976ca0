package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// OrderCollection is the collection orders are stored in.
const OrderCollection = "orders"

// OrderRepository stores orders as whole documents.
type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository returns a repository over db.orders.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(OrderCollection)}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "CreateOrder", "orders.insertOne")
	defer func() { end(err) }()

	if _, err := r.coll.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("order", "id", o.ID)
		}
		return apperrors.Persistence("insert order", err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "FindOrderByID", "orders.findOne")
	defer func() { end(err) }()

	var o domain.Order
	err = r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("order", id)
	}
	if err != nil {
		return nil, apperrors.Persistence("find order", err)
	}
	return &o, nil
}

func (r *OrderRepository) find(ctx context.Context, filter bson.D) ([]domain.Order, error) {
	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, apperrors.Persistence("find orders", err)
	}
	orders := []domain.Order{}
	if err := cur.All(ctx, &orders); err != nil {
		return nil, apperrors.Persistence("decode orders", err)
	}
	return orders, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) (_ []domain.Order, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "ListOrdersByUser", "orders.find")
	defer func() { end(err) }()
	return r.find(ctx, bson.D{{Key: "user", Value: userID}})
}

func (r *OrderRepository) List(ctx context.Context) (_ []domain.Order, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "ListOrders", "orders.find")
	defer func() { end(err) }()
	return r.find(ctx, bson.D{})
}

// Transition replaces the stored order with o when its paid and delivered
// flags still equal from.
func (r *OrderRepository) Transition(ctx context.Context, o *domain.Order, from domain.OrderState) (err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "TransitionOrder", "orders.replaceOne")
	defer func() { end(err) }()

	filter := bson.D{
		{Key: "_id", Value: o.ID},
		{Key: "isPaid", Value: from.IsPaid},
		{Key: "isDelivered", Value: from.IsDelivered},
	}
	res, err := r.coll.ReplaceOne(ctx, filter, o)
	if err != nil {
		return apperrors.Persistence("replace order", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: o.ID}})
	if err != nil {
		return apperrors.Persistence("count orders", err)
	}
	if n == 0 {
		return apperrors.NotFound("order", o.ID)
	}
	return apperrors.Conflict("order " + o.ID + " was modified concurrently")
}

func (r *OrderRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "DeleteOrder", "orders.deleteOne")
	defer func() { end(err) }()

	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return apperrors.Persistence("delete order", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}
