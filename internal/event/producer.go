// Package event publishes storefront domain events to Kafka.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Topics published by the storefront.
var (
	TopicProductCreated  = pkgkafka.Topic("product", "created")
	TopicProductUpdated  = pkgkafka.Topic("product", "updated")
	TopicProductDeleted  = pkgkafka.Topic("product", "deleted")
	TopicProductReviewed = pkgkafka.Topic("product", "reviewed")
	TopicOrderCreated    = pkgkafka.Topic("order", "created")
	TopicOrderPaid       = pkgkafka.Topic("order", "paid")
	TopicOrderDelivered  = pkgkafka.Topic("order", "delivered")
)

// Aggregate types.
const (
	AggregateProduct = "product"
	AggregateOrder   = "order"
)

// Source identifies this service in event envelopes.
const Source = "storefront"

// ProductData is the payload of product.created and product.updated.
type ProductData struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	Category     string   `json:"category"`
	Brand        string   `json:"brand"`
	Price        float64  `json:"price"`
	OfferPrice   *float64 `json:"offer_price,omitempty"`
	CountInStock int      `json:"count_in_stock"`
}

// ProductDeletedData is the payload of product.deleted.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// ProductReviewedData is the payload of product.reviewed.
type ProductReviewedData struct {
	ProductID  string  `json:"product_id"`
	ReviewID   string  `json:"review_id"`
	Reviewer   string  `json:"reviewer"`
	Rating     int     `json:"rating"`
	NumReviews int     `json:"num_reviews"`
	AvgRating  float64 `json:"avg_rating"`
}

// OrderData is the payload of the order events.
type OrderData struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Items       int     `json:"items"`
	TotalPrice  float64 `json:"total_price"`
	IsPaid      bool    `json:"is_paid"`
	IsDelivered bool    `json:"is_delivered"`
}

// Producer publishes domain events. A Producer without a Kafka producer
// drops events, which is how the service runs with Kafka disabled.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer. kafka may be nil.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{kafka: kafka, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p.kafka == nil {
		p.logger.DebugContext(ctx, "kafka disabled, dropping event", slog.String("topic", topic))
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	if uid := logger.UserIDFromContext(ctx); uid != "" {
		evt.WithActor(uid)
	}
	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

func productData(pr *domain.Product) ProductData {
	return ProductData{
		ID:           pr.ID,
		Name:         pr.Name,
		Slug:         pr.Slug,
		Category:     pr.Category,
		Brand:        pr.Brand,
		Price:        pr.Price,
		OfferPrice:   pr.OfferPrice,
		CountInStock: pr.CountInStock,
	}
}

func orderData(o *domain.Order) OrderData {
	return OrderData{
		ID:          o.ID,
		UserID:      o.User,
		Items:       len(o.OrderItems),
		TotalPrice:  o.TotalPrice,
		IsPaid:      o.IsPaid,
		IsDelivered: o.IsDelivered,
	}
}

func (p *Producer) ProductCreated(ctx context.Context, pr *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, pr.ID, AggregateProduct, productData(pr))
}

func (p *Producer) ProductUpdated(ctx context.Context, pr *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, pr.ID, AggregateProduct, productData(pr))
}

func (p *Producer) ProductDeleted(ctx context.Context, id string) error {
	return p.publish(ctx, TopicProductDeleted, id, AggregateProduct, ProductDeletedData{ID: id})
}

func (p *Producer) ProductReviewed(ctx context.Context, productID string, out domain.ReviewOutcome) error {
	return p.publish(ctx, TopicProductReviewed, productID, AggregateProduct, ProductReviewedData{
		ProductID:  productID,
		ReviewID:   out.Review.ID,
		Reviewer:   out.Review.Name,
		Rating:     out.Review.Rating,
		NumReviews: out.NumReviews,
		AvgRating:  out.Rating,
	})
}

func (p *Producer) OrderCreated(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, o.ID, AggregateOrder, orderData(o))
}

func (p *Producer) OrderPaid(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderPaid, o.ID, AggregateOrder, orderData(o))
}

func (p *Producer) OrderDelivered(ctx context.Context, o *domain.Order) error {
	return p.publish(ctx, TopicOrderDelivered, o.ID, AggregateOrder, orderData(o))
}
