package domain

import (
	"math"
	"time"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// OrderItem is a line in an order. Name, image and price are snapshots
// taken when the order was placed.
type OrderItem struct {
	Name     string  `json:"name" bson:"name"`
	Slug     string  `json:"slug" bson:"slug"`
	Quantity int     `json:"quantity" bson:"quantity"`
	Image    string  `json:"image" bson:"image"`
	Price    float64 `json:"price" bson:"price"`
	Product  string  `json:"product" bson:"product"`
}

// ShippingAddress is where an order is delivered.
type ShippingAddress struct {
	FullName   string `json:"fullName" bson:"fullName"`
	Address    string `json:"address" bson:"address"`
	City       string `json:"city" bson:"city"`
	PostalCode string `json:"postalCode" bson:"postalCode"`
	Country    string `json:"country" bson:"country"`
}

// PaymentResult is the payment provider's receipt as relayed by the client.
type PaymentResult struct {
	ID           string `json:"id" bson:"id"`
	Status       string `json:"status" bson:"status"`
	UpdateTime   string `json:"update_time" bson:"update_time"`
	EmailAddress string `json:"email_address" bson:"email_address"`
}

// Order is a customer's purchase.
type Order struct {
	ID              string          `json:"_id" bson:"_id"`
	User            string          `json:"user" bson:"user"`
	OrderItems      []OrderItem     `json:"orderItems" bson:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress" bson:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod" bson:"paymentMethod"`
	PaymentResult   *PaymentResult  `json:"paymentResult,omitempty" bson:"paymentResult,omitempty"`
	ItemsPrice      float64         `json:"itemsPrice" bson:"itemsPrice"`
	ShippingPrice   float64         `json:"shippingPrice" bson:"shippingPrice"`
	TaxPrice        float64         `json:"taxPrice" bson:"taxPrice"`
	TotalPrice      float64         `json:"totalPrice" bson:"totalPrice"`
	IsPaid          bool            `json:"isPaid" bson:"isPaid"`
	PaidAt          *time.Time      `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
	IsDelivered     bool            `json:"isDelivered" bson:"isDelivered"`
	DeliveredAt     *time.Time      `json:"deliveredAt,omitempty" bson:"deliveredAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// CreateOrderInput is what a customer submits at checkout. Item and total
// prices are recomputed server side; only shipping and tax are taken as is.
type CreateOrderInput struct {
	OrderItems      []OrderItem
	ShippingAddress ShippingAddress
	PaymentMethod   string
	ShippingPrice   float64
	TaxPrice        float64
}

// RecomputeTotals sets ItemsPrice to the sum of price × quantity and
// TotalPrice to items + shipping + tax, rounded to cents.
func (o *Order) RecomputeTotals() {
	items := 0.0
	for _, it := range o.OrderItems {
		items += it.Price * float64(it.Quantity)
	}
	o.ItemsPrice = roundCents(items)
	o.TotalPrice = roundCents(o.ItemsPrice + o.ShippingPrice + o.TaxPrice)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// OwnedBy reports whether userID placed the order.
func (o *Order) OwnedBy(userID string) bool {
	return o.User == userID
}

// OrderState is the payment and delivery progress of an order. Stores use
// it to make a status change conditional on what the caller last read.
type OrderState struct {
	IsPaid      bool
	IsDelivered bool
}

// State returns the order's current progress.
func (o *Order) State() OrderState {
	return OrderState{IsPaid: o.IsPaid, IsDelivered: o.IsDelivered}
}

// MarkPaid records a payment. An order can be paid once.
func (o *Order) MarkPaid(result PaymentResult, at time.Time) error {
	if o.IsPaid {
		return apperrors.Conflict("order " + o.ID + " is already paid")
	}
	o.IsPaid = true
	o.PaidAt = &at
	o.PaymentResult = &result
	o.UpdatedAt = at
	return nil
}

// MarkDelivered records delivery of a paid order.
func (o *Order) MarkDelivered(at time.Time) error {
	if !o.IsPaid {
		return apperrors.Conflict("order " + o.ID + " has not been paid")
	}
	if o.IsDelivered {
		return apperrors.Conflict("order " + o.ID + " is already delivered")
	}
	o.IsDelivered = true
	o.DeliveredAt = &at
	o.UpdatedAt = at
	return nil
}
