package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// OrderService manages the order lifecycle.
type OrderService struct {
	orders   repository.OrderRepository
	users    repository.UserRepository
	notifier notify.Notifier
	producer *event.Producer
	logger   *slog.Logger
	// smsFallbackTo receives payment messages for users without a phone.
	smsFallbackTo string
	now           func() time.Time
}

// NewOrderService creates an order service.
func NewOrderService(
	orders repository.OrderRepository,
	users repository.UserRepository,
	notifier notify.Notifier,
	producer *event.Producer,
	logger *slog.Logger,
	smsFallbackTo string,
) *OrderService {
	return &OrderService{
		orders:        orders,
		users:         users,
		notifier:      notifier,
		producer:      producer,
		logger:        logger,
		smsFallbackTo: smsFallbackTo,
		now:           utcNow,
	}
}

func validateOrderInput(in domain.CreateOrderInput) error {
	if len(in.OrderItems) == 0 {
		return apperrors.InvalidInput("order must contain at least one item")
	}
	for i, it := range in.OrderItems {
		if it.Quantity < 1 {
			return apperrors.InvalidInput(fmt.Sprintf("orderItems[%d]: quantity must be at least 1", i))
		}
		if it.Price < 0 {
			return apperrors.InvalidInput(fmt.Sprintf("orderItems[%d]: price must not be negative", i))
		}
	}
	if in.ShippingPrice < 0 || in.TaxPrice < 0 {
		return apperrors.InvalidInput("shipping and tax must not be negative")
	}
	return nil
}

// CreateOrder places an order for userID. Item and total prices are
// recomputed from the line items.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, in domain.CreateOrderInput) (*domain.Order, error) {
	if err := validateOrderInput(in); err != nil {
		return nil, err
	}

	now := s.now()
	o := &domain.Order{
		ID:              newID(),
		User:            userID,
		OrderItems:      in.OrderItems,
		ShippingAddress: in.ShippingAddress,
		PaymentMethod:   in.PaymentMethod,
		ShippingPrice:   in.ShippingPrice,
		TaxPrice:        in.TaxPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.RecomputeTotals()

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.producer.OrderCreated(ctx, o); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", o.ID),
		slog.String("user_id", userID),
		slog.Float64("total_price", o.TotalPrice),
	)
	return o, nil
}

// ListMine returns the caller's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, userID string) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns an order visible to the caller.
func (s *OrderService) GetOrder(ctx context.Context, id string, caller Caller) (*domain.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !caller.CanAccess(o.User) {
		return nil, apperrors.Forbidden("order belongs to another user")
	}
	return o, nil
}

// PayOrder records payment and texts the customer. A failed SMS is logged
// and does not fail the payment.
func (s *OrderService) PayOrder(ctx context.Context, id string, caller Caller, result domain.PaymentResult) (*domain.Order, error) {
	o, err := s.GetOrder(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	from := o.State()
	if err := o.MarkPaid(result, s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.Transition(ctx, o, from); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	s.sendPaymentSMS(ctx, o)
	if err := s.producer.OrderPaid(ctx, o); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.paid event",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "order paid", slog.String("order_id", o.ID))
	return o, nil
}

func (s *OrderService) sendPaymentSMS(ctx context.Context, o *domain.Order) {
	if s.notifier == nil {
		return
	}

	to := s.smsFallbackTo
	if u, err := s.users.FindByID(ctx, o.User); err == nil && u.Phone != "" {
		to = u.Phone
	}
	if to == "" {
		s.logger.DebugContext(ctx, "no phone number for payment sms", slog.String("order_id", o.ID))
		return
	}

	updateTime := o.PaymentResult.UpdateTime
	if updateTime == "" {
		updateTime = o.PaidAt.Format(time.RFC3339)
	}
	msg := notify.SMS{To: to, Body: notify.PaymentMessage(o.ID, updateTime)}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "payment sms failed",
			slog.String("order_id", o.ID),
			slog.String("notifier", s.notifier.Name()),
			slog.String("error", err.Error()),
		)
	}
}

// DeliverOrder marks a paid order as delivered.
func (s *OrderService) DeliverOrder(ctx context.Context, id string) (*domain.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	from := o.State()
	if err := o.MarkDelivered(s.now()); err != nil {
		return nil, err
	}
	if err := s.orders.Transition(ctx, o, from); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if err := s.producer.OrderDelivered(ctx, o); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.delivered event",
			slog.String("order_id", o.ID),
			slog.String("error", err.Error()),
		)
	}
	return o, nil
}

// ListOrders returns every order, newest first.
func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// DeleteOrder removes an order.
func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	s.logger.InfoContext(ctx, "order deleted", slog.String("order_id", id))
	return nil
}
