package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/repository/memory"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.SMS
	err  error
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Send(_ context.Context, msg notify.SMS) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

type orderFixture struct {
	svc      *OrderService
	orders   *memory.OrderRepository
	notifier *recordingNotifier
}

func newOrderFixture(t *testing.T, fallbackTo string) orderFixture {
	t.Helper()
	users := memory.NewUserRepository()
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, &domain.User{ID: "u1", Name: "John", Email: "user@example.com", Phone: "+15550001111"}))
	require.NoError(t, users.Create(ctx, &domain.User{ID: "u2", Name: "Jane", Email: "jane@example.com"}))

	orders := memory.NewOrderRepository()
	n := &recordingNotifier{}
	return orderFixture{
		svc:      NewOrderService(orders, users, n, newTestProducer(), newTestLogger(), fallbackTo),
		orders:   orders,
		notifier: n,
	}
}

func checkout() domain.CreateOrderInput {
	return domain.CreateOrderInput{
		OrderItems: []domain.OrderItem{
			{Name: "Nike Slim Pant", Slug: "nike-slim-pant", Quantity: 2, Price: 25, Product: pantID},
			{Name: "Levi's Slim Jeans", Slug: "levis-slim-jeans", Quantity: 1, Price: 80.1, Product: "000000000000000000000006"},
		},
		ShippingAddress: domain.ShippingAddress{FullName: "John", Address: "1 Main St", City: "Dhaka", PostalCode: "1207", Country: "BD"},
		PaymentMethod:   "PayPal",
		ShippingPrice:   10,
		TaxPrice:        19.52,
	}
}

func TestCreateOrder_RecomputesTotals(t *testing.T) {
	f := newOrderFixture(t, "")
	in := checkout()

	o, err := f.svc.CreateOrder(context.Background(), "u1", in)
	require.NoError(t, err)
	assert.Equal(t, "u1", o.User)
	assert.Equal(t, 130.1, o.ItemsPrice)
	assert.Equal(t, 159.62, o.TotalPrice)
	assert.False(t, o.IsPaid)
	assert.Len(t, o.ID, 24)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, "u1", domain.CreateOrderInput{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	in := checkout()
	in.OrderItems[0].Quantity = 0
	_, err = f.svc.CreateOrder(ctx, "u1", in)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	in = checkout()
	in.TaxPrice = -1
	_, err = f.svc.CreateOrder(ctx, "u1", in)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestListMine_OnlyCallersOrders(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()

	_, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)
	_, err = f.svc.CreateOrder(ctx, "u2", checkout())
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "u1", mine[0].User)

	all, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetOrder_Access(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, o.ID, Caller{UserID: "u1"})
	assert.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, o.ID, Caller{UserID: "u9", IsAdmin: true})
	assert.NoError(t, err)
	_, err = f.svc.GetOrder(ctx, o.ID, Caller{UserID: "u2"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	_, err = f.svc.GetOrder(ctx, "nope", Caller{UserID: "u1"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPayOrder_SendsSMS(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)

	paid, err := f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u1"}, domain.PaymentResult{
		ID: "PAY-1", Status: "COMPLETED", UpdateTime: "2024-05-01T10:00:00Z", EmailAddress: "user@example.com",
	})
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, "PAY-1", paid.PaymentResult.ID)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "+15550001111", f.notifier.sent[0].To)
	assert.Equal(t, "Your order "+o.ID+" has been paid successfully on 2024-05-01T10:00:00Z!", f.notifier.sent[0].Body)

	stored, err := f.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPaid)
}

func TestPayOrder_Twice(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)

	_, err = f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u1"}, domain.PaymentResult{ID: "PAY-1"})
	require.NoError(t, err)
	_, err = f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u1"}, domain.PaymentResult{ID: "PAY-2"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Len(t, f.notifier.sent, 1)
}

func TestPayOrder_ConcurrentPaymentsOnlyOneWins(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)

	const payers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < payers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u1"}, domain.PaymentResult{ID: "PAY"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperrors.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, payers-1, conflicts)
	assert.Len(t, f.notifier.sent, 1)
}

// staleOrders serves a fixed copy of an order, as a reader that lost a race
// with another writer would see it.
type staleOrders struct {
	*memory.OrderRepository
	snapshot domain.Order
}

func (s staleOrders) FindByID(context.Context, string) (*domain.Order, error) {
	o := s.snapshot
	return &o, nil
}

func TestPayOrder_StaleReadIsRejected(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)

	stale := staleOrders{OrderRepository: f.orders, snapshot: *o}
	users := memory.NewUserRepository()
	n := &recordingNotifier{}
	racer := NewOrderService(stale, users, n, newTestProducer(), newTestLogger(), "+15550002222")

	_, err = f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u1"}, domain.PaymentResult{ID: "PAY-1"})
	require.NoError(t, err)

	_, err = racer.PayOrder(ctx, o.ID, Caller{UserID: "u1"}, domain.PaymentResult{ID: "PAY-2"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Empty(t, n.sent)

	stored, err := f.orders.FindByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", stored.PaymentResult.ID)
}

func TestDeliverOrder_StaleReadIsRejected(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)
	paid, err := f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u1"}, domain.PaymentResult{ID: "PAY-1"})
	require.NoError(t, err)

	stale := staleOrders{OrderRepository: f.orders, snapshot: *paid}
	racer := NewOrderService(stale, memory.NewUserRepository(), nil, newTestProducer(), newTestLogger(), "")

	_, err = f.svc.DeliverOrder(ctx, o.ID)
	require.NoError(t, err)
	_, err = racer.DeliverOrder(ctx, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestPayOrder_SMSFailureDoesNotFailPayment(t *testing.T) {
	f := newOrderFixture(t, "")
	f.notifier.err = errors.New("provider down")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)

	paid, err := f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u1"}, domain.PaymentResult{ID: "PAY-1"})
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.Len(t, f.notifier.sent, 1)
}

func TestPayOrder_FallbackNumber(t *testing.T) {
	f := newOrderFixture(t, "+15559998888")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u2", checkout())
	require.NoError(t, err)

	_, err = f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u2"}, domain.PaymentResult{ID: "PAY-1"})
	require.NoError(t, err)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "+15559998888", f.notifier.sent[0].To)
}

func TestPayOrder_NoNumberSkipsSMS(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u2", checkout())
	require.NoError(t, err)

	_, err = f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u2"}, domain.PaymentResult{ID: "PAY-1"})
	require.NoError(t, err)
	assert.Empty(t, f.notifier.sent)
}

func TestPayOrder_ForeignUser(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)

	_, err = f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u2"}, domain.PaymentResult{ID: "PAY-1"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Empty(t, f.notifier.sent)
}

func TestDeliverOrder(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)

	_, err = f.svc.DeliverOrder(ctx, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.svc.PayOrder(ctx, o.ID, Caller{UserID: "u1"}, domain.PaymentResult{ID: "PAY-1"})
	require.NoError(t, err)

	delivered, err := f.svc.DeliverOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered)
	assert.NotNil(t, delivered.DeliveredAt)

	_, err = f.svc.DeliverOrder(ctx, o.ID)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestDeleteOrder(t *testing.T) {
	f := newOrderFixture(t, "")
	ctx := context.Background()
	o, err := f.svc.CreateOrder(ctx, "u1", checkout())
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteOrder(ctx, o.ID))
	assert.ErrorIs(t, f.svc.DeleteOrder(ctx, o.ID), apperrors.ErrNotFound)
}
