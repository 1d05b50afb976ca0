package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// OrderRepository stores each order as a JSONB document.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	stmt := "INSERT INTO orders (id, user_id, doc, created_at) VALUES ($1, $2, $3, $4)"

	ctx, end := database.TraceQuery(ctx, "CreateOrder", stmt)
	defer func() { end(err) }()

	if _, err := r.db.Exec(ctx, stmt, o.ID, o.User, doc, o.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("order", "id", o.ID)
		}
		return apperrors.Persistence("insert order", err)
	}
	return nil
}

func decodeOrder(raw []byte) (*domain.Order, error) {
	var o domain.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	stmt := "SELECT doc FROM orders WHERE id = $1"

	ctx, end := database.TraceQuery(ctx, "FindOrderByID", stmt)
	defer func() { end(err) }()

	var raw []byte
	err = r.db.QueryRow(ctx, stmt, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("order", id)
	}
	if err != nil {
		return nil, apperrors.Persistence("find order", err)
	}
	o, err := decodeOrder(raw)
	if err != nil {
		return nil, apperrors.Persistence("decode order", err)
	}
	return o, nil
}

func (r *OrderRepository) list(ctx context.Context, op, stmt string, args ...any) (_ []domain.Order, err error) {
	ctx, end := database.TraceQuery(ctx, op, stmt)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, apperrors.Persistence("list orders", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, apperrors.Persistence("scan order", err)
		}
		o, err := decodeOrder(raw)
		if err != nil {
			return nil, apperrors.Persistence("decode order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("iterate orders", err)
	}
	return orders, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, "ListOrdersByUser",
		"SELECT doc FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, "ListOrders", "SELECT doc FROM orders ORDER BY created_at DESC, id DESC")
}

// Transition overwrites the document only while its stored flags still
// match from, so two concurrent payments cannot both succeed.
func (r *OrderRepository) Transition(ctx context.Context, o *domain.Order, from domain.OrderState) (err error) {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	stmt := `UPDATE orders SET doc = $2
		WHERE id = $1 AND (doc->>'isPaid')::boolean = $3 AND (doc->>'isDelivered')::boolean = $4`

	ctx, end := database.TraceQuery(ctx, "TransitionOrder", stmt)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, stmt, o.ID, doc, from.IsPaid, from.IsDelivered)
	if err != nil {
		return apperrors.Persistence("update order", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", o.ID).Scan(&exists); err != nil {
		return apperrors.Persistence("check order", err)
	}
	if !exists {
		return apperrors.NotFound("order", o.ID)
	}
	return apperrors.Conflict("order " + o.ID + " was modified concurrently")
}

func (r *OrderRepository) Delete(ctx context.Context, id string) (err error) {
	stmt := "DELETE FROM orders WHERE id = $1"

	ctx, end := database.TraceQuery(ctx, "DeleteOrder", stmt)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, stmt, id)
	if err != nil {
		return apperrors.Persistence("delete order", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}
