// Package postgres implements the repositories on PostgreSQL. Product
// reviews live in a JSONB column next to the derived rating columns so a
// review submission is one conditional UPDATE.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/query"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const productColumns = `id, name, slug, category, image, price, offer_price, count_in_stock, brand, description,
		featured, rating, num_reviews, reviews, created_at, updated_at`

// ProductRepository implements repository.ProductRepository.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

var sortColumns = map[query.Field]string{
	query.FieldID:        "id",
	query.FieldFeatured:  "featured",
	query.FieldPrice:     "price",
	query.FieldRating:    "rating",
	query.FieldCreatedAt: "created_at",
}

// whereClause renders f as a WHERE clause with positional arguments.
func whereClause(f query.Filter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Term != "" {
		// strpos keeps the term literal; ILIKE would treat % and _ as wildcards.
		conditions = append(conditions, fmt.Sprintf("strpos(lower(name), lower(%s)) > 0", next(f.Term)))
	}
	if f.Category != "" {
		conditions = append(conditions, "category = "+next(f.Category))
	}
	if f.MinRating != nil {
		conditions = append(conditions, "rating >= "+next(*f.MinRating))
	}
	if f.Price != nil {
		conditions = append(conditions, fmt.Sprintf("price BETWEEN %s AND %s", next(f.Price.Low), next(f.Price.High)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func orderClause(s query.Sort) string {
	parts := make([]string, 0, len(s.Keys))
	for _, k := range s.Keys {
		dir := "ASC"
		if k.Descending {
			dir = "DESC"
		}
		parts = append(parts, sortColumns[k.Field]+" "+dir)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// FindMany returns one window of the sorted matches.
func (r *ProductRepository) FindMany(ctx context.Context, filter query.Filter, sort query.Sort, skip, limit int) (_ []domain.Product, err error) {
	where, args := whereClause(filter)
	stmt := fmt.Sprintf("SELECT %s FROM products %s %s", productColumns, where, orderClause(sort))
	if limit > 0 {
		args = append(args, limit)
		stmt += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	args = append(args, skip)
	stmt += fmt.Sprintf(" OFFSET $%d", len(args))

	ctx, end := database.TraceQuery(ctx, "FindProducts", stmt)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, apperrors.Persistence("find products", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, apperrors.Persistence("scan product", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("iterate products", err)
	}
	return products, nil
}

// Count returns the number of matches.
func (r *ProductRepository) Count(ctx context.Context, filter query.Filter) (_ int64, err error) {
	where, args := whereClause(filter)
	stmt := "SELECT count(*) FROM products " + where

	ctx, end := database.TraceQuery(ctx, "CountProducts", stmt)
	defer func() { end(err) }()

	var n int64
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, apperrors.Persistence("count products", err)
	}
	return n, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p       domain.Product
		reviews []byte
	)
	if err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Category, &p.Image, &p.Price, &p.OfferPrice, &p.CountInStock,
		&p.Brand, &p.Description, &p.Featured, &p.Rating, &p.NumReviews, &reviews,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.Reviews = []domain.Review{}
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &p.Reviews); err != nil {
			return nil, fmt.Errorf("unmarshal reviews: %w", err)
		}
	}
	return &p, nil
}

func (r *ProductRepository) findOne(ctx context.Context, column, value string) (_ *domain.Product, err error) {
	stmt := fmt.Sprintf("SELECT %s FROM products WHERE %s = $1", productColumns, column)

	ctx, end := database.TraceQuery(ctx, "FindProduct", stmt)
	defer func() { end(err) }()

	p, err := scanProduct(r.db.QueryRow(ctx, stmt, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("product", value)
	}
	if err != nil {
		return nil, apperrors.Persistence("find product", err)
	}
	return p, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.findOne(ctx, "id", id)
}

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return r.findOne(ctx, "slug", slug)
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	if p.Reviews == nil {
		p.Reviews = []domain.Review{}
	}
	reviews, err := json.Marshal(p.Reviews)
	if err != nil {
		return fmt.Errorf("marshal reviews: %w", err)
	}

	stmt := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	ctx, end := database.TraceQuery(ctx, "CreateProduct", stmt)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, stmt,
		p.ID, p.Name, p.Slug, p.Category, p.Image, p.Price, p.OfferPrice, p.CountInStock,
		p.Brand, p.Description, p.Featured, p.Rating, p.NumReviews, reviews,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return apperrors.Persistence("insert product", err)
	}
	return nil
}

// Save updates the catalog columns only.
func (r *ProductRepository) Save(ctx context.Context, p *domain.Product) (err error) {
	stmt := `
		UPDATE products
		SET name = $2, slug = $3, category = $4, image = $5, price = $6, offer_price = $7,
			count_in_stock = $8, brand = $9, description = $10, featured = $11, updated_at = $12
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "SaveProduct", stmt)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, stmt,
		p.ID, p.Name, p.Slug, p.Category, p.Image, p.Price, p.OfferPrice, p.CountInStock,
		p.Brand, p.Description, p.Featured, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "slug", p.Slug)
		}
		return apperrors.Persistence("update product", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

// appendReviewStmt only matches while no review by $4 exists. Concurrent
// submissions serialise on the row lock and the loser re-evaluates the
// containment check against the committed row.
const appendReviewStmt = `
		UPDATE products
		SET reviews = reviews || $2::jsonb,
			num_reviews = jsonb_array_length(reviews || $2::jsonb),
			rating = (
				SELECT avg((elem->>'rating')::double precision)
				FROM jsonb_array_elements(reviews || $2::jsonb) AS elem
			),
			updated_at = $3
		WHERE id = $1 AND NOT reviews @> jsonb_build_array(jsonb_build_object('name', $4::text))
		RETURNING ` + productColumns

// AppendReview appends rev and recomputes the derived columns in one statement.
func (r *ProductRepository) AppendReview(ctx context.Context, productID string, rev domain.Review) (_ *domain.Product, err error) {
	payload, err := json.Marshal([]domain.Review{rev})
	if err != nil {
		return nil, fmt.Errorf("marshal review: %w", err)
	}

	ctx, end := database.TraceQuery(ctx, "AppendReview", appendReviewStmt)
	defer func() { end(err) }()

	p, err := scanProduct(r.db.QueryRow(ctx, appendReviewStmt, productID, payload, rev.CreatedAt, rev.Name))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Persistence("append review", err)
	}

	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", productID).Scan(&exists); err != nil {
		return nil, apperrors.Persistence("check product", err)
	}
	if !exists {
		return nil, apperrors.NotFound("product", productID)
	}
	return nil, apperrors.DuplicateReview(productID, rev.Name)
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	stmt := "DELETE FROM products WHERE id = $1"

	ctx, end := database.TraceQuery(ctx, "DeleteProduct", stmt)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, stmt, id)
	if err != nil {
		return apperrors.Persistence("delete product", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// Categories returns the distinct non-empty categories in ascending order.
func (r *ProductRepository) Categories(ctx context.Context) (_ []string, err error) {
	stmt := "SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category"

	ctx, end := database.TraceQuery(ctx, "ProductCategories", stmt)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, stmt)
	if err != nil {
		return nil, apperrors.Persistence("list categories", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperrors.Persistence("scan categories", err)
	}
	return out, nil
}

// isUniqueViolation reports a unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
