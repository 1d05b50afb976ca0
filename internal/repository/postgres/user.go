package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const userColumns = "id, name, email, phone, is_admin, password_hash, created_at, updated_at"

// UserRepository implements repository.UserRepository.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.IsAdmin, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	stmt := "INSERT INTO users (" + userColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)"

	ctx, end := database.TraceQuery(ctx, "CreateUser", stmt)
	defer func() { end(err) }()

	u.Email = strings.TrimSpace(u.Email)
	_, err = r.db.Exec(ctx, stmt, u.ID, u.Name, u.Email, u.Phone, u.IsAdmin, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return apperrors.Persistence("insert user", err)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, where, value string) (_ *domain.User, err error) {
	stmt := "SELECT " + userColumns + " FROM users WHERE " + where

	ctx, end := database.TraceQuery(ctx, "FindUser", stmt)
	defer func() { end(err) }()

	u, err := scanUser(r.db.QueryRow(ctx, stmt, value))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("user", value)
	}
	if err != nil {
		return nil, apperrors.Persistence("find user", err)
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByEmail matches case-insensitively, served by the lower(email) index.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "lower(email) = lower($1)", strings.TrimSpace(email))
}

func (r *UserRepository) List(ctx context.Context) (_ []domain.User, err error) {
	stmt := "SELECT " + userColumns + " FROM users ORDER BY created_at, id"

	ctx, end := database.TraceQuery(ctx, "ListUsers", stmt)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, stmt)
	if err != nil {
		return nil, apperrors.Persistence("list users", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.Persistence("scan user", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Persistence("iterate users", err)
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	stmt := `
		UPDATE users
		SET name = $2, email = $3, phone = $4, is_admin = $5, password_hash = $6, updated_at = $7
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateUser", stmt)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, stmt, u.ID, u.Name, strings.TrimSpace(u.Email), u.Phone, u.IsAdmin, u.PasswordHash, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return apperrors.Persistence("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) (err error) {
	stmt := "DELETE FROM users WHERE id = $1"

	ctx, end := database.TraceQuery(ctx, "DeleteUser", stmt)
	defer func() { end(err) }()

	tag, err := r.db.Exec(ctx, stmt, id)
	if err != nil {
		return apperrors.Persistence("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}
