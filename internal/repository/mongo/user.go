package mongo

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// UserCollection is the collection user accounts are stored in.
const UserCollection = "users"

// UserRepository stores accounts. Emails are lowercased before they are
// written so the unique index enforces case-insensitive uniqueness.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository returns a repository over db.users.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(UserCollection)}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "CreateUser", "users.insertOne")
	defer func() { end(err) }()

	u.Email = normalizeEmail(u.Email)
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return apperrors.Persistence("insert user", err)
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.D, ref string) (*domain.User, error) {
	var u domain.User
	err := r.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("user", ref)
	}
	if err != nil {
		return nil, apperrors.Persistence("find user", err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (_ *domain.User, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "FindUserByID", "users.findOne")
	defer func() { end(err) }()
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}}, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (_ *domain.User, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "FindUserByEmail", "users.findOne")
	defer func() { end(err) }()
	return r.findOne(ctx, bson.D{{Key: "email", Value: normalizeEmail(email)}}, email)
}

func (r *UserRepository) List(ctx context.Context) (_ []domain.User, err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "ListUsers", "users.find")
	defer func() { end(err) }()

	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, apperrors.Persistence("find users", err)
	}
	users := []domain.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, apperrors.Persistence("decode users", err)
	}
	return users, nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) (err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "UpdateUser", "users.replaceOne")
	defer func() { end(err) }()

	u.Email = normalizeEmail(u.Email)
	res, err := r.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: u.ID}}, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return apperrors.Persistence("replace user", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.Trace(ctx, database.SystemMongo, "DeleteUser", "users.deleteOne")
	defer func() { end(err) }()

	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return apperrors.Persistence("delete user", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}
