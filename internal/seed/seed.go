// Package seed loads a storefront catalog of users, products and reviews
// into the configured store.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

//go:embed catalog.toml
var defaultCatalog []byte

// Catalog is the seed file layout.
type Catalog struct {
	Users    []User    `toml:"users"`
	Products []Product `toml:"products"`
	Reviews  []Review  `toml:"reviews"`
}

// User is a seeded account with a plaintext password.
type User struct {
	Name     string `toml:"name"`
	Email    string `toml:"email"`
	Phone    string `toml:"phone"`
	Password string `toml:"password"`
	IsAdmin  bool   `toml:"is_admin"`
}

// Product is a seeded catalog entry. Rating and review counts are not
// accepted; they follow from the seeded reviews.
type Product struct {
	Name         string   `toml:"name"`
	Slug         string   `toml:"slug"`
	Category     string   `toml:"category"`
	Image        string   `toml:"image"`
	Price        float64  `toml:"price"`
	OfferPrice   *float64 `toml:"offer_price"`
	CountInStock int      `toml:"count_in_stock"`
	Brand        string   `toml:"brand"`
	Description  string   `toml:"description"`
	Featured     bool     `toml:"featured"`
}

// Review is a seeded review, addressed by product slug.
type Review struct {
	Product  string `toml:"product"`
	Reviewer string `toml:"reviewer"`
	Rating   int    `toml:"rating"`
	Comment  string `toml:"comment"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog file. An empty path yields the embedded catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a TOML catalog. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	for i, u := range c.Users {
		if strings.TrimSpace(u.Email) == "" || u.Password == "" {
			return nil, fmt.Errorf("users[%d]: email and password are required", i)
		}
	}
	for i, r := range c.Reviews {
		if r.Product == "" || r.Reviewer == "" {
			return nil, fmt.Errorf("reviews[%d]: product and reviewer are required", i)
		}
	}
	return &c, nil
}

// Result counts what a run created and skipped.
type Result struct {
	Users           int
	Products        int
	Reviews         int
	SkippedUsers    int
	SkippedProducts int
	SkippedReviews  int
}

// Seeder writes a catalog through the services so that slugs, ratings and
// cache invalidation behave exactly as they do for API writes.
type Seeder struct {
	users    repository.UserRepository
	products *service.ProductService
	reviews  *service.ReviewService
	logger   *slog.Logger
	// cost is the bcrypt cost for seeded passwords.
	cost int
}

// NewSeeder creates a seeder.
func NewSeeder(users repository.UserRepository, products *service.ProductService, reviews *service.ReviewService, logger *slog.Logger) *Seeder {
	return &Seeder{
		users:    users,
		products: products,
		reviews:  reviews,
		logger:   logger,
		cost:     bcrypt.DefaultCost,
	}
}

// Run seeds c. Entries that already exist (same email, slug, or reviewer
// on a product) are skipped so a run can be repeated safely.
func (s *Seeder) Run(ctx context.Context, c *Catalog) (*Result, error) {
	res := &Result{}

	for _, u := range c.Users {
		created, err := s.seedUser(ctx, u)
		if err != nil {
			return res, err
		}
		if created {
			res.Users++
		} else {
			res.SkippedUsers++
		}
	}

	for _, p := range c.Products {
		_, err := s.products.CreateProduct(ctx, domain.CreateProductInput{
			Name:         p.Name,
			Slug:         p.Slug,
			Category:     p.Category,
			Image:        p.Image,
			Price:        p.Price,
			OfferPrice:   p.OfferPrice,
			CountInStock: p.CountInStock,
			Brand:        p.Brand,
			Description:  p.Description,
			Featured:     p.Featured,
		})
		switch {
		case errors.Is(err, apperrors.ErrAlreadyExists):
			res.SkippedProducts++
		case err != nil:
			return res, fmt.Errorf("seeding product %q: %w", p.Name, err)
		default:
			res.Products++
		}
	}

	for _, r := range c.Reviews {
		p, err := s.products.GetProductBySlug(ctx, r.Product)
		if err != nil {
			return res, fmt.Errorf("seeding review for %q: %w", r.Product, err)
		}
		_, err = s.reviews.SubmitReview(ctx, p.ID, r.Reviewer, r.Rating, r.Comment)
		switch {
		case errors.Is(err, apperrors.ErrDuplicateReview):
			res.SkippedReviews++
		case err != nil:
			return res, fmt.Errorf("seeding review for %q by %q: %w", r.Product, r.Reviewer, err)
		default:
			res.Reviews++
		}
	}

	s.logger.InfoContext(ctx, "seed complete",
		slog.Int("users", res.Users),
		slog.Int("products", res.Products),
		slog.Int("reviews", res.Reviews),
		slog.Int("skipped", res.SkippedUsers+res.SkippedProducts+res.SkippedReviews),
	)
	return res, nil
}

func (s *Seeder) seedUser(ctx context.Context, u User) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return false, fmt.Errorf("looking up user %q: %w", email, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), s.cost)
	if err != nil {
		return false, fmt.Errorf("hashing password for %q: %w", email, err)
	}
	now := time.Now().UTC()
	err = s.users.Create(ctx, &domain.User{
		ID:           primitive.NewObjectID().Hex(),
		Name:         strings.TrimSpace(u.Name),
		Email:        email,
		Phone:        u.Phone,
		IsAdmin:      u.IsAdmin,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating user %q: %w", email, err)
	}
	return true, nil
}
