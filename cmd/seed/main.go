// Command seed loads a storefront catalog into the configured store and
// prints bearer tokens for the seeded accounts.
//
// Connection settings come from the same environment variables as the
// server; see internal/config.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/seed"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/internal/storage/memory"
	"github.com/utafrali/storefront/pkg/logger"
)

func main() {
	cmd := &cli.Command{
		Name:  "seed",
		Usage: "Populate the storefront store with users, products and reviews",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "store",
				Usage: "Store driver (mongo, postgres, memory); defaults to STORE_DRIVER",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level",
				Value: "info",
			},
		},
		Commands: []*cli.Command{
			loadCommand(),
			tokensCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Load a TOML catalog; existing users, products and reviews are skipped",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "catalog",
				Usage: "Catalog file; the built-in catalog is used when empty",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			catalog, err := seed.Load(c.String("catalog"))
			if err != nil {
				return err
			}
			log := logger.New("storefront-seed", c.String("log-level"))
			cfg, stores, err := open(ctx, c.String("store"), log)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close(context.Background()) }()

			producer := event.NewProducer(nil, log)
			products := service.NewProductService(stores.Products, memory.New(cfg.UploadBaseURL), producer, log)
			reviews := service.NewReviewService(stores.Products, nil, producer, log)

			res, err := seed.NewSeeder(stores.Users, products, reviews, log).Run(ctx, catalog)
			if err != nil {
				return err
			}
			fmt.Printf("users: %d created, %d skipped\n", res.Users, res.SkippedUsers)
			fmt.Printf("products: %d created, %d skipped\n", res.Products, res.SkippedProducts)
			fmt.Printf("reviews: %d created, %d skipped\n", res.Reviews, res.SkippedReviews)
			return nil
		},
	}
}

func tokensCommand() *cli.Command {
	return &cli.Command{
		Name:  "tokens",
		Usage: "Print a bearer token for every user in the store",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime",
				Value: 24 * time.Hour,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.New("storefront-seed", c.String("log-level"))
			cfg, stores, err := open(ctx, c.String("store"), log)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close(context.Background()) }()

			users, err := stores.Users.List(ctx)
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}
			jwt := auth.NewJWTManager(cfg.JWTSecret, c.Duration("ttl"))
			for i := range users {
				tok, err := jwt.Issue(&users[i])
				if err != nil {
					return err
				}
				role := "user"
				if users[i].IsAdmin {
					role = "admin"
				}
				fmt.Printf("%s\t%s\t%s\n", users[i].Email, role, tok)
			}
			return nil
		},
	}
}

func open(ctx context.Context, driver string, log *slog.Logger) (*config.Config, *app.Stores, error) {
	cfg, err := config.LoadWithOverrides(map[string]string{"STORE_DRIVER": driver})
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, stores, nil
}
